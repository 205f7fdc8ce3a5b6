package testutil

import (
	"crypto/rand"
	"encoding/hex"
)

func randomHex() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
