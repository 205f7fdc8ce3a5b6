package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsAndRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM notes WHERE user_id = ? ORDER BY mtime DESC LIMIT ?,?", []interface{}{"u1", 10, 20})
	require.Equal(t, "SELECT id FROM notes WHERE user_id = $1 ORDER BY mtime DESC LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"u1", 20, 10}, args)
}

func TestFinalizePlainQuery(t *testing.T) {
	query, args := Finalize("DELETE FROM note_chunks WHERE user_id=? AND note_id=?", []interface{}{"u1", "n1"})
	require.Equal(t, "DELETE FROM note_chunks WHERE user_id=$1 AND note_id=$2", query)
	require.Equal(t, []interface{}{"u1", "n1"}, args)
}
