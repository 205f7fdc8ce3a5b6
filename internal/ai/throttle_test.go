package ai

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingJSONProvider struct {
	calls int
}

func (c *countingJSONProvider) Name() string { return "counting" }

func (c *countingJSONProvider) GenerateJSON(_ context.Context, _ *JSONGenerationParams) (json.RawMessage, error) {
	c.calls++
	return json.RawMessage(`{}`), nil
}

type countingEmbedProvider struct {
	calls int
}

func (c *countingEmbedProvider) Name() string  { return "counting" }
func (c *countingEmbedProvider) PerItem() bool { return true }

func (c *countingEmbedProvider) Embed(_ context.Context, req *EmbedRequest) ([][]float32, error) {
	c.calls++
	return [][]float32{{1}}, nil
}

func TestThrottleDisabledReturnsSameProvider(t *testing.T) {
	p := &countingJSONProvider{}
	require.Same(t, p, ThrottleJSONProvider(p, 0))
	e := &countingEmbedProvider{}
	require.Same(t, e, ThrottleEmbedProvider(e, -1))
}

func TestThrottleJSONProviderPassesThrough(t *testing.T) {
	inner := &countingJSONProvider{}
	p := ThrottleJSONProvider(inner, 1000)
	require.Equal(t, "counting", p.Name())
	for i := 0; i < 3; i++ {
		_, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{})
		require.NoError(t, err)
	}
	require.Equal(t, 3, inner.calls)
}

func TestThrottleEmbedProviderStopsOnCancelledContext(t *testing.T) {
	inner := &countingEmbedProvider{}
	p := ThrottleEmbedProvider(inner, 0.001)
	require.True(t, p.PerItem())

	_, err := p.Embed(context.Background(), &EmbedRequest{Texts: []string{"a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Embed(ctx, &EmbedRequest{Texts: []string{"b"}})
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}
