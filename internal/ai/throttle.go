package ai

import (
	"context"
	"encoding/json"
	"math"

	"golang.org/x/time/rate"
)

// newLimiter returns nil for rps <= 0, which disables throttling.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// ThrottleJSONProvider makes every GenerateJSON wait for a token first.
func ThrottleJSONProvider(p IJSONProvider, rps float64) IJSONProvider {
	limiter := newLimiter(rps)
	if p == nil || limiter == nil {
		return p
	}
	return &throttledJSONProvider{next: p, limiter: limiter}
}

type throttledJSONProvider struct {
	next    IJSONProvider
	limiter *rate.Limiter
}

func (t *throttledJSONProvider) Name() string {
	return t.next.Name()
}

func (t *throttledJSONProvider) GenerateJSON(ctx context.Context, params *JSONGenerationParams) (json.RawMessage, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.GenerateJSON(ctx, params)
}

// ThrottleEmbedProvider limits upstream embedding requests. Per-item
// providers are throttled per text since each text is its own request.
func ThrottleEmbedProvider(p IEmbedProvider, rps float64) IEmbedProvider {
	limiter := newLimiter(rps)
	if p == nil || limiter == nil {
		return p
	}
	return &throttledEmbedProvider{next: p, limiter: limiter}
}

type throttledEmbedProvider struct {
	next    IEmbedProvider
	limiter *rate.Limiter
}

func (t *throttledEmbedProvider) Name() string {
	return t.next.Name()
}

func (t *throttledEmbedProvider) PerItem() bool {
	return t.next.PerItem()
}

func (t *throttledEmbedProvider) Embed(ctx context.Context, req *EmbedRequest) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.Embed(ctx, req)
}
