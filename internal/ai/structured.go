package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/config"
)

// JSONGenerator produces one schema-shaped JSON value per call.
type JSONGenerator interface {
	GenerateRaw(ctx context.Context, params JSONGenerationParams) (json.RawMessage, error)
}

// StructuredClient is bound to one provider/model/key configuration. It never
// retries; callers decide what a failure means.
type StructuredClient struct {
	provider IJSONProvider
	model    string
}

func NewStructuredClient(cfg config.LLMConfig) (*StructuredClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: llm.api_key is required", ErrConfig)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: llm.model is required", ErrConfig)
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &StructuredClient{provider: provider, model: strings.TrimSpace(cfg.Model)}, nil
}

func (c *StructuredClient) ProviderName() string {
	return c.provider.Name()
}

func (c *StructuredClient) GenerateRaw(ctx context.Context, params JSONGenerationParams) (json.RawMessage, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("provider", c.provider.Name()),
		zap.String("model", c.model),
		zap.String("schema", params.schemaName()),
	)
	for k, v := range params.Metadata {
		logger = logger.With(zap.String("meta."+k, v))
	}
	raw, err := c.provider.GenerateJSON(ctx, &params)
	if err != nil {
		logger.Error("structured generation failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("structured generation done", zap.Int("bytes", len(raw)))
	return raw, nil
}

// GenerateJSON decodes the generated value into T. A value that is valid JSON
// but does not fit T is reported as a ParseError.
func GenerateJSON[T any](ctx context.Context, gen JSONGenerator, params JSONGenerationParams) (T, error) {
	var out T
	raw, err := gen.GenerateRaw(ctx, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ParseError{Raw: string(raw), Err: err}
	}
	return out, nil
}
