package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/studynote/internal/config"
)

type IEmbedder interface {
	// Embed returns one vector per text in input order, or an error for the
	// whole batch.
	Embed(ctx context.Context, texts []string, opts ...EmbedOption) ([][]float32, error)
	ModelName() string
}

type EmbedOptions struct {
	Model    string
	TaskType string
}

type EmbedOption func(*EmbedOptions)

func WithModel(model string) EmbedOption {
	return func(o *EmbedOptions) {
		o.Model = strings.TrimSpace(model)
	}
}

func WithTaskType(taskType string) EmbedOption {
	return func(o *EmbedOptions) {
		o.TaskType = taskType
	}
}

func ApplyEmbedOptions(opts []EmbedOption) EmbedOptions {
	var o EmbedOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type embedder struct {
	provider    IEmbedProvider
	model       string
	dimensions  int
	concurrency int
}

func NewEmbedder(cfg config.EmbeddingConfig) (IEmbedder, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: embedding.model is required", ErrConfig)
	}
	provider, err := NewEmbedProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewEmbedderWithProvider(provider, cfg), nil
}

func NewEmbedderWithProvider(p IEmbedProvider, cfg config.EmbeddingConfig) IEmbedder {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &embedder{
		provider:    p,
		model:       strings.TrimSpace(cfg.Model),
		dimensions:  cfg.Dimensions,
		concurrency: concurrency,
	}
}

func (e *embedder) ModelName() string {
	return fmt.Sprintf("%s/%s@%d", e.provider.Name(), e.model, e.dimensions)
}

func (e *embedder) Embed(ctx context.Context, texts []string, opts ...EmbedOption) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	o := ApplyEmbedOptions(opts)
	model := e.model
	if o.Model != "" {
		model = o.Model
	}
	var (
		vectors [][]float32
		err     error
	)
	if e.provider.PerItem() {
		vectors, err = e.embedPerItem(ctx, model, texts, o.TaskType)
	} else {
		vectors, err = e.provider.Embed(ctx, &EmbedRequest{
			Model:      model,
			Texts:      texts,
			TaskType:   o.TaskType,
			Dimensions: e.dimensions,
		})
	}
	if err != nil {
		logutil.GetLogger(ctx).Error("embedding failed",
			zap.String("provider", e.provider.Name()),
			zap.String("model", model),
			zap.Int("count", len(texts)),
			zap.Error(err),
		)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, missingContent(e.provider.Name(), fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)))
	}
	for i := range vectors {
		vectors[i] = NormalizeDimensions(vectors[i], e.dimensions)
	}
	return vectors, nil
}

func (e *embedder) embedPerItem(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			res, err := e.provider.Embed(gctx, &EmbedRequest{
				Model:      model,
				Texts:      []string{text},
				TaskType:   taskType,
				Dimensions: e.dimensions,
			})
			if err != nil {
				return err
			}
			if len(res) != 1 {
				return missingContent(e.provider.Name(), fmt.Sprintf("expected 1 embedding, got %d", len(res)))
			}
			vectors[i] = res[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// NormalizeDimensions truncates or zero-pads vec to exactly dims entries.
func NormalizeDimensions(vec []float32, dims int) []float32 {
	if dims <= 0 || len(vec) == dims {
		return vec
	}
	if len(vec) > dims {
		return vec[:dims:dims]
	}
	out := make([]float32, dims)
	copy(out, vec)
	return out
}

type unavailableEmbedder struct{}

// UnavailableEmbedder stands in when no embedding provider is configured;
// every call fails with ErrUnavailable.
func UnavailableEmbedder() IEmbedder {
	return unavailableEmbedder{}
}

func (unavailableEmbedder) Embed(_ context.Context, texts []string, _ ...EmbedOption) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return nil, ErrUnavailable
}

func (unavailableEmbedder) ModelName() string {
	return "unavailable"
}
