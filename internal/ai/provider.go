package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/studynote/internal/config"
)

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"

	defaultTemperature     float32 = 0.2
	defaultMaxOutputTokens         = 2048

	// fallbackProvider serves any provider id without its own factory.
	fallbackProvider = "compatible"
)

// JSONGenerationParams is the input to one structured generation call.
type JSONGenerationParams struct {
	SystemPrompt    string
	UserPrompt      string
	SchemaName      string
	Schema          map[string]any
	Temperature     *float32
	MaxOutputTokens int
	Metadata        map[string]string
}

func (p *JSONGenerationParams) temperature() float32 {
	if p.Temperature == nil {
		return defaultTemperature
	}
	return *p.Temperature
}

func (p *JSONGenerationParams) maxOutputTokens() int {
	if p.MaxOutputTokens <= 0 {
		return defaultMaxOutputTokens
	}
	return p.MaxOutputTokens
}

func (p *JSONGenerationParams) schemaName() string {
	name := strings.TrimSpace(p.SchemaName)
	if name == "" {
		return "response"
	}
	return name
}

// IJSONProvider performs exactly one upstream call per GenerateJSON.
type IJSONProvider interface {
	Name() string
	GenerateJSON(ctx context.Context, params *JSONGenerationParams) (json.RawMessage, error)
}

// EmbedRequest is one upstream embedding call.
type EmbedRequest struct {
	Model      string
	Texts      []string
	TaskType   string
	Dimensions int
}

type IEmbedProvider interface {
	Name() string
	// PerItem reports whether the provider takes a single text per request.
	PerItem() bool
	Embed(ctx context.Context, req *EmbedRequest) ([][]float32, error)
}

type ProviderFactory func(cfg config.LLMConfig) (IJSONProvider, error)

type EmbedProviderFactory func(cfg config.EmbeddingConfig) (IEmbedProvider, error)

var (
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func Register(name string, factory ProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

// NewProvider resolves a structured-generation provider, falling back to the
// generic OpenAI-compatible one for unknown ids.
func NewProvider(cfg config.LLMConfig) (IJSONProvider, error) {
	key := normalizeName(cfg.Provider)
	if key == "" {
		return nil, fmt.Errorf("%w: llm.provider is required", ErrConfig)
	}
	factory := registry[key]
	if factory == nil {
		factory = registry[fallbackProvider]
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported llm provider: %s", ErrConfig, cfg.Provider)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	return ThrottleJSONProvider(p, cfg.RequestsPerSecond), nil
}

// NewEmbedProvider resolves an embedding provider; ids without a native
// factory use the batch OpenAI-compatible endpoint.
func NewEmbedProvider(cfg config.EmbeddingConfig) (IEmbedProvider, error) {
	key := normalizeName(cfg.Provider)
	if key == "" {
		return nil, fmt.Errorf("%w: embedding.provider is required", ErrConfig)
	}
	factory := embedRegistry[key]
	if factory == nil {
		factory = embedRegistry[fallbackProvider]
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", ErrConfig, cfg.Provider)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	return ThrottleEmbedProvider(p, cfg.RequestsPerSecond), nil
}
