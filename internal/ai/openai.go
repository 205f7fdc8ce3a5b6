package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/studynote/internal/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIProvider struct {
	apiKey   string
	model    string
	endpoint string
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIStructuredRequest struct {
	Model           string               `json:"model"`
	Temperature     float32              `json:"temperature"`
	MaxOutputTokens int                  `json:"max_output_tokens"`
	ResponseFormat  openAIResponseFormat `json:"response_format"`
	Messages        []openAIMessage      `json:"messages"`
}

// openAIStructuredResponse covers both the "output" shape and the chat
// "choices" shape.
type openAIStructuredResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *openAIStructuredResponse) text() string {
	if s := strings.TrimSpace(r.OutputText); s != "" {
		return s
	}
	for _, item := range r.Output {
		for _, part := range item.Content {
			if s := strings.TrimSpace(part.Text); s != "" {
				return s
			}
		}
	}
	for _, choice := range r.Choices {
		if s := strings.TrimSpace(choice.Message.Content); s != "" {
			return s
		}
	}
	return ""
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) GenerateJSON(ctx context.Context, params *JSONGenerationParams) (json.RawMessage, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	schema := params.Schema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	reqBody := openAIStructuredRequest{
		Model:           p.model,
		Temperature:     params.temperature(),
		MaxOutputTokens: params.maxOutputTokens(),
		ResponseFormat: openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   params.schemaName(),
				Schema: schema,
				Strict: true,
			},
		},
		Messages: []openAIMessage{
			{Role: "system", Content: params.SystemPrompt},
			{Role: "user", Content: params.UserPrompt},
		},
	}
	raw, err := postJSON(ctx, p.Name(), p.endpoint, p.apiKey, nil, reqBody)
	if err != nil {
		return nil, err
	}
	var out openAIStructuredResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	text := out.text()
	if text == "" {
		return nil, missingContent(p.Name(), "no output text or choices content")
	}
	result, ok := decodeStrict(text)
	if !ok {
		return nil, &ParseError{Provider: p.Name(), Raw: text}
	}
	return result, nil
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// openAIEmbedProvider sends the whole batch in one multi-input request; it
// serves OpenAI and every OpenAI-compatible embeddings endpoint.
type openAIEmbedProvider struct {
	name    string
	apiKey  string
	baseURL string
}

func (p *openAIEmbedProvider) Name() string {
	return p.name
}

func (p *openAIEmbedProvider) PerItem() bool {
	return false
}

func (p *openAIEmbedProvider) Embed(ctx context.Context, req *EmbedRequest) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	raw, err := postJSON(ctx, p.Name(), joinEndpoint(p.baseURL, "/embeddings"), p.apiKey, nil, openAIEmbedRequest{
		Model: req.Model,
		Input: req.Texts,
	})
	if err != nil {
		return nil, err
	}
	var out openAIEmbedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s embeddings: %w", p.Name(), err)
	}
	if len(out.Data) != len(req.Texts) {
		return nil, missingContent(p.Name(), fmt.Sprintf("expected %d embeddings, got %d", len(req.Texts), len(out.Data)))
	}
	result := make([][]float32, len(out.Data))
	for i, item := range out.Data {
		if len(item.Embedding) == 0 {
			return nil, missingContent(p.Name(), fmt.Sprintf("embedding %d is empty", i))
		}
		result[i] = item.Embedding
	}
	return result, nil
}

func resolveBaseURL(baseURL, fallback string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return fallback
	}
	return baseURL
}

func createOpenAIFactory(cfg config.LLMConfig) (IJSONProvider, error) {
	return &openAIProvider{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    strings.TrimSpace(cfg.Model),
		endpoint: joinEndpoint(resolveBaseURL(cfg.BaseURL, defaultOpenAIBaseURL), "/chat/completions"),
	}, nil
}

func createOpenAIEmbedFactory(cfg config.EmbeddingConfig) (IEmbedProvider, error) {
	name := normalizeName(cfg.Provider)
	if name == "" || name == fallbackProvider {
		name = "openai"
	}
	return &openAIEmbedProvider{
		name:    name,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: resolveBaseURL(cfg.BaseURL, defaultOpenAIBaseURL),
	}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
	RegisterEmbed(fallbackProvider, createOpenAIEmbedFactory)
}
