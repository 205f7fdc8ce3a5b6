package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/studynote/internal/config"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// compatibleProvider talks to any OpenAI-compatible chat completions API.
// The provider is only asked for a JSON object; the schema is not enforced.
type compatibleProvider struct {
	name        string
	apiKey      string
	model       string
	baseURL     string
	httpReferer string
	xTitle      string
}

type compatibleRequest struct {
	Model          string               `json:"model"`
	Messages       []openAIMessage      `json:"messages"`
	Temperature    float32              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat openAIResponseFormat `json:"response_format"`
	Stream         bool                 `json:"stream"`
}

type compatibleResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *compatibleProvider) Name() string {
	return p.name
}

func (p *compatibleProvider) GenerateJSON(ctx context.Context, params *JSONGenerationParams) (json.RawMessage, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	reqBody := compatibleRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: params.SystemPrompt},
			{Role: "user", Content: params.UserPrompt},
		},
		Temperature:    params.temperature(),
		MaxTokens:      params.maxOutputTokens(),
		ResponseFormat: openAIResponseFormat{Type: "json_object"},
		Stream:         false,
	}
	headers := map[string]string{
		"HTTP-Referer": p.httpReferer,
		"X-Title":      p.xTitle,
	}
	raw, err := postJSON(ctx, p.Name(), joinEndpoint(p.baseURL, "/chat/completions"), p.apiKey, headers, reqBody)
	if err != nil {
		return nil, err
	}
	var out compatibleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", p.Name(), err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, missingContent(p.Name(), "no message content in choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	result, ok := decodeStrict(text)
	if !ok {
		return nil, &ParseError{Provider: p.Name(), Raw: text}
	}
	return result, nil
}

func createCompatibleFactory(cfg config.LLMConfig) (IJSONProvider, error) {
	name := normalizeName(cfg.Provider)
	if name == "" {
		name = fallbackProvider
	}
	fallbackURL := defaultOpenAIBaseURL
	if name == "openrouter" {
		fallbackURL = defaultOpenRouterBaseURL
	}
	return &compatibleProvider{
		name:        name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       strings.TrimSpace(cfg.Model),
		baseURL:     resolveBaseURL(cfg.BaseURL, fallbackURL),
		httpReferer: strings.TrimSpace(cfg.HTTPReferer),
		xTitle:      strings.TrimSpace(cfg.XTitle),
	}, nil
}

func init() {
	Register(fallbackProvider, createCompatibleFactory)
	Register("openrouter", createCompatibleFactory)
}
