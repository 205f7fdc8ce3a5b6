package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xxxsen/studynote/internal/config"
)

type geminiProvider struct {
	apiKey  string
	model   string
	baseURL string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func newGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	return genai.NewClient(ctx, cc)
}

func (p *geminiProvider) GenerateJSON(ctx context.Context, params *JSONGenerationParams) (json.RawMessage, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	client, err := newGeminiClient(ctx, p.apiKey, p.baseURL)
	if err != nil {
		return nil, err
	}
	temperature := params.temperature()
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
		MaxOutputTokens:  int32(params.maxOutputTokens()),
	}
	if params.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: params.SystemPrompt}}}
	}
	if params.Schema != nil {
		cfg.ResponseJsonSchema = params.Schema
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		p.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: params.UserPrompt}}}},
		cfg,
	)
	if err != nil {
		return nil, wrapGeminiError(p.Name(), err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, missingContent(p.Name(), "no text in candidates")
	}
	raw, stage, ok := decodeLenient(text)
	if !ok {
		return nil, &ParseError{Provider: p.Name(), Raw: text}
	}
	logutil.GetLogger(ctx).Debug("gemini json decoded",
		zap.String("schema", params.schemaName()),
		zap.String("stage", stage),
	)
	return raw, nil
}

type geminiEmbedProvider struct {
	apiKey  string
	baseURL string
}

func (p *geminiEmbedProvider) Name() string {
	return "gemini"
}

func (p *geminiEmbedProvider) PerItem() bool {
	return true
}

func (p *geminiEmbedProvider) Embed(ctx context.Context, req *EmbedRequest) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	if len(req.Texts) != 1 {
		return nil, fmt.Errorf("gemini embeds one text per request, got %d", len(req.Texts))
	}
	client, err := newGeminiClient(ctx, p.apiKey, p.baseURL)
	if err != nil {
		return nil, err
	}
	embedCfg := &genai.EmbedContentConfig{}
	if req.TaskType != "" {
		embedCfg.TaskType = req.TaskType
	}
	if req.Dimensions > 0 {
		dims := int32(req.Dimensions)
		embedCfg.OutputDimensionality = &dims
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		req.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Texts[0]}}}},
		embedCfg,
	)
	if err != nil {
		return nil, wrapGeminiError(p.Name(), err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, missingContent(p.Name(), "no embedding values returned")
	}
	return [][]float32{resp.Embeddings[0].Values}, nil
}

func wrapGeminiError(provider string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: provider, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}

func createGeminiFactory(cfg config.LLMConfig) (IJSONProvider, error) {
	return &geminiProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   strings.TrimSpace(cfg.Model),
		baseURL: strings.TrimSpace(cfg.BaseURL),
	}, nil
}

func createGeminiEmbedFactory(cfg config.EmbeddingConfig) (IEmbedProvider, error) {
	return &geminiEmbedProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimSpace(cfg.BaseURL),
	}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
	Register("google", createGeminiFactory)
	RegisterEmbed("gemini", createGeminiEmbedFactory)
	RegisterEmbed("google", createGeminiEmbedFactory)
}
