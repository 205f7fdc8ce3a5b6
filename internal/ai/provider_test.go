package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studynote/internal/config"
)

type capturedRequest struct {
	Path    string
	Headers http.Header
	Body    map[string]any
}

func newJSONServer(t *testing.T, status int, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			data, _ := io.ReadAll(r.Body)
			captured.Path = r.URL.Path
			captured.Headers = r.Header.Clone()
			captured.Body = map[string]any{}
			_ = json.Unmarshal(data, &captured.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewProviderFallsBackToCompatible(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{Provider: "Some-Local-Server", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "some-local-server", p.Name())

	_, err = NewProvider(config.LLMConfig{})
	require.ErrorIs(t, err, ErrConfig)
}

func TestNewEmbedProviderFallsBackToBatch(t *testing.T) {
	p, err := NewEmbedProvider(config.EmbeddingConfig{Provider: "voyage", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "voyage", p.Name())
	require.False(t, p.PerItem())

	g, err := NewEmbedProvider(config.EmbeddingConfig{Provider: "GEMINI", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	require.True(t, g.PerItem())
}

func TestOpenAIProviderRequestShape(t *testing.T) {
	var captured capturedRequest
	srv := newJSONServer(t, http.StatusOK, `{"output_text":"{\"answer\":\"42\"}"}`, &captured)
	p, err := NewProvider(config.LLMConfig{Provider: "openai", APIKey: "secret", Model: "gpt-test", BaseURL: srv.URL})
	require.NoError(t, err)

	temp := float32(0.5)
	raw, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{
		SystemPrompt:    "sys",
		UserPrompt:      "usr",
		SchemaName:      "study_answer",
		Schema:          map[string]any{"type": "object"},
		Temperature:     &temp,
		MaxOutputTokens: 100,
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"answer":"42"}`, string(raw))

	require.Equal(t, "/chat/completions", captured.Path)
	require.Equal(t, "Bearer secret", captured.Headers.Get("Authorization"))
	require.Equal(t, "gpt-test", captured.Body["model"])
	require.InDelta(t, 0.5, captured.Body["temperature"], 0.0001)
	require.Equal(t, float64(100), captured.Body["max_output_tokens"])
	format := captured.Body["response_format"].(map[string]any)
	require.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	require.Equal(t, "study_answer", schema["name"])
	require.Equal(t, true, schema["strict"])
	messages := captured.Body["messages"].([]any)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].(map[string]any)["role"])
	require.Equal(t, "usr", messages[1].(map[string]any)["content"])
}

func TestOpenAIProviderResponseShapes(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "output content", reply: `{"output":[{"content":[{"type":"output_text","text":"{\"a\":1}"}]}]}`},
		{name: "choices", reply: `{"choices":[{"message":{"content":"{\"a\":1}"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJSONServer(t, http.StatusOK, tt.reply, nil)
			p, err := NewProvider(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: srv.URL})
			require.NoError(t, err)
			raw, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{UserPrompt: "q"})
			require.NoError(t, err)
			require.JSONEq(t, `{"a":1}`, string(raw))
		})
	}
}

func TestOpenAIProviderFailures(t *testing.T) {
	t.Run("missing content", func(t *testing.T) {
		srv := newJSONServer(t, http.StatusOK, `{"output":[],"choices":[]}`, nil)
		p, _ := NewProvider(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: srv.URL})
		_, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{})
		require.ErrorIs(t, err, ErrMissingContent)
		require.False(t, errors.Is(err, ErrInvalidJSON))
	})
	t.Run("not json", func(t *testing.T) {
		srv := newJSONServer(t, http.StatusOK, `{"output_text":"sure, the answer is 42"}`, nil)
		p, _ := NewProvider(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: srv.URL})
		_, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{})
		require.ErrorIs(t, err, ErrInvalidJSON)
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, "sure, the answer is 42", perr.Raw)
	})
	t.Run("upstream status", func(t *testing.T) {
		srv := newJSONServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, nil)
		p, _ := NewProvider(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: srv.URL})
		_, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{})
		var uerr *UpstreamError
		require.ErrorAs(t, err, &uerr)
		require.Equal(t, http.StatusTooManyRequests, uerr.StatusCode)
		require.Contains(t, uerr.Body, "slow down")
	})
}

func TestCompatibleProviderSendsJSONObjectMode(t *testing.T) {
	var captured capturedRequest
	srv := newJSONServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{\"front\":\"f\",\"back\":\"b\"}"}}]}`, &captured)
	p, err := NewProvider(config.LLMConfig{
		Provider:    "openrouter",
		APIKey:      "k",
		Model:       "vendor/model",
		BaseURL:     srv.URL,
		HTTPReferer: "https://study.example",
		XTitle:      "studynote",
	})
	require.NoError(t, err)
	raw, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{UserPrompt: "q"})
	require.NoError(t, err)
	require.JSONEq(t, `{"front":"f","back":"b"}`, string(raw))

	require.Equal(t, "/chat/completions", captured.Path)
	require.Equal(t, "https://study.example", captured.Headers.Get("HTTP-Referer"))
	require.Equal(t, "studynote", captured.Headers.Get("X-Title"))
	require.Equal(t, float64(defaultMaxOutputTokens), captured.Body["max_tokens"])
	require.Equal(t, false, captured.Body["stream"])
	format := captured.Body["response_format"].(map[string]any)
	require.Equal(t, "json_object", format["type"])
}

func TestCompatibleProviderMissingChoices(t *testing.T) {
	srv := newJSONServer(t, http.StatusOK, `{"choices":[]}`, nil)
	p, _ := NewProvider(config.LLMConfig{Provider: "compatible", APIKey: "k", Model: "m", BaseURL: srv.URL})
	_, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{})
	require.ErrorIs(t, err, ErrMissingContent)
}

func TestGeminiProviderRepairsLooseJSON(t *testing.T) {
	reply := `{"candidates":[{"content":{"role":"model","parts":[{"text":"` +
		"```json\\n{'answer': 'ok',}\\n```" + `"}]}}]}`
	srv := newJSONServer(t, http.StatusOK, reply, nil)
	p, err := NewProvider(config.LLMConfig{Provider: "gemini", APIKey: "k", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)
	raw, err := p.GenerateJSON(context.Background(), &JSONGenerationParams{UserPrompt: "q"})
	require.NoError(t, err)
	require.JSONEq(t, `{"answer":"ok"}`, string(raw))
}

func TestGeminiProviderProseIsParseError(t *testing.T) {
	reply := `{"candidates":[{"content":{"role":"model","parts":[{"text":"I cannot answer that."}]}}]}`
	srv := newJSONServer(t, http.StatusOK, reply, nil)
	p, err := NewProvider(config.LLMConfig{Provider: "gemini", APIKey: "k", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.GenerateJSON(context.Background(), &JSONGenerationParams{UserPrompt: "q"})
	require.ErrorIs(t, err, ErrInvalidJSON)
	require.NotErrorIs(t, err, ErrMissingContent)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "I cannot answer that.", perr.Raw)
}

func TestGeminiProviderEmptyCandidates(t *testing.T) {
	srv := newJSONServer(t, http.StatusOK, `{"candidates":[]}`, nil)
	p, err := NewProvider(config.LLMConfig{Provider: "gemini", APIKey: "k", Model: "gemini-test", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.GenerateJSON(context.Background(), &JSONGenerationParams{UserPrompt: "q"})
	require.ErrorIs(t, err, ErrMissingContent)
}

func TestOpenAIEmbedProviderBatch(t *testing.T) {
	var captured capturedRequest
	srv := newJSONServer(t, http.StatusOK, `{"data":[{"embedding":[1,0]},{"embedding":[0,1]}]}`, &captured)
	p, err := NewEmbedProvider(config.EmbeddingConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)
	vecs, err := p.Embed(context.Background(), &EmbedRequest{Model: "m", Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	require.Equal(t, "/embeddings", captured.Path)
	require.Equal(t, []any{"a", "b"}, captured.Body["input"])

	short := newJSONServer(t, http.StatusOK, `{"data":[{"embedding":[1,0]}]}`, nil)
	p, _ = NewEmbedProvider(config.EmbeddingConfig{Provider: "openai", APIKey: "k", Model: "m", BaseURL: short.URL})
	_, err = p.Embed(context.Background(), &EmbedRequest{Model: "m", Texts: []string{"a", "b"}})
	require.ErrorIs(t, err, ErrMissingContent)
}
