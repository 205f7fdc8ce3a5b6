package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Snippet is one retrieved passage handed to the model as context.
type Snippet struct {
	Title string
	Text  string
}

type Answer struct {
	Answer   string `json:"answer"`
	Language string `json:"language"`
	Cited    []int  `json:"cited"`
}

type FlashcardDraft struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

var answerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer":   map[string]any{"type": "string"},
		"language": map[string]any{"type": "string", "enum": []string{"zh", "en"}},
		"cited": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "integer"},
		},
	},
	"required":             []string{"answer", "language", "cited"},
	"additionalProperties": false,
}

var flashcardSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"front": map[string]any{"type": "string"},
		"back":  map[string]any{"type": "string"},
	},
	"required":             []string{"front", "back"},
	"additionalProperties": false,
}

type Manager struct {
	llm JSONGenerator
	cfg ManagerConfig
}

func NewManager(llm JSONGenerator, cfg ManagerConfig) *Manager {
	return &Manager{llm: llm, cfg: cfg}
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) Answer(ctx context.Context, question string, snippets []Snippet) (*Answer, error) {
	if m.llm == nil {
		return nil, ErrUnavailable
	}
	system := `You are a bilingual (Chinese/English) study assistant.
Answer the question using ONLY the numbered context passages.
- Reply in the language of the question.
- If the context is not enough, say so plainly instead of guessing.
- List the numbers of the passages you used in "cited".`
	user := fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION:\n%s", formatSnippets(snippets), question)
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	res, err := GenerateJSON[Answer](ctx, m.llm, JSONGenerationParams{
		SystemPrompt: system,
		UserPrompt:   user,
		SchemaName:   "study_answer",
		Schema:       answerSchema,
		Metadata:     map[string]string{"feature": "ask"},
	})
	if err != nil {
		return nil, err
	}
	res.Answer = strings.TrimSpace(res.Answer)
	if res.Answer == "" {
		return nil, fmt.Errorf("empty ai answer")
	}
	return &res, nil
}

func (m *Manager) Flashcard(ctx context.Context, term string, snippets []Snippet) (*FlashcardDraft, error) {
	if m.llm == nil {
		return nil, ErrUnavailable
	}
	system := `You write concise study flashcards.
The front asks about the term; the back answers in 1-3 sentences.
- Use the same language as the context.
- Base the back strictly on the context passages.`
	user := fmt.Sprintf("TERM:\n%s\n\nCONTEXT:\n%s", term, formatSnippets(snippets))
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	res, err := GenerateJSON[FlashcardDraft](ctx, m.llm, JSONGenerationParams{
		SystemPrompt: system,
		UserPrompt:   user,
		SchemaName:   "flashcard",
		Schema:       flashcardSchema,
		Metadata:     map[string]string{"feature": "flashcard", "term": term},
	})
	if err != nil {
		return nil, err
	}
	res.Front = strings.TrimSpace(res.Front)
	res.Back = strings.TrimSpace(res.Back)
	if res.Front == "" || res.Back == "" {
		return nil, fmt.Errorf("incomplete flashcard for %q", term)
	}
	return &res, nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return ctx, func() {}
}

func formatSnippets(snippets []Snippet) string {
	if len(snippets) == 0 {
		return "(no relevant passages found)"
	}
	var sb strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, s.Title, s.Text)
	}
	return strings.TrimSpace(sb.String())
}
