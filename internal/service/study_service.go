package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/chunker"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/rag"
)

const flashcardContextCount = 4

type StudyConfig struct {
	TargetSize        int
	Overlap           int
	FlashcardMaxTerms int
}

// Retriever is satisfied by *rag.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, req rag.RetrieveRequest) ([]rag.ContextChunk, error)
}

// Tutor is satisfied by *ai.Manager.
type Tutor interface {
	Answer(ctx context.Context, question string, snippets []ai.Snippet) (*ai.Answer, error)
	Flashcard(ctx context.Context, term string, snippets []ai.Snippet) (*ai.FlashcardDraft, error)
	MaxInputChars() int
}

type StudyService struct {
	notes      NoteStore
	chunks     ChunkWriter
	flashcards FlashcardStore
	embedder   ai.IEmbedder
	retriever  Retriever
	tutor      Tutor
	cfg        StudyConfig
}

func NewStudyService(notes NoteStore, chunks ChunkWriter, flashcards FlashcardStore, embedder ai.IEmbedder, retriever Retriever, tutor Tutor, cfg StudyConfig) *StudyService {
	if cfg.FlashcardMaxTerms <= 0 {
		cfg.FlashcardMaxTerms = 12
	}
	return &StudyService{
		notes:      notes,
		chunks:     chunks,
		flashcards: flashcards,
		embedder:   embedder,
		retriever:  retriever,
		tutor:      tutor,
		cfg:        cfg,
	}
}

func (s *StudyService) chunkOptions() []chunker.Option {
	return []chunker.Option{
		chunker.WithTargetSize(s.cfg.TargetSize),
		chunker.WithOverlap(s.cfg.Overlap),
	}
}

// Reindex rebuilds every chunk of a note. The stored chunk set is replaced
// only after all embeddings succeed.
func (s *StudyService) Reindex(ctx context.Context, userID, noteID string) (int, error) {
	note, err := s.notes.GetByID(ctx, userID, noteID)
	if err != nil {
		return 0, err
	}
	return s.reindexNote(ctx, note)
}

func (s *StudyService) reindexNote(ctx context.Context, note *model.Note) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", note.UserID), zap.String("note_id", note.ID))
	chunks := chunker.ChunkBilingual(chunker.BilingualInput{ZH: note.ContentZH, EN: note.ContentEN}, s.chunkOptions()...)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts, ai.WithTaskType(ai.TaskRetrievalDocument))
	if err != nil {
		logger.Error("embed note chunks failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return 0, fmt.Errorf("embed note chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedded %d of %d chunks: %w", len(vectors), len(chunks), ai.ErrMissingContent)
	}
	now := time.Now().Unix()
	records := make([]*model.ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		records = append(records, &model.ChunkRecord{
			ID:        newID(),
			NoteID:    note.ID,
			UserID:    note.UserID,
			Content:   c.Text,
			Language:  string(c.Language),
			Embedding: vectors[i],
			Position:  c.Position,
			Ctime:     now,
		})
	}
	// indexed_at takes the mtime we read, so an edit racing this reindex keeps the note stale.
	if err := s.chunks.ReplaceForNote(ctx, note.UserID, note.ID, records, note.Mtime); err != nil {
		logger.Error("store note chunks failed", zap.Error(err))
		return 0, err
	}
	logger.Info("note reindexed", zap.Int("chunks", len(records)), zap.String("model", s.embedder.ModelName()))
	return len(records), nil
}

// ReindexStale reindexes up to limit stale notes. A failing note is logged
// and does not stop the batch.
func (s *StudyService) ReindexStale(ctx context.Context, limit int) (int, int, error) {
	notes, err := s.notes.ListStale(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	done, failed := 0, 0
	for _, note := range notes {
		if ctx.Err() != nil {
			return done, failed, ctx.Err()
		}
		if _, err := s.reindexNote(ctx, note); err != nil {
			logutil.GetLogger(ctx).Warn("stale reindex failed, will retry next run",
				zap.String("note_id", note.ID), zap.Error(err))
			failed++
			continue
		}
		done++
	}
	return done, failed, nil
}

type AskRequest struct {
	Question       string    `json:"question"`
	Scope          rag.Scope `json:"scope"`
	MatchCount     int       `json:"match_count"`
	MatchThreshold float64   `json:"match_threshold"`
}

type AskResult struct {
	Answer   string             `json:"answer"`
	Language string             `json:"language"`
	Cited    []int              `json:"cited"`
	Sources  []rag.ContextChunk `json:"sources"`
}

func (s *StudyService) Ask(ctx context.Context, userID string, req AskRequest) (*AskResult, error) {
	question, err := s.checkQuery(req.Question)
	if err != nil {
		return nil, err
	}
	sources, err := s.search(ctx, userID, question, req.Scope, req.MatchCount, req.MatchThreshold)
	if err != nil {
		return nil, err
	}
	answer, err := s.tutor.Answer(ctx, question, toSnippets(sources))
	if err != nil {
		logutil.GetLogger(ctx).Error("answer generation failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &AskResult{
		Answer:   answer.Answer,
		Language: answer.Language,
		Cited:    validCitations(answer.Cited, len(sources)),
		Sources:  sources,
	}, nil
}

type SearchRequest struct {
	Query          string    `json:"query"`
	Scope          rag.Scope `json:"scope"`
	MatchCount     int       `json:"match_count"`
	MatchThreshold float64   `json:"match_threshold"`
}

// Search runs retrieval only, without calling the LLM.
func (s *StudyService) Search(ctx context.Context, userID string, req SearchRequest) ([]rag.ContextChunk, error) {
	query, err := s.checkQuery(req.Query)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, userID, query, req.Scope, req.MatchCount, req.MatchThreshold)
}

func (s *StudyService) search(ctx context.Context, userID, query string, scope rag.Scope, count int, threshold float64) ([]rag.ContextChunk, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query}, ai.WithTaskType(ai.TaskRetrievalQuery))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.retriever.Retrieve(ctx, rag.RetrieveRequest{
		UserID:         userID,
		Scope:          scope,
		QueryEmbedding: vectors[0],
		MatchCount:     count,
		MatchThreshold: threshold,
	})
}

func (s *StudyService) checkQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("empty question: %w", appErr.ErrInvalid)
	}
	if limit := s.tutor.MaxInputChars(); limit > 0 && utf8.RuneCountInString(q) > limit {
		return "", fmt.Errorf("question longer than %d characters: %w", limit, appErr.ErrInvalid)
	}
	return q, nil
}

type SkippedTerm struct {
	Term   string `json:"term"`
	Reason string `json:"reason"`
}

type FlashcardResult struct {
	Cards   []*model.Flashcard `json:"cards"`
	Skipped []SkippedTerm      `json:"skipped"`
}

// GenerateFlashcards drafts one card per candidate term of the note. A term
// whose retrieval or generation fails is skipped and reported.
func (s *StudyService) GenerateFlashcards(ctx context.Context, userID, noteID string, maxTerms int) (*FlashcardResult, error) {
	note, err := s.notes.GetByID(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if maxTerms <= 0 || maxTerms > s.cfg.FlashcardMaxTerms {
		maxTerms = s.cfg.FlashcardMaxTerms
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("note_id", noteID))
	terms := chunker.CandidateTerms(noteMarkdown(note), maxTerms)
	result := &FlashcardResult{Cards: []*model.Flashcard{}, Skipped: []SkippedTerm{}}
	if len(terms) == 0 {
		logger.Info("no flashcard candidates in note")
		return result, nil
	}
	vectors, err := s.embedder.Embed(ctx, terms, ai.WithTaskType(ai.TaskRetrievalQuery))
	if err != nil {
		return nil, fmt.Errorf("embed flashcard terms: %w", err)
	}
	now := time.Now().Unix()
	for i, term := range terms {
		sources, err := s.retriever.Retrieve(ctx, rag.RetrieveRequest{
			UserID:         userID,
			Scope:          rag.Scope{Type: rag.ScopeNote, ID: noteID},
			QueryEmbedding: vectors[i],
			MatchCount:     flashcardContextCount,
		})
		if err != nil {
			logger.Warn("flashcard retrieval failed, skip term", zap.String("term", term), zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term, Reason: err.Error()})
			continue
		}
		draft, err := s.tutor.Flashcard(ctx, term, toSnippets(sources))
		if err != nil {
			logger.Warn("flashcard generation failed, skip term", zap.String("term", term), zap.Error(err))
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term, Reason: err.Error()})
			continue
		}
		result.Cards = append(result.Cards, &model.Flashcard{
			ID:     newID(),
			UserID: userID,
			NoteID: noteID,
			Term:   term,
			Front:  draft.Front,
			Back:   draft.Back,
			Ctime:  now,
		})
	}
	if err := s.flashcards.CreateBatch(ctx, result.Cards); err != nil {
		return nil, err
	}
	logger.Info("flashcards generated", zap.Int("cards", len(result.Cards)), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *StudyService) ListFlashcards(ctx context.Context, userID, noteID string) ([]*model.Flashcard, error) {
	if _, err := s.notes.GetByID(ctx, userID, noteID); err != nil {
		return nil, err
	}
	return s.flashcards.ListByNote(ctx, userID, noteID)
}

func noteMarkdown(note *model.Note) string {
	zh := strings.TrimSpace(note.ContentZH)
	en := strings.TrimSpace(note.ContentEN)
	if zh == en || en == "" {
		return zh
	}
	if zh == "" {
		return en
	}
	return zh + "\n\n" + en
}

func toSnippets(chunks []rag.ContextChunk) []ai.Snippet {
	out := make([]ai.Snippet, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, ai.Snippet{Title: c.SourceTitle, Text: c.Text})
	}
	return out
}

// validCitations keeps 1-based passage numbers that exist.
func validCitations(cited []int, n int) []int {
	out := make([]int, 0, len(cited))
	seen := make(map[int]bool)
	for _, c := range cited {
		if c >= 1 && c <= n && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
