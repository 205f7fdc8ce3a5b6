package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/rag"
)

type studyFixture struct {
	notes      *fakeNotes
	chunks     *fakeChunks
	flashcards *fakeFlashcards
	embedder   *fakeEmbedder
	retriever  *fakeRetriever
	tutor      *fakeTutor
	svc        *StudyService
}

func newStudyFixture(notes ...*model.Note) *studyFixture {
	f := &studyFixture{
		notes:      newFakeNotes(notes...),
		flashcards: &fakeFlashcards{},
		embedder:   &fakeEmbedder{},
		retriever:  &fakeRetriever{},
		tutor:      &fakeTutor{answer: &ai.Answer{Answer: "ok", Language: "en", Cited: []int{1, 1, 7}}},
	}
	f.chunks = newFakeChunks(f.notes)
	f.svc = NewStudyService(f.notes, f.chunks, f.flashcards, f.embedder, f.retriever, f.tutor, StudyConfig{TargetSize: 40, Overlap: 5, FlashcardMaxTerms: 5})
	return f
}

func TestReindexReplacesChunks(t *testing.T) {
	note := &model.Note{ID: "n1", UserID: "u1", ContentZH: "第一段。\n\n第二段。", ContentEN: "First paragraph.", Mtime: 50}
	f := newStudyFixture(note)

	n, err := f.svc.Reindex(context.Background(), "u1", "n1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, f.embedder.calls, 1)
	require.Equal(t, ai.TaskRetrievalDocument, f.embedder.opts[0].TaskType)

	stored := f.chunks.byNote["n1"]
	require.Len(t, stored, 2)
	for i, c := range stored {
		require.Equal(t, i, c.Position)
		require.Equal(t, "u1", c.UserID)
		require.Len(t, c.Embedding, 2)
	}
	require.Equal(t, "zh", stored[0].Language)
	require.Equal(t, "en", stored[1].Language)

	got, _ := f.notes.GetByID(context.Background(), "u1", "n1")
	require.Equal(t, int64(50), got.IndexedAt)
}

func TestReindexEmbeddingFailureKeepsChunks(t *testing.T) {
	note := &model.Note{ID: "n1", UserID: "u1", ContentEN: "alpha\n\nbroken beta", Mtime: 2}
	f := newStudyFixture(note)
	f.chunks.byNote["n1"] = []*model.ChunkRecord{{ID: "old"}}
	f.embedder.failOn = "broken"

	_, err := f.svc.Reindex(context.Background(), "u1", "n1")
	require.Error(t, err)
	require.Equal(t, 0, f.chunks.replace)
	require.Equal(t, "old", f.chunks.byNote["n1"][0].ID)
}

func TestReindexChecksOwnership(t *testing.T) {
	f := newStudyFixture(&model.Note{ID: "n1", UserID: "u1"})
	_, err := f.svc.Reindex(context.Background(), "u2", "n1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestReindexStaleContinuesAfterFailure(t *testing.T) {
	f := newStudyFixture(
		&model.Note{ID: "a", UserID: "u1", ContentEN: "fine", Mtime: 5},
		&model.Note{ID: "b", UserID: "u1", ContentEN: "broken", Mtime: 5},
		&model.Note{ID: "c", UserID: "u2", ContentEN: "also fine", Mtime: 5},
		&model.Note{ID: "d", UserID: "u2", ContentEN: "fresh", Mtime: 5, IndexedAt: 5},
	)
	f.embedder.failOn = "broken"
	done, failed, err := f.svc.ReindexStale(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, done)
	require.Equal(t, 1, failed)

	stale, _ := f.notes.ListStale(context.Background(), 10)
	require.Len(t, stale, 1)
	require.Equal(t, "b", stale[0].ID)
}

func TestAskAssemblesAnswer(t *testing.T) {
	f := newStudyFixture()
	f.retriever.results = []rag.ContextChunk{
		{ID: "c1", Text: "mitochondria make ATP", SourceTitle: "Cells", SourceType: rag.SourceTypeNote, Similarity: 0.9},
	}
	res, err := f.svc.Ask(context.Background(), "u1", AskRequest{
		Question:   "  what makes ATP? ",
		Scope:      rag.Scope{Type: rag.ScopeFolder, ID: "f1"},
		MatchCount: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Answer)
	require.Equal(t, []int{1}, res.Cited)
	require.Len(t, res.Sources, 1)

	require.Equal(t, [][]string{{"what makes ATP?"}}, f.embedder.calls)
	require.Equal(t, ai.TaskRetrievalQuery, f.embedder.opts[0].TaskType)
	require.Len(t, f.retriever.reqs, 1)
	req := f.retriever.reqs[0]
	require.Equal(t, "u1", req.UserID)
	require.Equal(t, 3, req.MatchCount)
	require.Equal(t, rag.ScopeFolder, req.Scope.Type)
	require.Equal(t, []ai.Snippet{{Title: "Cells", Text: "mitochondria make ATP"}}, f.tutor.gotSnippets)
}

func TestSearchSkipsTutor(t *testing.T) {
	f := newStudyFixture()
	f.retriever.results = []rag.ContextChunk{{ID: "c1", Text: "x"}}
	out, err := f.svc.Search(context.Background(), "u1", SearchRequest{Query: " x ", MatchThreshold: 0.2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, [][]string{{"x"}}, f.embedder.calls)
	require.InDelta(t, 0.2, f.retriever.reqs[0].MatchThreshold, 1e-9)
	require.Nil(t, f.tutor.gotSnippets)

	_, err = f.svc.Search(context.Background(), "u1", SearchRequest{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAskValidatesQuestion(t *testing.T) {
	f := newStudyFixture()
	_, err := f.svc.Ask(context.Background(), "u1", AskRequest{Question: "   "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	f.tutor.maxChars = 5
	_, err = f.svc.Ask(context.Background(), "u1", AskRequest{Question: "光合作用是什么"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Empty(t, f.embedder.calls)
}

func TestAskPropagatesLLMErrors(t *testing.T) {
	f := newStudyFixture()
	f.tutor.answerErr = &ai.ParseError{Raw: "nope"}
	_, err := f.svc.Ask(context.Background(), "u1", AskRequest{Question: "q"})
	require.ErrorIs(t, err, ai.ErrInvalidJSON)
}

func TestGenerateFlashcardsSkipsFailedTerms(t *testing.T) {
	note := &model.Note{
		ID:        "n1",
		UserID:    "u1",
		ContentEN: "# Osmosis\n\nWater moves. **Diffusion** too.\n\n## Active transport\n\nNeeds ATP.",
	}
	f := newStudyFixture(note)
	f.tutor.failTerms = map[string]error{"Diffusion": ai.ErrMissingContent}

	res, err := f.svc.GenerateFlashcards(context.Background(), "u1", "n1", 0)
	require.NoError(t, err)
	require.Len(t, res.Cards, 2)
	require.Len(t, res.Skipped, 1)
	require.Equal(t, "Diffusion", res.Skipped[0].Term)
	require.True(t, strings.Contains(res.Skipped[0].Reason, "missing"))

	require.Len(t, f.embedder.calls, 1)
	for _, req := range f.retriever.reqs {
		require.Equal(t, rag.Scope{Type: rag.ScopeNote, ID: "n1"}, req.Scope)
	}
	require.Len(t, f.flashcards.cards, 2)

	cards, err := f.svc.ListFlashcards(context.Background(), "u1", "n1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
}

func TestGenerateFlashcardsWithoutTerms(t *testing.T) {
	f := newStudyFixture(&model.Note{ID: "n1", UserID: "u1", ContentEN: "plain text only"})
	res, err := f.svc.GenerateFlashcards(context.Background(), "u1", "n1", 3)
	require.NoError(t, err)
	require.Empty(t, res.Cards)
	require.Empty(t, f.embedder.calls)
}

func TestValidCitations(t *testing.T) {
	require.Equal(t, []int{2, 1}, validCitations([]int{0, 2, 1, 2, 5}, 3))
	require.Equal(t, []int{}, validCitations(nil, 0))
}
