package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/rag"
)

type fakeNotes struct {
	mu    sync.Mutex
	items map[string]*model.Note
}

func newFakeNotes(notes ...*model.Note) *fakeNotes {
	f := &fakeNotes{items: make(map[string]*model.Note)}
	for _, n := range notes {
		f.items[n.ID] = n
	}
	return f
}

func (f *fakeNotes) Create(_ context.Context, note *model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *note
	f.items[note.ID] = &cp
	return nil
}

func (f *fakeNotes) Update(_ context.Context, note *model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[note.ID]; !ok {
		return appErr.ErrNotFound
	}
	cp := *note
	f.items[note.ID] = &cp
	return nil
}

func (f *fakeNotes) GetByID(_ context.Context, userID, noteID string) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[noteID]
	if !ok || n.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotes) ListByFolder(_ context.Context, userID, folderID string) ([]*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Note
	for _, n := range f.items {
		if n.UserID == userID && n.FolderID == folderID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotes) ListStale(_ context.Context, limit int) ([]*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Note
	for _, n := range f.items {
		if n.Mtime > n.IndexedAt {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFolders struct {
	items map[string]*model.Folder
}

func newFakeFolders(folders ...*model.Folder) *fakeFolders {
	f := &fakeFolders{items: make(map[string]*model.Folder)}
	for _, x := range folders {
		f.items[x.ID] = x
	}
	return f
}

func (f *fakeFolders) Create(_ context.Context, folder *model.Folder) error {
	f.items[folder.ID] = folder
	return nil
}

func (f *fakeFolders) GetByID(_ context.Context, userID, folderID string) (*model.Folder, error) {
	x, ok := f.items[folderID]
	if !ok || x.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return x, nil
}

func (f *fakeFolders) List(_ context.Context, userID string) ([]*model.Folder, error) {
	var out []*model.Folder
	for _, x := range f.items {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	return out, nil
}

type fakeChunks struct {
	notes   *fakeNotes
	byNote  map[string][]*model.ChunkRecord
	replace int
}

func newFakeChunks(notes *fakeNotes) *fakeChunks {
	return &fakeChunks{notes: notes, byNote: make(map[string][]*model.ChunkRecord)}
}

func (f *fakeChunks) ReplaceForNote(_ context.Context, userID, noteID string, chunks []*model.ChunkRecord, indexedAt int64) error {
	f.replace++
	f.byNote[noteID] = chunks
	f.notes.mu.Lock()
	if n, ok := f.notes.items[noteID]; ok && n.UserID == userID {
		n.IndexedAt = indexedAt
	}
	f.notes.mu.Unlock()
	return nil
}

type fakeFlashcards struct {
	cards []*model.Flashcard
}

func (f *fakeFlashcards) CreateBatch(_ context.Context, cards []*model.Flashcard) error {
	f.cards = append(f.cards, cards...)
	return nil
}

func (f *fakeFlashcards) ListByNote(_ context.Context, userID, noteID string) ([]*model.Flashcard, error) {
	var out []*model.Flashcard
	for _, c := range f.cards {
		if c.UserID == userID && c.NoteID == noteID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeEmbedder maps text length to a 2-d vector and fails on any text
// containing failOn.
type fakeEmbedder struct {
	calls  [][]string
	failOn string
	opts   []ai.EmbedOptions
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, opts ...ai.EmbedOption) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	f.opts = append(f.opts, ai.ApplyEmbedOptions(opts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn != "" && strings.Contains(text, f.failOn) {
			return nil, errors.New("provider down")
		}
		out[i] = []float32{1, float32(len(text))}
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake/m@2"
}

type fakeRetriever struct {
	reqs    []rag.RetrieveRequest
	results []rag.ContextChunk
	err     error
}

func (f *fakeRetriever) Retrieve(_ context.Context, req rag.RetrieveRequest) ([]rag.ContextChunk, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeTutor struct {
	answer      *ai.Answer
	answerErr   error
	failTerms   map[string]error
	maxChars    int
	gotSnippets []ai.Snippet
}

func (f *fakeTutor) Answer(_ context.Context, _ string, snippets []ai.Snippet) (*ai.Answer, error) {
	f.gotSnippets = snippets
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return f.answer, nil
}

func (f *fakeTutor) Flashcard(_ context.Context, term string, _ []ai.Snippet) (*ai.FlashcardDraft, error) {
	if err, ok := f.failTerms[term]; ok {
		return nil, err
	}
	return &ai.FlashcardDraft{Front: "What is " + term + "?", Back: term + " explained"}, nil
}

func (f *fakeTutor) MaxInputChars() int {
	return f.maxChars
}
