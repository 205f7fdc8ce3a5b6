package rag

import (
	"context"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/model"
)

const (
	DefaultMatchCount     = 8
	DefaultMatchThreshold = 0.4

	SourceTypeNote     = "note"
	SourceTypeDocument = "document"
)

type ChunkStore interface {
	ListByUser(ctx context.Context, userID string) ([]*model.ChunkRecord, error)
	ListByNotes(ctx context.Context, userID string, noteIDs []string) ([]*model.ChunkRecord, error)
}

// VectorSearcher ranks chunks inside the database. Results must already be
// filtered by minSimilarity, ordered like the in-memory path and cut to limit.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, userID string, noteIDs []string, restricted bool, query []float32, minSimilarity float64, limit int) ([]*model.ScoredChunk, error)
}

type DocumentStore interface {
	ListByIDs(ctx context.Context, userID string, docIDs []string) ([]*model.SourceDocument, error)
}

type ContextChunk struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	SourceType  string  `json:"source_type"`
	SourceTitle string  `json:"source_title"`
	NoteID      string  `json:"note_id"`
	Position    int     `json:"position"`
	Similarity  float64 `json:"similarity"`
}

type RetrieveRequest struct {
	UserID         string
	Scope          Scope
	QueryEmbedding []float32
	// Zero values fall back to the retriever defaults.
	MatchCount     int
	MatchThreshold float64
}

type Retriever struct {
	resolver       *ScopeResolver
	chunks         ChunkStore
	notes          NoteStore
	docs           DocumentStore
	searcher       VectorSearcher
	matchCount     int
	matchThreshold float64
}

type Option func(*Retriever)

// WithVectorSearch delegates scoring to s instead of scanning in memory.
func WithVectorSearch(s VectorSearcher) Option {
	return func(r *Retriever) {
		r.searcher = s
	}
}

func WithDefaults(matchCount int, matchThreshold float64) Option {
	return func(r *Retriever) {
		if matchCount > 0 {
			r.matchCount = matchCount
		}
		if matchThreshold > 0 {
			r.matchThreshold = matchThreshold
		}
	}
}

func NewRetriever(resolver *ScopeResolver, chunks ChunkStore, notes NoteStore, docs DocumentStore, opts ...Option) *Retriever {
	r := &Retriever{
		resolver:       resolver,
		chunks:         chunks,
		notes:          notes,
		docs:           docs,
		matchCount:     DefaultMatchCount,
		matchThreshold: DefaultMatchThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]ContextChunk, error) {
	matchCount := req.MatchCount
	if matchCount <= 0 {
		matchCount = r.matchCount
	}
	threshold := req.MatchThreshold
	if threshold <= 0 {
		threshold = r.matchThreshold
	}
	minSimilarity := 1 - threshold

	noteIDs, restricted, err := r.resolver.Resolve(ctx, req.UserID, req.Scope)
	if err != nil {
		return nil, err
	}
	if restricted && len(noteIDs) == 0 {
		return []ContextChunk{}, nil
	}

	var ranked []*model.ScoredChunk
	if r.searcher != nil {
		ranked, err = r.searcher.SearchSimilar(ctx, req.UserID, noteIDs, restricted, req.QueryEmbedding, minSimilarity, matchCount)
	} else {
		ranked, err = r.scan(ctx, req.UserID, noteIDs, restricted, req.QueryEmbedding, minSimilarity, matchCount)
	}
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("chunks retrieved",
		zap.String("scope", req.Scope.Type),
		zap.Bool("restricted", restricted),
		zap.Int("notes", len(noteIDs)),
		zap.Int("matched", len(ranked)),
	)
	return r.hydrate(ctx, req.UserID, ranked)
}

func (r *Retriever) scan(ctx context.Context, userID string, noteIDs []string, restricted bool, query []float32, minSimilarity float64, limit int) ([]*model.ScoredChunk, error) {
	var (
		candidates []*model.ChunkRecord
		err        error
	)
	if restricted {
		candidates, err = r.chunks.ListByNotes(ctx, userID, noteIDs)
	} else {
		candidates, err = r.chunks.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	scored := make([]*model.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		// chunks left over from another embedding dimension wait for a reindex
		if c.UserID != userID || len(c.Embedding) != len(query) {
			continue
		}
		sim := CosineSimilarity(query, c.Embedding)
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, &model.ScoredChunk{ChunkRecord: *c, Similarity: sim})
	}
	sortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// sortScored orders by similarity descending, then note id and position.
func sortScored(items []*model.ScoredChunk) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.NoteID != b.NoteID {
			return a.NoteID < b.NoteID
		}
		return a.Position < b.Position
	})
}

func (r *Retriever) hydrate(ctx context.Context, userID string, ranked []*model.ScoredChunk) ([]ContextChunk, error) {
	out := make([]ContextChunk, 0, len(ranked))
	if len(ranked) == 0 {
		return out, nil
	}
	noteIDs := make([]string, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, c := range ranked {
		if _, ok := seen[c.NoteID]; ok {
			continue
		}
		seen[c.NoteID] = struct{}{}
		noteIDs = append(noteIDs, c.NoteID)
	}
	notes, err := r.notes.ListByIDs(ctx, userID, noteIDs)
	if err != nil {
		return nil, err
	}
	noteByID := make(map[string]*model.Note, len(notes))
	var docIDs []string
	for _, n := range notes {
		noteByID[n.ID] = n
		if n.SourceDocumentID != "" {
			docIDs = append(docIDs, n.SourceDocumentID)
		}
	}
	docByID := make(map[string]*model.SourceDocument)
	if len(docIDs) > 0 && r.docs != nil {
		docs, err := r.docs.ListByIDs(ctx, userID, docIDs)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			docByID[d.ID] = d
		}
	}
	for _, c := range ranked {
		item := ContextChunk{
			ID:         c.ID,
			Text:       c.Content,
			SourceType: SourceTypeNote,
			NoteID:     c.NoteID,
			Position:   c.Position,
			Similarity: c.Similarity,
		}
		if n, ok := noteByID[c.NoteID]; ok {
			item.SourceTitle = n.Title
			if d, ok := docByID[n.SourceDocumentID]; ok {
				item.SourceType = SourceTypeDocument
				if d.Title != "" {
					item.SourceTitle = d.Title
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}
