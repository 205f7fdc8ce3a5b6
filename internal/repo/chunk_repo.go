package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/dbutil"
)

var chunkColumns = []string{"id", "note_id", "user_id", "content", "language", "embedding", "position", "ctime"}

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceForNote swaps the full chunk set of a note and stamps indexed_at in
// one transaction. Readers see either the old set or the new one.
func (r *ChunkRepo) ReplaceForNote(ctx context.Context, userID, noteID string, chunks []*model.ChunkRecord, indexedAt int64) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		sqlDelete, deleteArgs := dbutil.Finalize("DELETE FROM note_chunks WHERE user_id=? AND note_id=?", []interface{}{userID, noteID})
		if _, err := tx.ExecContext(ctx, sqlDelete, deleteArgs...); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if len(chunks) > 0 {
			data := make([]map[string]interface{}, 0, len(chunks))
			for _, c := range chunks {
				data = append(data, map[string]interface{}{
					"id":        c.ID,
					"note_id":   noteID,
					"user_id":   userID,
					"content":   c.Content,
					"language":  c.Language,
					"embedding": pgvector.NewVector(c.Embedding),
					"position":  c.Position,
					"ctime":     c.Ctime,
				})
			}
			sqlStr, args, err := builder.BuildInsert("note_chunks", data)
			if err != nil {
				return err
			}
			sqlStr, args = dbutil.Finalize(sqlStr, args)
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("insert chunks: %w", err)
			}
		}
		sqlMark, markArgs := dbutil.Finalize("UPDATE notes SET indexed_at=? WHERE user_id=? AND id=?", []interface{}{indexedAt, userID, noteID})
		if _, err := tx.ExecContext(ctx, sqlMark, markArgs...); err != nil {
			return fmt.Errorf("mark note indexed: %w", err)
		}
		return nil
	})
}

func (r *ChunkRepo) ListByUser(ctx context.Context, userID string) ([]*model.ChunkRecord, error) {
	return r.list(ctx, map[string]interface{}{
		"user_id":  userID,
		"_orderby": "note_id asc, position asc",
	})
}

func (r *ChunkRepo) ListByNotes(ctx context.Context, userID string, noteIDs []string) ([]*model.ChunkRecord, error) {
	if len(noteIDs) == 0 {
		return []*model.ChunkRecord{}, nil
	}
	return r.list(ctx, map[string]interface{}{
		"user_id":    userID,
		"note_id in": noteIDs,
		"_orderby":   "note_id asc, position asc",
	})
}

// SearchSimilar ranks chunks with the pgvector cosine distance operator.
// Zero vectors yield NaN distances, which fail the distance filter. Chunks
// stored with another dimension (left over from an older embedding config)
// get a NULL distance instead of an operator error and are skipped.
func (r *ChunkRepo) SearchSimilar(ctx context.Context, userID string, noteIDs []string, restricted bool, query []float32, minSimilarity float64, limit int) ([]*model.ScoredChunk, error) {
	inner := "SELECT id, note_id, user_id, content, language, embedding, position, ctime, " +
		"CASE WHEN vector_dims(embedding) = ? THEN embedding <=> ? END AS distance " +
		"FROM note_chunks WHERE user_id = ?"
	args := []interface{}{len(query), pgvector.NewVector(query), userID}
	if restricted {
		inner += " AND note_id = ANY(?)"
		args = append(args, pq.Array(noteIDs))
	}
	sqlStr := "SELECT id, note_id, user_id, content, language, embedding, position, ctime, distance FROM (" + inner + ") c " +
		"WHERE distance <= ? ORDER BY distance ASC, note_id ASC, position ASC LIMIT ?"
	args = append(args, 1-minSimilarity, limit)
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.ScoredChunk, 0)
	for rows.Next() {
		var (
			item      model.ScoredChunk
			embedding pgvector.Vector
			distance  float64
		)
		if err := rows.Scan(&item.ID, &item.NoteID, &item.UserID, &item.Content, &item.Language,
			&embedding, &item.Position, &item.Ctime, &distance); err != nil {
			return nil, err
		}
		item.Embedding = embedding.Slice()
		item.Similarity = 1 - distance
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *ChunkRepo) list(ctx context.Context, where map[string]interface{}) ([]*model.ChunkRecord, error) {
	sqlStr, args, err := builder.BuildSelect("note_chunks", where, chunkColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.ChunkRecord, 0)
	for rows.Next() {
		var (
			item      model.ChunkRecord
			embedding pgvector.Vector
		)
		if err := rows.Scan(&item.ID, &item.NoteID, &item.UserID, &item.Content, &item.Language,
			&embedding, &item.Position, &item.Ctime); err != nil {
			return nil, err
		}
		item.Embedding = embedding.Slice()
		items = append(items, &item)
	}
	return items, rows.Err()
}
