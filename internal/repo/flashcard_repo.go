package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/dbutil"
)

type FlashcardRepo struct {
	db *sql.DB
}

func NewFlashcardRepo(db *sql.DB) *FlashcardRepo {
	return &FlashcardRepo{db: db}
}

func (r *FlashcardRepo) CreateBatch(ctx context.Context, cards []*model.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(cards))
	for _, c := range cards {
		data = append(data, map[string]interface{}{
			"id":      c.ID,
			"user_id": c.UserID,
			"note_id": c.NoteID,
			"term":    c.Term,
			"front":   c.Front,
			"back":    c.Back,
			"ctime":   c.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("flashcards", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FlashcardRepo) ListByNote(ctx context.Context, userID, noteID string) ([]*model.Flashcard, error) {
	sqlStr, args, err := builder.BuildSelect("flashcards", map[string]interface{}{
		"user_id":  userID,
		"note_id":  noteID,
		"_orderby": "ctime desc, term asc",
	}, []string{"id", "user_id", "note_id", "term", "front", "back", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.Flashcard, 0)
	for rows.Next() {
		var c model.Flashcard
		if err := rows.Scan(&c.ID, &c.UserID, &c.NoteID, &c.Term, &c.Front, &c.Back, &c.Ctime); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}
