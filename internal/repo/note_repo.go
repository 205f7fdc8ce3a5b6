package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

var noteColumns = []string{
	"id", "user_id", "folder_id", "title", "content_zh", "content_en",
	"source_document_id", "ctime", "mtime", "indexed_at",
}

type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*model.Note, error) {
	var n model.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.FolderID, &n.Title, &n.ContentZH, &n.ContentEN,
		&n.SourceDocumentID, &n.Ctime, &n.Mtime, &n.IndexedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	sqlStr, args, err := builder.BuildInsert("notes", []map[string]interface{}{{
		"id":                 note.ID,
		"user_id":            note.UserID,
		"folder_id":          note.FolderID,
		"title":              note.Title,
		"content_zh":         note.ContentZH,
		"content_en":         note.ContentEN,
		"source_document_id": note.SourceDocumentID,
		"ctime":              note.Ctime,
		"mtime":              note.Mtime,
		"indexed_at":         note.IndexedAt,
	}})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *NoteRepo) Update(ctx context.Context, note *model.Note) error {
	where := map[string]interface{}{
		"id":      note.ID,
		"user_id": note.UserID,
	}
	update := map[string]interface{}{
		"folder_id":  note.FolderID,
		"title":      note.Title,
		"content_zh": note.ContentZH,
		"content_en": note.ContentEN,
		"mtime":      note.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("notes", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *NoteRepo) GetByID(ctx context.Context, userID, noteID string) (*model.Note, error) {
	sqlStr, args, err := builder.BuildSelect("notes", map[string]interface{}{
		"id":      noteID,
		"user_id": userID,
	}, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	note, err := scanNote(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return note, err
}

func (r *NoteRepo) ListByIDs(ctx context.Context, userID string, noteIDs []string) ([]*model.Note, error) {
	if len(noteIDs) == 0 {
		return []*model.Note{}, nil
	}
	return r.list(ctx, map[string]interface{}{
		"user_id": userID,
		"id in":   noteIDs,
	})
}

func (r *NoteRepo) ListByFolder(ctx context.Context, userID, folderID string) ([]*model.Note, error) {
	return r.list(ctx, map[string]interface{}{
		"user_id":   userID,
		"folder_id": folderID,
		"_orderby":  "mtime desc",
	})
}

func (r *NoteRepo) ListIDsByFolder(ctx context.Context, userID, folderID string) ([]string, error) {
	sqlStr, args, err := builder.BuildSelect("notes", map[string]interface{}{
		"user_id":   userID,
		"folder_id": folderID,
	}, []string{"id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStale returns notes edited after their last successful reindex, oldest
// edit first.
func (r *NoteRepo) ListStale(ctx context.Context, limit int) ([]*model.Note, error) {
	sqlStr := "SELECT id, user_id, folder_id, title, content_zh, content_en, source_document_id, ctime, mtime, indexed_at " +
		"FROM notes WHERE mtime > indexed_at ORDER BY mtime ASC LIMIT ?"
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{limit})
	return r.query(ctx, sqlStr, args)
}

func (r *NoteRepo) list(ctx context.Context, where map[string]interface{}) ([]*model.Note, error) {
	sqlStr, args, err := builder.BuildSelect("notes", where, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	return r.query(ctx, sqlStr, args)
}

func (r *NoteRepo) query(ctx context.Context, sqlStr string, args []interface{}) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}
