package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/dbutil"
)

type SourceDocumentRepo struct {
	db *sql.DB
}

func NewSourceDocumentRepo(db *sql.DB) *SourceDocumentRepo {
	return &SourceDocumentRepo{db: db}
}

func (r *SourceDocumentRepo) Create(ctx context.Context, doc *model.SourceDocument) error {
	sqlStr, args, err := builder.BuildInsert("source_documents", []map[string]interface{}{{
		"id":       doc.ID,
		"user_id":  doc.UserID,
		"title":    doc.Title,
		"file_key": doc.FileKey,
		"mime":     doc.Mime,
		"ctime":    doc.Ctime,
	}})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SourceDocumentRepo) ListByIDs(ctx context.Context, userID string, docIDs []string) ([]*model.SourceDocument, error) {
	items := make([]*model.SourceDocument, 0, len(docIDs))
	if len(docIDs) == 0 {
		return items, nil
	}
	sqlStr, args, err := builder.BuildSelect("source_documents", map[string]interface{}{
		"user_id": userID,
		"id in":   docIDs,
	}, []string{"id", "user_id", "title", "file_key", "mime", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var d model.SourceDocument
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.FileKey, &d.Mime, &d.Ctime); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}
