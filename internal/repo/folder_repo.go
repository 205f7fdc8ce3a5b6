package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

var folderColumns = []string{"id", "user_id", "name", "ctime", "mtime"}

type FolderRepo struct {
	db *sql.DB
}

func NewFolderRepo(db *sql.DB) *FolderRepo {
	return &FolderRepo{db: db}
}

func (r *FolderRepo) Create(ctx context.Context, folder *model.Folder) error {
	sqlStr, args, err := builder.BuildInsert("folders", []map[string]interface{}{{
		"id":      folder.ID,
		"user_id": folder.UserID,
		"name":    folder.Name,
		"ctime":   folder.Ctime,
		"mtime":   folder.Mtime,
	}})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FolderRepo) GetByID(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	sqlStr, args, err := builder.BuildSelect("folders", map[string]interface{}{
		"id":      folderID,
		"user_id": userID,
	}, folderColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var f model.Folder
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&f.ID, &f.UserID, &f.Name, &f.Ctime, &f.Mtime)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FolderRepo) List(ctx context.Context, userID string) ([]*model.Folder, error) {
	sqlStr, args, err := builder.BuildSelect("folders", map[string]interface{}{
		"user_id":  userID,
		"_orderby": "name asc",
	}, folderColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]*model.Folder, 0)
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.Ctime, &f.Mtime); err != nil {
			return nil, err
		}
		items = append(items, &f)
	}
	return items, rows.Err()
}
