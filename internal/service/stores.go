package service

import (
	"context"

	"github.com/xxxsen/studynote/internal/model"
)

type NoteStore interface {
	Create(ctx context.Context, note *model.Note) error
	Update(ctx context.Context, note *model.Note) error
	GetByID(ctx context.Context, userID, noteID string) (*model.Note, error)
	ListByFolder(ctx context.Context, userID, folderID string) ([]*model.Note, error)
	ListStale(ctx context.Context, limit int) ([]*model.Note, error)
}

type FolderStore interface {
	Create(ctx context.Context, folder *model.Folder) error
	GetByID(ctx context.Context, userID, folderID string) (*model.Folder, error)
	List(ctx context.Context, userID string) ([]*model.Folder, error)
}

type ChunkWriter interface {
	ReplaceForNote(ctx context.Context, userID, noteID string, chunks []*model.ChunkRecord, indexedAt int64) error
}

type FlashcardStore interface {
	CreateBatch(ctx context.Context, cards []*model.Flashcard) error
	ListByNote(ctx context.Context, userID, noteID string) ([]*model.Flashcard, error)
}

type SourceDocumentStore interface {
	Create(ctx context.Context, doc *model.SourceDocument) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
