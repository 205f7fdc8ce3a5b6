package handler

import (
	"context"
	"io"

	"github.com/xxxsen/studynote/internal/model"
	"github.com/xxxsen/studynote/internal/rag"
	"github.com/xxxsen/studynote/internal/service"
)

// Service contracts the handlers depend on; the service package's structs
// satisfy them.

type AuthAPI interface {
	Register(ctx context.Context, email, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
}

type NoteAPI interface {
	CreateFolder(ctx context.Context, userID, name string) (*model.Folder, error)
	ListFolders(ctx context.Context, userID string) ([]*model.Folder, error)
	CreateNote(ctx context.Context, userID string, in service.NoteInput) (*model.Note, error)
	UpdateNote(ctx context.Context, userID, noteID string, in service.NoteInput) (*model.Note, error)
	GetNote(ctx context.Context, userID, noteID string) (*model.Note, error)
	ListNotes(ctx context.Context, userID, folderID string) ([]*model.Note, error)
}

type StudyAPI interface {
	Reindex(ctx context.Context, userID, noteID string) (int, error)
	Ask(ctx context.Context, userID string, req service.AskRequest) (*service.AskResult, error)
	Search(ctx context.Context, userID string, req service.SearchRequest) ([]rag.ContextChunk, error)
	GenerateFlashcards(ctx context.Context, userID, noteID string, maxTerms int) (*service.FlashcardResult, error)
	ListFlashcards(ctx context.Context, userID, noteID string) ([]*model.Flashcard, error)
}

type ImportAPI interface {
	Upload(ctx context.Context, userID, filename string, r io.Reader, size int64) (string, error)
	Import(ctx context.Context, userID string, req service.ImportRequest) (*service.ImportResult, error)
}

var (
	_ AuthAPI   = (*service.AuthService)(nil)
	_ NoteAPI   = (*service.NoteService)(nil)
	_ StudyAPI  = (*service.StudyService)(nil)
	_ ImportAPI = (*service.ImportService)(nil)
)
