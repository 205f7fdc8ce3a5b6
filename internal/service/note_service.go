package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

type NoteInput struct {
	FolderID  string `json:"folder_id"`
	Title     string `json:"title"`
	ContentZH string `json:"content_zh"`
	ContentEN string `json:"content_en"`
}

func (in *NoteInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("title is required: %w", appErr.ErrInvalid)
	}
	return nil
}

type NoteService struct {
	notes   NoteStore
	folders FolderStore
}

func NewNoteService(notes NoteStore, folders FolderStore) *NoteService {
	return &NoteService{notes: notes, folders: folders}
}

func (s *NoteService) CreateFolder(ctx context.Context, userID, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("folder name is required: %w", appErr.ErrInvalid)
	}
	now := time.Now().Unix()
	folder := &model.Folder{ID: newID(), UserID: userID, Name: name, Ctime: now, Mtime: now}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *NoteService) ListFolders(ctx context.Context, userID string) ([]*model.Folder, error) {
	return s.folders.List(ctx, userID)
}

// CreateNote stores a new note. It starts stale so the next reindex run
// picks it up.
func (s *NoteService) CreateNote(ctx context.Context, userID string, in NoteInput) (*model.Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkFolder(ctx, userID, in.FolderID); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	note := &model.Note{
		ID:        newID(),
		UserID:    userID,
		FolderID:  in.FolderID,
		Title:     in.Title,
		ContentZH: in.ContentZH,
		ContentEN: in.ContentEN,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, userID, noteID string, in NoteInput) (*model.Note, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	note, err := s.notes.GetByID(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.checkFolder(ctx, userID, in.FolderID); err != nil {
		return nil, err
	}
	note.FolderID = in.FolderID
	note.Title = in.Title
	note.ContentZH = in.ContentZH
	note.ContentEN = in.ContentEN
	note.Mtime = time.Now().Unix()
	if note.Mtime <= note.IndexedAt {
		note.Mtime = note.IndexedAt + 1
	}
	if err := s.notes.Update(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) GetNote(ctx context.Context, userID, noteID string) (*model.Note, error) {
	return s.notes.GetByID(ctx, userID, noteID)
}

func (s *NoteService) ListNotes(ctx context.Context, userID, folderID string) ([]*model.Note, error) {
	return s.notes.ListByFolder(ctx, userID, folderID)
}

func (s *NoteService) checkFolder(ctx context.Context, userID, folderID string) error {
	if folderID == "" {
		return nil
	}
	_, err := s.folders.GetByID(ctx, userID, folderID)
	return err
}
