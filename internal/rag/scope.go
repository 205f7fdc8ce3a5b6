package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

const (
	ScopeAll    = "all"
	ScopeNote   = "note"
	ScopeFolder = "folder"
)

type Scope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type NoteStore interface {
	GetByID(ctx context.Context, userID, noteID string) (*model.Note, error)
	ListByIDs(ctx context.Context, userID string, noteIDs []string) ([]*model.Note, error)
	ListIDsByFolder(ctx context.Context, userID, folderID string) ([]string, error)
}

type FolderStore interface {
	GetByID(ctx context.Context, userID, folderID string) (*model.Folder, error)
}

type ScopeResolver struct {
	notes   NoteStore
	folders FolderStore
}

func NewScopeResolver(notes NoteStore, folders FolderStore) *ScopeResolver {
	return &ScopeResolver{notes: notes, folders: folders}
}

// Resolve maps a scope to note ids. restricted=false means every note the
// user owns; otherwise ids is the complete, possibly empty, allow list.
func (r *ScopeResolver) Resolve(ctx context.Context, userID string, scope Scope) ([]string, bool, error) {
	switch strings.ToLower(strings.TrimSpace(scope.Type)) {
	case "", ScopeAll:
		return nil, false, nil
	case ScopeNote:
		if scope.ID == "" {
			return nil, false, fmt.Errorf("note scope without id: %w", appErr.ErrInvalid)
		}
		if _, err := r.notes.GetByID(ctx, userID, scope.ID); err != nil {
			return nil, false, err
		}
		return []string{scope.ID}, true, nil
	case ScopeFolder:
		if scope.ID == "" {
			return nil, false, fmt.Errorf("folder scope without id: %w", appErr.ErrInvalid)
		}
		if _, err := r.folders.GetByID(ctx, userID, scope.ID); err != nil {
			return nil, false, err
		}
		ids, err := r.notes.ListIDsByFolder(ctx, userID, scope.ID)
		if err != nil {
			return nil, false, err
		}
		if ids == nil {
			ids = []string{}
		}
		return ids, true, nil
	default:
		return nil, false, fmt.Errorf("unknown scope type %q: %w", scope.Type, appErr.ErrInvalid)
	}
}
