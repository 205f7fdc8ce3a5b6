package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/pdfextract"
)

const (
	maxImportBytes = 20 << 20

	mimePDF      = "application/pdf"
	mimeMarkdown = "text/markdown"
)

var importExts = map[string]bool{".pdf": true, ".md": true, ".markdown": true, ".txt": true}

// Indexer is satisfied by *StudyService.
type Indexer interface {
	Reindex(ctx context.Context, userID, noteID string) (int, error)
}

type ImportService struct {
	store   filestore.Store
	docs    SourceDocumentStore
	notes   NoteStore
	folders FolderStore
	indexer Indexer
}

func NewImportService(store filestore.Store, docs SourceDocumentStore, notes NoteStore, folders FolderStore, indexer Indexer) *ImportService {
	return &ImportService{store: store, docs: docs, notes: notes, folders: folders, indexer: indexer}
}

// Upload stores a source file and returns its key for a later Import. The
// key carries the uploader id, so only that user can import it.
func (s *ImportService) Upload(ctx context.Context, userID, filename string, r io.Reader, size int64) (string, error) {
	if userID == "" {
		return "", appErr.ErrUnauthorized
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !importExts[ext] {
		return "", fmt.Errorf("extension %q: %w", ext, appErr.ErrUnsupportedFile)
	}
	if size > maxImportBytes {
		return "", fmt.Errorf("file larger than %d bytes: %w", maxImportBytes, appErr.ErrInvalid)
	}
	key := fileKeyPrefix(userID) + newID() + ext
	if err := s.store.Save(ctx, key, r, size); err != nil {
		return "", err
	}
	return key, nil
}

func fileKeyPrefix(userID string) string {
	return userID + "_"
}

type ImportRequest struct {
	FileKey  string `json:"file_key"`
	FolderID string `json:"folder_id"`
	Title    string `json:"title"`
}

type ImportResult struct {
	Document *model.SourceDocument `json:"document"`
	Note     *model.Note           `json:"note"`
	Chunks   int                   `json:"chunks"`
	Indexed  bool                  `json:"indexed"`
}

// Import turns a stored file into a note. When indexing fails the note is
// kept and left stale for the scheduled reindex.
func (s *ImportService) Import(ctx context.Context, userID string, req ImportRequest) (*ImportResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("file_key", req.FileKey))
	if strings.TrimSpace(req.FileKey) == "" {
		return nil, fmt.Errorf("file_key is required: %w", appErr.ErrInvalid)
	}
	if !strings.HasPrefix(req.FileKey, fileKeyPrefix(userID)) {
		return nil, fmt.Errorf("file %s: %w", req.FileKey, appErr.ErrNotFound)
	}
	if req.FolderID != "" {
		if _, err := s.folders.GetByID(ctx, userID, req.FolderID); err != nil {
			return nil, err
		}
	}
	data, err := filestore.ReadAll(ctx, s.store, req.FileKey, maxImportBytes)
	if err != nil {
		logger.Error("read import file failed", zap.Error(err))
		return nil, fmt.Errorf("read %s: %w", req.FileKey, appErr.ErrNotFound)
	}
	text, mime, err := extractText(data)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		base := strings.TrimPrefix(req.FileKey, fileKeyPrefix(userID))
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	now := time.Now().Unix()
	doc := &model.SourceDocument{
		ID:      newID(),
		UserID:  userID,
		Title:   title,
		FileKey: req.FileKey,
		Mime:    mime,
		Ctime:   now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	note := &model.Note{
		ID:               newID(),
		UserID:           userID,
		FolderID:         req.FolderID,
		Title:            title,
		SourceDocumentID: doc.ID,
		Ctime:            now,
		Mtime:            now,
	}
	if isMostlyHan(text) {
		note.ContentZH = text
	} else {
		note.ContentEN = text
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}

	res := &ImportResult{Document: doc, Note: note}
	count, err := s.indexer.Reindex(ctx, userID, note.ID)
	if err != nil {
		logger.Warn("index imported note failed, left for scheduled reindex", zap.String("note_id", note.ID), zap.Error(err))
		return res, nil
	}
	res.Chunks = count
	res.Indexed = true
	logger.Info("document imported", zap.String("note_id", note.ID), zap.String("mime", mime), zap.Int("chunks", count))
	return res, nil
}

func extractText(data []byte) (string, string, error) {
	if pdfextract.IsPDF(data) {
		text, err := pdfextract.ExtractText(data)
		if err != nil {
			return "", "", fmt.Errorf("%v: %w", err, appErr.ErrUnsupportedFile)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", "", appErr.ErrEmptyDocument
		}
		return text, mimePDF, nil
	}
	if !utf8.Valid(data) {
		return "", "", fmt.Errorf("not utf-8 text: %w", appErr.ErrUnsupportedFile)
	}
	text := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if text == "" {
		return "", "", appErr.ErrEmptyDocument
	}
	return text, mimeMarkdown, nil
}

// isMostlyHan reports whether Han characters make up at least a third of the
// letters in text.
func isMostlyHan(text string) bool {
	han, letters := 0, 0
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	return letters > 0 && han*3 >= letters
}
