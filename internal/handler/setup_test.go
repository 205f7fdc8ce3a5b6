package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/studynote/internal/handler"
	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/jwt"
	"github.com/xxxsen/studynote/internal/rag"
	"github.com/xxxsen/studynote/internal/service"
)

var testSecret = []byte("test-secret")

type fakeAuth struct{}

func (fakeAuth) Register(_ context.Context, email, _ string) (*model.User, string, error) {
	if email == "taken@example.com" {
		return nil, "", appErr.ErrConflict
	}
	token, err := jwt.GenerateToken("u1", email, testSecret, time.Hour)
	return &model.User{ID: "u1", Email: email}, token, err
}

func (fakeAuth) Login(_ context.Context, email, password string) (*model.User, string, error) {
	if password != "correct horse" {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken("u1", email, testSecret, time.Hour)
	return &model.User{ID: "u1", Email: email}, token, err
}

type fakeNotes struct {
	lastUser string
}

func (f *fakeNotes) CreateFolder(_ context.Context, userID, name string) (*model.Folder, error) {
	f.lastUser = userID
	return &model.Folder{ID: "f1", UserID: userID, Name: name}, nil
}

func (f *fakeNotes) ListFolders(_ context.Context, userID string) ([]*model.Folder, error) {
	return []*model.Folder{{ID: "f1", UserID: userID}}, nil
}

func (f *fakeNotes) CreateNote(_ context.Context, userID string, in service.NoteInput) (*model.Note, error) {
	if in.Title == "" {
		return nil, appErr.ErrInvalid
	}
	return &model.Note{ID: "n1", UserID: userID, Title: in.Title}, nil
}

func (f *fakeNotes) UpdateNote(_ context.Context, userID, noteID string, in service.NoteInput) (*model.Note, error) {
	return &model.Note{ID: noteID, UserID: userID, Title: in.Title}, nil
}

func (f *fakeNotes) GetNote(_ context.Context, _ string, noteID string) (*model.Note, error) {
	if noteID != "n1" {
		return nil, appErr.ErrNotFound
	}
	return &model.Note{ID: "n1"}, nil
}

func (f *fakeNotes) ListNotes(_ context.Context, userID, folderID string) ([]*model.Note, error) {
	return []*model.Note{{ID: "n1", UserID: userID, FolderID: folderID}}, nil
}

type fakeStudy struct {
	askErr     error
	lastAsk    service.AskRequest
	lastSearch service.SearchRequest
	maxTerm    int
}

func (f *fakeStudy) Reindex(_ context.Context, _ string, _ string) (int, error) {
	return 4, nil
}

func (f *fakeStudy) Ask(_ context.Context, _ string, req service.AskRequest) (*service.AskResult, error) {
	f.lastAsk = req
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &service.AskResult{
		Answer:  "ATP",
		Cited:   []int{1},
		Sources: []rag.ContextChunk{{ID: "c1", Text: "t", SourceType: rag.SourceTypeNote, Similarity: 0.8}},
	}, nil
}

func (f *fakeStudy) Search(_ context.Context, _ string, req service.SearchRequest) ([]rag.ContextChunk, error) {
	f.lastSearch = req
	return []rag.ContextChunk{{ID: "c1", Text: "ATP", SourceType: rag.SourceTypeNote, Similarity: 0.8}}, nil
}

func (f *fakeStudy) GenerateFlashcards(_ context.Context, _ string, _ string, maxTerms int) (*service.FlashcardResult, error) {
	f.maxTerm = maxTerms
	return &service.FlashcardResult{Cards: []*model.Flashcard{}, Skipped: []service.SkippedTerm{}}, nil
}

func (f *fakeStudy) ListFlashcards(_ context.Context, _ string, _ string) ([]*model.Flashcard, error) {
	return []*model.Flashcard{}, nil
}

type fakeImports struct {
	uploaded   []byte
	uploadedBy string
}

func (f *fakeImports) Upload(_ context.Context, userID, filename string, r io.Reader, _ int64) (string, error) {
	f.uploadedBy = userID
	if filename == "bad.exe" {
		return "", appErr.ErrUnsupportedFile
	}
	data, err := io.ReadAll(r)
	f.uploaded = data
	return "k1.md", err
}

func (f *fakeImports) Import(_ context.Context, userID string, req service.ImportRequest) (*service.ImportResult, error) {
	if req.FileKey == "" {
		return nil, errors.New("boom")
	}
	return &service.ImportResult{Note: &model.Note{ID: "n2", UserID: userID}, Chunks: 2, Indexed: true}, nil
}

type testEnv struct {
	router  http.Handler
	notes   *fakeNotes
	study   *fakeStudy
	imports *fakeImports
	token   string
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{notes: &fakeNotes{}, study: &fakeStudy{}, imports: &fakeImports{}}
	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(fakeAuth{}),
		Notes:     handler.NewNoteHandler(env.notes),
		Study:     handler.NewStudyHandler(env.study),
		Import:    handler.NewImportHandler(env.imports, 1024),
		JWTSecret: testSecret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	env.router = engine
	env.token, err = jwt.GenerateToken("u1", "s@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	return env
}

type apiResult struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, authed bool) apiResult {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) apiResult {
	t.Helper()
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}
