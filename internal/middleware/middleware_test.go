package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studynote/internal/pkg/errcode"
	"github.com/xxxsen/studynote/internal/pkg/jwt"
)

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetString(ContextUserIDKey),
			"request_id": c.GetString(ContextRequestIDKey),
		})
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("secret")
	r := newTestEngine(JWTAuth(secret))

	token, err := jwt.GenerateToken("u1", "a@b.c", secret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "u1", body["user_id"])

	other, err := jwt.GenerateToken("u1", "", []byte("other"), time.Hour)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken("u1", "", secret, -time.Minute)
	require.NoError(t, err)
	for _, header := range []string{"", "Token " + token, "Bearer " + other, "Bearer " + expired} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		code, _ := body["code"].(float64)
		require.Equal(t, float64(errcode.ErrUnauthorized), code, header)
	}
}

func TestRequestID(t *testing.T) {
	r := newTestEngine(RequestID())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Request-Id", "abc")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, "abc", resp.Header().Get("X-Request-Id"))

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Len(t, resp.Header().Get("X-Request-Id"), 36)
}

func TestCORS(t *testing.T) {
	r := newTestEngine(CORS([]string{"https://study.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
	req.Header.Set("Origin", "https://study.example")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "https://study.example", resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))

	resp = httptest.NewRecorder()
	newTestEngine(CORS(nil)).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
