package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Notes     *NoteHandler
	Study     *StudyHandler
	Import    *ImportHandler
	JWTSecret []byte
	// RateLimit is the per-user window on routes that call the LLM or
	// embedding provider. Zero disables it.
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/folders", deps.Notes.CreateFolder)
	authGroup.GET("/folders", deps.Notes.ListFolders)
	authGroup.POST("/notes", deps.Notes.Create)
	authGroup.GET("/notes", deps.Notes.List)
	authGroup.GET("/notes/:id", deps.Notes.Get)
	authGroup.PUT("/notes/:id", deps.Notes.Update)
	authGroup.GET("/notes/:id/flashcards", deps.Study.ListFlashcards)
	authGroup.POST("/files", deps.Import.Upload)

	aiGroup := authGroup.Group("")
	aiGroup.Use(middleware.RateLimit(deps.RateLimit))
	aiGroup.POST("/notes/:id/reindex", deps.Study.Reindex)
	aiGroup.POST("/notes/:id/flashcards", deps.Study.GenerateFlashcards)
	aiGroup.POST("/qa/ask", deps.Study.Ask)
	aiGroup.POST("/search", deps.Study.Search)
	aiGroup.POST("/imports", deps.Import.Import)
}
