package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type StudyHandler struct {
	study StudyAPI
}

func NewStudyHandler(study StudyAPI) *StudyHandler {
	return &StudyHandler{study: study}
}

func (h *StudyHandler) Reindex(c *gin.Context) {
	count, err := h.study.Reindex(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"chunks": count})
}

func (h *StudyHandler) Ask(c *gin.Context) {
	var req service.AskRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.study.Ask(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *StudyHandler) Search(c *gin.Context) {
	var req service.SearchRequest
	if !bindJSON(c, &req) {
		return
	}
	chunks, err := h.study.Search(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": chunks})
}

type flashcardRequest struct {
	MaxTerms int `json:"max_terms"`
}

func (h *StudyHandler) GenerateFlashcards(c *gin.Context) {
	var req flashcardRequest
	// body is optional
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	result, err := h.study.GenerateFlashcards(c.Request.Context(), getUserID(c), c.Param("id"), req.MaxTerms)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *StudyHandler) ListFlashcards(c *gin.Context) {
	cards, err := h.study.ListFlashcards(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": cards})
}
