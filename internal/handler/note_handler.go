package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type NoteHandler struct {
	notes NoteAPI
}

func NewNoteHandler(notes NoteAPI) *NoteHandler {
	return &NoteHandler{notes: notes}
}

type folderRequest struct {
	Name string `json:"name"`
}

func (h *NoteHandler) CreateFolder(c *gin.Context) {
	var req folderRequest
	if !bindJSON(c, &req) {
		return
	}
	folder, err := h.notes.CreateFolder(c.Request.Context(), getUserID(c), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, folder)
}

func (h *NoteHandler) ListFolders(c *gin.Context) {
	folders, err := h.notes.ListFolders(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": folders})
}

func (h *NoteHandler) Create(c *gin.Context) {
	var req service.NoteInput
	if !bindJSON(c, &req) {
		return
	}
	note, err := h.notes.CreateNote(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Update(c *gin.Context) {
	var req service.NoteInput
	if !bindJSON(c, &req) {
		return
	}
	note, err := h.notes.UpdateNote(c.Request.Context(), getUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.GetNote(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) List(c *gin.Context) {
	notes, err := h.notes.ListNotes(c.Request.Context(), getUserID(c), c.Query("folder_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": notes})
}
