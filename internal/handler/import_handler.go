package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studynote/internal/pkg/errcode"
	"github.com/xxxsen/studynote/internal/pkg/response"
	"github.com/xxxsen/studynote/internal/service"
)

type ImportHandler struct {
	imports       ImportAPI
	maxUploadSize int64
}

func NewImportHandler(imports ImportAPI, maxUploadSize int64) *ImportHandler {
	return &ImportHandler{imports: imports, maxUploadSize: maxUploadSize}
}

func (h *ImportHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large (max "+formatSize(h.maxUploadSize)+")")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	key, err := h.imports.Upload(c.Request.Context(), getUserID(c), file.Filename, opened, file.Size)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"file_key": key, "name": file.Filename})
}

func (h *ImportHandler) Import(c *gin.Context) {
	var req service.ImportRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.imports.Import(c.Request.Context(), getUserID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
