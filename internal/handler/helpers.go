package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/pkg/errcode"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

// errorCode maps service errors to an API code and a client-safe message.
func errorCode(err error) (int, string) {
	var upstream *ai.UpstreamError
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrForbidden):
		return errcode.ErrForbidden, "forbidden"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrUnsupportedFile), errors.Is(err, appErr.ErrEmptyDocument):
		return errcode.ErrInvalidFile, err.Error()
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	case errors.Is(err, ai.ErrUnavailable), errors.Is(err, ai.ErrConfig):
		return errcode.ErrAIUnavailable, "ai not configured"
	case errors.Is(err, ai.ErrInvalidJSON), errors.Is(err, ai.ErrMissingContent):
		return errcode.ErrAIBadResponse, "ai returned an unusable response"
	case errors.As(err, &upstream):
		return errcode.ErrUpstream, "ai provider request failed"
	case errors.Is(err, context.DeadlineExceeded):
		return errcode.ErrUpstream, "ai provider timed out"
	default:
		return errcode.ErrInternal, "internal error"
	}
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg := errorCode(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.String("user_id", getUserID(c)),
		zap.Int("code", code),
		zap.Error(err),
	)
	if code == errcode.ErrInternal || code == errcode.ErrUpstream {
		logger.Error("request failed")
	} else {
		logger.Warn("request rejected")
	}
	response.Error(c, code, msg)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return false
	}
	return true
}
