package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// CodeError carries an API error code through proxyutil.FailJson.
type CodeError struct {
	code uint32
	msg  string
}

func (e *CodeError) Error() string {
	return e.msg
}

func (e *CodeError) Code() uint32 {
	return e.code
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{code: uint32(code), msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes a failure envelope with HTTP 200; clients branch on code.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, http.StatusOK, NewCodeError(code, message))
}
