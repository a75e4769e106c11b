package protocol

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/libs/errors"
)

// ErrorBody 错误响应: {status, message} 加上错误附带的字段
func ErrorBody(err *errors.StackError) map[string]any {
	body := make(map[string]any, 2+len(err.Details))
	for k, v := range err.Details {
		body[k] = v
	}
	body["status"] = err.Status()
	body["message"] = err.Msg()
	return body
}

// Response writes data with 200, or the error body with the error's status.
func Response(c echo.Context, err *errors.StackError, data any) error {
	if err == nil {
		return c.JSON(http.StatusOK, data)
	}
	return c.JSON(err.Status(), ErrorBody(err))
}

// DebugReport /api/debug 响应
type DebugReport struct {
	Success         bool   `json:"success"`
	BackendURL      string `json:"backendUrl"`
	BackendStatus   int    `json:"backendStatus,omitempty"`
	BackendResponse any    `json:"backendResponse,omitempty"`
	Error           string `json:"error,omitempty"`
	Message         string `json:"message"`
}
