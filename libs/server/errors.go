package server

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/protocol"
	"github.com/stardustagi/ScriptPilot/validation"
	"go.uber.org/zap"
)

// toStackError 把 handler 返回的任意错误归一为 StackError
func toStackError(err error) *errors.StackError {
	if se, ok := errors.As(err); ok {
		return se
	}
	var verr *validation.Errors
	if stderrors.As(err, &verr) {
		return errors.Validation(verr.Fields)
	}
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return errors.Wrap(err, he.Code, he.Code, msg)
	}
	return errors.Wrap(err, http.StatusInternalServerError, http.StatusInternalServerError, "Internal server error")
}

// NewHTTPErrorHandler renders every handler error as {status, message, ...}.
// Cancelled requests and responses that already started are only logged.
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		se := toStackError(err)
		fields := []zap.Field{
			logs.String("method", c.Request().Method),
			logs.String("path", c.Request().URL.Path),
			logs.Int("status", se.Status()),
			logs.ErrorInfo(err),
		}
		if id, ok := c.Get(RequestIDKey).(string); ok {
			fields = append(fields, logs.String("requestId", id))
		}
		switch {
		case se.Code() == errors.CodeCancelled:
			logger.Info("request cancelled by client", fields...)
			return
		case c.Response().Committed:
			logger.Warn("error after response started", fields...)
			return
		case se.Status() >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		default:
			logger.Debug("request rejected", fields...)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(se.Status())
		} else {
			err = protocol.Response(c, se, nil)
		}
		if err != nil {
			logger.Error("write error response", logs.ErrorInfo(err))
		}
	}
}
