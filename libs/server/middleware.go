package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/utils"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = echo.HeaderXRequestID

func Cors() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept, HeaderRequestID},
		ExposeHeaders: []string{
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
			HeaderRequestID,
		},
	})
}

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(RequestIDKey, id)
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// Request 请求日志
func Request() echo.MiddlewareFunc {
	logger := logs.GetLogger("request")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, _ := c.Get(RequestIDKey).(string)
			logger.Info("request",
				logs.String("requestId", id),
				logs.String("method", c.Request().Method),
				logs.String("uri", c.Request().RequestURI),
				logs.String("client", utils.GetRemoteAddr(c.Request())),
				logs.Int64("contentLength", c.Request().ContentLength))
			return next(c)
		}
	}
}

// Access 访问日志, 在响应结束后记录状态和耗时
func Access() echo.MiddlewareFunc {
	logger := logs.GetLogger("access")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			id, _ := c.Get(RequestIDKey).(string)
			logger.Info("access",
				logs.String("requestId", id),
				logs.String("method", c.Request().Method),
				logs.String("path", c.Request().URL.Path),
				logs.Int("status", c.Response().Status),
				logs.Int64("bytes", c.Response().Size),
				logs.Duration("latency", time.Since(start)))
			return nil
		}
	}
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover() echo.MiddlewareFunc {
	logger := logs.GetLogger("recover")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				logger.Error("handler panic",
					logs.String("path", c.Request().URL.Path),
					logs.String("panic", fmt.Sprint(r)),
					logs.StacktraceField())
				err = fmt.Errorf("panic: %v", r)
			}()
			return next(c)
		}
	}
}
