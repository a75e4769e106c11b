package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/utils"
)

// Policy 一组路由共享的限流参数
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// DeniedBody 429 响应体
type DeniedBody struct {
	Status     int    `json:"status"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// Middleware 在任何上游调用之前按客户端限流
func Middleware(l *Limiter, p Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := utils.GetRemoteAddr(c.Request())
			res, err := l.Check(c.Request().Context(), clientID, p.Window, p.MaxRequests)
			if err != nil {
				// 存储故障时放行
				l.logger.Error("rate limit check failed", logs.String("client", clientID), logs.ErrorInfo(err))
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
			if res.Allowed {
				return next(c)
			}
			retryAfter := res.RetryAfter(l.Now())
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			l.logger.Info("rate limited", logs.String("client", clientID), logs.String("path", c.Path()), logs.Int("retryAfter", retryAfter))
			return c.JSON(http.StatusTooManyRequests, DeniedBody{
				Status:     http.StatusTooManyRequests,
				Message:    "Too many requests. Please try again later.",
				RetryAfter: retryAfter,
			})
		}
	}
}
