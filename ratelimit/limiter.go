// Package ratelimit implements the per-client fixed-window request counter that
// gates every generation request.
//
// The window is fixed, not sliding: a client can get up to 2×max requests
// through around a window boundary (max at the end of one window, max at the
// start of the next).
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/stardustagi/ScriptPilot/libs/logs"
	"go.uber.org/zap"
)

// Result 一次检查的结果
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, rounded up.
func (r Result) RetryAfter(now time.Time) int {
	secs := math.Ceil(r.ResetAt.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}

type Limiter struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

type LimiterOption func(*Limiter)

// WithClock 替换时间来源, 测试用
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(logger *zap.Logger) LimiterOption {
	return func(l *Limiter) { l.logger = logger }
}

func NewLimiter(store Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logs.GetLogger("ratelimit")
	}
	return l
}

func (l *Limiter) Now() time.Time {
	return l.now()
}

// Check counts one request for clientID and decides whether it may proceed.
func (l *Limiter) Check(ctx context.Context, clientID string, window time.Duration, maxRequests int) (Result, error) {
	e, err := l.store.Hit(ctx, clientID, l.now(), window)
	if err != nil {
		return Result{}, err
	}
	if e.Count > maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.ResetAt}, nil
	}
	return Result{Allowed: true, Remaining: maxRequests - e.Count, ResetAt: e.ResetAt}, nil
}

// StartSweeper 周期性清理过期条目, ctx 取消后退出
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep(ctx)
			}
		}
	}()
}

func (l *Limiter) Sweep(ctx context.Context) int {
	removed, err := l.store.Sweep(ctx, l.now())
	if err != nil {
		l.logger.Warn("rate limit sweep failed", logs.ErrorInfo(err))
		return 0
	}
	if removed > 0 {
		l.logger.Debug("rate limit entries swept", logs.Int("removed", removed))
	}
	return removed
}
