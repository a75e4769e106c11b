package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stardustagi/ScriptPilot/libs/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func stores(t *testing.T) map[string]Store {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(redis.NewRedisView(client, "test", zaptest.NewLogger(t))),
	}
}

func TestLimiter_DeniesAfterMax(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newClock()
			l := NewLimiter(store, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
			ctx := context.Background()

			for i := 1; i <= 3; i++ {
				res, err := l.Check(ctx, "1.2.3.4", time.Minute, 3)
				require.NoError(t, err)
				assert.True(t, res.Allowed, "request %d", i)
				assert.Equal(t, 3-i, res.Remaining)
				assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())
			}

			res, err := l.Check(ctx, "1.2.3.4", time.Minute, 3)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
			assert.Equal(t, 60, res.RetryAfter(clock.Now()))

			// other clients have their own bucket
			res, err = l.Check(ctx, "5.6.7.8", time.Minute, 3)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		})
	}
}

func TestLimiter_FreshWindowAfterReset(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := newClock()
			l := NewLimiter(store, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
			ctx := context.Background()

			_, _ = l.Check(ctx, "c", time.Minute, 1)
			res, _ := l.Check(ctx, "c", time.Minute, 1)
			require.False(t, res.Allowed)

			// ResetAt itself is still inside the window
			clock.Advance(time.Minute)
			res, _ = l.Check(ctx, "c", time.Minute, 1)
			assert.False(t, res.Allowed)

			clock.Advance(time.Millisecond)
			res, err := l.Check(ctx, "c", time.Minute, 1)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 0, res.Remaining)
			assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())

			e, ok, err := store.Get(ctx, "c")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1, e.Count)
		})
	}
}

func TestLimiter_BoundaryBurst(t *testing.T) {
	clock := newClock()
	l := NewLimiter(NewMemoryStore(), WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	allowed := 0
	_, _ = l.Check(ctx, "c", time.Minute, 5)
	allowed++
	clock.Advance(time.Minute - time.Millisecond)
	for i := 0; i < 4; i++ {
		if res, _ := l.Check(ctx, "c", time.Minute, 5); res.Allowed {
			allowed++
		}
	}
	clock.Advance(2 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if res, _ := l.Check(ctx, "c", time.Minute, 5); res.Allowed {
			allowed++
		}
	}
	// fixed window: 2×max inside ~1ms around the boundary
	assert.Equal(t, 10, allowed)
}

func TestLimiter_ConcurrentHits(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "shared", time.Minute, 20)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, allowed)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	l := NewLimiter(store, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	_, _ = l.Check(ctx, "old", time.Second, 5)
	clock.Advance(2 * time.Second)
	_, _ = l.Check(ctx, "new", time.Minute, 5)

	assert.Equal(t, 1, l.Sweep(ctx))
	assert.Equal(t, 1, store.Len())
	_, ok, _ := store.Get(ctx, "old")
	assert.False(t, ok)
}

func TestSweeperStopsWithContext(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "stale", Entry{Count: 1, ResetAt: clock.Now().Add(-time.Second)}))
	l := NewLimiter(store, WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.StartSweeper(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMiddleware(t *testing.T) {
	clock := newClock()
	l := NewLimiter(NewMemoryStore(), WithClock(clock.Now), WithLogger(zaptest.NewLogger(t)))
	e := echo.New()
	e.POST("/api/writer", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Middleware(l, Policy{Window: time.Minute, MaxRequests: 2}))

	do := func(headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/writer", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	fwd := map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}
	assert.Equal(t, http.StatusOK, do(fwd).Code)
	rec := do(map[string]string{"X-Real-IP": "9.9.9.9"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	clock.Advance(15 * time.Second)
	rec = do(fwd)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body DeniedBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 429, body.Status)
	assert.Equal(t, 45, body.RetryAfter)

	// unidentified clients share the "unknown" bucket
	assert.Equal(t, http.StatusOK, do(nil).Code)
	assert.Equal(t, http.StatusOK, do(nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(nil).Code)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(Entry), args.Bool(1), args.Error(2)
}

func (m *mockStore) Put(ctx context.Context, key string, e Entry) error {
	return m.Called(ctx, key, e).Error(0)
}

func (m *mockStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (Entry, error) {
	args := m.Called(ctx, key, now, window)
	return args.Get(0).(Entry), args.Error(1)
}

func (m *mockStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func TestMiddleware_StoreFailureLetsRequestThrough(t *testing.T) {
	store := &mockStore{}
	store.On("Hit", mock.Anything, "9.9.9.9", mock.Anything, time.Minute).
		Return(Entry{}, errors.New("connection refused")).Once()
	store.On("Sweep", mock.Anything, mock.Anything).Return(0, errors.New("connection refused")).Once()

	l := NewLimiter(store, WithLogger(zaptest.NewLogger(t)))
	e := echo.New()
	e.POST("/api/writer", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Middleware(l, Policy{Window: time.Minute, MaxRequests: 1}))

	req := httptest.NewRequest(http.MethodPost, "/api/writer", nil)
	req.Header.Set("X-Real-IP", "9.9.9.9")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	assert.Zero(t, l.Sweep(context.Background()))
	store.AssertExpectations(t)
}
