package clients

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrIdleTimeout 上游在超时时间内没有任何数据
var ErrIdleTimeout = errors.New("upstream stream idle timeout")

// idleReader cancels the upstream request when no bytes arrive for d.
type idleReader struct {
	body     io.ReadCloser
	d        time.Duration
	cancel   context.CancelFunc
	timer    *time.Timer
	timedOut atomic.Bool
	once     sync.Once
}

func newIdleReader(body io.ReadCloser, d time.Duration, cancel context.CancelFunc) *idleReader {
	r := &idleReader{body: body, d: d, cancel: cancel}
	if d > 0 {
		r.timer = time.AfterFunc(d, func() {
			r.timedOut.Store(true)
			cancel()
		})
	}
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if r.timer != nil && n > 0 {
		r.timer.Reset(r.d)
	}
	if err != nil && r.timedOut.Load() {
		return n, ErrIdleTimeout
	}
	return n, err
}

func (r *idleReader) Close() error {
	var err error
	r.once.Do(func() {
		if r.timer != nil {
			r.timer.Stop()
		}
		err = r.body.Close()
		r.cancel()
	})
	return err
}
