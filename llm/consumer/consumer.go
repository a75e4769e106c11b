// Package consumer reads a /api/writer2 response the way the editor does:
// SSE frames when the server sends an event stream, raw text otherwise.
package consumer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/stardustagi/ScriptPilot/codec"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrCancelled is returned together with the text received before the
// context was cancelled.
var ErrCancelled = errors.New("Request cancelled")

// HTTPError 非 2xx 响应
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

type Option func(*Consumer)

// WithEventStream asks the server for SSE framing.
func WithEventStream() Option {
	return func(c *Consumer) {
		c.accept = "text/event-stream"
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) {
		c.logger = l
	}
}

type Consumer struct {
	rc     *resty.Client
	accept string
	logger *zap.Logger
}

func New(opts ...Option) *Consumer {
	c := &Consumer{rc: resty.New(), logger: logs.GetLogger("consumer")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) Close() error {
	return c.rc.Close()
}

// Consume posts body as JSON to url and hands every received chunk to
// onChunk in order. It returns all chunks concatenated.
func (c *Consumer) Consume(ctx context.Context, url string, body any, onChunk func(string)) (string, error) {
	req := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if c.accept != "" {
		req.SetHeader("Accept", c.accept)
	}
	resp, err := req.Post(url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return "", &HTTPError{Status: resp.StatusCode()}
	}

	var sb strings.Builder
	emit := func(chunk string) {
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	var dec decoder = &rawDecoder{}
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "text/event-stream") {
		dec = &eventDecoder{}
	}
	c.logger.Debug("consuming stream", logs.String("url", url), logs.String("contentType", resp.Header().Get("Content-Type")))

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			dec.feed(buf[:n], emit)
		}
		if rerr == nil {
			continue
		}
		if ctx.Err() != nil {
			return sb.String(), ErrCancelled
		}
		if errors.Is(rerr, io.EOF) {
			dec.flush(emit)
			return sb.String(), nil
		}
		return sb.String(), rerr
	}
}

type decoder interface {
	feed(p []byte, emit func(string))
	flush(emit func(string))
}

// eventDecoder buffers across reads and decodes complete SSE lines.
type eventDecoder struct {
	buf []byte
}

func (d *eventDecoder) feed(p []byte, emit func(string)) {
	d.buf = append(d.buf, p...)
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		if delta, ok := codec.DecodeLine(line); ok {
			emit(delta)
		}
	}
	d.buf = append([]byte(nil), d.buf...)
}

// flush 处理最后一行没有换行符的数据
func (d *eventDecoder) flush(emit func(string)) {
	if delta, ok := codec.DecodeLine(string(d.buf)); ok {
		emit(delta)
	}
	d.buf = nil
}

// rawDecoder emits each read as text, holding back a rune split across reads.
type rawDecoder struct {
	pending []byte
}

func (d *rawDecoder) feed(p []byte, emit func(string)) {
	d.pending = append(d.pending, p...)
	cut := completePrefix(d.pending)
	if cut == 0 {
		return
	}
	emit(strings.ToValidUTF8(string(d.pending[:cut]), "\uFFFD"))
	d.pending = append([]byte(nil), d.pending[cut:]...)
}

func (d *rawDecoder) flush(emit func(string)) {
	if len(d.pending) > 0 {
		emit(strings.ToValidUTF8(string(d.pending), "\uFFFD"))
		d.pending = nil
	}
}

// completePrefix returns the length of p without a trailing incomplete rune.
func completePrefix(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return len(p)
		}
		return i
	}
	return len(p)
}

// IsCancelled 是否因取消而结束
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// StatusOf returns the HTTP status of err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
