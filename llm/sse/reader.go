package sse

import (
	"errors"
	"io"
)

const readSize = 4096

// Reader yields text deltas from an SSE byte stream one at a time.
type Reader struct {
	src     io.Reader
	parser  *Parser
	buf     []byte
	pending []string
	err     error
	closed  bool
}

func NewReader(src io.Reader, onSkip SkipFunc) *Reader {
	return &Reader{
		src:    src,
		parser: NewParser(onSkip),
		buf:    make([]byte, readSize),
	}
}

// Next returns the next delta. It returns io.EOF after the sentinel or when
// the source is exhausted; a partial line left at that point is dropped.
// Any other error comes from reading the source.
func (r *Reader) Next() (string, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return "", r.err
		}
		if r.parser.State() == Done {
			r.err = io.EOF
			continue
		}
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.parser.Feed(r.buf[:n])...)
		}
		if err != nil {
			r.err = err
		}
	}
	delta := r.pending[0]
	r.pending = r.pending[1:]
	return delta, nil
}

// State 当前解析状态
func (r *Reader) State() State {
	return r.parser.State()
}

// Close closes the source when it is an io.Closer. Safe to call twice.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Collect drains r into one string.
func Collect(r *Reader) (string, error) {
	var out []byte
	for {
		delta, err := r.Next()
		if errors.Is(err, io.EOF) {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		out = append(out, delta...)
	}
}
