// Package sse parses the upstream server-sent-event stream into text deltas.
//
// Parser is the push side: it is fed raw network reads in order and returns the
// deltas completed by each read. Reader wraps a Parser around an io.Reader and
// exposes the deltas as a pull iterator.
package sse

import (
	"bytes"
	"encoding/json"

	"github.com/stardustagi/ScriptPilot/llm/models"
)

// DoneSentinel 终止帧的数据
const DoneSentinel = "[DONE]"

var dataPrefix = []byte("data:")

type State int

const (
	Accumulating State = iota
	Done
)

func (s State) String() string {
	if s == Done {
		return "DONE"
	}
	return "ACCUMULATING"
}

// SkipFunc is told about data lines that were dropped because they were not
// valid JSON.
type SkipFunc func(line []byte, err error)

type Parser struct {
	buf    []byte
	state  State
	onSkip SkipFunc
}

func NewParser(onSkip SkipFunc) *Parser {
	return &Parser{onSkip: onSkip}
}

func (p *Parser) State() State {
	return p.state
}

// Buffered 尚未形成完整行的字节数
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Feed appends chunk to the line buffer and processes every complete line.
// The trailing segment after the last newline stays buffered for the next
// call. Once the sentinel is seen the parser is Done and ignores all further
// input, including the rest of chunk.
func (p *Parser) Feed(chunk []byte) []string {
	if p.state == Done {
		return nil
	}
	p.buf = append(p.buf, chunk...)
	var deltas []string
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := p.buf[:i]
		p.buf = p.buf[i+1:]
		text, ok := p.line(line)
		if p.state == Done {
			p.buf = nil
			return deltas
		}
		if ok {
			deltas = append(deltas, text)
		}
	}
	// 复用底层数组前先搬走剩余部分, 避免无限增长
	if len(p.buf) == 0 {
		p.buf = nil
	} else {
		p.buf = append([]byte(nil), p.buf...)
	}
	return deltas
}

func (p *Parser) line(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if !bytes.HasPrefix(line, dataPrefix) {
		return "", false
	}
	data := bytes.TrimPrefix(line[len(dataPrefix):], []byte{' '})
	if string(data) == DoneSentinel {
		p.state = Done
		return "", false
	}
	var frame models.GenerateContentResponse
	if err := json.Unmarshal(data, &frame); err != nil {
		if p.onSkip != nil {
			p.onSkip(data, err)
		}
		return "", false
	}
	text := frame.FirstText()
	return text, text != ""
}
