package codec

import (
	"strings"

	"github.com/stardustagi/ScriptPilot/utils"
)

// ICodec frames text deltas for the downstream response.
type ICodec interface {
	ContentType() string
	// Encode 编码一个增量
	Encode(delta string) ([]byte, error)
	// Close 流正常结束时追加的字节, 可以为空
	Close() []byte
}

// TextCodec 原样输出文本
type TextCodec struct{}

func NewTextCodec() ICodec {
	return &TextCodec{}
}

func (c *TextCodec) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (c *TextCodec) Encode(delta string) ([]byte, error) {
	return []byte(delta), nil
}

func (c *TextCodec) Close() []byte {
	return nil
}

// JsonCodec writes each delta as `data: {"chunk":...}` and ends the stream
// with `data: [DONE]`.
type JsonCodec struct{}

func NewJsonCodec() ICodec {
	return &JsonCodec{}
}

func (c *JsonCodec) ContentType() string {
	return "text/event-stream"
}

func (c *JsonCodec) Encode(delta string) ([]byte, error) {
	payload, err := utils.Struct2Bytes(NewMessage(delta))
	if err != nil {
		return nil, err
	}
	return []byte("data: " + payload + "\n\n"), nil
}

func (c *JsonCodec) Close() []byte {
	return []byte("data: " + DoneData + "\n\n")
}

// ForAccept picks the SSE framing when accept asks for an event stream.
func ForAccept(accept string) ICodec {
	if strings.Contains(accept, "text/event-stream") {
		return NewJsonCodec()
	}
	return NewTextCodec()
}
