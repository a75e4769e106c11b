package codec

import (
	"encoding/json"
	"strings"
)

// DoneData 流结束帧的数据
const DoneData = "[DONE]"

// Message is the JSON payload of one SSE frame on the downstream wire.
// Writers only set Chunk; Text is accepted from older producers.
type Message struct {
	Chunk *string `json:"chunk,omitempty"`
	Text  *string `json:"text,omitempty"`
}

func NewMessage(delta string) *Message {
	return &Message{Chunk: &delta}
}

// GetPayload 优先 chunk, 其次 text
func (m *Message) GetPayload() (string, bool) {
	switch {
	case m.Chunk != nil:
		return *m.Chunk, true
	case m.Text != nil:
		return *m.Text, true
	}
	return "", false
}

// DecodeLine extracts the delta carried by one SSE line. Blank lines,
// comments, non-data fields and the done frame yield ok=false. A data value
// that is not JSON is returned as is.
func DecodeLine(line string) (delta string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data:") {
		return "", false
	}
	data := strings.TrimSpace(line[len("data:"):])
	if data == DoneData {
		return "", false
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil || data == "null" {
		return data, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		// 合法 JSON 但不是对象, 例如数字或数组
		return "", false
	}
	return msg.GetPayload()
}
