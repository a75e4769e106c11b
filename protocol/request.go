package protocol

// 对话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// 默认生成参数
const (
	DefaultTask        = "elaborate"
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 500
)

// TaskRequest /api/writer 请求体
type TaskRequest struct {
	Task      string `json:"task" validate:"oneof=elaborate rewrite dialoguesuggestion dialoguetone dialogue-suggestion dialogue-tone"`
	Selection string `json:"selection" validate:"required,min=1,max=10000"`
	Before    string `json:"before,omitempty" validate:"max=5000"`
	After     string `json:"after,omitempty" validate:"max=5000"`
}

func (r *TaskRequest) ApplyDefaults() {
	if r.Task == "" {
		r.Task = DefaultTask
	}
}

// ChatMessage 对话中的一条消息
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required,min=1,max=50000"`
}

// Conversation 有序消息列表
type Conversation []ChatMessage

// StreamRequest /api/writer2 请求体. 旧客户端使用 messages 字段.
type StreamRequest struct {
	Task         string       `json:"task,omitempty"`
	Selection    string       `json:"selection,omitempty" validate:"max=10000"`
	Before       string       `json:"before,omitempty" validate:"max=5000"`
	After        string       `json:"after,omitempty" validate:"max=5000"`
	Conversation Conversation `json:"conversation" validate:"required,min=1,max=50,dive"`
	Messages     Conversation `json:"messages,omitempty" validate:"-"`
	ModelID      string       `json:"modelId,omitempty" validate:"max=200"`
	Temperature  *float64     `json:"temperature,omitempty" validate:"required,min=0,max=2"`
	MaxTokens    *int         `json:"maxTokens,omitempty" validate:"required,min=1,max=8000"`
}

func (r *StreamRequest) ApplyDefaults() {
	if r.Conversation == nil && r.Messages != nil {
		r.Conversation = r.Messages
	}
	r.Messages = nil
	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}
	if r.MaxTokens == nil {
		n := DefaultMaxTokens
		r.MaxTokens = &n
	}
}

// GenerationResult 非流式生成的统一结果
type GenerationResult struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse /api/writer 成功响应
type CompletionResponse struct {
	Message GenerationResult `json:"message"`
}
