package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/llm/models"
	"github.com/stardustagi/ScriptPilot/llm/prompts"
	"github.com/stardustagi/ScriptPilot/llm/sse"
	"github.com/stardustagi/ScriptPilot/llm/translator"
	"github.com/stardustagi/ScriptPilot/protocol"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	// 任务补全的固定生成参数
	completionMaxTokens   = 500
	completionTemperature = 1.0

	maxModels      = 5
	maxErrorBody   = 64 << 10
	invalidMessage = "Invalid response from Gemini"
)

// FallbackModels 模型列表不可用时返回
var FallbackModels = []string{"gemini-2.0-flash", "gemini-1.5-flash"}

var supportedFamilies = []string{"gemini-2.0", "gemini-1.5"}

type Config struct {
	APIKey          string
	BaseURL         string
	DefaultModel    string
	ReadIdleTimeout time.Duration
	RequestTimeout  time.Duration
}

// StreamParams 流式生成参数
type StreamParams struct {
	Conversation protocol.Conversation
	ModelID      string
	Temperature  float64
	MaxTokens    int
}

type GeminiClient struct {
	cfg    Config
	rc     *resty.Client
	logger *zap.Logger
}

func NewGeminiClient(cfg Config, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = logs.GetLogger("gemini")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = FallbackModels[0]
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	rc := resty.New().
		SetHeader("Content-Type", "application/json")
	return &GeminiClient{cfg: cfg, rc: rc, logger: logger}
}

// Configured 是否有上游密钥
func (c *GeminiClient) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *GeminiClient) Close() error {
	return c.rc.Close()
}

func (c *GeminiClient) modelURL(model, method string) string {
	model = strings.TrimPrefix(model, "models/")
	return c.cfg.BaseURL + "/models/" + model + ":" + method
}

func (c *GeminiClient) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Complete runs one task prompt over selection and returns the first
// candidate's text. The caller only ever sees a generic upstream error.
func (c *GeminiClient) Complete(ctx context.Context, task prompts.Task, selection string) (protocol.GenerationResult, error) {
	if !c.Configured() {
		return protocol.GenerationResult{}, errors.Configuration("GEMINI_API_KEY not configured")
	}
	payload := &models.GenerateContentRequest{
		Contents: []models.Content{{
			Role:  models.RoleUser,
			Parts: []models.Part{{Text: selection}},
		}},
		SystemInstruction: &models.Content{Parts: []models.Part{{Text: task.SystemPrompt()}}},
		GenerationConfig: &models.GenerationConfig{
			MaxOutputTokens: completionMaxTokens,
			Temperature:     completionTemperature,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return protocol.GenerationResult{}, errors.Upstream(err, invalidMessage)
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		Post(c.modelURL(c.cfg.DefaultModel, "generateContent"))
	if err != nil {
		c.logger.Error("gemini request failed", logs.String("task", task.String()), logs.ErrorInfo(err))
		return protocol.GenerationResult{}, errors.Upstream(err, invalidMessage)
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Error("gemini returned an error",
			logs.Int("status", resp.StatusCode()),
			logs.String("body", truncate(resp.String())))
		return protocol.GenerationResult{}, errors.Upstream(nil, invalidMessage)
	}

	var out models.GenerateContentResponse
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		c.logger.Error("gemini response is not JSON", logs.ErrorInfo(err))
		return protocol.GenerationResult{}, errors.Upstream(err, invalidMessage)
	}
	if len(out.Candidates) == 0 {
		c.logger.Error("unexpected gemini response", logs.String("body", truncate(resp.String())))
		return protocol.GenerationResult{}, errors.Upstream(nil, invalidMessage)
	}
	return protocol.GenerationResult{Role: protocol.RoleAssistant, Content: out.FirstText()}, nil
}

// Stream opens a streaming generation and returns the delta iterator. A
// non-200 answer fails before any delta with the raw upstream body as the
// message. Cancelling ctx aborts the upstream request; so does a read
// inactivity longer than ReadIdleTimeout. The caller must Close the reader.
func (c *GeminiClient) Stream(ctx context.Context, p StreamParams) (*sse.Reader, error) {
	if !c.Configured() {
		return nil, errors.Configuration("GEMINI_API_KEY required")
	}
	model := p.ModelID
	if model == "" {
		model = c.cfg.DefaultModel
	}
	body, err := json.Marshal(translator.Request(p.Conversation, p.Temperature, p.MaxTokens))
	if err != nil {
		return nil, errors.Upstream(err, err.Error())
	}

	reqCtx, cancel := context.WithCancel(ctx)
	resp, err := c.rc.R().
		SetContext(reqCtx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetQueryParams(map[string]string{"alt": "sse", "key": c.cfg.APIKey}).
		SetBody(body).
		Post(c.modelURL(model, "streamGenerateContent"))
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, errors.Cancelled(err)
		}
		return nil, errors.Upstream(err, err.Error())
	}
	if resp.StatusCode() != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		c.logger.Warn("gemini stream rejected", logs.Int("status", resp.StatusCode()), logs.String("model", model))
		return nil, errors.Upstream(nil, string(raw))
	}

	src := newIdleReader(resp.Body, c.cfg.ReadIdleTimeout, cancel)
	return sse.NewReader(src, func(line []byte, err error) {
		c.logger.Debug("skipping unparsable stream chunk", logs.String("data", truncate(string(line))), logs.ErrorInfo(err))
	}), nil
}

// ListModels returns up to five supported model ids, or FallbackModels when
// the catalog cannot be fetched or nothing matches.
func (c *GeminiClient) ListModels(ctx context.Context) []string {
	if !c.Configured() {
		return fallback()
	}
	ctx, cancel := c.requestContext(ctx)
	defer cancel()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		Get(c.cfg.BaseURL + "/models")
	if err != nil {
		c.logger.Error("gemini model list failed", logs.ErrorInfo(err))
		return fallback()
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Error("gemini model list rejected", logs.Int("status", resp.StatusCode()), logs.String("body", truncate(resp.String())))
		return fallback()
	}
	var list models.ListModelsResponse
	if err := json.Unmarshal(resp.Bytes(), &list); err != nil {
		c.logger.Error("gemini model list is not JSON", logs.ErrorInfo(err))
		return fallback()
	}
	ids := FilterModels(list.Models)
	if len(ids) == 0 {
		return fallback()
	}
	return ids
}

// FilterModels keeps generateContent-capable models of the supported
// families, strips the "models/" namespace and caps the list.
func FilterModels(all []models.Model) []string {
	ids := make([]string, 0, maxModels)
	for _, m := range all {
		if len(ids) == maxModels {
			break
		}
		if !supportsGenerate(m) || !supportedFamily(m.Name) {
			continue
		}
		ids = append(ids, strings.Replace(m.Name, "models/", "", 1))
	}
	return ids
}

func supportsGenerate(m models.Model) bool {
	for _, method := range m.SupportedGenerationMethods {
		if method == "generateContent" {
			return true
		}
	}
	return false
}

func supportedFamily(name string) bool {
	for _, f := range supportedFamilies {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

func fallback() []string {
	return append([]string(nil), FallbackModels...)
}

func truncate(s string) string {
	const limit = 2048
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
