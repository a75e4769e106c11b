package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/llm/models"
	"github.com/stardustagi/ScriptPilot/llm/prompts"
	"github.com/stardustagi/ScriptPilot/llm/sse"
	"github.com/stardustagi/ScriptPilot/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{
		APIKey:          "test-key",
		BaseURL:         srv.URL + "/v1beta/",
		DefaultModel:    "gemini-2.0-flash",
		ReadIdleTimeout: 2 * time.Second,
		RequestTimeout:  5 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c := NewGeminiClient(cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sseFrame(text string) string {
	return fmt.Sprintf(`data: {"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}}]}`+"\n\n", text)
}

func TestComplete_Rewrite(t *testing.T) {
	var got models.GenerateContentRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"He entered."}],"role":"model"}}]}`)
	})

	res, err := c.Complete(context.Background(), prompts.Rewrite, "He walked in.")
	require.NoError(t, err)
	assert.Equal(t, protocol.GenerationResult{Role: "assistant", Content: "He entered."}, res)

	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "He walked in.", got.Contents[0].Parts[0].Text)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, prompts.Rewrite.SystemPrompt(), got.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 500, got.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 1.0, got.GenerationConfig.Temperature)
}

func TestComplete_EmptyTextIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[]}}]}`)
	})
	res, err := c.Complete(context.Background(), prompts.Elaborate, "x")
	require.NoError(t, err)
	assert.Equal(t, "", res.Content)
}

func TestComplete_UpstreamFailuresAreGeneric(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
		},
		"no candidates": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"candidates":[]}`)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			_, err := c.Complete(context.Background(), prompts.Rewrite, "x")
			se, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.CodeUpstream, se.Code())
			assert.Equal(t, "Invalid response from Gemini", se.Msg())
			assert.NotContains(t, se.Msg(), "API key")
		})
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	c := NewGeminiClient(Config{}, zaptest.NewLogger(t))
	_, err := c.Complete(context.Background(), prompts.Rewrite, "x")
	assert.True(t, errors.Is(err, errors.CodeConfiguration))
}

func TestStream_DeltasInOrder(t *testing.T) {
	var got models.GenerateContentRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		for _, d := range []string{"INT. ", "KITCHEN", " - NIGHT"} {
			_, _ = io.WriteString(w, sseFrame(d))
			f.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	r, err := c.Stream(context.Background(), StreamParams{
		Conversation: protocol.Conversation{
			{Role: "system", Content: "Be terse."},
			{Role: "user", Content: "Open the scene."},
		},
		ModelID:     "gemini-1.5-pro",
		Temperature: 0.3,
		MaxTokens:   120,
	})
	require.NoError(t, err)
	defer r.Close()

	text, err := sse.Collect(r)
	require.NoError(t, err)
	assert.Equal(t, "INT. KITCHEN - NIGHT", text)
	assert.Equal(t, sse.Done, r.State())

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "Be terse.", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, 120, got.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 0.3, got.GenerationConfig.Temperature)
}

func TestStream_DefaultModel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/gemini-2.0-flash:streamGenerateContent"))
	})
	r, err := c.Stream(context.Background(), StreamParams{
		Conversation: protocol.Conversation{{Role: "user", Content: "hi"}},
		Temperature:  1, MaxTokens: 10,
	})
	require.NoError(t, err)
	text, err := sse.Collect(r)
	require.NoError(t, err)
	assert.Empty(t, text)
	require.NoError(t, r.Close())
}

func TestStream_ErrorCarriesRawBody(t *testing.T) {
	const body = `{"error":{"code":400,"message":"bad model"}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	})
	_, err := c.Stream(context.Background(), StreamParams{
		Conversation: protocol.Conversation{{Role: "user", Content: "hi"}},
		Temperature:  1, MaxTokens: 10,
	})
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, body, se.Msg())
}

func TestStream_IdleTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseFrame("first"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.ReadIdleTimeout = 100 * time.Millisecond })

	r, err := c.Stream(context.Background(), StreamParams{
		Conversation: protocol.Conversation{{Role: "user", Content: "hi"}},
		Temperature:  1, MaxTokens: 10,
	})
	require.NoError(t, err)
	defer r.Close()

	d, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", d)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrIdleTimeout)
}

func TestStream_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Stream(ctx, StreamParams{
		Conversation: protocol.Conversation{{Role: "user", Content: "hi"}},
		Temperature:  1, MaxTokens: 10,
	})
	assert.True(t, errors.Is(err, errors.CodeCancelled))
}

func TestFilterModels(t *testing.T) {
	gen := []string{"generateContent", "countTokens"}
	all := []models.Model{
		{Name: "models/gemini-2.0-flash", SupportedGenerationMethods: gen},
		{Name: "models/embedding-001", SupportedGenerationMethods: []string{"embedContent"}},
		{Name: "models/gemini-1.0-pro", SupportedGenerationMethods: gen},
		{Name: "models/gemini-1.5-flash", SupportedGenerationMethods: gen},
		{Name: "models/gemini-1.5-pro", SupportedGenerationMethods: []string{"countTokens"}},
		{Name: "models/gemini-2.0-flash-lite", SupportedGenerationMethods: gen},
		{Name: "models/gemini-1.5-pro-002", SupportedGenerationMethods: gen},
		{Name: "models/gemini-2.0-pro-exp", SupportedGenerationMethods: gen},
		{Name: "models/gemini-1.5-flash-8b", SupportedGenerationMethods: gen},
	}
	assert.Equal(t, []string{
		"gemini-2.0-flash",
		"gemini-1.5-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-pro-002",
		"gemini-2.0-pro-exp",
	}, FilterModels(all))
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[
			{"name":"models/gemini-1.5-pro","supportedGenerationMethods":["generateContent"]},
			{"name":"models/text-bison","supportedGenerationMethods":["generateText"]}]}`)
	})
	assert.Equal(t, []string{"gemini-1.5-pro"}, c.ListModels(context.Background()))
}

func TestListModels_Fallback(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"empty after filter": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"models":[{"name":"models/text-bison","supportedGenerationMethods":["generateText"]}]}`)
		},
		"not json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `nope`)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			assert.Equal(t, FallbackModels, c.ListModels(context.Background()))
		})
	}
}
