package services

import (
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/codec"
	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/libs/server"
	"github.com/stardustagi/ScriptPilot/llm/clients"
	"github.com/stardustagi/ScriptPilot/llm/prompts"
	"github.com/stardustagi/ScriptPilot/protocol"
	"github.com/stardustagi/ScriptPilot/utils"
)

const healthRetries = 3

// complete POST /api/writer
func (s *WriterService) complete(c echo.Context, req protocol.TaskRequest, resp protocol.CompletionResponse) error {
	if !s.gemini.Configured() {
		return errors.Configuration(msgNotConfigured)
	}
	task := prompts.ParseTask(req.Task)
	s.logger.Debug("writer task",
		logs.String("task", task.String()),
		logs.String("client", server.NewContext(c).ClientId),
		logs.Int("selection", len(req.Selection)))

	msg, err := s.gemini.Complete(c.Request().Context(), task, req.Selection)
	if err != nil {
		return err
	}
	resp.Message = msg
	return c.JSON(http.StatusOK, resp)
}

// stream POST /api/writer2. Deltas are written and flushed one by one. An
// upstream failure before the first byte is a JSON error; after it the
// response just ends.
func (s *WriterService) stream(c echo.Context, req protocol.StreamRequest, _ struct{}) error {
	if !s.gemini.Configured() {
		return errors.Configuration(msgNotConfigured)
	}
	ctx := c.Request().Context()
	sc := server.NewContext(c)
	id := s.ids.Generate()
	logger := s.logger.With(
		logs.String("streamId", id.String()),
		logs.String("client", sc.ClientId),
		logs.String("requestId", sc.RequestId))

	rd, err := s.gemini.Stream(ctx, clients.StreamParams{
		Conversation: req.Conversation,
		ModelID:      req.ModelID,
		Temperature:  *req.Temperature,
		MaxTokens:    *req.MaxTokens,
	})
	if err != nil {
		return err
	}
	defer rd.Close()

	first, err := rd.Next()
	if err != nil && !stderrors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return errors.Cancelled(err)
		}
		return errors.Upstream(err, err.Error())
	}

	cd := codec.ForAccept(c.Request().Header.Get(echo.HeaderAccept))
	res := c.Response()
	h := res.Header()
	h.Set(echo.HeaderContentType, cd.ContentType())
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Stream-ID", id.String())
	res.WriteHeader(http.StatusOK)

	start := time.Now()
	deltas, total := 0, 0
	write := func(delta string) error {
		b, err := cd.Encode(delta)
		if err != nil {
			return err
		}
		if _, err := res.Write(b); err != nil {
			return err
		}
		res.Flush()
		deltas++
		total += len(delta)
		return nil
	}

	if err == nil {
		for {
			if werr := write(first); werr != nil {
				logger.Info("client went away", logs.ErrorInfo(werr), logs.Int("deltas", deltas))
				return nil
			}
			first, err = rd.Next()
			if err != nil {
				break
			}
		}
	}

	switch {
	case stderrors.Is(err, io.EOF):
		if tail := cd.Close(); len(tail) > 0 {
			_, _ = res.Write(tail)
			res.Flush()
		}
		logger.Info("stream completed",
			logs.Int("deltas", deltas),
			logs.Int("bytes", total),
			logs.Duration("elapsed", time.Since(start)))
	case ctx.Err() != nil:
		logger.Info("stream cancelled by client", logs.Int("deltas", deltas))
	default:
		logger.Warn("stream aborted", logs.ErrorInfo(err), logs.Int("deltas", deltas))
	}
	return nil
}

// models GET /api/models
func (s *WriterService) models(c echo.Context, _ struct{}, resp []string) error {
	if !s.gemini.Configured() {
		return errors.Configuration(msgNotConfigured).WithDetail("models", clients.FallbackModels)
	}
	resp = s.gemini.ListModels(c.Request().Context())
	return c.JSON(http.StatusOK, resp)
}

// debug GET /api/debug 检查后端连通性
func (s *WriterService) debug(c echo.Context, _ struct{}, resp protocol.DebugReport) error {
	resp.BackendURL = s.cfg.Backend.URL
	ctx := c.Request().Context()
	r, err := utils.PerformHTTPRequest(func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Backend.URL+"/healthz", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return req, nil
	}, healthRetries)
	if err == nil {
		defer r.Body.Close()
		var data []byte
		if data, err = io.ReadAll(r.Body); err == nil {
			if resp.BackendResponse, err = utils.Bytes2Struct[any](data); err == nil {
				resp.Success = true
				resp.BackendStatus = r.StatusCode
				resp.Message = "Backend connection successful!"
				return c.JSON(http.StatusOK, resp)
			}
		}
	}
	s.logger.Warn("backend health check failed", logs.String("backendUrl", resp.BackendURL), logs.ErrorInfo(err))
	resp.Error = err.Error()
	resp.Message = "Failed to connect to backend"
	return c.JSON(http.StatusInternalServerError, resp)
}
