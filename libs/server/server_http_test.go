package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/libs/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type HelloReq struct {
	Name string `json:"name" validate:"required,max=5"`
}

type HelloResp struct {
	Message string `json:"message"`
}

func newBackend(t *testing.T) *Backend {
	t.Helper()
	opts := &option.Options{
		Http: option.Http{
			Port:   8080,
			Path:   "/",
			Cors:   true,
			Access: true,
		},
	}
	bk, err := NewBackend(ConfigFromOptions(opts))
	require.NoError(t, err)

	hello := NewHandler(
		"hello",
		[]string{"greet"},
		func(ctx echo.Context, req HelloReq, resp HelloResp) error {
			resp.Message = "Hello " + req.Name
			return ctx.JSON(http.StatusOK, resp)
		},
	)
	ping := NewHandler(
		"ping",
		nil,
		func(ctx echo.Context, req struct{}, resp HelloResp) error {
			return ctx.JSON(http.StatusOK, HelloResp{Message: "pong"})
		},
	)
	boom := NewHandler(
		"boom",
		nil,
		func(ctx echo.Context, req struct{}, resp struct{}) error {
			return errors.Upstream(nil, "upstream said no")
		},
	)
	panics := NewHandler(
		"panic",
		nil,
		func(ctx echo.Context, req struct{}, resp struct{}) error {
			panic("bad state")
		},
	)
	bk.AddGroup("test", "test")
	bk.AddPostHandler("test", hello)
	bk.AddGetHandler("", ping)
	bk.AddGetHandler("", boom)
	bk.AddGetHandler("", panics)
	return bk
}

func serve(bk *Backend, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	bk.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHandler_BindsAndValidates(t *testing.T) {
	bk := newBackend(t)

	rec := serve(bk, http.MethodPost, "/api/test/hello", `{"name":"Ada"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Hello Ada"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = serve(bk, http.MethodPost, "/api/test/hello", `{"name":"Adalovelace"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(400), body["status"])
	assert.Equal(t, "Invalid input", body["message"])
	assert.Contains(t, body["errors"], "name")

	rec = serve(bk, http.MethodPost, "/api/test/hello", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetSkipsBody(t *testing.T) {
	rec := serve(newBackend(t), http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rec.Body.String())
}

func TestErrorHandler(t *testing.T) {
	bk := newBackend(t)

	rec := serve(bk, http.MethodGet, "/api/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":500,"message":"upstream said no"}`, rec.Body.String())

	rec = serve(bk, http.MethodGet, "/api/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":500,"message":"Internal server error"}`, rec.Body.String())

	rec = serve(bk, http.MethodGet, "/api/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	newBackend(t).Engine().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestCorsPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/test/hello", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	newBackend(t).Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestNewHttpServer_RejectsRelativePath(t *testing.T) {
	_, err := NewHttpServer(HttpServerConfig{Path: "api"})
	assert.Error(t, err)
}
