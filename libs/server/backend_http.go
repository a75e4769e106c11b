package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"go.uber.org/zap"
)

type Backend struct {
	config     HttpServerConfig
	Logger     *zap.Logger
	httpServer *HttpServer
}

func NewBackend(config HttpServerConfig) (*Backend, error) {
	httpServer, err := NewHttpServer(config)
	if err != nil {
		return nil, err
	}
	return &Backend{
		config:     config,
		Logger:     logs.GetLogger("http_backend"),
		httpServer: httpServer,
	}, nil
}

func (m *Backend) Engine() *echo.Echo {
	return m.httpServer.Engine()
}

func (m *Backend) AddGroup(name, prefix string, middleware ...echo.MiddlewareFunc) {
	m.httpServer.AddGroup(name, prefix, middleware...)
}

func (m *Backend) AddPostHandler(group string, h IHandler) {
	m.httpServer.Post(h.GetName(), group, h)
}

func (m *Backend) AddGetHandler(group string, h IHandler) {
	m.httpServer.Get(h.GetName(), group, h)
}

func (m *Backend) AddHandler(method, path string, h IHandler) {
	m.httpServer.Handle(method, path, h)
}

func (m *Backend) AddNativeHandler(method string, path string, handler echo.HandlerFunc) {
	m.httpServer.AddNativeHandler(method, path, handler)
}

func (m *Backend) Start(ctx context.Context) error {
	return m.httpServer.Startup(ctx)
}

func (m *Backend) Stop() {
	m.httpServer.Stop()
}
