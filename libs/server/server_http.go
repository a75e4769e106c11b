package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type HttpServer struct {
	addr   string
	path   string
	logger *zap.Logger
	engine *echo.Echo
	group  map[string]*StarDustGroup
}

func NewHttpServer(cfg HttpServerConfig) (*HttpServer, error) {
	if cfg.Path != "" && cfg.Path[0] != '/' {
		return nil, errors.New("the http.path must start with a /")
	}

	logger := logs.GetLogger("httpServer")
	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true
	engine.Validator = NewCustomValidator()
	engine.HTTPErrorHandler = NewHTTPErrorHandler(logger)
	engine.Server.ReadTimeout = cfg.ReadTimeout
	engine.Server.WriteTimeout = cfg.WriteTimeout
	engine.Server.IdleTimeout = cfg.IdleTimeout

	engine.Use(RequestID(), Recover())
	if cfg.BodyLimit != "" {
		engine.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if cfg.Cors {
		engine.Use(Cors())
	}
	if cfg.RequestLog {
		engine.Use(Request())
	}
	if cfg.Access {
		engine.Use(Access())
	}

	srv := &HttpServer{
		logger: logger,
		engine: engine,
		group:  make(map[string]*StarDustGroup),
		addr:   fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		path:   cfg.Path,
	}
	return srv, nil
}

func (m *HttpServer) Engine() *echo.Echo {
	return m.engine
}

func (m *HttpServer) Addr() string {
	return m.addr
}

func (m *HttpServer) Use(middleware ...echo.MiddlewareFunc) *HttpServer {
	m.engine.Use(middleware...)
	return m
}

// Startup serves until ctx is done or the listener fails. A shutdown
// triggered by ctx returns nil.
func (m *HttpServer) Startup(ctx context.Context) error {
	m.logger.Info("http server listened on:", zap.String("addr", m.addr))
	// 打印路由
	for _, route := range m.engine.Routes() {
		m.logger.Info("http route registered:", logs.String("method", route.Method), logs.String("path", route.Path))
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.engine.Start(m.addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		m.Stop()
		<-errCh
		return nil
	}
}

func (m *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.engine.Shutdown(ctx); err != nil {
		m.logger.Error("shutdown http server:", zap.Error(err))
		_ = m.engine.Close()
		return
	}
	m.logger.Info("http server stopped")
}

// Handle registers a new route under {path}/api.
func (m *HttpServer) Handle(method string, path string, handler IHandler) {
	path, _ = url.JoinPath("/", m.path, "api", path)
	m.engine.Add(method, path, handler.GetFunc())
}

func (m *HttpServer) AddNativeHandler(method string, path string, handler echo.HandlerFunc) {
	path, _ = url.JoinPath("/", m.path, path)
	m.engine.Add(method, path, handler)
}

// AddGroup registers a route group named name mounted at {path}/api/{prefix}.
func (m *HttpServer) AddGroup(name, prefix string, middleware ...echo.MiddlewareFunc) {
	urlPath, _ := url.JoinPath("/", m.path, "api", prefix)
	m.group[name] = NewStarDustGroup(urlPath, m.engine.Group(urlPath, middleware...))
	m.logger.Info("http group registered:", logs.String("name", name), logs.String("path", urlPath))
}

func (m *HttpServer) Get(path string, group string, handler IHandler) {
	m.add(http.MethodGet, path, group, handler)
}

func (m *HttpServer) Post(path string, group string, handler IHandler) {
	m.add(http.MethodPost, path, group, handler)
}

func (m *HttpServer) add(method, path, group string, handler IHandler) {
	if group == "" {
		m.Handle(method, path, handler)
		return
	}
	g, exists := m.group[group]
	if !exists {
		m.logger.Error("group not found", logs.String("group", group))
		return
	}
	g.Group.Add(method, "/"+path, handler.GetFunc())
	m.logger.Info("http handler registered to group:", logs.String("path", path), logs.String("prefix", g.Prefix))
}
