package services

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stardustagi/ScriptPilot/libs/conf"
	"github.com/stardustagi/ScriptPilot/libs/errors"
	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/libs/redis"
	"github.com/stardustagi/ScriptPilot/libs/server"
	"github.com/stardustagi/ScriptPilot/llm/clients"
	"github.com/stardustagi/ScriptPilot/ratelimit"
	"go.uber.org/zap"
)

// 路由组
const limitedGroup = "limited"

const msgNotConfigured = "GEMINI_API_KEY not configured"

type Option func(*WriterService)

// WithLimiter 替换限流器, 测试里用来注入时钟
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *WriterService) { s.limiter = l }
}

// WithRedis 使用已有的 redis 连接作为限流存储
func WithRedis(cli redis.RedisCli) Option {
	return func(s *WriterService) { s.rds = cli }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *WriterService) { s.logger = l }
}

// WriterService serves the writing-assistant API: task completion, streaming
// generation, the model directory and the backend health check.
type WriterService struct {
	BaseService
	cfg      *conf.Config
	gemini   *clients.GeminiClient
	limiter  *ratelimit.Limiter
	policy   ratelimit.Policy
	rds      redis.RedisCli
	ids      *snowflake.Node
	handlers server.IHandlers
}

func NewWriterService(cfg *conf.Config, opts ...Option) *WriterService {
	s := &WriterService{
		cfg: cfg,
		policy: ratelimit.Policy{
			Window:      time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond,
			MaxRequests: cfg.RateLimit.MaxRequests,
		},
		handlers: server.NewHandlers(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logs.GetLogger("writer")
	}
	return s
}

// Init builds the upstream client and the rate-limit store.
func (s *WriterService) Init(ctx context.Context) error {
	s.initBase(ctx, s.logger)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return errors.Wrap(err, errors.CodeConfiguration, http.StatusInternalServerError, "snowflake node")
	}
	s.ids = node

	g := s.cfg.Gemini
	s.gemini = clients.NewGeminiClient(clients.Config{
		APIKey:          g.APIKey,
		BaseURL:         g.BaseURL,
		DefaultModel:    g.DefaultModel,
		ReadIdleTimeout: time.Duration(g.ReadIdleTimeout) * time.Second,
		RequestTimeout:  time.Duration(g.RequestTimeout) * time.Second,
	}, logs.GetLogger("gemini"))

	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(s.store(ctx), ratelimit.WithLogger(logs.GetLogger("ratelimit")))
	}

	s.handlers.AddHandlers(server.NewHandler("writer", []string{limitedGroup, http.MethodPost}, s.complete))
	s.handlers.AddHandlers(server.NewHandler("writer2", []string{limitedGroup, http.MethodPost}, s.stream))
	s.handlers.AddHandlers(server.NewHandler("models", []string{limitedGroup, http.MethodGet}, s.models))
	s.handlers.AddHandlers(server.NewHandler("debug", []string{"", http.MethodGet}, s.debug))
	return nil
}

// store 选择限流存储, redis 不可用时退回进程内存
func (s *WriterService) store(ctx context.Context) ratelimit.Store {
	if s.rds == nil && s.cfg.RateLimit.Store == "redis" {
		r := s.cfg.Redis
		s.rds = redis.NewClient(redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB}, r.KeyPrefix, logs.GetLogger("redis"))
	}
	if s.rds == nil {
		return ratelimit.NewMemoryStore()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.rds.Ping(pingCtx); err != nil {
		s.logger.Error("redis unavailable, rate limiting per process", logs.ErrorInfo(err))
		s.rds = nil
		return ratelimit.NewMemoryStore()
	}
	s.logger.Info("rate limit store", logs.String("store", "redis"), logs.String("prefix", s.rds.KeyPrefix()))
	return ratelimit.NewRedisStore(s.rds)
}

// Register mounts the routes on bk. Everything except /api/debug is rate
// limited.
func (s *WriterService) Register(bk *server.Backend) {
	bk.AddGroup(limitedGroup, "", ratelimit.Middleware(s.limiter, s.policy))
	for _, h := range s.handlers.GetHandlers() {
		tags := h.GetTags()
		group, method := tags[0], tags[1]
		switch method {
		case http.MethodGet:
			bk.AddGetHandler(group, h)
		default:
			bk.AddPostHandler(group, h)
		}
	}
	s.logger.Info("writer routes registered", logs.Int("handlers", s.handlers.GetHandlersLen()))
}

// Start 启动过期条目清理
func (s *WriterService) Start() {
	interval := time.Duration(s.cfg.RateLimit.SweepInterval) * time.Second
	s.limiter.StartSweeper(s.ctx, interval)
	s.setRunning(true)
	s.logger.Info("writer service started",
		logs.Bool("geminiConfigured", s.gemini.Configured()),
		logs.Int("maxRequests", s.policy.MaxRequests),
		logs.Duration("window", s.policy.Window))
}

func (s *WriterService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.gemini != nil {
		_ = s.gemini.Close()
	}
	if s.rds != nil {
		if c, ok := s.rds.NativeCmd().(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
	s.setRunning(false)
	s.logger.Info("writer service stopped")
}

// Gemini 上游客户端, 供命令行复用
func (s *WriterService) Gemini() *clients.GeminiClient {
	return s.gemini
}
