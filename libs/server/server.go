package server

import (
	"context"

	"github.com/stardustagi/ScriptPilot/libs/logs"
	"github.com/stardustagi/ScriptPilot/utils"
	"go.uber.org/zap"
)

// Server 进程级生命周期, 收到退出信号时取消 Ctx
type Server struct {
	Ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	doneCh chan struct{}
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Ctx:    ctx,
		cancel: cancel,
		logger: logs.GetLogger("Server"),
		doneCh: utils.MakeShutdownCh(),
	}
}

// HandleSignal 阻塞直到收到信号或 Ctx 被取消
func (m *Server) HandleSignal() {
	select {
	case <-m.doneCh:
		m.logger.Info("server shutting...")
	case <-m.Ctx.Done():
	}
	m.cancel()
}

func (m *Server) Shutdown() {
	m.cancel()
}
