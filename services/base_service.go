package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Service 接口
// 统一所有服务的行为
type Service interface {
	Init(ctx context.Context) error
	Start()
	Stop()
	IsRunning() bool
}

type BaseService struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	isRun  bool
}

func (bs *BaseService) initBase(parent context.Context, logger *zap.Logger) {
	bs.ctx, bs.cancel = context.WithCancel(parent)
	bs.logger = logger
}

func (bs *BaseService) setRunning(v bool) {
	bs.mu.Lock()
	bs.isRun = v
	bs.mu.Unlock()
}

func (bs *BaseService) IsRunning() bool {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.isRun
}
