package worker

import (
	"context"
	"errors"
	"time"

	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/logger"
	"github.com/franzbiely/flash-sale-system/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultCodeCleanupInterval = 5 * time.Minute

// Service 异步队列服务
type Service struct {
	name            string
	server          *asynq.Server
	mux             *asynq.ServeMux
	consumer        *Consumer
	cleanupInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	cleanupInterval := defaultCodeCleanupInterval
	if cfg.Purchase.CodeCleanupInterval > 0 {
		cleanupInterval = time.Duration(cfg.Purchase.CodeCleanupInterval) * time.Second
	}
	return &Service{
		name:            "worker",
		server:          server,
		mux:             mux,
		consumer:        consumer,
		cleanupInterval: cleanupInterval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.PurchaseService != nil {
		go s.runCodeCleanupLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runCodeCleanupLoop 周期清理过期验证码
func (s *Service) runCodeCleanupLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.PurchaseService == nil {
		return
	}
	runOnce := func() {
		deleted, err := s.consumer.PurchaseService.CleanupExpiredCodes()
		if err != nil {
			logger.Warnw("worker_code_cleanup_failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Infow("worker_code_cleanup_done", "deleted", deleted)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
