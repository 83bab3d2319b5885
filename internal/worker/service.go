package worker

import (
	"context"
	"errors"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/service"

	"github.com/hibiken/asynq"
)

const (
	monthCloseCheckDefaultMinutes = 30
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
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
	if s.consumer != nil && s.consumer.AffiliateService != nil {
		go s.runMonthCloseLoop(ctx)
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

// runMonthCloseLoop 周期巡检上一结算月份并投递关账任务。
// 关账本身幂等，重复投递只会跳过已锁定的台账与既有结算单。
func (s *Service) runMonthCloseLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.AffiliateService == nil {
		return
	}

	interval := time.Duration(monthCloseCheckDefaultMinutes) * time.Minute
	if s.consumer.Config != nil && s.consumer.Config.Affiliate.MonthCloseCheckMinutes > 0 {
		interval = time.Duration(s.consumer.Config.Affiliate.MonthCloseCheckMinutes) * time.Minute
	}

	runOnce := func() {
		monthKey := service.PreviousMonthKey(time.Now())
		if !s.consumer.QueueClient.Enabled() {
			logger.Debugw("worker_month_close_check_skip_queue_disabled", "month_key", monthKey)
			return
		}
		if err := s.consumer.QueueClient.EnqueueAffiliateMonthClose(queue.AffiliateMonthClosePayload{MonthKey: monthKey}, 0); err != nil {
			logger.Warnw("worker_month_close_enqueue_failed", "month_key", monthKey, "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
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
