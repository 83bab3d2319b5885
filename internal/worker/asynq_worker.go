package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderFinalized, c.handleOrderFinalized)
	mux.HandleFunc(queue.TaskOrderCancelled, c.handleOrderCancelled)
	mux.HandleFunc(queue.TaskAffiliateMonthClose, c.handleAffiliateMonthClose)
}

func (c *Consumer) handleOrderFinalized(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_finalized_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderFinalizedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_finalized_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_finalized_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.AffiliateService == nil {
		logger.Warnw("worker_order_finalized_skip_affiliate_service_nil", "order_id", payload.OrderID)
		return nil
	}
	input := service.OrderAttributionInput{
		OrderID:        payload.OrderID,
		OrderNumber:    strings.TrimSpace(payload.OrderNo),
		BuyerUserID:    payload.BuyerUserID,
		AffiliateCode:  strings.TrimSpace(payload.ReferralCode),
		ClickID:        payload.ClickID,
		EligibleAmount: payload.EligibleSubtotal,
		Durable:        payload.Durable,
	}
	if err := c.AffiliateService.RecordAttribution(input); err != nil {
		logger.Warnw("worker_order_finalized_attribution_failed",
			"order_id", payload.OrderID,
			"order_no", payload.OrderNo,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderCancelled(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_cancelled_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderCancelledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_cancelled_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_cancelled_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.AffiliateService == nil {
		logger.Warnw("worker_order_cancelled_skip_affiliate_service_nil", "order_id", payload.OrderID)
		return nil
	}
	input := service.OrderReversalInput{
		OrderID:       payload.OrderID,
		Reason:        strings.TrimSpace(payload.Reason),
		PartialAmount: payload.PartialAmount,
	}
	if err := c.AffiliateService.ReverseAttribution(input); err != nil {
		switch {
		case errors.Is(err, service.ErrReversalAmountInvalid):
			logger.Warnw("worker_order_cancelled_skip_invalid_amount", "order_id", payload.OrderID, "error", err)
			return nil
		default:
			logger.Warnw("worker_order_cancelled_reversal_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleAffiliateMonthClose(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_affiliate_month_close_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AffiliateMonthClosePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_affiliate_month_close_unmarshal_failed", "error", err)
		return err
	}
	monthKey := strings.TrimSpace(payload.MonthKey)
	if monthKey == "" {
		logger.Debugw("worker_affiliate_month_close_skip_empty_month")
		return nil
	}
	if c.AffiliateService == nil {
		logger.Warnw("worker_affiliate_month_close_skip_affiliate_service_nil", "month_key", monthKey)
		return nil
	}
	if _, err := c.AffiliateService.CloseMonth(monthKey); err != nil {
		switch {
		case errors.Is(err, service.ErrMonthKeyInvalid):
			logger.Warnw("worker_affiliate_month_close_skip_invalid_month", "month_key", monthKey, "error", err)
			return nil
		default:
			logger.Warnw("worker_affiliate_month_close_failed", "month_key", monthKey, "error", err)
			return err
		}
	}
	return nil
}
