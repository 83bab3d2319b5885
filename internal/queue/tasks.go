package queue

import (
	"encoding/json"

	"github.com/fenxiao-next/internal/constants"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// TaskOrderFinalized 订单完成归因任务
	TaskOrderFinalized = constants.TaskOrderFinalized
	// TaskOrderCancelled 订单取消冲正任务
	TaskOrderCancelled = constants.TaskOrderCancelled
	// TaskAffiliateMonthClose 推广月结关账任务
	TaskAffiliateMonthClose = constants.TaskAffiliateMonthClose
)

// OrderFinalizedPayload 订单完成归因任务载荷
type OrderFinalizedPayload struct {
	OrderID          uint            `json:"order_id"`
	OrderNo          string          `json:"order_no"`
	BuyerUserID      uint            `json:"buyer_user_id"`
	EligibleSubtotal decimal.Decimal `json:"eligible_subtotal"`
	ReferralCode     string          `json:"referral_code"`
	ClickID          *uint           `json:"click_id"`
	Durable          bool            `json:"durable"`
}

// OrderCancelledPayload 订单取消冲正任务载荷
type OrderCancelledPayload struct {
	OrderID       uint             `json:"order_id"`
	Reason        string           `json:"reason"`
	PartialAmount *decimal.Decimal `json:"partial_amount"`
}

// AffiliateMonthClosePayload 推广月结关账任务载荷
type AffiliateMonthClosePayload struct {
	MonthKey string `json:"month_key"`
}

// NewOrderFinalizedTask 创建订单完成归因任务
func NewOrderFinalizedTask(payload OrderFinalizedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderFinalized, body), nil
}

// NewOrderCancelledTask 创建订单取消冲正任务
func NewOrderCancelledTask(payload OrderCancelledPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderCancelled, body), nil
}

// NewAffiliateMonthCloseTask 创建推广月结关账任务
func NewAffiliateMonthCloseTask(payload AffiliateMonthClosePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAffiliateMonthClose, body), nil
}
