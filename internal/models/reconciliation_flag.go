package models

import (
	"time"
)

// ReconciliationFlag 对账工单（已锁定月份出现冲正时登记，待人工处理）
type ReconciliationFlag struct {
	ID            uint       `gorm:"primarykey" json:"id"`                            // 主键
	AffiliateID   uint       `gorm:"not null;index" json:"affiliate_id"`              // 推广账户ID
	OrderID       uint       `gorm:"not null;index" json:"order_id"`                  // 订单ID
	AttributionID *uint      `gorm:"index" json:"attribution_id,omitempty"`           // 原始流水ID
	PayoutID      *uint      `gorm:"index" json:"payout_id,omitempty"`                // 关联结算单ID
	MonthKey      string     `gorm:"type:varchar(7);not null;index" json:"month_key"` // 所属月份（YYYY-MM）
	Amount        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 涉及佣金金额
	Reason        string     `gorm:"type:varchar(255)" json:"reason"`                 // 登记原因
	Status        string     `gorm:"type:varchar(20);not null;index" json:"status"`   // 工单状态
	ResolveNote   string     `gorm:"type:varchar(255)" json:"resolve_note"`           // 处理备注
	ResolvedBy    *uint      `gorm:"index" json:"resolved_by,omitempty"`              // 处理管理员ID
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`                           // 处理时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                         // 创建时间
	UpdatedAt     time.Time  `gorm:"index" json:"updated_at"`                         // 更新时间

	Affiliate Affiliate        `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"` // 推广账户
	Payout    *AffiliatePayout `gorm:"foreignKey:PayoutID" json:"payout,omitempty"`       // 结算单
}

// TableName 指定表名
func (ReconciliationFlag) TableName() string {
	return "reconciliation_flags"
}
