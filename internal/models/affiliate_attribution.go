package models

import (
	"time"
)

// AffiliateAttribution 佣金流水（追加式台账，每条记录一次佣金影响）
type AffiliateAttribution struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                                                                  // 主键
	AffiliateID       uint       `gorm:"not null;index;index:idx_affiliate_attribution_month" json:"affiliate_id"`                             // 推广账户ID
	OrderID           uint       `gorm:"not null;index;index:idx_affiliate_attribution_order_original,unique,where:kind = 'original'" json:"order_id"` // 订单ID
	OrderNumber       string     `gorm:"type:varchar(64);not null" json:"order_number"`                                                        // 订单号
	ClickID           *uint      `gorm:"index" json:"click_id,omitempty"`                                                                      // 点击记录ID
	Kind              string     `gorm:"type:varchar(20);not null;default:'original';index" json:"kind"`                                       // 流水类型
	Amount            Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                                  // 计佣金额（冲正为负数）
	CommissionPercent Money      `gorm:"type:decimal(10,2);not null;default:0" json:"commission_percent"`                                      // 佣金比例（百分比）
	CommissionAmount  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`                                       // 佣金金额（冲正为负数）
	Status            string     `gorm:"type:varchar(32);not null;index" json:"status"`                                                        // 流水状态
	MonthKey          string     `gorm:"type:varchar(7);not null;index;index:idx_affiliate_attribution_month" json:"month_key"`                // 所属月份（YYYY-MM）
	Reason            string     `gorm:"type:varchar(255)" json:"reason"`                                                                      // 冲正原因
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`                                                                                // 转已确认时间
	LockedAt          *time.Time `json:"locked_at,omitempty"`                                                                                  // 月结锁定时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                                                              // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                                                              // 更新时间

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"` // 推广账户
}

// TableName 指定表名
func (AffiliateAttribution) TableName() string {
	return "affiliate_attributions"
}
