package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// CommissionTier 佣金阶梯（当月累计销售额达到阈值即适用该比例）
type CommissionTier struct {
	MinMonthlySales Money `json:"min_monthly_sales"` // 月销售额阈值
	Percent         Money `json:"percent"`           // 佣金比例（百分比）
}

// TierTable 佣金阶梯表，按阈值升序排列
type TierTable []CommissionTier

// Value 实现 driver.Valuer 接口
func (t TierTable) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan 实现 sql.Scanner 接口
func (t *TierTable) Scan(value interface{}) error {
	if value == nil {
		*t = TierTable{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, t)
}

// Affiliate 推广账户（每个用户最多一个，按自然月累计业绩）
type Affiliate struct {
	ID                     uint           `gorm:"primarykey" json:"id"`                                       // 主键
	UserID                 uint           `gorm:"not null;uniqueIndex" json:"user_id"`                        // 用户ID
	AffiliateCode          string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`          // 推广短码
	Status                 string         `gorm:"type:varchar(20);not null;index" json:"status"`              // 状态
	MonthKey               string         `gorm:"type:varchar(7);not null;default:''" json:"month_key"`       // 当前计数所属月份（YYYY-MM）
	MonthSales             Money          `gorm:"type:decimal(20,2);not null;default:0" json:"month_sales"`   // 当月累计销售额
	MonthOrders            uint           `gorm:"not null;default:0" json:"month_orders"`                     // 当月订单数
	MonthCommissionAccrued Money          `gorm:"type:decimal(20,2);not null;default:0" json:"month_commission_accrued"` // 当月累计佣金
	LifetimeSales          Money          `gorm:"type:decimal(20,2);not null;default:0" json:"lifetime_sales"`           // 累计销售额
	LifetimeCommission     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"lifetime_commission"`      // 累计佣金
	TierTable              TierTable      `gorm:"type:json" json:"tier_table,omitempty"`                      // 专属佣金阶梯（为空时使用全局配置）
	CreatedAt              time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt              time.Time      `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`                                             // 软删除时间

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"` // 用户信息
}

// TableName 指定表名
func (Affiliate) TableName() string {
	return "affiliates"
}
