package models

import (
	"time"
)

// AffiliatePayout 结算单（每个推广账户每月最多一条在途记录，驳回单保留为历史）
type AffiliatePayout struct {
	ID          uint   `gorm:"primarykey" json:"id"`                                                                                    // 主键
	AffiliateID uint   `gorm:"not null;index;index:idx_affiliate_payout_month,unique,where:status <> 'rejected'" json:"affiliate_id"` // 推广账户ID
	UserID      uint   `gorm:"not null;index" json:"user_id"`                                                                           // 用户ID
	MonthKey    string `gorm:"type:varchar(7);not null;index:idx_affiliate_payout_month,unique" json:"month_key"`                       // 结算月份（YYYY-MM）
	ReferenceNo string `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference_no"`                  // 结算单号
	Amount      Money  `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                        // 结算金额
	Status      string `gorm:"type:varchar(32);not null;index" json:"status"`                              // 结算单状态

	// 收款信息快照（提交时固化，后续修改账户资料不影响已有结算单）
	AccountHolder string `gorm:"type:varchar(128)" json:"account_holder"` // 收款人姓名
	BankAccount   string `gorm:"type:varchar(64)" json:"bank_account"`    // 银行账号
	BankIfsc      string `gorm:"type:varchar(16)" json:"bank_ifsc"`       // IFSC 代码
	BankName      string `gorm:"type:varchar(128)" json:"bank_name"`      // 银行名称
	City          string `gorm:"type:varchar(64)" json:"city"`            // 城市
	UpiID         string `gorm:"type:varchar(128)" json:"upi_id"`         // UPI 账号
	AadhaarMasked string `gorm:"type:varchar(16)" json:"aadhaar_masked"`  // Aadhaar 掩码（仅保留后四位）
	PanNumber     string `gorm:"type:varchar(16)" json:"pan_number"`      // PAN 号码

	// 结算诊断信息
	AccruedAmount     Money `gorm:"type:decimal(20,2);not null;default:0" json:"accrued_amount"`      // 当月累计佣金
	PriorPayoutAmount Money `gorm:"type:decimal(20,2);not null;default:0" json:"prior_payout_amount"` // 此前已结算金额
	BankIfscMismatch  bool  `gorm:"not null;default:false" json:"bank_ifsc_mismatch"`                 // 银行名称与 IFSC 前缀不一致

	ReviewNote string     `gorm:"type:varchar(255)" json:"review_note"`    // 审核备注
	ReviewedBy *uint      `gorm:"index" json:"reviewed_by,omitempty"`      // 审核管理员ID
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`                   // 审核时间
	PaidAt     *time.Time `json:"paid_at,omitempty"`                       // 打款时间
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt  time.Time  `gorm:"index" json:"updated_at"`                 // 更新时间

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"` // 推广账户
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`           // 用户信息
}

// TableName 指定表名
func (AffiliatePayout) TableName() string {
	return "affiliate_payouts"
}
