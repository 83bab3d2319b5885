package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// AffiliateListFilter 查询推广账户列表的过滤条件
type AffiliateListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Code     string
	Status   string
	Keyword  string
}

// AttributionListFilter 查询佣金流水列表的过滤条件
type AttributionListFilter struct {
	Page        int
	PageSize    int
	AffiliateID uint
	OrderID     uint
	OrderNumber string
	Kind        string
	Status      string
	MonthKey    string
	Keyword     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayoutListFilter 查询结算单列表的过滤条件
type PayoutListFilter struct {
	Page        int
	PageSize    int
	AffiliateID uint
	UserID      uint
	MonthKey    string
	Status      string
	Keyword     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ReconciliationListFilter 查询对账工单列表的过滤条件
type ReconciliationListFilter struct {
	Page        int
	PageSize    int
	AffiliateID uint
	MonthKey    string
	Status      string
}

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page          int
	PageSize      int
	Keyword       string
	Status        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	LastLoginFrom *time.Time
	LastLoginTo   *time.Time
}

// UserLoginLogListFilter 查询用户登录日志列表的过滤条件
type UserLoginLogListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Email       string
	Status      string
	FailReason  string
	ClientIP    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AuthzAuditLogListFilter 查询权限审计日志列表的过滤条件
type AuthzAuditLogListFilter struct {
	Page            int
	PageSize        int
	OperatorAdminID uint
	TargetAdminID   uint
	Action          string
	Role            string
	Object          string
	Method          string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// AffiliateMonthAggregate 推广账户月度汇总
type AffiliateMonthAggregate struct {
	AffiliateID      uint
	UserID           uint
	CommissionAmount decimal.Decimal
	RowCount         int64
}

// AffiliateStatsAggregate 推广账户统计汇总
type AffiliateStatsAggregate struct {
	ClickCount       int64
	AttributionCount int64
	ReversedCount    int64
}
