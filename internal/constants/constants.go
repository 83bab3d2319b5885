package constants

// 推广账户状态常量
const (
	AffiliateStatusActive   = "active"
	AffiliateStatusDisabled = "disabled"
)

// 佣金流水状态常量
const (
	AttributionStatusPending  = "pending"
	AttributionStatusApproved = "approved"
	AttributionStatusLocked   = "locked"
	AttributionStatusReversed = "reversed"
)

// 佣金流水类型常量
const (
	AttributionKindOriginal = "original"
	AttributionKindReversal = "reversal"
)

// 结算单状态常量
const (
	PayoutStatusRequested  = "requested"
	PayoutStatusProcessing = "processing"
	PayoutStatusPaid       = "paid"
	PayoutStatusRejected   = "rejected"
)

// 结算单审核动作常量
const (
	PayoutActionProcess = "process"
	PayoutActionPay     = "pay"
	PayoutActionReject  = "reject"
)

// 对账工单状态常量
const (
	ReconciliationStatusOpen     = "open"
	ReconciliationStatusResolved = "resolved"
)

// 月份键格式常量（time.Format 布局）
const (
	MonthKeyLayout = "2006-01"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 登录日志状态常量
const (
	LoginLogStatusSuccess = "success"
	LoginLogStatusFailed  = "failed"
)

// 登录日志失败原因常量
const (
	LoginLogFailReasonBadRequest         = "bad_request"
	LoginLogFailReasonInvalidEmail       = "invalid_email"
	LoginLogFailReasonInvalidCredentials = "invalid_credentials"
	LoginLogFailReasonUserDisabled       = "user_disabled"
	LoginLogFailReasonInternalError      = "internal_error"
)

// 登录日志来源常量
const (
	LoginLogSourceWeb = "web"
)

// 验证码提供方常量
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"
)

// 验证码校验场景常量
const (
	CaptchaSceneAdminLogin = "admin_login"
)

// 队列常量
const (
	QueueDefault            = "default"
	TaskOrderFinalized      = "order:finalized"
	TaskOrderCancelled      = "order:cancelled"
	TaskAffiliateMonthClose = "affiliate:month_close"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "fx"
)

// 设置键常量
const (
	SettingKeySiteConfig      = "site_config"
	SettingKeyCaptchaConfig   = "captcha_config"
	SettingKeyAffiliateConfig = "affiliate_config"
	SettingKeyDashboardConfig = "dashboard_config"
)

// 设置字段常量
const (
	SettingFieldSiteCurrency = "currency"
)

// 币种常量
const (
	SiteCurrencyDefault = "INR"
)
