package service

import "errors"

// 通用业务错误
var (
	ErrNotFound           = errors.New("记录不存在")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidEmail       = errors.New("邮箱格式不正确")
	ErrInvalidPassword    = errors.New("密码不符合要求")
	ErrPasswordMismatch   = errors.New("旧密码错误")
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrUserDisabled       = errors.New("用户已被禁用")
)

// 推广账户相关错误
var (
	ErrAffiliateDisabled      = errors.New("推广返利功能未开启")
	ErrAffiliateNotOpened     = errors.New("推广账户未开通")
	ErrAffiliateCodeInvalid   = errors.New("推广码生成失败")
	ErrAffiliateStatusInvalid = errors.New("推广账户状态不合法")
	ErrTierTableInvalid       = errors.New("佣金阶梯配置不合法")
	ErrMonthKeyInvalid        = errors.New("结算月份格式不合法")
	ErrReversalAmountInvalid  = errors.New("冲正金额不合法")
)

// 提现申请相关错误
var (
	ErrPayoutKycInvalid         = errors.New("收款资料不完整")
	ErrPayoutUpiInvalid         = errors.New("UPI 账号格式不合法")
	ErrPayoutAadhaarInvalid     = errors.New("Aadhaar 号码长度不合法")
	ErrPayoutPanInvalid         = errors.New("PAN 号码格式不合法")
	ErrPayoutBankAccountInvalid = errors.New("银行账号格式不合法")
	ErrPayoutIfscInvalid        = errors.New("IFSC 代码格式不合法")
	ErrPayoutMonthOpen          = errors.New("结算月份尚未关账")
	ErrPayoutNothingEligible    = errors.New("没有可提现的佣金")
	ErrPayoutBelowMinimum       = errors.New("提现金额低于最低限制")
	ErrPayoutStatusInvalid      = errors.New("提现申请状态不合法")
	ErrPayoutActionInvalid      = errors.New("提现审核操作不合法")
)

// 对账标记相关错误
var (
	ErrReconciliationStatusInvalid = errors.New("对账标记状态不合法")
)

// 仪表盘相关错误
var (
	ErrDashboardRangeInvalid = errors.New("仪表盘时间范围不合法")
)

// 验证码相关错误
var (
	ErrCaptchaRequired = errors.New("请完成验证码")
	ErrCaptchaInvalid  = errors.New("验证码错误")
)

// 配置相关错误
var (
	ErrAffiliateConfigInvalid = errors.New("推广返利配置不合法")
	ErrCaptchaConfigInvalid   = errors.New("验证码配置不合法")
)
