package public

import (
	"errors"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var affiliateJoinErrorRules = []mappedHandlerError{
	{target: service.ErrAffiliateDisabled, code: response.CodeBadRequest, msg: "推广返利功能未开启"},
	{target: service.ErrUserDisabled, code: response.CodeBadRequest, msg: "账号已被禁用"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "用户不存在"},
	{target: service.ErrAffiliateCodeInvalid, code: response.CodeInternal, msg: "推广码生成失败"},
}

var payoutRequestErrorRules = []mappedHandlerError{
	{target: service.ErrAffiliateDisabled, code: response.CodeBadRequest, msg: "推广返利功能未开启"},
	{target: service.ErrAffiliateNotOpened, code: response.CodeBadRequest, msg: "推广账户未开通"},
	{target: service.ErrMonthKeyInvalid, code: response.CodeBadRequest, msg: "结算月份格式不合法"},
	{target: service.ErrPayoutMonthOpen, code: response.CodeBadRequest, msg: "结算月份尚未关账"},
	{target: service.ErrPayoutKycInvalid, code: response.CodeBadRequest, msg: "收款资料不完整"},
	{target: service.ErrPayoutUpiInvalid, code: response.CodeBadRequest, msg: "UPI 账号格式不合法"},
	{target: service.ErrPayoutAadhaarInvalid, code: response.CodeBadRequest, msg: "Aadhaar 号码长度不合法"},
	{target: service.ErrPayoutPanInvalid, code: response.CodeBadRequest, msg: "PAN 号码格式不合法"},
	{target: service.ErrPayoutBankAccountInvalid, code: response.CodeBadRequest, msg: "银行账号格式不合法"},
	{target: service.ErrPayoutIfscInvalid, code: response.CodeBadRequest, msg: "IFSC 代码格式不合法"},
	{target: service.ErrPayoutNothingEligible, code: response.CodeBadRequest, msg: "没有可提现的佣金"},
	{target: service.ErrPayoutBelowMinimum, code: response.CodeBadRequest, msg: "提现金额低于最低限制"},
}
