package public

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AffiliateTrackClickRequest 推广点击记录请求
type AffiliateTrackClickRequest struct {
	AffiliateCode string `json:"affiliate_code" binding:"required"`
	VisitorKey    string `json:"visitor_key"`
	LandingPath   string `json:"landing_path"`
	Referrer      string `json:"referrer"`
}

// TrackAffiliateClick 记录推广点击
func (h *Handler) TrackAffiliateClick(c *gin.Context) {
	var req AffiliateTrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if h.AffiliateService != nil {
		if err := h.AffiliateService.TrackClick(service.AffiliateTrackClickInput{
			AffiliateCode: req.AffiliateCode,
			VisitorKey:    req.VisitorKey,
			LandingPath:   req.LandingPath,
			Referrer:      req.Referrer,
			ClientIP:      c.ClientIP(),
			UserAgent:     c.GetHeader("User-Agent"),
		}); err != nil {
			respondError(c, response.CodeInternal, "记录推广点击失败", err)
			return
		}
	}
	response.Success(c, gin.H{"tracked": true})
}

// RedirectAffiliateLink 推广短链跳转。
// 记录失败不阻断跳转，访客仍然带推广码落地。
func (h *Handler) RedirectAffiliateLink(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}

	if h.AffiliateService != nil {
		visitorKey := strings.TrimSpace(c.Query("v"))
		if visitorKey == "" {
			visitorKey = c.ClientIP()
		}
		if err := h.AffiliateService.TrackClick(service.AffiliateTrackClickInput{
			AffiliateCode: code,
			VisitorKey:    visitorKey,
			LandingPath:   "/r/" + code,
			Referrer:      c.GetHeader("Referer"),
			ClientIP:      c.ClientIP(),
			UserAgent:     c.GetHeader("User-Agent"),
		}); err != nil {
			requestLog(c).Warnw("affiliate_redirect_track_failed", "code", code, "error", err)
		}
	}
	c.Redirect(http.StatusFound, "/?aff="+code)
}

// JoinAffiliate 开通推广账户
func (h *Handler) JoinAffiliate(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}

	affiliate, err := h.AffiliateService.OpenAffiliate(uid)
	if err != nil {
		respondWithMappedError(c, err, affiliateJoinErrorRules, response.CodeInternal, "开通推广账户失败")
		return
	}
	response.Success(c, affiliate)
}

// GetAffiliateSummary 获取我的推广看板
func (h *Handler) GetAffiliateSummary(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}

	summary, err := h.AffiliateService.GetUserSummary(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "获取推广数据失败", err)
		return
	}
	response.Success(c, summary)
}

// ListAffiliateAttributions 查询我的佣金流水
func (h *Handler) ListAffiliateAttributions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	monthKey := strings.TrimSpace(c.Query("month_key"))
	status := strings.TrimSpace(c.Query("status"))

	rows, total, err := h.AffiliateService.ListUserAttributions(uid, page, pageSize, monthKey, status)
	if err != nil {
		respondError(c, response.CodeInternal, "获取佣金流水失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListAffiliatePayouts 查询我的结算单
func (h *Handler) ListAffiliatePayouts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.PayoutService == nil {
		respondError(c, response.CodeInternal, "结算服务不可用", nil)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	monthKey := strings.TrimSpace(c.Query("month_key"))
	status := strings.TrimSpace(c.Query("status"))

	rows, total, err := h.PayoutService.ListUserPayouts(uid, page, pageSize, monthKey, status)
	if err != nil {
		respondError(c, response.CodeInternal, "获取结算单失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// AffiliatePayoutKycRequest 提现收款资料
type AffiliatePayoutKycRequest struct {
	AccountHolder string `json:"account_holder"`
	BankAccount   string `json:"bank_account"`
	BankIfsc      string `json:"bank_ifsc"`
	BankName      string `json:"bank_name"`
	City          string `json:"city"`
	UpiID         string `json:"upi_id"`
	Aadhaar       string `json:"aadhaar"`
	PanNumber     string `json:"pan_number"`
}

// AffiliatePayoutApplyRequest 提现结算申请请求
type AffiliatePayoutApplyRequest struct {
	MonthKey string                    `json:"month_key"`
	Kyc      AffiliatePayoutKycRequest `json:"kyc"`
}

// RequestAffiliatePayout 提交月度结算申请
func (h *Handler) RequestAffiliatePayout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if h.PayoutService == nil {
		respondError(c, response.CodeInternal, "结算服务不可用", nil)
		return
	}

	var req AffiliatePayoutApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	result, err := h.PayoutService.RequestPayout(uid, service.PayoutRequestInput{
		MonthKey: req.MonthKey,
		Kyc: service.PayoutKycInput{
			AccountHolder: req.Kyc.AccountHolder,
			BankAccount:   req.Kyc.BankAccount,
			BankIfsc:      req.Kyc.BankIfsc,
			BankName:      req.Kyc.BankName,
			City:          req.Kyc.City,
			UpiID:         req.Kyc.UpiID,
			Aadhaar:       req.Kyc.Aadhaar,
			PanNumber:     req.Kyc.PanNumber,
		},
	})
	if err != nil {
		respondWithMappedError(c, err, payoutRequestErrorRules, response.CodeInternal, "提交结算申请失败")
		return
	}
	response.Success(c, result)
}
