package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListAdminPayouts 管理端结算单列表
func (h *Handler) ListAdminPayouts(c *gin.Context) {
	if h.PayoutService == nil {
		respondError(c, response.CodeInternal, "结算服务不可用", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	affiliateID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_id")), 10, 64)
	userID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("user_id")), 10, 64)

	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "开始时间格式不合法", nil)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "结束时间格式不合法", nil)
		return
	}

	rows, total, err := h.PayoutService.ListAdminPayouts(repository.PayoutListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: uint(affiliateID),
		UserID:      uint(userID),
		MonthKey:    strings.TrimSpace(c.Query("month_key")),
		Status:      strings.TrimSpace(c.Query("status")),
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取结算单列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetAdminPayout 管理端结算单详情
func (h *Handler) GetAdminPayout(c *gin.Context) {
	if h.PayoutService == nil {
		respondError(c, response.CodeInternal, "结算服务不可用", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "结算单ID不合法", nil)
		return
	}

	row, err := h.PayoutService.GetAdminPayout(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "结算单不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "获取结算单失败", err)
		return
	}
	response.Success(c, row)
}

// PayoutReviewRequest 结算单审核请求
type PayoutReviewRequest struct {
	Note string `json:"note"`
}

// MarkPayoutProcessing 受理结算单进入打款流程
func (h *Handler) MarkPayoutProcessing(c *gin.Context) {
	h.reviewPayout(c, constants.PayoutActionProcess)
}

// MarkPayoutPaid 标记结算单已打款
func (h *Handler) MarkPayoutPaid(c *gin.Context) {
	h.reviewPayout(c, constants.PayoutActionPay)
}

// RejectPayout 驳回结算单
func (h *Handler) RejectPayout(c *gin.Context) {
	h.reviewPayout(c, constants.PayoutActionReject)
}

func (h *Handler) reviewPayout(c *gin.Context, action string) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.PayoutService == nil {
		respondError(c, response.CodeInternal, "结算服务不可用", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "结算单ID不合法", nil)
		return
	}

	var req PayoutReviewRequest
	if c.Request != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
	}

	row, err := h.PayoutService.ReviewPayout(adminID, uint(id), action, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "结算单不存在", nil)
		case errors.Is(err, service.ErrPayoutStatusInvalid):
			respondError(c, response.CodeBadRequest, "结算单当前状态不允许该操作", nil)
		case errors.Is(err, service.ErrPayoutActionInvalid):
			respondError(c, response.CodeBadRequest, "提现审核操作不合法", nil)
		default:
			respondError(c, response.CodeInternal, "结算单审核失败", err)
		}
		return
	}

	requestLog(c).Infow("admin_payout_reviewed",
		"admin_id", adminID,
		"payout_id", id,
		"action", action,
		"status", row.Status,
	)
	response.Success(c, row)
}

// MonthCloseRequest 月度关账请求
type MonthCloseRequest struct {
	MonthKey string `json:"month_key"`
}

// TriggerMonthClose 手动触发月度关账。
// 不传月份时默认关账上一个自然月，重复触发按幂等处理。
func (h *Handler) TriggerMonthClose(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}

	var req MonthCloseRequest
	if c.Request != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
	}
	monthKey := strings.TrimSpace(req.MonthKey)
	if monthKey == "" {
		monthKey = service.PreviousMonthKey(time.Now())
	}

	result, err := h.AffiliateService.CloseMonth(monthKey)
	if err != nil {
		if errors.Is(err, service.ErrMonthKeyInvalid) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "月度关账失败", err)
		return
	}

	requestLog(c).Infow("admin_month_close_triggered",
		"admin_id", adminID,
		"month_key", result.MonthKey,
		"locked_rows", result.LockedRows,
		"seeded_payouts", result.SeededPayouts,
		"skipped_rows", result.SkippedRows,
	)
	response.Success(c, result)
}
