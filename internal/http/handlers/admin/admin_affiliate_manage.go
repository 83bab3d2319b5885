package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListAdminAffiliates 管理端推广账户列表
func (h *Handler) ListAdminAffiliates(c *gin.Context) {
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("user_id")), 10, 64)

	rows, total, err := h.AffiliateService.ListAdminAffiliates(repository.AffiliateListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		Code:     strings.TrimSpace(c.Query("code")),
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取推广账户列表失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ListAdminAttributions 管理端佣金流水列表
func (h *Handler) ListAdminAttributions(c *gin.Context) {
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	affiliateID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_id")), 10, 64)
	orderID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("order_id")), 10, 64)

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

	rows, total, err := h.AffiliateService.ListAdminAttributions(repository.AttributionListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: uint(affiliateID),
		OrderID:     uint(orderID),
		OrderNumber: strings.TrimSpace(c.Query("order_number")),
		Kind:        strings.TrimSpace(c.Query("kind")),
		Status:      strings.TrimSpace(c.Query("status")),
		MonthKey:    strings.TrimSpace(c.Query("month_key")),
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取佣金流水失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// AffiliateStatusRequest 推广账户状态更新请求
type AffiliateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAffiliateStatus 管理端更新推广账户状态
func (h *Handler) UpdateAffiliateStatus(c *gin.Context) {
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "推广账户ID不合法", nil)
		return
	}

	var req AffiliateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	row, err := h.AffiliateService.UpdateAffiliateStatus(uint(id), strings.TrimSpace(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "推广账户不存在", nil)
		case errors.Is(err, service.ErrAffiliateStatusInvalid):
			respondError(c, response.CodeBadRequest, "推广账户状态不合法", nil)
		default:
			respondError(c, response.CodeInternal, "更新推广账户状态失败", err)
		}
		return
	}
	response.Success(c, row)
}

// BatchAffiliateStatusRequest 推广账户批量状态更新请求
type BatchAffiliateStatusRequest struct {
	AffiliateIDs []uint `json:"affiliate_ids" binding:"required"`
	Status       string `json:"status" binding:"required"`
}

// BatchUpdateAffiliateStatus 管理端批量更新推广账户状态
func (h *Handler) BatchUpdateAffiliateStatus(c *gin.Context) {
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}
	var req BatchAffiliateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if len(req.AffiliateIDs) == 0 {
		respondError(c, response.CodeBadRequest, "推广账户ID列表不能为空", nil)
		return
	}
	updated, err := h.AffiliateService.BatchUpdateAffiliateStatus(req.AffiliateIDs, strings.TrimSpace(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAffiliateStatusInvalid):
			respondError(c, response.CodeBadRequest, "推广账户状态不合法", nil)
		default:
			respondError(c, response.CodeInternal, "批量更新推广账户状态失败", err)
		}
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// AffiliateTierTableRequest 推广账户专属阶梯配置请求
type AffiliateTierTableRequest struct {
	TierTable models.TierTable `json:"tier_table" binding:"required"`
}

// UpdateAffiliateTierTable 管理端更新推广账户专属佣金阶梯
func (h *Handler) UpdateAffiliateTierTable(c *gin.Context) {
	if h.AffiliateService == nil {
		respondError(c, response.CodeInternal, "推广服务不可用", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "推广账户ID不合法", nil)
		return
	}

	var req AffiliateTierTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	row, err := h.AffiliateService.UpdateAffiliateTierTable(uint(id), req.TierTable)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "推广账户不存在", nil)
		case errors.Is(err, service.ErrTierTableInvalid):
			respondError(c, response.CodeBadRequest, "佣金阶梯配置不合法", nil)
		default:
			respondError(c, response.CodeInternal, "保存佣金阶梯失败", err)
		}
		return
	}
	response.Success(c, row)
}

func parseTimeNullable(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
