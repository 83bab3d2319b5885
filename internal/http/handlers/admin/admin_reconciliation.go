package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListReconciliationFlags 管理端对账工单列表
func (h *Handler) ListReconciliationFlags(c *gin.Context) {
	if h.ReconciliationService == nil {
		respondError(c, response.CodeInternal, "对账服务不可用", nil)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	affiliateID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("affiliate_id")), 10, 64)

	rows, total, err := h.ReconciliationService.List(repository.ReconciliationListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: uint(affiliateID),
		MonthKey:    strings.TrimSpace(c.Query("month_key")),
		Status:      strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "获取对账工单失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ReconciliationResolveRequest 对账工单处置请求
type ReconciliationResolveRequest struct {
	Note string `json:"note"`
}

// ResolveReconciliationFlag 关闭对账工单
func (h *Handler) ResolveReconciliationFlag(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	if h.ReconciliationService == nil {
		respondError(c, response.CodeInternal, "对账服务不可用", nil)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "对账工单ID不合法", nil)
		return
	}

	var req ReconciliationResolveRequest
	if c.Request != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
	}

	row, err := h.ReconciliationService.Resolve(adminID, uint(id), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "对账工单不存在", nil)
		case errors.Is(err, service.ErrReconciliationStatusInvalid):
			respondError(c, response.CodeBadRequest, "对账工单已处理", nil)
		default:
			respondError(c, response.CodeInternal, "对账工单处置失败", err)
		}
		return
	}

	requestLog(c).Infow("admin_reconciliation_resolved",
		"admin_id", adminID,
		"flag_id", id,
	)
	response.Success(c, row)
}
