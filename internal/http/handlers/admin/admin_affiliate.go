package admin

import (
	"errors"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetAffiliateSettings 获取推广返利设置
func (h *Handler) GetAffiliateSettings(c *gin.Context) {
	setting, err := h.SettingService.GetAffiliateSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "获取推广返利设置失败", err)
		return
	}
	response.Success(c, setting)
}

// UpdateAffiliateSettings 更新推广返利设置
func (h *Handler) UpdateAffiliateSettings(c *gin.Context) {
	var req service.AffiliateSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	setting, err := h.SettingService.UpdateAffiliateSetting(req)
	if err != nil {
		if errors.Is(err, service.ErrAffiliateConfigInvalid) {
			respondError(c, response.CodeBadRequest, "推广返利配置不合法", nil)
			return
		}
		respondError(c, response.CodeInternal, "保存推广返利设置失败", err)
		return
	}

	// 公开配置内嵌返利开关与提现门槛，更新后需要清掉缓存。
	_ = cache.Del(c.Request.Context(), publicConfigCacheKey)
	response.Success(c, setting)
}
