package public

import (
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	publicConfigCacheKey = "public:config"
	publicConfigCacheTTL = 60 * time.Second
)

// GetConfig 获取全局配置
func (h *Handler) GetConfig(c *gin.Context) {
	// 默认配置
	defaults := map[string]interface{}{
		"brand": map[string]interface{}{
			"site_name": "分销返利中心",
		},
		constants.SettingFieldSiteCurrency: constants.SiteCurrencyDefault,
	}

	var cached map[string]interface{}
	if hit, err := cache.GetJSON(c.Request.Context(), publicConfigCacheKey, &cached); err == nil && hit {
		response.Success(c, cached)
		return
	}

	data, err := h.SettingService.GetConfig(defaults)
	if err != nil {
		respondError(c, response.CodeInternal, "获取站点配置失败", err)
		return
	}

	affiliateSetting, err := h.SettingService.GetAffiliateSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "获取站点配置失败", err)
		return
	}
	data["affiliate"] = map[string]interface{}{
		"enabled":                    affiliateSetting.Enabled,
		"min_payout_amount":          affiliateSetting.MinPayoutAmount,
		"allow_current_month_payout": affiliateSetting.AllowCurrentMonthPayout,
	}

	if h.CaptchaService != nil {
		if captchaSetting, err := h.CaptchaService.GetPublicSetting(); err == nil {
			data["captcha"] = captchaSetting
		}
	}

	if err := cache.SetJSON(c.Request.Context(), publicConfigCacheKey, data, publicConfigCacheTTL); err != nil {
		requestLog(c).Warnw("public_config_cache_set_failed", "error", err)
	}
	response.Success(c, data)
}
