package public

import (
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetCaptchaConfig 获取验证码公开配置
func (h *Handler) GetCaptchaConfig(c *gin.Context) {
	if h.CaptchaService == nil {
		respondError(c, response.CodeInternal, "验证码服务不可用", service.ErrCaptchaConfigInvalid)
		return
	}

	setting, err := h.CaptchaService.GetPublicSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "获取验证码配置失败", err)
		return
	}
	response.Success(c, setting)
}
