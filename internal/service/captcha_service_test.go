package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
)

func TestCaptchaVerifySkipsDisabledScene(t *testing.T) {
	cfg := testCaptchaConfig()
	cfg.Scenes.AdminLogin = false
	svc := NewCaptchaService(NewSettingService(newMockSettingRepo()), cfg)

	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("disabled scene verify: %v", err)
	}
	if err := svc.Verify("user_login", CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("unknown scene verify: %v", err)
	}
}

func TestCaptchaVerifyRequiresChallenge(t *testing.T) {
	svc := NewCaptchaService(NewSettingService(newMockSettingRepo()), testCaptchaConfig())

	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("empty payload error = %v, want ErrCaptchaRequired", err)
	}
	err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{
		CaptchaID:   "missing-id",
		CaptchaCode: "abc12",
	})
	if !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("unknown challenge error = %v, want ErrCaptchaInvalid", err)
	}
}

func TestCaptchaVerifyRejectsMisconfiguredProvider(t *testing.T) {
	settingSvc := NewSettingService(newMockSettingRepo())
	// 直接写入非法组合，绕过补丁接口的校验。
	if _, err := settingSvc.Update(constants.SettingKeyCaptchaConfig, map[string]interface{}{
		"provider": constants.CaptchaProviderNone,
		"scenes":   map[string]interface{}{"admin_login": true},
	}); err != nil {
		t.Fatalf("store captcha setting: %v", err)
	}
	svc := NewCaptchaService(settingSvc, testCaptchaConfig())

	err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{CaptchaID: "id", CaptchaCode: "code"})
	if !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("misconfigured provider error = %v, want ErrCaptchaConfigInvalid", err)
	}
}

func TestGenerateImageChallenge(t *testing.T) {
	svc := NewCaptchaService(NewSettingService(newMockSettingRepo()), testCaptchaConfig())

	challenge, err := svc.GenerateImageChallenge()
	if err != nil {
		t.Fatalf("generate challenge: %v", err)
	}
	if challenge.CaptchaID == "" {
		t.Fatalf("challenge id is empty")
	}
	if !strings.HasPrefix(challenge.ImageBase64, "data:image/png;base64,") {
		t.Fatalf("challenge image is not a png data url")
	}

	// 生成过的挑战配错误答案不通过。
	err = svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{
		CaptchaID:   challenge.CaptchaID,
		CaptchaCode: "wrong",
	})
	if !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("wrong answer error = %v, want ErrCaptchaInvalid", err)
	}

	disabled := NewCaptchaService(NewSettingService(newMockSettingRepo()), config.CaptchaConfig{})
	if _, err := disabled.GenerateImageChallenge(); !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("generate without image provider error = %v, want ErrCaptchaConfigInvalid", err)
	}
}

func TestCaptchaServiceCachesSettingUntilInvalidated(t *testing.T) {
	settingSvc := NewSettingService(newMockSettingRepo())
	svc := NewCaptchaService(settingSvc, testCaptchaConfig())

	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("initial verify error = %v, want ErrCaptchaRequired", err)
	}

	if _, err := settingSvc.Update(constants.SettingKeyCaptchaConfig, map[string]interface{}{
		"provider": constants.CaptchaProviderNone,
		"scenes":   map[string]interface{}{"admin_login": true},
	}); err != nil {
		t.Fatalf("store captcha setting: %v", err)
	}
	// 缓存未失效前仍按旧配置执行。
	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("cached verify error = %v, want ErrCaptchaRequired", err)
	}

	svc.InvalidateCache()
	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{CaptchaID: "id", CaptchaCode: "code"}); !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("refreshed verify error = %v, want ErrCaptchaConfigInvalid", err)
	}
}

func TestCaptchaServiceSetDefaultConfigResetsCache(t *testing.T) {
	svc := NewCaptchaService(NewSettingService(newMockSettingRepo()), config.CaptchaConfig{})

	// 默认配置未开启场景，直接放行。
	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("verify with zero config: %v", err)
	}

	svc.SetDefaultConfig(testCaptchaConfig())
	if err := svc.Verify(constants.CaptchaSceneAdminLogin, CaptchaVerifyPayload{}); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("verify after config swap error = %v, want ErrCaptchaRequired", err)
	}
}

func TestCaptchaServiceGetPublicSetting(t *testing.T) {
	svc := NewCaptchaService(NewSettingService(newMockSettingRepo()), testCaptchaConfig())

	payload, err := svc.GetPublicSetting()
	if err != nil {
		t.Fatalf("get public setting: %v", err)
	}
	if payload["provider"] != constants.CaptchaProviderImage {
		t.Fatalf("public provider = %v", payload["provider"])
	}
	if _, exists := payload["image"]; exists {
		t.Fatalf("public payload leaks image params")
	}
}
