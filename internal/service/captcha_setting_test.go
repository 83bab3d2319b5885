package service

import (
	"errors"
	"testing"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
)

func testCaptchaConfig() config.CaptchaConfig {
	return config.CaptchaConfig{
		Provider: constants.CaptchaProviderImage,
		Scenes:   config.CaptchaSceneConfig{AdminLogin: true},
		Image: config.CaptchaImageConfig{
			Length:        5,
			Width:         240,
			Height:        80,
			NoiseCount:    2,
			ShowLine:      2,
			ExpireSeconds: 300,
			MaxStore:      10240,
		},
	}
}

func TestCaptchaDefaultSettingNormalizesZeroConfig(t *testing.T) {
	setting := CaptchaDefaultSetting(config.CaptchaConfig{})
	if setting.Provider != constants.CaptchaProviderNone {
		t.Fatalf("provider = %q, want none", setting.Provider)
	}
	if setting.Image.Length != 5 || setting.Image.Width != 240 || setting.Image.Height != 80 {
		t.Fatalf("image defaults = %+v", setting.Image)
	}
	if setting.Image.ExpireSeconds != 300 || setting.Image.MaxStore != 10240 {
		t.Fatalf("image expire/store = %d/%d", setting.Image.ExpireSeconds, setting.Image.MaxStore)
	}
	// 噪点和干扰线允许为 0。
	if setting.Image.NoiseCount != 0 || setting.Image.ShowLine != 0 {
		t.Fatalf("image noise/line = %d/%d, want 0/0", setting.Image.NoiseCount, setting.Image.ShowLine)
	}
}

func TestNormalizeCaptchaSettingClampsValues(t *testing.T) {
	setting := NormalizeCaptchaSetting(CaptchaSetting{
		Provider: "  IMAGE  ",
		Image: CaptchaImageSetting{
			Length:        12,
			Width:         10,
			Height:        10,
			NoiseCount:    -1,
			ShowLine:      -1,
			ExpireSeconds: 5,
			MaxStore:      1,
		},
	})
	if setting.Provider != constants.CaptchaProviderImage {
		t.Fatalf("provider = %q, want image", setting.Provider)
	}
	if setting.Image.Length != 5 || setting.Image.Width != 240 || setting.Image.Height != 80 {
		t.Fatalf("clamped image = %+v", setting.Image)
	}
	if setting.Image.NoiseCount != 2 || setting.Image.ShowLine != 2 {
		t.Fatalf("clamped noise/line = %d/%d", setting.Image.NoiseCount, setting.Image.ShowLine)
	}
	if setting.Image.ExpireSeconds != 300 || setting.Image.MaxStore != 10240 {
		t.Fatalf("clamped expire/store = %d/%d", setting.Image.ExpireSeconds, setting.Image.MaxStore)
	}

	unknown := NormalizeCaptchaSetting(CaptchaSetting{Provider: "recaptcha"})
	if unknown.Provider != constants.CaptchaProviderNone {
		t.Fatalf("unknown provider = %q, want none", unknown.Provider)
	}

	kept := NormalizeCaptchaSetting(CaptchaSetting{
		Provider: constants.CaptchaProviderImage,
		Image: CaptchaImageSetting{
			Length:        6,
			Width:         320,
			Height:        96,
			NoiseCount:    4,
			ShowLine:      3,
			ExpireSeconds: 600,
			MaxStore:      2048,
		},
	})
	if kept.Image.Length != 6 || kept.Image.Width != 320 || kept.Image.ExpireSeconds != 600 || kept.Image.MaxStore != 2048 {
		t.Fatalf("valid image changed = %+v", kept.Image)
	}
}

func TestValidateCaptchaSettingRequiresProviderForScenes(t *testing.T) {
	bad := CaptchaSetting{
		Provider: constants.CaptchaProviderNone,
		Scenes:   CaptchaSceneSetting{AdminLogin: true},
	}
	if err := ValidateCaptchaSetting(bad); !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("scene without provider error = %v, want ErrCaptchaConfigInvalid", err)
	}

	if err := ValidateCaptchaSetting(CaptchaSetting{Provider: constants.CaptchaProviderNone}); err != nil {
		t.Fatalf("idle none provider: %v", err)
	}
	ok := CaptchaSetting{
		Provider: constants.CaptchaProviderImage,
		Scenes:   CaptchaSceneSetting{AdminLogin: true},
	}
	if err := ValidateCaptchaSetting(ok); err != nil {
		t.Fatalf("image provider with scene: %v", err)
	}
}

func TestGetCaptchaSettingFallsBackToConfig(t *testing.T) {
	svc := NewSettingService(newMockSettingRepo())

	setting, err := svc.GetCaptchaSetting(testCaptchaConfig())
	if err != nil {
		t.Fatalf("get captcha setting: %v", err)
	}
	if setting.Provider != constants.CaptchaProviderImage || !setting.Scenes.AdminLogin {
		t.Fatalf("fallback setting = %+v", setting)
	}

	// settings 表中的值覆盖 config.yml，未知字段按默认归一化。
	if _, err := svc.Update(constants.SettingKeyCaptchaConfig, map[string]interface{}{
		"provider": "recaptcha",
		"scenes":   map[string]interface{}{"admin_login": false},
		"image":    map[string]interface{}{"length": 7, "expire_seconds": 10},
	}); err != nil {
		t.Fatalf("store captcha setting: %v", err)
	}
	stored, err := svc.GetCaptchaSetting(testCaptchaConfig())
	if err != nil {
		t.Fatalf("get stored setting: %v", err)
	}
	if stored.Provider != constants.CaptchaProviderNone {
		t.Fatalf("stored provider = %q, want none", stored.Provider)
	}
	if stored.Scenes.AdminLogin {
		t.Fatalf("stored scene = true, want false")
	}
	if stored.Image.Length != 7 || stored.Image.ExpireSeconds != 300 {
		t.Fatalf("stored image length/expire = %d/%d", stored.Image.Length, stored.Image.ExpireSeconds)
	}
}

func TestPatchCaptchaSettingPersistsAndValidates(t *testing.T) {
	svc := NewSettingService(newMockSettingRepo())
	defaultCfg := config.CaptchaConfig{}

	provider := constants.CaptchaProviderImage
	enabled := true
	length := 6
	patched, err := svc.PatchCaptchaSetting(defaultCfg, CaptchaSettingPatch{
		Provider: &provider,
		Scenes:   &CaptchaScenePatch{AdminLogin: &enabled},
		Image:    &CaptchaImagePatch{Length: &length},
	})
	if err != nil {
		t.Fatalf("patch captcha setting: %v", err)
	}
	if patched.Provider != constants.CaptchaProviderImage || !patched.Scenes.AdminLogin || patched.Image.Length != 6 {
		t.Fatalf("patched setting = %+v", patched)
	}

	reloaded, err := svc.GetCaptchaSetting(defaultCfg)
	if err != nil {
		t.Fatalf("reload setting: %v", err)
	}
	if reloaded.Provider != constants.CaptchaProviderImage || !reloaded.Scenes.AdminLogin || reloaded.Image.Length != 6 {
		t.Fatalf("reloaded setting = %+v", reloaded)
	}

	// 场景开启时不允许把提供方改回 none。
	none := constants.CaptchaProviderNone
	if _, err := svc.PatchCaptchaSetting(defaultCfg, CaptchaSettingPatch{Provider: &none}); !errors.Is(err, ErrCaptchaConfigInvalid) {
		t.Fatalf("invalid patch error = %v, want ErrCaptchaConfigInvalid", err)
	}
	kept, err := svc.GetCaptchaSetting(defaultCfg)
	if err != nil {
		t.Fatalf("reload after invalid patch: %v", err)
	}
	if kept.Provider != constants.CaptchaProviderImage || !kept.Scenes.AdminLogin {
		t.Fatalf("setting changed by rejected patch = %+v", kept)
	}

	// 空补丁只做归一化落库。
	if _, err := svc.PatchCaptchaSetting(defaultCfg, CaptchaSettingPatch{}); err != nil {
		t.Fatalf("empty patch: %v", err)
	}
}

func TestPublicCaptchaSettingHidesImageParams(t *testing.T) {
	payload := PublicCaptchaSetting(CaptchaSetting{
		Provider: constants.CaptchaProviderImage,
		Scenes:   CaptchaSceneSetting{AdminLogin: true},
		Image:    CaptchaImageSetting{Length: 6},
	})
	if payload["provider"] != constants.CaptchaProviderImage {
		t.Fatalf("public provider = %v", payload["provider"])
	}
	scenes, ok := payload["scenes"].(map[string]interface{})
	if !ok || scenes["admin_login"] != true {
		t.Fatalf("public scenes = %v", payload["scenes"])
	}
	if _, exists := payload["image"]; exists {
		t.Fatalf("public payload leaks image params")
	}
}

func TestCaptchaSettingIsSceneEnabled(t *testing.T) {
	setting := CaptchaSetting{Scenes: CaptchaSceneSetting{AdminLogin: true}}
	if !setting.IsSceneEnabled(" Admin_Login ") {
		t.Fatalf("admin_login scene not matched")
	}
	if setting.IsSceneEnabled("user_login") {
		t.Fatalf("unknown scene reported enabled")
	}
	disabled := CaptchaSetting{}
	if disabled.IsSceneEnabled(constants.CaptchaSceneAdminLogin) {
		t.Fatalf("disabled scene reported enabled")
	}
}
