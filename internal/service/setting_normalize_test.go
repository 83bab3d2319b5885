package service

import (
	"testing"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
)

type mockSettingRepo struct {
	store map[string]models.JSON
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{store: map[string]models.JSON{}}
}

func (m *mockSettingRepo) GetByKey(key string) (*models.Setting, error) {
	value, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func (m *mockSettingRepo) Upsert(key string, value models.JSON) (*models.Setting, error) {
	m.store[key] = value
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func TestUpdateSiteSettingNormalized(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	longName := make([]rune, 0, 130)
	for i := 0; i < 130; i++ {
		longName = append(longName, '名')
	}

	result, err := svc.Update(constants.SettingKeySiteConfig, map[string]interface{}{
		"brand": map[string]interface{}{
			"site_name": "  分销返利中心  ",
		},
		"contact": map[string]interface{}{
			"telegram": "  https://t.me/demo  ",
			"whatsapp": 123,
			"email":    " support@example.com ",
		},
		"scripts": []interface{}{
			map[string]interface{}{
				"name":     string(longName),
				"enabled":  "true",
				"position": "footer",
				"code":     "  console.log('hi')  ",
			},
			map[string]interface{}{
				"name":     "empty-code",
				"enabled":  true,
				"position": "head",
				"code":     "   ",
			},
			"invalid",
		},
		constants.SettingFieldSiteCurrency: " inr ",
		"extra":                            "keep",
	})
	if err != nil {
		t.Fatalf("update site config failed: %v", err)
	}

	brand, ok := result["brand"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid brand payload type: %T", result["brand"])
	}
	if brand["site_name"] != "分销返利中心" {
		t.Fatalf("unexpected brand.site_name: %v", brand["site_name"])
	}

	contact, ok := result["contact"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid contact payload type: %T", result["contact"])
	}
	if contact["telegram"] != "https://t.me/demo" {
		t.Fatalf("unexpected telegram: %v", contact["telegram"])
	}
	if contact["whatsapp"] != "" {
		t.Fatalf("unexpected whatsapp: %v", contact["whatsapp"])
	}
	if contact["email"] != "support@example.com" {
		t.Fatalf("unexpected email: %v", contact["email"])
	}

	scripts, ok := result["scripts"].([]interface{})
	if !ok {
		t.Fatalf("invalid scripts payload type: %T", result["scripts"])
	}
	if len(scripts) != 1 {
		t.Fatalf("unexpected scripts size: %d", len(scripts))
	}
	script, ok := scripts[0].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid scripts[0] payload type: %T", scripts[0])
	}
	if script["code"] != "console.log('hi')" {
		t.Fatalf("unexpected script code: %v", script["code"])
	}
	if script["enabled"] != true {
		t.Fatalf("unexpected script enabled: %v", script["enabled"])
	}
	if script["position"] != "head" {
		t.Fatalf("unexpected script position: %v", script["position"])
	}
	name, ok := script["name"].(string)
	if !ok {
		t.Fatalf("invalid script name type: %T", script["name"])
	}
	if len([]rune(name)) != 120 {
		t.Fatalf("unexpected script name rune size: %d", len([]rune(name)))
	}

	if result[constants.SettingFieldSiteCurrency] != "INR" {
		t.Fatalf("unexpected currency: %v", result[constants.SettingFieldSiteCurrency])
	}
	if result["extra"] != "keep" {
		t.Fatalf("unexpected extra field: %v", result["extra"])
	}
}

func TestUpdateSiteSettingNormalizedDefaults(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	result, err := svc.Update(constants.SettingKeySiteConfig, map[string]interface{}{
		constants.SettingFieldSiteCurrency: "rupees",
	})
	if err != nil {
		t.Fatalf("update site config failed: %v", err)
	}

	brand, ok := result["brand"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid brand payload type: %T", result["brand"])
	}
	if brand["site_name"] != "" {
		t.Fatalf("unexpected default brand.site_name: %v", brand["site_name"])
	}

	contact, ok := result["contact"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid contact payload type: %T", result["contact"])
	}
	if contact["telegram"] != "" || contact["whatsapp"] != "" || contact["email"] != "" {
		t.Fatalf("unexpected default contact payload: %+v", contact)
	}

	scripts, ok := result["scripts"].([]interface{})
	if !ok {
		t.Fatalf("invalid scripts payload type: %T", result["scripts"])
	}
	if len(scripts) != 0 {
		t.Fatalf("unexpected default scripts size: %d", len(scripts))
	}

	if result[constants.SettingFieldSiteCurrency] != constants.SiteCurrencyDefault {
		t.Fatalf("unexpected default currency: %v", result[constants.SettingFieldSiteCurrency])
	}
}

func TestUpdateUnknownKeyPassthrough(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	result, err := svc.Update("custom_config", map[string]interface{}{
		"anything": "goes",
	})
	if err != nil {
		t.Fatalf("update custom config failed: %v", err)
	}
	if result["anything"] != "goes" {
		t.Fatalf("unexpected passthrough payload: %v", result["anything"])
	}
}

func TestGetSiteCurrencyFallsBackToDefault(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	currency, err := svc.GetSiteCurrency()
	if err != nil {
		t.Fatalf("get site currency failed: %v", err)
	}
	if currency != constants.SiteCurrencyDefault {
		t.Fatalf("currency want %s got %s", constants.SiteCurrencyDefault, currency)
	}

	if _, err := svc.Update(constants.SettingKeySiteConfig, map[string]interface{}{
		constants.SettingFieldSiteCurrency: "usd",
	}); err != nil {
		t.Fatalf("update site config failed: %v", err)
	}

	currency, err = svc.GetSiteCurrency()
	if err != nil {
		t.Fatalf("get site currency failed: %v", err)
	}
	if currency != "USD" {
		t.Fatalf("currency want USD got %s", currency)
	}
}
