package service

import (
	"testing"

	"github.com/fenxiao-next/internal/constants"
)

func TestUpdateDashboardSettingNormalized(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	input := map[string]interface{}{
		"alert": map[string]interface{}{
			"pending_attributions_threshold": 200001,
			"payout_backlog_threshold":       -2,
			"open_flags_threshold":           0,
			"reversed_orders_threshold":      "200001",
		},
		"ranking": map[string]interface{}{
			"top_affiliates_limit": 999,
			"top_referrers_limit":  -1,
		},
	}

	result, err := svc.Update(constants.SettingKeyDashboardConfig, input)
	if err != nil {
		t.Fatalf("update dashboard config failed: %v", err)
	}

	alert, ok := result["alert"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid alert payload type: %T", result["alert"])
	}
	ranking, ok := result["ranking"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid ranking payload type: %T", result["ranking"])
	}

	assertSettingIntValue(t, alert, "pending_attributions_threshold", 50)
	assertSettingIntValue(t, alert, "payout_backlog_threshold", 10)
	assertSettingIntValue(t, alert, "open_flags_threshold", 1)
	assertSettingIntValue(t, alert, "reversed_orders_threshold", 10)
	assertSettingIntValue(t, ranking, "top_affiliates_limit", 5)
	assertSettingIntValue(t, ranking, "top_referrers_limit", 5)
}

func TestUpdateDashboardSettingKeepsValidValues(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	input := map[string]interface{}{
		"alert": map[string]interface{}{
			"pending_attributions_threshold": 80,
			"payout_backlog_threshold":       3,
			"open_flags_threshold":           2,
			"reversed_orders_threshold":      25,
		},
		"ranking": map[string]interface{}{
			"top_affiliates_limit": 10,
			"top_referrers_limit":  8,
		},
	}

	result, err := svc.Update(constants.SettingKeyDashboardConfig, input)
	if err != nil {
		t.Fatalf("update dashboard config failed: %v", err)
	}

	alert, ok := result["alert"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid alert payload type: %T", result["alert"])
	}
	ranking, ok := result["ranking"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid ranking payload type: %T", result["ranking"])
	}

	assertSettingIntValue(t, alert, "pending_attributions_threshold", 80)
	assertSettingIntValue(t, alert, "payout_backlog_threshold", 3)
	assertSettingIntValue(t, alert, "open_flags_threshold", 2)
	assertSettingIntValue(t, alert, "reversed_orders_threshold", 25)
	assertSettingIntValue(t, ranking, "top_affiliates_limit", 10)
	assertSettingIntValue(t, ranking, "top_referrers_limit", 8)

	setting, err := svc.GetDashboardSetting()
	if err != nil {
		t.Fatalf("get dashboard setting failed: %v", err)
	}
	if setting.Alert.PendingAttributionsThreshold != 80 {
		t.Fatalf("pending attributions threshold want 80 got %d", setting.Alert.PendingAttributionsThreshold)
	}
	if setting.Ranking.TopReferrersLimit != 8 {
		t.Fatalf("top referrers limit want 8 got %d", setting.Ranking.TopReferrersLimit)
	}
}

func TestUpdateDashboardSettingFallbackWhenMissing(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	result, err := svc.Update(constants.SettingKeyDashboardConfig, map[string]interface{}{})
	if err != nil {
		t.Fatalf("update dashboard config failed: %v", err)
	}

	alert, ok := result["alert"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid alert payload type: %T", result["alert"])
	}
	ranking, ok := result["ranking"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid ranking payload type: %T", result["ranking"])
	}

	assertSettingIntValue(t, alert, "pending_attributions_threshold", 50)
	assertSettingIntValue(t, alert, "payout_backlog_threshold", 10)
	assertSettingIntValue(t, alert, "open_flags_threshold", 1)
	assertSettingIntValue(t, alert, "reversed_orders_threshold", 10)
	assertSettingIntValue(t, ranking, "top_affiliates_limit", 5)
	assertSettingIntValue(t, ranking, "top_referrers_limit", 5)
}

func assertSettingIntValue(t *testing.T, data map[string]interface{}, key string, expected int) {
	t.Helper()
	value, exists := data[key]
	if !exists {
		t.Fatalf("missing key %s", key)
	}
	parsed, err := parseSettingInt(value)
	if err != nil {
		t.Fatalf("parse key %s failed: %v", key, err)
	}
	if parsed != expected {
		t.Fatalf("unexpected value for %s, expected %d got %d", key, expected, parsed)
	}
}
