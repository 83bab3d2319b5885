package service

import (
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
)

// DashboardAlertSetting 仪表盘告警规则配置
type DashboardAlertSetting struct {
	PendingAttributionsThreshold int64 `json:"pending_attributions_threshold"`
	PayoutBacklogThreshold       int64 `json:"payout_backlog_threshold"`
	OpenFlagsThreshold           int64 `json:"open_flags_threshold"`
	ReversedOrdersThreshold      int64 `json:"reversed_orders_threshold"`
}

// DashboardRankingSetting 仪表盘排行规则配置
type DashboardRankingSetting struct {
	TopAffiliatesLimit int `json:"top_affiliates_limit"`
	TopReferrersLimit  int `json:"top_referrers_limit"`
}

// DashboardSetting 仪表盘配置
type DashboardSetting struct {
	Alert   DashboardAlertSetting   `json:"alert"`
	Ranking DashboardRankingSetting `json:"ranking"`
}

// DashboardDefaultSetting 默认仪表盘配置
func DashboardDefaultSetting() DashboardSetting {
	return NormalizeDashboardSetting(DashboardSetting{
		Alert: DashboardAlertSetting{
			PendingAttributionsThreshold: 50,
			PayoutBacklogThreshold:       10,
			OpenFlagsThreshold:           1,
			ReversedOrdersThreshold:      10,
		},
		Ranking: DashboardRankingSetting{
			TopAffiliatesLimit: 5,
			TopReferrersLimit:  5,
		},
	})
}

// NormalizeDashboardSetting 归一化仪表盘配置
func NormalizeDashboardSetting(setting DashboardSetting) DashboardSetting {
	if setting.Alert.PendingAttributionsThreshold < 1 || setting.Alert.PendingAttributionsThreshold > 100000 {
		setting.Alert.PendingAttributionsThreshold = 50
	}
	if setting.Alert.PayoutBacklogThreshold < 1 || setting.Alert.PayoutBacklogThreshold > 100000 {
		setting.Alert.PayoutBacklogThreshold = 10
	}
	if setting.Alert.OpenFlagsThreshold < 1 || setting.Alert.OpenFlagsThreshold > 10000 {
		setting.Alert.OpenFlagsThreshold = 1
	}
	if setting.Alert.ReversedOrdersThreshold < 1 || setting.Alert.ReversedOrdersThreshold > 100000 {
		setting.Alert.ReversedOrdersThreshold = 10
	}

	if setting.Ranking.TopAffiliatesLimit < 1 || setting.Ranking.TopAffiliatesLimit > 20 {
		setting.Ranking.TopAffiliatesLimit = 5
	}
	if setting.Ranking.TopReferrersLimit < 1 || setting.Ranking.TopReferrersLimit > 20 {
		setting.Ranking.TopReferrersLimit = 5
	}

	return setting
}

// DashboardSettingToMap 将仪表盘配置转换为设置存储结构
func DashboardSettingToMap(setting DashboardSetting) map[string]interface{} {
	normalized := NormalizeDashboardSetting(setting)
	return map[string]interface{}{
		"alert": map[string]interface{}{
			"pending_attributions_threshold": normalized.Alert.PendingAttributionsThreshold,
			"payout_backlog_threshold":       normalized.Alert.PayoutBacklogThreshold,
			"open_flags_threshold":           normalized.Alert.OpenFlagsThreshold,
			"reversed_orders_threshold":      normalized.Alert.ReversedOrdersThreshold,
		},
		"ranking": map[string]interface{}{
			"top_affiliates_limit": normalized.Ranking.TopAffiliatesLimit,
			"top_referrers_limit":  normalized.Ranking.TopReferrersLimit,
		},
	}
}

// normalizeDashboardSettingMap 归一化仪表盘配置结构。
func normalizeDashboardSettingMap(value map[string]interface{}) models.JSON {
	setting := dashboardSettingFromJSON(models.JSON(value), DashboardDefaultSetting())
	return models.JSON(DashboardSettingToMap(setting))
}

func dashboardSettingFromJSON(raw models.JSON, fallback DashboardSetting) DashboardSetting {
	result := fallback

	alertRaw, ok := raw["alert"].(map[string]interface{})
	if ok {
		if value, exists := alertRaw["pending_attributions_threshold"]; exists {
			if parsed, err := parseSettingInt(value); err == nil {
				result.Alert.PendingAttributionsThreshold = int64(parsed)
			}
		}
		if value, exists := alertRaw["payout_backlog_threshold"]; exists {
			if parsed, err := parseSettingInt(value); err == nil {
				result.Alert.PayoutBacklogThreshold = int64(parsed)
			}
		}
		if value, exists := alertRaw["open_flags_threshold"]; exists {
			if parsed, err := parseSettingInt(value); err == nil {
				result.Alert.OpenFlagsThreshold = int64(parsed)
			}
		}
		if value, exists := alertRaw["reversed_orders_threshold"]; exists {
			if parsed, err := parseSettingInt(value); err == nil {
				result.Alert.ReversedOrdersThreshold = int64(parsed)
			}
		}
	}

	rankingRaw, ok := raw["ranking"].(map[string]interface{})
	if ok {
		if value, exists := rankingRaw["top_affiliates_limit"]; exists {
			if parsed, err := parseSettingInt(value); err == nil {
				result.Ranking.TopAffiliatesLimit = parsed
			}
		}
		if value, exists := rankingRaw["top_referrers_limit"]; exists {
			if parsed, err := parseSettingInt(value); err == nil {
				result.Ranking.TopReferrersLimit = parsed
			}
		}
	}

	return NormalizeDashboardSetting(result)
}

// GetDashboardSetting 获取仪表盘设置（优先 settings，空时回退默认）
func (s *SettingService) GetDashboardSetting() (DashboardSetting, error) {
	fallback := DashboardDefaultSetting()
	if s == nil {
		return fallback, nil
	}
	value, err := s.GetByKey(constants.SettingKeyDashboardConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return dashboardSettingFromJSON(value, fallback), nil
}
