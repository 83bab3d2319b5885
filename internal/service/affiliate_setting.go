package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
)

const (
	affiliateTierPercentMin        = 0
	affiliateTierPercentMax        = 100
	affiliateMinPayoutAmountMin    = 0
	affiliateClickDedupeMinutesMin = 0
	affiliateClickDedupeMinutesMax = 1440
)

// AffiliateTierEntry 佣金阶梯配置项
type AffiliateTierEntry struct {
	MinMonthlySales float64 `json:"min_monthly_sales"`
	Percent         float64 `json:"percent"`
}

// AffiliateSetting 推广返利配置
type AffiliateSetting struct {
	Enabled                 bool                 `json:"enabled"`
	DefaultTiers            []AffiliateTierEntry `json:"default_tiers"`
	MinPayoutAmount         float64              `json:"min_payout_amount"`
	AllowCurrentMonthPayout bool                 `json:"allow_current_month_payout"`
	ClickDedupeMinutes      int                  `json:"click_dedupe_minutes"`
}

// AffiliateDefaultSetting 默认推广返利配置
func AffiliateDefaultSetting() AffiliateSetting {
	return NormalizeAffiliateSetting(AffiliateSetting{
		Enabled:                 false,
		DefaultTiers:            []AffiliateTierEntry{},
		MinPayoutAmount:         0,
		AllowCurrentMonthPayout: false,
		ClickDedupeMinutes:      10,
	})
}

// NormalizeAffiliateSetting 归一化推广返利配置
func NormalizeAffiliateSetting(setting AffiliateSetting) AffiliateSetting {
	setting.DefaultTiers = normalizeAffiliateTierEntries(setting.DefaultTiers)

	setting.MinPayoutAmount = roundAffiliateDecimal(setting.MinPayoutAmount)
	if setting.MinPayoutAmount < affiliateMinPayoutAmountMin {
		setting.MinPayoutAmount = affiliateMinPayoutAmountMin
	}

	if setting.ClickDedupeMinutes < affiliateClickDedupeMinutesMin {
		setting.ClickDedupeMinutes = affiliateClickDedupeMinutesMin
	}
	if setting.ClickDedupeMinutes > affiliateClickDedupeMinutesMax {
		setting.ClickDedupeMinutes = affiliateClickDedupeMinutesMax
	}
	return setting
}

// ValidateAffiliateSetting 校验推广返利配置
func ValidateAffiliateSetting(setting AffiliateSetting) error {
	normalized := NormalizeAffiliateSetting(setting)
	if len(normalized.DefaultTiers) > tierTableMaxEntries {
		return fmt.Errorf("%w: 阶梯数量不能超过 %d", ErrAffiliateConfigInvalid, tierTableMaxEntries)
	}
	for _, tier := range normalized.DefaultTiers {
		if tier.Percent < affiliateTierPercentMin || tier.Percent > affiliateTierPercentMax {
			return fmt.Errorf("%w: 佣金比例必须在 0-100 之间", ErrAffiliateConfigInvalid)
		}
		if tier.MinMonthlySales < 0 {
			return fmt.Errorf("%w: 阶梯门槛不能小于 0", ErrAffiliateConfigInvalid)
		}
	}
	if normalized.MinPayoutAmount < affiliateMinPayoutAmountMin {
		return fmt.Errorf("%w: 最低提现金额不能小于 0", ErrAffiliateConfigInvalid)
	}
	return nil
}

// AffiliateSettingToMap 将推广返利配置转换为 settings 存储结构
func AffiliateSettingToMap(setting AffiliateSetting) map[string]interface{} {
	normalized := NormalizeAffiliateSetting(setting)
	tiers := make([]map[string]interface{}, 0, len(normalized.DefaultTiers))
	for _, tier := range normalized.DefaultTiers {
		tiers = append(tiers, map[string]interface{}{
			"min_monthly_sales": tier.MinMonthlySales,
			"percent":           tier.Percent,
		})
	}
	return map[string]interface{}{
		"enabled":                    normalized.Enabled,
		"default_tiers":              tiers,
		"min_payout_amount":          normalized.MinPayoutAmount,
		"allow_current_month_payout": normalized.AllowCurrentMonthPayout,
		"click_dedupe_minutes":       normalized.ClickDedupeMinutes,
	}
}

func affiliateSettingFromJSON(raw models.JSON, fallback AffiliateSetting) AffiliateSetting {
	result := fallback

	if enabledRaw, ok := raw["enabled"]; ok {
		result.Enabled = parseSettingBool(enabledRaw)
	}
	if tiersRaw, ok := raw["default_tiers"]; ok {
		result.DefaultTiers = parseSettingTierEntries(tiersRaw)
	}
	if minPayoutRaw, ok := raw["min_payout_amount"]; ok {
		if parsed, err := parseSettingFloat(minPayoutRaw); err == nil {
			result.MinPayoutAmount = parsed
		}
	}
	if allowRaw, ok := raw["allow_current_month_payout"]; ok {
		result.AllowCurrentMonthPayout = parseSettingBool(allowRaw)
	}
	if dedupeRaw, ok := raw["click_dedupe_minutes"]; ok {
		if parsed, err := parseSettingInt(dedupeRaw); err == nil {
			result.ClickDedupeMinutes = parsed
		}
	}

	return NormalizeAffiliateSetting(result)
}

func normalizeAffiliateSettingMap(value map[string]interface{}) models.JSON {
	setting := affiliateSettingFromJSON(models.JSON(value), AffiliateDefaultSetting())
	return models.JSON(AffiliateSettingToMap(setting))
}

// GetAffiliateSetting 获取推广返利设置（优先 settings，空时回退默认）
func (s *SettingService) GetAffiliateSetting() (AffiliateSetting, error) {
	fallback := AffiliateDefaultSetting()
	if s == nil {
		return fallback, nil
	}

	value, err := s.GetByKey(constants.SettingKeyAffiliateConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return affiliateSettingFromJSON(value, fallback), nil
}

// UpdateAffiliateSetting 更新推广返利设置
func (s *SettingService) UpdateAffiliateSetting(setting AffiliateSetting) (AffiliateSetting, error) {
	normalized := NormalizeAffiliateSetting(setting)
	if err := ValidateAffiliateSetting(normalized); err != nil {
		return AffiliateDefaultSetting(), err
	}
	if _, err := s.Update(constants.SettingKeyAffiliateConfig, AffiliateSettingToMap(normalized)); err != nil {
		return AffiliateDefaultSetting(), err
	}
	return normalized, nil
}

// affiliateSettingTierTable 将配置中的默认阶梯转换为佣金计算使用的阶梯表。
func affiliateSettingTierTable(setting AffiliateSetting) models.TierTable {
	if len(setting.DefaultTiers) == 0 {
		return models.TierTable{}
	}
	table := make(models.TierTable, 0, len(setting.DefaultTiers))
	for _, tier := range setting.DefaultTiers {
		table = append(table, models.CommissionTier{
			MinMonthlySales: models.NewMoneyFromDecimal(decimal.NewFromFloat(tier.MinMonthlySales).Round(2)),
			Percent:         models.NewMoneyFromDecimal(decimal.NewFromFloat(tier.Percent).Round(2)),
		})
	}
	return table
}

func parseSettingFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.ParseFloat(trimmed, 64)
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}

func roundAffiliateDecimal(value float64) float64 {
	return math.Round(value*100) / 100
}

func normalizeAffiliateTierEntries(entries []AffiliateTierEntry) []AffiliateTierEntry {
	if len(entries) == 0 {
		return []AffiliateTierEntry{}
	}

	result := make([]AffiliateTierEntry, 0, len(entries))
	seen := make(map[float64]struct{}, len(entries))
	for _, entry := range entries {
		threshold := roundAffiliateDecimal(entry.MinMonthlySales)
		percent := roundAffiliateDecimal(entry.Percent)
		if threshold < 0 {
			threshold = 0
		}
		if percent < affiliateTierPercentMin {
			percent = affiliateTierPercentMin
		}
		if percent > affiliateTierPercentMax {
			percent = affiliateTierPercentMax
		}
		if _, ok := seen[threshold]; ok {
			continue
		}
		seen[threshold] = struct{}{}
		result = append(result, AffiliateTierEntry{
			MinMonthlySales: threshold,
			Percent:         percent,
		})
		if len(result) >= tierTableMaxEntries {
			break
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].MinMonthlySales < result[j].MinMonthlySales
	})
	return result
}

func parseSettingTierEntries(raw interface{}) []AffiliateTierEntry {
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []map[string]interface{}:
		items = make([]interface{}, 0, len(v))
		for _, entry := range v {
			items = append(items, entry)
		}
	default:
		return nil
	}
	result := make([]AffiliateTierEntry, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		tier := AffiliateTierEntry{}
		if thresholdRaw, ok := entry["min_monthly_sales"]; ok {
			if parsed, err := parseSettingFloat(thresholdRaw); err == nil {
				tier.MinMonthlySales = parsed
			}
		}
		if percentRaw, ok := entry["percent"]; ok {
			if parsed, err := parseSettingFloat(percentRaw); err == nil {
				tier.Percent = parsed
			}
		}
		result = append(result, tier)
	}
	return result
}
