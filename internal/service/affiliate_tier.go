package service

import (
	"fmt"
	"sort"

	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
)

const tierTableMaxEntries = 20

// resolveCommissionPercent 根据月累计销售额匹配佣金比例。
// 取门槛不超过 priorMonthSales 的最高档位，无匹配档位时返回 0。
func resolveCommissionPercent(tiers models.TierTable, priorMonthSales decimal.Decimal) decimal.Decimal {
	percent := decimal.Zero
	best := decimal.NewFromInt(-1)
	for _, tier := range tiers {
		threshold := tier.MinMonthlySales.Decimal
		if threshold.LessThan(decimal.Zero) {
			continue
		}
		if priorMonthSales.GreaterThanOrEqual(threshold) && threshold.GreaterThanOrEqual(best) {
			best = threshold
			percent = tier.Percent.Decimal
		}
	}
	return percent
}

// normalizeTierTable 清洗佣金阶梯配置：按门槛升序排序并校验取值范围。
func normalizeTierTable(tiers models.TierTable) (models.TierTable, error) {
	if len(tiers) == 0 {
		return models.TierTable{}, nil
	}
	if len(tiers) > tierTableMaxEntries {
		return nil, fmt.Errorf("%w: 阶梯数量不能超过 %d", ErrTierTableInvalid, tierTableMaxEntries)
	}

	result := make(models.TierTable, 0, len(tiers))
	for _, tier := range tiers {
		threshold := tier.MinMonthlySales.Decimal.Round(2)
		percent := tier.Percent.Decimal.Round(2)
		if threshold.LessThan(decimal.Zero) {
			return nil, fmt.Errorf("%w: 阶梯门槛不能小于 0", ErrTierTableInvalid)
		}
		if percent.LessThan(decimal.Zero) || percent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("%w: 佣金比例必须在 0-100 之间", ErrTierTableInvalid)
		}
		result = append(result, models.CommissionTier{
			MinMonthlySales: models.NewMoneyFromDecimal(threshold),
			Percent:         models.NewMoneyFromDecimal(percent),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].MinMonthlySales.Decimal.LessThan(result[j].MinMonthlySales.Decimal)
	})
	for i := 1; i < len(result); i++ {
		if result[i].MinMonthlySales.Decimal.Equal(result[i-1].MinMonthlySales.Decimal) {
			return nil, fmt.Errorf("%w: 阶梯门槛不能重复", ErrTierTableInvalid)
		}
	}
	return result, nil
}
