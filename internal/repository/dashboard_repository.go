package repository

import (
	"fmt"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"

	"gorm.io/gorm"
)

// DashboardRepository 仪表盘聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type DashboardRepository interface {
	GetOverview(startAt, endAt time.Time) (DashboardOverviewRow, error)
	GetClickTrends(startAt, endAt time.Time) ([]DashboardClickTrendRow, error)
	GetAttributionTrends(startAt, endAt time.Time) ([]DashboardAttributionTrendRow, error)
	GetBacklogStats() (DashboardBacklogRow, error)
	GetTopAffiliates(startAt, endAt time.Time, limit int) ([]DashboardAffiliateRankingRow, error)
	GetTopReferrers(startAt, endAt time.Time, limit int) ([]DashboardReferrerRankingRow, error)
}

// DashboardOverviewRow 仪表盘总览原始统计结果
type DashboardOverviewRow struct {
	ClicksTotal          int64
	NewUsers             int64
	NewAffiliates        int64
	AttributionsTotal    int64
	AttributionsPending  int64
	AttributionsReversed int64
	SalesAttributed      float64
	CommissionAccrued    float64
	PayoutsPaid          int64
	PayoutAmountPaid     float64
}

// DashboardClickTrendRow 点击趋势统计
type DashboardClickTrendRow struct {
	Day    string
	Clicks int64
}

// DashboardAttributionTrendRow 佣金流水趋势统计
type DashboardAttributionTrendRow struct {
	Day               string
	AttributionsTotal int64
	ReversedOrders    int64
	SalesAttributed   float64
	CommissionAccrued float64
}

// DashboardBacklogRow 待处理积压统计
type DashboardBacklogRow struct {
	PendingAttributions     int64
	PayoutsRequested        int64
	PayoutsProcessing       int64
	OpenReconciliationFlags int64
}

// DashboardAffiliateRankingRow 推广账户排行原始行
type DashboardAffiliateRankingRow struct {
	AffiliateID      uint
	AffiliateCode    string
	DisplayName      string
	Orders           int64
	SalesAmount      float64
	CommissionAmount float64
}

// DashboardReferrerRankingRow 引流来源排行原始行
type DashboardReferrerRankingRow struct {
	Referrer string
	Clicks   int64
}

// GormDashboardRepository GORM 仪表盘聚合实现
type GormDashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建仪表盘仓库
func NewDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: db}
}

// accruedStatuses 已入账流水状态（已确认与已锁定）
func accruedStatuses() []string {
	return []string{
		constants.AttributionStatusApproved,
		constants.AttributionStatusLocked,
	}
}

// settledLedgerCondition 结算口径条件，占位参数为流水类型与已入账状态集。
// 流水只在其订单的原始流水已入账且未被原地冲正时计入，
// 整单冲正的订单连同其部分冲正负数一并出账。
const settledLedgerCondition = "EXISTS (SELECT 1 FROM affiliate_attributions o WHERE o.order_id = affiliate_attributions.order_id AND o.kind = ? AND o.approved_at IS NOT NULL AND o.status IN ?)"

func (r *GormDashboardRepository) originalBase(startAt, endAt time.Time) *gorm.DB {
	return r.db.Model(&models.AffiliateAttribution{}).
		Where("kind = ? AND created_at >= ? AND created_at < ?", constants.AttributionKindOriginal, startAt, endAt)
}

// GetOverview 获取总览统计
func (r *GormDashboardRepository) GetOverview(startAt, endAt time.Time) (DashboardOverviewRow, error) {
	result := DashboardOverviewRow{}

	if err := r.db.Model(&models.AffiliateClick{}).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Count(&result.ClicksTotal).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.User{}).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Count(&result.NewUsers).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Affiliate{}).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Count(&result.NewAffiliates).Error; err != nil {
		return result, err
	}

	if err := r.originalBase(startAt, endAt).Count(&result.AttributionsTotal).Error; err != nil {
		return result, err
	}
	if err := r.originalBase(startAt, endAt).
		Where("status = ?", constants.AttributionStatusPending).
		Count(&result.AttributionsPending).Error; err != nil {
		return result, err
	}
	if err := r.originalBase(startAt, endAt).
		Where("status = ?", constants.AttributionStatusReversed).
		Count(&result.AttributionsReversed).Error; err != nil {
		return result, err
	}

	if err := r.originalBase(startAt, endAt).
		Where("status <> ?", constants.AttributionStatusReversed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&result.SalesAttributed).Error; err != nil {
		return result, err
	}

	// 净佣金口径与结算口径一致：关账锁定的待确认流水从未入账不计，
	// 整单冲正的订单（含其部分冲正负数）也不计。
	if err := r.db.Model(&models.AffiliateAttribution{}).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Where(settledLedgerCondition, constants.AttributionKindOriginal, accruedStatuses()).
		Select("COALESCE(SUM(commission_amount), 0)").
		Scan(&result.CommissionAccrued).Error; err != nil {
		return result, err
	}

	paidBase := func() *gorm.DB {
		return r.db.Model(&models.AffiliatePayout{}).
			Where("status = ? AND paid_at IS NOT NULL AND paid_at >= ? AND paid_at < ?",
				constants.PayoutStatusPaid, startAt, endAt)
	}
	if err := paidBase().Count(&result.PayoutsPaid).Error; err != nil {
		return result, err
	}
	if err := paidBase().
		Select("COALESCE(SUM(amount), 0)").
		Scan(&result.PayoutAmountPaid).Error; err != nil {
		return result, err
	}

	return result, nil
}

// GetClickTrends 获取点击趋势
func (r *GormDashboardRepository) GetClickTrends(startAt, endAt time.Time) ([]DashboardClickTrendRow, error) {
	type countRow struct {
		Day   string
		Total int64
	}

	dayExpr := "CAST(date(created_at) AS TEXT)"
	var rows []countRow
	if err := r.db.Model(&models.AffiliateClick{}).
		Select(fmt.Sprintf("%s as day, COUNT(*) as total", dayExpr)).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Group(dayExpr).
		Order("day asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]DashboardClickTrendRow, 0, len(rows))
	for _, item := range rows {
		result = append(result, DashboardClickTrendRow{Day: item.Day, Clicks: item.Total})
	}
	return result, nil
}

// GetAttributionTrends 获取佣金流水趋势
func (r *GormDashboardRepository) GetAttributionTrends(startAt, endAt time.Time) ([]DashboardAttributionTrendRow, error) {
	type countRow struct {
		Day   string
		Total int64
	}
	type amountRow struct {
		Day   string
		Total float64
	}

	dayExpr := "CAST(date(created_at) AS TEXT)"

	var totalRows []countRow
	if err := r.originalBase(startAt, endAt).
		Select(fmt.Sprintf("%s as day, COUNT(*) as total", dayExpr)).
		Group(dayExpr).
		Order("day asc").
		Scan(&totalRows).Error; err != nil {
		return nil, err
	}

	var reversedRows []countRow
	if err := r.originalBase(startAt, endAt).
		Select(fmt.Sprintf("%s as day, COUNT(*) as total", dayExpr)).
		Where("status = ?", constants.AttributionStatusReversed).
		Group(dayExpr).
		Order("day asc").
		Scan(&reversedRows).Error; err != nil {
		return nil, err
	}

	var salesRows []amountRow
	if err := r.originalBase(startAt, endAt).
		Select(fmt.Sprintf("%s as day, COALESCE(SUM(amount), 0) as total", dayExpr)).
		Where("status <> ?", constants.AttributionStatusReversed).
		Group(dayExpr).
		Order("day asc").
		Scan(&salesRows).Error; err != nil {
		return nil, err
	}

	var commissionRows []amountRow
	if err := r.db.Model(&models.AffiliateAttribution{}).
		Select(fmt.Sprintf("%s as day, COALESCE(SUM(commission_amount), 0) as total", dayExpr)).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Where(settledLedgerCondition, constants.AttributionKindOriginal, accruedStatuses()).
		Group(dayExpr).
		Order("day asc").
		Scan(&commissionRows).Error; err != nil {
		return nil, err
	}

	reversedMap := make(map[string]int64, len(reversedRows))
	for _, item := range reversedRows {
		reversedMap[item.Day] = item.Total
	}
	salesMap := make(map[string]float64, len(salesRows))
	for _, item := range salesRows {
		salesMap[item.Day] = item.Total
	}
	commissionMap := make(map[string]float64, len(commissionRows))
	for _, item := range commissionRows {
		commissionMap[item.Day] = item.Total
	}

	seen := make(map[string]struct{}, len(totalRows)+len(commissionRows))
	result := make([]DashboardAttributionTrendRow, 0)
	totalMap := make(map[string]int64, len(totalRows))
	for _, item := range totalRows {
		totalMap[item.Day] = item.Total
	}
	push := func(day string) {
		if day == "" {
			return
		}
		if _, ok := seen[day]; ok {
			return
		}
		seen[day] = struct{}{}
		result = append(result, DashboardAttributionTrendRow{
			Day:               day,
			AttributionsTotal: totalMap[day],
			ReversedOrders:    reversedMap[day],
			SalesAttributed:   salesMap[day],
			CommissionAccrued: commissionMap[day],
		})
	}
	for _, item := range totalRows {
		push(item.Day)
	}
	for _, item := range commissionRows {
		push(item.Day)
	}

	return result, nil
}

// GetBacklogStats 获取待处理积压统计
func (r *GormDashboardRepository) GetBacklogStats() (DashboardBacklogRow, error) {
	result := DashboardBacklogRow{}

	if err := r.db.Model(&models.AffiliateAttribution{}).
		Where("kind = ? AND status = ?", constants.AttributionKindOriginal, constants.AttributionStatusPending).
		Count(&result.PendingAttributions).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.AffiliatePayout{}).
		Where("status = ?", constants.PayoutStatusRequested).
		Count(&result.PayoutsRequested).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.AffiliatePayout{}).
		Where("status = ?", constants.PayoutStatusProcessing).
		Count(&result.PayoutsProcessing).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.ReconciliationFlag{}).
		Where("status = ?", constants.ReconciliationStatusOpen).
		Count(&result.OpenReconciliationFlags).Error; err != nil {
		return result, err
	}

	return result, nil
}

// GetTopAffiliates 获取推广账户排行榜
func (r *GormDashboardRepository) GetTopAffiliates(startAt, endAt time.Time, limit int) ([]DashboardAffiliateRankingRow, error) {
	if limit <= 0 {
		limit = 5
	}
	rows := make([]DashboardAffiliateRankingRow, 0)
	if err := r.db.Model(&models.AffiliateAttribution{}).
		Select(`
			affiliate_attributions.affiliate_id as affiliate_id,
			COALESCE(affiliates.affiliate_code, '') as affiliate_code,
			COALESCE(users.display_name, '') as display_name,
			SUM(CASE WHEN affiliate_attributions.kind = ? AND affiliate_attributions.status <> ? THEN 1 ELSE 0 END) as orders,
			COALESCE(SUM(CASE WHEN affiliate_attributions.kind = ? AND affiliate_attributions.status <> ? THEN affiliate_attributions.amount ELSE 0 END), 0) as sales_amount,
			COALESCE(SUM(CASE WHEN `+settledLedgerCondition+` THEN affiliate_attributions.commission_amount ELSE 0 END), 0) as commission_amount
		`,
			constants.AttributionKindOriginal, constants.AttributionStatusReversed,
			constants.AttributionKindOriginal, constants.AttributionStatusReversed,
			constants.AttributionKindOriginal, accruedStatuses()).
		Joins("LEFT JOIN affiliates ON affiliates.id = affiliate_attributions.affiliate_id").
		Joins("LEFT JOIN users ON users.id = affiliates.user_id").
		Where("affiliate_attributions.created_at >= ? AND affiliate_attributions.created_at < ?", startAt, endAt).
		Group("affiliate_attributions.affiliate_id, affiliates.affiliate_code, users.display_name").
		Order("commission_amount DESC, sales_amount DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetTopReferrers 获取引流来源排行榜
func (r *GormDashboardRepository) GetTopReferrers(startAt, endAt time.Time, limit int) ([]DashboardReferrerRankingRow, error) {
	if limit <= 0 {
		limit = 5
	}
	rows := make([]DashboardReferrerRankingRow, 0)
	if err := r.db.Model(&models.AffiliateClick{}).
		Select("referrer, COUNT(*) as clicks").
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Group("referrer").
		Order("clicks DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
