package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AttributionRepository 佣金流水数据访问接口
type AttributionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AttributionRepository

	Create(row *models.AffiliateAttribution) error
	GetByID(id uint) (*models.AffiliateAttribution, error)
	GetOriginalByOrderID(orderID uint) (*models.AffiliateAttribution, error)
	ListByOrderID(orderID uint) ([]models.AffiliateAttribution, error)
	List(filter AttributionListFilter) ([]models.AffiliateAttribution, int64, error)

	PromoteToApproved(id uint, now time.Time) (bool, error)
	MarkReversed(id uint, reason string, now time.Time) (bool, error)
	LockMonth(monthKey string, now time.Time) (int64, error)
	ListMonthAggregates(monthKey string) ([]AffiliateMonthAggregate, error)
	SumAccruedCommission(affiliateID uint, monthKey string) (decimal.Decimal, error)
	SumLedgerByMonth(affiliateID uint, monthKey string) (decimal.Decimal, error)
}

// GormAttributionRepository GORM 佣金流水仓储
type GormAttributionRepository struct {
	db *gorm.DB
}

// NewAttributionRepository 创建佣金流水仓储
func NewAttributionRepository(db *gorm.DB) *GormAttributionRepository {
	return &GormAttributionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAttributionRepository) WithTx(tx *gorm.DB) AttributionRepository {
	if tx == nil {
		return r
	}
	return &GormAttributionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAttributionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 追加佣金流水
func (r *GormAttributionRepository) Create(row *models.AffiliateAttribution) error {
	return r.db.Create(row).Error
}

// GetByID 按ID查询佣金流水
func (r *GormAttributionRepository) GetByID(id uint) (*models.AffiliateAttribution, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.AffiliateAttribution
	if err := r.db.Preload("Affiliate").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetOriginalByOrderID 查询订单的原始流水
func (r *GormAttributionRepository) GetOriginalByOrderID(orderID uint) (*models.AffiliateAttribution, error) {
	if orderID == 0 {
		return nil, nil
	}
	var row models.AffiliateAttribution
	if err := r.db.Where("order_id = ? AND kind = ?", orderID, constants.AttributionKindOriginal).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByOrderID 查询订单全部流水（原始在前）
func (r *GormAttributionRepository) ListByOrderID(orderID uint) ([]models.AffiliateAttribution, error) {
	if orderID == 0 {
		return []models.AffiliateAttribution{}, nil
	}
	var rows []models.AffiliateAttribution
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// List 查询佣金流水列表
func (r *GormAttributionRepository) List(filter AttributionListFilter) ([]models.AffiliateAttribution, int64, error) {
	query := r.db.Model(&models.AffiliateAttribution{}).
		Preload("Affiliate").
		Preload("Affiliate.User")
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_attributions.affiliate_id = ?", filter.AffiliateID)
	}
	if filter.OrderID != 0 {
		query = query.Where("affiliate_attributions.order_id = ?", filter.OrderID)
	}
	if orderNumber := strings.TrimSpace(filter.OrderNumber); orderNumber != "" {
		query = query.Where("affiliate_attributions.order_number LIKE ?", "%"+orderNumber+"%")
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("affiliate_attributions.kind = ?", kind)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("affiliate_attributions.status = ?", status)
	}
	if monthKey := strings.TrimSpace(filter.MonthKey); monthKey != "" {
		query = query.Where("affiliate_attributions.month_key = ?", monthKey)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		condition, argCount := buildKeywordLikeCondition(r.db, []string{
			"u.email",
			"u.display_name",
			"a.affiliate_code",
			"affiliate_attributions.order_number",
		})
		query = query.
			Joins("LEFT JOIN affiliates a ON a.id = affiliate_attributions.affiliate_id").
			Joins("LEFT JOIN users u ON u.id = a.user_id").
			Where("("+condition+")", repeatLikeArgs(like, argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("affiliate_attributions.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("affiliate_attributions.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.AffiliateAttribution
	if err := query.Order("affiliate_attributions.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// PromoteToApproved 将待生效流水转为已确认（条件更新，重复投递只生效一次）
func (r *GormAttributionRepository) PromoteToApproved(id uint, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.AffiliateAttribution{}).
		Where("id = ? AND status = ?", id, constants.AttributionStatusPending).
		Updates(map[string]interface{}{
			"status":      constants.AttributionStatusApproved,
			"approved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkReversed 将流水原地标记为已冲正（仅允许 pending/approved 状态）
func (r *GormAttributionRepository) MarkReversed(id uint, reason string, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.AffiliateAttribution{}).
		Where("id = ? AND status IN ?", id, []string{
			constants.AttributionStatusPending,
			constants.AttributionStatusApproved,
		}).
		Updates(map[string]interface{}{
			"status":     constants.AttributionStatusReversed,
			"reason":     strings.TrimSpace(reason),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LockMonth 将指定月份所有待生效与已确认流水批量转为已锁定
func (r *GormAttributionRepository) LockMonth(monthKey string, now time.Time) (int64, error) {
	if strings.TrimSpace(monthKey) == "" {
		return 0, nil
	}
	result := r.db.Model(&models.AffiliateAttribution{}).
		Where("month_key = ? AND status IN ?", monthKey, []string{
			constants.AttributionStatusPending,
			constants.AttributionStatusApproved,
		}).
		Updates(map[string]interface{}{
			"status":     constants.AttributionStatusLocked,
			"locked_at":  now,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListMonthAggregates 按推广账户汇总指定月份的实际入账佣金
func (r *GormAttributionRepository) ListMonthAggregates(monthKey string) ([]AffiliateMonthAggregate, error) {
	if strings.TrimSpace(monthKey) == "" {
		return []AffiliateMonthAggregate{}, nil
	}
	var rows []struct {
		AffiliateID uint            `gorm:"column:affiliate_id"`
		UserID      uint            `gorm:"column:user_id"`
		Total       decimal.Decimal `gorm:"column:total"`
		RowCount    int64           `gorm:"column:row_count"`
	}
	err := r.db.Model(&models.AffiliateAttribution{}).
		Select("affiliate_attributions.affiliate_id, affiliates.user_id, COALESCE(SUM(affiliate_attributions.commission_amount), 0) AS total, COUNT(*) AS row_count").
		Joins("JOIN affiliates ON affiliates.id = affiliate_attributions.affiliate_id").
		Where("affiliate_attributions.month_key = ?", monthKey).
		Where(r.accruedLedgerCondition()).
		Group("affiliate_attributions.affiliate_id, affiliates.user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]AffiliateMonthAggregate, 0, len(rows))
	for _, row := range rows {
		result = append(result, AffiliateMonthAggregate{
			AffiliateID:      row.AffiliateID,
			UserID:           row.UserID,
			CommissionAmount: row.Total.Round(2),
			RowCount:         row.RowCount,
		})
	}
	return result, nil
}

// SumAccruedCommission 汇总指定推广账户某月实际入账佣金（结算口径）
func (r *GormAttributionRepository) SumAccruedCommission(affiliateID uint, monthKey string) (decimal.Decimal, error) {
	if affiliateID == 0 || strings.TrimSpace(monthKey) == "" {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.AffiliateAttribution{}).
		Select("COALESCE(SUM(commission_amount), 0) AS total").
		Where("affiliate_id = ? AND month_key = ?", affiliateID, monthKey).
		Where(r.accruedLedgerCondition()).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// SumLedgerByMonth 汇总指定推广账户某月全部流水金额（审计口径，含未生效）
func (r *GormAttributionRepository) SumLedgerByMonth(affiliateID uint, monthKey string) (decimal.Decimal, error) {
	if affiliateID == 0 || strings.TrimSpace(monthKey) == "" {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.AffiliateAttribution{}).
		Select("COALESCE(SUM(commission_amount), 0) AS total").
		Where("affiliate_id = ? AND month_key = ?", affiliateID, monthKey).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// accruedLedgerCondition 实际入账口径：流水只在其订单的原始流水
// 已入账（approved_at 非空）且未被原地冲正时参与结算金额。
// 原始流水据此自检；冲正负数流水跟随其原始流水，整单冲正后此前的
// 部分冲正一并出账；月结锁定的 pending 从未入账，同样不计。
func (r *GormAttributionRepository) accruedLedgerCondition() *gorm.DB {
	return r.db.Where(
		"EXISTS (SELECT 1 FROM affiliate_attributions o WHERE o.order_id = affiliate_attributions.order_id AND o.kind = ? AND o.approved_at IS NOT NULL AND o.status IN ?)",
		constants.AttributionKindOriginal,
		[]string{constants.AttributionStatusApproved, constants.AttributionStatusLocked},
	)
}
