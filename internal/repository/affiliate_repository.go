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

// AffiliateRepository 推广账户数据访问接口
type AffiliateRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AffiliateRepository

	GetByID(id uint) (*models.Affiliate, error)
	GetByUserID(userID uint) (*models.Affiliate, error)
	GetByCode(code string) (*models.Affiliate, error)
	Create(affiliate *models.Affiliate) error
	List(filter AffiliateListFilter) ([]models.Affiliate, int64, error)
	UpdateStatus(id uint, status string, updatedAt time.Time) error
	BatchUpdateStatus(ids []uint, status string, updatedAt time.Time) (int64, error)
	UpdateTierTable(id uint, table models.TierTable, updatedAt time.Time) error

	ResetMonth(id uint, staleMonthKey, nextMonthKey string, now time.Time) (bool, error)
	ApplyAccrual(id uint, monthKey string, eligibleAmount, commissionAmount decimal.Decimal, now time.Time) (bool, error)
	ApplyReversal(id uint, monthKey string, amount, commissionAmount decimal.Decimal, orderDelta int, now time.Time) (bool, error)

	CreateClick(click *models.AffiliateClick) error
	HasRecentClick(affiliateID uint, visitorKey, landingPath string, since time.Time) (bool, error)
	GetStatsBatch(affiliateIDs []uint) (map[uint]AffiliateStatsAggregate, error)
}

// GormAffiliateRepository GORM 推广账户仓储
type GormAffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository 创建推广账户仓储
func NewAffiliateRepository(db *gorm.DB) *GormAffiliateRepository {
	return &GormAffiliateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAffiliateRepository) WithTx(tx *gorm.DB) AffiliateRepository {
	if tx == nil {
		return r
	}
	return &GormAffiliateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAffiliateRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取推广账户
func (r *GormAffiliateRepository) GetByID(id uint) (*models.Affiliate, error) {
	if id == 0 {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.Preload("User").First(&affiliate, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// GetByUserID 按用户ID获取推广账户
func (r *GormAffiliateRepository) GetByUserID(userID uint) (*models.Affiliate, error) {
	if userID == 0 {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.Preload("User").Where("user_id = ?", userID).First(&affiliate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// GetByCode 按推广短码获取推广账户
func (r *GormAffiliateRepository) GetByCode(code string) (*models.Affiliate, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var affiliate models.Affiliate
	if err := r.db.Preload("User").Where("affiliate_code = ?", normalized).First(&affiliate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

// Create 创建推广账户
func (r *GormAffiliateRepository) Create(affiliate *models.Affiliate) error {
	return r.db.Create(affiliate).Error
}

// List 查询推广账户列表
func (r *GormAffiliateRepository) List(filter AffiliateListFilter) ([]models.Affiliate, int64, error) {
	query := r.db.Model(&models.Affiliate{}).Preload("User")
	if filter.UserID != 0 {
		query = query.Where("affiliates.user_id = ?", filter.UserID)
	}
	if code := strings.TrimSpace(filter.Code); code != "" {
		query = query.Where("affiliates.affiliate_code = ?", strings.ToUpper(code))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("affiliates.status = ?", status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		condition, argCount := buildKeywordLikeCondition(r.db, []string{
			"users.email",
			"users.display_name",
			"affiliates.affiliate_code",
		})
		query = query.
			Joins("LEFT JOIN users ON users.id = affiliates.user_id").
			Where("("+condition+")", repeatLikeArgs(like, argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Affiliate
	if err := query.Order("affiliates.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateStatus 更新推广账户状态
func (r *GormAffiliateRepository) UpdateStatus(id uint, status string, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     strings.TrimSpace(status),
			"updated_at": updatedAt,
		}).Error
}

// BatchUpdateStatus 批量更新推广账户状态
func (r *GormAffiliateRepository) BatchUpdateStatus(ids []uint, status string, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Affiliate{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     strings.TrimSpace(status),
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpdateTierTable 更新专属佣金阶梯
func (r *GormAffiliateRepository) UpdateTierTable(id uint, table models.TierTable, updatedAt time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tier_table": table,
			"updated_at": updatedAt,
		}).Error
}

// ResetMonth 跨月时重置月度计数。
// 以 stale 月份作为条件做单条 UPDATE，并发下只有一个执行方生效，
// 后到者条件失配直接落空，不会用旧零值覆盖新月份的累计。
func (r *GormAffiliateRepository) ResetMonth(id uint, staleMonthKey, nextMonthKey string, now time.Time) (bool, error) {
	if id == 0 || staleMonthKey == nextMonthKey {
		return false, nil
	}
	result := r.db.Model(&models.Affiliate{}).
		Where("id = ? AND month_key = ?", id, staleMonthKey).
		Updates(map[string]interface{}{
			"month_key":                nextMonthKey,
			"month_sales":              decimal.Zero,
			"month_orders":             0,
			"month_commission_accrued": decimal.Zero,
			"updated_at":               now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyAccrual 单条语句累加月度与累计业绩。
// month_key 条件保证不会把金额记进一个已经翻转的月份。
func (r *GormAffiliateRepository) ApplyAccrual(id uint, monthKey string, eligibleAmount, commissionAmount decimal.Decimal, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Affiliate{}).
		Where("id = ? AND month_key = ?", id, monthKey).
		Updates(map[string]interface{}{
			"month_sales":              gorm.Expr("month_sales + ?", eligibleAmount),
			"month_orders":             gorm.Expr("month_orders + ?", 1),
			"month_commission_accrued": gorm.Expr("month_commission_accrued + ?", commissionAmount),
			"lifetime_sales":           gorm.Expr("lifetime_sales + ?", eligibleAmount),
			"lifetime_commission":      gorm.Expr("lifetime_commission + ?", commissionAmount),
			"updated_at":               now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyReversal 单条语句扣减冲正金额（仅当账户仍停留在流水所属月份时生效）
func (r *GormAffiliateRepository) ApplyReversal(id uint, monthKey string, amount, commissionAmount decimal.Decimal, orderDelta int, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Affiliate{}).
		Where("id = ? AND month_key = ?", id, monthKey).
		Updates(map[string]interface{}{
			"month_sales":              gorm.Expr("month_sales - ?", amount),
			"month_orders":             gorm.Expr("month_orders + ?", orderDelta),
			"month_commission_accrued": gorm.Expr("month_commission_accrued - ?", commissionAmount),
			"lifetime_sales":           gorm.Expr("lifetime_sales - ?", amount),
			"lifetime_commission":      gorm.Expr("lifetime_commission - ?", commissionAmount),
			"updated_at":               now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateClick 创建推广点击记录
func (r *GormAffiliateRepository) CreateClick(click *models.AffiliateClick) error {
	return r.db.Create(click).Error
}

// HasRecentClick 查询是否存在近期重复点击记录
func (r *GormAffiliateRepository) HasRecentClick(affiliateID uint, visitorKey, landingPath string, since time.Time) (bool, error) {
	if affiliateID == 0 || strings.TrimSpace(visitorKey) == "" {
		return false, nil
	}
	query := r.db.Model(&models.AffiliateClick{}).
		Where("affiliate_id = ? AND visitor_key = ? AND created_at >= ?",
			affiliateID,
			strings.TrimSpace(visitorKey),
			since,
		)
	if path := strings.TrimSpace(landingPath); path != "" {
		query = query.Where("landing_path = ?", path)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// GetStatsBatch 批量汇总推广账户统计信息
func (r *GormAffiliateRepository) GetStatsBatch(affiliateIDs []uint) (map[uint]AffiliateStatsAggregate, error) {
	result := make(map[uint]AffiliateStatsAggregate, len(affiliateIDs))
	if len(affiliateIDs) == 0 {
		return result, nil
	}

	for _, id := range affiliateIDs {
		if id == 0 {
			continue
		}
		result[id] = AffiliateStatsAggregate{}
	}

	var clickRows []struct {
		AffiliateID uint  `gorm:"column:affiliate_id"`
		Total       int64 `gorm:"column:total"`
	}
	if err := r.db.Model(&models.AffiliateClick{}).
		Select("affiliate_id, COUNT(*) AS total").
		Where("affiliate_id IN ?", affiliateIDs).
		Group("affiliate_id").
		Scan(&clickRows).Error; err != nil {
		return nil, err
	}
	for _, row := range clickRows {
		item := result[row.AffiliateID]
		item.ClickCount = row.Total
		result[row.AffiliateID] = item
	}

	var attributionRows []struct {
		AffiliateID uint  `gorm:"column:affiliate_id"`
		Total       int64 `gorm:"column:total"`
	}
	if err := r.db.Model(&models.AffiliateAttribution{}).
		Select("affiliate_id, COUNT(*) AS total").
		Where("affiliate_id IN ? AND kind = ?", affiliateIDs, constants.AttributionKindOriginal).
		Group("affiliate_id").
		Scan(&attributionRows).Error; err != nil {
		return nil, err
	}
	for _, row := range attributionRows {
		item := result[row.AffiliateID]
		item.AttributionCount = row.Total
		result[row.AffiliateID] = item
	}

	var reversedRows []struct {
		AffiliateID uint  `gorm:"column:affiliate_id"`
		Total       int64 `gorm:"column:total"`
	}
	if err := r.db.Model(&models.AffiliateAttribution{}).
		Select("affiliate_id, COUNT(*) AS total").
		Where("affiliate_id IN ? AND kind = ? AND status = ?",
			affiliateIDs, constants.AttributionKindOriginal, constants.AttributionStatusReversed).
		Group("affiliate_id").
		Scan(&reversedRows).Error; err != nil {
		return nil, err
	}
	for _, row := range reversedRows {
		item := result[row.AffiliateID]
		item.ReversedCount = row.Total
		result[row.AffiliateID] = item
	}

	return result, nil
}
