package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRepository 结算单数据访问接口
type PayoutRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PayoutRepository

	Create(payout *models.AffiliatePayout) error
	CreateIfAbsent(payout *models.AffiliatePayout) (bool, error)
	GetByID(id uint) (*models.AffiliatePayout, error)
	GetActiveByAffiliateMonth(affiliateID uint, monthKey string) (*models.AffiliatePayout, error)
	SumPriorAmounts(affiliateID uint, monthKey string) (decimal.Decimal, error)
	HasAnyByAffiliateMonth(affiliateID uint, monthKey string) (bool, error)
	List(filter PayoutListFilter) ([]models.AffiliatePayout, int64, error)
	TransitionStatus(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error)
}

// GormPayoutRepository GORM 结算单仓储
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建结算单仓储
func NewPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRepository) WithTx(tx *gorm.DB) PayoutRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPayoutRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建结算单
func (r *GormPayoutRepository) Create(payout *models.AffiliatePayout) error {
	return r.db.Create(payout).Error
}

// CreateIfAbsent 不存在时插入结算单（ON CONFLICT DO NOTHING，返回是否实际插入）
func (r *GormPayoutRepository) CreateIfAbsent(payout *models.AffiliatePayout) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(payout)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 按ID查询结算单
func (r *GormPayoutRepository) GetByID(id uint) (*models.AffiliatePayout, error) {
	if id == 0 {
		return nil, nil
	}
	var payout models.AffiliatePayout
	if err := r.db.Preload("Affiliate").Preload("User").First(&payout, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// GetActiveByAffiliateMonth 查询某推广账户某月的在途结算单（不含已驳回）
func (r *GormPayoutRepository) GetActiveByAffiliateMonth(affiliateID uint, monthKey string) (*models.AffiliatePayout, error) {
	if affiliateID == 0 || strings.TrimSpace(monthKey) == "" {
		return nil, nil
	}
	var payout models.AffiliatePayout
	err := r.db.Preload("Affiliate").Preload("User").
		Where("affiliate_id = ? AND month_key = ? AND status <> ?",
			affiliateID, monthKey, constants.PayoutStatusRejected).
		First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

// SumPriorAmounts 汇总某推广账户某月已提交的结算金额（不含已驳回）
func (r *GormPayoutRepository) SumPriorAmounts(affiliateID uint, monthKey string) (decimal.Decimal, error) {
	if affiliateID == 0 || strings.TrimSpace(monthKey) == "" {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.Model(&models.AffiliatePayout{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("affiliate_id = ? AND month_key = ? AND status <> ?",
			affiliateID, monthKey, constants.PayoutStatusRejected).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

// HasAnyByAffiliateMonth 查询某推广账户某月是否存在任何结算单（含已驳回）
func (r *GormPayoutRepository) HasAnyByAffiliateMonth(affiliateID uint, monthKey string) (bool, error) {
	if affiliateID == 0 || strings.TrimSpace(monthKey) == "" {
		return false, nil
	}
	var total int64
	err := r.db.Model(&models.AffiliatePayout{}).
		Where("affiliate_id = ? AND month_key = ?", affiliateID, monthKey).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// List 查询结算单列表
func (r *GormPayoutRepository) List(filter PayoutListFilter) ([]models.AffiliatePayout, int64, error) {
	query := r.db.Model(&models.AffiliatePayout{}).
		Preload("Affiliate").
		Preload("User")
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_payouts.affiliate_id = ?", filter.AffiliateID)
	}
	if filter.UserID != 0 {
		query = query.Where("affiliate_payouts.user_id = ?", filter.UserID)
	}
	if monthKey := strings.TrimSpace(filter.MonthKey); monthKey != "" {
		query = query.Where("affiliate_payouts.month_key = ?", monthKey)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("affiliate_payouts.status = ?", status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		condition, argCount := buildKeywordLikeCondition(r.db, []string{
			"u.email",
			"u.display_name",
			"a.affiliate_code",
			"affiliate_payouts.account_holder",
			"affiliate_payouts.bank_account",
			"affiliate_payouts.upi_id",
		})
		query = query.
			Joins("LEFT JOIN affiliates a ON a.id = affiliate_payouts.affiliate_id").
			Joins("LEFT JOIN users u ON u.id = affiliate_payouts.user_id").
			Where("("+condition+")", repeatLikeArgs(like, argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("affiliate_payouts.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("affiliate_payouts.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.AffiliatePayout
	if err := query.Order("affiliate_payouts.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// TransitionStatus 条件化更新结算单状态（当前状态不在 from 集合时落空）
func (r *GormPayoutRepository) TransitionStatus(id uint, fromStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(fromStatuses) == 0 || len(updates) == 0 {
		return false, nil
	}
	result := r.db.Model(&models.AffiliatePayout{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
