package repository

import (
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"gorm.io/gorm"
)

// ReconciliationRepository 对账工单数据访问接口
type ReconciliationRepository interface {
	WithTx(tx *gorm.DB) ReconciliationRepository

	Create(flag *models.ReconciliationFlag) error
	GetByID(id uint) (*models.ReconciliationFlag, error)
	List(filter ReconciliationListFilter) ([]models.ReconciliationFlag, int64, error)
	CountOpen() (int64, error)
	Resolve(id uint, adminID uint, note string, updates map[string]interface{}) (bool, error)
}

// GormReconciliationRepository GORM 对账工单仓储
type GormReconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository 创建对账工单仓储
func NewReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReconciliationRepository) WithTx(tx *gorm.DB) ReconciliationRepository {
	if tx == nil {
		return r
	}
	return &GormReconciliationRepository{db: tx}
}

// Create 登记对账工单
func (r *GormReconciliationRepository) Create(flag *models.ReconciliationFlag) error {
	return r.db.Create(flag).Error
}

// GetByID 按ID查询对账工单
func (r *GormReconciliationRepository) GetByID(id uint) (*models.ReconciliationFlag, error) {
	if id == 0 {
		return nil, nil
	}
	var flag models.ReconciliationFlag
	if err := r.db.Preload("Affiliate").Preload("Affiliate.User").Preload("Payout").First(&flag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &flag, nil
}

// List 查询对账工单列表
func (r *GormReconciliationRepository) List(filter ReconciliationListFilter) ([]models.ReconciliationFlag, int64, error) {
	query := r.db.Model(&models.ReconciliationFlag{}).
		Preload("Affiliate").
		Preload("Affiliate.User").
		Preload("Payout")
	if filter.AffiliateID != 0 {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if monthKey := strings.TrimSpace(filter.MonthKey); monthKey != "" {
		query = query.Where("month_key = ?", monthKey)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ReconciliationFlag
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountOpen 统计待处理工单数
func (r *GormReconciliationRepository) CountOpen() (int64, error) {
	var total int64
	if err := r.db.Model(&models.ReconciliationFlag{}).
		Where("status = ?", constants.ReconciliationStatusOpen).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Resolve 关闭对账工单（仅处理 open 状态，重复关闭落空）
func (r *GormReconciliationRepository) Resolve(id uint, adminID uint, note string, updates map[string]interface{}) (bool, error) {
	if id == 0 {
		return false, nil
	}
	merged := map[string]interface{}{
		"status":       constants.ReconciliationStatusResolved,
		"resolved_by":  adminID,
		"resolve_note": strings.TrimSpace(note),
	}
	for key, value := range updates {
		merged[key] = value
	}
	result := r.db.Model(&models.ReconciliationFlag{}).
		Where("id = ? AND status = ?", id, constants.ReconciliationStatusOpen).
		Updates(merged)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
