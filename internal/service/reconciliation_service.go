package service

import (
	"strings"
	"time"

	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
)

// ReconciliationService 对账工单服务
type ReconciliationService struct {
	repo repository.ReconciliationRepository
}

// NewReconciliationService 创建对账工单服务
func NewReconciliationService(repo repository.ReconciliationRepository) *ReconciliationService {
	return &ReconciliationService{repo: repo}
}

// List 管理端查询对账工单
func (s *ReconciliationService) List(filter repository.ReconciliationListFilter) ([]models.ReconciliationFlag, int64, error) {
	if s == nil || s.repo == nil {
		return []models.ReconciliationFlag{}, 0, nil
	}
	return s.repo.List(filter)
}

// CountOpen 统计待处理工单数
func (s *ReconciliationService) CountOpen() (int64, error) {
	if s == nil || s.repo == nil {
		return 0, nil
	}
	return s.repo.CountOpen()
}

// Resolve 关闭对账工单，仅允许处理 open 状态
func (s *ReconciliationService) Resolve(adminID, flagID uint, note string) (*models.ReconciliationFlag, error) {
	if flagID == 0 || s == nil || s.repo == nil {
		return nil, ErrNotFound
	}
	flag, err := s.repo.GetByID(flagID)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, ErrNotFound
	}

	now := time.Now()
	resolved, err := s.repo.Resolve(flagID, adminID, strings.TrimSpace(note), map[string]interface{}{
		"resolved_at": now,
		"updated_at":  now,
	})
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, ErrReconciliationStatusInvalid
	}
	return s.repo.GetByID(flagID)
}
