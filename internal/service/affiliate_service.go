package service

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	affiliateCodeDefaultLength     = 8
	affiliateOpenMaxRetry          = 8
	affiliateAccrualRetryDefault   = 3
	affiliateReversalReasonDefault = "order_cancelled"
)

// AffiliateService 推广佣金台账服务
type AffiliateService struct {
	repo               repository.AffiliateRepository
	attributionRepo    repository.AttributionRepository
	payoutRepo         repository.PayoutRepository
	reconciliationRepo repository.ReconciliationRepository
	userRepo           repository.UserRepository
	settingService     *SettingService
	cfg                *config.Config
}

// NewAffiliateService 创建推广佣金台账服务
func NewAffiliateService(
	repo repository.AffiliateRepository,
	attributionRepo repository.AttributionRepository,
	payoutRepo repository.PayoutRepository,
	reconciliationRepo repository.ReconciliationRepository,
	userRepo repository.UserRepository,
	settingService *SettingService,
	cfg *config.Config,
) *AffiliateService {
	return &AffiliateService{
		repo:               repo,
		attributionRepo:    attributionRepo,
		payoutRepo:         payoutRepo,
		reconciliationRepo: reconciliationRepo,
		userRepo:           userRepo,
		settingService:     settingService,
		cfg:                cfg,
	}
}

// AffiliateTrackClickInput 推广点击记录输入
type AffiliateTrackClickInput struct {
	AffiliateCode string
	VisitorKey    string
	LandingPath   string
	Referrer      string
	ClientIP      string
	UserAgent     string
}

// OrderAttributionInput 订单完成归因输入
type OrderAttributionInput struct {
	OrderID        uint
	OrderNumber    string
	BuyerUserID    uint
	AffiliateCode  string
	ClickID        *uint
	EligibleAmount decimal.Decimal
	Durable        bool
}

// OrderReversalInput 订单取消/退款冲正输入
type OrderReversalInput struct {
	OrderID       uint
	Reason        string
	PartialAmount *decimal.Decimal
}

// AffiliateSummary 推广用户中心数据
type AffiliateSummary struct {
	Opened                 bool         `json:"opened"`
	AffiliateCode          string       `json:"affiliate_code"`
	PromotionPath          string       `json:"promotion_path"`
	Status                 string       `json:"status"`
	MonthKey               string       `json:"month_key"`
	MonthSales             models.Money `json:"month_sales"`
	MonthOrders            uint         `json:"month_orders"`
	MonthCommissionAccrued models.Money `json:"month_commission_accrued"`
	LifetimeSales          models.Money `json:"lifetime_sales"`
	LifetimeCommission     models.Money `json:"lifetime_commission"`
	CurrentPercent         models.Money `json:"current_percent"`
	ClickCount             int64        `json:"click_count"`
	ValidOrderCount        int64        `json:"valid_order_count"`
	ConversionRate         float64      `json:"conversion_rate"`
}

// AffiliateStats 推广统计数据
type AffiliateStats struct {
	ClickCount      int64   `json:"click_count"`
	ValidOrderCount int64   `json:"valid_order_count"`
	ReversedCount   int64   `json:"reversed_count"`
	ConversionRate  float64 `json:"conversion_rate"`
}

// AffiliateAdminItem 后台推广账户列表项
type AffiliateAdminItem struct {
	Affiliate models.Affiliate `json:"affiliate"`
	Stats     AffiliateStats   `json:"stats"`
}

// MonthCloseResult 月结执行结果
type MonthCloseResult struct {
	MonthKey      string `json:"month_key"`
	LockedRows    int64  `json:"locked_rows"`
	SeededPayouts int    `json:"seeded_payouts"`
	SkippedRows   int    `json:"skipped_rows"`
}

// OpenAffiliate 为用户开通推广账户
func (s *AffiliateService) OpenAffiliate(userID uint) (*models.Affiliate, error) {
	if userID == 0 {
		return nil, ErrUserDisabled
	}
	if s.repo == nil || s.userRepo == nil {
		return nil, ErrNotFound
	}
	setting, err := s.settingService.GetAffiliateSetting()
	if err != nil {
		return nil, err
	}
	if !setting.Enabled {
		return nil, ErrAffiliateDisabled
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(user.Status) == constants.UserStatusDisabled {
		return nil, ErrUserDisabled
	}

	existing, err := s.repo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	for i := 0; i < affiliateOpenMaxRetry; i++ {
		code, genErr := generateAffiliateCode(s.affiliateCodeLength())
		if genErr != nil {
			return nil, genErr
		}
		affiliate := &models.Affiliate{
			UserID:        userID,
			AffiliateCode: code,
			Status:        constants.AffiliateStatusActive,
			MonthKey:      monthKeyOf(now),
			TierTable:     models.TierTable{},
		}
		if err := s.repo.Create(affiliate); err != nil {
			if isUniqueViolation(err) {
				// 并发开通或短码撞库时重试；用户唯一键冲突会命中已有账户直接返回。
				winner, getErr := s.repo.GetByUserID(userID)
				if getErr != nil {
					return nil, getErr
				}
				if winner != nil {
					return winner, nil
				}
				continue
			}
			return nil, err
		}
		created, err := s.repo.GetByID(affiliate.ID)
		if err != nil {
			return nil, err
		}
		if created != nil {
			return created, nil
		}
		return affiliate, nil
	}
	return nil, ErrAffiliateCodeInvalid
}

// TrackClick 记录推广点击
func (s *AffiliateService) TrackClick(input AffiliateTrackClickInput) error {
	if s.repo == nil {
		return nil
	}
	code := normalizeAffiliateCode(input.AffiliateCode)
	if code == "" {
		return nil
	}
	setting, err := s.settingService.GetAffiliateSetting()
	if err != nil {
		return err
	}
	if !setting.Enabled {
		return nil
	}
	affiliate, err := s.repo.GetByCode(code)
	if err != nil {
		return err
	}
	if affiliate == nil || strings.TrimSpace(affiliate.Status) != constants.AffiliateStatusActive {
		return nil
	}
	visitorKey := strings.TrimSpace(input.VisitorKey)
	landingPath := strings.TrimSpace(input.LandingPath)
	if visitorKey != "" && setting.ClickDedupeMinutes > 0 {
		window := time.Duration(setting.ClickDedupeMinutes) * time.Minute
		duplicated, err := s.repo.HasRecentClick(affiliate.ID, visitorKey, landingPath, time.Now().Add(-window))
		if err != nil {
			return err
		}
		if duplicated {
			return nil
		}
	}

	click := &models.AffiliateClick{
		AffiliateID: affiliate.ID,
		VisitorKey:  visitorKey,
		LandingPath: landingPath,
		Referrer:    strings.TrimSpace(input.Referrer),
		ClientIP:    strings.TrimSpace(input.ClientIP),
		UserAgent:   strings.TrimSpace(input.UserAgent),
		CreatedAt:   time.Now(),
	}
	return s.repo.CreateClick(click)
}

// RecordAttribution 订单完成后记账。
// 同一订单重复投递只生效一次：原始流水上有订单唯一约束，
// 竞争失败方读取先到者后按状态补做确认动作。
func (s *AffiliateService) RecordAttribution(input OrderAttributionInput) error {
	if input.OrderID == 0 || s.repo == nil || s.attributionRepo == nil {
		return nil
	}
	setting, err := s.settingService.GetAffiliateSetting()
	if err != nil {
		return err
	}
	if !setting.Enabled {
		return nil
	}

	code := normalizeAffiliateCode(input.AffiliateCode)
	if code == "" {
		return nil
	}
	affiliate, err := s.repo.GetByCode(code)
	if err != nil {
		return err
	}
	if affiliate == nil || strings.TrimSpace(affiliate.Status) != constants.AffiliateStatusActive {
		logger.Debugw("affiliate_attribution_skipped",
			"order_id", input.OrderID,
			"affiliate_code", code,
			"reason", "affiliate_missing_or_disabled",
		)
		return nil
	}
	if input.BuyerUserID > 0 && affiliate.UserID == input.BuyerUserID {
		logger.Debugw("affiliate_attribution_skipped",
			"order_id", input.OrderID,
			"affiliate_id", affiliate.ID,
			"reason", "self_purchase",
		)
		return nil
	}

	existing, err := s.attributionRepo.GetOriginalByOrderID(input.OrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		if input.Durable && existing.Status == constants.AttributionStatusPending {
			return s.promotePendingAttribution(existing)
		}
		return nil
	}

	eligible := input.EligibleAmount.Round(2)
	if eligible.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	affiliate, err = s.ensureCurrentMonth(affiliate)
	if err != nil {
		return err
	}
	if affiliate == nil {
		return nil
	}

	percent := resolveCommissionPercent(s.resolveTierTable(affiliate, setting), affiliate.MonthSales.Decimal)
	commission := eligible.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)

	now := time.Now()
	row := &models.AffiliateAttribution{
		AffiliateID:       affiliate.ID,
		OrderID:           input.OrderID,
		OrderNumber:       strings.TrimSpace(input.OrderNumber),
		ClickID:           input.ClickID,
		Kind:              constants.AttributionKindOriginal,
		Amount:            models.NewMoneyFromDecimal(eligible),
		CommissionPercent: models.NewMoneyFromDecimal(percent),
		CommissionAmount:  models.NewMoneyFromDecimal(commission),
		Status:            constants.AttributionStatusPending,
		MonthKey:          affiliate.MonthKey,
	}
	if input.Durable {
		row.Status = constants.AttributionStatusApproved
		row.ApprovedAt = &now
	}

	err = s.attributionRepo.Transaction(func(tx *gorm.DB) error {
		attributionTx := s.attributionRepo.WithTx(tx)
		if err := attributionTx.Create(row); err != nil {
			return err
		}
		if !input.Durable {
			return nil
		}
		applied, err := s.repo.WithTx(tx).ApplyAccrual(affiliate.ID, row.MonthKey, eligible, commission, now)
		if err != nil {
			return err
		}
		if !applied {
			logger.Warnw("affiliate_accrual_skipped",
				"affiliate_id", affiliate.ID,
				"order_id", input.OrderID,
				"month_key", row.MonthKey,
				"reason", "month_rolled_over",
			)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			winner, getErr := s.attributionRepo.GetOriginalByOrderID(input.OrderID)
			if getErr != nil {
				return getErr
			}
			if winner != nil && input.Durable && winner.Status == constants.AttributionStatusPending {
				return s.promotePendingAttribution(winner)
			}
			return nil
		}
		return err
	}
	return nil
}

// ReverseAttribution 订单取消/退款冲正。
// 未锁定流水原地改状态并回冲账户；已锁定流水按资金是否已出走两条路径。
func (s *AffiliateService) ReverseAttribution(input OrderReversalInput) error {
	if input.OrderID == 0 || s.repo == nil || s.attributionRepo == nil {
		return nil
	}
	original, err := s.attributionRepo.GetOriginalByOrderID(input.OrderID)
	if err != nil {
		return err
	}
	if original == nil || original.Status == constants.AttributionStatusReversed {
		return nil
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = affiliateReversalReasonDefault
	}

	remainingAmount, remainingCommission, err := s.remainingReversibleAmounts(original)
	if err != nil {
		return err
	}

	var partial *decimal.Decimal
	if input.PartialAmount != nil {
		amount := input.PartialAmount.Round(2)
		if amount.LessThanOrEqual(decimal.Zero) {
			return ErrReversalAmountInvalid
		}
		if amount.GreaterThan(remainingAmount) {
			return ErrReversalAmountInvalid
		}
		partial = &amount
	}

	if original.Status == constants.AttributionStatusLocked {
		return s.reverseLockedAttribution(original, reason, partial, remainingAmount, remainingCommission)
	}
	return s.reverseOpenAttribution(original, reason, partial, remainingAmount, remainingCommission)
}

// CloseMonth 月结：锁定指定月份流水并为有佣金的账户播种结算单
func (s *AffiliateService) CloseMonth(rawMonthKey string) (MonthCloseResult, error) {
	result := MonthCloseResult{}
	if s.attributionRepo == nil || s.payoutRepo == nil {
		return result, ErrNotFound
	}
	monthKey, err := normalizeMonthKey(rawMonthKey)
	if err != nil {
		return result, err
	}
	if monthKey >= monthKeyOf(time.Now()) {
		return result, fmt.Errorf("%w: 只能关账已结束的月份", ErrMonthKeyInvalid)
	}
	result.MonthKey = monthKey

	now := time.Now()
	locked, err := s.attributionRepo.LockMonth(monthKey, now)
	if err != nil {
		return result, err
	}
	result.LockedRows = locked

	aggregates, err := s.attributionRepo.ListMonthAggregates(monthKey)
	if err != nil {
		return result, err
	}
	for _, agg := range aggregates {
		amount := agg.CommissionAmount.Round(2)
		if amount.LessThanOrEqual(decimal.Zero) {
			result.SkippedRows++
			continue
		}
		// 该月已有任何结算单（含已驳回）时不重复播种，驳回是后台的明确决定。
		exists, err := s.payoutRepo.HasAnyByAffiliateMonth(agg.AffiliateID, monthKey)
		if err != nil {
			logger.Errorw("affiliate_month_close_seed_failed",
				"affiliate_id", agg.AffiliateID,
				"month_key", monthKey,
				"error", err,
			)
			continue
		}
		if exists {
			result.SkippedRows++
			continue
		}
		payout := &models.AffiliatePayout{
			AffiliateID:   agg.AffiliateID,
			UserID:        agg.UserID,
			MonthKey:      monthKey,
			ReferenceNo:   buildPayoutReference(),
			Amount:        models.NewMoneyFromDecimal(amount),
			Status:        constants.PayoutStatusRequested,
			AccruedAmount: models.NewMoneyFromDecimal(amount),
		}
		created, err := s.payoutRepo.CreateIfAbsent(payout)
		if err != nil {
			if isUniqueViolation(err) {
				result.SkippedRows++
				continue
			}
			logger.Errorw("affiliate_month_close_seed_failed",
				"affiliate_id", agg.AffiliateID,
				"month_key", monthKey,
				"error", err,
			)
			continue
		}
		if !created {
			result.SkippedRows++
			continue
		}
		result.SeededPayouts++
	}

	logger.Infow("affiliate_month_close_finished",
		"month_key", monthKey,
		"locked_rows", result.LockedRows,
		"seeded_payouts", result.SeededPayouts,
		"skipped_rows", result.SkippedRows,
	)
	return result, nil
}

// GetUserSummary 获取用户推广中心数据
func (s *AffiliateService) GetUserSummary(userID uint) (AffiliateSummary, error) {
	summary := AffiliateSummary{
		MonthSales:             models.NewMoneyFromDecimal(decimal.Zero),
		MonthCommissionAccrued: models.NewMoneyFromDecimal(decimal.Zero),
		LifetimeSales:          models.NewMoneyFromDecimal(decimal.Zero),
		LifetimeCommission:     models.NewMoneyFromDecimal(decimal.Zero),
		CurrentPercent:         models.NewMoneyFromDecimal(decimal.Zero),
	}
	if userID == 0 || s.repo == nil {
		return summary, nil
	}
	affiliate, err := s.repo.GetByUserID(userID)
	if err != nil {
		return summary, err
	}
	if affiliate == nil {
		return summary, nil
	}
	affiliate, err = s.ensureCurrentMonth(affiliate)
	if err != nil {
		return summary, err
	}
	if affiliate == nil {
		return summary, nil
	}

	setting, err := s.settingService.GetAffiliateSetting()
	if err != nil {
		return summary, err
	}
	percent := resolveCommissionPercent(s.resolveTierTable(affiliate, setting), affiliate.MonthSales.Decimal)

	stats, err := s.buildAffiliateStats(affiliate.ID)
	if err != nil {
		return summary, err
	}

	summary.Opened = true
	summary.AffiliateCode = affiliate.AffiliateCode
	summary.PromotionPath = "/?aff=" + affiliate.AffiliateCode
	summary.Status = affiliate.Status
	summary.MonthKey = affiliate.MonthKey
	summary.MonthSales = affiliate.MonthSales
	summary.MonthOrders = affiliate.MonthOrders
	summary.MonthCommissionAccrued = affiliate.MonthCommissionAccrued
	summary.LifetimeSales = affiliate.LifetimeSales
	summary.LifetimeCommission = affiliate.LifetimeCommission
	summary.CurrentPercent = models.NewMoneyFromDecimal(percent)
	summary.ClickCount = stats.ClickCount
	summary.ValidOrderCount = stats.ValidOrderCount
	summary.ConversionRate = stats.ConversionRate
	return summary, nil
}

// ListUserAttributions 查询用户自己的佣金流水
func (s *AffiliateService) ListUserAttributions(userID uint, page, pageSize int, monthKey, status string) ([]models.AffiliateAttribution, int64, error) {
	if userID == 0 || s.repo == nil || s.attributionRepo == nil {
		return []models.AffiliateAttribution{}, 0, nil
	}
	affiliate, err := s.repo.GetByUserID(userID)
	if err != nil {
		return nil, 0, err
	}
	if affiliate == nil {
		return []models.AffiliateAttribution{}, 0, nil
	}
	return s.attributionRepo.List(repository.AttributionListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: affiliate.ID,
		MonthKey:    strings.TrimSpace(monthKey),
		Status:      strings.TrimSpace(status),
	})
}

// ListAdminAffiliates 后台查询推广账户列表
func (s *AffiliateService) ListAdminAffiliates(filter repository.AffiliateListFilter) ([]AffiliateAdminItem, int64, error) {
	if s.repo == nil {
		return []AffiliateAdminItem{}, 0, nil
	}
	rows, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	affiliateIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		if row.ID == 0 {
			continue
		}
		affiliateIDs = append(affiliateIDs, row.ID)
	}
	statsMap, err := s.repo.GetStatsBatch(affiliateIDs)
	if err != nil {
		return nil, 0, err
	}
	result := make([]AffiliateAdminItem, 0, len(rows))
	for _, row := range rows {
		agg := statsMap[row.ID]
		validOrders := agg.AttributionCount - agg.ReversedCount
		if validOrders < 0 {
			validOrders = 0
		}
		result = append(result, AffiliateAdminItem{
			Affiliate: row,
			Stats: AffiliateStats{
				ClickCount:      agg.ClickCount,
				ValidOrderCount: validOrders,
				ReversedCount:   agg.ReversedCount,
				ConversionRate:  calcAffiliateConversion(validOrders, agg.ClickCount),
			},
		})
	}
	return result, total, nil
}

// ListAdminAttributions 后台查询佣金流水
func (s *AffiliateService) ListAdminAttributions(filter repository.AttributionListFilter) ([]models.AffiliateAttribution, int64, error) {
	if s.attributionRepo == nil {
		return []models.AffiliateAttribution{}, 0, nil
	}
	return s.attributionRepo.List(filter)
}

// UpdateAffiliateStatus 管理端更新推广账户状态
func (s *AffiliateService) UpdateAffiliateStatus(affiliateID uint, rawStatus string) (*models.Affiliate, error) {
	if affiliateID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	nextStatus := strings.TrimSpace(rawStatus)
	if nextStatus != constants.AffiliateStatusActive && nextStatus != constants.AffiliateStatusDisabled {
		return nil, ErrAffiliateStatusInvalid
	}

	affiliate, err := s.repo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(affiliate.Status) == nextStatus {
		return affiliate, nil
	}
	if err := s.repo.UpdateStatus(affiliateID, nextStatus, time.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(affiliateID)
}

// BatchUpdateAffiliateStatus 管理端批量更新推广账户状态
func (s *AffiliateService) BatchUpdateAffiliateStatus(affiliateIDs []uint, rawStatus string) (int64, error) {
	if s.repo == nil {
		return 0, ErrNotFound
	}
	nextStatus := strings.TrimSpace(rawStatus)
	if nextStatus != constants.AffiliateStatusActive && nextStatus != constants.AffiliateStatusDisabled {
		return 0, ErrAffiliateStatusInvalid
	}
	normalizedIDs := normalizeAffiliateIDs(affiliateIDs)
	if len(normalizedIDs) == 0 {
		return 0, nil
	}
	return s.repo.BatchUpdateStatus(normalizedIDs, nextStatus, time.Now())
}

// UpdateAffiliateTierTable 管理端更新账户专属佣金阶梯（传空表示回退全局配置）
func (s *AffiliateService) UpdateAffiliateTierTable(affiliateID uint, table models.TierTable) (*models.Affiliate, error) {
	if affiliateID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	affiliate, err := s.repo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrNotFound
	}
	normalized, err := normalizeTierTable(table)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTierTable(affiliateID, normalized, time.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(affiliateID)
}

// promotePendingAttribution 将待生效原始流水补转已确认并入账。
// 条件更新保证重复投递只有一次拿到确认资格，入账与转状态同事务。
func (s *AffiliateService) promotePendingAttribution(row *models.AffiliateAttribution) error {
	if row == nil || row.ID == 0 {
		return nil
	}
	now := time.Now()
	return s.attributionRepo.Transaction(func(tx *gorm.DB) error {
		promoted, err := s.attributionRepo.WithTx(tx).PromoteToApproved(row.ID, now)
		if err != nil {
			return err
		}
		if !promoted {
			return nil
		}
		applied, err := s.repo.WithTx(tx).ApplyAccrual(
			row.AffiliateID,
			row.MonthKey,
			row.Amount.Decimal,
			row.CommissionAmount.Decimal,
			now,
		)
		if err != nil {
			return err
		}
		if !applied {
			logger.Warnw("affiliate_accrual_skipped",
				"affiliate_id", row.AffiliateID,
				"order_id", row.OrderID,
				"month_key", row.MonthKey,
				"reason", "month_rolled_over",
			)
		}
		return nil
	})
}

// ensureCurrentMonth 账户跨月后惰性翻转月度计数，返回翻转后的最新账户
func (s *AffiliateService) ensureCurrentMonth(affiliate *models.Affiliate) (*models.Affiliate, error) {
	if affiliate == nil || affiliate.ID == 0 {
		return affiliate, nil
	}
	for i := 0; i < s.accrualRetryAttempts(); i++ {
		currentKey := monthKeyOf(time.Now())
		if affiliate.MonthKey == currentKey {
			return affiliate, nil
		}
		if _, err := s.repo.ResetMonth(affiliate.ID, affiliate.MonthKey, currentKey, time.Now()); err != nil {
			return nil, err
		}
		fresh, err := s.repo.GetByID(affiliate.ID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, nil
		}
		affiliate = fresh
	}
	return affiliate, nil
}

// remainingReversibleAmounts 订单剩余可冲正的金额与佣金（原始流水加上全部已冲负数流水）。
// 整单冲正也按剩余值回冲，部分退款后取消订单不会重复扣减。
func (s *AffiliateService) remainingReversibleAmounts(original *models.AffiliateAttribution) (decimal.Decimal, decimal.Decimal, error) {
	if original == nil {
		return decimal.Zero, decimal.Zero, nil
	}
	rows, err := s.attributionRepo.ListByOrderID(original.OrderID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amount := original.Amount.Decimal
	commission := original.CommissionAmount.Decimal
	for _, row := range rows {
		if row.Kind != constants.AttributionKindReversal {
			continue
		}
		amount = amount.Add(row.Amount.Decimal)
		commission = commission.Add(row.CommissionAmount.Decimal)
	}
	return amount.Round(2), commission.Round(2), nil
}

// reverseOpenAttribution 冲正未锁定流水
func (s *AffiliateService) reverseOpenAttribution(original *models.AffiliateAttribution, reason string, partial *decimal.Decimal, remainingAmount, remainingCommission decimal.Decimal) error {
	accrued := original.Status == constants.AttributionStatusApproved
	now := time.Now()

	if partial == nil {
		return s.attributionRepo.Transaction(func(tx *gorm.DB) error {
			reversed, err := s.attributionRepo.WithTx(tx).MarkReversed(original.ID, reason, now)
			if err != nil {
				return err
			}
			if !reversed {
				return nil
			}
			if !accrued {
				return nil
			}
			applied, err := s.repo.WithTx(tx).ApplyReversal(
				original.AffiliateID,
				original.MonthKey,
				remainingAmount,
				remainingCommission,
				-1,
				now,
			)
			if err != nil {
				return err
			}
			if !applied {
				logger.Warnw("affiliate_reversal_account_skipped",
					"affiliate_id", original.AffiliateID,
					"order_id", original.OrderID,
					"month_key", original.MonthKey,
					"reason", "month_rolled_over",
				)
			}
			return nil
		})
	}

	if !accrued {
		// 待生效流水尚未入账，部分退款无需记负数流水，确认时点按原额入账。
		logger.Warnw("affiliate_partial_reversal_pending_skipped",
			"order_id", original.OrderID,
			"attribution_id", original.ID,
			"amount", partial.String(),
		)
		return nil
	}

	amount := partial.Round(2)
	commission := amount.Mul(original.CommissionPercent.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	row := s.buildReversalRow(original, amount, commission, reason, now)
	return s.attributionRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.attributionRepo.WithTx(tx).Create(row); err != nil {
			return err
		}
		applied, err := s.repo.WithTx(tx).ApplyReversal(
			original.AffiliateID,
			original.MonthKey,
			amount,
			commission,
			0,
			now,
		)
		if err != nil {
			return err
		}
		if !applied {
			logger.Warnw("affiliate_reversal_account_skipped",
				"affiliate_id", original.AffiliateID,
				"order_id", original.OrderID,
				"month_key", original.MonthKey,
				"reason", "month_rolled_over",
			)
		}
		return nil
	})
}

// reverseLockedAttribution 冲正已锁定流水。
// 该月存在结算单时资金可能已出，登记对账工单人工处理；
// 否则追加负数流水修正台账，月度计数已翻转不再回冲。
func (s *AffiliateService) reverseLockedAttribution(original *models.AffiliateAttribution, reason string, partial *decimal.Decimal, remainingAmount, remainingCommission decimal.Decimal) error {
	if original.ApprovedAt == nil {
		// 锁定前从未入账的流水，金额没有算进任何口径，无需补偿。
		return nil
	}

	amount := remainingAmount
	commission := remainingCommission
	if partial != nil {
		amount = partial.Round(2)
		commission = amount.Mul(original.CommissionPercent.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	payout, err := s.payoutRepo.GetActiveByAffiliateMonth(original.AffiliateID, original.MonthKey)
	if err != nil {
		return err
	}
	if payout != nil {
		if s.reconciliationRepo == nil {
			return ErrNotFound
		}
		flag := &models.ReconciliationFlag{
			AffiliateID:   original.AffiliateID,
			OrderID:       original.OrderID,
			AttributionID: &original.ID,
			PayoutID:      &payout.ID,
			MonthKey:      original.MonthKey,
			Amount:        models.NewMoneyFromDecimal(commission),
			Reason:        reason,
			Status:        constants.ReconciliationStatusOpen,
		}
		if err := s.reconciliationRepo.Create(flag); err != nil {
			return err
		}
		logger.Warnw("affiliate_reversal_flagged",
			"affiliate_id", original.AffiliateID,
			"order_id", original.OrderID,
			"month_key", original.MonthKey,
			"payout_id", payout.ID,
			"commission", commission.String(),
		)
		return nil
	}

	row := s.buildReversalRow(original, amount, commission, reason, time.Now())
	return s.attributionRepo.Create(row)
}

// buildReversalRow 构造负数冲正流水
func (s *AffiliateService) buildReversalRow(original *models.AffiliateAttribution, amount, commission decimal.Decimal, reason string, now time.Time) *models.AffiliateAttribution {
	return &models.AffiliateAttribution{
		AffiliateID:       original.AffiliateID,
		OrderID:           original.OrderID,
		OrderNumber:       original.OrderNumber,
		Kind:              constants.AttributionKindReversal,
		Amount:            models.NewMoneyFromDecimal(amount.Neg()),
		CommissionPercent: original.CommissionPercent,
		CommissionAmount:  models.NewMoneyFromDecimal(commission.Neg()),
		Status:            constants.AttributionStatusReversed,
		MonthKey:          original.MonthKey,
		Reason:            reason,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// resolveTierTable 账户专属阶梯优先，为空回退全局配置
func (s *AffiliateService) resolveTierTable(affiliate *models.Affiliate, setting AffiliateSetting) models.TierTable {
	if affiliate != nil && len(affiliate.TierTable) > 0 {
		return affiliate.TierTable
	}
	return affiliateSettingTierTable(setting)
}

func (s *AffiliateService) buildAffiliateStats(affiliateID uint) (AffiliateStats, error) {
	stats := AffiliateStats{}
	if affiliateID == 0 || s.repo == nil {
		return stats, nil
	}
	statsMap, err := s.repo.GetStatsBatch([]uint{affiliateID})
	if err != nil {
		return stats, err
	}
	agg := statsMap[affiliateID]
	validOrders := agg.AttributionCount - agg.ReversedCount
	if validOrders < 0 {
		validOrders = 0
	}
	stats.ClickCount = agg.ClickCount
	stats.ValidOrderCount = validOrders
	stats.ReversedCount = agg.ReversedCount
	stats.ConversionRate = calcAffiliateConversion(validOrders, agg.ClickCount)
	return stats, nil
}

func (s *AffiliateService) affiliateCodeLength() int {
	if s.cfg != nil && s.cfg.Affiliate.CodeLength > 0 {
		return s.cfg.Affiliate.CodeLength
	}
	return affiliateCodeDefaultLength
}

func (s *AffiliateService) accrualRetryAttempts() int {
	if s.cfg != nil && s.cfg.Affiliate.AccrualRetryAttempts > 0 {
		return s.cfg.Affiliate.AccrualRetryAttempts
	}
	return affiliateAccrualRetryDefault
}

func calcAffiliateConversion(validOrders, clicks int64) float64 {
	if clicks <= 0 || validOrders <= 0 {
		return 0
	}
	value := (float64(validOrders) / float64(clicks)) * 100
	return math.Round(value*100) / 100
}

func normalizeAffiliateCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func normalizeAffiliateIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return []uint{}
	}
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func generateAffiliateCode(length int) (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	if length <= 0 {
		length = affiliateCodeDefaultLength
	}
	var builder strings.Builder
	builder.Grow(length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
