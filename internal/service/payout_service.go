package service

import (
	"strings"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutService 结算单服务
type PayoutService struct {
	repo            repository.PayoutRepository
	affiliateRepo   repository.AffiliateRepository
	attributionRepo repository.AttributionRepository
	settingService  *SettingService
}

// NewPayoutService 创建结算单服务
func NewPayoutService(
	repo repository.PayoutRepository,
	affiliateRepo repository.AffiliateRepository,
	attributionRepo repository.AttributionRepository,
	settingService *SettingService,
) *PayoutService {
	return &PayoutService{
		repo:            repo,
		affiliateRepo:   affiliateRepo,
		attributionRepo: attributionRepo,
		settingService:  settingService,
	}
}

// PayoutRequestInput 提现结算申请输入
type PayoutRequestInput struct {
	MonthKey string
	Kyc      PayoutKycInput
}

// PayoutRequestResult 提现结算申请结果。
// 命中既有在途结算单时返回该单并置 AlreadyRequested，重复提交不产生新记录。
type PayoutRequestResult struct {
	Payout           *models.AffiliatePayout `json:"payout"`
	AlreadyRequested bool                    `json:"already_requested"`
}

// RequestPayout 用户提交月度结算申请
func (s *PayoutService) RequestPayout(userID uint, input PayoutRequestInput) (PayoutRequestResult, error) {
	result := PayoutRequestResult{}
	if userID == 0 || s.repo == nil || s.affiliateRepo == nil || s.attributionRepo == nil {
		return result, ErrAffiliateNotOpened
	}
	setting, err := s.settingService.GetAffiliateSetting()
	if err != nil {
		return result, err
	}
	if !setting.Enabled {
		return result, ErrAffiliateDisabled
	}

	affiliate, err := s.affiliateRepo.GetByUserID(userID)
	if err != nil {
		return result, err
	}
	if affiliate == nil || strings.TrimSpace(affiliate.Status) != constants.AffiliateStatusActive {
		return result, ErrAffiliateNotOpened
	}

	snapshot, err := validatePayoutKyc(input.Kyc)
	if err != nil {
		return result, err
	}
	monthKey, err := resolvePayoutMonth(input.MonthKey, setting, time.Now())
	if err != nil {
		return result, err
	}

	existing, err := s.repo.GetActiveByAffiliateMonth(affiliate.ID, monthKey)
	if err != nil {
		return result, err
	}
	if existing != nil {
		refreshed, err := s.attachKycToSeededPayout(existing, snapshot)
		if err != nil {
			return result, err
		}
		result.Payout = refreshed
		result.AlreadyRequested = true
		return result, nil
	}

	accrued, err := s.attributionRepo.SumAccruedCommission(affiliate.ID, monthKey)
	if err != nil {
		return result, err
	}
	prior, err := s.repo.SumPriorAmounts(affiliate.ID, monthKey)
	if err != nil {
		return result, err
	}
	eligible := computePayoutEligibility(accrued, prior)
	if eligible.LessThanOrEqual(decimal.Zero) {
		return result, ErrPayoutNothingEligible
	}
	minAmount := decimal.NewFromFloat(setting.MinPayoutAmount).Round(2)
	if eligible.LessThan(minAmount) {
		return result, ErrPayoutBelowMinimum
	}

	payout := &models.AffiliatePayout{
		AffiliateID:       affiliate.ID,
		UserID:            affiliate.UserID,
		MonthKey:          monthKey,
		ReferenceNo:       buildPayoutReference(),
		Amount:            models.NewMoneyFromDecimal(eligible),
		Status:            constants.PayoutStatusRequested,
		AccountHolder:     snapshot.AccountHolder,
		BankAccount:       snapshot.BankAccount,
		BankIfsc:          snapshot.BankIfsc,
		BankName:          snapshot.BankName,
		City:              snapshot.City,
		UpiID:             snapshot.UpiID,
		AadhaarMasked:     snapshot.AadhaarMasked,
		PanNumber:         snapshot.PanNumber,
		AccruedAmount:     models.NewMoneyFromDecimal(accrued),
		PriorPayoutAmount: models.NewMoneyFromDecimal(prior),
		BankIfscMismatch:  snapshot.IfscMismatch,
	}
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		current, err := repoTx.GetActiveByAffiliateMonth(affiliate.ID, monthKey)
		if err != nil {
			return err
		}
		if current != nil {
			result.Payout = current
			result.AlreadyRequested = true
			return nil
		}
		return repoTx.Create(payout)
	})
	if err != nil {
		if isUniqueViolation(err) {
			winner, getErr := s.repo.GetActiveByAffiliateMonth(affiliate.ID, monthKey)
			if getErr != nil {
				return result, getErr
			}
			if winner != nil {
				result.Payout = winner
				result.AlreadyRequested = true
				return result, nil
			}
		}
		return result, err
	}
	if result.AlreadyRequested {
		return result, nil
	}

	created, err := s.repo.GetByID(payout.ID)
	if err != nil {
		return result, err
	}
	if created != nil {
		result.Payout = created
	} else {
		result.Payout = payout
	}
	return result, nil
}

// ReviewPayout 管理端流转结算单状态。
// requested 可转 processing/rejected，processing 可转 paid/rejected，
// 条件更新保证并发审核只有一次生效。
func (s *PayoutService) ReviewPayout(adminID, payoutID uint, action, note string) (*models.AffiliatePayout, error) {
	if payoutID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	act := strings.ToLower(strings.TrimSpace(action))
	now := time.Now()
	updates := map[string]interface{}{
		"reviewed_by": adminID,
		"reviewed_at": now,
		"review_note": strings.TrimSpace(note),
		"updated_at":  now,
	}
	var fromStatuses []string
	switch act {
	case constants.PayoutActionProcess:
		fromStatuses = []string{constants.PayoutStatusRequested}
		updates["status"] = constants.PayoutStatusProcessing
	case constants.PayoutActionPay:
		fromStatuses = []string{constants.PayoutStatusProcessing}
		updates["status"] = constants.PayoutStatusPaid
		updates["paid_at"] = now
	case constants.PayoutActionReject:
		fromStatuses = []string{constants.PayoutStatusRequested, constants.PayoutStatusProcessing}
		updates["status"] = constants.PayoutStatusRejected
	default:
		return nil, ErrPayoutActionInvalid
	}

	payout, err := s.repo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrNotFound
	}
	transitioned, err := s.repo.TransitionStatus(payoutID, fromStatuses, updates)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, ErrPayoutStatusInvalid
	}
	return s.repo.GetByID(payoutID)
}

// ListUserPayouts 查询用户自己的结算单
func (s *PayoutService) ListUserPayouts(userID uint, page, pageSize int, monthKey, status string) ([]models.AffiliatePayout, int64, error) {
	if userID == 0 || s.repo == nil || s.affiliateRepo == nil {
		return []models.AffiliatePayout{}, 0, nil
	}
	affiliate, err := s.affiliateRepo.GetByUserID(userID)
	if err != nil {
		return nil, 0, err
	}
	if affiliate == nil {
		return []models.AffiliatePayout{}, 0, nil
	}
	return s.repo.List(repository.PayoutListFilter{
		Page:        page,
		PageSize:    pageSize,
		AffiliateID: affiliate.ID,
		MonthKey:    strings.TrimSpace(monthKey),
		Status:      strings.TrimSpace(status),
	})
}

// ListAdminPayouts 后台查询结算单列表
func (s *PayoutService) ListAdminPayouts(filter repository.PayoutListFilter) ([]models.AffiliatePayout, int64, error) {
	if s.repo == nil {
		return []models.AffiliatePayout{}, 0, nil
	}
	return s.repo.List(filter)
}

// PayoutAdminDetail 后台结算单详情。
// MonthLedgerTotal 为该月台账当前合计，锁定后到达的冲正会使其低于结算金额。
type PayoutAdminDetail struct {
	Payout           *models.AffiliatePayout `json:"payout"`
	MonthLedgerTotal models.Money            `json:"month_ledger_total"`
}

// GetAdminPayout 后台查询结算单详情
func (s *PayoutService) GetAdminPayout(payoutID uint) (*PayoutAdminDetail, error) {
	if payoutID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	payout, err := s.repo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrNotFound
	}
	detail := &PayoutAdminDetail{
		Payout:           payout,
		MonthLedgerTotal: models.NewMoneyFromDecimal(decimal.Zero),
	}
	if s.attributionRepo != nil {
		total, err := s.attributionRepo.SumLedgerByMonth(payout.AffiliateID, payout.MonthKey)
		if err != nil {
			return nil, err
		}
		detail.MonthLedgerTotal = models.NewMoneyFromDecimal(total)
	}
	return detail, nil
}

// attachKycToSeededPayout 月结播种的结算单没有收款资料，用户首次提交时补全快照。
// 仅对账户栏位为空的 requested 单生效，已有资料的结算单不被覆盖。
func (s *PayoutService) attachKycToSeededPayout(payout *models.AffiliatePayout, snapshot payoutKycSnapshot) (*models.AffiliatePayout, error) {
	if payout == nil || payout.ID == 0 {
		return payout, nil
	}
	if payout.Status != constants.PayoutStatusRequested || strings.TrimSpace(payout.AccountHolder) != "" {
		return payout, nil
	}
	updated, err := s.repo.TransitionStatus(payout.ID, []string{constants.PayoutStatusRequested}, map[string]interface{}{
		"account_holder":     snapshot.AccountHolder,
		"bank_account":       snapshot.BankAccount,
		"bank_ifsc":          snapshot.BankIfsc,
		"bank_name":          snapshot.BankName,
		"city":               snapshot.City,
		"upi_id":             snapshot.UpiID,
		"aadhaar_masked":     snapshot.AadhaarMasked,
		"pan_number":         snapshot.PanNumber,
		"bank_ifsc_mismatch": snapshot.IfscMismatch,
		"updated_at":         time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		return payout, nil
	}
	return s.repo.GetByID(payout.ID)
}

// computePayoutEligibility 可结算金额：当月实际入账佣金减去同月既有结算单金额（不含已驳回）
func computePayoutEligibility(accrued, prior decimal.Decimal) decimal.Decimal {
	return accrued.Round(2).Sub(prior.Round(2)).Round(2)
}

// resolvePayoutMonth 结算月份解析。
// 缺省取上一个自然月；指定当月需策略放行；未来月份拒绝。
func resolvePayoutMonth(raw string, setting AffiliateSetting, now time.Time) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return previousMonthKey(now), nil
	}
	monthKey, err := normalizeMonthKey(trimmed)
	if err != nil {
		return "", err
	}
	currentKey := monthKeyOf(now)
	if monthKey > currentKey {
		return "", ErrMonthKeyInvalid
	}
	if monthKey == currentKey && !setting.AllowCurrentMonthPayout {
		return "", ErrPayoutMonthOpen
	}
	return monthKey, nil
}

func buildPayoutReference() string {
	return "FXP-" + strings.ToUpper(uuid.New().String())
}
