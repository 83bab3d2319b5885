package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/repository"
)

func setupAffiliateServiceTest(t *testing.T) (*AffiliateService, *SettingService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:affiliate_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Affiliate{},
		&models.AffiliateClick{},
		&models.AffiliateAttribution{},
		&models.AffiliatePayout{},
		&models.ReconciliationFlag{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	settingSvc := NewSettingService(newMockSettingRepo())
	if _, err := settingSvc.UpdateAffiliateSetting(testAffiliateSetting()); err != nil {
		t.Fatalf("seed affiliate setting: %v", err)
	}

	svc := NewAffiliateService(
		repository.NewAffiliateRepository(db),
		repository.NewAttributionRepository(db),
		repository.NewPayoutRepository(db),
		repository.NewReconciliationRepository(db),
		repository.NewUserRepository(db),
		settingSvc,
		nil,
	)
	return svc, settingSvc, db
}

func testAffiliateSetting() AffiliateSetting {
	return AffiliateSetting{
		Enabled: true,
		DefaultTiers: []AffiliateTierEntry{
			{MinMonthlySales: 0, Percent: 1},
			{MinMonthlySales: 10000, Percent: 2},
			{MinMonthlySales: 50000, Percent: 5},
		},
		ClickDedupeMinutes: 10,
	}
}

func createAffiliateServiceUser(t *testing.T, db *gorm.DB, email, status string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "推广测试用户",
		Status:       status,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func openTestAffiliate(t *testing.T, svc *AffiliateService, db *gorm.DB, email string) *models.Affiliate {
	t.Helper()
	user := createAffiliateServiceUser(t, db, email, constants.UserStatusActive)
	affiliate, err := svc.OpenAffiliate(user.ID)
	if err != nil {
		t.Fatalf("open affiliate: %v", err)
	}
	return affiliate
}

func recordTestOrder(t *testing.T, svc *AffiliateService, code string, orderID uint, amount int64, durable bool) {
	t.Helper()
	err := svc.RecordAttribution(OrderAttributionInput{
		OrderID:        orderID,
		OrderNumber:    fmt.Sprintf("FX%08d", orderID),
		AffiliateCode:  code,
		EligibleAmount: decimal.NewFromInt(amount),
		Durable:        durable,
	})
	if err != nil {
		t.Fatalf("record order %d: %v", orderID, err)
	}
}

func reloadTestAffiliate(t *testing.T, db *gorm.DB, id uint) *models.Affiliate {
	t.Helper()
	var affiliate models.Affiliate
	if err := db.First(&affiliate, id).Error; err != nil {
		t.Fatalf("reload affiliate %d: %v", id, err)
	}
	return &affiliate
}

func listOrderLedger(t *testing.T, db *gorm.DB, orderID uint) []models.AffiliateAttribution {
	t.Helper()
	var rows []models.AffiliateAttribution
	if err := db.Where("order_id = ?", orderID).Order("id asc").Find(&rows).Error; err != nil {
		t.Fatalf("list ledger for order %d: %v", orderID, err)
	}
	return rows
}

func countTestRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var total int64
	if err := db.Model(model).Count(&total).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return total
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", label, got.String(), want)
	}
}

func decimalPtr(value string) *decimal.Decimal {
	amount := decimal.RequireFromString(value)
	return &amount
}

func TestOpenAffiliateCreatesAndReuses(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	user := createAffiliateServiceUser(t, db, "rahul@example.com", constants.UserStatusActive)

	first, err := svc.OpenAffiliate(user.ID)
	if err != nil {
		t.Fatalf("open affiliate: %v", err)
	}
	if first.UserID != user.ID {
		t.Fatalf("affiliate user = %d, want %d", first.UserID, user.ID)
	}
	if len(first.AffiliateCode) != 8 {
		t.Fatalf("affiliate code %q length = %d, want 8", first.AffiliateCode, len(first.AffiliateCode))
	}
	if first.AffiliateCode != strings.ToUpper(first.AffiliateCode) {
		t.Fatalf("affiliate code %q is not uppercase", first.AffiliateCode)
	}
	if first.Status != constants.AffiliateStatusActive {
		t.Fatalf("affiliate status = %q, want active", first.Status)
	}
	if first.MonthKey != time.Now().Format(constants.MonthKeyLayout) {
		t.Fatalf("affiliate month key = %q, want current month", first.MonthKey)
	}

	second, err := svc.OpenAffiliate(user.ID)
	if err != nil {
		t.Fatalf("reopen affiliate: %v", err)
	}
	if second.ID != first.ID || second.AffiliateCode != first.AffiliateCode {
		t.Fatalf("reopen returned different account: %d/%s vs %d/%s",
			second.ID, second.AffiliateCode, first.ID, first.AffiliateCode)
	}
	if total := countTestRows(t, db, &models.Affiliate{}); total != 1 {
		t.Fatalf("affiliate count = %d, want 1", total)
	}
}

func TestOpenAffiliateRejectsIneligibleUsers(t *testing.T) {
	svc, settingSvc, db := setupAffiliateServiceTest(t)

	if _, err := svc.OpenAffiliate(0); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("open with zero user error = %v, want ErrUserDisabled", err)
	}
	if _, err := svc.OpenAffiliate(9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("open with unknown user error = %v, want ErrNotFound", err)
	}

	banned := createAffiliateServiceUser(t, db, "banned@example.com", constants.UserStatusDisabled)
	if _, err := svc.OpenAffiliate(banned.ID); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("open with disabled user error = %v, want ErrUserDisabled", err)
	}

	disabled := testAffiliateSetting()
	disabled.Enabled = false
	if _, err := settingSvc.UpdateAffiliateSetting(disabled); err != nil {
		t.Fatalf("disable affiliate setting: %v", err)
	}
	active := createAffiliateServiceUser(t, db, "active@example.com", constants.UserStatusActive)
	if _, err := svc.OpenAffiliate(active.ID); !errors.Is(err, ErrAffiliateDisabled) {
		t.Fatalf("open with disabled program error = %v, want ErrAffiliateDisabled", err)
	}
}

func TestTrackClickRecordsAndDedupes(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "promoter@example.com")

	click := AffiliateTrackClickInput{
		AffiliateCode: strings.ToLower(affiliate.AffiliateCode),
		VisitorKey:    "visitor-1",
		LandingPath:   "/p/keyboard",
		Referrer:      " https://instagram.com/reel ",
		ClientIP:      "203.0.113.9",
		UserAgent:     "Mozilla/5.0",
	}
	if err := svc.TrackClick(click); err != nil {
		t.Fatalf("track click: %v", err)
	}
	if err := svc.TrackClick(click); err != nil {
		t.Fatalf("track duplicate click: %v", err)
	}
	if total := countTestRows(t, db, &models.AffiliateClick{}); total != 1 {
		t.Fatalf("click count after duplicate = %d, want 1", total)
	}

	click.LandingPath = "/p/mouse"
	if err := svc.TrackClick(click); err != nil {
		t.Fatalf("track click on other path: %v", err)
	}
	anonymous := click
	anonymous.VisitorKey = ""
	if err := svc.TrackClick(anonymous); err != nil {
		t.Fatalf("track anonymous click: %v", err)
	}
	if err := svc.TrackClick(anonymous); err != nil {
		t.Fatalf("track second anonymous click: %v", err)
	}
	if total := countTestRows(t, db, &models.AffiliateClick{}); total != 4 {
		t.Fatalf("click count = %d, want 4", total)
	}

	var stored models.AffiliateClick
	if err := db.Order("id asc").First(&stored).Error; err != nil {
		t.Fatalf("load first click: %v", err)
	}
	if stored.Referrer != "https://instagram.com/reel" {
		t.Fatalf("referrer = %q, want trimmed value", stored.Referrer)
	}
	if stored.AffiliateID != affiliate.ID {
		t.Fatalf("click affiliate = %d, want %d", stored.AffiliateID, affiliate.ID)
	}

	if err := svc.TrackClick(AffiliateTrackClickInput{AffiliateCode: "", VisitorKey: "visitor-2"}); err != nil {
		t.Fatalf("track click without code: %v", err)
	}
	if err := svc.TrackClick(AffiliateTrackClickInput{AffiliateCode: "NOPE1234", VisitorKey: "visitor-2"}); err != nil {
		t.Fatalf("track click with unknown code: %v", err)
	}
	if _, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusDisabled); err != nil {
		t.Fatalf("disable affiliate: %v", err)
	}
	click.VisitorKey = "visitor-3"
	if err := svc.TrackClick(click); err != nil {
		t.Fatalf("track click on disabled affiliate: %v", err)
	}
	if total := countTestRows(t, db, &models.AffiliateClick{}); total != 4 {
		t.Fatalf("click count after ineligible clicks = %d, want 4", total)
	}
}

func TestRecordAttributionAccruesWithTierPercent(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "tiered@example.com")

	// 门槛判断用入账前的月累计，整笔订单按同一档位计提。
	recordTestOrder(t, svc, affiliate.AffiliateCode, 9001, 9999, true)
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "9999")
	if fresh.MonthOrders != 1 {
		t.Fatalf("month orders = %d, want 1", fresh.MonthOrders)
	}
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "99.99")
	assertDecimal(t, "lifetime sales", fresh.LifetimeSales.Decimal, "9999")
	assertDecimal(t, "lifetime commission", fresh.LifetimeCommission.Decimal, "99.99")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 9002, 1, true)
	secondRows := listOrderLedger(t, db, 9002)
	assertDecimal(t, "percent just below threshold", secondRows[0].CommissionPercent.Decimal, "1")

	boundaries := []struct {
		orderID    uint
		monthSales int64
		amount     int64
		percent    string
		commission string
	}{
		{9003, 10000, 100, "2", "2"},
		{9004, 49999, 100, "2", "2"},
		{9005, 50000, 200, "5", "10"},
	}
	for _, tc := range boundaries {
		err := db.Model(&models.Affiliate{}).
			Where("id = ?", affiliate.ID).
			Update("month_sales", tc.monthSales).Error
		if err != nil {
			t.Fatalf("preset month sales: %v", err)
		}
		recordTestOrder(t, svc, affiliate.AffiliateCode, tc.orderID, tc.amount, true)

		rows := listOrderLedger(t, db, tc.orderID)
		if len(rows) != 1 {
			t.Fatalf("order %d ledger rows = %d, want 1", tc.orderID, len(rows))
		}
		assertDecimal(t, "commission percent", rows[0].CommissionPercent.Decimal, tc.percent)
		assertDecimal(t, "commission amount", rows[0].CommissionAmount.Decimal, tc.commission)
		if rows[0].Status != constants.AttributionStatusApproved {
			t.Fatalf("order %d status = %q, want approved", tc.orderID, rows[0].Status)
		}
		if rows[0].ApprovedAt == nil {
			t.Fatalf("order %d approved_at is nil", tc.orderID)
		}
	}
}

func TestRecordAttributionRollsStaleMonthBeforeAccrual(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "rollover@example.com")

	// 上月计数残留：若入账前不先翻月，60000 的累计会把订单抬进 5% 档。
	staleMonth := time.Now().AddDate(0, 0, -time.Now().Day()).Format(constants.MonthKeyLayout)
	err := db.Model(&models.Affiliate{}).
		Where("id = ?", affiliate.ID).
		Updates(map[string]interface{}{
			"month_key":                staleMonth,
			"month_sales":              60000,
			"month_orders":             7,
			"month_commission_accrued": 3000,
		}).Error
	if err != nil {
		t.Fatalf("preset stale month: %v", err)
	}

	recordTestOrder(t, svc, affiliate.AffiliateCode, 9101, 1000, true)

	currentMonth := time.Now().Format(constants.MonthKeyLayout)
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	if fresh.MonthKey != currentMonth {
		t.Fatalf("month key = %q, want %q", fresh.MonthKey, currentMonth)
	}
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "1000")
	if fresh.MonthOrders != 1 {
		t.Fatalf("month orders = %d, want 1", fresh.MonthOrders)
	}
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "10")

	rows := listOrderLedger(t, db, 9101)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	if rows[0].MonthKey != currentMonth {
		t.Fatalf("ledger month key = %q, want %q", rows[0].MonthKey, currentMonth)
	}
	assertDecimal(t, "commission percent", rows[0].CommissionPercent.Decimal, "1")
}

func TestRecordAttributionIdempotentDelivery(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "replay@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 2001, 1000, true)
	recordTestOrder(t, svc, affiliate.AffiliateCode, 2001, 1000, true)
	recordTestOrder(t, svc, affiliate.AffiliateCode, 2001, 1000, true)

	rows := listOrderLedger(t, db, 2001)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	if fresh.MonthOrders != 1 {
		t.Fatalf("month orders = %d, want 1", fresh.MonthOrders)
	}
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "1000")
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "10")
}

func TestRecordAttributionPendingThenDurablePromotes(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "pending@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 3001, 800, false)

	rows := listOrderLedger(t, db, 3001)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	if rows[0].Status != constants.AttributionStatusPending || rows[0].ApprovedAt != nil {
		t.Fatalf("pending row status = %q approved_at = %v", rows[0].Status, rows[0].ApprovedAt)
	}
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales before promotion", fresh.MonthSales.Decimal, "0")
	if fresh.MonthOrders != 0 {
		t.Fatalf("month orders before promotion = %d, want 0", fresh.MonthOrders)
	}

	// 确认投递补转入账，重复确认不叠加。
	recordTestOrder(t, svc, affiliate.AffiliateCode, 3001, 800, true)
	recordTestOrder(t, svc, affiliate.AffiliateCode, 3001, 800, true)

	rows = listOrderLedger(t, db, 3001)
	if len(rows) != 1 {
		t.Fatalf("ledger rows after promotion = %d, want 1", len(rows))
	}
	if rows[0].Status != constants.AttributionStatusApproved || rows[0].ApprovedAt == nil {
		t.Fatalf("promoted row status = %q approved_at = %v", rows[0].Status, rows[0].ApprovedAt)
	}
	fresh = reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales after promotion", fresh.MonthSales.Decimal, "800")
	if fresh.MonthOrders != 1 {
		t.Fatalf("month orders after promotion = %d, want 1", fresh.MonthOrders)
	}
	assertDecimal(t, "month commission after promotion", fresh.MonthCommissionAccrued.Decimal, "8")
}

func TestRecordAttributionSkipsIneligibleOrders(t *testing.T) {
	svc, settingSvc, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "owner@example.com")

	err := svc.RecordAttribution(OrderAttributionInput{
		OrderID:        4001,
		BuyerUserID:    affiliate.UserID,
		AffiliateCode:  affiliate.AffiliateCode,
		EligibleAmount: decimal.NewFromInt(500),
		Durable:        true,
	})
	if err != nil {
		t.Fatalf("record self purchase: %v", err)
	}

	for i, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-100)} {
		err := svc.RecordAttribution(OrderAttributionInput{
			OrderID:        uint(4002 + i),
			AffiliateCode:  affiliate.AffiliateCode,
			EligibleAmount: amount,
			Durable:        true,
		})
		if err != nil {
			t.Fatalf("record non-positive order: %v", err)
		}
	}

	err = svc.RecordAttribution(OrderAttributionInput{
		OrderID:        4004,
		AffiliateCode:  "UNKNOWN1",
		EligibleAmount: decimal.NewFromInt(500),
		Durable:        true,
	})
	if err != nil {
		t.Fatalf("record with unknown code: %v", err)
	}

	if _, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusDisabled); err != nil {
		t.Fatalf("disable affiliate: %v", err)
	}
	recordTestOrder(t, svc, affiliate.AffiliateCode, 4005, 500, true)
	if _, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusActive); err != nil {
		t.Fatalf("re-enable affiliate: %v", err)
	}

	disabled := testAffiliateSetting()
	disabled.Enabled = false
	if _, err := settingSvc.UpdateAffiliateSetting(disabled); err != nil {
		t.Fatalf("disable affiliate setting: %v", err)
	}
	recordTestOrder(t, svc, affiliate.AffiliateCode, 4006, 500, true)

	if total := countTestRows(t, db, &models.AffiliateAttribution{}); total != 0 {
		t.Fatalf("ledger rows = %d, want 0", total)
	}
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "0")
}

func TestReverseAttributionFullRollsBackAccount(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "refund@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 5001, 1000, true)

	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 5001}); err != nil {
		t.Fatalf("reverse order: %v", err)
	}

	rows := listOrderLedger(t, db, 5001)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1 (in-place reversal has no negative row)", len(rows))
	}
	if rows[0].Status != constants.AttributionStatusReversed {
		t.Fatalf("original status = %q, want reversed", rows[0].Status)
	}
	if rows[0].Reason != "order_cancelled" {
		t.Fatalf("reversal reason = %q, want order_cancelled", rows[0].Reason)
	}
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "0")
	if fresh.MonthOrders != 0 {
		t.Fatalf("month orders = %d, want 0", fresh.MonthOrders)
	}
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "0")
	assertDecimal(t, "lifetime sales", fresh.LifetimeSales.Decimal, "0")
	assertDecimal(t, "lifetime commission", fresh.LifetimeCommission.Decimal, "0")

	// 重复冲正与未知订单都是幂等空操作。
	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 5001}); err != nil {
		t.Fatalf("reverse again: %v", err)
	}
	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 99999}); err != nil {
		t.Fatalf("reverse unknown order: %v", err)
	}
	if total := countTestRows(t, db, &models.AffiliateAttribution{}); total != 1 {
		t.Fatalf("ledger rows after repeat = %d, want 1", total)
	}
}

func TestReverseAttributionPartialKeepsOrderCounted(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "partial@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 6001, 1000, true)

	err := svc.ReverseAttribution(OrderReversalInput{
		OrderID:       6001,
		Reason:        "partial_refund",
		PartialAmount: decimalPtr("400"),
	})
	if err != nil {
		t.Fatalf("partial reversal: %v", err)
	}

	rows := listOrderLedger(t, db, 6001)
	if len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want original + reversal", len(rows))
	}
	if rows[0].Status != constants.AttributionStatusApproved {
		t.Fatalf("original status = %q, want approved", rows[0].Status)
	}
	reversal := rows[1]
	if reversal.Kind != constants.AttributionKindReversal || reversal.Status != constants.AttributionStatusReversed {
		t.Fatalf("reversal row kind/status = %q/%q", reversal.Kind, reversal.Status)
	}
	assertDecimal(t, "reversal amount", reversal.Amount.Decimal, "-400")
	assertDecimal(t, "reversal commission", reversal.CommissionAmount.Decimal, "-4")
	if reversal.MonthKey != rows[0].MonthKey {
		t.Fatalf("reversal month key = %q, want %q", reversal.MonthKey, rows[0].MonthKey)
	}
	if reversal.Reason != "partial_refund" {
		t.Fatalf("reversal reason = %q", reversal.Reason)
	}

	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "600")
	if fresh.MonthOrders != 1 {
		t.Fatalf("month orders = %d, want 1 (partial keeps the order)", fresh.MonthOrders)
	}
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "6")
	assertDecimal(t, "lifetime sales", fresh.LifetimeSales.Decimal, "600")
	assertDecimal(t, "lifetime commission", fresh.LifetimeCommission.Decimal, "6")

	for _, amount := range []string{"700", "0", "-10"} {
		err := svc.ReverseAttribution(OrderReversalInput{
			OrderID:       6001,
			PartialAmount: decimalPtr(amount),
		})
		if !errors.Is(err, ErrReversalAmountInvalid) {
			t.Fatalf("partial %s error = %v, want ErrReversalAmountInvalid", amount, err)
		}
	}
}

func TestReverseAttributionFullAfterPartialUsesRemaining(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "remaining@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 6101, 1000, true)
	err := svc.ReverseAttribution(OrderReversalInput{
		OrderID:       6101,
		Reason:        "partial_refund",
		PartialAmount: decimalPtr("400"),
	})
	if err != nil {
		t.Fatalf("partial reversal: %v", err)
	}

	// 整单取消只回冲剩余 600/6，已退的 400 不重复扣减。
	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 6101}); err != nil {
		t.Fatalf("full reversal after partial: %v", err)
	}

	rows := listOrderLedger(t, db, 6101)
	if len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(rows))
	}
	if rows[0].Status != constants.AttributionStatusReversed {
		t.Fatalf("original status = %q, want reversed", rows[0].Status)
	}
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales", fresh.MonthSales.Decimal, "0")
	if fresh.MonthOrders != 0 {
		t.Fatalf("month orders = %d, want 0", fresh.MonthOrders)
	}
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "0")
	assertDecimal(t, "lifetime commission", fresh.LifetimeCommission.Decimal, "0")
}

func TestSumAccruedCommissionTracksAccountThroughReversals(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "ledgersum@example.com")
	attributionRepo := repository.NewAttributionRepository(db)

	assertLedgerMatchesAccount := func(step string) {
		t.Helper()
		fresh := reloadTestAffiliate(t, db, affiliate.ID)
		total, err := attributionRepo.SumAccruedCommission(affiliate.ID, fresh.MonthKey)
		if err != nil {
			t.Fatalf("%s: sum accrued commission: %v", step, err)
		}
		if !total.Equal(fresh.MonthCommissionAccrued.Decimal) {
			t.Fatalf("%s: ledger sum = %s, account = %s", step, total.String(), fresh.MonthCommissionAccrued.Decimal.String())
		}
	}

	recordTestOrder(t, svc, affiliate.AffiliateCode, 6301, 1000, true)
	recordTestOrder(t, svc, affiliate.AffiliateCode, 6302, 500, true)
	assertLedgerMatchesAccount("after accrual")

	err := svc.ReverseAttribution(OrderReversalInput{
		OrderID:       6301,
		Reason:        "partial_refund",
		PartialAmount: decimalPtr("400"),
	})
	if err != nil {
		t.Fatalf("partial reversal: %v", err)
	}
	assertLedgerMatchesAccount("after partial reversal")

	// 整单冲正把此前的部分冲正负数一并带出结算口径，
	// 台账合计与账户计数同步落到未受影响订单的 5。
	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 6301}); err != nil {
		t.Fatalf("full reversal after partial: %v", err)
	}
	assertLedgerMatchesAccount("after full reversal")

	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month commission", fresh.MonthCommissionAccrued.Decimal, "5")
	total, err := attributionRepo.SumAccruedCommission(affiliate.ID, fresh.MonthKey)
	if err != nil {
		t.Fatalf("sum accrued commission: %v", err)
	}
	assertDecimal(t, "ledger sum", total, "5")
}

func TestReverseAttributionPartialOnPendingSkipped(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "pendingrefund@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 6201, 900, false)

	err := svc.ReverseAttribution(OrderReversalInput{
		OrderID:       6201,
		PartialAmount: decimalPtr("300"),
	})
	if err != nil {
		t.Fatalf("partial reversal on pending: %v", err)
	}

	rows := listOrderLedger(t, db, 6201)
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	if rows[0].Status != constants.AttributionStatusPending {
		t.Fatalf("original status = %q, want pending", rows[0].Status)
	}
}

func TestReverseAttributionLockedFlagsActivePayout(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "locked@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 7001, 1000, true)
	err := db.Model(&models.AffiliateAttribution{}).
		Where("order_id = ?", uint(7001)).
		Updates(map[string]interface{}{
			"status":    constants.AttributionStatusLocked,
			"locked_at": time.Now(),
		}).Error
	if err != nil {
		t.Fatalf("lock ledger row: %v", err)
	}

	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	payout := &models.AffiliatePayout{
		AffiliateID:   affiliate.ID,
		UserID:        affiliate.UserID,
		MonthKey:      fresh.MonthKey,
		ReferenceNo:   "FXP-TEST-7001",
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Status:        constants.PayoutStatusRequested,
		AccruedAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
	}
	if err := db.Create(payout).Error; err != nil {
		t.Fatalf("create payout: %v", err)
	}

	err = svc.ReverseAttribution(OrderReversalInput{OrderID: 7001, Reason: "chargeback"})
	if err != nil {
		t.Fatalf("reverse locked order: %v", err)
	}

	var flags []models.ReconciliationFlag
	if err := db.Find(&flags).Error; err != nil {
		t.Fatalf("list flags: %v", err)
	}
	if len(flags) != 1 {
		t.Fatalf("flag count = %d, want 1", len(flags))
	}
	flag := flags[0]
	if flag.AffiliateID != affiliate.ID || flag.OrderID != 7001 {
		t.Fatalf("flag target = %d/%d", flag.AffiliateID, flag.OrderID)
	}
	if flag.PayoutID == nil || *flag.PayoutID != payout.ID {
		t.Fatalf("flag payout = %v, want %d", flag.PayoutID, payout.ID)
	}
	var lockedRow models.AffiliateAttribution
	if err := db.Where("order_id = ?", uint(7001)).First(&lockedRow).Error; err != nil {
		t.Fatalf("load locked row: %v", err)
	}
	if flag.AttributionID == nil || *flag.AttributionID != lockedRow.ID {
		t.Fatalf("flag attribution = %v, want %d", flag.AttributionID, lockedRow.ID)
	}
	assertDecimal(t, "flag amount", flag.Amount.Decimal, "10")
	if flag.Status != constants.ReconciliationStatusOpen {
		t.Fatalf("flag status = %q, want open", flag.Status)
	}
	if flag.Reason != "chargeback" {
		t.Fatalf("flag reason = %q", flag.Reason)
	}

	// 已锁定且有结算单的冲正走对账工单，不追加负数流水也不回冲账户。
	if total := countTestRows(t, db, &models.AffiliateAttribution{}); total != 1 {
		t.Fatalf("ledger rows = %d, want 1", total)
	}
	after := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales", after.MonthSales.Decimal, "1000")
	assertDecimal(t, "month commission", after.MonthCommissionAccrued.Decimal, "10")
}

func TestReverseAttributionLockedWithoutPayoutAppendsLedger(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "lockedledger@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 7101, 500, true)
	err := db.Model(&models.AffiliateAttribution{}).
		Where("order_id = ?", uint(7101)).
		Updates(map[string]interface{}{
			"status":    constants.AttributionStatusLocked,
			"locked_at": time.Now(),
		}).Error
	if err != nil {
		t.Fatalf("lock ledger row: %v", err)
	}

	err = svc.ReverseAttribution(OrderReversalInput{
		OrderID:       7101,
		Reason:        "partial_refund",
		PartialAmount: decimalPtr("200"),
	})
	if err != nil {
		t.Fatalf("partial reversal on locked: %v", err)
	}
	rows := listOrderLedger(t, db, 7101)
	if len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(rows))
	}
	assertDecimal(t, "partial reversal amount", rows[1].Amount.Decimal, "-200")
	assertDecimal(t, "partial reversal commission", rows[1].CommissionAmount.Decimal, "-2")

	// 整单补冲只追加剩余 300/3。
	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 7101, Reason: "order_cancelled"}); err != nil {
		t.Fatalf("full reversal on locked: %v", err)
	}
	rows = listOrderLedger(t, db, 7101)
	if len(rows) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(rows))
	}
	assertDecimal(t, "remaining reversal amount", rows[2].Amount.Decimal, "-300")
	assertDecimal(t, "remaining reversal commission", rows[2].CommissionAmount.Decimal, "-3")
	if rows[0].Status != constants.AttributionStatusLocked {
		t.Fatalf("original status = %q, want locked", rows[0].Status)
	}

	// 剩余额度归零后再次冲正不再追加。
	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 7101}); err != nil {
		t.Fatalf("reverse with nothing remaining: %v", err)
	}
	if total := countTestRows(t, db, &models.AffiliateAttribution{}); total != 3 {
		t.Fatalf("ledger rows after exhausted reversal = %d, want 3", total)
	}

	// 月度计数已随月结翻转，锁定冲正只修正台账。
	fresh := reloadTestAffiliate(t, db, affiliate.ID)
	assertDecimal(t, "month sales untouched", fresh.MonthSales.Decimal, "500")
}

func TestReverseAttributionLockedPendingNeedsNoCompensation(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "lockedpending@example.com")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 7201, 600, false)
	err := db.Model(&models.AffiliateAttribution{}).
		Where("order_id = ?", uint(7201)).
		Updates(map[string]interface{}{
			"status":    constants.AttributionStatusLocked,
			"locked_at": time.Now(),
		}).Error
	if err != nil {
		t.Fatalf("lock pending row: %v", err)
	}

	if err := svc.ReverseAttribution(OrderReversalInput{OrderID: 7201}); err != nil {
		t.Fatalf("reverse locked pending: %v", err)
	}
	if total := countTestRows(t, db, &models.AffiliateAttribution{}); total != 1 {
		t.Fatalf("ledger rows = %d, want 1", total)
	}
	if total := countTestRows(t, db, &models.ReconciliationFlag{}); total != 0 {
		t.Fatalf("flag count = %d, want 0", total)
	}
}

func TestCloseMonthLocksLedgerAndSeedsPayouts(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	earner := openTestAffiliate(t, svc, db, "earner@example.com")
	idle := openTestAffiliate(t, svc, db, "idle@example.com")
	refunded := openTestAffiliate(t, svc, db, "refunded@example.com")

	const monthKey = "2024-05"
	seededAt := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	seedRow := func(affiliateID, orderID uint, kind, status, amount, commission string, approved bool) {
		t.Helper()
		row := &models.AffiliateAttribution{
			AffiliateID:       affiliateID,
			OrderID:           orderID,
			OrderNumber:       fmt.Sprintf("FX%08d", orderID),
			Kind:              kind,
			Amount:            models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.RequireFromString(commission)),
			Status:            status,
			MonthKey:          monthKey,
			CreatedAt:         seededAt,
			UpdatedAt:         seededAt,
		}
		if approved {
			row.ApprovedAt = &seededAt
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed ledger row: %v", err)
		}
	}

	seedRow(earner.ID, 8001, constants.AttributionKindOriginal, constants.AttributionStatusApproved, "1000", "10", true)
	seedRow(earner.ID, 8002, constants.AttributionKindOriginal, constants.AttributionStatusApproved, "500", "5", true)
	seedRow(idle.ID, 8003, constants.AttributionKindOriginal, constants.AttributionStatusPending, "700", "7", false)
	seedRow(refunded.ID, 8004, constants.AttributionKindOriginal, constants.AttributionStatusApproved, "100", "1", true)
	seedRow(refunded.ID, 8004, constants.AttributionKindReversal, constants.AttributionStatusReversed, "-100", "-1", false)

	result, err := svc.CloseMonth(monthKey)
	if err != nil {
		t.Fatalf("close month: %v", err)
	}
	if result.MonthKey != monthKey {
		t.Fatalf("result month key = %q", result.MonthKey)
	}
	if result.LockedRows != 4 {
		t.Fatalf("locked rows = %d, want 4", result.LockedRows)
	}
	if result.SeededPayouts != 1 {
		t.Fatalf("seeded payouts = %d, want 1", result.SeededPayouts)
	}
	if result.SkippedRows != 1 {
		t.Fatalf("skipped rows = %d, want 1 (net-zero account)", result.SkippedRows)
	}

	var payouts []models.AffiliatePayout
	if err := db.Find(&payouts).Error; err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("payout count = %d, want 1", len(payouts))
	}
	payout := payouts[0]
	if payout.AffiliateID != earner.ID || payout.UserID != earner.UserID {
		t.Fatalf("payout target = %d/%d", payout.AffiliateID, payout.UserID)
	}
	if payout.MonthKey != monthKey || payout.Status != constants.PayoutStatusRequested {
		t.Fatalf("payout month/status = %q/%q", payout.MonthKey, payout.Status)
	}
	assertDecimal(t, "payout amount", payout.Amount.Decimal, "15")
	assertDecimal(t, "payout accrued amount", payout.AccruedAmount.Decimal, "15")
	if strings.TrimSpace(payout.ReferenceNo) == "" {
		t.Fatalf("payout reference is empty")
	}

	var lockedPending models.AffiliateAttribution
	if err := db.Where("order_id = ?", uint(8003)).First(&lockedPending).Error; err != nil {
		t.Fatalf("load pending row: %v", err)
	}
	if lockedPending.Status != constants.AttributionStatusLocked || lockedPending.LockedAt == nil {
		t.Fatalf("pending row after close = %q/%v", lockedPending.Status, lockedPending.LockedAt)
	}

	// 重复关账不重播结算单。
	again, err := svc.CloseMonth(monthKey)
	if err != nil {
		t.Fatalf("close month again: %v", err)
	}
	if again.LockedRows != 0 || again.SeededPayouts != 0 {
		t.Fatalf("repeat close locked/seeded = %d/%d, want 0/0", again.LockedRows, again.SeededPayouts)
	}
	if again.SkippedRows != 2 {
		t.Fatalf("repeat close skipped = %d, want 2", again.SkippedRows)
	}
	if total := countTestRows(t, db, &models.AffiliatePayout{}); total != 1 {
		t.Fatalf("payout count after repeat = %d, want 1", total)
	}
}

func TestCloseMonthRejectsOpenOrInvalidMonths(t *testing.T) {
	svc, _, _ := setupAffiliateServiceTest(t)

	current := time.Now().Format(constants.MonthKeyLayout)
	if _, err := svc.CloseMonth(current); !errors.Is(err, ErrMonthKeyInvalid) {
		t.Fatalf("close current month error = %v, want ErrMonthKeyInvalid", err)
	}
	future := time.Now().AddDate(0, 2, 0).Format(constants.MonthKeyLayout)
	if _, err := svc.CloseMonth(future); !errors.Is(err, ErrMonthKeyInvalid) {
		t.Fatalf("close future month error = %v, want ErrMonthKeyInvalid", err)
	}
	if _, err := svc.CloseMonth("2024/05"); !errors.Is(err, ErrMonthKeyInvalid) {
		t.Fatalf("close malformed month error = %v, want ErrMonthKeyInvalid", err)
	}
	if _, err := svc.CloseMonth(""); !errors.Is(err, ErrMonthKeyInvalid) {
		t.Fatalf("close empty month error = %v, want ErrMonthKeyInvalid", err)
	}
}

func TestGetUserSummaryRollsMonthAndComputesStats(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)

	outsider := createAffiliateServiceUser(t, db, "outsider@example.com", constants.UserStatusActive)
	summary, err := svc.GetUserSummary(outsider.ID)
	if err != nil {
		t.Fatalf("summary for non-affiliate: %v", err)
	}
	if summary.Opened {
		t.Fatalf("summary.Opened = true for non-affiliate")
	}

	affiliate := openTestAffiliate(t, svc, db, "summary@example.com")
	recordTestOrder(t, svc, affiliate.AffiliateCode, 9501, 2000, true)
	for _, visitor := range []string{"visitor-a", "visitor-b"} {
		err := svc.TrackClick(AffiliateTrackClickInput{
			AffiliateCode: affiliate.AffiliateCode,
			VisitorKey:    visitor,
			LandingPath:   "/p/headphones",
		})
		if err != nil {
			t.Fatalf("track click: %v", err)
		}
	}

	staleKey := time.Now().AddDate(0, 0, -time.Now().Day()).Format(constants.MonthKeyLayout)
	if err := db.Model(&models.Affiliate{}).Where("id = ?", affiliate.ID).Update("month_key", staleKey).Error; err != nil {
		t.Fatalf("backdate month key: %v", err)
	}

	summary, err = svc.GetUserSummary(affiliate.UserID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.Opened {
		t.Fatalf("summary.Opened = false")
	}
	if summary.AffiliateCode != affiliate.AffiliateCode {
		t.Fatalf("summary code = %q, want %q", summary.AffiliateCode, affiliate.AffiliateCode)
	}
	if summary.PromotionPath != "/?aff="+affiliate.AffiliateCode {
		t.Fatalf("promotion path = %q", summary.PromotionPath)
	}
	if summary.MonthKey != time.Now().Format(constants.MonthKeyLayout) {
		t.Fatalf("summary month key = %q, want current month", summary.MonthKey)
	}

	// 跨月后月度口径清零，累计口径保留。
	assertDecimal(t, "summary month sales", summary.MonthSales.Decimal, "0")
	if summary.MonthOrders != 0 {
		t.Fatalf("summary month orders = %d, want 0", summary.MonthOrders)
	}
	assertDecimal(t, "summary month commission", summary.MonthCommissionAccrued.Decimal, "0")
	assertDecimal(t, "summary lifetime sales", summary.LifetimeSales.Decimal, "2000")
	assertDecimal(t, "summary lifetime commission", summary.LifetimeCommission.Decimal, "20")
	assertDecimal(t, "summary current percent", summary.CurrentPercent.Decimal, "1")

	if summary.ClickCount != 2 {
		t.Fatalf("summary clicks = %d, want 2", summary.ClickCount)
	}
	if summary.ValidOrderCount != 1 {
		t.Fatalf("summary valid orders = %d, want 1", summary.ValidOrderCount)
	}
	if summary.ConversionRate != 50 {
		t.Fatalf("summary conversion = %v, want 50", summary.ConversionRate)
	}
}

func TestUpdateAffiliateStatusLifecycle(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "status@example.com")

	if _, err := svc.UpdateAffiliateStatus(affiliate.ID, "paused"); !errors.Is(err, ErrAffiliateStatusInvalid) {
		t.Fatalf("invalid status error = %v, want ErrAffiliateStatusInvalid", err)
	}
	if _, err := svc.UpdateAffiliateStatus(9999, constants.AffiliateStatusDisabled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown affiliate error = %v, want ErrNotFound", err)
	}

	updated, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusDisabled)
	if err != nil {
		t.Fatalf("disable affiliate: %v", err)
	}
	if updated.Status != constants.AffiliateStatusDisabled {
		t.Fatalf("status = %q, want disabled", updated.Status)
	}

	same, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusDisabled)
	if err != nil {
		t.Fatalf("repeat disable: %v", err)
	}
	if same.Status != constants.AffiliateStatusDisabled {
		t.Fatalf("repeat status = %q", same.Status)
	}

	restored, err := svc.UpdateAffiliateStatus(affiliate.ID, constants.AffiliateStatusActive)
	if err != nil {
		t.Fatalf("re-enable affiliate: %v", err)
	}
	if restored.Status != constants.AffiliateStatusActive {
		t.Fatalf("restored status = %q", restored.Status)
	}
}

func TestBatchUpdateAffiliateStatusDedupesIDs(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	first := openTestAffiliate(t, svc, db, "batch1@example.com")
	second := openTestAffiliate(t, svc, db, "batch2@example.com")

	if _, err := svc.BatchUpdateAffiliateStatus([]uint{first.ID}, "paused"); !errors.Is(err, ErrAffiliateStatusInvalid) {
		t.Fatalf("invalid status error = %v, want ErrAffiliateStatusInvalid", err)
	}

	affected, err := svc.BatchUpdateAffiliateStatus(
		[]uint{first.ID, second.ID, first.ID, 0},
		constants.AffiliateStatusDisabled,
	)
	if err != nil {
		t.Fatalf("batch disable: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected = %d, want 2", affected)
	}
	for _, id := range []uint{first.ID, second.ID} {
		if got := reloadTestAffiliate(t, db, id).Status; got != constants.AffiliateStatusDisabled {
			t.Fatalf("affiliate %d status = %q, want disabled", id, got)
		}
	}

	affected, err = svc.BatchUpdateAffiliateStatus(nil, constants.AffiliateStatusActive)
	if err != nil {
		t.Fatalf("batch with empty ids: %v", err)
	}
	if affected != 0 {
		t.Fatalf("affected = %d, want 0", affected)
	}
}

func TestUpdateAffiliateTierTableOverridesGlobal(t *testing.T) {
	svc, _, db := setupAffiliateServiceTest(t)
	affiliate := openTestAffiliate(t, svc, db, "tiers@example.com")

	invalid := models.TierTable{
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.Zero), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(150))},
	}
	if _, err := svc.UpdateAffiliateTierTable(affiliate.ID, invalid); !errors.Is(err, ErrTierTableInvalid) {
		t.Fatalf("invalid percent error = %v, want ErrTierTableInvalid", err)
	}
	duplicated := models.TierTable{
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.NewFromInt(100)), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(1))},
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.NewFromInt(100)), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(2))},
	}
	if _, err := svc.UpdateAffiliateTierTable(affiliate.ID, duplicated); !errors.Is(err, ErrTierTableInvalid) {
		t.Fatalf("duplicate threshold error = %v, want ErrTierTableInvalid", err)
	}

	custom := models.TierTable{
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.NewFromInt(1000)), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(20))},
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.Zero), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(10))},
	}
	updated, err := svc.UpdateAffiliateTierTable(affiliate.ID, custom)
	if err != nil {
		t.Fatalf("set tier table: %v", err)
	}
	if len(updated.TierTable) != 2 {
		t.Fatalf("tier table size = %d, want 2", len(updated.TierTable))
	}
	assertDecimal(t, "first threshold after sort", updated.TierTable[0].MinMonthlySales.Decimal, "0")
	assertDecimal(t, "first percent after sort", updated.TierTable[0].Percent.Decimal, "10")

	recordTestOrder(t, svc, affiliate.AffiliateCode, 9601, 100, true)
	rows := listOrderLedger(t, db, 9601)
	assertDecimal(t, "custom tier percent", rows[0].CommissionPercent.Decimal, "10")

	cleared, err := svc.UpdateAffiliateTierTable(affiliate.ID, models.TierTable{})
	if err != nil {
		t.Fatalf("clear tier table: %v", err)
	}
	if len(cleared.TierTable) != 0 {
		t.Fatalf("tier table size after clear = %d, want 0", len(cleared.TierTable))
	}

	recordTestOrder(t, svc, affiliate.AffiliateCode, 9602, 100, true)
	rows = listOrderLedger(t, db, 9602)
	assertDecimal(t, "global tier percent after clear", rows[0].CommissionPercent.Decimal, "1")
}
