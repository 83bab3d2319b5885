//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.ReconciliationFlag{},
		&models.AffiliatePayout{},
		&models.AffiliateAttribution{},
		&models.AffiliateClick{},
		&models.Affiliate{},
		&models.User{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Affiliate{},
		&models.AffiliateClick{},
		&models.AffiliateAttribution{},
		&models.AffiliatePayout{},
		&models.ReconciliationFlag{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func createPostgresAffiliate(t *testing.T, db *gorm.DB, email, displayName, code string) *models.Affiliate {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hashed",
		DisplayName:  displayName,
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	affiliate := &models.Affiliate{
		UserID:        user.ID,
		AffiliateCode: code,
		Status:        constants.AffiliateStatusActive,
		MonthKey:      time.Now().Format(constants.MonthKeyLayout),
	}
	if err := db.Create(affiliate).Error; err != nil {
		t.Fatalf("create affiliate failed: %v", err)
	}
	return affiliate
}

func TestPostgresKeywordSearchRepositories(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	monthKey := now.Format(constants.MonthKeyLayout)

	rahul := createPostgresAffiliate(t, db, "rahul@example.com", "Rahul Sharma", "FXRAHU01")
	createPostgresAffiliate(t, db, "priya@example.com", "Priya Patel", "FXPRIY02")

	affiliateRepo := NewAffiliateRepository(db)
	affiliateRows, affiliateTotal, err := affiliateRepo.List(AffiliateListFilter{
		Page:    1,
		Keyword: "RAHUL",
	})
	if err != nil {
		t.Fatalf("affiliate list keyword failed: %v", err)
	}
	if affiliateTotal != 1 || len(affiliateRows) != 1 {
		t.Fatalf("affiliate list keyword want 1 got total=%d len=%d", affiliateTotal, len(affiliateRows))
	}
	if affiliateRows[0].ID != rahul.ID {
		t.Fatalf("affiliate list keyword want id %d got %d", rahul.ID, affiliateRows[0].ID)
	}

	attribution := &models.AffiliateAttribution{
		AffiliateID:       rahul.ID,
		OrderID:           90001,
		OrderNumber:       "ORD-PG-90001",
		Kind:              constants.AttributionKindOriginal,
		Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(1000)),
		CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
		CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Status:            constants.AttributionStatusApproved,
		ApprovedAt:        &now,
		MonthKey:          monthKey,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := db.Create(attribution).Error; err != nil {
		t.Fatalf("create attribution failed: %v", err)
	}

	attributionRepo := NewAttributionRepository(db)
	attributionRows, attributionTotal, err := attributionRepo.List(AttributionListFilter{
		Page:    1,
		Keyword: "pg-90001",
	})
	if err != nil {
		t.Fatalf("attribution list keyword failed: %v", err)
	}
	if attributionTotal != 1 || len(attributionRows) != 1 {
		t.Fatalf("attribution list keyword want 1 got total=%d len=%d", attributionTotal, len(attributionRows))
	}

	payout := &models.AffiliatePayout{
		AffiliateID:   rahul.ID,
		UserID:        rahul.UserID,
		MonthKey:      monthKey,
		ReferenceNo:   "FXP-PG-0001",
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(220)),
		Status:        constants.PayoutStatusRequested,
		AccountHolder: "Rahul Sharma",
		BankAccount:   "000111222333",
		BankIfsc:      "HDFC0001234",
		BankName:      "HDFC Bank",
	}
	if err := db.Create(payout).Error; err != nil {
		t.Fatalf("create payout failed: %v", err)
	}

	payoutRepo := NewPayoutRepository(db)
	payoutRows, payoutTotal, err := payoutRepo.List(PayoutListFilter{
		Page:    1,
		Keyword: "sharma",
	})
	if err != nil {
		t.Fatalf("payout list keyword failed: %v", err)
	}
	if payoutTotal != 1 || len(payoutRows) != 1 {
		t.Fatalf("payout list keyword want 1 got total=%d len=%d", payoutTotal, len(payoutRows))
	}
}

func TestPostgresDashboardQueries(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewDashboardRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	monthKey := now.Format(constants.MonthKeyLayout)

	rahul := createPostgresAffiliate(t, db, "rahul@example.com", "Rahul Sharma", "FXRAHU01")

	click := &models.AffiliateClick{
		AffiliateID: rahul.ID,
		VisitorKey:  "visitor-pg-1",
		LandingPath: "/",
		Referrer:    "https://instagram.com/reel/1",
		CreatedAt:   now,
	}
	if err := db.Create(click).Error; err != nil {
		t.Fatalf("create click failed: %v", err)
	}

	attribution := &models.AffiliateAttribution{
		AffiliateID:       rahul.ID,
		OrderID:           90001,
		OrderNumber:       "ORD-PG-90001",
		Kind:              constants.AttributionKindOriginal,
		Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(1500)),
		CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
		CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
		Status:            constants.AttributionStatusApproved,
		ApprovedAt:        &now,
		MonthKey:          monthKey,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := db.Create(attribution).Error; err != nil {
		t.Fatalf("create attribution failed: %v", err)
	}

	startAt := now.Add(-time.Hour)
	endAt := now.Add(time.Hour)

	overview, err := repo.GetOverview(startAt, endAt)
	if err != nil {
		t.Fatalf("get overview failed: %v", err)
	}
	if overview.ClicksTotal != 1 {
		t.Fatalf("overview clicks want 1 got %d", overview.ClicksTotal)
	}
	if overview.AttributionsTotal != 1 {
		t.Fatalf("overview attributions want 1 got %d", overview.AttributionsTotal)
	}
	if overview.CommissionAccrued != 15 {
		t.Fatalf("overview commission want 15 got %.2f", overview.CommissionAccrued)
	}

	topAffiliates, err := repo.GetTopAffiliates(startAt, endAt, 5)
	if err != nil {
		t.Fatalf("get top affiliates failed: %v", err)
	}
	if len(topAffiliates) != 1 {
		t.Fatalf("top affiliates len want 1 got %d", len(topAffiliates))
	}
	if topAffiliates[0].AffiliateCode != "FXRAHU01" {
		t.Fatalf("top affiliate code want FXRAHU01 got %s", topAffiliates[0].AffiliateCode)
	}

	clickTrends, err := repo.GetClickTrends(startAt, endAt)
	if err != nil {
		t.Fatalf("get click trends failed: %v", err)
	}
	if len(clickTrends) == 0 {
		t.Fatalf("click trends should not be empty")
	}
	if strings.TrimSpace(clickTrends[0].Day) == "" {
		t.Fatalf("click trend day should not be empty")
	}

	attributionTrends, err := repo.GetAttributionTrends(startAt, endAt)
	if err != nil {
		t.Fatalf("get attribution trends failed: %v", err)
	}
	if len(attributionTrends) == 0 {
		t.Fatalf("attribution trends should not be empty")
	}
	if strings.TrimSpace(attributionTrends[0].Day) == "" {
		t.Fatalf("attribution trend day should not be empty")
	}
}
