package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	now := time.Now()
	currentMonth := now.Format(constants.MonthKeyLayout)
	previousMonth := service.PreviousMonthKey(now)

	// 添加演示用户
	passwordHash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	users := []models.User{
		{Email: "rahul@example.com", PasswordHash: string(passwordHash), DisplayName: "Rahul", Status: constants.UserStatusActive},
		{Email: "priya@example.com", PasswordHash: string(passwordHash), DisplayName: "Priya", Status: constants.UserStatusActive},
		{Email: "vikram@example.com", PasswordHash: string(passwordHash), DisplayName: "Vikram", Status: constants.UserStatusActive},
	}

	userIDs := map[string]uint{}
	for _, user := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", user.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", user.Email, err)
				continue
			}
			stdLog.Printf("Created user: %s", user.Email)
			userIDs[user.Email] = user.ID
		} else {
			stdLog.Printf("User already exists: %s", user.Email)
			userIDs[user.Email] = existing.ID
		}
	}

	// 添加推广账户
	// rahul 携带专属阶梯并有上月已锁定业绩，priya 为当月新开账户，vikram 留给开通流程演示。
	demoTiers := models.TierTable{
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.Zero), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(1))},
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.NewFromInt(10000)), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(2))},
		{MinMonthlySales: models.NewMoneyFromDecimal(decimal.NewFromInt(50000)), Percent: models.NewMoneyFromDecimal(decimal.NewFromInt(5))},
	}

	affiliates := []models.Affiliate{
		{
			UserID:                 userIDs["rahul@example.com"],
			AffiliateCode:          "FXRAHU01",
			Status:                 constants.AffiliateStatusActive,
			MonthKey:               currentMonth,
			MonthSales:             models.NewMoneyFromDecimal(decimal.NewFromInt(8000)),
			MonthOrders:            2,
			MonthCommissionAccrued: models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
			LifetimeSales:          models.NewMoneyFromDecimal(decimal.NewFromInt(25000)),
			LifetimeCommission:     models.NewMoneyFromDecimal(decimal.NewFromInt(300)),
			TierTable:              demoTiers,
		},
		{
			UserID:                 userIDs["priya@example.com"],
			AffiliateCode:          "FXPRIY02",
			Status:                 constants.AffiliateStatusActive,
			MonthKey:               currentMonth,
			MonthSales:             models.NewMoneyFromDecimal(decimal.NewFromInt(1500)),
			MonthOrders:            1,
			MonthCommissionAccrued: models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
			LifetimeSales:          models.NewMoneyFromDecimal(decimal.NewFromInt(1500)),
			LifetimeCommission:     models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
		},
	}

	affiliateIDs := map[string]uint{}
	for _, affiliate := range affiliates {
		if affiliate.UserID == 0 {
			stdLog.Printf("Skip affiliate %s: user missing", affiliate.AffiliateCode)
			continue
		}
		var existing models.Affiliate
		if err := models.DB.Where("affiliate_code = ?", affiliate.AffiliateCode).First(&existing).Error; err != nil {
			if err := models.DB.Create(&affiliate).Error; err != nil {
				stdLog.Printf("Failed to create affiliate %s: %v", affiliate.AffiliateCode, err)
				continue
			}
			stdLog.Printf("Created affiliate: %s", affiliate.AffiliateCode)
			affiliateIDs[affiliate.AffiliateCode] = affiliate.ID
		} else {
			stdLog.Printf("Affiliate already exists: %s", affiliate.AffiliateCode)
			affiliateIDs[affiliate.AffiliateCode] = existing.ID
		}
	}

	rahulAffiliateID := affiliateIDs["FXRAHU01"]
	priyaAffiliateID := affiliateIDs["FXPRIY02"]

	// 添加点击记录
	clicks := []models.AffiliateClick{
		{AffiliateID: rahulAffiliateID, VisitorKey: "visitor-demo-001", LandingPath: "/?aff=FXRAHU01", Referrer: "https://twitter.com/rahul", ClientIP: "203.0.113.10", UserAgent: "Mozilla/5.0"},
		{AffiliateID: rahulAffiliateID, VisitorKey: "visitor-demo-002", LandingPath: "/?aff=FXRAHU01", Referrer: "https://blog.example.com/review", ClientIP: "203.0.113.11", UserAgent: "Mozilla/5.0"},
		{AffiliateID: priyaAffiliateID, VisitorKey: "visitor-demo-003", LandingPath: "/?aff=FXPRIY02", Referrer: "", ClientIP: "203.0.113.12", UserAgent: "Mozilla/5.0"},
	}
	for _, click := range clicks {
		if click.AffiliateID == 0 {
			continue
		}
		var count int64
		models.DB.Model(&models.AffiliateClick{}).
			Where("affiliate_id = ? AND visitor_key = ?", click.AffiliateID, click.VisitorKey).
			Count(&count)
		if count > 0 {
			stdLog.Printf("Click already exists: %s", click.VisitorKey)
			continue
		}
		if err := models.DB.Create(&click).Error; err != nil {
			stdLog.Printf("Failed to create click %s: %v", click.VisitorKey, err)
		} else {
			stdLog.Printf("Created click: %s", click.VisitorKey)
		}
	}

	// 添加佣金流水
	// 上月流水已锁定并完成打款，当月覆盖已确认、待确认与部分退款冲正三种形态。
	lockedAt := now.AddDate(0, 0, -now.Day())
	approvedAt := now.Add(-72 * time.Hour)
	attributions := []models.AffiliateAttribution{
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90001,
			OrderNumber:       "ORD-DEMO-90001",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(8000)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(80)),
			Status:            constants.AttributionStatusLocked,
			MonthKey:          previousMonth,
			LockedAt:          &lockedAt,
		},
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90002,
			OrderNumber:       "ORD-DEMO-90002",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(4000)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(40)),
			Status:            constants.AttributionStatusLocked,
			MonthKey:          previousMonth,
			LockedAt:          &lockedAt,
		},
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90003,
			OrderNumber:       "ORD-DEMO-90003",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(5000)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(2)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
			Status:            constants.AttributionStatusLocked,
			MonthKey:          previousMonth,
			LockedAt:          &lockedAt,
		},
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90004,
			OrderNumber:       "ORD-DEMO-90004",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(4500)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(45)),
			Status:            constants.AttributionStatusApproved,
			MonthKey:          currentMonth,
			ApprovedAt:        &approvedAt,
		},
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90005,
			OrderNumber:       "ORD-DEMO-90005",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(2000)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
			Status:            constants.AttributionStatusPending,
			MonthKey:          currentMonth,
		},
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90006,
			OrderNumber:       "ORD-DEMO-90006",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(6000)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(60)),
			Status:            constants.AttributionStatusApproved,
			MonthKey:          currentMonth,
			ApprovedAt:        &approvedAt,
		},
		{
			AffiliateID:       rahulAffiliateID,
			OrderID:           90006,
			OrderNumber:       "ORD-DEMO-90006",
			Kind:              constants.AttributionKindReversal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(-2500)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(-25)),
			Status:            constants.AttributionStatusReversed,
			MonthKey:          currentMonth,
			Reason:            "partial_refund",
		},
		{
			AffiliateID:       priyaAffiliateID,
			OrderID:           90007,
			OrderNumber:       "ORD-DEMO-90007",
			Kind:              constants.AttributionKindOriginal,
			Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(1500)),
			CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
			CommissionAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(15)),
			Status:            constants.AttributionStatusApproved,
			MonthKey:          currentMonth,
			ApprovedAt:        &approvedAt,
		},
	}
	for _, attribution := range attributions {
		if attribution.AffiliateID == 0 {
			continue
		}
		var count int64
		models.DB.Model(&models.AffiliateAttribution{}).
			Where("order_id = ? AND kind = ?", attribution.OrderID, attribution.Kind).
			Count(&count)
		if count > 0 {
			stdLog.Printf("Attribution already exists: %s (%s)", attribution.OrderNumber, attribution.Kind)
			continue
		}
		if err := models.DB.Create(&attribution).Error; err != nil {
			stdLog.Printf("Failed to create attribution %s: %v", attribution.OrderNumber, err)
		} else {
			stdLog.Printf("Created attribution: %s (%s)", attribution.OrderNumber, attribution.Kind)
		}
	}

	// 添加上月已打款结算单
	if rahulAffiliateID != 0 && userIDs["rahul@example.com"] != 0 {
		var count int64
		models.DB.Model(&models.AffiliatePayout{}).
			Where("affiliate_id = ? AND month_key = ?", rahulAffiliateID, previousMonth).
			Count(&count)
		if count > 0 {
			stdLog.Printf("Payout already exists: %s %s", "FXRAHU01", previousMonth)
		} else {
			paidAt := now.Add(-48 * time.Hour)
			reviewedAt := now.Add(-60 * time.Hour)
			payout := models.AffiliatePayout{
				AffiliateID:       rahulAffiliateID,
				UserID:            userIDs["rahul@example.com"],
				MonthKey:          previousMonth,
				ReferenceNo:       "FXP-" + strings.ToUpper(uuid.New().String()),
				Amount:            models.NewMoneyFromDecimal(decimal.NewFromInt(220)),
				Status:            constants.PayoutStatusPaid,
				AccountHolder:     "Rahul Sharma",
				BankAccount:       "001234567890",
				BankIfsc:          "HDFC0001234",
				BankName:          "HDFC Bank",
				City:              "Mumbai",
				UpiID:             "rahul@upi",
				AadhaarMasked:     "********9012",
				PanNumber:         "ABCDE1234F",
				AccruedAmount:     models.NewMoneyFromDecimal(decimal.NewFromInt(220)),
				PriorPayoutAmount: models.NewMoneyFromDecimal(decimal.Zero),
				ReviewNote:        "演示数据",
				ReviewedAt:        &reviewedAt,
				PaidAt:            &paidAt,
			}
			if err := models.DB.Create(&payout).Error; err != nil {
				stdLog.Printf("Failed to create payout: %v", err)
			} else {
				stdLog.Printf("Created payout: %s %s", payout.ReferenceNo, previousMonth)
			}
		}
	}

	// 更新推广返利配置
	affiliateConfig := service.AffiliateSettingToMap(service.AffiliateSetting{
		Enabled: true,
		DefaultTiers: []service.AffiliateTierEntry{
			{MinMonthlySales: 0, Percent: 1},
			{MinMonthlySales: 10000, Percent: 2},
			{MinMonthlySales: 50000, Percent: 5},
		},
		MinPayoutAmount:         100,
		AllowCurrentMonthPayout: false,
		ClickDedupeMinutes:      10,
	})
	upsertSetting(stdLog.Printf, constants.SettingKeyAffiliateConfig, affiliateConfig)

	// 更新网站配置
	upsertSetting(stdLog.Printf, constants.SettingKeySiteConfig, map[string]interface{}{
		"brand": map[string]interface{}{
			"site_name": "分销返利中心",
		},
		constants.SettingFieldSiteCurrency: constants.SiteCurrencyDefault,
	})

	fmt.Println("\n✅ Demo data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Users (password: password123)")
	fmt.Println("- 2 Affiliates (FXRAHU01 with custom tiers, FXPRIY02 on defaults)")
	fmt.Println("- 3 Clicks")
	fmt.Println("- 8 Attributions (locked / approved / pending / reversal)")
	fmt.Println("- 1 Paid payout for " + previousMonth)
	fmt.Println("- Affiliate and site configuration")
}

func upsertSetting(logf func(format string, v ...interface{}), key string, value map[string]interface{}) {
	var setting models.Setting
	if err := models.DB.Where("key = ?", key).First(&setting).Error; err != nil {
		setting = models.Setting{
			Key:       key,
			ValueJSON: models.JSON(value),
		}
		if err := models.DB.Create(&setting).Error; err != nil {
			logf("Failed to create setting %s: %v", key, err)
		} else {
			logf("Created setting: %s", key)
		}
		return
	}
	setting.ValueJSON = models.JSON(value)
	if err := models.DB.Save(&setting).Error; err != nil {
		logf("Failed to update setting %s: %v", key, err)
	} else {
		logf("Updated setting: %s", key)
	}
}
