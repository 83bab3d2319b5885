package service

import (
	"testing"

	"github.com/fenxiao-next/internal/constants"
)

func TestGetAffiliateSettingFallback(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	setting, err := svc.GetAffiliateSetting()
	if err != nil {
		t.Fatalf("get affiliate setting failed: %v", err)
	}
	if setting.Enabled {
		t.Fatalf("expected default enabled false")
	}
	if len(setting.DefaultTiers) != 0 {
		t.Fatalf("expected default tiers empty, got %v", setting.DefaultTiers)
	}
	if setting.MinPayoutAmount != 0 {
		t.Fatalf("expected default min payout amount 0, got %v", setting.MinPayoutAmount)
	}
	if setting.AllowCurrentMonthPayout {
		t.Fatalf("expected default allow current month payout false")
	}
	if setting.ClickDedupeMinutes != 10 {
		t.Fatalf("expected default click dedupe minutes 10, got %d", setting.ClickDedupeMinutes)
	}
}

func TestUpdateAffiliateSettingNormalize(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	setting, err := svc.UpdateAffiliateSetting(AffiliateSetting{
		Enabled: true,
		DefaultTiers: []AffiliateTierEntry{
			{MinMonthlySales: 10000, Percent: 123.456},
			{MinMonthlySales: -50, Percent: 1},
			{MinMonthlySales: 0, Percent: 2},
			{MinMonthlySales: 50000, Percent: 5},
		},
		MinPayoutAmount:         -100.239,
		AllowCurrentMonthPayout: true,
		ClickDedupeMinutes:      5000,
	})
	if err != nil {
		t.Fatalf("update affiliate setting failed: %v", err)
	}
	if !setting.Enabled {
		t.Fatalf("expected enabled true")
	}
	// -50 归零后与 0 档位重复，仅保留先出现的一条。
	if len(setting.DefaultTiers) != 3 {
		t.Fatalf("expected 3 tiers, got %v", setting.DefaultTiers)
	}
	if setting.DefaultTiers[0].MinMonthlySales != 0 || setting.DefaultTiers[0].Percent != 1 {
		t.Fatalf("unexpected first tier: %+v", setting.DefaultTiers[0])
	}
	if setting.DefaultTiers[1].MinMonthlySales != 10000 || setting.DefaultTiers[1].Percent != 100 {
		t.Fatalf("unexpected second tier: %+v", setting.DefaultTiers[1])
	}
	if setting.DefaultTiers[2].MinMonthlySales != 50000 || setting.DefaultTiers[2].Percent != 5 {
		t.Fatalf("unexpected third tier: %+v", setting.DefaultTiers[2])
	}
	if setting.MinPayoutAmount != 0 {
		t.Fatalf("expected min payout amount clamp to 0, got %v", setting.MinPayoutAmount)
	}
	if !setting.AllowCurrentMonthPayout {
		t.Fatalf("expected allow current month payout true")
	}
	if setting.ClickDedupeMinutes != 1440 {
		t.Fatalf("expected click dedupe minutes clamp to 1440, got %d", setting.ClickDedupeMinutes)
	}

	saved, ok := repo.store[constants.SettingKeyAffiliateConfig]
	if !ok {
		t.Fatalf("expected affiliate setting saved")
	}
	if saved["enabled"] != true {
		t.Fatalf("expected saved enabled true, got %v", saved["enabled"])
	}
}

func TestUpdateAffiliateSettingRoundTrip(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo)

	if _, err := svc.UpdateAffiliateSetting(AffiliateSetting{
		Enabled: true,
		DefaultTiers: []AffiliateTierEntry{
			{MinMonthlySales: 0, Percent: 1},
			{MinMonthlySales: 10000, Percent: 2},
		},
		MinPayoutAmount:    100,
		ClickDedupeMinutes: 30,
	}); err != nil {
		t.Fatalf("update affiliate setting failed: %v", err)
	}

	setting, err := svc.GetAffiliateSetting()
	if err != nil {
		t.Fatalf("get affiliate setting failed: %v", err)
	}
	if !setting.Enabled {
		t.Fatalf("expected enabled true after round trip")
	}
	if len(setting.DefaultTiers) != 2 {
		t.Fatalf("expected 2 tiers after round trip, got %v", setting.DefaultTiers)
	}
	if setting.DefaultTiers[1].MinMonthlySales != 10000 || setting.DefaultTiers[1].Percent != 2 {
		t.Fatalf("unexpected tier after round trip: %+v", setting.DefaultTiers[1])
	}
	if setting.MinPayoutAmount != 100 {
		t.Fatalf("expected min payout amount 100, got %v", setting.MinPayoutAmount)
	}
	if setting.ClickDedupeMinutes != 30 {
		t.Fatalf("expected click dedupe minutes 30, got %d", setting.ClickDedupeMinutes)
	}
}
