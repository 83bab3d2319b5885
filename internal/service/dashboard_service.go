package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/repository"
)

const (
	dashboardCacheTTL      = 45 * time.Second
	dashboardCustomMaxDays = 90
)

// DashboardService 仪表盘服务
// 说明：聚合后台首页分销经营数据。
type DashboardService struct {
	repo           repository.DashboardRepository
	settingService *SettingService
}

// NewDashboardService 创建仪表盘服务
func NewDashboardService(repo repository.DashboardRepository, settingService *SettingService) *DashboardService {
	return &DashboardService{repo: repo, settingService: settingService}
}

// DashboardQueryInput 仪表盘查询输入
type DashboardQueryInput struct {
	Range        string
	From         *time.Time
	To           *time.Time
	Timezone     string
	ForceRefresh bool
}

// DashboardOverviewResponse 仪表盘总览响应
type DashboardOverviewResponse struct {
	Range    string               `json:"range"`
	From     string               `json:"from"`
	To       string               `json:"to"`
	Timezone string               `json:"timezone"`
	Currency string               `json:"currency,omitempty"`
	KPI      DashboardKPI         `json:"kpi"`
	Funnel   DashboardFunnel      `json:"funnel"`
	Alerts   []DashboardAlertItem `json:"alerts"`
}

// DashboardKPI 仪表盘核心指标
type DashboardKPI struct {
	ClicksTotal             int64  `json:"clicks_total"`
	NewUsers                int64  `json:"new_users"`
	NewAffiliates           int64  `json:"new_affiliates"`
	AttributionsTotal       int64  `json:"attributions_total"`
	AttributionsReversed    int64  `json:"attributions_reversed"`
	SalesAttributed         string `json:"sales_attributed"`
	CommissionAccrued       string `json:"commission_accrued"`
	ConversionRate          string `json:"conversion_rate"`
	PayoutsPaid             int64  `json:"payouts_paid"`
	PayoutAmountPaid        string `json:"payout_amount_paid"`
	PendingAttributions     int64  `json:"pending_attributions"`
	PayoutsRequested        int64  `json:"payouts_requested"`
	PayoutsProcessing       int64  `json:"payouts_processing"`
	OpenReconciliationFlags int64  `json:"open_reconciliation_flags"`
}

// DashboardFunnel 仪表盘转化漏斗
type DashboardFunnel struct {
	Clicks           int64  `json:"clicks"`
	AttributedOrders int64  `json:"attributed_orders"`
	DurableOrders    int64  `json:"durable_orders"`
	ReversedOrders   int64  `json:"reversed_orders"`
	AttributionRate  string `json:"attribution_rate"`
	DurableRate      string `json:"durable_rate"`
}

// DashboardAlertItem 仪表盘告警项
type DashboardAlertItem struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	Value int64  `json:"value"`
}

// DashboardTrendResponse 仪表盘趋势响应
type DashboardTrendResponse struct {
	Range    string                `json:"range"`
	From     string                `json:"from"`
	To       string                `json:"to"`
	Timezone string                `json:"timezone"`
	Points   []DashboardTrendPoint `json:"points"`
}

// DashboardTrendPoint 趋势点
type DashboardTrendPoint struct {
	Date              string `json:"date"`
	Clicks            int64  `json:"clicks"`
	AttributionsTotal int64  `json:"attributions_total"`
	ReversedOrders    int64  `json:"reversed_orders"`
	SalesAttributed   string `json:"sales_attributed"`
	CommissionAccrued string `json:"commission_accrued"`
}

// DashboardRankingsResponse 仪表盘排行榜响应
type DashboardRankingsResponse struct {
	Range         string                      `json:"range"`
	From          string                      `json:"from"`
	To            string                      `json:"to"`
	Timezone      string                      `json:"timezone"`
	TopAffiliates []DashboardAffiliateRanking `json:"top_affiliates"`
	TopReferrers  []DashboardReferrerRanking  `json:"top_referrers"`
}

// DashboardAffiliateRanking 推广账户排行项
type DashboardAffiliateRanking struct {
	AffiliateID      uint   `json:"affiliate_id"`
	AffiliateCode    string `json:"affiliate_code"`
	DisplayName      string `json:"display_name"`
	Orders           int64  `json:"orders"`
	SalesAmount      string `json:"sales_amount"`
	CommissionAmount string `json:"commission_amount"`
}

// DashboardReferrerRanking 引流来源排行项
type DashboardReferrerRanking struct {
	Referrer string `json:"referrer"`
	Clicks   int64  `json:"clicks"`
}

type dashboardWindow struct {
	rangeKey string
	startAt  time.Time
	endAt    time.Time
	timezone string
}

// GetOverview 获取仪表盘总览
func (s *DashboardService) GetOverview(ctx context.Context, input DashboardQueryInput) (*DashboardOverviewResponse, error) {
	if s == nil || s.repo == nil {
		return &DashboardOverviewResponse{}, nil
	}

	window, err := resolveDashboardWindow(input, time.Now())
	if err != nil {
		return nil, err
	}

	setting := s.loadDashboardSetting()

	cacheKey := fmt.Sprintf("dashboard:overview:%s:%d:%d:%s:%d:%d:%d:%d",
		window.rangeKey,
		window.startAt.Unix(),
		window.endAt.Unix(),
		window.timezone,
		setting.Alert.PendingAttributionsThreshold,
		setting.Alert.PayoutBacklogThreshold,
		setting.Alert.OpenFlagsThreshold,
		setting.Alert.ReversedOrdersThreshold,
	)
	if !input.ForceRefresh {
		var cached DashboardOverviewResponse
		hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached)
		if cacheErr == nil && hit {
			return &cached, nil
		}
	}

	overview, err := s.repo.GetOverview(window.startAt, window.endAt)
	if err != nil {
		return nil, err
	}
	backlog, err := s.repo.GetBacklogStats()
	if err != nil {
		return nil, err
	}

	currency, err := s.settingService.GetSiteCurrency()
	if err != nil {
		currency = ""
	}

	conversionRate := 0.0
	if overview.ClicksTotal > 0 {
		conversionRate = float64(overview.AttributionsTotal) / float64(overview.ClicksTotal) * 100
	}

	durableOrders := overview.AttributionsTotal - overview.AttributionsPending - overview.AttributionsReversed
	if durableOrders < 0 {
		durableOrders = 0
	}
	durableRate := 0.0
	if overview.AttributionsTotal > 0 {
		durableRate = float64(durableOrders) / float64(overview.AttributionsTotal) * 100
	}

	response := &DashboardOverviewResponse{
		Range:    window.rangeKey,
		From:     window.startAt.Format(time.RFC3339),
		To:       window.endAt.Add(-time.Second).Format(time.RFC3339),
		Timezone: window.timezone,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
		KPI: DashboardKPI{
			ClicksTotal:             overview.ClicksTotal,
			NewUsers:                overview.NewUsers,
			NewAffiliates:           overview.NewAffiliates,
			AttributionsTotal:       overview.AttributionsTotal,
			AttributionsReversed:    overview.AttributionsReversed,
			SalesAttributed:         formatMoneyValue(overview.SalesAttributed),
			CommissionAccrued:       formatMoneyValue(overview.CommissionAccrued),
			ConversionRate:          formatPercentValue(conversionRate),
			PayoutsPaid:             overview.PayoutsPaid,
			PayoutAmountPaid:        formatMoneyValue(overview.PayoutAmountPaid),
			PendingAttributions:     backlog.PendingAttributions,
			PayoutsRequested:        backlog.PayoutsRequested,
			PayoutsProcessing:       backlog.PayoutsProcessing,
			OpenReconciliationFlags: backlog.OpenReconciliationFlags,
		},
		Funnel: DashboardFunnel{
			Clicks:           overview.ClicksTotal,
			AttributedOrders: overview.AttributionsTotal,
			DurableOrders:    durableOrders,
			ReversedOrders:   overview.AttributionsReversed,
			AttributionRate:  formatPercentValue(conversionRate),
			DurableRate:      formatPercentValue(durableRate),
		},
		Alerts: buildDashboardAlerts(overview, backlog, setting.Alert),
	}

	_ = cache.SetJSON(ctx, cacheKey, response, dashboardCacheTTL)
	return response, nil
}

// GetTrends 获取仪表盘趋势
func (s *DashboardService) GetTrends(ctx context.Context, input DashboardQueryInput) (*DashboardTrendResponse, error) {
	if s == nil || s.repo == nil {
		return &DashboardTrendResponse{}, nil
	}

	window, err := resolveDashboardWindow(input, time.Now())
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("dashboard:trends:%s:%d:%d:%s", window.rangeKey, window.startAt.Unix(), window.endAt.Unix(), window.timezone)
	if !input.ForceRefresh {
		var cached DashboardTrendResponse
		hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached)
		if cacheErr == nil && hit {
			return &cached, nil
		}
	}

	clickRows, err := s.repo.GetClickTrends(window.startAt, window.endAt)
	if err != nil {
		return nil, err
	}
	attributionRows, err := s.repo.GetAttributionTrends(window.startAt, window.endAt)
	if err != nil {
		return nil, err
	}

	clickMap := make(map[string]repository.DashboardClickTrendRow, len(clickRows))
	for _, item := range clickRows {
		clickMap[item.Day] = item
	}
	attributionMap := make(map[string]repository.DashboardAttributionTrendRow, len(attributionRows))
	for _, item := range attributionRows {
		attributionMap[item.Day] = item
	}

	points := make([]DashboardTrendPoint, 0)
	for cursor := time.Date(window.startAt.Year(), window.startAt.Month(), window.startAt.Day(), 0, 0, 0, 0, window.startAt.Location()); cursor.Before(window.endAt); cursor = cursor.AddDate(0, 0, 1) {
		day := cursor.Format("2006-01-02")
		clickItem := clickMap[day]
		attributionItem := attributionMap[day]
		points = append(points, DashboardTrendPoint{
			Date:              day,
			Clicks:            clickItem.Clicks,
			AttributionsTotal: attributionItem.AttributionsTotal,
			ReversedOrders:    attributionItem.ReversedOrders,
			SalesAttributed:   formatMoneyValue(attributionItem.SalesAttributed),
			CommissionAccrued: formatMoneyValue(attributionItem.CommissionAccrued),
		})
	}

	response := &DashboardTrendResponse{
		Range:    window.rangeKey,
		From:     window.startAt.Format(time.RFC3339),
		To:       window.endAt.Add(-time.Second).Format(time.RFC3339),
		Timezone: window.timezone,
		Points:   points,
	}

	_ = cache.SetJSON(ctx, cacheKey, response, dashboardCacheTTL)
	return response, nil
}

// GetRankings 获取仪表盘排行榜
func (s *DashboardService) GetRankings(ctx context.Context, input DashboardQueryInput) (*DashboardRankingsResponse, error) {
	if s == nil || s.repo == nil {
		return &DashboardRankingsResponse{}, nil
	}

	window, err := resolveDashboardWindow(input, time.Now())
	if err != nil {
		return nil, err
	}

	setting := s.loadDashboardSetting()

	cacheKey := fmt.Sprintf("dashboard:rankings:%s:%d:%d:%s:%d:%d",
		window.rangeKey,
		window.startAt.Unix(),
		window.endAt.Unix(),
		window.timezone,
		setting.Ranking.TopAffiliatesLimit,
		setting.Ranking.TopReferrersLimit,
	)
	if !input.ForceRefresh {
		var cached DashboardRankingsResponse
		hit, cacheErr := cache.GetJSON(ctx, cacheKey, &cached)
		if cacheErr == nil && hit {
			return &cached, nil
		}
	}

	affiliateRows, err := s.repo.GetTopAffiliates(window.startAt, window.endAt, setting.Ranking.TopAffiliatesLimit)
	if err != nil {
		return nil, err
	}
	referrerRows, err := s.repo.GetTopReferrers(window.startAt, window.endAt, setting.Ranking.TopReferrersLimit)
	if err != nil {
		return nil, err
	}

	affiliates := make([]DashboardAffiliateRanking, 0, len(affiliateRows))
	for _, item := range affiliateRows {
		displayName := strings.TrimSpace(item.DisplayName)
		if displayName == "" {
			displayName = "-"
		}
		affiliates = append(affiliates, DashboardAffiliateRanking{
			AffiliateID:      item.AffiliateID,
			AffiliateCode:    strings.TrimSpace(item.AffiliateCode),
			DisplayName:      displayName,
			Orders:           item.Orders,
			SalesAmount:      formatMoneyValue(item.SalesAmount),
			CommissionAmount: formatMoneyValue(item.CommissionAmount),
		})
	}

	referrers := make([]DashboardReferrerRanking, 0, len(referrerRows))
	for _, item := range referrerRows {
		referrer := strings.TrimSpace(item.Referrer)
		if referrer == "" {
			referrer = "direct"
		}
		referrers = append(referrers, DashboardReferrerRanking{
			Referrer: referrer,
			Clicks:   item.Clicks,
		})
	}

	response := &DashboardRankingsResponse{
		Range:         window.rangeKey,
		From:          window.startAt.Format(time.RFC3339),
		To:            window.endAt.Add(-time.Second).Format(time.RFC3339),
		Timezone:      window.timezone,
		TopAffiliates: affiliates,
		TopReferrers:  referrers,
	}

	_ = cache.SetJSON(ctx, cacheKey, response, dashboardCacheTTL)
	return response, nil
}

func (s *DashboardService) loadDashboardSetting() DashboardSetting {
	fallback := DashboardDefaultSetting()
	if s == nil || s.settingService == nil {
		return fallback
	}
	setting, err := s.settingService.GetDashboardSetting()
	if err != nil {
		return fallback
	}
	return NormalizeDashboardSetting(setting)
}

func resolveDashboardWindow(input DashboardQueryInput, now time.Time) (dashboardWindow, error) {
	rangeKey := strings.ToLower(strings.TrimSpace(input.Range))
	if rangeKey == "" {
		rangeKey = "7d"
	}

	timezone := strings.TrimSpace(input.Timezone)
	location := time.Local
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			location = parsed
		} else {
			timezone = ""
		}
	}
	if timezone == "" {
		timezone = location.String()
	}

	localNow := now.In(location)
	todayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, location)
	window := dashboardWindow{rangeKey: rangeKey, timezone: timezone}

	switch rangeKey {
	case "today":
		window.startAt = todayStart
		window.endAt = todayStart.AddDate(0, 0, 1)
	case "7d":
		window.startAt = todayStart.AddDate(0, 0, -6)
		window.endAt = todayStart.AddDate(0, 0, 1)
	case "30d":
		window.startAt = todayStart.AddDate(0, 0, -29)
		window.endAt = todayStart.AddDate(0, 0, 1)
	case "custom":
		if input.From == nil || input.To == nil {
			return dashboardWindow{}, ErrDashboardRangeInvalid
		}
		startAt := input.From.In(location)
		endAt := input.To.In(location)
		if endAt.Before(startAt) {
			return dashboardWindow{}, ErrDashboardRangeInvalid
		}
		if endAt.Sub(startAt) > time.Hour*24*dashboardCustomMaxDays {
			return dashboardWindow{}, ErrDashboardRangeInvalid
		}
		window.startAt = startAt
		window.endAt = endAt.Add(time.Second)
	default:
		return dashboardWindow{}, ErrDashboardRangeInvalid
	}

	if !window.endAt.After(window.startAt) {
		return dashboardWindow{}, ErrDashboardRangeInvalid
	}
	return window, nil
}

func formatMoneyValue(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func formatPercentValue(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func buildDashboardAlerts(overview repository.DashboardOverviewRow, backlog repository.DashboardBacklogRow, alertSetting DashboardAlertSetting) []DashboardAlertItem {
	alerts := make([]DashboardAlertItem, 0, 4)
	if backlog.OpenReconciliationFlags >= alertSetting.OpenFlagsThreshold {
		alerts = append(alerts, DashboardAlertItem{Type: "open_reconciliation_flags", Level: "error", Value: backlog.OpenReconciliationFlags})
	}
	payoutBacklog := backlog.PayoutsRequested + backlog.PayoutsProcessing
	if payoutBacklog >= alertSetting.PayoutBacklogThreshold {
		alerts = append(alerts, DashboardAlertItem{Type: "payout_backlog", Level: "warning", Value: payoutBacklog})
	}
	if backlog.PendingAttributions >= alertSetting.PendingAttributionsThreshold {
		alerts = append(alerts, DashboardAlertItem{Type: "pending_attributions", Level: "warning", Value: backlog.PendingAttributions})
	}
	if overview.AttributionsReversed >= alertSetting.ReversedOrdersThreshold {
		alerts = append(alerts, DashboardAlertItem{Type: "reversed_orders", Level: "warning", Value: overview.AttributionsReversed})
	}
	return alerts
}
