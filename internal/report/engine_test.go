package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"cafepos/backend/internal/domain"
)

// mapDashboardCache is an in-memory stand-in for the redis cache.
type mapDashboardCache struct {
	mu      sync.Mutex
	entries map[string]domain.DashboardSummary
}

func newMapDashboardCache() *mapDashboardCache {
	return &mapDashboardCache{entries: make(map[string]domain.DashboardSummary)}
}

func (c *mapDashboardCache) Get(_ context.Context, key string) (*domain.DashboardSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &summary, true, nil
}

func (c *mapDashboardCache) Set(_ context.Context, key string, summary *domain.DashboardSummary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *summary
	return nil
}

// A Wednesday evening in shop-local time (UTC+8): 2026-03-18 18:00 local.
var testNow = time.Date(2026, time.March, 18, 10, 0, 0, 0, time.UTC)

func TestResolveRangePresets(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	cases := []struct {
		preset string
		label  string
		from   time.Time
		to     time.Time
	}{
		{
			preset: "today",
			label:  "Today",
			from:   time.Date(2026, time.March, 17, 16, 0, 0, 0, time.UTC),
			to:     time.Date(2026, time.March, 18, 16, 0, 0, 0, time.UTC),
		},
		{
			preset: "yesterday",
			label:  "Yesterday",
			from:   time.Date(2026, time.March, 16, 16, 0, 0, 0, time.UTC),
			to:     time.Date(2026, time.March, 17, 16, 0, 0, 0, time.UTC),
		},
		{
			// Local Monday is March 16.
			preset: "this week",
			label:  "This Week",
			from:   time.Date(2026, time.March, 15, 16, 0, 0, 0, time.UTC),
			to:     time.Date(2026, time.March, 22, 16, 0, 0, 0, time.UTC),
		},
		{
			preset: "this month",
			label:  "This Month",
			from:   time.Date(2026, time.February, 28, 16, 0, 0, 0, time.UTC),
			to:     time.Date(2026, time.March, 31, 16, 0, 0, 0, time.UTC),
		},
		{
			preset: "last month",
			label:  "Last Month",
			from:   time.Date(2026, time.January, 31, 16, 0, 0, 0, time.UTC),
			to:     time.Date(2026, time.February, 28, 16, 0, 0, 0, time.UTC),
		},
		{
			preset: "this year",
			label:  "This Year",
			from:   time.Date(2025, time.December, 31, 16, 0, 0, 0, time.UTC),
			to:     time.Date(2026, time.December, 31, 16, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		got, err := engine.ResolveRange(tc.preset, "", "", testNow)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.preset, err)
		}
		if got.Label != tc.label {
			t.Fatalf("preset %q: expected label %q, got %q", tc.preset, tc.label, got.Label)
		}
		if !got.From.Equal(tc.from) {
			t.Fatalf("preset %q: expected from %v, got %v", tc.preset, tc.from, got.From)
		}
		if !got.To.Equal(tc.to) {
			t.Fatalf("preset %q: expected to %v, got %v", tc.preset, tc.to, got.To)
		}
	}
}

func TestResolveRangeWeekStartsOnMonday(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	// A local Sunday must still anchor the week on the previous Monday.
	sunday := time.Date(2026, time.March, 22, 4, 0, 0, 0, time.UTC) // local 12:00 Sunday March 22
	got, err := engine.ResolveRange("week", "", "", sunday)
	if err != nil {
		t.Fatalf("resolve week: %v", err)
	}
	wantFrom := time.Date(2026, time.March, 15, 16, 0, 0, 0, time.UTC) // local Monday March 16
	if !got.From.Equal(wantFrom) {
		t.Fatalf("expected week to start %v, got %v", wantFrom, got.From)
	}
}

func TestResolveRangeAllTime(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	got, err := engine.ResolveRange("all time", "", "", testNow)
	if err != nil {
		t.Fatalf("resolve all time: %v", err)
	}
	if !got.From.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("expected epoch start, got %v", got.From)
	}
	if !got.To.After(testNow) {
		t.Fatalf("expected upper bound after now, got %v", got.To)
	}
}

func TestResolveRangeExplicitDates(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	got, err := engine.ResolveRange("", "2026-02-01", "2026-02-07", testNow)
	if err != nil {
		t.Fatalf("resolve explicit: %v", err)
	}
	if got.Label != "2026-02-01 to 2026-02-07" {
		t.Fatalf("unexpected label %q", got.Label)
	}
	// Local midnights converted to UTC; the end day is inclusive.
	if !got.From.Equal(time.Date(2026, time.January, 31, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", got.From)
	}
	if !got.To.Equal(time.Date(2026, time.February, 7, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to %v", got.To)
	}

	if _, err := engine.ResolveRange("", "2026-02-07", "2026-02-01", testNow); err == nil {
		t.Fatalf("expected error for end before start")
	}
	if _, err := engine.ResolveRange("", "02/01/2026", "2026-02-07", testNow); err == nil {
		t.Fatalf("expected error for malformed start date")
	}
	if _, err := engine.ResolveRange("fortnight", "", "", testNow); err == nil {
		t.Fatalf("expected error for unknown preset")
	}
}

func TestForecastTrendClassification(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	cases := []struct {
		name      string
		revenue30 int64
		revenue7  int64
		trend     string
	}{
		{"rising above band", 300000, 77700, domain.TrendRising},
		{"cooling below band", 300000, 62300, domain.TrendCooling},
		{"flat", 300000, 70000, domain.TrendStable},
		// Exactly on the band edge stays stable; the comparison is strict.
		{"upper edge", 300000, 77000, domain.TrendStable},
		{"lower edge", 300000, 63000, domain.TrendStable},
		{"no history", 0, 0, domain.TrendStable},
	}

	for _, tc := range cases {
		forecast := engine.Forecast(tc.revenue30, tc.revenue7)
		if forecast.Trend != tc.trend {
			t.Fatalf("%s: expected trend %s, got %s", tc.name, tc.trend, forecast.Trend)
		}
	}
}

func TestForecastProjections(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	forecast := engine.Forecast(300000, 70000)
	if forecast.DailyAverageCents != 10000 {
		t.Fatalf("expected daily average 10000, got %d", forecast.DailyAverageCents)
	}
	if forecast.RecentAverageCents != 10000 {
		t.Fatalf("expected recent average 10000, got %d", forecast.RecentAverageCents)
	}
	if forecast.Next1DayCents != 10000 || forecast.Next7DaysCents != 70000 || forecast.Next30DaysCents != 300000 {
		t.Fatalf("unexpected projections: %+v", forecast)
	}

	// Fractional averages round up so the projection never undershoots.
	forecast = engine.Forecast(100, 0)
	if forecast.Next1DayCents != 4 {
		t.Fatalf("expected 1-day projection ceil(3.33)=4, got %d", forecast.Next1DayCents)
	}
	if forecast.Next7DaysCents != 24 {
		t.Fatalf("expected 7-day projection ceil(23.33)=24, got %d", forecast.Next7DaysCents)
	}
	if forecast.Next30DaysCents != 100 {
		t.Fatalf("expected 30-day projection 100, got %d", forecast.Next30DaysCents)
	}
}

func TestDashboardCacheRoundTrip(t *testing.T) {
	cacheStore := newMapDashboardCache()
	engine := NewEngine(cacheStore, time.Minute, 8)

	key := engine.DashboardCacheKey(testNow)
	if key != "pos:dashboard:2026-03-18" {
		t.Fatalf("unexpected cache key %q", key)
	}

	if _, ok := engine.CachedDashboard(context.Background(), key); ok {
		t.Fatalf("expected cache miss before save")
	}

	summary := &domain.DashboardSummary{Date: "2026-03-18", RevenueCents: 12345, Transactions: 3}
	engine.SaveDashboard(context.Background(), key, summary)

	cached, ok := engine.CachedDashboard(context.Background(), key)
	if !ok {
		t.Fatalf("expected cache hit after save")
	}
	if cached.RevenueCents != 12345 || cached.Transactions != 3 {
		t.Fatalf("unexpected cached summary %+v", cached)
	}
}

func TestBuildSalesWorkbook(t *testing.T) {
	engine := NewEngine(nil, 0, 8)

	sales := []domain.Sale{
		{
			ID:            "sale-1",
			TotalCents:    18000,
			PaymentMethod: domain.PaymentCash,
			CreatedAt:     time.Date(2026, time.March, 18, 2, 30, 0, 0, time.UTC),
			Lines: []domain.SaleLine{
				{ProductID: "prod-americano-m", ProductName: "Americano (M)", Qty: 2, UnitPriceCents: 9000, LineTotalCents: 18000},
			},
		},
		{
			ID:            "sale-2",
			TotalCents:    12000,
			PaymentMethod: domain.PaymentDigital,
			CreatedAt:     time.Date(2026, time.March, 18, 3, 0, 0, 0, time.UTC),
			Lines: []domain.SaleLine{
				{ProductID: "prod-latte-m", ProductName: "Cafe Latte (M)", Qty: 1, UnitPriceCents: 12000, LineTotalCents: 12000},
			},
		},
	}

	workbook, err := engine.BuildSalesWorkbook(sales)
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}

	cell := func(ref string) string {
		value, err := workbook.GetCellValue("Sales", ref)
		if err != nil {
			t.Fatalf("get cell %s: %v", ref, err)
		}
		return value
	}

	if cell("A1") != "Sale ID" || cell("E1") != "Total Amount" {
		t.Fatalf("unexpected header row: %q / %q", cell("A1"), cell("E1"))
	}
	if cell("A2") != "sale-1" {
		t.Fatalf("unexpected sale id %q", cell("A2"))
	}
	// 02:30 UTC is 10:30 shop-local.
	if cell("B2") != "2026-03-18 10:30" {
		t.Fatalf("unexpected local date %q", cell("B2"))
	}
	if cell("C2") != "2x Americano (M)" {
		t.Fatalf("unexpected items summary %q", cell("C2"))
	}
	if cell("E2") != "180" {
		t.Fatalf("unexpected amount %q", cell("E2"))
	}
	if cell("D4") != "Grand Total" {
		t.Fatalf("expected grand total label in D4, got %q", cell("D4"))
	}
	if cell("E4") != "300" {
		t.Fatalf("expected grand total 300, got %q", cell("E4"))
	}
}

func TestItemsSummary(t *testing.T) {
	lines := []domain.SaleLine{
		{ProductName: "Americano (M)", Qty: 2},
		{ProductName: "Banana Muffin", Qty: 1},
	}
	if got := itemsSummary(lines); got != "2x Americano (M), 1x Banana Muffin" {
		t.Fatalf("unexpected summary %q", got)
	}
}
