package report

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"cafepos/backend/internal/cache"
	"cafepos/backend/internal/domain"
)

// Engine holds the read-side report logic: date-range resolution in the
// shop's timezone, the revenue forecast, workbook export and the dashboard
// cache. It never touches storage itself; callers pass aggregated data in.
type Engine struct {
	cache       cache.DashboardCache
	cacheTTL    time.Duration
	offsetHours int
	location    *time.Location
}

func NewEngine(cacheStore cache.DashboardCache, cacheTTL time.Duration, offsetHours int) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopDashboardCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}

	return &Engine{
		cache:       cacheStore,
		cacheTTL:    cacheTTL,
		offsetHours: offsetHours,
		location:    time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600),
	}
}

func (e *Engine) OffsetHours() int {
	return e.offsetHours
}

func (e *Engine) Location() *time.Location {
	return e.location
}

// ResolveRange turns a preset name or an explicit start/end date pair into
// UTC bounds, half-open [From, To). Day boundaries follow the shop timezone.
func (e *Engine) ResolveRange(preset string, start string, end string, now time.Time) (domain.DateRange, error) {
	local := now.In(e.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.location)

	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "today", "":
		if preset == "" && (start != "" || end != "") {
			return e.resolveExplicit(start, end)
		}
		return rangeOf("Today", midnight, midnight.AddDate(0, 0, 1)), nil
	case "yesterday":
		return rangeOf("Yesterday", midnight.AddDate(0, 0, -1), midnight), nil
	case "this week", "week":
		monday := midnight.AddDate(0, 0, -mondayOffset(midnight.Weekday()))
		return rangeOf("This Week", monday, monday.AddDate(0, 0, 7)), nil
	case "this month", "month":
		first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.location)
		return rangeOf("This Month", first, first.AddDate(0, 1, 0)), nil
	case "last month":
		first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.location)
		return rangeOf("Last Month", first.AddDate(0, -1, 0), first), nil
	case "this year", "year":
		first := time.Date(local.Year(), 1, 1, 0, 0, 0, 0, e.location)
		return rangeOf("This Year", first, first.AddDate(1, 0, 0)), nil
	case "all time", "all":
		return domain.DateRange{
			Label: "All Time",
			From:  time.Unix(0, 0).UTC(),
			To:    midnight.AddDate(0, 0, 1).UTC(),
		}, nil
	default:
		return domain.DateRange{}, fmt.Errorf("unknown range preset %q", preset)
	}
}

func (e *Engine) resolveExplicit(start string, end string) (domain.DateRange, error) {
	from, err := time.ParseInLocation("2006-01-02", start, e.location)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("invalid start date %q", start)
	}
	toDay, err := time.ParseInLocation("2006-01-02", end, e.location)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("invalid end date %q", end)
	}
	if toDay.Before(from) {
		return domain.DateRange{}, fmt.Errorf("end date %q before start date %q", end, start)
	}

	return rangeOf(start+" to "+end, from, toDay.AddDate(0, 0, 1)), nil
}

// TrailingRange is the forecast lookback window ending now.
func (e *Engine) TrailingRange(days int, now time.Time) domain.DateRange {
	return domain.DateRange{
		Label: fmt.Sprintf("Trailing %d Days", days),
		From:  now.Add(-time.Duration(days) * 24 * time.Hour).UTC(),
		To:    now.UTC(),
	}
}

// Forecast classifies the trend by comparing the trailing-7-day daily
// average against the trailing-30-day one with a ten percent band, and
// projects the 30-day average forward.
func (e *Engine) Forecast(revenue30Cents int64, revenue7Cents int64) domain.SalesForecast {
	dailyAvg := float64(revenue30Cents) / 30.0
	recentAvg := float64(revenue7Cents) / 7.0

	trend := domain.TrendStable
	switch {
	case recentAvg > dailyAvg*1.1:
		trend = domain.TrendRising
	case recentAvg < dailyAvg*0.9:
		trend = domain.TrendCooling
	}

	return domain.SalesForecast{
		DailyAverageCents:  int64(math.Round(dailyAvg)),
		RecentAverageCents: int64(math.Round(recentAvg)),
		Trend:              trend,
		Next1DayCents:      int64(math.Ceil(dailyAvg)),
		Next7DaysCents:     int64(math.Ceil(dailyAvg * 7)),
		Next30DaysCents:    int64(math.Ceil(dailyAvg * 30)),
	}
}

func (e *Engine) CachedDashboard(ctx context.Context, key string) (*domain.DashboardSummary, bool) {
	summary, ok, err := e.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return summary, true
}

func (e *Engine) SaveDashboard(ctx context.Context, key string, summary *domain.DashboardSummary) {
	_ = e.cache.Set(ctx, key, summary, e.cacheTTL)
}

func (e *Engine) DashboardCacheKey(now time.Time) string {
	return "pos:dashboard:" + now.In(e.location).Format("2006-01-02")
}

// BuildSalesWorkbook renders the ticket export. Dates are shown in shop
// local time; the last row carries the grand total.
func (e *Engine) BuildSalesWorkbook(sales []domain.Sale) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Sales"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Sale ID", "Date", "Items Summary", "Payment Method", "Total Amount"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	var grandTotal int64
	for i, sale := range sales {
		row := i + 2
		values := []any{
			sale.ID,
			sale.CreatedAt.In(e.location).Format("2006-01-02 15:04"),
			itemsSummary(sale.Lines),
			sale.PaymentMethod,
			centsToAmount(sale.TotalCents),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
		grandTotal += sale.TotalCents
	}

	totalRow := len(sales) + 2
	labelCell, err := excelize.CoordinatesToCellName(4, totalRow)
	if err != nil {
		return nil, err
	}
	valueCell, err := excelize.CoordinatesToCellName(5, totalRow)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, labelCell, "Grand Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, valueCell, centsToAmount(grandTotal)); err != nil {
		return nil, err
	}

	if err := f.SetColWidth(sheet, "A", "C", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "D", "E", 16); err != nil {
		return nil, err
	}

	return f, nil
}

func itemsSummary(lines []domain.SaleLine) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%dx %s", line.Qty, line.ProductName))
	}
	return strings.Join(parts, ", ")
}

func centsToAmount(cents int64) float64 {
	return float64(cents) / 100
}

func rangeOf(label string, from time.Time, to time.Time) domain.DateRange {
	return domain.DateRange{Label: label, From: from.UTC(), To: to.UTC()}
}

func mondayOffset(day time.Weekday) int {
	if day == time.Sunday {
		return 6
	}
	return int(day) - 1
}
