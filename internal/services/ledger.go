package services

import (
	"context"
	"math"
	"time"

	"github.com/grovelabs/grove-coder/internal/models"
	"gorm.io/gorm"
)

// Window names a time range for spend aggregation.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowAll   Window = "all"
)

// ParseWindow validates a report window value.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case WindowToday, WindowWeek, WindowMonth, WindowAll:
		return Window(s), nil
	default:
		return "", &InvalidWindowError{Window: s}
	}
}

// start returns the inclusive lower bound of the window, in UTC.
func (w Window) start(now time.Time) time.Time {
	now = now.UTC()
	switch w {
	case WindowToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case WindowWeek:
		return now.AddDate(0, 0, -7)
	case WindowMonth:
		return now.AddDate(0, 0, -30)
	default: // WindowAll
		return time.Unix(0, 0).UTC()
	}
}

// DailySpend is one (calendar day, operation) bucket of a spend report.
type DailySpend struct {
	Date      string  `json:"date"`
	Operation string  `json:"operation" gorm:"column:operation"`
	Requests  int64   `json:"requests"`
	CostUSD   float64 `json:"cost_usd" gorm:"column:cost_usd"`
}

// SpendReport is a derived, non-persistent aggregate over the ledger.
type SpendReport struct {
	TotalRequests int64        `json:"total_requests"`
	TotalCostUSD  float64      `json:"total_cost_usd"`
	Breakdown     []DailySpend `json:"breakdown"`
}

// LedgerService owns the spend ledger. It is the single source of truth for
// spend aggregation; every append and every report is its own transaction,
// so concurrent in-flight calls are safe without extra locking.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Append writes exactly one immutable usage record. The store assigns id
// and timestamp.
func (s *LedgerService) Append(ctx context.Context, operation string, costUSD float64, inputTokens, outputTokens int, targetPath string) error {
	rec := models.UsageRecord{
		Operation:    operation,
		CostUSD:      costUSD,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TargetPath:   targetPath,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return &StorageError{Op: "append", Err: err}
	}
	return nil
}

// Report aggregates spend per (calendar day, operation) over the window,
// newest day first, optionally filtered to a single operation kind.
// Cost sums are rounded to 6 decimals at reporting time, not at storage time.
func (s *LedgerService) Report(window Window, operationFilter string) (*SpendReport, error) {
	if _, err := ParseWindow(string(window)); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.UsageRecord{}).
		Where("created_at >= ?", window.start(time.Now()))
	if operationFilter != "" {
		query = query.Where("operation = ?", operationFilter)
	}

	var rows []DailySpend
	err := query.Select(
		"DATE(created_at) as date, " +
			"operation, " +
			"COUNT(*) as requests, " +
			"COALESCE(SUM(cost_usd), 0) as cost_usd",
	).Group("DATE(created_at), operation").Order("date DESC, operation ASC").Scan(&rows).Error
	if err != nil {
		return nil, &StorageError{Op: "report", Err: err}
	}

	report := &SpendReport{Breakdown: make([]DailySpend, 0, len(rows))}
	for _, row := range rows {
		report.TotalRequests += row.Requests
		report.TotalCostUSD += row.CostUSD
		row.CostUSD = round6(row.CostUSD)
		report.Breakdown = append(report.Breakdown, row)
	}
	report.TotalCostUSD = round6(report.TotalCostUSD)

	return report, nil
}

// TotalSpend returns the summed cost over the window.
func (s *LedgerService) TotalSpend(window Window) (float64, error) {
	report, err := s.Report(window, "")
	if err != nil {
		return 0, err
	}
	return report.TotalCostUSD, nil
}

// CheckLimit reports whether spending is within the limit for the window.
// Only spend beyond the limit blocks: spend exactly equal to the limit is
// not exceeded and still passes. Existing deployments depend on this
// boundary, so do not tighten it.
func (s *LedgerService) CheckLimit(window Window, limitUSD float64) (bool, error) {
	total, err := s.TotalSpend(window)
	if err != nil {
		return false, err
	}
	return total <= limitUSD, nil
}

// round6 rounds to 6 decimal places, the ledger's reporting precision.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
