package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Delinquency(ctx context.Context, req DelinquencyRequest) (DelinquencyResponse, error)
	Details(ctx context.Context, req DetailsRequest) ([]DetailRow, error)
	Report(ctx context.Context, req ReportRequest) (Report, error)
}

// View selects the delinquency table shape.
type View string

const (
	ViewByDate View = "by_date"
	ViewTotal  View = "total"
)

func ParseView(raw string) (View, error) {
	switch View(raw) {
	case "", ViewByDate:
		return ViewByDate, nil
	case ViewTotal:
		return ViewTotal, nil
	default:
		return "", ErrInvalidView
	}
}

type DelinquencyRequest struct {
	View View
}

type DelinquencyResponse struct {
	View          View          `json:"view"`
	ReferenceDate time.Time     `json:"reference_date"`
	ReportDays    int           `json:"report_days"`
	HasData       bool          `json:"has_data"`
	ByDate        []DailyBucket `json:"by_date,omitempty"`
	Totals        *TotalsRow    `json:"totals,omitempty"`
	Warnings      []Warning     `json:"warnings,omitempty"`
}

type DetailsRequest struct {
	Date time.Time
}

// DetailRow is an open bill for the details drill-down.
type DetailRow struct {
	BillID            string          `json:"bill_id"`
	CustomerID        string          `json:"customer_id"`
	CustomerName      string          `json:"customer_name"`
	Phone             string          `json:"phone"`
	Neighborhood      string          `json:"neighborhood"`
	CustomerType      string          `json:"customer_type"`
	ConnectionStatus  string          `json:"connection_status"`
	TrustUnlockActive bool            `json:"trust_unlock_active"`
	DueDate           time.Time       `json:"due_date"`
	DaysLate          int             `json:"days_late"`
	Amount            decimal.Decimal `json:"amount"`
	Category          Category        `json:"risk_category"`
}

type ReportRequest struct {
	Start *time.Time
	End   *time.Time
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the assembled output of one classification pass.
type Report struct {
	ReferenceDate time.Time     `json:"reference_date"`
	Period        Period        `json:"period"`
	HasData       bool          `json:"has_data"`
	RecordCount   int           `json:"record_count"`
	FetchedAt     *time.Time    `json:"fetched_at,omitempty"`
	Metrics       MetricsBundle `json:"metrics"`
	ByDate        []DailyBucket `json:"by_date"`
	Totals        TotalsRow     `json:"totals"`
	Warnings      []Warning     `json:"warnings"`
}
