package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the normalized lifecycle state of an ERP bill.
type Status string

const (
	StatusOpen      Status = "open"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// ERP status codes as returned by fn_areceber.status.
const (
	ERPStatusOpen      = "A"
	ERPStatusPaid      = "R"
	ERPStatusCancelled = "C"
)

// ParseStatus maps an ERP status code to a Status.
func ParseStatus(code string) Status {
	switch code {
	case ERPStatusOpen:
		return StatusOpen
	case ERPStatusPaid:
		return StatusPaid
	case ERPStatusCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Enrichment defaults used when a customer or contract lookup fails.
const (
	NotAvailable     = "N/A"
	TrustFlagEnabled = "S"
	TrustFlagOff     = "N"
)

// BillingRecord is a cleaned bill joined with its customer and contract.
type BillingRecord struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	IssueDate         *time.Time      `json:"issue_date,omitempty"`
	DueDate           time.Time       `json:"due_date"`
	DueDateValid      bool            `json:"due_date_valid"`
	PaidDate          *time.Time      `json:"paid_date,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Status            Status          `json:"status"`
	CustomerName      string          `json:"customer_name"`
	Phone             string          `json:"phone"`
	Neighborhood      string          `json:"neighborhood"`
	CustomerType      string          `json:"customer_type"`
	TrustUnlockActive bool            `json:"trust_unlock_active"`
	ConnectionStatus  string          `json:"connection_status"`
	ConnectionLabel   string          `json:"connection_label"`
}

// IsOpen reports whether the bill is still awaiting payment.
func (r BillingRecord) IsOpen() bool {
	return r.Status == StatusOpen
}

// ClassifiedRecord is a BillingRecord evaluated against a reference date.
type ClassifiedRecord struct {
	BillingRecord
	DaysLate int      `json:"days_late"`
	Category Category `json:"risk_category"`
}

// IsLate reports whether the record counts as overdue.
func (c ClassifiedRecord) IsLate() bool {
	return c.Status == StatusOpen && c.DueDateValid && c.DaysLate >= 1
}

// DailyBucket counts distinct customers per due date. The five category
// counts add up to Total; Current absorbs the difference and goes negative
// when a customer falls in more than one stage on the same date.
type DailyBucket struct {
	DueDate         time.Time `json:"due_date"`
	Total           int       `json:"total"`
	Current         int       `json:"current"`
	StandardOverdue int       `json:"standard_overdue"`
	Transition      int       `json:"transition"`
	Chronic         int       `json:"chronic"`
	TrustUnlock     int       `json:"trust_unlock"`
}

// TotalsRow counts records, not distinct customers, across the whole
// snapshot. DailyBucket counts customers; the two are not comparable.
type TotalsRow struct {
	Total           int `json:"total"`
	Current         int `json:"current"`
	StandardOverdue int `json:"standard_overdue"`
	Transition      int `json:"transition"`
	Chronic         int `json:"chronic"`
	TrustUnlock     int `json:"trust_unlock"`
}

// Add counts one record under its category.
func (t *TotalsRow) Add(category Category) {
	t.Total++
	switch category {
	case CategoryStandardOverdue:
		t.StandardOverdue++
	case CategoryTransition:
		t.Transition++
	case CategoryChronic:
		t.Chronic++
	case CategoryTrustUnlock:
		t.TrustUnlock++
	default:
		t.Current++
	}
}
