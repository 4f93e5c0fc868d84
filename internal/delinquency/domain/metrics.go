package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialSummary sums amounts per status-derived bucket.
type FinancialSummary struct {
	Received  decimal.Decimal `json:"received"`
	Pending   decimal.Decimal `json:"pending"`
	Overdue   decimal.Decimal `json:"overdue"`
	Cancelled decimal.Decimal `json:"cancelled"`
}

// AgingBucket is the overdue amount for one days-late range.
type AgingBucket struct {
	Label   string          `json:"label"`
	MinDays int             `json:"min_days"`
	MaxDays *int            `json:"max_days,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Count   int             `json:"count"`
}

// SegmentAmount is the overdue amount for a neighborhood or customer type.
type SegmentAmount struct {
	Segment string          `json:"segment"`
	Amount  decimal.Decimal `json:"amount"`
}

type DelinquencyMetrics struct {
	AgingBuckets          []AgingBucket   `json:"aging_buckets"`
	AverageOverdueTicket  decimal.Decimal `json:"average_overdue_ticket"`
	RollRate              float64         `json:"roll_rate"`
	CEI                   float64         `json:"cei"`
	RecoveryRate          float64         `json:"recovery_rate"`
	TotalOverdueCount     int             `json:"total_overdue_count"`
	NeighborhoodBreakdown []SegmentAmount `json:"neighborhood_breakdown"`
	CustomerTypeBreakdown []SegmentAmount `json:"customer_type_breakdown"`
}

// SuspensionFunnel sums open amounts per suspension stage.
type SuspensionFunnel struct {
	Standard   decimal.Decimal `json:"standard"`
	Transition decimal.Decimal `json:"transition"`
	Chronic    decimal.Decimal `json:"chronic"`
}

// FollowUpItem is an open bill surfaced for collection follow-up.
type FollowUpItem struct {
	BillID       string          `json:"bill_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone"`
	Neighborhood string          `json:"neighborhood"`
	DueDate      time.Time       `json:"due_date"`
	DaysLate     int             `json:"days_late"`
	Amount       decimal.Decimal `json:"amount"`
}

type SuspensionMetrics struct {
	Funnel             SuspensionFunnel `json:"funnel"`
	ConversionRate     float64          `json:"conversion_rate"`
	SelfHealingRate    float64          `json:"self_healing_rate"`
	ActiveTrustUnlocks int              `json:"active_trust_unlocks"`
	AvgRecoveryDays    float64          `json:"avg_recovery_days"`
	CriticalMigration  []FollowUpItem   `json:"critical_migration"`
	Prevention         []FollowUpItem   `json:"prevention"`
}

// MetricsBundle is the full set of derived statistics for one pass.
type MetricsBundle struct {
	Financial   FinancialSummary   `json:"financial"`
	Delinquency DelinquencyMetrics `json:"delinquency"`
	Suspension  SuspensionMetrics  `json:"suspension"`
}
