package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

const neighborhoodTopN = 10

var hundred = decimal.NewFromInt(100)

// Calculator derives financial, delinquency and suspension statistics.
// Every function is independent and returns zero values on empty input.
type Calculator struct {
	thresholds  Thresholds
	agingRanges []AgingRange
	listLimit   int
}

func NewCalculator(cfg Config) *Calculator {
	cfg = cfg.withDefaults()
	return &Calculator{
		thresholds:  cfg.Thresholds,
		agingRanges: cfg.AgingRanges,
		listLimit:   cfg.ListLimit,
	}
}

// Compute builds the full metrics bundle. Records must already be classified
// against the given reference date.
func (c *Calculator) Compute(records []domain.ClassifiedRecord, _ time.Time) domain.MetricsBundle {
	return domain.MetricsBundle{
		Financial: FinancialSummary(records),
		Delinquency: domain.DelinquencyMetrics{
			AgingBuckets:          AgingBuckets(records, c.agingRanges),
			AverageOverdueTicket:  AverageOverdueTicket(records),
			RollRate:              RollRate(records),
			CEI:                   CEI(records),
			RecoveryRate:          RecoveryRate(records),
			TotalOverdueCount:     TotalOverdueCount(records),
			NeighborhoodBreakdown: NeighborhoodBreakdown(records),
			CustomerTypeBreakdown: CustomerTypeBreakdown(records),
		},
		Suspension: domain.SuspensionMetrics{
			Funnel:             SuspensionFunnel(records, c.thresholds),
			ConversionRate:     ConversionRate(records, c.thresholds),
			SelfHealingRate:    SelfHealingRate(records, c.thresholds),
			ActiveTrustUnlocks: ActiveTrustUnlocks(records),
			AvgRecoveryDays:    AverageRecoveryDays(records),
			CriticalMigration:  CriticalMigration(records, c.thresholds, c.listLimit),
			Prevention:         Prevention(records, c.thresholds, c.listLimit),
		},
	}
}

// FinancialSummary splits amounts into received, pending, overdue and cancelled.
func FinancialSummary(records []domain.ClassifiedRecord) domain.FinancialSummary {
	out := domain.FinancialSummary{
		Received:  decimal.Zero,
		Pending:   decimal.Zero,
		Overdue:   decimal.Zero,
		Cancelled: decimal.Zero,
	}
	for _, rec := range records {
		switch {
		case rec.Status == domain.StatusPaid:
			out.Received = out.Received.Add(rec.Amount)
		case rec.Status == domain.StatusCancelled:
			out.Cancelled = out.Cancelled.Add(rec.Amount)
		case rec.IsLate():
			out.Overdue = out.Overdue.Add(rec.Amount)
		case rec.Status == domain.StatusOpen:
			out.Pending = out.Pending.Add(rec.Amount)
		}
	}
	return out
}

// AgingBuckets sums overdue amounts into the configured days-late ranges.
func AgingBuckets(records []domain.ClassifiedRecord, ranges []AgingRange) []domain.AgingBucket {
	if len(ranges) == 0 {
		ranges = DefaultAgingRanges()
	}
	out := make([]domain.AgingBucket, len(ranges))
	for i, r := range ranges {
		out[i] = domain.AgingBucket{Label: r.Label, MinDays: r.MinDays, MaxDays: r.MaxDays, Amount: decimal.Zero}
	}
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		for i, r := range ranges {
			if rec.DaysLate < r.MinDays || (r.MaxDays != nil && rec.DaysLate > *r.MaxDays) {
				continue
			}
			out[i].Amount = out[i].Amount.Add(rec.Amount)
			out[i].Count++
			break
		}
	}
	return out
}

// AverageOverdueTicket is the mean overdue amount, zero when nothing is late.
func AverageOverdueTicket(records []domain.ClassifiedRecord) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, rec := range records {
		if rec.IsLate() {
			sum = sum.Add(rec.Amount)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// TotalOverdueCount counts overdue records.
func TotalOverdueCount(records []domain.ClassifiedRecord) int {
	n := 0
	for _, rec := range records {
		if rec.IsLate() {
			n++
		}
	}
	return n
}

// RollRate compares overdue customers past the 30-day mark with those at or
// under it.
func RollRate(records []domain.ClassifiedRecord) float64 {
	early, late := customerSet{}, customerSet{}
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		if rec.DaysLate > rollRateBoundary {
			late.add(rec.CustomerID)
		} else {
			early.add(rec.CustomerID)
		}
	}
	return countPercent(len(late), len(early))
}

// CEI is paid over everything not cancelled.
func CEI(records []domain.ClassifiedRecord) float64 {
	paid, billable := decimal.Zero, decimal.Zero
	for _, rec := range records {
		if rec.Status == domain.StatusCancelled {
			continue
		}
		billable = billable.Add(rec.Amount)
		if rec.Status == domain.StatusPaid {
			paid = paid.Add(rec.Amount)
		}
	}
	return percent(paid, billable)
}

// RecoveryRate is the amount paid after its due date over everything not
// cancelled.
func RecoveryRate(records []domain.ClassifiedRecord) float64 {
	recovered, billable := decimal.Zero, decimal.Zero
	for _, rec := range records {
		if rec.Status == domain.StatusCancelled {
			continue
		}
		billable = billable.Add(rec.Amount)
		if rec.Status == domain.StatusPaid && rec.PaidDate != nil && rec.DueDateValid && rec.PaidDate.After(rec.DueDate) {
			recovered = recovered.Add(rec.Amount)
		}
	}
	return percent(recovered, billable)
}

// SuspensionFunnel sums open overdue amounts per stage, ignoring trust flags.
func SuspensionFunnel(records []domain.ClassifiedRecord, t Thresholds) domain.SuspensionFunnel {
	out := domain.SuspensionFunnel{Standard: decimal.Zero, Transition: decimal.Zero, Chronic: decimal.Zero}
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		switch {
		case rec.DaysLate >= t.ChronicMin:
			out.Chronic = out.Chronic.Add(rec.Amount)
		case t.Transition.Contains(rec.DaysLate):
			out.Transition = out.Transition.Add(rec.Amount)
		case t.Standard.Contains(rec.DaysLate):
			out.Standard = out.Standard.Add(rec.Amount)
		}
	}
	return out
}

// ConversionRate is the share of early-stage customers that reached transition.
func ConversionRate(records []domain.ClassifiedRecord, t Thresholds) float64 {
	standard, transition := customerSet{}, customerSet{}
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		switch {
		case t.Standard.Contains(rec.DaysLate):
			standard.add(rec.CustomerID)
		case t.Transition.Contains(rec.DaysLate):
			transition.add(rec.CustomerID)
		}
	}
	return countPercent(len(transition), len(standard)+len(transition))
}

// SelfHealingRate compares customers who paid within the standard window
// after due with those still open inside it.
func SelfHealingRate(records []domain.ClassifiedRecord, t Thresholds) float64 {
	healed, pending := customerSet{}, customerSet{}
	for _, rec := range records {
		switch {
		case rec.Status == domain.StatusPaid && rec.PaidDate != nil && rec.DueDateValid:
			delay := DaysBetween(rec.DueDate, *rec.PaidDate)
			if delay >= 0 && delay <= t.Standard.Max {
				healed.add(rec.CustomerID)
			}
		case rec.IsLate() && t.Standard.Contains(rec.DaysLate):
			pending.add(rec.CustomerID)
		}
	}
	return countPercent(len(healed), len(healed)+len(pending))
}

// ActiveTrustUnlocks counts distinct customers with the trust flag.
func ActiveTrustUnlocks(records []domain.ClassifiedRecord) int {
	set := customerSet{}
	for _, rec := range records {
		if rec.TrustUnlockActive {
			set.add(rec.CustomerID)
		}
	}
	return len(set)
}

// AverageRecoveryDays is the mean days between due and payment over paid
// records. Early payments count as negative days.
func AverageRecoveryDays(records []domain.ClassifiedRecord) float64 {
	total, n := 0, 0
	for _, rec := range records {
		if rec.Status != domain.StatusPaid || rec.PaidDate == nil || !rec.DueDateValid {
			continue
		}
		total += DaysBetween(rec.DueDate, *rec.PaidDate)
		n++
	}
	if n == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(total)).
		Div(decimal.NewFromInt(int64(n))).
		Round(2).
		InexactFloat64()
}

// CriticalMigration lists open bills on the first transition day.
func CriticalMigration(records []domain.ClassifiedRecord, t Thresholds, limit int) []domain.FollowUpItem {
	return followUp(records, limit, func(days int) bool {
		return days == t.Transition.Min
	})
}

// Prevention lists open bills on the last two standard days.
func Prevention(records []domain.ClassifiedRecord, t Thresholds, limit int) []domain.FollowUpItem {
	from := t.Standard.Max - 1
	if from < t.Standard.Min {
		from = t.Standard.Min
	}
	return followUp(records, limit, func(days int) bool {
		return days >= from && days <= t.Standard.Max
	})
}

func followUp(records []domain.ClassifiedRecord, limit int, match func(days int) bool) []domain.FollowUpItem {
	items := []domain.FollowUpItem{}
	for _, rec := range records {
		if !rec.IsLate() || !match(rec.DaysLate) {
			continue
		}
		items = append(items, domain.FollowUpItem{
			BillID:       rec.ID,
			CustomerID:   rec.CustomerID,
			CustomerName: rec.CustomerName,
			Phone:        rec.Phone,
			Neighborhood: rec.Neighborhood,
			DueDate:      rec.DueDate,
			DaysLate:     rec.DaysLate,
			Amount:       rec.Amount,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DueDate.Equal(items[j].DueDate) {
			return items[i].DueDate.Before(items[j].DueDate)
		}
		return items[i].BillID < items[j].BillID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// NeighborhoodBreakdown returns the ten neighborhoods with most overdue amount.
func NeighborhoodBreakdown(records []domain.ClassifiedRecord) []domain.SegmentAmount {
	out := segmentOverdue(records, func(rec domain.ClassifiedRecord) string { return rec.Neighborhood })
	if len(out) > neighborhoodTopN {
		out = out[:neighborhoodTopN]
	}
	return out
}

// CustomerTypeBreakdown returns overdue amount per customer type.
func CustomerTypeBreakdown(records []domain.ClassifiedRecord) []domain.SegmentAmount {
	return segmentOverdue(records, func(rec domain.ClassifiedRecord) string { return rec.CustomerType })
}

func segmentOverdue(records []domain.ClassifiedRecord, key func(domain.ClassifiedRecord) string) []domain.SegmentAmount {
	sums := map[string]decimal.Decimal{}
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		k := key(rec)
		if k == "" {
			k = domain.NotAvailable
		}
		sums[k] = sums[k].Add(rec.Amount)
	}
	out := make([]domain.SegmentAmount, 0, len(sums))
	for k, v := range sums {
		out = append(out, domain.SegmentAmount{Segment: k, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Segment < out[j].Segment
	})
	return out
}

func percent(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Mul(hundred).Div(den).Round(2).InexactFloat64()
}

func countPercent(num, den int) float64 {
	return percent(decimal.NewFromInt(int64(num)), decimal.NewFromInt(int64(den)))
}
