package engine

import (
	"testing"
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classify(t *testing.T, records ...domain.BillingRecord) []domain.ClassifiedRecord {
	t.Helper()
	return NewClassifier(DefaultConfig()).Classify(records, testReference)
}

func TestByDateCountsDistinctCustomers(t *testing.T) {
	classified := classify(t,
		// 5 days late: two bills for c1, one for c2, c3 paid.
		bill("1", "c1", 5, domain.StatusOpen, false, 100),
		bill("2", "c1", 5, domain.StatusOpen, false, 50),
		bill("3", "c2", 5, domain.StatusOpen, false, 70),
		paidOn(bill("4", "c3", 5, domain.StatusPaid, false, 70), 4),
		// 8 days late: c4 transition, c5 trust unlocked.
		bill("5", "c4", 8, domain.StatusOpen, false, 10),
		bill("6", "c5", 8, domain.StatusOpen, true, 10),
		// 12 days late: chronic.
		bill("7", "c6", 12, domain.StatusOpen, false, 10),
		// due in the future.
		bill("8", "c7", -2, domain.StatusOpen, false, 10),
	)

	rows, warnings := NewAggregator(DefaultConfig()).ByDate(classified)
	require.Empty(t, warnings)
	require.Len(t, rows, 4)

	for i := 1; i < len(rows); i++ {
		if !rows[i-1].DueDate.After(rows[i].DueDate) {
			t.Fatalf("rows not sorted by due date descending at %d", i)
		}
	}

	byDay := map[int]domain.DailyBucket{}
	for _, row := range rows {
		byDay[DaysBetween(row.DueDate, testReference)] = row
	}

	assert.Equal(t, domain.DailyBucket{
		DueDate: testReference.AddDate(0, 0, -5), Total: 3, Current: 1, StandardOverdue: 2,
	}, byDay[5])
	assert.Equal(t, domain.DailyBucket{
		DueDate: testReference.AddDate(0, 0, -8), Total: 2, Transition: 1, TrustUnlock: 1,
	}, byDay[8])
	assert.Equal(t, domain.DailyBucket{
		DueDate: testReference.AddDate(0, 0, -12), Total: 1, Chronic: 1,
	}, byDay[12])
	assert.Equal(t, domain.DailyBucket{
		DueDate: testReference.AddDate(0, 0, 2), Total: 1, Current: 1,
	}, byDay[-2])
}

func TestByDateTrustUnlockRemovesCustomerFromOtherBuckets(t *testing.T) {
	// Same customer, same date, one bill under a trust-unlocked contract.
	classified := classify(t,
		bill("1", "c1", 8, domain.StatusOpen, false, 100),
		bill("2", "c1", 8, domain.StatusOpen, true, 100),
	)

	rows, warnings := NewAggregator(DefaultConfig()).ByDate(classified)
	require.Empty(t, warnings)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Total)
	assert.Equal(t, 1, rows[0].TrustUnlock)
	assert.Equal(t, 0, rows[0].Transition)
	assert.Equal(t, 0, rows[0].Current)
}

func TestByDateRowsSumToTotal(t *testing.T) {
	var records []domain.BillingRecord
	statuses := []domain.Status{domain.StatusOpen, domain.StatusPaid, domain.StatusCancelled}
	for i := 0; i < 300; i++ {
		customer := string(rune('a' + i%17))
		days := i%25 - 3
		records = append(records, bill("b", customer, days, statuses[i%3], i%7 == 0, int64(i)))
	}

	rows, warnings := NewAggregator(DefaultConfig()).ByDate(classify(t, records...))
	require.Empty(t, warnings)
	for _, row := range rows {
		sum := row.Current + row.StandardOverdue + row.Transition + row.Chronic + row.TrustUnlock
		if sum != row.Total {
			t.Fatalf("row %s: categories sum to %d, total %d", row.DueDate.Format(time.DateOnly), sum, row.Total)
		}
		if row.Current < 0 {
			t.Fatalf("row %s: negative current", row.DueDate.Format(time.DateOnly))
		}
	}
}

func TestByDateSkipsMalformedDueDates(t *testing.T) {
	broken := bill("2", "c2", 5, domain.StatusOpen, false, 10)
	broken.DueDateValid = false
	broken.DueDate = time.Time{}

	classified := classify(t, bill("1", "c1", 5, domain.StatusOpen, false, 10), broken)
	agg := NewAggregator(DefaultConfig())

	rows, _ := agg.ByDate(classified)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Total)

	totals := agg.Totals(classified)
	assert.Equal(t, 2, totals.Total)
	assert.Equal(t, 1, totals.Current)
	assert.Equal(t, 1, totals.StandardOverdue)
}

func TestTotalsCountsRecords(t *testing.T) {
	classified := classify(t,
		bill("1", "c1", 5, domain.StatusOpen, false, 100),
		bill("2", "c1", 5, domain.StatusOpen, false, 50),
		bill("3", "c2", 8, domain.StatusOpen, false, 70),
		bill("4", "c3", 8, domain.StatusOpen, true, 70),
		bill("5", "c4", 30, domain.StatusOpen, false, 70),
		bill("6", "c5", 30, domain.StatusPaid, false, 70),
	)

	got := NewAggregator(DefaultConfig()).Totals(classified)
	assert.Equal(t, domain.TotalsRow{
		Total:           6,
		Current:         1,
		StandardOverdue: 2,
		Transition:      1,
		Chronic:         1,
		TrustUnlock:     1,
	}, got)
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	rows, warnings := agg.ByDate(nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.Empty(t, warnings)
	assert.Equal(t, domain.TotalsRow{}, agg.Totals(nil))
}

func TestWindowKeepsReportDays(t *testing.T) {
	classified := classify(t,
		bill("1", "c1", 0, domain.StatusOpen, false, 1),
		bill("2", "c1", 45, domain.StatusOpen, false, 1),
		bill("3", "c1", 46, domain.StatusOpen, false, 1),
		bill("4", "c1", -1, domain.StatusOpen, false, 1),
	)
	agg := NewAggregator(DefaultConfig())
	rows, _ := agg.ByDate(classified)

	got := agg.Window(rows, testReference, 45)
	require.Len(t, got, 2)
	assert.Equal(t, testReference, got[0].DueDate)
	assert.Equal(t, testReference.AddDate(0, 0, -45), got[1].DueDate)
}

func TestByDateKeepsNegativeCurrent(t *testing.T) {
	due := testReference.AddDate(0, 0, -5)
	// one customer counted in two stages on the same date, which a
	// consistent classification never produces
	standard := bill("1", "c1", 5, domain.StatusOpen, false, 10)
	chronic := bill("2", "c1", 5, domain.StatusOpen, false, 10)
	classified := []domain.ClassifiedRecord{
		{BillingRecord: standard, DaysLate: 3, Category: domain.CategoryStandardOverdue},
		{BillingRecord: chronic, DaysLate: 15, Category: domain.CategoryChronic},
	}

	rows, warnings := NewAggregator(DefaultConfig()).ByDate(classified)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.DailyBucket{
		DueDate: due, Total: 1, Current: -1, StandardOverdue: 1, Chronic: 1,
	}, rows[0])

	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarningNegativeBucket, warnings[0].Kind)
	assert.ErrorIs(t, warnings[0].Err(), domain.ErrNegativeBucket)
}
