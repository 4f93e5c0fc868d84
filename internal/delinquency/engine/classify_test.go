package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReference = time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

func bill(id, customerID string, daysBefore int, status domain.Status, trust bool, amount int64) domain.BillingRecord {
	return domain.BillingRecord{
		ID:                id,
		CustomerID:        customerID,
		DueDate:           testReference.AddDate(0, 0, -daysBefore),
		DueDateValid:      true,
		Amount:            decimal.NewFromInt(amount),
		Status:            status,
		TrustUnlockActive: trust,
		Neighborhood:      "Centro",
		CustomerType:      "Residential",
	}
}

func paidOn(rec domain.BillingRecord, daysBefore int) domain.BillingRecord {
	paid := testReference.AddDate(0, 0, -daysBefore)
	rec.PaidDate = &paid
	return rec
}

func TestClassifyScenarios(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())

	cases := []struct {
		name     string
		rec      domain.BillingRecord
		wantDays int
		want     domain.Category
	}{
		{"due today", bill("1", "c1", 0, domain.StatusOpen, false, 10), 0, domain.CategoryOnTime},
		{"future", bill("2", "c1", -3, domain.StatusOpen, false, 10), -3, domain.CategoryOnTime},
		{"standard five days", bill("3", "c1", 5, domain.StatusOpen, false, 10), 5, domain.CategoryStandardOverdue},
		{"standard lower bound", bill("4", "c1", 1, domain.StatusOpen, false, 10), 1, domain.CategoryStandardOverdue},
		{"standard upper bound", bill("5", "c1", 6, domain.StatusOpen, false, 10), 6, domain.CategoryStandardOverdue},
		{"transition lower bound", bill("6", "c1", 7, domain.StatusOpen, false, 10), 7, domain.CategoryTransition},
		{"transition upper bound", bill("7", "c1", 9, domain.StatusOpen, false, 10), 9, domain.CategoryTransition},
		{"chronic lower bound", bill("8", "c1", 10, domain.StatusOpen, false, 10), 10, domain.CategoryChronic},
		{"chronic very late", bill("9", "c1", 200, domain.StatusOpen, false, 10), 200, domain.CategoryChronic},
		{"trust unlock priority", bill("10", "c1", 8, domain.StatusOpen, true, 10), 8, domain.CategoryTrustUnlock},
		{"trust unlock not late", bill("11", "c1", 0, domain.StatusOpen, true, 10), 0, domain.CategoryOnTime},
		{"paid clears late status", paidOn(bill("12", "c1", 20, domain.StatusPaid, false, 10), 18), 20, domain.CategoryOnTime},
		{"cancelled", bill("13", "c1", 40, domain.StatusCancelled, false, 10), 40, domain.CategoryOnTime},
		{"unknown status", bill("14", "c1", 40, domain.StatusUnknown, false, 10), 40, domain.CategoryOnTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifier.ClassifyOne(tc.rec, testReference)
			if got.DaysLate != tc.wantDays {
				t.Fatalf("expected days late %d, got %d", tc.wantDays, got.DaysLate)
			}
			if got.Category != tc.want {
				t.Fatalf("expected category %q, got %q", tc.want, got.Category)
			}
		})
	}
}

func TestClassifyIgnoresTimeOfDay(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())
	rec := bill("1", "c1", 1, domain.StatusOpen, false, 10)

	late := testReference.Add(23*time.Hour + 59*time.Minute)
	got := classifier.ClassifyOne(rec, late)
	assert.Equal(t, 1, got.DaysLate)
	assert.Equal(t, domain.CategoryStandardOverdue, got.Category)
}

func TestClassifyInvalidDueDateIsOnTime(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())
	rec := bill("1", "c1", 30, domain.StatusOpen, false, 10)
	rec.DueDateValid = false
	rec.DueDate = time.Time{}

	got := classifier.ClassifyOne(rec, testReference)
	assert.Equal(t, 0, got.DaysLate)
	assert.Equal(t, domain.CategoryOnTime, got.Category)
}

func TestClassifyCategoriesAreExhaustiveAndIdempotent(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())
	statuses := []domain.Status{domain.StatusOpen, domain.StatusPaid, domain.StatusCancelled, domain.StatusUnknown}

	var records []domain.BillingRecord
	for days := -5; days <= 40; days++ {
		for _, status := range statuses {
			for _, trust := range []bool{false, true} {
				records = append(records, bill("r", "c", days, status, trust, 1))
			}
		}
	}

	first := classifier.Classify(records, testReference)
	second := classifier.Classify(records, testReference)
	require.Len(t, first, len(records))
	assert.Equal(t, first, second)

	for _, rec := range first {
		if !rec.Category.Valid() {
			t.Fatalf("unexpected category %q", rec.Category)
		}
	}
}

func TestClassifyDaysLateIsMonotonic(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())
	rec := bill("1", "c1", 3, domain.StatusOpen, false, 10)

	prev := classifier.ClassifyOne(rec, testReference).DaysLate
	for i := 1; i <= 30; i++ {
		next := classifier.ClassifyOne(rec, testReference.AddDate(0, 0, i)).DaysLate
		if next < prev {
			t.Fatalf("days late decreased from %d to %d", prev, next)
		}
		prev = next
	}
}

func TestClassifyWithCustomThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{
		Standard:   Range{Min: 1, Max: 6},
		Transition: Range{Min: 7, Max: 10},
		ChronicMin: 11,
	}
	require.NoError(t, cfg.Thresholds.Validate())
	classifier := NewClassifier(cfg)

	got := classifier.ClassifyOne(bill("1", "c1", 10, domain.StatusOpen, false, 10), testReference)
	assert.Equal(t, domain.CategoryTransition, got.Category)
}

func TestThresholdsValidate(t *testing.T) {
	cases := []struct {
		name string
		t    Thresholds
		ok   bool
	}{
		{"default", DefaultThresholds(), true},
		{"zero start", Thresholds{Standard: Range{0, 6}, Transition: Range{7, 9}, ChronicMin: 10}, false},
		{"gap", Thresholds{Standard: Range{1, 5}, Transition: Range{7, 9}, ChronicMin: 10}, false},
		{"overlap chronic", Thresholds{Standard: Range{1, 6}, Transition: Range{7, 9}, ChronicMin: 9}, false},
		{"empty transition", Thresholds{Standard: Range{1, 6}, Transition: Range{7, 6}, ChronicMin: 7}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.t.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidThresholds)
		})
	}
}

func TestConfigReference(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 30, 0, 0, time.UTC)

	cfg := DefaultConfig()
	assert.Equal(t, testReference, cfg.Reference(now))

	override := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	cfg.ReferenceDate = &override
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), cfg.Reference(now))
}

func TestClassifyNormalizesDueDateTime(t *testing.T) {
	classifier := NewClassifier(DefaultConfig())

	// due 2024-03-18 12:00, reference 2024-03-20: two calendar days late
	rec := bill("1", "c1", 0, domain.StatusOpen, false, 10)
	rec.DueDate = testReference.Add(-36 * time.Hour)
	got := classifier.ClassifyOne(rec, testReference)
	assert.Equal(t, 2, got.DaysLate)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), got.DueDate)

	// due 2024-03-21 12:00 is one calendar day ahead
	rec.DueDate = testReference.Add(36 * time.Hour)
	got = classifier.ClassifyOne(rec, testReference)
	assert.Equal(t, -1, got.DaysLate)
	assert.Equal(t, domain.CategoryOnTime, got.Category)
}

func TestDaysBetweenRoundsDown(t *testing.T) {
	assert.Equal(t, -2, DaysBetween(testReference.Add(36*time.Hour), testReference))
	assert.Equal(t, 1, DaysBetween(testReference.Add(-36*time.Hour), testReference))
	assert.Equal(t, 0, DaysBetween(testReference, testReference))
}
