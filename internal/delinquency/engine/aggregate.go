package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

// Aggregator builds the by-date trend table and the totals row.
type Aggregator struct {
	thresholds Thresholds
}

func NewAggregator(cfg Config) *Aggregator {
	cfg = cfg.withDefaults()
	return &Aggregator{thresholds: cfg.Thresholds}
}

type customerSet map[string]struct{}

func (s customerSet) add(id string) { s[id] = struct{}{} }

func (s customerSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

type dateGroup struct {
	all        customerSet
	trust      customerSet
	standard   customerSet
	transition customerSet
	chronic    customerSet
}

func newDateGroup() *dateGroup {
	return &dateGroup{
		all:        customerSet{},
		trust:      customerSet{},
		standard:   customerSet{},
		transition: customerSet{},
		chronic:    customerSet{},
	}
}

// ByDate counts distinct customers per due date. Customers with any late
// trust-unlocked bill on a date are removed from the day-based buckets of
// that date, and Current is whatever remains. Records without a valid due
// date are skipped. Rows come back newest due date first.
func (a *Aggregator) ByDate(records []domain.ClassifiedRecord) ([]domain.DailyBucket, []domain.Warning) {
	groups := map[time.Time]*dateGroup{}
	for _, rec := range records {
		if !rec.DueDateValid {
			continue
		}
		g, ok := groups[rec.DueDate]
		if !ok {
			g = newDateGroup()
			groups[rec.DueDate] = g
		}
		g.all.add(rec.CustomerID)
		if rec.IsLate() && rec.TrustUnlockActive {
			g.trust.add(rec.CustomerID)
		}
	}

	// Second pass so the trust set is complete before exclusion.
	for _, rec := range records {
		if !rec.IsLate() {
			continue
		}
		g := groups[rec.DueDate]
		if g.trust.has(rec.CustomerID) {
			continue
		}
		switch {
		case rec.DaysLate >= a.thresholds.ChronicMin:
			g.chronic.add(rec.CustomerID)
		case a.thresholds.Transition.Contains(rec.DaysLate):
			g.transition.add(rec.CustomerID)
		case a.thresholds.Standard.Contains(rec.DaysLate):
			g.standard.add(rec.CustomerID)
		}
	}

	rows := make([]domain.DailyBucket, 0, len(groups))
	warnings := []domain.Warning{}
	for due, g := range groups {
		row := domain.DailyBucket{
			DueDate:         due,
			Total:           len(g.all),
			TrustUnlock:     len(g.trust),
			StandardOverdue: len(g.standard),
			Transition:      len(g.transition),
			Chronic:         len(g.chronic),
		}
		row.Current = row.Total - (row.TrustUnlock + row.Chronic + row.Transition + row.StandardOverdue)
		if row.Current < 0 {
			warnings = append(warnings, domain.Warning{
				Kind:   domain.WarningNegativeBucket,
				Detail: fmt.Sprintf("current count %d on %s", row.Current, due.Format(time.DateOnly)),
			})
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].DueDate.After(rows[j].DueDate)
	})
	return rows, warnings
}

// Totals counts records per category over the whole set, including records
// whose due date could not be parsed.
func (a *Aggregator) Totals(records []domain.ClassifiedRecord) domain.TotalsRow {
	var row domain.TotalsRow
	for _, rec := range records {
		row.Add(rec.Category)
	}
	return row
}

// Window keeps rows due within [reference-days, reference].
func (a *Aggregator) Window(rows []domain.DailyBucket, reference time.Time, days int) []domain.DailyBucket {
	if days < 0 {
		return rows
	}
	reference = Midnight(reference, reference.Location())
	from := reference.AddDate(0, 0, -days)
	out := make([]domain.DailyBucket, 0, len(rows))
	for _, row := range rows {
		if row.DueDate.Before(from) || row.DueDate.After(reference) {
			continue
		}
		out = append(out, row)
	}
	return out
}
