package engine

import (
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

// Classifier assigns each record exactly one risk category.
type Classifier struct {
	thresholds Thresholds
}

func NewClassifier(cfg Config) *Classifier {
	cfg = cfg.withDefaults()
	return &Classifier{thresholds: cfg.Thresholds}
}

// Classify evaluates records against a midnight-normalized reference date.
// The input slice is not modified.
func (c *Classifier) Classify(records []domain.BillingRecord, reference time.Time) []domain.ClassifiedRecord {
	reference = Midnight(reference, reference.Location())
	out := make([]domain.ClassifiedRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, c.classify(rec, reference))
	}
	return out
}

// ClassifyOne evaluates a single record.
func (c *Classifier) ClassifyOne(rec domain.BillingRecord, reference time.Time) domain.ClassifiedRecord {
	return c.classify(rec, Midnight(reference, reference.Location()))
}

func (c *Classifier) classify(rec domain.BillingRecord, reference time.Time) domain.ClassifiedRecord {
	out := domain.ClassifiedRecord{BillingRecord: rec, Category: domain.CategoryOnTime}
	if !rec.DueDateValid {
		return out
	}
	out.DueDate = Midnight(rec.DueDate, rec.DueDate.Location())
	out.DaysLate = DaysBetween(out.DueDate, reference)
	out.Category = c.Category(rec.Status, out.DaysLate, rec.TrustUnlockActive)
	return out
}

// Category applies the classification rules to already computed inputs.
func (c *Classifier) Category(status domain.Status, daysLate int, trustUnlock bool) domain.Category {
	if status != domain.StatusOpen || daysLate < 1 {
		return domain.CategoryOnTime
	}
	if trustUnlock {
		return domain.CategoryTrustUnlock
	}
	return c.stage(daysLate)
}

// stage buckets a late record by days without looking at the trust flag.
func (c *Classifier) stage(daysLate int) domain.Category {
	t := c.thresholds
	switch {
	case daysLate >= t.ChronicMin:
		return domain.CategoryChronic
	case t.Transition.Contains(daysLate):
		return domain.CategoryTransition
	case t.Standard.Contains(daysLate):
		return domain.CategoryStandardOverdue
	default:
		return domain.CategoryOnTime
	}
}

// Thresholds returns the stage boundaries in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}
