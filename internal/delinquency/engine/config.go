package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

// Range is an inclusive days-late interval.
type Range struct {
	Min int
	Max int
}

func (r Range) Contains(days int) bool {
	return days >= r.Min && days <= r.Max
}

// Thresholds splits late records into suspension stages.
type Thresholds struct {
	Standard   Range
	Transition Range
	ChronicMin int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Standard:   Range{Min: 1, Max: 6},
		Transition: Range{Min: 7, Max: 9},
		ChronicMin: 10,
	}
}

// Validate requires contiguous, non-overlapping stages starting at day 1 or later.
func (t Thresholds) Validate() error {
	switch {
	case t.Standard.Min < 1:
		return fmt.Errorf("%w: standard range must start at 1 or later", domain.ErrInvalidThresholds)
	case t.Standard.Max < t.Standard.Min:
		return fmt.Errorf("%w: standard range is empty", domain.ErrInvalidThresholds)
	case t.Transition.Min != t.Standard.Max+1:
		return fmt.Errorf("%w: transition must start right after standard", domain.ErrInvalidThresholds)
	case t.Transition.Max < t.Transition.Min:
		return fmt.Errorf("%w: transition range is empty", domain.ErrInvalidThresholds)
	case t.ChronicMin != t.Transition.Max+1:
		return fmt.Errorf("%w: chronic must start right after transition", domain.ErrInvalidThresholds)
	}
	return nil
}

// AgingRange configures one aging bucket. A nil MaxDays is open-ended.
type AgingRange struct {
	Label   string
	MinDays int
	MaxDays *int
}

func DefaultAgingRanges() []AgingRange {
	return []AgingRange{
		{Label: "1-15", MinDays: 1, MaxDays: intPtr(15)},
		{Label: "16-30", MinDays: 16, MaxDays: intPtr(30)},
		{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
		{Label: "60+", MinDays: 61},
	}
}

func intPtr(v int) *int { return &v }

const (
	defaultListLimit = 50
	// Roll rate splits the overdue population at this many days.
	rollRateBoundary = 30
)

// Config is passed to every engine component at construction.
type Config struct {
	// ReferenceDate overrides the wall clock when set.
	ReferenceDate *time.Time
	Thresholds    Thresholds
	AgingRanges   []AgingRange
	ListLimit     int
	Location      *time.Location
}

func DefaultConfig() Config {
	return Config{
		Thresholds:  DefaultThresholds(),
		AgingRanges: DefaultAgingRanges(),
		ListLimit:   defaultListLimit,
		Location:    time.UTC,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = defaults.Thresholds
	}
	if len(c.AgingRanges) == 0 {
		c.AgingRanges = defaults.AgingRanges
	}
	if c.ListLimit <= 0 {
		c.ListLimit = defaults.ListLimit
	}
	if c.Location == nil {
		c.Location = defaults.Location
	}
	return c
}

// Reference returns the reference date for a pass, normalized to midnight.
func (c Config) Reference(now time.Time) time.Time {
	c = c.withDefaults()
	if c.ReferenceDate != nil {
		return Midnight(*c.ReferenceDate, c.ReferenceDate.Location())
	}
	return Midnight(now, c.Location)
}

// Midnight drops the time of day, keeping the calendar date seen in loc.
// The result is expressed in UTC so day arithmetic is DST-free.
func Midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole days from a to b, rounded down.
func DaysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}
