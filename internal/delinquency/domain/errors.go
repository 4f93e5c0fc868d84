package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidView       = errors.New("invalid_view")
	ErrInvalidRange      = errors.New("invalid_range")
	ErrInvalidDate       = errors.New("invalid_date")
	ErrInvalidThresholds = errors.New("invalid_thresholds")
	ErrInvalidFormat     = errors.New("invalid_format")

	ErrMissingJoin    = errors.New("missing_join")
	ErrMalformedDate  = errors.New("malformed_date")
	ErrNegativeBucket = errors.New("negative_bucket")
	ErrEmptySnapshot  = errors.New("empty_snapshot")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrUnknownStatus  = errors.New("unknown_status")
)

// WarningKind is a low-cardinality label for data quality problems.
type WarningKind string

const (
	WarningMissingJoin    WarningKind = "missing_join"
	WarningMalformedDate  WarningKind = "malformed_date"
	WarningNegativeBucket WarningKind = "negative_bucket"
	WarningEmptySnapshot  WarningKind = "empty_snapshot"
	WarningInvalidAmount  WarningKind = "invalid_amount"
	WarningUnknownStatus  WarningKind = "unknown_status"
)

// Warning describes a record-level problem that did not abort the report.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	RecordID   string      `json:"record_id,omitempty"`
	CustomerID string      `json:"customer_id,omitempty"`
	Detail     string      `json:"detail"`
}

// Err returns the sentinel error matching the warning kind.
func (w Warning) Err() error {
	var base error
	switch w.Kind {
	case WarningMissingJoin:
		base = ErrMissingJoin
	case WarningMalformedDate:
		base = ErrMalformedDate
	case WarningNegativeBucket:
		base = ErrNegativeBucket
	case WarningEmptySnapshot:
		base = ErrEmptySnapshot
	case WarningInvalidAmount:
		base = ErrInvalidAmount
	default:
		base = ErrUnknownStatus
	}
	return fmt.Errorf("%w: %s", base, w.Detail)
}

func (w Warning) String() string {
	return fmt.Sprintf("%s record=%s customer=%s: %s", w.Kind, w.RecordID, w.CustomerID, w.Detail)
}

// CountWarnings groups warnings by kind.
func CountWarnings(warnings []Warning) map[WarningKind]int {
	out := make(map[WarningKind]int, len(warnings))
	for _, w := range warnings {
		out[w.Kind]++
	}
	return out
}
