package erp

import (
	"errors"
	"fmt"

	obsmetrics "github.com/smallbiznis/delinquency/internal/observability/metrics"
)

var (
	ErrNotConfigured = errors.New("erp_not_configured")
	ErrUpstream      = errors.New("erp_upstream_error")
)

// Error describes a failed page request.
type Error struct {
	Endpoint   string
	Page       int
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("erp %s page %d: status %d: %s", e.Endpoint, e.Page, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("erp %s page %d: %s", e.Endpoint, e.Page, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

func (e *Error) MetricReason() string {
	return obsmetrics.SyncJobReasonUpstream
}
