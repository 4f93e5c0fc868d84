package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

const (
	dateOnlyLayout = "2006-01-02"
	// ERP dashboards send dates as dd-mm-yyyy.
	dayFirstLayout = "02-01-2006"
)

func parseOptionalInt(value string, def int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def, nil
	}
	return strconv.Atoi(trimmed)
}

// parseOptionalDate accepts YYYY-MM-DD, dd-mm-yyyy or RFC3339 and returns
// the calendar date at UTC midnight.
func parseOptionalDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{dateOnlyLayout, dayFirstLayout} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed, nil
		}
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		return &day, nil
	}
	return nil, domain.ErrInvalidDate
}

func parseDayFirstDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dayFirstLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return parsed, nil
}
