package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// ParseDate reads an ERP date as a calendar date at UTC midnight. Empty and
// zero dates return ok=false without an error.
func ParseDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "0000-00-00") {
		return time.Time{}, false, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return Midnight(t, time.UTC), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", domain.ErrMalformedDate, raw)
}

// Clean parses and enriches every bill of the snapshot. It never fails: bad
// fields degrade to safe values and come back as warnings.
func Clean(snapshot domain.Snapshot) ([]domain.BillingRecord, []domain.Warning) {
	records := make([]domain.BillingRecord, 0, len(snapshot.Bills))
	warnings := []domain.Warning{}
	if snapshot.Empty() {
		return records, warnings
	}

	idx := newLookup(snapshot)
	seen := map[string]struct{}{}

	for _, bill := range snapshot.Bills {
		rec, ws := cleanBill(bill)
		warnings = append(warnings, ws...)
		warnings = append(warnings, idx.enrich(&rec, seen)...)
		records = append(records, rec)
	}
	return records, warnings
}

func cleanBill(bill domain.SourceBill) (domain.BillingRecord, []domain.Warning) {
	var warnings []domain.Warning
	rec := domain.BillingRecord{
		ID:         strings.TrimSpace(bill.ID),
		CustomerID: strings.TrimSpace(bill.CustomerID),
		Status:     domain.ParseStatus(strings.ToUpper(strings.TrimSpace(bill.Status))),
	}
	warn := func(kind domain.WarningKind, detail string) {
		warnings = append(warnings, domain.Warning{
			Kind:       kind,
			RecordID:   rec.ID,
			CustomerID: rec.CustomerID,
			Detail:     detail,
		})
	}

	if rec.Status == domain.StatusUnknown {
		warn(domain.WarningUnknownStatus, fmt.Sprintf("unknown status %q", bill.Status))
	}

	due, ok, err := ParseDate(bill.DueDate)
	switch {
	case err != nil:
		warn(domain.WarningMalformedDate, "due date: "+err.Error())
	case !ok:
		warn(domain.WarningMalformedDate, "due date is empty")
	default:
		rec.DueDate = due
		rec.DueDateValid = true
	}

	if issued, ok, err := ParseDate(bill.IssueDate); err == nil && ok {
		rec.IssueDate = &issued
	}

	paid, ok, err := ParseDate(bill.PaidDate)
	if err != nil {
		warn(domain.WarningMalformedDate, "paid date: "+err.Error())
	} else if ok {
		rec.PaidDate = &paid
	}

	rec.Amount = decimal.Zero
	if raw := strings.TrimSpace(bill.Amount); raw != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
		switch {
		case err != nil:
			warn(domain.WarningInvalidAmount, fmt.Sprintf("unparseable amount %q", raw))
		case amount.IsNegative():
			warn(domain.WarningInvalidAmount, fmt.Sprintf("negative amount %s", amount))
		default:
			rec.Amount = amount
		}
	}

	return rec, warnings
}
