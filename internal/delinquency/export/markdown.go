package export

import (
	"bytes"
	"fmt"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

// Markdown renders the report as a plain markdown document.
func Markdown(report domain.Report) []byte {
	var b bytes.Buffer
	m := report.Metrics

	b.WriteString("# Delinquency Report\n\n")
	fmt.Fprintf(&b, "**Period:** %s to %s\n\n", report.Period.Start.Format(dateLayout), report.Period.End.Format(dateLayout))
	fmt.Fprintf(&b, "**Reference date:** %s\n\n", report.ReferenceDate.Format(dateLayout))
	if !report.HasData {
		b.WriteString("_No synced data available yet._\n\n")
	}

	b.WriteString("## Financial Summary\n")
	fmt.Fprintf(&b, "- **Total Received:** %s\n", money(m.Financial.Received))
	fmt.Fprintf(&b, "- **Total Pending:** %s\n", money(m.Financial.Pending))
	fmt.Fprintf(&b, "- **Total Overdue:** %s\n", money(m.Financial.Overdue))
	fmt.Fprintf(&b, "- **Total Cancelled:** %s\n\n", money(m.Financial.Cancelled))

	d := m.Delinquency
	b.WriteString("## Delinquency Control\n")
	fmt.Fprintf(&b, "- **Avg Overdue Ticket:** %s\n", money(d.AverageOverdueTicket))
	fmt.Fprintf(&b, "- **Overdue Bills:** %d\n", d.TotalOverdueCount)
	fmt.Fprintf(&b, "- **Roll Rate (1-30 to 31+):** %s\n", percent(d.RollRate))
	fmt.Fprintf(&b, "- **Collection Effectiveness (CEI):** %s\n", percent(d.CEI))
	fmt.Fprintf(&b, "- **Recovery Rate:** %s\n\n", percent(d.RecoveryRate))

	b.WriteString("### Aging Analysis\n")
	b.WriteString("| Stage | Bills | Amount |\n| --- | --- | --- |\n")
	for _, bucket := range d.AgingBuckets {
		fmt.Fprintf(&b, "| %s | %d | %s |\n", bucket.Label, bucket.Count, money(bucket.Amount))
	}
	b.WriteString("\n")

	b.WriteString("### Delinquency by Customer Type\n")
	b.WriteString("| Type | Overdue Amount |\n| --- | --- |\n")
	for _, seg := range d.CustomerTypeBreakdown {
		fmt.Fprintf(&b, "| %s | %s |\n", seg.Segment, money(seg.Amount))
	}
	b.WriteString("\n")

	b.WriteString("### Delinquency by Neighborhood\n")
	b.WriteString("| Neighborhood | Overdue Amount |\n| --- | --- |\n")
	for _, seg := range d.NeighborhoodBreakdown {
		fmt.Fprintf(&b, "| %s | %s |\n", seg.Segment, money(seg.Amount))
	}
	b.WriteString("\n")

	s := m.Suspension
	b.WriteString("## Suspension Management\n")
	fmt.Fprintf(&b, "- **Conversion Rate (Lockout):** %s\n", percent(s.ConversionRate))
	fmt.Fprintf(&b, "- **Self-Healing Rate:** %s\n", percent(s.SelfHealingRate))
	fmt.Fprintf(&b, "- **Active Trust Unlocks:** %d\n", s.ActiveTrustUnlocks)
	fmt.Fprintf(&b, "- **Avg Recovery Time:** %.1f days\n\n", s.AvgRecoveryDays)

	b.WriteString("### Suspension Funnel\n")
	b.WriteString("| Stage | Amount |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| %s | %s |\n", domain.CategoryStandardOverdue.Label(), money(s.Funnel.Standard))
	fmt.Fprintf(&b, "| %s | %s |\n", domain.CategoryTransition.Label(), money(s.Funnel.Transition))
	fmt.Fprintf(&b, "| %s | %s |\n", domain.CategoryChronic.Label(), money(s.Funnel.Chronic))
	b.WriteString("\n")

	b.WriteString("## Daily Breakdown\n")
	b.WriteString("| Due date | Customers | On time | Standard | Transition | Chronic | Trust unlock |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
	for _, row := range report.ByDate {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d | %d |\n",
			row.DueDate.Format(dateLayout), row.Total, row.Current,
			row.StandardOverdue, row.Transition, row.Chronic, row.TrustUnlock)
	}
	b.WriteString("\n")

	if len(report.Warnings) > 0 {
		b.WriteString("## Data Quality\n")
		counts := domain.CountWarnings(report.Warnings)
		for _, kind := range warningKinds {
			if n := counts[kind]; n > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", kind, n)
			}
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

var warningKinds = []domain.WarningKind{
	domain.WarningEmptySnapshot,
	domain.WarningMissingJoin,
	domain.WarningMalformedDate,
	domain.WarningInvalidAmount,
	domain.WarningUnknownStatus,
	domain.WarningNegativeBucket,
}
