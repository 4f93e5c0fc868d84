package export

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

var (
	headerText = props.Text{Style: fontstyle.Bold, Size: 9}
	cellText   = props.Text{Size: 9}
	numberText = props.Text{Size: 9, Align: align.Right}
)

// PDF renders a one-pass summary of the report.
func PDF(report domain.Report) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	metrics := report.Metrics

	m.AddRow(12,
		text.NewCol(12, "Delinquency Report", props.Text{Size: 18, Style: fontstyle.Bold}),
	)
	m.AddRow(12,
		col.New(12).Add(
			text.New(fmt.Sprintf("Period: %s to %s",
				report.Period.Start.Format(dateLayout), report.Period.End.Format(dateLayout)), props.Text{Size: 9}),
			text.New("Reference date: "+report.ReferenceDate.Format(dateLayout), props.Text{Size: 9, Top: 4}),
		),
	)

	section(m, "Financial Summary")
	pairs(m, [][2]string{
		{"Total received", money(metrics.Financial.Received)},
		{"Total pending", money(metrics.Financial.Pending)},
		{"Total overdue", money(metrics.Financial.Overdue)},
		{"Total cancelled", money(metrics.Financial.Cancelled)},
	})

	d := metrics.Delinquency
	section(m, "Delinquency Control")
	pairs(m, [][2]string{
		{"Avg overdue ticket", money(d.AverageOverdueTicket)},
		{"Overdue bills", fmt.Sprintf("%d", d.TotalOverdueCount)},
		{"Roll rate", percent(d.RollRate)},
		{"CEI", percent(d.CEI)},
		{"Recovery rate", percent(d.RecoveryRate)},
	})

	section(m, "Aging Analysis")
	m.AddRow(7,
		text.NewCol(6, "Stage", headerText),
		text.NewCol(3, "Bills", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, b := range d.AgingBuckets {
		m.AddRow(6,
			text.NewCol(6, b.Label, cellText),
			text.NewCol(3, fmt.Sprintf("%d", b.Count), numberText),
			text.NewCol(3, money(b.Amount), numberText),
		)
	}

	s := metrics.Suspension
	section(m, "Suspension Funnel")
	pairs(m, [][2]string{
		{domain.CategoryStandardOverdue.Label(), money(s.Funnel.Standard)},
		{domain.CategoryTransition.Label(), money(s.Funnel.Transition)},
		{domain.CategoryChronic.Label(), money(s.Funnel.Chronic)},
		{"Conversion rate", percent(s.ConversionRate)},
		{"Self-healing rate", percent(s.SelfHealingRate)},
		{"Active trust unlocks", fmt.Sprintf("%d", s.ActiveTrustUnlocks)},
	})

	section(m, "Daily Breakdown")
	m.AddRow(7,
		text.NewCol(3, "Due date", headerText),
		text.NewCol(2, "Customers", headerText),
		text.NewCol(2, "Standard", headerText),
		text.NewCol(2, "Transition", headerText),
		text.NewCol(1, "Chronic", headerText),
		text.NewCol(2, "Trust", headerText),
	)
	for _, row := range report.ByDate {
		m.AddRow(6,
			text.NewCol(3, row.DueDate.Format(dateLayout), cellText),
			text.NewCol(2, fmt.Sprintf("%d", row.Total), cellText),
			text.NewCol(2, fmt.Sprintf("%d", row.StandardOverdue), cellText),
			text.NewCol(2, fmt.Sprintf("%d", row.Transition), cellText),
			text.NewCol(1, fmt.Sprintf("%d", row.Chronic), cellText),
			text.NewCol(2, fmt.Sprintf("%d", row.TrustUnlock), cellText),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func section(m core.Maroto, title string) {
	m.AddRow(12,
		text.NewCol(12, title, props.Text{Size: 12, Style: fontstyle.Bold, Top: 4}),
	)
}

func pairs(m core.Maroto, rows [][2]string) {
	for _, r := range rows {
		m.AddRow(6,
			text.NewCol(8, r[0], cellText),
			text.NewCol(4, r[1], numberText),
		)
	}
}
