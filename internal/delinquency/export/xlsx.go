package export

import (
	"bytes"
	"fmt"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary = "summary"
	sheetByDate  = "by_date"
	sheetAging   = "aging"
)

// XLSX renders a workbook with summary, by-date and aging sheets.
func XLSX(report domain.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetByDate, sheetAging} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	m := report.Metrics
	summary := [][]any{
		{"Delinquency Report"},
		{},
		{"Period start", report.Period.Start.Format(dateLayout)},
		{"Period end", report.Period.End.Format(dateLayout)},
		{"Reference date", report.ReferenceDate.Format(dateLayout)},
		{"Bills", report.RecordCount},
		{"Total received", m.Financial.Received.InexactFloat64()},
		{"Total pending", m.Financial.Pending.InexactFloat64()},
		{"Total overdue", m.Financial.Overdue.InexactFloat64()},
		{"Total cancelled", m.Financial.Cancelled.InexactFloat64()},
		{"Avg overdue ticket", m.Delinquency.AverageOverdueTicket.InexactFloat64()},
		{"Roll rate %", m.Delinquency.RollRate},
		{"CEI %", m.Delinquency.CEI},
		{"Recovery rate %", m.Delinquency.RecoveryRate},
		{"Conversion rate %", m.Suspension.ConversionRate},
		{"Self-healing rate %", m.Suspension.SelfHealingRate},
		{"Active trust unlocks", m.Suspension.ActiveTrustUnlocks},
		{"Avg recovery days", m.Suspension.AvgRecoveryDays},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	byDate := [][]any{{"Due date", "Customers", "On time", "Standard", "Transition", "Chronic", "Trust unlock"}}
	for _, row := range report.ByDate {
		byDate = append(byDate, []any{
			row.DueDate.Format(dateLayout), row.Total, row.Current,
			row.StandardOverdue, row.Transition, row.Chronic, row.TrustUnlock,
		})
	}
	if err := writeRows(f, sheetByDate, byDate); err != nil {
		return nil, err
	}

	aging := [][]any{{"Stage", "Bills", "Amount"}}
	for _, b := range m.Delinquency.AgingBuckets {
		aging = append(aging, []any{b.Label, b.Count, b.Amount.InexactFloat64()})
	}
	if err := writeRows(f, sheetAging, aging); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
