package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() domain.Report {
	ref := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	max15 := 15
	return domain.Report{
		ReferenceDate: ref,
		Period:        domain.Period{Start: ref.AddDate(0, 0, -45), End: ref},
		HasData:       true,
		RecordCount:   3,
		Metrics: domain.MetricsBundle{
			Financial: domain.FinancialSummary{
				Received:  decimal.RequireFromString("120.5"),
				Pending:   decimal.Zero,
				Overdue:   decimal.RequireFromString("300"),
				Cancelled: decimal.Zero,
			},
			Delinquency: domain.DelinquencyMetrics{
				AgingBuckets: []domain.AgingBucket{
					{Label: "1-15", MinDays: 1, MaxDays: &max15, Amount: decimal.RequireFromString("300"), Count: 2},
				},
				AverageOverdueTicket:  decimal.RequireFromString("150"),
				CEI:                   28.67,
				TotalOverdueCount:     2,
				CustomerTypeBreakdown: []domain.SegmentAmount{{Segment: "Business", Amount: decimal.RequireFromString("300")}},
				NeighborhoodBreakdown: []domain.SegmentAmount{},
			},
			Suspension: domain.SuspensionMetrics{
				Funnel: domain.SuspensionFunnel{Standard: decimal.RequireFromString("300"), Transition: decimal.Zero, Chronic: decimal.Zero},
			},
		},
		ByDate: []domain.DailyBucket{
			{DueDate: ref.AddDate(0, 0, -3), Total: 2, StandardOverdue: 2},
		},
		Totals:   domain.TotalsRow{Total: 3, Current: 1, StandardOverdue: 2},
		Warnings: []domain.Warning{{Kind: domain.WarningMissingJoin, RecordID: "1"}},
	}
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": FormatMarkdown, "MD": FormatMarkdown, "xlsx": FormatXLSX, "pdf": FormatPDF} {
		got, err := ParseFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown(sampleReport()))

	assert.True(t, strings.HasPrefix(out, "# Delinquency Report"))
	assert.Contains(t, out, "**Period:** 04/02/2024 to 20/03/2024")
	assert.Contains(t, out, "- **Total Received:** 120.50")
	assert.Contains(t, out, "- **Collection Effectiveness (CEI):** 28.67%")
	assert.Contains(t, out, "| 1-15 | 2 | 300.00 |")
	assert.Contains(t, out, "| Business | 300.00 |")
	assert.Contains(t, out, "| 17/03/2024 | 2 | 0 | 2 | 0 | 0 | 0 |")
	assert.Contains(t, out, "- missing_join: 1")
	assert.NotContains(t, out, "No synced data")
}

func TestXLSX(t *testing.T) {
	body, err := XLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetByDate, sheetAging}, f.GetSheetList())

	v, err := f.GetCellValue(sheetSummary, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Delinquency Report", v)

	v, err = f.GetCellValue(sheetByDate, "A2")
	require.NoError(t, err)
	assert.Equal(t, "17/03/2024", v)

	v, err = f.GetCellValue(sheetAging, "C2")
	require.NoError(t, err)
	assert.Equal(t, "300", v)
}

func TestRender(t *testing.T) {
	doc, err := Render(FormatMarkdown, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "delinquency_20240204_20240320.md", doc.Filename)
	assert.Contains(t, doc.ContentType, "text/markdown")

	doc, err = Render(FormatPDF, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))

	_, err = Render(Format("csv"), sampleReport())
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}
