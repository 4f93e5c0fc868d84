package export

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

type Format string

const (
	FormatMarkdown Format = "md"
	FormatXLSX     Format = "xlsx"
	FormatPDF      Format = "pdf"
)

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", domain.ErrInvalidFormat
	}
}

// Document is a rendered report ready to be served as a download.
type Document struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Render encodes report in the requested format.
func Render(format Format, report domain.Report) (Document, error) {
	base := fmt.Sprintf("delinquency_%s_%s",
		report.Period.Start.Format("20060102"),
		report.Period.End.Format("20060102"),
	)
	switch format {
	case FormatMarkdown:
		return Document{
			ContentType: "text/markdown; charset=utf-8",
			Filename:    base + ".md",
			Body:        Markdown(report),
		}, nil
	case FormatXLSX:
		body, err := XLSX(report)
		if err != nil {
			return Document{}, fmt.Errorf("render xlsx: %w", err)
		}
		return Document{
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Filename:    base + ".xlsx",
			Body:        body,
		}, nil
	case FormatPDF:
		body, err := PDF(report)
		if err != nil {
			return Document{}, fmt.Errorf("render pdf: %w", err)
		}
		return Document{
			ContentType: "application/pdf",
			Filename:    base + ".pdf",
			Body:        body,
		}, nil
	default:
		return Document{}, domain.ErrInvalidFormat
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

const dateLayout = "02/01/2006"
