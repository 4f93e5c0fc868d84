package domain

// Category is the risk bucket assigned to a classified record. The string
// values are consumed by dashboards and must stay stable.
type Category string

const (
	CategoryOnTime          Category = "on_time"
	CategoryStandardOverdue Category = "standard_overdue"
	CategoryTransition      Category = "transition"
	CategoryChronic         Category = "chronic"
	CategoryTrustUnlock     Category = "trust_unlock"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryOnTime,
	CategoryStandardOverdue,
	CategoryTransition,
	CategoryChronic,
	CategoryTrustUnlock,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryOnTime, CategoryStandardOverdue, CategoryTransition, CategoryChronic, CategoryTrustUnlock:
		return true
	}
	return false
}

// Label returns a human readable name for reports.
func (c Category) Label() string {
	switch c {
	case CategoryStandardOverdue:
		return "Standard overdue"
	case CategoryTransition:
		return "Transition"
	case CategoryChronic:
		return "Chronic"
	case CategoryTrustUnlock:
		return "Trust unlock"
	default:
		return "On time"
	}
}

// ConnectionStatusLabels maps ERP contract internet status codes.
var ConnectionStatusLabels = map[string]string{
	"A":  "Active",
	"B":  "Blocked",
	"D":  "Disabled",
	"F":  "Financial Delay",
	"I":  "Inactive",
	"CA": "Cancelled",
	"CM": "Check Status",
}

// ConnectionLabel resolves a contract status code, falling back to the code.
func ConnectionLabel(code string) string {
	if label, ok := ConnectionStatusLabels[code]; ok {
		return label
	}
	if code == "" {
		return NotAvailable
	}
	return code
}
