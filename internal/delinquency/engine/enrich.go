package engine

import (
	"strings"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

type contractInfo struct {
	connectionStatus string
	trustUnlock      bool
}

// lookup indexes customers and contracts by customer identifier.
type lookup struct {
	customers     map[string]domain.SourceCustomer
	contracts     map[string]contractInfo
	customerTypes map[string]string
}

func newLookup(snapshot domain.Snapshot) lookup {
	l := lookup{
		customers:     make(map[string]domain.SourceCustomer, len(snapshot.Customers)),
		contracts:     make(map[string]contractInfo, len(snapshot.Contracts)),
		customerTypes: snapshot.CustomerTypes,
	}
	for _, c := range snapshot.Customers {
		l.customers[strings.TrimSpace(c.ID)] = c
	}
	// A customer with several contracts is trust-unlocked if any of them is;
	// the connection status of the last contract wins.
	for _, c := range snapshot.Contracts {
		id := strings.TrimSpace(c.CustomerID)
		info := l.contracts[id]
		info.connectionStatus = strings.TrimSpace(c.ConnectionStatus)
		if strings.EqualFold(strings.TrimSpace(c.TrustUnlock), domain.TrustFlagEnabled) {
			info.trustUnlock = true
		}
		l.contracts[id] = info
	}
	return l
}

// enrich copies customer and contract attributes onto the record. Missing
// joins fall back to sentinels and are reported once per customer.
func (l lookup) enrich(rec *domain.BillingRecord, seen map[string]struct{}) []domain.Warning {
	var warnings []domain.Warning

	customer, ok := l.customers[rec.CustomerID]
	if ok {
		rec.CustomerName = firstNonEmpty(customer.CompanyName, customer.TradeName)
		rec.Phone = firstNonEmpty(customer.MobilePhone, customer.BusinessPhone, customer.HomePhone, customer.Phone)
		rec.Neighborhood = firstNonEmpty(customer.Neighborhood)
		rec.CustomerType = l.customerType(customer.CustomerTypeID)
	} else {
		rec.CustomerName = domain.NotAvailable
		rec.Phone = domain.NotAvailable
		rec.Neighborhood = domain.NotAvailable
		rec.CustomerType = domain.NotAvailable
		if w, first := missingJoin(seen, rec, "customer"); first {
			warnings = append(warnings, w)
		}
	}

	contract, ok := l.contracts[rec.CustomerID]
	if ok {
		rec.ConnectionStatus = firstNonEmpty(contract.connectionStatus)
		rec.ConnectionLabel = domain.ConnectionLabel(contract.connectionStatus)
		rec.TrustUnlockActive = contract.trustUnlock
	} else {
		rec.ConnectionStatus = domain.NotAvailable
		rec.ConnectionLabel = domain.NotAvailable
		rec.TrustUnlockActive = false
		if w, first := missingJoin(seen, rec, "contract"); first {
			warnings = append(warnings, w)
		}
	}

	return warnings
}

func (l lookup) customerType(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || code == "0" {
		return domain.NotAvailable
	}
	if name, ok := l.customerTypes[code]; ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return code
}

func missingJoin(seen map[string]struct{}, rec *domain.BillingRecord, table string) (domain.Warning, bool) {
	key := table + ":" + rec.CustomerID
	if _, ok := seen[key]; ok {
		return domain.Warning{}, false
	}
	seen[key] = struct{}{}
	return domain.Warning{
		Kind:       domain.WarningMissingJoin,
		RecordID:   rec.ID,
		CustomerID: rec.CustomerID,
		Detail:     "no " + table + " found for customer",
	}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return domain.NotAvailable
}
