package erpsync

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidServices = errors.New("invalid_services")
	ErrSyncInProgress  = errors.New("sync_in_progress")
)

// Services selects which snapshot groups a manual sync refreshes.
type Services struct {
	Customers         bool
	ContractsAndBills bool
}

func AllServices() Services {
	return Services{Customers: true, ContractsAndBills: true}
}

// ParseServices reads a comma separated list such as "customers,bills".
// An empty value selects everything.
func ParseServices(raw string) (Services, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AllServices(), nil
	}

	var out Services
	for _, token := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(token)) {
		case "all":
			out = AllServices()
		case "customers", "clientes":
			out.Customers = true
		case "contracts", "contratos", "bills", "boletos":
			out.ContractsAndBills = true
		case "":
		default:
			return Services{}, fmt.Errorf("%w: %q", ErrInvalidServices, strings.TrimSpace(token))
		}
	}
	if out == (Services{}) {
		return Services{}, ErrInvalidServices
	}
	return out, nil
}

// Names lists the selected groups for responses and logs.
func (s Services) Names() []string {
	names := make([]string, 0, 3)
	if s.Customers {
		names = append(names, "customers")
	}
	if s.ContractsAndBills {
		names = append(names, "contracts", "bills")
	}
	return names
}
