package domain

import (
	"context"

	delinquencydomain "github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

// Repository stores the local copy of ERP data. Every Replace call swaps
// its tables inside a single transaction. Counts treats a table that was
// never migrated as empty.
type Repository interface {
	ReplaceCustomers(ctx context.Context, rows []ERPCustomer) error
	ReplaceContractsAndBills(ctx context.Context, contracts []ERPContract, bills []ERPBill, types []ERPCustomerType) error

	Load(ctx context.Context) (delinquencydomain.Snapshot, error)
	Counts(ctx context.Context) (Counts, error)

	CreateSyncRun(ctx context.Context, run *SyncRun) error
	FinishSyncRun(ctx context.Context, run *SyncRun) error
	ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)
}
