package domain

import (
	"context"
	"time"
)

// SourceBill is a bill as stored from the ERP, before cleaning.
type SourceBill struct {
	ID         string
	CustomerID string
	IssueDate  string
	DueDate    string
	PaidDate   string
	Amount     string
	Status     string
}

type SourceCustomer struct {
	ID             string
	CompanyName    string
	TradeName      string
	Neighborhood   string
	MobilePhone    string
	BusinessPhone  string
	HomePhone      string
	Phone          string
	CustomerTypeID string
}

type SourceContract struct {
	ID               string
	CustomerID       string
	ConnectionStatus string
	TrustUnlock      string
}

// Snapshot is one consistent read of the synced ERP tables.
type Snapshot struct {
	Bills         []SourceBill
	Customers     []SourceCustomer
	Contracts     []SourceContract
	CustomerTypes map[string]string
	FetchedAt     *time.Time
}

// Empty reports whether there is nothing to classify.
func (s Snapshot) Empty() bool {
	return len(s.Bills) == 0
}

// SnapshotSource loads the latest synced snapshot.
type SnapshotSource interface {
	Load(ctx context.Context) (Snapshot, error)
}

// SyncTrigger starts a background refresh when no data is available.
type SyncTrigger interface {
	TriggerAll(ctx context.Context) error
}
