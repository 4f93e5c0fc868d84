package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ERPCustomer struct {
	ID             string         `gorm:"primaryKey;size:32" json:"id"`
	CompanyName    string         `json:"company_name"`
	TradeName      string         `json:"trade_name"`
	Neighborhood   string         `json:"neighborhood"`
	MobilePhone    string         `json:"mobile_phone"`
	BusinessPhone  string         `json:"business_phone"`
	HomePhone      string         `json:"home_phone"`
	Phone          string         `json:"phone"`
	CustomerTypeID string         `gorm:"size:32" json:"customer_type_id"`
	Payload        datatypes.JSON `json:"payload"`
	SyncedAt       time.Time      `gorm:"not null" json:"synced_at"`
}

func (ERPCustomer) TableName() string { return "erp_customers" }

type ERPContract struct {
	ID               string         `gorm:"primaryKey;size:32" json:"id"`
	CustomerID       string         `gorm:"size:32;index" json:"customer_id"`
	ConnectionStatus string         `gorm:"size:8" json:"connection_status"`
	TrustUnlock      string         `gorm:"size:4" json:"trust_unlock"`
	Payload          datatypes.JSON `json:"payload"`
	SyncedAt         time.Time      `gorm:"not null" json:"synced_at"`
}

func (ERPContract) TableName() string { return "erp_contracts" }

// ERPBill keeps dates and amount as the ERP sent them. Parsing happens when
// a report is built so malformed values surface as warnings.
type ERPBill struct {
	ID         string         `gorm:"primaryKey;size:32" json:"id"`
	CustomerID string         `gorm:"size:32;index" json:"customer_id"`
	IssueDate  string         `gorm:"size:32" json:"issue_date"`
	DueDate    string         `gorm:"size:32;index" json:"due_date"`
	PaidDate   string         `gorm:"size:32" json:"paid_date"`
	Amount     string         `gorm:"size:32" json:"amount"`
	Status     string         `gorm:"size:4" json:"status"`
	Payload    datatypes.JSON `json:"payload"`
	SyncedAt   time.Time      `gorm:"not null" json:"synced_at"`
}

func (ERPBill) TableName() string { return "erp_bills" }

type ERPCustomerType struct {
	ID          string         `gorm:"primaryKey;size:32" json:"id"`
	Description string         `json:"description"`
	Payload     datatypes.JSON `json:"payload"`
	SyncedAt    time.Time      `gorm:"not null" json:"synced_at"`
}

func (ERPCustomerType) TableName() string { return "erp_customer_types" }

type SyncKind string

const (
	SyncKindCustomers         SyncKind = "customers"
	SyncKindContractsAndBills SyncKind = "contracts_bills"
)

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusSucceeded SyncStatus = "succeeded"
	SyncStatusFailed    SyncStatus = "failed"
)

type SyncRun struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CorrelationID string       `gorm:"size:26;uniqueIndex" json:"correlation_id"`
	Kind          SyncKind     `gorm:"size:32;index" json:"kind"`
	Trigger       string       `gorm:"size:32" json:"trigger"`
	Status        SyncStatus   `gorm:"size:16" json:"status"`
	Customers     int          `json:"customers"`
	Contracts     int          `json:"contracts"`
	Bills         int          `json:"bills"`
	CustomerTypes int          `json:"customer_types"`
	Error         string       `json:"error,omitempty"`
	StartedAt     time.Time    `gorm:"not null" json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
}

func (SyncRun) TableName() string { return "sync_runs" }

// Counts holds row counts per snapshot table.
type Counts struct {
	Customers     int64 `json:"customers"`
	Contracts     int64 `json:"contracts"`
	Bills         int64 `json:"bills"`
	CustomerTypes int64 `json:"customer_types"`
}

// AnyEmpty reports whether a table needed for reports has no rows.
func (c Counts) AnyEmpty() bool {
	return c.Customers == 0 || c.Contracts == 0 || c.Bills == 0
}
