package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	delinquencydomain "github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/snapshot/domain"
	"github.com/smallbiznis/delinquency/pkg/db"
	"gorm.io/gorm"
)

const insertBatchSize = 500

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

// ProvideSource exposes the repository as the report data source.
func ProvideSource(r domain.Repository) delinquencydomain.SnapshotSource {
	return r
}

func (r *repo) ReplaceCustomers(ctx context.Context, rows []domain.ERPCustomer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceTable(tx, rows)
	})
}

func (r *repo) ReplaceContractsAndBills(ctx context.Context, contracts []domain.ERPContract, bills []domain.ERPBill, types []domain.ERPCustomerType) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceTable(tx, contracts); err != nil {
			return err
		}
		if err := replaceTable(tx, bills); err != nil {
			return err
		}
		// an empty type listing keeps the previous one
		if len(types) == 0 {
			return nil
		}
		return replaceTable(tx, types)
	})
}

func replaceTable[T any](tx *gorm.DB, rows []T) error {
	var model T
	if err := tx.Where("1 = 1").Delete(&model).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	err := tx.CreateInBatches(rows, insertBatchSize).Error
	if db.IsDuplicateKeyErr(err) {
		return fmt.Errorf("%w: %T: %v", domain.ErrDuplicateRow, model, err)
	}
	return err
}

// Load reads every table inside one transaction so a concurrent Replace is
// either fully visible or not at all.
func (r *repo) Load(ctx context.Context) (delinquencydomain.Snapshot, error) {
	var (
		customers []domain.ERPCustomer
		contracts []domain.ERPContract
		bills     []domain.ERPBill
		types     []domain.ERPCustomerType
		lastRun   domain.SyncRun
		hasRun    bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id").Find(&bills).Error; err != nil {
			return err
		}
		if err := tx.Find(&customers).Error; err != nil {
			return err
		}
		if err := tx.Order("id").Find(&contracts).Error; err != nil {
			return err
		}
		if err := tx.Find(&types).Error; err != nil {
			return err
		}
		err := tx.
			Where("kind = ? AND status = ?", domain.SyncKindContractsAndBills, domain.SyncStatusSucceeded).
			Order("started_at desc").
			Take(&lastRun).Error
		switch {
		case err == nil:
			hasRun = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return nil
	}, r.readOptions()...)
	if err != nil {
		return delinquencydomain.Snapshot{}, err
	}

	snap := delinquencydomain.Snapshot{
		Bills:         make([]delinquencydomain.SourceBill, 0, len(bills)),
		Customers:     make([]delinquencydomain.SourceCustomer, 0, len(customers)),
		Contracts:     make([]delinquencydomain.SourceContract, 0, len(contracts)),
		CustomerTypes: make(map[string]string, len(types)),
	}
	for _, b := range bills {
		snap.Bills = append(snap.Bills, delinquencydomain.SourceBill{
			ID:         b.ID,
			CustomerID: b.CustomerID,
			IssueDate:  b.IssueDate,
			DueDate:    b.DueDate,
			PaidDate:   b.PaidDate,
			Amount:     b.Amount,
			Status:     b.Status,
		})
	}
	for _, c := range customers {
		snap.Customers = append(snap.Customers, delinquencydomain.SourceCustomer{
			ID:             c.ID,
			CompanyName:    c.CompanyName,
			TradeName:      c.TradeName,
			Neighborhood:   c.Neighborhood,
			MobilePhone:    c.MobilePhone,
			BusinessPhone:  c.BusinessPhone,
			HomePhone:      c.HomePhone,
			Phone:          c.Phone,
			CustomerTypeID: c.CustomerTypeID,
		})
	}
	for _, c := range contracts {
		snap.Contracts = append(snap.Contracts, delinquencydomain.SourceContract{
			ID:               c.ID,
			CustomerID:       c.CustomerID,
			ConnectionStatus: c.ConnectionStatus,
			TrustUnlock:      c.TrustUnlock,
		})
	}
	for _, t := range types {
		snap.CustomerTypes[t.ID] = t.Description
	}

	if hasRun && lastRun.FinishedAt != nil {
		fetched := *lastRun.FinishedAt
		snap.FetchedAt = &fetched
	} else if len(bills) > 0 {
		fetched := latestSync(bills)
		snap.FetchedAt = &fetched
	}
	return snap, nil
}

func (r *repo) readOptions() []*sql.TxOptions {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

func latestSync(bills []domain.ERPBill) time.Time {
	var latest time.Time
	for _, b := range bills {
		if b.SyncedAt.After(latest) {
			latest = b.SyncedAt
		}
	}
	return latest
}

func (r *repo) Counts(ctx context.Context) (domain.Counts, error) {
	var counts domain.Counts
	tx := r.db.WithContext(ctx)
	for _, c := range []struct {
		model any
		dst   *int64
	}{
		{&domain.ERPCustomer{}, &counts.Customers},
		{&domain.ERPContract{}, &counts.Contracts},
		{&domain.ERPBill{}, &counts.Bills},
		{&domain.ERPCustomerType{}, &counts.CustomerTypes},
	} {
		err := tx.Model(c.model).Count(c.dst).Error
		switch {
		case err == nil:
		case db.IsMissingTableErr(err):
			*c.dst = 0
		default:
			return domain.Counts{}, err
		}
	}
	return counts, nil
}

func (r *repo) CreateSyncRun(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repo) FinishSyncRun(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).
		Model(&domain.SyncRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":         run.Status,
			"customers":      run.Customers,
			"contracts":      run.Contracts,
			"bills":          run.Bills,
			"customer_types": run.CustomerTypes,
			"error":          run.Error,
			"finished_at":    run.FinishedAt,
		}).Error
}

func (r *repo) ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.SyncRun
	err := r.db.WithContext(ctx).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
