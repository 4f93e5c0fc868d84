package erpsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/delinquency/internal/clock"
	"github.com/smallbiznis/delinquency/internal/erp"
	obscontext "github.com/smallbiznis/delinquency/internal/observability/context"
	obslogger "github.com/smallbiznis/delinquency/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/delinquency/internal/observability/metrics"
	"github.com/smallbiznis/delinquency/internal/observability/tracing"
	snapshotdomain "github.com/smallbiznis/delinquency/internal/snapshot/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	TriggerSchedule  = "schedule"
	TriggerBootstrap = "bootstrap"
	TriggerManual    = "manual"
	TriggerEmpty     = "empty_snapshot"
)

// Fetcher reads source listings from the ERP.
type Fetcher interface {
	ListCustomers(ctx context.Context) ([]erp.Customer, error)
	ListContracts(ctx context.Context) ([]erp.Contract, error)
	ListBills(ctx context.Context, start, end time.Time) ([]erp.Bill, error)
	ListCustomerTypes(ctx context.Context) ([]erp.CustomerType, error)
	BillWindow() (time.Time, time.Time)
}

// Locker grants exclusive leases so only one replica syncs a group at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Cfg     Config
	Log     *zap.Logger
	Fetcher Fetcher
	Repo    snapshotdomain.Repository
	Locker  Locker
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *obsmetrics.SyncMetrics `optional:"true"`
}

type Service struct {
	cfg     Config
	log     *zap.Logger
	fetcher Fetcher
	repo    snapshotdomain.Repository
	locker  Locker
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.SyncMetrics

	wg sync.WaitGroup

	mu               sync.Mutex
	lastCustomerSync string
}

func NewService(p Params) *Service {
	return &Service{
		cfg:     p.Cfg.withDefaults(),
		log:     p.Log.Named("erpsync.service"),
		fetcher: p.Fetcher,
		repo:    p.Repo,
		locker:  p.Locker,
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// lease is a held sync lock for one kind.
type lease struct {
	kind  snapshotdomain.SyncKind
	key   string
	token string
}

func lockKey(kind snapshotdomain.SyncKind) string {
	return "delinquency:sync:" + string(kind)
}

func (s *Service) acquire(ctx context.Context, kind snapshotdomain.SyncKind) (lease, error) {
	key := lockKey(kind)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return lease{}, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return lease{}, ErrSyncInProgress
	}
	return lease{kind: kind, key: key, token: token}, nil
}

func (s *Service) release(ctx context.Context, l lease) {
	if err := s.locker.Release(context.WithoutCancel(ctx), l.key, l.token); err != nil {
		s.log.Warn("release sync lock failed", zap.String("key", l.key), zap.Error(err))
	}
}

// acquireAll takes the lock of every selected group or none of them.
func (s *Service) acquireAll(ctx context.Context, services Services) ([]lease, error) {
	var kinds []snapshotdomain.SyncKind
	if services.Customers {
		kinds = append(kinds, snapshotdomain.SyncKindCustomers)
	}
	if services.ContractsAndBills {
		kinds = append(kinds, snapshotdomain.SyncKindContractsAndBills)
	}

	leases := make([]lease, 0, len(kinds))
	for _, kind := range kinds {
		l, err := s.acquire(ctx, kind)
		if err != nil {
			for _, held := range leases {
				s.release(ctx, held)
			}
			return nil, err
		}
		leases = append(leases, l)
	}
	return leases, nil
}

// SyncCustomers replaces the customer table with a fresh ERP listing.
func (s *Service) SyncCustomers(ctx context.Context, trigger string) (*snapshotdomain.SyncRun, error) {
	l, err := s.acquire(ctx, snapshotdomain.SyncKindCustomers)
	if err != nil {
		return nil, err
	}
	return s.syncCustomers(ctx, l, trigger)
}

func (s *Service) syncCustomers(ctx context.Context, l lease, trigger string) (*snapshotdomain.SyncRun, error) {
	return s.run(ctx, l, trigger, obsmetrics.SyncJobCustomers, func(ctx context.Context, run *snapshotdomain.SyncRun) error {
		customers, err := s.fetcher.ListCustomers(ctx)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		syncedAt := s.clock.Now()
		rows := make([]snapshotdomain.ERPCustomer, 0, len(customers))
		for _, c := range customers {
			rows = append(rows, customerRow(c, syncedAt))
		}
		if err := s.repo.ReplaceCustomers(ctx, rows); err != nil {
			return fmt.Errorf("store customers: %w", err)
		}
		run.Customers = len(rows)
		s.metrics.AddRowsStored(obsmetrics.SyncJobCustomers, "customers", len(rows))
		return nil
	})
}

// SyncContractsAndBills fetches contracts, bills and customer types in
// parallel and stores contracts and bills together once every fetch is done.
// A failed customer type listing keeps the previously stored types.
func (s *Service) SyncContractsAndBills(ctx context.Context, trigger string) (*snapshotdomain.SyncRun, error) {
	l, err := s.acquire(ctx, snapshotdomain.SyncKindContractsAndBills)
	if err != nil {
		return nil, err
	}
	return s.syncContractsAndBills(ctx, l, trigger)
}

func (s *Service) syncContractsAndBills(ctx context.Context, l lease, trigger string) (*snapshotdomain.SyncRun, error) {
	return s.run(ctx, l, trigger, obsmetrics.SyncJobContractsAndBills, func(ctx context.Context, run *snapshotdomain.SyncRun) error {
		var (
			contracts []erp.Contract
			bills     []erp.Bill
			types     []erp.CustomerType
		)
		start, end := s.fetcher.BillWindow()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			contracts, err = s.fetcher.ListContracts(gctx)
			if err != nil {
				return fmt.Errorf("list contracts: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			bills, err = s.fetcher.ListBills(gctx, start, end)
			if err != nil {
				return fmt.Errorf("list bills: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			types, err = s.fetcher.ListCustomerTypes(gctx)
			if err != nil {
				obslogger.WithContext(ctx, s.log).Warn("customer type listing failed, keeping stored types", zap.Error(err))
				types = nil
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return err
		}

		syncedAt := s.clock.Now()
		contractRows := make([]snapshotdomain.ERPContract, 0, len(contracts))
		for _, c := range contracts {
			contractRows = append(contractRows, contractRow(c, syncedAt))
		}
		billRows := make([]snapshotdomain.ERPBill, 0, len(bills))
		for _, b := range bills {
			billRows = append(billRows, billRow(b, syncedAt))
		}
		typeRows := make([]snapshotdomain.ERPCustomerType, 0, len(types))
		for _, t := range types {
			typeRows = append(typeRows, customerTypeRow(t, syncedAt))
		}

		if err := s.repo.ReplaceContractsAndBills(ctx, contractRows, billRows, typeRows); err != nil {
			return fmt.Errorf("store contracts and bills: %w", err)
		}
		run.Contracts = len(contractRows)
		run.Bills = len(billRows)
		run.CustomerTypes = len(typeRows)
		s.metrics.AddRowsStored(obsmetrics.SyncJobContractsAndBills, "contracts", len(contractRows))
		s.metrics.AddRowsStored(obsmetrics.SyncJobContractsAndBills, "bills", len(billRows))
		s.metrics.AddRowsStored(obsmetrics.SyncJobContractsAndBills, "customer_types", len(typeRows))
		return nil
	})
}

// SyncServices runs the selected groups one after the other.
func (s *Service) SyncServices(ctx context.Context, services Services, trigger string) error {
	var err error
	if services.Customers {
		_, runErr := s.SyncCustomers(ctx, trigger)
		err = errors.Join(err, runErr)
	}
	if services.ContractsAndBills {
		_, runErr := s.SyncContractsAndBills(ctx, trigger)
		err = errors.Join(err, runErr)
	}
	return err
}

// Trigger validates raw, takes the locks of the selected groups and starts
// the syncs in the background. ErrSyncInProgress is returned when another
// run already holds one of the locks; nothing is started in that case.
func (s *Service) Trigger(ctx context.Context, raw string) (Services, error) {
	services, err := ParseServices(raw)
	if err != nil {
		return Services{}, err
	}
	if err := s.launch(ctx, services, TriggerManual); err != nil {
		return Services{}, err
	}
	return services, nil
}

// TriggerAll starts a full background sync. Reports call it when the
// snapshot is empty; a sync that is already running is enough.
func (s *Service) TriggerAll(ctx context.Context) error {
	err := s.launch(ctx, AllServices(), TriggerEmpty)
	if errors.Is(err, ErrSyncInProgress) {
		obslogger.WithContext(ctx, s.log).Debug("sync already running, not starting another")
		return nil
	}
	return err
}

func (s *Service) launch(ctx context.Context, services Services, trigger string) error {
	leases, err := s.acquireAll(ctx, services)
	if err != nil {
		return err
	}

	parent := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runCtx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
		defer cancel()

		var err error
		for _, l := range leases {
			var runErr error
			switch l.kind {
			case snapshotdomain.SyncKindCustomers:
				_, runErr = s.syncCustomers(runCtx, l, trigger)
			case snapshotdomain.SyncKindContractsAndBills:
				_, runErr = s.syncContractsAndBills(runCtx, l, trigger)
			}
			err = errors.Join(err, runErr)
		}
		if err != nil {
			obslogger.WithContext(runCtx, s.log).Warn("background sync failed", zap.Strings("services", services.Names()), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background syncs started by Trigger have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// run executes fn under the held lease and releases it afterwards.
func (s *Service) run(
	ctx context.Context,
	l lease,
	trigger string,
	job string,
	fn func(ctx context.Context, run *snapshotdomain.SyncRun) error,
) (*snapshotdomain.SyncRun, error) {
	defer s.release(ctx, l)
	kind := l.kind

	run := &snapshotdomain.SyncRun{
		ID:            s.genID.Generate(),
		CorrelationID: ulid.Make().String(),
		Kind:          kind,
		Trigger:       trigger,
		Status:        snapshotdomain.SyncStatusRunning,
		StartedAt:     s.clock.Now(),
	}
	ctx = obscontext.WithSyncRunID(ctx, run.CorrelationID)
	ctx, span := tracing.StartSpan(ctx, "sync."+string(kind),
		attribute.String("sync.trigger", trigger),
		attribute.String("sync.run_id", run.CorrelationID),
	)
	defer span.End()

	log := obslogger.WithContext(ctx, s.log).With(zap.String("kind", string(kind)), zap.String("trigger", trigger))
	if err := s.repo.CreateSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record sync run: %w", err)
	}
	log.Info("sync started")

	s.metrics.IncJobRun(job)
	start := time.Now()
	runErr := fn(ctx, run)
	s.metrics.ObserveJobDuration(job, time.Since(start))

	finished := s.clock.Now()
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = snapshotdomain.SyncStatusFailed
		run.Error = runErr.Error()
		if errors.Is(runErr, context.DeadlineExceeded) {
			s.metrics.IncJobTimeout(job)
		}
		s.metrics.IncJobError(job, runErr)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "sync failed")
	} else {
		run.Status = snapshotdomain.SyncStatusSucceeded
		s.metrics.MarkSuccess(job, finished)
	}

	if err := s.repo.FinishSyncRun(context.WithoutCancel(ctx), run); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("record sync run: %w", err))
	}

	fields := []zap.Field{
		zap.Int("customers", run.Customers),
		zap.Int("contracts", run.Contracts),
		zap.Int("bills", run.Bills),
		zap.Int("customer_types", run.CustomerTypes),
		zap.Duration("duration", finished.Sub(run.StartedAt)),
	}
	if runErr != nil {
		log.Warn("sync failed", append(fields, zap.String("reason", obsmetrics.ClassifySyncJobReason(runErr)), zap.Error(runErr))...)
		return run, runErr
	}
	log.Info("sync finished", fields...)
	return run, nil
}

func customerRow(c erp.Customer, at time.Time) snapshotdomain.ERPCustomer {
	return snapshotdomain.ERPCustomer{
		ID:             c.Source.ID,
		CompanyName:    c.Source.CompanyName,
		TradeName:      c.Source.TradeName,
		Neighborhood:   c.Source.Neighborhood,
		MobilePhone:    c.Source.MobilePhone,
		BusinessPhone:  c.Source.BusinessPhone,
		HomePhone:      c.Source.HomePhone,
		Phone:          c.Source.Phone,
		CustomerTypeID: c.Source.CustomerTypeID,
		Payload:        c.Raw,
		SyncedAt:       at,
	}
}

func contractRow(c erp.Contract, at time.Time) snapshotdomain.ERPContract {
	return snapshotdomain.ERPContract{
		ID:               c.Source.ID,
		CustomerID:       c.Source.CustomerID,
		ConnectionStatus: c.Source.ConnectionStatus,
		TrustUnlock:      c.Source.TrustUnlock,
		Payload:          c.Raw,
		SyncedAt:         at,
	}
}

func billRow(b erp.Bill, at time.Time) snapshotdomain.ERPBill {
	return snapshotdomain.ERPBill{
		ID:         b.Source.ID,
		CustomerID: b.Source.CustomerID,
		IssueDate:  b.Source.IssueDate,
		DueDate:    b.Source.DueDate,
		PaidDate:   b.Source.PaidDate,
		Amount:     b.Source.Amount,
		Status:     b.Source.Status,
		Payload:    b.Raw,
		SyncedAt:   at,
	}
}

func customerTypeRow(t erp.CustomerType, at time.Time) snapshotdomain.ERPCustomerType {
	return snapshotdomain.ERPCustomerType{
		ID:          t.ID,
		Description: t.Description,
		Payload:     t.Raw,
		SyncedAt:    at,
	}
}
