package erpsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/delinquency/internal/clock"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/erp"
	"github.com/smallbiznis/delinquency/internal/migration"
	"github.com/smallbiznis/delinquency/internal/ratelimit"
	snapshotdomain "github.com/smallbiznis/delinquency/internal/snapshot/domain"
	"github.com/smallbiznis/delinquency/internal/snapshot/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeFetcher struct {
	mu sync.Mutex

	customers []erp.Customer
	contracts []erp.Contract
	bills     []erp.Bill
	types     []erp.CustomerType

	contractsErr error
	typesErr     error

	// customersGate blocks ListCustomers until closed when set.
	customersGate chan struct{}

	customerCalls int
	billCalls     int
	window        [2]time.Time
}

func (f *fakeFetcher) ListCustomers(context.Context) ([]erp.Customer, error) {
	if f.customersGate != nil {
		<-f.customersGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	return f.customers, nil
}

func (f *fakeFetcher) ListContracts(context.Context) ([]erp.Contract, error) {
	return f.contracts, f.contractsErr
}

func (f *fakeFetcher) ListBills(_ context.Context, start, end time.Time) ([]erp.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.billCalls++
	f.window = [2]time.Time{start, end}
	return f.bills, nil
}

func (f *fakeFetcher) ListCustomerTypes(context.Context) ([]erp.CustomerType, error) {
	return f.types, f.typesErr
}

func (f *fakeFetcher) BillWindow() (time.Time, time.Time) {
	return time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
}

func (f *fakeFetcher) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customerCalls, f.billCalls
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		customers: []erp.Customer{
			{Source: domain.SourceCustomer{ID: "1", CompanyName: "ACME", Neighborhood: "Centro"}, Raw: []byte(`{"id":"1"}`)},
		},
		contracts: []erp.Contract{
			{Source: domain.SourceContract{ID: "10", CustomerID: "1", ConnectionStatus: "A", TrustUnlock: "N"}, Raw: []byte(`{"id":"10"}`)},
		},
		bills: []erp.Bill{
			{Source: domain.SourceBill{ID: "100", CustomerID: "1", DueDate: "2024-03-10", Amount: "50.00", Status: "A"}, Raw: []byte(`{"id":"100"}`)},
			{Source: domain.SourceBill{ID: "101", CustomerID: "1", DueDate: "2024-03-12", Amount: "20.00", Status: "R"}, Raw: []byte(`{"id":"101"}`)},
		},
		types: []erp.CustomerType{{ID: "2", Description: "Business", Raw: []byte(`{"id":"2"}`)}},
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(migration.Models()...))
	return db
}

type fixture struct {
	svc     *Service
	repo    snapshotdomain.Repository
	fetcher *fakeFetcher
	locker  *ratelimit.Locker
	clock   *clock.FakeClock
}

func newFixture(t *testing.T, now time.Time) fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := fixture{
		repo:    repository.Provide(setupTestDB(t)),
		fetcher: newFetcher(),
		locker:  ratelimit.NewLocker(nil),
		clock:   clock.NewFakeClock(now),
	}
	f.svc = NewService(Params{
		Cfg:     DefaultConfig(),
		Log:     zaptest.NewLogger(t),
		Fetcher: f.fetcher,
		Repo:    f.repo,
		Locker:  f.locker,
		GenID:   node,
		Clock:   f.clock,
	})
	return f
}

var testNow = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

func TestSyncContractsAndBillsStoresSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testNow)

	run, err := f.svc.SyncContractsAndBills(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, snapshotdomain.SyncStatusSucceeded, run.Status)
	assert.Equal(t, 1, run.Contracts)
	assert.Equal(t, 2, run.Bills)
	assert.Equal(t, 1, run.CustomerTypes)
	assert.Len(t, run.CorrelationID, 26)
	require.NotNil(t, run.FinishedAt)

	assert.Equal(t, time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC), f.fetcher.window[0])
	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), f.fetcher.window[1])

	snap, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Bills, 2)
	assert.Len(t, snap.Contracts, 1)
	assert.Equal(t, "Business", snap.CustomerTypes["2"])

	runs, err := f.repo.ListSyncRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, snapshotdomain.SyncKindContractsAndBills, runs[0].Kind)
	assert.Equal(t, snapshotdomain.SyncStatusSucceeded, runs[0].Status)
	assert.Equal(t, TriggerManual, runs[0].Trigger)
}

func TestCustomerTypeFailureKeepsStoredTypes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testNow)

	_, err := f.svc.SyncContractsAndBills(ctx, TriggerManual)
	require.NoError(t, err)

	f.fetcher.typesErr = errors.New("boom")
	f.fetcher.bills = f.fetcher.bills[:1]
	run, err := f.svc.SyncContractsAndBills(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, run.CustomerTypes)

	snap, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Bills, 1)
	assert.Equal(t, "Business", snap.CustomerTypes["2"])
}

func TestFailedFetchLeavesTablesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testNow)

	_, err := f.svc.SyncContractsAndBills(ctx, TriggerManual)
	require.NoError(t, err)

	f.fetcher.contractsErr = &erp.Error{Endpoint: erp.EndpointContracts, Page: 1, StatusCode: 502}
	f.fetcher.bills = nil
	run, err := f.svc.SyncContractsAndBills(ctx, TriggerSchedule)
	require.Error(t, err)
	assert.ErrorIs(t, err, erp.ErrUpstream)
	require.NotNil(t, run)
	assert.Equal(t, snapshotdomain.SyncStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)

	counts, err := f.repo.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts.Bills)
	assert.EqualValues(t, 1, counts.Contracts)

	runs, err := f.repo.ListSyncRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := []snapshotdomain.SyncStatus{runs[0].Status, runs[1].Status}
	assert.ElementsMatch(t, []snapshotdomain.SyncStatus{snapshotdomain.SyncStatusSucceeded, snapshotdomain.SyncStatusFailed}, statuses)
}

func TestSyncSkippedWhileLockHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testNow)

	token, ok, err := f.locker.TryLock(ctx, "delinquency:sync:customers", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.SyncCustomers(ctx, TriggerManual)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	require.NoError(t, f.locker.Release(ctx, "delinquency:sync:customers", token))
	run, err := f.svc.SyncCustomers(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Customers)
}

func TestTriggerRunsInBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, testNow)

	_, err := f.svc.Trigger(ctx, "payments")
	assert.ErrorIs(t, err, ErrInvalidServices)

	services, err := f.svc.Trigger(ctx, "clientes")
	require.NoError(t, err)
	assert.Equal(t, []string{"customers"}, services.Names())
	// request contexts end before the background run does
	cancel()
	f.svc.Wait()

	counts, err := f.repo.Counts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Customers)
	assert.Zero(t, counts.Bills)
}

func TestTriggerAllFillsEverything(t *testing.T) {
	f := newFixture(t, testNow)

	require.NoError(t, f.svc.TriggerAll(context.Background()))
	f.svc.Wait()

	counts, err := f.repo.Counts(context.Background())
	require.NoError(t, err)
	assert.False(t, counts.AnyEmpty())
}

func TestTriggerConflictsWhileLockHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testNow)

	token, ok, err := f.locker.TryLock(ctx, lockKey(snapshotdomain.SyncKindContractsAndBills), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Trigger(ctx, "all")
	assert.ErrorIs(t, err, ErrSyncInProgress)
	f.svc.Wait()

	// the customers lock taken first is handed back
	customersToken, ok, err := f.locker.TryLock(ctx, lockKey(snapshotdomain.SyncKindCustomers), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, f.locker.Release(ctx, lockKey(snapshotdomain.SyncKindCustomers), customersToken))

	customerCalls, billCalls := f.fetcher.calls()
	assert.Zero(t, customerCalls)
	assert.Zero(t, billCalls)

	// an empty snapshot request is satisfied by the running sync
	assert.NoError(t, f.svc.TriggerAll(ctx))
	f.svc.Wait()

	require.NoError(t, f.locker.Release(ctx, lockKey(snapshotdomain.SyncKindContractsAndBills), token))
	_, err = f.svc.Trigger(ctx, "bills")
	require.NoError(t, err)
	f.svc.Wait()
}

func TestTriggerHoldsLockUntilRunFinishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testNow)
	gate := make(chan struct{})
	f.fetcher.customersGate = gate

	_, err := f.svc.Trigger(ctx, "customers")
	require.NoError(t, err)

	_, err = f.svc.Trigger(ctx, "customers")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(gate)
	f.svc.Wait()

	_, err = f.svc.Trigger(ctx, "customers")
	require.NoError(t, err)
	f.svc.Wait()

	customerCalls, _ := f.fetcher.calls()
	assert.Equal(t, 2, customerCalls)
}
