package erpsync

import (
	"context"
	"errors"
	"time"

	obsmetrics "github.com/smallbiznis/delinquency/internal/observability/metrics"
	"go.uber.org/zap"
)

// Bootstrap runs a full sync when any snapshot table is still empty, so the
// first report after a fresh deploy has data.
func (s *Service) Bootstrap(ctx context.Context) error {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return err
	}
	if !counts.AnyEmpty() {
		return nil
	}
	s.log.Info("snapshot tables empty, running initial sync",
		zap.Int64("customers", counts.Customers),
		zap.Int64("contracts", counts.Contracts),
		zap.Int64("bills", counts.Bills),
	)
	err = s.SyncServices(ctx, AllServices(), TriggerBootstrap)
	if err == nil {
		s.markCustomersSynced(s.clock.Now())
	}
	return err
}

// RunOnce refreshes contracts and bills on every call and customers once a
// day, on the first call at or after the configured hour.
func (s *Service) RunOnce(ctx context.Context) error {
	var err error
	now := s.clock.Now()
	if s.customersDue(now) {
		jobErr := s.runJob(ctx, obsmetrics.SyncJobCustomers, func(ctx context.Context) error {
			_, err := s.SyncCustomers(ctx, TriggerSchedule)
			return err
		})
		if jobErr == nil {
			s.markCustomersSynced(now)
		}
		err = errors.Join(err, jobErr)
	}
	err = errors.Join(err, s.runJob(ctx, obsmetrics.SyncJobContractsAndBills, func(ctx context.Context) error {
		_, err := s.SyncContractsAndBills(ctx, TriggerSchedule)
		return err
	}))
	return err
}

func (s *Service) RunForever(ctx context.Context) {
	if err := s.Bootstrap(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("initial sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sync run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.Interval)
	}
}

func (s *Service) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSyncInProgress) {
		s.log.Debug("sync skipped, lock held elsewhere", zap.String("job", name))
		return nil
	}
	// deadline is a soft timeout, the next tick retries
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("sync job timed out", zap.String("job", name), zap.Duration("timeout", s.cfg.RunTimeout))
		return nil
	}
	return err
}

func (s *Service) customersDue(now time.Time) bool {
	local := now.In(s.cfg.Location)
	if local.Hour() < s.cfg.CustomerSyncHour {
		return false
	}
	today := local.Format(time.DateOnly)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCustomerSync != today
}

func (s *Service) markCustomersSynced(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCustomerSync = at.In(s.cfg.Location).Format(time.DateOnly)
}
