package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/smallbiznis/delinquency/internal/clock"
	"github.com/smallbiznis/delinquency/internal/config"
	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
	"github.com/smallbiznis/delinquency/internal/delinquency/engine"
	obslogger "github.com/smallbiznis/delinquency/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/delinquency/internal/observability/metrics"
	"github.com/smallbiznis/delinquency/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg         config.Config
	Rules       *config.DelinquencyConfigHolder
	Source      domain.SnapshotSource
	Trigger     domain.SyncTrigger `optional:"true"`
	Log         *zap.Logger
	Clock       clock.Clock
	Metrics     *obsmetrics.Metrics     `optional:"true"`
	SyncMetrics *obsmetrics.SyncMetrics `optional:"true"`
}

type Service struct {
	cfg         config.Config
	rules       *config.DelinquencyConfigHolder
	source      domain.SnapshotSource
	trigger     domain.SyncTrigger
	log         *zap.Logger
	clock       clock.Clock
	metrics     *obsmetrics.Metrics
	syncMetrics *obsmetrics.SyncMetrics
}

func NewService(p Params) domain.Service {
	rules := p.Rules
	if rules == nil {
		rules = config.NewStaticDelinquencyConfigHolder(config.DefaultDelinquencyConfig())
	}
	return &Service{
		cfg:         p.Cfg,
		rules:       rules,
		source:      p.Source,
		trigger:     p.Trigger,
		log:         p.Log.Named("delinquency.service"),
		clock:       p.Clock,
		metrics:     p.Metrics,
		syncMetrics: p.SyncMetrics,
	}
}

// pass is one snapshot read run through cleaning and classification.
type pass struct {
	engine    *engine.Engine
	reference time.Time
	snapshot  domain.Snapshot
	result    engine.Result
	warnings  []domain.Warning
}

func (s *Service) Delinquency(ctx context.Context, req domain.DelinquencyRequest) (domain.DelinquencyResponse, error) {
	view, err := domain.ParseView(string(req.View))
	if err != nil {
		return domain.DelinquencyResponse{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "delinquency.table", attribute.String("view", string(view)))
	defer span.End()
	start := time.Now()
	defer func() { s.syncMetrics.ObserveReportBuild(string(view), time.Since(start)) }()

	p, err := s.run(ctx, nil)
	if err != nil {
		return domain.DelinquencyResponse{}, err
	}
	s.metrics.RecordReport(ctx, string(view))

	resp := domain.DelinquencyResponse{
		View:          view,
		ReferenceDate: p.reference,
		ReportDays:    s.reportDays(),
		HasData:       !p.snapshot.Empty(),
		Warnings:      p.warnings,
	}
	switch view {
	case domain.ViewTotal:
		totals := p.result.Totals
		resp.Totals = &totals
	default:
		resp.ByDate = p.engine.Aggregator().Window(p.result.ByDate, p.reference, s.reportDays())
	}
	return resp, nil
}

// Details lists open bills due on req.Date, most overdue customers first.
func (s *Service) Details(ctx context.Context, req domain.DetailsRequest) ([]domain.DetailRow, error) {
	if req.Date.IsZero() {
		return nil, domain.ErrInvalidDate
	}
	target := engine.Midnight(req.Date, req.Date.Location())

	ctx, span := tracing.StartSpan(ctx, "delinquency.details", attribute.String("date", target.Format(time.DateOnly)))
	defer span.End()

	p, err := s.run(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReport(ctx, "details")

	rows := make([]domain.DetailRow, 0)
	for _, rec := range p.result.Records {
		if !rec.IsOpen() || !rec.DueDateValid || !rec.DueDate.Equal(target) {
			continue
		}
		rows = append(rows, domain.DetailRow{
			BillID:            rec.ID,
			CustomerID:        rec.CustomerID,
			CustomerName:      rec.CustomerName,
			Phone:             rec.Phone,
			Neighborhood:      rec.Neighborhood,
			CustomerType:      rec.CustomerType,
			ConnectionStatus:  rec.ConnectionLabel,
			TrustUnlockActive: rec.TrustUnlockActive,
			DueDate:           rec.DueDate,
			DaysLate:          rec.DaysLate,
			Amount:            rec.Amount,
			Category:          rec.Category,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CustomerName != rows[j].CustomerName {
			return rows[i].CustomerName < rows[j].CustomerName
		}
		return rows[i].BillID < rows[j].BillID
	})
	return rows, nil
}

// Report builds the full dashboard payload for bills due within the period.
// Without bounds the period is the configured report window ending today.
func (s *Service) Report(ctx context.Context, req domain.ReportRequest) (domain.Report, error) {
	ctx, span := tracing.StartSpan(ctx, "delinquency.report")
	defer span.End()
	start := time.Now()
	defer func() { s.syncMetrics.ObserveReportBuild("report", time.Since(start)) }()

	var period domain.Period
	p, err := s.run(ctx, func(reference time.Time) (func(domain.BillingRecord) bool, error) {
		period = s.period(req, reference)
		if period.Start.After(period.End) {
			return nil, domain.ErrInvalidRange
		}
		// bills without a usable due date stay in totals and metrics
		return func(rec domain.BillingRecord) bool {
			return !rec.DueDateValid ||
				(!rec.DueDate.Before(period.Start) && !rec.DueDate.After(period.End))
		}, nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	s.metrics.RecordReport(ctx, "report")

	return domain.Report{
		ReferenceDate: p.reference,
		Period:        period,
		HasData:       !p.snapshot.Empty(),
		RecordCount:   len(p.result.Records),
		FetchedAt:     p.snapshot.FetchedAt,
		Metrics:       p.result.Metrics,
		ByDate:        p.result.ByDate,
		Totals:        p.result.Totals,
		Warnings:      p.warnings,
	}, nil
}

// filterFactory builds a record filter once the reference date is known.
type filterFactory func(reference time.Time) (func(domain.BillingRecord) bool, error)

// run loads the snapshot and derives every table from it. An empty snapshot
// yields zero-valued results and starts a background sync.
func (s *Service) run(ctx context.Context, filter filterFactory) (pass, error) {
	e, err := engine.New(EngineConfig(s.rules.Get(), s.cfg))
	if err != nil {
		return pass{}, err
	}
	reference := e.Reference(s.clock.Now())

	var keep func(domain.BillingRecord) bool
	if filter != nil {
		if keep, err = filter(reference); err != nil {
			return pass{}, err
		}
	}

	snapshot, err := s.source.Load(ctx)
	if err != nil {
		return pass{}, fmt.Errorf("load snapshot: %w", err)
	}

	var warnings []domain.Warning
	if snapshot.Empty() {
		warnings = append(warnings, domain.Warning{
			Kind:   domain.WarningEmptySnapshot,
			Detail: "no bills synced yet",
		})
		s.requestSync(ctx)
	}

	records, cleanWarnings := engine.Clean(snapshot)
	warnings = append(warnings, cleanWarnings...)
	if keep != nil {
		filtered := records[:0]
		for _, rec := range records {
			if keep(rec) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	result := e.Run(records, reference)
	warnings = append(warnings, result.Warnings...)
	if warnings == nil {
		warnings = []domain.Warning{}
	}

	s.recordClassified(ctx, result.Totals)
	s.reportWarnings(ctx, warnings)

	return pass{
		engine:    e,
		reference: reference,
		snapshot:  snapshot,
		result:    result,
		warnings:  warnings,
	}, nil
}

func (s *Service) period(req domain.ReportRequest, reference time.Time) domain.Period {
	period := domain.Period{
		Start: reference.AddDate(0, 0, -s.reportDays()),
		End:   reference,
	}
	if req.Start != nil {
		period.Start = engine.Midnight(*req.Start, req.Start.Location())
	}
	if req.End != nil {
		period.End = engine.Midnight(*req.End, req.End.Location())
	}
	return period
}

func (s *Service) reportDays() int {
	if s.cfg.ReportDays <= 0 {
		return 45
	}
	return s.cfg.ReportDays
}

func (s *Service) requestSync(ctx context.Context) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger.TriggerAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		obslogger.WithContext(ctx, s.log).Warn("failed to start background sync", zap.Error(err))
	}
}

func (s *Service) recordClassified(ctx context.Context, totals domain.TotalsRow) {
	s.metrics.RecordClassified(ctx, string(domain.CategoryOnTime), totals.Current)
	s.metrics.RecordClassified(ctx, string(domain.CategoryStandardOverdue), totals.StandardOverdue)
	s.metrics.RecordClassified(ctx, string(domain.CategoryTransition), totals.Transition)
	s.metrics.RecordClassified(ctx, string(domain.CategoryChronic), totals.Chronic)
	s.metrics.RecordClassified(ctx, string(domain.CategoryTrustUnlock), totals.TrustUnlock)
}

func (s *Service) reportWarnings(ctx context.Context, warnings []domain.Warning) {
	if len(warnings) == 0 {
		return
	}
	log := obslogger.WithContext(ctx, s.log)
	counts := domain.CountWarnings(warnings)
	fields := make([]zap.Field, 0, len(counts)+1)
	fields = append(fields, zap.Int("total", len(warnings)))
	for kind, n := range counts {
		fields = append(fields, zap.Int(string(kind), n))
		s.metrics.RecordWarnings(ctx, string(kind), n)
	}
	log.Warn("data quality warnings", fields...)

	if log.Core().Enabled(zap.DebugLevel) {
		for _, w := range warnings {
			log.Debug("data quality warning",
				zap.String("kind", string(w.Kind)),
				zap.String("record_id", w.RecordID),
				zap.String("customer_id", w.CustomerID),
				zap.String("detail", w.Detail),
			)
		}
	}
}
