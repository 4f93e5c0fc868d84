package engine

import (
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

// Engine bundles the classifier, aggregator and calculator built from one
// Config.
type Engine struct {
	cfg        Config
	classifier *Classifier
	aggregator *Aggregator
	calculator *Calculator
}

func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		classifier: NewClassifier(cfg),
		aggregator: NewAggregator(cfg),
		calculator: NewCalculator(cfg),
	}, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Classifier() *Classifier { return e.classifier }

func (e *Engine) Aggregator() *Aggregator { return e.aggregator }

func (e *Engine) Calculator() *Calculator { return e.calculator }

// Reference returns the midnight reference date for a pass started at now.
func (e *Engine) Reference(now time.Time) time.Time { return e.cfg.Reference(now) }

// Result holds everything derived from one snapshot pass.
type Result struct {
	Reference time.Time
	Records   []domain.ClassifiedRecord
	ByDate    []domain.DailyBucket
	Totals    domain.TotalsRow
	Metrics   domain.MetricsBundle
	Warnings  []domain.Warning
}

// Run classifies records and derives every table and metric in one pass.
func (e *Engine) Run(records []domain.BillingRecord, reference time.Time) Result {
	classified := e.classifier.Classify(records, reference)
	byDate, warnings := e.aggregator.ByDate(classified)
	return Result{
		Reference: Midnight(reference, reference.Location()),
		Records:   classified,
		ByDate:    byDate,
		Totals:    e.aggregator.Totals(classified),
		Metrics:   e.calculator.Compute(classified, reference),
		Warnings:  warnings,
	}
}
