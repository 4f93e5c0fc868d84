package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	reportsBuilt    metric.Int64Counter
	recordsByStage  metric.Int64Counter
	warnings        metric.Int64Counter
	erpPagesFetched metric.Int64Counter
	erpRowsFetched  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "delinquency"
	}
	meter := provider.Meter(name)

	reportsBuilt, err := meter.Int64Counter("delinquency_reports_built_total")
	if err != nil {
		return nil, err
	}
	recordsByStage, err := meter.Int64Counter("delinquency_records_classified_total")
	if err != nil {
		return nil, err
	}
	warnings, err := meter.Int64Counter("delinquency_data_quality_warnings_total")
	if err != nil {
		return nil, err
	}
	erpPagesFetched, err := meter.Int64Counter("delinquency_erp_pages_fetched_total")
	if err != nil {
		return nil, err
	}
	erpRowsFetched, err := meter.Int64Counter("delinquency_erp_rows_fetched_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reportsBuilt:    reportsBuilt,
		recordsByStage:  recordsByStage,
		warnings:        warnings,
		erpPagesFetched: erpPagesFetched,
		erpRowsFetched:  erpRowsFetched,
	}, nil
}

// RecordReport increments report build counts.
func (m *Metrics) RecordReport(ctx context.Context, view string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("view", strings.TrimSpace(view)))
	m.reportsBuilt.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordClassified adds classified record counts for one category.
func (m *Metrics) RecordClassified(ctx context.Context, category string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("category", strings.TrimSpace(category)))
	m.recordsByStage.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordWarnings adds data-quality warning counts for one kind.
func (m *Metrics) RecordWarnings(ctx context.Context, kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.warnings.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordERPPage increments fetched page and row counts for an ERP endpoint.
func (m *Metrics) RecordERPPage(ctx context.Context, endpoint string, rows int) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.erpPagesFetched.Add(ctx, 1, metric.WithAttributes(attrs...))
	if rows > 0 {
		m.erpRowsFetched.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"view":        {},
	"category":    {},
	"kind":        {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
