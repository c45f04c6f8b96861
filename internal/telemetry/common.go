package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Exporter names accepted by InitMetrics
const (
	ExporterScraper = "scraper"
	ExporterGRPC    = "grpc"
	ExporterNone    = "none"
)

// Telemetry owns the OpenTelemetry meter provider
type Telemetry struct {
	Provider *metric.MeterProvider // nil when metrics are disabled
	meter    api.Meter
}

// InitMetrics builds the meter provider for exporter. "scraper" registers a
// Prometheus exporter on registerer so the instruments appear on the /metrics
// endpoint; "grpc" pushes to OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (localhost:4317
// by default). Any other value disables metrics.
func InitMetrics(ctx context.Context, meterName, exporter string, registerer promclient.Registerer) (*Telemetry, error) {
	t := &Telemetry{}

	switch exporter {
	case ExporterScraper:
		slog.Info("Starting metrics with scraper exporter")
		opts := []otelprom.Option{}
		if registerer != nil {
			opts = append(opts, otelprom.WithRegisterer(registerer))
		}
		reader, err := otelprom.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		t.Provider = metric.NewMeterProvider(metric.WithReader(reader))

	case ExporterGRPC:
		slog.Info("Starting metrics with grpc exporter")
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc exporter: %w", err)
		}
		t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exp)))

	default:
		slog.Info("API metrics disabled", "exporter", exporter)
		t.meter = noop.NewMeterProvider().Meter(meterName)
		return t, nil
	}

	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)
	return t, nil
}

// Meter returns the meter instruments are created on
func (t *Telemetry) Meter() api.Meter {
	return t.meter
}

// Close flushes pending measurements and stops the provider
func (t *Telemetry) Close(ctx context.Context) error {
	if t.Provider == nil {
		return nil
	}
	return errors.Join(t.Provider.ForceFlush(ctx), t.Provider.Shutdown(ctx))
}
