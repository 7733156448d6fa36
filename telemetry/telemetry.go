package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-service/config"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const shutdownTimeout = 5 * time.Second

// ShutdownFunc flushes and stops the providers installed by Init.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs global trace and meter providers exporting over OTLP. With
// no endpoint configured only the propagator is installed.
func Init(ctx context.Context, cfg config.Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !enabled(cfg.Telemetry) {
		logrus.Info("OpenTelemetry disabled: OTEL_EXPORTER_OTLP_ENDPOINT is empty")
		return noopShutdown, nil
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.Telemetry.ServiceName),
			semconv.ServiceVersion(cfg.Telemetry.ServiceVersion),
			attribute.String("deployment.environment", cfg.AppEnv),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporters, err := newExporters(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(exporters.trace),
		trace.WithResource(res),
	)
	metricProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(
			exporters.metric,
			metric.WithInterval(cfg.Telemetry.MetricExportInterval),
		)),
	)

	otel.SetTracerProvider(traceProvider)
	otel.SetMeterProvider(metricProvider)
	logrus.WithFields(logrus.Fields{
		"protocol": cfg.Telemetry.OTLPProtocol,
		"service":  cfg.Telemetry.ServiceName,
	}).Info("OpenTelemetry enabled")

	return func(shutdownCtx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, shutdownTimeout)
		defer cancel()

		return errors.Join(
			traceProvider.Shutdown(shutdownCtx),
			metricProvider.Shutdown(shutdownCtx),
		)
	}, nil
}

func enabled(cfg config.TelemetryConfig) bool {
	return cfg.OTLPEndpoint != "" || cfg.OTLPTracesEndpoint != "" || cfg.OTLPMetricsEndpoint != ""
}

// endpoints resolves the per-signal endpoints, falling back to the shared one.
func endpoints(cfg config.TelemetryConfig) (traceEndpoint, metricEndpoint string) {
	traceEndpoint = cfg.OTLPEndpoint
	if cfg.OTLPTracesEndpoint != "" {
		traceEndpoint = cfg.OTLPTracesEndpoint
	}
	metricEndpoint = cfg.OTLPEndpoint
	if cfg.OTLPMetricsEndpoint != "" {
		metricEndpoint = cfg.OTLPMetricsEndpoint
	}
	return traceEndpoint, metricEndpoint
}
