package telemetry

import (
	"context"
	"fmt"

	"user-service/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type exporterPair struct {
	trace  trace.SpanExporter
	metric metric.Exporter
}

var newExporters = func(ctx context.Context, cfg config.TelemetryConfig) (exporterPair, error) {
	switch cfg.OTLPProtocol {
	case "http/protobuf", "http":
		return newHTTPExporters(ctx, cfg)
	default:
		return newGRPCExporters(ctx, cfg)
	}
}

func newHTTPExporters(ctx context.Context, cfg config.TelemetryConfig) (exporterPair, error) {
	traceEndpoint, metricEndpoint := endpoints(cfg)

	traceOptions := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(traceEndpoint),
		otlptracehttp.WithHeaders(cfg.OTLPHeaders),
		otlptracehttp.WithTimeout(cfg.ExportTimeout),
	}
	metricOptions := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(metricEndpoint),
		otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
		otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.OTLPInsecure {
		traceOptions = append(traceOptions, otlptracehttp.WithInsecure())
		metricOptions = append(metricOptions, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOptions...)
	if err != nil {
		return exporterPair{}, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOptions...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return exporterPair{}, fmt.Errorf("create metric exporter: %w", err)
	}
	return exporterPair{trace: traceExporter, metric: metricExporter}, nil
}

func newGRPCExporters(ctx context.Context, cfg config.TelemetryConfig) (exporterPair, error) {
	traceEndpoint, metricEndpoint := endpoints(cfg)

	traceOptions := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(traceEndpoint),
		otlptracegrpc.WithHeaders(cfg.OTLPHeaders),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	metricOptions := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(metricEndpoint),
		otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders),
		otlpmetricgrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.OTLPInsecure {
		traceOptions = append(traceOptions, otlptracegrpc.WithInsecure())
		metricOptions = append(metricOptions, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOptions...)
	if err != nil {
		return exporterPair{}, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOptions...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return exporterPair{}, fmt.Errorf("create metric exporter: %w", err)
	}
	return exporterPair{trace: traceExporter, metric: metricExporter}, nil
}
