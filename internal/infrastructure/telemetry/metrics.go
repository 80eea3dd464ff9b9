// This file provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider creates and configures a new MeterProvider.
// If metrics are disabled, it returns a provider that wraps the no-op global meter.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	exportInterval := cfg.ExportInterval
	if exportInterval == 0 {
		exportInterval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(exportInterval),
			),
		),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", exportInterval),
		zap.String("service_name", cfg.ServiceName),
	)

	return mp, nil
}

// Shutdown flushes pending metrics and releases resources
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// EngineMetrics holds the counters the engine records on its hot paths.
type EngineMetrics struct {
	OrdersCreated  metric.Int64Counter
	StepsCompleted metric.Int64Counter
	TasksClaimed   metric.Int64Counter
	SalesRecorded  metric.Int64Counter
	LowStockRaised metric.Int64Counter
}

// NewEngineMetrics registers the engine's instruments on the given meter
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	ordersCreated, err := meter.Int64Counter("opsflow.orders.created",
		metric.WithDescription("Orders created"))
	if err != nil {
		return nil, err
	}
	stepsCompleted, err := meter.Int64Counter("opsflow.steps.completed",
		metric.WithDescription("Workflow steps completed"))
	if err != nil {
		return nil, err
	}
	tasksClaimed, err := meter.Int64Counter("opsflow.tasks.claimed",
		metric.WithDescription("Automation tasks claimed"))
	if err != nil {
		return nil, err
	}
	salesRecorded, err := meter.Int64Counter("opsflow.sales.recorded",
		metric.WithDescription("Sales recorded"))
	if err != nil {
		return nil, err
	}
	lowStockRaised, err := meter.Int64Counter("opsflow.inventory.low_stock_raised",
		metric.WithDescription("Low-stock restock tasks raised"))
	if err != nil {
		return nil, err
	}
	return &EngineMetrics{
		OrdersCreated:  ordersCreated,
		StepsCompleted: stepsCompleted,
		TasksClaimed:   tasksClaimed,
		SalesRecorded:  salesRecorded,
		LowStockRaised: lowStockRaised,
	}, nil
}

// RecordOrderCreated increments the order counter with the order type attribute
func (m *EngineMetrics) RecordOrderCreated(ctx context.Context, orderType string) {
	if m == nil {
		return
	}
	m.OrdersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String(SpanAttrOrderType, orderType)))
}

// RecordStepCompleted increments the step counter with the step key attribute
func (m *EngineMetrics) RecordStepCompleted(ctx context.Context, stepKey string) {
	if m == nil {
		return
	}
	m.StepsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String(SpanAttrStepKey, stepKey)))
}
