package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exam-service/common/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultEndpoint = "otel-collector.infra.svc.cluster.local:4317"

// Options controls where metrics go. With Enabled false the provider has no
// exporter and instruments record into the void.
type Options struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	Endpoint       string
	Interval       time.Duration
}

func InitMeterProvider(ctx context.Context, opts Options, logger *slog.Logger) (*metric.MeterProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []metric.Option{metric.WithResource(res)}

	if opts.Enabled {
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = defaultEndpoint
		}
		interval := opts.Interval
		if interval <= 0 {
			interval = 10 * time.Second
		}

		logger.Info("initializing OTel metrics", "endpoint", endpoint)

		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}

		providerOpts = append(providerOpts,
			metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(interval))))
	} else {
		logger.Info("OTel export disabled, metrics stay in-process")
	}

	meterProvider := metric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

type Telemetry struct {
	MeterProvider *metric.MeterProvider
	Metrics       *metrics.Metrics
}

func Init(ctx context.Context, opts Options, logger *slog.Logger) (*Telemetry, error) {
	meterProvider, err := InitMeterProvider(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New(ctx, opts.ServiceName, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := m.Health.RegisterServiceInfo(ctx, m.Meter(), opts.ServiceName, opts.ServiceVersion, opts.Environment); err != nil {
		logger.Warn("failed to register service info", "error", err)
	}

	return &Telemetry{
		MeterProvider: meterProvider,
		Metrics:       m,
	}, nil
}

func (t *Telemetry) Shutdown(ctx context.Context, logger *slog.Logger) error {
	if t == nil || t.MeterProvider == nil {
		return nil
	}
	logger.Info("shutting down OTel meter provider")
	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
