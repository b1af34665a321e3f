package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HealthMetrics tracks the availability of the service's external dependencies.
type HealthMetrics struct {
	dependencyUp           metric.Int64ObservableGauge
	dependencyResponseTime metric.Float64Histogram
	serviceInfo            metric.Int64ObservableGauge

	mu           sync.RWMutex
	dependencies map[string]bool
}

func NewHealthMetrics(meter metric.Meter) (*HealthMetrics, error) {
	hm := &HealthMetrics{
		dependencies: make(map[string]bool),
	}

	var err error

	hm.dependencyUp, err = meter.Int64ObservableGauge(
		"dependency.up",
		metric.WithDescription("Dependency availability status (1=up, 0=down)"),
		metric.WithUnit("{status}"),
	)
	if err != nil {
		return nil, err
	}

	hm.dependencyResponseTime, err = secondsHistogram(meter, "dependency.response_time",
		"Dependency health check response time", latencyBuckets)
	if err != nil {
		return nil, err
	}

	hm.serviceInfo, err = meter.Int64ObservableGauge(
		"service.info",
		metric.WithDescription("Service metadata information"),
		metric.WithUnit("{info}"),
	)
	if err != nil {
		return nil, err
	}

	return hm, nil
}

// RegisterServiceInfo exposes a constant gauge labelled with build metadata.
func (hm *HealthMetrics) RegisterServiceInfo(ctx context.Context, meter metric.Meter, serviceName, version, env string) error {
	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			attrs := []attribute.KeyValue{
				attribute.String("service_name", serviceName),
				attribute.String("version", version),
				attribute.String("environment", env),
			}
			observer.ObserveInt64(hm.serviceInfo, 1, metric.WithAttributes(attrs...))
			return nil
		},
		hm.serviceInfo,
	)
	return err
}

func (hm *HealthMetrics) RegisterDependencies(ctx context.Context, meter metric.Meter, dependencies []string) error {
	hm.mu.Lock()
	for _, dep := range dependencies {
		hm.dependencies[dep] = false
	}
	hm.mu.Unlock()

	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			hm.mu.RLock()
			defer hm.mu.RUnlock()

			for name, available := range hm.dependencies {
				value := int64(0)
				if available {
					value = 1
				}
				observer.ObserveInt64(hm.dependencyUp, value,
					metric.WithAttributes(attribute.String("dependency", name)))
			}
			return nil
		},
		hm.dependencyUp,
	)

	return err
}

// Available reports the last known status of a registered dependency.
func (hm *HealthMetrics) Available(name string) bool {
	if hm == nil {
		return false
	}
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return hm.dependencies[name]
}

func (hm *HealthMetrics) RecordDependencyCheck(ctx context.Context, dependency string, duration time.Duration, err error) {
	if hm == nil {
		return
	}

	if hm.dependencyResponseTime != nil {
		hm.dependencyResponseTime.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("dependency", dependency)))
	}

	hm.mu.Lock()
	hm.dependencies[dependency] = err == nil
	hm.mu.Unlock()
}
