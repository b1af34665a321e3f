package metrics

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

type RuntimeMetrics struct {
	goroutines    metric.Int64ObservableGauge
	heapAlloc     metric.Int64ObservableGauge
	heapObjects   metric.Int64ObservableGauge
	gcCount       metric.Int64ObservableCounter
	uptimeSeconds metric.Float64ObservableCounter
	startTime     time.Time
}

func NewRuntimeMetrics(ctx context.Context, meter metric.Meter) (*RuntimeMetrics, error) {
	rm := &RuntimeMetrics{
		startTime: time.Now(),
	}

	var err error

	rm.goroutines, err = meter.Int64ObservableGauge(
		"runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return nil, err
	}

	rm.heapAlloc, err = meter.Int64ObservableGauge(
		"runtime.go.mem.heap_alloc",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	rm.heapObjects, err = meter.Int64ObservableGauge(
		"runtime.go.mem.heap_objects",
		metric.WithDescription("Number of allocated heap objects"),
		metric.WithUnit("{object}"),
	)
	if err != nil {
		return nil, err
	}

	rm.gcCount, err = meter.Int64ObservableCounter(
		"runtime.go.gc.count",
		metric.WithDescription("Number of completed GC cycles"),
		metric.WithUnit("{gc}"),
	)
	if err != nil {
		return nil, err
	}

	rm.uptimeSeconds, err = meter.Float64ObservableCounter(
		"service.uptime",
		metric.WithDescription("Service uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			observer.ObserveInt64(rm.goroutines, int64(runtime.NumGoroutine()))
			observer.ObserveInt64(rm.heapAlloc, int64(m.HeapAlloc))
			observer.ObserveInt64(rm.heapObjects, int64(m.HeapObjects))
			observer.ObserveInt64(rm.gcCount, int64(m.NumGC))
			observer.ObserveFloat64(rm.uptimeSeconds, time.Since(rm.startTime).Seconds())

			return nil
		},
		rm.goroutines,
		rm.heapAlloc,
		rm.heapObjects,
		rm.gcCount,
		rm.uptimeSeconds,
	)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// Uptime is the time since the collectors were created.
func (rm *RuntimeMetrics) Uptime() time.Duration {
	if rm == nil || rm.startTime.IsZero() {
		return 0
	}
	return time.Since(rm.startTime)
}
