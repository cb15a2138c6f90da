package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemStats is a point-in-time snapshot of the Go runtime.
type SystemStats struct {
	Goroutines     int
	HeapAllocBytes uint64
	SysBytes       uint64
	NumGC          uint32
	LastGCPause    time.Duration
	NumCPU         int
	Uptime         time.Duration
	Timestamp      time.Time
}

// ReadSystemStats samples the runtime. startTime anchors the uptime.
func ReadSystemStats(startTime time.Time) SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var lastPause time.Duration
	if m.NumGC > 0 {
		lastPause = time.Duration(m.PauseNs[(m.NumGC+255)%256])
	}

	now := time.Now()
	return SystemStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: m.HeapAlloc,
		SysBytes:       m.Sys,
		NumGC:          m.NumGC,
		LastGCPause:    lastPause,
		NumCPU:         runtime.NumCPU(),
		Uptime:         now.Sub(startTime),
		Timestamp:      now,
	}
}

// FormatStats renders the snapshot for JSON health payloads.
func (stats SystemStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"go_version":       runtime.Version(),
		"goroutines":       stats.Goroutines,
		"heap_alloc_bytes": stats.HeapAllocBytes,
		"sys_bytes":        stats.SysBytes,
		"gc_count":         stats.NumGC,
		"last_gc_pause_ms": float64(stats.LastGCPause.Microseconds()) / 1000,
		"cpu_count":        stats.NumCPU,
		"uptime":           stats.Uptime.Seconds(),
	}
}

// SystemMetricsOptions configures RegisterSystemMetrics.
type SystemMetricsOptions struct {
	StartTime time.Time
	// CacheEntries, when set, is observed as the cache_entries gauge.
	CacheEntries func() int
}

// SystemMetrics exports runtime gauges through the meter. Values are read
// on each collection, so there is no background goroutine.
type SystemMetrics struct {
	registration metric.Registration
}

// RegisterSystemMetrics registers the runtime instruments and their callback.
func RegisterSystemMetrics(meter metric.Meter, opts SystemMetricsOptions) (*SystemMetrics, error) {
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}

	goroutines, err := meter.Int64ObservableGauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	heapAlloc, err := meter.Int64ObservableGauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Heap memory allocated by the Go runtime"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	sysMemory, err := meter.Int64ObservableGauge(
		"system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64ObservableCounter(
		"system_gc_count_total",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	uptime, err := meter.Float64ObservableGauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheEntries, err := meter.Int64ObservableGauge(
		"cache_entries",
		metric.WithDescription("Entries held by the course data cache"),
	)
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := ReadSystemStats(opts.StartTime)
		o.ObserveInt64(goroutines, int64(stats.Goroutines))
		o.ObserveInt64(heapAlloc, int64(stats.HeapAllocBytes))
		o.ObserveInt64(sysMemory, int64(stats.SysBytes))
		o.ObserveInt64(gcCount, int64(stats.NumGC))
		o.ObserveFloat64(uptime, stats.Uptime.Seconds())
		if opts.CacheEntries != nil {
			o.ObserveInt64(cacheEntries, int64(opts.CacheEntries()))
		}
		return nil
	}, goroutines, heapAlloc, sysMemory, gcCount, uptime, cacheEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to register system metrics callback: %w", err)
	}

	return &SystemMetrics{registration: registration}, nil
}

// Unregister stops the callback. It is safe on a nil receiver.
func (sm *SystemMetrics) Unregister() error {
	if sm == nil || sm.registration == nil {
		return nil
	}
	return sm.registration.Unregister()
}
