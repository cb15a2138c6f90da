package services

import (
	"context"
	"log/slog"
	"time"

	"rosterlink/internal/cache"
	"rosterlink/internal/infrastructure"
	"rosterlink/pkg/contracts"
)

// CacheStatsProvider exposes cache usage for health reporting.
type CacheStatsProvider interface {
	GetStats() cache.Stats
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	canvas    bool
	sheets    bool
	cache     CacheStatsProvider
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthOptions describes what the running instance has configured.
type HealthOptions struct {
	Version          string
	CanvasConfigured bool
	SheetsConfigured bool
	Cache            CacheStatsProvider
}

// NewHealthService creates a new health service
func NewHealthService(opts HealthOptions, logger *slog.Logger) *HealthService {
	logger = infrastructure.WithComponent(logger, "health_service")
	logger.Info("health service initialized",
		slog.String("version", opts.Version),
		slog.Bool("canvas", opts.CanvasConfigured),
		slog.Bool("sheets", opts.SheetsConfigured))

	return &HealthService{
		version:   opts.Version,
		canvas:    opts.CanvasConfigured,
		sheets:    opts.SheetsConfigured,
		cache:     opts.Cache,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports each dependency. Optional sources that are not
// configured are reported as disabled and do not make the instance unready.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"canvas": optionalSource(hs.canvas, "Canvas API"),
			"sheets": optionalSource(hs.sheets, "registration sheet"),
			"cache":  hs.checkCacheHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status == "not_ready" {
			status.Status = "not_ready"
			break
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   infrastructure.ReadSystemStats(hs.startTime).FormatStats(),
	}
}

// Version returns build and version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":     hs.version,
		"build_time":  info.BuildTime,
		"git_commit":  info.GitCommit,
		"api_version": info.APIVersion,
		"data_format": info.DataFormat,
		"go_version":  info.GoVersion,
		"os":          info.OS,
		"arch":        info.Architecture,
		"uptime":      time.Since(hs.startTime).Seconds(),
		"start_time":  hs.startTime.Format(time.RFC3339),
	}
}

func optionalSource(configured bool, name string) ServiceHealth {
	if !configured {
		return ServiceHealth{Status: "disabled", Message: name + " is not configured"}
	}
	return ServiceHealth{Status: "ready"}
}

func (hs *HealthService) checkCacheHealth() interface{} {
	if hs.cache == nil {
		return ServiceHealth{Status: "not_ready", Message: "cache not initialized"}
	}
	return hs.cache.GetStats()
}
