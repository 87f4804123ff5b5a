package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Checker reports whether one dependency is ready
type Checker func(ctx context.Context) error

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	startTime time.Time
	clock     func() time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	checks map[string]Checker
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status  string                   `json:"status"`
	Version string                   `json:"version"`
	Runtime map[string]any           `json:"runtime,omitempty"`
	Checks  map[string]ServiceHealth `json:"checks,omitempty"`
}

// ServiceHealth represents individual dependency health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildTime string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		startTime: time.Now(),
		clock:     time.Now,
		logger:    logger.With(slog.String("service", "health")),
		checks:    make(map[string]Checker),
	}
}

// Register adds a readiness check under name, replacing any previous one
func (hs *HealthService) Register(name string, check Checker) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checks[name] = check
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{Status: "ok", Version: hs.version}
}

// ReadinessCheck runs every registered check. The returned status is
// complete either way; the error wraps ErrNotReady when any check failed.
func (hs *HealthService) ReadinessCheck(ctx context.Context) (HealthStatus, error) {
	hs.mu.RLock()
	checks := make(map[string]Checker, len(hs.checks))
	names := make([]string, 0, len(hs.checks))
	for name, check := range hs.checks {
		checks[name] = check
		names = append(names, name)
	}
	hs.mu.RUnlock()
	sort.Strings(names)

	status := HealthStatus{
		Status:  "ready",
		Version: hs.version,
		Checks:  make(map[string]ServiceHealth, len(names)),
	}

	var failed []string
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("check", name),
				slog.String("error", err.Error()))
			status.Checks[name] = ServiceHealth{Status: "not_ready", Message: err.Error()}
			failed = append(failed, name)
			continue
		}
		status.Checks[name] = ServiceHealth{Status: "ready"}
	}

	if len(failed) > 0 {
		status.Status = "not_ready"
		return status, fmt.Errorf("checks %v failed: %w", failed, ErrNotReady)
	}
	return status, nil
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:  "alive",
		Version: hs.version,
		Runtime: map[string]any{
			"uptime_seconds": hs.clock().Sub(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]any {
	result := map[string]any{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"start_time": hs.startTime.UTC().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}
