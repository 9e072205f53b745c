package integration

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sumandas0/notionmbse/internal/observability"
)

// ObservabilityManager owns the logger, metrics and tracing of one process.
type ObservabilityManager struct {
	tracing   *observability.TracingManager
	logging   *observability.Logger
	metrics   *observability.MetricsManager
	startTime time.Time
	cancel    context.CancelFunc
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

func NewObservabilityManager(
	tracingConfig observability.TracingConfig,
	loggingConfig observability.LoggingConfig,
	metricsConfig observability.MetricsConfig,
	build BuildInfo,
) (*ObservabilityManager, error) {
	tracing, err := observability.NewTracingManager(tracingConfig)
	if err != nil {
		return nil, err
	}

	logging, err := observability.NewLogger(loggingConfig)
	if err != nil {
		return nil, err
	}
	observability.SetGlobalLogger(logging)

	metrics := observability.NewMetricsManager(metricsConfig)

	ctx, cancel := context.WithCancel(context.Background())
	om := &ObservabilityManager{
		tracing:   tracing,
		logging:   logging,
		metrics:   metrics,
		startTime: time.Now(),
		cancel:    cancel,
	}
	if metrics.IsEnabled() {
		metrics.StartUptimeTracker(ctx, om.startTime)
		metrics.SetBuildInfo(build.Version, build.Commit, build.BuildTime)
	}
	return om, nil
}

func (om *ObservabilityManager) GetTracing() *observability.TracingManager {
	return om.tracing
}

func (om *ObservabilityManager) GetLogging() *observability.Logger {
	return om.logging
}

func (om *ObservabilityManager) GetMetrics() *observability.MetricsManager {
	return om.metrics
}

func (om *ObservabilityManager) Logger() zerolog.Logger {
	return om.logging.GetZerologLogger()
}

func (om *ObservabilityManager) Uptime() time.Duration {
	return time.Since(om.startTime)
}

// Shutdown stops the uptime tracker and flushes pending spans.
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	om.cancel()
	return om.tracing.Shutdown(ctx)
}
