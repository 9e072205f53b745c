package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Path      string `yaml:"path" mapstructure:"path"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

type MetricsManager struct {
	config   MetricsConfig
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	controllerOperations        *prometheus.CounterVec
	controllerOperationDuration *prometheus.HistogramVec

	notionRequests        *prometheus.CounterVec
	notionRequestDuration *prometheus.HistogramVec

	pageTypesMapped *prometheus.CounterVec
	schemaErrors    *prometheus.CounterVec

	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheEntries prometheus.Gauge

	uptimeSeconds prometheus.Gauge
	buildInfo     *prometheus.GaugeVec
}

// NewMetricsManager registers every collector on a private registry. A
// disabled manager is inert and every recorder is a no-op.
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if !config.Enabled {
		return &MetricsManager{config: config}
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	namespace := config.Namespace
	if namespace == "" {
		namespace = "mbse"
	}

	mm := &MetricsManager{
		config:   config,
		registry: registry,
	}

	mm.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	mm.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	mm.controllerOperations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "operations_total",
			Help:      "Total number of controller operations",
		},
		[]string{"operation", "model", "backend", "status"},
	)

	mm.controllerOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "operation_duration_seconds",
			Help:      "Controller operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "model", "backend"},
	)

	mm.notionRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notion",
			Name:      "requests_total",
			Help:      "Total number of workspace API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	mm.notionRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notion",
			Name:      "request_duration_seconds",
			Help:      "Workspace API request duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	mm.pageTypesMapped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "page_types_mapped_total",
			Help:      "Total number of page types produced by the schema mapper",
		},
		[]string{"type"},
	)

	mm.schemaErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "errors_total",
			Help:      "Total number of rejected schemas",
		},
		[]string{"requirement"},
	)

	mm.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache"},
	)

	mm.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache"},
	)

	mm.cacheEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of cached page types",
		},
	)

	mm.uptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Service uptime in seconds",
		},
	)

	mm.buildInfo = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	return mm
}

func (mm *MetricsManager) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	mm.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordControllerOperation(operation, model, backend, status string, duration time.Duration) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.controllerOperations.WithLabelValues(operation, model, backend, status).Inc()
	mm.controllerOperationDuration.WithLabelValues(operation, model, backend).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordNotionRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.notionRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	mm.notionRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordPageTypeMapped(typeName string) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.pageTypesMapped.WithLabelValues(typeName).Inc()
}

func (mm *MetricsManager) RecordSchemaError(requirement string) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.schemaErrors.WithLabelValues(requirement).Inc()
}

func (mm *MetricsManager) RecordCacheHit(cacheType string) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.cacheHits.WithLabelValues(cacheType).Inc()
}

func (mm *MetricsManager) RecordCacheMiss(cacheType string) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.cacheMisses.WithLabelValues(cacheType).Inc()
}

func (mm *MetricsManager) SetCacheEntries(n int) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.cacheEntries.Set(float64(n))
}

func (mm *MetricsManager) SetUptime(startTime time.Time) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.uptimeSeconds.Set(time.Since(startTime).Seconds())
}

func (mm *MetricsManager) SetBuildInfo(version, commit, buildTime string) {
	if mm == nil || !mm.config.Enabled {
		return
	}
	mm.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

func (mm *MetricsManager) Handler() http.Handler {
	if mm == nil || !mm.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}

// MetricsMiddleware records every request under its chi route pattern when
// routeFn resolves one, falling back to the raw path.
func (mm *MetricsManager) MetricsMiddleware(routeFn func(*http.Request) string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mm == nil || !mm.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if routeFn != nil {
				if pattern := routeFn(r); pattern != "" {
					path = pattern
				}
			}
			mm.RecordHTTPRequest(r.Method, path, wrapped.statusCode, time.Since(start))
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (mrw *metricsResponseWriter) WriteHeader(statusCode int) {
	mrw.statusCode = statusCode
	mrw.ResponseWriter.WriteHeader(statusCode)
}

func (mm *MetricsManager) IsEnabled() bool {
	return mm != nil && mm.config.Enabled
}

func (mm *MetricsManager) StartUptimeTracker(ctx context.Context, startTime time.Time) {
	if mm == nil || !mm.config.Enabled {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.SetUptime(startTime)
			}
		}
	}()
}
