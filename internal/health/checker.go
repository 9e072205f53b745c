package health

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sumandas0/notionmbse/internal/cache"
	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/internal/store"
)

// Status is the health state of a component or of the whole system.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth is the result of one component check.
type ComponentHealth struct {
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	LastCheck time.Time         `json:"last_check"`
	Duration  time.Duration     `json:"duration_ms"`
	Details   map[string]string `json:"details,omitempty"`
}

// SystemHealth is unhealthy when any component is, degraded when any
// component is degraded and healthy otherwise.
type SystemHealth struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    HealthSummary              `json:"summary"`
}

// HealthSummary counts components per status.
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
}

// HealthChecker runs registered component checks and keeps the last results.
type HealthChecker struct {
	components map[string]HealthCheckFunc
	results    map[string]ComponentHealth
	mutex      sync.RWMutex
	timeout    time.Duration
}

// HealthCheckFunc checks a single component.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// NewHealthChecker creates a new health checker. Each component check is
// bounded by timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HealthChecker{
		components: make(map[string]HealthCheckFunc),
		results:    make(map[string]ComponentHealth),
		timeout:    timeout,
	}
}

// RegisterComponent adds a named check. Registering a name twice replaces it.
func (hc *HealthChecker) RegisterComponent(name string, checkFunc HealthCheckFunc) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()
	hc.components[name] = checkFunc
}

// Check runs every registered check concurrently. A check that outlives
// the timeout is reported unhealthy.
func (hc *HealthChecker) Check(ctx context.Context) SystemHealth {
	hc.mutex.RLock()
	components := make(map[string]HealthCheckFunc, len(hc.components))
	for name, checkFunc := range hc.components {
		components[name] = checkFunc
	}
	hc.mutex.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	resultChan := make(chan ComponentHealth, len(components))
	var wg sync.WaitGroup

	for name, checkFunc := range components {
		wg.Add(1)
		go func(n string, cf HealthCheckFunc) {
			defer wg.Done()

			done := make(chan ComponentHealth, 1)
			go func() {
				result := cf(checkCtx)
				result.Name = n
				done <- result
			}()

			select {
			case result := <-done:
				resultChan <- result
			case <-checkCtx.Done():
				resultChan <- ComponentHealth{
					Name:      n,
					Status:    StatusUnhealthy,
					Message:   "Health check timeout",
					LastCheck: time.Now(),
					Duration:  hc.timeout,
				}
			}
		}(name, checkFunc)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make(map[string]ComponentHealth)
	for result := range resultChan {
		results[result.Name] = result
	}

	hc.mutex.Lock()
	hc.results = results
	hc.mutex.Unlock()

	return hc.calculateSystemHealth(results)
}

// GetLastResults returns the results of the most recent Check.
func (hc *HealthChecker) GetLastResults() SystemHealth {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()
	return hc.calculateSystemHealth(hc.results)
}

func (hc *HealthChecker) calculateSystemHealth(results map[string]ComponentHealth) SystemHealth {
	summary := HealthSummary{
		Total: len(results),
	}

	for _, result := range results {
		switch result.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusUnhealthy:
			summary.Unhealthy++
		case StatusDegraded:
			summary.Degraded++
		}
	}

	var overallStatus Status
	if summary.Unhealthy > 0 {
		overallStatus = StatusUnhealthy
	} else if summary.Degraded > 0 {
		overallStatus = StatusDegraded
	} else {
		overallStatus = StatusHealthy
	}

	return SystemHealth{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Components: results,
		Summary:    summary,
	}
}

// StartPeriodicChecks runs Check every interval until ctx is done.
func (hc *HealthChecker) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				hc.Check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CollectionHealthCheck pings the document collection.
func CollectionHealthCheck(coll store.Collection) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		health := ComponentHealth{
			LastCheck: start,
			Details:   map[string]string{"collection": coll.Name()},
		}

		if err := coll.Ping(ctx); err != nil {
			health.Status = StatusUnhealthy
			health.Message = fmt.Sprintf("Collection ping failed: %v", err)
		} else {
			health.Status = StatusHealthy
			health.Message = "Collection reachable"
		}

		health.Duration = time.Since(start)
		health.Details["response_time"] = health.Duration.String()
		return health
	}
}

// WorkspaceHealthCheck retrieves the configured database. The workspace is
// an optional backend, so failures degrade rather than fail the system.
func WorkspaceHealthCheck(api notion.API, databaseID string) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		health := ComponentHealth{
			LastCheck: start,
			Details:   map[string]string{"database_id": databaseID},
		}

		db, err := api.RetrieveDatabase(ctx, databaseID)
		if err != nil {
			health.Status = StatusDegraded
			health.Message = fmt.Sprintf("Workspace database unavailable: %v", err)
		} else {
			health.Status = StatusHealthy
			health.Message = "Workspace database reachable"
			health.Details["columns"] = strconv.Itoa(len(db.Properties))
		}

		health.Duration = time.Since(start)
		health.Details["response_time"] = health.Duration.String()
		return health
	}
}

// CacheHealthCheck reports page type cache statistics. It is always
// healthy.
func CacheHealthCheck(m *cache.Manager) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		stats := m.Stats()
		return ComponentHealth{
			Status:    StatusHealthy,
			Message:   "Page type cache active",
			LastCheck: start,
			Duration:  time.Since(start),
			Details: map[string]string{
				"page_types": strconv.Itoa(stats.PageTypeCount),
				"hits":       strconv.FormatUint(stats.Hits, 10),
				"misses":     strconv.FormatUint(stats.Misses, 10),
				"hit_rate":   strconv.FormatFloat(stats.HitRate, 'f', 2, 64),
			},
		}
	}
}
