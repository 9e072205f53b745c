package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/cache"
	"github.com/sumandas0/notionmbse/internal/health"
	"github.com/sumandas0/notionmbse/internal/notion/notiontest"
	"github.com/sumandas0/notionmbse/internal/store/memory"
)

func TestCheckAggregatesComponents(t *testing.T) {
	ctx := context.Background()

	srv := notiontest.NewServer(t)
	dbID := srv.AddDatabase("Elements", nil)

	hc := health.NewHealthChecker(time.Second)
	hc.RegisterComponent("collection", health.CollectionHealthCheck(memory.NewCollection("elements")))
	hc.RegisterComponent("workspace", health.WorkspaceHealthCheck(srv.Client(t), dbID))
	hc.RegisterComponent("cache", health.CacheHealthCheck(cache.NewManager(time.Minute)))

	result := hc.Check(ctx)
	assert.Equal(t, health.StatusHealthy, result.Status)
	assert.Equal(t, 3, result.Summary.Healthy)
	assert.Equal(t, "1", result.Components["workspace"].Details["columns"])
	assert.Equal(t, "elements", result.Components["collection"].Details["collection"])

	last := hc.GetLastResults()
	assert.Equal(t, 3, last.Summary.Total)
}

func TestClosedCollectionIsUnhealthy(t *testing.T) {
	coll := memory.NewCollection("elements")
	require.NoError(t, coll.Close())

	hc := health.NewHealthChecker(time.Second)
	hc.RegisterComponent("collection", health.CollectionHealthCheck(coll))

	result := hc.Check(context.Background())
	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Equal(t, 1, result.Summary.Unhealthy)
}

func TestMissingWorkspaceDatabaseDegrades(t *testing.T) {
	srv := notiontest.NewServer(t)

	hc := health.NewHealthChecker(time.Second)
	hc.RegisterComponent("workspace", health.WorkspaceHealthCheck(srv.Client(t), "5c6a28216bb14a7eb6e1c50111515c3d"))

	result := hc.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, result.Status)
	assert.Contains(t, result.Components["workspace"].Message, "unavailable")
}

func TestSlowCheckTimesOut(t *testing.T) {
	hc := health.NewHealthChecker(20 * time.Millisecond)
	hc.RegisterComponent("slow", func(ctx context.Context) health.ComponentHealth {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return health.ComponentHealth{Status: health.StatusHealthy}
	})

	result := hc.Check(context.Background())
	assert.Equal(t, health.StatusUnhealthy, result.Status)
	assert.Equal(t, "Health check timeout", result.Components["slow"].Message)
}
