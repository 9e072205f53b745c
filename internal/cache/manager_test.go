package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/schema"
)

func buildElement(calls *int) func() (*schema.PageType, error) {
	return func() (*schema.PageType, error) {
		*calls++
		return schema.MapSchema(models.ElementModel.Schema())
	}
}

func TestGetPageTypeCachesBuild(t *testing.T) {
	m := NewManager(time.Minute)
	calls := 0

	first, err := m.GetPageType("Element", buildElement(&calls))
	require.NoError(t, err)
	second, err := m.GetPageType("Element", buildElement(&calls))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.Equal(t, 1, stats.PageTypeCount)
}

func TestBuildErrorsAreNotCached(t *testing.T) {
	m := NewManager(time.Minute)
	boom := errors.New("boom")

	_, err := m.GetPageType("Broken", func() (*schema.PageType, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.HasPageType("Broken"))
}

func TestExpiredEntriesAreRebuilt(t *testing.T) {
	m := NewManager(time.Millisecond)
	calls := 0

	_, err := m.GetPageType("Element", buildElement(&calls))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	assert.False(t, m.HasPageType("Element"))
	_, err = m.GetPageType("Element", buildElement(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInvalidateAndClear(t *testing.T) {
	m := NewManager(time.Minute)
	calls := 0

	_, err := m.GetPageType("Element", buildElement(&calls))
	require.NoError(t, err)
	m.InvalidatePageType("Element")
	assert.False(t, m.HasPageType("Element"))

	_, err = m.GetPageType("Element", buildElement(&calls))
	require.NoError(t, err)
	m.Clear()

	stats := m.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.PageTypeCount)
}

func TestCleanupExpired(t *testing.T) {
	m := NewManager(time.Millisecond)
	pt, err := schema.MapSchema(models.ElementModel.Schema())
	require.NoError(t, err)

	m.SetPageType("a", pt)
	m.SetPageType("b", pt)
	time.Sleep(5 * time.Millisecond)
	m.CleanupExpired()

	assert.Zero(t, m.Stats().PageTypeCount)
}

func TestCleanupRoutineStopsWithContext(t *testing.T) {
	m := NewManager(time.Millisecond)
	pt, err := schema.MapSchema(models.ElementModel.Schema())
	require.NoError(t, err)
	m.SetPageType("a", pt)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartCleanupRoutine(ctx, 2*time.Millisecond)

	assert.Eventually(t, func() bool { return m.Stats().PageTypeCount == 0 }, time.Second, 5*time.Millisecond)
}

type countingRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
	size   int
}

func (r *countingRecorder) RecordCacheHit(string)  { r.mu.Lock(); r.hits++; r.mu.Unlock() }
func (r *countingRecorder) RecordCacheMiss(string) { r.mu.Lock(); r.misses++; r.mu.Unlock() }
func (r *countingRecorder) SetCacheEntries(n int)  { r.mu.Lock(); r.size = n; r.mu.Unlock() }

func TestMetricsAreReported(t *testing.T) {
	rec := &countingRecorder{}
	m := NewManager(time.Minute, WithMetrics(rec))
	calls := 0

	for i := 0; i < 3; i++ {
		_, err := m.GetPageType("Element", buildElement(&calls))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, 1, rec.size)
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager(time.Minute)
	pt, err := schema.MapSchema(models.ElementModel.Schema())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := m.GetPageType("Element", func() (*schema.PageType, error) { return pt, nil })
			assert.NoError(t, err)
			assert.Same(t, pt, got)
		}()
	}
	wg.Wait()
}
