package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sumandas0/notionmbse/internal/schema"
)

const cacheName = "page_types"

// Recorder observes cache traffic.
type Recorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	SetCacheEntries(n int)
}

// Manager caches synthesized page types so each model is mapped once per
// TTL window.
type Manager struct {
	pageTypes sync.Map // key -> *cacheEntry

	ttl     time.Duration
	metrics Recorder

	hits   uint64
	misses uint64
	mu     sync.RWMutex
}

type Option func(*Manager)

func WithMetrics(metrics Recorder) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a cache whose entries live for ttl.
func NewManager(ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	m := &Manager{ttl: ttl}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type cacheEntry struct {
	value      *schema.PageType
	expiration time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// GetPageType returns the cached page type for key or builds and caches it.
// Build errors are returned and nothing is cached.
func (m *Manager) GetPageType(key string, build func() (*schema.PageType, error)) (*schema.PageType, error) {
	if cached, ok := m.pageTypes.Load(key); ok {
		entry := cached.(*cacheEntry)
		if !entry.isExpired() {
			m.recordHit()
			return entry.value, nil
		}
		m.pageTypes.Delete(key)
	}

	m.recordMiss()

	pt, err := build()
	if err != nil {
		return nil, err
	}

	m.SetPageType(key, pt)
	return pt, nil
}

func (m *Manager) SetPageType(key string, pt *schema.PageType) {
	entry := &cacheEntry{
		value:      pt,
		expiration: time.Now().Add(m.ttl),
	}
	m.pageTypes.Store(key, entry)
	m.reportSize()
}

// HasPageType reports whether a live entry exists for key.
func (m *Manager) HasPageType(key string) bool {
	if cached, ok := m.pageTypes.Load(key); ok {
		return !cached.(*cacheEntry).isExpired()
	}
	return false
}

func (m *Manager) InvalidatePageType(key string) {
	m.pageTypes.Delete(key)
	m.reportSize()
}

// Clear removes every entry and resets the statistics.
func (m *Manager) Clear() {
	m.pageTypes.Range(func(key, _ any) bool {
		m.pageTypes.Delete(key)
		return true
	})

	m.mu.Lock()
	m.hits = 0
	m.misses = 0
	m.mu.Unlock()
	m.reportSize()
}

// CleanupExpired removes all expired entries from the cache
func (m *Manager) CleanupExpired() {
	now := time.Now()

	m.pageTypes.Range(func(key, value any) bool {
		if now.After(value.(*cacheEntry).expiration) {
			m.pageTypes.Delete(key)
		}
		return true
	})
	m.reportSize()
}

// StartCleanupRoutine starts a background routine to clean expired entries
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CleanupExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) Stats() CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.hits + m.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return CacheStats{
		Hits:          m.hits,
		Misses:        m.misses,
		HitRate:       hitRate,
		PageTypeCount: m.count(),
	}
}

type CacheStats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	PageTypeCount int     `json:"page_type_count"`
}

func (m *Manager) count() int {
	n := 0
	m.pageTypes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (m *Manager) reportSize() {
	if m.metrics != nil {
		m.metrics.SetCacheEntries(m.count())
	}
}

func (m *Manager) recordHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.RecordCacheHit(cacheName)
	}
}

func (m *Manager) recordMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.RecordCacheMiss(cacheName)
	}
}
