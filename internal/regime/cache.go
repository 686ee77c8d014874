package regime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/domain"
	"github.com/HaloHealthAfrica/optionstratv2-sub002/internal/metrics"
)

// ContextFetcher retrieves the current market context from an external
// provider. Implementations may fail; they must not have side effects.
type ContextFetcher interface {
	FetchContext(ctx context.Context) (*domain.ContextData, error)
}

// ContextCache is a TTL cache over the single current market context value.
// Concurrent callers arriving while a refresh is in flight share one upstream
// fetch, and a failed refresh falls back to a stale value if one exists
// inside the fallback ceiling.
type ContextCache struct {
	fetcher       ContextFetcher
	ttl           time.Duration
	staleFallback time.Duration

	mu     sync.RWMutex
	cached *domain.ContextData

	group   singleflight.Group
	now     func() time.Time // injectable clock for tests
	metrics *metrics.Registry
}

// NewContextCache creates a context cache with the given fresh TTL and
// stale-fallback ceiling
func NewContextCache(fetcher ContextFetcher, ttl, staleFallback time.Duration) *ContextCache {
	return &ContextCache{
		fetcher:       fetcher,
		ttl:           ttl,
		staleFallback: staleFallback,
		now:           time.Now,
	}
}

// SetMetrics attaches a metrics registry for hit/miss counters
func (c *ContextCache) SetMetrics(r *metrics.Registry) {
	c.metrics = r
}

// GetContext returns the current market context. Fresh cached data is
// returned without fetching; otherwise exactly one upstream fetch runs per
// refresh cycle regardless of caller count. On fetch failure a cached value
// younger than the fallback ceiling is served stale; the error propagates
// only when no usable cached value exists.
func (c *ContextCache) GetContext(ctx context.Context) (*domain.ContextData, error) {
	if data := c.freshCached(); data != nil {
		if c.metrics != nil {
			c.metrics.RecordCacheHit("context")
		}
		return data, nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss("context")
	}

	result, err, shared := c.group.Do("context", func() (interface{}, error) {
		// Re-check under the flight: a racing caller may have refreshed
		// between our staleness check and entering the group.
		if data := c.freshCached(); data != nil {
			return data, nil
		}

		data, err := c.fetcher.FetchContext(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = data
		c.mu.Unlock()
		return data, nil
	})

	if err != nil {
		if stale := c.staleCached(); stale != nil {
			log.Warn().
				Err(err).
				Dur("age", stale.Age(c.now())).
				Msg("context fetch failed, serving stale value")
			return stale, nil
		}
		return nil, fmt.Errorf("context fetch failed with no usable cached value: %w", err)
	}

	data := result.(*domain.ContextData)
	if shared {
		log.Debug().Msg("context fetch coalesced with in-flight request")
	}
	return data, nil
}

// freshCached returns the cached snapshot if it is younger than the TTL
func (c *ContextCache) freshCached() *domain.ContextData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached != nil && c.cached.Age(c.now()) < c.ttl {
		return c.cached
	}
	return nil
}

// staleCached returns the cached snapshot if it is inside the fallback
// ceiling, TTL notwithstanding
func (c *ContextCache) staleCached() *domain.ContextData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached != nil && c.cached.Age(c.now()) < c.staleFallback {
		return c.cached
	}
	return nil
}
