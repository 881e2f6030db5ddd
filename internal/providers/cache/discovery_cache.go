// Package cache provides TTL-based caching for Kubernetes discovery
// data. It lives in the providers layer because caching is an
// infrastructure concern; the domain layer (internal/core) only
// defines the DiscoveryRepo interface.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/version"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

const (
	// DefaultSuccessTTL is how long successful discovery answers stay
	// cached. Discovery data changes rarely (CRD installs, upgrades).
	DefaultSuccessTTL = time.Hour
	// DefaultFailureTTL is how long failed lookups stay cached. Short,
	// so a recovering API server or a freshly installed CRD is picked
	// up quickly, but repeated lookups of a missing groupVersion do
	// not hammer the server.
	DefaultFailureTTL = 5 * time.Minute
)

// singleflightFetchTimeout is the maximum time a cache-miss fetch is
// allowed to run. It uses context.WithoutCancel so that a single
// caller's cancellation does not fail all singleflight waiters.
const singleflightFetchTimeout = 30 * time.Second

// DiscoveryCache decorates a core.DiscoveryRepo with TTL caching and
// singleflight deduplication. Successes and failures are cached under
// separate TTLs; failure entries carry only the error, so a failure is
// never replayed as a success once it expires.
type DiscoveryCache struct {
	discovery  core.DiscoveryRepo
	successTTL time.Duration
	failureTTL time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	flights singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64

	// now is replaceable in tests.
	now func() time.Time
}

// cacheEntry is one cached discovery answer. Exactly one of value and
// err is meaningful.
type cacheEntry struct {
	value     any
	err       error
	expiresAt time.Time
}

// NewDiscoveryCache wraps the given DiscoveryRepo. Non-positive TTLs
// fall back to the defaults.
func NewDiscoveryCache(discovery core.DiscoveryRepo, successTTL, failureTTL time.Duration) *DiscoveryCache {
	if successTTL <= 0 {
		successTTL = DefaultSuccessTTL
	}
	if failureTTL <= 0 {
		failureTTL = DefaultFailureTTL
	}
	return &DiscoveryCache{
		discovery:  discovery,
		successTTL: successTTL,
		failureTTL: failureTTL,
		entries:    make(map[string]*cacheEntry),
		now:        time.Now,
	}
}

// Versions returns the legacy core API versions (/api).
func (c *DiscoveryCache) Versions(ctx context.Context) (*metav1.APIVersions, error) {
	v, err := c.cached(ctx, "versions", func(ctx context.Context) (any, error) {
		return c.discovery.Versions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*metav1.APIVersions), nil
}

// Groups returns the named API groups (/apis).
func (c *DiscoveryCache) Groups(ctx context.Context) (*metav1.APIGroupList, error) {
	v, err := c.cached(ctx, "groups", func(ctx context.Context) (any, error) {
		return c.discovery.Groups(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*metav1.APIGroupList), nil
}

// Resources returns the resource list of one groupVersion.
func (c *DiscoveryCache) Resources(ctx context.Context, groupVersion string) (*metav1.APIResourceList, error) {
	v, err := c.cached(ctx, "resources/"+groupVersion, func(ctx context.Context) (any, error) {
		return c.discovery.Resources(ctx, groupVersion)
	})
	if err != nil {
		return nil, err
	}
	return v.(*metav1.APIResourceList), nil
}

// ServerVersion returns the cluster version (/version).
func (c *DiscoveryCache) ServerVersion(ctx context.Context) (*version.Info, error) {
	v, err := c.cached(ctx, "server-version", func(ctx context.Context) (any, error) {
		return c.discovery.ServerVersion(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*version.Info), nil
}

// cached returns the live entry for key, or runs fetch under a
// singleflight and stores its outcome. Concurrent misses on the same
// key share one upstream call.
func (c *DiscoveryCache) cached(ctx context.Context, key string, fetch func(ctx context.Context) (any, error)) (any, error) {
	if entry, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return entry.value, entry.err
	}
	c.misses.Add(1)

	v, err, _ := c.flights.Do(key, func() (any, error) {
		// A caller that raced a finishing flight may find the entry
		// already refreshed.
		if entry, ok := c.lookup(key); ok {
			return entry.value, entry.err
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), singleflightFetchTimeout)
		defer cancel()

		value, err := fetch(fetchCtx)
		c.store(key, value, err)
		return value, err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *DiscoveryCache) lookup(key string) (*cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry, true
}

// store records a fetch outcome. Failures keep only the error and the
// short TTL, so they can never be mistaken for a cached success.
func (c *DiscoveryCache) store(key string, value any, err error) {
	ttl := c.successTTL
	if err != nil {
		ttl = c.failureTTL
		value = nil
	}
	c.mu.Lock()
	c.entries[key] = &cacheEntry{value: value, err: err, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Stats reports cumulative cache hits and misses.
func (c *DiscoveryCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// StartEvictionLoop launches a background loop that periodically
// removes expired cache entries. This prevents unbounded growth when
// groupVersions stop being queried. It blocks until ctx is cancelled.
func (c *DiscoveryCache) StartEvictionLoop(ctx context.Context, interval time.Duration) {
	log := slog.Default().With("component", "discovery-cache-evictor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := c.evictExpired(); evicted > 0 {
				log.Info("evicted expired cache entries", "count", evicted)
			}
		}
	}
}

// evictExpired removes expired entries and reports how many were
// dropped.
func (c *DiscoveryCache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}
