package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
)

// countingRepo counts upstream discovery calls per key and fails the
// keys listed in fail.
type countingRepo struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	delay time.Duration
}

func newCountingRepo() *countingRepo {
	return &countingRepo{calls: map[string]int{}, fail: map[string]error{}}
}

func (r *countingRepo) bump(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[key]++
	return r.fail[key]
}

func (r *countingRepo) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func (r *countingRepo) setFail(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, key)
		return
	}
	r.fail[key] = err
}

func (r *countingRepo) Versions(context.Context) (*metav1.APIVersions, error) {
	time.Sleep(r.delay)
	if err := r.bump("versions"); err != nil {
		return nil, err
	}
	return &metav1.APIVersions{Versions: []string{"v1"}}, nil
}

func (r *countingRepo) Groups(context.Context) (*metav1.APIGroupList, error) {
	if err := r.bump("groups"); err != nil {
		return nil, err
	}
	return &metav1.APIGroupList{}, nil
}

func (r *countingRepo) Resources(_ context.Context, groupVersion string) (*metav1.APIResourceList, error) {
	if err := r.bump("resources/" + groupVersion); err != nil {
		return nil, err
	}
	return &metav1.APIResourceList{GroupVersion: groupVersion}, nil
}

func (r *countingRepo) ServerVersion(context.Context) (*version.Info, error) {
	if err := r.bump("server-version"); err != nil {
		return nil, err
	}
	return &version.Info{GitVersion: "v1.29.3"}, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(repo *countingRepo) (*DiscoveryCache, *fakeClock) {
	clock := &fakeClock{t: time.Now()}
	c := NewDiscoveryCache(repo, time.Hour, 5*time.Minute)
	c.now = clock.Now
	return c, clock
}

func TestCacheServesRepeatsWithoutRefetching(t *testing.T) {
	t.Parallel()

	repo := newCountingRepo()
	c, _ := newTestCache(repo)
	ctx := context.Background()

	for range 3 {
		versions, err := c.Versions(ctx)
		if err != nil {
			t.Fatalf("Versions: %v", err)
		}
		if len(versions.Versions) != 1 || versions.Versions[0] != "v1" {
			t.Fatalf("versions = %v", versions.Versions)
		}
	}
	if got := repo.count("versions"); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("stats = %d hits %d misses, want 2/1", hits, misses)
	}
}

func TestCacheKeysAreIndependent(t *testing.T) {
	t.Parallel()

	repo := newCountingRepo()
	c, _ := newTestCache(repo)
	ctx := context.Background()

	if _, err := c.Resources(ctx, "v1"); err != nil {
		t.Fatalf("Resources v1: %v", err)
	}
	if _, err := c.Resources(ctx, "apps/v1"); err != nil {
		t.Fatalf("Resources apps/v1: %v", err)
	}
	if _, err := c.Groups(ctx); err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if _, err := c.ServerVersion(ctx); err != nil {
		t.Fatalf("ServerVersion: %v", err)
	}

	for _, key := range []string{"resources/v1", "resources/apps/v1", "groups", "server-version"} {
		if got := repo.count(key); got != 1 {
			t.Errorf("upstream calls for %s = %d, want 1", key, got)
		}
	}
}

func TestCacheExpiresSuccesses(t *testing.T) {
	t.Parallel()

	repo := newCountingRepo()
	c, clock := newTestCache(repo)
	ctx := context.Background()

	if _, err := c.Versions(ctx); err != nil {
		t.Fatalf("Versions: %v", err)
	}
	clock.advance(time.Hour + time.Minute)
	if _, err := c.Versions(ctx); err != nil {
		t.Fatalf("Versions after expiry: %v", err)
	}
	if got := repo.count("versions"); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestCacheFailuresExpireOnTheShortTTL(t *testing.T) {
	t.Parallel()

	repo := newCountingRepo()
	notFound := apierrors.NewNotFound(schema.GroupResource{}, "apps/v9")
	repo.setFail("resources/apps/v9", notFound)

	c, clock := newTestCache(repo)
	ctx := context.Background()

	// The failure is cached: the second lookup does not hit upstream
	// and still reports the original error.
	if _, err := c.Resources(ctx, "apps/v9"); !apierrors.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFound", err)
	}
	if _, err := c.Resources(ctx, "apps/v9"); !apierrors.IsNotFound(err) {
		t.Fatalf("cached error = %v, want NotFound", err)
	}
	if got := repo.count("resources/apps/v9"); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}

	// Past the failure TTL the groupVersion is retried, well before
	// the success TTL would have expired.
	clock.advance(6 * time.Minute)
	repo.setFail("resources/apps/v9", nil)

	list, err := c.Resources(ctx, "apps/v9")
	if err != nil {
		t.Fatalf("Resources after recovery: %v", err)
	}
	if list.GroupVersion != "apps/v9" {
		t.Errorf("groupVersion = %q", list.GroupVersion)
	}
	if got := repo.count("resources/apps/v9"); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestCacheDeduplicatesConcurrentMisses(t *testing.T) {
	t.Parallel()

	repo := newCountingRepo()
	repo.delay = 20 * time.Millisecond
	c, _ := newTestCache(repo)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Versions(context.Background()); err != nil {
				t.Errorf("Versions: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := repo.count("versions"); got != 1 {
		t.Errorf("upstream calls = %d, want 1 shared flight", got)
	}
}

func TestCacheEvictsExpiredEntries(t *testing.T) {
	t.Parallel()

	repo := newCountingRepo()
	c, clock := newTestCache(repo)
	ctx := context.Background()

	if _, err := c.Versions(ctx); err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if _, err := c.Groups(ctx); err != nil {
		t.Fatalf("Groups: %v", err)
	}

	if evicted := c.evictExpired(); evicted != 0 {
		t.Fatalf("evicted %d live entries", evicted)
	}
	clock.advance(2 * time.Hour)
	if evicted := c.evictExpired(); evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}

	c.mu.RLock()
	remaining := len(c.entries)
	c.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("entries remaining = %d", remaining)
	}
}
