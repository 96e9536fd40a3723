// Package parcelcache keeps one fetched boundary collection per county in
// memory and derives the zoom-filtered view the map draws.
package parcelcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/parcelbook/internal/logger"
	"github.com/stwalsh4118/parcelbook/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a shared boundary fetch once it no longer
// follows any caller's cancellation.
const DefaultFetchTimeout = 2 * time.Minute

var (
	// ErrFetchFailed wraps loader errors. The cache is left as it was.
	ErrFetchFailed = errors.New("parcel boundary fetch failed")
	// ErrStaleFetch is returned when the county was invalidated while its fetch was in flight.
	ErrStaleFetch = errors.New("parcel boundary fetch superseded")
)

// Loader fetches the full boundary collection of a county.
type Loader interface {
	LoadBoundaries(ctx context.Context, countyKey string) (*geojson.FeatureCollection, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, countyKey string) (*geojson.FeatureCollection, error)

// LoadBoundaries calls f.
func (f LoaderFunc) LoadBoundaries(ctx context.Context, countyKey string) (*geojson.FeatureCollection, error) {
	return f(ctx, countyKey)
}

// Collection is a cached county boundary set. It is never mutated after
// being stored; invalidation replaces it.
type Collection struct {
	FetchedAt time.Time
	Features  *geojson.FeatureCollection
	CountyKey string
}

// Len returns the number of features.
func (c *Collection) Len() int {
	if c == nil || c.Features == nil {
		return 0
	}
	return len(c.Features.Features)
}

// Cache holds at most one Collection per county. Concurrent Loads of the
// same county share one loader call.
type Cache struct {
	loader       Loader
	policy       ZoomPolicy
	log          *logger.Logger
	group        singleflight.Group
	fetchTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*Collection
	epochs  map[string]uint64
}

// New creates a Cache.
func New(loader Loader, policy ZoomPolicy, log *logger.Logger) *Cache {
	return &Cache{
		loader:       loader,
		policy:       policy,
		log:          log.WithComponent("parcelcache"),
		fetchTimeout: DefaultFetchTimeout,
		entries:      make(map[string]*Collection),
		epochs:       make(map[string]uint64),
	}
}

// SetFetchTimeout changes the bound on a single loader call. Zero or less
// restores DefaultFetchTimeout.
func (c *Cache) SetFetchTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultFetchTimeout
	}
	c.fetchTimeout = d
}

// Policy returns the zoom policy used by FilterForZoom.
func (c *Cache) Policy() ZoomPolicy {
	return c.policy
}

// Cached returns the stored collection without loading.
func (c *Cache) Cached(countyKey string) (*Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[countyKey]
	return entry, ok
}

// Load returns the county's collection, fetching it on the first call.
// A Load issued while another is in flight for the same county joins it.
// The shared fetch keeps the first caller's values but not its cancellation,
// so one caller giving up never fails the others; a caller whose own ctx ends
// stops waiting and the fetch still completes into the cache.
func (c *Cache) Load(ctx context.Context, countyKey string) (*Collection, error) {
	c.mu.RLock()
	entry, ok := c.entries[countyKey]
	epoch := c.epochs[countyKey]
	c.mu.RUnlock()

	if ok {
		metrics.ParcelCacheEventsTotal.WithLabelValues("hit").Inc()
		return entry, nil
	}
	metrics.ParcelCacheEventsTotal.WithLabelValues("miss").Inc()

	key := countyKey + "#" + strconv.FormatUint(epoch, 10)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, countyKey, epoch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug("Joined in-flight boundary fetch", map[string]interface{}{"county": countyKey})
		}
		return res.Val.(*Collection), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: county %s: %w", ErrFetchFailed, countyKey, ctx.Err())
	}
}

func (c *Cache) fetch(ctx context.Context, countyKey string, epoch uint64) (*Collection, error) {
	metrics.ParcelCacheEventsTotal.WithLabelValues("fetch").Inc()
	start := time.Now()

	fc, err := c.loader.LoadBoundaries(ctx, countyKey)
	if err != nil {
		metrics.ParcelCacheEventsTotal.WithLabelValues("fetch_error").Inc()
		c.log.Warn("Boundary fetch failed", map[string]interface{}{
			"county": countyKey,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("%w: county %s: %v", ErrFetchFailed, countyKey, err)
	}
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epochs[countyKey] != epoch {
		metrics.ParcelCacheEventsTotal.WithLabelValues("stale").Inc()
		c.log.Debug("Discarding superseded boundary fetch", map[string]interface{}{"county": countyKey})
		return nil, fmt.Errorf("%w: county %s", ErrStaleFetch, countyKey)
	}

	entry := &Collection{
		CountyKey: countyKey,
		Features:  fc,
		FetchedAt: time.Now(),
	}
	c.entries[countyKey] = entry

	c.log.Info("Boundaries cached", map[string]interface{}{
		"county":      countyKey,
		"features":    len(fc.Features),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return entry, nil
}

// Invalidate drops the county's collection. A fetch already in flight for it
// will be discarded when it completes.
func (c *Cache) Invalidate(countyKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, countyKey)
	c.epochs[countyKey]++
}

// FilterForZoom derives the visible subset of the cached collection. It
// never loads: an uncached county yields an empty collection.
func (c *Cache) FilterForZoom(countyKey string, zoom int) *geojson.FeatureCollection {
	entry, ok := c.Cached(countyKey)
	if !ok {
		return geojson.NewFeatureCollection()
	}
	return c.policy.Filter(entry.Features, zoom)
}

// Filter applies the default policy to a collection.
func Filter(fc *geojson.FeatureCollection, zoom int) *geojson.FeatureCollection {
	return DefaultZoomPolicy().Filter(fc, zoom)
}
