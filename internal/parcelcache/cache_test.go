package parcelcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbook/internal/logger"
)

// gatedLoader counts calls and blocks each one until release is closed.
type gatedLoader struct {
	calls   int32
	release chan struct{}
	started chan struct{}
	result  *geojson.FeatureCollection
	err     error
}

func newGatedLoader(result *geojson.FeatureCollection) *gatedLoader {
	return &gatedLoader{
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
		result:  result,
	}
}

func (l *gatedLoader) LoadBoundaries(ctx context.Context, _ string) (*geojson.FeatureCollection, error) {
	atomic.AddInt32(&l.calls, 1)
	l.started <- struct{}{}
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.result, l.err
}

func (l *gatedLoader) Calls() int { return int(atomic.LoadInt32(&l.calls)) }

func TestCache_LoadOnceThenHit(t *testing.T) {
	calls := 0
	loader := LoaderFunc(func(context.Context, string) (*geojson.FeatureCollection, error) {
		calls++
		return makeCollection(3), nil
	})
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())
	ctx := context.Background()

	first, err := cache.Load(ctx, "burnet")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Len())
	assert.Equal(t, "burnet", first.CountyKey)

	second, err := cache.Load(ctx, "burnet")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCache_ConcurrentLoadsShareOneFetch(t *testing.T) {
	loader := newGatedLoader(makeCollection(5))
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*Collection, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = cache.Load(ctx, "burnet")
	}()
	<-loader.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = cache.Load(ctx, "burnet")
	}()
	// Give the second Load time to join the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, loader.Calls())
	assert.Same(t, results[0], results[1])
}

func TestCache_JoinedLoadSurvivesFirstCallerCancel(t *testing.T) {
	loader := newGatedLoader(makeCollection(4))
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Load(firstCtx, "burnet")
		firstErr <- err
	}()
	<-loader.started

	type result struct {
		c   *Collection
		err error
	}
	joined := make(chan result, 1)
	go func() {
		c, err := cache.Load(context.Background(), "burnet")
		joined <- result{c, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)

	close(loader.release)
	res := <-joined
	require.NoError(t, res.err)
	assert.Equal(t, 4, res.c.Len())
	assert.Equal(t, 1, loader.Calls())

	cached, ok := cache.Cached("burnet")
	require.True(t, ok)
	assert.Same(t, res.c, cached)
}

func TestCache_FetchTimeoutBoundsLoader(t *testing.T) {
	loader := newGatedLoader(makeCollection(1))
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())
	cache.SetFetchTimeout(20 * time.Millisecond)

	_, err := cache.Load(context.Background(), "burnet")
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, ok := cache.Cached("burnet")
	assert.False(t, ok)
}

func TestCache_FailureLeavesStateIntact(t *testing.T) {
	fail := true
	loader := LoaderFunc(func(context.Context, string) (*geojson.FeatureCollection, error) {
		if fail {
			return nil, errors.New("502 bad gateway")
		}
		return makeCollection(2), nil
	})
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())
	ctx := context.Background()

	_, err := cache.Load(ctx, "burnet")
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, ok := cache.Cached("burnet")
	assert.False(t, ok)

	fail = false
	entry, err := cache.Load(ctx, "burnet")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Len())
}

func TestCache_InvalidateDiscardsInFlightFetch(t *testing.T) {
	loader := newGatedLoader(makeCollection(4))
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := cache.Load(context.Background(), "burnet")
		done <- err
	}()
	<-loader.started

	cache.Invalidate("burnet")
	close(loader.release)

	assert.ErrorIs(t, <-done, ErrStaleFetch)
	_, ok := cache.Cached("burnet")
	assert.False(t, ok, "stale result must not populate the cache")

	entry, err := cache.Load(context.Background(), "burnet")
	require.NoError(t, err)
	assert.Equal(t, 4, entry.Len())
	assert.Equal(t, 2, loader.Calls())
}

func TestCache_FilterForZoom(t *testing.T) {
	loader := LoaderFunc(func(context.Context, string) (*geojson.FeatureCollection, error) {
		return makeCollection(5000), nil
	})
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())

	assert.Empty(t, cache.FilterForZoom("burnet", 10).Features, "uncached county never loads")

	_, err := cache.Load(context.Background(), "burnet")
	require.NoError(t, err)

	assert.Len(t, cache.FilterForZoom("burnet", 6).Features, 500)
	assert.Len(t, cache.FilterForZoom("burnet", 10).Features, 5000)
	assert.Equal(t, cache.FilterForZoom("burnet", 6), cache.FilterForZoom("burnet", 6))
}

func TestCache_CountiesAreIndependent(t *testing.T) {
	var calls int32
	loader := LoaderFunc(func(_ context.Context, county string) (*geojson.FeatureCollection, error) {
		atomic.AddInt32(&calls, 1)
		if county == "madison" {
			return makeCollection(1), nil
		}
		return makeCollection(2), nil
	})
	cache := New(loader, DefaultZoomPolicy(), logger.Nop())
	ctx := context.Background()

	b, err := cache.Load(ctx, "burnet")
	require.NoError(t, err)
	m, err := cache.Load(ctx, "madison")
	require.NoError(t, err)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, m.Len())

	cache.Invalidate("madison")
	_, ok := cache.Cached("burnet")
	assert.True(t, ok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
