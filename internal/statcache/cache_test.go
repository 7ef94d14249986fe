package statcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-verification-service/internal/grid"
	"github.com/couchcryptid/forecast-verification-service/internal/observability"
	"github.com/couchcryptid/forecast-verification-service/internal/statistic"
)

// --- mock for cache tests ---

type countingComputer struct {
	calls  atomic.Int64
	result *grid.Cube
	err    error
	gate   chan struct{}
}

func (m *countingComputer) Compute(_ context.Context, _ statistic.Key, _ *statistic.Inputs) (*grid.Cube, error) {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	return m.result, m.err
}

func cube(v float64) *grid.Cube {
	c := grid.NewCube([]time.Duration{0}, []time.Time{time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}, []float64{0}, []float64{0}, nil)
	c.Data[0] = v
	return c
}

func key(stat string) statistic.Key {
	return statistic.Key{Variable: "precip", AggDays: 7, Forecast: "ecmwf", Truth: "era5", DataKey: "none", Grid: "global1_5", Statistic: stat}
}

// --- CachedComputer tests ---

func TestCachedComputer_CacheHit(t *testing.T) {
	inner := &countingComputer{result: cube(3)}
	cached := NewCachedComputer(inner, 10, observability.NewMetricsForTesting())

	c1, err := cached.Compute(context.Background(), key("mae"), nil)
	require.NoError(t, err)
	c2, err := cached.Compute(context.Background(), key("mae"), nil)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, int64(1), inner.calls.Load(), "should only call inner once")
	assert.Equal(t, 1, cached.Len())
}

func TestCachedComputer_DifferentKeysMiss(t *testing.T) {
	inner := &countingComputer{result: cube(1)}
	cached := NewCachedComputer(inner, 10, nil)

	_, _ = cached.Compute(context.Background(), key("mae"), nil)
	_, _ = cached.Compute(context.Background(), key("mse"), nil)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedComputer_UnavailableNotCached(t *testing.T) {
	inner := &countingComputer{}
	cached := NewCachedComputer(inner, 10, nil)

	c, err := cached.Compute(context.Background(), key("seeps"), nil)
	require.NoError(t, err)
	assert.Nil(t, c)
	_, _ = cached.Compute(context.Background(), key("seeps"), nil)

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Zero(t, cached.Len())
}

func TestCachedComputer_ErrorsNotCached(t *testing.T) {
	inner := &countingComputer{err: errors.New("boom")}
	cached := NewCachedComputer(inner, 10, nil)

	_, err := cached.Compute(context.Background(), key("mae"), nil)
	require.Error(t, err)
	_, err = cached.Compute(context.Background(), key("mae"), nil)
	require.Error(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachedComputer_ConcurrentCallsShare(t *testing.T) {
	inner := &countingComputer{result: cube(2), gate: make(chan struct{})}
	cached := NewCachedComputer(inner, 10, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*grid.Cube, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := cached.Compute(context.Background(), key("mse"), nil)
			assert.NoError(t, err)
			results[i] = c
		}()
	}

	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	for _, c := range results {
		require.NotNil(t, c)
		assert.InDelta(t, 2.0, c.Data[0], 0)
	}
	assert.LessOrEqual(t, inner.calls.Load(), int64(callers))
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", cube(1))
	c.put("b", cube(2))

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, result.Data[0], 0)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", cube(1))
	c.put("b", cube(2))
	c.put("c", cube(3)) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.InDelta(t, 2.0, result.Data[0], 0)

	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", cube(1))
	c.put("b", cube(2))

	c.get("a")
	c.put("c", cube(3))

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", cube(1))
	c.put("a", cube(5))

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.InDelta(t, 5.0, result.Data[0], 0)
	assert.Equal(t, 1, c.len())
}
