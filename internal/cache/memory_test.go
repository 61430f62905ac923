package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/models"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func sampleRecord(ticker string) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		Ticker:      ticker,
		Signal:      models.SignalBuy,
		Confidence:  0.64,
		Explanation: "solid across all pillars",
		Pillars: []models.PillarResult{
			{
				Kind:   models.PillarTechnical,
				Status: models.PillarOK,
				Score:  0.8,
				Detail: map[string]any{"rsi": 42.0},
			},
		},
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_GetReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := sampleRecord("AAPL")
	store.Put(ctx, "AAPL", original, time.Second)

	got, ok := store.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, original, got, "copy must be equal by value")
	assert.NotSame(t, original, got, "copy must be a distinct object")

	// Mutating the returned copy must not corrupt the cached value.
	got.Signal = models.SignalStrongSell
	got.Pillars[0].Detail["rsi"] = 99.0

	again, ok := store.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, models.SignalBuy, again.Signal)
	assert.Equal(t, 42.0, again.Pillars[0].Detail["rsi"])
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := sampleRecord("AAPL")
	store.Put(ctx, "AAPL", original, time.Second)

	// Mutating the record after Put must not affect the cache.
	original.Confidence = 0.0

	got, ok := store.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, 0.64, got.Confidence)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.now))

	store.Put(ctx, "AAPL", sampleRecord("AAPL"), time.Second)

	_, ok := store.Get(ctx, "AAPL")
	assert.True(t, ok, "entry should be live before TTL")

	clock.advance(999 * time.Millisecond)
	_, ok = store.Get(ctx, "AAPL")
	assert.True(t, ok, "entry should be live just before TTL")

	clock.advance(time.Millisecond)
	_, ok = store.Get(ctx, "AAPL")
	assert.False(t, ok, "entry must be absent once TTL elapses")
}

func TestMemoryStore_KeyNormalization(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "  aapl ", sampleRecord("AAPL"), time.Minute)

	_, ok := store.Get(ctx, "AAPL")
	assert.True(t, ok)
	_, ok = store.Get(ctx, "aapl")
	assert.True(t, ok)
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := sampleRecord("AAPL")
	store.Put(ctx, "AAPL", first, time.Minute)

	second := sampleRecord("AAPL")
	second.Signal = models.SignalSell
	store.Put(ctx, "AAPL", second, time.Minute)

	got, ok := store.Get(ctx, "AAPL")
	require.True(t, ok)
	assert.Equal(t, models.SignalSell, got.Signal)
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{current: time.Now()}
	store := NewMemoryStore(WithClock(clock.now), WithMaxEntries(2))

	// AAPL expires earliest, so it is the eviction victim.
	store.Put(ctx, "AAPL", sampleRecord("AAPL"), time.Second)
	store.Put(ctx, "MSFT", sampleRecord("MSFT"), time.Minute)
	store.Put(ctx, "NVDA", sampleRecord("NVDA"), time.Minute)

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get(ctx, "AAPL")
	assert.False(t, ok, "earliest-expiry entry should have been evicted")
	_, ok = store.Get(ctx, "MSFT")
	assert.True(t, ok)
	_, ok = store.Get(ctx, "NVDA")
	assert.True(t, ok)
}

func TestMemoryStore_InvalidateAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, "AAPL", sampleRecord("AAPL"), time.Minute)
	store.Put(ctx, "MSFT", sampleRecord("MSFT"), time.Minute)

	store.Invalidate(ctx, "aapl")
	_, ok := store.Get(ctx, "AAPL")
	assert.False(t, ok)
	_, ok = store.Get(ctx, "MSFT")
	assert.True(t, ok)

	store.Clear(ctx)
	_, ok = store.Get(ctx, "MSFT")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(ticker string) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				store.Put(ctx, ticker, sampleRecord(ticker), time.Minute)
				store.Get(ctx, ticker)
			}
		}([]string{"AAPL", "MSFT", "NVDA", "SPY"}[i%4])
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
