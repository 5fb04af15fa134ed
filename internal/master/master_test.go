package master

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	periods []engine.PricePeriod
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, start time.Time, days int) ([]engine.PricePeriod, error) {
	f.mu.Lock()
	f.calls++
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.periods, f.err
}

type memCache struct {
	periods   []engine.PricePeriod
	fetchedAt time.Time
	saved     int
}

func (c *memCache) CachePrices(id string, fetchedAt time.Time, periods []engine.PricePeriod) error {
	c.periods, c.fetchedAt = periods, fetchedAt
	c.saved++
	return nil
}

func (c *memCache) GetCachedPrices(id string) ([]engine.PricePeriod, time.Time, error) {
	if c.periods == nil {
		return nil, time.Time{}, errors.New("not found")
	}
	return c.periods, c.fetchedAt, nil
}

// twoDays builds hourly periods for 2025-03-10 and 2025-03-11 (UTC)
func twoDays() []engine.PricePeriod {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var out []engine.PricePeriod
	for i := 0; i < 48; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		out = append(out, engine.PricePeriod{
			Start:       s,
			End:         s.Add(time.Hour),
			Price:       decimal.NewNullDecimal(decimal.NewFromInt(int64(10 + i))),
			Period:      i%24 + 1,
			DeliveryDay: s.Format("2006-01-02"),
			LocalStart:  s.Format("15:04"),
			LocalEnd:    s.Add(time.Hour).Format("15:04"),
		})
	}
	return out
}

func newTestMaster(f Fetcher, c PriceCache, now time.Time) *Master {
	m := New(Config{ID: "master", Name: "OKTE Master", Location: time.UTC}, f, c, nil)
	m.now = func() time.Time { return now }
	return m
}

func TestRunPublishesSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	cache := &memCache{}
	m := newTestMaster(&fakeFetcher{periods: twoDays()}, cache, now)

	var notified *Snapshot
	m.Subscribe(func(s *Snapshot) { notified = s })

	require.Nil(t, m.Snapshot())
	assert.True(t, m.Run(context.Background()))

	snap := m.Snapshot()
	require.NotNil(t, snap)
	assert.Same(t, snap, notified)
	assert.Len(t, snap.All, 48)
	assert.Len(t, snap.Today, 24)
	assert.Len(t, snap.Tomorrow, 24)
	assert.Equal(t, "2025-03-10", snap.TodayDate)
	assert.Equal(t, "2025-03-11", snap.TomorrowDate)
	assert.Equal(t, "10", snap.TodayStats.Min.Decimal.String())
	assert.Equal(t, "57", snap.AllStats.Max.Decimal.String())
	assert.Equal(t, "47", snap.PriceSpread().Decimal.String())
	assert.True(t, snap.HasTomorrow())

	status := m.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, 48, status.Records)
	assert.Equal(t, now, status.LastSuccess)
	assert.Equal(t, 1, cache.saved)
}

func TestRunFailureKeepsSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	f := &fakeFetcher{periods: twoDays()}
	m := newTestMaster(f, nil, now)

	require.True(t, m.Run(context.Background()))
	first := m.Snapshot()

	f.periods, f.err = nil, errors.New(strings.Repeat("x", 150))
	require.True(t, m.Run(context.Background()))

	assert.Same(t, first, m.Snapshot(), "previous data stays published")
	status := m.Status()
	assert.False(t, status.Connected)
	assert.Equal(t, "Error: "+strings.Repeat("x", 100), status.Description)
	assert.Equal(t, now, status.LastAttempt)
}

func TestRunEmptyResponse(t *testing.T) {
	m := newTestMaster(&fakeFetcher{}, nil, time.Now())

	m.Run(context.Background())

	assert.Nil(t, m.Snapshot())
	assert.False(t, m.Status().Connected)
	assert.Contains(t, m.Status().Description, ErrNoData.Error())
}

func TestRunFailureAfterMidnightResplits(t *testing.T) {
	f := &fakeFetcher{periods: twoDays()}
	m := newTestMaster(f, nil, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))
	require.True(t, m.Run(context.Background()))

	f.err = errors.New("timeout")
	m.now = func() time.Time { return time.Date(2025, 3, 11, 0, 10, 0, 0, time.UTC) }
	m.Run(context.Background())

	snap := m.Snapshot()
	assert.Equal(t, "2025-03-11", snap.TodayDate)
	assert.Len(t, snap.Today, 24)
	assert.Empty(t, snap.Tomorrow)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), snap.FetchedAt)
}

func TestRunDropsConcurrentCall(t *testing.T) {
	f := &fakeFetcher{
		periods: twoDays(),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	m := newTestMaster(f, nil, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))

	done := make(chan bool)
	go func() { done <- m.Run(context.Background()) }()

	<-f.entered
	assert.True(t, m.Running())
	assert.False(t, m.Run(context.Background()), "second call is dropped")

	close(f.block)
	assert.True(t, <-done)
	assert.Equal(t, 1, f.calls)
	assert.False(t, m.Running())
}

func TestRestore(t *testing.T) {
	fetchedAt := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	cache := &memCache{periods: twoDays(), fetchedAt: fetchedAt}
	m := newTestMaster(&fakeFetcher{}, cache, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC))

	require.NoError(t, m.Restore())

	snap := m.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, fetchedAt, snap.FetchedAt)
	assert.Len(t, snap.Today, 24)
	assert.False(t, m.Status().Connected)
	assert.Equal(t, 48, m.Status().Records)

	empty := newTestMaster(&fakeFetcher{}, &memCache{}, time.Now())
	assert.Error(t, empty.Restore())
	assert.Nil(t, empty.Snapshot())
}

func TestCurrentAt(t *testing.T) {
	snap := buildSnapshot(twoDays(), time.Time{}, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.UTC)

	p, ok := snap.CurrentAt(time.Date(2025, 3, 10, 5, 59, 59, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "05:00", p.LocalStart)

	p, ok = snap.CurrentAt(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "06:00", p.LocalStart, "end is exclusive")

	_, ok = snap.CurrentAt(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	assert.Len(t, snap.Day(engine.DayToday), 24)
	assert.Len(t, snap.Day("all"), 48)
}

func TestStartRunsInBackground(t *testing.T) {
	f := &fakeFetcher{
		periods: twoDays(),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	m := newTestMaster(f, nil, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))

	assert.True(t, m.Start(context.Background()))
	<-f.entered
	assert.False(t, m.Start(context.Background()), "in-flight cycle is not queued")
	assert.False(t, m.Run(context.Background()))

	close(f.block)
	assert.Eventually(t, func() bool { return !m.Running() }, time.Second, 5*time.Millisecond)
	assert.NotNil(t, m.Snapshot())
	assert.Equal(t, 1, f.calls)
}
