package calculator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snap *master.Snapshot
}

func (f *fakeSource) ID() string                 { return "master" }
func (f *fakeSource) Snapshot() *master.Snapshot { return f.snap }
func (f *fakeSource) Location() *time.Location   { return time.UTC }

// blockingSource holds the first Snapshot call until release is closed
type blockingSource struct {
	fakeSource
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Snapshot() *master.Snapshot {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.snap
}

type memStore struct {
	settings map[string]engine.CalculatorSettings
	err      error
}

func (m *memStore) SaveSettings(id string, s engine.CalculatorSettings) error {
	if m.err != nil {
		return m.err
	}
	m.settings[id] = s
	return nil
}

func (m *memStore) GetSettings(id string) (engine.CalculatorSettings, error) {
	s, ok := m.settings[id]
	if !ok {
		return engine.CalculatorSettings{}, errors.New("not found")
	}
	return s, nil
}

type fakeSun struct {
	sunrise, sunset time.Time
	err             error
	calls           int
}

func (f *fakeSun) SunTimes(ctx context.Context, day time.Time) (time.Time, time.Time, error) {
	f.calls++
	return f.sunrise, f.sunset, f.err
}

// day builds 96 quarter-hour periods starting at midnight UTC of date
func day(date time.Time, prices []int64) []engine.PricePeriod {
	out := make([]engine.PricePeriod, len(prices))
	for i, p := range prices {
		s := date.Add(time.Duration(i) * 15 * time.Minute)
		out[i] = engine.PricePeriod{
			Start:       s,
			End:         s.Add(15 * time.Minute),
			Price:       decimal.NewNullDecimal(decimal.NewFromInt(p)),
			Period:      i + 1,
			DeliveryDay: s.Format("2006-01-02"),
			LocalStart:  s.Format("15:04"),
			LocalEnd:    s.Add(15 * time.Minute).Format("15:04"),
		}
	}
	return out
}

func flat(n int, v int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func testSnapshot() *master.Snapshot {
	tp := flat(96, 50)
	tp[20], tp[21], tp[22] = 5, 5, 5    // 05:00-05:45 cheapest
	tp[72], tp[73], tp[74] = 90, 90, 90 // 18:00-18:45 most expensive
	mp := flat(96, 40)
	mp[8], mp[9], mp[10] = 1, 1, 1 // 02:00-02:45 tomorrow

	return &master.Snapshot{
		Today:    day(today, tp),
		Tomorrow: day(today.AddDate(0, 0, 1), mp),
	}
}

func newTestCalculator(src Source, st SettingsStore, sun SunSource, now time.Time) *Calculator {
	c := New(Config{ID: "calc-1", Name: "OKTE Calculator 1"}, src, st, sun, nil)
	c.now = func() time.Time { return now }
	return c
}

func TestRunWithoutData(t *testing.T) {
	c := newTestCalculator(&fakeSource{}, nil, nil, today.Add(time.Hour))

	assert.True(t, c.Run(context.Background()))

	out := c.Outputs()
	assert.False(t, out.Available)
	assert.False(t, out.Lowest.Active)
	assert.False(t, out.Lowest.ActiveToday)
	assert.False(t, out.Highest.ActiveTomorrow)
	assert.Equal(t, engine.DefaultCalculatorSettings(), out.Settings)
}

func TestRunFindsWindows(t *testing.T) {
	now := today.Add(5*time.Hour + 20*time.Minute)
	c := newTestCalculator(&fakeSource{snap: testSnapshot()}, nil, nil, now)

	require.True(t, c.Run(context.Background()))
	out := c.Outputs()

	require.True(t, out.Available)
	assert.True(t, out.Lowest.Today.Start.Equal(today.Add(5*time.Hour)))
	assert.Equal(t, "5", out.Lowest.Today.AvgPrice.String())
	assert.True(t, out.Lowest.ActiveToday)
	assert.True(t, out.Lowest.Active)
	assert.Equal(t, engine.DayToday, out.Lowest.CurrentDay)

	assert.True(t, out.Lowest.Tomorrow.Start.Equal(today.AddDate(0, 0, 1).Add(2*time.Hour)))
	assert.False(t, out.Lowest.ActiveTomorrow)

	assert.True(t, out.Highest.Today.Start.Equal(today.Add(18*time.Hour)))
	assert.False(t, out.Highest.Active)
	assert.Equal(t, engine.DayToday, out.Highest.CurrentDay)
	assert.Equal(t, now, out.CalculatedAt)
}

func TestUpdateSettings(t *testing.T) {
	st := &memStore{settings: map[string]engine.CalculatorSettings{}}
	c := newTestCalculator(&fakeSource{snap: testSnapshot()}, st, nil, today.Add(time.Hour))

	s := engine.DefaultCalculatorSettings()
	s.Lowest.Size = 1
	s.Lowest.TimeFrom = "10:00"
	require.NoError(t, c.UpdateSettings(context.Background(), s))

	assert.Equal(t, s, st.settings["calc-1"])
	assert.Equal(t, s, c.Settings())

	out := c.Outputs()
	assert.Equal(t, 1, out.Lowest.Today.PeriodCount)
	assert.True(t, out.Lowest.Today.Start.Equal(today.Add(10*time.Hour)), "earliest flat period in range")

	bad := s
	bad.Highest.Size = 97
	err := c.UpdateSettings(context.Background(), bad)
	assert.ErrorIs(t, err, engine.ErrInvalidSettings)
	assert.Equal(t, s, c.Settings(), "invalid settings are not applied")

	st.err = errors.New("disk full")
	assert.ErrorContains(t, c.UpdateSettings(context.Background(), engine.DefaultCalculatorSettings()), "disk full")
}

func TestNewLoadsStoredSettings(t *testing.T) {
	stored := engine.DefaultCalculatorSettings()
	stored.Highest.Size = 6
	st := &memStore{settings: map[string]engine.CalculatorSettings{"calc-1": stored}}

	c := newTestCalculator(&fakeSource{}, st, nil, today)
	assert.Equal(t, 6, c.Settings().Highest.Size)

	st.settings["calc-1"] = engine.CalculatorSettings{}
	c = newTestCalculator(&fakeSource{}, st, nil, today)
	assert.Equal(t, engine.DefaultCalculatorSettings(), c.Settings(), "invalid stored settings fall back")
}

func TestSunLinkedBounds(t *testing.T) {
	sun := &fakeSun{
		sunrise: today.Add(6*time.Hour + 12*time.Minute),
		sunset:  today.Add(17*time.Hour + 48*time.Minute),
	}
	s := engine.DefaultCalculatorSettings()
	s.Lowest.AutoFrom = true
	s.Lowest.AutoTo = true
	st := &memStore{settings: map[string]engine.CalculatorSettings{"calc-1": s}}

	c := newTestCalculator(&fakeSource{snap: testSnapshot()}, st, sun, today.Add(time.Hour))
	c.Run(context.Background())

	out := c.Outputs()
	assert.Equal(t, 1, sun.calls)
	assert.Equal(t, "06:12", out.Settings.Lowest.TimeFrom)
	assert.Equal(t, "17:48", out.Settings.Lowest.TimeTo)
	assert.Equal(t, engine.DefaultTimeFrom, out.Settings.Highest.TimeFrom)
	assert.Equal(t, engine.DefaultTimeFrom, c.Settings().Lowest.TimeFrom, "configured settings keep their bounds")
	// cheap block at 05:00 is before sunrise
	assert.False(t, out.Lowest.Today.Start.Equal(today.Add(5*time.Hour)))

	sun.err = errors.New("offline")
	c.Run(context.Background())
	out = c.Outputs()
	assert.Equal(t, engine.DefaultTimeFrom, out.Settings.Lowest.TimeFrom)
	assert.Equal(t, engine.DefaultTimeTo, out.Settings.Lowest.TimeTo)
}

func TestRunDropsConcurrentCall(t *testing.T) {
	c := newTestCalculator(&fakeSource{snap: testSnapshot()}, nil, nil, today)

	c.running.Store(true)
	assert.False(t, c.Run(context.Background()))
	c.running.Store(false)
	assert.True(t, c.Run(context.Background()))
}

func TestUpdateSettingsDuringRun(t *testing.T) {
	src := &blockingSource{
		fakeSource: fakeSource{snap: testSnapshot()},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	st := &memStore{settings: map[string]engine.CalculatorSettings{}}
	c := newTestCalculator(src, st, nil, today.Add(time.Hour))

	done := make(chan bool)
	go func() { done <- c.Run(context.Background()) }()
	<-src.entered

	s := engine.DefaultCalculatorSettings()
	s.Lowest.Size = 8
	require.NoError(t, c.UpdateSettings(context.Background(), s))
	assert.Equal(t, s, st.settings["calc-1"])

	close(src.release)
	assert.True(t, <-done)
	assert.False(t, c.Running())

	out := c.Outputs()
	assert.Equal(t, 8, out.Settings.Lowest.Size, "in-flight run picks up the new settings")
	assert.Equal(t, 8, out.Lowest.Today.PeriodCount)
}
