package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/awaistahir/okte-windows/internal/config"
	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/awaistahir/okte-windows/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dayFetcher struct {
	calls atomic.Int32
}

// Fetch returns flat hourly-priced quarter hours for the requested days
func (f *dayFetcher) Fetch(ctx context.Context, start time.Time, days int) ([]engine.PricePeriod, error) {
	f.calls.Add(1)
	var out []engine.PricePeriod
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		for i := 0; i < 96; i++ {
			s := day.Add(time.Duration(i) * 15 * time.Minute)
			out = append(out, engine.PricePeriod{
				Start:       s,
				End:         s.Add(15 * time.Minute),
				Price:       decimal.NewNullDecimal(decimal.NewFromInt(int64(100 - i/4))),
				Period:      i + 1,
				DeliveryDay: s.Format("2006-01-02"),
				LocalStart:  s.Format("15:04"),
				LocalEnd:    s.Add(15 * time.Minute).Format("15:04"),
			})
		}
	}
	return out, nil
}

type noSun struct{}

func (noSun) SunTimes(ctx context.Context, day time.Time) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Timezone: "UTC",
		Masters: []config.MasterConfig{
			{ID: "sk", Name: "OKTE Master", FetchTime: "13:30", FetchDays: 2},
		},
		Calculators: []config.CalculatorConfig{
			{ID: "c1", Name: "OKTE Calculator 1", Master: "sk"},
			{ID: "c2", Name: "OKTE Calculator 2", Master: "sk"},
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewBindsCalculators(t *testing.T) {
	a, err := New(testConfig(t), Options{Fetcher: &dayFetcher{}, Sun: noSun{}})
	require.NoError(t, err)

	require.Len(t, a.Masters(), 1)
	require.Len(t, a.Calculators(), 2)

	m, ok := a.Master("sk")
	require.True(t, ok)
	c, ok := a.Calculator("c2")
	require.True(t, ok)
	assert.Equal(t, "sk", c.MasterID())
	assert.Len(t, a.CalculatorsOf(m.ID()), 2)

	hour, minute := a.FetchClock("sk")
	assert.Equal(t, 13, hour)
	assert.Equal(t, 30, minute)

	_, ok = a.Calculator("missing")
	assert.False(t, ok)

	assert.True(t, m.IncludeDeviceName(), "device names are included unless disabled")
	assert.True(t, c.IncludeDeviceName())
}

func TestNewIncludeDeviceNameDisabled(t *testing.T) {
	off := false
	cfg := testConfig(t)
	cfg.Masters[0].IncludeDeviceName = &off
	cfg.Calculators[0].IncludeDeviceName = &off

	a, err := New(cfg, Options{Fetcher: &dayFetcher{}, Sun: noSun{}})
	require.NoError(t, err)

	m, _ := a.Master("sk")
	c1, _ := a.Calculator("c1")
	c2, _ := a.Calculator("c2")
	assert.False(t, m.IncludeDeviceName())
	assert.False(t, c1.IncludeDeviceName())
	assert.True(t, c2.IncludeDeviceName())
}

func TestNewUnknownMaster(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calculators = append(cfg.Calculators, config.CalculatorConfig{ID: "c3", Master: "cz"})

	_, err := New(cfg, Options{Fetcher: &dayFetcher{}, Sun: noSun{}})
	assert.ErrorIs(t, err, config.ErrUnknownMaster)
}

func TestRunAllPublishesAndCalculates(t *testing.T) {
	fetcher := &dayFetcher{}
	a, err := New(testConfig(t), Options{Fetcher: fetcher, Sun: noSun{}})
	require.NoError(t, err)

	var recalcs atomic.Int32
	a.BindCalculators(context.Background())
	m, _ := a.Master("sk")
	m.Subscribe(func(*master.Snapshot) { recalcs.Add(1) })

	a.RunAll(context.Background())

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), recalcs.Load())
	for _, c := range a.Calculators() {
		out := c.Outputs()
		assert.True(t, out.Available, c.ID())
		assert.True(t, out.Lowest.Today.Found, c.ID())
		// prices fall hour by hour; the earliest of the tied windows in the last hour wins
		assert.Equal(t, "23:00", out.Lowest.Today.Periods[0].LocalStart)
	}
}

func TestRestoreFromStore(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "okte.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg := testConfig(t)
	first, err := New(cfg, Options{Store: st, Fetcher: &dayFetcher{}, Sun: noSun{}})
	require.NoError(t, err)

	// nothing cached yet
	first.Restore()
	m, _ := first.Master("sk")
	assert.Nil(t, m.Snapshot())

	first.RunAll(context.Background())

	second, err := New(cfg, Options{Store: st, Fetcher: &dayFetcher{}, Sun: noSun{}})
	require.NoError(t, err)
	second.Restore()

	m, _ = second.Master("sk")
	require.NotNil(t, m.Snapshot())
	assert.Len(t, m.Snapshot().All, 192)
}
