package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/master"
)

// Source provides the price snapshot a calculator works on
type Source interface {
	ID() string
	Snapshot() *master.Snapshot
	Location() *time.Location
}

// SettingsStore persists calculator settings
type SettingsStore interface {
	SaveSettings(id string, settings engine.CalculatorSettings) error
	GetSettings(id string) (engine.CalculatorSettings, error)
}

// SunSource provides local sunrise and sunset for a day
type SunSource interface {
	SunTimes(ctx context.Context, day time.Time) (time.Time, time.Time, error)
}

// Outputs is the result of one calculation cycle
type Outputs struct {
	Available    bool
	Lowest       engine.Selection
	Highest      engine.Selection
	Settings     engine.CalculatorSettings // with sun times applied
	CalculatedAt time.Time
	SnapshotAt   time.Time
}

// Config describes one calculator device
type Config struct {
	ID                string
	Name              string
	IncludeDeviceName bool
}

// Calculator runs the window searches for its master's data
type Calculator struct {
	id                string
	name              string
	includeDeviceName bool

	source Source
	store  SettingsStore
	sun    SunSource
	logger *slog.Logger
	now    func() time.Time

	running atomic.Bool
	dirty   atomic.Bool // settings changed since the in-flight calculation read them
	outputs atomic.Pointer[Outputs]

	mu       sync.Mutex
	settings engine.CalculatorSettings
}

// New creates a calculator bound to source. Stored settings are loaded when
// present, otherwise defaults are used. store and sun may be nil.
func New(cfg Config, source Source, store SettingsStore, sun SunSource, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Calculator{
		id:                cfg.ID,
		name:              cfg.Name,
		includeDeviceName: cfg.IncludeDeviceName,
		source:            source,
		store:             store,
		sun:               sun,
		logger:            logger.With("calculator", cfg.ID, "master", source.ID()),
		now:               time.Now,
		settings:          engine.DefaultCalculatorSettings(),
	}

	if store != nil {
		s, err := store.GetSettings(cfg.ID)
		switch {
		case err == nil:
			if verr := s.Validate(); verr != nil {
				c.logger.Warn("stored settings invalid, using defaults", "error", verr)
			} else {
				c.settings = s
			}
		default:
			c.logger.Debug("no stored settings, using defaults", "error", err)
		}
	}

	c.outputs.Store(&Outputs{Settings: c.settings})
	return c
}

func (c *Calculator) ID() string              { return c.id }
func (c *Calculator) Name() string            { return c.name }
func (c *Calculator) MasterID() string        { return c.source.ID() }
func (c *Calculator) IncludeDeviceName() bool { return c.includeDeviceName }

// Settings returns the configured settings, before sun times are applied
func (c *Calculator) Settings() engine.CalculatorSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Outputs returns the latest calculation
func (c *Calculator) Outputs() *Outputs {
	return c.outputs.Load()
}

// Running reports whether a calculation is in flight
func (c *Calculator) Running() bool {
	return c.running.Load()
}

// UpdateSettings validates and persists settings, then recalculates
func (c *Calculator) UpdateSettings(ctx context.Context, s engine.CalculatorSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.SaveSettings(c.id, s); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
	}

	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	c.dirty.Store(true)

	c.logger.Info("settings updated",
		"lowest_size", s.Lowest.Size,
		"highest_size", s.Highest.Size)

	c.Run(ctx)
	return nil
}

// Run performs one calculation over the current snapshot. It returns false
// without doing anything when another calculation is already in flight. A
// settings change made while a calculation is in flight is picked up by that
// calculation before it returns.
func (c *Calculator) Run(ctx context.Context) bool {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Debug("calculation already in progress, skipping")
		return false
	}

	for {
		c.dirty.Store(false)
		c.calculate(ctx)
		c.running.Store(false)

		if !c.dirty.Load() || !c.running.CompareAndSwap(false, true) {
			return true
		}
		c.logger.Debug("settings changed during calculation, recalculating")
	}
}

func (c *Calculator) calculate(ctx context.Context) {
	now := c.now()
	settings := c.resolveSettings(ctx, now)

	snap := c.source.Snapshot()
	if snap == nil {
		c.outputs.Store(&Outputs{Settings: settings, CalculatedAt: now})
		c.logger.Debug("no price data yet")
		return
	}

	out := Compute(snap, settings, now)
	c.outputs.Store(&out)

	c.logger.Info("windows calculated",
		"lowest_today", out.Lowest.Today.Found,
		"lowest_tomorrow", out.Lowest.Tomorrow.Found,
		"highest_today", out.Highest.Today.Found,
		"highest_tomorrow", out.Highest.Tomorrow.Found)
}

// Compute runs lowest and highest searches over today and tomorrow
func Compute(snap *master.Snapshot, settings engine.CalculatorSettings, now time.Time) Outputs {
	lowQ := settings.Lowest.Query(engine.OptimizeMin)
	highQ := settings.Highest.Query(engine.OptimizeMax)

	return Outputs{
		Available: true,
		Lowest: engine.Select(
			engine.FindWindow(snap.Today, lowQ),
			engine.FindWindow(snap.Tomorrow, lowQ),
			now),
		Highest: engine.Select(
			engine.FindWindow(snap.Today, highQ),
			engine.FindWindow(snap.Tomorrow, highQ),
			now),
		Settings:     settings,
		CalculatedAt: now,
		SnapshotAt:   snap.FetchedAt,
	}
}

// resolveSettings replaces auto-linked bounds with today's sun times. When
// they cannot be fetched the default day bounds are used.
func (c *Calculator) resolveSettings(ctx context.Context, now time.Time) engine.CalculatorSettings {
	s := c.Settings()
	if !s.NeedsSun() {
		return s
	}

	var sunrise, sunset time.Time
	if c.sun == nil {
		c.logger.Warn("sun-linked bounds configured without a sun source, using defaults")
	} else {
		var err error
		sunrise, sunset, err = c.sun.SunTimes(ctx, now)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("sun times unavailable, using defaults", "error", err)
		}
		if err != nil {
			sunrise, sunset = time.Time{}, time.Time{}
		}
	}

	loc := c.source.Location()
	s.Lowest = engine.ApplySunTimes(s.Lowest, sunrise, sunset, loc)
	s.Highest = engine.ApplySunTimes(s.Highest, sunrise, sunset, loc)
	return s
}
