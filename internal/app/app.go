package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/awaistahir/okte-windows/internal/calculator"
	"github.com/awaistahir/okte-windows/internal/config"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/awaistahir/okte-windows/internal/prices"
	"github.com/awaistahir/okte-windows/internal/store"
	"github.com/awaistahir/okte-windows/internal/sun"
)

// Version is reported by the status endpoint and the CLI
const Version = "1.0.0"

// Options overrides the collaborators built from config. Zero fields get
// the production implementations.
type Options struct {
	Store   *store.Store
	Fetcher master.Fetcher
	Sun     calculator.SunSource
	Logger  *slog.Logger
}

// App holds the configured devices. Calculators reference their master
// directly; the lookup maps only serve the API and CLI.
type App struct {
	loc    *time.Location
	logger *slog.Logger

	masters     []*master.Master
	calculators []*calculator.Calculator
	masterByID  map[string]*master.Master
	calcByID    map[string]*calculator.Calculator
	calcsOf     map[string][]*calculator.Calculator
	fetchClock  map[string][2]int
}

// New builds masters first, then calculators bound to them
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location()

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = prices.NewOKTEClient(cfg.API.BaseURL, cfg.API.Timeout, loc, logger)
	}
	sunSource := opts.Sun
	if sunSource == nil {
		sunSource = sun.NewOpenMeteoClient(cfg.Sun.BaseURL, cfg.Sun.Latitude, cfg.Sun.Longitude, loc)
	}

	// a nil *store.Store must not become a non-nil interface
	var cache master.PriceCache
	var settings calculator.SettingsStore
	if opts.Store != nil {
		cache, settings = opts.Store, opts.Store
	}

	a := &App{
		loc:        loc,
		logger:     logger,
		masterByID: map[string]*master.Master{},
		calcByID:   map[string]*calculator.Calculator{},
		calcsOf:    map[string][]*calculator.Calculator{},
		fetchClock: map[string][2]int{},
	}

	for _, mc := range cfg.Masters {
		h, minute, err := mc.FetchClock()
		if err != nil {
			return nil, err
		}
		m := master.New(master.Config{
			ID:                mc.ID,
			Name:              mc.Name,
			FetchDays:         mc.FetchDays,
			Location:          loc,
			IncludeDeviceName: mc.IncludeDevice(),
		}, fetcher, cache, logger)

		a.masters = append(a.masters, m)
		a.masterByID[mc.ID] = m
		a.fetchClock[mc.ID] = [2]int{h, minute}
	}

	for _, cc := range cfg.Calculators {
		m, ok := a.masterByID[cc.Master]
		if !ok {
			return nil, fmt.Errorf("calculator %s: %w %q", cc.ID, config.ErrUnknownMaster, cc.Master)
		}
		c := calculator.New(calculator.Config{
			ID:                cc.ID,
			Name:              cc.Name,
			IncludeDeviceName: cc.IncludeDevice(),
		}, m, settings, sunSource, logger)

		a.calculators = append(a.calculators, c)
		a.calcByID[cc.ID] = c
		a.calcsOf[cc.Master] = append(a.calcsOf[cc.Master], c)
	}

	return a, nil
}

func (a *App) Location() *time.Location { return a.loc }

// Masters returns the masters in configuration order
func (a *App) Masters() []*master.Master { return a.masters }

// Calculators returns the calculators in configuration order
func (a *App) Calculators() []*calculator.Calculator { return a.calculators }

func (a *App) Master(id string) (*master.Master, bool) {
	m, ok := a.masterByID[id]
	return m, ok
}

func (a *App) Calculator(id string) (*calculator.Calculator, bool) {
	c, ok := a.calcByID[id]
	return c, ok
}

// CalculatorsOf returns the calculators bound to master id
func (a *App) CalculatorsOf(id string) []*calculator.Calculator {
	return a.calcsOf[id]
}

// FetchClock returns the local hour and minute of the daily fetch of master id
func (a *App) FetchClock(id string) (int, int) {
	c := a.fetchClock[id]
	return c[0], c[1]
}

// Restore publishes cached prices of every master. Missing caches are not
// an error.
func (a *App) Restore() {
	for _, m := range a.masters {
		if err := m.Restore(); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			a.logger.Warn("restoring cached prices failed", "master", m.ID(), "error", err)
		}
	}
}

// BindCalculators makes every master recalculate its calculators when it
// publishes new data
func (a *App) BindCalculators(ctx context.Context) {
	for _, m := range a.masters {
		calcs := a.calcsOf[m.ID()]
		m.Subscribe(func(*master.Snapshot) {
			for _, c := range calcs {
				c.Run(ctx)
			}
		})
	}
}

// RunAll runs every master concurrently, then every calculator
func (a *App) RunAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, m := range a.masters {
		wg.Add(1)
		go func(m *master.Master) {
			defer wg.Done()
			m.Run(ctx)
		}(m)
	}
	wg.Wait()

	a.RunCalculators(ctx)
}

// RunCalculators recalculates every calculator, keeping detectors current
func (a *App) RunCalculators(ctx context.Context) {
	for _, c := range a.calculators {
		c.Run(ctx)
	}
}
