package master

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
)

const (
	DefaultFetchDays = 2
	maxErrorLength   = 100
)

var ErrNoData = errors.New("no price data returned")

// Fetcher loads price periods for days consecutive local days starting at start
type Fetcher interface {
	Fetch(ctx context.Context, start time.Time, days int) ([]engine.PricePeriod, error)
}

// PriceCache keeps the last fetched batch of a master across restarts
type PriceCache interface {
	CachePrices(masterID string, fetchedAt time.Time, periods []engine.PricePeriod) error
	GetCachedPrices(masterID string) ([]engine.PricePeriod, time.Time, error)
}

// Status describes the outcome of the last fetch attempt
type Status struct {
	Connected   bool      `json:"connected"`
	Description string    `json:"description"`
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	Records     int       `json:"records"`
}

// Config describes one master device
type Config struct {
	ID                string
	Name              string
	FetchDays         int
	Location          *time.Location
	IncludeDeviceName bool
}

// Master owns the price data of one market feed. It publishes immutable
// snapshots that calculators read without locking.
type Master struct {
	id                string
	name              string
	fetchDays         int
	loc               *time.Location
	includeDeviceName bool

	fetcher Fetcher
	cache   PriceCache
	logger  *slog.Logger
	now     func() time.Time

	running  atomic.Bool
	snapshot atomic.Pointer[Snapshot]

	mu          sync.Mutex
	status      Status
	subscribers []func(*Snapshot)
}

// New creates a master. cache may be nil.
func New(cfg Config, fetcher Fetcher, cache PriceCache, logger *slog.Logger) *Master {
	if cfg.FetchDays <= 0 {
		cfg.FetchDays = DefaultFetchDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Master{
		id:                cfg.ID,
		name:              cfg.Name,
		fetchDays:         cfg.FetchDays,
		loc:               cfg.Location,
		includeDeviceName: cfg.IncludeDeviceName,
		fetcher:           fetcher,
		cache:             cache,
		logger:            logger.With("master", cfg.ID),
		now:               time.Now,
		status:            Status{Description: "Waiting for first fetch"},
	}
}

func (m *Master) ID() string               { return m.id }
func (m *Master) Name() string             { return m.name }
func (m *Master) Location() *time.Location { return m.loc }
func (m *Master) IncludeDeviceName() bool  { return m.includeDeviceName }

// Snapshot returns the latest published data, nil before the first
// successful fetch or restore
func (m *Master) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Status returns a copy of the connection status
func (m *Master) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers fn to be called with every newly published snapshot
func (m *Master) Subscribe(fn func(*Snapshot)) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
}

// Running reports whether a fetch cycle is in flight
func (m *Master) Running() bool {
	return m.running.Load()
}

// Run performs one fetch-then-process cycle. It returns false without doing
// anything when another cycle is already in flight.
func (m *Master) Run(ctx context.Context) bool {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Debug("fetch already in progress, skipping")
		return false
	}
	defer m.running.Store(false)

	m.cycle(ctx)
	return true
}

// Start runs one cycle in the background. It returns false when a cycle is
// already in flight.
func (m *Master) Start(ctx context.Context) bool {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Debug("fetch already in progress, skipping")
		return false
	}
	go func() {
		defer m.running.Store(false)
		m.cycle(ctx)
	}()
	return true
}

func (m *Master) cycle(ctx context.Context) {
	now := m.now()
	localNow := now.In(m.loc)
	start := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, m.loc)

	m.logger.Info("fetching prices", "from", start.Format("2006-01-02"), "days", m.fetchDays)

	periods, err := m.fetcher.Fetch(ctx, start, m.fetchDays)
	if err == nil && len(periods) == 0 {
		err = ErrNoData
	}
	if err != nil {
		m.fail(now, err)
		return
	}

	snap := buildSnapshot(periods, now, now, m.loc)
	m.publish(snap)

	m.mu.Lock()
	m.status = Status{
		Connected:   true,
		Description: fmt.Sprintf("Connected, %d records", len(periods)),
		LastAttempt: now,
		LastSuccess: now,
		Records:     len(periods),
	}
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.CachePrices(m.id, now, periods); err != nil {
			m.logger.Warn("caching prices failed", "error", err)
		}
	}

	m.logger.Info("prices updated",
		"records", len(periods),
		"today", len(snap.Today),
		"tomorrow", len(snap.Tomorrow))
}

// fail records a failed attempt. The previous snapshot stays published; it
// is only re-split when the local date has moved on since it was built.
func (m *Master) fail(now time.Time, err error) {
	m.logger.Error("fetching prices failed", "error", err)

	m.mu.Lock()
	m.status.Connected = false
	m.status.Description = "Error: " + truncate(err.Error(), maxErrorLength)
	m.status.LastAttempt = now
	m.mu.Unlock()

	prev := m.snapshot.Load()
	if prev == nil {
		return
	}
	if prev.TodayDate != now.In(m.loc).Format("2006-01-02") {
		m.publish(buildSnapshot(prev.All, prev.FetchedAt, now, m.loc))
	}
}

// Restore publishes the cached batch, if any, so calculators have data
// before the first fetch completes
func (m *Master) Restore() error {
	if m.cache == nil {
		return nil
	}
	periods, fetchedAt, err := m.cache.GetCachedPrices(m.id)
	if err != nil {
		return fmt.Errorf("restoring prices for %s: %w", m.id, err)
	}
	if len(periods) == 0 {
		return nil
	}

	m.publish(buildSnapshot(periods, fetchedAt, m.now(), m.loc))

	m.mu.Lock()
	m.status.Description = fmt.Sprintf("Restored %d records from cache", len(periods))
	m.status.Records = len(periods)
	m.status.LastSuccess = fetchedAt
	m.mu.Unlock()

	m.logger.Info("restored cached prices", "records", len(periods), "fetched_at", fetchedAt)
	return nil
}

func (m *Master) publish(snap *Snapshot) {
	m.snapshot.Store(snap)

	m.mu.Lock()
	subs := make([]func(*Snapshot), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
