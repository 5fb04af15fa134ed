package master

import (
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/shopspring/decimal"
)

// Snapshot is one published view of the price data. It is never modified
// after publication.
type Snapshot struct {
	All      []engine.PricePeriod
	Today    []engine.PricePeriod
	Tomorrow []engine.PricePeriod

	TodayDate    string
	TomorrowDate string

	TodayStats    engine.Stats
	TomorrowStats engine.Stats
	AllStats      engine.Stats

	FetchedAt time.Time
	BuiltAt   time.Time
}

func buildSnapshot(periods []engine.PricePeriod, fetchedAt, now time.Time, loc *time.Location) *Snapshot {
	all := make([]engine.PricePeriod, len(periods))
	copy(all, periods)

	today := now.In(loc)
	tomorrow := today.AddDate(0, 0, 1)

	snap := &Snapshot{
		All:          all,
		Today:        engine.FilterByDate(all, today),
		Tomorrow:     engine.FilterByDate(all, tomorrow),
		TodayDate:    today.Format("2006-01-02"),
		TomorrowDate: tomorrow.Format("2006-01-02"),
		FetchedAt:    fetchedAt,
		BuiltAt:      now,
	}
	snap.TodayStats = engine.Statistics(snap.Today)
	snap.TomorrowStats = engine.Statistics(snap.Tomorrow)
	snap.AllStats = engine.Statistics(snap.All)
	return snap
}

// Day returns the periods of "today", "tomorrow" or, for anything else, all
func (s *Snapshot) Day(day string) []engine.PricePeriod {
	switch day {
	case engine.DayToday:
		return s.Today
	case engine.DayTomorrow:
		return s.Tomorrow
	default:
		return s.All
	}
}

// CurrentAt returns the period whose [Start, End) contains t
func (s *Snapshot) CurrentAt(t time.Time) (engine.PricePeriod, bool) {
	for _, p := range s.All {
		if !t.Before(p.Start) && t.Before(p.End) {
			return p, true
		}
	}
	return engine.PricePeriod{}, false
}

// PriceSpread is max minus min over all data
func (s *Snapshot) PriceSpread() decimal.NullDecimal {
	return s.AllStats.Spread()
}

// HasTomorrow reports whether tomorrow's auction results are in
func (s *Snapshot) HasTomorrow() bool {
	return len(s.Tomorrow) > 0
}
