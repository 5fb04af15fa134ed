package report

import (
	"sort"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/shopspring/decimal"
)

// Extreme describes the period holding a day's min or max price
type Extreme struct {
	Available   bool                `json:"available"`
	Price       decimal.NullDecimal `json:"price"`
	Time        string              `json:"time,omitempty"`
	Period      int                 `json:"period,omitempty"`
	PeriodStart string              `json:"period_start,omitempty"`
	PeriodEnd   string              `json:"period_end,omitempty"`
}

// DayStats is the statistics view of one day
type DayStats struct {
	Date      string              `json:"date"`
	Available bool                `json:"available"`
	Count     int                 `json:"count"`
	AvgPrice  decimal.NullDecimal `json:"avg_price"`
	Min       Extreme             `json:"min"`
	Max       Extreme             `json:"max"`
}

// NewDayStats serializes stats; wall-clock fields use loc
func NewDayStats(date string, s engine.Stats, loc *time.Location) DayStats {
	return DayStats{
		Date:      date,
		Available: s.Count > 0,
		Count:     s.Count,
		AvgPrice:  s.Avg,
		Min:       newExtreme(s.Min, s.MinRecord, loc),
		Max:       newExtreme(s.Max, s.MaxRecord, loc),
	}
}

func newExtreme(price decimal.NullDecimal, p *engine.PricePeriod, loc *time.Location) Extreme {
	if p == nil {
		return Extreme{Available: false}
	}
	return Extreme{
		Available:   true,
		Price:       price,
		Time:        p.Start.In(loc).Format(localLayout),
		Period:      p.Period,
		PeriodStart: p.Start.In(loc).Format(clockLayout),
		PeriodEnd:   p.End.In(loc).Format(clockLayout),
	}
}

// CurrentPrice describes the period in effect now
type CurrentPrice struct {
	Available       bool                `json:"available"`
	Price           decimal.NullDecimal `json:"price"`
	Period          int                 `json:"period,omitempty"`
	PeriodStart     string              `json:"period_start,omitempty"`
	PeriodEnd       string              `json:"period_end,omitempty"`
	TotalRecords    int                 `json:"total_records"`
	TodayAverage    decimal.NullDecimal `json:"today_average"`
	TomorrowAverage decimal.NullDecimal `json:"tomorrow_average"`
	PriceSpread     decimal.NullDecimal `json:"price_spread"`
}

func NewCurrentPrice(snap *master.Snapshot, now time.Time, loc *time.Location) CurrentPrice {
	cp := CurrentPrice{
		TotalRecords:    len(snap.All),
		TodayAverage:    snap.TodayStats.Avg,
		TomorrowAverage: snap.TomorrowStats.Avg,
		PriceSpread:     snap.PriceSpread(),
	}
	p, ok := snap.CurrentAt(now)
	if !ok {
		return cp
	}
	cp.Available = p.HasPrice()
	cp.Price = p.Price
	cp.Period = p.Period
	cp.PeriodStart = p.Start.In(loc).Format(clockLayout)
	cp.PeriodEnd = p.End.In(loc).Format(clockLayout)
	return cp
}

// Stats is the statistics view of a master snapshot
type Stats struct {
	Today        DayStats     `json:"today"`
	Tomorrow     DayStats     `json:"tomorrow"`
	CurrentPrice CurrentPrice `json:"current_price"`
	FetchedAt    time.Time    `json:"fetched_at"`
}

func NewStats(snap *master.Snapshot, now time.Time, loc *time.Location) Stats {
	return Stats{
		Today:        NewDayStats(snap.TodayDate, snap.TodayStats, loc),
		Tomorrow:     NewDayStats(snap.TomorrowDate, snap.TomorrowStats, loc),
		CurrentPrice: NewCurrentPrice(snap, now, loc),
		FetchedAt:    snap.FetchedAt,
	}
}

// PeriodEntry is one point of a price list, shaped for charting
type PeriodEntry struct {
	Time        string          `json:"time"`
	TimeLocal   string          `json:"time_local"`
	Price       decimal.Decimal `json:"price"`
	Period      int             `json:"period"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Date        string          `json:"date"`
	DayName     string          `json:"day_name"`
	Label       string          `json:"hour_label"`
	Timestamp   int64           `json:"timestamp"`
}

// PriceList is the chartable list of priced periods of a day
type PriceList struct {
	DateRange      string              `json:"date_range"`
	PeriodData     []PeriodEntry       `json:"period_data"`
	TotalPeriods   int                 `json:"total_periods"`
	PricesList     []decimal.Decimal   `json:"prices_list"`
	TimestampsList []string            `json:"timestamps_list"`
	LabelsList     []string            `json:"labels_list"`
	MinPrice       decimal.NullDecimal `json:"min_price"`
	MaxPrice       decimal.NullDecimal `json:"max_price"`
	AvgPrice       decimal.NullDecimal `json:"avg_price"`
}

// NewPriceList lists the priced periods in chronological order
func NewPriceList(dateRange string, periods []engine.PricePeriod, loc *time.Location) PriceList {
	valid := make([]engine.PricePeriod, 0, len(periods))
	for _, p := range periods {
		if p.HasPrice() {
			valid = append(valid, p)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	list := PriceList{
		DateRange:      dateRange,
		PeriodData:     make([]PeriodEntry, 0, len(valid)),
		TotalPeriods:   len(valid),
		PricesList:     make([]decimal.Decimal, 0, len(valid)),
		TimestampsList: make([]string, 0, len(valid)),
		LabelsList:     make([]string, 0, len(valid)),
	}

	for _, p := range valid {
		local := p.Start.In(loc)
		entry := PeriodEntry{
			Time:        p.Start.UTC().Format(time.RFC3339),
			TimeLocal:   local.Format("2006-01-02 15:04:05"),
			Price:       p.Price.Decimal,
			Period:      p.Period,
			PeriodStart: p.LocalStart,
			PeriodEnd:   p.LocalEnd,
			Date:        p.DeliveryDay,
			DayName:     local.Weekday().String(),
			Label:       p.LocalStart + "-" + p.LocalEnd,
			Timestamp:   p.Start.UnixMilli(),
		}
		list.PeriodData = append(list.PeriodData, entry)
		list.PricesList = append(list.PricesList, entry.Price)
		list.TimestampsList = append(list.TimestampsList, entry.Time)
		list.LabelsList = append(list.LabelsList, entry.Label)
	}

	stats := engine.Statistics(valid)
	list.MinPrice, list.MaxPrice, list.AvgPrice = stats.Min, stats.Max, stats.Avg
	return list
}
