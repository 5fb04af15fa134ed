package report

import (
	"fmt"
	"time"

	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/shopspring/decimal"
)

const (
	localLayout = "02.01.2006 15:04"
	utcLayout   = "2006-01-02T15:04:05Z"
	clockLayout = "15:04"
)

// Record is one constituent period of a window
type Record struct {
	Price         decimal.NullDecimal `json:"price"`
	Period        int                 `json:"period"`
	DeliveryStart string              `json:"delivery_start"`
	DeliveryEnd   string              `json:"delivery_end"`
	PeriodStart   string              `json:"period_start"` // UTC HH:MM
	PeriodEnd     string              `json:"period_end"`   // UTC HH:MM
	Date          string              `json:"date"`
	TimeLocal     string              `json:"time_local"`
}

// Window is the serialized form of a window search result. A missing window
// carries its reason and null times and prices.
type Window struct {
	Found          bool                `json:"found"`
	Reason         string              `json:"reason,omitempty"`
	Message        string              `json:"message,omitempty"`
	StartTime      *string             `json:"start_time"`
	EndTime        *string             `json:"end_time"`
	StartTimeUTC   string              `json:"start_time_UTC,omitempty"`
	EndTimeUTC     string              `json:"end_time_UTC,omitempty"`
	StartTimeLocal string              `json:"start_time_local,omitempty"`
	EndTimeLocal   string              `json:"end_time_local,omitempty"`
	Periods        int                 `json:"periods"`
	MinPrice       decimal.NullDecimal `json:"min_price"`
	MaxPrice       decimal.NullDecimal `json:"max_price"`
	AvgPrice       decimal.NullDecimal `json:"avg_price"`
	TotalPrice     decimal.NullDecimal `json:"total_price"`
	Records        []Record            `json:"records"`
}

// NewWindow serializes r with local times in loc
func NewWindow(r engine.WindowResult, loc *time.Location) Window {
	if !r.Found {
		return Window{
			Found:   false,
			Reason:  string(r.Reason),
			Message: r.Message,
			Periods: r.PeriodCount,
			Records: []Record{},
		}
	}

	start := r.Start.In(loc).Format(time.RFC3339)
	end := r.End.In(loc).Format(time.RFC3339)

	w := Window{
		Found:          true,
		StartTime:      &start,
		EndTime:        &end,
		StartTimeUTC:   "UTC: " + r.Start.UTC().Format(utcLayout),
		EndTimeUTC:     "UTC: " + r.End.UTC().Format(utcLayout),
		StartTimeLocal: r.Start.In(loc).Format(localLayout),
		EndTimeLocal:   r.End.In(loc).Format(localLayout),
		Periods:        r.PeriodCount,
		MinPrice:       decimal.NewNullDecimal(r.MinPrice),
		MaxPrice:       decimal.NewNullDecimal(r.MaxPrice),
		AvgPrice:       decimal.NewNullDecimal(r.AvgPrice),
		TotalPrice:     decimal.NewNullDecimal(r.Total),
		Records:        make([]Record, 0, len(r.Periods)),
	}
	for _, p := range r.Periods {
		w.Records = append(w.Records, NewRecord(p, loc))
	}
	return w
}

// NewRecord serializes one period
func NewRecord(p engine.PricePeriod, loc *time.Location) Record {
	return Record{
		Price:         p.Price,
		Period:        p.Period,
		DeliveryStart: p.Start.UTC().Format(time.RFC3339),
		DeliveryEnd:   p.End.UTC().Format(time.RFC3339),
		PeriodStart:   p.Start.UTC().Format(clockLayout),
		PeriodEnd:     p.End.UTC().Format(clockLayout),
		Date:          p.DeliveryDay,
		TimeLocal:     p.Start.In(loc).Format(localLayout),
	}
}

// Selection is the serialized form of one window kind of a calculator
type Selection struct {
	Today          Window `json:"today"`
	Tomorrow       Window `json:"tomorrow"`
	Current        Window `json:"current"`
	CurrentDay     string `json:"current_day,omitempty"`
	ActiveToday    bool   `json:"active_today"`
	ActiveTomorrow bool   `json:"active_tomorrow"`
	Active         bool   `json:"active"`

	WindowSize       string `json:"window_size"`        // H:MM
	WindowSearchSize string `json:"window_search_size"` // H:MM
}

// FormatHM renders d as hours and zero-padded minutes, 2h15m -> "2:15"
func FormatHM(d time.Duration) string {
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

func NewSelection(s engine.Selection, loc *time.Location) Selection {
	return Selection{
		Today:          NewWindow(s.Today, loc),
		Tomorrow:       NewWindow(s.Tomorrow, loc),
		Current:        NewWindow(s.Current, loc),
		CurrentDay:     s.CurrentDay,
		ActiveToday:    s.ActiveToday,
		ActiveTomorrow: s.ActiveTomorrow,
		Active:         s.Active,
	}
}
