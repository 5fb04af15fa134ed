package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePeriod represents a 15-minute day-ahead pricing period
type PricePeriod struct {
	Start       time.Time           // UTC, inclusive
	End         time.Time           // UTC, exclusive
	Price       decimal.NullDecimal // EUR/MWh; invalid when the exchange quoted no price
	Period      int                 // exchange period index within the delivery day (1-96)
	DeliveryDay string              // local delivery date, 2006-01-02
	LocalStart  string              // local wall clock, 15:04
	LocalEnd    string              // local wall clock, 15:04
}

// HasPrice reports whether the period carries a quoted price
func (p PricePeriod) HasPrice() bool {
	return p.Price.Valid
}

// Direction selects whether a window search minimizes or maximizes the mean price
type Direction string

const (
	OptimizeMin Direction = "min"
	OptimizeMax Direction = "max"
)

// WindowQuery describes one window search
type WindowQuery struct {
	PeriodCount int       // number of contiguous periods
	TimeFrom    string    // HH:mm, inclusive bound on the local start clock
	TimeTo      string    // HH:mm, inclusive bound on the local start clock
	Optimize    Direction // OptimizeMin or OptimizeMax
}

// Reason explains why a window search found nothing
type Reason string

const (
	ReasonNone                    Reason = ""
	ReasonInsufficientData        Reason = "insufficient_data"
	ReasonInvalidTimeFormat       Reason = "invalid_time_format"
	ReasonInsufficientValidData   Reason = "insufficient_valid_data"
	ReasonInsufficientDataInRange Reason = "insufficient_data_in_range"
	ReasonNoContinuousWindow      Reason = "no_continuous_window"
)

// WindowResult is the outcome of a window search. Price fields are only
// meaningful when Found is true.
type WindowResult struct {
	Found       bool
	Reason      Reason
	Message     string
	Start       time.Time
	End         time.Time
	PeriodCount int
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	AvgPrice    decimal.Decimal // rounded half-to-even, 2 decimals
	Total       decimal.Decimal // sum of the window prices, 2 decimals
	Periods     []PricePeriod
}

// Contains reports whether t falls inside a found window, [Start, End)
func (r WindowResult) Contains(t time.Time) bool {
	if !r.Found {
		return false
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Stats holds aggregate statistics over the priced periods of a collection
type Stats struct {
	Min       decimal.NullDecimal
	Max       decimal.NullDecimal
	Avg       decimal.NullDecimal // rounded half-to-even, 2 decimals
	Count     int
	MinRecord *PricePeriod
	MaxRecord *PricePeriod
}

// Window settings bounds and defaults
const (
	MinWindowSize     = 1
	MaxWindowSize     = 96 // 24 hours of 15-minute periods
	DefaultWindowSize = 3
	DefaultTimeFrom   = "00:00"
	DefaultTimeTo     = "23:45"

	PeriodLength = 15 * time.Minute
)

// WindowSettings holds the user-set parameters of one window kind
type WindowSettings struct {
	Size     int    `json:"size"`      // periods
	TimeFrom string `json:"time_from"` // HH:mm
	TimeTo   string `json:"time_to"`   // HH:mm
	AutoFrom bool   `json:"auto_from"` // take TimeFrom from sunrise
	AutoTo   bool   `json:"auto_to"`   // take TimeTo from sunset
}

// CalculatorSettings holds the lowest and highest window parameters of a calculator
type CalculatorSettings struct {
	Lowest  WindowSettings `json:"lowest"`
	Highest WindowSettings `json:"highest"`
}

// DefaultWindowSettings returns the settings a new calculator starts with
func DefaultWindowSettings() WindowSettings {
	return WindowSettings{
		Size:     DefaultWindowSize,
		TimeFrom: DefaultTimeFrom,
		TimeTo:   DefaultTimeTo,
	}
}

// DefaultCalculatorSettings returns defaults for both window kinds
func DefaultCalculatorSettings() CalculatorSettings {
	return CalculatorSettings{
		Lowest:  DefaultWindowSettings(),
		Highest: DefaultWindowSettings(),
	}
}
