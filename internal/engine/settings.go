package engine

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSettings = errors.New("invalid calculator settings")

// Validate checks the window size bounds and the HH:mm bounds
func (w WindowSettings) Validate() error {
	if w.Size < MinWindowSize || w.Size > MaxWindowSize {
		return fmt.Errorf("%w: window size %d outside %d-%d", ErrInvalidSettings, w.Size, MinWindowSize, MaxWindowSize)
	}
	if _, err := parseTimeOfDay(w.TimeFrom); err != nil {
		return fmt.Errorf("%w: time_from %q", ErrInvalidSettings, w.TimeFrom)
	}
	if _, err := parseTimeOfDay(w.TimeTo); err != nil {
		return fmt.Errorf("%w: time_to %q", ErrInvalidSettings, w.TimeTo)
	}
	return nil
}

// Validate checks both window kinds
func (s CalculatorSettings) Validate() error {
	if err := s.Lowest.Validate(); err != nil {
		return fmt.Errorf("lowest: %w", err)
	}
	if err := s.Highest.Validate(); err != nil {
		return fmt.Errorf("highest: %w", err)
	}
	return nil
}

// Query builds the window search for these settings
func (w WindowSettings) Query(dir Direction) WindowQuery {
	return WindowQuery{
		PeriodCount: w.Size,
		TimeFrom:    w.TimeFrom,
		TimeTo:      w.TimeTo,
		Optimize:    dir,
	}
}

// Length is the duration covered by a window of Size periods
func (w WindowSettings) Length() time.Duration {
	return time.Duration(w.Size) * PeriodLength
}

// SearchSpan is the distance between TimeFrom and TimeTo on the clock, in
// either direction. Unparseable bounds give zero.
func (w WindowSettings) SearchSpan() time.Duration {
	from, err := parseTimeOfDay(w.TimeFrom)
	if err != nil {
		return 0
	}
	to, err := parseTimeOfDay(w.TimeTo)
	if err != nil {
		return 0
	}
	minutes := clockMinutes(to) - clockMinutes(from)
	if minutes < 0 {
		minutes = -minutes
	}
	return time.Duration(minutes) * time.Minute
}

// NeedsSun reports whether any bound follows sunrise or sunset
func (s CalculatorSettings) NeedsSun() bool {
	return s.Lowest.AutoFrom || s.Lowest.AutoTo || s.Highest.AutoFrom || s.Highest.AutoTo
}

// ApplySunTimes replaces auto-linked bounds with the local sunrise/sunset
// clock. A zero sunrise or sunset falls back to the default day bounds.
func ApplySunTimes(w WindowSettings, sunrise, sunset time.Time, loc *time.Location) WindowSettings {
	if w.AutoFrom {
		if sunrise.IsZero() {
			w.TimeFrom = DefaultTimeFrom
		} else {
			w.TimeFrom = sunrise.In(loc).Format("15:04")
		}
	}
	if w.AutoTo {
		if sunset.IsZero() {
			w.TimeTo = DefaultTimeTo
		} else {
			w.TimeTo = sunset.In(loc).Format("15:04")
		}
	}
	return w
}
