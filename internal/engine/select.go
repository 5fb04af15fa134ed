package engine

import "time"

const (
	DayToday    = "today"
	DayTomorrow = "tomorrow"
)

// Selection combines the today and tomorrow results of one window kind into
// what is shown as the current window and its detectors
type Selection struct {
	Today          WindowResult
	Tomorrow       WindowResult
	Current        WindowResult // not found when neither day has a window
	CurrentDay     string       // "today", "tomorrow" or empty
	ActiveToday    bool
	ActiveTomorrow bool
	Active         bool
}

// Select picks the current window at now: an active today window, then an
// active tomorrow window, then the found today window, then the found
// tomorrow window.
func Select(today, tomorrow WindowResult, now time.Time) Selection {
	sel := Selection{
		Today:          today,
		Tomorrow:       tomorrow,
		ActiveToday:    today.Contains(now),
		ActiveTomorrow: tomorrow.Contains(now),
	}

	switch {
	case sel.ActiveToday:
		sel.Current, sel.CurrentDay = today, DayToday
		sel.Active = true
	case sel.ActiveTomorrow:
		sel.Current, sel.CurrentDay = tomorrow, DayTomorrow
		sel.Active = true
	case today.Found:
		sel.Current, sel.CurrentDay = today, DayToday
	case tomorrow.Found:
		sel.Current, sel.CurrentDay = tomorrow, DayTomorrow
	}

	return sel
}
