package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FindWindow finds the contiguous run of query.PeriodCount periods whose local
// start clocks lie within [TimeFrom, TimeTo] and whose mean price is lowest
// (OptimizeMin) or highest (OptimizeMax). It never fails: unmet preconditions
// come back as a not-found result carrying a Reason. The input is not modified.
func FindWindow(periods []PricePeriod, query WindowQuery) WindowResult {
	count := query.PeriodCount

	if count < 1 || len(periods) < count {
		return notFound(ReasonInsufficientData, count,
			fmt.Sprintf("Not enough data for %d-period window", count))
	}

	from, err := parseTimeOfDay(query.TimeFrom)
	if err != nil {
		return notFound(ReasonInvalidTimeFormat, count, "Invalid time format")
	}
	to, err := parseTimeOfDay(query.TimeTo)
	if err != nil {
		return notFound(ReasonInvalidTimeFormat, count, "Invalid time format")
	}

	valid := filterValid(periods)
	if len(valid) < count {
		return notFound(ReasonInsufficientValidData, count,
			fmt.Sprintf("Not enough valid data for %d-period window", count))
	}

	// from > to is not treated as a range across midnight; it matches nothing
	inRange := filterByClock(valid, from, to)
	if len(inRange) < count {
		return notFound(ReasonInsufficientDataInRange, count,
			fmt.Sprintf("Not enough data in time range %s-%s", query.TimeFrom, query.TimeTo))
	}

	sort.SliceStable(inRange, func(i, j int) bool {
		return inRange[i].Start.Before(inRange[j].Start)
	})

	best := -1
	var bestAvg decimal.Decimal
	divisor := decimal.NewFromInt(int64(count))

	for i := 0; i+count <= len(inRange); i++ {
		window := inRange[i : i+count]

		if !isContiguous(window) {
			continue
		}

		avg := sumPrices(window).Div(divisor)
		if best < 0 || isBetter(avg, bestAvg, query.Optimize) {
			best = i
			bestAvg = avg
		}
	}

	if best < 0 {
		return notFound(ReasonNoContinuousWindow, count,
			"Could not find suitable continuous time window in specified time range")
	}

	return buildResult(inRange[best:best+count], bestAvg)
}

// isBetter compares candidate against the best mean so far; ties keep the
// earlier window
func isBetter(candidate, best decimal.Decimal, dir Direction) bool {
	if dir == OptimizeMax {
		return candidate.GreaterThan(best)
	}
	return candidate.LessThan(best)
}

// filterValid drops periods without a price, instants or local start label
func filterValid(periods []PricePeriod) []PricePeriod {
	result := make([]PricePeriod, 0, len(periods))
	for _, p := range periods {
		if !p.HasPrice() || p.Start.IsZero() || p.End.IsZero() || p.LocalStart == "" {
			continue
		}
		result = append(result, p)
	}
	return result
}

// filterByClock keeps periods whose local start clock lies within [from, to].
// Periods with an unparseable label are skipped individually.
func filterByClock(periods []PricePeriod, from, to time.Time) []PricePeriod {
	lo, hi := clockMinutes(from), clockMinutes(to)

	result := make([]PricePeriod, 0, len(periods))
	for _, p := range periods {
		start, err := parseTimeOfDay(p.LocalStart)
		if err != nil {
			continue
		}
		m := clockMinutes(start)
		if lo <= m && m <= hi {
			result = append(result, p)
		}
	}
	return result
}

// isContiguous verifies that each period ends exactly when the next one starts
func isContiguous(periods []PricePeriod) bool {
	for i := 1; i < len(periods); i++ {
		if !periods[i].Start.Equal(periods[i-1].End) {
			return false
		}
	}
	return true
}

func sumPrices(periods []PricePeriod) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range periods {
		sum = sum.Add(p.Price.Decimal)
	}
	return sum
}

func buildResult(window []PricePeriod, avg decimal.Decimal) WindowResult {
	minPrice := window[0].Price.Decimal
	maxPrice := window[0].Price.Decimal
	for _, p := range window[1:] {
		minPrice = decimal.Min(minPrice, p.Price.Decimal)
		maxPrice = decimal.Max(maxPrice, p.Price.Decimal)
	}

	periods := make([]PricePeriod, len(window))
	copy(periods, window)

	return WindowResult{
		Found:       true,
		Start:       window[0].Start.UTC(),
		End:         window[len(window)-1].End.UTC(),
		PeriodCount: len(window),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		AvgPrice:    avg.RoundBank(2),
		Total:       sumPrices(window).RoundBank(2),
		Periods:     periods,
	}
}

func notFound(reason Reason, count int, message string) WindowResult {
	return WindowResult{
		Found:       false,
		Reason:      reason,
		Message:     message,
		PeriodCount: count,
	}
}

// parseTimeOfDay parses HH:mm format
func parseTimeOfDay(s string) (time.Time, error) {
	return time.Parse("15:04", s)
}

func clockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
