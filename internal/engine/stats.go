package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statistics reduces periods to min, max and average price. Periods without a
// price are ignored. When several periods share an extreme price, the first
// one in input order is reported as the record.
func Statistics(periods []PricePeriod) Stats {
	var stats Stats
	sum := decimal.Zero

	for i := range periods {
		p := &periods[i]
		if !p.HasPrice() {
			continue
		}
		price := p.Price.Decimal

		if stats.Count == 0 || price.LessThan(stats.Min.Decimal) {
			stats.Min = decimal.NewNullDecimal(price)
			stats.MinRecord = p
		}
		if stats.Count == 0 || price.GreaterThan(stats.Max.Decimal) {
			stats.Max = decimal.NewNullDecimal(price)
			stats.MaxRecord = p
		}

		sum = sum.Add(price)
		stats.Count++
	}

	if stats.Count == 0 {
		return Stats{}
	}

	avg := sum.Div(decimal.NewFromInt(int64(stats.Count)))
	stats.Avg = decimal.NewNullDecimal(avg.RoundBank(2))
	return stats
}

// Spread returns max minus min rounded to 2 decimals, invalid when there is no data
func (s Stats) Spread() decimal.NullDecimal {
	if s.Count == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(s.Max.Decimal.Sub(s.Min.Decimal).RoundBank(2))
}

// FilterByDate returns the periods delivered on the given local date
func FilterByDate(periods []PricePeriod, day time.Time) []PricePeriod {
	key := day.Format("2006-01-02")
	result := []PricePeriod{}
	for _, p := range periods {
		if p.DeliveryDay == key {
			result = append(result, p)
		}
	}
	return result
}
