package model

import "time"

// RateCard holds the per-day rental rates for a resource, in currency
// subunits. A long-stay discount applies when the rented day count meets
// the configured threshold.
type RateCard struct {
	ResourceID              uint64 // rental_rate_cards.resource_id
	StandardDaySubunits     int64  // rental_rate_cards.standard_day_subunits
	WeekendDaySubunits      int64  // rental_rate_cards.weekend_day_subunits
	HighSeasonDaySubunits   int64  // rental_rate_cards.high_season_day_subunits
	LongStayDays            int    // rental_rate_cards.long_stay_days (0 = no discount)
	LongStayDiscountPercent int    // rental_rate_cards.long_stay_discount_percent
}

// SeasonRange is an operator-defined high-season period. Bounds are
// calendar dates, inclusive on both ends.
type SeasonRange struct {
	ID         uint64    // season_ranges.id
	ResourceID uint64    // season_ranges.resource_id
	From       time.Time // season_ranges.from_date
	To         time.Time // season_ranges.to_date
}

// ContainsDate reports whether the calendar date of d falls inside the
// range. Time-of-day is ignored.
func (s SeasonRange) ContainsDate(d time.Time) bool {
	day := truncateToDate(d)
	return !day.Before(truncateToDate(s.From)) && !day.After(truncateToDate(s.To))
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
