package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/venuely/reservation-engine/internal/model"
)

// DayClass is the calendar classification of one rented day.
type DayClass string

const (
	DayStandard   DayClass = "standard"
	DayWeekend    DayClass = "weekend"
	DayHighSeason DayClass = "high_season"
)

// ClassifyDay returns the rate class for a calendar date. High season
// wins over weekend; Friday through Sunday is weekend.
func ClassifyDay(d time.Time, seasons []model.SeasonRange) DayClass {
	for _, s := range seasons {
		if s.ContainsDate(d) {
			return DayHighSeason
		}
	}
	switch d.UTC().Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return DayWeekend
	}
	return DayStandard
}

// RentalQuote is the priced breakdown of a rental date range.
type RentalQuote struct {
	Days            int             `json:"days"`
	StandardDays    int             `json:"standard_days"`
	WeekendDays     int             `json:"weekend_days"`
	HighSeasonDays  int             `json:"high_season_days"`
	DiscountPercent int             `json:"discount_percent"`
	TotalSubunits   int64           `json:"total_subunits"`
	Total           decimal.Decimal `json:"total"`
}

// QuoteRentalPrice sums per-day rates over [from, to) by calendar
// classification, applies the long-stay discount when the day count
// meets the card's threshold, and rounds half-up to 2 decimal places at
// the final aggregation step only — never per day.
func QuoteRentalPrice(card model.RateCard, seasons []model.SeasonRange, from, to time.Time) (RentalQuote, error) {
	first := dateOf(from)
	last := dateOf(to)
	if !last.After(first) {
		return RentalQuote{}, ErrValidation
	}

	var quote RentalQuote
	total := decimal.Zero
	hundred := decimal.NewFromInt(100)
	for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
		quote.Days++
		switch ClassifyDay(d, seasons) {
		case DayHighSeason:
			quote.HighSeasonDays++
			total = total.Add(subunitsToDecimal(card.HighSeasonDaySubunits))
		case DayWeekend:
			quote.WeekendDays++
			total = total.Add(subunitsToDecimal(card.WeekendDaySubunits))
		default:
			quote.StandardDays++
			total = total.Add(subunitsToDecimal(card.StandardDaySubunits))
		}
	}

	if card.LongStayDays > 0 && quote.Days >= card.LongStayDays && card.LongStayDiscountPercent > 0 {
		quote.DiscountPercent = card.LongStayDiscountPercent
		factor := hundred.Sub(decimal.NewFromInt(int64(card.LongStayDiscountPercent))).Div(hundred)
		total = total.Mul(factor)
	}

	// decimal.Round is half away from zero, which for positive money is
	// round-half-up.
	quote.Total = total.Round(2)
	quote.TotalSubunits = quote.Total.Mul(hundred).IntPart()
	return quote, nil
}

func subunitsToDecimal(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(100))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
