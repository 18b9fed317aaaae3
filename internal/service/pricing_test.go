package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuely/reservation-engine/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyDay(t *testing.T) {
	seasons := []model.SeasonRange{
		{From: day(2026, 7, 1), To: day(2026, 8, 31)},
	}

	// 2026-09-07 is a Monday.
	assert.Equal(t, DayStandard, ClassifyDay(day(2026, 9, 7), seasons))
	assert.Equal(t, DayWeekend, ClassifyDay(day(2026, 9, 11), seasons), "Friday counts as weekend")
	assert.Equal(t, DayWeekend, ClassifyDay(day(2026, 9, 12), seasons))
	assert.Equal(t, DayWeekend, ClassifyDay(day(2026, 9, 13), seasons))
	// A weekend inside high season still prices as high season.
	assert.Equal(t, DayHighSeason, ClassifyDay(day(2026, 7, 18), seasons))
	// Season bounds are inclusive.
	assert.Equal(t, DayHighSeason, ClassifyDay(day(2026, 7, 1), seasons))
	assert.Equal(t, DayHighSeason, ClassifyDay(day(2026, 8, 31), seasons))
}

func TestQuoteRentalPriceBreakdown(t *testing.T) {
	card := model.RateCard{
		StandardDaySubunits:   10000, // 100.00/day
		WeekendDaySubunits:    15000,
		HighSeasonDaySubunits: 20000,
	}

	// Mon 2026-09-07 through Thu 2026-09-10: 3 charged days, departure
	// day not charged.
	quote, err := QuoteRentalPrice(card, nil, day(2026, 9, 7), day(2026, 9, 10))
	require.NoError(t, err)
	assert.Equal(t, 3, quote.Days)
	assert.Equal(t, 3, quote.StandardDays)
	assert.Equal(t, int64(30000), quote.TotalSubunits)

	// Thu 2026-09-10 through Sun 2026-09-13: Thu standard, Fri+Sat weekend.
	quote, err = QuoteRentalPrice(card, nil, day(2026, 9, 10), day(2026, 9, 13))
	require.NoError(t, err)
	assert.Equal(t, 1, quote.StandardDays)
	assert.Equal(t, 2, quote.WeekendDays)
	assert.Equal(t, int64(40000), quote.TotalSubunits)
}

func TestQuoteRentalPriceLongStayDiscount(t *testing.T) {
	card := model.RateCard{
		StandardDaySubunits:     10000,
		WeekendDaySubunits:      10000,
		HighSeasonDaySubunits:   10000,
		LongStayDays:            7,
		LongStayDiscountPercent: 10,
	}

	// 7 days at 100.00 = 700.00, minus 10% = 630.00.
	quote, err := QuoteRentalPrice(card, nil, day(2026, 9, 7), day(2026, 9, 14))
	require.NoError(t, err)
	assert.Equal(t, 7, quote.Days)
	assert.Equal(t, 10, quote.DiscountPercent)
	assert.Equal(t, int64(63000), quote.TotalSubunits)

	// 6 days stays below the threshold.
	quote, err = QuoteRentalPrice(card, nil, day(2026, 9, 7), day(2026, 9, 13))
	require.NoError(t, err)
	assert.Equal(t, 0, quote.DiscountPercent)
	assert.Equal(t, int64(60000), quote.TotalSubunits)
}

func TestQuoteRentalPriceRoundsOnceAtTheEnd(t *testing.T) {
	// 33.33 per day, 3 days, 15% discount: 99.99 * 0.85 = 84.9915,
	// rounded half-up once to 84.99. Per-day rounding would give 84.98.
	card := model.RateCard{
		StandardDaySubunits:     3333,
		WeekendDaySubunits:      3333,
		HighSeasonDaySubunits:   3333,
		LongStayDays:            3,
		LongStayDiscountPercent: 15,
	}
	quote, err := QuoteRentalPrice(card, nil, day(2026, 9, 7), day(2026, 9, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(8499), quote.TotalSubunits)
	assert.Equal(t, "84.99", quote.Total.StringFixed(2))
}

func TestQuoteRentalPriceRejectsEmptyRange(t *testing.T) {
	card := model.RateCard{StandardDaySubunits: 10000}
	_, err := QuoteRentalPrice(card, nil, day(2026, 9, 10), day(2026, 9, 10))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = QuoteRentalPrice(card, nil, day(2026, 9, 10), day(2026, 9, 9))
	assert.ErrorIs(t, err, ErrValidation)
}
