package repository

import (
	"context"
	"database/sql"

	"github.com/venuely/reservation-engine/internal/model"
)

// PricingRepo provides data access to rental rate cards and high-season
// ranges. Only rental resources carry a rate card.
type PricingRepo struct {
	db *sql.DB
}

// NewPricingRepo returns a PricingRepo bound to the given database.
func NewPricingRepo(db *sql.DB) *PricingRepo { return &PricingRepo{db: db} }

// RateCard loads the rate card for a resource.
func (r *PricingRepo) RateCard(ctx context.Context, resourceID uint64) (*model.RateCard, error) {
	const q = `SELECT resource_id, standard_day_subunits, weekend_day_subunits,
	                  high_season_day_subunits, long_stay_days, long_stay_discount_percent
	           FROM rental_rate_cards WHERE resource_id = ?`
	var card model.RateCard
	err := r.db.QueryRowContext(ctx, q, resourceID).Scan(
		&card.ResourceID, &card.StandardDaySubunits, &card.WeekendDaySubunits,
		&card.HighSeasonDaySubunits, &card.LongStayDays, &card.LongStayDiscountPercent,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// SaveRateCard upserts the rate card for a resource, scoped by owner.
func (r *PricingRepo) SaveRateCard(ctx context.Context, operatorID uint64, card *model.RateCard) error {
	const q = `INSERT INTO rental_rate_cards
		(resource_id, standard_day_subunits, weekend_day_subunits,
		 high_season_day_subunits, long_stay_days, long_stay_discount_percent)
	SELECT id, ?, ?, ?, ?, ? FROM resources WHERE id = ? AND operator_id = ?
	ON DUPLICATE KEY UPDATE
		standard_day_subunits = VALUES(standard_day_subunits),
		weekend_day_subunits = VALUES(weekend_day_subunits),
		high_season_day_subunits = VALUES(high_season_day_subunits),
		long_stay_days = VALUES(long_stay_days),
		long_stay_discount_percent = VALUES(long_stay_discount_percent)`
	result, err := r.db.ExecContext(ctx, q,
		card.StandardDaySubunits, card.WeekendDaySubunits, card.HighSeasonDaySubunits,
		card.LongStayDays, card.LongStayDiscountPercent,
		card.ResourceID, operatorID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeasonRanges returns a resource's high-season periods.
func (r *PricingRepo) SeasonRanges(ctx context.Context, resourceID uint64) ([]model.SeasonRange, error) {
	const q = `SELECT id, resource_id, from_date, to_date
	           FROM season_ranges WHERE resource_id = ? ORDER BY from_date ASC`
	rows, err := r.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SeasonRange, 0)
	for rows.Next() {
		var s model.SeasonRange
		if err := rows.Scan(&s.ID, &s.ResourceID, &s.From, &s.To); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddSeasonRange records a high-season period, scoped by owner.
func (r *PricingRepo) AddSeasonRange(ctx context.Context, operatorID uint64, s *model.SeasonRange) error {
	const q = `INSERT INTO season_ranges (resource_id, from_date, to_date)
		SELECT id, ?, ? FROM resources WHERE id = ? AND operator_id = ?`
	result, err := r.db.ExecContext(ctx, q, s.From.UTC(), s.To.UTC(), s.ResourceID, operatorID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}
