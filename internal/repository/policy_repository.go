package repository

import (
	"context"
	"database/sql"

	"github.com/venuely/reservation-engine/internal/model"
)

// PolicyRepo reads per-operator cancellation configuration. Operators
// without a row get the hard-coded platform defaults, so callers never
// see ErrNotFound from here.
type PolicyRepo struct {
	db *sql.DB
}

// NewPolicyRepo returns a PolicyRepo bound to the given database.
func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

// ForOperator returns the operator's policy, falling back to defaults
// when none is configured.
func (r *PolicyRepo) ForOperator(ctx context.Context, operatorID uint64) (model.OperatorPolicy, error) {
	const q = `SELECT free_cancellation_hours, cancellation_penalty_percent,
	                  no_show_penalty_percent, no_show_always_100_guaranteed
	           FROM operator_policies WHERE operator_id = ?`
	var p model.OperatorPolicy
	err := r.db.QueryRowContext(ctx, q, operatorID).Scan(
		&p.FreeCancellationHours, &p.CancellationPenaltyPercent,
		&p.NoShowPenaltyPercent, &p.NoShowAlways100Guaranteed,
	)
	if err == sql.ErrNoRows {
		return model.DefaultPolicy(), nil
	}
	if err != nil {
		return model.OperatorPolicy{}, err
	}
	return p, nil
}

// Save upserts an operator's policy.
func (r *PolicyRepo) Save(ctx context.Context, operatorID uint64, p model.OperatorPolicy) error {
	const q = `INSERT INTO operator_policies
		(operator_id, free_cancellation_hours, cancellation_penalty_percent,
		 no_show_penalty_percent, no_show_always_100_guaranteed)
	VALUES (?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		free_cancellation_hours = VALUES(free_cancellation_hours),
		cancellation_penalty_percent = VALUES(cancellation_penalty_percent),
		no_show_penalty_percent = VALUES(no_show_penalty_percent),
		no_show_always_100_guaranteed = VALUES(no_show_always_100_guaranteed)`
	_, err := r.db.ExecContext(ctx, q, operatorID,
		p.FreeCancellationHours, p.CancellationPenaltyPercent,
		p.NoShowPenaltyPercent, p.NoShowAlways100Guaranteed)
	return err
}
