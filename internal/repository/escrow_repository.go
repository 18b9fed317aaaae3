package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
)

// EscrowRepo provides data access to escrow holds. A unique key on
// reservation_id enforces the invariant of at most one hold per
// reservation; settlement is a compare-and-swap on the held status so it
// resolves exactly once.
type EscrowRepo struct {
	db *sql.DB
}

// NewEscrowRepo returns an EscrowRepo bound to the given database.
func NewEscrowRepo(db *sql.DB) *EscrowRepo { return &EscrowRepo{db: db} }

const escrowColumns = `id, reservation_id, amount_subunits, currency, status,
	reason, refund_percent, penalty_subunits, settled_at, created_at, updated_at`

func scanEscrowHold(s rowScanner) (*model.EscrowHold, error) {
	var (
		h         model.EscrowHold
		reason    sql.NullString
		refundPct sql.NullInt64
		penalty   sql.NullInt64
		settledAt sql.NullTime
	)
	err := s.Scan(
		&h.ID, &h.ReservationID, &h.AmountSubunits, &h.Currency, &h.Status,
		&reason, &refundPct, &penalty, &settledAt, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		v := model.SettleReason(reason.String)
		h.Reason = &v
	}
	if refundPct.Valid {
		v := int(refundPct.Int64)
		h.RefundPercent = &v
	}
	if penalty.Valid {
		v := penalty.Int64
		h.PenaltySubunits = &v
	}
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		h.SettledAt = &t
	}
	return &h, nil
}

// GetByReservation loads the hold for a reservation.
func (r *EscrowRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.EscrowHold, error) {
	const q = `SELECT ` + escrowColumns + ` FROM escrow_holds WHERE reservation_id = ?`
	h, err := scanEscrowHold(r.db.QueryRowContext(ctx, q, reservationID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return h, err
}

// Insert creates a held row. A concurrent duplicate loses against the
// unique key and gets ErrConflict, which EnsureHold treats as "someone
// else already created it".
func (r *EscrowRepo) Insert(ctx context.Context, hold *model.EscrowHold) error {
	const q = `INSERT IGNORE INTO escrow_holds (reservation_id, amount_subunits, currency, status)
	           VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		hold.ReservationID, hold.AmountSubunits, hold.Currency, hold.Status)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	hold.ID = uint64(id)
	return nil
}

// Settle resolves a held hold, recording the settlement inputs for audit.
// Returns false when the hold was not in held status — already settled
// means the call is an idempotent no-op for the service layer.
func (r *EscrowRepo) Settle(ctx context.Context, reservationID uint64, reason model.SettleReason, refundPercent int, penaltySubunits int64, settledAt time.Time) (bool, error) {
	const q = `UPDATE escrow_holds
		SET status = ?, reason = ?, refund_percent = ?, penalty_subunits = ?,
		    settled_at = ?, updated_at = UTC_TIMESTAMP()
		WHERE reservation_id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q,
		model.EscrowSettled, reason, refundPercent, penaltySubunits,
		settledAt.UTC(), reservationID, model.EscrowHeld)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// ReservationIDsMissingHold returns paid reservations with a non-zero
// deposit that have no hold row. The reconciliation sweep repairs these.
func (r *EscrowRepo) ReservationIDsMissingHold(ctx context.Context, limit int) ([]uint64, error) {
	const q = `SELECT r.id FROM reservations r
	           LEFT JOIN escrow_holds h ON h.reservation_id = r.id
	           WHERE r.amount_deposit > 0 AND r.payment_status = ? AND h.id IS NULL
	           ORDER BY r.id ASC LIMIT ?`
	return r.listIDs(ctx, q, model.PaymentPaid, limit)
}

// ReservationIDsWithOrphanedHold returns reservations whose hold is still
// held although the reservation reached a terminal status.
func (r *EscrowRepo) ReservationIDsWithOrphanedHold(ctx context.Context, terminal []string, limit int) ([]uint64, error) {
	q := `SELECT r.id FROM reservations r
	      JOIN escrow_holds h ON h.reservation_id = r.id
	      WHERE h.status = ? AND r.status IN (` + placeholders(len(terminal)) + `)
	      ORDER BY r.id ASC LIMIT ?`
	args := []any{model.EscrowHeld}
	for _, st := range terminal {
		args = append(args, st)
	}
	args = append(args, limit)
	return r.listIDs(ctx, q, args...)
}

func (r *EscrowRepo) listIDs(ctx context.Context, q string, args ...any) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
