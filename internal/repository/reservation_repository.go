package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
)

// ReservationRepo provides data access to the reservations table. Every
// status mutation goes through UpdateStatus, which applies compare-and-swap
// semantics: the UPDATE is scoped by the expected source-status set, so a
// transition whose precondition no longer holds matches zero rows instead
// of silently overwriting.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for callers that need to open a
// transaction spanning several repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, resource_id, slot_id, consumer_id, operator_id, party_size,
	starts_at, ends_at, stock_pool, type, amount_total, amount_deposit, currency,
	status, payment_status, processing_deadline, checked_in_at, cancellation_reason,
	metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res         model.Reservation
		slotID      sql.NullInt64
		deadline    sql.NullTime
		checkedIn   sql.NullTime
		cancelWhy   sql.NullString
		metadataRaw sql.NullString
	)
	err := s.Scan(
		&res.ID, &res.ResourceID, &slotID, &res.ConsumerID, &res.OperatorID, &res.PartySize,
		&res.Start, &res.End, &res.StockPool, &res.Type, &res.AmountTotal, &res.AmountDeposit, &res.Currency,
		&res.Status, &res.PaymentStatus, &deadline, &checkedIn, &cancelWhy,
		&metadataRaw, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if slotID.Valid {
		v := uint64(slotID.Int64)
		res.SlotID = &v
	}
	if deadline.Valid {
		t := deadline.Time.UTC()
		res.ProcessingDeadline = &t
	}
	if checkedIn.Valid {
		t := checkedIn.Time.UTC()
		res.CheckedInAt = &t
	}
	if cancelWhy.Valid {
		v := cancelWhy.String
		res.CancellationReason = &v
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		_ = json.Unmarshal([]byte(metadataRaw.String), &res.Metadata)
	}
	return &res, nil
}

func nullableID(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// placeholders returns n comma-separated "?" markers for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// InsertAdmitted inserts a reservation only while the occupying count for
// the resource and window stays below quantity. The capacity guard runs
// inside the INSERT ... SELECT statement itself, so two concurrent
// admissions for the last unit cannot both pass: the loser matches zero
// rows and receives ErrConflict, which callers surface as a capacity
// error rather than retrying.
func (r *ReservationRepo) InsertAdmitted(ctx context.Context, res *model.Reservation, quantity uint32, occupying []string) error {
	meta, err := marshalMetadata(res.Metadata)
	if err != nil {
		return err
	}
	q := `INSERT INTO reservations
		(resource_id, slot_id, consumer_id, operator_id, party_size, starts_at, ends_at,
		 stock_pool, type, amount_total, amount_deposit, currency, status, payment_status,
		 processing_deadline, metadata)
	SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	FROM dual
	WHERE (SELECT COUNT(*) FROM reservations
	       WHERE resource_id = ?
	         AND status IN (` + placeholders(len(occupying)) + `)
	         AND starts_at < ? AND ends_at > ?) < ?`
	args := []any{
		res.ResourceID, nullableID(res.SlotID), res.ConsumerID, res.OperatorID, res.PartySize,
		res.Start.UTC(), res.End.UTC(), res.StockPool, res.Type, res.AmountTotal,
		res.AmountDeposit, res.Currency, res.Status, res.PaymentStatus,
		nullableTime(res.ProcessingDeadline), meta,
		res.ResourceID,
	}
	for _, st := range occupying {
		args = append(args, st)
	}
	args = append(args, res.End.UTC(), res.Start.UTC(), quantity)

	result, err := r.db.ExecContext(ctx, q, args...)
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
	res.ID = uint64(id)
	return r.refresh(ctx, res)
}

// InsertTx inserts a reservation unconditionally within an existing
// transaction. Used for waitlist fallback rows (status waitlist holds no
// capacity) and for group-quote conversions, which bypass the capacity
// ledger by design.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	meta, err := marshalMetadata(res.Metadata)
	if err != nil {
		return err
	}
	const q = `INSERT INTO reservations
		(resource_id, slot_id, consumer_id, operator_id, party_size, starts_at, ends_at,
		 stock_pool, type, amount_total, amount_deposit, currency, status, payment_status,
		 processing_deadline, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.ResourceID, nullableID(res.SlotID), res.ConsumerID, res.OperatorID, res.PartySize,
		res.Start.UTC(), res.End.UTC(), res.StockPool, res.Type, res.AmountTotal,
		res.AmountDeposit, res.Currency, res.Status, res.PaymentStatus,
		nullableTime(res.ProcessingDeadline), meta,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// refresh re-reads the row to populate database-assigned timestamps.
func (r *ReservationRepo) refresh(ctx context.Context, res *model.Reservation) error {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	loaded, err := scanReservation(r.db.QueryRowContext(ctx, q, res.ID))
	if err != nil {
		return err
	}
	*res = *loaded
	return nil
}

// GetByID loads a reservation without an ownership scope. Reserved for
// internal callers (sweeper, escrow reconciliation); request paths must
// use the scoped getters.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// GetForConsumer loads a reservation scoped by both id and consumer id.
// A missing row and a row owned by someone else are indistinguishable.
func (r *ReservationRepo) GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND consumer_id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id, consumerID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// GetForOperator loads a reservation scoped by both id and operator id.
func (r *ReservationRepo) GetForOperator(ctx context.Context, id, operatorID uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND operator_id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id, operatorID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// StatusUpdate describes one compare-and-swap transition. ConsumerID and
// OperatorID scope the update when non-zero; From is the allowed
// source-status set.
type StatusUpdate struct {
	ID                 uint64
	ConsumerID         uint64
	OperatorID         uint64
	From               []string
	To                 model.ReservationStatus
	CancellationReason string
	CheckedInAt        *time.Time
}

// UpdateStatus applies a transition atomically and reports whether a row
// matched. A false return means the precondition no longer held (or the
// scope did not match) and the caller must fail with invalid_transition
// rather than overwrite.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error) {
	q := `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP()`
	args := []any{u.To}
	if u.CancellationReason != "" {
		q += `, cancellation_reason = ?`
		args = append(args, u.CancellationReason)
	}
	if u.CheckedInAt != nil {
		q += `, checked_in_at = ?`
		args = append(args, u.CheckedInAt.UTC())
	}
	q += ` WHERE id = ?`
	args = append(args, u.ID)
	if u.ConsumerID != 0 {
		q += ` AND consumer_id = ?`
		args = append(args, u.ConsumerID)
	}
	if u.OperatorID != 0 {
		q += ` AND operator_id = ?`
		args = append(args, u.OperatorID)
	}
	q += ` AND status IN (` + placeholders(len(u.From)) + `)`
	for _, st := range u.From {
		args = append(args, st)
	}
	result, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetPaymentStatus records the payment provider's view of a reservation.
func (r *ReservationRepo) SetPaymentStatus(ctx context.Context, id uint64, status model.PaymentStatus) error {
	const q = `UPDATE reservations SET payment_status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, status, id)
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

// CountOccupying counts reservations in the given statuses whose window
// overlaps w (half-open intersection), optionally excluding one
// reservation id — used when re-checking an existing reservation.
func (r *ReservationRepo) CountOccupying(ctx context.Context, resourceID uint64, w model.Window, excludeID uint64, statuses []string) (int, error) {
	q := `SELECT COUNT(*) FROM reservations
	      WHERE resource_id = ?
	        AND status IN (` + placeholders(len(statuses)) + `)
	        AND starts_at < ? AND ends_at > ?`
	args := []any{resourceID}
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, w.End.UTC(), w.Start.UTC())
	if excludeID != 0 {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListByConsumer returns the consumer's reservations, newest first.
func (r *ReservationRepo) ListByConsumer(ctx context.Context, consumerID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE consumer_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, consumerID)
}

// ListByResourceForOperator returns a resource's reservations for its
// operator, newest first. The operator scope is part of the WHERE clause:
// a resource owned by someone else yields an empty list, not an error.
func (r *ReservationRepo) ListByResourceForOperator(ctx context.Context, resourceID, operatorID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	           WHERE resource_id = ? AND operator_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, resourceID, operatorID)
}

// ListPastProcessingDeadline returns reservations still awaiting operator
// action whose processing deadline has passed. The sweeper drives these
// to expired.
func (r *ReservationRepo) ListPastProcessingDeadline(ctx context.Context, statuses []string, now time.Time, limit int) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE status IN (` + placeholders(len(statuses)) + `)
	        AND processing_deadline IS NOT NULL AND processing_deadline <= ?
	      ORDER BY processing_deadline ASC LIMIT ?`
	args := make([]any, 0, len(statuses)+2)
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, now.UTC(), limit)
	return r.list(ctx, q, args...)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
