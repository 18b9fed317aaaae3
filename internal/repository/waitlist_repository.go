package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
)

// WaitlistRepo provides data access to waitlist entries. Entries are
// slot-scoped; position assignment and every status flip are guarded at
// the SQL level so concurrent sweeps and live withdrawals cannot double
// promote or double expire.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, slot_id, resource_id, consumer_id, reservation_id, position,
	status, offer_token, offer_expires_at, created_at, updated_at`

func scanWaitlistEntry(s rowScanner) (*model.WaitlistEntry, error) {
	var (
		e       model.WaitlistEntry
		token   sql.NullString
		expires sql.NullTime
	)
	err := s.Scan(
		&e.ID, &e.SlotID, &e.ResourceID, &e.ConsumerID, &e.ReservationID, &e.Position,
		&e.Status, &token, &expires, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		v := token.String
		e.OfferToken = &v
	}
	if expires.Valid {
		t := expires.Time.UTC()
		e.OfferExpiresAt = &t
	}
	return &e, nil
}

// InsertWithReservation creates a waitlist entry and its linked pending
// reservation in one transaction. The entry takes the next position for
// its slot; the reservation row is inserted with the waitlist status and
// therefore holds no capacity.
func (r *WaitlistRepo) InsertWithReservation(ctx context.Context, reservations *ReservationRepo, res *model.Reservation, entry *model.WaitlistEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := reservations.InsertTx(ctx, tx, res); err != nil {
		return err
	}
	entry.ReservationID = res.ID

	const q = `INSERT INTO waitlist_entries
		(slot_id, resource_id, consumer_id, reservation_id, position, status)
	SELECT ?, ?, ?, ?, COALESCE(MAX(position), 0) + 1, ?
	FROM waitlist_entries WHERE slot_id = ?`
	result, err := tx.ExecContext(ctx, q,
		entry.SlotID, entry.ResourceID, entry.ConsumerID, entry.ReservationID,
		entry.Status, entry.SlotID,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = uint64(id)

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// NextEligible returns the entry to promote for a slot: lowest position,
// earliest created, among waiting/queued. ErrNotFound when the queue has
// no eligible entry.
func (r *WaitlistRepo) NextEligible(ctx context.Context, slotID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE slot_id = ? AND status IN (?, ?)
	           ORDER BY position ASC, created_at ASC LIMIT 1`
	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, q, slotID,
		model.WaitlistWaiting, model.WaitlistQueued))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// MarkOfferSent flips an eligible entry to offer_sent with a fresh token
// and expiry. Returns false when the entry was no longer eligible.
func (r *WaitlistRepo) MarkOfferSent(ctx context.Context, entryID uint64, token string, expiresAt time.Time) (bool, error) {
	const q = `UPDATE waitlist_entries
		SET status = ?, offer_token = ?, offer_expires_at = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status IN (?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		model.WaitlistOfferSent, token, expiresAt.UTC(), entryID,
		model.WaitlistWaiting, model.WaitlistQueued)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkOfferExpired flips an offer_sent entry to offer_expired. The CAS
// guard makes concurrent sweep invocations process each offer once.
func (r *WaitlistRepo) MarkOfferExpired(ctx context.Context, entryID uint64) (bool, error) {
	return r.casStatus(ctx, entryID, model.WaitlistOfferSent, model.WaitlistOfferExpired)
}

// MarkConverted flips an offer_sent entry to converted when the consumer
// accepts in time.
func (r *WaitlistRepo) MarkConverted(ctx context.Context, entryID uint64) (bool, error) {
	return r.casStatus(ctx, entryID, model.WaitlistOfferSent, model.WaitlistConverted)
}

func (r *WaitlistRepo) casStatus(ctx context.Context, entryID uint64, from, to model.WaitlistStatus) (bool, error) {
	const q = `UPDATE waitlist_entries
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q, to, entryID, from)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkCancelled withdraws a consumer's own entry from the queue.
func (r *WaitlistRepo) MarkCancelled(ctx context.Context, entryID, consumerID uint64) (bool, error) {
	const q = `UPDATE waitlist_entries
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND consumer_id = ? AND status IN (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		model.WaitlistCancelled, entryID, consumerID,
		model.WaitlistWaiting, model.WaitlistQueued, model.WaitlistOfferSent)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// GetByToken loads an entry by its offer token, scoped by consumer.
func (r *WaitlistRepo) GetByToken(ctx context.Context, token string, consumerID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE offer_token = ? AND consumer_id = ?`
	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, q, token, consumerID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// GetForConsumer loads an entry scoped by both id and consumer id.
func (r *WaitlistRepo) GetForConsumer(ctx context.Context, entryID, consumerID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE id = ? AND consumer_id = ?`
	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, q, entryID, consumerID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// ListBySlot returns all entries for a slot in promotion order.
func (r *WaitlistRepo) ListBySlot(ctx context.Context, slotID uint64) ([]model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE slot_id = ? ORDER BY position ASC, created_at ASC`
	return r.list(ctx, q, slotID)
}

// ListExpiredOffers returns entries whose outstanding offer has passed
// its expiry, oldest first.
func (r *WaitlistRepo) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]model.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
	           WHERE status = ? AND offer_expires_at <= ?
	           ORDER BY offer_expires_at ASC LIMIT ?`
	return r.list(ctx, q, model.WaitlistOfferSent, now.UTC(), limit)
}

func (r *WaitlistRepo) list(ctx context.Context, q string, args ...any) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// CancelByReservation withdraws the entry linked to a reservation when
// the consumer cancels the reservation directly instead of leaving the
// queue. Zero rows matched is fine: not every reservation has an entry.
func (r *WaitlistRepo) CancelByReservation(ctx context.Context, reservationID uint64) error {
	const q = `UPDATE waitlist_entries
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE reservation_id = ? AND status IN (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		model.WaitlistCancelled, reservationID,
		model.WaitlistWaiting, model.WaitlistQueued, model.WaitlistOfferSent)
	return err
}
