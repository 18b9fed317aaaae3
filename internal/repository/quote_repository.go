package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
)

// QuoteRepo provides data access to quote requests and their message
// threads. Status flips follow the same compare-and-swap discipline as
// reservations; quote acceptance additionally creates the converted
// reservation inside one transaction so the stamp and the row cannot
// drift apart.
type QuoteRepo struct {
	db *sql.DB
}

// NewQuoteRepo returns a QuoteRepo bound to the given database.
func NewQuoteRepo(db *sql.DB) *QuoteRepo { return &QuoteRepo{db: db} }

const quoteColumns = `id, operator_id, consumer_id, resource_id, party_size,
	starts_at, ends_at, status, acknowledge_deadline, quote_deadline,
	amount_quoted_subunits, converted_to_reservation_id, created_at, updated_at`

func scanQuote(s rowScanner) (*model.QuoteRequest, error) {
	var (
		q           model.QuoteRequest
		quoteDl     sql.NullTime
		amount      sql.NullInt64
		convertedID sql.NullInt64
	)
	err := s.Scan(
		&q.ID, &q.OperatorID, &q.ConsumerID, &q.ResourceID, &q.PartySize,
		&q.Start, &q.End, &q.Status, &q.AcknowledgeDeadline, &quoteDl,
		&amount, &convertedID, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if quoteDl.Valid {
		t := quoteDl.Time.UTC()
		q.QuoteDeadline = &t
	}
	if amount.Valid {
		v := amount.Int64
		q.AmountQuotedSubunits = &v
	}
	if convertedID.Valid {
		v := uint64(convertedID.Int64)
		q.ConvertedToReservationID = &v
	}
	return &q, nil
}

// Insert creates a submitted quote request.
func (r *QuoteRepo) Insert(ctx context.Context, q *model.QuoteRequest) error {
	const stmt = `INSERT INTO quote_requests
		(operator_id, consumer_id, resource_id, party_size, starts_at, ends_at,
		 status, acknowledge_deadline)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, stmt,
		q.OperatorID, q.ConsumerID, q.ResourceID, q.PartySize,
		q.Start.UTC(), q.End.UTC(), q.Status, q.AcknowledgeDeadline.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	q.ID = uint64(id)
	return nil
}

// GetForConsumer loads a quote scoped by both id and consumer id.
func (r *QuoteRepo) GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.QuoteRequest, error) {
	const q = `SELECT ` + quoteColumns + ` FROM quote_requests WHERE id = ? AND consumer_id = ?`
	res, err := scanQuote(r.db.QueryRowContext(ctx, q, id, consumerID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// GetForOperator loads a quote scoped by both id and operator id.
func (r *QuoteRepo) GetForOperator(ctx context.Context, id, operatorID uint64) (*model.QuoteRequest, error) {
	const q = `SELECT ` + quoteColumns + ` FROM quote_requests WHERE id = ? AND operator_id = ?`
	res, err := scanQuote(r.db.QueryRowContext(ctx, q, id, operatorID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// Acknowledge flips a submitted quote to acknowledged and stamps the
// quote deadline. Returns false when the quote was not submitted or not
// the operator's.
func (r *QuoteRepo) Acknowledge(ctx context.Context, id, operatorID uint64, quoteDeadline time.Time) (bool, error) {
	const q = `UPDATE quote_requests
		SET status = ?, quote_deadline = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND operator_id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q,
		model.QuoteAcknowledged, quoteDeadline.UTC(), id, operatorID, model.QuoteSubmitted)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkQuoteSent flips an acknowledged quote to quote_sent with the quoted
// amount.
func (r *QuoteRepo) MarkQuoteSent(ctx context.Context, id, operatorID uint64, amountSubunits int64) (bool, error) {
	const q = `UPDATE quote_requests
		SET status = ?, amount_quoted_subunits = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND operator_id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q,
		model.QuoteSent, amountSubunits, id, operatorID, model.QuoteAcknowledged)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// Decline flips a quote_sent quote to quote_declined, scoped by consumer.
func (r *QuoteRepo) Decline(ctx context.Context, id, consumerID uint64) (bool, error) {
	const q = `UPDATE quote_requests
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND consumer_id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q,
		model.QuoteDeclined, id, consumerID, model.QuoteSent)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// Expire drives a quote past one of its deadlines to expired. The from
// status guards against racing a live operator action.
func (r *QuoteRepo) Expire(ctx context.Context, id uint64, from model.QuoteStatus) (bool, error) {
	const q = `UPDATE quote_requests
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q, model.QuoteExpired, id, from)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// Accept converts a quote_sent quote into a confirmed reservation. The
// status flip, the reservation insert and the converted_to stamp run in
// one transaction; the flip is the compare-and-swap that makes a second
// concurrent accept lose cleanly. Returns ErrConflict when the quote was
// not in quote_sent for this consumer.
func (r *QuoteRepo) Accept(ctx context.Context, id, consumerID uint64, reservations *ReservationRepo, res *model.Reservation) error {
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

	const flip = `UPDATE quote_requests
		SET status = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND consumer_id = ? AND status = ?`
	result, err := tx.ExecContext(ctx, flip, model.QuoteAccepted, id, consumerID, model.QuoteSent)
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

	if err := reservations.InsertTx(ctx, tx, res); err != nil {
		return err
	}

	const stamp = `UPDATE quote_requests SET converted_to_reservation_id = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, stamp, res.ID, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// InsertMessage appends a message to a quote's thread.
func (r *QuoteRepo) InsertMessage(ctx context.Context, m *model.QuoteMessage) error {
	attachments := "[]"
	if len(m.Attachments) > 0 {
		b, err := json.Marshal(m.Attachments)
		if err != nil {
			return err
		}
		attachments = string(b)
	}
	const q = `INSERT INTO quote_messages (quote_id, sender, sender_id, content, attachments)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, m.QuoteID, m.Sender, m.SenderID, m.Content, attachments)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// ListMessages returns a quote's thread in chronological order.
func (r *QuoteRepo) ListMessages(ctx context.Context, quoteID uint64) ([]model.QuoteMessage, error) {
	const q = `SELECT id, quote_id, sender, sender_id, content, attachments, created_at
	           FROM quote_messages WHERE quote_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.QuoteMessage, 0)
	for rows.Next() {
		var (
			m   model.QuoteMessage
			raw string
		)
		if err := rows.Scan(&m.ID, &m.QuoteID, &m.Sender, &m.SenderID, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, err
		}
		if raw != "" {
			_ = json.Unmarshal([]byte(raw), &m.Attachments)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListPastAcknowledgeDeadline returns submitted quotes whose acknowledge
// deadline has passed.
func (r *QuoteRepo) ListPastAcknowledgeDeadline(ctx context.Context, now time.Time, limit int) ([]model.QuoteRequest, error) {
	const q = `SELECT ` + quoteColumns + ` FROM quote_requests
	           WHERE status = ? AND acknowledge_deadline <= ?
	           ORDER BY acknowledge_deadline ASC LIMIT ?`
	return r.list(ctx, q, model.QuoteSubmitted, now.UTC(), limit)
}

// ListPastQuoteDeadline returns acknowledged quotes whose quote deadline
// has passed.
func (r *QuoteRepo) ListPastQuoteDeadline(ctx context.Context, now time.Time, limit int) ([]model.QuoteRequest, error) {
	const q = `SELECT ` + quoteColumns + ` FROM quote_requests
	           WHERE status = ? AND quote_deadline IS NOT NULL AND quote_deadline <= ?
	           ORDER BY quote_deadline ASC LIMIT ?`
	return r.list(ctx, q, model.QuoteAcknowledged, now.UTC(), limit)
}

func (r *QuoteRepo) list(ctx context.Context, q string, args ...any) ([]model.QuoteRequest, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.QuoteRequest, 0)
	for rows.Next() {
		res, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
