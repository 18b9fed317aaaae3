package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// AuditRecord is one immutable append-only entry describing a state
// transition or an escrow settlement. External reporting consumes these;
// the engine only writes.
type AuditRecord struct {
	EntityType string         // "reservation", "waitlist_entry", "escrow_hold", "quote_request"
	EntityID   uint64         // primary key of the mutated row
	Actor      string         // "consumer:<id>", "operator:<id>", "sweeper", "system"
	Before     string         // status before the transition
	After      string         // status after the transition
	Detail     map[string]any // optional context (refund percent, reason, deadlines)
	OccurredAt time.Time
}

// AuditRepo appends transition records to the audit log. Failures here
// must never block a transition; callers log and continue.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Append writes one record. The table has no update or delete path.
func (r *AuditRepo) Append(ctx context.Context, rec AuditRecord) error {
	detail := any(nil)
	if len(rec.Detail) > 0 {
		b, err := json.Marshal(rec.Detail)
		if err != nil {
			return err
		}
		detail = string(b)
	}
	const q = `INSERT INTO audit_log (entity_type, entity_id, actor, before_status, after_status, detail, occurred_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		rec.EntityType, rec.EntityID, rec.Actor, rec.Before, rec.After, detail, rec.OccurredAt.UTC())
	return err
}
