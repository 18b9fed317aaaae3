package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
)

// ResourceRepo provides data access to resources, their date blocks and
// their slots. Resources are soft-deleted only: a delete flips active off
// and stamps deleted_at, because reservations keep referencing the row.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// DB exposes the underlying handle for cross-repository transactions.
func (r *ResourceRepo) DB() *sql.DB { return r.db }

const resourceColumns = `id, operator_id, name, kind, quantity,
	paid_stock_percent, free_stock_percent, buffer_stock_percent,
	deposit_subunits, currency, active, deleted_at, created_at, updated_at`

func scanResource(s rowScanner) (*model.Resource, error) {
	var (
		res       model.Resource
		deletedAt sql.NullTime
	)
	err := s.Scan(
		&res.ID, &res.OperatorID, &res.Name, &res.Kind, &res.Quantity,
		&res.PaidStockPercent, &res.FreeStockPercent, &res.BufferStockPercent,
		&res.DepositSubunits, &res.Currency, &res.Active, &deletedAt,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		res.DeletedAt = &t
	}
	return &res, nil
}

// GetByID loads a resource regardless of owner. Soft-deleted rows are
// still returned; callers gate on Active.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// GetForOperator loads a resource scoped by both id and operator id.
func (r *ResourceRepo) GetForOperator(ctx context.Context, id, operatorID uint64) (*model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources WHERE id = ? AND operator_id = ?`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id, operatorID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return res, err
}

// ListByOperator returns all of an operator's resources, including
// deactivated ones, newest first.
func (r *ResourceRepo) ListByOperator(ctx context.Context, operatorID uint64) ([]model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources
	           WHERE operator_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, operatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// Create inserts a new resource and populates its generated ID and
// timestamps.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `INSERT INTO resources
		(operator_id, name, kind, quantity, paid_stock_percent, free_stock_percent,
		 buffer_stock_percent, deposit_subunits, currency, active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		res.OperatorID, res.Name, res.Kind, res.Quantity,
		res.PaidStockPercent, res.FreeStockPercent, res.BufferStockPercent,
		res.DepositSubunits, res.Currency, res.Active,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	const sel = `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	loaded, err := scanResource(r.db.QueryRowContext(ctx, sel, res.ID))
	if err != nil {
		return err
	}
	*res = *loaded
	return nil
}

// Update applies an explicit operator edit, scoped by owner.
func (r *ResourceRepo) Update(ctx context.Context, res *model.Resource) error {
	const q = `UPDATE resources
		SET name = ?, quantity = ?, paid_stock_percent = ?, free_stock_percent = ?,
		    buffer_stock_percent = ?, deposit_subunits = ?, active = ?,
		    updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND operator_id = ?`
	result, err := r.db.ExecContext(ctx, q,
		res.Name, res.Quantity, res.PaidStockPercent, res.FreeStockPercent,
		res.BufferStockPercent, res.DepositSubunits, res.Active,
		res.ID, res.OperatorID,
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

// SoftDelete deactivates a resource and stamps deleted_at. The row stays
// because reservations reference it.
func (r *ResourceRepo) SoftDelete(ctx context.Context, id, operatorID uint64) error {
	const q = `UPDATE resources
		SET active = FALSE, deleted_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND operator_id = ? AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, q, id, operatorID)
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

// HasDateBlockOverlap reports whether any operator-defined block
// intersects the window (half-open).
func (r *ResourceRepo) HasDateBlockOverlap(ctx context.Context, resourceID uint64, w model.Window) (bool, error) {
	const q = `SELECT EXISTS(
		SELECT 1 FROM resource_date_blocks
		WHERE resource_id = ? AND starts_at < ? AND ends_at > ?)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, resourceID, w.End.UTC(), w.Start.UTC()).Scan(&exists)
	return exists, err
}

// AddDateBlock records a blocked window for a resource, scoped by owner.
func (r *ResourceRepo) AddDateBlock(ctx context.Context, operatorID uint64, block *model.DateBlock) error {
	// Ownership check is structural: the insert selects from the owner's
	// resource row and matches nothing when the scope fails.
	const q = `INSERT INTO resource_date_blocks (resource_id, starts_at, ends_at, reason)
		SELECT id, ?, ?, ? FROM resources WHERE id = ? AND operator_id = ?`
	result, err := r.db.ExecContext(ctx, q,
		block.Start.UTC(), block.End.UTC(), block.Reason, block.ResourceID, operatorID)
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
	block.ID = uint64(id)
	return nil
}

// CreateSlot inserts a concrete bookable window, scoped by owner.
func (r *ResourceRepo) CreateSlot(ctx context.Context, operatorID uint64, slot *model.Slot) error {
	const q = `INSERT INTO slots (resource_id, starts_at, ends_at, source)
		SELECT id, ?, ?, ? FROM resources WHERE id = ? AND operator_id = ?`
	result, err := r.db.ExecContext(ctx, q,
		slot.Start.UTC(), slot.End.UTC(), slot.Source, slot.ResourceID, operatorID)
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
	slot.ID = uint64(id)
	return nil
}

// GetSlot loads a slot by id.
func (r *ResourceRepo) GetSlot(ctx context.Context, id uint64) (*model.Slot, error) {
	const q = `SELECT id, resource_id, starts_at, ends_at, source, created_at FROM slots WHERE id = ?`
	var s model.Slot
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ResourceID, &s.Start, &s.End, &s.Source, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSlots returns a resource's slots starting after the given time.
func (r *ResourceRepo) ListSlots(ctx context.Context, resourceID uint64, after time.Time) ([]model.Slot, error) {
	const q = `SELECT id, resource_id, starts_at, ends_at, source, created_at
	           FROM slots WHERE resource_id = ? AND starts_at >= ? ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q, resourceID, after.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Slot, 0)
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.ResourceID, &s.Start, &s.End, &s.Source, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
