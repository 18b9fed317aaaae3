package model

import "time"

// StockPool names a partition of a resource's total capacity. Group-quote
// conversions always land in the paid pool.
type StockPool string

const (
	PoolPaid   StockPool = "paid_stock"
	PoolFree   StockPool = "free_stock"
	PoolBuffer StockPool = "buffer_stock"
)

// ResourceKind distinguishes the bookable entity types handled by the
// engine. Pricing helpers only apply to rental resources; the lifecycle
// and capacity rules are shared.
type ResourceKind string

const (
	KindTableService ResourceKind = "table_service"
	KindRental       ResourceKind = "rental"
	KindEventSlot    ResourceKind = "event_slot"
)

// Resource is an operator-owned bookable entity with a fixed total
// quantity, partitioned into stock pools expressed as percentages of the
// total. A resource is never physically deleted while reservations
// reference it; DeletedAt marks a soft delete and Active gates admission.
type Resource struct {
	ID                 uint64       // resources.id
	OperatorID         uint64       // resources.operator_id
	Name               string       // resources.name
	Kind               ResourceKind // resources.kind
	Quantity           uint32       // resources.quantity (total concurrent units)
	PaidStockPercent   uint8        // resources.paid_stock_percent
	FreeStockPercent   uint8        // resources.free_stock_percent
	BufferStockPercent uint8        // resources.buffer_stock_percent
	DepositSubunits    int64        // resources.deposit_subunits (0 = no plan configured)
	Currency           string       // resources.currency (ISO 4217)
	Active             bool         // resources.active
	DeletedAt          *time.Time   // resources.deleted_at (nullable)
	CreatedAt          time.Time    // resources.created_at
	UpdatedAt          time.Time    // resources.updated_at
}

// DateBlock is an operator-defined window during which a resource accepts
// no reservations (maintenance, private events). Any overlap with a
// requested window makes the resource unavailable.
type DateBlock struct {
	ID         uint64 // resource_date_blocks.id
	ResourceID uint64 // resource_date_blocks.resource_id
	Window            // blocked interval
	Reason     string // resource_date_blocks.reason
}
