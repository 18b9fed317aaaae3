package model

import "time"

// ReservationType distinguishes the normal admission path from the
// negotiated group-quote conversion, which is the only way a reservation
// is created outside the capacity check.
type ReservationType string

const (
	TypeStandard   ReservationType = "standard"
	TypeGroupQuote ReservationType = "group_quote"
)

// Reservation is the central entity of the engine. It is owned by the
// consumer who created it and mutated by the consumer (cancel), the
// operator (accept/refuse/check-in/no-show) or the deadline sweeper
// (timeout transitions). Rows are never physically deleted; terminal
// states are retained for audit.
type Reservation struct {
	ID                 uint64            // reservations.id
	ResourceID         uint64            // reservations.resource_id
	SlotID             *uint64           // reservations.slot_id (nullable; rentals book free windows)
	ConsumerID         uint64            // reservations.consumer_id
	OperatorID         uint64            // reservations.operator_id (denormalised for scoped updates)
	PartySize          uint32            // reservations.party_size
	Window                               // reservations.starts_at / reservations.ends_at
	StockPool          StockPool         // reservations.stock_pool
	Type               ReservationType   // reservations.type
	AmountTotal        int64             // reservations.amount_total (currency subunits)
	AmountDeposit      int64             // reservations.amount_deposit (currency subunits)
	Currency           string            // reservations.currency
	Status             ReservationStatus // reservations.status
	PaymentStatus      PaymentStatus     // reservations.payment_status
	ProcessingDeadline *time.Time        // reservations.processing_deadline (operator acceptance SLA)
	CheckedInAt        *time.Time        // reservations.checked_in_at (nullable)
	CancellationReason *string           // reservations.cancellation_reason (nullable)
	Metadata           map[string]any    // reservations.metadata (JSON; workflow flags such as guarantee_required)
	CreatedAt          time.Time         // reservations.created_at
	UpdatedAt          time.Time         // reservations.updated_at
}

// GuaranteeRequired reports whether the opaque metadata bag carries the
// guarantee_required flag, which forces a deposit at admission.
func (r *Reservation) GuaranteeRequired() bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["guarantee_required"].(bool)
	return ok && v
}
