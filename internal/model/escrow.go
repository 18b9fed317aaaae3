package model

import "time"

// EscrowStatus is the state of a hold. A reservation has at most one
// non-terminal hold at any time, enforced by a unique key on
// escrow_holds.reservation_id.
type EscrowStatus string

const (
	EscrowHeld    EscrowStatus = "held"
	EscrowSettled EscrowStatus = "settled"
	EscrowFailed  EscrowStatus = "failed"
)

// SettleReason records which transition resolved a hold.
type SettleReason string

const (
	SettleCheckin SettleReason = "checkin"
	SettleCancel  SettleReason = "cancel"
	SettleNoShow  SettleReason = "noshow"
)

// EscrowHold is the bookkeeping row for funds captured against a
// reservation deposit. Actual fund movement is delegated to the payment
// provider and assumed idempotent per (reservation, reason).
type EscrowHold struct {
	ID              uint64        // escrow_holds.id
	ReservationID   uint64        // escrow_holds.reservation_id (unique)
	AmountSubunits  int64         // escrow_holds.amount_subunits
	Currency        string        // escrow_holds.currency
	Status          EscrowStatus  // escrow_holds.status
	Reason          *SettleReason // escrow_holds.reason (set on settlement)
	RefundPercent   *int          // escrow_holds.refund_percent (0-100, set on settlement)
	PenaltySubunits *int64        // escrow_holds.penalty_subunits (set on settlement)
	SettledAt       *time.Time    // escrow_holds.settled_at
	CreatedAt       time.Time     // escrow_holds.created_at
	UpdatedAt       time.Time     // escrow_holds.updated_at
}

// Penalty computes the operator-captured share of a deposit for a given
// refund percent. Integer subunits; the division truncates, which always
// favours the consumer by at most one subunit.
func Penalty(depositSubunits int64, refundPercent int) int64 {
	if refundPercent < 0 {
		refundPercent = 0
	}
	if refundPercent > 100 {
		refundPercent = 100
	}
	return depositSubunits * int64(100-refundPercent) / 100
}
