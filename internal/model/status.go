package model

// ReservationStatus is the canonical lifecycle state of a reservation.
// Statuses are stored verbatim in the reservations.status column; the
// named sets below are the only place where groups of statuses are
// defined, so call sites never re-derive them ad hoc.
type ReservationStatus string

const (
	StatusRequested            ReservationStatus = "requested"
	StatusPendingProValidation ReservationStatus = "pending_pro_validation"
	StatusConfirmed            ReservationStatus = "confirmed"
	StatusConsumed             ReservationStatus = "consumed"
	StatusNoShow               ReservationStatus = "noshow"
	StatusRefused              ReservationStatus = "refused"
	StatusCancelledUser        ReservationStatus = "cancelled_user"
	StatusCancelledPro         ReservationStatus = "cancelled_pro"
	StatusCancelledWaitlist    ReservationStatus = "cancelled_waitlist_expired"
	StatusWaitlist             ReservationStatus = "waitlist"
	StatusPendingWaitlist      ReservationStatus = "pending_waitlist"
	StatusExpired              ReservationStatus = "expired"
)

// StatusSet is an immutable membership set of reservation statuses.
type StatusSet map[ReservationStatus]struct{}

// NewStatusSet builds a StatusSet from the given statuses.
func NewStatusSet(statuses ...ReservationStatus) StatusSet {
	s := make(StatusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// Contains reports whether st is a member of the set.
func (s StatusSet) Contains(st ReservationStatus) bool {
	_, ok := s[st]
	return ok
}

// Strings returns the members as plain strings for use in SQL IN clauses.
// The order is deterministic only in so far as map iteration allows; callers
// must not rely on it.
func (s StatusSet) Strings() []string {
	out := make([]string, 0, len(s))
	for st := range s {
		out = append(out, string(st))
	}
	return out
}

// Named state sets, computed once at package init.
var (
	// Occupying statuses count against a resource's capacity. Waitlisted
	// and pending-waitlist reservations deliberately do not: they hold no
	// unit until an offer converts.
	Occupying = NewStatusSet(StatusRequested, StatusPendingProValidation, StatusConfirmed)

	// Terminal statuses never transition again. Rows in these states are
	// retained for audit and reliability scoring, never deleted.
	Terminal = NewStatusSet(
		StatusConsumed, StatusNoShow, StatusRefused,
		StatusCancelledUser, StatusCancelledPro, StatusCancelledWaitlist,
		StatusExpired,
	)

	// CancellableByUser lists the states from which the consumer may cancel
	// or withdraw. Waitlist states are included so a queued consumer can
	// leave the queue.
	CancellableByUser = NewStatusSet(
		StatusRequested, StatusPendingProValidation, StatusConfirmed,
		StatusWaitlist, StatusPendingWaitlist,
	)

	// CancellableByOperator lists the states from which the operator may
	// cancel on the consumer's behalf.
	CancellableByOperator = NewStatusSet(StatusRequested, StatusPendingProValidation, StatusConfirmed)

	// Acceptable lists the states an operator acceptance starts from.
	Acceptable = NewStatusSet(StatusRequested, StatusPendingProValidation)

	// Refusable lists the states an operator refusal starts from. Refusal
	// is a pre-confirmation action; a confirmed reservation is cancelled,
	// not refused.
	Refusable = NewStatusSet(StatusRequested, StatusPendingProValidation)
)

// IsTerminal reports whether st admits no further transition.
func (st ReservationStatus) IsTerminal() bool { return Terminal.Contains(st) }

// IsOccupying reports whether st counts against capacity.
func (st ReservationStatus) IsOccupying() bool { return Occupying.Contains(st) }

// PaymentStatus tracks the payment side of a reservation independently of
// its lifecycle status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)
