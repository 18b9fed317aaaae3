package model

import "time"

// WaitlistStatus is the lifecycle state of a queue entry.
type WaitlistStatus string

const (
	WaitlistWaiting      WaitlistStatus = "waiting"
	WaitlistQueued       WaitlistStatus = "queued"
	WaitlistOfferSent    WaitlistStatus = "offer_sent"
	WaitlistOfferExpired WaitlistStatus = "offer_expired"
	WaitlistConverted    WaitlistStatus = "converted"
	WaitlistCancelled    WaitlistStatus = "cancelled"
)

// WaitlistEntry links a queued consumer to a slot. Position orders the
// queue (lower = earlier); ties are broken by creation time. Each entry
// is created in lock-step with a pending reservation row so conversion is
// a status flip, not an insert.
type WaitlistEntry struct {
	ID             uint64         // waitlist_entries.id
	SlotID         uint64         // waitlist_entries.slot_id
	ResourceID     uint64         // waitlist_entries.resource_id
	ConsumerID     uint64         // waitlist_entries.consumer_id
	ReservationID  uint64         // waitlist_entries.reservation_id (linked pending reservation)
	Position       uint32         // waitlist_entries.position
	Status         WaitlistStatus // waitlist_entries.status
	OfferToken     *string        // waitlist_entries.offer_token (set while an offer is outstanding)
	OfferExpiresAt *time.Time     // waitlist_entries.offer_expires_at
	CreatedAt      time.Time      // waitlist_entries.created_at
	UpdatedAt      time.Time      // waitlist_entries.updated_at
}

// Eligible reports whether the entry may receive an offer.
func (e *WaitlistEntry) Eligible() bool {
	return e.Status == WaitlistWaiting || e.Status == WaitlistQueued
}

// NextCandidate selects the entry to promote next: the eligible entry
// with the lowest position, tie-broken by earliest creation time. It
// returns nil when no entry is eligible. The SQL in the waitlist
// repository mirrors this ordering; the function exists so the promotion
// rule is testable without a database.
func NextCandidate(entries []WaitlistEntry) *WaitlistEntry {
	var best *WaitlistEntry
	for i := range entries {
		e := &entries[i]
		if !e.Eligible() {
			continue
		}
		if best == nil ||
			e.Position < best.Position ||
			(e.Position == best.Position && e.CreatedAt.Before(best.CreatedAt)) {
			best = e
		}
	}
	return best
}
