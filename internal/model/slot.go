package model

import "time"

// Window is a half-open time interval [Start, End). All overlap
// arithmetic in the engine goes through Overlaps so the half-open
// convention lives in exactly one place.
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect:
// start < otherEnd && end > otherStart.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool { return w.End.After(w.Start) }

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// SlotSource records how a slot came to exist: generated from a weekly
// template or created for a specific calendar date.
type SlotSource string

const (
	SlotFromTemplate SlotSource = "template"
	SlotFromDate     SlotSource = "date"
)

// Slot is a concrete bookable window for a resource. Waitlist entries are
// slot-scoped, which is what makes cross-slot promotion safe to run in
// parallel.
type Slot struct {
	ID         uint64     // slots.id
	ResourceID uint64     // slots.resource_id
	Window                // slots.starts_at / slots.ends_at
	Source     SlotSource // slots.source
	CreatedAt  time.Time  // slots.created_at
}
