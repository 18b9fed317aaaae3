package model

import (
	"math"
	"time"
)

// OperatorPolicy is the per-operator cancellation configuration read at
// transition time. Hard-coded defaults apply when an operator has no row
// in the policy store.
type OperatorPolicy struct {
	FreeCancellationHours      int  // operator_policies.free_cancellation_hours
	CancellationPenaltyPercent int  // operator_policies.cancellation_penalty_percent
	NoShowPenaltyPercent       int  // operator_policies.no_show_penalty_percent
	NoShowAlways100Guaranteed  bool // operator_policies.no_show_always_100_guaranteed
}

// DefaultPolicy returns the platform defaults: 24h free cancellation,
// 50% late-cancellation penalty, 100% no-show penalty, no-show always
// fully charged when a deposit is guaranteed.
func DefaultPolicy() OperatorPolicy {
	return OperatorPolicy{
		FreeCancellationHours:      24,
		CancellationPenaltyPercent: 50,
		NoShowPenaltyPercent:       100,
		NoShowAlways100Guaranteed:  true,
	}
}

// RefundPercentOnCancel returns the consumer's refund percentage for a
// cancellation happening at `now` for a reservation starting at `start`.
// At or beyond the free-cancellation horizon the refund is full;
// inside it the configured penalty applies.
func (p OperatorPolicy) RefundPercentOnCancel(now, start time.Time) int {
	hoursToStart := start.Sub(now).Hours()
	if hoursToStart >= float64(p.FreeCancellationHours) {
		return 100
	}
	return clampPercent(100 - p.CancellationPenaltyPercent)
}

// RefundPercentOnNoShow returns the consumer's refund percentage when the
// operator marks a no-show. With no_show_always_100_guaranteed and a
// deposit on file, the whole deposit is forfeited regardless of the
// configured penalty.
func (p OperatorPolicy) RefundPercentOnNoShow(hasDeposit bool) int {
	if p.NoShowAlways100Guaranteed && hasDeposit {
		return 0
	}
	return clampPercent(100 - p.NoShowPenaltyPercent)
}

// HoursToStart is a convenience wrapper used by audit records.
func HoursToStart(now, start time.Time) float64 {
	return math.Round(start.Sub(now).Hours()*100) / 100
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
