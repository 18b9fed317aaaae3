package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefundPercentOnCancel(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultPolicy()

	cases := []struct {
		name        string
		hoursBefore time.Duration
		want        int
	}{
		{"48h before start is free", 48 * time.Hour, 100},
		{"exactly at the 24h horizon is still free", 24 * time.Hour, 100},
		{"2h before start pays the penalty", 2 * time.Hour, 50},
		{"after start pays the penalty", -time.Hour, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := now.Add(tc.hoursBefore)
			assert.Equal(t, tc.want, policy.RefundPercentOnCancel(now, start))
		})
	}
}

func TestRefundPercentOnCancelCustomPenalty(t *testing.T) {
	policy := OperatorPolicy{FreeCancellationHours: 12, CancellationPenaltyPercent: 30}
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 100, policy.RefundPercentOnCancel(now, now.Add(13*time.Hour)))
	assert.Equal(t, 70, policy.RefundPercentOnCancel(now, now.Add(3*time.Hour)))
}

func TestRefundPercentOnNoShow(t *testing.T) {
	guaranteed := DefaultPolicy()
	assert.Equal(t, 0, guaranteed.RefundPercentOnNoShow(true), "guaranteed deposit is fully forfeited")

	lenient := OperatorPolicy{NoShowPenaltyPercent: 40, NoShowAlways100Guaranteed: false}
	assert.Equal(t, 60, lenient.RefundPercentOnNoShow(true))
	assert.Equal(t, 60, lenient.RefundPercentOnNoShow(false))
}

func TestPenalty(t *testing.T) {
	cases := []struct {
		deposit int64
		refund  int
		want    int64
	}{
		{15000, 50, 7500},
		{12000, 0, 12000},
		{5000, 100, 0},
		{5000, 150, 0},  // clamped
		{5000, -20, 5000}, // clamped
		{999, 33, 669},  // truncates in the consumer's favour
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Penalty(tc.deposit, tc.refund), "deposit=%d refund=%d", tc.deposit, tc.refund)
	}
}
