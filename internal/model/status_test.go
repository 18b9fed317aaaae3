package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOccupyingAndTerminalAreDisjoint(t *testing.T) {
	for s := range Occupying {
		assert.False(t, Terminal.Contains(s), "%s cannot be both occupying and terminal", s)
	}
}

func TestOccupyingExcludesWaitlistStates(t *testing.T) {
	// Parked and offered waitlist reservations never count against
	// capacity; only acceptance (confirmed) does.
	assert.False(t, Occupying.Contains(StatusWaitlist))
	assert.False(t, Occupying.Contains(StatusPendingWaitlist))
}

func TestStatusSetMembership(t *testing.T) {
	cases := []struct {
		name string
		set  StatusSet
		in   []ReservationStatus
		out  []ReservationStatus
	}{
		{
			name: "occupying",
			set:  Occupying,
			in:   []ReservationStatus{StatusRequested, StatusPendingProValidation, StatusConfirmed},
			out:  []ReservationStatus{StatusConsumed, StatusExpired, StatusWaitlist, StatusCancelledUser},
		},
		{
			name: "acceptable",
			set:  Acceptable,
			in:   []ReservationStatus{StatusRequested, StatusPendingProValidation},
			out:  []ReservationStatus{StatusConfirmed, StatusConsumed, StatusRefused},
		},
		{
			name: "cancellable by user",
			set:  CancellableByUser,
			in:   []ReservationStatus{StatusRequested, StatusConfirmed, StatusWaitlist, StatusPendingWaitlist},
			out:  []ReservationStatus{StatusConsumed, StatusNoShow, StatusExpired},
		},
		{
			name: "cancellable by operator",
			set:  CancellableByOperator,
			in:   []ReservationStatus{StatusRequested, StatusConfirmed},
			out:  []ReservationStatus{StatusWaitlist, StatusConsumed, StatusCancelledUser},
		},
		{
			name: "terminal",
			set:  Terminal,
			in:   []ReservationStatus{StatusConsumed, StatusNoShow, StatusRefused, StatusCancelledUser, StatusCancelledPro, StatusCancelledWaitlist, StatusExpired},
			out:  []ReservationStatus{StatusRequested, StatusConfirmed, StatusWaitlist},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, s := range tc.in {
				assert.True(t, tc.set.Contains(s), "%s should be in set", s)
			}
			for _, s := range tc.out {
				assert.False(t, tc.set.Contains(s), "%s should not be in set", s)
			}
		})
	}
}

func TestStatusSetStrings(t *testing.T) {
	got := NewStatusSet(StatusRequested, StatusConfirmed).Strings()
	assert.ElementsMatch(t, []string{"requested", "confirmed"}, got)
}
