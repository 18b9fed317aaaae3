package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id uint64, pos uint32, status WaitlistStatus, created time.Time) WaitlistEntry {
	return WaitlistEntry{ID: id, Position: pos, Status: status, CreatedAt: created}
}

func TestNextCandidateFIFO(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	entries := []WaitlistEntry{
		entry(3, 3, WaitlistWaiting, base.Add(3*time.Minute)),
		entry(1, 1, WaitlistConverted, base),
		entry(2, 2, WaitlistQueued, base.Add(2*time.Minute)),
	}
	got := NextCandidate(entries)
	require.NotNil(t, got)
	assert.Equal(t, uint64(2), got.ID, "lowest eligible position wins")
}

func TestNextCandidateTieBreaksOnCreation(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	entries := []WaitlistEntry{
		entry(7, 5, WaitlistWaiting, base.Add(time.Minute)),
		entry(8, 5, WaitlistWaiting, base),
	}
	got := NextCandidate(entries)
	require.NotNil(t, got)
	assert.Equal(t, uint64(8), got.ID)
}

func TestNextCandidateSkipsIneligible(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	entries := []WaitlistEntry{
		entry(1, 1, WaitlistOfferSent, base),
		entry(2, 2, WaitlistOfferExpired, base),
		entry(3, 3, WaitlistCancelled, base),
	}
	assert.Nil(t, NextCandidate(entries))
	assert.Nil(t, NextCandidate(nil))
}

func TestEligible(t *testing.T) {
	for status, want := range map[WaitlistStatus]bool{
		WaitlistWaiting:      true,
		WaitlistQueued:       true,
		WaitlistOfferSent:    false,
		WaitlistOfferExpired: false,
		WaitlistConverted:    false,
		WaitlistCancelled:    false,
	} {
		e := WaitlistEntry{Status: status}
		assert.Equal(t, want, e.Eligible(), "status %s", status)
	}
}
