package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func win(startHour, endHour int) Window {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: base.Add(time.Duration(startHour) * time.Hour), End: base.Add(time.Duration(endHour) * time.Hour)}
}

func TestWindowOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Window
		want bool
	}{
		{"identical", win(10, 12), win(10, 12), true},
		{"partial overlap", win(10, 12), win(11, 13), true},
		{"contained", win(10, 14), win(11, 12), true},
		{"touching end-to-start", win(10, 12), win(12, 14), false},
		{"touching start-to-end", win(12, 14), win(10, 12), false},
		{"disjoint", win(8, 9), win(10, 11), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "overlap must be symmetric")
		})
	}
}

func TestWindowValid(t *testing.T) {
	assert.True(t, win(10, 11).Valid())
	assert.False(t, win(11, 11).Valid())
	assert.False(t, win(12, 11).Valid())
}
