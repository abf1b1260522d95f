package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func r(in, out string) DateRange {
	ci, _ := time.Parse(time.DateOnly, in)
	co, _ := time.Parse(time.DateOnly, out)
	return DateRange{CheckIn: ci, CheckOut: co}
}

func TestDateRangeOverlaps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b DateRange
		want bool
	}{
		{name: "partial overlap", a: r("2024-07-10", "2024-07-15"), b: r("2024-07-14", "2024-07-18"), want: true},
		{name: "back to back", a: r("2024-07-10", "2024-07-15"), b: r("2024-07-15", "2024-07-18"), want: false},
		{name: "disjoint", a: r("2024-07-10", "2024-07-12"), b: r("2024-08-01", "2024-08-03"), want: false},
		{name: "contained", a: r("2024-07-01", "2024-07-31"), b: r("2024-07-10", "2024-07-11"), want: true},
		{name: "identical", a: r("2024-07-10", "2024-07-15"), b: r("2024-07-10", "2024-07-15"), want: true},
		{name: "same start", a: r("2024-07-10", "2024-07-11"), b: r("2024-07-10", "2024-07-20"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.a.Overlaps(tt.b), tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestDateRangeValidAndNights(t *testing.T) {
	t.Parallel()
	assert.True(t, r("2024-07-10", "2024-07-15").Valid())
	assert.False(t, r("2024-07-15", "2024-07-15").Valid())
	assert.False(t, r("2024-07-16", "2024-07-15").Valid())

	assert.Equal(t, 5, r("2024-07-10", "2024-07-15").Nights())
	assert.Equal(t, 0, r("2024-07-16", "2024-07-15").Nights())
}

func TestStatuses(t *testing.T) {
	t.Parallel()
	assert.True(t, BookingBlocked.Active())
	assert.False(t, BookingCancelled.Active())
	assert.True(t, BookingPending.Open())
	assert.True(t, BookingConfirmed.Open())
	assert.False(t, BookingCompleted.Open())
	assert.False(t, BookingBlocked.Open())
	assert.False(t, BookingStatus("archived").Valid())

	p := Property{Status: PropertyApproved, IsActive: true, IsPublished: false}
	assert.False(t, p.Public())
	p.IsPublished = true
	assert.True(t, p.Public())
}
