package model

import "time"

// DateRange is a half-open stay interval [CheckIn, CheckOut).  A checkout day
// may equal the next stay's check-in day without the two overlapping.
type DateRange struct {
	CheckIn  time.Time `json:"checkIn"`
	CheckOut time.Time `json:"checkOut"`
}

// Valid reports whether CheckIn strictly precedes CheckOut.
func (r DateRange) Valid() bool {
	return r.CheckIn.Before(r.CheckOut)
}

// Overlaps reports whether r and o intersect.  The test is symmetric:
// r.Overlaps(o) == o.Overlaps(r).
func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && r.CheckOut.After(o.CheckIn)
}

// Nights returns the number of whole nights covered by the range.
func (r DateRange) Nights() int {
	if !r.Valid() {
		return 0
	}
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}
