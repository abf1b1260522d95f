package service

import (
	"errors"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// Client-facing messages.  Handlers return them verbatim.
const (
	MsgUnavailable   = "property not available for selected dates"
	MsgInvalidRange  = "invalid date range"
	MsgPastCheckIn   = "check-in date is in the past"
	MsgMissingGuest  = "missing required guest field"
	MsgNotBookable   = "property is not open for booking"
	MsgTooManyGuests = "guest count exceeds property capacity"
	MsgInvalidStatus = "invalid booking status"
)

// ErrInvalidRange is returned by the availability checker when checkIn does
// not precede checkOut.
var ErrInvalidRange = errors.New(MsgInvalidRange)

// ValidationError reports client-correctable input problems.  Message is the
// first problem found; Fields maps every offending field to its message.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
	if e.Message == "" {
		e.Message = msg
	}
}

func (e *ValidationError) orNil() error {
	if e.Message == "" {
		return nil
	}
	return e
}

func invalid(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.add(field, msg)
	return e
}

// ConflictError is returned when the requested stay overlaps active
// bookings.  BookedDates lists the overlapping ranges.
type ConflictError struct {
	BookedDates []model.DateRange
}

func (e *ConflictError) Error() string { return MsgUnavailable }
