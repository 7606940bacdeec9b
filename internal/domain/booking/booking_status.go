package booking

import (
	"fmt"
	"slices"
)

// BookingStatus is the persisted approval state of a booking.
type BookingStatus string

const (
	StatusWaiting  BookingStatus = "WAITING"
	StatusApproved BookingStatus = "APPROVED"
	StatusRejected BookingStatus = "REJECTED"
	StatusCanceled BookingStatus = "CANCELED"
)

// allowedNext is the status graph. Who may take an edge is decided in lifecycle.go.
var allowedNext = map[BookingStatus][]BookingStatus{
	StatusWaiting:  {StatusApproved, StatusRejected, StatusCanceled},
	StatusApproved: {StatusRejected, StatusCanceled},
	StatusRejected: nil,
	StatusCanceled: nil,
}

func (s BookingStatus) IsValid() bool {
	_, known := allowedNext[s]
	return known
}

// CanTransitionTo reports whether the graph has an edge from s to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	return slices.Contains(allowedNext[s], target)
}

// IsTerminal reports whether s has no outgoing edges.
func (s BookingStatus) IsTerminal() bool {
	return s.IsValid() && len(allowedNext[s]) == 0
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus validates a status read from storage.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	if s := BookingStatus(raw); s.IsValid() {
		return s, nil
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}
