package booking

import (
	"fmt"
	"time"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// Role is the part an actor plays with respect to one booking.
type Role int

const (
	RoleStranger Role = iota
	RoleOwner
	RoleBooker
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleBooker:
		return "booker"
	default:
		return "stranger"
	}
}

// RoleOf returns the role actorID plays for a booking of an item owned by ownerID.
func RoleOf(b *Booking, actorID, ownerID int64) Role {
	switch actorID {
	case ownerID:
		return RoleOwner
	case b.bookerID:
		return RoleBooker
	default:
		return RoleStranger
	}
}

type transitionKey struct {
	from    BookingStatus
	approve bool
	role    Role
}

// lifecycleTable lists every permitted decision. Anything absent is refused.
var lifecycleTable = map[transitionKey]BookingStatus{
	{StatusWaiting, true, RoleOwner}:    StatusApproved,
	{StatusWaiting, false, RoleOwner}:   StatusRejected,
	{StatusApproved, false, RoleOwner}:  StatusRejected,
	{StatusWaiting, false, RoleBooker}:  StatusCanceled,
	{StatusApproved, false, RoleBooker}: StatusCanceled,
}

// Transition applies an approve (true) or decline (false) decision taken by
// actorID to b, whose item is owned by ownerID. It is the only way a
// booking's status changes after creation. b must be the freshly read,
// locked record; the caller persists it on success.
func Transition(b *Booking, actorID, ownerID int64, approve bool) error {
	next, err := NextStatus(b, actorID, ownerID, approve)
	if err != nil {
		return err
	}
	b.status = next
	b.updatedAt = time.Now().UTC()
	return nil
}

// NextStatus resolves the decision without mutating b.
func NextStatus(b *Booking, actorID, ownerID int64, approve bool) (BookingStatus, error) {
	if b.status.IsTerminal() {
		return "", apperror.NewConflict(fmt.Sprintf("booking is already %s", b.status))
	}
	if approve && b.status == StatusApproved {
		return "", apperror.NewConflict("Cannot be changed")
	}

	role := RoleOf(b, actorID, ownerID)
	next, ok := lifecycleTable[transitionKey{from: b.status, approve: approve, role: role}]
	if !ok {
		if approve {
			return "", apperror.NewForbidden("only the item owner can approve a booking")
		}
		return "", apperror.NewForbidden("only the item owner or the booker can change a booking")
	}
	if !b.status.CanTransitionTo(next) {
		return "", apperror.NewConflict(fmt.Sprintf("cannot move booking from %s to %s", b.status, next))
	}
	return next, nil
}
