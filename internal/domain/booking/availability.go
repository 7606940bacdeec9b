package booking

import (
	"context"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// BusyMessage is returned when a requested window collides with an approved booking.
const BusyMessage = "The current rental period is busy"

// ConflictFinder answers the overlap query against the store.
type ConflictFinder interface {
	// ExistsApprovedOverlap reports whether an APPROVED booking of itemID
	// other than excludeID overlaps interval.
	ExistsApprovedOverlap(ctx context.Context, itemID int64, interval Interval, excludeID int64) (bool, error)
}

// AvailabilityChecker decides whether a window is free on an item. Only
// APPROVED bookings block; WAITING ones reserve nothing.
type AvailabilityChecker struct {
	finder ConflictFinder
}

// NewAvailabilityChecker binds a checker to a store, usually one scoped to
// the current transaction.
func NewAvailabilityChecker(finder ConflictFinder) *AvailabilityChecker {
	return &AvailabilityChecker{finder: finder}
}

// HasConflict reports whether interval collides with an approved booking.
// excludeID is 0 at creation and the booking's own id when re-checking an approval.
func (c *AvailabilityChecker) HasConflict(ctx context.Context, itemID int64, interval Interval, excludeID int64) (bool, error) {
	return c.finder.ExistsApprovedOverlap(ctx, itemID, interval, excludeID)
}

// EnsureFree is HasConflict turned into a Conflict error.
func (c *AvailabilityChecker) EnsureFree(ctx context.Context, itemID int64, interval Interval, excludeID int64) error {
	busy, err := c.HasConflict(ctx, itemID, interval, excludeID)
	if err != nil {
		return err
	}
	if busy {
		return apperror.NewConflict(BusyMessage)
	}
	return nil
}

// Conflicts is the in-memory form of the overlap query.
func Conflicts(existing []*Booking, itemID int64, interval Interval, excludeID int64) bool {
	for _, b := range existing {
		if b.itemID != itemID || b.id == excludeID || b.status != StatusApproved {
			continue
		}
		if b.interval.Overlaps(interval) {
			return true
		}
	}
	return false
}
