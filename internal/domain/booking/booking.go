package booking

import (
	"errors"
	"time"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// ErrWriteRace marks a conflict caused by a concurrent writer rather than by
// the request itself. Operations failing with it can be retried as is.
var ErrWriteRace = errors.New("concurrent booking write")

// Booking is the aggregate root for a reservation of one item.
type Booking struct {
	id       int64
	itemID   int64
	bookerID int64
	interval Interval
	status   BookingStatus

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a WAITING booking. The id is assigned by the store.
func NewBooking(itemID, bookerID int64, interval Interval, now time.Time) (*Booking, error) {
	if itemID <= 0 {
		return nil, apperror.NewInvalidArgument("item id is required")
	}
	if bookerID <= 0 {
		return nil, apperror.NewInvalidArgument("booker id is required")
	}
	if !interval.Start.Before(interval.End) {
		return nil, apperror.NewInvalidArgument("start must be before end")
	}
	if interval.Start.Before(now) {
		return nil, apperror.NewInvalidArgument("start must not be in the past")
	}

	now = now.UTC()
	return &Booking{
		itemID:    itemID,
		bookerID:  bookerID,
		interval:  interval,
		status:    StatusWaiting,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id, itemID, bookerID int64,
	interval Interval,
	status BookingStatus,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:        id,
		itemID:    itemID,
		bookerID:  bookerID,
		interval:  interval,
		status:    status,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() int64             { return b.id }
func (b *Booking) ItemID() int64         { return b.itemID }
func (b *Booking) BookerID() int64       { return b.bookerID }
func (b *Booking) Interval() Interval    { return b.interval }
func (b *Booking) Start() time.Time      { return b.interval.Start }
func (b *Booking) End() time.Time        { return b.interval.End }
func (b *Booking) Status() BookingStatus { return b.status }
func (b *Booking) Version() int64        { return b.version }
func (b *Booking) CreatedAt() time.Time  { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time  { return b.updatedAt }

// AssignID records the identifier generated by the store on insert.
func (b *Booking) AssignID(id int64) {
	b.id = id
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
