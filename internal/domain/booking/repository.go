package booking

import (
	"context"
	"time"

	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
	userDomain "github.com/shareit-platform/service-booking/internal/domain/user"
)

// View selects whose bookings a listing returns.
type View string

const (
	// ViewBooker lists bookings made by the user.
	ViewBooker View = "booker"
	// ViewOwner lists bookings of items owned by the user.
	ViewOwner View = "owner"
)

// ListQuery is one page of one bucket of one view.
type ListQuery struct {
	View   View
	UserID int64
	State  State
	AsOf   time.Time
	Page   Page
}

// Repository defines the persistence contract for booking aggregates.
type Repository interface {
	ConflictFinder

	// FindByID retrieves a booking by its identifier.
	FindByID(ctx context.Context, id int64) (*Booking, error)

	// FindByIDForUpdate retrieves a booking and locks its row until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id int64) (*Booking, error)

	// List returns one page of a bucket, sorted by start.
	List(ctx context.Context, q ListQuery) ([]*Booking, error)

	// FindLastApproved returns the approved booking of the item with the
	// latest start before asOf, or nil.
	FindLastApproved(ctx context.Context, itemID int64, asOf time.Time) (*Booking, error)

	// FindNextApproved returns the approved booking of the item with the
	// earliest start after asOf, or nil.
	FindNextApproved(ctx context.Context, itemID int64, asOf time.Time) (*Booking, error)

	// ExistsFinishedApproved reports whether bookerID has an approved
	// booking of itemID that ended before asOf.
	ExistsFinishedApproved(ctx context.Context, bookerID, itemID int64, asOf time.Time) (bool, error)

	// FindWaitingByItem returns the item's WAITING bookings by start.
	FindWaitingByItem(ctx context.Context, itemID int64) ([]*Booking, error)

	// CountByStatus returns booking counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking and assigns its id.
	Save(ctx context.Context, booking *Booking) error

	// Update persists a status change with optimistic locking.
	Update(ctx context.Context, booking *Booking) error
}

// Stores are the repositories bound to one transaction. Everything a
// transactional use case reads goes through them, so a transaction never
// waits on a second pooled connection.
type Stores struct {
	Bookings Repository
	Items    itemDomain.Directory
	Users    userDomain.Directory
}

// Transactor runs fn in a serializable transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
