package application

import (
	"context"
	"fmt"
	"time"

	bookingDomain "github.com/shareit-platform/service-booking/internal/domain/booking"
	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
	userDomain "github.com/shareit-platform/service-booking/internal/domain/user"
	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// TemporalQueryEngine serves the bucketed, paginated booking listings for a
// booker or an item owner. CURRENT, PAST and FUTURE are resolved against the
// clock at the moment of the query.
type TemporalQueryEngine struct {
	repo  bookingDomain.Repository
	items itemDomain.Directory
	users userDomain.Directory
	now   func() time.Time
}

// NewTemporalQueryEngine creates a new TemporalQueryEngine.
func NewTemporalQueryEngine(
	repo bookingDomain.Repository,
	items itemDomain.Directory,
	users userDomain.Directory,
	now func() time.Time,
) *TemporalQueryEngine {
	return &TemporalQueryEngine{repo: repo, items: items, users: users, now: now}
}

// List returns page [from, from+size) of the named bucket.
func (e *TemporalQueryEngine) List(
	ctx context.Context,
	view bookingDomain.View,
	userID int64,
	stateName string,
	from, size int,
) ([]BookingDTO, error) {
	state, err := bookingDomain.ParseState(stateName)
	if err != nil {
		return nil, err
	}
	page, err := bookingDomain.NewPage(from, size)
	if err != nil {
		return nil, err
	}

	exists, err := e.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, apperror.NewNotFound("User", userID)
	}

	bookings, err := e.repo.List(ctx, bookingDomain.ListQuery{
		View:   view,
		UserID: userID,
		State:  state,
		AsOf:   e.now().UTC(),
		Page:   page,
	})
	if err != nil {
		return nil, err
	}
	return e.toDTOs(ctx, bookings)
}

func (e *TemporalQueryEngine) toDTOs(ctx context.Context, bookings []*bookingDomain.Booking) ([]BookingDTO, error) {
	dtos := make([]BookingDTO, len(bookings))
	if len(bookings) == 0 {
		return dtos, nil
	}

	seen := make(map[int64]struct{}, len(bookings))
	ids := make([]int64, 0, len(bookings))
	for _, bk := range bookings {
		if _, ok := seen[bk.ItemID()]; !ok {
			seen[bk.ItemID()] = struct{}{}
			ids = append(ids, bk.ItemID())
		}
	}

	items, err := e.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk, items[bk.ItemID()])
	}
	return dtos, nil
}
