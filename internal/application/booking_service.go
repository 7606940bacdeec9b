package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	bookingDomain "github.com/shareit-platform/service-booking/internal/domain/booking"
	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
	userDomain "github.com/shareit-platform/service-booking/internal/domain/user"
	"github.com/shareit-platform/service-booking/internal/platform/apperror"
	"github.com/shareit-platform/service-booking/internal/platform/kafka"
)

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo       bookingDomain.Repository
	tx         bookingDomain.Transactor
	items      itemDomain.Directory
	users      userDomain.Directory
	engine     *TemporalQueryEngine
	publisher  EventPublisher
	logger     *zap.Logger
	now        func() time.Time
	maxRetries int
}

// NewBookingService creates a new BookingService. maxRetries bounds how often
// a transaction that lost a write race is replayed.
func NewBookingService(
	repo bookingDomain.Repository,
	tx bookingDomain.Transactor,
	items itemDomain.Directory,
	users userDomain.Directory,
	publisher EventPublisher,
	maxRetries int,
	logger *zap.Logger,
) *BookingService {
	s := &BookingService{
		repo:       repo,
		tx:         tx,
		items:      items,
		users:      users,
		publisher:  publisher,
		logger:     logger,
		maxRetries: maxRetries,
	}
	s.SetClock(func() time.Time { return time.Now().UTC() })
	return s
}

// SetClock replaces the time source used for "now" checks and bucket queries.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
	s.engine = NewTemporalQueryEngine(s.repo, s.items, s.users, now)
}

// AddBooking requests a booking of an item on behalf of requesterID. The new
// booking is WAITING and reserves nothing until the owner approves it.
func (s *BookingService) AddBooking(ctx context.Context, requesterID int64, req CreateBookingRequest) (*BookingDTO, error) {
	var (
		bk *bookingDomain.Booking
		it *itemDomain.Item
	)
	err := s.withRetry(ctx, "add_booking", func() error {
		bk, it = nil, nil
		return s.tx.InTx(ctx, func(ctx context.Context, tx bookingDomain.Stores) error {
			// The share lock keeps a withdrawal from committing between this
			// check and the insert.
			target, err := tx.Items.FindByIDForShare(ctx, req.ItemID)
			if err != nil {
				return err
			}
			if target.IsOwnedBy(requesterID) {
				return apperror.NewForbidden("This thing is yours")
			}
			if !target.IsAvailable() {
				return apperror.NewInvalidArgument(fmt.Sprintf("Item %s unavailable", target.Name()))
			}

			interval, err := bookingDomain.NewInterval(req.Start, req.End)
			if err != nil {
				return err
			}
			candidate, err := bookingDomain.NewBooking(target.ID(), requesterID, interval, s.now())
			if err != nil {
				return err
			}
			if err := bookingDomain.NewAvailabilityChecker(tx.Bookings).EnsureFree(ctx, target.ID(), interval, 0); err != nil {
				return err
			}

			exists, err := tx.Users.Exists(ctx, requesterID)
			if err != nil {
				return fmt.Errorf("failed to check user: %w", err)
			}
			if !exists {
				return apperror.NewNotFound("User", requesterID)
			}

			if err := tx.Bookings.Save(ctx, candidate); err != nil {
				return err
			}
			bk, it = candidate, target
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking requested",
		zap.Int64("booking_id", bk.ID()),
		zap.Int64("item_id", bk.ItemID()),
		zap.Int64("actor_id", requesterID),
	)
	s.publishBookingEvent(ctx, bk, it.OwnerID(), requesterID)

	result := toBookingDTO(bk, it)
	return &result, nil
}

// ChangeStatus applies an approve or decline decision taken by actorID.
func (s *BookingService) ChangeStatus(ctx context.Context, actorID, bookingID int64, approve bool) (*BookingDTO, error) {
	bk, it, err := s.decide(ctx, actorID, bookingID, approve, false)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk, it)
	return &result, nil
}

// decide runs one lifecycle transition under a row lock. With onlyWaiting the
// booking is left untouched (nil booking, nil error) unless it is still WAITING.
func (s *BookingService) decide(
	ctx context.Context,
	actorID, bookingID int64,
	approve, onlyWaiting bool,
) (*bookingDomain.Booking, *itemDomain.Item, error) {
	var (
		bk   *bookingDomain.Booking
		it   *itemDomain.Item
		role bookingDomain.Role
	)
	err := s.withRetry(ctx, "change_status", func() error {
		bk, it = nil, nil
		return s.tx.InTx(ctx, func(ctx context.Context, tx bookingDomain.Stores) error {
			locked, err := tx.Bookings.FindByIDForUpdate(ctx, bookingID)
			if err != nil {
				return err
			}
			if onlyWaiting && locked.Status() != bookingDomain.StatusWaiting {
				return nil
			}

			owned, err := tx.Items.FindByID(ctx, locked.ItemID())
			if err != nil {
				return err
			}

			role = bookingDomain.RoleOf(locked, actorID, owned.OwnerID())
			if err := bookingDomain.Transition(locked, actorID, owned.OwnerID(), approve); err != nil {
				return err
			}
			if locked.Status() == bookingDomain.StatusApproved {
				checker := bookingDomain.NewAvailabilityChecker(tx.Bookings)
				if err := checker.EnsureFree(ctx, locked.ItemID(), locked.Interval(), locked.ID()); err != nil {
					return err
				}
			}

			locked.IncrementVersion()
			if err := tx.Bookings.Update(ctx, locked); err != nil {
				return err
			}
			bk, it = locked, owned
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	if bk == nil {
		return nil, nil, nil
	}

	s.logger.Info("booking status changed",
		zap.Int64("booking_id", bk.ID()),
		zap.Int64("item_id", bk.ItemID()),
		zap.Int64("actor_id", actorID),
		zap.Stringer("role", role),
		zap.String("status", string(bk.Status())),
	)
	s.publishBookingEvent(ctx, bk, it.OwnerID(), actorID)
	return bk, it, nil
}

// GetBooking returns a booking visible to its booker or the item owner.
// Anyone else gets the same NotFound as for a missing id.
func (s *BookingService) GetBooking(ctx context.Context, actorID, bookingID int64) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	it, err := s.items.FindByID(ctx, bk.ItemID())
	if err != nil {
		return nil, err
	}
	if bk.BookerID() != actorID && !it.IsOwnedBy(actorID) {
		return nil, apperror.NewNotFound("Booking", bookingID)
	}

	result := toBookingDTO(bk, it)
	return &result, nil
}

// ListForBooker lists bookings made by actorID.
func (s *BookingService) ListForBooker(ctx context.Context, actorID int64, state string, from, size int) ([]BookingDTO, error) {
	return s.engine.List(ctx, bookingDomain.ViewBooker, actorID, state, from, size)
}

// ListForOwner lists bookings of items owned by actorID.
func (s *BookingService) ListForOwner(ctx context.Context, actorID int64, state string, from, size int) ([]BookingDTO, error) {
	return s.engine.List(ctx, bookingDomain.ViewOwner, actorID, state, from, size)
}

// ItemBookingSummary returns the last and next approved bookings of an item.
// Only the owner may see them.
func (s *BookingService) ItemBookingSummary(ctx context.Context, actorID, itemID int64) (*ItemBookingSummaryDTO, error) {
	it, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.IsOwnedBy(actorID) {
		return nil, apperror.NewNotFound("Item", itemID)
	}

	now := s.now()
	last, err := s.repo.FindLastApproved(ctx, itemID, now)
	if err != nil {
		return nil, err
	}
	next, err := s.repo.FindNextApproved(ctx, itemID, now)
	if err != nil {
		return nil, err
	}

	return &ItemBookingSummaryDTO{
		ItemID:      itemID,
		LastBooking: toBookingShortDTO(last),
		NextBooking: toBookingShortDTO(next),
	}, nil
}

// HasCompletedBooking reports whether userID has an approved booking of the
// item that already ended.
func (s *BookingService) HasCompletedBooking(ctx context.Context, userID, itemID int64) (*CompletedBookingDTO, error) {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return nil, err
	}
	done, err := s.repo.ExistsFinishedApproved(ctx, userID, itemID, s.now())
	if err != nil {
		return nil, err
	}
	return &CompletedBookingDTO{ItemID: itemID, UserID: userID, Completed: done}, nil
}

// BookingStats returns aggregate booking statistics (admin).
func (s *BookingService) BookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// RejectWaitingForItem rejects every WAITING booking of an item that was
// withdrawn, acting as its owner. It returns how many were rejected.
func (s *BookingService) RejectWaitingForItem(ctx context.Context, itemID int64) (int, error) {
	it, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return 0, err
	}
	waiting, err := s.repo.FindWaitingByItem(ctx, itemID)
	if err != nil {
		return 0, err
	}

	rejected := 0
	for _, w := range waiting {
		bk, _, err := s.decide(ctx, it.OwnerID(), w.ID(), false, true)
		if err != nil {
			return rejected, fmt.Errorf("failed to reject booking %d: %w", w.ID(), err)
		}
		if bk != nil {
			rejected++
		}
	}

	if rejected > 0 {
		s.logger.Info("waiting bookings rejected for withdrawn item",
			zap.Int64("item_id", itemID),
			zap.Int("count", rejected),
		)
	}
	return rejected, nil
}

// --- Helpers ---

// withRetry replays fn while it fails with a write race, up to maxRetries
// extra attempts. Any other error stops immediately.
func (s *BookingService) withRetry(ctx context.Context, op string, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newTxBackOff(), uint64(s.maxRetries)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil || errors.Is(err, bookingDomain.ErrWriteRace) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		s.logger.Warn("retrying booking transaction",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

func newTxBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}

func (s *BookingService) publishBookingEvent(ctx context.Context, bk *bookingDomain.Booking, ownerID, actorID int64) {
	evt := BookingEvent{
		BookingID:  bk.ID(),
		ItemID:     bk.ItemID(),
		BookerID:   bk.BookerID(),
		OwnerID:    ownerID,
		ActorID:    actorID,
		Status:     string(bk.Status()),
		Start:      bk.Start(),
		End:        bk.End(),
		OccurredAt: time.Now().UTC(),
	}
	s.publishEvent(ctx, TopicBookingEvents, eventTypeFor(bk.Status()), fmt.Sprint(bk.ID()), evt)
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType, key string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = key

	if err := s.publisher.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
