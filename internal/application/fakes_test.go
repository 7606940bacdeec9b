package application

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	bookingDomain "github.com/shareit-platform/service-booking/internal/domain/booking"
	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
	"github.com/shareit-platform/service-booking/internal/platform/apperror"
	"github.com/shareit-platform/service-booking/internal/platform/kafka"
)

// --- Items ---

type fakeItems struct {
	items      map[int64]*itemDomain.Item
	shareReads int
}

func newFakeItems(items ...*itemDomain.Item) *fakeItems {
	f := &fakeItems{items: make(map[int64]*itemDomain.Item)}
	for _, it := range items {
		f.items[it.ID()] = it
	}
	return f
}

func (f *fakeItems) FindByID(_ context.Context, id int64) (*itemDomain.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, apperror.NewNotFound("Item", id)
	}
	return it, nil
}

func (f *fakeItems) FindByIDForShare(ctx context.Context, id int64) (*itemDomain.Item, error) {
	f.shareReads++
	return f.FindByID(ctx, id)
}

func (f *fakeItems) FindByIDs(_ context.Context, ids []int64) (map[int64]*itemDomain.Item, error) {
	out := make(map[int64]*itemDomain.Item, len(ids))
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

// --- Users ---

type fakeUsers struct {
	ids map[int64]bool
}

func newFakeUsers(ids ...int64) *fakeUsers {
	f := &fakeUsers{ids: make(map[int64]bool)}
	for _, id := range ids {
		f.ids[id] = true
	}
	return f
}

func (f *fakeUsers) Exists(_ context.Context, id int64) (bool, error) {
	return f.ids[id], nil
}

// --- Pool guard ---

// poolItems and poolUsers are the directories on the shared connection
// pool. Reaching them while a transaction is open means the transaction
// needs a second connection, which stalls once the pool is exhausted.
type poolItems struct {
	*fakeItems
	store *memStore
	t     *testing.T
}

func (p *poolItems) FindByID(ctx context.Context, id int64) (*itemDomain.Item, error) {
	p.check("FindByID")
	return p.fakeItems.FindByID(ctx, id)
}

func (p *poolItems) FindByIDForShare(ctx context.Context, id int64) (*itemDomain.Item, error) {
	p.check("FindByIDForShare")
	return p.fakeItems.FindByIDForShare(ctx, id)
}

func (p *poolItems) FindByIDs(ctx context.Context, ids []int64) (map[int64]*itemDomain.Item, error) {
	p.check("FindByIDs")
	return p.fakeItems.FindByIDs(ctx, ids)
}

func (p *poolItems) check(op string) {
	if p.store.inTx {
		p.t.Errorf("items.%s used the shared pool inside a transaction", op)
	}
}

type poolUsers struct {
	*fakeUsers
	store *memStore
	t     *testing.T
}

func (p *poolUsers) Exists(ctx context.Context, id int64) (bool, error) {
	if p.store.inTx {
		p.t.Errorf("users.Exists used the shared pool inside a transaction")
	}
	return p.fakeUsers.Exists(ctx, id)
}

// --- Bookings ---

// memStore is an in-memory booking.Repository and Transactor. A failed
// transaction restores the snapshot taken when it began.
type memStore struct {
	items    *fakeItems
	users    *fakeUsers
	inTx     bool
	rows     map[int64]*bookingDomain.Booking
	nextID   int64
	races    int    // transactions still to fail with a write race
	onRace   func() // runs when a transaction loses a race
	txCalls  int
	failNext error
}

func newMemStore(items *fakeItems, users *fakeUsers) *memStore {
	return &memStore{items: items, users: users, rows: make(map[int64]*bookingDomain.Booking)}
}

func clone(b *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		b.ID(), b.ItemID(), b.BookerID(), b.Interval(), b.Status(), b.Version(), b.CreatedAt(), b.UpdatedAt(),
	)
}

func (s *memStore) all() []*bookingDomain.Booking {
	out := make([]*bookingDomain.Booking, 0, len(s.rows))
	for _, b := range s.rows {
		out = append(out, clone(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// seed inserts a booking as-is, bypassing the service.
func (s *memStore) seed(itemID, bookerID int64, start, end time.Time, status bookingDomain.BookingStatus) *bookingDomain.Booking {
	s.nextID++
	b := bookingDomain.ReconstructBooking(s.nextID, itemID, bookerID,
		bookingDomain.Interval{Start: start, End: end}, status, 1, start, start)
	s.rows[b.ID()] = b
	return clone(b)
}

func (s *memStore) get(id int64) *bookingDomain.Booking {
	return clone(s.rows[id])
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx bookingDomain.Stores) error) error {
	s.txCalls++
	if s.races > 0 {
		s.races--
		if s.onRace != nil {
			s.onRace()
		}
		return apperror.Wrap(bookingDomain.ErrWriteRace, apperror.KindConflict, "booking was modified by another transaction")
	}

	snapshot := make(map[int64]*bookingDomain.Booking, len(s.rows))
	for id, b := range s.rows {
		snapshot[id] = clone(b)
	}
	nextID := s.nextID

	s.inTx = true
	err := fn(ctx, bookingDomain.Stores{Bookings: s, Items: s.items, Users: s.users})
	s.inTx = false
	if err == nil && s.failNext != nil {
		err, s.failNext = s.failNext, nil
	}
	if err != nil {
		s.rows, s.nextID = snapshot, nextID
	}
	return err
}

func (s *memStore) ExistsApprovedOverlap(_ context.Context, itemID int64, interval bookingDomain.Interval, excludeID int64) (bool, error) {
	return bookingDomain.Conflicts(s.all(), itemID, interval, excludeID), nil
}

func (s *memStore) FindByID(_ context.Context, id int64) (*bookingDomain.Booking, error) {
	b, ok := s.rows[id]
	if !ok {
		return nil, apperror.NewNotFound("Booking", id)
	}
	return clone(b), nil
}

func (s *memStore) FindByIDForUpdate(ctx context.Context, id int64) (*bookingDomain.Booking, error) {
	return s.FindByID(ctx, id)
}

func (s *memStore) List(_ context.Context, q bookingDomain.ListQuery) ([]*bookingDomain.Booking, error) {
	var visible []*bookingDomain.Booking
	for _, b := range s.all() {
		switch q.View {
		case bookingDomain.ViewOwner:
			if it, ok := s.items.items[b.ItemID()]; ok && it.OwnerID() == q.UserID {
				visible = append(visible, b)
			}
		default:
			if b.BookerID() == q.UserID {
				visible = append(visible, b)
			}
		}
	}
	return q.State.Select(visible, q.AsOf, q.Page), nil
}

func (s *memStore) FindLastApproved(_ context.Context, itemID int64, asOf time.Time) (*bookingDomain.Booking, error) {
	var last *bookingDomain.Booking
	for _, b := range s.all() {
		if b.ItemID() == itemID && b.Status() == bookingDomain.StatusApproved && b.Start().Before(asOf) {
			if last == nil || b.Start().After(last.Start()) {
				last = b
			}
		}
	}
	return last, nil
}

func (s *memStore) FindNextApproved(_ context.Context, itemID int64, asOf time.Time) (*bookingDomain.Booking, error) {
	var next *bookingDomain.Booking
	for _, b := range s.all() {
		if b.ItemID() == itemID && b.Status() == bookingDomain.StatusApproved && b.Start().After(asOf) {
			if next == nil || b.Start().Before(next.Start()) {
				next = b
			}
		}
	}
	return next, nil
}

func (s *memStore) ExistsFinishedApproved(_ context.Context, bookerID, itemID int64, asOf time.Time) (bool, error) {
	for _, b := range s.all() {
		if b.BookerID() == bookerID && b.ItemID() == itemID &&
			b.Status() == bookingDomain.StatusApproved && b.End().Before(asOf) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) FindWaitingByItem(_ context.Context, itemID int64) ([]*bookingDomain.Booking, error) {
	var out []*bookingDomain.Booking
	for _, b := range s.all() {
		if b.ItemID() == itemID && b.Status() == bookingDomain.StatusWaiting {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start().Before(out[j].Start()) })
	return out, nil
}

func (s *memStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, b := range s.rows {
		counts[string(b.Status())]++
	}
	return counts, nil
}

func (s *memStore) Save(_ context.Context, b *bookingDomain.Booking) error {
	s.nextID++
	b.AssignID(s.nextID)
	s.rows[b.ID()] = clone(b)
	return nil
}

func (s *memStore) Update(_ context.Context, b *bookingDomain.Booking) error {
	stored, ok := s.rows[b.ID()]
	if !ok || stored.Version() != b.Version()-1 {
		return apperror.Wrap(bookingDomain.ErrWriteRace, apperror.KindConflict, "booking was modified by another transaction")
	}
	s.rows[b.ID()] = clone(b)
	return nil
}

// --- Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(ev kafka.CloudEvent) bool { return ev.Type == eventType })
}
