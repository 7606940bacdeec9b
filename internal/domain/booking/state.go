package booking

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// State names a listing bucket. CURRENT, PAST and FUTURE are derived from
// the clock at query time and are never stored.
type State string

const (
	StateAll      State = "ALL"
	StateCurrent  State = "CURRENT"
	StatePast     State = "PAST"
	StateFuture   State = "FUTURE"
	StateWaiting  State = "WAITING"
	StateRejected State = "REJECTED"
	StateApproved State = "APPROVED"
	StateCanceled State = "CANCELED"
)

// Columns referenced by bucket conditions. Qualified because the owner view
// joins items.
const (
	colStart  = "bookings.start_at"
	colEnd    = "bookings.end_at"
	colStatus = "bookings.status"
)

type bucket struct {
	// match is the in-memory predicate.
	match func(b *Booking, asOf time.Time) bool
	// where is the same predicate as SQL; nil means no filter.
	where     func(asOf time.Time) squirrel.Sqlizer
	ascending bool
}

var bucketTable = map[State]bucket{
	StateAll: {
		match: func(*Booking, time.Time) bool { return true },
	},
	StateCurrent: {
		match: func(b *Booking, asOf time.Time) bool { return b.interval.Contains(asOf) },
		where: func(asOf time.Time) squirrel.Sqlizer {
			return squirrel.And{squirrel.LtOrEq{colStart: asOf}, squirrel.Gt{colEnd: asOf}}
		},
	},
	StatePast: {
		match: func(b *Booking, asOf time.Time) bool { return !b.interval.End.After(asOf) },
		where: func(asOf time.Time) squirrel.Sqlizer { return squirrel.LtOrEq{colEnd: asOf} },
	},
	StateFuture: {
		match: func(b *Booking, asOf time.Time) bool { return b.interval.Start.After(asOf) },
		where: func(asOf time.Time) squirrel.Sqlizer { return squirrel.Gt{colStart: asOf} },
	},
	StateWaiting: {
		match: func(b *Booking, _ time.Time) bool { return b.status == StatusWaiting },
		where: func(time.Time) squirrel.Sqlizer { return squirrel.Eq{colStatus: string(StatusWaiting)} },
	},
	StateRejected: {
		match: func(b *Booking, _ time.Time) bool {
			return b.status == StatusRejected || b.status == StatusCanceled
		},
		where: func(time.Time) squirrel.Sqlizer {
			return squirrel.Eq{colStatus: []string{string(StatusRejected), string(StatusCanceled)}}
		},
		ascending: true,
	},
	StateApproved: {
		match: func(b *Booking, _ time.Time) bool { return b.status == StatusApproved },
		where: func(time.Time) squirrel.Sqlizer { return squirrel.Eq{colStatus: string(StatusApproved)} },
	},
	StateCanceled: {
		match: func(b *Booking, _ time.Time) bool { return b.status == StatusCanceled },
		where: func(time.Time) squirrel.Sqlizer { return squirrel.Eq{colStatus: string(StatusCanceled)} },
	},
}

// ParseState resolves a bucket name, ignoring case.
func ParseState(name string) (State, error) {
	s := State(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := bucketTable[s]; !ok {
		return "", apperror.NewInvalidArgument(fmt.Sprintf("unknown state: %s", name))
	}
	return s, nil
}

// Matches reports whether b belongs to the bucket at asOf.
func (s State) Matches(b *Booking, asOf time.Time) bool {
	bk, ok := bucketTable[s]
	return ok && bk.match(b, asOf)
}

// Where returns the bucket's SQL condition, or nil for no filter.
func (s State) Where(asOf time.Time) squirrel.Sqlizer {
	bk := bucketTable[s]
	if bk.where == nil {
		return nil
	}
	return bk.where(asOf)
}

// Ascending reports the start-time sort direction of the bucket.
func (s State) Ascending() bool {
	return bucketTable[s].ascending
}

// Page is an absolute offset window over a sorted bucket.
type Page struct {
	From int
	Size int
}

// NewPage validates from >= 0 and size >= 1.
func NewPage(from, size int) (Page, error) {
	if from < 0 {
		return Page{}, apperror.NewInvalidArgument("from must not be negative")
	}
	if size < 1 {
		return Page{}, apperror.NewInvalidArgument("size must be positive")
	}
	return Page{From: from, Size: size}, nil
}

// Select filters, sorts and pages bookings in memory exactly as the store
// does: by start in the bucket's direction, ties broken by id.
func (s State) Select(all []*Booking, asOf time.Time, page Page) []*Booking {
	matched := make([]*Booking, 0, len(all))
	for _, b := range all {
		if s.Matches(b, asOf) {
			matched = append(matched, b)
		}
	}

	asc := s.Ascending()
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.interval.Start.Equal(b.interval.Start) {
			if asc {
				return a.interval.Start.Before(b.interval.Start)
			}
			return a.interval.Start.After(b.interval.Start)
		}
		if asc {
			return a.id < b.id
		}
		return a.id > b.id
	})

	if page.From >= len(matched) {
		return []*Booking{}
	}
	end := page.From + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[page.From:end]
}
