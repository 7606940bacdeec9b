package booking

import (
	"time"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// Interval is a half-open reservation window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates that start is strictly before end.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, apperror.NewInvalidArgument("start and end are required")
	}
	if !start.Before(end) {
		return Interval{}, apperror.NewInvalidArgument("start must be before end")
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two windows share any instant. Windows that
// only touch (a.End == b.Start) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}
