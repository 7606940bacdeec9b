package application

import (
	"encoding/json"
	"fmt"
	"time"

	bookingDomain "github.com/shareit-platform/service-booking/internal/domain/booking"
	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
)

// CreateBookingRequest holds the data needed to request a booking. Times are
// RFC 3339; a timestamp without a zone, as older clients send, is read as UTC.
type CreateBookingRequest struct {
	ItemID int64     `json:"itemId" binding:"required"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// localDateTime is an ISO-8601 timestamp without offset, fraction optional.
const localDateTime = "2006-01-02T15:04:05.999999999"

func (r *CreateBookingRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		ItemID int64  `json:"itemId"`
		Start  string `json:"start"`
		End    string `json:"end"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := parseTimestamp(raw.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseTimestamp(raw.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}

	*r = CreateBookingRequest{ItemID: raw.ItemID, Start: start, End: end}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(localDateTime, s, time.UTC)
}

// BookerDTO identifies the user who made a booking.
type BookerDTO struct {
	ID int64 `json:"id"`
}

// ItemRefDTO identifies the booked item.
type ItemRefDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID     int64      `json:"id"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Status string     `json:"status"`
	Booker BookerDTO  `json:"booker"`
	Item   ItemRefDTO `json:"item"`
}

// BookingShortDTO is the compact form used in item summaries.
type BookingShortDTO struct {
	ID       int64     `json:"id"`
	BookerID int64     `json:"bookerId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// ItemBookingSummaryDTO holds the last and next approved bookings of an item.
type ItemBookingSummaryDTO struct {
	ItemID      int64            `json:"itemId"`
	LastBooking *BookingShortDTO `json:"lastBooking"`
	NextBooking *BookingShortDTO `json:"nextBooking"`
}

// CompletedBookingDTO answers whether a user has finished renting an item.
type CompletedBookingDTO struct {
	ItemID    int64 `json:"itemId"`
	UserID    int64 `json:"userId"`
	Completed bool  `json:"completed"`
}

// BookingStatsDTO holds aggregate booking statistics.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// --- Helpers ---

func toBookingDTO(bk *bookingDomain.Booking, it *itemDomain.Item) BookingDTO {
	dto := BookingDTO{
		ID:     bk.ID(),
		Start:  bk.Start(),
		End:    bk.End(),
		Status: string(bk.Status()),
		Booker: BookerDTO{ID: bk.BookerID()},
		Item:   ItemRefDTO{ID: bk.ItemID()},
	}
	if it != nil {
		dto.Item.Name = it.Name()
	}
	return dto
}

func toBookingShortDTO(bk *bookingDomain.Booking) *BookingShortDTO {
	if bk == nil {
		return nil
	}
	return &BookingShortDTO{
		ID:       bk.ID(),
		BookerID: bk.BookerID(),
		Start:    bk.Start(),
		End:      bk.End(),
	}
}
