package application

import (
	"context"
	"time"

	bookingDomain "github.com/shareit-platform/service-booking/internal/domain/booking"
	"github.com/shareit-platform/service-booking/internal/platform/kafka"
)

const (
	eventSource = "service-booking"

	// TopicBookingEvents carries every booking lifecycle event.
	TopicBookingEvents = "booking.events"

	BookingRequested = "booking.requested"
	BookingApproved  = "booking.approved"
	BookingRejected  = "booking.rejected"
	BookingCanceled  = "booking.canceled"
)

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	BookingID  int64     `json:"booking_id"`
	ItemID     int64     `json:"item_id"`
	BookerID   int64     `json:"booker_id"`
	OwnerID    int64     `json:"owner_id"`
	ActorID    int64     `json:"actor_id"`
	Status     string    `json:"status"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher writes CloudEvents to a topic. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

type discardPublisher struct{}

func (discardPublisher) PublishEvent(context.Context, string, kafka.CloudEvent) error { return nil }

// NewDiscardPublisher returns a publisher that drops every event. Used when
// Kafka is disabled.
func NewDiscardPublisher() EventPublisher {
	return discardPublisher{}
}

func eventTypeFor(status bookingDomain.BookingStatus) string {
	switch status {
	case bookingDomain.StatusApproved:
		return BookingApproved
	case bookingDomain.StatusRejected:
		return BookingRejected
	case bookingDomain.StatusCanceled:
		return BookingCanceled
	default:
		return BookingRequested
	}
}
