package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shareit-platform/service-booking/internal/platform/apperror"
	"github.com/shareit-platform/service-booking/internal/platform/kafka"
)

const (
	// TopicItemEvents is published by the item catalog.
	TopicItemEvents = "item.events"

	ItemAvailabilityChanged = "item.availability_changed"
)

// ItemAvailabilityChangedEvent is the payload of item.availability_changed.
type ItemAvailabilityChangedEvent struct {
	ItemID    int64 `json:"item_id"`
	OwnerID   int64 `json:"owner_id"`
	Available bool  `json:"available"`
}

// WithdrawalHandler rejects the pending bookings of an item that is no
// longer offered.
type WithdrawalHandler interface {
	RejectWaitingForItem(ctx context.Context, itemID int64) (int, error)
}

// AvailabilityStore keeps the local copy of the item flag in sync.
type AvailabilityStore interface {
	SetAvailability(ctx context.Context, itemID int64, available bool) error
}

// ItemEventConsumer listens to item catalog events and keeps bookings consistent
// with item availability.
type ItemEventConsumer struct {
	consumer *kafka.Consumer
	service  WithdrawalHandler
	items    AvailabilityStore
	logger   *zap.Logger
}

// NewItemEventConsumer creates a new ItemEventConsumer.
func NewItemEventConsumer(
	brokers []string,
	groupID string,
	service WithdrawalHandler,
	items AvailabilityStore,
	logger *zap.Logger,
) *ItemEventConsumer {
	return &ItemEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicItemEvents, logger),
		service:  service,
		items:    items,
		logger:   logger,
	}
}

// Start begins consuming item events. This blocks until the context is cancelled.
func (c *ItemEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ItemEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ItemEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from item topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case ItemAvailabilityChanged:
		return c.handleAvailabilityChanged(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled item event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *ItemEventConsumer) handleAvailabilityChanged(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt ItemAvailabilityChangedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse ItemAvailabilityChangedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	if c.items != nil {
		if err := c.items.SetAvailability(ctx, evt.ItemID, evt.Available); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				c.logger.Warn("availability change for unknown item",
					zap.Int64("item_id", evt.ItemID),
				)
				return nil
			}
			return err
		}
	}
	if evt.Available {
		return nil
	}

	n, err := c.service.RejectWaitingForItem(ctx, evt.ItemID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		c.logger.Error("failed to reject waiting bookings of withdrawn item",
			zap.Int64("item_id", evt.ItemID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("item withdrawn",
		zap.Int64("item_id", evt.ItemID),
		zap.Int("rejected", n),
	)
	return nil
}
