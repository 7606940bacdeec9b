//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shareit-platform/service-booking/internal/application"
	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
	bookingEvents "github.com/shareit-platform/service-booking/internal/events"
	"github.com/shareit-platform/service-booking/internal/platform/database"
	"github.com/shareit-platform/service-booking/internal/platform/kafka"
	"github.com/shareit-platform/service-booking/internal/repository"
)

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	DB       *gorm.DB
	Bookings *repository.GormBookingRepository
	Items    *repository.GormItemRepository
	Users    *repository.GormUserRepository
	Service  *application.BookingService
}

// setupPostgres starts a PostgreSQL container, runs the migrations and
// returns a connected GORM DB.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "start postgres")
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(cfg, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "postgres never accepted connections")

	require.NoError(t, database.RunMigrations(cfg.DatabaseURL(), "migrations", logger))
	return db
}

// setupKafka starts a Kafka container with the booking and item topics.
func setupKafka(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka")
	t.Cleanup(func() { _ = kafkaContainer.Terminate(ctx) })

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)

	createTopics(t, brokers, application.TopicBookingEvents, bookingEvents.TopicItemEvents)
	return brokers
}

// setupBookingStack wires the repositories and the service onto db.
func setupBookingStack(t *testing.T, db *gorm.DB, publisher application.EventPublisher) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookings := repository.NewGormBookingRepository(db)
	items := repository.NewGormItemRepository(db)
	users := repository.NewGormUserRepository(db)

	return &bookingStack{
		DB:       db,
		Bookings: bookings,
		Items:    items,
		Users:    users,
		Service:  application.NewBookingService(bookings, bookings, items, users, publisher, 5, logger),
	}
}

// seedUser inserts a user with a unique email and returns its id.
func (s *bookingStack) seedUser(t *testing.T, name string) int64 {
	t.Helper()
	email := fmt.Sprintf("%s-%s@example.com", name, uuid.New().String()[:8])
	u, err := s.Users.Create(context.Background(), name, email)
	require.NoError(t, err, "failed to seed user")
	return u.ID()
}

// seedItem inserts an available item owned by ownerID and returns its id.
func (s *bookingStack) seedItem(t *testing.T, ownerID int64, name string) int64 {
	t.Helper()
	it, err := itemDomain.NewItem(ownerID, name, "integration test")
	require.NoError(t, err)
	require.NoError(t, s.Items.Save(context.Background(), it), "failed to seed item")
	return it.ID()
}

// waitForBookingStatus polls the bookings table until the row reaches status.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID int64, status string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var row repository.BookingModel
	require.Eventuallyf(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		row = model
		return model.Status == status
	}, timeout, 200*time.Millisecond, "booking %d never reached %s", bookingID, status)
	return row
}

func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data any) {
	t.Helper()
	producer := kafka.NewProducer(brokers, zap.NewNop())
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err)
	require.NoError(t, producer.PublishEvent(context.Background(), topic, ce), "publish %s", eventType)
}

// consumeOneEvent joins a fresh consumer group on topic and returns the first
// CloudEvent of eventType, failing the test after timeout.
func consumeOneEvent(t *testing.T, brokers []string, topic, eventType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	consumer := kafka.NewConsumer(brokers, "it-"+uuid.NewString()[:8], topic, zap.NewNop())
	defer func() { _ = consumer.Close() }()

	var found *kafka.CloudEvent
	_ = consumer.Consume(ctx, func(_ context.Context, msg kafkago.Message) error {
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err == nil && ce.Type == eventType && found == nil {
			found = &ce
			cancel()
		}
		return nil
	})
	require.NotNilf(t, found, "no %q event on %s within %s", eventType, topic, timeout)
	return *found
}

// createTopics creates topics through the controller broker. Producers on
// kafka-go fail with "Unknown Topic" when they race auto-creation.
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	}
	require.NoError(t, ctrl.CreateTopics(configs...), "create topics %v", topics)

	require.Eventually(t, func() bool {
		parts, err := conn.ReadPartitions(topics...)
		return err == nil && len(parts) >= len(topics)
	}, 10*time.Second, 200*time.Millisecond, "topic metadata not propagated")
}
