package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shareit-platform/service-booking/internal/application"
	"github.com/shareit-platform/service-booking/internal/config"
	bookingEvents "github.com/shareit-platform/service-booking/internal/events"
	"github.com/shareit-platform/service-booking/internal/handler"
	"github.com/shareit-platform/service-booking/internal/platform/database"
	"github.com/shareit-platform/service-booking/internal/platform/health"
	"github.com/shareit-platform/service-booking/internal/platform/kafka"
	"github.com/shareit-platform/service-booking/internal/platform/logger"
	"github.com/shareit-platform/service-booking/internal/platform/middleware"
	"github.com/shareit-platform/service-booking/internal/repository"
)

const (
	serviceName     = "service-booking"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("service-booking exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("service-booking stopped")
}

func run(cfg *config.ServiceConfig, log *zap.Logger) error {
	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
		zap.Bool("kafka", cfg.KafkaConfig.Enabled),
	)

	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	// The overlap exclusion constraint lives only in SQL, so migrations run in every env.
	if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.Migrations, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var publisher application.EventPublisher = application.NewDiscardPublisher()
	if cfg.KafkaConfig.Enabled {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		log.Warn("kafka disabled, booking events will not be published")
	}

	bookingRepo := repository.NewGormBookingRepository(db)
	itemRepo := repository.NewGormItemRepository(db)
	userRepo := repository.NewGormUserRepository(db)

	bookingService := application.NewBookingService(
		bookingRepo,
		bookingRepo,
		itemRepo,
		userRepo,
		publisher,
		cfg.TxMaxRetries,
		log,
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, fail := context.WithCancelCause(sigCtx)
	defer fail(nil)

	if cfg.KafkaConfig.Enabled {
		consumer := bookingEvents.NewItemEventConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupPrefix+serviceName,
			bookingService,
			itemRepo,
			log,
		)
		defer func() { _ = consumer.Close() }()

		log.Info("item event consumer started", zap.String("topic", bookingEvents.TopicItemEvents))
		go supervise(ctx, "item event consumer", consumer.Start, fail, log)
	}

	router := newRouter(cfg, db, log,
		handler.NewBookingHandler(bookingService),
		handler.NewAdminBookingHandler(bookingService),
	)

	if err := serve(ctx, cfg.Port, router, log); err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// supervise runs a background worker until ctx ends. If the worker fails on
// its own, the whole service is stopped with that error as the cause.
func supervise(ctx context.Context, name string, work func(context.Context) error,
	fail context.CancelCauseFunc, log *zap.Logger) {
	err := work(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	log.Error(name+" stopped", zap.Error(err))
	fail(fmt.Errorf("%s: %w", name, err))
}

func newRouter(cfg *config.ServiceConfig, db *gorm.DB, log *zap.Logger,
	bookings *handler.BookingHandler, admin *handler.AdminBookingHandler) *gin.Engine {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.LoggerMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	health.NewHandler(db, serviceName).RegisterRoutes(router)
	bookings.RegisterRoutes(&router.RouterGroup)
	admin.RegisterRoutes(&router.RouterGroup)
	return router
}

// serve blocks until ctx is done or the listener fails, then drains in-flight requests.
func serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down service-booking...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
