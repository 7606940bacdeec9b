package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/shareit-platform/service-booking/internal/domain/booking"
	"github.com/shareit-platform/service-booking/internal/platform/apperror"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ItemID    int64     `gorm:"not null;index"`
	BookerID  int64     `gorm:"not null;index"`
	StartAt   time.Time `gorm:"type:timestamptz;not null"`
	EndAt     time.Time `gorm:"type:timestamptz;not null"`
	Status    string    `gorm:"not null;size:20;index"`
	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// InTx runs fn in a SERIALIZABLE transaction. Bookings, items and users are
// all read through tx, so the transaction holds exactly one connection.
func (r *GormBookingRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx bookingDomain.Stores) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, bookingDomain.Stores{
			Bookings: &GormBookingRepository{db: tx},
			Items:    &GormItemRepository{db: tx},
			Users:    &GormUserRepository{db: tx},
		})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translateError(err)
}

// FindByID retrieves a booking by its identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id int64) (*bookingDomain.Booking, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate retrieves a booking with SELECT ... FOR UPDATE.
func (r *GormBookingRepository) FindByIDForUpdate(ctx context.Context, id int64) (*bookingDomain.Booking, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBookingRepository) findOne(db *gorm.DB, id int64) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Booking", id)
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", translateError(err))
	}
	return toDomainBooking(&model)
}

// ExistsApprovedOverlap reports whether an APPROVED booking of the item other
// than excludeID overlaps interval.
func (r *GormBookingRepository) ExistsApprovedOverlap(ctx context.Context, itemID int64, interval bookingDomain.Interval, excludeID int64) (bool, error) {
	cond := squirrel.And{
		squirrel.Eq{"item_id": itemID},
		squirrel.Eq{"status": string(bookingDomain.StatusApproved)},
		squirrel.Lt{"start_at": interval.End},
		squirrel.Gt{"end_at": interval.Start},
	}
	if excludeID != 0 {
		cond = append(cond, squirrel.NotEq{"id": excludeID})
	}

	query, args, err := cond.ToSql()
	if err != nil {
		return false, fmt.Errorf("build overlap query failed: %w", err)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", translateError(err))
	}
	return count > 0, nil
}

// List returns one page of a bucket for the booker or owner view.
func (r *GormBookingRepository) List(ctx context.Context, q bookingDomain.ListQuery) ([]*bookingDomain.Booking, error) {
	db := r.db.WithContext(ctx).Model(&BookingModel{}).Select("bookings.*")

	switch q.View {
	case bookingDomain.ViewOwner:
		db = db.Joins("JOIN items ON items.id = bookings.item_id").Where("items.owner_id = ?", q.UserID)
	default:
		db = db.Where("bookings.booker_id = ?", q.UserID)
	}

	if where := q.State.Where(q.AsOf); where != nil {
		sqlStr, args, err := where.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build %s condition failed: %w", q.State, err)
		}
		db = db.Where(sqlStr, args...)
	}

	dir := "DESC"
	if q.State.Ascending() {
		dir = "ASC"
	}

	var models []BookingModel
	if err := db.
		Order(fmt.Sprintf("bookings.start_at %s, bookings.id %s", dir, dir)).
		Offset(q.Page.From).
		Limit(q.Page.Size).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s bookings: %w", q.View, translateError(err))
	}
	return toDomainBookings(models)
}

// FindLastApproved returns the approved booking with the latest start before asOf.
func (r *GormBookingRepository) FindLastApproved(ctx context.Context, itemID int64, asOf time.Time) (*bookingDomain.Booking, error) {
	return r.firstApproved(ctx, itemID, "start_at < ?", asOf, "start_at DESC, id DESC")
}

// FindNextApproved returns the approved booking with the earliest start after asOf.
func (r *GormBookingRepository) FindNextApproved(ctx context.Context, itemID int64, asOf time.Time) (*bookingDomain.Booking, error) {
	return r.firstApproved(ctx, itemID, "start_at > ?", asOf, "start_at ASC, id ASC")
}

func (r *GormBookingRepository) firstApproved(ctx context.Context, itemID int64, cond string, asOf time.Time, order string) (*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND status = ?", itemID, string(bookingDomain.StatusApproved)).
		Where(cond, asOf).
		Order(order).
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find approved booking: %w", translateError(err))
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toDomainBooking(&models[0])
}

// ExistsFinishedApproved reports whether the booker has an approved booking
// of the item that ended before asOf.
func (r *GormBookingRepository) ExistsFinishedApproved(ctx context.Context, bookerID, itemID int64, asOf time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("booker_id = ? AND item_id = ? AND status = ? AND end_at < ?",
			bookerID, itemID, string(bookingDomain.StatusApproved), asOf).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check finished bookings: %w", translateError(err))
	}
	return count > 0, nil
}

// FindWaitingByItem returns the WAITING bookings of an item by start.
func (r *GormBookingRepository) FindWaitingByItem(ctx context.Context, itemID int64) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND status = ?", itemID, string(bookingDomain.StatusWaiting)).
		Order("start_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find waiting bookings: %w", translateError(err))
	}
	return toDomainBookings(models)
}

// CountByStatus returns booking counts grouped by status.
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking and assigns the generated id.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", translateError(err))
	}
	bk.AssignID(model.ID)
	return nil
}

// Update persists a status change with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	// Only update if the row still has the version read before IncrementVersion was called.
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", bk.ID(), expectedVersion).
		Updates(map[string]interface{}{
			"status":     string(bk.Status()),
			"version":    bk.Version(),
			"updated_at": bk.UpdatedAt(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return apperror.Wrap(bookingDomain.ErrWriteRace, apperror.KindConflict,
			"booking was modified by another transaction")
	}
	return nil
}

// translateError maps Postgres failures onto domain errors. Serialization
// failures become retryable write races.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return apperror.Wrap(fmt.Errorf("%w: %s", bookingDomain.ErrWriteRace, pgErr.Message),
			apperror.KindConflict, "booking was modified by another transaction")
	case pgerrcode.ExclusionViolation:
		return apperror.Wrap(err, apperror.KindConflict, bookingDomain.BusyMessage)
	case pgerrcode.UniqueViolation:
		return apperror.Wrap(err, apperror.KindConflict, "record already exists")
	}
	return err
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:        bk.ID(),
		ItemID:    bk.ItemID(),
		BookerID:  bk.BookerID(),
		StartAt:   bk.Start(),
		EndAt:     bk.End(),
		Status:    string(bk.Status()),
		Version:   bk.Version(),
		CreatedAt: bk.CreatedAt(),
		UpdatedAt: bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	return bookingDomain.ReconstructBooking(
		m.ID,
		m.ItemID,
		m.BookerID,
		bookingDomain.Interval{Start: m.StartAt.UTC(), End: m.EndAt.UTC()},
		status,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
