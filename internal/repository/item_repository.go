package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	itemDomain "github.com/shareit-platform/service-booking/internal/domain/item"
	"github.com/shareit-platform/service-booking/internal/platform/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemModel is the GORM model for the items table.
type ItemModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	OwnerID     int64     `gorm:"not null;index"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (ItemModel) TableName() string { return "items" }

// GormItemRepository implements item.Directory using GORM.
type GormItemRepository struct {
	db *gorm.DB
}

func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

func (r *GormItemRepository) FindByID(ctx context.Context, id int64) (*itemDomain.Item, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForShare reads the item with SELECT ... FOR SHARE. A concurrent
// SetAvailability waits for the surrounding transaction to finish.
func (r *GormItemRepository) FindByIDForShare(ctx context.Context, id int64) (*itemDomain.Item, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}), id)
}

func (r *GormItemRepository) findOne(db *gorm.DB, id int64) (*itemDomain.Item, error) {
	var model ItemModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Item", id)
		}
		return nil, fmt.Errorf("failed to find item by ID: %w", translateError(err))
	}
	return toItemDomain(&model), nil
}

func (r *GormItemRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]*itemDomain.Item, error) {
	items := make(map[int64]*itemDomain.Item, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	var models []ItemModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	for i := range models {
		items[models[i].ID] = toItemDomain(&models[i])
	}
	return items, nil
}

// Save inserts a new item and assigns the generated id.
func (r *GormItemRepository) Save(ctx context.Context, it *itemDomain.Item) error {
	model := toItemModel(it)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	it.AssignID(model.ID)
	return nil
}

// SetAvailability flips the availability flag of an item.
func (r *GormItemRepository) SetAvailability(ctx context.Context, id int64, available bool) error {
	result := r.db.WithContext(ctx).
		Model(&ItemModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_available": available, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to update item availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFound("Item", id)
	}
	return nil
}

// --- Conversions ---

func toItemModel(it *itemDomain.Item) *ItemModel {
	return &ItemModel{
		ID:          it.ID(),
		OwnerID:     it.OwnerID(),
		Name:        it.Name(),
		Description: it.Description(),
		IsAvailable: it.IsAvailable(),
		CreatedAt:   it.CreatedAt(),
		UpdatedAt:   it.UpdatedAt(),
	}
}

func toItemDomain(m *ItemModel) *itemDomain.Item {
	return itemDomain.Reconstruct(
		m.ID, m.OwnerID,
		m.Name, m.Description,
		m.IsAvailable,
		m.CreatedAt, m.UpdatedAt,
	)
}
