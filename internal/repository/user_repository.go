package repository

import (
	"context"
	"fmt"
	"time"

	userDomain "github.com/shareit-platform/service-booking/internal/domain/user"
	"gorm.io/gorm"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Email     string    `gorm:"type:varchar(512);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (UserModel) TableName() string { return "users" }

// GormUserRepository implements user.Directory using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check user: %w", translateError(err))
	}
	return count > 0, nil
}

// Create inserts a user row. Accounts are owned elsewhere; this seeds the
// local copy.
func (r *GormUserRepository) Create(ctx context.Context, name, email string) (*userDomain.User, error) {
	model := UserModel{Name: name, Email: email, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", translateError(err))
	}
	return userDomain.Reconstruct(model.ID, model.Name, model.Email, model.CreatedAt), nil
}
