package user

import (
	"context"
	"time"
)

// User is a registered account as seen by the booking core.
type User struct {
	id        int64
	name      string
	email     string
	createdAt time.Time
}

// Reconstruct rebuilds a User from persistence data.
func Reconstruct(id int64, name, email string, createdAt time.Time) *User {
	return &User{id: id, name: name, email: email, createdAt: createdAt}
}

func (u *User) ID() int64            { return u.id }
func (u *User) Name() string         { return u.name }
func (u *User) Email() string        { return u.email }
func (u *User) CreatedAt() time.Time { return u.createdAt }

// Directory is the read-only view of user accounts.
type Directory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
