// Package store is the relational layer for users and items, plus the
// process-lifetime registries the agent endpoints keep in memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned when a row with the requested id does not exist.
var ErrNotFound = errors.New("not found")

// User is a stored account. The password hash never leaves the API.
type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	HashedPassword string     `json:"-"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Item is a stored item owned by a user.
type Item struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	OwnerID     int64      `json:"owner_id"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// UserCreate carries the fields required to create a user.
type UserCreate struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserUpdate carries optional fields; nil means leave unchanged.
type UserUpdate struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
}

// ItemCreate carries the fields required to create an item.
type ItemCreate struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id" binding:"required"`
}

// ItemUpdate carries optional fields; nil means leave unchanged.
type ItemUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// Store is the persistence surface the HTTP handlers depend on.
type Store interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, skip, limit int) ([]User, error)
	CreateUser(ctx context.Context, in UserCreate) (*User, error)
	UpdateUser(ctx context.Context, id int64, in UserUpdate) (*User, error)
	DeleteUser(ctx context.Context, id int64) error

	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, skip, limit int) ([]Item, error)
	CreateItem(ctx context.Context, in ItemCreate) (*Item, error)
	UpdateItem(ctx context.Context, id int64, in ItemUpdate) (*Item, error)
	DeleteItem(ctx context.Context, id int64) error

	Close() error
}

// Open selects a backend by driver name: "sqlite" (default) or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "snackforge.db"
		}
		return OpenSQLite(dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func normalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	return skip, limit
}
