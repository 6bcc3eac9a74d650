// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// UserRepository provides access to registered users.
type UserRepository interface {
	// Create inserts a new user; ErrAlreadyExists on duplicate email.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a live user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a live user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// LoginHistoryRepository records successful logins per device.
type LoginHistoryRepository interface {
	// Seen reports whether the user has logged in before from this (ip, agent) pair.
	Seen(ctx context.Context, userID uuid.UUID, ipHash []byte, userAgent string) (bool, error)
	// Add appends a login record.
	Add(ctx context.Context, rec *model.LoginRecord) error
}

// TxManager runs fn in a transaction carried by ctx. Nested calls join the outer transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
