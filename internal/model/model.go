// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)

	// Set instead of AccessToken when the login waits for a one-time code.
	TwoFA     LoginTwoFAState
	Challenge string
}

// UserRole is the platform-wide role of a user.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents a registered person. Sensitive keys are never stored in plaintext.
type User struct {
	ID              uuid.UUID // PK
	Name            string
	Email           string // unique, stored lower-case
	PwdHash         []byte // Argon2id(password, SaltAuth)
	SaltAuth        []byte // per-user auth salt
	Role            UserRole
	IsAuthenticated bool
	CreatedAt       time.Time
	DeletedAt       *time.Time
}

// Account is a stored third-party credential owned by one user.
type Account struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Domain      string
	Username    string
	PasswordEnc string // sealed by the EncryptionService
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// AccountVersion is a snapshot of an account taken before an update.
type AccountVersion struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	ActorID     uuid.UUID
	Domain      string
	Username    string
	PasswordEnc string
	CreatedAt   time.Time
}

// Workspace groups accounts under one owner.
type Workspace struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Name       string
	AccountIDs []uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// LoginRecord is one successful login from a device.
type LoginRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IPHash    []byte
	UserAgent string
	CreatedAt time.Time
}

// Page describes list pagination and filtering.
type Page struct {
	Page    int
	Limit   int
	Keyword string
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}
