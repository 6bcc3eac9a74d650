package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// SecureStatus is the state of a second factor.
type SecureStatus string

const (
	SecureNotRegistered SecureStatus = "NOT_REGISTERED"
	SecureEnabled       SecureStatus = "ENABLED"
	SecureDisabled      SecureStatus = "DISABLED"
)

// TwoFA is the TOTP enrollment of a user. SecretEnc is sealed by the
// EncryptionService; it holds the pending secret until the first valid code
// switches Status to ENABLED.
type TwoFA struct {
	UserID    uuid.UUID
	SecretEnc string
	Status    SecureStatus
	UpdatedAt time.Time
}

// LoginTwoFAState tells a client what a password-only login still needs.
type LoginTwoFAState string

const (
	TwoFAEnabledWithSecret LoginTwoFAState = "TWO_FA_ENABLED_WITH_SECRET"
	TwoFAEnabledNoSecret   LoginTwoFAState = "TWO_FA_ENABLED_NO_SECRET"
)

// HighLevelPasswordType is the kind of secondary secret.
type HighLevelPasswordType string

const HighLevelTextKey HighLevelPasswordType = "TEXT_KEY"

// HighLevelPassword is a secondary password guarding password reveals.
type HighLevelPassword struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Hash      []byte
	Salt      []byte
	Type      HighLevelPasswordType
	Status    SecureStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactInfo is a personal contact card owned by one user.
type ContactInfo struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	FirstName   string
	MidName     string
	LastName    string
	Street      string
	City        string
	PostalCode  string
	Country     string
	Email       string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}
