package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// TwoFARepository stores per-user TOTP enrollment.
type TwoFARepository interface {
	// Get returns the enrollment of userID, or ErrNotFound when none was ever stored.
	Get(ctx context.Context, userID uuid.UUID) (*model.TwoFA, error)
	// Upsert writes the enrollment of t.UserID.
	Upsert(ctx context.Context, t *model.TwoFA) error
}

// HighLevelPasswordRepository stores one secondary password per user.
type HighLevelPasswordRepository interface {
	// Get returns the high-level password of userID, or ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*model.HighLevelPassword, error)
	// Upsert replaces the high-level password of p.UserID.
	Upsert(ctx context.Context, p *model.HighLevelPassword) error
	// SetStatus changes the status; ErrNotFound when the user has none.
	SetStatus(ctx context.Context, userID uuid.UUID, status model.SecureStatus) error
}

// ContactInfoRepository stores contact cards. Every call is scoped to the owner.
type ContactInfoRepository interface {
	Create(ctx context.Context, c *model.ContactInfo) error
	// Get returns a live card of ownerID.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.ContactInfo, error)
	// List returns live cards of ownerID, newest first.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.ContactInfo, error)
	// Update overwrites the mutable fields of a live card.
	Update(ctx context.Context, c *model.ContactInfo) error
	SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error
	// Restore clears the deletion mark of a card of ownerID.
	Restore(ctx context.Context, ownerID, id uuid.UUID) error
}
