package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// AccountRepository stores credentials and their version history.
type AccountRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// Get returns a live account.
	Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetMany returns the live accounts among ids; missing ids are skipped.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Account, error)
	// Update overwrites domain, username and sealed password.
	Update(ctx context.Context, a *model.Account) error
	// SoftDelete marks the account deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// Restore clears the deletion mark of an account owned by ownerID.
	Restore(ctx context.Context, id, ownerID uuid.UUID) error
	// ListForUser returns live accounts owned by or shared with userID, and the total count.
	ListForUser(ctx context.Context, userID uuid.UUID, p model.Page) ([]model.Account, int, error)

	// AddVersion stores a snapshot.
	AddVersion(ctx context.Context, v *model.AccountVersion) error
	// Versions lists snapshots of an account, oldest first.
	Versions(ctx context.Context, accountID uuid.UUID) ([]model.AccountVersion, error)
	// GetVersion returns a snapshot of an account owned by ownerID.
	GetVersion(ctx context.Context, versionID, ownerID uuid.UUID) (*model.AccountVersion, error)
	// DeleteVersion removes a snapshot.
	DeleteVersion(ctx context.Context, versionID uuid.UUID) error
}
