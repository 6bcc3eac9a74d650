package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// WorkspaceRepository stores workspaces and their account links.
type WorkspaceRepository interface {
	// Create inserts a workspace together with its account links.
	Create(ctx context.Context, w *model.Workspace) error
	// Get returns a live workspace with AccountIDs filled.
	Get(ctx context.Context, id uuid.UUID) (*model.Workspace, error)
	// Rename sets the workspace name.
	Rename(ctx context.Context, id uuid.UUID, name string) error
	// AccountIDs lists the live accounts currently linked to the workspace.
	AccountIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	// LinkAccounts links accounts to the workspace; existing links are kept.
	LinkAccounts(ctx context.Context, id uuid.UUID, accountIDs []uuid.UUID) error
	// UnlinkAccounts removes account links.
	UnlinkAccounts(ctx context.Context, id uuid.UUID, accountIDs []uuid.UUID) error
	// SoftDelete marks the workspace deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// Restore clears the deletion mark of a workspace owned by ownerID.
	Restore(ctx context.Context, id, ownerID uuid.UUID) error
	// ListForUser returns live workspaces owned by or shared with userID, and the total count.
	ListForUser(ctx context.Context, userID uuid.UUID, p model.Page) ([]model.Workspace, int, error)
}

// ResourceRepository resolves the owner of an account or workspace.
type ResourceRepository interface {
	// Resource returns the live resource of kind, or errs.ErrNotFound.
	Resource(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error)
}
