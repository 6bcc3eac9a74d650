package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// MemberRepository stores sharing-member rows for both resource kinds.
// Only sharing.Registry writes through it.
type MemberRepository interface {
	// Lock serializes writers of one resource for the rest of the transaction in ctx.
	Lock(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) error
	// Insert adds a row; an existing (resource, member) row is left untouched.
	Insert(ctx context.Context, m model.SharingMember) error
	// Upsert adds a row or overwrites the role of the existing one.
	Upsert(ctx context.Context, m model.SharingMember) error
	// UpdateRole sets the role of an existing row, never one whose member is ownerID.
	// It reports whether a row was changed.
	UpdateRole(ctx context.Context, kind model.ResourceKind, resourceID, memberID, ownerID uuid.UUID, role model.RoleAccess) (bool, error)
	// ListByResource lists rows of a resource with member emails.
	ListByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) ([]model.SharingMember, error)
	// ListByMember lists rows held by a member.
	ListByMember(ctx context.Context, kind model.ResourceKind, memberID uuid.UUID) ([]model.SharingMember, error)
	// Delete removes rows whose resource is in resourceIDs and member is in memberIDs.
	Delete(ctx context.Context, kind model.ResourceKind, resourceIDs, memberIDs []uuid.UUID) (int64, error)
	// DeleteByResource removes every row of a resource.
	DeleteByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) (int64, error)
}

// InvitationRepository stores invitations for both resource kinds.
type InvitationRepository interface {
	// CreateBatch inserts invitations, filling IDs and timestamps.
	CreateBatch(ctx context.Context, invs []*model.Invitation) error
	// Get returns an invitation of kind.
	Get(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Invitation, error)
	// SetStatus moves an invitation from one status to another; false if it was not in from.
	SetStatus(ctx context.Context, kind model.ResourceKind, id uuid.UUID, from, to model.InvitationStatus) (bool, error)
	// ListPending lists PENDING invitations addressed to email.
	ListPending(ctx context.Context, kind model.ResourceKind, email string) ([]model.Invitation, error)
	// ListPendingByResource lists PENDING invitations to one resource.
	ListPendingByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) ([]model.Invitation, error)
	// SetRole changes the role of a PENDING invitation; ErrNotFound otherwise.
	SetRole(ctx context.Context, kind model.ResourceKind, id uuid.UUID, role model.RoleAccess) error
}
