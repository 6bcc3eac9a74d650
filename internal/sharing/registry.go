// Package sharing owns the sharing-member rows of accounts and workspaces.
//
// One Registry type serves both resource kinds. A workspace registry holds a
// reference to the account registry and cascades every membership change to
// the accounts linked to the workspace through the account registry's own
// entry points, so the uniqueness and owner-exclusion rules live in one place.
//
// Every mutating call runs in a single transaction and takes a lock keyed by
// the resource, so diffing the existing rows and applying the difference
// (cascade included) is atomic: on any error no row change of the call is kept.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/metrics"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
)

// Registry is the source of truth for who may access resources of one kind.
type Registry struct {
	kind      model.ResourceKind
	members   repository.MemberRepository
	resources repository.ResourceRepository
	tx        repository.TxManager
	log       *zap.Logger

	// workspace registries only
	workspaces repository.WorkspaceRepository
	accounts   *Registry
}

// NewAccountRegistry constructs the account-scope registry.
func NewAccountRegistry(members repository.MemberRepository, resources repository.ResourceRepository, tx repository.TxManager, log *zap.Logger) *Registry {
	return &Registry{kind: model.KindAccount, members: members, resources: resources, tx: tx, log: log}
}

// NewWorkspaceRegistry constructs the workspace-scope registry cascading into accounts.
func NewWorkspaceRegistry(
	members repository.MemberRepository,
	resources repository.ResourceRepository,
	workspaces repository.WorkspaceRepository,
	tx repository.TxManager,
	accounts *Registry,
	log *zap.Logger,
) *Registry {
	return &Registry{
		kind:       model.KindWorkspace,
		members:    members,
		resources:  resources,
		tx:         tx,
		log:        log,
		workspaces: workspaces,
		accounts:   accounts,
	}
}

// Kind returns the resource kind the registry owns.
func (r *Registry) Kind() model.ResourceKind { return r.kind }

// NotFoundFor returns the not-found error of a resource kind.
func NotFoundFor(kind model.ResourceKind) error {
	if kind == model.KindWorkspace {
		return errs.ErrWorkspaceNotFound
	}
	return errs.ErrAccountNotFound
}

// Create grants member the role on a resource. It is idempotent: an existing
// row is reused and keeps its role. Granting the owner is a no-op. A workspace
// grant is also created on every account currently in the workspace.
func (r *Registry) Create(ctx context.Context, resourceID, memberID uuid.UUID, role model.RoleAccess) error {
	if !role.Valid() {
		return errs.Invalid(fmt.Sprintf("invalid role %q", role))
	}
	if memberID == uuid.Nil {
		return errs.Invalid("empty member id")
	}
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := r.lockResource(ctx, resourceID)
		if err != nil {
			return err
		}
		if memberID == res.OwnerID {
			return nil
		}
		if err := r.members.Insert(ctx, model.SharingMember{
			Kind: r.kind, ResourceID: resourceID, MemberID: memberID, Role: role,
		}); err != nil {
			return fmt.Errorf("insert %s member: %w", r.kind, err)
		}
		if r.accounts == nil {
			return nil
		}

		accountIDs, err := r.workspaceAccounts(ctx, resourceID)
		if err != nil {
			return err
		}
		for _, accountID := range accountIDs {
			if err := r.accounts.Create(ctx, accountID, memberID, role); err != nil {
				return fmt.Errorf("cascade to account %s: %w", accountID, err)
			}
		}
		metrics.CascadeRows.WithLabelValues("create").Add(float64(len(accountIDs)))
		r.log.Debug("member granted",
			zap.String("kind", string(r.kind)),
			zap.Stringer("resource", resourceID),
			zap.Stringer("member", memberID),
			zap.Int("cascaded", len(accountIDs)),
		)
		return nil
	})
}

// ListByMember returns every row held by memberID. It always reads the store.
func (r *Registry) ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.SharingMember, error) {
	return r.members.ListByMember(ctx, r.kind, memberID)
}

// ListByResource returns every row of a resource.
func (r *Registry) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.SharingMember, error) {
	return r.members.ListByResource(ctx, r.kind, resourceID)
}

// UpdateRoleAccess reconciles the full desired member list against the stored one.
// Members missing from desired are removed (for workspaces, with their derived
// account rows). Listed members get their role updated; the owner is never a
// target. A listed member without a row fails the whole call with MEMBER_NOT_FOUND.
// For workspaces the resulting roles are then propagated to every linked account.
func (r *Registry) UpdateRoleAccess(ctx context.Context, resourceID, ownerID uuid.UUID, desired []model.MemberRole) error {
	desired, err := normalize(desired)
	if err != nil {
		return err
	}

	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := r.lockResource(ctx, resourceID)
		if err != nil {
			return err
		}
		existing, err := r.members.ListByResource(ctx, r.kind, resourceID)
		if err != nil {
			return err
		}

		keep := make(map[uuid.UUID]struct{}, len(desired))
		for _, d := range desired {
			keep[d.MemberID] = struct{}{}
		}
		var removed []uuid.UUID
		for _, e := range existing {
			if _, ok := keep[e.MemberID]; !ok {
				removed = append(removed, e.MemberID)
			}
		}

		var accountIDs []uuid.UUID
		if r.accounts != nil {
			if accountIDs, err = r.workspaceAccounts(ctx, resourceID); err != nil {
				return err
			}
		}

		if len(removed) > 0 {
			if _, err := r.members.Delete(ctx, r.kind, []uuid.UUID{resourceID}, removed); err != nil {
				return fmt.Errorf("delete %s members: %w", r.kind, err)
			}
			if r.accounts != nil && len(accountIDs) > 0 {
				if err := r.accounts.RemoveMembers(ctx, accountIDs, removed); err != nil {
					return err
				}
			}
		}

		for _, d := range desired {
			if d.MemberID == ownerID || d.MemberID == res.OwnerID {
				continue
			}
			ok, err := r.members.UpdateRole(ctx, r.kind, resourceID, d.MemberID, res.OwnerID, d.Role)
			if err != nil {
				return fmt.Errorf("update %s member role: %w", r.kind, err)
			}
			if !ok {
				return errs.MemberNotFound(d.MemberID, resourceID)
			}
		}

		if r.accounts != nil && len(desired) > 0 {
			for _, accountID := range accountIDs {
				if err := r.accounts.PropagateRoles(ctx, accountID, ownerID, desired); err != nil {
					return fmt.Errorf("propagate to account %s: %w", accountID, err)
				}
			}
			metrics.CascadeRows.WithLabelValues("propagate").Add(float64(len(accountIDs) * len(desired)))
		}
		r.log.Debug("members reconciled",
			zap.String("kind", string(r.kind)),
			zap.Stringer("resource", resourceID),
			zap.Int("desired", len(desired)),
			zap.Int("removed", len(removed)),
		)
		return nil
	})
}

// ChangeRole sets the role of one existing member. Workspace changes are
// propagated to the member's rows on every linked account.
func (r *Registry) ChangeRole(ctx context.Context, resourceID, memberID uuid.UUID, role model.RoleAccess) error {
	if !role.Valid() {
		return errs.Invalid(fmt.Sprintf("invalid role %q", role))
	}
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := r.lockResource(ctx, resourceID)
		if err != nil {
			return err
		}
		if memberID == res.OwnerID {
			return nil
		}
		ok, err := r.members.UpdateRole(ctx, r.kind, resourceID, memberID, res.OwnerID, role)
		if err != nil {
			return err
		}
		if !ok {
			return errs.MemberNotFound(memberID, resourceID)
		}
		if r.accounts == nil {
			return nil
		}
		accountIDs, err := r.workspaceAccounts(ctx, resourceID)
		if err != nil {
			return err
		}
		one := []model.MemberRole{{MemberID: memberID, Role: role}}
		for _, accountID := range accountIDs {
			if err := r.accounts.PropagateRoles(ctx, accountID, res.OwnerID, one); err != nil {
				return err
			}
		}
		return nil
	})
}

// PropagateRoles writes the given roles onto an account's rows, creating rows
// that are missing. Rows of members not listed are left alone, so direct
// grants survive. The account owner and ownerID are skipped.
func (r *Registry) PropagateRoles(ctx context.Context, resourceID, ownerID uuid.UUID, roles []model.MemberRole) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := r.lockResource(ctx, resourceID)
		if err != nil {
			return err
		}
		for _, m := range roles {
			if m.MemberID == res.OwnerID || m.MemberID == ownerID {
				continue
			}
			if err := r.members.Upsert(ctx, model.SharingMember{
				Kind: r.kind, ResourceID: resourceID, MemberID: m.MemberID, Role: m.Role,
			}); err != nil {
				return fmt.Errorf("upsert %s member: %w", r.kind, err)
			}
		}
		return nil
	})
}

// RemoveMembers deletes the rows of memberIDs on every resource in resourceIDs.
func (r *Registry) RemoveMembers(ctx context.Context, resourceIDs, memberIDs []uuid.UUID) error {
	if len(resourceIDs) == 0 || len(memberIDs) == 0 {
		return nil
	}
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, id := range sorted(resourceIDs) {
			if err := r.members.Lock(ctx, r.kind, id); err != nil {
				return err
			}
		}
		n, err := r.members.Delete(ctx, r.kind, resourceIDs, memberIDs)
		if err != nil {
			return fmt.Errorf("delete %s members: %w", r.kind, err)
		}
		metrics.CascadeRows.WithLabelValues("delete").Add(float64(n))
		return nil
	})
}

// UpdateAccountsSharingFromWorkspace keeps account rows in step with a change
// of the accounts linked to a workspace. Rows of every workspace member are
// removed from removedAccountIDs and created on newAccountIDs with the
// member's workspace role, except for actingUserID, who is not auto-granted
// access to accounts they added themselves.
func (r *Registry) UpdateAccountsSharingFromWorkspace(
	ctx context.Context, workspaceID uuid.UUID, newAccountIDs, removedAccountIDs []uuid.UUID, actingUserID uuid.UUID,
) error {
	if r.accounts == nil {
		return errors.New("sharing: account cascade on a non-workspace registry")
	}
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := r.lockResource(ctx, workspaceID); err != nil {
			return err
		}
		wsMembers, err := r.members.ListByResource(ctx, r.kind, workspaceID)
		if err != nil {
			return err
		}
		memberIDs := make([]uuid.UUID, 0, len(wsMembers))
		for _, m := range wsMembers {
			memberIDs = append(memberIDs, m.MemberID)
		}

		if err := r.accounts.RemoveMembers(ctx, removedAccountIDs, memberIDs); err != nil {
			return err
		}
		created := 0
		for _, accountID := range newAccountIDs {
			for _, m := range wsMembers {
				if m.MemberID == actingUserID {
					continue
				}
				if err := r.accounts.Create(ctx, accountID, m.MemberID, m.Role); err != nil {
					return fmt.Errorf("grant account %s: %w", accountID, err)
				}
				created++
			}
		}
		metrics.CascadeRows.WithLabelValues("create").Add(float64(created))
		return nil
	})
}

// RemoveAll deletes every row of a resource being deleted. For workspaces the
// members' derived rows on linked accounts go too.
func (r *Registry) RemoveAll(ctx context.Context, resourceID uuid.UUID) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.members.Lock(ctx, r.kind, resourceID); err != nil {
			return err
		}
		if r.accounts != nil {
			rows, err := r.members.ListByResource(ctx, r.kind, resourceID)
			if err != nil {
				return err
			}
			accountIDs, err := r.workspaceAccounts(ctx, resourceID)
			if err != nil {
				return err
			}
			memberIDs := make([]uuid.UUID, 0, len(rows))
			for _, m := range rows {
				memberIDs = append(memberIDs, m.MemberID)
			}
			if err := r.accounts.RemoveMembers(ctx, accountIDs, memberIDs); err != nil {
				return err
			}
		}
		_, err := r.members.DeleteByResource(ctx, r.kind, resourceID)
		return err
	})
}

func (r *Registry) lockResource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	res, err := r.resources.Resource(ctx, r.kind, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, NotFoundFor(r.kind)
		}
		return nil, err
	}
	if err := r.members.Lock(ctx, r.kind, id); err != nil {
		return nil, fmt.Errorf("lock %s %s: %w", r.kind, id, err)
	}
	return res, nil
}

func (r *Registry) workspaceAccounts(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := r.workspaces.AccountIDs(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("workspace accounts: %w", err)
	}
	return sorted(ids), nil
}

// normalize validates roles and collapses duplicate members, last entry wins.
func normalize(in []model.MemberRole) ([]model.MemberRole, error) {
	idx := make(map[uuid.UUID]int, len(in))
	out := make([]model.MemberRole, 0, len(in))
	for i, m := range in {
		if m.MemberID == uuid.Nil {
			return nil, errs.Invalid(fmt.Sprintf("member[%d]: empty id", i))
		}
		if !m.Role.Valid() {
			return nil, errs.Invalid(fmt.Sprintf("member[%d]: invalid role %q", i, m.Role))
		}
		if j, ok := idx[m.MemberID]; ok {
			out[j].Role = m.Role
			continue
		}
		idx[m.MemberID] = len(out)
		out = append(out, m)
	}
	return out, nil
}

func sorted(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return out
}
