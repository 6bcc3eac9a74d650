package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/activity"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/validate"
)

// WorkspaceRegistry is the workspace-scope registry with its account cascade.
type WorkspaceRegistry interface {
	MemberRegistry
	UpdateAccountsSharingFromWorkspace(ctx context.Context, workspaceID uuid.UUID, newAccountIDs, removedAccountIDs []uuid.UUID, actingUserID uuid.UUID) error
}

// WorkspaceInput carries the writable fields of a workspace.
type WorkspaceInput struct {
	Name       string `validate:"required,max=100"`
	AccountIDs []uuid.UUID
}

// WorkspaceView is a workspace with its sharing members.
type WorkspaceView struct {
	model.Workspace
	Members []model.SharingMember
}

// WorkspaceService defines operations over workspaces.
type WorkspaceService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in WorkspaceInput) (*model.Workspace, error)
	Get(ctx context.Context, id uuid.UUID) (*WorkspaceView, error)
	List(ctx context.Context, userID uuid.UUID, p model.Page) ([]WorkspaceView, int, error)
	Update(ctx context.Context, actorID, id uuid.UUID, in WorkspaceInput) error
	SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error
	Restore(ctx context.Context, ownerID, id uuid.UUID) error
}

// WorkspaceServiceImpl implements WorkspaceService.
type WorkspaceServiceImpl struct {
	workspaces     repository.WorkspaceRepository
	accounts       repository.AccountRepository
	users          repository.UserRepository
	members        WorkspaceRegistry
	accountMembers MemberRegistry
	activity       *activity.Service
	tx             repository.TxManager
	log            *zap.Logger
}

// NewWorkspaceService constructs WorkspaceService.
func NewWorkspaceService(
	workspaces repository.WorkspaceRepository,
	accounts repository.AccountRepository,
	users repository.UserRepository,
	members WorkspaceRegistry,
	accountMembers MemberRegistry,
	act *activity.Service,
	tx repository.TxManager,
	log *zap.Logger,
) *WorkspaceServiceImpl {
	return &WorkspaceServiceImpl{
		workspaces: workspaces, accounts: accounts, users: users,
		members: members, accountMembers: accountMembers,
		activity: act, tx: tx, log: log,
	}
}

// Create stores a workspace of ownerID holding the accounts ownerID can see.
func (s *WorkspaceServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, in WorkspaceInput) (*model.Workspace, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	var w *model.Workspace
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, ownerID); err != nil {
			return notFound(err, errs.ErrUserNotFound)
		}
		accounts, err := s.visibleAccounts(ctx, ownerID, in.AccountIDs)
		if err != nil {
			return err
		}
		w = &model.Workspace{OwnerID: ownerID, Name: strings.TrimSpace(in.Name), AccountIDs: ids(accounts)}
		if err := s.workspaces.Create(ctx, w); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Get returns a live workspace with its accounts and members.
func (s *WorkspaceServiceImpl) Get(ctx context.Context, id uuid.UUID) (*WorkspaceView, error) {
	w, err := s.workspaces.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, errs.ErrWorkspaceNotFound)
	}
	members, err := s.members.ListByResource(ctx, id)
	if err != nil {
		return nil, err
	}
	return &WorkspaceView{Workspace: *w, Members: members}, nil
}

// List returns one page of the workspaces owned by or shared with userID.
func (s *WorkspaceServiceImpl) List(ctx context.Context, userID uuid.UUID, p model.Page) ([]WorkspaceView, int, error) {
	list, total, err := s.workspaces.ListForUser(ctx, userID, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]WorkspaceView, 0, len(list))
	for _, w := range list {
		members, err := s.members.ListByResource(ctx, w.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, WorkspaceView{Workspace: w, Members: members})
	}
	return out, total, nil
}

// Update renames a workspace and replaces its account set. Members' account
// rows follow the change. When a member adds accounts the workspace owner
// cannot see, the owner gets READ on them, and the owner is notified.
func (s *WorkspaceServiceImpl) Update(ctx context.Context, actorID, id uuid.UUID, in WorkspaceInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	var ev *activity.Event
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.workspaces.Get(ctx, id)
		if err != nil {
			return notFound(err, errs.ErrWorkspaceNotFound)
		}
		requested := dedupeIDs(in.AccountIDs)
		var fresh, removed []uuid.UUID
		for _, a := range requested {
			if !slices.Contains(w.AccountIDs, a) {
				fresh = append(fresh, a)
			}
		}
		for _, cur := range w.AccountIDs {
			if !slices.Contains(requested, cur) {
				removed = append(removed, cur)
			}
		}
		added, err := s.visibleAccounts(ctx, actorID, fresh)
		if err != nil {
			return err
		}

		if err := s.workspaces.Rename(ctx, id, strings.TrimSpace(in.Name)); err != nil {
			return notFound(err, errs.ErrWorkspaceNotFound)
		}
		if err := s.workspaces.UnlinkAccounts(ctx, id, removed); err != nil {
			return err
		}
		if err := s.workspaces.LinkAccounts(ctx, id, ids(added)); err != nil {
			return err
		}
		if err := s.members.UpdateAccountsSharingFromWorkspace(ctx, id, ids(added), removed, actorID); err != nil {
			return err
		}

		if actorID == w.OwnerID {
			return nil
		}
		for _, a := range added {
			if a.OwnerID == w.OwnerID {
				continue
			}
			if err := s.accountMembers.Create(ctx, a.ID, w.OwnerID, model.RoleRead); err != nil {
				return fmt.Errorf("grant owner read on %s: %w", a.ID, err)
			}
		}
		res := model.Resource{Kind: model.KindWorkspace, ID: id, OwnerID: w.OwnerID, Name: w.Name}
		ev, err = s.activity.Record(ctx, actorID, res, model.RoleUpdate, model.ActivityUpdateWorkspace)
		return err
	})
	if err != nil {
		return err
	}
	s.activity.Emit(ctx, ev)
	return nil
}

// SoftDelete marks a workspace deleted, dropping its rows and the members'
// derived account rows. Only the owner may.
func (s *WorkspaceServiceImpl) SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.workspaces.Get(ctx, id)
		if err != nil {
			return notFound(err, errs.ErrWorkspaceNotFound)
		}
		if w.OwnerID != ownerID {
			return errs.ErrWorkspaceNotFound
		}
		if err := s.members.RemoveAll(ctx, id); err != nil {
			return err
		}
		if err := s.workspaces.SoftDelete(ctx, id); err != nil {
			return notFound(err, errs.ErrWorkspaceNotFound)
		}
		s.log.Info("workspace deleted", zap.Stringer("workspace", id), zap.Stringer("owner", ownerID))
		return nil
	})
}

// Restore brings back a soft-deleted workspace of ownerID. Membership is not restored.
func (s *WorkspaceServiceImpl) Restore(ctx context.Context, ownerID, id uuid.UUID) error {
	return notFound(s.workspaces.Restore(ctx, id, ownerID), errs.ErrWorkspaceNotFound)
}

// visibleAccounts returns the live accounts among want that userID owns or
// is a member of, in request order. Others are dropped.
func (s *WorkspaceServiceImpl) visibleAccounts(ctx context.Context, userID uuid.UUID, want []uuid.UUID) ([]model.Account, error) {
	if len(want) == 0 {
		return nil, nil
	}
	accounts, err := s.accounts.GetMany(ctx, dedupeIDs(want))
	if err != nil {
		return nil, err
	}
	shared, err := s.accountMembers.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	member := make(map[uuid.UUID]bool, len(shared))
	for _, m := range shared {
		member[m.ResourceID] = true
	}
	out := accounts[:0]
	for _, a := range accounts {
		if a.OwnerID == userID || member[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func ids(accounts []model.Account) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ID)
	}
	return out
}

func dedupeIDs(in []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]uuid.UUID, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
