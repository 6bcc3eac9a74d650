package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// WorkspaceRepo implements WorkspaceRepository.
type WorkspaceRepo struct{ s *Store }

// Create inserts a workspace with its account links.
func (r *WorkspaceRepo) Create(ctx context.Context, w *model.Workspace) error {
	return r.s.write(ctx, func(st *state) error {
		if w.ID == uuid.Nil {
			w.ID = newID()
		}
		now := time.Now()
		w.CreatedAt, w.UpdatedAt = now, now
		stored := *w
		stored.AccountIDs = nil
		st.workspaces[w.ID] = stored
		link(st, w.ID, w.AccountIDs)
		return nil
	})
}

// Get returns a live workspace with its live account links.
func (r *WorkspaceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	var out *model.Workspace
	err := r.s.read(ctx, func(st *state) error {
		w, ok := st.workspaces[id]
		if !ok || w.DeletedAt != nil {
			return errs.ErrNotFound
		}
		w.AccountIDs = liveLinks(st, id)
		out = &w
		return nil
	})
	return out, err
}

// Rename sets the name of a live workspace.
func (r *WorkspaceRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.s.write(ctx, func(st *state) error {
		w, ok := st.workspaces[id]
		if !ok || w.DeletedAt != nil {
			return errs.ErrNotFound
		}
		w.Name = name
		w.UpdatedAt = time.Now()
		st.workspaces[id] = w
		return nil
	})
}

// AccountIDs lists the live accounts linked to a workspace.
func (r *WorkspaceRepo) AccountIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := r.s.read(ctx, func(st *state) error {
		out = liveLinks(st, id)
		return nil
	})
	return out, err
}

// LinkAccounts links accounts to a workspace.
func (r *WorkspaceRepo) LinkAccounts(ctx context.Context, id uuid.UUID, accountIDs []uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		link(st, id, accountIDs)
		return nil
	})
}

// UnlinkAccounts removes account links.
func (r *WorkspaceRepo) UnlinkAccounts(ctx context.Context, id uuid.UUID, accountIDs []uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		for _, a := range accountIDs {
			delete(st.links[id], a)
		}
		return nil
	})
}

// SoftDelete marks a live workspace deleted.
func (r *WorkspaceRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		w, ok := st.workspaces[id]
		if !ok || w.DeletedAt != nil {
			return errs.ErrNotFound
		}
		now := time.Now()
		w.DeletedAt = &now
		st.workspaces[id] = w
		return nil
	})
}

// Restore clears the deletion mark of a workspace owned by ownerID.
func (r *WorkspaceRepo) Restore(ctx context.Context, id, ownerID uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		w, ok := st.workspaces[id]
		if !ok || w.DeletedAt == nil || w.OwnerID != ownerID {
			return errs.ErrNotFound
		}
		w.DeletedAt = nil
		st.workspaces[id] = w
		return nil
	})
}

// ListForUser returns live workspaces owned by or shared with userID, newest first.
func (r *WorkspaceRepo) ListForUser(ctx context.Context, userID uuid.UUID, p model.Page) ([]model.Workspace, int, error) {
	var all []model.Workspace
	err := r.s.read(ctx, func(st *state) error {
		kw := strings.ToLower(p.Keyword)
		for _, w := range st.workspaces {
			if w.DeletedAt != nil {
				continue
			}
			_, shared := st.members[memberKey{model.KindWorkspace, w.ID, userID}]
			if w.OwnerID != userID && !shared {
				continue
			}
			if kw != "" && !strings.Contains(strings.ToLower(w.Name), kw) {
				continue
			}
			all = append(all, w)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(all, func(a, b model.Workspace) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(all, p), len(all), nil
}

func link(st *state, workspaceID uuid.UUID, accountIDs []uuid.UUID) {
	if len(accountIDs) == 0 {
		return
	}
	set, ok := st.links[workspaceID]
	if !ok {
		set = make(map[uuid.UUID]struct{}, len(accountIDs))
		st.links[workspaceID] = set
	}
	for _, a := range accountIDs {
		set[a] = struct{}{}
	}
}

func liveLinks(st *state, workspaceID uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for a := range st.links[workspaceID] {
		if acc, ok := st.accounts[a]; ok && acc.DeletedAt == nil {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return out
}

// ResourceRepo implements ResourceRepository.
type ResourceRepo struct{ s *Store }

// Resource returns the ownership view of a live account or workspace.
func (r *ResourceRepo) Resource(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	var out *model.Resource
	err := r.s.read(ctx, func(st *state) error {
		switch kind {
		case model.KindAccount:
			a, ok := st.accounts[id]
			if !ok || a.DeletedAt != nil {
				return errs.ErrNotFound
			}
			out = &model.Resource{Kind: kind, ID: id, OwnerID: a.OwnerID, Name: a.Username}
		case model.KindWorkspace:
			w, ok := st.workspaces[id]
			if !ok || w.DeletedAt != nil {
				return errs.ErrNotFound
			}
			out = &model.Resource{Kind: kind, ID: id, OwnerID: w.OwnerID, Name: w.Name}
		default:
			return errs.Invalid("unknown resource kind " + string(kind))
		}
		return nil
	})
	return out, err
}
