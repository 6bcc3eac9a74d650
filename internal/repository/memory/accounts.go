package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// AccountRepo implements AccountRepository.
type AccountRepo struct{ s *Store }

// Create inserts an account.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	return r.s.write(ctx, func(st *state) error {
		if a.ID == uuid.Nil {
			a.ID = newID()
		}
		now := time.Now()
		a.CreatedAt, a.UpdatedAt = now, now
		st.accounts[a.ID] = *a
		return nil
	})
}

// Get returns a live account.
func (r *AccountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var out *model.Account
	err := r.s.read(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok || a.DeletedAt != nil {
			return errs.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

// GetMany returns the live accounts among ids.
func (r *AccountRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Account, error) {
	var out []model.Account
	err := r.s.read(ctx, func(st *state) error {
		for _, id := range ids {
			if a, ok := st.accounts[id]; ok && a.DeletedAt == nil {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// Update overwrites the mutable fields of a live account.
func (r *AccountRepo) Update(ctx context.Context, a *model.Account) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.accounts[a.ID]
		if !ok || cur.DeletedAt != nil {
			return errs.ErrNotFound
		}
		cur.Domain, cur.Username, cur.PasswordEnc = a.Domain, a.Username, a.PasswordEnc
		cur.UpdatedAt = time.Now()
		a.UpdatedAt = cur.UpdatedAt
		st.accounts[a.ID] = cur
		return nil
	})
}

// SoftDelete marks a live account deleted.
func (r *AccountRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok || a.DeletedAt != nil {
			return errs.ErrNotFound
		}
		now := time.Now()
		a.DeletedAt = &now
		st.accounts[id] = a
		return nil
	})
}

// Restore clears the deletion mark of an account owned by ownerID.
func (r *AccountRepo) Restore(ctx context.Context, id, ownerID uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok || a.DeletedAt == nil || a.OwnerID != ownerID {
			return errs.ErrNotFound
		}
		a.DeletedAt = nil
		st.accounts[id] = a
		return nil
	})
}

// ListForUser returns live accounts owned by or shared with userID, newest first.
func (r *AccountRepo) ListForUser(ctx context.Context, userID uuid.UUID, p model.Page) ([]model.Account, int, error) {
	var all []model.Account
	err := r.s.read(ctx, func(st *state) error {
		kw := strings.ToLower(p.Keyword)
		for _, a := range st.accounts {
			if a.DeletedAt != nil {
				continue
			}
			_, shared := st.members[memberKey{model.KindAccount, a.ID, userID}]
			if a.OwnerID != userID && !shared {
				continue
			}
			if kw != "" && !strings.Contains(strings.ToLower(a.Domain), kw) && !strings.Contains(strings.ToLower(a.Username), kw) {
				continue
			}
			all = append(all, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(all, func(a, b model.Account) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(all, p), len(all), nil
}

// AddVersion stores a snapshot.
func (r *AccountRepo) AddVersion(ctx context.Context, v *model.AccountVersion) error {
	return r.s.write(ctx, func(st *state) error {
		if v.ID == uuid.Nil {
			v.ID = newID()
		}
		v.CreatedAt = time.Now()
		st.versions[v.ID] = *v
		return nil
	})
}

// Versions lists snapshots of an account, oldest first.
func (r *AccountRepo) Versions(ctx context.Context, accountID uuid.UUID) ([]model.AccountVersion, error) {
	var out []model.AccountVersion
	err := r.s.read(ctx, func(st *state) error {
		for _, v := range st.versions {
			if v.AccountID == accountID {
				out = append(out, v)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.AccountVersion) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, err
}

// GetVersion returns a snapshot of a live account owned by ownerID.
func (r *AccountRepo) GetVersion(ctx context.Context, versionID, ownerID uuid.UUID) (*model.AccountVersion, error) {
	var out *model.AccountVersion
	err := r.s.read(ctx, func(st *state) error {
		v, ok := st.versions[versionID]
		if !ok {
			return errs.ErrNotFound
		}
		a, ok := st.accounts[v.AccountID]
		if !ok || a.DeletedAt != nil || a.OwnerID != ownerID {
			return errs.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

// DeleteVersion removes a snapshot.
func (r *AccountRepo) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		delete(st.versions, versionID)
		return nil
	})
}
