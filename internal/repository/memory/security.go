package memory

import (
	"context"
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// TwoFARepo implements TwoFARepository.
type TwoFARepo struct{ s *Store }

// Get returns the enrollment of userID.
func (r *TwoFARepo) Get(ctx context.Context, userID uuid.UUID) (*model.TwoFA, error) {
	var out *model.TwoFA
	err := r.s.read(ctx, func(st *state) error {
		t, ok := st.twofa[userID]
		if !ok {
			return errs.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

// Upsert writes the enrollment of t.UserID.
func (r *TwoFARepo) Upsert(ctx context.Context, t *model.TwoFA) error {
	return r.s.write(ctx, func(st *state) error {
		t.UpdatedAt = time.Now()
		st.twofa[t.UserID] = *t
		return nil
	})
}

// HighLevelPasswordRepo implements HighLevelPasswordRepository.
type HighLevelPasswordRepo struct{ s *Store }

// Get returns the high-level password of userID.
func (r *HighLevelPasswordRepo) Get(ctx context.Context, userID uuid.UUID) (*model.HighLevelPassword, error) {
	var out *model.HighLevelPassword
	err := r.s.read(ctx, func(st *state) error {
		p, ok := st.highLevel[userID]
		if !ok {
			return errs.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

// Upsert replaces the high-level password of p.UserID, keeping its id.
func (r *HighLevelPasswordRepo) Upsert(ctx context.Context, p *model.HighLevelPassword) error {
	return r.s.write(ctx, func(st *state) error {
		now := time.Now()
		if cur, ok := st.highLevel[p.UserID]; ok {
			p.ID, p.CreatedAt = cur.ID, cur.CreatedAt
		} else {
			if p.ID == uuid.Nil {
				p.ID = newID()
			}
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		st.highLevel[p.UserID] = *p
		return nil
	})
}

// SetStatus changes the status of the user's high-level password.
func (r *HighLevelPasswordRepo) SetStatus(ctx context.Context, userID uuid.UUID, status model.SecureStatus) error {
	return r.s.write(ctx, func(st *state) error {
		p, ok := st.highLevel[userID]
		if !ok {
			return errs.ErrNotFound
		}
		p.Status, p.UpdatedAt = status, time.Now()
		st.highLevel[userID] = p
		return nil
	})
}

// ContactInfoRepo implements ContactInfoRepository.
type ContactInfoRepo struct{ s *Store }

// Create inserts a card.
func (r *ContactInfoRepo) Create(ctx context.Context, c *model.ContactInfo) error {
	return r.s.write(ctx, func(st *state) error {
		if c.ID == uuid.Nil {
			c.ID = newID()
		}
		c.CreatedAt = time.Now()
		c.UpdatedAt = c.CreatedAt
		st.contacts[c.ID] = *c
		return nil
	})
}

// Get returns a live card of ownerID.
func (r *ContactInfoRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.ContactInfo, error) {
	var out *model.ContactInfo
	err := r.s.read(ctx, func(st *state) error {
		c, ok := st.contacts[id]
		if !ok || c.OwnerID != ownerID || c.DeletedAt != nil {
			return errs.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

// List returns live cards of ownerID, newest first.
func (r *ContactInfoRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.ContactInfo, error) {
	var out []model.ContactInfo
	err := r.s.read(ctx, func(st *state) error {
		for _, c := range st.contacts {
			if c.OwnerID == ownerID && c.DeletedAt == nil {
				out = append(out, c)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.ContactInfo) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, err
}

// Update overwrites the mutable fields of a live card.
func (r *ContactInfoRepo) Update(ctx context.Context, c *model.ContactInfo) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.contacts[c.ID]
		if !ok || cur.OwnerID != c.OwnerID || cur.DeletedAt != nil {
			return errs.ErrNotFound
		}
		c.CreatedAt = cur.CreatedAt
		c.UpdatedAt = time.Now()
		st.contacts[c.ID] = *c
		return nil
	})
}

// SoftDelete marks a live card deleted.
func (r *ContactInfoRepo) SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		c, ok := st.contacts[id]
		if !ok || c.OwnerID != ownerID || c.DeletedAt != nil {
			return errs.ErrNotFound
		}
		now := time.Now()
		c.DeletedAt = &now
		st.contacts[id] = c
		return nil
	})
}

// Restore clears the deletion mark of a card of ownerID.
func (r *ContactInfoRepo) Restore(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.s.write(ctx, func(st *state) error {
		c, ok := st.contacts[id]
		if !ok || c.OwnerID != ownerID || c.DeletedAt == nil {
			return errs.ErrNotFound
		}
		c.DeletedAt = nil
		st.contacts[id] = c
		return nil
	})
}
