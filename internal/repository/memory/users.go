package memory

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// UserRepo implements UserRepository.
type UserRepo struct{ s *Store }

// Create inserts a user; ErrAlreadyExists on duplicate email.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	return r.s.write(ctx, func(st *state) error {
		email := strings.ToLower(u.Email)
		for _, ex := range st.users {
			if ex.Email == email {
				return errs.ErrAlreadyExists
			}
		}
		if u.ID == uuid.Nil {
			u.ID = newID()
		}
		u.Email = email
		u.CreatedAt = time.Now()
		st.users[u.ID] = *u
		return nil
	})
}

// GetByID returns a live user.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var out *model.User
	err := r.s.read(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok || u.DeletedAt != nil {
			return errs.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

// GetByEmail returns a live user by email, ignoring case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.s.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) && u.DeletedAt == nil {
				out = &u
				return nil
			}
		}
		return errs.ErrNotFound
	})
	return out, err
}

// LoginHistoryRepo implements LoginHistoryRepository.
type LoginHistoryRepo struct{ s *Store }

// Seen reports whether the user logged in before from the same device.
func (r *LoginHistoryRepo) Seen(ctx context.Context, userID uuid.UUID, ipHash []byte, userAgent string) (bool, error) {
	var seen bool
	err := r.s.read(ctx, func(st *state) error {
		for _, rec := range st.logins {
			if rec.UserID == userID && bytes.Equal(rec.IPHash, ipHash) && rec.UserAgent == userAgent {
				seen = true
				break
			}
		}
		return nil
	})
	return seen, err
}

// Add appends a login record.
func (r *LoginHistoryRepo) Add(ctx context.Context, rec *model.LoginRecord) error {
	return r.s.write(ctx, func(st *state) error {
		if rec.ID == uuid.Nil {
			rec.ID = newID()
		}
		rec.CreatedAt = time.Now()
		st.logins = append(st.logins, *rec)
		return nil
	})
}
