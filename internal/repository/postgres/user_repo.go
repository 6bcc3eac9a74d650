package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, name, email, pwd_hash, salt_auth, role, is_authenticated, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, name, email, pwd_hash, salt_auth, role, is_authenticated)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.q(ctx).Exec(ctx, q, u.ID, u.Name, strings.ToLower(u.Email), u.PwdHash, u.SaltAuth, string(u.Role), u.IsAuthenticated)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a live user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1 AND deleted_at IS NULL`
	return scanUser(r.db.q(ctx).QueryRow(ctx, q, id))
}

// GetByEmail selects a live user by email, ignoring case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email)=lower($1) AND deleted_at IS NULL`
	return scanUser(r.db.q(ctx).QueryRow(ctx, q, email))
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PwdHash, &u.SaltAuth, &role, &u.IsAuthenticated, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.UserRole(role)
	return &u, nil
}

// LoginHistoryRepo implements LoginHistoryRepository using PostgreSQL.
type LoginHistoryRepo struct{ db *DB }

// NewLoginHistoryRepo constructs a login history repository.
func NewLoginHistoryRepo(db *DB) *LoginHistoryRepo { return &LoginHistoryRepo{db: db} }

// Seen reports whether the user logged in before from the same device.
func (r *LoginHistoryRepo) Seen(ctx context.Context, userID uuid.UUID, ipHash []byte, userAgent string) (bool, error) {
	const q = `
SELECT EXISTS (SELECT 1 FROM login_history WHERE user_id=$1 AND ip_hash=$2 AND user_agent=$3)`
	var ok bool
	if err := r.db.q(ctx).QueryRow(ctx, q, userID, ipHash, userAgent).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Add appends a login record.
func (r *LoginHistoryRepo) Add(ctx context.Context, rec *model.LoginRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.Must(uuid.NewV4())
	}
	const q = `INSERT INTO login_history (id, user_id, ip_hash, user_agent) VALUES ($1, $2, $3, $4)`
	_, err := r.db.q(ctx).Exec(ctx, q, rec.ID, rec.UserID, rec.IPHash, rec.UserAgent)
	return err
}
