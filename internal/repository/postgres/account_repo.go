package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

const defaultPageLimit = 50

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountCols = `a.id, a.owner_id, a.domain, a.username, a.password_enc, a.created_at, a.updated_at`

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.Must(uuid.NewV4())
	}
	const q = `
INSERT INTO accounts (id, owner_id, domain, username, password_enc)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	return r.db.q(ctx).QueryRow(ctx, q, a.ID, a.OwnerID, a.Domain, a.Username, a.PasswordEnc).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

// Get returns a live account.
func (r *AccountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts a WHERE a.id=$1 AND a.deleted_at IS NULL`
	var a model.Account
	err := r.db.q(ctx).QueryRow(ctx, q, id).
		Scan(&a.ID, &a.OwnerID, &a.Domain, &a.Username, &a.PasswordEnc, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetMany returns the live accounts among ids.
func (r *AccountRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `SELECT ` + accountCols + ` FROM accounts a WHERE a.id = ANY($1) AND a.deleted_at IS NULL ORDER BY a.created_at`
	rows, err := r.db.q(ctx).Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err = rows.Scan(&a.ID, &a.OwnerID, &a.Domain, &a.Username, &a.PasswordEnc, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update overwrites the mutable fields of a live account.
func (r *AccountRepo) Update(ctx context.Context, a *model.Account) error {
	const q = `
UPDATE accounts SET domain=$2, username=$3, password_enc=$4, updated_at=now()
WHERE id=$1 AND deleted_at IS NULL
RETURNING updated_at`
	err := r.db.q(ctx).QueryRow(ctx, q, a.ID, a.Domain, a.Username, a.PasswordEnc).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

// SoftDelete marks a live account deleted.
func (r *AccountRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE accounts SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`
	tag, err := r.db.q(ctx).Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Restore clears the deletion mark of an account owned by ownerID.
func (r *AccountRepo) Restore(ctx context.Context, id, ownerID uuid.UUID) error {
	const q = `UPDATE accounts SET deleted_at=NULL WHERE id=$1 AND owner_id=$2 AND deleted_at IS NOT NULL`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListForUser returns live accounts owned by or shared with userID.
func (r *AccountRepo) ListForUser(ctx context.Context, userID uuid.UUID, p model.Page) ([]model.Account, int, error) {
	const q = `
SELECT ` + accountCols + `, count(*) OVER()
FROM accounts a
WHERE a.deleted_at IS NULL
  AND (a.owner_id = $1 OR EXISTS (
        SELECT 1 FROM account_sharing_members m WHERE m.account_id = a.id AND m.member_id = $1))
  AND ($2 = '' OR a.domain ILIKE '%' || $2 || '%' OR a.username ILIKE '%' || $2 || '%')
ORDER BY a.created_at DESC
LIMIT $3 OFFSET $4`
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	p.Limit = limit
	rows, err := r.db.q(ctx).Query(ctx, q, userID, p.Keyword, limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []model.Account
		total int
	)
	for rows.Next() {
		var a model.Account
		if err = rows.Scan(&a.ID, &a.OwnerID, &a.Domain, &a.Username, &a.PasswordEnc, &a.CreatedAt, &a.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// AddVersion stores a snapshot of an account.
func (r *AccountRepo) AddVersion(ctx context.Context, v *model.AccountVersion) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.Must(uuid.NewV4())
	}
	const q = `
INSERT INTO account_versions (id, account_id, actor_id, domain, username, password_enc)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at`
	return r.db.q(ctx).QueryRow(ctx, q, v.ID, v.AccountID, v.ActorID, v.Domain, v.Username, v.PasswordEnc).
		Scan(&v.CreatedAt)
}

// Versions lists snapshots of an account, oldest first.
func (r *AccountRepo) Versions(ctx context.Context, accountID uuid.UUID) ([]model.AccountVersion, error) {
	const q = `
SELECT id, account_id, actor_id, domain, username, password_enc, created_at
FROM account_versions WHERE account_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.q(ctx).Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountVersion
	for rows.Next() {
		var v model.AccountVersion
		if err = rows.Scan(&v.ID, &v.AccountID, &v.ActorID, &v.Domain, &v.Username, &v.PasswordEnc, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVersion returns a snapshot of a live account owned by ownerID.
func (r *AccountRepo) GetVersion(ctx context.Context, versionID, ownerID uuid.UUID) (*model.AccountVersion, error) {
	const q = `
SELECT v.id, v.account_id, v.actor_id, v.domain, v.username, v.password_enc, v.created_at
FROM account_versions v JOIN accounts a ON a.id = v.account_id
WHERE v.id=$1 AND a.owner_id=$2 AND a.deleted_at IS NULL`
	var v model.AccountVersion
	err := r.db.q(ctx).QueryRow(ctx, q, versionID, ownerID).
		Scan(&v.ID, &v.AccountID, &v.ActorID, &v.Domain, &v.Username, &v.PasswordEnc, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// DeleteVersion removes a snapshot.
func (r *AccountRepo) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	const q = `DELETE FROM account_versions WHERE id=$1`
	_, err := r.db.q(ctx).Exec(ctx, q, versionID)
	return err
}
