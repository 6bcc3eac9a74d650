package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// WorkspaceRepo implements WorkspaceRepository using PostgreSQL.
type WorkspaceRepo struct{ db *DB }

// NewWorkspaceRepo constructs a workspace repository.
func NewWorkspaceRepo(db *DB) *WorkspaceRepo { return &WorkspaceRepo{db: db} }

// Create inserts a workspace and links its accounts in one transaction.
func (r *WorkspaceRepo) Create(ctx context.Context, w *model.Workspace) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.Must(uuid.NewV4())
	}
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		const q = `
INSERT INTO workspaces (id, owner_id, name) VALUES ($1, $2, $3)
RETURNING created_at, updated_at`
		if err := r.db.q(ctx).QueryRow(ctx, q, w.ID, w.OwnerID, w.Name).Scan(&w.CreatedAt, &w.UpdatedAt); err != nil {
			return err
		}
		return r.LinkAccounts(ctx, w.ID, w.AccountIDs)
	})
}

// Get returns a live workspace with its live account links.
func (r *WorkspaceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	const q = `
SELECT id, owner_id, name, created_at, updated_at
FROM workspaces WHERE id=$1 AND deleted_at IS NULL`
	var w model.Workspace
	if err := r.db.q(ctx).QueryRow(ctx, q, id).Scan(&w.ID, &w.OwnerID, &w.Name, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	ids, err := r.AccountIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	w.AccountIDs = ids
	return &w, nil
}

// Rename sets the name of a live workspace.
func (r *WorkspaceRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	const q = `UPDATE workspaces SET name=$2, updated_at=now() WHERE id=$1 AND deleted_at IS NULL`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// AccountIDs lists the live accounts linked to a workspace.
func (r *WorkspaceRepo) AccountIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	const q = `
SELECT wa.account_id
FROM workspace_accounts wa JOIN accounts a ON a.id = wa.account_id
WHERE wa.workspace_id=$1 AND a.deleted_at IS NULL
ORDER BY wa.account_id`
	rows, err := r.db.q(ctx).Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var aid uuid.UUID
		if err = rows.Scan(&aid); err != nil {
			return nil, err
		}
		out = append(out, aid)
	}
	return out, rows.Err()
}

// LinkAccounts links accounts to a workspace; existing links are kept.
func (r *WorkspaceRepo) LinkAccounts(ctx context.Context, id uuid.UUID, accountIDs []uuid.UUID) error {
	if len(accountIDs) == 0 {
		return nil
	}
	const q = `
INSERT INTO workspace_accounts (workspace_id, account_id)
SELECT $1, unnest($2::uuid[])
ON CONFLICT DO NOTHING`
	if _, err := r.db.q(ctx).Exec(ctx, q, id, accountIDs); err != nil {
		return fmt.Errorf("link accounts: %w", err)
	}
	return nil
}

// UnlinkAccounts removes account links.
func (r *WorkspaceRepo) UnlinkAccounts(ctx context.Context, id uuid.UUID, accountIDs []uuid.UUID) error {
	if len(accountIDs) == 0 {
		return nil
	}
	const q = `DELETE FROM workspace_accounts WHERE workspace_id=$1 AND account_id = ANY($2)`
	_, err := r.db.q(ctx).Exec(ctx, q, id, accountIDs)
	return err
}

// SoftDelete marks a live workspace deleted.
func (r *WorkspaceRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE workspaces SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`
	tag, err := r.db.q(ctx).Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Restore clears the deletion mark of a workspace owned by ownerID.
func (r *WorkspaceRepo) Restore(ctx context.Context, id, ownerID uuid.UUID) error {
	const q = `UPDATE workspaces SET deleted_at=NULL WHERE id=$1 AND owner_id=$2 AND deleted_at IS NOT NULL`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListForUser returns live workspaces owned by or shared with userID.
func (r *WorkspaceRepo) ListForUser(ctx context.Context, userID uuid.UUID, p model.Page) ([]model.Workspace, int, error) {
	const q = `
SELECT w.id, w.owner_id, w.name, w.created_at, w.updated_at, count(*) OVER()
FROM workspaces w
WHERE w.deleted_at IS NULL
  AND (w.owner_id = $1 OR EXISTS (
        SELECT 1 FROM workspace_sharing_members m WHERE m.workspace_id = w.id AND m.member_id = $1))
  AND ($2 = '' OR w.name ILIKE '%' || $2 || '%')
ORDER BY w.created_at DESC
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
		out   []model.Workspace
		total int
	)
	for rows.Next() {
		var w model.Workspace
		if err = rows.Scan(&w.ID, &w.OwnerID, &w.Name, &w.CreatedAt, &w.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

// ResourceRepo implements ResourceRepository over accounts and workspaces.
type ResourceRepo struct{ db *DB }

// NewResourceRepo constructs a resource repository.
func NewResourceRepo(db *DB) *ResourceRepo { return &ResourceRepo{db: db} }

// Resource returns the ownership view of a live account or workspace.
func (r *ResourceRepo) Resource(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Resource, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT owner_id, ` + s.nameCol + ` FROM ` + s.resources + ` WHERE id=$1 AND deleted_at IS NULL`
	res := model.Resource{Kind: kind, ID: id}
	if err := r.db.q(ctx).QueryRow(ctx, q, id).Scan(&res.OwnerID, &res.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}
