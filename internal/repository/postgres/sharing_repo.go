package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// MemberRepo implements MemberRepository using PostgreSQL.
type MemberRepo struct{ db *DB }

// NewMemberRepo constructs a sharing-member repository.
func NewMemberRepo(db *DB) *MemberRepo { return &MemberRepo{db: db} }

// Lock takes a transaction-scoped advisory lock keyed by kind and resource id.
func (r *MemberRepo) Lock(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) error {
	const q = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	_, err := r.db.q(ctx).Exec(ctx, q, string(kind)+":"+resourceID.String())
	return err
}

// Insert adds a row unless the (resource, member) pair already exists.
func (r *MemberRepo) Insert(ctx context.Context, m model.SharingMember) error {
	s, err := scopeOf(m.Kind)
	if err != nil {
		return err
	}
	q := `INSERT INTO ` + s.members + ` (` + s.resourceCol + `, member_id, role_access)
VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	_, err = r.db.q(ctx).Exec(ctx, q, m.ResourceID, m.MemberID, string(m.Role))
	return err
}

// Upsert adds a row or overwrites the role of the existing one.
func (r *MemberRepo) Upsert(ctx context.Context, m model.SharingMember) error {
	s, err := scopeOf(m.Kind)
	if err != nil {
		return err
	}
	q := `INSERT INTO ` + s.members + ` (` + s.resourceCol + `, member_id, role_access)
VALUES ($1, $2, $3)
ON CONFLICT (` + s.resourceCol + `, member_id) DO UPDATE SET role_access = EXCLUDED.role_access`
	_, err = r.db.q(ctx).Exec(ctx, q, m.ResourceID, m.MemberID, string(m.Role))
	return err
}

// UpdateRole sets the role of an existing row whose member is not ownerID.
func (r *MemberRepo) UpdateRole(
	ctx context.Context, kind model.ResourceKind, resourceID, memberID, ownerID uuid.UUID, role model.RoleAccess,
) (bool, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + s.members + ` SET role_access=$4
WHERE ` + s.resourceCol + `=$1 AND member_id=$2 AND member_id <> $3`
	tag, err := r.db.q(ctx).Exec(ctx, q, resourceID, memberID, ownerID, string(role))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByResource lists rows of a resource joined with member emails.
func (r *MemberRepo) ListByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) ([]model.SharingMember, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT m.` + s.resourceCol + `, m.member_id, m.role_access, u.email, m.created_at
FROM ` + s.members + ` m JOIN users u ON u.id = m.member_id
WHERE m.` + s.resourceCol + `=$1
ORDER BY m.created_at, m.member_id`
	return r.list(ctx, kind, q, resourceID)
}

// ListByMember lists rows held by a member.
func (r *MemberRepo) ListByMember(ctx context.Context, kind model.ResourceKind, memberID uuid.UUID) ([]model.SharingMember, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT m.` + s.resourceCol + `, m.member_id, m.role_access, u.email, m.created_at
FROM ` + s.members + ` m JOIN users u ON u.id = m.member_id
WHERE m.member_id=$1
ORDER BY m.created_at, m.` + s.resourceCol
	return r.list(ctx, kind, q, memberID)
}

func (r *MemberRepo) list(ctx context.Context, kind model.ResourceKind, q string, arg uuid.UUID) ([]model.SharingMember, error) {
	rows, err := r.db.q(ctx).Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SharingMember
	for rows.Next() {
		m := model.SharingMember{Kind: kind}
		var role string
		if err = rows.Scan(&m.ResourceID, &m.MemberID, &role, &m.Email, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = model.RoleAccess(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes rows whose resource is in resourceIDs and member in memberIDs.
func (r *MemberRepo) Delete(ctx context.Context, kind model.ResourceKind, resourceIDs, memberIDs []uuid.UUID) (int64, error) {
	if len(resourceIDs) == 0 || len(memberIDs) == 0 {
		return 0, nil
	}
	s, err := scopeOf(kind)
	if err != nil {
		return 0, err
	}
	q := `DELETE FROM ` + s.members + ` WHERE ` + s.resourceCol + ` = ANY($1) AND member_id = ANY($2)`
	tag, err := r.db.q(ctx).Exec(ctx, q, resourceIDs, memberIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByResource removes every row of a resource.
func (r *MemberRepo) DeleteByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) (int64, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return 0, err
	}
	q := `DELETE FROM ` + s.members + ` WHERE ` + s.resourceCol + `=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, resourceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InvitationRepo implements InvitationRepository using PostgreSQL.
type InvitationRepo struct{ db *DB }

// NewInvitationRepo constructs an invitation repository.
func NewInvitationRepo(db *DB) *InvitationRepo { return &InvitationRepo{db: db} }

// CreateBatch inserts invitations in one transaction.
func (r *InvitationRepo) CreateBatch(ctx context.Context, invs []*model.Invitation) error {
	if len(invs) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		for i, inv := range invs {
			s, err := scopeOf(inv.Kind)
			if err != nil {
				return err
			}
			if inv.ID == uuid.Nil {
				inv.ID = uuid.Must(uuid.NewV4())
			}
			if inv.Status == "" {
				inv.Status = model.StatusPending
			}
			q := `INSERT INTO ` + s.invitations + ` (id, ` + s.resourceCol + `, owner_id, email, role_access, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at`
			err = r.db.q(ctx).QueryRow(ctx, q, inv.ID, inv.ResourceID, inv.OwnerID, strings.ToLower(inv.Email), string(inv.Role), string(inv.Status)).
				Scan(&inv.CreatedAt, &inv.UpdatedAt)
			if err != nil {
				return fmt.Errorf("invitation[%d]: %w", i, err)
			}
		}
		return nil
	})
}

// Get returns an invitation.
func (r *InvitationRepo) Get(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Invitation, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT id, ` + s.resourceCol + `, owner_id, email, role_access, status, created_at, updated_at
FROM ` + s.invitations + ` WHERE id=$1`
	inv, err := scanInvitation(kind, r.db.q(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return inv, err
}

// SetStatus moves an invitation from one status to another.
func (r *InvitationRepo) SetStatus(ctx context.Context, kind model.ResourceKind, id uuid.UUID, from, to model.InvitationStatus) (bool, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + s.invitations + ` SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListPending lists PENDING invitations addressed to email.
func (r *InvitationRepo) ListPending(ctx context.Context, kind model.ResourceKind, email string) ([]model.Invitation, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT id, ` + s.resourceCol + `, owner_id, email, role_access, status, created_at, updated_at
FROM ` + s.invitations + ` WHERE lower(email)=lower($1) AND status='PENDING'
ORDER BY created_at DESC`
	rows, err := r.db.q(ctx).Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ListPendingByResource lists PENDING invitations to resourceID.
func (r *InvitationRepo) ListPendingByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) ([]model.Invitation, error) {
	s, err := scopeOf(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT id, ` + s.resourceCol + `, owner_id, email, role_access, status, created_at, updated_at
FROM ` + s.invitations + ` WHERE ` + s.resourceCol + `=$1 AND status='PENDING'
ORDER BY created_at DESC`
	rows, err := r.db.q(ctx).Query(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// SetRole changes the role of a PENDING invitation.
func (r *InvitationRepo) SetRole(ctx context.Context, kind model.ResourceKind, id uuid.UUID, role model.RoleAccess) error {
	s, err := scopeOf(kind)
	if err != nil {
		return err
	}
	q := `UPDATE ` + s.invitations + ` SET role_access=$2, updated_at=now() WHERE id=$1 AND status='PENDING'`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanInvitation(kind model.ResourceKind, row pgx.Row) (*model.Invitation, error) {
	inv := model.Invitation{Kind: kind}
	var role, status string
	if err := row.Scan(&inv.ID, &inv.ResourceID, &inv.OwnerID, &inv.Email, &role, &status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	inv.Role = model.RoleAccess(role)
	inv.Status = model.InvitationStatus(status)
	return &inv, nil
}
