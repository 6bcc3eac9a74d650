package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

func TestMemberRepo_LockUsesKindScopedKey(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMemberRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtextextended\(\$1, 0\)\)`).
		WithArgs("workspace:" + id.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, r.Lock(context.Background(), model.KindWorkspace, id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_InsertAndUpsertPerKind(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMemberRepo(db)
	ctx := context.Background()
	res, mem := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectExec(`INSERT INTO account_sharing_members \(account_id, member_id, role_access\) VALUES \(\$1, \$2, \$3\) ON CONFLICT DO NOTHING`).
		WithArgs(res, mem, "READ").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Insert(ctx, model.SharingMember{Kind: model.KindAccount, ResourceID: res, MemberID: mem, Role: model.RoleRead}))

	mock.ExpectExec(`INSERT INTO workspace_sharing_members .* ON CONFLICT \(workspace_id, member_id\) DO UPDATE SET role_access = EXCLUDED.role_access`).
		WithArgs(res, mem, "MANAGE").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Upsert(ctx, model.SharingMember{Kind: model.KindWorkspace, ResourceID: res, MemberID: mem, Role: model.RoleManage}))

	require.Error(t, r.Insert(ctx, model.SharingMember{Kind: "folder", ResourceID: res, MemberID: mem, Role: model.RoleRead}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_UpdateRoleExcludesOwner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMemberRepo(db)
	ctx := context.Background()
	res, mem, owner := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE account_sharing_members SET role_access=\$4 WHERE account_id=\$1 AND member_id=\$2 AND member_id <> \$3`).
		WithArgs(res, mem, owner, "UPDATE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := r.UpdateRole(ctx, model.KindAccount, res, mem, owner, model.RoleUpdate)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`UPDATE account_sharing_members SET role_access`).
		WithArgs(res, mem, owner, "UPDATE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = r.UpdateRole(ctx, model.KindAccount, res, mem, owner, model.RoleUpdate)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberRepo_ListByResource(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMemberRepo(db)
	res, mem := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM workspace_sharing_members m JOIN users u ON u.id = m.member_id WHERE m.workspace_id=\$1`).
		WithArgs(res).
		WillReturnRows(pgxmock.NewRows([]string{"workspace_id", "member_id", "role_access", "email", "created_at"}).
			AddRow(res, mem, "MANAGE", "bob@example.com", time.Now()))
	rows, err := r.ListByResource(context.Background(), model.KindWorkspace, res)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, model.KindWorkspace, rows[0].Kind)
	require.Equal(t, model.RoleManage, rows[0].Role)
	require.Equal(t, "bob@example.com", rows[0].Email)
}

func TestMemberRepo_DeleteSkipsEmptySets(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewMemberRepo(db)
	ctx := context.Background()
	res, mem := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	n, err := r.Delete(ctx, model.KindAccount, nil, []uuid.UUID{mem})
	require.NoError(t, err)
	require.Zero(t, n)

	mock.ExpectExec(`DELETE FROM account_sharing_members WHERE account_id = ANY\(\$1\) AND member_id = ANY\(\$2\)`).
		WithArgs([]uuid.UUID{res}, []uuid.UUID{mem}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	n, err = r.Delete(ctx, model.KindAccount, []uuid.UUID{res}, []uuid.UUID{mem})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepo_CreateBatchInOneTx(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewInvitationRepo(db)
	res, owner := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO account_sharing_invitations \(id, account_id, owner_id, email, role_access, status\)`).
		WithArgs(pgxmock.AnyArg(), res, owner, "carol@example.com", "READ", "PENDING").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(`INSERT INTO account_sharing_invitations`).
		WithArgs(pgxmock.AnyArg(), res, owner, "dave@example.com", "MANAGE", "PENDING").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	invs := []*model.Invitation{
		{Kind: model.KindAccount, ResourceID: res, OwnerID: owner, Email: "Carol@Example.com", Role: model.RoleRead},
		{Kind: model.KindAccount, ResourceID: res, OwnerID: owner, Email: "dave@example.com", Role: model.RoleManage},
	}
	require.NoError(t, r.CreateBatch(context.Background(), invs))
	for _, inv := range invs {
		require.NotEqual(t, uuid.Nil, inv.ID)
		require.Equal(t, model.StatusPending, inv.Status)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepo_GetAndSetStatus(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewInvitationRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM workspace_sharing_invitations WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err := r.Get(ctx, model.KindWorkspace, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectExec(`UPDATE workspace_sharing_invitations SET status=\$3, updated_at=now\(\) WHERE id=\$1 AND status=\$2`).
		WithArgs(id, "PENDING", "ACCEPTED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err := r.SetStatus(ctx, model.KindWorkspace, id, model.StatusPending, model.StatusAccepted)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepo_PendingByResourceAndSetRole(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewInvitationRepo(db)
	ctx := context.Background()
	res, owner, id := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`FROM account_sharing_invitations WHERE account_id=\$1 AND status='PENDING'`).
		WithArgs(res).
		WillReturnRows(pgxmock.NewRows([]string{"id", "account_id", "owner_id", "email", "role_access", "status", "created_at", "updated_at"}).
			AddRow(id, res, owner, "bob@example.com", "READ", "PENDING", now, now))
	list, err := r.ListPendingByResource(ctx, model.KindAccount, res)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.RoleRead, list[0].Role)

	mock.ExpectExec(`UPDATE account_sharing_invitations SET role_access=\$2, updated_at=now\(\) WHERE id=\$1 AND status='PENDING'`).
		WithArgs(id, "UPDATE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetRole(ctx, model.KindAccount, id, model.RoleUpdate))

	mock.ExpectExec(`UPDATE account_sharing_invitations SET role_access`).
		WithArgs(id, "MANAGE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetRole(ctx, model.KindAccount, id, model.RoleManage), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
