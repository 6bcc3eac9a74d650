package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
)

var (
	_ repository.UserRepository              = (*UserRepo)(nil)
	_ repository.LoginHistoryRepository      = (*LoginHistoryRepo)(nil)
	_ repository.AccountRepository           = (*AccountRepo)(nil)
	_ repository.WorkspaceRepository         = (*WorkspaceRepo)(nil)
	_ repository.ResourceRepository          = (*ResourceRepo)(nil)
	_ repository.MemberRepository            = (*MemberRepo)(nil)
	_ repository.InvitationRepository        = (*InvitationRepo)(nil)
	_ repository.ActivityLogRepository       = (*ActivityLogRepo)(nil)
	_ repository.NotificationRepository      = (*NotificationRepo)(nil)
	_ repository.TwoFARepository             = (*TwoFARepo)(nil)
	_ repository.HighLevelPasswordRepository = (*HighLevelPasswordRepo)(nil)
	_ repository.ContactInfoRepository       = (*ContactInfoRepo)(nil)
	_ repository.TxManager                   = (*Store)(nil)
)

func TestStore_RunInTx_RollsBackEveryWrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	res, mem := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Members().Insert(ctx, model.SharingMember{
			Kind: model.KindAccount, ResourceID: res, MemberID: mem, Role: model.RoleRead,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := s.Members().ListByResource(ctx, model.KindAccount, res)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestStore_RunInTx_CommitsAndJoins(t *testing.T) {
	s := New()
	ctx := context.Background()
	res, mem := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Members().Insert(ctx, model.SharingMember{
				Kind: model.KindWorkspace, ResourceID: res, MemberID: mem, Role: model.RoleManage,
			})
		})
	})
	require.NoError(t, err)

	rows, err := s.Members().ListByMember(ctx, model.KindWorkspace, mem)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// kinds are separate tables
	rows, err = s.Members().ListByMember(ctx, model.KindAccount, mem)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestMemberRepo_InsertKeepsExistingRole(t *testing.T) {
	s := New()
	ctx := context.Background()
	res, mem := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	m := s.Members()

	require.NoError(t, m.Insert(ctx, model.SharingMember{Kind: model.KindAccount, ResourceID: res, MemberID: mem, Role: model.RoleManage}))
	require.NoError(t, m.Insert(ctx, model.SharingMember{Kind: model.KindAccount, ResourceID: res, MemberID: mem, Role: model.RoleRead}))
	rows, _ := m.ListByResource(ctx, model.KindAccount, res)
	require.Len(t, rows, 1)
	require.Equal(t, model.RoleManage, rows[0].Role)

	require.NoError(t, m.Upsert(ctx, model.SharingMember{Kind: model.KindAccount, ResourceID: res, MemberID: mem, Role: model.RoleRead}))
	rows, _ = m.ListByResource(ctx, model.KindAccount, res)
	require.Equal(t, model.RoleRead, rows[0].Role)

	ok, err := m.UpdateRole(ctx, model.KindAccount, res, mem, mem, model.RoleDelete)
	require.NoError(t, err)
	require.False(t, ok, "owner id never matches")
}

func TestUserRepo_EmailUniqueIgnoringCase(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Users().Create(ctx, &model.User{Name: "a", Email: "Ann@x.io"}))
	require.ErrorIs(t, s.Users().Create(ctx, &model.User{Name: "b", Email: "ann@X.io"}), errs.ErrAlreadyExists)

	u, err := s.Users().GetByEmail(ctx, "ANN@x.io")
	require.NoError(t, err)
	require.Equal(t, "ann@x.io", u.Email)
}

func TestWorkspaceRepo_AccountIDsSkipDeletedAccounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())
	a1 := &model.Account{OwnerID: owner, Domain: "d1"}
	a2 := &model.Account{OwnerID: owner, Domain: "d2"}
	require.NoError(t, s.Accounts().Create(ctx, a1))
	require.NoError(t, s.Accounts().Create(ctx, a2))
	w := &model.Workspace{OwnerID: owner, Name: "w", AccountIDs: []uuid.UUID{a1.ID, a2.ID}}
	require.NoError(t, s.Workspaces().Create(ctx, w))

	require.NoError(t, s.Accounts().SoftDelete(ctx, a2.ID))
	ids, err := s.Workspaces().AccountIDs(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a1.ID}, ids)

	require.NoError(t, s.Accounts().Restore(ctx, a2.ID, owner))
	ids, _ = s.Workspaces().AccountIDs(ctx, w.ID)
	require.Len(t, ids, 2)
}
