package authz

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository/memory"
	"github.com/and161185/goph-share/internal/sharing"
)

type env struct {
	ctx      context.Context
	store    *memory.Store
	accounts *sharing.Registry
	guard    *Guard
	owner    uuid.UUID
	account  uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	log := zaptest.NewLogger(t)
	acc := sharing.NewAccountRegistry(s.Members(), s.Resources(), s, log)
	ws := sharing.NewWorkspaceRegistry(s.Members(), s.Resources(), s.Workspaces(), s, acc, log)

	owner := &model.User{Name: "o", Email: "o@x.io"}
	require.NoError(t, s.Users().Create(ctx, owner))
	a := &model.Account{OwnerID: owner.ID, Domain: "d", Username: "u"}
	require.NoError(t, s.Accounts().Create(ctx, a))

	return &env{
		ctx: ctx, store: s, accounts: acc,
		guard: NewGuard(s.Resources(), acc, ws, log),
		owner: owner.ID, account: a.ID,
	}
}

func (e *env) member(t *testing.T, email string, role model.RoleAccess) uuid.UUID {
	t.Helper()
	u := &model.User{Name: email, Email: email}
	require.NoError(t, e.store.Users().Create(e.ctx, u))
	if role != "" {
		require.NoError(t, e.accounts.Create(e.ctx, e.account, u.ID, role))
	}
	return u.ID
}

func TestAuthorize_OwnerBypassesPolicies(t *testing.T) {
	e := newEnv(t)
	never := func(*Context) bool { return false }

	ctx, ac, err := e.guard.Authorize(e.ctx, model.KindAccount, e.owner, e.account, never)
	require.NoError(t, err)
	require.True(t, ac.IsOwner())
	require.Nil(t, ac.Ability)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Same(t, ac, got)
}

func TestAuthorize_NonMemberDenied(t *testing.T) {
	e := newEnv(t)
	stranger := e.member(t, "s@x.io", "")

	_, _, err := e.guard.Authorize(e.ctx, model.KindAccount, stranger, e.account)
	require.ErrorIs(t, err, errs.ErrAccessDenied)
	require.Contains(t, err.Error(), "no permission for this resource")
}

func TestAuthorize_ReadMemberCannotUpdate(t *testing.T) {
	e := newEnv(t)
	reader := e.member(t, "r@x.io", model.RoleRead)

	_, ac, err := e.guard.Authorize(e.ctx, model.KindAccount, reader, e.account)
	require.NoError(t, err)
	require.True(t, ac.Can(model.RoleRead))

	_, _, err = e.guard.Authorize(e.ctx, model.KindAccount, reader, e.account, Require(model.RoleUpdate))
	require.ErrorIs(t, err, errs.ErrInsufficientPermissions)
}

func TestAuthorize_ManageImpliesUpdate(t *testing.T) {
	e := newEnv(t)
	manager := e.member(t, "m@x.io", model.RoleManage)

	_, _, err := e.guard.Authorize(e.ctx, model.KindAccount, manager, e.account, Require(model.RoleUpdate), Require(model.RoleManage))
	require.NoError(t, err)

	_, _, err = e.guard.Authorize(e.ctx, model.KindAccount, manager, e.account, Require(model.RoleDelete))
	require.ErrorIs(t, err, errs.ErrInsufficientPermissions)
}

func TestAuthorize_GrantsReadFreshPerCall(t *testing.T) {
	e := newEnv(t)
	bob := e.member(t, "b@x.io", model.RoleRead)

	_, _, err := e.guard.Authorize(e.ctx, model.KindAccount, bob, e.account, Require(model.RoleUpdate))
	require.ErrorIs(t, err, errs.ErrInsufficientPermissions)

	require.NoError(t, e.accounts.ChangeRole(e.ctx, e.account, bob, model.RoleUpdate))
	_, _, err = e.guard.Authorize(e.ctx, model.KindAccount, bob, e.account, Require(model.RoleUpdate))
	require.NoError(t, err)
}

func TestAuthorize_MissingResource(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.guard.Authorize(e.ctx, model.KindWorkspace, e.owner, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrWorkspaceNotFound)
}
