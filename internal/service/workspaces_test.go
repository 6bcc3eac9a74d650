package service

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

func TestWorkspaces_CreateKeepsVisibleAccountsOnly(t *testing.T) {
	d := newDomain(t)
	owner, other := d.user("owner@x.io"), d.user("other@x.io")
	a1 := d.account(owner, "a1")
	foreign := d.account(other, "foreign")

	_, err := d.workspaces.Create(d.ctx, owner, WorkspaceInput{})
	require.Equal(t, errs.CodeMissingInput, errs.CodeOf(err))

	w, err := d.workspaces.Create(d.ctx, owner, WorkspaceInput{Name: " ops ", AccountIDs: []uuid.UUID{a1, foreign, a1}})
	require.NoError(t, err)
	require.Equal(t, "ops", w.Name)
	require.Equal(t, []uuid.UUID{a1}, w.AccountIDs)

	_, err = d.workspaces.Create(d.ctx, uuid.Must(uuid.NewV4()), WorkspaceInput{Name: "ghost"})
	require.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestWorkspaces_UpdateCascadesAccountSet(t *testing.T) {
	d := newDomain(t)
	owner, bob := d.user("owner@x.io"), d.user("bob@x.io")
	a1, a2 := d.account(owner, "a1"), d.account(owner, "a2")
	w, err := d.workspaces.Create(d.ctx, owner, WorkspaceInput{Name: "ops", AccountIDs: []uuid.UUID{a1}})
	require.NoError(t, err)
	require.NoError(t, d.wsReg.Create(d.ctx, w.ID, bob, model.RoleRead))
	require.Equal(t, model.RoleRead, d.roles(d.accReg, a1)[bob])

	require.NoError(t, d.workspaces.Update(d.ctx, owner, w.ID, WorkspaceInput{Name: "ops2", AccountIDs: []uuid.UUID{a2}}))

	v, err := d.workspaces.Get(d.ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, "ops2", v.Name)
	require.Equal(t, []uuid.UUID{a2}, v.AccountIDs)
	require.Empty(t, d.roles(d.accReg, a1))
	require.Equal(t, map[uuid.UUID]model.RoleAccess{bob: model.RoleRead}, d.roles(d.accReg, a2))
	require.Empty(t, d.notifications("owner@x.io"))
}

func TestWorkspaces_MemberAddsOwnAccount(t *testing.T) {
	d := newDomain(t)
	owner, mgr, carol := d.user("owner@x.io"), d.user("mgr@x.io"), d.user("carol@x.io")
	w, err := d.workspaces.Create(d.ctx, owner, WorkspaceInput{Name: "ops"})
	require.NoError(t, err)
	require.NoError(t, d.wsReg.Create(d.ctx, w.ID, mgr, model.RoleUpdate))
	require.NoError(t, d.wsReg.Create(d.ctx, w.ID, carol, model.RoleRead))
	mine := d.account(mgr, "mgr-account")

	require.NoError(t, d.workspaces.Update(d.ctx, mgr, w.ID, WorkspaceInput{Name: "ops", AccountIDs: []uuid.UUID{mine}}))

	// owner gets READ, carol inherits her workspace role, mgr owns it already
	require.Equal(t, map[uuid.UUID]model.RoleAccess{
		owner: model.RoleRead,
		carol: model.RoleRead,
	}, d.roles(d.accReg, mine))

	notes := d.notifications("owner@x.io")
	require.Len(t, notes, 1)
	require.Equal(t, model.ActivityUpdateWorkspace, notes[0].ActivityType)
}

func TestWorkspaces_SoftDeletePurgesDerivedRows(t *testing.T) {
	d := newDomain(t)
	owner, bob := d.user("owner@x.io"), d.user("bob@x.io")
	a1 := d.account(owner, "a1")
	w, err := d.workspaces.Create(d.ctx, owner, WorkspaceInput{Name: "ops", AccountIDs: []uuid.UUID{a1}})
	require.NoError(t, err)
	require.NoError(t, d.wsReg.Create(d.ctx, w.ID, bob, model.RoleUpdate))

	require.ErrorIs(t, d.workspaces.SoftDelete(d.ctx, bob, w.ID), errs.ErrWorkspaceNotFound)
	require.NoError(t, d.workspaces.SoftDelete(d.ctx, owner, w.ID))
	require.Empty(t, d.roles(d.accReg, a1))
	_, err = d.workspaces.Get(d.ctx, w.ID)
	require.ErrorIs(t, err, errs.ErrWorkspaceNotFound)

	require.NoError(t, d.workspaces.Restore(d.ctx, owner, w.ID))
	v, err := d.workspaces.Get(d.ctx, w.ID)
	require.NoError(t, err)
	require.Empty(t, v.Members)
	require.Equal(t, []uuid.UUID{a1}, v.AccountIDs)
}
