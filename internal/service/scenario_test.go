package service

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-share/internal/activity"
	"github.com/and161185/goph-share/internal/authz"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/invitation"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
)

// Scenarios A-C run as one story: invite to a workspace, change its
// accounts, then empty its member list.
func TestScenario_WorkspaceSharingLifecycle(t *testing.T) {
	d := newDomain(t)
	log := zaptest.NewLogger(t)
	notes := notify.NewService(d.store.Notifications(), notify.NopGateway{}, log)
	invites := invitation.NewService(d.wsReg, invitation.Deps{
		Invitations:  d.store.Invitations(),
		Resources:    d.store.Resources(),
		Users:        d.store.Users(),
		Tx:           d.store,
		Notes:        notes,
		Activity:     activity.NewService(d.store.ActivityLogs(), d.store.Users(), notes, activity.NopPublisher{}, log),
		Mailer:       &fakeMailer{},
		WebClientURL: "https://vault.example",
		Log:          log,
	})

	owner := d.user("owner@x.com")
	member := d.user("member@x.com")
	a1, a2 := d.account(owner, "a1"), d.account(owner, "a2")
	w, err := d.workspaces.Create(d.ctx, owner, WorkspaceInput{Name: "W", AccountIDs: []uuid.UUID{a1}})
	require.NoError(t, err)

	// A: invite, confirm, cascade to the workspace's account
	invs, err := invites.Create(d.ctx, owner, w.ID, []model.Invitee{{Email: "member@x.com", Role: model.RoleUpdate}})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	_, err = invites.Confirm(d.ctx, invs[0].ID)
	require.NoError(t, err)
	want := map[uuid.UUID]model.RoleAccess{member: model.RoleUpdate}
	require.Equal(t, want, d.roles(d.wsReg, w.ID))
	require.Equal(t, want, d.roles(d.accReg, a1))

	_, err = invites.Decline(d.ctx, invs[0].ID)
	require.ErrorIs(t, err, errs.ErrInvalidLinkConfirmInvitation)

	// B: add A2, then drop A1
	require.NoError(t, d.workspaces.Update(d.ctx, owner, w.ID, WorkspaceInput{Name: "W", AccountIDs: []uuid.UUID{a1, a2}}))
	require.Equal(t, want, d.roles(d.accReg, a2))
	require.NoError(t, d.workspaces.Update(d.ctx, owner, w.ID, WorkspaceInput{Name: "W", AccountIDs: []uuid.UUID{a2}}))
	require.Empty(t, d.roles(d.accReg, a1))
	require.Equal(t, want, d.roles(d.accReg, a2))

	// re-inviting an existing member changes the role in place
	invs, err = invites.Create(d.ctx, owner, w.ID, []model.Invitee{{Email: "MEMBER@x.com", Role: model.RoleRead}})
	require.NoError(t, err)
	require.Empty(t, invs)
	require.Equal(t, map[uuid.UUID]model.RoleAccess{member: model.RoleRead}, d.roles(d.wsReg, w.ID))

	// C: empty desired list removes the member everywhere
	require.NoError(t, d.wsReg.UpdateRoleAccess(d.ctx, w.ID, owner, nil))
	require.Empty(t, d.roles(d.wsReg, w.ID))
	require.Empty(t, d.roles(d.accReg, a2))
}

// Scenario D: a READ member cannot pass an UPDATE gate and nothing changes.
func TestScenario_ReadMemberCannotUpdate(t *testing.T) {
	d := newDomain(t)
	guard := authz.NewGuard(d.store.Resources(), d.accReg, d.wsReg, zaptest.NewLogger(t))
	owner, reader := d.user("owner@x.com"), d.user("reader@x.com")
	a := d.account(owner, "a")
	require.NoError(t, d.accReg.Create(d.ctx, a, reader, model.RoleRead))

	_, _, err := guard.Authorize(d.ctx, model.KindAccount, reader, a, authz.Require(model.RoleUpdate))
	require.ErrorIs(t, err, errs.ErrInsufficientPermissions)

	v, err := d.accounts.Get(d.ctx, a)
	require.NoError(t, err)
	require.Equal(t, "a", v.Username)
	versions, err := d.accounts.Versions(d.ctx, a)
	require.NoError(t, err)
	require.Empty(t, versions)
}
