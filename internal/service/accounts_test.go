package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-share/internal/activity"
	pkgcrypto "github.com/and161185/goph-share/internal/crypto"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
	"github.com/and161185/goph-share/internal/repository/memory"
	"github.com/and161185/goph-share/internal/sharing"
)

type domain struct {
	t          *testing.T
	ctx        context.Context
	store      *memory.Store
	accReg     *sharing.Registry
	wsReg      *sharing.Registry
	accounts   *AccountServiceImpl
	workspaces *WorkspaceServiceImpl
}

func newDomain(t *testing.T) *domain {
	t.Helper()
	s := memory.New()
	log := zaptest.NewLogger(t)
	id, err := pkgcrypto.GenerateIdentity()
	require.NoError(t, err)
	sealer, err := pkgcrypto.NewSealer(id)
	require.NoError(t, err)

	notes := notify.NewService(s.Notifications(), notify.NopGateway{}, log)
	act := activity.NewService(s.ActivityLogs(), s.Users(), notes, activity.NopPublisher{}, log)
	accReg := sharing.NewAccountRegistry(s.Members(), s.Resources(), s, log)
	wsReg := sharing.NewWorkspaceRegistry(s.Members(), s.Resources(), s.Workspaces(), s, accReg, log)
	return &domain{
		t: t, ctx: context.Background(), store: s, accReg: accReg, wsReg: wsReg,
		accounts:   NewAccountService(s.Accounts(), accReg, act, sealer, s, log),
		workspaces: NewWorkspaceService(s.Workspaces(), s.Accounts(), s.Users(), wsReg, accReg, act, s, log),
	}
}

func (d *domain) user(email string) uuid.UUID {
	d.t.Helper()
	u := &model.User{Name: email, Email: email}
	require.NoError(d.t, d.store.Users().Create(d.ctx, u))
	return u.ID
}

func (d *domain) account(owner uuid.UUID, username string) uuid.UUID {
	d.t.Helper()
	a, err := d.accounts.Create(d.ctx, owner, AccountInput{Domain: "example.com", Username: username, Password: "pw-" + username})
	require.NoError(d.t, err)
	return a.ID
}

func (d *domain) roles(r *sharing.Registry, resourceID uuid.UUID) map[uuid.UUID]model.RoleAccess {
	d.t.Helper()
	rows, err := r.ListByResource(d.ctx, resourceID)
	require.NoError(d.t, err)
	out := make(map[uuid.UUID]model.RoleAccess, len(rows))
	for _, m := range rows {
		out[m.MemberID] = m.Role
	}
	return out
}

func (d *domain) notifications(email string) []model.Notification {
	d.t.Helper()
	list, err := d.store.Notifications().ListByRecipient(d.ctx, email)
	require.NoError(d.t, err)
	return list
}

func TestAccounts_CreateSealsAndReveals(t *testing.T) {
	d := newDomain(t)
	owner := d.user("owner@x.io")

	_, err := d.accounts.Create(d.ctx, owner, AccountInput{Domain: "x", Username: "u"})
	require.Equal(t, errs.CodeMissingInput, errs.CodeOf(err))

	id := d.account(owner, "deploy")
	v, err := d.accounts.Get(d.ctx, id)
	require.NoError(t, err)
	require.NotEqual(t, "pw-deploy", v.PasswordEnc)

	pw, err := d.accounts.RevealPassword(d.ctx, id)
	require.NoError(t, err)
	require.Equal(t, "pw-deploy", pw)

	_, err = d.accounts.Get(d.ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrAccountNotFound)
}

func TestAccounts_UpdateByMemberSnapshotsAndNotifiesOwner(t *testing.T) {
	d := newDomain(t)
	owner, bob := d.user("owner@x.io"), d.user("bob@x.io")
	id := d.account(owner, "deploy")
	require.NoError(t, d.accReg.Create(d.ctx, id, bob, model.RoleUpdate))

	require.NoError(t, d.accounts.Update(d.ctx, bob, id, AccountInput{Domain: "new.example", Username: "root", Password: "n3w"}))

	versions, err := d.accounts.Versions(d.ctx, id)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	require.Equal(t, "deploy", versions[0].Username)
	require.Equal(t, bob, versions[0].ActorID)

	notes := d.notifications("owner@x.io")
	require.Len(t, notes, 1)
	require.Equal(t, model.ActivityUpdateAccount, notes[0].ActivityType)
	require.NotNil(t, notes[0].Detail.ActivityLogID)

	// the owner's own update is not reported
	require.NoError(t, d.accounts.Update(d.ctx, owner, id, AccountInput{Domain: "x", Username: "y", Password: "z"}))
	require.Len(t, d.notifications("owner@x.io"), 1)
}

func TestAccounts_RollbackRestoresVersion(t *testing.T) {
	d := newDomain(t)
	owner, bob := d.user("owner@x.io"), d.user("bob@x.io")
	id := d.account(owner, "deploy")
	require.NoError(t, d.accounts.Update(d.ctx, owner, id, AccountInput{Domain: "b", Username: "second", Password: "pw2"}))
	versions, err := d.accounts.Versions(d.ctx, id)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	err = d.accounts.Rollback(d.ctx, bob, versions[0].ID)
	require.ErrorIs(t, err, errs.ErrAccountVersionNotFound)

	require.NoError(t, d.accounts.Rollback(d.ctx, owner, versions[0].ID))
	v, err := d.accounts.Get(d.ctx, id)
	require.NoError(t, err)
	require.Equal(t, "deploy", v.Username)
	pw, err := d.accounts.RevealPassword(d.ctx, id)
	require.NoError(t, err)
	require.Equal(t, "pw-deploy", pw)

	versions, err = d.accounts.Versions(d.ctx, id)
	require.NoError(t, err)
	require.Empty(t, versions)
}

func TestAccounts_SoftDeletePurgesRowsAndRestore(t *testing.T) {
	d := newDomain(t)
	owner, bob := d.user("owner@x.io"), d.user("bob@x.io")
	id := d.account(owner, "deploy")
	require.NoError(t, d.accReg.Create(d.ctx, id, bob, model.RoleRead))

	require.ErrorIs(t, d.accounts.SoftDelete(d.ctx, bob, id), errs.ErrAccountNotFound)
	require.NoError(t, d.accounts.SoftDelete(d.ctx, owner, id))
	require.Empty(t, d.roles(d.accReg, id))
	_, err := d.accounts.Get(d.ctx, id)
	require.ErrorIs(t, err, errs.ErrAccountNotFound)

	require.ErrorIs(t, d.accounts.Restore(d.ctx, bob, id), errs.ErrAccountNotFound)
	require.NoError(t, d.accounts.Restore(d.ctx, owner, id))
	v, err := d.accounts.Get(d.ctx, id)
	require.NoError(t, err)
	require.Empty(t, v.Members)
}

func TestAccounts_ListOwnedAndShared(t *testing.T) {
	d := newDomain(t)
	owner, bob := d.user("owner@x.io"), d.user("bob@x.io")
	mine := d.account(bob, "mine")
	shared := d.account(owner, "shared")
	d.account(owner, "private")
	require.NoError(t, d.accReg.Create(d.ctx, shared, bob, model.RoleRead))

	list, total, err := d.accounts.List(d.ctx, bob, model.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	got := map[uuid.UUID]int{}
	for _, a := range list {
		got[a.ID] = len(a.Members)
	}
	require.Equal(t, map[uuid.UUID]int{mine: 0, shared: 1}, got)
}
