// Package memory implements the repository interfaces in process memory.
// It backs the server when no database is configured and drives scenario tests.
//
// Transactions are serialized: RunInTx holds a store-wide lock for the whole
// callback and restores a snapshot when the callback fails, giving callers the
// same all-or-nothing behavior as the PostgreSQL backend.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

type memberKey struct {
	kind     model.ResourceKind
	resource uuid.UUID
	member   uuid.UUID
}

type state struct {
	users         map[uuid.UUID]model.User
	logins        []model.LoginRecord
	accounts      map[uuid.UUID]model.Account
	versions      map[uuid.UUID]model.AccountVersion
	workspaces    map[uuid.UUID]model.Workspace
	links         map[uuid.UUID]map[uuid.UUID]struct{}
	members       map[memberKey]model.SharingMember
	invitations   map[uuid.UUID]model.Invitation
	logs          map[uuid.UUID]model.ActivityLog
	notifications map[uuid.UUID]model.Notification
	twofa         map[uuid.UUID]model.TwoFA
	highLevel     map[uuid.UUID]model.HighLevelPassword
	contacts      map[uuid.UUID]model.ContactInfo
}

func (st *state) clone() state {
	links := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(st.links))
	for k, v := range st.links {
		links[k] = maps.Clone(v)
	}
	return state{
		users:         maps.Clone(st.users),
		logins:        slices.Clone(st.logins),
		accounts:      maps.Clone(st.accounts),
		versions:      maps.Clone(st.versions),
		workspaces:    maps.Clone(st.workspaces),
		links:         links,
		members:       maps.Clone(st.members),
		invitations:   maps.Clone(st.invitations),
		logs:          maps.Clone(st.logs),
		notifications: maps.Clone(st.notifications),
		twofa:         maps.Clone(st.twofa),
		highLevel:     maps.Clone(st.highLevel),
		contacts:      maps.Clone(st.contacts),
	}
}

// Store holds every table of the model.
type Store struct {
	txMu sync.Mutex   // held for the duration of a transaction
	mu   sync.RWMutex // guards st
	st   state
}

// New returns an empty store.
func New() *Store {
	return &Store{st: state{
		users:         make(map[uuid.UUID]model.User),
		accounts:      make(map[uuid.UUID]model.Account),
		versions:      make(map[uuid.UUID]model.AccountVersion),
		workspaces:    make(map[uuid.UUID]model.Workspace),
		links:         make(map[uuid.UUID]map[uuid.UUID]struct{}),
		members:       make(map[memberKey]model.SharingMember),
		invitations:   make(map[uuid.UUID]model.Invitation),
		logs:          make(map[uuid.UUID]model.ActivityLog),
		notifications: make(map[uuid.UUID]model.Notification),
		twofa:         make(map[uuid.UUID]model.TwoFA),
		highLevel:     make(map[uuid.UUID]model.HighLevelPassword),
		contacts:      make(map[uuid.UUID]model.ContactInfo),
	}}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// RunInTx implements repository.TxManager. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.st.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) restore(snap state) {
	s.mu.Lock()
	s.st = snap
	s.mu.Unlock()
}

// write runs fn under the data lock, inside a transaction when ctx has none.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if !inTx(ctx) {
		return s.RunInTx(ctx, func(ctx context.Context) error { return s.write(ctx, fn) })
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

// read runs fn under the shared data lock.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.st)
}

// Users returns the user repository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Logins returns the login history view.
func (s *Store) Logins() *LoginHistoryRepo { return &LoginHistoryRepo{s: s} }

// Accounts returns the account repository view.
func (s *Store) Accounts() *AccountRepo { return &AccountRepo{s: s} }

// Workspaces returns the workspace repository view.
func (s *Store) Workspaces() *WorkspaceRepo { return &WorkspaceRepo{s: s} }

// Resources returns the resource ownership view.
func (s *Store) Resources() *ResourceRepo { return &ResourceRepo{s: s} }

// Members returns the sharing-member repository view.
func (s *Store) Members() *MemberRepo { return &MemberRepo{s: s} }

// Invitations returns the invitation repository view.
func (s *Store) Invitations() *InvitationRepo { return &InvitationRepo{s: s} }

// ActivityLogs returns the activity log view.
func (s *Store) ActivityLogs() *ActivityLogRepo { return &ActivityLogRepo{s: s} }

// Notifications returns the notification view.
func (s *Store) Notifications() *NotificationRepo { return &NotificationRepo{s: s} }

// TwoFA returns the TOTP enrollment view.
func (s *Store) TwoFA() *TwoFARepo { return &TwoFARepo{s: s} }

// HighLevelPasswords returns the high-level password view.
func (s *Store) HighLevelPasswords() *HighLevelPasswordRepo { return &HighLevelPasswordRepo{s: s} }

// ContactInfos returns the contact card view.
func (s *Store) ContactInfos() *ContactInfoRepo { return &ContactInfoRepo{s: s} }

func newID() uuid.UUID { return uuid.Must(uuid.NewV4()) }

func paginate[T any](in []T, p model.Page) []T {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	start := p.Offset()
	if start >= len(in) {
		return nil
	}
	end := min(start+limit, len(in))
	return in[start:end]
}
