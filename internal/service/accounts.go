package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/activity"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/validate"
)

// Encrypter seals stored credentials. *crypto.Sealer implements it.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// MemberRegistry is the part of sharing.Registry the domain services use.
type MemberRegistry interface {
	Create(ctx context.Context, resourceID, memberID uuid.UUID, role model.RoleAccess) error
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.SharingMember, error)
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.SharingMember, error)
	RemoveAll(ctx context.Context, resourceID uuid.UUID) error
}

// AccountInput carries the writable fields of an account.
type AccountInput struct {
	Domain   string `validate:"required,max=255"`
	Username string `validate:"required,max=255"`
	Password string `validate:"required,max=1024"`
}

// AccountView is an account with its sharing members.
type AccountView struct {
	model.Account
	Members []model.SharingMember
}

// AccountService defines operations over stored credentials.
type AccountService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in AccountInput) (*model.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*AccountView, error)
	List(ctx context.Context, userID uuid.UUID, p model.Page) ([]AccountView, int, error)
	Update(ctx context.Context, actorID, id uuid.UUID, in AccountInput) error
	SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error
	Restore(ctx context.Context, ownerID, id uuid.UUID) error
	Versions(ctx context.Context, id uuid.UUID) ([]model.AccountVersion, error)
	Rollback(ctx context.Context, ownerID, versionID uuid.UUID) error
	RevealPassword(ctx context.Context, id uuid.UUID) (string, error)
}

// AccountServiceImpl implements AccountService.
type AccountServiceImpl struct {
	accounts repository.AccountRepository
	members  MemberRegistry
	activity *activity.Service
	enc      Encrypter
	tx       repository.TxManager
	log      *zap.Logger
}

// NewAccountService constructs AccountService.
func NewAccountService(
	accounts repository.AccountRepository,
	members MemberRegistry,
	act *activity.Service,
	enc Encrypter,
	tx repository.TxManager,
	log *zap.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, members: members, activity: act, enc: enc, tx: tx, log: log}
}

// Create stores a new account owned by ownerID.
func (s *AccountServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, in AccountInput) (*model.Account, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	sealed, err := s.enc.Encrypt(in.Password)
	if err != nil {
		return nil, fmt.Errorf("seal password: %w", err)
	}
	a := &model.Account{OwnerID: ownerID, Domain: in.Domain, Username: in.Username, PasswordEnc: sealed}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// Get returns a live account with its members.
func (s *AccountServiceImpl) Get(ctx context.Context, id uuid.UUID) (*AccountView, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.members.ListByResource(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AccountView{Account: *a, Members: members}, nil
}

// List returns one page of the accounts owned by or shared with userID.
func (s *AccountServiceImpl) List(ctx context.Context, userID uuid.UUID, p model.Page) ([]AccountView, int, error) {
	list, total, err := s.accounts.ListForUser(ctx, userID, p)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AccountView, 0, len(list))
	for _, a := range list {
		members, err := s.members.ListByResource(ctx, a.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, AccountView{Account: a, Members: members})
	}
	return out, total, nil
}

// Update overwrites an account, keeping the previous values as a version.
// A member updating someone else's account is reported to the owner.
func (s *AccountServiceImpl) Update(ctx context.Context, actorID, id uuid.UUID, in AccountInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	sealed, err := s.enc.Encrypt(in.Password)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	var ev *activity.Event
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		prev, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.accounts.AddVersion(ctx, &model.AccountVersion{
			AccountID:   id,
			ActorID:     actorID,
			Domain:      prev.Domain,
			Username:    prev.Username,
			PasswordEnc: prev.PasswordEnc,
		}); err != nil {
			return fmt.Errorf("snapshot account: %w", err)
		}
		next := *prev
		next.Domain, next.Username, next.PasswordEnc = in.Domain, in.Username, sealed
		if err := s.accounts.Update(ctx, &next); err != nil {
			return notFound(err, errs.ErrAccountNotFound)
		}
		res := model.Resource{Kind: model.KindAccount, ID: id, OwnerID: prev.OwnerID, Name: next.Username}
		ev, err = s.activity.Record(ctx, actorID, res, model.RoleUpdate, model.ActivityUpdateAccount)
		return err
	})
	if err != nil {
		return err
	}
	s.activity.Emit(ctx, ev)
	return nil
}

// SoftDelete marks an account deleted and drops its sharing rows. Only the owner may.
func (s *AccountServiceImpl) SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		a, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		if a.OwnerID != ownerID {
			return errs.ErrAccountNotFound
		}
		if err := s.members.RemoveAll(ctx, id); err != nil {
			return err
		}
		if err := s.accounts.SoftDelete(ctx, id); err != nil {
			return notFound(err, errs.ErrAccountNotFound)
		}
		s.log.Info("account deleted", zap.Stringer("account", id), zap.Stringer("owner", ownerID))
		return nil
	})
}

// Restore brings back a soft-deleted account of ownerID.
func (s *AccountServiceImpl) Restore(ctx context.Context, ownerID, id uuid.UUID) error {
	return notFound(s.accounts.Restore(ctx, id, ownerID), errs.ErrAccountNotFound)
}

// Versions lists the snapshots of an account, oldest first.
func (s *AccountServiceImpl) Versions(ctx context.Context, id uuid.UUID) ([]model.AccountVersion, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	return s.accounts.Versions(ctx, id)
}

// Rollback restores an account to a snapshot and drops the snapshot. Only the owner may.
func (s *AccountServiceImpl) Rollback(ctx context.Context, ownerID, versionID uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.accounts.GetVersion(ctx, versionID, ownerID)
		if err != nil {
			return notFound(err, errs.ErrAccountVersionNotFound)
		}
		a, err := s.get(ctx, v.AccountID)
		if err != nil {
			return err
		}
		a.Domain, a.Username, a.PasswordEnc = v.Domain, v.Username, v.PasswordEnc
		if err := s.accounts.Update(ctx, a); err != nil {
			return notFound(err, errs.ErrAccountNotFound)
		}
		return s.accounts.DeleteVersion(ctx, versionID)
	})
}

// RevealPassword decrypts the stored password of an account.
func (s *AccountServiceImpl) RevealPassword(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	pw, err := s.enc.Decrypt(a.PasswordEnc)
	if err != nil {
		return "", fmt.Errorf("open password: %w", err)
	}
	return pw, nil
}

func (s *AccountServiceImpl) get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, errs.ErrAccountNotFound)
	}
	return a, nil
}

// notFound replaces a repository ErrNotFound with the coded error of the caller.
func notFound(err, coded error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return coded
	}
	return err
}
