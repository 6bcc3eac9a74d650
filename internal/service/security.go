package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/goph-share/internal/crypto"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/validate"
)

// HighLevelPasswordService manages the secondary password that guards
// password reveals.
type HighLevelPasswordService interface {
	Status(ctx context.Context, userID uuid.UUID) (model.SecureStatus, error)
	Set(ctx context.Context, userID uuid.UUID, in HighLevelPasswordInput) error
	Verify(ctx context.Context, userID uuid.UUID, password string) error
	Toggle(ctx context.Context, userID uuid.UUID, password string) (model.SecureStatus, error)
	// Gate passes when the user has no enabled high-level password or
	// password matches it.
	Gate(ctx context.Context, userID uuid.UUID, password string) error
}

// HighLevelPasswordInput sets a new high-level password. Current is needed
// to replace an enabled one.
type HighLevelPasswordInput struct {
	Password string `validate:"required,min=6,max=128"`
	Current  string
}

// HighLevelPasswordServiceImpl implements HighLevelPasswordService.
type HighLevelPasswordServiceImpl struct {
	repo repository.HighLevelPasswordRepository
	log  *zap.Logger
}

// NewHighLevelPasswordService wires the service.
func NewHighLevelPasswordService(repo repository.HighLevelPasswordRepository, log *zap.Logger) *HighLevelPasswordServiceImpl {
	return &HighLevelPasswordServiceImpl{repo: repo, log: log}
}

// Status returns NOT_REGISTERED when no password was ever set.
func (s *HighLevelPasswordServiceImpl) Status(ctx context.Context, userID uuid.UUID) (model.SecureStatus, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.SecureNotRegistered, nil
	}
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

// Set stores a new password and enables it.
func (s *HighLevelPasswordServiceImpl) Set(ctx context.Context, userID uuid.UUID, in HighLevelPasswordInput) error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	cur, err := s.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
	case err != nil:
		return err
	case cur.Status == model.SecureEnabled && !pkgcrypto.VerifyPassword(in.Current, cur.Salt, cur.Hash):
		return errs.ErrIncorrectPassword
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(in.Password)
	if err != nil {
		return err
	}
	p := &model.HighLevelPassword{
		UserID: userID, Hash: hash, Salt: salt,
		Type: model.HighLevelTextKey, Status: model.SecureEnabled,
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("store high-level password: %w", err)
	}
	s.log.Info("high-level password set", zap.Stringer("user", userID))
	return nil
}

// Verify checks password against the stored one regardless of status.
func (s *HighLevelPasswordServiceImpl) Verify(ctx context.Context, userID uuid.UUID, password string) error {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrHighLevelPasswordNotFound
	}
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword(password, p.Salt, p.Hash) {
		return errs.ErrIncorrectPassword
	}
	return nil
}

// Toggle flips ENABLED and DISABLED after checking password.
func (s *HighLevelPasswordServiceImpl) Toggle(ctx context.Context, userID uuid.UUID, password string) (model.SecureStatus, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return "", errs.ErrHighLevelPasswordNotFound
	}
	if err != nil {
		return "", err
	}
	if !pkgcrypto.VerifyPassword(password, p.Salt, p.Hash) {
		return "", errs.ErrIncorrectPassword
	}
	next := model.SecureEnabled
	if p.Status == model.SecureEnabled {
		next = model.SecureDisabled
	}
	if err := s.repo.SetStatus(ctx, userID, next); err != nil {
		return "", err
	}
	return next, nil
}

// Gate implements HighLevelPasswordService.
func (s *HighLevelPasswordServiceImpl) Gate(ctx context.Context, userID uuid.UUID, password string) error {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != model.SecureEnabled {
		return nil
	}
	if !pkgcrypto.VerifyPassword(password, p.Salt, p.Hash) {
		return errs.ErrIncorrectPassword
	}
	return nil
}

// ContactInput carries the writable fields of a contact card.
type ContactInput struct {
	Title       string `validate:"required,max=255"`
	FirstName   string `validate:"max=100"`
	MidName     string `validate:"max=100"`
	LastName    string `validate:"max=100"`
	Street      string `validate:"max=255"`
	City        string `validate:"max=100"`
	PostalCode  string `validate:"max=20"`
	Country     string `validate:"max=100"`
	Email       string `validate:"omitempty,email"`
	PhoneNumber string `validate:"omitempty,min=10,max=15"`
}

// ContactInfoService manages personal contact cards. Cards are private to
// their owner and never shared.
type ContactInfoService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in ContactInput) (*model.ContactInfo, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.ContactInfo, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]model.ContactInfo, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, in ContactInput) (*model.ContactInfo, error)
	SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error
	Restore(ctx context.Context, ownerID, id uuid.UUID) error
}

// ContactInfoServiceImpl implements ContactInfoService.
type ContactInfoServiceImpl struct {
	repo repository.ContactInfoRepository
}

// NewContactInfoService wires the service.
func NewContactInfoService(repo repository.ContactInfoRepository) *ContactInfoServiceImpl {
	return &ContactInfoServiceImpl{repo: repo}
}

func (in ContactInput) apply(c *model.ContactInfo) {
	c.Title = strings.TrimSpace(in.Title)
	c.FirstName, c.MidName, c.LastName = in.FirstName, in.MidName, in.LastName
	c.Street, c.City, c.PostalCode, c.Country = in.Street, in.City, in.PostalCode, in.Country
	c.Email = strings.ToLower(strings.TrimSpace(in.Email))
	c.PhoneNumber = in.PhoneNumber
}

func contactErr(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrContactInfoNotFound
	}
	return err
}

// Create stores a new card of ownerID.
func (s *ContactInfoServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, in ContactInput) (*model.ContactInfo, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c := &model.ContactInfo{OwnerID: ownerID}
	in.apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create contact info: %w", err)
	}
	return c, nil
}

// Get returns a live card of ownerID.
func (s *ContactInfoServiceImpl) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.ContactInfo, error) {
	c, err := s.repo.Get(ctx, ownerID, id)
	return c, contactErr(err)
}

// List returns the live cards of ownerID.
func (s *ContactInfoServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]model.ContactInfo, error) {
	return s.repo.List(ctx, ownerID)
}

// Update replaces every writable field of the card.
func (s *ContactInfoServiceImpl) Update(ctx context.Context, ownerID, id uuid.UUID, in ContactInput) (*model.ContactInfo, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, contactErr(err)
	}
	in.apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, contactErr(err)
	}
	return c, nil
}

// SoftDelete hides the card until Restore.
func (s *ContactInfoServiceImpl) SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error {
	return contactErr(s.repo.SoftDelete(ctx, ownerID, id))
}

// Restore brings back a soft-deleted card.
func (s *ContactInfoServiceImpl) Restore(ctx context.Context, ownerID, id uuid.UUID) error {
	return contactErr(s.repo.Restore(ctx, ownerID, id))
}
