// Package service contains application services for authentication,
// accounts and workspaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/goph-share/internal/crypto"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/limiter"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/validate"
)

// AuthService defines registration and login.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, in RegisterInput) (uuid.UUID, error)
	// Login applies rate-limiting, authenticates the user and records the
	// device. Users with two-factor enabled get a challenge instead of an
	// access token.
	Login(ctx context.Context, in LoginInput) (model.Tokens, model.User, error)
	VerifyTwoFA(ctx context.Context, in VerifyTwoFAInput) (model.Tokens, model.User, error)
	BeginTwoFA(ctx context.Context, challenge string) (TwoFASetup, error)
	TwoFAStatus(ctx context.Context, userID uuid.UUID) (model.SecureStatus, error)
	EnableTwoFA(ctx context.Context, userID uuid.UUID) error
	DisableTwoFA(ctx context.Context, userID uuid.UUID, code string) error
}

// RegisterInput is a registration request.
type RegisterInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
}

// LoginInput is a login request. IP and UserAgent identify the device.
type LoginInput struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required"`
	IP        string
	UserAgent string
}

// AuthServiceImpl implements AuthService.
type AuthServiceImpl struct {
	users     repository.UserRepository
	logins    repository.LoginHistoryRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	mailer    notify.Mailer
	log       *zap.Logger

	twofa repository.TwoFARepository
	otp   OTP
	enc   Encrypter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	logins repository.LoginHistoryRepository,
	signKey []byte,
	accessTTL time.Duration,
	lim limiter.Limiter,
	mailer notify.Mailer,
	log *zap.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		users: users, logins: logins, signKey: signKey, accessTTL: accessTTL,
		lim: lim, mailer: mailer, log: log,
	}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (uuid.UUID, error) {
	if err := validate.Struct(in); err != nil {
		return uuid.Nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	hash, saltAuth, err := pkgcrypto.NewPasswordHash(in.Password)
	if err != nil {
		return uuid.Nil, err
	}
	u := &model.User{
		ID:              uid,
		Name:            strings.TrimSpace(in.Name),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		PwdHash:         hash,
		SaltAuth:        saltAuth,
		Role:            model.UserRoleUser,
		IsAuthenticated: true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return uuid.Nil, errs.ErrEmailAlreadyRegistered
		}
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	return uid, nil
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, in LoginInput) (model.Tokens, model.User, error) {
	if err := validate.Struct(in); err != nil {
		return model.Tokens{}, model.User{}, err
	}
	ipHash := limiter.HashIP(in.IP)

	allowed, _, err := s.lim.Allow(ctx, in.Email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil || !pkgcrypto.VerifyPassword(in.Password, u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, in.Email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrLoginFailed
	}

	_ = s.lim.Success(ctx, in.Email, ipHash)

	state, challenge, err := s.challengeFor(ctx, u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if challenge != "" {
		return model.Tokens{TwoFA: state, Challenge: challenge}, *u, nil
	}

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if err := s.recordDevice(ctx, u, ipHash, in); err != nil {
		s.log.Warn("login history", zap.Stringer("user", u.ID), zap.Error(err))
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// recordDevice appends the login to the history and warns the user by mail
// when the device was never seen before.
func (s *AuthServiceImpl) recordDevice(ctx context.Context, u *model.User, ipHash []byte, in LoginInput) error {
	seen, err := s.logins.Seen(ctx, u.ID, ipHash, in.UserAgent)
	if err != nil {
		return err
	}
	rec := &model.LoginRecord{UserID: u.ID, IPHash: ipHash, UserAgent: in.UserAgent}
	if err := s.logins.Add(ctx, rec); err != nil {
		return err
	}
	if seen {
		return nil
	}
	mail := model.Mail{
		To:       u.Email,
		Subject:  "Warning email",
		Template: "warning_email",
		Context: map[string]any{
			"fullName":  u.Name,
			"loginTime": time.Now().UTC().Format(time.RFC3339),
			"userAgent": in.UserAgent,
			"ipAddress": in.IP,
		},
	}
	if err := s.mailer.Send(ctx, mail); err != nil {
		s.log.Warn("security warning mail failed", zap.Stringer("user", u.ID), zap.Error(err))
	}
	return nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
