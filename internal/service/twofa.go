package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/limiter"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/validate"
)

// ChallengeAudience marks tokens that only continue a two-factor login.
// They are never accepted as access tokens.
const ChallengeAudience = "gophshare-2fa"

const challengeTTL = 5 * time.Minute

// OTP generates and checks time-based one-time codes. *crypto.TOTP implements it.
type OTP interface {
	Generate(account string) (secret, url string, err error)
	Validate(code, secret string) bool
}

// VerifyTwoFAInput finishes a login that stopped at the second factor.
type VerifyTwoFAInput struct {
	Challenge string `validate:"required"`
	Code      string `validate:"required,len=6,numeric"`
	IP        string
	UserAgent string
}

// TwoFASetup is a fresh TOTP secret for an authenticator app. Challenge
// replaces the one the client logged in with and carries the secret until
// the first code confirms it.
type TwoFASetup struct {
	Secret    string
	URL       string
	Challenge string
}

type challengeClaims struct {
	Secret string `json:"sec,omitempty"`
	jwt.RegisteredClaims
}

// WithTwoFA enables TOTP second factor on logins.
func (s *AuthServiceImpl) WithTwoFA(repo repository.TwoFARepository, otp OTP, enc Encrypter) *AuthServiceImpl {
	s.twofa, s.otp, s.enc = repo, otp, enc
	return s
}

// TwoFAStatus returns the enrollment status of userID. Users who never
// touched the setting are NOT_REGISTERED.
func (s *AuthServiceImpl) TwoFAStatus(ctx context.Context, userID uuid.UUID) (model.SecureStatus, error) {
	t, err := s.getTwoFA(ctx, userID)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}

// EnableTwoFA turns the second factor on. The secret is enrolled during the
// next login.
func (s *AuthServiceImpl) EnableTwoFA(ctx context.Context, userID uuid.UUID) error {
	t, err := s.getTwoFA(ctx, userID)
	if err != nil {
		return err
	}
	if t.Status == model.SecureEnabled {
		return errs.ErrTwoFAAlreadyEnabled
	}
	t.Status, t.SecretEnc = model.SecureEnabled, ""
	return s.twofa.Upsert(ctx, t)
}

// DisableTwoFA turns the second factor off and forgets the secret. A
// current code is required once a secret is enrolled.
func (s *AuthServiceImpl) DisableTwoFA(ctx context.Context, userID uuid.UUID, code string) error {
	t, err := s.getTwoFA(ctx, userID)
	if err != nil {
		return err
	}
	if t.Status != model.SecureEnabled {
		return errs.ErrTwoFANotEnabled
	}
	if t.SecretEnc != "" {
		secret, err := s.enc.Decrypt(t.SecretEnc)
		if err != nil {
			return fmt.Errorf("open totp secret: %w", err)
		}
		if !s.otp.Validate(code, secret) {
			return errs.ErrTOTPInvalid
		}
	}
	t.Status, t.SecretEnc = model.SecureDisabled, ""
	return s.twofa.Upsert(ctx, t)
}

// BeginTwoFA generates a secret for a login challenged with
// TWO_FA_ENABLED_NO_SECRET.
func (s *AuthServiceImpl) BeginTwoFA(ctx context.Context, challenge string) (TwoFASetup, error) {
	claims, err := s.parseChallenge(challenge)
	if err != nil {
		return TwoFASetup{}, err
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return TwoFASetup{}, errs.ErrUnauthorized
	}
	t, err := s.getTwoFA(ctx, uid)
	if err != nil {
		return TwoFASetup{}, err
	}
	if t.Status != model.SecureEnabled {
		return TwoFASetup{}, errs.ErrTwoFANotEnabled
	}
	if t.SecretEnc != "" {
		return TwoFASetup{}, errs.ErrTwoFAAlreadyEnabled
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return TwoFASetup{}, err
	}
	secret, url, err := s.otp.Generate(u.Email)
	if err != nil {
		return TwoFASetup{}, err
	}
	sealed, err := s.enc.Encrypt(secret)
	if err != nil {
		return TwoFASetup{}, fmt.Errorf("seal totp secret: %w", err)
	}
	next, err := s.issueChallenge(uid, sealed)
	if err != nil {
		return TwoFASetup{}, err
	}
	return TwoFASetup{Secret: secret, URL: url, Challenge: next}, nil
}

// VerifyTwoFA checks the code against the enrolled secret, or the one
// carried by the challenge, and issues the access token. A first valid code
// against a carried secret enrolls it.
func (s *AuthServiceImpl) VerifyTwoFA(ctx context.Context, in VerifyTwoFAInput) (model.Tokens, model.User, error) {
	if err := validate.Struct(in); err != nil {
		return model.Tokens{}, model.User{}, err
	}
	claims, err := s.parseChallenge(in.Challenge)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	ipHash := limiter.HashIP(in.IP)
	allowed, _, err := s.lim.Allow(ctx, u.Email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	t, err := s.getTwoFA(ctx, uid)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if t.Status != model.SecureEnabled {
		return model.Tokens{}, model.User{}, errs.ErrTwoFANotEnabled
	}
	sealed, enroll := t.SecretEnc, false
	if sealed == "" {
		sealed, enroll = claims.Secret, true
	}
	if sealed == "" {
		return model.Tokens{}, model.User{}, errs.ErrTwoFASecretMissing
	}
	secret, err := s.enc.Decrypt(sealed)
	if err != nil {
		return model.Tokens{}, model.User{}, fmt.Errorf("open totp secret: %w", err)
	}
	if !s.otp.Validate(in.Code, secret) {
		if blocked, _, ferr := s.lim.Failure(ctx, u.Email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		return model.Tokens{}, model.User{}, errs.ErrTOTPInvalid
	}
	_ = s.lim.Success(ctx, u.Email, ipHash)

	if enroll {
		t.SecretEnc = sealed
		if err := s.twofa.Upsert(ctx, t); err != nil {
			return model.Tokens{}, model.User{}, fmt.Errorf("enroll totp: %w", err)
		}
	}
	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if err := s.recordDevice(ctx, u, ipHash, LoginInput{Email: u.Email, IP: in.IP, UserAgent: in.UserAgent}); err != nil {
		s.log.Warn("login history", zap.Stringer("user", u.ID), zap.Error(err))
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// challengeFor returns the second-factor state of userID and a challenge
// token, or "" when the login needs no second factor.
func (s *AuthServiceImpl) challengeFor(ctx context.Context, userID uuid.UUID) (model.LoginTwoFAState, string, error) {
	if s.twofa == nil {
		return "", "", nil
	}
	t, err := s.getTwoFA(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if t.Status != model.SecureEnabled {
		return "", "", nil
	}
	state := model.TwoFAEnabledWithSecret
	if t.SecretEnc == "" {
		state = model.TwoFAEnabledNoSecret
	}
	c, err := s.issueChallenge(userID, "")
	return state, c, err
}

func (s *AuthServiceImpl) getTwoFA(ctx context.Context, userID uuid.UUID) (*model.TwoFA, error) {
	if s.twofa == nil {
		return nil, errs.ErrTwoFANotEnabled
	}
	t, err := s.twofa.Get(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return &model.TwoFA{UserID: userID, Status: model.SecureNotRegistered}, nil
	}
	return t, err
}

func (s *AuthServiceImpl) issueChallenge(userID uuid.UUID, sealedSecret string) (string, error) {
	now := time.Now()
	claims := challengeClaims{
		Secret: sealedSecret,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{ChallengeAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(challengeTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

func (s *AuthServiceImpl) parseChallenge(tok string) (*challengeClaims, error) {
	var claims challengeClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithAudience(ChallengeAudience), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid challenge: %w", errs.ErrUnauthorized)
	}
	return &claims, nil
}
