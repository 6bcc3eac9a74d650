package crypto

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP issues and checks RFC 6238 codes: SHA1, six digits, 30 second
// period, one step of clock skew either way.
type TOTP struct {
	issuer string
	now    func() time.Time
}

// NewTOTP returns a TOTP whose enrollment URLs name issuer.
func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer, now: time.Now}
}

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Generate creates a base32 secret for account and its otpauth:// URL.
func (t *TOTP) Generate(account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Validate reports whether code is valid for secret now.
func (t *TOTP) Validate(code, secret string) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t.now().UTC(), totpOpts)
	return err == nil && ok
}

// Code returns the current code for secret.
func (t *TOTP) Code(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, t.now().UTC(), totpOpts)
}
