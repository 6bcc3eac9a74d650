// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
)

// Code is a stable, client-visible error code.
type Code string

// Error codes surfaced to clients.
const (
	CodeAccountNotFound              Code = "ACCOUNT_NOT_FOUND"
	CodeWorkspaceNotFound            Code = "WORKSPACE_NOT_FOUND"
	CodeInvitationNotFound           Code = "INVITATION_NOT_FOUND"
	CodeMemberNotFound               Code = "MEMBER_NOT_FOUND"
	CodeUserNotFound                 Code = "USER_NOT_FOUND"
	CodeAccountVersionNotFound       Code = "ACCOUNT_VERSION_NOT_FOUND"
	CodeNotificationNotFound         Code = "NOTIFICATION_NOT_FOUND"
	CodeInvalidLinkConfirmInvitation Code = "INVALID_LINK_CONFIRM_INVITATION"
	CodeNoSharingMembersProvided     Code = "NO_SHARING_MEMBERS_PROVIDED"
	CodeEmailAlreadyRegistered       Code = "EMAIL_ALREADY_REGISTERED"
	CodeLoginFailed                  Code = "LOGIN_FAILED"
	CodeMissingInput                 Code = "MISSING_INPUT"
	CodeAccessDenied                 Code = "ACCESS_DENIED"
	CodeInsufficientPermissions      Code = "INSUFFICIENT_PERMISSIONS"
	CodeServerError                  Code = "SERVER_ERROR"
	CodeTOTPInvalid                  Code = "TOTP_INVALID"
	CodeTwoFAAlreadyEnabled          Code = "TWO_FA_ALREADY_ENABLED"
	CodeTwoFANotEnabled              Code = "TWO_FA_NOT_ENABLED"
	CodeTwoFASecretMissing           Code = "TWO_FA_SECRET_MISSING"
	CodeIncorrectPassword            Code = "INCORRECT_PASSWORD"
	CodeHighLevelPasswordNotFound    Code = "HIGH_LEVEL_PASSWORD_NOT_FOUND"
	CodeContactInfoNotFound          Code = "CONTACT_INFO_NOT_FOUND"
)

// Error is a domain error tagged with a Code. Two *Error values match under
// errors.Is when their codes are equal, so parameterized errors still match
// the package-level sentinel of the same code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New constructs a coded error.
func New(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

// Coded sentinels.
var (
	ErrAccountNotFound              = New(CodeAccountNotFound, "account not found")
	ErrWorkspaceNotFound            = New(CodeWorkspaceNotFound, "workspace not found")
	ErrInvitationNotFound           = New(CodeInvitationNotFound, "invitation not found")
	ErrMemberNotFound               = New(CodeMemberNotFound, "member not found")
	ErrUserNotFound                 = New(CodeUserNotFound, "user not found")
	ErrAccountVersionNotFound       = New(CodeAccountVersionNotFound, "account version not found")
	ErrNotificationNotFound         = New(CodeNotificationNotFound, "notification not found")
	ErrInvalidLinkConfirmInvitation = New(CodeInvalidLinkConfirmInvitation, "invalid invitation link")
	ErrNoSharingMembersProvided     = New(CodeNoSharingMembersProvided, "no sharing members provided")
	ErrEmailAlreadyRegistered       = New(CodeEmailAlreadyRegistered, "email is already registered")
	ErrLoginFailed                  = New(CodeLoginFailed, "invalid email or password")
	ErrAccessDenied                 = New(CodeAccessDenied, "access denied: no permission for this resource")
	ErrInsufficientPermissions      = New(CodeInsufficientPermissions, "access denied: insufficient permissions")
	ErrTOTPInvalid                  = New(CodeTOTPInvalid, "invalid one-time code")
	ErrTwoFAAlreadyEnabled          = New(CodeTwoFAAlreadyEnabled, "two-factor authentication is already enabled")
	ErrTwoFANotEnabled              = New(CodeTwoFANotEnabled, "two-factor authentication is not enabled")
	ErrTwoFASecretMissing           = New(CodeTwoFASecretMissing, "no two-factor enrollment in progress")
	ErrIncorrectPassword            = New(CodeIncorrectPassword, "incorrect high-level password")
	ErrHighLevelPasswordNotFound    = New(CodeHighLevelPasswordNotFound, "high-level password not found")
	ErrContactInfoNotFound          = New(CodeContactInfoNotFound, "contact info not found")
)

// MemberNotFound reports a role update targeting a (resource, member) pair that has no row.
func MemberNotFound(memberID, resourceID uuid.UUID) error {
	return New(CodeMemberNotFound, fmt.Sprintf("member %s not found in resource %s", memberID, resourceID))
}

// Invalid reports a validation failure.
func Invalid(msg string) error { return New(CodeMissingInput, msg) }

// CodeOf extracts the code of a coded error, or SERVER_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServerError
}
