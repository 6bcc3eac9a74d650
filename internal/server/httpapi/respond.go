package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/errs"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// statusOf maps a domain error to an HTTP status and error code.
func statusOf(err error) (int, errs.Code) {
	code := errs.CodeOf(err)
	switch code {
	case errs.CodeAccountNotFound, errs.CodeWorkspaceNotFound, errs.CodeInvitationNotFound,
		errs.CodeMemberNotFound, errs.CodeUserNotFound, errs.CodeAccountVersionNotFound,
		errs.CodeNotificationNotFound, errs.CodeHighLevelPasswordNotFound, errs.CodeContactInfoNotFound:
		return http.StatusNotFound, code
	case errs.CodeInvalidLinkConfirmInvitation, errs.CodeMissingInput, errs.CodeNoSharingMembersProvided:
		return http.StatusBadRequest, code
	case errs.CodeEmailAlreadyRegistered, errs.CodeTOTPInvalid, errs.CodeTwoFAAlreadyEnabled,
		errs.CodeTwoFANotEnabled, errs.CodeTwoFASecretMissing:
		return http.StatusConflict, code
	case errs.CodeLoginFailed:
		return http.StatusUnauthorized, code
	case errs.CodeAccessDenied, errs.CodeInsufficientPermissions, errs.CodeIncorrectPassword:
		return http.StatusForbidden, code
	default:
		return http.StatusInternalServerError, errs.CodeServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Server errors are logged and their text is hidden.
func writeError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	var coded *errs.Error
	if errors.As(err, &coded) && coded.Message != "" {
		msg = coded.Message
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Status: status, Message: msg, ErrorCode: string(code)})
}
