package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/goph-share/internal/errs"
)

const errorDomain = "gophshare"

// codeOf maps a domain error to its status code and client-visible reason.
func codeOf(err error) (codes.Code, string) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return codes.Unauthenticated, "UNAUTHORIZED"
	case errors.Is(err, errs.ErrRateLimited):
		return codes.ResourceExhausted, "RATE_LIMITED"
	case errors.Is(err, errs.ErrAlreadyExists):
		return codes.AlreadyExists, "ALREADY_EXISTS"
	case errors.Is(err, errs.ErrNotFound):
		return codes.NotFound, "NOT_FOUND"
	case errors.Is(err, context.Canceled):
		return codes.Canceled, string(errs.CodeServerError)
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, string(errs.CodeServerError)
	}

	code := errs.CodeOf(err)
	switch code {
	case errs.CodeAccountNotFound, errs.CodeWorkspaceNotFound, errs.CodeInvitationNotFound,
		errs.CodeMemberNotFound, errs.CodeUserNotFound, errs.CodeAccountVersionNotFound,
		errs.CodeNotificationNotFound, errs.CodeHighLevelPasswordNotFound, errs.CodeContactInfoNotFound:
		return codes.NotFound, string(code)
	case errs.CodeInvalidLinkConfirmInvitation, errs.CodeTwoFAAlreadyEnabled, errs.CodeTwoFANotEnabled,
		errs.CodeTwoFASecretMissing:
		return codes.FailedPrecondition, string(code)
	case errs.CodeMissingInput, errs.CodeNoSharingMembersProvided:
		return codes.InvalidArgument, string(code)
	case errs.CodeEmailAlreadyRegistered:
		return codes.AlreadyExists, string(code)
	case errs.CodeLoginFailed:
		return codes.Unauthenticated, string(code)
	case errs.CodeAccessDenied, errs.CodeInsufficientPermissions, errs.CodeTOTPInvalid, errs.CodeIncorrectPassword:
		return codes.PermissionDenied, string(code)
	default:
		return codes.Internal, string(errs.CodeServerError)
	}
}

// toStatus converts err into a status error carrying an ErrorInfo detail.
// Status errors pass through. Internal errors never leak their message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code, reason := codeOf(err)
	msg := err.Error()
	var coded *errs.Error
	if errors.As(err, &coded) && coded.Message != "" {
		msg = coded.Message
	}
	if code == codes.Internal {
		msg = "internal"
	}
	st, derr := status.New(code, msg).WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: errorDomain})
	if derr != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}

// ReasonOf returns the ErrorInfo reason of a status error, or "".
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

// ErrorsUnary returns a unary server interceptor that maps domain errors to
// status errors. Unmapped errors are logged before they are hidden.
func ErrorsUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		resp, err := next(ctx, req)
		if err == nil {
			return resp, nil
		}
		serr := toStatus(err)
		if status.Code(serr) == codes.Internal {
			log.Error("rpc failed", zap.String("method", info.FullMethod), zap.Error(err))
		}
		return nil, serr
	}
}
