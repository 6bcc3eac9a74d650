package grpcserver

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/goph-share/internal/convert"
	"github.com/and161185/goph-share/internal/service"
)

// --- Two-factor ---

// VerifyTwoFA exchanges a login challenge and a one-time code for an access token.
func (s *Server) VerifyTwoFA(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	tok, u, err := s.Auth.VerifyTwoFA(ctx, service.VerifyTwoFAInput{
		Challenge: a.String("challenge"), Code: a.String("code"),
		IP: remoteIP(ctx), UserAgent: userAgent(ctx),
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{
		"accessToken": tok.AccessToken,
		"expiresAt":   tok.ExpiresAt.UTC().Format(time.RFC3339),
		"userId":      u.ID.String(),
		"name":        u.Name,
		"email":       u.Email,
	})
}

// BeginTwoFA returns a fresh secret for a login challenged without one.
func (s *Server) BeginTwoFA(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	setup, err := s.Auth.BeginTwoFA(ctx, convert.NewArgs(in).String("challenge"))
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{
		"secret":    setup.Secret,
		"otpauth":   setup.URL,
		"challenge": setup.Challenge,
	})
}

// GetSecurityStatus reports the caller's two-factor and high-level password states.
func (s *Server) GetSecurityStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	tf, err := s.Auth.TwoFAStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	hl, err := s.HighLevel.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"twoFa": string(tf), "highLevelPassword": string(hl)})
}

// EnableTwoFA turns on the caller's second factor.
func (s *Server) EnableTwoFA(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.EnableTwoFA(ctx, userID); err != nil {
		return nil, err
	}
	return empty()
}

// DisableTwoFA turns off the caller's second factor given a current code.
func (s *Server) DisableTwoFA(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.DisableTwoFA(ctx, userID, convert.NewArgs(in).String("code")); err != nil {
		return nil, err
	}
	return empty()
}

// --- High-level password ---

// SetHighLevelPassword sets or replaces the caller's high-level password.
func (s *Server) SetHighLevelPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	a := convert.NewArgs(in)
	err = s.HighLevel.Set(ctx, userID, service.HighLevelPasswordInput{
		Password: a.String("password"), Current: a.String("currentPassword"),
	})
	if err != nil {
		return nil, err
	}
	return empty()
}

// VerifyHighLevelPassword checks the caller's high-level password.
func (s *Server) VerifyHighLevelPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.HighLevel.Verify(ctx, userID, convert.NewArgs(in).String("password")); err != nil {
		return nil, err
	}
	return reply(map[string]any{"valid": true})
}

// ToggleHighLevelPassword enables or disables the caller's high-level password.
func (s *Server) ToggleHighLevelPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.HighLevel.Toggle(ctx, userID, convert.NewArgs(in).String("password"))
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"status": string(st)})
}

// --- Contact info ---

func contactInput(a convert.Args) service.ContactInput {
	return service.ContactInput{
		Title: a.String("title"), FirstName: a.String("firstName"), MidName: a.String("midName"),
		LastName: a.String("lastName"), Street: a.String("street"), City: a.String("city"),
		PostalCode: a.String("postalCode"), Country: a.String("country"),
		Email: a.String("email"), PhoneNumber: a.String("phoneNumber"),
	}
}

// CreateContactInfo stores a contact card owned by the caller.
func (s *Server) CreateContactInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.Contacts.Create(ctx, userID, contactInput(convert.NewArgs(in)))
	if err != nil {
		return nil, err
	}
	return reply(convert.ContactInfo(*c))
}

// GetContactInfo returns one of the caller's cards.
func (s *Server) GetContactInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.NewArgs(in).UUID("id")
	if err != nil {
		return nil, err
	}
	c, err := s.Contacts.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return reply(convert.ContactInfo(*c))
}

// ListContactInfos lists the caller's cards.
func (s *Server) ListContactInfos(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.Contacts.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"items": convert.List(list, convert.ContactInfo)})
}

// UpdateContactInfo rewrites one of the caller's cards.
func (s *Server) UpdateContactInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	a := convert.NewArgs(in)
	id, err := a.UUID("id")
	if err != nil {
		return nil, err
	}
	c, err := s.Contacts.Update(ctx, userID, id, contactInput(a))
	if err != nil {
		return nil, err
	}
	return reply(convert.ContactInfo(*c))
}

// DeleteContactInfo soft-deletes one of the caller's cards.
func (s *Server) DeleteContactInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.NewArgs(in).UUID("id")
	if err != nil {
		return nil, err
	}
	if err := s.Contacts.SoftDelete(ctx, userID, id); err != nil {
		return nil, err
	}
	return empty()
}

// RestoreContactInfo undoes a soft delete.
func (s *Server) RestoreContactInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.NewArgs(in).UUID("id")
	if err != nil {
		return nil, err
	}
	if err := s.Contacts.Restore(ctx, userID, id); err != nil {
		return nil, err
	}
	return empty()
}
