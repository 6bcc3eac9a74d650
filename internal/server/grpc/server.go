// Package grpcserver exposes the Vault gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/goph-share/internal/authz"
	"github.com/and161185/goph-share/internal/convert"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/service"
)

// Members is the per-kind sharing registry used by the member methods.
type Members interface {
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.SharingMember, error)
	UpdateRoleAccess(ctx context.Context, resourceID, ownerID uuid.UUID, desired []model.MemberRole) error
}

// Invitations is the per-kind invitation lifecycle.
type Invitations interface {
	Create(ctx context.Context, actorID, resourceID uuid.UUID, invitees []model.Invitee) ([]model.Invitation, error)
	Confirm(ctx context.Context, invitationID uuid.UUID) (*model.Invitation, error)
	Decline(ctx context.Context, invitationID uuid.UUID) (*model.Invitation, error)
	ListPending(ctx context.Context, email string) ([]model.Invitation, error)
}

// Notifications lists and acknowledges a user's notifications.
type Notifications interface {
	List(ctx context.Context, email string) ([]model.Notification, error)
	MarkRead(ctx context.Context, email string, id uuid.UUID) error
}

// Deps groups the services behind the handlers.
type Deps struct {
	Auth          service.AuthService
	Accounts      service.AccountService
	Workspaces    service.WorkspaceService
	HighLevel     service.HighLevelPasswordService
	Contacts      service.ContactInfoService
	Members       map[model.ResourceKind]Members
	Invitations   map[model.ResourceKind]Invitations
	Notifications Notifications
	Users         repository.UserRepository
	Guard         *authz.Guard
	Log           *zap.Logger
}

// Server wires services into gRPC handlers.
type Server struct {
	Deps
}

// New constructs a gRPC server with injected services.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{Deps: d}
}

func reply(m map[string]any) (*structpb.Struct, error) { return convert.ToStruct(m) }

func empty() (*structpb.Struct, error) { return &structpb.Struct{}, nil }

// actor returns the authenticated caller.
func actor(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserIDFromCtx(ctx)
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

// authorize runs the guard for the resource named by key with an action policy.
func (s *Server) authorize(
	ctx context.Context, kind model.ResourceKind, args convert.Args, key string, action model.RoleAccess,
) (context.Context, *authz.Context, error) {
	userID, err := actor(ctx)
	if err != nil {
		return ctx, nil, err
	}
	id, err := args.UUID(key)
	if err != nil {
		return ctx, nil, err
	}
	return s.Guard.Authorize(ctx, kind, userID, id, authz.Require(action))
}

// --- Auth ---

// Register creates a new user.
func (s *Server) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	id, err := s.Auth.Register(ctx, service.RegisterInput{
		Name: a.String("name"), Email: a.String("email"), Password: a.String("password"),
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"userId": id.String()})
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
		return host
	}
	return p.Addr.String()
}

func userAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get("user-agent"); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	tok, u, err := s.Auth.Login(ctx, service.LoginInput{
		Email: a.String("email"), Password: a.String("password"),
		IP: remoteIP(ctx), UserAgent: userAgent(ctx),
	})
	if err != nil {
		return nil, err
	}
	if tok.Challenge != "" {
		return reply(map[string]any{
			"twoFa":     string(tok.TwoFA),
			"challenge": tok.Challenge,
			"userId":    u.ID.String(),
		})
	}
	return reply(map[string]any{
		"accessToken": tok.AccessToken,
		"expiresAt":   tok.ExpiresAt.UTC().Format(time.RFC3339),
		"userId":      u.ID.String(),
		"name":        u.Name,
		"email":       u.Email,
	})
}

// --- Accounts ---

func accountInput(a convert.Args) service.AccountInput {
	return service.AccountInput{Domain: a.String("domain"), Username: a.String("username"), Password: a.String("password")}
}

// CreateAccount stores a credential owned by the caller.
func (s *Server) CreateAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := s.Accounts.Create(ctx, userID, accountInput(convert.NewArgs(in)))
	if err != nil {
		return nil, err
	}
	return reply(convert.Account(*acc, nil))
}

// GetAccount returns an account with its members. Requires READ.
func (s *Server) GetAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, ac, err := s.authorize(ctx, model.KindAccount, convert.NewArgs(in), "id", model.RoleRead)
	if err != nil {
		return nil, err
	}
	v, err := s.Accounts.Get(ctx, ac.ResourceID)
	if err != nil {
		return nil, err
	}
	return reply(convert.Account(v.Account, v.Members))
}

// ListAccounts pages through accounts the caller owns or shares.
func (s *Server) ListAccounts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	views, total, err := s.Accounts.List(ctx, userID, convert.NewArgs(in).Page())
	if err != nil {
		return nil, err
	}
	items := convert.List(views, func(v service.AccountView) map[string]any { return convert.Account(v.Account, v.Members) })
	return reply(map[string]any{"items": items, "total": total})
}

// UpdateAccount rewrites an account. Requires UPDATE.
func (s *Server) UpdateAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	ctx, ac, err := s.authorize(ctx, model.KindAccount, a, "id", model.RoleUpdate)
	if err != nil {
		return nil, err
	}
	if err := s.Accounts.Update(ctx, ac.UserID, ac.ResourceID, accountInput(a)); err != nil {
		return nil, err
	}
	return empty()
}

// DeleteAccount soft-deletes an account. Only the owner passes the service check.
func (s *Server) DeleteAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, ac, err := s.authorize(ctx, model.KindAccount, convert.NewArgs(in), "id", model.RoleDelete)
	if err != nil {
		return nil, err
	}
	if err := s.Accounts.SoftDelete(ctx, ac.UserID, ac.ResourceID); err != nil {
		return nil, err
	}
	return empty()
}

// RestoreAccount undoes a soft delete by the owner.
func (s *Server) RestoreAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.NewArgs(in).UUID("id")
	if err != nil {
		return nil, err
	}
	if err := s.Accounts.Restore(ctx, userID, id); err != nil {
		return nil, err
	}
	return empty()
}

// ListAccountVersions lists snapshots of an account. Requires READ.
func (s *Server) ListAccountVersions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, ac, err := s.authorize(ctx, model.KindAccount, convert.NewArgs(in), "id", model.RoleRead)
	if err != nil {
		return nil, err
	}
	vs, err := s.Accounts.Versions(ctx, ac.ResourceID)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"items": convert.List(vs, convert.AccountVersion)})
}

// RollbackAccount restores a snapshot. Only the account owner may roll back.
func (s *Server) RollbackAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	versionID, err := convert.NewArgs(in).UUID("versionId")
	if err != nil {
		return nil, err
	}
	if err := s.Accounts.Rollback(ctx, userID, versionID); err != nil {
		return nil, err
	}
	return empty()
}

// RevealPassword returns the decrypted password. Requires READ and, when the
// caller has one enabled, the high-level password.
func (s *Server) RevealPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	ctx, ac, err := s.authorize(ctx, model.KindAccount, a, "id", model.RoleRead)
	if err != nil {
		return nil, err
	}
	if s.HighLevel != nil {
		if err := s.HighLevel.Gate(ctx, ac.UserID, a.String("highLevelPassword")); err != nil {
			return nil, err
		}
	}
	pw, err := s.Accounts.RevealPassword(ctx, ac.ResourceID)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"password": pw})
}

// --- Workspaces ---

func workspaceInput(a convert.Args) (service.WorkspaceInput, error) {
	ids, err := a.UUIDs("accountIds")
	if err != nil {
		return service.WorkspaceInput{}, err
	}
	return service.WorkspaceInput{Name: a.String("name"), AccountIDs: ids}, nil
}

// CreateWorkspace creates a workspace owned by the caller.
func (s *Server) CreateWorkspace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	wi, err := workspaceInput(convert.NewArgs(in))
	if err != nil {
		return nil, err
	}
	w, err := s.Workspaces.Create(ctx, userID, wi)
	if err != nil {
		return nil, err
	}
	return reply(convert.Workspace(*w, nil))
}

// GetWorkspace returns a workspace with its members. Requires READ.
func (s *Server) GetWorkspace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, ac, err := s.authorize(ctx, model.KindWorkspace, convert.NewArgs(in), "id", model.RoleRead)
	if err != nil {
		return nil, err
	}
	v, err := s.Workspaces.Get(ctx, ac.ResourceID)
	if err != nil {
		return nil, err
	}
	return reply(convert.Workspace(v.Workspace, v.Members))
}

// ListWorkspaces pages through workspaces the caller owns or shares.
func (s *Server) ListWorkspaces(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	views, total, err := s.Workspaces.List(ctx, userID, convert.NewArgs(in).Page())
	if err != nil {
		return nil, err
	}
	items := convert.List(views, func(v service.WorkspaceView) map[string]any { return convert.Workspace(v.Workspace, v.Members) })
	return reply(map[string]any{"items": items, "total": total})
}

// UpdateWorkspace renames a workspace and relinks its accounts. Requires UPDATE.
func (s *Server) UpdateWorkspace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	ctx, ac, err := s.authorize(ctx, model.KindWorkspace, a, "id", model.RoleUpdate)
	if err != nil {
		return nil, err
	}
	wi, err := workspaceInput(a)
	if err != nil {
		return nil, err
	}
	if err := s.Workspaces.Update(ctx, ac.UserID, ac.ResourceID, wi); err != nil {
		return nil, err
	}
	return empty()
}

// DeleteWorkspace soft-deletes a workspace. Only the owner passes the service check.
func (s *Server) DeleteWorkspace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, ac, err := s.authorize(ctx, model.KindWorkspace, convert.NewArgs(in), "id", model.RoleDelete)
	if err != nil {
		return nil, err
	}
	if err := s.Workspaces.SoftDelete(ctx, ac.UserID, ac.ResourceID); err != nil {
		return nil, err
	}
	return empty()
}

// RestoreWorkspace undoes a soft delete by the owner.
func (s *Server) RestoreWorkspace(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.NewArgs(in).UUID("id")
	if err != nil {
		return nil, err
	}
	if err := s.Workspaces.Restore(ctx, userID, id); err != nil {
		return nil, err
	}
	return empty()
}

// --- Members and invitations ---

func (s *Server) members(kind model.ResourceKind) (Members, error) {
	m, ok := s.Members[kind]
	if !ok {
		return nil, errs.Invalid("sharing is not available for " + string(kind))
	}
	return m, nil
}

func (s *Server) invitations(kind model.ResourceKind) (Invitations, error) {
	inv, ok := s.Invitations[kind]
	if !ok {
		return nil, errs.Invalid("invitations are not available for " + string(kind))
	}
	return inv, nil
}

// ListMembers lists the sharing rows of a resource. Requires READ.
func (s *Server) ListMembers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	ctx, ac, err := s.authorize(ctx, kind, a, "resourceId", model.RoleRead)
	if err != nil {
		return nil, err
	}
	reg, err := s.members(kind)
	if err != nil {
		return nil, err
	}
	rows, err := reg.ListByResource(ctx, ac.ResourceID)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"items": convert.Members(rows)})
}

// UpdateMembers reconciles the full member list of a resource. Requires MANAGE.
func (s *Server) UpdateMembers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	ctx, ac, err := s.authorize(ctx, kind, a, "resourceId", model.RoleManage)
	if err != nil {
		return nil, err
	}
	desired, err := a.MemberRoles("members")
	if err != nil {
		return nil, err
	}
	reg, err := s.members(kind)
	if err != nil {
		return nil, err
	}
	if err := reg.UpdateRoleAccess(ctx, ac.ResourceID, ac.UserID, desired); err != nil {
		return nil, err
	}
	return empty()
}

// InviteMembers invites emails to a resource. Requires MANAGE.
func (s *Server) InviteMembers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := convert.NewArgs(in)
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, err
	}
	ctx, ac, err := s.authorize(ctx, kind, a, "resourceId", model.RoleManage)
	if err != nil {
		return nil, err
	}
	invitees, err := a.Invitees("invitees")
	if err != nil {
		return nil, err
	}
	svc, err := s.invitations(kind)
	if err != nil {
		return nil, err
	}
	created, err := svc.Create(ctx, ac.UserID, ac.ResourceID, invitees)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"items": convert.List(created, convert.Invitation)})
}

// callerEmail resolves the email of the authenticated caller.
func (s *Server) callerEmail(ctx context.Context) (string, error) {
	userID, err := actor(ctx)
	if err != nil {
		return "", err
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", errs.ErrUserNotFound
		}
		return "", err
	}
	return u.Email, nil
}

// ListInvitations lists the caller's pending invitations of a kind.
func (s *Server) ListInvitations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	kind, err := convert.NewArgs(in).Kind("kind")
	if err != nil {
		return nil, err
	}
	svc, err := s.invitations(kind)
	if err != nil {
		return nil, err
	}
	email, err := s.callerEmail(ctx)
	if err != nil {
		return nil, err
	}
	list, err := svc.ListPending(ctx, email)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"items": convert.List(list, convert.Invitation)})
}

// resolveOwn finds a pending invitation addressed to the caller. Invitations
// of other users read as not found.
func (s *Server) resolveOwn(ctx context.Context, in *structpb.Struct) (Invitations, uuid.UUID, error) {
	a := convert.NewArgs(in)
	kind, err := a.Kind("kind")
	if err != nil {
		return nil, uuid.Nil, err
	}
	id, err := a.UUID("id")
	if err != nil {
		return nil, uuid.Nil, err
	}
	svc, err := s.invitations(kind)
	if err != nil {
		return nil, uuid.Nil, err
	}
	email, err := s.callerEmail(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	pending, err := svc.ListPending(ctx, email)
	if err != nil {
		return nil, uuid.Nil, err
	}
	for _, inv := range pending {
		if inv.ID == id {
			return svc, id, nil
		}
	}
	return nil, uuid.Nil, errs.ErrInvitationNotFound
}

// ConfirmInvitation accepts one of the caller's pending invitations.
func (s *Server) ConfirmInvitation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	svc, id, err := s.resolveOwn(ctx, in)
	if err != nil {
		return nil, err
	}
	inv, err := svc.Confirm(ctx, id)
	if err != nil {
		return nil, err
	}
	return reply(convert.Invitation(*inv))
}

// DeclineInvitation declines one of the caller's pending invitations.
func (s *Server) DeclineInvitation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	svc, id, err := s.resolveOwn(ctx, in)
	if err != nil {
		return nil, err
	}
	inv, err := svc.Decline(ctx, id)
	if err != nil {
		return nil, err
	}
	return reply(convert.Invitation(*inv))
}

// --- Notifications ---

// ListNotifications lists notifications addressed to the caller.
func (s *Server) ListNotifications(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	email, err := s.callerEmail(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.Notifications.List(ctx, email)
	if err != nil {
		return nil, err
	}
	return reply(map[string]any{"items": convert.List(list, convert.Notification)})
}

// MarkNotificationRead flags one of the caller's notifications as read.
func (s *Server) MarkNotificationRead(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.NewArgs(in).UUID("id")
	if err != nil {
		return nil, err
	}
	email, err := s.callerEmail(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Notifications.MarkRead(ctx, email, id); err != nil {
		return nil, err
	}
	return empty()
}
