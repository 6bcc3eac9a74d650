// Package authz gates resource-scoped requests: owners pass, shared members
// pass when their grants on the resource satisfy the route's policies.
package authz

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/ability"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/metrics"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/sharing"
)

// MemberLister returns a member's grants of one kind. *sharing.Registry implements it.
type MemberLister interface {
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]model.SharingMember, error)
}

// Context is the request-scoped authorization result.
type Context struct {
	UserID     uuid.UUID
	Kind       model.ResourceKind
	ResourceID uuid.UUID
	OwnerID    uuid.UUID
	Resource   model.Resource
	Ability    *ability.Set // nil for owners
}

// IsOwner reports whether the requester owns the resource.
func (c *Context) IsOwner() bool { return c.UserID == c.OwnerID }

// Can reports whether the requester may perform action on the resource.
func (c *Context) Can(action model.RoleAccess) bool {
	return c.IsOwner() || c.Ability.Can(action, c.Kind, c.ResourceID)
}

// Policy is a route-specific predicate evaluated for non-owners.
type Policy func(c *Context) bool

// Require returns a policy demanding action on the resource.
func Require(action model.RoleAccess) Policy {
	return func(c *Context) bool { return c.Can(action) }
}

// coarse are the actions of which a member must hold at least one.
var coarse = []model.RoleAccess{model.RoleManage, model.RoleUpdate, model.RoleRead}

// Guard resolves ownership and grants for every resource-scoped request.
type Guard struct {
	resources repository.ResourceRepository
	members   map[model.ResourceKind]MemberLister
	log       *zap.Logger
}

// NewGuard constructs a guard over the two registries.
func NewGuard(resources repository.ResourceRepository, accounts, workspaces MemberLister, log *zap.Logger) *Guard {
	return &Guard{
		resources: resources,
		members: map[model.ResourceKind]MemberLister{
			model.KindAccount:   accounts,
			model.KindWorkspace: workspaces,
		},
		log: log,
	}
}

// Authorize checks userID against the resource. Grants are read fresh on every call.
// On success the returned context carries the authorization Context.
func (g *Guard) Authorize(
	ctx context.Context, kind model.ResourceKind, userID, resourceID uuid.UUID, policies ...Policy,
) (context.Context, *Context, error) {
	lister, ok := g.members[kind]
	if !ok {
		return ctx, nil, errs.Invalid("unknown resource kind " + string(kind))
	}
	res, err := g.resources.Resource(ctx, kind, resourceID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ctx, nil, sharing.NotFoundFor(kind)
		}
		return ctx, nil, err
	}

	ac := &Context{UserID: userID, Kind: kind, ResourceID: resourceID, OwnerID: res.OwnerID, Resource: *res}
	if ac.IsOwner() {
		metrics.AuthzDecisionsTotal.WithLabelValues(string(kind), "owner").Inc()
		return WithContext(ctx, ac), ac, nil
	}

	rows, err := lister.ListByMember(ctx, userID)
	if err != nil {
		return ctx, nil, err
	}
	ac.Ability = ability.New(kind, rows)
	if !ac.Ability.Has(resourceID) {
		g.deny(kind, "not_member", userID, resourceID)
		return ctx, nil, errs.ErrAccessDenied
	}
	if !ac.Ability.CanAny(kind, resourceID, coarse...) {
		g.deny(kind, "insufficient", userID, resourceID)
		return ctx, nil, errs.ErrInsufficientPermissions
	}
	for _, p := range policies {
		if !p(ac) {
			g.deny(kind, "insufficient", userID, resourceID)
			return ctx, nil, errs.ErrInsufficientPermissions
		}
	}
	metrics.AuthzDecisionsTotal.WithLabelValues(string(kind), "allow").Inc()
	return WithContext(ctx, ac), ac, nil
}

func (g *Guard) deny(kind model.ResourceKind, decision string, userID, resourceID uuid.UUID) {
	metrics.AuthzDecisionsTotal.WithLabelValues(string(kind), decision).Inc()
	g.log.Debug("access denied",
		zap.String("kind", string(kind)),
		zap.String("decision", decision),
		zap.Stringer("user", userID),
		zap.Stringer("resource", resourceID),
	)
}

type ctxKey struct{}

// WithContext attaches an authorization context.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the authorization context attached by Authorize.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*Context)
	return ac, ok
}
