// Package invitation turns invitee emails into sharing-member rows through
// PENDING invitations that the invitee confirms or declines.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/goph-share/internal/activity"
	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/metrics"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/sharing"
	"github.com/and161185/goph-share/internal/validate"
)

const (
	mailTemplate = "invitation_email"
	fanOutLimit  = 8
)

// Registry is the part of sharing.Registry the invitation flow uses.
type Registry interface {
	Kind() model.ResourceKind
	Create(ctx context.Context, resourceID, memberID uuid.UUID, role model.RoleAccess) error
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.SharingMember, error)
	ChangeRole(ctx context.Context, resourceID, memberID uuid.UUID, role model.RoleAccess) error
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Invitations  repository.InvitationRepository
	Resources    repository.ResourceRepository
	Users        repository.UserRepository
	Tx           repository.TxManager
	Notes        *notify.Service
	Activity     *activity.Service
	Mailer       notify.Mailer
	WebClientURL string
	Log          *zap.Logger
}

// Service runs the invitation lifecycle for one resource kind.
type Service struct {
	Deps
	kind     model.ResourceKind
	registry Registry
}

// NewService constructs the invitation service of the registry's kind.
func NewService(registry Registry, d Deps) *Service {
	d.WebClientURL = strings.TrimRight(d.WebClientURL, "/")
	return &Service{Deps: d, kind: registry.Kind(), registry: registry}
}

// Kind returns the resource kind the service invites to.
func (s *Service) Kind() model.ResourceKind { return s.kind }

// outbound is a new invitation with its stored invitee notification.
type outbound struct {
	inv  *model.Invitation
	note *model.Notification
}

// Create invites members to a resource. Emails that already hold a row only
// get their role updated, as do emails with a PENDING invitation to the same
// resource; the rest get a PENDING invitation, a notification and a mail.
// Mail and push failures are logged and do not fail the call.
func (s *Service) Create(ctx context.Context, actorID, resourceID uuid.UUID, invitees []model.Invitee) ([]model.Invitation, error) {
	if len(invitees) == 0 {
		return nil, errs.ErrNoSharingMembersProvided
	}
	if err := validate.Each(invitees); err != nil {
		return nil, err
	}
	invitees = dedupe(invitees)

	var (
		res   *model.Resource
		actor *model.User
		out   []outbound
		event *activity.Event
	)
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		out, event = nil, nil
		var err error
		if res, err = s.resource(ctx, resourceID); err != nil {
			return err
		}
		if actor, err = s.Users.GetByID(ctx, actorID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrUserNotFound
			}
			return err
		}
		owner, err := s.Users.GetByID(ctx, res.OwnerID)
		if err != nil {
			return fmt.Errorf("resource owner: %w", err)
		}

		existing, err := s.registry.ListByResource(ctx, resourceID)
		if err != nil {
			return err
		}
		byEmail := make(map[string]model.SharingMember, len(existing))
		for _, m := range existing {
			byEmail[strings.ToLower(m.Email)] = m
		}
		pending, err := s.Invitations.ListPendingByResource(ctx, s.kind, resourceID)
		if err != nil {
			return err
		}
		pendingByEmail := make(map[string]model.Invitation, len(pending))
		for _, inv := range pending {
			pendingByEmail[strings.ToLower(inv.Email)] = inv
		}

		var fresh []*model.Invitation
		for _, in := range invitees {
			email := strings.ToLower(in.Email)
			if email == strings.ToLower(owner.Email) {
				continue
			}
			if m, ok := byEmail[email]; ok {
				if m.Role != in.Role {
					if err := s.registry.ChangeRole(ctx, resourceID, m.MemberID, in.Role); err != nil {
						return err
					}
					metrics.InvitationsTotal.WithLabelValues(string(s.kind), "role_updated").Inc()
				}
				continue
			}
			if inv, ok := pendingByEmail[email]; ok {
				if inv.Role != in.Role {
					if err := s.Invitations.SetRole(ctx, s.kind, inv.ID, in.Role); err != nil {
						return err
					}
					metrics.InvitationsTotal.WithLabelValues(string(s.kind), "pending_updated").Inc()
				}
				continue
			}
			fresh = append(fresh, &model.Invitation{
				Kind: s.kind, ResourceID: resourceID, OwnerID: actorID,
				Email: email, Role: in.Role, Status: model.StatusPending,
			})
		}

		if err := s.Invitations.CreateBatch(ctx, fresh); err != nil {
			return fmt.Errorf("store invitations: %w", err)
		}
		for _, inv := range fresh {
			note, err := s.Notes.Create(ctx, inv.Email, actorID, s.inviteeActivity(), s.detail(inv.ID))
			if err != nil {
				return err
			}
			out = append(out, outbound{inv: inv, note: note})
		}

		if event, err = s.Activity.Record(ctx, actorID, *res, model.RoleManage, s.memberShareActivity()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, *res, actor, out)
	s.Activity.Emit(ctx, event)

	created := make([]model.Invitation, 0, len(out))
	for _, o := range out {
		created = append(created, *o.inv)
	}
	metrics.InvitationsTotal.WithLabelValues(string(s.kind), "created").Add(float64(len(created)))
	s.Log.Info("invitations created",
		zap.String("kind", string(s.kind)),
		zap.Stringer("resource", resourceID),
		zap.Stringer("actor", actorID),
		zap.Int("invited", len(created)),
	)
	return created, nil
}

// deliver pushes the invitee notifications and sends the mails concurrently.
func (s *Service) deliver(ctx context.Context, res model.Resource, actor *model.User, out []outbound) {
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for _, o := range out {
		g.Go(func() error {
			s.Notes.Push(ctx, o.note)
			mail := model.Mail{
				To:       o.inv.Email,
				Subject:  s.subject(),
				Template: mailTemplate,
				Context: map[string]any{
					"type":      string(s.kind),
					"itemName":  res.Name,
					"ownerName": actor.Name,
					"url":       s.ConfirmURL(o.inv.ID, o.note),
				},
			}
			if err := s.Mailer.Send(ctx, mail); err != nil {
				s.Log.Warn("invitation mail failed",
					zap.Stringer("invitation", o.inv.ID),
					zap.String("to", o.inv.Email),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ConfirmURL builds the e-mailed confirmation link of an invitation.
func (s *Service) ConfirmURL(invitationID uuid.UUID, note *model.Notification) string {
	u := fmt.Sprintf("%s/confirm-%s-invitation/%s", s.WebClientURL, s.kind, invitationID)
	if note != nil {
		u += "?notificationId=" + note.ID.String()
	}
	return u
}

// Confirm accepts a PENDING invitation and grants the invitee its role.
func (s *Service) Confirm(ctx context.Context, invitationID uuid.UUID) (*model.Invitation, error) {
	var inv *model.Invitation
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var (
			user *model.User
			err  error
		)
		if inv, user, err = s.resolve(ctx, invitationID, model.StatusAccepted); err != nil {
			return err
		}
		return s.registry.Create(ctx, inv.ResourceID, user.ID, inv.Role)
	})
	if err != nil {
		return nil, err
	}
	metrics.InvitationsTotal.WithLabelValues(string(s.kind), "accepted").Inc()
	return inv, nil
}

// Decline rejects a PENDING invitation. No row is created.
func (s *Service) Decline(ctx context.Context, invitationID uuid.UUID) (*model.Invitation, error) {
	var inv *model.Invitation
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		inv, _, err = s.resolve(ctx, invitationID, model.StatusDecline)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.InvitationsTotal.WithLabelValues(string(s.kind), "declined").Inc()
	return inv, nil
}

// ListPending returns the PENDING invitations addressed to email.
func (s *Service) ListPending(ctx context.Context, email string) ([]model.Invitation, error) {
	return s.Invitations.ListPending(ctx, s.kind, email)
}

// resolve loads a PENDING invitation and its invitee and moves it to next.
func (s *Service) resolve(ctx context.Context, id uuid.UUID, next model.InvitationStatus) (*model.Invitation, *model.User, error) {
	inv, err := s.Invitations.Get(ctx, s.kind, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, errs.ErrInvitationNotFound
		}
		return nil, nil, err
	}
	from := inv.Status
	if err := inv.Transition(next); err != nil {
		return nil, nil, errs.ErrInvalidLinkConfirmInvitation
	}
	user, err := s.Users.GetByEmail(ctx, inv.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, errs.ErrUserNotFound
		}
		return nil, nil, err
	}
	ok, err := s.Invitations.SetStatus(ctx, s.kind, id, from, next)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errs.ErrInvalidLinkConfirmInvitation
	}
	return inv, user, nil
}

func (s *Service) resource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	res, err := s.Resources.Resource(ctx, s.kind, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, sharing.NotFoundFor(s.kind)
		}
		return nil, err
	}
	return res, nil
}

func (s *Service) detail(invitationID uuid.UUID) model.NotificationDetail {
	id := invitationID
	if s.kind == model.KindWorkspace {
		return model.NotificationDetail{WorkspaceInvitationID: &id}
	}
	return model.NotificationDetail{AccountInvitationID: &id}
}

func (s *Service) inviteeActivity() model.ActivityType {
	if s.kind == model.KindWorkspace {
		return model.ActivityInvitationToWorkspace
	}
	return model.ActivityShareAccount
}

func (s *Service) memberShareActivity() model.ActivityType {
	if s.kind == model.KindWorkspace {
		return model.ActivityMemberShareWorkspace
	}
	return model.ActivityMemberShareAccount
}

func (s *Service) subject() string {
	if s.kind == model.KindWorkspace {
		return "Workspace Sharing Invitation"
	}
	return "Account Sharing Invitation"
}

// dedupe collapses entries with the same email, case-insensitively; the last entry wins.
func dedupe(in []model.Invitee) []model.Invitee {
	idx := make(map[string]int, len(in))
	out := make([]model.Invitee, 0, len(in))
	for _, e := range in {
		key := strings.ToLower(e.Email)
		if i, ok := idx[key]; ok {
			out[i].Role = e.Role
			continue
		}
		idx[key] = len(out)
		out = append(out, e)
	}
	return out
}
