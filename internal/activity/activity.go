// Package activity records mutations of shared resources made by someone
// other than the owner, notifies the owner and streams an audit event.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
	"github.com/and161185/goph-share/internal/repository"
)

// Publisher streams audit events.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Event is what Record stored, handed to Emit once the transaction committed.
type Event struct {
	Log          model.ActivityLog
	ActorID      uuid.UUID
	Notification *model.Notification
}

// Service is the member activity log service.
type Service struct {
	logs   repository.ActivityLogRepository
	users  repository.UserRepository
	notes  *notify.Service
	stream Publisher
	log    *zap.Logger
}

// NewService constructs the activity service.
func NewService(
	logs repository.ActivityLogRepository,
	users repository.UserRepository,
	notes *notify.Service,
	stream Publisher,
	log *zap.Logger,
) *Service {
	return &Service{logs: logs, users: users, notes: notes, stream: stream, log: log}
}

// Create stores an activity log for a resource.
func (s *Service) Create(ctx context.Context, res model.Resource, action model.RoleAccess) (*model.ActivityLog, error) {
	l := &model.ActivityLog{EntityType: model.EntityOf(res.Kind), Action: action}
	id := res.ID
	if res.Kind == model.KindWorkspace {
		l.WorkspaceID = &id
	} else {
		l.AccountID = &id
	}
	if err := s.logs.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create activity log: %w", err)
	}
	return l, nil
}

// Record stores the activity log and the owner-facing notification for a
// mutation of res by actorID. It returns nil when the actor owns the resource.
func (s *Service) Record(
	ctx context.Context, actorID uuid.UUID, res model.Resource, action model.RoleAccess, typ model.ActivityType,
) (*Event, error) {
	if actorID == res.OwnerID {
		return nil, nil
	}
	l, err := s.Create(ctx, res, action)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.GetByID(ctx, res.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resource owner: %w", err)
	}
	logID := l.ID
	n, err := s.notes.Create(ctx, owner.Email, actorID, typ, model.NotificationDetail{ActivityLogID: &logID})
	if err != nil {
		return nil, fmt.Errorf("owner notification: %w", err)
	}
	return &Event{Log: *l, ActorID: actorID, Notification: n}, nil
}

type auditEvent struct {
	ID          string  `json:"id"`
	EntityType  string  `json:"entityType"`
	Action      string  `json:"action"`
	ActorID     string  `json:"actorId"`
	AccountID   *string `json:"accountId,omitempty"`
	WorkspaceID *string `json:"workspaceId,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

// Emit pushes the owner notification and streams the audit event. Failures are logged.
func (s *Service) Emit(ctx context.Context, ev *Event) {
	if ev == nil {
		return
	}
	s.notes.Push(ctx, ev.Notification)

	a := auditEvent{
		ID:         ev.Log.ID.String(),
		EntityType: string(ev.Log.EntityType),
		Action:     string(ev.Log.Action),
		ActorID:    ev.ActorID.String(),
		CreatedAt:  ev.Log.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	key := ""
	if ev.Log.AccountID != nil {
		v := ev.Log.AccountID.String()
		a.AccountID, key = &v, v
	}
	if ev.Log.WorkspaceID != nil {
		v := ev.Log.WorkspaceID.String()
		a.WorkspaceID, key = &v, v
	}
	if err := s.stream.Publish(ctx, key, a); err != nil {
		s.log.Warn("audit event publish failed", zap.Stringer("activity", ev.Log.ID), zap.Error(err))
	}
}
