// Package notify stores notifications and delivers them by push and by mail.
package notify

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository"
)

// Gateway pushes a notification to its recipient. Offline recipients are a no-op.
type Gateway interface {
	Send(ctx context.Context, n model.Notification) error
}

// Mailer sends a templated mail.
type Mailer interface {
	Send(ctx context.Context, m model.Mail) error
}

// Service persists notifications and pushes them through the gateway.
type Service struct {
	repo repository.NotificationRepository
	gw   Gateway
	log  *zap.Logger
}

// NewService constructs a notification service.
func NewService(repo repository.NotificationRepository, gw Gateway, log *zap.Logger) *Service {
	return &Service{repo: repo, gw: gw, log: log}
}

// Create stores a notification for recipient.
func (s *Service) Create(
	ctx context.Context, recipient string, senderID uuid.UUID, typ model.ActivityType, detail model.NotificationDetail,
) (*model.Notification, error) {
	n := &model.Notification{Recipient: recipient, SenderID: senderID, ActivityType: typ, Detail: detail}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Push delivers n to an online recipient. Failures are logged, never returned.
func (s *Service) Push(ctx context.Context, n *model.Notification) {
	if n == nil {
		return
	}
	if err := s.gw.Send(ctx, *n); err != nil {
		s.log.Warn("push notification failed",
			zap.Stringer("notification", n.ID),
			zap.String("type", string(n.ActivityType)),
			zap.Error(err),
		)
	}
}

// List returns the notifications addressed to email.
func (s *Service) List(ctx context.Context, email string) ([]model.Notification, error) {
	return s.repo.ListByRecipient(ctx, email)
}

// MarkRead flags a notification of email as read.
func (s *Service) MarkRead(ctx context.Context, email string, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, id, email)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrNotificationNotFound
	}
	return nil
}
