package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// ActivityLogRepository stores member activity logs.
type ActivityLogRepository interface {
	Create(ctx context.Context, l *model.ActivityLog) error
}

// NotificationRepository stores notifications.
type NotificationRepository interface {
	// Create inserts a notification with its detail reference.
	Create(ctx context.Context, n *model.Notification) error
	// ListByRecipient lists notifications for an email, newest first.
	ListByRecipient(ctx context.Context, email string) ([]model.Notification, error)
	// MarkRead flags a notification of recipient as read; false if none matched.
	MarkRead(ctx context.Context, id uuid.UUID, recipient string) (bool, error)
}
