package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// ActivityLogRepo implements ActivityLogRepository using PostgreSQL.
type ActivityLogRepo struct{ db *DB }

// NewActivityLogRepo constructs an activity log repository.
func NewActivityLogRepo(db *DB) *ActivityLogRepo { return &ActivityLogRepo{db: db} }

// Create inserts an activity log.
func (r *ActivityLogRepo) Create(ctx context.Context, l *model.ActivityLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.Must(uuid.NewV4())
	}
	const q = `
INSERT INTO member_activity_logs (id, entity_type, action, account_id, workspace_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	return r.db.q(ctx).QueryRow(ctx, q, l.ID, string(l.EntityType), string(l.Action), l.AccountID, l.WorkspaceID).
		Scan(&l.CreatedAt)
}

// NotificationRepo implements NotificationRepository using PostgreSQL.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo constructs a notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.Must(uuid.NewV4())
	}
	const q = `
INSERT INTO notifications (id, recipient, sender_id, activity_type, account_invitation_id, workspace_invitation_id, activity_log_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	d := n.Detail
	return r.db.q(ctx).QueryRow(ctx, q, n.ID, n.Recipient, n.SenderID, string(n.ActivityType),
		d.AccountInvitationID, d.WorkspaceInvitationID, d.ActivityLogID).Scan(&n.CreatedAt)
}

// ListByRecipient lists notifications for an email, newest first.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, email string) ([]model.Notification, error) {
	const q = `
SELECT id, recipient, sender_id, activity_type, is_read, account_invitation_id, workspace_invitation_id, activity_log_id, created_at
FROM notifications WHERE lower(recipient)=lower($1)
ORDER BY created_at DESC`
	rows, err := r.db.q(ctx).Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n   model.Notification
			typ string
		)
		if err = rows.Scan(&n.ID, &n.Recipient, &n.SenderID, &typ, &n.IsRead,
			&n.Detail.AccountInvitationID, &n.Detail.WorkspaceInvitationID, &n.Detail.ActivityLogID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ActivityType = model.ActivityType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification of recipient as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID, recipient string) (bool, error) {
	const q = `UPDATE notifications SET is_read=true WHERE id=$1 AND lower(recipient)=lower($2)`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, recipient)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
