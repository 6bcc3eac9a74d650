package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// ActivityLogRepo implements ActivityLogRepository.
type ActivityLogRepo struct{ s *Store }

// Create inserts an activity log.
func (r *ActivityLogRepo) Create(ctx context.Context, l *model.ActivityLog) error {
	return r.s.write(ctx, func(st *state) error {
		if l.ID == uuid.Nil {
			l.ID = newID()
		}
		l.CreatedAt = time.Now()
		st.logs[l.ID] = *l
		return nil
	})
}

// All returns every stored log, oldest first.
func (r *ActivityLogRepo) All(ctx context.Context) ([]model.ActivityLog, error) {
	var out []model.ActivityLog
	err := r.s.read(ctx, func(st *state) error {
		for _, l := range st.logs {
			out = append(out, l)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.ActivityLog) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, err
}

// NotificationRepo implements NotificationRepository.
type NotificationRepo struct{ s *Store }

// Create inserts a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.s.write(ctx, func(st *state) error {
		if n.ID == uuid.Nil {
			n.ID = newID()
		}
		n.CreatedAt = time.Now()
		st.notifications[n.ID] = *n
		return nil
	})
}

// ListByRecipient lists notifications for an email, newest first.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, email string) ([]model.Notification, error) {
	var out []model.Notification
	err := r.s.read(ctx, func(st *state) error {
		for _, n := range st.notifications {
			if strings.EqualFold(n.Recipient, email) {
				out = append(out, n)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, err
}

// MarkRead flags a notification of recipient as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id uuid.UUID, recipient string) (bool, error) {
	var ok bool
	err := r.s.write(ctx, func(st *state) error {
		n, found := st.notifications[id]
		if !found || !strings.EqualFold(n.Recipient, recipient) {
			return nil
		}
		n.IsRead = true
		st.notifications[id] = n
		ok = true
		return nil
	})
	return ok, err
}
