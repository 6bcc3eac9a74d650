// Package httpapi serves the e-mailed invitation links plus health and
// metrics endpoints over plain HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// Invitations confirms or declines invitations of one kind.
type Invitations interface {
	Confirm(ctx context.Context, invitationID uuid.UUID) (*model.Invitation, error)
	Decline(ctx context.Context, invitationID uuid.UUID) (*model.Invitation, error)
}

// Notifications acknowledges the notification a link was sent with.
type Notifications interface {
	MarkRead(ctx context.Context, email string, id uuid.UUID) error
}

// Deps groups the collaborators of the router.
type Deps struct {
	Invitations    map[model.ResourceKind]Invitations
	Notifications  Notifications
	Ping           func(ctx context.Context) error
	AllowedOrigins []string
	Log            *zap.Logger
}

type api struct{ Deps }

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(d.AllowedOrigins)))
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", a.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/invitations/{kind}/{id}", func(r chi.Router) {
		r.Get("/confirm", a.answer(model.StatusAccepted))
		r.Get("/decline", a.answer(model.StatusDecline))
	})
	return r
}

func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(origins) == 0 || origins[0] == "*" {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return opts
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.Log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("peer", r.RemoteAddr),
		)
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		if err := a.Ping(r.Context()); err != nil {
			a.Log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// invitationReply is the JSON answer of a link endpoint.
type invitationReply struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	ResourceID string `json:"resourceId"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Status     string `json:"status"`
}

// answer handles a confirm or decline link. A notificationId query
// parameter marks the invitee's notification as read.
func (a *api) answer(next model.InvitationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := model.ResourceKind(strings.ToLower(chi.URLParam(r, "kind")))
		svc, ok := a.Invitations[kind]
		if !ok {
			writeError(w, a.Log, r, errs.ErrInvitationNotFound)
			return
		}
		id, err := uuid.FromString(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, a.Log, r, errs.ErrInvitationNotFound)
			return
		}

		var inv *model.Invitation
		if next == model.StatusAccepted {
			inv, err = svc.Confirm(r.Context(), id)
		} else {
			inv, err = svc.Decline(r.Context(), id)
		}
		if err != nil {
			writeError(w, a.Log, r, err)
			return
		}

		if nid, err := uuid.FromString(r.URL.Query().Get("notificationId")); err == nil && a.Notifications != nil {
			if err := a.Notifications.MarkRead(r.Context(), inv.Email, nid); err != nil {
				a.Log.Warn("mark invitation notification read", zap.Stringer("notification", nid), zap.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, invitationReply{
			ID:         inv.ID.String(),
			Kind:       string(inv.Kind),
			ResourceID: inv.ResourceID.String(),
			Email:      inv.Email,
			Role:       string(inv.Role),
			Status:     string(inv.Status),
		})
	}
}
