package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

type fakeInvitations struct {
	status map[uuid.UUID]model.InvitationStatus
	err    error
}

func (f *fakeInvitations) move(id uuid.UUID, next model.InvitationStatus) (*model.Invitation, error) {
	if f.err != nil {
		return nil, f.err
	}
	cur, ok := f.status[id]
	if !ok {
		return nil, errs.ErrInvitationNotFound
	}
	if !cur.CanTransition(next) {
		return nil, errs.ErrInvalidLinkConfirmInvitation
	}
	f.status[id] = next
	return &model.Invitation{ID: id, Kind: model.KindAccount, Email: "bob@x.io", Role: model.RoleRead, Status: next}, nil
}

func (f *fakeInvitations) Confirm(_ context.Context, id uuid.UUID) (*model.Invitation, error) {
	return f.move(id, model.StatusAccepted)
}

func (f *fakeInvitations) Decline(_ context.Context, id uuid.UUID) (*model.Invitation, error) {
	return f.move(id, model.StatusDecline)
}

type fakeNotifications struct{ read []uuid.UUID }

func (f *fakeNotifications) MarkRead(_ context.Context, email string, id uuid.UUID) error {
	if email != "bob@x.io" {
		return errs.ErrNotificationNotFound
	}
	f.read = append(f.read, id)
	return nil
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestInvitationLinks(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	other := uuid.Must(uuid.NewV4())
	inv := &fakeInvitations{status: map[uuid.UUID]model.InvitationStatus{
		id: model.StatusPending, other: model.StatusPending,
	}}
	notes := &fakeNotifications{}
	h := NewRouter(Deps{
		Invitations:   map[model.ResourceKind]Invitations{model.KindAccount: inv},
		Notifications: notes,
		Log:           zaptest.NewLogger(t),
	})
	nid := uuid.Must(uuid.NewV4())

	rec := do(t, h, http.MethodGet, "/invitations/account/"+id.String()+"/confirm?notificationId="+nid.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[invitationReply](t, rec)
	require.Equal(t, "ACCEPTED", got.Status)
	require.Equal(t, []uuid.UUID{nid}, notes.read)

	rec = do(t, h, http.MethodGet, "/invitations/account/"+id.String()+"/decline", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "INVALID_LINK_CONFIRM_INVITATION", body.ErrorCode)
	require.Equal(t, http.StatusBadRequest, body.Status)

	rec = do(t, h, http.MethodGet, "/invitations/account/"+other.String()+"/decline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "DECLINE", decode[invitationReply](t, rec).Status)

	for _, target := range []string{
		"/invitations/account/not-a-uuid/confirm",
		"/invitations/folder/" + id.String() + "/confirm",
		"/invitations/account/" + uuid.Must(uuid.NewV4()).String() + "/confirm",
	} {
		rec = do(t, h, http.MethodGet, target, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, target)
		require.Equal(t, "INVITATION_NOT_FOUND", decode[errorBody](t, rec).ErrorCode, target)
	}
}

func TestInvitationLinks_ServerErrorIsHidden(t *testing.T) {
	h := NewRouter(Deps{
		Invitations: map[model.ResourceKind]Invitations{model.KindWorkspace: &fakeInvitations{err: errors.New("pool closed")}},
		Log:         zaptest.NewLogger(t),
	})
	rec := do(t, h, http.MethodGet, "/invitations/workspace/"+uuid.Must(uuid.NewV4()).String()+"/confirm", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[errorBody](t, rec)
	require.Equal(t, "SERVER_ERROR", body.ErrorCode)
	require.NotContains(t, body.Message, "pool")
}

func TestHealthAndMetrics(t *testing.T) {
	var down error
	h := NewRouter(Deps{Ping: func(context.Context) error { return down }, Log: zaptest.NewLogger(t)})

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	down = errors.New("db down")
	rec = do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORS_Preflight(t *testing.T) {
	h := NewRouter(Deps{AllowedOrigins: []string{"https://app.example"}, Log: zaptest.NewLogger(t)})

	rec := do(t, h, http.MethodOptions, "/healthz", map[string]string{
		"Origin":                        "https://app.example",
		"Access-Control-Request-Method": http.MethodGet,
	})
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/healthz", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": http.MethodGet,
	})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
