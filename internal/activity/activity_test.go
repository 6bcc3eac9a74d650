package activity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
	"github.com/and161185/goph-share/internal/repository/memory"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func newService(t *testing.T) (*Service, *memory.Store, *fakeWriter) {
	t.Helper()
	s := memory.New()
	log := zaptest.NewLogger(t)
	fw := &fakeWriter{}
	notes := notify.NewService(s.Notifications(), notify.NopGateway{}, log)
	return NewService(s.ActivityLogs(), s.Users(), notes, NewKafkaPublisherWithWriter(fw), log), s, fw
}

func TestRecord_OwnerActionIsSilent(t *testing.T) {
	svc, s, _ := newService(t)
	owner := uuid.Must(uuid.NewV4())
	ev, err := svc.Record(context.Background(), owner, model.Resource{Kind: model.KindAccount, ID: uuid.Must(uuid.NewV4()), OwnerID: owner}, model.RoleUpdate, model.ActivityUpdateAccount)
	require.NoError(t, err)
	require.Nil(t, ev)

	logs, _ := s.ActivityLogs().All(context.Background())
	require.Empty(t, logs)
}

func TestRecord_MemberActionLogsAndNotifiesOwner(t *testing.T) {
	svc, s, fw := newService(t)
	ctx := context.Background()
	owner := &model.User{Name: "o", Email: "owner@x.io"}
	require.NoError(t, s.Users().Create(ctx, owner))
	actor := uuid.Must(uuid.NewV4())
	ws := uuid.Must(uuid.NewV4())

	ev, err := svc.Record(ctx, actor, model.Resource{Kind: model.KindWorkspace, ID: ws, OwnerID: owner.ID}, model.RoleManage, model.ActivityMemberShareWorkspace)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, model.EntityWorkspace, ev.Log.EntityType)
	require.Equal(t, ws, *ev.Log.WorkspaceID)
	require.Nil(t, ev.Log.AccountID)

	notes, _ := s.Notifications().ListByRecipient(ctx, "owner@x.io")
	require.Len(t, notes, 1)
	require.Equal(t, model.ActivityMemberShareWorkspace, notes[0].ActivityType)
	require.Equal(t, ev.Log.ID, *notes[0].Detail.ActivityLogID)

	svc.Emit(ctx, ev)
	require.Len(t, fw.msgs, 1)
	require.Equal(t, ws.String(), string(fw.msgs[0].Key))
	var a auditEvent
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &a))
	require.Equal(t, "MANAGE", a.Action)
	require.Equal(t, actor.String(), a.ActorID)
}
