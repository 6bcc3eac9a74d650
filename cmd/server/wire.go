package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/activity"
	"github.com/and161185/goph-share/internal/authz"
	"github.com/and161185/goph-share/internal/config"
	pkgcrypto "github.com/and161185/goph-share/internal/crypto"
	"github.com/and161185/goph-share/internal/invitation"
	"github.com/and161185/goph-share/internal/limiter"
	"github.com/and161185/goph-share/internal/migrate"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/notify"
	"github.com/and161185/goph-share/internal/repository"
	"github.com/and161185/goph-share/internal/repository/memory"
	"github.com/and161185/goph-share/internal/repository/postgres"
	grpcserver "github.com/and161185/goph-share/internal/server/grpc"
	"github.com/and161185/goph-share/internal/server/httpapi"
	"github.com/and161185/goph-share/internal/service"
	"github.com/and161185/goph-share/internal/sharing"
)

// stores is one storage backend with its transaction manager.
type stores struct {
	users         repository.UserRepository
	logins        repository.LoginHistoryRepository
	accounts      repository.AccountRepository
	workspaces    repository.WorkspaceRepository
	resources     repository.ResourceRepository
	members       repository.MemberRepository
	invitations   repository.InvitationRepository
	activityLogs  repository.ActivityLogRepository
	notifications repository.NotificationRepository
	twofa         repository.TwoFARepository
	highLevel     repository.HighLevelPasswordRepository
	contacts      repository.ContactInfoRepository
	tx            repository.TxManager
	limiter       limiter.Limiter
	ping          func(ctx context.Context) error
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	policy := limiter.Policy{Window: cfg.Limiter.Window, MaxFails: cfg.Limiter.MaxFails, BlockFor: cfg.Limiter.BlockFor}

	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on exit")
		m := memory.New()
		return &stores{
			users: m.Users(), logins: m.Logins(), accounts: m.Accounts(), workspaces: m.Workspaces(),
			resources: m.Resources(), members: m.Members(), invitations: m.Invitations(),
			activityLogs: m.ActivityLogs(), notifications: m.Notifications(),
			twofa: m.TwoFA(), highLevel: m.HighLevelPasswords(), contacts: m.ContactInfos(),
			tx: m, limiter: limiter.NewMemory(policy), close: func() {},
		}, nil
	}

	if err := migrate.Up(ctx, cfg.DatabaseDSN, log); err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return &stores{
		users:         postgres.NewUserRepo(db),
		logins:        postgres.NewLoginHistoryRepo(db),
		accounts:      postgres.NewAccountRepo(db),
		workspaces:    postgres.NewWorkspaceRepo(db),
		resources:     postgres.NewResourceRepo(db),
		members:       postgres.NewMemberRepo(db),
		invitations:   postgres.NewInvitationRepo(db),
		activityLogs:  postgres.NewActivityLogRepo(db),
		notifications: postgres.NewNotificationRepo(db),
		twofa:         postgres.NewTwoFARepo(db),
		highLevel:     postgres.NewHighLevelPasswordRepo(db),
		contacts:      postgres.NewContactInfoRepo(db),
		tx:            db,
		limiter:       limiter.NewPG(db.Pool, policy),
		ping:          db.Ping,
		close:         db.Close,
	}, nil
}

// app is the wired server stack.
type app struct {
	vault   *grpcserver.Server
	http    http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// build connects the backends and wires services into both servers.
// Redis, RabbitMQ and Kafka are optional and fall back to no-op or logging sinks.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	sealer, err := pkgcrypto.NewSealer(cfg.AgeIdentity)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("age identity: %w", err)
	}

	var gateway notify.Gateway = notify.NopGateway{}
	if cfg.Redis.Addr != "" {
		client, err := notify.ConnectRedis(ctx, notify.RedisConfig{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		gateway = notify.NewRedisGateway(client)
	} else {
		log.Info("REDIS_ADDR not set, socket push disabled")
	}

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if cfg.Mail.AMQPURL != "" {
		client, err := notify.DialAMQP(cfg.Mail.AMQPURL, cfg.Mail.Queue)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("amqp: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		mailer = notify.NewQueueMailer(client, cfg.Mail.Queue, cfg.EmailSender)
	} else {
		log.Info("AMQP_URL not set, mails are logged")
	}

	var publisher activity.Publisher = activity.NopPublisher{}
	if cfg.Kafka.Brokers != "" {
		kp := activity.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, func() { _ = kp.Close() })
		publisher = kp
	}

	notes := notify.NewService(st.notifications, gateway, log)
	act := activity.NewService(st.activityLogs, st.users, notes, publisher, log)
	accReg := sharing.NewAccountRegistry(st.members, st.resources, st.tx, log)
	wsReg := sharing.NewWorkspaceRegistry(st.members, st.resources, st.workspaces, st.tx, accReg, log)

	invites := func(reg invitation.Registry) *invitation.Service {
		return invitation.NewService(reg, invitation.Deps{
			Invitations:  st.invitations,
			Resources:    st.resources,
			Users:        st.users,
			Tx:           st.tx,
			Notes:        notes,
			Activity:     act,
			Mailer:       mailer,
			WebClientURL: cfg.WebClientURL,
			Log:          log,
		})
	}
	accInvites, wsInvites := invites(accReg), invites(wsReg)

	a.vault = grpcserver.New(grpcserver.Deps{
		Auth: service.NewAuthService(st.users, st.logins, []byte(cfg.JWTKey), cfg.AccessTTL, st.limiter, mailer, log).
			WithTwoFA(st.twofa, pkgcrypto.NewTOTP(cfg.TOTPIssuer), sealer),
		Accounts:   service.NewAccountService(st.accounts, accReg, act, sealer, st.tx, log),
		Workspaces: service.NewWorkspaceService(st.workspaces, st.accounts, st.users, wsReg, accReg, act, st.tx, log),
		HighLevel:  service.NewHighLevelPasswordService(st.highLevel, log),
		Contacts:   service.NewContactInfoService(st.contacts),
		Members: map[model.ResourceKind]grpcserver.Members{
			model.KindAccount:   accReg,
			model.KindWorkspace: wsReg,
		},
		Invitations: map[model.ResourceKind]grpcserver.Invitations{
			model.KindAccount:   accInvites,
			model.KindWorkspace: wsInvites,
		},
		Notifications: notes,
		Users:         st.users,
		Guard:         authz.NewGuard(st.resources, accReg, wsReg, log),
		Log:           log,
	})
	a.http = httpapi.NewRouter(httpapi.Deps{
		Invitations: map[model.ResourceKind]httpapi.Invitations{
			model.KindAccount:   accInvites,
			model.KindWorkspace: wsInvites,
		},
		Notifications:  notes,
		Ping:           st.ping,
		AllowedOrigins: cfg.CORSOrigins,
		Log:            log,
	})
	return a, nil
}
