// Package app wires repositories and services for the API server and the
// background worker.
package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/unclebandit/koya-caller/internal/calendar"
	"github.com/unclebandit/koya-caller/internal/config"
	"github.com/unclebandit/koya-caller/internal/db"
	"github.com/unclebandit/koya-caller/internal/lock"
	"github.com/unclebandit/koya-caller/internal/queue"
	"github.com/unclebandit/koya-caller/internal/repository"
	"github.com/unclebandit/koya-caller/internal/service"
	"github.com/unclebandit/koya-caller/internal/voice"
)

// Services is the shared service graph.
type Services struct {
	Locker lock.Locker
	Events queue.Queue

	Compliance *service.ComplianceGate
	Window     *service.CallingWindow
	Initiator  *service.CallInitiator
	Queue      *service.QueueService
	Campaigns  *service.CampaignService
	Processor  *service.QueueProcessor
	Recorder   *service.OutcomeRecorder
	Reconciler *service.CalendarReconciler
	Reminders  *service.ReminderScheduler
}

// Infra holds the connections Services is built on.
type Infra struct {
	DB     *sql.DB
	Redis  *redis.Client
	Events queue.Queue

	closers []func() error
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		_ = i.closers[n]()
	}
}

// Connect opens Postgres, plus Redis and RabbitMQ when configured. Redis is
// optional; if it cannot be reached the locks fall back to Postgres.
func Connect(ctx context.Context, cfg config.Config, log *zap.Logger) (*Infra, error) {
	infra := &Infra{}

	conn, err := db.Connect(ctx, cfg.DSN(), log)
	if err != nil {
		return nil, err
	}
	infra.DB = conn
	infra.closers = append(infra.closers, conn.Close)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, using postgres advisory locks", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb.Close()
		} else {
			infra.Redis = rdb
			infra.closers = append(infra.closers, rdb.Close)
		}
	}

	if cfg.AMQPURL != "" {
		q, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			infra.Close()
			return nil, errors.Wrap(err, "connect rabbitmq")
		}
		infra.Events = q
		infra.closers = append(infra.closers, q.Close)
	} else {
		infra.Events = queue.NewInMemoryQueue(log)
	}
	return infra, nil
}

// New builds every service on top of infra. It performs no I/O.
func New(cfg config.Config, infra *Infra, log *zap.Logger) *Services {
	conn := infra.DB

	queueRepo := &repository.QueueEntryRepository{DB: conn}
	settingsRepo := &repository.SettingsRepository{DB: conn}
	callRepo := &repository.CallRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	appointmentRepo := &repository.AppointmentRepository{DB: conn}
	connRepo := &repository.CalendarConnectionRepository{DB: conn}

	s := &Services{Locker: lock.New(infra.Redis, conn), Events: infra.Events}

	s.Compliance = &service.ComplianceGate{
		DNCRepo:         &repository.DNCRepository{DB: conn},
		ConsentRepo:     &repository.ConsentRepository{DB: conn},
		SettingsRepo:    settingsRepo,
		ConsentFailOpen: cfg.ConsentFailOpen,
		Log:             log,
	}
	s.Window = &service.CallingWindow{
		SettingsRepo: settingsRepo,
		Defaults:     cfg.OutboundDefaults.Settings,
		Log:          log,
	}
	s.Initiator = &service.CallInitiator{
		Compliance: s.Compliance,
		Window:     s.Window,
		TenantRepo: &repository.TenantRepository{DB: conn},
		CallRepo:   callRepo,
		Voice: voice.New(cfg.VoiceProvider, voice.Options{
			BaseURL: cfg.VoiceAPIURL,
			APIKey:  cfg.VoiceAPIKey,
			Timeout: cfg.VoiceTimeout,
		}, log),
		Log: log,
	}
	s.Queue = &service.QueueService{
		QueueRepo:   queueRepo,
		MaxAttempts: cfg.OutboundDefaults.MaxAttempts,
		Log:         log,
	}
	s.Campaigns = &service.CampaignService{
		CampaignRepo: campaignRepo,
		ContactRepo:  &repository.ContactRepository{DB: conn},
		QueueRepo:    queueRepo,
		Queue:        s.Queue,
		Log:          log,
	}
	s.Queue.Campaigns = s.Campaigns
	s.Processor = &service.QueueProcessor{
		QueueRepo:    queueRepo,
		SettingsRepo: settingsRepo,
		Initiator:    s.Initiator,
		Window:       s.Window,
		Campaigns:    s.Campaigns,
		Locker:       s.Locker,
		BatchSize:    cfg.QueueBatchSize,
		LockTTL:      cfg.LockTTL,
		Log:          log,
	}
	s.Recorder = &service.OutcomeRecorder{
		QueueRepo: queueRepo,
		CallRepo:  callRepo,
		Campaigns: s.Campaigns,
		Log:       log,
	}

	saveToken := func(ctx context.Context, tenantID string, tok *oauth2.Token) error {
		return connRepo.UpdateTokens(ctx, tenantID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
	}
	s.Reconciler = &service.CalendarReconciler{
		ConnRepo:        connRepo,
		AppointmentRepo: appointmentRepo,
		Calendars:       calendar.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, saveToken, log),
		Log:             log,
	}
	s.Reminders = &service.ReminderScheduler{
		AppointmentRepo: appointmentRepo,
		SettingsRepo:    settingsRepo,
		QueueRepo:       queueRepo,
		Queue:           s.Queue,
		Log:             log,
	}
	return s
}

// StartOutcomeConsumer subscribes the outcome recorder to call_outcomes.
func (s *Services) StartOutcomeConsumer(log *zap.Logger) error {
	return queue.StartOutcomeSubscriber(s.Events, s.Recorder, log)
}

// Jobs lists the periodic jobs with intervals from cfg.
func (s *Services) Jobs(cfg config.Config) []service.Job {
	return []service.Job{
		service.ProcessQueueJob(s.Processor, cfg.ProcessInterval),
		service.RecoverStaleJob(s.Processor, cfg.RecoveryInterval, cfg.StaleAfter),
		service.ReconcileCalendarsJob(s.Reconciler, cfg.ReconcileInterval),
		service.SendRemindersJob(s.Reminders, cfg.ReminderInterval),
	}
}
