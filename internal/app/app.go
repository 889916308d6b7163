// Package app wires configuration, storage, services and transport into a
// runnable engine.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/pickemlabs/pickem-engine/external/notifier"
	"github.com/pickemlabs/pickem-engine/external/resultsfeed"
	"github.com/pickemlabs/pickem-engine/internal/broadcast"
	"github.com/pickemlabs/pickem-engine/internal/config"
	"github.com/pickemlabs/pickem-engine/internal/domain/award"
	"github.com/pickemlabs/pickem-engine/internal/domain/contest"
	"github.com/pickemlabs/pickem-engine/internal/domain/season"
	"github.com/pickemlabs/pickem-engine/internal/domain/standings"
	"github.com/pickemlabs/pickem-engine/internal/domain/syncjob"
	"github.com/pickemlabs/pickem-engine/internal/domain/team"
	cacherepo "github.com/pickemlabs/pickem-engine/internal/infrastructure/repository/cache"
	"github.com/pickemlabs/pickem-engine/internal/infrastructure/repository/postgres"
	"github.com/pickemlabs/pickem-engine/internal/interfaces/httpapi"
	"github.com/pickemlabs/pickem-engine/internal/platform/cache"
	idgen "github.com/pickemlabs/pickem-engine/internal/platform/id"
	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
	"github.com/pickemlabs/pickem-engine/internal/platform/resilience"
	"github.com/pickemlabs/pickem-engine/internal/scheduler"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

// App holds the running pieces that need an ordered shutdown.
type App struct {
	Server    *http.Server
	Scheduler *scheduler.Scheduler
	Hub       *broadcast.Hub

	db       *sqlx.DB
	notifier *notifier.WebhookNotifier
	logger   *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	seasonRepo := season.Repository(postgres.NewSeasonRepository(db))
	teamRepo := team.Repository(postgres.NewTeamRepository(db))
	contestRepo := contest.Repository(postgres.NewContestRepository(db))
	pickRepo := postgres.NewPickRepository(db)
	snapshotRepo := standings.SnapshotRepository(postgres.NewSnapshotRepository(db))
	awardRepo := award.Repository(postgres.NewAwardRepository(db))
	jobRepo := syncjob.Repository(postgres.NewSyncJobRepository(db))

	if cfg.CacheEnabled {
		store := cache.NewStore(cfg.CacheTTL)
		seasonRepo = cacherepo.NewSeasonRepository(seasonRepo, store)
		teamRepo = cacherepo.NewTeamRepository(teamRepo, store)
		contestRepo = cacherepo.NewContestRepository(contestRepo, store)
		snapshotRepo = cacherepo.NewSnapshotRepository(snapshotRepo, store)
	}

	idGen := idgen.NewRandomGenerator()

	standingsSvc := usecase.NewStandingsService(
		seasonRepo,
		contestRepo,
		pickRepo,
		snapshotRepo,
		cache.NewStore(cfg.CacheTTL),
	)
	snapshotSvc := usecase.NewSnapshotService(
		seasonRepo,
		contestRepo,
		pickRepo,
		snapshotRepo,
		awardRepo,
		standingsSvc,
		idGen,
	)
	eligibilitySvc := usecase.NewEligibilityService(seasonRepo, contestRepo, pickRepo, idGen)

	hub := broadcast.NewHub(logger)
	var broadcaster usecase.Broadcaster = hub
	var webhook *notifier.WebhookNotifier
	if cfg.NotifierEnabled {
		webhook, err = notifier.NewWebhookNotifier(notifier.WebhookConfig{
			TargetURL: cfg.NotifierTargetURL,
			Token:     cfg.NotifierToken,
			Timeout:   cfg.NotifierTimeout,
			QueueSize: cfg.NotifierQueueSize,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.NotifierCircuitEnabled,
				FailureThreshold: cfg.NotifierCircuitFailureCount,
				OpenTimeout:      cfg.NotifierCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.NotifierCircuitHalfOpenMaxReq,
			},
		}, logger)
		if err != nil {
			hub.Close()
			_ = db.Close()
			return nil, fmt.Errorf("build webhook notifier: %w", err)
		}
		broadcaster = fanout{hub, webhook}
	}

	feed := resultsfeed.NewClient(resultsfeed.ClientConfig{
		BaseURL:    cfg.FeedBaseURL,
		APIKey:     cfg.FeedAPIKey,
		Timeout:    cfg.FeedTimeout,
		MaxRetries: cfg.FeedMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FeedCircuitEnabled,
			FailureThreshold: cfg.FeedCircuitFailureCount,
			OpenTimeout:      cfg.FeedCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FeedCircuitHalfOpenMaxReq,
		},
	})

	syncSvc := usecase.NewSyncService(
		seasonRepo,
		contestRepo,
		pickRepo,
		jobRepo,
		feed,
		broadcaster,
		standingsSvc,
		snapshotSvc,
		idGen,
		usecase.SyncConfig{},
		logger,
	)
	resyncSvc := usecase.NewResyncService(seasonRepo, contestRepo, syncSvc, logger)

	sched, err := scheduler.NewScheduler(scheduler.Config{
		Timezone:       cfg.SyncTimezone,
		LiveInterval:   cfg.SyncLiveInterval,
		StatusInterval: cfg.SyncStatusInterval,
		DailyAtHour:    cfg.SyncDailyHour,
		DailyAtMinute:  cfg.SyncDailyMinute,
		WeeklyWeekday:  cfg.SyncWeeklyWeekday,
		WeeklyAtHour:   cfg.SyncWeeklyHour,
		JobTimeout:     cfg.SyncJobTimeout,
	}, syncSvc, logger)
	if err != nil {
		hub.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	orchestrator := usecase.NewJobOrchestratorService(sched, jobRepo, syncSvc, logger)

	handler := httpapi.NewHandler(
		eligibilitySvc,
		standingsSvc,
		snapshotSvc,
		orchestrator,
		resyncSvc,
		syncSvc,
		teamRepo,
		hub,
		logger,
	)
	router := httpapi.NewRouter(handler, logger, cfg.SwaggerEnabled, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		hub.Close()
		_ = db.Close()
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:    server,
		Scheduler: sched,
		Hub:       hub,
		db:        db,
		notifier:  webhook,
		logger:    logger,
	}, nil
}

// Close stops the background pieces in dependency order: scheduler first
// so no tick publishes into a closed hub.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop scheduler: %w", err)
		}
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database: %w", err)
		}
	}
	_ = ctx
	return firstErr
}

// fanout publishes every event to each target in order.
type fanout []usecase.Broadcaster

func (f fanout) Publish(topic string, payload any) {
	for _, target := range f {
		target.Publish(topic, payload)
	}
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Connect("postgres", dsn,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
	)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
