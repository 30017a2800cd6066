package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/talktivity/voicebridge/internal/api"
	"github.com/talktivity/voicebridge/internal/auth"
	"github.com/talktivity/voicebridge/internal/config"
	"github.com/talktivity/voicebridge/internal/database"
	"github.com/talktivity/voicebridge/internal/middleware"
	inats "github.com/talktivity/voicebridge/internal/nats"
	"github.com/talktivity/voicebridge/internal/notify"
	"github.com/talktivity/voicebridge/internal/progress"
	"github.com/talktivity/voicebridge/internal/quota"
	iredis "github.com/talktivity/voicebridge/internal/redis"
	"github.com/talktivity/voicebridge/internal/report"
	"github.com/talktivity/voicebridge/internal/server"
	"github.com/talktivity/voicebridge/internal/session"
	"github.com/talktivity/voicebridge/internal/transcript"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Quota
	quotaStore := quota.NewStore(pool)
	quotaSvc := quota.NewService(quotaStore, cfg.Limits)
	quotaHandler := quota.NewHandler(quotaSvc)

	// Transcript handoff + persistence
	handoff := transcript.NewStore()
	convRepo := transcript.NewPostgresRepository(pool)

	// Course progress
	progressSvc := progress.NewService(progress.NewPostgresStore(pool), cfg.Limits.SpeakingGoalSeconds)

	// Session lifecycle
	notifier := notify.NewNotifier(cfg.Notify)
	saver := session.NewSaver(convRepo, quotaStore, progressSvc, handoff, notifier)
	registry := session.NewRegistry()
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
	sessionConsumer := session.NewConsumer(consumerMgr, quotaSvc, registry, saver, notifier, cfg.Limits.QuotaCheckInterval)

	go func() {
		if err := sessionConsumer.Start(ctx); err != nil {
			slog.Error("session consumer stopped", "error", err)
		}
	}()

	// Reports
	reportSvc := report.NewService(handoff, convRepo, report.NewPostgresRepository(pool), cfg.Limits.TranscriptWaitTimeout)
	reportHandler := report.NewHandler(reportSvc)

	reportLimiter := middleware.NewRateLimiter(redisClient, cfg.Limits.ReportRateLimitPerMinute, 60)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		ReportRateLimiter:  reportLimiter.Middleware,
	}, api.HandlerSet{
		GetQuotaStatus: quotaHandler.GetStatus,
		GenerateReport: reportHandler.Generate,
		LatestReport:   reportHandler.Latest,
		AuthMiddleware: auth.Middleware(auth.NewTokenValidator(cfg.Auth.ServiceSecret)),
	})

	// Canceling ctx on shutdown stops the consumer and triggers the save
	// sequence of every live runner.
	srv := server.New(cfg.Server, router)
	err = srv.Start(cancel)

	// Those saves run detached from ctx; wait them out before the deferred
	// pool.Close tears the database out from under them.
	registry.Drain(session.ShutdownDrainTimeout)

	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
