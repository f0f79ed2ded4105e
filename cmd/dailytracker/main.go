package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"daily-tracker/internal/alarm"
	"daily-tracker/internal/bot"
	"daily-tracker/internal/config"
	"daily-tracker/internal/docstore"
	"daily-tracker/internal/identity"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/repository"
	"daily-tracker/internal/service"
	"daily-tracker/internal/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Error(ctx, "config", "err", err)
		return err
	}

	if _, ok := alarm.Lookup(cfg.Ringtone); !ok {
		log.Warn(ctx, "unknown ringtone, using default", "ringtone", cfg.Ringtone)
		cfg.Ringtone = config.DefaultRingtone
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Error(ctx, "db", "err", err)
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store, err := openStore(ctx, cfg, db, log)
	if err != nil {
		log.Error(ctx, "document store", "driver", cfg.Store.Driver, "err", err)
		return err
	}
	defer store.Close()

	userRepo := repository.NewUserRepository(db)
	provider := identity.NewLocalProvider(cfg.AuthSecret, repository.NewIdentityRepository(db))

	sessions := service.NewSessionManager(ctx, store, service.NewPaths(cfg.AppID), log)
	defer sessions.CloseAll()

	// A nil interface, not a nil *HTTPRecognizer, keeps voice unsupported.
	var recognizer voice.Recognizer
	if cfg.TranscribeURL != "" {
		recognizer = voice.NewHTTPRecognizer(cfg.TranscribeURL, cfg.TranscribeAPIKey)
	}

	telegramBot, err := bot.New(&cfg, userRepo, sessions, service.NewReportService(time.Local), provider, recognizer, log)
	if err != nil {
		log.Error(ctx, "bot", "err", err)
		return err
	}

	scheduler := service.NewSchedulerService(time.Local, log)
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, reportJob(ctx, telegramBot, false, log)); err != nil {
			log.Error(ctx, "schedule reports", "err", err)
			return err
		}
	}
	if cfg.DailyReportTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DailyReportTime, reportJob(ctx, telegramBot, true, log)); err != nil {
			log.Error(ctx, "schedule daily reminder", "err", err)
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info(ctx, "daily tracker bot started", "app_id", cfg.AppID, "store", cfg.Store.Driver)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "bot stopped with error", "err", err)
		return err
	}
	log.Info(ctx, "shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, db *gorm.DB, log logging.Logger) (docstore.Store, error) {
	if cfg.Store.Driver == config.DriverPostgres {
		store, err := docstore.NewPostgresStore(ctx, cfg.Store.DSN, log.With("component", "docstore"))
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	if cfg.Store.DSN != "" && cfg.Store.DSN != cfg.DatabaseURL {
		var err error
		if db, err = repository.NewDB(cfg.Store.DSN); err != nil {
			return nil, err
		}
	}
	return docstore.NewGormStore(repository.NewDocumentRepository(db), log.With("component", "docstore")), nil
}

func reportJob(ctx context.Context, b *bot.Bot, withAlarm bool, log logging.Logger) func() {
	return func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := b.SendReports(jobCtx, withAlarm); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(jobCtx, "send reports", "alarm", withAlarm, "err", err)
		}
	}
}
