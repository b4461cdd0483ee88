package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumamail/beacon/internal/api"
	"github.com/lumamail/beacon/internal/auth"
	"github.com/lumamail/beacon/internal/config"
	"github.com/lumamail/beacon/internal/digest"
	"github.com/lumamail/beacon/internal/eventlog"
	"github.com/lumamail/beacon/internal/mail"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("BEACON_CONFIG"), "path to the YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting beacon server",
		zap.String("listen", cfg.Listen),
		zap.String("log_path", cfg.LogPath),
		zap.Int("queue_size", cfg.QueueSize),
		zap.String("mail_mode", cfg.Mail.Mode),
		zap.Int("digest_interval_min", cfg.Digest.IntervalMinutes),
	)

	// Event log store: the single writer for the telemetry file
	store := eventlog.New(cfg.LogPath,
		eventlog.WithLogger(logger),
		eventlog.WithQueueSize(cfg.QueueSize),
	)

	// Mail transport: SMTP, the server log, or none at all
	var mailer mail.Mailer
	switch cfg.Mail.Mode {
	case "smtp":
		m, err := mail.NewSMTPMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			Insecure: cfg.Mail.Insecure,
		}, logger)
		if err != nil {
			logger.Fatal("failed to build smtp mailer", zap.Error(err))
		}
		mailer = m
		logger.Info("smtp mailer configured", zap.String("host", cfg.Mail.Host))
	case "log":
		mailer = mail.NewLogMailer(logger)
		logger.Info("log mailer configured, digests go to the server log")
	default:
		logger.Info("no mail mode set, digest dispatch disabled")
	}

	dispatcher := digest.NewDispatcher(store, mailer, digest.Config{
		From:          cfg.Mail.From,
		To:            cfg.Mail.To,
		SubjectPrefix: cfg.Mail.SubjectPrefix,
		Preview:       cfg.Digest.Preview,
	}, logger)

	// Scheduled dispatch (interval 0 disables; on-demand stays available)
	var scheduler *digest.Scheduler
	if cfg.Digest.IntervalMinutes > 0 {
		interval := time.Duration(cfg.Digest.IntervalMinutes) * time.Minute
		scheduler = digest.NewScheduler(dispatcher, store, interval, cfg.Digest.ClearAfterSend, logger)
		scheduler.Start()
		logger.Info("digest scheduler started",
			zap.Duration("interval", interval),
			zap.Bool("clear_after_send", cfg.Digest.ClearAfterSend),
		)
	}

	// Authenticator: Postgres registry, static in-config keys, or open
	var authenticator auth.Authenticator
	switch {
	case cfg.Auth.PostgresDSN != "":
		db, err := sql.Open("pgx", cfg.Auth.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresConfig{
			DB:       db,
			CacheTTL: time.Duration(cfg.Auth.CacheTTLS) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres key registry connected")
	case len(cfg.Auth.Keys) > 0:
		keys := make([]auth.StaticKey, 0, len(cfg.Auth.Keys))
		for _, k := range cfg.Auth.Keys {
			keys = append(keys, auth.StaticKey{Name: k.Name, Prefix: k.Prefix, Hash: k.Hash})
		}
		authenticator = auth.NewStaticAuthenticator(keys)
		logger.Info("static key auth enabled", zap.Int("keys", len(keys)))
	default:
		logger.Info("no auth configured, API runs open")
	}

	httpServer := &http.Server{
		Addr: cfg.Listen,
		Handler: api.NewRouter(&api.Dependencies{
			Store:         store,
			Dispatcher:    dispatcher,
			Authenticator: authenticator,
			Logger:        logger,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Stop taking requests first, then the timer, then drain the write
	// queue so every acknowledged event reaches the file.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	store.Close()

	logger.Info("beacon server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
