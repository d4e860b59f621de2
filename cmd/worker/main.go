package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/thrivebase/thrivebase/internal/banking"
	"github.com/thrivebase/thrivebase/internal/config"
	"github.com/thrivebase/thrivebase/internal/logger"
	"github.com/thrivebase/thrivebase/internal/models"
	"github.com/thrivebase/thrivebase/internal/plaid"
	"github.com/thrivebase/thrivebase/internal/server"
	"github.com/thrivebase/thrivebase/internal/tasks"
	"github.com/thrivebase/thrivebase/internal/tokencrypt"
	"github.com/thrivebase/thrivebase/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting ThriveBase Asynq worker")

	// Initialize database (reuse server's database initialization)
	db, err := server.OpenDatabase(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	cipher, err := tokencrypt.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token encryption")
	}
	plaidClient, err := plaid.New(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Env, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Plaid client")
	}
	bank := banking.NewService(db, plaidClient, cipher, log)

	// Initialize Asynq client (used by the scheduler)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	// Initialize Asynq server
	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		},
		asynq.Config{
			Concurrency: 4, // Plaid rate limits balance calls per item
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			// Logging
			Logger: &asynqLogger{log: log},
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRefreshBalances, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleRefreshBalances(ctx, t, bank, log)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start refresh scheduler goroutine (checks every minute whether the schedule is due)
	if cfg.Worker.BalanceRefreshSchedule == "" {
		log.Info().Msg("BALANCE_REFRESH_SCHEDULE empty - scheduled balance refresh disabled")
	} else {
		scheduler, err := workers.NewRefreshScheduler(asynqClient, bank, cfg.Worker.BalanceRefreshSchedule, time.Now(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start balance refresh scheduler")
		}
		go scheduler.Run(ctx)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")
	cancel()

	// Shutdown Asynq server gracefully
	log.Info().Msg("Stopping Asynq worker - waiting for tasks to finish...")
	asynqServer.Shutdown()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
