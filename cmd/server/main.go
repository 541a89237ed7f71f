package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsacert/exam-engine/internal/config"
	"github.com/jsacert/exam-engine/internal/database"
	"github.com/jsacert/exam-engine/internal/handler"
	"github.com/jsacert/exam-engine/internal/logger"
	"github.com/jsacert/exam-engine/internal/notify"
	"github.com/jsacert/exam-engine/internal/router"
	"github.com/jsacert/exam-engine/internal/service"
	"github.com/jsacert/exam-engine/internal/store"
	pgstore "github.com/jsacert/exam-engine/internal/store/postgres"
	sqlitestore "github.com/jsacert/exam-engine/internal/store/sqlite"
	"github.com/jsacert/exam-engine/internal/validator"
	"github.com/jsacert/exam-engine/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Msg("Starting Exam Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Store ────────────────────────────────────────────────────
	var st store.Store
	switch cfg.StoreDriver {
	case "sqlite":
		db, err := database.NewSQLiteDB(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite database")
		}
		defer db.Close()

		st, err = sqlitestore.New(ctx, db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare SQLite schema")
		}
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		st = pgstore.New(pool)
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ───────────────────────────────────────────
	selectionService := service.NewSelectionService(st)
	scoringService := service.NewScoringService(st, st)
	sessionService := service.NewSessionService(st, st, selectionService, scoringService, cfg, log)
	reportService := service.NewReportService()
	statsService := service.NewStatsService(st, cfg.PassPercent)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Session:  handler.NewSessionHandler(sessionService, reportService, cfg.PassPercent, cfg.RetakeCooldownDays),
		Question: handler.NewQuestionHandler(st, sessionService),
		User:     handler.NewUserHandler(st),
		Stats:    handler.NewStatsHandler(statsService),
	}

	// ─── Start Expiry Monitor ──────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	notifier := notify.NewRedisNotifier(rdb, log)
	expiryWorker := worker.NewExpiryWorker(st, sessionService, notifier, cfg.SweepInterval, cfg.PassPercent, log)
	go expiryWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	// 2. Stop the expiry monitor; its in-flight sweep finishes first.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}
