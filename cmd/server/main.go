package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/config"
	"github.com/stemsi/exstem-engine/internal/database"
	"github.com/stemsi/exstem-engine/internal/handler"
	"github.com/stemsi/exstem-engine/internal/logger"
	"github.com/stemsi/exstem-engine/internal/repository"
	"github.com/stemsi/exstem-engine/internal/router"
	"github.com/stemsi/exstem-engine/internal/service"
	"github.com/stemsi/exstem-engine/internal/validator"
	"github.com/stemsi/exstem-engine/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("auth_required", cfg.AuthRequired).
		Msg("Starting ExStem Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)
	examCache := repository.NewExamCache(rdb, cfg.ExamCacheTTL)
	liveState := repository.NewLiveStateStore(rdb, cfg.LiveStateTTL)
	deadlines := repository.NewDeadlineQueue(rdb)
	eventBus := repository.NewEventBus(rdb)
	answerQueue := repository.NewWorkQueue(rdb, config.WorkerKey.PersistAnswersQueue)
	eventQueue := repository.NewWorkQueue(rdb, config.WorkerKey.PersistEventsQueue)

	// ─── Initialize Services ──────────────────────────────────────────
	verifier := service.NewTokenVerifier(cfg.JWTSecret)
	examService := service.NewExamService(examRepo, examCache, log)
	monitorService := service.NewMonitorService(monitorRepo)
	sessionService := service.NewSessionService(
		examService,
		attemptRepo,
		liveState,
		deadlines,
		eventBus,
		service.SessionOptions{
			SubmitGrace:         cfg.SubmitGrace,
			AutoGradeSubjective: cfg.AutoGradeSubjective,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(sessionService, log),
		Grading: handler.NewGradingHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(examService, monitorService, eventBus, log),
		System:  handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Recover Deadlines and Prewarm Caches ─────────────────────────
	// In-progress attempts are rescheduled before the expiry worker starts so
	// that a restart never loses a timer.
	if n, err := sessionService.RecoverExpiries(ctx); err != nil {
		log.Warn().Err(err).Msg("Deadline recovery failed")
	} else {
		log.Info().Int("attempts", n).Msg("Deadlines recovered")
	}
	if ids, err := sessionService.ActiveExamIDs(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	} else {
		log.Info().Int("exams", examService.Prewarm(ctx, ids)).Msg("Exam cache prewarmed")
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	runWorker := func(start func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			start(workerCtx)
		}()
	}
	runWorker(worker.NewAutosaveWorker(answerQueue, attemptRepo, log).Start)
	runWorker(worker.NewEventWorker(eventQueue, eventRepo, log).Start)
	runWorker(worker.NewExpiryWorker(deadlines, sessionService, cfg.ExpiryPollInterval, cfg.ExpiryBatchSize, log).Start)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, verifier, handlers, cfg)

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
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Workers did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
