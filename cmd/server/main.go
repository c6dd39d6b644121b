package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/notefold/notefold-backend/internal/config"
	"github.com/notefold/notefold-backend/internal/database"
	"github.com/notefold/notefold-backend/internal/grading"
	"github.com/notefold/notefold-backend/internal/handler"
	"github.com/notefold/notefold-backend/internal/logger"
	"github.com/notefold/notefold-backend/internal/repository"
	"github.com/notefold/notefold-backend/internal/router"
	"github.com/notefold/notefold-backend/internal/service"
	"github.com/notefold/notefold-backend/internal/validator"
	"github.com/notefold/notefold-backend/internal/worker"
	"github.com/rs/zerolog"
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
		Msg("Starting Notefold Backend")

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
	userRepo := repository.NewUserRepository(pool)
	classRepo := repository.NewClassRepository(pool)
	noteRepo := repository.NewNoteRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	subRepo := repository.NewSubmissionRepository(pool)

	// ─── Permutation Engine ────────────────────────────────────────────
	seed := cfg.ShuffleSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	} else {
		log.Warn().Int64("seed", seed).Msg("Using fixed shuffle seed")
	}
	engine := grading.NewEngine(rand.NewSource(seed))

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo)
	noteService := service.NewNoteService(cfg, noteRepo, rdb, log)
	submissionService := service.NewSubmissionService(subRepo, testRepo, classRepo, noteService, engine, rdb, log)
	gradingService := service.NewGradingService(testRepo, classRepo, subRepo, log)
	statsService := service.NewStatsService(testRepo, classRepo, subRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Note:       handler.NewNoteHandler(noteService),
		Submission: handler.NewSubmissionHandler(submissionService),
		Grading:    handler.NewGradingHandler(gradingService),
		Stats:      handler.NewStatsHandler(statsService),
		WS:         handler.NewWSHandler(rdb, gradingService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answersWorker := worker.NewAnswersWorker(pool, rdb, log)
	completionWorker := worker.NewCompletionWorker(pool, rdb, log)

	go answersWorker.Start(workerCtx)
	go completionWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
