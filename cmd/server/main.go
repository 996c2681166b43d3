package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/handler"
	"github.com/stemsi/exstem-ems/internal/logger"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/router"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/storage"
	"github.com/stemsi/exstem-ems/internal/trivia"
	"github.com/stemsi/exstem-ems/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("addr", cfg.Addr()).
		Str("mode", cfg.GinMode).
		Str("storage", cfg.StorageDriver).
		Str("hasher", cfg.PasswordHasher).
		Msg("Starting ExStem EMS")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Storage ──────────────────────────────────────────────────
	parts, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	store := repository.NewStore(parts, log)
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize partitions")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(store)
	questionRepo := repository.NewQuestionRepository(store)
	examRepo := repository.NewExamRepository(store)
	resultRepo := repository.NewResultRepository(store)

	// ─── Initialize Services ──────────────────────────────────────────
	hasher := credential.New(cfg.PasswordHasher, cfg.BcryptCost)
	triviaClient := trivia.New(trivia.Config{
		BaseURL:    cfg.TriviaURL,
		Difficulty: cfg.TriviaDifficulty,
		Timeout:    cfg.TriviaTimeout,
	}, log)

	authService := service.NewAuthService(cfg, userRepo, hasher, log)
	userService := service.NewUserService(userRepo, authService, log)
	questionService := service.NewQuestionService(questionRepo, triviaClient, log)
	examService := service.NewExamService(examRepo, questionRepo, log)
	resultService := service.NewResultService(resultRepo, userRepo, examRepo, questionRepo, log)
	sessionService := service.NewExamSessionService(examService, resultRepo, log)

	// A logout or a newer login drops the student's running attempt.
	authService.OnLogout(sessionService.Discard)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, userRepo, log),
		StudentMgmt:   handler.NewStudentManagementHandler(userService, log),
		Question:      handler.NewQuestionHandler(questionService, log),
		Exam:          handler.NewExamHandler(examService, log),
		Result:        handler.NewResultHandler(resultService, log),
		StudentPortal: handler.NewStudentPortalHandler(examService, sessionService, resultService, log),
		WS:            handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Stop running countdowns. Unsubmitted attempts are dropped.
	sessionService.Shutdown()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
