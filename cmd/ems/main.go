package main

import (
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/logger"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/storage"
	"github.com/stemsi/exstem-ems/internal/trivia"
	"github.com/stemsi/exstem-ems/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// Logs go to stderr so they stay out of the menus.
	log := logger.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx := context.Background()

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

	userRepo := repository.NewUserRepository(store)
	questionRepo := repository.NewQuestionRepository(store)
	examRepo := repository.NewExamRepository(store)
	resultRepo := repository.NewResultRepository(store)

	// ─── Initialize Services ──────────────────────────────────────────
	triviaClient := trivia.New(trivia.Config{
		BaseURL:    cfg.TriviaURL,
		Difficulty: cfg.TriviaDifficulty,
		Timeout:    cfg.TriviaTimeout,
	}, log)

	authService := service.NewAuthService(cfg, userRepo, credential.New(cfg.PasswordHasher, cfg.BcryptCost), log)
	examService := service.NewExamService(examRepo, questionRepo, log)
	sessionService := service.NewExamSessionService(examService, resultRepo, log)
	authService.OnLogout(sessionService.Discard)
	defer sessionService.Shutdown()

	// ─── CLI Input ─────────────────────────────────────────────────────
	var password func() (string, error)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		password = func() (string, error) {
			b, err := term.ReadPassword(fd)
			return string(b), err
		}
	}
	con := newConsole(os.Stdin, os.Stdout, password)
	defer con.close()

	a := &app{
		con:       con,
		auth:      authService,
		users:     service.NewUserService(userRepo, authService, log),
		questions: service.NewQuestionService(questionRepo, triviaClient, log),
		exams:     examService,
		results:   service.NewResultService(resultRepo, userRepo, examRepo, questionRepo, log),
		sessions:  sessionService,
		log:       log,
	}

	if err := a.run(ctx); err != nil && !errors.Is(err, io.EOF) {
		log.Error().Err(err).Msg("Exited with error")
		os.Exit(1)
	}
}
