package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/logger"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/storage"
	"github.com/stemsi/exstem-ems/internal/validator"
)

func main() {
	var path string
	flag.StringVar(&path, "file", "seed.example.yaml", "Path to the YAML fixture")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	file, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open fixture")
	}
	defer file.Close()

	f, err := loadFixture(file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read fixture")
	}

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

	authService := service.NewAuthService(cfg, userRepo, credential.New(cfg.PasswordHasher, cfg.BcryptCost), log)
	s := &seeder{
		auth:      authService,
		users:     service.NewUserService(userRepo, authService, log),
		questions: service.NewQuestionService(questionRepo, nil, log),
		exams:     service.NewExamService(examRepo, questionRepo, log),
		log:       log,
	}

	fmt.Printf("=== Seeding from %s ===\n", path)
	sum, err := s.apply(ctx, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Seed aborted")
	}
	fmt.Printf("\nSeed completed! users=%d questions=%d exams=%d skipped=%d\n",
		sum.Users, sum.Questions, sum.Exams, sum.Skipped)
}
