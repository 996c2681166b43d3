package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// QuestionSource supplies candidate questions from outside the bank.
type QuestionSource interface {
	Fetch(ctx context.Context, amount int, category string) ([]model.Question, error)
}

// ImportSummary reports the outcome of an import.
type ImportSummary struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Imported  int `json:"imported"`
	Failed    int `json:"failed"`
}

// QuestionService handles question bank business logic.
type QuestionService struct {
	questions *repository.QuestionRepository
	source    QuestionSource
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService. source may be nil, in
// which case Import is unavailable.
func NewQuestionService(questions *repository.QuestionRepository, source QuestionSource, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		source:    source,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// List returns questions whose text or category contains search.
func (s *QuestionService) List(ctx context.Context, search string) []model.Question {
	return filter(s.questions.List(ctx), func(q model.Question) bool {
		return matches(search, q.Text, q.Category)
	})
}

// Get retrieves a question by ID.
func (s *QuestionService) Get(ctx context.Context, id string) (*model.Question, error) {
	return s.questions.GetByID(ctx, id)
}

// Create adds a question to the bank.
func (s *QuestionService) Create(ctx context.Context, req model.QuestionRequest) (*model.Question, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	q := model.NewQuestion(req.Text, req.Options, *req.CorrectAnswer, req.Category)
	if err := s.questions.Add(ctx, q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Update replaces every field of the question with the given ID.
func (s *QuestionService) Update(ctx context.Context, id string, req model.QuestionRequest) (*model.Question, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	q := model.Question{
		ID:            id,
		Text:          req.Text,
		Options:       append([]string(nil), req.Options...),
		CorrectAnswer: *req.CorrectAnswer,
		Category:      req.Category,
	}
	if err := s.questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Delete removes the question and strips it from every exam.
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	if err := s.questions.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("question_id", id).Msg("Question deleted")
	return nil
}

// Import fetches questions from the source and adds each one on its own.
// A question that fails to store is skipped and counted.
func (s *QuestionService) Import(ctx context.Context, req model.ImportQuestionsRequest) (ImportSummary, error) {
	summary := ImportSummary{Requested: req.Amount}
	if err := validator.Struct(req); err != nil {
		return summary, err
	}
	if s.source == nil {
		return summary, ErrNoQuestionSource
	}

	fetched, err := s.source.Fetch(ctx, req.Amount, req.Category)
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrSourceFailed, err)
	}
	summary.Fetched = len(fetched)

	for _, q := range fetched {
		if err := s.questions.Add(ctx, q); err != nil {
			s.log.Warn().Err(err).Str("question_id", q.ID).Msg("Skipping imported question")
			summary.Failed++
			continue
		}
		summary.Imported++
	}
	s.log.Info().
		Int("requested", summary.Requested).
		Int("imported", summary.Imported).
		Int("failed", summary.Failed).
		Msg("Questions imported")
	return summary, nil
}
