package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// ExamService handles exam business logic.
type ExamService struct {
	exams     *repository.ExamRepository
	questions *repository.QuestionRepository
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams *repository.ExamRepository, questions *repository.QuestionRepository, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// List returns exams whose title or description contains search.
func (s *ExamService) List(ctx context.Context, search string) []model.Exam {
	return filter(s.exams.List(ctx), func(e model.Exam) bool {
		return matches(search, e.Title, e.Description)
	})
}

// Get retrieves an exam by ID.
func (s *ExamService) Get(ctx context.Context, id string) (*model.Exam, error) {
	return s.exams.GetByID(ctx, id)
}

// Create stores a new exam. Every referenced question must exist at this
// point; later deletions are tolerated.
func (s *ExamService) Create(ctx context.Context, req model.ExamRequest) (*model.Exam, error) {
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}
	e := model.NewExam(req.Title, req.Description, req.QuestionIDs, req.TimeLimit)
	if err := s.exams.Add(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", e.ID).Int("questions", len(e.QuestionIDs)).Msg("Exam created")
	return &e, nil
}

// Update replaces the exam's fields and question list.
func (s *ExamService) Update(ctx context.Context, id string, req model.ExamRequest) (*model.Exam, error) {
	if err := s.check(ctx, req); err != nil {
		return nil, err
	}
	e := model.Exam{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		TimeLimit:   req.TimeLimit,
	}
	e.SetQuestions(req.QuestionIDs)
	if err := s.exams.Update(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes the exam together with all of its results.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if err := s.exams.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("exam_id", id).Msg("Exam deleted")
	return nil
}

// ResolveQuestions returns the exam's questions in order, skipping IDs whose
// question no longer exists.
func (s *ExamService) ResolveQuestions(ctx context.Context, e model.Exam) ([]model.Question, int) {
	qs, missing := s.questions.Resolve(ctx, e.QuestionIDs)
	if missing > 0 {
		s.log.Debug().Str("exam_id", e.ID).Int("missing", missing).Msg("Skipping dangling question references")
	}
	return qs, missing
}

// Summary returns what a student may see of an exam before starting it.
// Questions reach a student only through a running attempt.
func (s *ExamService) Summary(ctx context.Context, id string) (*model.ExamSummary, error) {
	e, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	qs, _ := s.ResolveQuestions(ctx, *e)
	return &model.ExamSummary{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		QuestionCount: len(qs),
		TimeLimit:     e.TimeLimit,
	}, nil
}

func (s *ExamService) check(ctx context.Context, req model.ExamRequest) error {
	if err := validator.Struct(req); err != nil {
		return err
	}
	known := make(map[string]bool)
	for _, q := range s.questions.List(ctx) {
		known[q.ID] = true
	}
	for _, id := range req.QuestionIDs {
		if !known[id] {
			return &validator.ValidationError{Fields: map[string]string{
				"questions": fmt.Sprintf("question %s does not exist", id),
			}}
		}
	}
	return nil
}
