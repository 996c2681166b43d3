package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
)

// ExportHeader is the header row of a CSV export.
var ExportHeader = []string{"Student", "Exam", "Score", "Date"}

// ResultService handles result listings and export.
type ResultService struct {
	results   *repository.ResultRepository
	users     *repository.UserRepository
	exams     *repository.ExamRepository
	questions *repository.QuestionRepository
	log       zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(
	results *repository.ResultRepository,
	users *repository.UserRepository,
	exams *repository.ExamRepository,
	questions *repository.QuestionRepository,
	log zerolog.Logger,
) *ResultService {
	return &ResultService{
		results:   results,
		users:     users,
		exams:     exams,
		questions: questions,
		log:       log.With().Str("component", "result_service").Logger(),
	}
}

// ByStudent lists the results of one student, oldest first.
func (s *ResultService) ByStudent(ctx context.Context, username string) []model.ResultRow {
	return s.join(ctx, s.results.ListByStudent(ctx, username))
}

// ByExam lists the results of one exam, oldest first.
func (s *ResultService) ByExam(ctx context.Context, examID string) []model.ResultRow {
	return s.join(ctx, s.results.ListByExam(ctx, examID))
}

// Filter lists results matching f. Results whose student or exam no longer
// exists are left out.
func (s *ResultService) Filter(ctx context.Context, f model.ResultFilter) []model.ResultRow {
	var list []model.Result
	switch {
	case f.ExamID != "":
		list = s.results.ListByExam(ctx, f.ExamID)
	case f.Student != "":
		list = s.results.ListByStudent(ctx, f.Student)
	default:
		list = s.results.List(ctx)
	}
	rows := s.join(ctx, list)
	if f.Student == "" {
		return rows
	}
	return filter(rows, func(r model.ResultRow) bool { return r.StudentUsername == f.Student })
}

// Row returns the result at seq joined with its names. Results whose student
// or exam is gone are reported as not found.
func (s *ResultService) Row(ctx context.Context, seq int) (*model.ResultRow, error) {
	r, err := s.results.Get(ctx, seq)
	if err != nil {
		return nil, err
	}
	rows := s.join(ctx, []model.Result{r})
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

// Detail marks every question of the row's exam as correct, incorrect or not
// answered. Questions are resolved as they are now, so a question deleted
// after the attempt shifts the positions that follow it.
func (s *ResultService) Detail(ctx context.Context, row model.ResultRow) (*model.ResultDetail, error) {
	e, err := s.exams.GetByID(ctx, row.ExamID)
	if err != nil {
		return nil, err
	}
	qs, missing := s.questions.Resolve(ctx, e.QuestionIDs)
	return &model.ResultDetail{
		ResultRow: row,
		Items:     model.Review(row.Result, qs),
		Missing:   missing,
	}, nil
}

// ExportCSV writes the rows matching f as CSV and returns how many were
// written.
func (s *ResultService) ExportCSV(ctx context.Context, w io.Writer, f model.ResultFilter) (int, error) {
	rows := s.Filter(ctx, f)

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.StudentName,
			r.ExamTitle,
			FormatScore(r.Score),
			r.Date.Format(model.DateLayout),
		}
		if err := cw.Write(rec); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	s.log.Info().Int("rows", len(rows)).Msg("Results exported")
	return len(rows), nil
}

// FormatScore renders a score as a percentage with two decimals.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.2f%%", score)
}

func (s *ResultService) join(ctx context.Context, list []model.Result) []model.ResultRow {
	_, students := s.users.List(ctx)
	names := make(map[string]string, len(students))
	for _, u := range students {
		names[u.Username] = u.FullName
	}
	titles := make(map[string]string)
	for _, e := range s.exams.List(ctx) {
		titles[e.ID] = e.Title
	}

	rows := make([]model.ResultRow, 0, len(list))
	for _, r := range list {
		name, okStudent := names[r.StudentUsername]
		title, okExam := titles[r.ExamID]
		if !okStudent || !okExam {
			continue
		}
		rows = append(rows, model.ResultRow{Result: r, StudentName: name, ExamTitle: title})
	}
	return rows
}
