package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// fixture is the YAML document accepted by the seed command. Exams refer to
// questions by their fixture key, not by stored ID.
type fixture struct {
	Teachers  []account         `yaml:"teachers"`
	Students  []account         `yaml:"students"`
	Questions []fixtureQuestion `yaml:"questions"`
	Exams     []fixtureExam     `yaml:"exams"`
}

type account struct {
	Username string `yaml:"username"`
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
}

type fixtureQuestion struct {
	Key           string   `yaml:"key"`
	Text          string   `yaml:"text"`
	Options       []string `yaml:"options"`
	CorrectAnswer int      `yaml:"correct_answer"`
	Category      string   `yaml:"category"`
}

type fixtureExam struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	TimeLimit   int      `yaml:"time_limit"`
	Questions   []string `yaml:"questions"`
}

// summary counts what a seed run created and skipped.
type summary struct {
	Users     int
	Questions int
	Exams     int
	Skipped   int
}

func loadFixture(r io.Reader) (*fixture, error) {
	var f fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

type seeder struct {
	auth      *service.AuthService
	users     *service.UserService
	questions *service.QuestionService
	exams     *service.ExamService
	log       zerolog.Logger
}

// apply stores every entry of f. Entries that fail validation or clash with
// an existing username are skipped and logged; storage errors abort the run.
func (s *seeder) apply(ctx context.Context, f *fixture) (summary, error) {
	var sum summary

	for _, a := range f.Teachers {
		_, err := s.auth.Register(ctx, model.RegisterRequest{
			Username:        a.Username,
			FullName:        a.FullName,
			Password:        a.Password,
			ConfirmPassword: a.Password,
			Role:            model.RoleTeacher,
		})
		if err := s.tally(err, &sum.Users, &sum.Skipped, "teacher", a.Username); err != nil {
			return sum, err
		}
	}

	for _, a := range f.Students {
		_, err := s.users.CreateStudent(ctx, model.CreateStudentRequest{
			Username: a.Username,
			FullName: a.FullName,
			Password: a.Password,
		})
		if err := s.tally(err, &sum.Users, &sum.Skipped, "student", a.Username); err != nil {
			return sum, err
		}
	}

	ids := make(map[string]string, len(f.Questions))
	for _, q := range f.Questions {
		correct := q.CorrectAnswer
		created, err := s.questions.Create(ctx, model.QuestionRequest{
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: &correct,
			Category:      q.Category,
		})
		if err := s.tally(err, &sum.Questions, &sum.Skipped, "question", q.Key); err != nil {
			return sum, err
		}
		if created != nil && q.Key != "" {
			ids[q.Key] = created.ID
		}
	}

	for _, e := range f.Exams {
		refs := make([]string, 0, len(e.Questions))
		for _, key := range e.Questions {
			if id, ok := ids[key]; ok {
				refs = append(refs, id)
			} else {
				s.log.Warn().Str("exam", e.Title).Str("question", key).Msg("Unknown question key")
			}
		}
		_, err := s.exams.Create(ctx, model.ExamRequest{
			Title:       e.Title,
			Description: e.Description,
			QuestionIDs: refs,
			TimeLimit:   e.TimeLimit,
		})
		if err := s.tally(err, &sum.Exams, &sum.Skipped, "exam", e.Title); err != nil {
			return sum, err
		}
	}

	return sum, nil
}

// tally counts err as created or skipped. Only errors that are not the
// entry's own fault are returned.
func (s *seeder) tally(err error, created, skipped *int, kind, name string) error {
	if err == nil {
		*created++
		return nil
	}
	if isEntryError(err) {
		*skipped++
		s.log.Warn().Err(err).Str("kind", kind).Str("name", name).Msg("Entry skipped")
		return nil
	}
	return fmt.Errorf("seed %s %q: %w", kind, name, err)
}

func isEntryError(err error) bool {
	var ve *validator.ValidationError
	return errors.As(err, &ve) || errors.Is(err, repository.ErrDuplicateUsername)
}
