package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// UserService handles student management for teachers.
type UserService struct {
	users *repository.UserRepository
	auth  *AuthService
	log   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users *repository.UserRepository, auth *AuthService, log zerolog.Logger) *UserService {
	return &UserService{
		users: users,
		auth:  auth,
		log:   log.With().Str("component", "user_service").Logger(),
	}
}

// ListStudents returns students whose username or full name contains search.
func (s *UserService) ListStudents(ctx context.Context, search string) []model.User {
	return filter(s.users.ListByRole(ctx, model.RoleStudent), func(u model.User) bool {
		return matches(search, u.Username, u.FullName)
	})
}

// ListTeachers returns every teacher.
func (s *UserService) ListTeachers(ctx context.Context) []model.User {
	return s.users.ListByRole(ctx, model.RoleTeacher)
}

// GetStudent finds a student by username.
func (s *UserService) GetStudent(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if u.Role != model.RoleStudent {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

// CreateStudent adds a student account.
func (s *UserService) CreateStudent(ctx context.Context, req model.CreateStudentRequest) (*model.User, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	hash, err := s.auth.Hasher().Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		Username:     req.Username,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         model.RoleStudent,
	}
	if err := s.users.Add(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("username", u.Username).Msg("Student created")
	return &u, nil
}

// UpdateStudent changes the full name and, when given, the password of a
// student. The username is immutable. A password change ends the student's
// live session.
func (s *UserService) UpdateStudent(ctx context.Context, username string, req model.UpdateStudentRequest) (*model.User, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.GetStudent(ctx, username)
	if err != nil {
		return nil, err
	}

	u.FullName = req.FullName
	if req.Password != "" {
		hash, err := s.auth.Hasher().Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, *u); err != nil {
		return nil, err
	}
	if req.Password != "" {
		s.endStudentSession(username)
	}
	return u, nil
}

// DeleteStudent removes a student and ends their session. Results they
// already produced are kept. Unknown usernames are a no-op.
func (s *UserService) DeleteStudent(ctx context.Context, username string) error {
	if err := s.users.Delete(ctx, username, model.RoleStudent); err != nil {
		return err
	}
	s.endStudentSession(username)
	s.log.Info().Str("username", username).Msg("Student deleted")
	return nil
}

func (s *UserService) endStudentSession(username string) {
	if p, ok := s.auth.Principal(username); ok && p.IsStudent() {
		s.auth.Logout(p)
	}
}
