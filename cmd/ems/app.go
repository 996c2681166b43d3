package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/validator"
)

type app struct {
	con       *console
	auth      *service.AuthService
	users     *service.UserService
	questions *service.QuestionService
	exams     *service.ExamService
	results   *service.ResultService
	sessions  *service.ExamSessionService
	log       zerolog.Logger
}

// run shows the welcome menu until the user quits or input ends.
func (a *app) run(ctx context.Context) error {
	a.con.println("ExStem Exam Management System")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := a.con.choose("Welcome", "Quit", "Login", "Register")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			a.con.println("Goodbye.")
			return nil
		case 1:
			err = a.login(ctx)
		case 2:
			err = a.register(ctx)
		}
		if err != nil && !errors.Is(err, errBack) {
			if isInputEnd(err) {
				return err
			}
			a.report(err)
		}
	}
}

func (a *app) login(ctx context.Context) error {
	username, err := a.con.ask("Username")
	if err != nil {
		return err
	}
	password, err := a.con.askPassword("Password")
	if err != nil {
		return err
	}
	p, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	defer a.auth.Logout(p)

	a.con.printf("\nWelcome, %s (%s).\n", p.FullName, p.Role)
	if p.IsTeacher() {
		return a.teacherMenu(ctx, p)
	}
	return a.studentMenu(ctx, p)
}

func (a *app) register(ctx context.Context) error {
	var req model.RegisterRequest
	var err error
	if req.Username, err = a.con.ask("Username"); err != nil {
		return err
	}
	if req.FullName, err = a.con.ask("Full name"); err != nil {
		return err
	}
	if req.Password, err = a.con.askPassword("Password"); err != nil {
		return err
	}
	if req.ConfirmPassword, err = a.con.askPassword("Confirm password"); err != nil {
		return err
	}
	role, err := a.con.choose("Account type", "Cancel", "Teacher", "Student")
	if err != nil {
		return err
	}
	switch role {
	case 0:
		return errBack
	case 1:
		req.Role = model.RoleTeacher
	default:
		req.Role = model.RoleStudent
	}

	u, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	a.con.printf("Account %q created. You can log in now.\n", u.Username)
	return nil
}

// report prints err in terms the user can act on.
func (a *app) report(err error) {
	var ve *validator.ValidationError
	switch {
	case errors.As(err, &ve):
		keys := make([]string, 0, len(ve.Fields))
		for k := range ve.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		a.con.println("Please fix the following:")
		for _, k := range keys {
			a.con.printf("  - %s\n", ve.Fields[k])
		}
	case errors.Is(err, repository.ErrNotFound):
		a.con.println("Not found.")
	case errors.Is(err, repository.ErrDuplicateUsername):
		a.con.println("That username is already taken.")
	case errors.Is(err, service.ErrInvalidCredentials):
		a.con.println("Invalid username or password.")
	case errors.Is(err, service.ErrNoActiveAttempt):
		a.con.println("You have no exam in progress.")
	case errors.Is(err, service.ErrSourceFailed), errors.Is(err, service.ErrNoQuestionSource):
		a.con.printf("Import failed: %v\n", err)
	default:
		a.log.Error().Err(err).Msg("Operation failed")
		a.con.printf("Error: %v\n", err)
	}
}

// handle reports err unless it ends the program, which is returned.
func (a *app) handle(err error) error {
	if err == nil || errors.Is(err, errBack) {
		return nil
	}
	if isInputEnd(err) {
		return err
	}
	a.report(err)
	return nil
}

// isInputEnd reports whether err means stdin is gone or the program was
// interrupted.
func isInputEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled)
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
