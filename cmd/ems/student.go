package main

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/service"
)

// Remaining-time marks at which the exam screen prints a warning.
var warnAt = map[int]bool{300: true, 60: true, 10: true}

func (a *app) studentMenu(ctx context.Context, p *service.Principal) error {
	for {
		choice, err := a.con.choose("Student Dashboard", "Logout", "Available exams", "My results")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			return nil
		case 1:
			err = a.availableExams(ctx, p)
		case 2:
			err = a.myResults(ctx, p)
		}
		if err := a.handle(err); err != nil {
			return err
		}
	}
}

func (a *app) myResults(ctx context.Context, p *service.Principal) error {
	for {
		rows := a.results.ByStudent(ctx, p.Username)
		a.printResults(rows)
		choice, err := a.con.choose("My results", "Back", "View details")
		if err != nil || choice == 0 {
			return err
		}
		if err := a.handle(a.pickResult(ctx, rows)); err != nil {
			return err
		}
	}
}

func (a *app) availableExams(ctx context.Context, p *service.Principal) error {
	exams := a.exams.List(ctx, "")
	if len(exams) == 0 {
		a.con.println("No exams available.")
		return nil
	}
	a.con.printf("\n%-4s %-30s %-10s %s\n", "#", "Title", "Questions", "Minutes")
	for i, e := range exams {
		a.con.printf("%-4d %-30s %-10d %d\n", i+1, truncate(e.Title, 30), len(e.QuestionIDs), e.TimeLimit)
	}
	i, err := a.con.pick("Exam to take (empty to go back)", len(exams))
	if err != nil || i < 0 {
		return err
	}
	e := exams[i]
	a.con.printf("\n%s\n%s\nTime limit: %d minute(s)\n", e.Title, e.Description, e.TimeLimit)
	ok, err := a.con.confirm("Start now?")
	if err != nil || !ok {
		return err
	}
	return a.takeExam(ctx, p, e.ID)
}

// takeExam runs the exam screen until the attempt is submitted by the
// student or by the countdown.
func (a *app) takeExam(ctx context.Context, p *service.Principal, examID string) error {
	events, cancel := a.sessions.Subscribe(p.Username)
	defer cancel()

	view, err := a.sessions.Start(ctx, p, examID)
	if err != nil {
		return err
	}
	if view.MissingQuestions > 0 {
		a.con.printf("Note: %d question(s) of this exam no longer exist and were skipped.\n", view.MissingQuestions)
	}
	if view.PreviousAttempts > 0 {
		a.con.printf("You have taken this exam %d time(s) before.\n", view.PreviousAttempts)
	}
	a.renderQuestion(view)

	for {
		a.con.printf("[%s] answer 1-4, n(ext), p(rev), g <n>, s(ubmit): ", formatRemaining(view.RemainingSeconds))
		var in line
	wait:
		for {
			select {
			case ev := <-events:
				switch ev.Type {
				case service.EventTick:
					view.RemainingSeconds = ev.Remaining
					if warnAt[ev.Remaining] {
						a.con.printf("\n*** %s remaining ***\n", formatRemaining(ev.Remaining))
						a.con.printf("[%s] > ", formatRemaining(ev.Remaining))
					}
				case service.EventGraded:
					a.con.println("\n\nTime is up! Your exam was submitted automatically.")
					a.showResult(ev.Result)
					a.con.println("(press Enter to continue)")
					in = <-a.con.next()
					a.con.consumed()
					return in.err
				case service.EventEnded:
					a.con.println("\nThe attempt was ended.")
					return nil
				}
			case in = <-a.con.next():
				a.con.consumed()
				break wait
			}
		}
		if in.err != nil {
			return in.err
		}

		next, done, err := a.examCommand(ctx, p, in.text)
		if done || err != nil {
			return err
		}
		if next != nil {
			view = next
			a.renderQuestion(view)
		}
	}
}

// examCommand applies one line of exam input. It returns the new view to
// render, or done when the attempt was submitted.
func (a *app) examCommand(ctx context.Context, p *service.Principal, cmd string) (*service.AttemptView, bool, error) {
	fields := strings.Fields(strings.ToLower(cmd))
	if len(fields) == 0 {
		return nil, false, nil
	}

	var view *service.AttemptView
	var err error
	switch fields[0] {
	case "1", "2", "3", "4":
		opt, _ := strconv.Atoi(fields[0])
		view, err = a.sessions.Answer(p, nil, opt-1)
	case "n", "next":
		if cur, getErr := a.sessions.Get(p); getErr == nil {
			view, err = a.sessions.GoTo(p, cur.CurrentIndex+1)
		} else {
			err = getErr
		}
	case "p", "prev":
		if cur, getErr := a.sessions.Get(p); getErr == nil {
			view, err = a.sessions.GoTo(p, cur.CurrentIndex-1)
		} else {
			err = getErr
		}
	case "g", "goto":
		if len(fields) < 2 {
			a.con.println("Usage: g <question number>")
			return nil, false, nil
		}
		n, convErr := strconv.Atoi(fields[1])
		if convErr != nil {
			a.con.println("Usage: g <question number>")
			return nil, false, nil
		}
		view, err = a.sessions.GoTo(p, n-1)
	case "s", "submit":
		cur, getErr := a.sessions.Get(p)
		if getErr != nil {
			return nil, false, a.handle(getErr)
		}
		question := "Submit your exam?"
		if cur.Unanswered > 0 {
			question = "You have " + strconv.Itoa(cur.Unanswered) + " unanswered question(s). Submit anyway?"
		}
		ok, confirmErr := a.con.confirm(question)
		if confirmErr != nil || !ok {
			return nil, false, confirmErr
		}
		result, submitErr := a.sessions.Submit(ctx, p)
		if result != nil {
			a.showResult(result)
		}
		return nil, true, a.handle(submitErr)
	default:
		a.con.println("Unknown command.")
		return nil, false, nil
	}

	switch {
	case err == nil:
		return view, false, nil
	case errors.Is(err, service.ErrInvalidPosition):
		// Moving past either end is a no-op.
		return nil, false, nil
	case errors.Is(err, service.ErrAttemptSubmitted), errors.Is(err, service.ErrNoActiveAttempt):
		// The countdown won the race; its graded event follows.
		return nil, false, nil
	default:
		return nil, false, a.handle(err)
	}
}

func (a *app) renderQuestion(v *service.AttemptView) {
	if v.QuestionCount == 0 || v.Current == nil {
		a.con.println("\nThis exam has no questions. Submit to finish.")
		return
	}
	q := v.Current
	a.con.printf("\n%s  |  Question %d of %d  |  answered %d\n", v.Title, v.CurrentIndex+1, v.QuestionCount, v.Answered)
	a.con.printf("\n%s\n", q.Text)
	selected, answered := v.Answers[v.CurrentIndex]
	for i, opt := range q.Options {
		mark := "( )"
		if answered && selected == i {
			mark = "(x)"
		}
		a.con.printf("  %s %d) %s\n", mark, i+1, opt)
	}
}

func (a *app) showResult(r *model.Result) {
	if r == nil {
		return
	}
	a.con.printf("\nScore: %s  (%d answered)\n", service.FormatScore(r.Score), len(r.Answers))
}
