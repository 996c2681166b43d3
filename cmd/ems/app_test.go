package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/storage"
)

type harness struct {
	app       *app
	out       *bytes.Buffer
	users     *repository.UserRepository
	questions *repository.QuestionRepository
	exams     *repository.ExamRepository
	results   *repository.ResultRepository
}

func newHarness(t *testing.T, script string) *harness {
	t.Helper()
	log := zerolog.Nop()
	store := repository.NewStore(storage.NewMemoryStore(), log)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := &harness{
		out:       &bytes.Buffer{},
		users:     repository.NewUserRepository(store),
		questions: repository.NewQuestionRepository(store),
		exams:     repository.NewExamRepository(store),
		results:   repository.NewResultRepository(store),
	}
	cfg := &config.Config{JWTSecret: "ems", JWTExpiry: time.Hour}
	auth := service.NewAuthService(cfg, h.users, credential.SHA256Hasher{}, log)
	exams := service.NewExamService(h.exams, h.questions, log)
	sessions := service.NewExamSessionService(exams, h.results, log, service.WithTickInterval(time.Hour))
	auth.OnLogout(sessions.Discard)
	t.Cleanup(sessions.Shutdown)

	con := newConsole(strings.NewReader(script), h.out, nil)
	t.Cleanup(con.close)

	h.app = &app{
		con:       con,
		auth:      auth,
		users:     service.NewUserService(h.users, auth, log),
		questions: service.NewQuestionService(h.questions, nil, log),
		exams:     exams,
		results:   service.NewResultService(h.results, h.users, h.exams, h.questions, log),
		sessions:  sessions,
		log:       log,
	}
	return h
}

func lines(in ...string) string { return strings.Join(in, "\n") + "\n" }

func TestTeacherBuildsAnExam(t *testing.T) {
	h := newHarness(t, lines(
		"2", "tina", "Tina Teacher", "secret1", "secret1", "1", // register
		"1", "tina", "secret1", // login
		"1", "2", "sam", "Sam Student", "secret1", "0", // add a student
		"2", "2", "2+2?", "3", "4", "5", "6", "2", "Math", "0", // add a question
		"3", "2", "Warmup", "Quick one", "5", "1", "0", // create an exam
		"0", // logout
		"0", // quit
	))
	ctx := context.Background()

	if err := h.app.run(ctx); err != nil {
		t.Fatalf("run: %v\n%s", err, h.out)
	}

	if u, err := h.users.Get(ctx, "sam"); err != nil || u.Role != model.RoleStudent {
		t.Fatalf("sam = %+v, %v", u, err)
	}
	qs := h.questions.List(ctx)
	if len(qs) != 1 || qs[0].CorrectAnswer != 1 || qs[0].Options[3] != "6" {
		t.Fatalf("questions = %+v", qs)
	}
	exams := h.exams.List(ctx)
	if len(exams) != 1 || exams[0].TimeLimit != 5 || len(exams[0].QuestionIDs) != 1 || exams[0].QuestionIDs[0] != qs[0].ID {
		t.Fatalf("exams = %+v", exams)
	}
	if !strings.Contains(h.out.String(), "Goodbye.") {
		t.Errorf("missing goodbye:\n%s", h.out)
	}
}

func TestStudentTakesAnExam(t *testing.T) {
	h := newHarness(t, lines(
		"1", "sam", "secret1", // login
		"1", "1", "y", // pick the exam and start it
		"2", "n", "1", "s", "y", // answer both, submit
		"2", "1", "1", "0", // my results, review the first one
		"0", // logout
		"0", // quit
	))
	ctx := context.Background()

	if _, err := h.app.users.CreateStudent(ctx, model.CreateStudentRequest{Username: "sam", FullName: "Sam", Password: "secret1"}); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	add := func(text string, correct int) string {
		q := model.NewQuestion(text, []string{"a", "b", "c", "d"}, correct, "General")
		if err := h.questions.Add(ctx, q); err != nil {
			t.Fatalf("Add: %v", err)
		}
		return q.ID
	}
	q1, q2 := add("first", 1), add("second", 0)
	if err := h.exams.Add(ctx, model.NewExam("Warmup", "", []string{q1, q2}, 1)); err != nil {
		t.Fatalf("Add exam: %v", err)
	}

	if err := h.app.run(ctx); err != nil {
		t.Fatalf("run: %v\n%s", err, h.out)
	}

	out := h.out.String()
	if !strings.Contains(out, "Score: 100.00%") {
		t.Fatalf("missing score:\n%s", out)
	}
	for _, want := range []string{"1. first  [Correct]", "Answer:  2) b", "2. second  [Correct]", "Correct: 1) a"} {
		if !strings.Contains(out, want) {
			t.Errorf("review missing %q:\n%s", want, out)
		}
	}
	results := h.results.ListByStudent(ctx, "sam")
	if len(results) != 1 || results[0].Score != 100 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Answers[0] != 1 || results[0].Answers[1] != 0 {
		t.Fatalf("answers = %v", results[0].Answers)
	}
}

func TestLoginFailureIsReported(t *testing.T) {
	h := newHarness(t, lines("1", "ghost", "nope", "0"))
	if err := h.app.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(h.out.String(), "Invalid username or password.") {
		t.Fatalf("output:\n%s", h.out)
	}
}

func TestInputEndStopsTheMenu(t *testing.T) {
	h := newHarness(t, "1\nsam\n")
	if err := h.app.run(context.Background()); !isInputEnd(err) {
		t.Fatalf("run = %v, want end of input", err)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := map[int]string{0: "00:00", 59: "00:59", 61: "01:01", 3600: "60:00", -3: "00:00"}
	for in, want := range cases {
		if got := formatRemaining(in); got != want {
			t.Errorf("formatRemaining(%d) = %q, want %q", in, got, want)
		}
	}
}
