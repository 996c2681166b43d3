package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/storage"
)

type repos struct {
	parts     *storage.MemoryStore
	store     *Store
	users     *UserRepository
	questions *QuestionRepository
	exams     *ExamRepository
	results   *ResultRepository
}

func newRepos(t *testing.T) repos {
	t.Helper()
	parts := storage.NewMemoryStore()
	store := NewStore(parts, zerolog.Nop())
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return repos{
		parts:     parts,
		store:     store,
		users:     NewUserRepository(store),
		questions: NewQuestionRepository(store),
		exams:     NewExamRepository(store),
		results:   NewResultRepository(store),
	}
}

func mustUser(t *testing.T, username, password string, role model.Role) model.User {
	t.Helper()
	hash, err := credential.SHA256Hasher{}.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return model.User{Username: username, PasswordHash: hash, FullName: "Full " + username, Role: role}
}

func TestAuthenticate(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	hasher := credential.SHA256Hasher{}

	users := []model.User{
		mustUser(t, "alice", "teach-pass", model.RoleTeacher),
		mustUser(t, "bob", "study-pass", model.RoleStudent),
	}
	for _, u := range users {
		if err := r.users.Add(ctx, u); err != nil {
			t.Fatalf("Add(%s): %v", u.Username, err)
		}
	}

	tests := []struct {
		username, password string
		want               *model.User
	}{
		{"alice", "teach-pass", &users[0]},
		{"bob", "study-pass", &users[1]},
		{"alice", "study-pass", nil},
		{"bob", "wrong", nil},
		{"Bob", "study-pass", nil},
		{"carol", "teach-pass", nil},
	}
	for _, tt := range tests {
		got, err := r.users.Authenticate(ctx, tt.username, tt.password, hasher)
		if tt.want == nil {
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Authenticate(%s, %s): got %v, %v; want ErrNotFound", tt.username, tt.password, got, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Authenticate(%s): %v", tt.username, err)
			continue
		}
		if *got != *tt.want {
			t.Errorf("Authenticate(%s) = %+v, want %+v", tt.username, *got, *tt.want)
		}
	}
}

func TestAddDuplicateUsernameAcrossRoles(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	if err := r.users.Add(ctx, mustUser(t, "sam", "pw1234", model.RoleTeacher)); err != nil {
		t.Fatalf("Add teacher: %v", err)
	}
	before, _ := r.parts.Read(ctx, storage.Users)

	err := r.users.Add(ctx, mustUser(t, "sam", "other1", model.RoleStudent))
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("Add duplicate: got %v, want ErrDuplicateUsername", err)
	}
	err = r.users.Add(ctx, mustUser(t, "sam", "other1", model.RoleTeacher))
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("Add duplicate same role: got %v, want ErrDuplicateUsername", err)
	}

	after, _ := r.parts.Read(ctx, storage.Users)
	if string(before) != string(after) {
		t.Errorf("users partition changed after rejected add:\nbefore %s\nafter  %s", before, after)
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	u := mustUser(t, "dana", "pw1234", model.RoleStudent)
	if err := r.users.Add(ctx, u); err != nil {
		t.Fatalf("Add: %v", err)
	}

	u.FullName = "Dana Renamed"
	if err := r.users.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := r.users.Get(ctx, "dana")
	if err != nil || got.FullName != "Dana Renamed" {
		t.Fatalf("Get after update = %+v, %v", got, err)
	}

	wrongRole := u
	wrongRole.Role = model.RoleTeacher
	if err := r.users.Update(ctx, wrongRole); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update with wrong role: got %v, want ErrNotFound", err)
	}

	// Wrong role leaves the student in place.
	if err := r.users.Delete(ctx, "dana", model.RoleTeacher); err != nil {
		t.Fatalf("Delete wrong role: %v", err)
	}
	if _, err := r.users.Get(ctx, "dana"); err != nil {
		t.Fatalf("student removed by teacher delete: %v", err)
	}

	if err := r.users.Delete(ctx, "dana", model.RoleStudent); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.users.Get(ctx, "dana"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	if err := r.users.Delete(ctx, "dana", model.RoleStudent); err != nil {
		t.Errorf("Delete of absent user should be a no-op, got %v", err)
	}
}

func TestDeleteQuestionCascadesToExams(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	q1 := model.Question{ID: "q_1", Text: "one", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 0, Category: "x"}
	q2 := model.Question{ID: "q_2", Text: "two", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 1, Category: "x"}
	q3 := model.Question{ID: "q_3", Text: "three", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 2, Category: "y"}
	for _, q := range []model.Question{q1, q2, q3} {
		if err := r.questions.Add(ctx, q); err != nil {
			t.Fatalf("Add question: %v", err)
		}
	}

	e1 := model.Exam{ID: "e_1", Title: "E1", QuestionIDs: []string{"q_1", "q_2", "q_3"}, TimeLimit: 10}
	e2 := model.Exam{ID: "e_2", Title: "E2", QuestionIDs: []string{"q_3", "q_1"}, TimeLimit: 5}
	e3 := model.Exam{ID: "e_3", Title: "E3", QuestionIDs: []string{"q_1"}, TimeLimit: 5}
	for _, e := range []model.Exam{e1, e2, e3} {
		if err := r.exams.Add(ctx, e); err != nil {
			t.Fatalf("Add exam: %v", err)
		}
	}

	if err := r.questions.Delete(ctx, "q_3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := map[string][]string{
		"e_1": {"q_1", "q_2"},
		"e_2": {"q_1"},
		"e_3": {"q_1"},
	}
	for _, e := range r.exams.List(ctx) {
		if !reflect.DeepEqual(e.QuestionIDs, want[e.ID]) {
			t.Errorf("exam %s questions = %v, want %v", e.ID, e.QuestionIDs, want[e.ID])
		}
	}

	remaining := r.questions.List(ctx)
	if len(remaining) != 2 || !reflect.DeepEqual(remaining[0], q1) || !reflect.DeepEqual(remaining[1], q2) {
		t.Errorf("remaining questions = %+v", remaining)
	}

	if err := r.questions.Delete(ctx, "q_3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteExamCascadesToResults(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	for _, e := range []model.Exam{{ID: "e_1", TimeLimit: 1}, {ID: "e_2", TimeLimit: 1}} {
		if err := r.exams.Add(ctx, e); err != nil {
			t.Fatalf("Add exam: %v", err)
		}
	}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	for _, res := range []model.Result{
		model.NewResult("bob", "e_1", 50, map[int]int{0: 1}, at),
		model.NewResult("bob", "e_2", 75, map[int]int{0: 2}, at),
		model.NewResult("eve", "e_1", 100, nil, at),
		model.NewResult("eve", "e_2", 0, nil, at),
	} {
		if err := r.results.Add(ctx, res); err != nil {
			t.Fatalf("Add result: %v", err)
		}
	}

	if err := r.exams.Delete(ctx, "e_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	left := r.results.List(ctx)
	if len(left) != 2 {
		t.Fatalf("results left = %d, want 2", len(left))
	}
	for _, res := range left {
		if res.ExamID != "e_2" {
			t.Errorf("result for %s survived the cascade", res.ExamID)
		}
	}
	if _, err := r.exams.GetByID(ctx, "e_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete: %v", err)
	}
	if _, err := r.exams.GetByID(ctx, "e_2"); err != nil {
		t.Errorf("unrelated exam removed: %v", err)
	}
}

func TestResultQueriesKeepInsertionOrder(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	at := time.Now()

	scores := []float64{10, 20, 30}
	for _, s := range scores {
		if err := r.results.Add(ctx, model.NewResult("bob", "e_1", s, nil, at)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := r.results.Add(ctx, model.NewResult("eve", "e_1", 99, nil, at)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	bob := r.results.ListByStudent(ctx, "bob")
	if len(bob) != 3 {
		t.Fatalf("ListByStudent = %d results, want 3", len(bob))
	}
	for i, res := range bob {
		if res.Score != scores[i] {
			t.Errorf("result %d score = %v, want %v", i, res.Score, scores[i])
		}
	}
	if got := len(r.results.ListByExam(ctx, "e_1")); got != 4 {
		t.Errorf("ListByExam = %d, want 4", got)
	}
	if got := r.results.ListByExam(ctx, "nope"); got == nil || len(got) != 0 {
		t.Errorf("ListByExam(nope) = %#v, want empty slice", got)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	if err := r.questions.Update(ctx, model.Question{ID: "q_x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("question Update: %v", err)
	}
	if err := r.exams.Update(ctx, model.Exam{ID: "e_x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("exam Update: %v", err)
	}
}

func TestCorruptPartitionSelfHeals(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	if err := r.parts.Write(ctx, storage.Questions, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if got := r.questions.List(ctx); len(got) != 0 {
		t.Fatalf("List on corrupt partition = %v, want empty", got)
	}

	q := model.Question{ID: "q_1", Text: "t", Options: []string{"a", "b", "c", "d"}}
	if err := r.questions.Add(ctx, q); err != nil {
		t.Fatalf("Add after corruption: %v", err)
	}
	if got := r.questions.List(ctx); len(got) != 1 || got[0].ID != "q_1" {
		t.Errorf("List = %+v", got)
	}
}

func TestTrailingDataIsCorrupt(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	body := `{"questions":[{"id":"q_1","text":"t","options":["a","b","c","d"],"correct_answer":0,"category":"c"}]} trailing`
	if err := r.parts.Write(ctx, storage.Questions, []byte(body)); err != nil {
		t.Fatal(err)
	}
	if got := r.questions.List(ctx); len(got) != 0 {
		t.Errorf("List on partition with trailing data = %v, want empty", got)
	}
}

func TestResultDateKeepsInstant(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	_, offset := time.Now().Zone()
	away := time.FixedZone("away", offset+3*3600)
	for _, at := range []time.Time{
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		time.Date(2024, 7, 8, 9, 10, 11, 0, away),
	} {
		if err := r.results.Add(ctx, model.NewResult("bob", "e_1", 50, nil, at)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got := r.results.List(ctx)
	if len(got) != 2 {
		t.Fatalf("List = %d results, want 2", len(got))
	}
	if want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC); !got[0].Date.Equal(want) {
		t.Errorf("UTC date read back as %v, want %v", got[0].Date, want)
	}
	if want := time.Date(2024, 7, 8, 9, 10, 11, 0, away); !got[1].Date.Equal(want) {
		t.Errorf("offset date read back as %v, want %v", got[1].Date, want)
	}
}

func TestWriteFailureIsReported(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	boom := errors.New("read-only fs")
	r.parts.FailWrites = boom

	err := r.users.Add(ctx, mustUser(t, "zed", "pw1234", model.RoleStudent))
	if !errors.Is(err, boom) {
		t.Fatalf("Add: got %v, want wrapped %v", err, boom)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	u := model.User{Username: "u", PasswordHash: "h", FullName: "F", Role: model.RoleStudent}
	if got := userFromRecord(userToRecord(u), model.RoleStudent); got != u {
		t.Errorf("user round trip = %+v", got)
	}

	q := model.Question{ID: "q", Text: "t", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 3, Category: "c"}
	if got := questionFromRecord(questionToRecord(q)); !reflect.DeepEqual(got, q) {
		t.Errorf("question round trip = %+v", got)
	}

	e := model.Exam{ID: "e", Title: "T", Description: "D", QuestionIDs: []string{"q1", "q2"}, TimeLimit: 30}
	if got := examFromRecord(examToRecord(e)); !reflect.DeepEqual(got, e) {
		t.Errorf("exam round trip = %+v", got)
	}

	res := model.NewResult("u", "e", 66.67, map[int]int{0: 1, 2: 3}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local))
	rec := resultToRecord(res)
	if rec.Date != "2024-01-02 03:04:05" {
		t.Errorf("persisted date = %q", rec.Date)
	}
	if rec.Answers["2"] != 3 {
		t.Errorf("persisted answers = %v", rec.Answers)
	}
	got := resultFromRecord(rec)
	if !got.Date.Equal(res.Date) || !reflect.DeepEqual(got.Answers, res.Answers) ||
		got.Score != res.Score || got.ExamID != res.ExamID || got.StudentUsername != res.StudentUsername {
		t.Errorf("result round trip = %+v, want %+v", got, res)
	}
}
