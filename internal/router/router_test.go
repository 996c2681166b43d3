package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/config"
	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/handler"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/response"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/storage"
	"github.com/stemsi/exstem-ems/internal/validator"
)

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
	Metadata   response.Metadata    `json:"metadata"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()
	log := zerolog.Nop()

	store := repository.NewStore(storage.NewMemoryStore(), log)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	users := repository.NewUserRepository(store)
	questions := repository.NewQuestionRepository(store)
	exams := repository.NewExamRepository(store)
	results := repository.NewResultRepository(store)

	cfg := &config.Config{GinMode: gin.TestMode, JWTSecret: "router-secret", JWTExpiry: time.Hour}
	auth := service.NewAuthService(cfg, users, credential.SHA256Hasher{}, log)
	examSvc := service.NewExamService(exams, questions, log)
	resultSvc := service.NewResultService(results, users, exams, questions, log)
	sessions := service.NewExamSessionService(examSvc, results, log, service.WithTickInterval(time.Hour))
	auth.OnLogout(sessions.Discard)
	t.Cleanup(sessions.Shutdown)

	handlers := &Handlers{
		Auth:          handler.NewAuthHandler(auth, users, log),
		StudentMgmt:   handler.NewStudentManagementHandler(service.NewUserService(users, auth, log), log),
		Question:      handler.NewQuestionHandler(service.NewQuestionService(questions, nil, log), log),
		Exam:          handler.NewExamHandler(examSvc, log),
		Result:        handler.NewResultHandler(resultSvc, log),
		StudentPortal: handler.NewStudentPortalHandler(examSvc, sessions, resultSvc, log),
		WS:            handler.NewWSHandler(sessions, log, nil),
	}
	return &testServer{t: t, engine: SetupRouter(auth, handlers, cfg, log)}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func (s *testServer) expect(method, path, token string, body interface{}, status int) envelope {
	s.t.Helper()
	w, env := s.do(method, path, token, body)
	if w.Code != status {
		s.t.Fatalf("%s %s: status %d, want %d (%s)", method, path, w.Code, status, w.Body.String())
	}
	return env
}

func (s *testServer) register(username, role string) {
	s.t.Helper()
	s.expect(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":         username,
		"full_name":        strings.ToUpper(username),
		"password":         "secret1",
		"confirm_password": "secret1",
		"role":             role,
	}, http.StatusCreated)
}

func (s *testServer) login(username string) string {
	s.t.Helper()
	env := s.expect(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "secret1",
	}, http.StatusOK)
	var data struct {
		Token string `json:"token"`
	}
	decode(s.t, env.Data, &data)
	if data.Token == "" {
		s.t.Fatal("login returned no token")
	}
	return data.Token
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	env := s.expect(http.MethodGet, "/health", "", nil, http.StatusOK)
	if env.Metadata.RequestID == "" {
		t.Error("expected a request id in metadata")
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "student")

	w, env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "full_name": "Again", "password": "secret1",
		"confirm_password": "secret1", "role": "teacher",
	})
	if w.Code != http.StatusConflict || env.Error == nil || env.Error.Code != response.ErrDuplicateUsername {
		t.Fatalf("duplicate register: %d %+v", w.Code, env.Error)
	}

	_, env = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	if env.Error == nil || env.Error.Code != response.ErrInvalidCredentials {
		t.Fatalf("bad password: %+v", env.Error)
	}

	first := s.login("alice")
	env = s.expect(http.MethodGet, "/api/v1/auth/me", first, nil, http.StatusOK)
	var me struct {
		User struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	decode(t, env.Data, &me)
	if me.User.Username != "alice" || me.User.Role != "student" {
		t.Errorf("me = %+v", me.User)
	}

	// A second login invalidates the first token.
	second := s.login("alice")
	_, env = s.do(http.MethodGet, "/api/v1/auth/me", first, nil)
	if env.Error == nil || env.Error.Code != response.ErrSessionInvalidated {
		t.Fatalf("stale token: %+v", env.Error)
	}

	s.expect(http.MethodPost, "/api/v1/auth/logout", second, nil, http.StatusOK)
	s.expect(http.MethodGet, "/api/v1/auth/me", second, nil, http.StatusUnauthorized)
	s.expect(http.MethodGet, "/api/v1/auth/me", "", nil, http.StatusUnauthorized)
}

func TestRoleSeparation(t *testing.T) {
	s := newTestServer(t)
	s.register("tina", "teacher")
	s.register("sam", "student")
	teacher := s.login("tina")
	student := s.login("sam")

	_, env := s.do(http.MethodGet, "/api/v1/teacher/students", student, nil)
	if env.Error == nil || env.Error.Code != response.ErrTeacherAccessOnly {
		t.Fatalf("student on teacher API: %+v", env.Error)
	}
	_, env = s.do(http.MethodGet, "/api/v1/student/exams", teacher, nil)
	if env.Error == nil || env.Error.Code != response.ErrStudentAccessOnly {
		t.Fatalf("teacher on student API: %+v", env.Error)
	}
}

func TestTeacherCRUDAndAttempt(t *testing.T) {
	s := newTestServer(t)
	s.register("tina", "teacher")
	teacher := s.login("tina")

	s.expect(http.MethodPost, "/api/v1/teacher/students", teacher, map[string]string{
		"username": "sam", "full_name": "Sam", "password": "secret1",
	}, http.StatusCreated)
	env := s.expect(http.MethodGet, "/api/v1/teacher/students?search=SA", teacher, nil, http.StatusOK)
	var students struct {
		Students []struct {
			Username string `json:"username"`
		} `json:"students"`
	}
	decode(t, env.Data, &students)
	if len(students.Students) != 1 || students.Students[0].Username != "sam" {
		t.Fatalf("students = %+v", students.Students)
	}

	env = s.expect(http.MethodPost, "/api/v1/teacher/questions", teacher, map[string]interface{}{
		"text": "2+2?", "options": []string{"3", "4", "5", "6"}, "correct_answer": 1, "category": "Math",
	}, http.StatusCreated)
	var created struct {
		Question struct {
			ID string `json:"id"`
		} `json:"question"`
	}
	decode(t, env.Data, &created)
	q1 := created.Question.ID

	env = s.expect(http.MethodPost, "/api/v1/teacher/questions", teacher, map[string]interface{}{
		"text": "Capital of France?", "options": []string{"Paris", "Rome", "Oslo", "Bern"}, "correct_answer": 0, "category": "Geo",
	}, http.StatusCreated)
	decode(t, env.Data, &created)
	q2 := created.Question.ID

	_, env = s.do(http.MethodPost, "/api/v1/teacher/questions", teacher, map[string]interface{}{
		"text": "Broken", "options": []string{"a", "b"}, "correct_answer": 7, "category": "X",
	})
	if env.Error == nil || env.Error.Code != response.ErrValidation || len(env.Error.Fields) == 0 {
		t.Fatalf("invalid question: %+v", env.Error)
	}

	env = s.expect(http.MethodPost, "/api/v1/teacher/exams", teacher, map[string]interface{}{
		"title": "Mixed", "description": "two questions", "questions": []string{q1, q2}, "time_limit": 5,
	}, http.StatusCreated)
	var exam struct {
		Exam struct {
			ID string `json:"id"`
		} `json:"exam"`
	}
	decode(t, env.Data, &exam)
	examID := exam.Exam.ID

	student := s.login("sam")
	s.expect(http.MethodGet, "/api/v1/student/attempt", student, nil, http.StatusNotFound)

	// Before an attempt a student sees only the exam summary.
	w, env := s.do(http.MethodGet, "/api/v1/student/exams/"+examID, student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("student exam status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "2+2?") || strings.Contains(w.Body.String(), "Paris") {
		t.Fatalf("student exam summary leaks questions: %s", w.Body.String())
	}
	var summary struct {
		Exam struct {
			QuestionCount int `json:"question_count"`
			TimeLimit     int `json:"time_limit"`
		} `json:"exam"`
	}
	decode(t, env.Data, &summary)
	if summary.Exam.QuestionCount != 2 || summary.Exam.TimeLimit != 5 {
		t.Fatalf("summary = %+v", summary.Exam)
	}

	env = s.expect(http.MethodPost, fmt.Sprintf("/api/v1/student/exams/%s/attempt", examID), student, nil, http.StatusOK)
	var view struct {
		Attempt struct {
			QuestionCount    int `json:"question_count"`
			RemainingSeconds int `json:"remaining_seconds"`
			Current          *struct {
				ID            string `json:"id"`
				CorrectAnswer *int   `json:"correct_answer"`
			} `json:"current"`
		} `json:"attempt"`
	}
	decode(t, env.Data, &view)
	if view.Attempt.QuestionCount != 2 || view.Attempt.RemainingSeconds != 300 {
		t.Fatalf("attempt = %+v", view.Attempt)
	}
	if view.Attempt.Current == nil || view.Attempt.Current.CorrectAnswer != nil {
		t.Fatalf("current question must be shown without its answer: %+v", view.Attempt.Current)
	}

	s.expect(http.MethodPut, "/api/v1/student/attempt/answer", student, map[string]int{"option": 1}, http.StatusOK)
	s.expect(http.MethodPut, "/api/v1/student/attempt/cursor", student, map[string]int{"position": 1}, http.StatusOK)
	s.expect(http.MethodPut, "/api/v1/student/attempt/answer", student, map[string]int{"option": 3}, http.StatusOK)
	s.expect(http.MethodPut, "/api/v1/student/attempt/cursor", student, map[string]int{"position": 9}, http.StatusBadRequest)

	env = s.expect(http.MethodPost, "/api/v1/student/attempt/submit", student, nil, http.StatusOK)
	var submitted struct {
		Result struct {
			Score float64 `json:"score"`
		} `json:"result"`
	}
	decode(t, env.Data, &submitted)
	if submitted.Result.Score != 50 {
		t.Fatalf("score = %v, want 50", submitted.Result.Score)
	}
	s.expect(http.MethodGet, "/api/v1/student/attempt", student, nil, http.StatusNotFound)

	env = s.expect(http.MethodGet, "/api/v1/teacher/results?exam_id="+examID, teacher, nil, http.StatusOK)
	if env.Pagination == nil || env.Pagination.TotalItems != 1 {
		t.Fatalf("pagination = %+v", env.Pagination)
	}
	var listed struct {
		Results []struct {
			Seq int `json:"seq"`
		} `json:"results"`
	}
	decode(t, env.Data, &listed)
	seq := fmt.Sprint(listed.Results[0].Seq)

	var review struct {
		Result struct {
			Items []struct {
				Status string `json:"status"`
				Chosen *int   `json:"chosen_option"`
			} `json:"items"`
		} `json:"result"`
	}
	for _, path := range []string{"/api/v1/teacher/results/" + seq, "/api/v1/student/results/" + seq} {
		token := teacher
		if strings.HasPrefix(path, "/api/v1/student") {
			token = student
		}
		env = s.expect(http.MethodGet, path, token, nil, http.StatusOK)
		decode(t, env.Data, &review)
		items := review.Result.Items
		if len(items) != 2 || items[0].Status != "correct" || items[1].Status != "incorrect" ||
			items[1].Chosen == nil || *items[1].Chosen != 3 {
			t.Fatalf("%s review = %+v", path, items)
		}
	}
	s.expect(http.MethodGet, "/api/v1/student/results/99", student, nil, http.StatusNotFound)
	s.expect(http.MethodGet, "/api/v1/teacher/results/abc", teacher, nil, http.StatusBadRequest)

	w, _ = s.do(http.MethodGet, "/api/v1/teacher/results/export", teacher, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status %d", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "Student,Exam,Score,Date" || !strings.HasPrefix(lines[1], "Sam,Mixed,50.00%,") {
		t.Fatalf("export = %q", w.Body.String())
	}

	// Deleting a question strips it from the exam.
	s.expect(http.MethodDelete, "/api/v1/teacher/questions/"+q2, teacher, nil, http.StatusOK)
	env = s.expect(http.MethodGet, "/api/v1/teacher/exams/"+examID, teacher, nil, http.StatusOK)
	var detail struct {
		Exam struct {
			Questions []string `json:"questions"`
		} `json:"exam"`
		Missing int `json:"missing_questions"`
	}
	decode(t, env.Data, &detail)
	if len(detail.Exam.Questions) != 1 || detail.Missing != 0 {
		t.Fatalf("exam after question delete = %+v", detail)
	}

	// Deleting the exam removes its results.
	s.expect(http.MethodDelete, "/api/v1/teacher/exams/"+examID, teacher, nil, http.StatusOK)
	env = s.expect(http.MethodGet, "/api/v1/student/results", student, nil, http.StatusOK)
	var mine struct {
		Results []json.RawMessage `json:"results"`
	}
	decode(t, env.Data, &mine)
	if len(mine.Results) != 0 {
		t.Fatalf("results after exam delete = %d", len(mine.Results))
	}
}

func TestAttemptStream(t *testing.T) {
	s := newTestServer(t)
	s.register("tina", "teacher")
	s.register("sam", "student")
	teacher := s.login("tina")

	env := s.expect(http.MethodPost, "/api/v1/teacher/questions", teacher, map[string]interface{}{
		"text": "Largest planet?", "options": []string{"Mars", "Jupiter", "Venus", "Earth"}, "correct_answer": 1, "category": "Science",
	}, http.StatusCreated)
	var q struct {
		Question struct {
			ID string `json:"id"`
		} `json:"question"`
	}
	decode(t, env.Data, &q)
	env = s.expect(http.MethodPost, "/api/v1/teacher/exams", teacher, map[string]interface{}{
		"title": "Space", "questions": []string{q.Question.ID}, "time_limit": 1,
	}, http.StatusCreated)
	var exam struct {
		Exam struct {
			ID string `json:"id"`
		} `json:"exam"`
	}
	decode(t, env.Data, &exam)

	student := s.login("sam")
	s.expect(http.MethodPost, "/api/v1/student/exams/"+exam.Exam.ID+"/attempt", student, nil, http.StatusOK)

	srv := httptest.NewServer(s.engine)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/attempt/stream?token=" + student
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Event   string          `json:"event"`
		Score   float64         `json:"score"`
		Attempt json.RawMessage `json:"attempt"`
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Event != "state" {
		t.Fatalf("first message = %+v, %v", msg, err)
	}

	if err := conn.WriteJSON(map[string]interface{}{"action": "answer", "option": 1}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Event != "state" {
		t.Fatalf("after answer = %+v, %v", msg, err)
	}

	if err := conn.WriteJSON(map[string]string{"action": "submit"}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Event != "graded" || msg.Score != 100 {
		t.Fatalf("after submit = %+v, %v", msg, err)
	}
}
