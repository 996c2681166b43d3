// Package session implements one timed attempt at an exam: the question
// cursor, the answer sheet, the countdown and scoring. The engine performs no
// I/O and never reads the clock on its own; time only advances through Tick.
package session

import (
	"math"
	"sync"
	"time"

	"github.com/stemsi/exstem-ems/internal/model"
)

// State of an attempt.
type State string

const (
	StateInProgress State = "IN_PROGRESS"
	StateSubmitted  State = "SUBMITTED"
)

// Engine is the state machine of a single attempt. It is safe for use by the
// countdown goroutine and request handlers at the same time.
type Engine struct {
	mu sync.Mutex

	exam      model.Exam
	student   string
	questions []model.Question
	now       func() time.Time

	current   int
	answers   map[int]int
	remaining int
	state     State
	result    model.Result
	done      chan struct{}
}

// New starts an attempt. questions must already be resolved: IDs with no
// stored question are left out and positions compacted. now stamps the result
// and defaults to time.Now.
func New(exam model.Exam, student string, questions []model.Question, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	return &Engine{
		exam:      exam,
		student:   student,
		questions: qs,
		now:       now,
		answers:   map[int]int{},
		remaining: exam.TimeLimit * 60,
		state:     StateInProgress,
		done:      make(chan struct{}),
	}
}

// Exam returns the exam being taken.
func (e *Engine) Exam() model.Exam { return e.exam }

// Student returns the username of the test-taker.
func (e *Engine) Student() string { return e.student }

// QuestionCount is the number of resolved questions.
func (e *Engine) QuestionCount() int { return len(e.questions) }

// Done is closed once the attempt is submitted.
func (e *Engine) Done() <-chan struct{} { return e.done }

// State reports the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SelectAnswer records option for the current question, replacing any
// earlier choice. The option is not range checked. Ignored after submission.
func (e *Engine) SelectAnswer(option int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return false
	}
	e.answers[e.current] = option
	return true
}

// GoTo moves the cursor. Indices outside [0, QuestionCount) leave it where it
// is and return false.
func (e *Engine) GoTo(index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress || index < 0 || index >= len(e.questions) {
		return false
	}
	e.current = index
	return true
}

// Next moves to the following question if there is one.
func (e *Engine) Next() bool { return e.GoTo(e.CurrentIndex() + 1) }

// Prev moves to the preceding question if there is one.
func (e *Engine) Prev() bool { return e.GoTo(e.CurrentIndex() - 1) }

// CurrentIndex returns the cursor position.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Tick consumes one second. When the remaining time drops below zero the
// attempt is submitted with whatever answers exist; Tick then returns true.
// After submission Tick has no effect.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return false
	}
	e.remaining--
	if e.remaining < 0 {
		e.submitLocked()
		return true
	}
	return false
}

// Submit ends the attempt and returns its result. first is true only for the
// call that performed the submission; later calls return the same result.
func (e *Engine) Submit() (result model.Result, first bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSubmitted {
		return e.result, false
	}
	e.submitLocked()
	return e.result, true
}

// Result returns the result once submitted.
func (e *Engine) Result() (model.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.state == StateSubmitted
}

func (e *Engine) submitLocked() {
	answers := make(map[int]int, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	e.result = model.NewResult(e.student, e.exam.ID, Score(e.questions, answers), answers, e.now())
	e.state = StateSubmitted
	close(e.done)
}

// Score is the percentage of questions whose recorded answer matches the
// correct option, rounded to two decimals. An empty question set scores 0.
func Score(questions []model.Question, answers map[int]int) float64 {
	if len(questions) == 0 {
		return 0
	}
	correct := 0
	for i, q := range questions {
		if opt, ok := answers[i]; ok && opt == q.CorrectAnswer {
			correct++
		}
	}
	pct := float64(correct) / float64(len(questions)) * 100
	return math.Round(pct*100) / 100
}

// Snapshot is a read-only view of an attempt for display. The current
// question never includes the answer key.
type Snapshot struct {
	ExamID           string                    `json:"exam_id"`
	Title            string                    `json:"title"`
	Student          string                    `json:"student"`
	State            State                     `json:"state"`
	CurrentIndex     int                       `json:"current_index"`
	QuestionCount    int                       `json:"question_count"`
	Current          *model.QuestionForStudent `json:"current,omitempty"`
	Answers          map[int]int               `json:"answers"`
	Answered         int                       `json:"answered"`
	Unanswered       int                       `json:"unanswered"`
	RemainingSeconds int                       `json:"remaining_seconds"`
	Result           *model.Result             `json:"result,omitempty"`
}

// Snapshot captures the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	answers := make(map[int]int, len(e.answers))
	answered := 0
	for k, v := range e.answers {
		answers[k] = v
		if k >= 0 && k < len(e.questions) {
			answered++
		}
	}

	s := Snapshot{
		ExamID:           e.exam.ID,
		Title:            e.exam.Title,
		Student:          e.student,
		State:            e.state,
		CurrentIndex:     e.current,
		QuestionCount:    len(e.questions),
		Answers:          answers,
		Answered:         answered,
		Unanswered:       len(e.questions) - answered,
		RemainingSeconds: max(e.remaining, 0),
	}
	if e.current < len(e.questions) {
		q := e.questions[e.current].ForStudent()
		s.Current = &q
	}
	if e.state == StateSubmitted {
		r := e.result
		s.Result = &r
	}
	return s
}
