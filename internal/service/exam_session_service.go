package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/session"
)

// EventType names an attempt event.
type EventType string

const (
	EventTick   EventType = "tick"
	EventGraded EventType = "graded"
	EventEnded  EventType = "ended"
)

// Event is pushed to subscribers of a student's attempt.
type Event struct {
	Type      EventType     `json:"type"`
	Remaining int           `json:"remaining_seconds"`
	Result    *model.Result `json:"result,omitempty"`
}

// AttemptView is the state of a running attempt as shown to its student.
type AttemptView struct {
	session.Snapshot
	MissingQuestions int `json:"missing_questions"`
	PreviousAttempts int `json:"previous_attempts"`
}

type attempt struct {
	engine    *session.Engine
	countdown *session.Countdown
	missing   int
	previous  int

	// autoErr is set by the countdown goroutine before Done is closed.
	autoErr error
}

// SessionOption configures an ExamSessionService.
type SessionOption func(*ExamSessionService)

// WithTickInterval sets how long one countdown second lasts. Tests shorten it.
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *ExamSessionService) { s.tick = d }
}

// WithClock sets the clock results are stamped with.
func WithClock(now func() time.Time) SessionOption {
	return func(s *ExamSessionService) { s.now = now }
}

// ExamSessionService runs exam attempts. A student has at most one running
// attempt; its countdown lives on its own goroutine until submission,
// logout or Shutdown.
type ExamSessionService struct {
	exams   *ExamService
	results *repository.ResultRepository
	log     zerolog.Logger
	tick    time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*attempt
	subs   map[string]map[chan Event]struct{}
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(exams *ExamService, results *repository.ResultRepository, log zerolog.Logger, opts ...SessionOption) *ExamSessionService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ExamSessionService{
		exams:   exams,
		results: results,
		log:     log.With().Str("component", "exam_session").Logger(),
		tick:    time.Second,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		active:  make(map[string]*attempt),
		subs:    make(map[string]map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins an attempt at examID for p. If p already has a running
// attempt, that attempt is returned unchanged, whatever exam it is for.
func (s *ExamSessionService) Start(ctx context.Context, p *Principal, examID string) (*AttemptView, error) {
	if !p.IsStudent() {
		return nil, ErrForbidden
	}

	s.mu.Lock()
	if a, ok := s.active[p.Username]; ok {
		s.mu.Unlock()
		return a.view(), nil
	}
	s.mu.Unlock()

	exam, err := s.exams.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, missing := s.exams.ResolveQuestions(ctx, *exam)

	previous := 0
	for _, r := range s.results.ListByStudent(ctx, p.Username) {
		if r.ExamID == examID {
			previous++
		}
	}

	a := &attempt{
		engine:   session.New(*exam, p.Username, questions, s.now),
		missing:  missing,
		previous: previous,
	}

	s.mu.Lock()
	if cur, ok := s.active[p.Username]; ok {
		// Lost a race with a concurrent Start.
		s.mu.Unlock()
		return cur.view(), nil
	}
	s.active[p.Username] = a
	a.countdown = session.StartCountdown(s.ctx, a.engine, s.tick,
		func(remaining int) {
			s.publish(p.Username, Event{Type: EventTick, Remaining: remaining})
		},
		func(r model.Result) {
			s.log.Info().Str("student", r.StudentUsername).Str("exam_id", r.ExamID).Msg("Time is up, attempt auto-submitted")
			if err := s.finish(context.Background(), a, r); err != nil {
				a.autoErr = err
				s.log.Error().Err(err).Str("student", r.StudentUsername).Msg("Failed to store auto-submitted result")
			}
		},
	)
	s.mu.Unlock()

	s.log.Info().
		Str("student", p.Username).
		Str("exam_id", exam.ID).
		Int("questions", len(questions)).
		Int("missing", missing).
		Msg("Attempt started")
	return a.view(), nil
}

// Get returns p's running attempt.
func (s *ExamSessionService) Get(p *Principal) (*AttemptView, error) {
	a, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	return a.view(), nil
}

// Answer records option for the question at position, or the current
// question when position is nil.
func (s *ExamSessionService) Answer(p *Principal, position *int, option int) (*AttemptView, error) {
	a, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	if position != nil && !a.engine.GoTo(*position) {
		if a.engine.State() == session.StateSubmitted {
			return nil, ErrAttemptSubmitted
		}
		return nil, ErrInvalidPosition
	}
	if !a.engine.SelectAnswer(option) {
		return nil, ErrAttemptSubmitted
	}
	return a.view(), nil
}

// GoTo moves the cursor of p's attempt.
func (s *ExamSessionService) GoTo(p *Principal, position int) (*AttemptView, error) {
	a, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	if !a.engine.GoTo(position) {
		if a.engine.State() == session.StateSubmitted {
			return nil, ErrAttemptSubmitted
		}
		return nil, ErrInvalidPosition
	}
	return a.view(), nil
}

// Submit ends p's attempt, stores its result and returns it.
func (s *ExamSessionService) Submit(ctx context.Context, p *Principal) (*model.Result, error) {
	a, err := s.lookup(p)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, a)
}

func (s *ExamSessionService) submit(ctx context.Context, a *attempt) (*model.Result, error) {
	r, first := a.engine.Submit()
	if !first {
		// The countdown got there first and is storing the result.
		<-a.countdown.Done()
		return &r, a.autoErr
	}
	if err := s.finish(ctx, a, r); err != nil {
		return &r, err
	}
	s.log.Info().Str("student", r.StudentUsername).Str("exam_id", r.ExamID).Float64("score", r.Score).Msg("Attempt submitted")
	return &r, nil
}

// Discard stops p's running attempt without storing a result.
func (s *ExamSessionService) Discard(p *Principal) {
	if p == nil {
		return
	}
	s.mu.Lock()
	a, ok := s.active[p.Username]
	if ok {
		delete(s.active, p.Username)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	a.countdown.Stop()
	s.publish(p.Username, Event{Type: EventEnded})
	s.log.Info().Str("student", p.Username).Msg("Attempt discarded")
}

// Subscribe streams the events of username's attempts until cancel is
// called. Slow subscribers miss tick events rather than block the countdown.
func (s *ExamSessionService) Subscribe(username string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	s.mu.Lock()
	if s.subs[username] == nil {
		s.subs[username] = make(map[chan Event]struct{})
	}
	s.subs[username][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[username], ch)
			if len(s.subs[username]) == 0 {
				delete(s.subs, username)
			}
			s.mu.Unlock()
		})
	}
}

// Shutdown stops every countdown. Running attempts are dropped.
func (s *ExamSessionService) Shutdown() {
	s.cancel()
	s.mu.Lock()
	running := make([]*attempt, 0, len(s.active))
	for _, a := range s.active {
		running = append(running, a)
	}
	s.active = make(map[string]*attempt)
	s.mu.Unlock()

	for _, a := range running {
		a.countdown.Stop()
	}
	s.log.Info().Int("dropped", len(running)).Msg("Exam sessions stopped")
}

func (s *ExamSessionService) lookup(p *Principal) (*attempt, error) {
	if !p.IsStudent() {
		return nil, ErrForbidden
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[p.Username]
	if !ok {
		return nil, ErrNoActiveAttempt
	}
	return a, nil
}

// finish stores r and retires the attempt that produced it.
func (s *ExamSessionService) finish(ctx context.Context, a *attempt, r model.Result) error {
	s.mu.Lock()
	if cur, ok := s.active[r.StudentUsername]; ok && cur == a {
		delete(s.active, r.StudentUsername)
	}
	s.mu.Unlock()

	err := s.results.Add(ctx, r)
	if err != nil {
		err = fmt.Errorf("store result: %w", err)
	}
	s.publish(r.StudentUsername, Event{Type: EventGraded, Result: &r})
	return err
}

func (s *ExamSessionService) publish(username string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[username] {
		select {
		case ch <- ev:
			continue
		default:
		}
		if ev.Type == EventTick {
			continue
		}
		// Make room for events that end an attempt.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func (a *attempt) view() *AttemptView {
	return &AttemptView{
		Snapshot:         a.engine.Snapshot(),
		MissingQuestions: a.missing,
		PreviousAttempts: a.previous,
	}
}
