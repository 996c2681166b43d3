package model

import "time"

// DefaultTimeLimit is used when an exam is created without a limit.
const DefaultTimeLimit = 60

// Exam is an ordered set of question references with a time limit in minutes.
// QuestionIDs may reference questions that no longer exist.
type Exam struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	QuestionIDs []string `json:"questions"`
	TimeLimit   int      `json:"time_limit"`
}

// NewExam builds an exam with a freshly generated ID. Duplicate IDs are dropped.
func NewExam(title, description string, questionIDs []string, timeLimit int) Exam {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	e := Exam{
		ID:          NewExamID(time.Now()),
		Title:       title,
		Description: description,
		QuestionIDs: []string{},
		TimeLimit:   timeLimit,
	}
	e.SetQuestions(questionIDs)
	return e
}

// NewExamID returns "e_<timestamp>_<random>".
func NewExamID(now time.Time) string {
	return generateID("e", now)
}

// AddQuestion appends id unless it is already present.
func (e *Exam) AddQuestion(id string) bool {
	if e.HasQuestion(id) {
		return false
	}
	e.QuestionIDs = append(e.QuestionIDs, id)
	return true
}

// RemoveQuestion drops id from the list. Reports whether it was present.
func (e *Exam) RemoveQuestion(id string) bool {
	for i, qid := range e.QuestionIDs {
		if qid == id {
			e.QuestionIDs = append(e.QuestionIDs[:i], e.QuestionIDs[i+1:]...)
			return true
		}
	}
	return false
}

// HasQuestion reports whether id is referenced by the exam.
func (e *Exam) HasQuestion(id string) bool {
	for _, qid := range e.QuestionIDs {
		if qid == id {
			return true
		}
	}
	return false
}

// SetQuestions replaces the question list, keeping first occurrences only.
func (e *Exam) SetQuestions(ids []string) {
	e.QuestionIDs = make([]string, 0, len(ids))
	for _, id := range ids {
		e.AddQuestion(id)
	}
}

// ExamRequest is the payload for creating or editing an exam.
type ExamRequest struct {
	Title       string   `json:"title" binding:"required,max=255"`
	Description string   `json:"description" binding:"max=2000"`
	QuestionIDs []string `json:"questions" binding:"required,min=1,dive,required"`
	TimeLimit   int      `json:"time_limit" binding:"required,min=1,max=1440"`
}

// ExamSummary is what a student sees of an exam before starting it.
type ExamSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count"`
	TimeLimit     int    `json:"time_limit"`
}
