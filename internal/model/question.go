package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// Question is a single multiple-choice question in the bank.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Category      string   `json:"category"`
}

// NewQuestion builds a question with a freshly generated ID.
// Missing options are padded with empty strings; correct is not range checked.
func NewQuestion(text string, options []string, correct int, category string) Question {
	return Question{
		ID:            NewQuestionID(time.Now()),
		Text:          text,
		Options:       padOptions(options),
		CorrectAnswer: correct,
		Category:      category,
	}
}

// NewQuestionID returns "q_<timestamp>_<random>".
func NewQuestionID(now time.Time) string {
	return generateID("q", now)
}

// ForStudent strips the answer key.
func (q Question) ForStudent() QuestionForStudent {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuestionForStudent{ID: q.ID, Text: q.Text, Options: opts, Category: q.Category}
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Category string   `json:"category"`
}

// QuestionRequest is the payload for creating or editing a question.
type QuestionRequest struct {
	Text          string   `json:"text" binding:"required,max=2000"`
	Options       []string `json:"options" binding:"required,len=4,dive,required,max=500"`
	CorrectAnswer *int     `json:"correct_answer" binding:"required,min=0,max=3"`
	Category      string   `json:"category" binding:"required,max=100"`
}

// ImportQuestionsRequest is the payload for pulling questions from the trivia source.
type ImportQuestionsRequest struct {
	Amount   int    `json:"amount" binding:"required,min=1,max=50"`
	Category string `json:"category" binding:"omitempty,numeric"`
}

func padOptions(options []string) []string {
	out := make([]string, OptionCount)
	copy(out, options)
	if len(options) > OptionCount {
		out = append(out, options[OptionCount:]...)
	}
	return out
}

func generateID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", prefix, now.Format("20060102150405"), uuid.NewString()[:8])
}
