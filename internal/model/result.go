package model

import (
	"sort"
	"time"
)

// DateLayout is the persisted timestamp format of a result.
const DateLayout = "2006-01-02 15:04:05"

// Result is a scored attempt. Answers maps question position to selected option.
// Results are immutable once created; retakes produce additional results.
// Seq is the result's position in the results partition. It is assigned on
// read and is not persisted.
type Result struct {
	Seq             int         `json:"seq"`
	StudentUsername string      `json:"student_username"`
	ExamID          string      `json:"exam_id"`
	Score           float64     `json:"score"`
	Answers         map[int]int `json:"answers"`
	Date            time.Time   `json:"date"`
}

// NewResult stamps a result with the given time truncated to whole seconds.
func NewResult(student, examID string, score float64, answers map[int]int, at time.Time) Result {
	if answers == nil {
		answers = map[int]int{}
	}
	return Result{
		StudentUsername: student,
		ExamID:          examID,
		Score:           score,
		Answers:         answers,
		Date:            at.Truncate(time.Second),
	}
}

// AnsweredPositions returns the answered question positions in ascending order.
func (r Result) AnsweredPositions() []int {
	keys := make([]int, 0, len(r.Answers))
	for k := range r.Answers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// ResultRow is a result joined with the names of its student and exam.
type ResultRow struct {
	Result
	StudentName string `json:"student_name"`
	ExamTitle   string `json:"exam_title"`
}

// ResultFilter narrows a result listing. Empty fields match everything.
type ResultFilter struct {
	ExamID  string `form:"exam_id"`
	Student string `form:"student"`
}

// ReviewStatus is how one question of a result was answered.
type ReviewStatus string

const (
	ReviewCorrect     ReviewStatus = "correct"
	ReviewIncorrect   ReviewStatus = "incorrect"
	ReviewNotAnswered ReviewStatus = "not_answered"
)

// ReviewItem is one question of a reviewed result.
type ReviewItem struct {
	Position int          `json:"position"`
	Question Question     `json:"question"`
	Chosen   *int         `json:"chosen_option"`
	Status   ReviewStatus `json:"status"`
}

// ResultDetail is a result with every question of its exam marked.
type ResultDetail struct {
	ResultRow
	Items   []ReviewItem `json:"items"`
	Missing int          `json:"missing_questions"`
}

// Review marks each question against the answers of r. Positions index qs,
// the exam's questions as they resolve now.
func Review(r Result, qs []Question) []ReviewItem {
	items := make([]ReviewItem, len(qs))
	for i, q := range qs {
		item := ReviewItem{Position: i, Question: q, Status: ReviewNotAnswered}
		if opt, ok := r.Answers[i]; ok {
			chosen := opt
			item.Chosen = &chosen
			item.Status = ReviewIncorrect
			if opt == q.CorrectAnswer {
				item.Status = ReviewCorrect
			}
		}
		items[i] = item
	}
	return items
}
