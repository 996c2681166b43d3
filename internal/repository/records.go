package repository

import (
	"strconv"
	"time"

	"github.com/stemsi/exstem-ems/internal/model"
)

// The record types below are the on-disk shape of each partition. They are
// kept apart from the model types so the persisted field names never depend on
// the API representation.

type usersDocument struct {
	Teachers []userRecord `json:"teachers"`
	Students []userRecord `json:"students"`
}

type userRecord struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type questionsDocument struct {
	Questions []questionRecord `json:"questions"`
}

type questionRecord struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Category      string   `json:"category"`
}

type examsDocument struct {
	Exams []examRecord `json:"exams"`
}

type examRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []string `json:"questions"`
	TimeLimit   int      `json:"time_limit"`
}

type resultsDocument struct {
	Results []resultRecord `json:"results"`
}

type resultRecord struct {
	StudentUsername string         `json:"student_username"`
	ExamID          string         `json:"exam_id"`
	Score           float64        `json:"score"`
	Answers         map[string]int `json:"answers"`
	Date            string         `json:"date"`
}

func (d *usersDocument) normalize() {
	if d.Teachers == nil {
		d.Teachers = []userRecord{}
	}
	if d.Students == nil {
		d.Students = []userRecord{}
	}
}

func (d *usersDocument) list(role model.Role) *[]userRecord {
	if role == model.RoleTeacher {
		return &d.Teachers
	}
	return &d.Students
}

func (d *questionsDocument) normalize() {
	if d.Questions == nil {
		d.Questions = []questionRecord{}
	}
}

func (d *examsDocument) normalize() {
	if d.Exams == nil {
		d.Exams = []examRecord{}
	}
	for i := range d.Exams {
		if d.Exams[i].Questions == nil {
			d.Exams[i].Questions = []string{}
		}
	}
}

func (d *resultsDocument) normalize() {
	if d.Results == nil {
		d.Results = []resultRecord{}
	}
}

func userToRecord(u model.User) userRecord {
	return userRecord{
		Username: u.Username,
		Password: u.PasswordHash,
		FullName: u.FullName,
		Role:     string(u.Role),
	}
}

// userFromRecord takes the role from the list the record was found in.
func userFromRecord(r userRecord, role model.Role) model.User {
	return model.User{
		Username:     r.Username,
		PasswordHash: r.Password,
		FullName:     r.FullName,
		Role:         role,
	}
}

func questionToRecord(q model.Question) questionRecord {
	return questionRecord{
		ID:            q.ID,
		Text:          q.Text,
		Options:       append([]string{}, q.Options...),
		CorrectAnswer: q.CorrectAnswer,
		Category:      q.Category,
	}
}

func questionFromRecord(r questionRecord) model.Question {
	return model.Question{
		ID:            r.ID,
		Text:          r.Text,
		Options:       append([]string{}, r.Options...),
		CorrectAnswer: r.CorrectAnswer,
		Category:      r.Category,
	}
}

func examToRecord(e model.Exam) examRecord {
	return examRecord{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Questions:   append([]string{}, e.QuestionIDs...),
		TimeLimit:   e.TimeLimit,
	}
}

func examFromRecord(r examRecord) model.Exam {
	return model.Exam{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		QuestionIDs: append([]string{}, r.Questions...),
		TimeLimit:   r.TimeLimit,
	}
}

func resultToRecord(r model.Result) resultRecord {
	answers := make(map[string]int, len(r.Answers))
	for idx, opt := range r.Answers {
		answers[strconv.Itoa(idx)] = opt
	}
	return resultRecord{
		StudentUsername: r.StudentUsername,
		ExamID:          r.ExamID,
		Score:           r.Score,
		Answers:         answers,
		Date:            r.Date.In(time.Local).Format(model.DateLayout),
	}
}

// resultFromRecord drops answer keys that are not question positions and
// leaves Date zero when it cannot be parsed. Dates are persisted in local
// time without a zone.
func resultFromRecord(r resultRecord) model.Result {
	answers := make(map[int]int, len(r.Answers))
	for key, opt := range r.Answers {
		idx, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		answers[idx] = opt
	}
	date, _ := time.ParseInLocation(model.DateLayout, r.Date, time.Local)
	return model.Result{
		StudentUsername: r.StudentUsername,
		ExamID:          r.ExamID,
		Score:           r.Score,
		Answers:         answers,
		Date:            date,
	}
}
