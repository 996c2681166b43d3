package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/service"
)

func (a *app) teacherMenu(ctx context.Context, p *service.Principal) error {
	for {
		choice, err := a.con.choose("Teacher Dashboard", "Logout",
			"Manage students", "Manage questions", "Manage exams", "View results")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			return nil
		case 1:
			err = a.manageStudents(ctx)
		case 2:
			err = a.manageQuestions(ctx)
		case 3:
			err = a.manageExams(ctx)
		case 4:
			err = a.viewResults(ctx)
		}
		if err := a.handle(err); err != nil {
			return err
		}
	}
}

// ─── Students ──────────────────────────────────────────────────────────

func (a *app) manageStudents(ctx context.Context) error {
	search := ""
	for {
		students := a.users.ListStudents(ctx, search)
		a.con.printf("\n%-4s %-20s %s\n", "#", "Username", "Full name")
		for i, u := range students {
			a.con.printf("%-4d %-20s %s\n", i+1, u.Username, u.FullName)
		}
		if search != "" {
			a.con.printf("(filtered by %q)\n", search)
		}

		choice, err := a.con.choose("Students", "Back", "Search", "Add", "Edit", "Delete")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			return nil
		case 1:
			search, err = a.con.ask("Search (empty clears)")
		case 2:
			err = a.addStudent(ctx)
		case 3, 4:
			var i int
			if i, err = a.con.pick("Student #", len(students)); err == nil && i >= 0 {
				if choice == 3 {
					err = a.editStudent(ctx, students[i])
				} else {
					err = a.deleteStudent(ctx, students[i])
				}
			}
		}
		if err := a.handle(err); err != nil {
			return err
		}
	}
}

func (a *app) addStudent(ctx context.Context) error {
	var req model.CreateStudentRequest
	var err error
	if req.Username, err = a.con.ask("Username"); err != nil {
		return err
	}
	if req.FullName, err = a.con.ask("Full name"); err != nil {
		return err
	}
	if req.Password, err = a.con.askPassword("Password"); err != nil {
		return err
	}
	u, err := a.users.CreateStudent(ctx, req)
	if err != nil {
		return err
	}
	a.con.printf("Student %q added.\n", u.Username)
	return nil
}

func (a *app) editStudent(ctx context.Context, u model.User) error {
	var req model.UpdateStudentRequest
	var err error
	if req.FullName, err = a.con.askDefault("Full name", u.FullName); err != nil {
		return err
	}
	if req.Password, err = a.con.askPassword("New password (empty keeps current)"); err != nil {
		return err
	}
	if _, err := a.users.UpdateStudent(ctx, u.Username, req); err != nil {
		return err
	}
	a.con.printf("Student %q updated.\n", u.Username)
	return nil
}

func (a *app) deleteStudent(ctx context.Context, u model.User) error {
	ok, err := a.con.confirm(fmt.Sprintf("Delete %s and all of their results?", u.Username))
	if err != nil || !ok {
		return err
	}
	if err := a.users.DeleteStudent(ctx, u.Username); err != nil {
		return err
	}
	a.con.printf("Student %q deleted.\n", u.Username)
	return nil
}

// ─── Questions ─────────────────────────────────────────────────────────

func (a *app) manageQuestions(ctx context.Context) error {
	search := ""
	for {
		questions := a.questions.List(ctx, search)
		a.con.printf("\n%-4s %-14s %s\n", "#", "Category", "Question")
		for i, q := range questions {
			a.con.printf("%-4d %-14s %s\n", i+1, truncate(q.Category, 14), truncate(q.Text, 60))
		}
		if search != "" {
			a.con.printf("(filtered by %q)\n", search)
		}

		choice, err := a.con.choose("Questions", "Back", "Search", "Add", "Edit", "Delete", "Import from Open Trivia DB")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			return nil
		case 1:
			search, err = a.con.ask("Search (empty clears)")
		case 2:
			err = a.saveQuestion(ctx, nil)
		case 3, 4:
			var i int
			if i, err = a.con.pick("Question #", len(questions)); err == nil && i >= 0 {
				if choice == 3 {
					err = a.saveQuestion(ctx, &questions[i])
				} else {
					err = a.deleteQuestion(ctx, questions[i])
				}
			}
		case 5:
			err = a.importQuestions(ctx)
		}
		if err := a.handle(err); err != nil {
			return err
		}
	}
}

// saveQuestion creates a question, or edits q when it is not nil.
func (a *app) saveQuestion(ctx context.Context, q *model.Question) error {
	var cur model.Question
	if q != nil {
		cur = *q
	} else {
		cur.Options = make([]string, model.OptionCount)
	}

	var req model.QuestionRequest
	var err error
	if req.Text, err = a.con.askDefault("Question", cur.Text); err != nil {
		return err
	}
	req.Options = make([]string, model.OptionCount)
	for i := range req.Options {
		def := ""
		if i < len(cur.Options) {
			def = cur.Options[i]
		}
		if req.Options[i], err = a.con.askDefault(fmt.Sprintf("Option %d", i+1), def); err != nil {
			return err
		}
	}
	correct, err := a.con.askInt("Correct option (1-4)", cur.CorrectAnswer+1)
	if err != nil {
		return err
	}
	correct--
	req.CorrectAnswer = &correct
	if req.Category, err = a.con.askDefault("Category", cur.Category); err != nil {
		return err
	}

	if q == nil {
		created, err := a.questions.Create(ctx, req)
		if err != nil {
			return err
		}
		a.con.printf("Question %s added.\n", created.ID)
		return nil
	}
	if _, err := a.questions.Update(ctx, q.ID, req); err != nil {
		return err
	}
	a.con.printf("Question %s updated.\n", q.ID)
	return nil
}

func (a *app) deleteQuestion(ctx context.Context, q model.Question) error {
	ok, err := a.con.confirm("Delete this question? It is also removed from every exam.")
	if err != nil || !ok {
		return err
	}
	if err := a.questions.Delete(ctx, q.ID); err != nil {
		return err
	}
	a.con.println("Question deleted.")
	return nil
}

func (a *app) importQuestions(ctx context.Context) error {
	amount, err := a.con.askInt("How many questions (1-50)", 10)
	if err != nil {
		return err
	}
	category, err := a.con.ask("Category ID (empty for any)")
	if err != nil {
		return err
	}
	a.con.println("Fetching questions...")
	sum, err := a.questions.Import(ctx, model.ImportQuestionsRequest{Amount: amount, Category: category})
	if err != nil {
		return err
	}
	a.con.printf("Imported %d of %d fetched questions.", sum.Imported, sum.Fetched)
	if sum.Failed > 0 {
		a.con.printf(" %d could not be saved.", sum.Failed)
	}
	a.con.println()
	return nil
}

// ─── Exams ─────────────────────────────────────────────────────────────

func (a *app) manageExams(ctx context.Context) error {
	search := ""
	for {
		exams := a.exams.List(ctx, search)
		a.con.printf("\n%-4s %-30s %-10s %s\n", "#", "Title", "Questions", "Minutes")
		for i, e := range exams {
			a.con.printf("%-4d %-30s %-10d %d\n", i+1, truncate(e.Title, 30), len(e.QuestionIDs), e.TimeLimit)
		}
		if search != "" {
			a.con.printf("(filtered by %q)\n", search)
		}

		choice, err := a.con.choose("Exams", "Back", "Search", "Create", "View", "Edit", "Delete")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			return nil
		case 1:
			search, err = a.con.ask("Search (empty clears)")
		case 2:
			err = a.saveExam(ctx, nil)
		case 3, 4, 5:
			var i int
			if i, err = a.con.pick("Exam #", len(exams)); err == nil && i >= 0 {
				switch choice {
				case 3:
					err = a.viewExam(ctx, exams[i])
				case 4:
					err = a.saveExam(ctx, &exams[i])
				default:
					err = a.deleteExam(ctx, exams[i])
				}
			}
		}
		if err := a.handle(err); err != nil {
			return err
		}
	}
}

func (a *app) viewExam(ctx context.Context, e model.Exam) error {
	questions, missing := a.exams.ResolveQuestions(ctx, e)
	a.con.printf("\n%s (%d min)\n%s\n", e.Title, e.TimeLimit, e.Description)
	for i, q := range questions {
		a.con.printf("\n%d. %s\n", i+1, q.Text)
		for j, opt := range q.Options {
			mark := " "
			if j == q.CorrectAnswer {
				mark = "*"
			}
			a.con.printf("   %s %d) %s\n", mark, j+1, opt)
		}
	}
	if missing > 0 {
		a.con.printf("\n%d referenced question(s) no longer exist.\n", missing)
	}
	return nil
}

// saveExam creates an exam, or edits e when it is not nil. Questions are
// picked by their row number in the bank listing.
func (a *app) saveExam(ctx context.Context, e *model.Exam) error {
	var cur model.Exam
	if e != nil {
		cur = *e
	} else {
		cur.TimeLimit = model.DefaultTimeLimit
	}

	var req model.ExamRequest
	var err error
	if req.Title, err = a.con.askDefault("Title", cur.Title); err != nil {
		return err
	}
	if req.Description, err = a.con.askDefault("Description", cur.Description); err != nil {
		return err
	}
	if req.TimeLimit, err = a.con.askInt("Time limit in minutes", cur.TimeLimit); err != nil {
		return err
	}

	bank := a.questions.List(ctx, "")
	a.con.println("\nQuestion bank:")
	for i, q := range bank {
		mark := " "
		if cur.HasQuestion(q.ID) {
			mark = "*"
		}
		a.con.printf(" %s %-4d %s\n", mark, i+1, truncate(q.Text, 60))
	}
	selection, err := a.con.ask("Question numbers, comma separated (empty keeps *)")
	if err != nil {
		return err
	}
	if strings.TrimSpace(selection) == "" {
		req.QuestionIDs = cur.QuestionIDs
	} else {
		for _, part := range strings.Split(selection, ",") {
			var n int
			if _, scanErr := fmt.Sscanf(strings.TrimSpace(part), "%d", &n); scanErr != nil || n < 1 || n > len(bank) {
				a.con.printf("Ignoring %q.\n", strings.TrimSpace(part))
				continue
			}
			req.QuestionIDs = append(req.QuestionIDs, bank[n-1].ID)
		}
	}

	if e == nil {
		created, err := a.exams.Create(ctx, req)
		if err != nil {
			return err
		}
		a.con.printf("Exam %q created with %d question(s).\n", created.Title, len(created.QuestionIDs))
		return nil
	}
	if _, err := a.exams.Update(ctx, e.ID, req); err != nil {
		return err
	}
	a.con.printf("Exam %q updated.\n", req.Title)
	return nil
}

func (a *app) deleteExam(ctx context.Context, e model.Exam) error {
	ok, err := a.con.confirm(fmt.Sprintf("Delete %q and all of its results?", e.Title))
	if err != nil || !ok {
		return err
	}
	if err := a.exams.Delete(ctx, e.ID); err != nil {
		return err
	}
	a.con.println("Exam deleted.")
	return nil
}

// ─── Results ───────────────────────────────────────────────────────────

func (a *app) viewResults(ctx context.Context) error {
	var f model.ResultFilter
	for {
		rows := a.results.Filter(ctx, f)
		a.printResults(rows)

		choice, err := a.con.choose("Results", "Back", "Filter by exam", "Filter by student", "Clear filters", "Export to CSV", "View details")
		if err != nil {
			return err
		}
		switch choice {
		case 0:
			return nil
		case 1:
			exams := a.exams.List(ctx, "")
			for i, e := range exams {
				a.con.printf("%-4d %s\n", i+1, e.Title)
			}
			var i int
			if i, err = a.con.pick("Exam # (empty for all)", len(exams)); err == nil {
				f.ExamID = ""
				if i >= 0 {
					f.ExamID = exams[i].ID
				}
			}
		case 2:
			f.Student, err = a.con.ask("Student username (empty for all)")
		case 3:
			f = model.ResultFilter{}
		case 4:
			err = a.exportResults(ctx, f)
		case 5:
			err = a.pickResult(ctx, rows)
		}
		if err := a.handle(err); err != nil {
			return err
		}
	}
}

func (a *app) printResults(rows []model.ResultRow) {
	a.con.printf("\n%-4s %-20s %-30s %-9s %s\n", "#", "Student", "Exam", "Score", "Date")
	for i, r := range rows {
		a.con.printf("%-4d %-20s %-30s %-9s %s\n",
			i+1, truncate(r.StudentName, 20), truncate(r.ExamTitle, 30), service.FormatScore(r.Score), r.Date.Format(model.DateLayout))
	}
	if len(rows) == 0 {
		a.con.println("No results.")
	}
}

// pickResult asks for a row of the listing and reviews it question by
// question.
func (a *app) pickResult(ctx context.Context, rows []model.ResultRow) error {
	if len(rows) == 0 {
		a.con.println("No results.")
		return nil
	}
	i, err := a.con.pick("Result # (empty to go back)", len(rows))
	if err != nil || i < 0 {
		return err
	}
	d, err := a.results.Detail(ctx, rows[i])
	if err != nil {
		return err
	}

	a.con.printf("\n%s  |  %s  |  %s  |  %s\n",
		d.ExamTitle, d.StudentName, service.FormatScore(d.Score), d.Date.Format(model.DateLayout))
	if d.Missing > 0 {
		a.con.printf("%d question(s) of this exam no longer exist.\n", d.Missing)
	}
	for _, item := range d.Items {
		q := item.Question
		a.con.printf("\n%d. %s  [%s]\n", item.Position+1, q.Text, reviewLabel(item.Status))
		chosen := "-"
		if item.Chosen != nil {
			chosen = optionText(q, *item.Chosen)
		}
		a.con.printf("   Answer:  %s\n   Correct: %s\n", chosen, optionText(q, q.CorrectAnswer))
	}
	return nil
}

func reviewLabel(s model.ReviewStatus) string {
	switch s {
	case model.ReviewCorrect:
		return "Correct"
	case model.ReviewIncorrect:
		return "Incorrect"
	default:
		return "Not answered"
	}
}

func optionText(q model.Question, i int) string {
	if i < 0 || i >= len(q.Options) {
		return fmt.Sprintf("option %d", i+1)
	}
	return fmt.Sprintf("%d) %s", i+1, q.Options[i])
}

func (a *app) exportResults(ctx context.Context, f model.ResultFilter) error {
	def := fmt.Sprintf("results_%s.csv", time.Now().Format("20060102_150405"))
	path, err := a.con.askDefault("File", def)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	n, err := a.results.ExportCSV(ctx, file, f)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Join(err, os.Remove(path))
	}
	a.con.printf("Exported %d result(s) to %s.\n", n, path)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
