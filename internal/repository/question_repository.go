package repository

import (
	"context"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/storage"
)

// QuestionRepository handles the questions partition.
type QuestionRepository struct {
	store *Store
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(store *Store) *QuestionRepository {
	return &QuestionRepository{store: store}
}

// List returns every question in storage order.
func (r *QuestionRepository) List(ctx context.Context) []model.Question {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc questionsDocument
	r.store.load(ctx, storage.Questions, &doc)

	out := make([]model.Question, 0, len(doc.Questions))
	for _, rec := range doc.Questions {
		out = append(out, questionFromRecord(rec))
	}
	return out
}

// GetByID retrieves a question by its ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	for _, q := range r.List(ctx) {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, ErrNotFound
}

// Resolve returns the questions for ids in the given order. IDs with no
// matching question are skipped and counted in missing.
func (r *QuestionRepository) Resolve(ctx context.Context, ids []string) (questions []model.Question, missing int) {
	all := r.List(ctx)
	byID := make(map[string]model.Question, len(all))
	for _, q := range all {
		byID[q.ID] = q
	}

	questions = make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			missing++
			continue
		}
		questions = append(questions, q)
	}
	return questions, missing
}

// Add appends a question.
func (r *QuestionRepository) Add(ctx context.Context, q model.Question) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc questionsDocument
	if err := r.store.read(ctx, storage.Questions, &doc); err != nil {
		return err
	}
	doc.Questions = append(doc.Questions, questionToRecord(q))
	return r.store.write(ctx, storage.Questions, &doc)
}

// Update replaces the question with the same ID.
func (r *QuestionRepository) Update(ctx context.Context, q model.Question) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc questionsDocument
	if err := r.store.read(ctx, storage.Questions, &doc); err != nil {
		return err
	}
	for i := range doc.Questions {
		if doc.Questions[i].ID == q.ID {
			doc.Questions[i] = questionToRecord(q)
			return r.store.write(ctx, storage.Questions, &doc)
		}
	}
	return ErrNotFound
}

// Delete removes the question and then strips its ID from every exam.
// The two partitions are written one after the other; if the exam write fails
// the question is already gone and the error is returned.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var qdoc questionsDocument
	if err := r.store.read(ctx, storage.Questions, &qdoc); err != nil {
		return err
	}
	kept := qdoc.Questions[:0]
	for _, rec := range qdoc.Questions {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(qdoc.Questions) {
		return ErrNotFound
	}
	qdoc.Questions = kept
	if err := r.store.write(ctx, storage.Questions, &qdoc); err != nil {
		return err
	}

	var edoc examsDocument
	if err := r.store.read(ctx, storage.Exams, &edoc); err != nil {
		return err
	}
	changed := false
	for i := range edoc.Exams {
		e := examFromRecord(edoc.Exams[i])
		if e.RemoveQuestion(id) {
			edoc.Exams[i] = examToRecord(e)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.store.write(ctx, storage.Exams, &edoc)
}
