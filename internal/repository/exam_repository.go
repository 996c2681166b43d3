package repository

import (
	"context"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/storage"
)

// ExamRepository handles the exams partition.
type ExamRepository struct {
	store *Store
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(store *Store) *ExamRepository {
	return &ExamRepository{store: store}
}

// List returns every exam in storage order.
func (r *ExamRepository) List(ctx context.Context) []model.Exam {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc examsDocument
	r.store.load(ctx, storage.Exams, &doc)

	out := make([]model.Exam, 0, len(doc.Exams))
	for _, rec := range doc.Exams {
		out = append(out, examFromRecord(rec))
	}
	return out
}

// GetByID retrieves an exam by its ID.
func (r *ExamRepository) GetByID(ctx context.Context, id string) (*model.Exam, error) {
	for _, e := range r.List(ctx) {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

// Add appends an exam.
func (r *ExamRepository) Add(ctx context.Context, e model.Exam) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc examsDocument
	if err := r.store.read(ctx, storage.Exams, &doc); err != nil {
		return err
	}
	doc.Exams = append(doc.Exams, examToRecord(e))
	return r.store.write(ctx, storage.Exams, &doc)
}

// Update replaces the exam with the same ID.
func (r *ExamRepository) Update(ctx context.Context, e model.Exam) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc examsDocument
	if err := r.store.read(ctx, storage.Exams, &doc); err != nil {
		return err
	}
	for i := range doc.Exams {
		if doc.Exams[i].ID == e.ID {
			doc.Exams[i] = examToRecord(e)
			return r.store.write(ctx, storage.Exams, &doc)
		}
	}
	return ErrNotFound
}

// Delete removes the exam and then every result recorded against it.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var edoc examsDocument
	if err := r.store.read(ctx, storage.Exams, &edoc); err != nil {
		return err
	}
	kept := edoc.Exams[:0]
	for _, rec := range edoc.Exams {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(edoc.Exams) {
		return ErrNotFound
	}
	edoc.Exams = kept
	if err := r.store.write(ctx, storage.Exams, &edoc); err != nil {
		return err
	}

	var rdoc resultsDocument
	if err := r.store.read(ctx, storage.Results, &rdoc); err != nil {
		return err
	}
	results := rdoc.Results[:0]
	for _, rec := range rdoc.Results {
		if rec.ExamID != id {
			results = append(results, rec)
		}
	}
	if len(results) == len(rdoc.Results) {
		return nil
	}
	rdoc.Results = results
	return r.store.write(ctx, storage.Results, &rdoc)
}
