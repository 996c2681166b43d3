package repository

import (
	"context"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/storage"
)

// ResultRepository handles the append-only results partition.
type ResultRepository struct {
	store *Store
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(store *Store) *ResultRepository {
	return &ResultRepository{store: store}
}

// Add appends a result. Retakes are recorded as separate results.
func (r *ResultRepository) Add(ctx context.Context, res model.Result) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc resultsDocument
	if err := r.store.read(ctx, storage.Results, &doc); err != nil {
		return err
	}
	doc.Results = append(doc.Results, resultToRecord(res))
	return r.store.write(ctx, storage.Results, &doc)
}

// List returns every result in insertion order.
func (r *ResultRepository) List(ctx context.Context) []model.Result {
	return r.filter(ctx, func(resultRecord) bool { return true })
}

// ListByStudent returns a student's results in insertion order.
func (r *ResultRepository) ListByStudent(ctx context.Context, username string) []model.Result {
	return r.filter(ctx, func(rec resultRecord) bool { return rec.StudentUsername == username })
}

// ListByExam returns an exam's results in insertion order.
func (r *ResultRepository) ListByExam(ctx context.Context, examID string) []model.Result {
	return r.filter(ctx, func(rec resultRecord) bool { return rec.ExamID == examID })
}

// Get returns the result at position seq of the results partition.
func (r *ResultRepository) Get(ctx context.Context, seq int) (model.Result, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc resultsDocument
	r.store.load(ctx, storage.Results, &doc)
	if seq < 0 || seq >= len(doc.Results) {
		return model.Result{}, ErrNotFound
	}
	res := resultFromRecord(doc.Results[seq])
	res.Seq = seq
	return res, nil
}

func (r *ResultRepository) filter(ctx context.Context, keep func(resultRecord) bool) []model.Result {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc resultsDocument
	r.store.load(ctx, storage.Results, &doc)

	out := []model.Result{}
	for i, rec := range doc.Results {
		if keep(rec) {
			res := resultFromRecord(rec)
			res.Seq = i
			out = append(out, res)
		}
	}
	return out
}
