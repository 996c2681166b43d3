package repository

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-ems/internal/credential"
	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/storage"
)

// UserRepository handles the users partition.
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// List returns teachers and students in storage order.
func (r *UserRepository) List(ctx context.Context) (teachers, students []model.User) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc usersDocument
	r.store.load(ctx, storage.Users, &doc)

	teachers = make([]model.User, 0, len(doc.Teachers))
	for _, rec := range doc.Teachers {
		teachers = append(teachers, userFromRecord(rec, model.RoleTeacher))
	}
	students = make([]model.User, 0, len(doc.Students))
	for _, rec := range doc.Students {
		students = append(students, userFromRecord(rec, model.RoleStudent))
	}
	return teachers, students
}

// ListByRole returns the users of one role.
func (r *UserRepository) ListByRole(ctx context.Context, role model.Role) []model.User {
	teachers, students := r.List(ctx)
	if role == model.RoleTeacher {
		return teachers
	}
	return students
}

// Get finds a user by username in either role.
func (r *UserRepository) Get(ctx context.Context, username string) (*model.User, error) {
	teachers, students := r.List(ctx)
	for _, list := range [][]model.User{teachers, students} {
		for i := range list {
			if list[i].Username == username {
				return &list[i], nil
			}
		}
	}
	return nil, ErrNotFound
}

// Add appends u to the list of its role. The username must be free in both roles.
func (r *UserRepository) Add(ctx context.Context, u model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc usersDocument
	if err := r.store.read(ctx, storage.Users, &doc); err != nil {
		return err
	}

	for _, list := range [][]userRecord{doc.Teachers, doc.Students} {
		for _, rec := range list {
			if rec.Username == u.Username {
				return ErrDuplicateUsername
			}
		}
	}

	list := doc.list(u.Role)
	*list = append(*list, userToRecord(u))
	return r.store.write(ctx, storage.Users, &doc)
}

// Update replaces the record matching (username, role).
func (r *UserRepository) Update(ctx context.Context, u model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc usersDocument
	if err := r.store.read(ctx, storage.Users, &doc); err != nil {
		return err
	}

	list := doc.list(u.Role)
	for i := range *list {
		if (*list)[i].Username == u.Username {
			(*list)[i] = userToRecord(u)
			return r.store.write(ctx, storage.Users, &doc)
		}
	}
	return ErrNotFound
}

// Delete removes the record matching (username, role). Absent users are a no-op.
func (r *UserRepository) Delete(ctx context.Context, username string, role model.Role) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var doc usersDocument
	if err := r.store.read(ctx, storage.Users, &doc); err != nil {
		return err
	}

	list := doc.list(role)
	kept := (*list)[:0]
	for _, rec := range *list {
		if rec.Username != username {
			kept = append(kept, rec)
		}
	}
	*list = kept
	return r.store.write(ctx, storage.Users, &doc)
}

// Authenticate scans teachers, then students, for username with a password
// that verifies against the stored digest.
func (r *UserRepository) Authenticate(ctx context.Context, username, password string, hasher credential.Hasher) (*model.User, error) {
	teachers, students := r.List(ctx)
	for _, list := range [][]model.User{teachers, students} {
		for i := range list {
			if list[i].Username == username && hasher.Verify(list[i].PasswordHash, password) {
				return &list[i], nil
			}
		}
	}
	return nil, fmt.Errorf("authenticate %q: %w", username, ErrNotFound)
}
