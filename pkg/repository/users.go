package repository

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/record"
)

// Uniqueness violations reported by Add and Update. Both are wrapped in an
// AlreadyExists StoreError.
var (
	ErrPhoneInUse = stderrors.New("phone number already in use")
	ErrEmailInUse = stderrors.New("email address already in use")
)

// UserRepository stores users in users.dat.
type UserRepository struct {
	table[models.User]

	// createMu serializes uniqueness checks with the append that follows.
	createMu *sync.Mutex
}

// NewUserRepository wraps an open users table.
func NewUserRepository(t *record.Table[models.User]) *UserRepository {
	return &UserRepository{
		table:    newTable(t, func(u *models.User) int32 { return u.ID }, "user"),
		createMu: &sync.Mutex{},
	}
}

// Journaled returns a view of the repository whose writes are reported to r.
func (r *UserRepository) Journaled(rec Recorder) *UserRepository {
	return &UserRepository{table: r.table.journaled(rec), createMu: r.createMu}
}

// GetByID returns the user with id.
func (r *UserRepository) GetByID(ctx context.Context, id int32) (models.User, error) {
	u, _, err := r.getByID(ctx, id)
	return u, err
}

// FindByPhone returns the user with the given phone number.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (models.User, error) {
	return r.findOne(ctx, func(u *models.User) bool { return u.Phone == phone })
}

// FindByEmail returns the user with the given email, compared
// case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

// Add stores u under the next free id and returns it with ID set.
//
// Phone and email must be unique. The check and the append run under one
// mutex so two concurrent creations with the same phone cannot both pass.
func (r *UserRepository) Add(ctx context.Context, u models.User) (models.User, error) {
	return r.AddWith(ctx, u, nil)
}

// AddWith is Add that also runs then while the uniqueness mutex is still
// held, which lets the caller create dependent records (a customer's first
// account) before another creation with the same keys can start.
//
// On a journaled repository a failing then rolls the journal operation
// back before the mutex is released, while the new user is still the last
// record of the table.
func (r *UserRepository) AddWith(ctx context.Context, u models.User, then func(models.User) error) (models.User, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	if err := r.checkUnique(ctx, 0, u.Phone, u.Email); err != nil {
		return models.User{}, err
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	created, err := r.add(ctx, func(next int32, _ *models.User) (models.User, error) {
		u.ID = next
		return u, nil
	})
	if err != nil {
		return models.User{}, err
	}
	if then != nil {
		if err := then(created); err != nil {
			if rb, ok := r.rec.(rollbacker); ok {
				if rbErr := rb.Rollback(ctx); rbErr != nil {
					return created, rbErr
				}
			}
			return created, err
		}
	}
	return created, nil
}

// rollbacker is a Recorder that can undo what it recorded.
type rollbacker interface {
	Rollback(ctx context.Context) error
}

// Update overwrites the stored user with u.ID. Changing phone or email to a
// value owned by another user is rejected.
func (r *UserRepository) Update(ctx context.Context, u models.User) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	if err := r.checkUnique(ctx, u.ID, u.Phone, u.Email); err != nil {
		return err
	}
	return r.update(ctx, u)
}

// Modify applies fn to the stored user under its record lock.
func (r *UserRepository) Modify(ctx context.Context, id int32, fn func(*models.User) error) (models.User, error) {
	return r.modify(ctx, id, fn)
}

// List returns every user matching pred (all users when pred is nil).
func (r *UserRepository) List(ctx context.Context, pred func(*models.User) bool) ([]models.User, error) {
	return r.filter(ctx, pred, 0)
}

// Count returns the number of stored users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx)
}

// checkUnique fails when phone or email belongs to a user other than self.
func (r *UserRepository) checkUnique(ctx context.Context, self int32, phone, email string) error {
	var conflict error
	err := r.t.Scan(ctx, func(_ int64, u *models.User) bool {
		if u.ID == self {
			return true
		}
		switch {
		case phone != "" && u.Phone == phone:
			conflict = ErrPhoneInUse
			return false
		case email != "" && strings.EqualFold(u.Email, email):
			conflict = ErrEmailInUse
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if conflict != nil {
		e := errors.NewAlreadyExistsError(r.t.Path(), "user")
		e.Err = conflict
		return e
	}
	return nil
}
