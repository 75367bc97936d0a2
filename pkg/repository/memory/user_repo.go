// Package memory keeps users in process memory. Uniqueness holds within a
// single process only; use it for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artem13815/accounts/pkg/account"
)

// UserRepository implements account.UserRepository on two maps guarded by
// one mutex, so the email check and the write are a single critical section.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]account.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[uuid.UUID]account.User),
		byEmail: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

// WithClock replaces the timestamp source.
func (r *UserRepository) WithClock(now func() time.Time) *UserRepository {
	r.now = now
	return r
}

func (r *UserRepository) Create(ctx context.Context, user account.NewUser) (account.User, error) {
	rec, err := account.NewRecord(user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return account.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[rec.Email]; ok {
		return account.User{}, account.ErrAlreadyExists
	}
	now := r.now().UTC()
	created := account.User{
		ID:           uuid.New(),
		Name:         rec.Name,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[created.ID] = created
	r.byEmail[created.Email] = created.ID
	return created, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (account.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return account.User{}, account.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (account.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return account.User{}, account.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) UpdateByID(ctx context.Context, id uuid.UUID, patch account.ProfilePatch) (account.User, error) {
	patch, err := patch.Normalize()
	if err != nil {
		return account.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return account.User{}, account.ErrNotFound
	}
	if patch.Email != nil && *patch.Email != user.Email {
		if _, taken := r.byEmail[*patch.Email]; taken {
			return account.User{}, account.ErrAlreadyExists
		}
		delete(r.byEmail, user.Email)
		user.Email = *patch.Email
		r.byEmail[user.Email] = id
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	user.UpdatedAt = account.NextUpdatedAt(user.UpdatedAt, r.now().UTC())
	r.byID[id] = user
	return user, nil
}
