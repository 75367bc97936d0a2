package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artem13815/accounts/pkg/account"
)

func ptr(s string) *string { return &s }

func TestCreate_NormalizesAndAssignsIdentity(t *testing.T) {
	repo := NewUserRepository()

	u, err := repo.Create(context.Background(), account.NewUser{Name: "  Jane ", Email: " JANE@X.com ", PasswordHash: "h"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "Jane", u.Name)
	assert.Equal(t, "jane@x.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)

	got, err := repo.GetByEmail(context.Background(), "Jane@X.COM")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestCreate_RejectsInvalidRecord(t *testing.T) {
	repo := NewUserRepository()

	_, err := repo.Create(context.Background(), account.NewUser{Name: " ", Email: "nope", PasswordHash: "h"})
	require.ErrorIs(t, err, account.ErrValidation)

	var verr *account.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
}

func TestCreate_DuplicateEmailCaseInsensitive(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, account.NewUser{Name: "A", Email: "a@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, account.NewUser{Name: "B", Email: "A@X.COM", PasswordHash: "h"})
	assert.ErrorIs(t, err, account.ErrAlreadyExists)
}

func TestCreate_ConcurrentSameEmailOneWinner(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dupe int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, account.NewUser{Name: "R", Email: "race@x.com", PasswordHash: "h"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, account.ErrAlreadyExists):
				dupe++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupe)
}

func TestGet_NotFound(t *testing.T) {
	repo := NewUserRepository()

	_, err := repo.GetByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, account.ErrNotFound)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestUpdateByID(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	repo := NewUserRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()

	u, err := repo.Create(ctx, account.NewUser{Name: "Jane", Email: "jane@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	other, err := repo.Create(ctx, account.NewUser{Name: "John", Email: "john@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	t.Run("moves email index", func(t *testing.T) {
		now = base.Add(time.Minute)
		updated, err := repo.UpdateByID(ctx, u.ID, account.ProfilePatch{Email: ptr(" Jane.Doe@X.com ")})
		require.NoError(t, err)
		assert.Equal(t, "jane.doe@x.com", updated.Email)
		assert.Equal(t, "Jane", updated.Name)
		assert.Equal(t, u.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(u.UpdatedAt))

		_, err = repo.GetByEmail(ctx, "jane@x.com")
		assert.ErrorIs(t, err, account.ErrNotFound)
		got, err := repo.GetByEmail(ctx, "jane.doe@x.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("same email is not a collision", func(t *testing.T) {
		updated, err := repo.UpdateByID(ctx, u.ID, account.ProfilePatch{Name: ptr("Janet"), Email: ptr("JANE.DOE@x.com")})
		require.NoError(t, err)
		assert.Equal(t, "Janet", updated.Name)
	})

	t.Run("collision", func(t *testing.T) {
		_, err := repo.UpdateByID(ctx, u.ID, account.ProfilePatch{Email: ptr(other.Email)})
		assert.ErrorIs(t, err, account.ErrAlreadyExists)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := repo.UpdateByID(ctx, u.ID, account.ProfilePatch{Name: ptr("   ")})
		assert.ErrorIs(t, err, account.ErrValidation)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.UpdateByID(ctx, uuid.New(), account.ProfilePatch{Name: ptr("X")})
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestUpdateByID_UpdatedAtAlwaysAdvances(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	repo := NewUserRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()

	u, err := repo.Create(ctx, account.NewUser{Name: "Jane", Email: "jane@x.com", PasswordHash: "h"})
	require.NoError(t, err)

	// frozen clock
	first, err := repo.UpdateByID(ctx, u.ID, account.ProfilePatch{Email: ptr("jane.doe@x.com")})
	require.NoError(t, err)
	assert.True(t, first.UpdatedAt.After(u.UpdatedAt))

	// clock stepped backwards
	now = base.Add(-time.Hour)
	second, err := repo.UpdateByID(ctx, u.ID, account.ProfilePatch{Name: ptr("Janet")})
	require.NoError(t, err)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.UpdatedAt, got.UpdatedAt)
}
