package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common errors used by repository/use cases
var (
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
)

// UserRepository abstracts persistence concerns from the domain layer.
// Create and UpdateByID must enforce email uniqueness atomically and report
// a collision as ErrAlreadyExists; lookups report a miss as ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, user NewUser) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	UpdateByID(ctx context.Context, id uuid.UUID, patch ProfilePatch) (User, error)
}
