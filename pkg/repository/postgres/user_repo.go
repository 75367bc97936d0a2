package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/artem13815/accounts/pkg/account"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// Querier is the slice of pgxpool.Pool (or pgx.Tx) the repository needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements account.UserRepository backed by PostgreSQL (pgx).
// The unique index on users.email decides concurrent writes.
type UserRepository struct {
	db      Querier
	timeout time.Duration
	now     func() time.Time
}

func NewUserRepository(db Querier, timeout time.Duration) *UserRepository {
	return &UserRepository{db: db, timeout: timeout, now: time.Now}
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user account.NewUser) (account.User, error) {
	rec, err := account.NewRecord(user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return account.User{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.now().UTC()
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+userColumns,
		uuid.New(), rec.Name, rec.Email, rec.PasswordHash, now)
	created, err := scanUser(row)
	if err != nil {
		return account.User{}, mapError(err)
	}
	return created, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (account.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE email = $1
	`, account.NormalizeEmail(email))
	user, err := scanUser(row)
	if err != nil {
		return account.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (account.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1
	`, id)
	user, err := scanUser(row)
	if err != nil {
		return account.User{}, mapError(err)
	}
	return user, nil
}

// UpdateByID applies the non-nil patch fields in one statement.
func (r *UserRepository) UpdateByID(ctx context.Context, id uuid.UUID, patch account.ProfilePatch) (account.User, error) {
	patch, err := patch.Normalize()
	if err != nil {
		return account.User{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    updated_at = GREATEST($4, updated_at + interval '1 microsecond')
		WHERE id = $1
		RETURNING `+userColumns,
		id, patch.Name, patch.Email, r.now().UTC())
	user, err := scanUser(row)
	if err != nil {
		return account.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func scanUser(row pgx.Row) (account.User, error) {
	var user account.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return account.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return account.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return account.ErrAlreadyExists
		case checkViolation:
			return &account.ValidationError{Fields: map[string]string{"record": "violates " + pgErr.ConstraintName}}
		}
	}
	return err
}
