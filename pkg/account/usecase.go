package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// UseCase describes registration, login and profile behavior.
type UseCase interface {
	Register(ctx context.Context, name, email, password string) (AuthResult, error)
	Login(ctx context.Context, email, password string) (AuthResult, error)
	GetProfile(ctx context.Context, id uuid.UUID) (User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (User, error)
}

type AuthResult struct {
	User  User
	Token string
}

type service struct {
	repo   UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService returns default implementation of UseCase.
func NewService(repo UserRepository, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) UseCase {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &service{repo: repo, hasher: hasher, tokens: tokens, log: log.With("component", "account")}
}

func (s *service) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	reg, err := NewRegistration(name, email, password)
	if err != nil {
		return AuthResult{}, err
	}

	// Fail fast before paying for a hash. The store's unique index still
	// decides concurrent registrations.
	_, err = s.repo.GetByEmail(ctx, reg.Email)
	switch {
	case err == nil:
		return AuthResult{}, ErrAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		s.log.ErrorContext(ctx, "hash password", "error", err)
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	rec, err := NewRecord(reg.Name, reg.Email, hash)
	if err != nil {
		return AuthResult{}, err
	}
	user, err := s.repo.Create(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return AuthResult{}, ErrAlreadyExists
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(ctx, user.ID.String())
	if err != nil {
		s.log.ErrorContext(ctx, "issue token", "user_id", user.ID, "error", err)
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return AuthResult{User: user, Token: token}, nil
}

func (s *service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return AuthResult{}, fmt.Errorf("lookup user: %w", err)
		}
		// Spend the same work as a real mismatch so the two failures look alike.
		s.hasher.Verify(password, s.timingHash())
		s.log.InfoContext(ctx, "login rejected")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.InfoContext(ctx, "login rejected", "user_id", user.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ctx, user.ID.String())
	if err != nil {
		s.log.ErrorContext(ctx, "issue token", "user_id", user.ID, "error", err)
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return AuthResult{User: user, Token: token}, nil
}

func (s *service) GetProfile(ctx context.Context, id uuid.UUID) (User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (User, error) {
	if patch.IsEmpty() {
		return s.GetProfile(ctx, id)
	}
	patch, err := patch.Normalize()
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.UpdateByID(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return User{}, ErrNotFound
		case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrValidation):
			return User{}, err
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	s.log.InfoContext(ctx, "profile updated", "user_id", user.ID)
	return user, nil
}

func (s *service) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
