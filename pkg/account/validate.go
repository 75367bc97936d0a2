package account

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	nameRules     = "required,max=100"
	emailRules    = "required,email,max=254"
	passwordRules = "required,min=6"

	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError lists the rejected fields with a short reason each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) check(field, value, rules string) {
	err := validate.Var(value, rules)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		e.add(field, reason(fieldErrs[0]))
		return
	}
	e.add(field, "is invalid")
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = reason
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// NormalizeEmail returns the uniqueness key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims surrounding whitespace from a display name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Registration is a normalized, validated sign-up request.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// NewRegistration normalizes name and email and checks every field rule.
func NewRegistration(name, email, password string) (Registration, error) {
	reg := Registration{
		Name:     NormalizeName(name),
		Email:    NormalizeEmail(email),
		Password: password,
	}
	var verr ValidationError
	verr.check("name", reg.Name, nameRules)
	verr.check("email", reg.Email, emailRules)
	verr.check("password", reg.Password, passwordRules)
	if len(reg.Password) > maxPasswordBytes {
		verr.add("password", "must be at most 72 bytes")
	}
	if err := verr.orNil(); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

// NewRecord builds the insert payload for a store. Stores call it again
// before writing so the record rules hold whatever the backing engine is.
func NewRecord(name, email, passwordHash string) (NewUser, error) {
	rec := NewUser{
		Name:         NormalizeName(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
	}
	var verr ValidationError
	verr.check("name", rec.Name, nameRules)
	verr.check("email", rec.Email, emailRules)
	if rec.PasswordHash == "" {
		verr.add("password", "is required")
	}
	if err := verr.orNil(); err != nil {
		return NewUser{}, err
	}
	return rec, nil
}

// Normalize trims and lowercases the present fields and validates them.
func (p ProfilePatch) Normalize() (ProfilePatch, error) {
	var (
		out  ProfilePatch
		verr ValidationError
	)
	if p.Name != nil {
		name := NormalizeName(*p.Name)
		verr.check("name", name, nameRules)
		out.Name = &name
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		verr.check("email", email, emailRules)
		out.Email = &email
	}
	if err := verr.orNil(); err != nil {
		return ProfilePatch{}, err
	}
	return out, nil
}
