package jwt

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrMissingToken is returned when the request carries no bearer token.
var ErrMissingToken = errors.New("missing token")

const userIDKey = "userId"

type subjectKey struct{}

// Verifier resolves a token to its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

// FailureHandler writes the response for a rejected request.
type FailureHandler func(c *fiber.Ctx, status int, message string) error

type GateOption func(*gate)

type gate struct {
	onFailure FailureHandler
}

// WithFailureHandler lets the transport layer render rejections in its own
// response envelope.
func WithFailureHandler(h FailureHandler) GateOption {
	return func(g *gate) {
		if h != nil {
			g.onFailure = h
		}
	}
}

// NewAuthMiddleware returns a Fiber middleware that validates a Bearer JWT.
// On success the subject is stored in c.Locals and read back with UserID.
func NewAuthMiddleware(verifier Verifier, opts ...GateOption) fiber.Handler {
	g := gate{onFailure: unauthorized}
	for _, opt := range opts {
		opt(&g)
	}
	return func(c *fiber.Ctx) error {
		tokenStr, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return g.onFailure(c, http.StatusUnauthorized, "no token, authorization denied")
		}
		subject, err := verifier.Verify(tokenStr)
		if err != nil {
			return g.onFailure(c, http.StatusUnauthorized, "token is not valid")
		}
		c.Locals(userIDKey, subject)
		c.SetUserContext(context.WithValue(c.UserContext(), subjectKey{}, subject))
		return c.Next()
	}
}

// unauthorized is the fallback when no FailureHandler is supplied.
func unauthorized(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

// UserID returns the subject stored by the auth middleware.
func UserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(userIDKey).(string)
	return id, ok && id != ""
}

// SubjectFromContext returns the subject attached to a request's user context.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectKey{}).(string)
	return id, ok && id != ""
}

// bearerToken supports both "Bearer <token>" and "<token>" (no prefix).
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	var tokenStr string
	if scheme, rest, ok := strings.Cut(header, " "); ok {
		if strings.EqualFold(scheme, "Bearer") {
			tokenStr = strings.TrimSpace(rest)
		} else {
			// Fallback: treat entire header as token (for non-standard clients)
			tokenStr = header
		}
	} else if strings.EqualFold(header, "Bearer") {
		tokenStr = ""
	} else {
		tokenStr = header
	}
	if tokenStr == "" {
		return "", ErrMissingToken
	}
	return tokenStr, nil
}
