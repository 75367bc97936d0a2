package jwt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func newGateApp(v Verifier) *fiber.App {
	app := fiber.New()
	app.Get("/private", NewAuthMiddleware(v), func(c *fiber.Ctx) error {
		id, ok := UserID(c)
		fromCtx, okCtx := SubjectFromContext(c.UserContext())
		if !ok || !okCtx || id != fromCtx {
			return c.SendStatus(http.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"success": true, "data": id})
	})
	return app
}

func doGate(t *testing.T, app *fiber.App, header string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp.StatusCode, env
}

func TestAuthMiddleware_PassesSubjectThrough(t *testing.T) {
	iss := NewIssuer("secret", "accounts")
	tok, err := iss.Issue(context.Background(), "user-42")
	require.NoError(t, err)
	app := newGateApp(iss)

	for _, header := range []string{"Bearer " + tok, "bearer " + tok, tok} {
		code, env := doGate(t, app, header)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, env.Success)
		assert.Equal(t, "user-42", env.Data)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	app := newGateApp(NewIssuer("secret", "accounts"))

	for _, header := range []string{"", "Bearer", "Bearer   "} {
		code, env := doGate(t, app, header)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.False(t, env.Success)
		assert.Equal(t, "no token, authorization denied", env.Message)
	}
}

func TestAuthMiddleware_InvalidAndExpiredLookTheSame(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	expired, err := NewIssuer("secret", "accounts", WithClock(func() time.Time { return past })).
		Issue(context.Background(), "u1")
	require.NoError(t, err)
	forged, err := NewIssuer("other", "accounts").Issue(context.Background(), "u1")
	require.NoError(t, err)

	app := newGateApp(NewIssuer("secret", "accounts"))

	codeExp, envExp := doGate(t, app, "Bearer "+expired)
	codeBad, envBad := doGate(t, app, "Bearer "+forged)

	assert.Equal(t, http.StatusUnauthorized, codeExp)
	assert.Equal(t, http.StatusUnauthorized, codeBad)
	assert.Equal(t, envExp, envBad)
	assert.Equal(t, "token is not valid", envBad.Message)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "BEARER  abc ", want: "abc"},
		{header: "abc", want: "abc"},
		{header: "Token abc", want: "Token abc"},
		{header: "", wantErr: true},
		{header: "Bearer", wantErr: true},
	}
	for _, tc := range tests {
		got, err := bearerToken(tc.header)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrMissingToken, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.want, got, tc.header)
	}
}

func TestAuthMiddleware_UsesFailureHandler(t *testing.T) {
	type rejection struct {
		status  int
		message string
	}
	var got []rejection
	app := fiber.New()
	app.Get("/private", NewAuthMiddleware(NewIssuer("secret", "accounts"),
		WithFailureHandler(func(c *fiber.Ctx, status int, message string) error {
			got = append(got, rejection{status: status, message: message})
			return c.Status(http.StatusTeapot).JSON(fiber.Map{"success": false, "message": "custom: " + message})
		}),
	), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	code, env := doGate(t, app, "")
	assert.Equal(t, http.StatusTeapot, code)
	assert.Equal(t, "custom: no token, authorization denied", env.Message)

	code, env = doGate(t, app, "Bearer nope")
	assert.Equal(t, http.StatusTeapot, code)
	assert.Equal(t, "custom: token is not valid", env.Message)

	assert.Equal(t, []rejection{
		{status: http.StatusUnauthorized, message: "no token, authorization denied"},
		{status: http.StatusUnauthorized, message: "token is not valid"},
	}, got)
}
