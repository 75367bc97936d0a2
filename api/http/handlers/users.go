package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/artem13815/accounts/api/http/presenter"
	"github.com/artem13815/accounts/pkg/account"
	"github.com/artem13815/accounts/pkg/metrics"
	"github.com/artem13815/accounts/pkg/security/jwt"
)

type UserHandler struct {
	useCase account.UseCase
	metrics metrics.Recorder
	log     *slog.Logger
}

func NewUserHandler(useCase account.UseCase, rec metrics.Recorder, log *slog.Logger) *UserHandler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &UserHandler{useCase: useCase, metrics: rec, log: log}
}

type registerRequest struct {
	Name     string `json:"name" example:"Jane"`
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"secret1"`
}

type loginRequest struct {
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"secret1"`
}

type updateProfileRequest struct {
	Name  *string `json:"name,omitempty" example:"Jane Doe"`
	Email *string `json:"email,omitempty" example:"jane.doe@example.com"`
}

type authResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func newAuthResponse(res account.AuthResult) authResponse {
	return authResponse{
		ID:    res.User.ID.String(),
		Name:  res.User.Name,
		Email: res.User.Email,
		Token: res.Token,
	}
}

// Register handles user registration.
// @Summary Register user
// @Tags    users
// @Accept  json
// @Produce json
// @Param   input body registerRequest true "registration payload"
// @Success 201 {object} presenter.SuccessResponse{data=authResponse}
// @Failure 400 {object} presenter.ErrorResponse
// @Router  /users/register [post]
func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return presenter.Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	result, err := h.useCase.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		h.metrics.RecordAuth(metrics.OpRegister, outcome(err))
		return h.writeError(c, err, "failed to register user")
	}
	h.metrics.RecordAuth(metrics.OpRegister, metrics.OutcomeSuccess)
	return presenter.JSON(c, http.StatusCreated, newAuthResponse(result))
}

// Login handles user login.
// @Summary Login
// @Tags    users
// @Accept  json
// @Produce json
// @Param   input body loginRequest true "login payload"
// @Success 200 {object} presenter.SuccessResponse{data=authResponse}
// @Failure 400 {object} presenter.ErrorResponse
// @Failure 401 {object} presenter.ErrorResponse
// @Router  /users/login [post]
func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return presenter.Error(c, http.StatusBadRequest, "invalid JSON payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return presenter.Error(c, http.StatusBadRequest, "email and password are required")
	}

	result, err := h.useCase.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordAuth(metrics.OpLogin, outcome(err))
		return h.writeError(c, err, "failed to login")
	}
	h.metrics.RecordAuth(metrics.OpLogin, metrics.OutcomeSuccess)
	return presenter.JSON(c, http.StatusOK, newAuthResponse(result))
}

// Profile returns the authenticated user's profile.
// @Summary  Get profile
// @Tags     users
// @Produce  json
// @Security BearerAuth
// @Success  200 {object} presenter.SuccessResponse{data=account.Profile}
// @Failure  401 {object} presenter.ErrorResponse
// @Failure  404 {object} presenter.ErrorResponse
// @Router   /users/profile [get]
func (h *UserHandler) Profile(c *fiber.Ctx) error {
	id, ok := currentUserID(c)
	if !ok {
		return presenter.Error(c, http.StatusUnauthorized, "token is not valid")
	}
	user, err := h.useCase.GetProfile(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err, "failed to load profile")
	}
	return presenter.JSON(c, http.StatusOK, user.Profile())
}

// UpdateProfile changes the authenticated user's name and/or email.
// @Summary  Update profile
// @Tags     users
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    input body updateProfileRequest true "fields to change"
// @Success  200 {object} presenter.SuccessResponse{data=account.Profile}
// @Failure  400 {object} presenter.ErrorResponse
// @Failure  401 {object} presenter.ErrorResponse
// @Failure  404 {object} presenter.ErrorResponse
// @Router   /users/profile [put]
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	id, ok := currentUserID(c)
	if !ok {
		return presenter.Error(c, http.StatusUnauthorized, "token is not valid")
	}
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return presenter.Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	user, err := h.useCase.UpdateProfile(c.UserContext(), id, account.ProfilePatch{Name: req.Name, Email: req.Email})
	if err != nil {
		return h.writeError(c, err, "failed to update profile")
	}
	return presenter.JSON(c, http.StatusOK, user.Profile())
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	subject, ok := jwt.UserID(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (h *UserHandler) writeError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, account.ErrValidation):
		return presenter.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrAlreadyExists):
		return presenter.Error(c, http.StatusBadRequest, "user already exists")
	case errors.Is(err, account.ErrInvalidCredentials):
		return presenter.Error(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, account.ErrNotFound):
		return presenter.Error(c, http.StatusNotFound, "user not found")
	default:
		h.log.ErrorContext(c.UserContext(), fallback, "path", c.Path(), "error", err)
		return presenter.Error(c, http.StatusInternalServerError, fallback)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, account.ErrValidation),
		errors.Is(err, account.ErrAlreadyExists),
		errors.Is(err, account.ErrInvalidCredentials):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
