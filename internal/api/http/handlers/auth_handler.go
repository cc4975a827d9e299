package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/auth"
	"github.com/heartlog/rehab-api/internal/service"
)

const passwordResetAccepted = "if the account exists and has a linked LINE account, a reset code has been sent there"

// AuthHandler exposes account endpoints.
type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
	logger       *zap.Logger
}

// NewAuthHandler builds the handler.
func NewAuthHandler(authService *service.AuthService, cookieSecure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, cookieSecure: cookieSecure, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		return err
	}
	return h.writeSession(c, http.StatusCreated, session)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.writeSession(c, http.StatusOK, session)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	auth.ClearSessionCookie(c, h.cookieSecure)
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Me(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// RequestPasswordReset handles POST /auth/password-reset/request. The answer is the
// same whether or not the email exists; the code goes to the account's linked LINE user.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if _, err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{"message": passwordResetAccepted},
	})
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *AuthHandler) writeSession(c *fiber.Ctx, status int, session *service.Session) error {
	auth.SetSessionCookie(c, session.Token, h.auth.TokenManager().TTL(), h.cookieSecure)
	return c.Status(status).JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(session.User),
			"auth": dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
		},
	})
}
