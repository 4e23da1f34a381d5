package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-gate/internal/api/dto"
	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/service"
	apperrors "github.com/spec-kit/token-gate/pkg/util"
)

// AuthHandler exposes account and token endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, tokens, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{
		User:   dto.NewUserResponse(user),
		Tokens: dto.NewAuthTokensResponse(tokens),
	})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	user, tokens, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{
		User:   dto.NewUserResponse(user),
		Tokens: dto.NewAuthTokensResponse(tokens),
	})
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RefreshTokens handles POST /v1/auth/refresh-tokens.
func (h *AuthHandler) RefreshTokens(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	tokens, err := h.auth.RefreshAuth(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAuthTokensResponse(tokens))
}

// ForgotPassword handles POST /v1/auth/forgot-password. The token only
// travels by email.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if _, err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ResetPassword handles POST /v1/auth/reset-password?token=.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadInput("invalid payload", nil)
	}
	req.Token = c.Query("token")
	if err := validate(req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SendVerificationEmail handles POST /v1/auth/send-verification-email.
func (h *AuthHandler) SendVerificationEmail(c *fiber.Ctx) error {
	caller, ok := auth.CallerFromFiber(c)
	if !ok {
		return auth.ToDomainError(auth.ErrAuthenticationRequired)
	}
	if _, err := h.auth.SendVerificationEmail(c.UserContext(), caller); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// VerifyEmail handles POST /v1/auth/verify-email?token=.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	req := dto.VerifyEmailRequest{Token: c.Query("token")}
	if err := validate(req); err != nil {
		return err
	}
	if err := h.auth.VerifyEmail(c.UserContext(), req.Token); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
