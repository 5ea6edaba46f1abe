package handlers

import (
	"errors"
	"strings"

	"github.com/contacthub/auth-service/internal/dto"
	"github.com/contacthub/auth-service/internal/middleware"
	"github.com/contacthub/auth-service/internal/services"
	"github.com/contacthub/auth-service/internal/validation"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.authService.Register(c.UserContext(), &req); err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.MessageResponse{
		Message: "Registration successful. Check your email to verify your account.",
	})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	if err := h.authService.VerifyEmail(c.UserContext(), c.Params("token")); err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			return unauthorized(c, err)
		}
		if errors.Is(err, services.ErrUserNotFound) {
			return badRequest(c, "Verification failed: unknown account")
		}
		return internalError(c, err)
	}

	return c.JSON(dto.MessageResponse{Message: "Email verified. You can now log in."})
}

func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return internalError(c, err)
	}

	// same response whether or not the account exists
	return c.JSON(dto.MessageResponse{
		Message: "If the address needs verification, an email is on its way.",
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	pair, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrAccountNotVerified) {
			return unauthorized(c, err)
		}
		return internalError(c, err)
	}

	return c.JSON(pair)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	raw := bearerToken(c)
	if raw == "" {
		return unauthorized(c, services.ErrInvalidToken)
	}

	pair, err := h.authService.Refresh(c.UserContext(), raw)
	if err != nil {
		if errors.Is(err, services.ErrInvalidToken) || errors.Is(err, services.ErrTokenRevoked) {
			return unauthorized(c, err)
		}
		return internalError(c, err)
	}

	return c.JSON(pair)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	raw := bearerToken(c)
	if raw == "" {
		return c.SendStatus(fiber.StatusNoContent)
	}

	if err := h.authService.Logout(c.UserContext(), raw); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		return unauthorized(c, err)
	}

	if err := h.authService.LogoutAll(c.UserContext(), p.UserID); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return internalError(c, err)
	}

	// same response whether or not the account exists
	return c.JSON(dto.MessageResponse{
		Message: "If the address is registered, a reset email is on its way.",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.authService.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidToken) || errors.Is(err, services.ErrTokenRevoked) {
			return unauthorized(c, err)
		}
		if errors.Is(err, services.ErrUserNotFound) {
			return badRequest(c, "Reset failed: unknown account")
		}
		return internalError(c, err)
	}

	return c.JSON(dto.MessageResponse{Message: "Password updated. Please log in again."})
}

// bearerToken extracts the raw token from the Authorization header.
// Refresh and logout parse it directly so expired tokens still reach the
// service instead of bouncing off the guard middleware.
func bearerToken(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
