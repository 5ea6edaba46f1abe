package handlers

import (
	"errors"

	"github.com/contacthub/auth-service/internal/dto"
	"github.com/contacthub/auth-service/internal/middleware"
	"github.com/contacthub/auth-service/internal/services"
	"github.com/contacthub/auth-service/internal/validation"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		return unauthorized(c, err)
	}

	user, err := h.userService.Me(c.UserContext(), p.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		return internalError(c, err)
	}

	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) UpdateAvatar(c *fiber.Ctx) error {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		return unauthorized(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "Avatar file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Avatar file could not be read")
	}
	defer file.Close()

	user, err := h.userService.UpdateAvatar(
		c.UserContext(), p.UserID,
		fileHeader.Filename, fileHeader.Header.Get(fiber.HeaderContentType), file,
	)
	if err != nil {
		if errors.Is(err, services.ErrAvatarStorageDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Avatar uploads are not available",
			})
		}
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		return internalError(c, err)
	}

	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) Deactivate(c *fiber.Ctx) error {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		return unauthorized(c, err)
	}

	var req dto.DeactivateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validation.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.userService.Deactivate(c.UserContext(), p.UserID, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Incorrect password. Please try again.",
			})
		}
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
