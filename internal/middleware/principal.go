package middleware

import (
	"errors"

	"github.com/contacthub/auth-service/internal/dto"
	"github.com/contacthub/auth-service/internal/token"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal identifies the authenticated caller of a guarded route.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

const principalKey = "principal"

// RequirePrincipal runs after JWTProtected. It admits only access tokens
// and stores the caller identity in locals; refresh or other token kinds
// presented on guarded routes are rejected.
func RequirePrincipal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, ok := c.Locals("user").(*jwt.Token)
		if !ok {
			return unauthorized(c)
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c)
		}

		kind, _ := claims["kind"].(string)
		if kind != string(token.KindAccess) {
			return unauthorized(c)
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			return unauthorized(c)
		}

		email, _ := claims["email"].(string)
		c.Locals(principalKey, Principal{UserID: userID, Email: email})
		return c.Next()
	}
}

// GetPrincipal extracts the caller identity stored by RequirePrincipal.
func GetPrincipal(c *fiber.Ctx) (Principal, error) {
	p, ok := c.Locals(principalKey).(Principal)
	if !ok {
		return Principal{}, errors.New("no principal in context")
	}
	return p, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: access token required",
	})
}
