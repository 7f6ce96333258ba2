package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Kyz7/hcg-auth/internal/response"
	"github.com/Kyz7/hcg-auth/internal/user"
	"github.com/Kyz7/hcg-auth/internal/utils"
)

const claimsKey = "session"

// JWTProtected rejects requests without a valid Bearer session token and
// stores the verified claims for later handlers.
func JWTProtected(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, "UNAUTHORIZED", "Access denied. No token provided.")
		}

		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			return response.Unauthorized(c, "INVALID_TOKEN_FORMAT", "Invalid token format")
		}

		claims, err := utils.ParseJWT(tokenParts[1], secret)
		if err != nil {
			p := Classify(err)
			return response.Unauthorized(c, p.Code, p.Message)
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RoleProtected lets through sessions whose role is one of allowedRoles.
// It must run after JWTProtected.
func RoleProtected(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return response.Unauthorized(c, "UNAUTHORIZED", "Access denied. No token provided.")
		}

		for _, role := range allowedRoles {
			if claims.Role == role {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// ClaimsFrom returns the session claims stored by JWTProtected.
func ClaimsFrom(c *fiber.Ctx) (*utils.SessionClaims, bool) {
	claims, ok := c.Locals(claimsKey).(*utils.SessionClaims)
	return claims, ok && claims != nil
}

func isNotFound(err error) bool {
	return errors.Is(err, user.ErrNotFound)
}
