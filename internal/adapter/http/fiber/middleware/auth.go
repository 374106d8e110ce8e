package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthRequired checks for a shared bearer token on every admin
// request. There is no end-user identity model in this domain (only
// charge points, cards and id-tags), so a single operator-held token
// stands in for the login/refresh flow a multi-tenant service would need.
func AdminAuthRequired(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": "missing authorization header"})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": "invalid authorization header format"})
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": "invalid token"})
		}

		return c.Next()
	}
}
