package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

// AdminMiddleware gates the token-management routes spec.md section 6
// marks "admin" (POST /api/tokens, POST /api/tokens/{mint}/mint): a
// static bearer token distinct from the per-user session token, the
// same shape as AuthMiddleware's bypassToken escape hatch but scoped
// to operator-only routes instead of granting an empty user context.
type AdminMiddleware struct {
	token string
}

// NewAdminMiddleware builds an AdminMiddleware checking requests
// against the configured admin token.
func NewAdminMiddleware(token string) *AdminMiddleware {
	return &AdminMiddleware{token: token}
}

// Authenticate rejects any request whose bearer token does not match
// the configured admin token.
func (m *AdminMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := string(c.Request().Header.Peek(fiber.HeaderAuthorization))
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || m.token == "" || token != m.token {
			return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid admin token")
		}
		return c.Next()
	}
}
