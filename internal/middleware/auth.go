package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// devMockToken and devMockUserID reproduce original_source's local
	// development bypass (handlers/telegram/auth.rs): a fixed token
	// short-circuits verification entirely when dev_mode is on.
	devMockToken  = "dev_mock_token_for_local_testing"
	devMockUserID = "00000000-0000-0000-0000-000000000001"

	userIDKey         = "auth_user_id"
	platformUserIDKey = "auth_platform_user_id"
	usernameKey       = "auth_username"
)

// BuildKeyfunc resolves a jwt.Keyfunc against a published JWKS
// endpoint, letting a verifier process validate session tokens without
// holding the signing secret — the in-process server uses its own
// /.well-known/jwks.json URL, any other internal service points at the
// server's public URL instead.
func BuildKeyfunc(ctx context.Context, jwksURL string) (jwt.Keyfunc, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("middleware: failed to build keyfunc from %s: %w", jwksURL, err)
	}
	return kf.Keyfunc, nil
}

// AuthMiddleware verifies the bearer token on every request, per
// spec.md section 6's auth contract (an identity-provider login
// exchanges for this session token, every other endpoint requires it).
type AuthMiddleware struct {
	keyfunc     jwt.Keyfunc
	devMode     bool
	bypassToken string
}

// NewAuthMiddleware builds an AuthMiddleware. devMode and bypassToken
// reproduce original_source's dev-mode mock token and BYPASS_AUTH_TOKEN
// escape hatches unchanged.
func NewAuthMiddleware(keyfunc jwt.Keyfunc, devMode bool, bypassToken string) *AuthMiddleware {
	return &AuthMiddleware{keyfunc: keyfunc, devMode: devMode, bypassToken: bypassToken}
}

// Authenticate extracts and verifies the Authorization bearer token,
// storing the resolved identity in Fiber's Locals for handlers to read
// via GetUserID/GetPlatformUserID/GetUsername.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := string(c.Request().Header.Peek(fiber.HeaderAuthorization))
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header format")
		}

		if m.devMode && token == devMockToken {
			c.Locals(userIDKey, devMockUserID)
			c.Locals(platformUserIDKey, int64(123456789))
			c.Locals(usernameKey, "dev_user")
			return c.Next()
		}
		if m.bypassToken != "" && token == m.bypassToken {
			return c.Next()
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, m.keyfunc)
		if err != nil || !parsed.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(userIDKey, claims.Subject)
		c.Locals(platformUserIDKey, claims.PlatformUserID)
		c.Locals(usernameKey, claims.Username)
		return c.Next()
	}
}

// GetUserID retrieves the authenticated internal user id string from
// Fiber's Locals. Returns "" if Authenticate has not run.
func GetUserID(c fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// GetPlatformUserID retrieves the authenticated identity provider's
// numeric user id from Fiber's Locals.
func GetPlatformUserID(c fiber.Ctx) int64 {
	id, _ := c.Locals(platformUserIDKey).(int64)
	return id
}

// GetUsername retrieves the authenticated platform username, if any.
func GetUsername(c fiber.Ctx) string {
	username, _ := c.Locals(usernameKey).(string)
	return username
}
