package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localKeyfunc builds a jwt.Keyfunc directly from an Issuer's public
// key, bypassing BuildKeyfunc's HTTP JWKS fetch so these tests run
// without a network round trip.
func localKeyfunc(iss *Issuer) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		return iss.PublicKey(), nil
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)
	userID := uuid.New()
	token, _, err := iss.Issue(userID, 7, "bob")
	require.NoError(t, err)

	m := NewAuthMiddleware(localKeyfunc(iss), false, "")
	var capturedUserID string
	app := fiber.New()
	app.Get("/test", m.Authenticate(), func(c fiber.Ctx) error {
		capturedUserID = GetUserID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, userID.String(), capturedUserID)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)
	m := NewAuthMiddleware(localKeyfunc(iss), false, "")

	app := fiber.New()
	app.Get("/test", m.Authenticate(), func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/test", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_DevModeMockToken(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)
	m := NewAuthMiddleware(localKeyfunc(iss), true, "")

	var capturedUserID string
	app := fiber.New()
	app.Get("/test", m.Authenticate(), func(c fiber.Ctx) error {
		capturedUserID = GetUserID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+devMockToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, devMockUserID, capturedUserID)
}

func TestAuthMiddleware_BypassToken(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)
	m := NewAuthMiddleware(localKeyfunc(iss), false, "shared-secret")

	app := fiber.New()
	app.Get("/test", m.Authenticate(), func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer shared-secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)
	m := NewAuthMiddleware(localKeyfunc(iss), false, "")

	app := fiber.New()
	app.Get("/test", m.Authenticate(), func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
