// Exercises TransferHandler's routing, session requirement, and
// request validation. Like token_test.go, the proof-generation and
// pipeline submission path (transfer.Engine.Transfer) needs real
// confidential accounts, so these tests stick to the boundary: an
// unauthenticated caller is rejected, and a malformed body never
// reaches the engine.
package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ctcustody/internal/middleware"
)

func transferTestApp(t *testing.T) (*fiber.App, *middleware.Issuer) {
	t.Helper()
	h := NewTransferHandler(nil)
	iss, err := middleware.NewIssuer()
	require.NoError(t, err)
	authMW := middleware.NewAuthMiddleware(func(t *jwt.Token) (interface{}, error) { return iss.PublicKey(), nil }, false, "")
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h.RegisterRoutes(app, authMW)
	return app, iss
}

func TestTransferHandler_RequiresSession(t *testing.T) {
	app, _ := transferTestApp(t)

	req := httptest.NewRequest("POST", "/api/transfers/", strings.NewReader(`{"mint":"So11111111111111111111111111111111111111112","recipient":"So11111111111111111111111111111111111111112","amount":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTransferHandler_RejectsMissingMint(t *testing.T) {
	app, iss := transferTestApp(t)
	token, _, err := iss.Issue(uuid.New(), 1, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/transfers/", strings.NewReader(`{"recipient":"So11111111111111111111111111111111111111112","amount":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTransferHandler_RejectsMissingRecipient(t *testing.T) {
	app, iss := transferTestApp(t)
	token, _, err := iss.Issue(uuid.New(), 1, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/transfers/", strings.NewReader(`{"mint":"So11111111111111111111111111111111111111112","amount":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTransferHandler_ToUsernameRejectsZeroAmount(t *testing.T) {
	app, iss := transferTestApp(t)
	token, _, err := iss.Issue(uuid.New(), 1, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/transfers/bob", strings.NewReader(`{"mint":"So11111111111111111111111111111111111111112","amount":0}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
