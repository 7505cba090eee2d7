//go:build integration

// Exercises AuthHandler's login flow end to end, reusing the same
// testcontainers-backed database helper wallet_test.go defines.
package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"ctcustody/internal/db"
	"ctcustody/internal/middleware"
	"ctcustody/internal/wallet"
)

func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	var pairs []string
	for k, v := range fields {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))
	secretKey := secretMAC.Sum(nil)

	dataMAC := hmac.New(sha256.New, secretKey)
	dataMAC.Write([]byte(dataCheckString))
	hash := hex.EncodeToString(dataMAC.Sum(nil))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func authTestApp(t *testing.T, database *db.DB, botToken string) *fiber.App {
	t.Helper()
	wallets := wallet.New(database)
	iss, err := middleware.NewIssuer()
	require.NoError(t, err)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	NewAuthHandler(wallets, iss, botToken).RegisterRoutes(app)
	return app
}

func TestAuthHandler_LoginCreatesUserAndClaimsReservedWallet(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()
	botToken := "test-bot-token"

	_, err := database.CreateReservedUser(ctx, "telegram", "bob")
	require.NoError(t, err)

	app := authTestApp(t, database, botToken)
	initData := signInitData(t, botToken, map[string]string{
		"user":      `{"id":42,"username":"bob","first_name":"Bob"}`,
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
	})

	body, err := json.Marshal(map[string]string{"initData": initData})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/auth/telegram", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var parsed loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotEmpty(t, parsed.Token)
	require.True(t, parsed.HasReservedWallet)
	require.Equal(t, "bob", parsed.User.Username)
}

func TestAuthHandler_LoginRejectsBadSignature(t *testing.T) {
	database := startTestDB(t)
	app := authTestApp(t, database, "test-bot-token")

	initData := signInitData(t, "wrong-token", map[string]string{
		"user":      `{"id":1,"username":"a"}`,
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
	})
	body, err := json.Marshal(map[string]string{"initData": initData})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/auth/telegram", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthHandler_LoginRejectsMissingInitData(t *testing.T) {
	database := startTestDB(t)
	app := authTestApp(t, database, "test-bot-token")

	req := httptest.NewRequest("POST", "/api/auth/telegram", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
