package handlers

import (
	"github.com/gofiber/fiber/v3"

	"ctcustody/internal/apperr"
	"ctcustody/internal/identity"
	"ctcustody/internal/middleware"
	"ctcustody/internal/wallet"
)

// AuthHandler resolves POST /api/auth/telegram (spec.md section 6:
// "verify a signed identity payload, upsert user, issue bearer token").
type AuthHandler struct {
	wallets  *wallet.Service
	issuer   *middleware.Issuer
	botToken string
}

// NewAuthHandler builds an AuthHandler. botToken is the identity
// provider secret (spec.md section 6 environment: "identity-provider
// verification secret") Telegram initData is HMAC-verified against.
func NewAuthHandler(wallets *wallet.Service, issuer *middleware.Issuer, botToken string) *AuthHandler {
	return &AuthHandler{wallets: wallets, issuer: issuer, botToken: botToken}
}

// RegisterRoutes mounts the identity-provider login route.
func (h *AuthHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", h.Login)
}

type loginRequest struct {
	InitData string `json:"initData"`
}

type loginResponse struct {
	Token             string      `json:"token"`
	User              userPayload `json:"user"`
	ExpiresAt         int64       `json:"expiresAt"`
	HasReservedWallet bool        `json:"hasReservedWallet"`
}

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Pubkey   string `json:"pubkey"`
}

// Login verifies Telegram Mini App initData, upserts the corresponding
// user (claiming any reserved wallet left for their username), and
// issues a bearer session token.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req loginRequest
	if err := c.Bind().Body(&req); err != nil || req.InitData == "" {
		return apperr.New(apperr.BadRequest, "missing initData")
	}

	tgUser, err := identity.Verify(req.InitData, h.botToken)
	if err != nil {
		return apperr.Wrap(apperr.Unauthorized, "initData verification failed", err)
	}

	ctx := c.Context()

	// Best-effort look at reservation state before ClaimOrCreate
	// performs the atomic claim, purely to report it back to the
	// caller (spec.md section 6: "hasReservedWallet").
	hasReservedWallet := false
	if tgUser.Username != "" {
		if reserved, lookupErr := h.wallets.LookupByUsername(ctx, tgUser.Username); lookupErr == nil {
			hasReservedWallet = reserved.PlatformUserID == nil
		}
	}

	user, w, _, err := h.wallets.ClaimOrCreate(ctx, "telegram", tgUser.TelegramUserID, tgUser.Username, tgUser.FirstName)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.issuer.Issue(user.ID, tgUser.TelegramUserID, tgUser.Username)
	if err != nil {
		return apperr.Wrap(apperr.KeyDerivationFailed, "failed to issue session token", err)
	}

	return c.JSON(loginResponse{
		Token: token,
		User: userPayload{
			ID:       user.ID.String(),
			Username: tgUser.Username,
			Pubkey:   w.Pubkey,
		},
		ExpiresAt:         expiresAt.Unix(),
		HasReservedWallet: hasReservedWallet,
	})
}
