package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"ctcustody/internal/apperr"
	"ctcustody/internal/middleware"
	"ctcustody/internal/transfer"
)

// TransferHandler resolves the /api/transfers routes spec.md section 6
// lists: a confidential transfer to a pubkey recipient, or to a
// platform username (reserving a wallet for them if none exists yet).
type TransferHandler struct {
	transfer *transfer.Engine
}

// NewTransferHandler builds a TransferHandler.
func NewTransferHandler(transferEngine *transfer.Engine) *TransferHandler {
	return &TransferHandler{transfer: transferEngine}
}

// RegisterRoutes mounts the transfer routes behind the supplied
// authentication middleware.
func (h *TransferHandler) RegisterRoutes(app *fiber.App, auth *middleware.AuthMiddleware) {
	group := app.Group("/api/transfers", auth.Authenticate())
	group.Post("/", h.Transfer)
	group.Post("/:username", h.TransferToUsername)
}

type transferRequest struct {
	Mint      string `json:"mint"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

// Transfer moves amount of mint from the caller's confidential balance
// to the recipient named in the body, by pubkey.
func (h *TransferHandler) Transfer(c fiber.Ctx) error {
	return h.doTransfer(c, "")
}

// TransferToUsername moves amount of mint from the caller's
// confidential balance to the platform username in the path, reserving
// a wallet for them if one doesn't exist yet (spec.md section 8
// scenario C).
func (h *TransferHandler) TransferToUsername(c fiber.Ctx) error {
	return h.doTransfer(c, c.Params("username"))
}

func (h *TransferHandler) doTransfer(c fiber.Ctx, pathUsername string) error {
	userID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		return apperr.Wrap(apperr.Unauthorized, "invalid user id in session", err)
	}

	var req transferRequest
	if err := c.Bind().Body(&req); err != nil || req.Mint == "" || req.Amount == 0 {
		return apperr.New(apperr.BadRequest, "mint and a strictly positive amount are required")
	}

	var recipient transfer.Recipient
	if pathUsername != "" {
		recipient, err = parseRecipient("", pathUsername)
	} else {
		recipient, err = parseRecipient(req.Recipient, "")
	}
	if err != nil {
		return err
	}

	mint, err := parseMint(req.Mint)
	if err != nil {
		return err
	}

	result, err := h.transfer.Transfer(c.Context(), userID, mint, recipient, req.Amount)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"transactions":       phasePayloads(result.Phases),
		"recipient":          result.RecipientWallet.String(),
		"recipientNewWallet": result.NewWallet,
	})
}
