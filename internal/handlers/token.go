package handlers

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gofiber/fiber/v3"

	"ctcustody/internal/apperr"
	"ctcustody/internal/keys"
	"ctcustody/internal/middleware"
	"ctcustody/internal/mintcreate"
	"ctcustody/internal/signer"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/supply"
	"ctcustody/internal/transfer"
	"ctcustody/internal/tx"
)

// TokenHandler resolves the /api/tokens routes spec.md section 6
// lists: mint creation and confidential mint are admin-only, supply is
// open to any caller.
type TokenHandler struct {
	creator         *mintcreate.Creator
	supply          *supply.Service
	transfer        *transfer.Engine
	rpc             solanarpc.Client
	authoritySigner signer.Signer
	commitment      rpc.CommitmentType
}

// NewTokenHandler builds a TokenHandler. authoritySigner is the
// process-wide global authority (spec.md section 4.9), used both as
// new-mint authority and to re-derive a mint's supply keys.
func NewTokenHandler(rpcClient solanarpc.Client, transferEngine *transfer.Engine, authoritySigner signer.Signer, commitment rpc.CommitmentType) *TokenHandler {
	return &TokenHandler{
		creator:         mintcreate.New(rpcClient),
		supply:          supply.New(rpcClient),
		transfer:        transferEngine,
		rpc:             rpcClient,
		authoritySigner: authoritySigner,
		commitment:      commitment,
	}
}

// RegisterRoutes mounts the token routes. admin gates mint creation and
// confidential minting; the supply query has no auth requirement.
func (h *TokenHandler) RegisterRoutes(app *fiber.App, admin *middleware.AdminMiddleware) {
	group := app.Group("/api/tokens")
	group.Post("/", admin.Authenticate(), h.Create)
	group.Post("/:mint/mint", admin.Authenticate(), h.Mint)
	group.Get("/:mint/supply", h.Supply)
}

type createTokenRequest struct {
	Decimals                   uint8  `json:"decimals"`
	AutoApproveAccounts        bool   `json:"autoApproveAccounts"`
	EnableConfidentialMintBurn bool   `json:"enableConfidentialMintBurn"`
	Name                       string `json:"name,omitempty"`
	Symbol                     string `json:"symbol,omitempty"`
	URI                        string `json:"uri,omitempty"`
}

// Create mints a brand-new Token-2022 mint with confidential-transfer
// extensions, using the global authority as fee payer, mint authority,
// and (when enabled) ConfidentialMintBurn authority (spec.md section
// 6: "POST /api/tokens").
func (h *TokenHandler) Create(c fiber.Ctx) error {
	if h.authoritySigner == nil {
		return apperr.New(apperr.Unauthorized, "no mint authority configured")
	}

	var req createTokenRequest
	if err := c.Bind().Body(&req); err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid request body", err)
	}

	authorityPub := h.authoritySigner.PublicKey()
	mintPriv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return apperr.Wrap(apperr.KeyDerivationFailed, "failed to generate mint keypair", err)
	}

	params := mintcreate.Params{
		MintKeypair:         &mintPriv,
		MintAuthority:       authorityPub,
		Decimals:            req.Decimals,
		AutoApproveAccounts: req.AutoApproveAccounts,
		Name:                req.Name,
		Symbol:              req.Symbol,
		URI:                 req.URI,
	}

	if req.EnableConfidentialMintBurn {
		supplyKeys, err := keys.Derive(c.Context(), h.authoritySigner, mintPriv.PublicKey().Bytes())
		if err != nil {
			return err
		}
		params.EnableConfidentialMintBurn = true
		params.ConfidentialMintBurnAuthorityElGamal = supplyKeys.ElGamal.Public.Bytes()
		params.ConfidentialMintBurnSupplyElGamal = supplyKeys.ElGamal.Public.Bytes()
	}

	plan, err := h.creator.Create(c.Context(), authorityPub, params)
	if err != nil {
		return err
	}

	mintSigner := signer.NewLocal(mintPriv)
	engine := tx.NewEngine(h.rpc, h.authoritySigner, mintSigner)
	sig, err := engine.SubmitAndConfirm(c.Context(), plan.Instructions, authorityPub, h.commitment)
	if err != nil {
		return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to submit mint creation", err)
	}

	return c.JSON(fiber.Map{
		"mint":      plan.MintKeypair.PublicKey().String(),
		"signature": sig.String(),
	})
}

type mintRequest struct {
	Recipient string `json:"recipient"`
	Username  string `json:"username"`
	Amount    uint64 `json:"amount"`
}

// Mint confidentially mints amount to a recipient resolved by pubkey or
// username (spec.md section 6: "POST /api/tokens/{mint}/mint").
func (h *TokenHandler) Mint(c fiber.Ctx) error {
	mint, err := solana.PublicKeyFromBase58(c.Params("mint"))
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid mint", err)
	}

	var req mintRequest
	if err := c.Bind().Body(&req); err != nil || req.Amount == 0 {
		return apperr.New(apperr.BadRequest, "a strictly positive amount is required")
	}

	recipient, err := parseRecipient(req.Recipient, req.Username)
	if err != nil {
		return err
	}

	result, err := h.transfer.Mint(c.Context(), mint, recipient, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"transactions":       phasePayloads(result.Phases),
		"recipient":          result.RecipientWallet.String(),
		"recipientNewWallet": result.NewWallet,
	})
}

// Supply returns the confidential mint's decrypted supply (spec.md
// section 6: "GET /api/tokens/{mint}/supply").
func (h *TokenHandler) Supply(c fiber.Ctx) error {
	if h.authoritySigner == nil {
		return apperr.New(apperr.Unauthorized, "no mint authority configured")
	}
	mint, err := solana.PublicKeyFromBase58(c.Params("mint"))
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid mint", err)
	}

	supplyKeys, err := keys.Derive(c.Context(), h.authoritySigner, mint.Bytes())
	if err != nil {
		return err
	}

	snap, err := h.supply.Supply(c.Context(), mint, supplyKeys.ElGamal.Secret, supplyKeys.AE)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"currentSupply":     snap.CurrentSupply,
		"decryptableSupply": snap.DecryptableSupply,
	})
}
