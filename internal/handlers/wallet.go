package handlers

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"ctcustody/internal/account"
	"ctcustody/internal/apperr"
	"ctcustody/internal/balance"
	"ctcustody/internal/db"
	"ctcustody/internal/keys"
	"ctcustody/internal/middleware"
	"ctcustody/internal/mintstate"
	"ctcustody/internal/pipeline"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
	"ctcustody/internal/transfer"
	"ctcustody/internal/tx"
	"ctcustody/internal/wallet"
)

// defaultAirdropLamports is the devnet airdrop size a bare POST
// /api/wallets/{addr}/airdrop without a body requests (spec.md section
// 6: "default N=1" sol).
const defaultAirdropLamports = 1_000_000_000

// confirmAirdropTimeout bounds how long Airdrop waits for the
// requested lamports to confirm.
const confirmAirdropTimeout = 30 * time.Second

// WalletHandler resolves the /api/wallets routes spec.md section 6
// lists: wallet listing/creation, public and confidential balance
// reads, devnet airdrop, deposit, and withdraw.
type WalletHandler struct {
	wallets    *wallet.Service
	database   *db.DB
	rpc        solanarpc.Client
	transfer   *transfer.Engine
	commitment rpc.CommitmentType
}

// NewWalletHandler builds a WalletHandler.
func NewWalletHandler(wallets *wallet.Service, database *db.DB, rpcClient solanarpc.Client, transferEngine *transfer.Engine, commitment rpc.CommitmentType) *WalletHandler {
	return &WalletHandler{wallets: wallets, database: database, rpc: rpcClient, transfer: transferEngine, commitment: commitment}
}

// RegisterRoutes mounts every wallet route behind the supplied
// authentication middleware.
func (h *WalletHandler) RegisterRoutes(app *fiber.App, auth *middleware.AuthMiddleware) {
	group := app.Group("/api/wallets", auth.Authenticate())
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Get("/:addr/balance", h.Balance)
	group.Get("/:addr/balance/solana", h.SolanaBalance)
	group.Post("/:addr/airdrop", h.Airdrop)
	group.Post("/:addr/deposit", h.Deposit)
	group.Post("/:addr/withdraw", h.Withdraw)
}

func (h *WalletHandler) userID(c fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		return uuid.UUID{}, apperr.Wrap(apperr.Unauthorized, "invalid user id in session", err)
	}
	return id, nil
}

// authorizeOwner loads the wallet at address addr and rejects the
// request unless it belongs to callerID. Every balance/funding route
// keyed by wallet address MUST call this before touching the wallet:
// address ownership is not implied by holding a valid session, only by
// owning the wallet named in the path.
func (h *WalletHandler) authorizeOwner(ctx fiber.Ctx, callerID uuid.UUID, addr string) (*db.Wallet, error) {
	w, err := h.database.GetWalletByPubkey(ctx.Context(), addr)
	if err != nil {
		if errors.Is(err, db.ErrWalletNotFound) {
			return nil, apperr.New(apperr.NotFound, "wallet not found")
		}
		return nil, apperr.Wrap(apperr.DatabaseError, "failed to look up wallet", err)
	}
	if w.UserID != callerID {
		return nil, apperr.New(apperr.Unauthorized, "wallet does not belong to the authenticated user")
	}
	return w, nil
}

// List returns the caller's wallets. The current schema provisions at
// most one wallet per user, so this is always a zero- or one-element
// array (spec.md section 6: "GET /api/wallets" -> "array of wallet
// pubkeys").
func (h *WalletHandler) List(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	w, err := h.database.GetWalletByUserID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, db.ErrWalletNotFound) {
			return c.JSON(fiber.Map{"wallets": []string{}})
		}
		return apperr.Wrap(apperr.DatabaseError, "failed to look up wallet", err)
	}
	return c.JSON(fiber.Map{"wallets": []string{w.Pubkey}})
}

type createWalletRequest struct {
	PrivateKey string `json:"privateKey,omitempty"`
}

// Create provisions the caller's wallet, importing a caller-supplied
// raw private key when present instead of generating one (spec.md
// section 6: "optional raw seed bytes if the signer backend supports
// import").
func (h *WalletHandler) Create(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}

	var req createWalletRequest
	_ = c.Bind().Body(&req)

	var w *db.Wallet
	if req.PrivateKey != "" {
		w, _, err = h.wallets.Import(c.Context(), userID, req.PrivateKey)
	} else {
		w, _, err = h.wallets.Provision(c.Context(), userID)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"pubkey": w.Pubkey})
}

type balanceResponse struct {
	Owner            string                  `json:"owner"`
	Mint             string                  `json:"mint"`
	TokenAccount     string                  `json:"tokenAccount"`
	PublicBalance    uint64                  `json:"publicBalance"`
	EncryptedBalance encryptedBalancePayload `json:"encryptedBalance"`
}

type encryptedBalancePayload struct {
	Pending   uint64 `json:"pending"`
	Available uint64 `json:"available"`
}

// Balance returns the confidential balance for addr's ATA over ?mint=,
// authorizing the caller against the wallet first.
func (h *WalletHandler) Balance(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	addr := c.Params("addr")
	w, err := h.authorizeOwner(c, userID, addr)
	if err != nil {
		return err
	}

	mintParam := c.Query("mint")
	if mintParam == "" {
		return apperr.New(apperr.BadRequest, "mint query parameter is required")
	}
	mint, err := solana.PublicKeyFromBase58(mintParam)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid mint", err)
	}
	owner, err := solana.PublicKeyFromBase58(w.Pubkey)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to decode stored wallet pubkey", err)
	}
	sgn, err := wallet.Signer(w)
	if err != nil {
		return apperr.Wrap(apperr.KeyDerivationFailed, "failed to reconstruct wallet signer", err)
	}

	ata, _, err := splttoken2022.FindAssociatedTokenAddress(owner, mint, splttoken2022.ProgramID)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "failed to derive associated token account", err)
	}

	data, _, ok, err := h.rpc.GetAccountInfo(c.Context(), ata)
	if err != nil {
		return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch token account", err)
	}
	if !ok {
		return apperr.New(apperr.NotFound, "token account not found")
	}
	base, err := splttoken2022.DecodeAccount(data)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "failed to decode token account", err)
	}

	seed, err := keys.ATASeed(owner, mint)
	if err != nil {
		return apperr.Wrap(apperr.KeyDerivationFailed, "failed to build key seed", err)
	}
	k, err := keys.Derive(c.Context(), sgn, seed)
	if err != nil {
		return err
	}

	reconciler := balance.New(h.rpc, tx.NewEngine(h.rpc, sgn))
	snap, err := reconciler.CurrentSnapshot(c.Context(), ata, k)
	if err != nil {
		return err
	}

	return c.JSON(balanceResponse{
		Owner:         owner.String(),
		Mint:          mint.String(),
		TokenAccount:  ata.String(),
		PublicBalance: base.Amount,
		EncryptedBalance: encryptedBalancePayload{
			Pending:   snap.Pending,
			Available: snap.Available,
		},
	})
}

// SolanaBalance returns addr's native lamport balance.
func (h *WalletHandler) SolanaBalance(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	addr := c.Params("addr")
	w, err := h.authorizeOwner(c, userID, addr)
	if err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(w.Pubkey)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to decode stored wallet pubkey", err)
	}
	lamports, err := h.rpc.GetBalance(c.Context(), owner)
	if err != nil {
		return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch lamport balance", err)
	}
	return c.JSON(fiber.Map{"lamports": lamports})
}

type airdropRequest struct {
	Sol uint64 `json:"sol,omitempty"`
}

// Airdrop requests devnet lamports for addr.
func (h *WalletHandler) Airdrop(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	addr := c.Params("addr")
	w, err := h.authorizeOwner(c, userID, addr)
	if err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(w.Pubkey)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to decode stored wallet pubkey", err)
	}

	var req airdropRequest
	_ = c.Bind().Body(&req)
	lamports := defaultAirdropLamports
	if req.Sol > 0 {
		lamports = int(req.Sol) * defaultAirdropLamports
	}

	sig, err := h.rpc.RequestAirdrop(c.Context(), owner, uint64(lamports))
	if err != nil {
		return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to request airdrop", err)
	}
	if err := h.rpc.ConfirmTransaction(c.Context(), sig, h.commitment, confirmAirdropTimeout); err != nil {
		return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to confirm airdrop", err)
	}
	return c.JSON(fiber.Map{"signature": sig.String()})
}

type depositRequest struct {
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

type transactionPayload struct {
	Label     string `json:"label"`
	Signature string `json:"signature"`
}

// Deposit moves amount of mint from addr's public balance into its
// confidential available balance.
func (h *WalletHandler) Deposit(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	addr := c.Params("addr")
	w, err := h.authorizeOwner(c, userID, addr)
	if err != nil {
		return err
	}

	var req depositRequest
	if err := c.Bind().Body(&req); err != nil || req.Mint == "" || req.Amount == 0 {
		return apperr.New(apperr.BadRequest, "mint and a strictly positive amount are required")
	}
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid mint", err)
	}
	owner, err := solana.PublicKeyFromBase58(w.Pubkey)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseError, "failed to decode stored wallet pubkey", err)
	}
	sgn, err := wallet.Signer(w)
	if err != nil {
		return apperr.Wrap(apperr.KeyDerivationFailed, "failed to reconstruct wallet signer", err)
	}

	snap, err := mintstate.New(h.rpc).Fetch(c.Context(), mint)
	if err != nil {
		return err
	}

	setup := account.New(h.rpc)
	seed, err := keys.ATASeed(owner, mint)
	if err != nil {
		return apperr.Wrap(apperr.KeyDerivationFailed, "failed to build key seed", err)
	}
	k, err := keys.Derive(c.Context(), sgn, seed)
	if err != nil {
		return err
	}
	plan, err := setup.Ensure(c.Context(), owner, owner, mint, k)
	if err != nil {
		return err
	}

	var transactions []transactionPayload
	if len(plan.Instructions) > 0 {
		engine := tx.NewEngine(h.rpc, sgn)
		sig, err := engine.SubmitAndConfirm(c.Context(), plan.Instructions, owner, h.commitment)
		if err != nil {
			return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to configure confidential account", err)
		}
		transactions = append(transactions, transactionPayload{Label: "Configure Account", Signature: sig.String()})
	}

	reconciler := balance.New(h.rpc, tx.NewEngine(h.rpc, sgn))
	results, err := reconciler.Deposit(c.Context(), owner, mint, plan.ATA, snap.Decimals(), req.Amount, k)
	for _, r := range results {
		transactions = append(transactions, transactionPayload{Label: r.Label, Signature: r.Signature.String()})
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"transactions": transactions})
}

type withdrawRequest struct {
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

// Withdraw moves amount of mint from addr's confidential available
// balance back to its public balance.
func (h *WalletHandler) Withdraw(c fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	addr := c.Params("addr")
	if _, err := h.authorizeOwner(c, userID, addr); err != nil {
		return err
	}

	var req withdrawRequest
	if err := c.Bind().Body(&req); err != nil || req.Mint == "" || req.Amount == 0 {
		return apperr.New(apperr.BadRequest, "mint and a strictly positive amount are required")
	}
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid mint", err)
	}

	result, err := h.transfer.Withdraw(c.Context(), userID, mint, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transactions": phasePayloads(result.Phases)})
}

func phasePayloads(phases []pipeline.PhaseResult) []transactionPayload {
	out := make([]transactionPayload, 0, len(phases))
	for _, p := range phases {
		out = append(out, transactionPayload{Label: p.Label, Signature: p.Signature.String()})
	}
	return out
}
