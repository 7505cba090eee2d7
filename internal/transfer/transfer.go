// Package transfer implements the confidential-transfer orchestration
// engine spec.md section 2 names as the HARD CORE's data flow: sender
// authentication → sender wallet lookup → KeyDerivation for (sender,
// mint) and (recipient, mint) → MintIntrospection → AccountSetup
// (recipient ATA if absent) → BalanceReconciler → ProofGenerator →
// ProofPipeline. Every step below is already implemented by its own
// package; this one wires them in the order spec.md prescribes.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"

	"ctcustody/internal/account"
	"ctcustody/internal/apperr"
	"ctcustody/internal/balance"
	"ctcustody/internal/db"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/keys"
	"ctcustody/internal/mintstate"
	"ctcustody/internal/pipeline"
	"ctcustody/internal/proofgen"
	"ctcustody/internal/signer"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
	"ctcustody/internal/tx"
	"ctcustody/internal/wallet"
)

// reservedWalletFundingLamports is the lamport airdrop a brand-new
// reserved wallet receives so it can afford its own confidential ATA
// rent before its owner ever logs in (spec.md section 8 scenario C:
// "funds it with 1e9 lamports").
const reservedWalletFundingLamports = 1_000_000_000

// Engine wires KeyDerivation, MintIntrospection, AccountSetup,
// BalanceReconciler, ProofGenerator, and ProofPipeline into the three
// operations spec.md's HARD CORE supports: transfer, confidential
// mint, and withdraw.
type Engine struct {
	rpc             solanarpc.Client
	database        *db.DB
	wallets         *wallet.Service
	authoritySigner signer.Signer
	commitment      rpc.CommitmentType
}

// New builds an Engine. authoritySigner is the process-wide global
// authority (spec.md section 4.9) used as mint authority for the Mint
// operation; it may be nil if this Engine is only used for Transfer
// and Withdraw.
func New(rpcClient solanarpc.Client, database *db.DB, wallets *wallet.Service, authoritySigner signer.Signer, commitment rpc.CommitmentType) *Engine {
	return &Engine{
		rpc:             rpcClient,
		database:        database,
		wallets:         wallets,
		authoritySigner: authoritySigner,
		commitment:      commitment,
	}
}

// Recipient names a transfer's destination, either by Solana public
// key (the recipient must already hold a custodial wallet) or by
// platform username (spec.md section 6: "resolves recipient by
// platform username, creating a reserved wallet if absent").
type Recipient struct {
	Pubkey   *solana.PublicKey
	Username string
}

// Result reports every on-chain transaction an operation submitted,
// in the order spec.md's scenario A expects them, plus whether the
// recipient's wallet was freshly reserved.
type Result struct {
	Phases          []pipeline.PhaseResult
	RecipientATA    solana.PublicKey
	RecipientWallet solana.PublicKey
	NewWallet       bool
}

func (e *Engine) loadWallet(ctx context.Context, userID uuid.UUID) (*db.Wallet, signer.Signer, error) {
	w, err := e.database.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrWalletNotFound) {
			return nil, nil, apperr.New(apperr.NotFound, "user has no wallet")
		}
		return nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to look up wallet", err)
	}
	sgn, err := wallet.Signer(w)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KeyDerivationFailed, "failed to reconstruct wallet signer", err)
	}
	return w, sgn, nil
}

// resolveRecipient looks up (or, for a username addressed to nobody
// yet, reserves) the recipient's wallet. feePayer/feePayerSigner fund
// a brand-new reserved wallet's rent (spec.md section 8 scenario C).
func (e *Engine) resolveRecipient(ctx context.Context, r Recipient, feePayer solana.PublicKey, feePayerSigner signer.Signer) (*db.Wallet, bool, error) {
	if r.Pubkey != nil {
		w, err := e.database.GetWalletByPubkey(ctx, r.Pubkey.String())
		if err != nil {
			if errors.Is(err, db.ErrWalletNotFound) {
				return nil, false, apperr.New(apperr.NotFound, fmt.Sprintf("no custodial wallet for pubkey %s", r.Pubkey))
			}
			return nil, false, apperr.Wrap(apperr.DatabaseError, "failed to resolve recipient by pubkey", err)
		}
		return w, false, nil
	}
	if r.Username == "" {
		return nil, false, apperr.New(apperr.BadRequest, "recipient requires a pubkey or username")
	}

	user, err := e.database.GetUserByUsername(ctx, r.Username)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			return nil, false, apperr.Wrap(apperr.DatabaseError, "failed to resolve recipient by username", err)
		}
		reserved, err := e.database.CreateReservedUser(ctx, "telegram", r.Username)
		if err != nil {
			return nil, false, apperr.Wrap(apperr.DatabaseError, "failed to reserve recipient user", err)
		}
		w, err := e.fundNewWallet(ctx, reserved.ID, feePayer, feePayerSigner)
		return w, true, err
	}

	w, err := e.database.GetWalletByUserID(ctx, user.ID)
	if err == nil {
		return w, false, nil
	}
	if !errors.Is(err, db.ErrWalletNotFound) {
		return nil, false, apperr.Wrap(apperr.DatabaseError, "failed to resolve recipient wallet", err)
	}
	w, err := e.fundNewWallet(ctx, user.ID, feePayer, feePayerSigner)
	return w, true, err
}

func (e *Engine) fundNewWallet(ctx context.Context, userID uuid.UUID, feePayer solana.PublicKey, feePayerSigner signer.Signer) (*db.Wallet, error) {
	w, _, err := e.wallets.Provision(ctx, userID)
	if err != nil {
		return nil, err
	}
	recipientPub, err := solana.PublicKeyFromBase58(w.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode newly provisioned pubkey: %w", err)
	}
	fundIx := splttoken2022.NewTransferLamportsInstruction(feePayer, recipientPub, reservedWalletFundingLamports)
	engine := tx.NewEngine(e.rpc, feePayerSigner)
	if _, err := engine.SubmitAndConfirm(ctx, []solana.Instruction{fundIx}, feePayer, e.commitment); err != nil {
		return nil, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fund reserved wallet", err)
	}
	return w, nil
}

func mintDetails(ctx context.Context, rpcClient solanarpc.Client, mint solana.PublicKey) (mintstate.Snapshot, elgamal.PublicKey, bool, error) {
	introspector := mintstate.New(rpcClient)
	snap, err := introspector.Fetch(ctx, mint)
	if err != nil {
		return mintstate.Snapshot{}, elgamal.PublicKey{}, false, err
	}
	supportsConfidential := false
	for _, f := range snap.EnabledConfidentialFeatures() {
		if f == mintstate.FeatureConfidentialTransferMint {
			supportsConfidential = true
		}
	}
	if !supportsConfidential {
		return mintstate.Snapshot{}, elgamal.PublicKey{}, false, apperr.New(apperr.BadRequest, fmt.Sprintf("mint %s does not support confidential transfers", mint))
	}
	auditorPubkey, hasAuditor, err := snap.AuditorElGamalPubkey()
	if err != nil {
		return mintstate.Snapshot{}, elgamal.PublicKey{}, false, fmt.Errorf("transfer: failed to decode auditor pubkey: %w", err)
	}
	return snap, auditorPubkey, hasAuditor, nil
}

// Transfer moves amount of mint from senderUserID's confidential
// balance to recipient's, performing recipient provisioning, sender
// balance reconciliation, proof generation, and the five-phase
// ProofPipeline in sequence (spec.md section 2, section 8 scenario A).
func (e *Engine) Transfer(ctx context.Context, senderUserID uuid.UUID, mint solana.PublicKey, recipient Recipient, amount uint64) (*Result, error) {
	if amount == 0 {
		return nil, apperr.New(apperr.BadRequest, "transfer amount must be strictly positive")
	}

	senderWallet, senderSigner, err := e.loadWallet(ctx, senderUserID)
	if err != nil {
		return nil, err
	}
	senderPub, err := solana.PublicKeyFromBase58(senderWallet.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode sender pubkey: %w", err)
	}

	recipientWallet, isNew, err := e.resolveRecipient(ctx, recipient, senderPub, senderSigner)
	if err != nil {
		return nil, err
	}
	recipientPub, err := solana.PublicKeyFromBase58(recipientWallet.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode recipient pubkey: %w", err)
	}
	recipientSigner, err := wallet.Signer(recipientWallet)
	if err != nil {
		return nil, apperr.Wrap(apperr.KeyDerivationFailed, "failed to reconstruct recipient signer", err)
	}

	snap, auditorPubkey, hasAuditor, err := mintDetails(ctx, e.rpc, mint)
	if err != nil {
		return nil, err
	}
	decimals := snap.Decimals()

	senderSeed, err := keys.ATASeed(senderPub, mint)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to build sender seed: %w", err)
	}
	senderKeys, err := keys.Derive(ctx, senderSigner, senderSeed)
	if err != nil {
		return nil, err
	}

	recipientSeed, err := keys.ATASeed(recipientPub, mint)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to build recipient seed: %w", err)
	}
	recipientKeys, err := keys.Derive(ctx, recipientSigner, recipientSeed)
	if err != nil {
		return nil, err
	}

	setup := account.New(e.rpc)
	senderPlan, err := setup.Ensure(ctx, senderPub, senderPub, mint, senderKeys)
	if err != nil {
		return nil, err
	}
	recipientPlan, err := setup.Ensure(ctx, senderPub, recipientPub, mint, recipientKeys)
	if err != nil {
		return nil, err
	}

	var setupResults []pipeline.PhaseResult
	if len(senderPlan.Instructions) > 0 {
		engine := tx.NewEngine(e.rpc, senderSigner)
		sig, err := engine.SubmitAndConfirm(ctx, senderPlan.Instructions, senderPub, e.commitment)
		if err != nil {
			return nil, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to configure sender confidential account", err)
		}
		setupResults = append(setupResults, pipeline.PhaseResult{Label: "Configure Sender Account", Signature: sig})
	}
	if len(recipientPlan.Instructions) > 0 {
		engine := tx.NewEngine(e.rpc, senderSigner, recipientSigner)
		sig, err := engine.SubmitAndConfirm(ctx, recipientPlan.Instructions, senderPub, e.commitment)
		if err != nil {
			return nil, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to configure recipient confidential account", err)
		}
		setupResults = append(setupResults, pipeline.PhaseResult{Label: "Configure Recipient Account", Signature: sig})
	}

	reconciler := balance.New(e.rpc, tx.NewEngine(e.rpc, senderSigner))
	if err := reconciler.EnsureAvailable(ctx, senderPub, mint, senderPlan.ATA, decimals, amount, senderKeys); err != nil {
		return nil, err
	}
	current, err := reconciler.CurrentSnapshot(ctx, senderPlan.ATA, senderKeys)
	if err != nil {
		return nil, err
	}

	var auditPub *elgamal.PublicKey
	if hasAuditor {
		auditPub = &auditorPubkey
	}

	proofs, err := proofgen.GenerateTransfer(senderKeys.ElGamal.Public, recipientKeys.ElGamal.Public, auditPub, senderKeys.AE, current.DecryptableAvailable, amount)
	if err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(e.rpc, e.commitment)
	phases, runErr := orchestrator.RunTransfer(ctx, senderSigner, pipeline.TransferPlan{
		Source:      senderPlan.ATA,
		Mint:        mint,
		Destination: recipientPlan.ATA,
		Owner:       senderPub,
		Proofs:      proofs,
	})

	result := &Result{
		Phases:          append(setupResults, phases...),
		RecipientATA:    recipientPlan.ATA,
		RecipientWallet: recipientPub,
		NewWallet:       isNew,
	}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// Withdraw moves amount of mint from ownerUserID's confidential
// available balance back to its public balance: apply any pending
// credit, generate the (equality, range) proof pair, then run the
// withdraw variant of ProofPipeline (spec.md section 4.4/6).
func (e *Engine) Withdraw(ctx context.Context, ownerUserID uuid.UUID, mint solana.PublicKey, amount uint64) (*Result, error) {
	if amount == 0 {
		return nil, apperr.New(apperr.BadRequest, "withdraw amount must be strictly positive")
	}

	ownerWallet, ownerSigner, err := e.loadWallet(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	ownerPub, err := solana.PublicKeyFromBase58(ownerWallet.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode owner pubkey: %w", err)
	}

	snap, _, _, err := mintDetails(ctx, e.rpc, mint)
	if err != nil {
		return nil, err
	}
	decimals := snap.Decimals()

	seed, err := keys.ATASeed(ownerPub, mint)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to build owner seed: %w", err)
	}
	ownerKeys, err := keys.Derive(ctx, ownerSigner, seed)
	if err != nil {
		return nil, err
	}

	setup := account.New(e.rpc)
	plan, err := setup.Ensure(ctx, ownerPub, ownerPub, mint, ownerKeys)
	if err != nil {
		return nil, err
	}
	var setupResults []pipeline.PhaseResult
	if len(plan.Instructions) > 0 {
		engine := tx.NewEngine(e.rpc, ownerSigner)
		sig, err := engine.SubmitAndConfirm(ctx, plan.Instructions, ownerPub, e.commitment)
		if err != nil {
			return nil, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to configure confidential account", err)
		}
		setupResults = append(setupResults, pipeline.PhaseResult{Label: "Configure Account", Signature: sig})
	}

	reconciler := balance.New(e.rpc, tx.NewEngine(e.rpc, ownerSigner))
	applied, err := reconciler.ApplyPending(ctx, ownerPub, plan.ATA, ownerKeys)
	if err != nil {
		return nil, err
	}
	if applied.Available < amount {
		return nil, apperr.NewInsufficientBalance(applied.Available, applied.Pending, amount)
	}

	proofs, err := proofgen.GenerateWithdraw(ownerKeys.ElGamal.Public, ownerKeys.AE, applied.DecryptableAvailable, amount)
	if err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(e.rpc, e.commitment)
	phases, runErr := orchestrator.RunWithdraw(ctx, ownerSigner, pipeline.WithdrawPlan{
		Account:  plan.ATA,
		Mint:     mint,
		Owner:    ownerPub,
		Amount:   amount,
		Decimals: decimals,
		Proofs:   proofs,
	})

	result := &Result{Phases: append(setupResults, phases...), RecipientATA: plan.ATA, RecipientWallet: ownerPub}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// Mint confidentially mints amount of mint to recipient, using the
// process-wide authority signer and the mint's ConfidentialMintBurn
// supply keys (spec.md section 4.4 mint variant, section 6
// "/api/tokens/{mint}/mint").
func (e *Engine) Mint(ctx context.Context, mint solana.PublicKey, recipient Recipient, amount uint64) (*Result, error) {
	if e.authoritySigner == nil {
		return nil, apperr.New(apperr.Unauthorized, "no mint authority configured")
	}
	if amount == 0 {
		return nil, apperr.New(apperr.BadRequest, "mint amount must be strictly positive")
	}

	snap, err := mintstate.New(e.rpc).Fetch(ctx, mint)
	if err != nil {
		return nil, err
	}
	supplyPubkeyRaw, hasSupply, err := snap.SupplyElGamalPubkey()
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode supply ElGamal pubkey: %w", err)
	}
	if !hasSupply {
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("mint %s does not support confidential mint/burn extension", mint))
	}
	decryptableSupplyBytes, _ := snap.DecryptableSupply()
	currentDecryptableSupply, err := elgamal.EncryptedBalanceFromBytes(decryptableSupplyBytes)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode decryptable supply: %w", err)
	}

	supplySeed := mint.Bytes()
	supplyKeys, err := keys.Derive(ctx, e.authoritySigner, supplySeed)
	if err != nil {
		return nil, err
	}

	recipientWallet, isNew, err := e.resolveRecipient(ctx, recipient, e.authoritySigner.PublicKey(), e.authoritySigner)
	if err != nil {
		return nil, err
	}
	recipientPub, err := solana.PublicKeyFromBase58(recipientWallet.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to decode recipient pubkey: %w", err)
	}
	recipientSigner, err := wallet.Signer(recipientWallet)
	if err != nil {
		return nil, apperr.Wrap(apperr.KeyDerivationFailed, "failed to reconstruct recipient signer", err)
	}
	recipientSeed, err := keys.ATASeed(recipientPub, mint)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to build recipient seed: %w", err)
	}
	recipientKeys, err := keys.Derive(ctx, recipientSigner, recipientSeed)
	if err != nil {
		return nil, err
	}

	setup := account.New(e.rpc)
	recipientPlan, err := setup.Ensure(ctx, e.authoritySigner.PublicKey(), recipientPub, mint, recipientKeys)
	if err != nil {
		return nil, err
	}
	var setupResults []pipeline.PhaseResult
	if len(recipientPlan.Instructions) > 0 {
		engine := tx.NewEngine(e.rpc, e.authoritySigner, recipientSigner)
		sig, err := engine.SubmitAndConfirm(ctx, recipientPlan.Instructions, e.authoritySigner.PublicKey(), e.commitment)
		if err != nil {
			return nil, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to configure recipient confidential account", err)
		}
		setupResults = append(setupResults, pipeline.PhaseResult{Label: "Configure Recipient Account", Signature: sig})
	}

	proofs, err := proofgen.GenerateMint(supplyPubkeyRaw, recipientKeys.ElGamal.Public, supplyKeys.AE, currentDecryptableSupply, amount)
	if err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(e.rpc, e.commitment)
	phases, runErr := orchestrator.RunMint(ctx, e.authoritySigner, pipeline.MintPlan{
		Mint:          mint,
		Destination:   recipientPlan.ATA,
		MintAuthority: e.authoritySigner.PublicKey(),
		Proofs:        proofs,
	})

	result := &Result{
		Phases:          append(setupResults, phases...),
		RecipientATA:    recipientPlan.ATA,
		RecipientWallet: recipientPub,
		NewWallet:       isNew,
	}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}
