// Package balance implements BalanceReconciler (spec.md section 4.3):
// the state machine that moves funds from a confidential account's
// public balance into its available confidential balance whenever a
// caller needs more available balance than is currently on hand.
package balance

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"ctcustody/internal/apperr"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/keys"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
	"ctcustody/internal/tx"
)

// Reconciler resolves BalanceReconciler's ensure_confidential_available
// operation.
type Reconciler struct {
	rpc    solanarpc.Client
	signer tx.Submitter
}

// New builds a Reconciler over the given RPC client and transaction
// submitter.
func New(rpc solanarpc.Client, submitter tx.Submitter) *Reconciler {
	return &Reconciler{rpc: rpc, signer: submitter}
}

// Snapshot is the decrypted view of a confidential account's balances
// BalanceReconciler reasons over.
type Snapshot struct {
	Available                   uint64
	Pending                     uint64
	PendingBalanceCreditCounter uint64
	DecryptableAvailable        elgamal.EncryptedBalance
}

// readSnapshot decrypts (pending_lo, pending_hi, decryptable_available)
// from the ATA's ConfidentialTransferAccount extension, per spec.md
// section 4.3 step 1.
func readSnapshot(ctx context.Context, rpcClient solanarpc.Client, ata solana.PublicKey, k keys.ConfidentialKeys) (Snapshot, error) {
	data, _, ok, err := rpcClient.GetAccountInfo(ctx, ata)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch token account", err)
	}
	if !ok {
		return Snapshot{}, apperr.New(apperr.NotFound, fmt.Sprintf("token account %s not found", ata))
	}

	ext, found, err := splttoken2022.FindConfidentialTransferAccountExtension(data)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.BadRequest, "failed to decode confidential transfer account extension", err)
	}
	if !found {
		return Snapshot{}, apperr.New(apperr.BadRequest, "token account is not configured for confidential transfers")
	}

	pendingLoCiphertext, err := decodeCiphertext(ext.PendingBalanceLo)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decode pending_lo ciphertext", err)
	}
	pendingHiCiphertext, err := decodeCiphertext(ext.PendingBalanceHi)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decode pending_hi ciphertext", err)
	}

	pendingLo, err := k.ElGamal.Secret.DecryptPending(pendingLoCiphertext)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt pending_lo", err)
	}
	pendingHi, err := k.ElGamal.Secret.DecryptPending(pendingHiCiphertext)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt pending_hi", err)
	}
	pending := pendingHi<<16 + pendingLo

	decryptableBalance, err := elgamal.EncryptedBalanceFromBytes(ext.DecryptableAvailableBalance)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decode decryptable available balance", err)
	}
	available, err := k.AE.Decrypt(decryptableBalance)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt available balance", err)
	}

	return Snapshot{
		Available:                   available,
		Pending:                     pending,
		PendingBalanceCreditCounter: ext.PendingBalanceCreditCounter,
		DecryptableAvailable:        decryptableBalance,
	}, nil
}

func decodeCiphertext(limb [64]byte) (elgamal.Ciphertext, error) {
	var commitmentBytes, handleBytes [32]byte
	copy(commitmentBytes[:], limb[0:32])
	copy(handleBytes[:], limb[32:64])
	return elgamal.CiphertextFromBytes(commitmentBytes, handleBytes)
}

// EnsureAvailable resolves ensure_confidential_available(owner, mint,
// decimals, amountRequired), per spec.md section 4.3's state machine.
func (r *Reconciler) EnsureAvailable(ctx context.Context, owner, mint, ata solana.PublicKey, decimals uint8, amountRequired uint64, k keys.ConfidentialKeys) error {
	snap, err := readSnapshot(ctx, r.rpc, ata, k)
	if err != nil {
		return err
	}
	if snap.Available >= amountRequired {
		return nil
	}

	if snap.Pending == 0 {
		depositAmount := amountRequired - snap.Available
		if depositAmount == 0 {
			return apperr.New(apperr.BadRequest, "deposit amount must be strictly positive")
		}
		depositIx := splttoken2022.NewDepositInstruction(ata, mint, owner, depositAmount, decimals)
		if _, err := r.signer.SubmitAndConfirm(ctx, []solana.Instruction{depositIx}, owner, rpc.CommitmentConfirmed); err != nil {
			return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to submit deposit", err)
		}

		snap, err = readSnapshot(ctx, r.rpc, ata, k)
		if err != nil {
			return err
		}
	}

	newAvailable := snap.Available + snap.Pending
	newDecryptable, err := k.AE.Encrypt(newAvailable)
	if err != nil {
		return apperr.Wrap(apperr.ProofGenerationFailed, "failed to encrypt new available balance", err)
	}

	applyIx := splttoken2022.NewApplyPendingBalanceInstruction(ata, owner, snap.PendingBalanceCreditCounter, newDecryptable.Bytes())
	if _, err := r.signer.SubmitAndConfirm(ctx, []solana.Instruction{applyIx}, owner, rpc.CommitmentConfirmed); err != nil {
		return apperr.Wrap(apperr.RPCSubmissionFailed, "failed to submit apply_pending_balance", err)
	}

	final, err := readSnapshot(ctx, r.rpc, ata, k)
	if err != nil {
		return err
	}
	if final.Available < amountRequired {
		return apperr.NewInsufficientBalance(final.Available, final.Pending, amountRequired)
	}
	return nil
}

// ApplyPending folds any pending balance into available without ever
// depositing from the public balance, the narrower reconciliation a
// withdraw needs (spec.md section 6: "apply pending, then 2-phase
// withdraw proofs, then withdraw, then close proofs" — withdraw never
// manufactures new pending credit the way a transfer's EnsureAvailable
// may).
func (r *Reconciler) ApplyPending(ctx context.Context, owner, ata solana.PublicKey, k keys.ConfidentialKeys) (Snapshot, error) {
	snap, err := readSnapshot(ctx, r.rpc, ata, k)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Pending == 0 {
		return snap, nil
	}

	newAvailable := snap.Available + snap.Pending
	newDecryptable, err := k.AE.Encrypt(newAvailable)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.ProofGenerationFailed, "failed to encrypt new available balance", err)
	}

	applyIx := splttoken2022.NewApplyPendingBalanceInstruction(ata, owner, snap.PendingBalanceCreditCounter, newDecryptable.Bytes())
	if _, err := r.signer.SubmitAndConfirm(ctx, []solana.Instruction{applyIx}, owner, rpc.CommitmentConfirmed); err != nil {
		return Snapshot{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to submit apply_pending_balance", err)
	}

	return readSnapshot(ctx, r.rpc, ata, k)
}

// DepositResult reports the one or two transactions Deposit submitted,
// labeled the way transfer.Result.Phases labels a transfer's phases.
type DepositResult struct {
	Label     string
	Signature solana.Signature
}

// Deposit moves amount from owner's public balance into ata's pending
// balance and immediately applies it to available, unconditionally
// (spec.md section 6: "deposit public balance into pending, then apply
// it"), unlike EnsureAvailable which only tops up the shortfall needed
// to cover a pending operation.
func (r *Reconciler) Deposit(ctx context.Context, owner, mint, ata solana.PublicKey, decimals uint8, amount uint64, k keys.ConfidentialKeys) ([]DepositResult, error) {
	if amount == 0 {
		return nil, apperr.New(apperr.BadRequest, "deposit amount must be strictly positive")
	}

	var results []DepositResult

	depositIx := splttoken2022.NewDepositInstruction(ata, mint, owner, amount, decimals)
	sig, err := r.signer.SubmitAndConfirm(ctx, []solana.Instruction{depositIx}, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to submit deposit", err)
	}
	results = append(results, DepositResult{Label: "Deposit", Signature: sig})

	snap, err := readSnapshot(ctx, r.rpc, ata, k)
	if err != nil {
		return results, err
	}
	newAvailable := snap.Available + snap.Pending
	newDecryptable, err := k.AE.Encrypt(newAvailable)
	if err != nil {
		return results, apperr.Wrap(apperr.ProofGenerationFailed, "failed to encrypt new available balance", err)
	}

	applyIx := splttoken2022.NewApplyPendingBalanceInstruction(ata, owner, snap.PendingBalanceCreditCounter, newDecryptable.Bytes())
	sig, err = r.signer.SubmitAndConfirm(ctx, []solana.Instruction{applyIx}, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return results, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to submit apply_pending_balance", err)
	}
	results = append(results, DepositResult{Label: "Apply Pending Balance", Signature: sig})

	return results, nil
}

// CurrentSnapshot exposes the decrypted balance view EnsureAvailable
// reasons over, so a caller that has just ensured sufficient available
// balance can read back the decryptable-available ciphertext
// ProofGenerator needs without re-deriving the decoding logic.
func (r *Reconciler) CurrentSnapshot(ctx context.Context, ata solana.PublicKey, k keys.ConfidentialKeys) (Snapshot, error) {
	return readSnapshot(ctx, r.rpc, ata, k)
}
