package tx

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"ctcustody/internal/signer"
	"ctcustody/internal/solanarpc"
)

// Submitter builds, signs, submits, and confirms one transaction. The
// balance and pipeline packages depend on this interface, not on
// solanarpc.Client directly, so tests can substitute a fake without a
// live RPC endpoint.
type Submitter interface {
	SubmitAndConfirm(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey, commitment rpc.CommitmentType) (solana.Signature, error)
}

// confirmTimeout bounds how long Engine waits for a submitted
// transaction to reach the requested commitment level.
const confirmTimeout = 30 * time.Second

// Engine is the production Submitter: it fetches a fresh blockhash,
// partial-signs with every configured signer, submits, and confirms.
type Engine struct {
	rpc     solanarpc.Client
	signers []signer.Signer
}

// NewEngine builds an Engine that signs every submitted transaction
// with each of signers in order (spec.md section 4.5: "all three MUST
// sign Phase A" is the multi-signer case this supports).
func NewEngine(rpc solanarpc.Client, signers ...signer.Signer) *Engine {
	return &Engine{rpc: rpc, signers: signers}
}

// SubmitAndConfirm builds a transaction from instructions, signs it
// with every configured signer, submits it, and blocks until it
// reaches commitment.
func (e *Engine) SubmitAndConfirm(ctx context.Context, instructions []solana.Instruction, feePayer solana.PublicKey, commitment rpc.CommitmentType) (solana.Signature, error) {
	blockhash, err := e.rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("tx: failed to fetch blockhash: %w", err)
	}

	txn, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("tx: failed to build transaction: %w", err)
	}

	for _, s := range e.signers {
		if err := PartialSign(ctx, txn, s); err != nil {
			return solana.Signature{}, fmt.Errorf("tx: failed to partial-sign transaction: %w", err)
		}
	}

	sig, err := e.rpc.SendTransaction(ctx, txn)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("tx: failed to submit transaction: %w", err)
	}

	if err := e.rpc.ConfirmTransaction(ctx, sig, commitment, confirmTimeout); err != nil {
		return sig, fmt.Errorf("tx: failed to confirm transaction %s: %w", sig, err)
	}
	return sig, nil
}

// SerializedSize returns the wire size of txn, the quantity Phase
// submission must keep under the transport's limit (spec.md section
// 4.5: "implementers MUST confirm that each phase's serialized
// transaction fits the transport's size limit").
func SerializedSize(txn *solana.Transaction) (int, error) {
	b, err := txn.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("tx: failed to serialize transaction: %w", err)
	}
	return len(b), nil
}
