// Package pipeline implements ProofPipeline (spec.md section 4.5): the
// strict five-phase transaction sequence a confidential transfer or
// mint submits because its three proofs plus the transfer instruction
// do not fit in one transaction.
package pipeline

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"ctcustody/internal/apperr"
	"ctcustody/internal/proofgen"
	"ctcustody/internal/signer"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
	"ctcustody/internal/tx"
)

// contextHeaderSpace is the fixed ProofContextState<U> header every
// proof-context account carries ahead of its proof-specific payload:
// a one-byte proof type tag plus the 32-byte verifying authority.
const contextHeaderSpace = 1 + 32

const (
	equalityContextSpace = contextHeaderSpace + 32*6
	validityContextSpace = contextHeaderSpace + validityProofLen*2
	rangeContextSpace    = contextHeaderSpace + 64*32*7
)

// PhaseResult records one confirmed phase transaction, in the order
// spec.md's scenario A expects them reported back to a caller.
type PhaseResult struct {
	Label     string
	Signature solana.Signature
}

// Orchestrator drives Phases A through E over a single RPC client. A
// fresh Engine is built per phase because each phase signs with a
// different signer set (spec.md section 4.5: "all three MUST sign
// Phase A", later phases need only the owner or orchestrator).
type Orchestrator struct {
	rpc        solanarpc.Client
	commitment rpc.CommitmentType
}

// New builds an Orchestrator over rpc, confirming every phase at
// commitment before submitting the next.
func New(rpc solanarpc.Client, commitment rpc.CommitmentType) *Orchestrator {
	return &Orchestrator{rpc: rpc, commitment: commitment}
}

// proofAccounts is the set of three ephemeral keypairs Phase A creates
// and Phase E closes.
type proofAccounts struct {
	equality *signer.Local
	validity *signer.Local
	rangeKey *signer.Local
}

func newProofAccounts() (proofAccounts, error) {
	eq, err := solana.NewRandomPrivateKey()
	if err != nil {
		return proofAccounts{}, fmt.Errorf("pipeline: failed to generate equality proof account keypair: %w", err)
	}
	val, err := solana.NewRandomPrivateKey()
	if err != nil {
		return proofAccounts{}, fmt.Errorf("pipeline: failed to generate validity proof account keypair: %w", err)
	}
	rng, err := solana.NewRandomPrivateKey()
	if err != nil {
		return proofAccounts{}, fmt.Errorf("pipeline: failed to generate range proof account keypair: %w", err)
	}
	return proofAccounts{
		equality: signer.NewLocal(eq),
		validity: signer.NewLocal(val),
		rangeKey: signer.NewLocal(rng),
	}, nil
}

// allocate runs Phase A: one transaction funding and creating the
// three proof-context accounts, owned by the ZK ElGamal Proof program.
func (o *Orchestrator) allocate(ctx context.Context, ownerSigner signer.Signer, feePayer solana.PublicKey, accounts proofAccounts) (PhaseResult, error) {
	eqRent, err := o.rpc.GetMinimumBalanceForRentExemption(ctx, equalityContextSpace)
	if err != nil {
		return PhaseResult{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch equality context rent", err)
	}
	valRent, err := o.rpc.GetMinimumBalanceForRentExemption(ctx, validityContextSpace)
	if err != nil {
		return PhaseResult{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch validity context rent", err)
	}
	rangeRent, err := o.rpc.GetMinimumBalanceForRentExemption(ctx, rangeContextSpace)
	if err != nil {
		return PhaseResult{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch range context rent", err)
	}

	instructions := []solana.Instruction{
		splttoken2022.NewCreateAccountInstruction(feePayer, accounts.equality.PublicKey(), eqRent, equalityContextSpace, splttoken2022.ZkElGamalProofProgramID),
		splttoken2022.NewCreateAccountInstruction(feePayer, accounts.validity.PublicKey(), valRent, validityContextSpace, splttoken2022.ZkElGamalProofProgramID),
		splttoken2022.NewCreateAccountInstruction(feePayer, accounts.rangeKey.PublicKey(), rangeRent, rangeContextSpace, splttoken2022.ZkElGamalProofProgramID),
	}

	engine := tx.NewEngine(o.rpc, ownerSigner, accounts.equality, accounts.validity, accounts.rangeKey)
	sig, err := o.submit(ctx, engine, instructions, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Create Proof Accounts", Signature: sig}, nil
}

// verifyRange runs Phase B alone, because the range proof's encoding
// dominates transaction size (spec.md section 4.5: "range proofs are
// the largest, hence solo").
func (o *Orchestrator) verifyRange(ctx context.Context, ownerSigner signer.Signer, feePayer solana.PublicKey, accounts proofAccounts, rangeProof []byte) (PhaseResult, error) {
	ix := splttoken2022.NewVerifyBatchedRangeProofInstruction(accounts.rangeKey.PublicKey(), rangeProof)
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, []solana.Instruction{ix}, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Verify Proof Accounts: Range", Signature: sig}, nil
}

// verifyEqualityAndValidity runs Phase C: the equality and
// ciphertext-validity verify instructions share one transaction.
func (o *Orchestrator) verifyEqualityAndValidity(ctx context.Context, ownerSigner signer.Signer, feePayer solana.PublicKey, accounts proofAccounts, equalityProof, validityProof []byte) (PhaseResult, error) {
	instructions := []solana.Instruction{
		splttoken2022.NewVerifyCiphertextCommitmentEqualityInstruction(accounts.equality.PublicKey(), equalityProof),
		splttoken2022.NewVerifyCiphertextValidityInstruction(accounts.validity.PublicKey(), validityProof),
	}
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, instructions, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Verify Proof Accounts: Equality, Ciphertext", Signature: sig}, nil
}

// closeProofAccounts runs Phase E, refunding rent for the three
// context accounts to destination regardless of how the preceding
// phases fared (spec.md section 4.5: "on any Phase B-D failure the
// orchestrator MUST attempt Phase E").
func (o *Orchestrator) closeProofAccounts(ctx context.Context, ownerSigner signer.Signer, feePayer, destination solana.PublicKey, accounts proofAccounts) (PhaseResult, error) {
	instructions := []solana.Instruction{
		splttoken2022.NewCloseContextStateInstruction(accounts.equality.PublicKey(), destination, feePayer),
		splttoken2022.NewCloseContextStateInstruction(accounts.validity.PublicKey(), destination, feePayer),
		splttoken2022.NewCloseContextStateInstruction(accounts.rangeKey.PublicKey(), destination, feePayer),
	}
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, instructions, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Close Proof Accounts", Signature: sig}, nil
}

func (o *Orchestrator) submit(ctx context.Context, engine *tx.Engine, instructions []solana.Instruction, feePayer solana.PublicKey) (solana.Signature, error) {
	sig, err := engine.SubmitAndConfirm(ctx, instructions, feePayer, o.commitment)
	if err != nil {
		return solana.Signature{}, apperr.Wrap(apperr.RPCSubmissionFailed, "phase submission failed", err)
	}
	return sig, nil
}

// TransferPlan names the on-chain accounts a confidential transfer
// moves between; Proofs is ProofGenerator's output for this transfer.
type TransferPlan struct {
	Source, Mint, Destination, Owner solana.PublicKey
	Proofs                           *proofgen.TransferProofs
}

// RunTransfer executes Phases A-E for a confidential transfer, fee
// payer always the sender (spec.md section 4.5). Any Phase B-D
// failure still attempts Phase E before returning, so proof-context
// accounts are never left dangling owned by the orchestrator alone.
func (o *Orchestrator) RunTransfer(ctx context.Context, ownerSigner signer.Signer, plan TransferPlan) ([]PhaseResult, error) {
	accounts, err := newProofAccounts()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to allocate proof account keypairs", err)
	}

	var results []PhaseResult
	phaseA, err := o.allocate(ctx, ownerSigner, plan.Owner, accounts)
	if err != nil {
		return nil, err
	}
	results = append(results, phaseA)

	runErr := o.runTransferBody(ctx, ownerSigner, plan, accounts, &results)
	closeResult, closeErr := o.closeProofAccounts(ctx, ownerSigner, plan.Owner, plan.Owner, accounts)
	if runErr != nil {
		return results, runErr
	}
	if closeErr != nil {
		return results, closeErr
	}
	results = append(results, closeResult)
	return results, nil
}

func (o *Orchestrator) runTransferBody(ctx context.Context, ownerSigner signer.Signer, plan TransferPlan, accounts proofAccounts, results *[]PhaseResult) error {
	phaseB, err := o.verifyRange(ctx, ownerSigner, plan.Owner, accounts, encodeRange(plan.Proofs.Range))
	if err != nil {
		return err
	}
	*results = append(*results, phaseB)

	phaseC, err := o.verifyEqualityAndValidity(
		ctx, ownerSigner, plan.Owner, accounts,
		encodeEquality(plan.Proofs.Equality),
		encodeBatchedValidity(plan.Proofs.ValidityLo, plan.Proofs.ValidityHi),
	)
	if err != nil {
		return err
	}
	*results = append(*results, phaseC)

	ciphertextLo := plan.Proofs.CiphertextLo.Commitment.Bytes()
	ciphertextHi := plan.Proofs.CiphertextHi.Commitment.Bytes()
	newBalance := plan.Proofs.NewDecryptableAvailable.Bytes()

	transferIx := splttoken2022.NewTransferInstruction(
		plan.Source, plan.Mint, plan.Destination, plan.Owner,
		splttoken2022.TransferProofAccounts{
			EqualityProof:           accounts.equality.PublicKey(),
			CiphertextValidityProof: accounts.validity.PublicKey(),
			RangeProof:              accounts.rangeKey.PublicKey(),
		},
		newBalance[:],
		ciphertextLo[:],
		ciphertextHi[:],
	)
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, []solana.Instruction{transferIx}, plan.Owner)
	if err != nil {
		return err
	}
	*results = append(*results, PhaseResult{Label: "Transfer", Signature: sig})
	return nil
}

// MintPlan names the accounts a confidential mint touches. Fee payer
// is always the orchestrator's own authority (spec.md section 4.5,
// confidential-mint variant).
type MintPlan struct {
	Mint, Destination, MintAuthority solana.PublicKey
	Proofs                           *proofgen.MintProofs
}

// RunMint executes the confidential-mint variant of Phases A-E: Phase
// D uses the confidential-mint instruction, and the three proof accounts
// are closed by a separate Phase E transaction, run whether or not
// Phases B-D succeeded. No close instruction is appended to Phase D.
func (o *Orchestrator) RunMint(ctx context.Context, authoritySigner signer.Signer, plan MintPlan) ([]PhaseResult, error) {
	accounts, err := newProofAccounts()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to allocate proof account keypairs", err)
	}

	var results []PhaseResult
	phaseA, err := o.allocate(ctx, authoritySigner, plan.MintAuthority, accounts)
	if err != nil {
		return nil, err
	}
	results = append(results, phaseA)

	runErr := o.runMintBody(ctx, authoritySigner, plan, accounts, &results)
	closeResult, closeErr := o.closeProofAccounts(ctx, authoritySigner, plan.MintAuthority, plan.MintAuthority, accounts)
	if runErr != nil {
		return results, runErr
	}
	if closeErr != nil {
		return results, closeErr
	}
	results = append(results, closeResult)
	return results, nil
}

func (o *Orchestrator) runMintBody(ctx context.Context, authoritySigner signer.Signer, plan MintPlan, accounts proofAccounts, results *[]PhaseResult) error {
	phaseB, err := o.verifyRange(ctx, authoritySigner, plan.MintAuthority, accounts, encodeRange(plan.Proofs.Range))
	if err != nil {
		return err
	}
	*results = append(*results, phaseB)

	phaseC, err := o.verifyEqualityAndValidity(
		ctx, authoritySigner, plan.MintAuthority, accounts,
		encodeEquality(plan.Proofs.Equality),
		encodeBatchedValidity(plan.Proofs.ValidityLo, plan.Proofs.ValidityHi),
	)
	if err != nil {
		return err
	}
	*results = append(*results, phaseC)

	newSupply := plan.Proofs.NewDecryptableSupply.Bytes()
	newSupplyCiphertext := plan.Proofs.NewSupply.Bytes()
	ciphertextLo := plan.Proofs.CiphertextLo.Commitment.Bytes()
	ciphertextHi := plan.Proofs.CiphertextHi.Commitment.Bytes()

	mintIx := splttoken2022.NewConfidentialMintInstruction(
		plan.Mint, plan.Destination, plan.MintAuthority,
		accounts.rangeKey.PublicKey(),
		newSupplyCiphertext[:],
		newSupply[:],
		ciphertextLo[:],
		ciphertextHi[:],
	)
	engine := tx.NewEngine(o.rpc, authoritySigner)
	sig, err := o.submit(ctx, engine, []solana.Instruction{mintIx}, plan.MintAuthority)
	if err != nil {
		return err
	}
	*results = append(*results, PhaseResult{Label: "Mint", Signature: sig})
	return nil
}

// withdrawAccounts is the two-account proof-context set a withdraw
// allocates: no ciphertext-validity proof, since a withdraw discloses
// its amount in the clear and has no recipient handle to prove
// (spec.md section 4.4, withdraw variant).
type withdrawAccounts struct {
	equality *signer.Local
	rangeKey *signer.Local
}

func newWithdrawAccounts() (withdrawAccounts, error) {
	eq, err := solana.NewRandomPrivateKey()
	if err != nil {
		return withdrawAccounts{}, fmt.Errorf("pipeline: failed to generate equality proof account keypair: %w", err)
	}
	rng, err := solana.NewRandomPrivateKey()
	if err != nil {
		return withdrawAccounts{}, fmt.Errorf("pipeline: failed to generate range proof account keypair: %w", err)
	}
	return withdrawAccounts{equality: signer.NewLocal(eq), rangeKey: signer.NewLocal(rng)}, nil
}

func (o *Orchestrator) allocateWithdraw(ctx context.Context, ownerSigner signer.Signer, feePayer solana.PublicKey, accounts withdrawAccounts) (PhaseResult, error) {
	eqRent, err := o.rpc.GetMinimumBalanceForRentExemption(ctx, equalityContextSpace)
	if err != nil {
		return PhaseResult{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch equality context rent", err)
	}
	rangeRent, err := o.rpc.GetMinimumBalanceForRentExemption(ctx, rangeContextSpace)
	if err != nil {
		return PhaseResult{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch range context rent", err)
	}

	instructions := []solana.Instruction{
		splttoken2022.NewCreateAccountInstruction(feePayer, accounts.equality.PublicKey(), eqRent, equalityContextSpace, splttoken2022.ZkElGamalProofProgramID),
		splttoken2022.NewCreateAccountInstruction(feePayer, accounts.rangeKey.PublicKey(), rangeRent, rangeContextSpace, splttoken2022.ZkElGamalProofProgramID),
	}

	engine := tx.NewEngine(o.rpc, ownerSigner, accounts.equality, accounts.rangeKey)
	sig, err := o.submit(ctx, engine, instructions, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Create Proof Accounts", Signature: sig}, nil
}

func (o *Orchestrator) verifyRangeWithdraw(ctx context.Context, ownerSigner signer.Signer, feePayer solana.PublicKey, accounts withdrawAccounts, rangeProof []byte) (PhaseResult, error) {
	ix := splttoken2022.NewVerifyBatchedRangeProofInstruction(accounts.rangeKey.PublicKey(), rangeProof)
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, []solana.Instruction{ix}, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Verify Proof Accounts: Range", Signature: sig}, nil
}

func (o *Orchestrator) verifyEqualityWithdraw(ctx context.Context, ownerSigner signer.Signer, feePayer solana.PublicKey, accounts withdrawAccounts, equalityProof []byte) (PhaseResult, error) {
	ix := splttoken2022.NewVerifyCiphertextCommitmentEqualityInstruction(accounts.equality.PublicKey(), equalityProof)
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, []solana.Instruction{ix}, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Verify Proof Accounts: Equality", Signature: sig}, nil
}

func (o *Orchestrator) closeWithdrawAccounts(ctx context.Context, ownerSigner signer.Signer, feePayer, destination solana.PublicKey, accounts withdrawAccounts) (PhaseResult, error) {
	instructions := []solana.Instruction{
		splttoken2022.NewCloseContextStateInstruction(accounts.equality.PublicKey(), destination, feePayer),
		splttoken2022.NewCloseContextStateInstruction(accounts.rangeKey.PublicKey(), destination, feePayer),
	}
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, instructions, feePayer)
	if err != nil {
		return PhaseResult{}, err
	}
	return PhaseResult{Label: "Close Proof Accounts", Signature: sig}, nil
}

// WithdrawPlan names the account a confidential withdraw drains back
// to its public balance; Proofs is ProofGenerator's withdraw-variant
// output.
type WithdrawPlan struct {
	Account, Mint, Owner solana.PublicKey
	Amount               uint64
	Decimals             uint8
	Proofs               *proofgen.WithdrawProofs
}

// RunWithdraw executes the withdraw variant of Phases A-E: only
// equality and range proofs are allocated and verified, and Phase D
// withdraws amount in the clear back to the account's public balance.
func (o *Orchestrator) RunWithdraw(ctx context.Context, ownerSigner signer.Signer, plan WithdrawPlan) ([]PhaseResult, error) {
	accounts, err := newWithdrawAccounts()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to allocate proof account keypairs", err)
	}

	var results []PhaseResult
	phaseA, err := o.allocateWithdraw(ctx, ownerSigner, plan.Owner, accounts)
	if err != nil {
		return nil, err
	}
	results = append(results, phaseA)

	runErr := o.runWithdrawBody(ctx, ownerSigner, plan, accounts, &results)
	closeResult, closeErr := o.closeWithdrawAccounts(ctx, ownerSigner, plan.Owner, plan.Owner, accounts)
	if runErr != nil {
		return results, runErr
	}
	if closeErr != nil {
		return results, closeErr
	}
	results = append(results, closeResult)
	return results, nil
}

func (o *Orchestrator) runWithdrawBody(ctx context.Context, ownerSigner signer.Signer, plan WithdrawPlan, accounts withdrawAccounts, results *[]PhaseResult) error {
	phaseB, err := o.verifyRangeWithdraw(ctx, ownerSigner, plan.Owner, accounts, encodeRange(plan.Proofs.Range))
	if err != nil {
		return err
	}
	*results = append(*results, phaseB)

	phaseC, err := o.verifyEqualityWithdraw(ctx, ownerSigner, plan.Owner, accounts, encodeEquality(plan.Proofs.Equality))
	if err != nil {
		return err
	}
	*results = append(*results, phaseC)

	newDecryptable := plan.Proofs.NewDecryptable.Bytes()

	withdrawIx := splttoken2022.NewWithdrawInstruction(
		plan.Account, plan.Mint, plan.Owner,
		plan.Amount, plan.Decimals,
		splttoken2022.WithdrawProofAccounts{
			EqualityProof: accounts.equality.PublicKey(),
			RangeProof:    accounts.rangeKey.PublicKey(),
		},
		newDecryptable[:],
	)
	engine := tx.NewEngine(o.rpc, ownerSigner)
	sig, err := o.submit(ctx, engine, []solana.Instruction{withdrawIx}, plan.Owner)
	if err != nil {
		return err
	}
	*results = append(*results, PhaseResult{Label: "Withdraw", Signature: sig})
	return nil
}
