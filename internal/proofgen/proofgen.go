// Package proofgen implements ProofGenerator (spec.md section 4.4):
// building the equality, ciphertext-validity, and range proofs a
// confidential transfer, mint, or withdraw needs, plus the ciphertext
// limbs and re-encrypted balances those proofs attest to. Output
// objects are plain data; ProofPipeline submits them untouched.
package proofgen

import (
	"fmt"

	"filippo.io/edwards25519"

	"ctcustody/internal/apperr"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/zkproof"
)

// splitBits is the width of the low amount limb (spec.md section 4.4:
// "lo = amount mod 2^16"). The high limb absorbs the remaining bits of
// a u64 amount.
const splitBits = 16

// HandleBundle carries the decryption handles a single Pedersen
// commitment shares across the parties who must later be able to
// decrypt it (spec.md section 4.4: "bundled with decryption handles
// for (sender, recipient, auditor)").
type HandleBundle struct {
	Source    *edwards25519.Point
	Dest      *edwards25519.Point
	Auditor   *edwards25519.Point // nil when no auditor key governs the mint
}

// AmountCiphertext is one limb of a split transfer amount: a single
// Pedersen commitment plus every party's handle into it.
type AmountCiphertext struct {
	Commitment *edwards25519.Point
	Handles    HandleBundle
}

// TransferProofs is ProofGenerator's output for a confidential
// transfer between two existing confidential accounts.
type TransferProofs struct {
	CiphertextLo            AmountCiphertext
	CiphertextHi            AmountCiphertext
	NewSourceAvailable       elgamal.Ciphertext
	NewDecryptableAvailable  elgamal.EncryptedBalance
	Equality                *zkproof.EqualityProof
	ValidityLo              *zkproof.ValidityProof
	ValidityHi              *zkproof.ValidityProof
	Range                   *zkproof.RangeProof
}

// GenerateTransfer builds the proof bundle for transferring amount
// from a source account (whose current decryptable available balance
// decrypts to sourceAvailable under sourceAE) to destPubkey, optionally
// disclosed to auditPubkey. amount must not exceed sourceAvailable.
func GenerateTransfer(
	sourcePubkey, destPubkey elgamal.PublicKey,
	auditPubkey *elgamal.PublicKey,
	sourceAE elgamal.AEKey,
	currentDecryptable elgamal.EncryptedBalance,
	amount uint64,
) (*TransferProofs, error) {
	available, err := sourceAE.Decrypt(currentDecryptable)
	if err != nil {
		return nil, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt source available balance", err)
	}
	if amount > available {
		return nil, apperr.NewInsufficientBalance(available, 0, amount)
	}
	newAvailable := available - amount

	lo := amount & (1<<splitBits - 1)
	hi := amount >> splitBits

	ciphertextLo, rLo, err := buildAmountCiphertext(sourcePubkey, destPubkey, auditPubkey, lo)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to build ciphertext_lo", err)
	}
	ciphertextHi, rHi, err := buildAmountCiphertext(sourcePubkey, destPubkey, auditPubkey, hi)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to build ciphertext_hi", err)
	}

	validityLo, err := zkproof.ProveValidity(
		zkproof.NewTranscript("transfer-validity-lo"),
		destPubkey, auditPubkey,
		ciphertextLo.Commitment, ciphertextLo.Handles.Dest, ciphertextLo.Handles.Auditor,
		rLo, lo,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove ciphertext_lo validity", err)
	}
	validityHi, err := zkproof.ProveValidity(
		zkproof.NewTranscript("transfer-validity-hi"),
		destPubkey, auditPubkey,
		ciphertextHi.Commitment, ciphertextHi.Handles.Dest, ciphertextHi.Handles.Auditor,
		rHi, hi,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove ciphertext_hi validity", err)
	}

	rNewCiphertext, err := elgamal.RandomScalar()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to sample new-balance ciphertext randomness", err)
	}
	rNewCommitment, err := elgamal.RandomScalar()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to sample new-balance commitment randomness", err)
	}
	newSourceAvailable := elgamal.Encrypt(sourcePubkey, newAvailable, rNewCiphertext)
	newAvailableCommitment := elgamal.CommitmentFor(newAvailable, rNewCommitment)

	equality, err := zkproof.ProveEquality(
		zkproof.NewTranscript("transfer-equality"),
		sourcePubkey, newSourceAvailable, rNewCiphertext,
		newAvailableCommitment, rNewCommitment, newAvailable,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove balance equality", err)
	}

	rangeProof, err := zkproof.ProveRange(zkproof.NewTranscript("transfer-range"), newAvailable, rNewCommitment, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove new-balance range", err)
	}

	newDecryptable, err := sourceAE.Encrypt(newAvailable)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to re-encrypt new available balance", err)
	}

	return &TransferProofs{
		CiphertextLo:            ciphertextLo,
		CiphertextHi:            ciphertextHi,
		NewSourceAvailable:      newSourceAvailable,
		NewDecryptableAvailable: newDecryptable,
		Equality:                equality,
		ValidityLo:              validityLo,
		ValidityHi:              validityHi,
		Range:                   rangeProof,
	}, nil
}

// MintProofs is ProofGenerator's output for a confidential mint: the
// "sender" role is played by the mint's supply keypair, and only the
// destination's handle appears (spec.md section 4.4, mint variant).
type MintProofs struct {
	CiphertextLo           AmountCiphertext
	CiphertextHi           AmountCiphertext
	NewSupply               elgamal.Ciphertext
	NewDecryptableSupply    elgamal.EncryptedBalance
	Equality                *zkproof.EqualityProof
	ValidityLo              *zkproof.ValidityProof
	ValidityHi              *zkproof.ValidityProof
	Range                   *zkproof.RangeProof
}

// GenerateMint builds the proof bundle for confidentially minting
// amount to destPubkey against a mint's supply keypair and supply AE
// key.
func GenerateMint(
	supplyPubkey, destPubkey elgamal.PublicKey,
	supplyAE elgamal.AEKey,
	currentDecryptableSupply elgamal.EncryptedBalance,
	amount uint64,
) (*MintProofs, error) {
	supply, err := supplyAE.Decrypt(currentDecryptableSupply)
	if err != nil {
		return nil, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt current supply", err)
	}
	newSupply := supply + amount

	lo := amount & (1<<splitBits - 1)
	hi := amount >> splitBits

	ciphertextLo, rLo, err := buildAmountCiphertext(supplyPubkey, destPubkey, nil, lo)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to build ciphertext_lo", err)
	}
	ciphertextHi, rHi, err := buildAmountCiphertext(supplyPubkey, destPubkey, nil, hi)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to build ciphertext_hi", err)
	}

	validityLo, err := zkproof.ProveValidity(
		zkproof.NewTranscript("mint-validity-lo"),
		destPubkey, nil,
		ciphertextLo.Commitment, ciphertextLo.Handles.Dest, nil,
		rLo, lo,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove ciphertext_lo validity", err)
	}
	validityHi, err := zkproof.ProveValidity(
		zkproof.NewTranscript("mint-validity-hi"),
		destPubkey, nil,
		ciphertextHi.Commitment, ciphertextHi.Handles.Dest, nil,
		rHi, hi,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove ciphertext_hi validity", err)
	}

	rNewCiphertext, err := elgamal.RandomScalar()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to sample new-supply ciphertext randomness", err)
	}
	rNewCommitment, err := elgamal.RandomScalar()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to sample new-supply commitment randomness", err)
	}
	newSupplyCiphertext := elgamal.Encrypt(supplyPubkey, newSupply, rNewCiphertext)
	newSupplyCommitment := elgamal.CommitmentFor(newSupply, rNewCommitment)

	equality, err := zkproof.ProveEquality(
		zkproof.NewTranscript("mint-equality"),
		supplyPubkey, newSupplyCiphertext, rNewCiphertext,
		newSupplyCommitment, rNewCommitment, newSupply,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove supply equality", err)
	}

	rangeProof, err := zkproof.ProveRange(zkproof.NewTranscript("mint-range"), newSupply, rNewCommitment, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove new-supply range", err)
	}

	newDecryptableSupply, err := supplyAE.Encrypt(newSupply)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to re-encrypt new supply", err)
	}

	return &MintProofs{
		CiphertextLo:            ciphertextLo,
		CiphertextHi:            ciphertextHi,
		NewSupply:                newSupplyCiphertext,
		NewDecryptableSupply:     newDecryptableSupply,
		Equality:                 equality,
		ValidityLo:               validityLo,
		ValidityHi:               validityHi,
		Range:                    rangeProof,
	}, nil
}

// WithdrawProofs is ProofGenerator's output for a confidential
// withdraw: only equality and range are needed, since a withdraw
// reveals its amount on-chain in the clear and there is no third
// party to disclose ciphertext handles to (spec.md section 4.4,
// withdraw variant).
type WithdrawProofs struct {
	NewAvailable        elgamal.Ciphertext
	NewDecryptable      elgamal.EncryptedBalance
	Equality            *zkproof.EqualityProof
	Range               *zkproof.RangeProof
}

// GenerateWithdraw builds the proof bundle for withdrawing amount from
// an account whose current decryptable available balance decrypts to
// the account's available balance under ownerAE.
func GenerateWithdraw(
	ownerPubkey elgamal.PublicKey,
	ownerAE elgamal.AEKey,
	currentDecryptable elgamal.EncryptedBalance,
	amount uint64,
) (*WithdrawProofs, error) {
	available, err := ownerAE.Decrypt(currentDecryptable)
	if err != nil {
		return nil, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt available balance", err)
	}
	if amount > available {
		return nil, apperr.NewInsufficientBalance(available, 0, amount)
	}
	newAvailable := available - amount

	rNewCiphertext, err := elgamal.RandomScalar()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to sample new-balance ciphertext randomness", err)
	}
	rNewCommitment, err := elgamal.RandomScalar()
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to sample new-balance commitment randomness", err)
	}
	newAvailableCiphertext := elgamal.Encrypt(ownerPubkey, newAvailable, rNewCiphertext)
	newAvailableCommitment := elgamal.CommitmentFor(newAvailable, rNewCommitment)

	equality, err := zkproof.ProveEquality(
		zkproof.NewTranscript("withdraw-equality"),
		ownerPubkey, newAvailableCiphertext, rNewCiphertext,
		newAvailableCommitment, rNewCommitment, newAvailable,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove balance equality", err)
	}

	rangeProof, err := zkproof.ProveRange(zkproof.NewTranscript("withdraw-range"), newAvailable, rNewCommitment, 64)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to prove new-balance range", err)
	}

	newDecryptable, err := ownerAE.Encrypt(newAvailable)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProofGenerationFailed, "failed to re-encrypt new available balance", err)
	}

	return &WithdrawProofs{
		NewAvailable:   newAvailableCiphertext,
		NewDecryptable: newDecryptable,
		Equality:       equality,
		Range:          rangeProof,
	}, nil
}

// buildAmountCiphertext commits to limb under a single fresh blinding
// scalar, deriving every party's handle from that same scalar so the
// handles all open the one shared commitment (spec.md section 4.4:
// "each bundled with decryption handles for (sender, recipient,
// auditor)").
func buildAmountCiphertext(sourcePubkey, destPubkey elgamal.PublicKey, auditPubkey *elgamal.PublicKey, limb uint64) (AmountCiphertext, *edwards25519.Scalar, error) {
	r, err := elgamal.RandomScalar()
	if err != nil {
		return AmountCiphertext{}, nil, fmt.Errorf("proofgen: failed to sample limb randomness: %w", err)
	}

	commitment := elgamal.CommitmentFor(limb, r)
	handles := HandleBundle{
		Source: elgamal.HandleFor(sourcePubkey, r),
		Dest:   elgamal.HandleFor(destPubkey, r),
	}
	if auditPubkey != nil {
		handles.Auditor = elgamal.HandleFor(*auditPubkey, r)
	}

	return AmountCiphertext{Commitment: commitment, Handles: handles}, r, nil
}
