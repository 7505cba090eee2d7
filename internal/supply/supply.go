// Package supply implements ConfidentialSupply (spec.md section 2,
// "for mints with ConfidentialMintBurn, generates split-proof mint
// instructions and decrypts the current supply") for the read side of
// that component: GET /api/tokens/{mint}/supply (spec.md section 6).
// The mint-instruction generation side reuses internal/proofgen and
// internal/pipeline directly and is wired in internal/transfer.
package supply

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/apperr"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/mintstate"
	"ctcustody/internal/solanarpc"
)

// Snapshot is the decrypted view of a confidential mint's supply
// returned by GET /api/tokens/{mint}/supply: {currentSupply,
// decryptableSupply}.
//
// CurrentSupply is recovered from the on-chain ElGamal ciphertext by
// discrete-log search against the supply secret key, the authoritative
// value as of the fetched account state. DecryptableSupply is recovered
// from the AE side channel the custodial server keeps in sync on every
// mint it issues; the two can momentarily diverge the same way a
// token account's available and decryptable-available balances can
// (spec.md section 4.3), since the AE side channel is only updated
// alongside a successful confidential-mint instruction.
type Snapshot struct {
	CurrentSupply      uint64
	DecryptableSupply  uint64
}

// Service resolves ConfidentialSupply's read-only query.
type Service struct {
	introspector *mintstate.Introspector
}

// New builds a Service over the given RPC client.
func New(rpc solanarpc.Client) *Service {
	return &Service{introspector: mintstate.New(rpc)}
}

// errConfidentialMintBurnDisabled builds the error returned when the mint has
// ConfidentialTransferMint but not ConfidentialMintBurn (spec.md
// section 8 scenario D: "Mint does not support confidential mint/burn
// extension").
func errConfidentialMintBurnDisabled(mint solana.PublicKey) error {
	return apperr.New(apperr.BadRequest, fmt.Sprintf("mint %s does not support confidential mint/burn extension", mint))
}

// Supply decrypts and returns the confidential supply for mint, using
// supplySecret for the on-chain ciphertext and supplyAE for the
// decryptable side channel.
func (s *Service) Supply(ctx context.Context, mint solana.PublicKey, supplySecret elgamal.SecretKey, supplyAE elgamal.AEKey) (Snapshot, error) {
	snap, err := s.introspector.Fetch(ctx, mint)
	if err != nil {
		return Snapshot{}, err
	}

	cipherBytes, ok := snap.SupplyCiphertext()
	if !ok {
		return Snapshot{}, errConfidentialMintBurnDisabled(mint)
	}
	var commitment, handle [32]byte
	copy(commitment[:], cipherBytes[:32])
	copy(handle[:], cipherBytes[32:])
	ciphertext, err := elgamal.CiphertextFromBytes(commitment, handle)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decode supply ciphertext", err)
	}

	current, err := supplySecret.DecryptPending(ciphertext)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt supply ciphertext", err)
	}

	decryptableBytes, ok := snap.DecryptableSupply()
	if !ok {
		return Snapshot{}, errConfidentialMintBurnDisabled(mint)
	}
	eb, err := elgamal.EncryptedBalanceFromBytes(decryptableBytes)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decode decryptable supply", err)
	}
	decryptable, err := supplyAE.Decrypt(eb)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.DecryptionFailed, "failed to decrypt decryptable supply", err)
	}

	return Snapshot{CurrentSupply: current, DecryptableSupply: decryptable}, nil
}
