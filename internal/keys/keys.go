// Package keys implements KeyDerivation (spec.md section 4.1): deterministic
// per-(owner, mint) ElGamal and AE keys derived from a signer's signature
// over a seed.
package keys

import (
	"context"
	"crypto/sha512"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/apperr"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/signer"
	"ctcustody/internal/splttoken2022"
)

// domain tags keep the two sub-derivations (ElGamal, AE) disjoint inside
// the shared KDF, per spec.md section 4.1: "disjoint internal domain
// tags inside the SDK KDF".
const (
	elgamalDomainTag = "ctcustody/confidential-transfer/elgamal"
	aeDomainTag      = "ctcustody/confidential-transfer/ae"
)

// ConfidentialKeys bundles the derived ElGamal keypair and AE key
// (spec.md section 3, "ConfidentialKeys").
type ConfidentialKeys struct {
	ElGamal elgamal.Keypair
	AE      elgamal.AEKey
}

// Derive computes {ElGamal keypair, AE key} from a signing capability and
// a byte seed. Both sub-keys are derived from the same (signer, seed) pair
// using disjoint domain tags, so a caller holding only one signer recovers
// both deterministically (spec.md section 4.1).
//
// seed for per-(owner, mint) operations is the associated-token-account
// address bytes of (owner, mint) under Token-2022; callers build that seed
// via ATASeed before calling Derive.
func Derive(ctx context.Context, s signer.Signer, seed []byte) (ConfidentialKeys, error) {
	elgamalSeed, err := deriveSignatureSeed(ctx, s, elgamalDomainTag, seed, 64)
	if err != nil {
		return ConfidentialKeys{}, apperr.Wrap(apperr.KeyDerivationFailed, "failed to derive ElGamal seed", err)
	}
	var elgamalSeed64 [64]byte
	copy(elgamalSeed64[:], elgamalSeed)

	kp, err := elgamal.KeypairFromSeed(elgamalSeed64)
	if err != nil {
		return ConfidentialKeys{}, apperr.Wrap(apperr.KeyDerivationFailed, "failed to build ElGamal keypair", err)
	}

	aeSeed, err := deriveSignatureSeed(ctx, s, aeDomainTag, seed, elgamal.AEKeySize)
	if err != nil {
		return ConfidentialKeys{}, apperr.Wrap(apperr.KeyDerivationFailed, "failed to derive AE seed", err)
	}
	var aeSeed16 [elgamal.AEKeySize]byte
	copy(aeSeed16[:], aeSeed)

	return ConfidentialKeys{
		ElGamal: kp,
		AE:      elgamal.AEKeyFromSeed(aeSeed16),
	}, nil
}

// deriveSignatureSeed signs domainTag||seed with s, then stretches the
// resulting signature through SHA-512 to outLen bytes of uniform KDF
// output. The same (signer, seed, domainTag) triple always yields the same
// signature (Ed25519 signatures are deterministic) and therefore the same
// derived bytes, giving Derive its determinism guarantee (spec.md section
// 8, property 1) without any network I/O (section 4.1 guarantee).
func deriveSignatureSeed(ctx context.Context, s signer.Signer, domainTag string, seed []byte, outLen int) ([]byte, error) {
	message := make([]byte, 0, len(domainTag)+len(seed))
	message = append(message, []byte(domainTag)...)
	message = append(message, seed...)

	sig, err := s.Sign(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("signer failed to sign derivation seed: %w", err)
	}

	out := make([]byte, 0, outLen)
	counter := byte(0)
	for len(out) < outLen {
		h := sha512.New()
		h.Write(sig[:])
		h.Write([]byte{counter})
		out = append(out, h.Sum(nil)...)
		counter++
	}
	return out[:outLen], nil
}

// ATASeed computes the associated-token-account address bytes of (owner,
// mint) under the Token-2022 program, the canonical seed for per-(owner,
// mint) confidential keys (spec.md section 4.1).
func ATASeed(owner, mint solana.PublicKey) ([]byte, error) {
	ata, _, err := splttoken2022.FindAssociatedTokenAddress(owner, mint, splttoken2022.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive ATA seed: %w", err)
	}
	b := ata.Bytes()
	return b, nil
}
