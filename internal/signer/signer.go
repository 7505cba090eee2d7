// Package signer defines the SignerAbstraction from spec.md section 4.7/4.9:
// a uniform signing capability implemented by an in-process Ed25519 keypair,
// a remote KMS-backed key, or a static precomputed signature. The engine
// depends only on the Signer interface.
package signer

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Signer is the capability every signing backend implements: pubkey() and
// try_sign(message) from spec.md section 9.
type Signer interface {
	// PublicKey returns the signer's Solana public key.
	PublicKey() solana.PublicKey

	// Sign returns the Ed25519 signature over message. Implementations that
	// call out to a remote service (KMS) may block; callers on a
	// cooperative scheduler must invoke Sign from a dedicated blocking
	// context (spec.md section 5).
	Sign(ctx context.Context, message []byte) (solana.Signature, error)
}

// Local wraps an in-process Ed25519 keypair.
type Local struct {
	pub  solana.PublicKey
	priv solana.PrivateKey
}

// NewLocal builds a Local signer from a Solana-style 64-byte private key
// (the concatenation of seed and public key, as gagliardetto/solana-go
// represents it and as the teacher's SolanaWallet stores it base58-encoded).
func NewLocal(priv solana.PrivateKey) *Local {
	return &Local{pub: priv.PublicKey(), priv: priv}
}

func (l *Local) PublicKey() solana.PublicKey { return l.pub }

func (l *Local) Sign(_ context.Context, message []byte) (solana.Signature, error) {
	return l.priv.Sign(message)
}

// StaticSignature always returns a fixed, caller-supplied signature
// regardless of the message it is asked to sign over. It exists for
// spec.md section 4.1's
// derive_from_precomputed_signature adapter: a caller who already holds a
// client-produced signature over an exact seed, but no access to the
// private key, can still present a Signer to KeyDerivation. It must never
// be used to sign a transaction message, only to feed the KDF.
type StaticSignature struct {
	pub solana.PublicKey
	sig solana.Signature
}

// NewStaticSignature builds a StaticSignature signer. sig must be a valid
// signature over the exact seed the caller will later pass to
// keys.Derive; the derived keys are only correct under that precondition.
func NewStaticSignature(pub solana.PublicKey, sig solana.Signature) *StaticSignature {
	return &StaticSignature{pub: pub, sig: sig}
}

func (s *StaticSignature) PublicKey() solana.PublicKey { return s.pub }

func (s *StaticSignature) Sign(_ context.Context, _ []byte) (solana.Signature, error) {
	return s.sig, nil
}
