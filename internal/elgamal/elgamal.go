// Package elgamal implements the twisted-ElGamal encryption scheme over
// the edwards25519 group that Solana's confidential-transfer extension
// builds its ciphertexts and Pedersen commitments on top of (spec.md
// section 4.4, GLOSSARY "ElGamal keypair"). It is the group-arithmetic
// foundation the zkproof package composes its Fiat-Shamir proofs over.
package elgamal

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

// basepointH is a second, nothing-up-my-sleeve generator independent of
// the edwards25519 basepoint G, used as the Pedersen commitment blinding
// generator. It is derived by hashing a fixed domain string and a counter
// byte until the first 32 bytes of the digest decode as a curve point,
// then clearing the cofactor, so no discrete log of H to G is known.
var basepointH = func() *edwards25519.Point {
	domain := []byte("ctcustody/elgamal/pedersen-base-H")
	for counter := 0; counter < 256; counter++ {
		h := sha512.Sum512(append(domain, byte(counter)))
		p, err := edwards25519.NewIdentityPoint().SetBytes(h[:32])
		if err != nil {
			continue
		}
		p.MultByCofactor(p)
		if p.Equal(edwards25519.NewIdentityPoint()) == 0 {
			return p
		}
	}
	panic("elgamal: failed to derive Pedersen base H")
}()

// SecretKey is an ElGamal decryption key: a scalar in the edwards25519
// group.
type SecretKey struct {
	s *edwards25519.Scalar
}

// PublicKey is the corresponding twisted-ElGamal encryption key: s^-1*H,
// so that s times a handle r*pk gives back r*H.
type PublicKey struct {
	p *edwards25519.Point
}

// Keypair bundles a secret and public ElGamal key.
type Keypair struct {
	Secret SecretKey
	Public PublicKey
}

// KeypairFromSeed derives a deterministic ElGamal keypair from 64 bytes of
// uniformly random input (the output of KeyDerivation's KDF, spec.md
// section 4.1).
func KeypairFromSeed(seed [64]byte) (Keypair, error) {
	s, err := edwards25519.NewScalar().SetUniformBytes(seed[:])
	if err != nil {
		return Keypair{}, fmt.Errorf("elgamal: failed to reduce seed to scalar: %w", err)
	}
	inv := edwards25519.NewScalar().Invert(s)
	pub := edwards25519.NewIdentityPoint().ScalarMult(inv, basepointH)
	return Keypair{
		Secret: SecretKey{s: s},
		Public: PublicKey{p: pub},
	}, nil
}

// Point exposes the underlying group element, so the zkproof package can
// build sigma-protocol commitments and verification equations directly
// against it without this package having to expose proof-shaped helpers
// of its own.
func (pk PublicKey) Point() *edwards25519.Point {
	return pk.p
}

// Bytes returns the 32-byte compressed encoding of the public key, as
// stored on-chain.
func (pk PublicKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], pk.p.Bytes())
	return out
}

// PublicKeyFromBytes decodes a compressed edwards25519 point as an
// ElGamal public key.
func PublicKeyFromBytes(b [32]byte) (PublicKey, error) {
	p, err := edwards25519.NewIdentityPoint().SetBytes(b[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("elgamal: invalid public key encoding: %w", err)
	}
	return PublicKey{p: p}, nil
}

// Ciphertext is a twisted-ElGamal ciphertext: a Pedersen commitment to the
// plaintext plus a decryption handle under one recipient's public key.
// Multiple handles (sender/recipient/auditor) share the same Commitment
// (spec.md section 4.4: "decryption handles for (sender, recipient,
// auditor)").
type Ciphertext struct {
	Commitment *edwards25519.Point
	Handle     *edwards25519.Point
}

// Bytes returns the 64-byte on-chain encoding (32-byte commitment + 32-byte
// handle).
func (c Ciphertext) Bytes() [64]byte {
	var out [64]byte
	copy(out[0:32], c.Commitment.Bytes())
	copy(out[32:64], c.Handle.Bytes())
	return out
}

// CiphertextFromBytes decodes the 64-byte on-chain encoding of a
// ciphertext back into its commitment and handle group elements.
func CiphertextFromBytes(commitment, handle [32]byte) (Ciphertext, error) {
	c, err := edwards25519.NewIdentityPoint().SetBytes(commitment[:])
	if err != nil {
		return Ciphertext{}, fmt.Errorf("elgamal: invalid ciphertext commitment encoding: %w", err)
	}
	h, err := edwards25519.NewIdentityPoint().SetBytes(handle[:])
	if err != nil {
		return Ciphertext{}, fmt.Errorf("elgamal: invalid ciphertext handle encoding: %w", err)
	}
	return Ciphertext{Commitment: c, Handle: h}, nil
}

// scalarFromUint64 embeds a u64 plaintext chunk as a scalar.
func scalarFromUint64(v uint64) *edwards25519.Scalar {
	var buf [32]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(buf[:])
	if err != nil {
		// buf's high bytes are zero, so it is always < group order.
		panic(fmt.Sprintf("elgamal: unreachable scalar decode failure: %v", err))
	}
	return s
}

// ScalarFromUint64 is the exported form of scalarFromUint64, used by the
// zkproof package to embed plaintext amounts as scalars when building
// sigma-protocol responses over the same group this package encrypts in.
func ScalarFromUint64(v uint64) *edwards25519.Scalar {
	return scalarFromUint64(v)
}

// BasepointH returns the Pedersen commitment blinding generator this
// package derives at init time, exported so zkproof's range-proof bit
// commitments use the identical generator.
func BasepointH() *edwards25519.Point {
	return basepointH
}

// Encrypt encrypts the u64 plaintext amount under pk using blinding
// scalar r, producing commitment = amount*G + r*H and handle = r*pk.
func Encrypt(pk PublicKey, amount uint64, r *edwards25519.Scalar) Ciphertext {
	amt := scalarFromUint64(amount)
	commitment := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(r, basepointH, amt)
	handle := edwards25519.NewIdentityPoint().ScalarMult(r, pk.p)
	return Ciphertext{Commitment: commitment, Handle: handle}
}

// HandleFor re-derives a decryption handle for the same blinding scalar
// under a different public key, so one committed amount can carry
// parallel handles for sender, recipient, and auditor without
// re-committing (spec.md section 4.4).
func HandleFor(pk PublicKey, r *edwards25519.Scalar) *edwards25519.Point {
	return edwards25519.NewIdentityPoint().ScalarMult(r, pk.p)
}

// CommitmentFor builds just the Pedersen commitment component for amount
// under blinding r, independent of any recipient key.
func CommitmentFor(amount uint64, r *edwards25519.Scalar) *edwards25519.Point {
	amt := scalarFromUint64(amount)
	return edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(r, basepointH, amt)
}

// maxBruteForce bounds the discrete-log search DecryptPending performs.
// Pending-balance ciphertexts only ever commit to a 16-bit limb (spec.md
// section 4.3: "pending_lo" / "pending_hi"), so the search space is
// bounded by 2^16, matching the range the real zk-token-sdk restricts
// ElGamal decrypt-by-brute-force to.
const maxBruteForce = 1 << 16

// DecryptPending recovers a pending-balance limb (16 bits) from its
// ElGamal ciphertext using this secret key, per spec.md section 4.3 step 1.
// The commitment is amount*G + r*H and the handle is r*pk with
// pk = s^-1*H, so subtracting s*handle = r*H leaves amount*G, which the
// bounded discrete-log search then recovers.
func (sk SecretKey) DecryptPending(c Ciphertext) (uint64, error) {
	skHandle := edwards25519.NewIdentityPoint().ScalarMult(sk.s, c.Handle)
	target := edwards25519.NewIdentityPoint().Subtract(c.Commitment, skHandle)
	return bruteForceDiscreteLog(target)
}

func bruteForceDiscreteLog(target *edwards25519.Point) (uint64, error) {
	if target.Equal(edwards25519.NewIdentityPoint()) == 1 {
		return 0, nil
	}
	acc := edwards25519.NewIdentityPoint()
	g := edwards25519.NewGeneratorPoint()
	for v := uint64(1); v < maxBruteForce; v++ {
		acc.Add(acc, g)
		if acc.Equal(target) == 1 {
			return v, nil
		}
	}
	return 0, fmt.Errorf("elgamal: discrete log search exhausted without finding plaintext")
}
