package zkproof

import (
	"fmt"

	"filippo.io/edwards25519"

	"ctcustody/internal/elgamal"
)

// EqualityProof attests that an ElGamal ciphertext and a Pedersen
// commitment open to the same plaintext amount, without revealing the
// amount or either opening (spec.md section 4.4: "attests that (sender's
// new encrypted balance) equals (sender's old encrypted balance) minus
// [a Pedersen commitment]" — both sides of that subtraction reduce to
// this one relation once the commitment-only side is folded in by the
// caller before proving).
type EqualityProof struct {
	Y0, Y1, Y2 *edwards25519.Point
	Zx, Z1, Z2 *edwards25519.Scalar
}

// ProveEquality proves knowledge of (amount, ciphertextRandomness,
// commitmentRandomness) such that:
//
//	ciphertext.Handle     = ciphertextRandomness * pubkey
//	ciphertext.Commitment = amount*G + ciphertextRandomness*H
//	commitment            = amount*G + commitmentRandomness*H
//
// The caller supplies ciphertext and commitment already built via
// internal/elgamal so this package never reconstructs group elements
// from scratch.
func ProveEquality(
	t *Transcript,
	pubkey elgamal.PublicKey,
	ciphertext elgamal.Ciphertext,
	ciphertextRandomness *edwards25519.Scalar,
	commitment *edwards25519.Point,
	commitmentRandomness *edwards25519.Scalar,
	amount uint64,
) (*EqualityProof, error) {
	t.AppendPoint("equality-pubkey", pubkey.Point())
	t.AppendPoint("equality-ciphertext-commitment", ciphertext.Commitment)
	t.AppendPoint("equality-ciphertext-handle", ciphertext.Handle)
	t.AppendPoint("equality-commitment", commitment)

	xTilde, err := elgamal.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("zkproof: failed to sample equality blind xTilde: %w", err)
	}
	r1Tilde, err := elgamal.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("zkproof: failed to sample equality blind r1Tilde: %w", err)
	}
	r2Tilde, err := elgamal.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("zkproof: failed to sample equality blind r2Tilde: %w", err)
	}

	h := elgamal.BasepointH()
	y0 := edwards25519.NewIdentityPoint().ScalarMult(r1Tilde, pubkey.Point())
	y1 := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(r1Tilde, h, xTilde)
	y2 := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(r2Tilde, h, xTilde)

	t.AppendPoint("equality-y0", y0)
	t.AppendPoint("equality-y1", y1)
	t.AppendPoint("equality-y2", y2)
	c := t.ChallengeScalar("equality-challenge")

	x := elgamal.ScalarFromUint64(amount)
	zx := edwards25519.NewScalar().Add(xTilde, edwards25519.NewScalar().Multiply(c, x))
	z1 := edwards25519.NewScalar().Add(r1Tilde, edwards25519.NewScalar().Multiply(c, ciphertextRandomness))
	z2 := edwards25519.NewScalar().Add(r2Tilde, edwards25519.NewScalar().Multiply(c, commitmentRandomness))

	return &EqualityProof{Y0: y0, Y1: y1, Y2: y2, Zx: zx, Z1: z1, Z2: z2}, nil
}

// VerifyEquality checks an EqualityProof against the public ciphertext,
// commitment, and pubkey it was proven against.
func VerifyEquality(
	t *Transcript,
	pubkey elgamal.PublicKey,
	ciphertext elgamal.Ciphertext,
	commitment *edwards25519.Point,
	proof *EqualityProof,
) bool {
	t.AppendPoint("equality-pubkey", pubkey.Point())
	t.AppendPoint("equality-ciphertext-commitment", ciphertext.Commitment)
	t.AppendPoint("equality-ciphertext-handle", ciphertext.Handle)
	t.AppendPoint("equality-commitment", commitment)

	t.AppendPoint("equality-y0", proof.Y0)
	t.AppendPoint("equality-y1", proof.Y1)
	t.AppendPoint("equality-y2", proof.Y2)
	c := t.ChallengeScalar("equality-challenge")

	h := elgamal.BasepointH()

	lhs0 := edwards25519.NewIdentityPoint().ScalarMult(proof.Z1, pubkey.Point())
	rhs0 := edwards25519.NewIdentityPoint().Add(proof.Y0, edwards25519.NewIdentityPoint().ScalarMult(c, ciphertext.Handle))
	if lhs0.Equal(rhs0) != 1 {
		return false
	}

	lhs1 := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(proof.Z1, h, proof.Zx)
	rhs1 := edwards25519.NewIdentityPoint().Add(proof.Y1, edwards25519.NewIdentityPoint().ScalarMult(c, ciphertext.Commitment))
	if lhs1.Equal(rhs1) != 1 {
		return false
	}

	lhs2 := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(proof.Z2, h, proof.Zx)
	rhs2 := edwards25519.NewIdentityPoint().Add(proof.Y2, edwards25519.NewIdentityPoint().ScalarMult(c, commitment))
	return lhs2.Equal(rhs2) == 1
}
