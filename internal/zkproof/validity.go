package zkproof

import (
	"fmt"

	"filippo.io/edwards25519"

	"ctcustody/internal/elgamal"
)

// ValidityProof attests that a commitment and up to two decryption
// handles (destination and, optionally, auditor) were built from the
// same (amount, randomness) pair under their respective public keys
// (spec.md section 4.4: "attests that the recipient and auditor handles
// ... are well-formed under their claimed ElGamal keys").
type ValidityProof struct {
	Yc, Ydest *edwards25519.Point
	Yaud      *edwards25519.Point // nil when no auditor key was supplied
	Zx, Zr    *edwards25519.Scalar
}

// ProveValidity proves knowledge of (amount, randomness) such that:
//
//	commitment  = amount*G + randomness*H
//	destHandle  = randomness * destPubkey
//	auditHandle = randomness * auditPubkey   (only when auditPubkey != nil)
func ProveValidity(
	t *Transcript,
	destPubkey elgamal.PublicKey,
	auditPubkey *elgamal.PublicKey,
	commitment *edwards25519.Point,
	destHandle *edwards25519.Point,
	auditHandle *edwards25519.Point,
	randomness *edwards25519.Scalar,
	amount uint64,
) (*ValidityProof, error) {
	t.AppendPoint("validity-dest-pubkey", destPubkey.Point())
	t.AppendPoint("validity-commitment", commitment)
	t.AppendPoint("validity-dest-handle", destHandle)
	if auditPubkey != nil {
		t.AppendPoint("validity-audit-pubkey", auditPubkey.Point())
		t.AppendPoint("validity-audit-handle", auditHandle)
	}

	xTilde, err := elgamal.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("zkproof: failed to sample validity blind xTilde: %w", err)
	}
	rTilde, err := elgamal.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("zkproof: failed to sample validity blind rTilde: %w", err)
	}

	h := elgamal.BasepointH()
	yc := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(rTilde, h, xTilde)
	ydest := edwards25519.NewIdentityPoint().ScalarMult(rTilde, destPubkey.Point())

	t.AppendPoint("validity-yc", yc)
	t.AppendPoint("validity-ydest", ydest)

	var yaud *edwards25519.Point
	if auditPubkey != nil {
		yaud = edwards25519.NewIdentityPoint().ScalarMult(rTilde, auditPubkey.Point())
		t.AppendPoint("validity-yaud", yaud)
	}

	c := t.ChallengeScalar("validity-challenge")

	x := elgamal.ScalarFromUint64(amount)
	zx := edwards25519.NewScalar().Add(xTilde, edwards25519.NewScalar().Multiply(c, x))
	zr := edwards25519.NewScalar().Add(rTilde, edwards25519.NewScalar().Multiply(c, randomness))

	return &ValidityProof{Yc: yc, Ydest: ydest, Yaud: yaud, Zx: zx, Zr: zr}, nil
}

// VerifyValidity checks a ValidityProof. auditPubkey/auditHandle must be
// supplied (non-nil) exactly when the proof was produced with an
// auditor, matching ProveValidity's call.
func VerifyValidity(
	t *Transcript,
	destPubkey elgamal.PublicKey,
	auditPubkey *elgamal.PublicKey,
	commitment *edwards25519.Point,
	destHandle *edwards25519.Point,
	auditHandle *edwards25519.Point,
	proof *ValidityProof,
) bool {
	t.AppendPoint("validity-dest-pubkey", destPubkey.Point())
	t.AppendPoint("validity-commitment", commitment)
	t.AppendPoint("validity-dest-handle", destHandle)
	if auditPubkey != nil {
		t.AppendPoint("validity-audit-pubkey", auditPubkey.Point())
		t.AppendPoint("validity-audit-handle", auditHandle)
	}

	t.AppendPoint("validity-yc", proof.Yc)
	t.AppendPoint("validity-ydest", proof.Ydest)
	if auditPubkey != nil {
		if proof.Yaud == nil {
			return false
		}
		t.AppendPoint("validity-yaud", proof.Yaud)
	}

	c := t.ChallengeScalar("validity-challenge")
	h := elgamal.BasepointH()

	lhsC := edwards25519.NewIdentityPoint().VarTimeDoubleScalarBaseMult(proof.Zr, h, proof.Zx)
	rhsC := edwards25519.NewIdentityPoint().Add(proof.Yc, edwards25519.NewIdentityPoint().ScalarMult(c, commitment))
	if lhsC.Equal(rhsC) != 1 {
		return false
	}

	lhsDest := edwards25519.NewIdentityPoint().ScalarMult(proof.Zr, destPubkey.Point())
	rhsDest := edwards25519.NewIdentityPoint().Add(proof.Ydest, edwards25519.NewIdentityPoint().ScalarMult(c, destHandle))
	if lhsDest.Equal(rhsDest) != 1 {
		return false
	}

	if auditPubkey == nil {
		return true
	}
	lhsAud := edwards25519.NewIdentityPoint().ScalarMult(proof.Zr, auditPubkey.Point())
	rhsAud := edwards25519.NewIdentityPoint().Add(proof.Yaud, edwards25519.NewIdentityPoint().ScalarMult(c, auditHandle))
	return lhsAud.Equal(rhsAud) == 1
}
