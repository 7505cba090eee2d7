package zkproof

import (
	"fmt"

	"filippo.io/edwards25519"

	"ctcustody/internal/elgamal"
)

// BitProof is a Chaum-Pedersen OR-proof that a single Pedersen
// commitment opens to 0 or to 1, without revealing which.
type BitProof struct {
	A0, A1 *edwards25519.Point
	C0, C1 *edwards25519.Scalar
	Z0, Z1 *edwards25519.Scalar
}

// RangeProof attests that a Pedersen-committed value decomposes into
// bitLen well-formed bits, which (combined with the aggregation check
// in VerifyRange) proves the committed value lies in [0, 2^bitLen)
// (spec.md section 4.4: "attests that new_available ∈ [0, 2^64) and
// that the split amount values are bounded").
type RangeProof struct {
	BitCommitments []*edwards25519.Point
	Bits           []BitProof
}

// ProveRange builds a RangeProof that commitment (built elsewhere as
// amount*G + randomness*H) opens to a value representable in bitLen
// bits. It solves the last bit's randomness so that the 2^i-weighted
// sum of the per-bit randomness equals randomness, which makes the bit
// commitments sum to commitment; the commitment itself is not rebuilt
// or checked here.
func ProveRange(t *Transcript, amount uint64, randomness *edwards25519.Scalar, bitLen int) (*RangeProof, error) {
	if bitLen <= 0 || bitLen > 64 {
		return nil, fmt.Errorf("zkproof: range proof bit length %d out of bounds", bitLen)
	}

	bitRandomness := make([]*edwards25519.Scalar, bitLen)
	sumWeighted := edwards25519.NewScalar()
	for i := 0; i < bitLen-1; i++ {
		r, err := elgamal.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("zkproof: failed to sample bit randomness: %w", err)
		}
		bitRandomness[i] = r
		weighted := edwards25519.NewScalar().Multiply(scalarPow2(i), r)
		sumWeighted = edwards25519.NewScalar().Add(sumWeighted, weighted)
	}

	lastWeight := scalarPow2(bitLen - 1)
	lastWeightInv := edwards25519.NewScalar().Invert(lastWeight)
	diff := edwards25519.NewScalar().Subtract(randomness, sumWeighted)
	bitRandomness[bitLen-1] = edwards25519.NewScalar().Multiply(diff, lastWeightInv)

	commitments := make([]*edwards25519.Point, bitLen)
	bitProofs := make([]BitProof, bitLen)
	for i := 0; i < bitLen; i++ {
		bit := (amount >> uint(i)) & 1
		c := elgamal.CommitmentFor(bit, bitRandomness[i])
		commitments[i] = c

		t.AppendPoint(fmt.Sprintf("range-bit-commitment-%d", i), c)
		proof, err := proveBit(t, bit, bitRandomness[i], c)
		if err != nil {
			return nil, fmt.Errorf("zkproof: failed to prove bit %d: %w", i, err)
		}
		bitProofs[i] = proof
	}

	return &RangeProof{BitCommitments: commitments, Bits: bitProofs}, nil
}

// VerifyRange checks a RangeProof against the Pedersen commitment it
// claims to decompose.
func VerifyRange(t *Transcript, commitment *edwards25519.Point, proof *RangeProof) bool {
	if len(proof.BitCommitments) != len(proof.Bits) || len(proof.BitCommitments) == 0 {
		return false
	}

	weighted := edwards25519.NewIdentityPoint()
	for i, bc := range proof.BitCommitments {
		t.AppendPoint(fmt.Sprintf("range-bit-commitment-%d", i), bc)
		term := edwards25519.NewIdentityPoint().ScalarMult(scalarPow2(i), bc)
		weighted = edwards25519.NewIdentityPoint().Add(weighted, term)

		if !verifyBit(t, bc, proof.Bits[i]) {
			return false
		}
	}

	return weighted.Equal(commitment) == 1
}

// proveBit runs the Chaum-Pedersen OR-proof that commitment = bit*G +
// r*H opens to 0 or 1: the branch matching the real bit is proven
// honestly, the other is simulated, and the transcript challenge is
// split between the two so only the prover (who knows r) can produce a
// valid pair for both branches.
func proveBit(t *Transcript, bit uint64, r *edwards25519.Scalar, commitment *edwards25519.Point) (BitProof, error) {
	g := edwards25519.NewGeneratorPoint()
	h := elgamal.BasepointH()
	target1 := edwards25519.NewIdentityPoint().Subtract(commitment, g)

	if bit == 0 {
		k0, err := elgamal.RandomScalar()
		if err != nil {
			return BitProof{}, err
		}
		z1, err := elgamal.RandomScalar()
		if err != nil {
			return BitProof{}, err
		}
		c1, err := elgamal.RandomScalar()
		if err != nil {
			return BitProof{}, err
		}

		a0 := edwards25519.NewIdentityPoint().ScalarMult(k0, h)
		a1 := edwards25519.NewIdentityPoint().Subtract(
			edwards25519.NewIdentityPoint().ScalarMult(z1, h),
			edwards25519.NewIdentityPoint().ScalarMult(c1, target1),
		)

		t.AppendPoint("range-bit-a0", a0)
		t.AppendPoint("range-bit-a1", a1)
		c := t.ChallengeScalar("range-bit-challenge")
		c0 := edwards25519.NewScalar().Subtract(c, c1)
		z0 := edwards25519.NewScalar().Add(k0, edwards25519.NewScalar().Multiply(c0, r))

		return BitProof{A0: a0, A1: a1, C0: c0, C1: c1, Z0: z0, Z1: z1}, nil
	}

	k1, err := elgamal.RandomScalar()
	if err != nil {
		return BitProof{}, err
	}
	z0, err := elgamal.RandomScalar()
	if err != nil {
		return BitProof{}, err
	}
	c0, err := elgamal.RandomScalar()
	if err != nil {
		return BitProof{}, err
	}

	a1 := edwards25519.NewIdentityPoint().ScalarMult(k1, h)
	a0 := edwards25519.NewIdentityPoint().Subtract(
		edwards25519.NewIdentityPoint().ScalarMult(z0, h),
		edwards25519.NewIdentityPoint().ScalarMult(c0, commitment),
	)

	t.AppendPoint("range-bit-a0", a0)
	t.AppendPoint("range-bit-a1", a1)
	c := t.ChallengeScalar("range-bit-challenge")
	c1 := edwards25519.NewScalar().Subtract(c, c0)
	z1 := edwards25519.NewScalar().Add(k1, edwards25519.NewScalar().Multiply(c1, r))

	return BitProof{A0: a0, A1: a1, C0: c0, C1: c1, Z0: z0, Z1: z1}, nil
}

func verifyBit(t *Transcript, commitment *edwards25519.Point, proof BitProof) bool {
	h := elgamal.BasepointH()
	g := edwards25519.NewGeneratorPoint()
	target1 := edwards25519.NewIdentityPoint().Subtract(commitment, g)

	t.AppendPoint("range-bit-a0", proof.A0)
	t.AppendPoint("range-bit-a1", proof.A1)
	c := t.ChallengeScalar("range-bit-challenge")

	sumC := edwards25519.NewScalar().Add(proof.C0, proof.C1)
	if sumC.Equal(c) != 1 {
		return false
	}

	lhs0 := edwards25519.NewIdentityPoint().ScalarMult(proof.Z0, h)
	rhs0 := edwards25519.NewIdentityPoint().Add(proof.A0, edwards25519.NewIdentityPoint().ScalarMult(proof.C0, commitment))
	if lhs0.Equal(rhs0) != 1 {
		return false
	}

	lhs1 := edwards25519.NewIdentityPoint().ScalarMult(proof.Z1, h)
	rhs1 := edwards25519.NewIdentityPoint().Add(proof.A1, edwards25519.NewIdentityPoint().ScalarMult(proof.C1, target1))
	return lhs1.Equal(rhs1) == 1
}

// scalarPow2 encodes 2^i (i < 248) as a scalar; range proofs here never
// exceed 64 bits so this always fits well inside the canonical range.
func scalarPow2(i int) *edwards25519.Scalar {
	var buf [32]byte
	buf[i/8] = 1 << uint(i%8)
	s, err := edwards25519.NewScalar().SetCanonicalBytes(buf[:])
	if err != nil {
		panic(fmt.Sprintf("zkproof: unreachable scalarPow2 decode failure: %v", err))
	}
	return s
}
