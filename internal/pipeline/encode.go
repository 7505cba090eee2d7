package pipeline

import (
	"ctcustody/internal/zkproof"
)

// encodeEquality serializes an EqualityProof into the fixed-width wire
// format the ZK ElGamal Proof program's verify instruction consumes:
// three commitment points followed by three response scalars, 32 bytes
// each (spec.md section 4.4).
func encodeEquality(p *zkproof.EqualityProof) []byte {
	out := make([]byte, 0, 32*6)
	out = append(out, p.Y0.Bytes()...)
	out = append(out, p.Y1.Bytes()...)
	out = append(out, p.Y2.Bytes()...)
	out = append(out, p.Zx.Bytes()...)
	out = append(out, p.Z1.Bytes()...)
	out = append(out, p.Z2.Bytes()...)
	return out
}

// validityProofLen is the fixed wire length of one encoded ValidityProof:
// Yc, Ydest, Yaud (always present, zero-filled when there is no auditor),
// Zx, Zr.
const validityProofLen = 32 * 5

func encodeValidity(p *zkproof.ValidityProof) []byte {
	out := make([]byte, 0, validityProofLen)
	out = append(out, p.Yc.Bytes()...)
	out = append(out, p.Ydest.Bytes()...)
	if p.Yaud != nil {
		out = append(out, p.Yaud.Bytes()...)
	} else {
		out = append(out, make([]byte, 32)...)
	}
	out = append(out, p.Zx.Bytes()...)
	out = append(out, p.Zr.Bytes()...)
	return out
}

// encodeBatchedValidity packs the lo and hi limb validity proofs into
// the single BatchedGroupedCiphertext3HandlesValidity proof Phase C's
// ciphertext-validity verify instruction expects (spec.md section 4.5
// Phase C: "two verify instructions sharing a transaction" — the
// ciphertext-validity side covers both limbs at once).
func encodeBatchedValidity(lo, hi *zkproof.ValidityProof) []byte {
	out := make([]byte, 0, validityProofLen*2)
	out = append(out, encodeValidity(lo)...)
	out = append(out, encodeValidity(hi)...)
	return out
}

// encodeRange serializes a RangeProof as the concatenation of each
// bit's commitment and Chaum-Pedersen OR-proof. Range proofs dominate
// transaction size, which is why Phase B verifies them alone (spec.md
// section 4.5: "range proofs are the largest, hence solo").
func encodeRange(p *zkproof.RangeProof) []byte {
	const perBit = 32 * 7 // commitment + A0 + A1 + C0 + C1 + Z0 + Z1
	out := make([]byte, 0, len(p.BitCommitments)*perBit)
	for i, c := range p.BitCommitments {
		out = append(out, c.Bytes()...)
		b := p.Bits[i]
		out = append(out, b.A0.Bytes()...)
		out = append(out, b.A1.Bytes()...)
		out = append(out, b.C0.Bytes()...)
		out = append(out, b.C1.Bytes()...)
		out = append(out, b.Z0.Bytes()...)
		out = append(out, b.Z1.Bytes()...)
	}
	return out
}
