package zkproof

import (
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/require"

	"ctcustody/internal/elgamal"
)

func randomSeed(t *testing.T, b byte) [64]byte {
	t.Helper()
	var seed [64]byte
	for i := range seed {
		seed[i] = b
	}
	return seed
}

func TestEqualityProof_RoundTrip(t *testing.T) {
	senderSeed := randomSeed(t, 1)
	sender, err := elgamal.KeypairFromSeed(senderSeed)
	require.NoError(t, err)

	amount := uint64(4242)
	r1, err := elgamal.RandomScalar()
	require.NoError(t, err)
	r2, err := elgamal.RandomScalar()
	require.NoError(t, err)

	ciphertext := elgamal.Encrypt(sender.Public, amount, r1)
	commitment := elgamal.CommitmentFor(amount, r2)

	proveT := NewTranscript("equality-test")
	proof, err := ProveEquality(proveT, sender.Public, ciphertext, r1, commitment, r2, amount)
	require.NoError(t, err)

	verifyT := NewTranscript("equality-test")
	ok := VerifyEquality(verifyT, sender.Public, ciphertext, commitment, proof)
	require.True(t, ok)
}

func TestEqualityProof_RejectsWrongCommitment(t *testing.T) {
	senderSeed := randomSeed(t, 2)
	sender, err := elgamal.KeypairFromSeed(senderSeed)
	require.NoError(t, err)

	amount := uint64(100)
	r1, err := elgamal.RandomScalar()
	require.NoError(t, err)
	r2, err := elgamal.RandomScalar()
	require.NoError(t, err)

	ciphertext := elgamal.Encrypt(sender.Public, amount, r1)
	commitment := elgamal.CommitmentFor(amount, r2)

	proveT := NewTranscript("equality-test")
	proof, err := ProveEquality(proveT, sender.Public, ciphertext, r1, commitment, r2, amount)
	require.NoError(t, err)

	wrongCommitment := elgamal.CommitmentFor(amount+1, r2)
	verifyT := NewTranscript("equality-test")
	ok := VerifyEquality(verifyT, sender.Public, ciphertext, wrongCommitment, proof)
	require.False(t, ok)
}

func TestValidityProof_RoundTripWithAuditor(t *testing.T) {
	destSeed := randomSeed(t, 3)
	dest, err := elgamal.KeypairFromSeed(destSeed)
	require.NoError(t, err)
	auditSeed := randomSeed(t, 4)
	audit, err := elgamal.KeypairFromSeed(auditSeed)
	require.NoError(t, err)

	amount := uint64(777)
	r, err := elgamal.RandomScalar()
	require.NoError(t, err)

	commitment := elgamal.CommitmentFor(amount, r)
	destHandle := elgamal.HandleFor(dest.Public, r)
	auditHandle := elgamal.HandleFor(audit.Public, r)

	proveT := NewTranscript("validity-test")
	proof, err := ProveValidity(proveT, dest.Public, &audit.Public, commitment, destHandle, auditHandle, r, amount)
	require.NoError(t, err)

	verifyT := NewTranscript("validity-test")
	ok := VerifyValidity(verifyT, dest.Public, &audit.Public, commitment, destHandle, auditHandle, proof)
	require.True(t, ok)
}

func TestValidityProof_RoundTripWithoutAuditor(t *testing.T) {
	destSeed := randomSeed(t, 5)
	dest, err := elgamal.KeypairFromSeed(destSeed)
	require.NoError(t, err)

	amount := uint64(55)
	r, err := elgamal.RandomScalar()
	require.NoError(t, err)

	commitment := elgamal.CommitmentFor(amount, r)
	destHandle := elgamal.HandleFor(dest.Public, r)

	proveT := NewTranscript("validity-test-no-auditor")
	proof, err := ProveValidity(proveT, dest.Public, nil, commitment, destHandle, nil, r, amount)
	require.NoError(t, err)

	verifyT := NewTranscript("validity-test-no-auditor")
	ok := VerifyValidity(verifyT, dest.Public, nil, commitment, destHandle, nil, proof)
	require.True(t, ok)
}

func TestRangeProof_RoundTrip(t *testing.T) {
	amount := uint64(12345)
	r, err := elgamal.RandomScalar()
	require.NoError(t, err)
	commitment := elgamal.CommitmentFor(amount, r)

	proveT := NewTranscript("range-test")
	proof, err := ProveRange(proveT, amount, r, 16)
	require.NoError(t, err)
	require.Len(t, proof.BitCommitments, 16)

	verifyT := NewTranscript("range-test")
	ok := VerifyRange(verifyT, commitment, proof)
	require.True(t, ok)
}

func TestRangeProof_RejectsTamperedBit(t *testing.T) {
	amount := uint64(1)
	r, err := elgamal.RandomScalar()
	require.NoError(t, err)
	commitment := elgamal.CommitmentFor(amount, r)

	proveT := NewTranscript("range-test-tamper")
	proof, err := ProveRange(proveT, amount, r, 8)
	require.NoError(t, err)

	// Flip the stored bit commitment for bit 0 to a commitment of a
	// different bit value, which must fail the aggregation check.
	otherR, err := elgamal.RandomScalar()
	require.NoError(t, err)
	proof.BitCommitments[0] = elgamal.CommitmentFor(1, otherR)

	verifyT := NewTranscript("range-test-tamper")
	ok := VerifyRange(verifyT, commitment, proof)
	require.False(t, ok)
}

func TestScalarPow2_MatchesRepeatedDoubling(t *testing.T) {
	g := edwards25519.NewGeneratorPoint()
	acc := edwards25519.NewIdentityPoint().Set(g)
	for i := 0; i < 10; i++ {
		expected := edwards25519.NewIdentityPoint().ScalarMult(scalarPow2(i), g)
		require.Equal(t, 1, expected.Equal(acc))
		acc = edwards25519.NewIdentityPoint().Add(acc, acc)
	}
}
