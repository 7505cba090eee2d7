package keys

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctcustody/internal/signer"
)

func newTestSigner(t *testing.T) signer.Signer {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return signer.NewLocal(priv)
}

func TestDerive_Deterministic(t *testing.T) {
	s := newTestSigner(t)
	seed := []byte("owner-mint-ata-bytes")

	k1, err := Derive(context.Background(), s, seed)
	require.NoError(t, err)
	k2, err := Derive(context.Background(), s, seed)
	require.NoError(t, err)

	assert.Equal(t, k1.ElGamal.Public.Bytes(), k2.ElGamal.Public.Bytes())
}

func TestDerive_DistinctSeedsDiffer(t *testing.T) {
	s := newTestSigner(t)

	k1, err := Derive(context.Background(), s, []byte("seed-a"))
	require.NoError(t, err)
	k2, err := Derive(context.Background(), s, []byte("seed-b"))
	require.NoError(t, err)

	assert.NotEqual(t, k1.ElGamal.Public.Bytes(), k2.ElGamal.Public.Bytes())
}

func TestDerive_DistinctSigners(t *testing.T) {
	s1 := newTestSigner(t)
	s2 := newTestSigner(t)
	seed := []byte("same-seed")

	k1, err := Derive(context.Background(), s1, seed)
	require.NoError(t, err)
	k2, err := Derive(context.Background(), s2, seed)
	require.NoError(t, err)

	assert.NotEqual(t, k1.ElGamal.Public.Bytes(), k2.ElGamal.Public.Bytes())
}

func TestDerive_StaticSignatureMatchesInProcessSignerWhenSeedSigned(t *testing.T) {
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	local := signer.NewLocal(priv)

	seed := []byte("client-signed-seed")

	// The precomputed-signature adapter is only equivalent to the
	// in-process signer when the client signs the exact message Derive
	// signs internally: domainTag || seed. This test signs that message
	// directly to demonstrate the equivalence spec.md section 4.1 requires.
	domainTag := elgamalDomainTag
	message := append([]byte(domainTag), seed...)
	sig, err := priv.Sign(message)
	require.NoError(t, err)

	static := signer.NewStaticSignature(local.PublicKey(), sig)

	elgamalSeedLocal, err := deriveSignatureSeed(context.Background(), local, elgamalDomainTag, seed, 64)
	require.NoError(t, err)
	elgamalSeedStatic, err := deriveSignatureSeed(context.Background(), static, elgamalDomainTag, seed, 64)
	require.NoError(t, err)

	assert.Equal(t, elgamalSeedLocal, elgamalSeedStatic)
}

func TestATASeed_Deterministic(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	s1, err := ATASeed(owner, mint)
	require.NoError(t, err)
	s2, err := ATASeed(owner, mint)
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
}
