package kms

import (
	"context"
	"crypto/ed25519"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresRegion(t *testing.T) {
	_, err := New(context.Background(), &Config{
		Region: "",
		KeyID:  "alias/test",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "region is required")
}

func TestNew_RequiresKeyID(t *testing.T) {
	_, err := New(context.Background(), &Config{
		Region: "us-east-1",
		KeyID:  "",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "key ID is required")
}

// Ed25519 SubjectPublicKeyInfo:
//
//	SEQUENCE {
//	  SEQUENCE { OBJECT IDENTIFIER 1.3.101.112 }
//	  BIT STRING { 0, <32-byte raw key> }
//	}
//
// This encodes to 12 header bytes + 32 key bytes, matching the offset
// Client.fetchPublicKey assumes.
func buildEd25519SPKI(t *testing.T, raw ed25519.PublicKey) []byte {
	t.Helper()
	type algorithmIdentifier struct {
		Algorithm asn1.ObjectIdentifier
	}
	type spki struct {
		Algorithm algorithmIdentifier
		PublicKey asn1.BitString
	}
	der, err := asn1.Marshal(spki{
		Algorithm: algorithmIdentifier{Algorithm: asn1.ObjectIdentifier{1, 3, 101, 112}},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: len(raw) * 8},
	})
	require.NoError(t, err)
	return der
}

func TestFetchPublicKey_DEROffset(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	der := buildEd25519SPKI(t, pub)
	require.GreaterOrEqual(t, len(der), ed25519SPKIPublicKeyOffset+ed25519.PublicKeySize)

	got := der[len(der)-ed25519.PublicKeySize:]
	assert.Equal(t, []byte(pub), got)
}

func TestClient_Sign_RequiresMatchingCredentials(t *testing.T) {
	// Exercising Client.Sign against the real AWS KMS API requires live
	// credentials and a provisioned asymmetric key; covered by the
	// integration suite, not unit tests.
	t.Skip("requires AWS credentials and a provisioned KMS key")
}
