package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueVerify_RoundTrip(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)

	userID := uuid.New()
	token, _, err := iss.Issue(userID, 42, "alice")
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, int64(42), claims.PlatformUserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestIssuer_Verify_RejectsForeignSigner(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)
	other, err := NewIssuer()
	require.NoError(t, err)

	token, _, err := other.Issue(uuid.New(), 1, "mallory")
	require.NoError(t, err)

	_, err = iss.Verify(token)
	require.Error(t, err)
}

func TestIssuer_Verify_RejectsExpired(t *testing.T) {
	iss, err := NewIssuer()
	require.NoError(t, err)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * tokenTTL)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(iss.priv)
	require.NoError(t, err)

	_, err = iss.Verify(signed)
	require.Error(t, err)
}
