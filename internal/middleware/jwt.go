package middleware

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenTTL matches original_source's 24-hour session JWT (generate_jwt),
// carried over unchanged (spec.md section 6 doesn't revisit it).
const tokenTTL = 24 * time.Hour

// kid is fixed for the process lifetime: a single EdDSA keypair backs
// every token this process issues, the same way the teacher's global
// authority signer is a single long-lived key rather than rotated
// per-request.
const kid = "ctcustody-session-1"

// Claims is the bearer token's payload: the internal user id as the
// JWT subject, plus the identity-provider fields original_source's
// AuthClaims carried (telegram_user_id, username), so downstream
// handlers can log the platform identity without a second database
// round trip.
type Claims struct {
	jwt.RegisteredClaims
	PlatformUserID int64  `json:"telegram_user_id"`
	Username       string `json:"username,omitempty"`
}

// Issuer mints and verifies bearer tokens over a single process-wide
// EdDSA keypair. Unlike the teacher's device-trust JWT (HMAC over a
// shared secret), session tokens here are asymmetrically signed so the
// public half can be published at /.well-known/jwks.json for other
// internal services to verify without holding the signing secret.
type Issuer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer generates a fresh EdDSA keypair. Keys are not persisted
// across restarts: every outstanding token is invalidated on deploy,
// which is acceptable given tokenTTL is only 24 hours (documented as
// an Open Question decision in DESIGN.md).
func NewIssuer() (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("middleware: failed to generate session signing key: %w", err)
	}
	return &Issuer{priv: priv, pub: pub}, nil
}

// Issue mints a bearer token for userID, valid for tokenTTL, returning
// the signed token and its expiry.
func (iss *Issuer) Issue(userID uuid.UUID, platformUserID int64, username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PlatformUserID: platformUserID,
		Username:       username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(iss.priv)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("middleware: failed to sign bearer token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a bearer token issued by this Issuer,
// returning its claims.
func (iss *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return iss.pub, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("middleware: token failed validation")
	}
	return claims, nil
}

// PublicKey returns the verification key, published via JWKS (jwks.go).
func (iss *Issuer) PublicKey() ed25519.PublicKey {
	return iss.pub
}
