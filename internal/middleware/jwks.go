package middleware

import (
	"context"
	"fmt"

	"github.com/MicahParks/jwkset"
	"github.com/gofiber/fiber/v3"
)

// JWKS publishes an Issuer's EdDSA public key as a standard JSON Web
// Key Set, so other internal services can verify session tokens
// without sharing the signing secret (spec.md's ambient auth stack,
// generalizing the teacher's declared-but-unwired jwkset/keyfunc pair
// into an actually-served endpoint).
type JWKS struct {
	storage jwkset.Storage
}

// NewJWKS builds the published key set from iss's public key.
func NewJWKS(ctx context.Context, iss *Issuer) (*JWKS, error) {
	storage := jwkset.NewMemoryStorage()

	jwk, err := jwkset.NewJWKFromKey(iss.PublicKey(), jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			KID: kid,
			ALG: jwkset.AlgEdDSA,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("middleware: failed to build JWK: %w", err)
	}
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("middleware: failed to write JWK to storage: %w", err)
	}

	return &JWKS{storage: storage}, nil
}

// Handler serves the published key set at GET /.well-known/jwks.json.
func (j *JWKS) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		marshaled, err := j.storage.JSON(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to marshal key set")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(marshaled)
	}
}
