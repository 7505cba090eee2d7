package elgamal

import (
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
)

// RandomScalar returns a uniformly random scalar, used as the blinding
// factor r for a fresh Pedersen commitment / ElGamal encryption.
func RandomScalar() (*edwards25519.Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("elgamal: failed to read randomness: %w", err)
	}
	return edwards25519.NewScalar().SetUniformBytes(buf[:])
}
