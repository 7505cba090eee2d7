package elgamal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// AEKeySize matches the 16-byte symmetric key the on-chain
// DecryptableBalance ciphertext is encrypted under.
const AEKeySize = 16

// AEKey is the authenticated-encryption symmetric key used to encrypt the
// owner-readable "decryptable available balance" ciphertext (spec.md
// GLOSSARY "AE key"). It is a thin AES-128-GCM wrapper: the teacher's
// stack has no third-party AEAD library, so this uses crypto/cipher
// directly (the one ambient concern in this package built on the standard
// library rather than an example-pack dependency; see DESIGN.md).
type AEKey struct {
	key [AEKeySize]byte
}

// AEKeyFromSeed derives a deterministic AE key from 16 bytes of uniformly
// random KDF output.
func AEKeyFromSeed(seed [AEKeySize]byte) AEKey {
	return AEKey{key: seed}
}

// EncryptedBalance is the on-chain encoding of an AE-encrypted u64
// balance: a random nonce followed by the GCM-sealed 8-byte
// little-endian amount.
type EncryptedBalance struct {
	Nonce      [12]byte
	Ciphertext []byte // 8-byte plaintext + 16-byte GCM tag
}

// Encrypt seals amount under k, generating a fresh random nonce.
func (k AEKey) Encrypt(amount uint64) (EncryptedBalance, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return EncryptedBalance{}, fmt.Errorf("ae: failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return EncryptedBalance{}, fmt.Errorf("ae: failed to build GCM: %w", err)
	}

	var nonce [12]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return EncryptedBalance{}, fmt.Errorf("ae: failed to read nonce: %w", err)
	}

	var plain [8]byte
	binary.LittleEndian.PutUint64(plain[:], amount)

	sealed := gcm.Seal(nil, nonce[:], plain[:], nil)
	return EncryptedBalance{Nonce: nonce, Ciphertext: sealed}, nil
}

// Decrypt opens an EncryptedBalance, surfacing a wrapped error the caller
// maps to apperr.DecryptionFailed (spec.md section 7: "treated as state
// corruption, not retried").
func (k AEKey) Decrypt(eb EncryptedBalance) (uint64, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return 0, fmt.Errorf("ae: failed to build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, fmt.Errorf("ae: failed to build GCM: %w", err)
	}

	plain, err := gcm.Open(nil, eb.Nonce[:], eb.Ciphertext, nil)
	if err != nil {
		return 0, fmt.Errorf("ae: authentication failed: %w", err)
	}
	if len(plain) != 8 {
		return 0, fmt.Errorf("ae: unexpected plaintext length %d", len(plain))
	}
	return binary.LittleEndian.Uint64(plain), nil
}

// Bytes returns the on-chain encoding: 12-byte nonce followed by the
// sealed ciphertext+tag.
func (eb EncryptedBalance) Bytes() []byte {
	out := make([]byte, 0, 12+len(eb.Ciphertext))
	out = append(out, eb.Nonce[:]...)
	out = append(out, eb.Ciphertext...)
	return out
}

// EncryptedBalanceFromBytes parses the on-chain encoding.
func EncryptedBalanceFromBytes(b []byte) (EncryptedBalance, error) {
	if len(b) < 12+8+16 {
		return EncryptedBalance{}, fmt.Errorf("ae: encoded balance too short: %d bytes", len(b))
	}
	var eb EncryptedBalance
	copy(eb.Nonce[:], b[:12])
	eb.Ciphertext = append([]byte(nil), b[12:]...)
	return eb, nil
}
