// Package kms wraps AWS KMS asymmetric signing for custodial wallet keys.
//
// Unlike the symmetric Encrypt/Decrypt wrapper this package generalizes
// from, a confidential-transfer signer needs an Ed25519 *signature* over a
// transaction message, not a ciphertext blob. AWS KMS supports Ed25519 as
// an asymmetric signing key spec (EDDSA_ED25519); Client.Sign and
// Client.fetchPublicKey below call that API directly.
package kms

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/gagliardetto/solana-go"
)

// Config holds KMS client configuration.
type Config struct {
	Region string
	KeyID  string
}

// Client wraps an AWS KMS asymmetric Ed25519 key used as a custodial
// wallet signing backend. It satisfies signer.Signer.
type Client struct {
	kms   *kms.Client
	keyID string

	pub solana.PublicKey
}

// New creates a new KMS client and resolves the key's Ed25519 public key.
// It uses AWS SDK's default credential chain (env vars, IAM role, etc.),
// exactly as the teacher's symmetric wrapper does.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("KMS region is required")
	}
	if cfg.KeyID == "" {
		return nil, fmt.Errorf("KMS key ID is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	c := &Client{
		kms:   kms.NewFromConfig(awsCfg),
		keyID: cfg.KeyID,
	}

	pub, err := c.fetchPublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve KMS key public key: %w", err)
	}
	c.pub = pub

	return c, nil
}

// KeyID returns the KMS key ID/ARN being used.
func (c *Client) KeyID() string {
	return c.keyID
}

// PublicKey returns the wallet's Solana public key, satisfying
// signer.Signer.
func (c *Client) PublicKey() solana.PublicKey {
	return c.pub
}

// Sign produces an Ed25519 signature over message via KMS, satisfying
// signer.Signer. It blocks for the remote call; callers on a cooperative
// scheduler must invoke it from a dedicated blocking context (spec.md
// section 5 / section 9).
func (c *Client) Sign(ctx context.Context, message []byte) (solana.Signature, error) {
	out, err := c.kms.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(c.keyID),
		Message:          message,
		MessageType:      types.MessageTypeRaw,
		SigningAlgorithm: types.SigningAlgorithmSpecEddsaEd25519,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("KMS sign failed: %w", err)
	}

	var sig solana.Signature
	if len(out.Signature) != len(sig) {
		return solana.Signature{}, fmt.Errorf("unexpected KMS signature length: got %d, want %d", len(out.Signature), len(sig))
	}
	copy(sig[:], out.Signature)

	if !ed25519.Verify(ed25519.PublicKey(c.pub[:]), message, sig[:]) {
		return solana.Signature{}, fmt.Errorf("KMS signature failed local verification against cached public key")
	}

	return sig, nil
}

// ed25519SPKIPublicKeyOffset is the byte offset of the raw 32-byte public
// key within the ASN.1 SubjectPublicKeyInfo DER encoding GetPublicKey
// returns for an Ed25519 key: a 12-byte AlgorithmIdentifier + BIT STRING
// header followed by the raw key (spec.md section 8, scenario F: "last 32
// bytes").
const ed25519SPKIPublicKeyOffset = 12

func (c *Client) fetchPublicKey(ctx context.Context) (solana.PublicKey, error) {
	out, err := c.kms.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(c.keyID),
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("KMS GetPublicKey failed: %w", err)
	}

	if len(out.PublicKey) < ed25519SPKIPublicKeyOffset+ed25519.PublicKeySize {
		return solana.PublicKey{}, fmt.Errorf("DER public key too short for Ed25519: %d bytes", len(out.PublicKey))
	}

	rawKey := out.PublicKey[len(out.PublicKey)-ed25519.PublicKeySize:]
	return solana.PublicKeyFromBytes(rawKey), nil
}
