package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Wallet is a custodied signing identity (spec.md section 3): an
// opaque internal id, the owning user, the Solana public key, and an
// opaque key handle whose meaning depends on the signer implementation
// (internal/signer.Local encodes a local secret; internal/kms encodes a
// remote key id).
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Pubkey    string
	KeyHandle string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrWalletNotFound is returned by lookups that find no matching row.
var ErrWalletNotFound = errors.New("db: wallet not found")

// CreateWallet inserts a new wallet row. Pubkey must be unique across
// all wallets (spec.md section 3 invariant).
func (db *DB) CreateWallet(ctx context.Context, userID uuid.UUID, pubkey, keyHandle string) (*Wallet, error) {
	var w Wallet
	err := db.QueryRow(ctx, `
		INSERT INTO wallets (user_id, pubkey, key_handle)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, pubkey, key_handle, created_at, updated_at
	`, userID, pubkey, keyHandle).Scan(
		&w.ID, &w.UserID, &w.Pubkey, &w.KeyHandle, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create wallet: %w", err)
	}
	return &w, nil
}

// GetWalletByUserID returns the wallet owned by userID.
func (db *DB) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := db.QueryRow(ctx, `
		SELECT id, user_id, pubkey, key_handle, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(
		&w.ID, &w.UserID, &w.Pubkey, &w.KeyHandle, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("db: failed to get wallet by user id: %w", err)
	}
	return &w, nil
}

// GetWalletByPubkey returns the wallet with the given Solana public key.
func (db *DB) GetWalletByPubkey(ctx context.Context, pubkey string) (*Wallet, error) {
	var w Wallet
	err := db.QueryRow(ctx, `
		SELECT id, user_id, pubkey, key_handle, created_at, updated_at
		FROM wallets
		WHERE pubkey = $1
	`, pubkey).Scan(
		&w.ID, &w.UserID, &w.Pubkey, &w.KeyHandle, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("db: failed to get wallet by pubkey: %w", err)
	}
	return &w, nil
}
