// Package wallet implements the Wallet/User domain model and the
// reserved-wallet claim transition (spec.md section 3, section 9):
// internal/db holds the raw persistence, this package owns the
// business rules layered on top of it — provisioning a fresh signing
// identity, and resolving an authenticated login to the right user
// row.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"ctcustody/internal/apperr"
	"ctcustody/internal/db"
	"ctcustody/internal/signer"
)

// Service resolves wallet provisioning and claim-or-create login over
// a persistence layer.
type Service struct {
	db *db.DB
}

// New builds a Service over database.
func New(database *db.DB) *Service {
	return &Service{db: database}
}

// Signer reconstructs the signing capability for an existing wallet
// row from its persisted key handle. Per spec.md's ambient stack note
// (internal/kms is reserved for the process-wide authority key),
// per-user wallets are local Ed25519 keypairs: the key handle is the
// base58 encoding of the 64-byte private key, exactly as
// internal/signer.Local documents.
func Signer(w *db.Wallet) (signer.Signer, error) {
	priv, err := solana.PrivateKeyFromBase58(w.KeyHandle)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to decode key handle: %w", err)
	}
	return signer.NewLocal(priv), nil
}

// Provision generates a brand-new local Ed25519 keypair for userID,
// persists it as a wallet row, and returns both the row and a
// ready-to-use Signer over it.
func (s *Service) Provision(ctx context.Context, userID uuid.UUID) (*db.Wallet, signer.Signer, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("wallet: failed to generate keypair: %w", err)
	}
	sgn := signer.NewLocal(priv)

	w, err := s.db.CreateWallet(ctx, userID, sgn.PublicKey().String(), priv.String())
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to persist new wallet", err)
	}
	return w, sgn, nil
}

// Import persists userID's wallet from a caller-supplied raw private
// key instead of generating one, for signer backends that support
// import (spec.md section 6: "body with optional raw seed bytes if
// the signer backend supports import"). rawPrivateKeyBase58 must be
// the base58 encoding of a 64-byte Ed25519 private key, the same
// encoding Provision persists as a wallet's key handle.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, rawPrivateKeyBase58 string) (*db.Wallet, signer.Signer, error) {
	priv, err := solana.PrivateKeyFromBase58(rawPrivateKeyBase58)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.BadRequest, "invalid private key", err)
	}
	sgn := signer.NewLocal(priv)

	w, err := s.db.CreateWallet(ctx, userID, sgn.PublicKey().String(), priv.String())
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to persist imported wallet", err)
	}
	return w, sgn, nil
}

// EnsureWallet returns userID's wallet, provisioning one on first use
// if none exists yet (spec.md section 3: "created on first user
// request").
func (s *Service) EnsureWallet(ctx context.Context, userID uuid.UUID) (*db.Wallet, signer.Signer, error) {
	w, err := s.db.GetWalletByUserID(ctx, userID)
	if err == nil {
		sgn, err := Signer(w)
		return w, sgn, err
	}
	if !errors.Is(err, db.ErrWalletNotFound) {
		return nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to look up wallet", err)
	}
	return s.Provision(ctx, userID)
}

// LookupByUsername returns the user row reserved or claimed under
// username, case-insensitively, for callers that need to inspect
// reservation state without performing a claim (e.g. reporting
// whether a login claimed a pre-existing reserved wallet).
func (s *Service) LookupByUsername(ctx context.Context, username string) (*db.User, error) {
	u, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.DatabaseError, "failed to look up user by username", err)
	}
	return u, nil
}

// ClaimOrCreate resolves spec.md section 9's login flow: an
// authenticated identity with (externalID, platformUserID, username)
// either claims a pre-reserved user row (converting it to live,
// exactly once across concurrent logins), attaches to an existing live
// user, or creates a brand-new one — in that order of preference.
func (s *Service) ClaimOrCreate(ctx context.Context, externalID string, platformUserID int64, username, displayName string) (*db.User, *db.Wallet, signer.Signer, error) {
	if username != "" {
		claimed, ok, err := s.db.ClaimReservedUser(ctx, username, platformUserID, displayName)
		if err != nil {
			return nil, nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to claim reserved user", err)
		}
		if ok {
			w, sgn, err := s.EnsureWallet(ctx, claimed.ID)
			return claimed, w, sgn, err
		}
	}

	existing, err := s.db.GetUserByPlatformID(ctx, platformUserID)
	if err == nil {
		w, sgn, err := s.EnsureWallet(ctx, existing.ID)
		return existing, w, sgn, err
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		return nil, nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to look up user by platform id", err)
	}

	created, err := s.db.CreateLiveUser(ctx, externalID, platformUserID, username, displayName)
	if err != nil {
		return nil, nil, nil, apperr.Wrap(apperr.DatabaseError, "failed to create live user", err)
	}
	w, sgn, err := s.Provision(ctx, created.ID)
	return created, w, sgn, err
}
