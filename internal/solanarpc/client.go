// Package solanarpc wraps gagliardetto/solana-go's JSON-RPC client with
// the narrow surface ctcustody's pipeline needs: blockhashes, account
// fetches, rent calculation, and submit/confirm. The teacher's wallet
// package (internal/wallet/solana.go) calls rpc.New(url) and the
// client's GetLatestBlockhash/GetTokenAccountBalance methods directly;
// this package centralizes that same client behind an interface so the
// pipeline and mint/account packages can be tested against httpmock
// without a live RPC endpoint.
package solanarpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Client is the RPC surface ctcustody depends on.
type Client interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error)
	// GetAccountInfo returns an account's data and its owning program id
	// (zero value when the account does not exist), so callers that must
	// reject an account owned by the wrong program (internal/account's
	// WrongProgramOwner check, spec.md section 4.2) don't need a second
	// round trip to learn it.
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (data []byte, owner solana.PublicKey, exists bool, err error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) error
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
}

// client is the production Client backed by a real JSON-RPC endpoint.
type client struct {
	rpc *rpc.Client
}

// New builds a Client against the given JSON-RPC endpoint URL.
func New(rpcURL string) Client {
	return &client{rpc: rpc.New(rpcURL)}
}

func (c *client) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("solanarpc: failed to fetch latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

func (c *client) GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if isAccountNotFound(err) {
			return nil, solana.PublicKey{}, false, nil
		}
		return nil, solana.PublicKey{}, false, fmt.Errorf("solanarpc: failed to fetch account %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return nil, solana.PublicKey{}, false, nil
	}
	return out.Value.Data.GetBinary(), out.Value.Owner, true, nil
}

func (c *client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, dataSize, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("solanarpc: failed to fetch rent exemption for %d bytes: %w", dataSize, err)
	}
	return lamports, nil
}

func (c *client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("solanarpc: failed to submit transaction: %w", err)
	}
	return sig, nil
}

func (c *client) ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return fmt.Errorf("solanarpc: failed to fetch signature status: %w", err)
		}
		if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("solanarpc: transaction %s failed on-chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusType(commitment) ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("solanarpc: timed out waiting for confirmation of %s", sig)
}

func (c *client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("solanarpc: failed to fetch native balance for %s: %w", account, err)
	}
	return out.Value, nil
}

// RequestAirdrop requests lamports from the cluster's faucet (devnet
// and testnet only), mirroring original_source's
// solana/airdrop.rs::request_and_confirm's single RPC call; the caller
// confirms the returned signature via ConfirmTransaction the same way
// every other submitted signature in this package is confirmed.
func (c *client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("solanarpc: failed to request airdrop for %s: %w", account, err)
	}
	return sig, nil
}

// isAccountNotFound mirrors the string-matching the teacher's wallet
// package uses against the RPC error text (internal/wallet/solana.go's
// GetBalance), since solana-go surfaces a missing account as an error
// string rather than a typed sentinel.
func isAccountNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "Invalid param")
}
