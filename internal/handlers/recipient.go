package handlers

import (
	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/apperr"
	"ctcustody/internal/transfer"
)

// parseRecipient resolves a request's recipient fields into a
// transfer.Recipient, preferring an explicit pubkey over a username
// when both are present (spec.md section 6: "pubkey recipient" vs
// "resolves recipient by platform username").
func parseRecipient(pubkey, username string) (transfer.Recipient, error) {
	if pubkey != "" {
		pk, err := solana.PublicKeyFromBase58(pubkey)
		if err != nil {
			return transfer.Recipient{}, apperr.Wrap(apperr.BadRequest, "invalid recipient pubkey", err)
		}
		return transfer.Recipient{Pubkey: &pk}, nil
	}
	if username == "" {
		return transfer.Recipient{}, apperr.New(apperr.BadRequest, "recipient requires a pubkey or username")
	}
	return transfer.Recipient{Username: username}, nil
}

// parseMint decodes a base58 mint address from a request field.
func parseMint(raw string) (solana.PublicKey, error) {
	mint, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, apperr.Wrap(apperr.BadRequest, "invalid mint", err)
	}
	return mint, nil
}
