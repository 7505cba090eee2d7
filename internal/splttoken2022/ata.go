package splttoken2022

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AssociatedTokenProgramID is the fixed SPL Associated Token Account
// program.
var AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// ProgramID is the Token-2022 program id, distinct from the legacy SPL
// Token program the teacher's wallet package derives ATAs against.
var ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// LegacyTokenProgramID is the original SPL Token program id. An
// existing account at a confidential account's expected ATA address
// owned by this program instead of ProgramID is rejected up front as
// WrongProgramOwner (spec.md section 4.2) rather than failing deep
// inside a later instruction that assumes the Token-2022 layout.
var LegacyTokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

// FindAssociatedTokenAddress derives the ATA for (owner, mint) under an
// explicit token program id, generalizing gagliardetto/solana-go's
// FindAssociatedTokenAddress (which hardcodes the legacy Token program)
// to also support Token-2022, as every confidential-transfer account in
// this spec must.
func FindAssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{
		owner.Bytes(),
		tokenProgram.Bytes(),
		mint.Bytes(),
	}
	addr, bump, err := solana.FindProgramAddress(seeds, AssociatedTokenProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive Token-2022 ATA: %w", err)
	}
	return addr, bump, nil
}
