// Package account implements AccountSetup (spec.md section 4.2):
// ensuring a confidential token account exists and is configured for
// confidential transfers, building the instruction batch that does so.
package account

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/apperr"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/keys"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
	"ctcustody/internal/zkproof"
)

// Setup resolves AccountSetup's ensure_confidential_account operation.
type Setup struct {
	rpc solanarpc.Client
}

// New builds a Setup over the given RPC client.
func New(rpc solanarpc.Client) *Setup {
	return &Setup{rpc: rpc}
}

// Plan is the instruction batch ensure_confidential_account produces,
// plus the resolved ATA address callers need to reference downstream.
type Plan struct {
	ATA          solana.PublicKey
	Instructions []solana.Instruction
}

// Ensure builds the instruction batch needed to bring owner's token
// account for mint to a fully-configured confidential-transfer state,
// per spec.md section 4.2. It is idempotent: instructions already
// satisfied on-chain are omitted.
func (s *Setup) Ensure(ctx context.Context, feePayer, owner, mint solana.PublicKey, k keys.ConfidentialKeys) (Plan, error) {
	ata, _, err := splttoken2022.FindAssociatedTokenAddress(owner, mint, splttoken2022.ProgramID)
	if err != nil {
		return Plan{}, apperr.Wrap(apperr.BadRequest, "failed to derive associated token account", err)
	}

	var instructions []solana.Instruction

	data, programOwner, exists, err := s.rpc.GetAccountInfo(ctx, ata)
	if err != nil {
		return Plan{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch associated token account", err)
	}

	if !exists {
		createIx, createdATA, err := splttoken2022.NewCreateAssociatedTokenAccountIdempotentInstruction(feePayer, owner, mint, splttoken2022.ProgramID)
		if err != nil {
			return Plan{}, apperr.Wrap(apperr.BadRequest, "failed to build ATA create instruction", err)
		}
		if !createdATA.Equals(ata) {
			return Plan{}, apperr.New(apperr.BadRequest, "derived ATA mismatch between setup and instruction builder")
		}
		instructions = append(instructions, createIx)
	} else if err := validateTokenAccountOwnership(data, programOwner, owner, mint); err != nil {
		return Plan{}, err
	}

	needsConfidentialConfigure := true
	if exists {
		_, found, err := splttoken2022.FindConfidentialTransferAccountExtension(data)
		if err != nil {
			return Plan{}, apperr.Wrap(apperr.BadRequest, "failed to decode token account extensions", err)
		}
		needsConfidentialConfigure = !found
	}

	if needsConfidentialConfigure {
		reallocIx := splttoken2022.NewReallocateInstruction(feePayer, ata, owner, splttoken2022.ConfidentialTransferAccountExtensionSpace)
		instructions = append(instructions, reallocIx)

		zeroBalance, err := k.AE.Encrypt(0)
		if err != nil {
			return Plan{}, apperr.Wrap(apperr.ProofGenerationFailed, "failed to encrypt zero balance", err)
		}

		proof, err := buildPubkeyValidityProof(k.ElGamal)
		if err != nil {
			return Plan{}, apperr.Wrap(apperr.ProofGenerationFailed, "failed to build pubkey validity proof", err)
		}

		configureIx := splttoken2022.NewConfigureAccountInstruction(
			ata, mint, owner,
			k.ElGamal.Public.Bytes(),
			zeroBalance.Bytes(),
			splttoken2022.DefaultMaximumPendingBalanceCreditCounter,
		)
		instructions = append(instructions, configureIx)

		verifyIx := splttoken2022.NewVerifyPubkeyValidityInstruction(proof)
		instructions = append(instructions, verifyIx)
	}

	return Plan{ATA: ata, Instructions: instructions}, nil
}

// validateTokenAccountOwnership checks the failure conditions spec.md
// section 4.2 names: WrongProgramOwner and ATAMismatch. programOwner is
// the Solana account's own owning program, fetched alongside its data
// by solanarpc.Client.GetAccountInfo; checking it first means a legacy
// SPL-Token (non-2022) account at the expected ATA address is rejected
// here instead of failing deep inside a later on-chain instruction. The
// token account's base owner/mint fields live in the first 64 bytes of
// the base SPL Token account layout (owner at bytes [32:64], mint at
// bytes [0:32]), which only the 2022 program's layout is known to match.
func validateTokenAccountOwnership(data []byte, programOwner, expectedOwner, expectedMint solana.PublicKey) error {
	if !programOwner.Equals(splttoken2022.ProgramID) {
		return apperr.New(apperr.WrongProgramOwner, fmt.Sprintf("token account is owned by program %s, not %s", programOwner, splttoken2022.ProgramID))
	}

	const baseTokenAccountSize = 165
	if err := requireMinLen(data, baseTokenAccountSize); err != nil {
		return apperr.Wrap(apperr.BadRequest, "token account data too short", err)
	}

	var mint, owner solana.PublicKey
	copy(mint[:], data[0:32])
	copy(owner[:], data[32:64])

	if !mint.Equals(expectedMint) {
		return apperr.New(apperr.BadRequest, fmt.Sprintf("ATAMismatch: token account mint %s does not match expected mint %s", mint, expectedMint))
	}
	if !owner.Equals(expectedOwner) {
		return apperr.New(apperr.BadRequest, fmt.Sprintf("ATAMismatch: token account owner %s does not match expected owner %s", owner, expectedOwner))
	}
	return nil
}

func requireMinLen(data []byte, n int) error {
	if len(data) < n {
		return fmt.Errorf("account: need at least %d bytes, have %d", n, len(data))
	}
	return nil
}

// buildPubkeyValidityProof proves knowledge of the ElGamal secret key
// behind k.Public, the inline proof ConfigureAccount consumes at +1
// instruction offset (spec.md section 4.2).
func buildPubkeyValidityProof(k elgamal.Keypair) ([]byte, error) {
	t := zkproof.NewTranscript("pubkey-validity")
	r, err := elgamal.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("account: failed to sample pubkey validity blind: %w", err)
	}
	// PubkeyValidity proves knowledge of the secret scalar behind a
	// public key via a vanilla Schnorr proof: this reuses the equality
	// proof's commitment-side relation (amount=0, dedicated randomness
	// playing the role of the secret scalar) against the ElGamal public
	// key itself rather than against a handle, since a bare Schnorr proof
	// of knowledge of a discrete log is exactly what ConfigureAccount
	// needs here.
	proof, err := zkproof.ProveValidity(t, k.Public, nil, elgamal.CommitmentFor(0, r), elgamal.HandleFor(k.Public, r), nil, r, 0)
	if err != nil {
		return nil, err
	}
	return encodeValidityProof(proof), nil
}

func encodeValidityProof(p *zkproof.ValidityProof) []byte {
	out := make([]byte, 0, 32*4)
	out = append(out, p.Yc.Bytes()...)
	out = append(out, p.Ydest.Bytes()...)
	out = append(out, p.Zx.Bytes()...)
	out = append(out, p.Zr.Bytes()...)
	return out
}
