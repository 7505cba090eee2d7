package splttoken2022

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ConfidentialTransferAccountExtensionSpace is the additional byte length
// the Reallocate instruction must add to an existing token account so it
// has room for the ConfidentialTransferAccount extension: a 4-byte TLV
// header plus the 295-byte value DecodeConfidentialTransferAccount reads
// (spec.md section 4.2, AccountSetup step 1).
const ConfidentialTransferAccountExtensionSpace = 299

// DefaultMaximumPendingBalanceCreditCounter is the cap AccountSetup
// configures every new confidential account with (spec.md section 4.2:
// "a maximum pending-balance credit counter of 65536").
const DefaultMaximumPendingBalanceCreditCounter = 65536

// NewReallocateInstruction grows accountAddr to accommodate
// ConfidentialTransferAccountExtensionSpace more bytes, funded by
// payer, per spec.md section 4.2 step 2.1.
func NewReallocateInstruction(payer, accountAddr, owner solana.PublicKey, extensionSpace uint64) solana.Instruction {
	data := []byte{byte(discReallocate)}
	data = append(data, u64LE(extensionSpace)...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accountAddr, true, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(SystemProgramID, false, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewConfigureAccountInstruction emits the instruction that turns on the
// ConfidentialTransferAccount extension for accountAddr: it carries the
// encrypted zero balance and credit-counter cap inline, and expects the
// PubkeyValidity proof to be referenced at +1 instruction offset
// (spec.md section 4.2, "ProofLocation::InstructionOffset(+1)").
//
// decryptableZeroBalance is the AE-encrypted ciphertext of 0 under the
// owner's AE key, and elgamalPubkey is the confidential account's ElGamal
// public key (the owner's per-(owner,mint) key, spec.md section 4.1).
func NewConfigureAccountInstruction(
	accountAddr, mint, owner solana.PublicKey,
	elgamalPubkey [32]byte,
	decryptableZeroBalance []byte,
	maximumPendingBalanceCreditCounter uint64,
) solana.Instruction {
	data := []byte{byte(discConfidentialTransferExtension), byte(ctSubConfigureAccount)}
	data = append(data, elgamalPubkey[:]...)
	data = append(data, decryptableZeroBalance...)
	data = append(data, u64LE(maximumPendingBalanceCreditCounter)...)
	// proof_instruction_offset: i8, +1 means "read proof data from the
	// instruction immediately following this one" (spec.md section 4.2).
	data = append(data, byte(1))

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accountAddr, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewDepositInstruction moves amount (public balance units) from the
// public to the pending confidential balance of accountAddr (spec.md
// section 4.3 step 3).
func NewDepositInstruction(accountAddr, mint, owner solana.PublicKey, amount uint64, decimals uint8) solana.Instruction {
	data := []byte{byte(discConfidentialTransferExtension), byte(ctSubDeposit)}
	data = append(data, u64LE(amount)...)
	data = append(data, decimals)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accountAddr, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewApplyPendingBalanceInstruction folds the pending balance into the
// available balance, writing newDecryptableAvailableBalance as the fresh
// AE ciphertext and asserting expectedPendingBalanceCreditCounter matches
// the on-chain counter atomically (spec.md section 4.3 step 4).
func NewApplyPendingBalanceInstruction(
	accountAddr, owner solana.PublicKey,
	expectedPendingBalanceCreditCounter uint64,
	newDecryptableAvailableBalance []byte,
) solana.Instruction {
	data := []byte{byte(discConfidentialTransferExtension), byte(ctSubApplyPendingBalance)}
	data = append(data, u64LE(expectedPendingBalanceCreditCounter)...)
	data = append(data, newDecryptableAvailableBalance...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accountAddr, true, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// TransferProofAccounts names the three proof-context-account pubkeys a
// confidential transfer instruction references (spec.md section 4.5 Phase
// D), in the order the on-chain instruction expects them.
type TransferProofAccounts struct {
	EqualityProof            solana.PublicKey
	CiphertextValidityProof  solana.PublicKey
	RangeProof               solana.PublicKey
}

// NewTransferInstruction builds the confidential-transfer instruction
// referencing the three verified proof accounts plus the new source
// ciphertext and the recipient-bound ciphertext limbs (spec.md section
// 4.5 Phase D).
func NewTransferInstruction(
	source, mint, destination, owner solana.PublicKey,
	proofs TransferProofAccounts,
	newSourceDecryptableAvailableBalance []byte,
	ciphertextLo, ciphertextHi []byte,
) solana.Instruction {
	data := []byte{byte(discConfidentialTransferExtension), byte(ctSubTransfer)}
	data = append(data, newSourceDecryptableAvailableBalance...)
	data = append(data, ciphertextLo...)
	data = append(data, ciphertextHi...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(proofs.EqualityProof, false, false),
		solana.NewAccountMeta(proofs.CiphertextValidityProof, false, false),
		solana.NewAccountMeta(proofs.RangeProof, false, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// WithdrawProofAccounts names the two proof-context-account pubkeys a
// confidential withdraw references (spec.md section 4.4: "withdraw
// generates (equality, range) only").
type WithdrawProofAccounts struct {
	EqualityProof solana.PublicKey
	RangeProof    solana.PublicKey
}

// NewWithdrawInstruction moves amount out of the confidential available
// balance back to the public balance.
func NewWithdrawInstruction(
	accountAddr, mint, owner solana.PublicKey,
	amount uint64, decimals uint8,
	proofs WithdrawProofAccounts,
	newDecryptableAvailableBalance []byte,
) solana.Instruction {
	data := []byte{byte(discConfidentialTransferExtension), byte(ctSubWithdraw)}
	data = append(data, u64LE(amount)...)
	data = append(data, decimals)
	data = append(data, newDecryptableAvailableBalance...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accountAddr, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(proofs.EqualityProof, false, false),
		solana.NewAccountMeta(proofs.RangeProof, false, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewCreateAssociatedTokenAccountIdempotentInstruction emits the ATA
// program's idempotent create instruction (a no-op if the account already
// exists), per spec.md section 4.2.
func NewCreateAssociatedTokenAccountIdempotentInstruction(payer, owner, mint, tokenProgram solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := FindAssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("failed to derive ATA: %w", err)
	}

	const createIdempotentDiscriminant = byte(1)
	data := []byte{createIdempotentDiscriminant}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	return newInstruction(AssociatedTokenProgramID, accounts, data), ata, nil
}
