package splttoken2022

import "github.com/gagliardetto/solana-go"

// NewCreateAccountInstruction builds the System program's CreateAccount
// instruction, used both for brand-new mint/token accounts and for the
// proof-context accounts a confidential transfer opens and later closes
// (spec.md section 4.5 Phase A: "rent-exempt lamports for three proof
// accounts").
func NewCreateAccountInstruction(payer, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) solana.Instruction {
	const createAccountDiscriminant = uint32(0)
	data := make([]byte, 0, 4+8+8+32)
	data = append(data, u32LE(createAccountDiscriminant)...)
	data = append(data, u64LE(lamports)...)
	data = append(data, u64LE(space)...)
	data = append(data, owner.Bytes()...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(newAccount, true, true),
	}
	return newInstruction(SystemProgramID, accounts, data)
}

// NewTransferLamportsInstruction builds the System program's Transfer
// instruction, used by MintCreator to top up rent for the
// TokenMetadata extension after the mint account's base space is
// already funded (spec.md section 4.6: "fund the metadata delta via
// a secondary transfer").
func NewTransferLamportsInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	const transferDiscriminant = uint32(2)
	data := make([]byte, 0, 4+8)
	data = append(data, u32LE(transferDiscriminant)...)
	data = append(data, u64LE(lamports)...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(from, true, true),
		solana.NewAccountMeta(to, true, false),
	}
	return newInstruction(SystemProgramID, accounts, data)
}

func u32LE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
