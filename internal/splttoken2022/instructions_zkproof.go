package splttoken2022

import "github.com/gagliardetto/solana-go"

// zkProofInstruction is the leading byte of every ZK ElGamal Proof
// program instruction, selecting which proof type is being verified (or
// that a context account is being closed).
type zkProofInstruction byte

const (
	zkVerifyPubkeyValidity        zkProofInstruction = 1
	zkVerifyCiphertextValidity    zkProofInstruction = 3
	zkVerifyCiphertextCommitmentEquality zkProofInstruction = 2
	zkVerifyBatchedRangeProofU64  zkProofInstruction = 6
	zkCloseContextState           zkProofInstruction = 14
)

// NewVerifyPubkeyValidityInstruction submits the PubkeyValidity proof
// ConfigureAccount consumes at +1 instruction offset (spec.md section
// 4.2). proofData is the serialized proof produced by
// internal/zkproof.
//
// It takes no context account: the instruction carries no accounts and
// the verified proof is not persisted, the inline form confidential
// transfer's ConfigureAccount path uses.
func NewVerifyPubkeyValidityInstruction(proofData []byte) solana.Instruction {
	data := append([]byte{byte(zkVerifyPubkeyValidity)}, proofData...)
	return newInstruction(ZkElGamalProofProgramID, solana.AccountMetaSlice{}, data)
}

// NewVerifyCiphertextCommitmentEqualityInstruction opens a durable proof
// context account at contextAccount holding a verified
// CiphertextCommitmentEquality proof, one of the three Transfer expects
// (spec.md section 4.4/4.5 Phase C).
func NewVerifyCiphertextCommitmentEqualityInstruction(contextAccount solana.PublicKey, proofData []byte) solana.Instruction {
	data := append([]byte{byte(zkVerifyCiphertextCommitmentEquality)}, proofData...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(contextAccount, true, false),
	}
	return newInstruction(ZkElGamalProofProgramID, accounts, data)
}

// NewVerifyCiphertextValidityInstruction opens a durable proof context
// account holding a verified BatchedGroupedCiphertext3HandlesValidity
// proof (spec.md section 4.4/4.5 Phase C).
func NewVerifyCiphertextValidityInstruction(contextAccount solana.PublicKey, proofData []byte) solana.Instruction {
	data := append([]byte{byte(zkVerifyCiphertextValidity)}, proofData...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(contextAccount, true, false),
	}
	return newInstruction(ZkElGamalProofProgramID, accounts, data)
}

// NewVerifyBatchedRangeProofInstruction opens a durable proof context
// account holding a verified BatchedRangeProofU64 proof over the new
// available balance, verified alone in spec.md section 4.5 Phase B.
func NewVerifyBatchedRangeProofInstruction(contextAccount solana.PublicKey, proofData []byte) solana.Instruction {
	data := append([]byte{byte(zkVerifyBatchedRangeProofU64)}, proofData...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(contextAccount, true, false),
	}
	return newInstruction(ZkElGamalProofProgramID, accounts, data)
}

// NewCloseContextStateInstruction reclaims the rent lamports held by a
// proof context account back to destination, the last step of the
// proof-account lifecycle (spec.md section 4.5 Phase E).
func NewCloseContextStateInstruction(contextAccount, destination, contextAccountAuthority solana.PublicKey) solana.Instruction {
	data := []byte{byte(zkCloseContextState)}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(contextAccount, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(contextAccountAuthority, false, true),
	}
	return newInstruction(ZkElGamalProofProgramID, accounts, data)
}
