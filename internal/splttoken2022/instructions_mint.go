package splttoken2022

import "github.com/gagliardetto/solana-go"

// NewInitializeMintInstruction builds the base SPL Token-2022
// InitializeMint2 instruction. It must be the first instruction to
// touch the mint account after extensions are initialized, per the
// upstream program's extension-initialization ordering rule (spec.md
// section 4.6: "extensions before InitializeMint2").
func NewInitializeMintInstruction(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	const initializeMint2Discriminant = byte(20)
	data := []byte{initializeMint2Discriminant, decimals}
	data = append(data, mintAuthority.Bytes()...)
	if freezeAuthority != nil {
		data = append(data, 1)
		data = append(data, freezeAuthority.Bytes()...)
	} else {
		data = append(data, 0)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewInitializeConfidentialTransferMintInstruction turns on the
// ConfidentialTransferMint extension for mint, configuring the
// authority allowed to update it and the auditor ElGamal public key
// (spec.md section 4.6: "the mint carries ... an auditor ElGamal
// public key").
//
// autoApproveNewAccounts, when true, lets any account configure itself
// for confidential transfers without mint-authority approval.
func NewInitializeConfidentialTransferMintInstruction(
	mint solana.PublicKey,
	authority *solana.PublicKey,
	autoApproveNewAccounts bool,
	auditorElGamalPubkey *[32]byte,
) solana.Instruction {
	data := []byte{byte(discConfidentialTransferExtension), byte(ctSubInitializeMint)}
	if authority != nil {
		data = append(data, 1)
		data = append(data, authority.Bytes()...)
	} else {
		data = append(data, 0)
	}
	if autoApproveNewAccounts {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	if auditorElGamalPubkey != nil {
		data = append(data, 1)
		data = append(data, auditorElGamalPubkey[:]...)
	} else {
		data = append(data, 0)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewInitializeConfidentialMintBurnMintInstruction turns on the
// ConfidentialMintBurn extension, which lets the mint authority mint
// directly into a recipient's confidential balance rather than through
// the public-balance + deposit path (spec.md section 4.6, "confidential
// mint path").
func NewInitializeConfidentialMintBurnMintInstruction(mint solana.PublicKey, authorityElGamalPubkey [32]byte, supplyElGamalPubkey [32]byte) solana.Instruction {
	data := []byte{byte(discConfidentialMintBurnExtension), byte(cmbSubInitializeMint)}
	data = append(data, authorityElGamalPubkey[:]...)
	data = append(data, supplyElGamalPubkey[:]...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewInitializeMetadataPointerInstruction points the mint's metadata
// extension at a metadata account (spec.md section 4.6 supplemented
// feature: token metadata).
func NewInitializeMetadataPointerInstruction(mint solana.PublicKey, authority *solana.PublicKey, metadataAddress *solana.PublicKey) solana.Instruction {
	data := []byte{byte(discMetadataPointerExtension), 0}
	if authority != nil {
		data = append(data, 1)
		data = append(data, authority.Bytes()...)
	} else {
		data = append(data, 0)
	}
	if metadataAddress != nil {
		data = append(data, 1)
		data = append(data, metadataAddress.Bytes()...)
	} else {
		data = append(data, 0)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
	}
	return newInstruction(ProgramID, accounts, data)
}

// tokenMetadataInitializeDiscriminator is the 8-byte Anchor-style
// discriminator for the spl-token-metadata-interface's Initialize
// instruction, computed upstream as
// sha256("spl_token_metadata_interface:initialize")[:8].
var tokenMetadataInitializeDiscriminator = [8]byte{210, 225, 30, 162, 88, 184, 77, 141}

// NewInitializeMetadataInstruction writes the mint's name/symbol/uri
// into its own account storage (the mint doubles as the metadata
// account when MetadataPointer points at itself, the common case this
// package supports).
func NewInitializeMetadataInstruction(metadataAccount, updateAuthority, mint, mintAuthority solana.PublicKey, name, symbol, uri string) solana.Instruction {
	data := append([]byte{}, tokenMetadataInitializeDiscriminator[:]...)
	data = append(data, encodeBorshString(name)...)
	data = append(data, encodeBorshString(symbol)...)
	data = append(data, encodeBorshString(uri)...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(metadataAccount, true, false),
		solana.NewAccountMeta(updateAuthority, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(mintAuthority, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

func encodeBorshString(s string) []byte {
	b := make([]byte, 4+len(s))
	b[0] = byte(len(s))
	b[1] = byte(len(s) >> 8)
	b[2] = byte(len(s) >> 16)
	b[3] = byte(len(s) >> 24)
	copy(b[4:], s)
	return b
}

// NewMintToInstruction mints amount of the public balance to
// destination, the standard (non-confidential) mint path (spec.md
// section 4.6 supplemented feature).
func NewMintToInstruction(mint, destination, mintAuthority solana.PublicKey, amount uint64) solana.Instruction {
	data := []byte{byte(discMintTo)}
	data = append(data, u64LE(amount)...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(mintAuthority, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}

// NewConfidentialMintInstruction mints directly into destination's
// confidential available balance under the ConfidentialMintBurn
// extension, referencing a pre-verified range-proof context account
// (spec.md section 4.6, "confidential mint path" / section 4.4 range
// proof reuse).
func NewConfidentialMintInstruction(
	mint, destination, mintAuthority solana.PublicKey,
	rangeProofAccount solana.PublicKey,
	newSupplyElGamalCiphertext []byte,
	newDestinationDecryptableBalance []byte,
	mintCiphertextLo, mintCiphertextHi []byte,
) solana.Instruction {
	data := []byte{byte(discConfidentialMintBurnExtension), byte(cmbSubConfidentialMint)}
	data = append(data, newSupplyElGamalCiphertext...)
	data = append(data, newDestinationDecryptableBalance...)
	data = append(data, mintCiphertextLo...)
	data = append(data, mintCiphertextHi...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(mint, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(rangeProofAccount, false, false),
		solana.NewAccountMeta(mintAuthority, false, true),
	}
	return newInstruction(ProgramID, accounts, data)
}
