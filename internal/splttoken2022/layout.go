package splttoken2022

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// BaseMintSize is the fixed-width base Mint account layout Token-2022
// shares with the legacy SPL Token program, before any TLV extension
// data. Extension data begins at this offset plus the one-byte account
// type discriminator the upstream program inserts for extended
// accounts.
const (
	BaseMintSize           = 82
	accountTypeByteOffset  = BaseMintSize
	tlvStartOffset         = BaseMintSize + 1
	extensionHeaderSize    = 4 // uint16 type + uint16 length
)

// ExtensionType identifies a Token-2022 TLV extension, matching the
// upstream program's ExtensionType enum.
type ExtensionType uint16

const (
	ExtensionUninitialized            ExtensionType = 0
	ExtensionMetadataPointer          ExtensionType = 18
	ExtensionConfidentialTransferMint ExtensionType = 3
	ExtensionConfidentialMintBurn     ExtensionType = 41
	ExtensionTokenMetadata            ExtensionType = 19
)

// Mint is the decoded base layout of a Token-2022 mint account.
type Mint struct {
	MintAuthorityOption uint32
	MintAuthority       solana.PublicKey
	Supply              uint64
	Decimals            uint8
	IsInitialized       bool
	FreezeAuthorityOption uint32
	FreezeAuthority     solana.PublicKey
}

// DecodeMint parses the fixed-width base Mint layout from the front of
// a mint account's data.
func DecodeMint(data []byte) (Mint, error) {
	if err := requireLen(data, BaseMintSize, "mint base layout"); err != nil {
		return Mint{}, err
	}
	var m Mint
	m.MintAuthorityOption = binary.LittleEndian.Uint32(data[0:4])
	copy(m.MintAuthority[:], data[4:36])
	m.Supply = binary.LittleEndian.Uint64(data[36:44])
	m.Decimals = data[44]
	m.IsInitialized = data[45] != 0
	m.FreezeAuthorityOption = binary.LittleEndian.Uint32(data[46:50])
	copy(m.FreezeAuthority[:], data[50:82])
	return m, nil
}

// ConfidentialTransferMint is the decoded ConfidentialTransferMint
// extension: the authority allowed to update confidential-transfer
// settings, whether new accounts auto-approve, and the auditor ElGamal
// public key (spec.md section 4.2, MintIntrospection).
type ConfidentialTransferMint struct {
	Authority              solana.PublicKey
	HasAuthority            bool
	AutoApproveNewAccounts bool
	AuditorElGamalPubkey   [32]byte
	HasAuditor              bool
}

// ConfidentialMintBurn is the decoded ConfidentialMintBurn extension.
// DecryptableSupply mirrors DecryptableAvailableBalance on token
// accounts: an AE-encrypted side channel the custodial server keeps in
// sync. ConfidentialSupply.Supply decrypts it in addition to, not in
// place of, the bounded discrete-log search over CurrentSupply, which
// fails for supplies outside the 16-bit limb range.
type ConfidentialMintBurn struct {
	ConfidentialSupplyPubkey  [32]byte
	CurrentSupply             [64]byte
	SupplyElGamalPubkey       [32]byte
	DecryptableSupply         []byte
}

// MetadataPointer is the decoded MetadataPointer extension.
type MetadataPointer struct {
	Authority       solana.PublicKey
	HasAuthority    bool
	MetadataAddress solana.PublicKey
	HasMetadata     bool
}

// MintExtensions is the set of Token-2022 extensions MintIntrospection
// (spec.md section 4.2) cares about on a given mint account.
type MintExtensions struct {
	ConfidentialTransferMint *ConfidentialTransferMint
	ConfidentialMintBurn     *ConfidentialMintBurn
	MetadataPointer          *MetadataPointer
}

// DecodeMintExtensions walks the TLV region following the base Mint
// layout and decodes the extensions MintIntrospection consumes,
// ignoring any extension type it does not recognize (spec.md section
// 4.2: unknown extensions are not an error, only unsupported ones that
// change transfer semantics are rejected by AccountSetup).
func DecodeMintExtensions(data []byte) (MintExtensions, error) {
	var out MintExtensions
	if len(data) <= tlvStartOffset {
		return out, nil
	}

	cursor := tlvStartOffset
	for cursor+extensionHeaderSize <= len(data) {
		extType := ExtensionType(binary.LittleEndian.Uint16(data[cursor : cursor+2]))
		extLen := int(binary.LittleEndian.Uint16(data[cursor+2 : cursor+4]))
		valueStart := cursor + extensionHeaderSize
		valueEnd := valueStart + extLen
		if valueEnd > len(data) {
			return out, fmt.Errorf("splttoken2022: extension type %d declares length %d past end of account data", extType, extLen)
		}
		value := data[valueStart:valueEnd]

		switch extType {
		case ExtensionConfidentialTransferMint:
			ct, err := decodeConfidentialTransferMint(value)
			if err != nil {
				return out, fmt.Errorf("failed to decode ConfidentialTransferMint extension: %w", err)
			}
			out.ConfidentialTransferMint = &ct
		case ExtensionConfidentialMintBurn:
			cmb, err := decodeConfidentialMintBurn(value)
			if err != nil {
				return out, fmt.Errorf("failed to decode ConfidentialMintBurn extension: %w", err)
			}
			out.ConfidentialMintBurn = &cmb
		case ExtensionMetadataPointer:
			mp, err := decodeMetadataPointer(value)
			if err != nil {
				return out, fmt.Errorf("failed to decode MetadataPointer extension: %w", err)
			}
			out.MetadataPointer = &mp
		}

		cursor = valueEnd
	}
	return out, nil
}

func decodeConfidentialTransferMint(v []byte) (ConfidentialTransferMint, error) {
	if err := requireLen(v, 1+32+1+1+32, "ConfidentialTransferMint extension"); err != nil {
		return ConfidentialTransferMint{}, err
	}
	var ct ConfidentialTransferMint
	ct.HasAuthority = v[0] != 0
	copy(ct.Authority[:], v[1:33])
	ct.AutoApproveNewAccounts = v[33] != 0
	ct.HasAuditor = v[34] != 0
	copy(ct.AuditorElGamalPubkey[:], v[35:67])
	return ct, nil
}

func decodeConfidentialMintBurn(v []byte) (ConfidentialMintBurn, error) {
	want := 32 + 64 + 32 + decryptableBalanceLen
	if err := requireLen(v, want, "ConfidentialMintBurn extension"); err != nil {
		return ConfidentialMintBurn{}, err
	}
	var cmb ConfidentialMintBurn
	copy(cmb.ConfidentialSupplyPubkey[:], v[0:32])
	copy(cmb.CurrentSupply[:], v[32:96])
	copy(cmb.SupplyElGamalPubkey[:], v[96:128])
	cmb.DecryptableSupply = append([]byte{}, v[128:128+decryptableBalanceLen]...)
	return cmb, nil
}

func decodeMetadataPointer(v []byte) (MetadataPointer, error) {
	if err := requireLen(v, 1+32+1+32, "MetadataPointer extension"); err != nil {
		return MetadataPointer{}, err
	}
	var mp MetadataPointer
	mp.HasAuthority = v[0] != 0
	copy(mp.Authority[:], v[1:33])
	mp.HasMetadata = v[33] != 0
	copy(mp.MetadataAddress[:], v[34:66])
	return mp, nil
}

// BaseTokenAccountSize is the fixed-width base token account layout,
// shared with the legacy SPL Token program, before any TLV extension
// data (mirrors BaseMintSize above).
const BaseTokenAccountSize = 165

// Account is the decoded base layout of a Token-2022 token account:
// just the fields BalanceReconciler and the HTTP balance endpoint need
// (spec.md section 6: "returns {..., publicBalance, ...}").
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// DecodeAccount parses the fixed-width base token account layout from
// the front of a token account's data.
func DecodeAccount(data []byte) (Account, error) {
	if err := requireLen(data, BaseTokenAccountSize, "token account base layout"); err != nil {
		return Account{}, err
	}
	var a Account
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])
	a.Amount = binary.LittleEndian.Uint64(data[64:72])
	return a, nil
}

// ConfidentialTransferAccount is the decoded ConfidentialTransferAccount
// extension on a token account: approval state, the account's ElGamal
// public key, the pending/available ciphertexts, and the
// pending-balance credit counters (spec.md section 4.2/4.3).
type ConfidentialTransferAccount struct {
	Approved                            bool
	ElGamalPubkey                       [32]byte
	PendingBalanceLo                    [64]byte
	PendingBalanceHi                    [64]byte
	AvailableBalance                    [64]byte
	DecryptableAvailableBalance         []byte
	AllowConfidentialCredits            bool
	AllowNonConfidentialCredits         bool
	PendingBalanceCreditCounter         uint64
	MaximumPendingBalanceCreditCounter  uint64
	ExpectedPendingBalanceCreditCounter uint64
	ActualPendingBalanceCreditCounter   uint64
}

// decryptableBalanceLen is the wire length of the AE-encrypted balance
// field inside the ConfidentialTransferAccount extension: a 12-byte
// nonce, 8-byte plaintext, and 16-byte GCM tag (internal/elgamal.AEKey).
const decryptableBalanceLen = 12 + 8 + 16

// DecodeConfidentialTransferAccount parses the ConfidentialTransferAccount
// extension value. Callers obtain the raw value via
// DecodeMintExtensions-style TLV walking over the account's own data;
// exposed separately here because token accounts and mint accounts are
// fetched through different RPC calls.
func DecodeConfidentialTransferAccount(v []byte) (ConfidentialTransferAccount, error) {
	want := 1 + 32 + 64 + 64 + 64 + decryptableBalanceLen + 1 + 1 + 8 + 8 + 8 + 8
	if err := requireLen(v, want, "ConfidentialTransferAccount extension"); err != nil {
		return ConfidentialTransferAccount{}, err
	}
	var ct ConfidentialTransferAccount
	cursor := 0
	ct.Approved = v[cursor] != 0
	cursor++
	copy(ct.ElGamalPubkey[:], v[cursor:cursor+32])
	cursor += 32
	copy(ct.PendingBalanceLo[:], v[cursor:cursor+64])
	cursor += 64
	copy(ct.PendingBalanceHi[:], v[cursor:cursor+64])
	cursor += 64
	copy(ct.AvailableBalance[:], v[cursor:cursor+64])
	cursor += 64
	ct.DecryptableAvailableBalance = append([]byte{}, v[cursor:cursor+decryptableBalanceLen]...)
	cursor += decryptableBalanceLen
	ct.AllowConfidentialCredits = v[cursor] != 0
	cursor++
	ct.AllowNonConfidentialCredits = v[cursor] != 0
	cursor++
	ct.PendingBalanceCreditCounter = binary.LittleEndian.Uint64(v[cursor : cursor+8])
	cursor += 8
	ct.MaximumPendingBalanceCreditCounter = binary.LittleEndian.Uint64(v[cursor : cursor+8])
	cursor += 8
	ct.ExpectedPendingBalanceCreditCounter = binary.LittleEndian.Uint64(v[cursor : cursor+8])
	cursor += 8
	ct.ActualPendingBalanceCreditCounter = binary.LittleEndian.Uint64(v[cursor : cursor+8])
	return ct, nil
}

// FindConfidentialTransferAccountExtension locates and decodes the
// ConfidentialTransferAccount extension inside a token account's TLV
// region, returning ok=false if the account has not configured the
// extension.
func FindConfidentialTransferAccountExtension(accountData []byte) (ConfidentialTransferAccount, bool, error) {
	const baseTokenAccountSize = 165
	if len(accountData) <= baseTokenAccountSize+1 {
		return ConfidentialTransferAccount{}, false, nil
	}

	const extensionConfidentialTransferAccount = ExtensionType(4)
	cursor := baseTokenAccountSize + 1
	for cursor+extensionHeaderSize <= len(accountData) {
		extType := ExtensionType(binary.LittleEndian.Uint16(accountData[cursor : cursor+2]))
		extLen := int(binary.LittleEndian.Uint16(accountData[cursor+2 : cursor+4]))
		valueStart := cursor + extensionHeaderSize
		valueEnd := valueStart + extLen
		if valueEnd > len(accountData) {
			return ConfidentialTransferAccount{}, false, fmt.Errorf("splttoken2022: extension type %d declares length %d past end of account data", extType, extLen)
		}
		if extType == extensionConfidentialTransferAccount {
			ct, err := DecodeConfidentialTransferAccount(accountData[valueStart:valueEnd])
			if err != nil {
				return ConfidentialTransferAccount{}, false, err
			}
			return ct, true, nil
		}
		cursor = valueEnd
	}
	return ConfidentialTransferAccount{}, false, nil
}
