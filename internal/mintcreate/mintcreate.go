// Package mintcreate implements MintCreator (spec.md section 4.6):
// assembling the instruction sequence that creates a new Token-2022
// mint with confidential-transfer extensions and optional metadata,
// handling the two-phase rent funding a variable-length metadata
// extension requires.
package mintcreate

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/apperr"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
)

// Value sizes of the fixed-size extensions MintCreator turns on
// (ConfidentialTransferMint, MetadataPointer, optionally
// ConfidentialMintBurn) and the 4-byte TLV header each carries;
// baseSpace adds them to BaseMintSize plus the account-type byte.
const (
	confidentialTransferMintValueSpace = 1 + 32 + 1 + 1 + 32
	confidentialMintBurnValueSpace     = 32 + 64 + 32 + 36
	metadataPointerValueSpace          = 1 + 32 + 1 + 32
	tlvHeaderSpace                     = 4
)

// Params describes the mint MintCreator builds.
type Params struct {
	MintAuthority        solana.PublicKey
	Decimals             uint8
	AuditorElGamalPubkey *[32]byte
	AutoApproveAccounts  bool

	// MintKeypair, when set, is used as the new mint's signing
	// keypair instead of a freshly generated one. Callers that need
	// to know the mint's public key before Create runs (e.g. to
	// derive ConfidentialMintBurn supply ElGamal keys from it) can
	// generate the keypair themselves first.
	MintKeypair *solana.PrivateKey

	EnableConfidentialMintBurn            bool
	ConfidentialMintBurnAuthorityElGamal  [32]byte
	ConfidentialMintBurnSupplyElGamal     [32]byte

	// Metadata is optional: when Name is empty no metadata extension
	// is created.
	Name, Symbol, URI string
}

// Plan is the instruction batch and the new mint's keypair; the rent for
// both funding phases is carried by the create_account and top-up
// instructions inside Instructions.
type Plan struct {
	MintKeypair  *solana.PrivateKey
	Instructions []solana.Instruction
}

// Creator resolves MintCreator's create_mint operation.
type Creator struct {
	rpc solanarpc.Client
}

// New builds a Creator over the given RPC client.
func New(rpc solanarpc.Client) *Creator {
	return &Creator{rpc: rpc}
}

// baseSpace computes the fixed-extension space MintCreator always
// reserves before InitializeMint2 (spec.md section 4.6 step 1).
func baseSpace(p Params) uint64 {
	space := uint64(splttoken2022.BaseMintSize) + 1 // account-type byte
	space += tlvHeaderSpace + confidentialTransferMintValueSpace
	space += tlvHeaderSpace + metadataPointerValueSpace
	if p.EnableConfidentialMintBurn {
		space += tlvHeaderSpace + confidentialMintBurnValueSpace
	}
	return space
}

// metadataTLVSpace computes the variable-length space the
// TokenMetadata extension needs to hold (name, symbol, uri) inline
// (spec.md section 4.6 step 2).
func metadataTLVSpace(name, symbol, uri string) uint64 {
	// tokenMetadataInitializeDiscriminator (8) + three borsh strings,
	// each a 4-byte length prefix plus content.
	return uint64(8 + 4 + len(name) + 4 + len(symbol) + 4 + len(uri))
}

// Create assembles the instruction sequence for a new mint, funding
// the account at base_space, then topping up rent for the metadata
// extension via a secondary transfer carrying exactly
// rent(base+metadata) - rent(base) (spec.md section 4.6 steps 3-4).
func (c *Creator) Create(ctx context.Context, feePayer solana.PublicKey, p Params) (Plan, error) {
	if err := requireDecimals(p.Decimals); err != nil {
		return Plan{}, apperr.Wrap(apperr.BadRequest, "invalid decimals", err)
	}

	mintPriv := p.MintKeypair
	if mintPriv == nil {
		generated, err := solana.NewRandomPrivateKey()
		if err != nil {
			return Plan{}, apperr.Wrap(apperr.KeyDerivationFailed, "failed to generate mint keypair", err)
		}
		mintPriv = &generated
	}
	mint := mintPriv.PublicKey()

	base := baseSpace(p)
	baseRent, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, base)
	if err != nil {
		return Plan{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch base rent", err)
	}

	var instructions []solana.Instruction
	instructions = append(instructions, splttoken2022.NewCreateAccountInstruction(feePayer, mint, baseRent, base, splttoken2022.ProgramID))

	authority := p.MintAuthority
	instructions = append(instructions, splttoken2022.NewInitializeConfidentialTransferMintInstruction(
		mint, &authority, p.AutoApproveAccounts, p.AuditorElGamalPubkey,
	))

	if p.EnableConfidentialMintBurn {
		instructions = append(instructions, splttoken2022.NewInitializeConfidentialMintBurnMintInstruction(
			mint, p.ConfidentialMintBurnAuthorityElGamal, p.ConfidentialMintBurnSupplyElGamal,
		))
	}

	hasMetadata := p.Name != ""
	var metadataAddr *solana.PublicKey
	if hasMetadata {
		metadataAddr = &mint // the mint doubles as its own metadata account
	}
	instructions = append(instructions, splttoken2022.NewInitializeMetadataPointerInstruction(mint, &authority, metadataAddr))

	instructions = append(instructions, splttoken2022.NewInitializeMintInstruction(mint, p.Decimals, p.MintAuthority, &p.MintAuthority))

	if hasMetadata {
		metaSpace := metadataTLVSpace(p.Name, p.Symbol, p.URI)
		totalRent, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, base+metaSpace)
		if err != nil {
			return Plan{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch base+metadata rent", err)
		}
		topUp := totalRent - baseRent
		if topUp > 0 {
			instructions = append(instructions, splttoken2022.NewTransferLamportsInstruction(feePayer, mint, topUp))
		}
		instructions = append(instructions, splttoken2022.NewInitializeMetadataInstruction(
			mint, authority, mint, p.MintAuthority, p.Name, p.Symbol, p.URI,
		))
	}

	return Plan{MintKeypair: mintPriv, Instructions: instructions}, nil
}

// requireDecimals is a guard MintCreator checks before issuing any
// instruction, since Token-2022 rejects an out-of-range decimals byte
// at InitializeMint2 time only after the account is already funded.
func requireDecimals(d uint8) error {
	if d > 19 {
		return fmt.Errorf("mintcreate: decimals %d exceeds the maximum a u64 amount can represent", d)
	}
	return nil
}
