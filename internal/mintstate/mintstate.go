// Package mintstate implements MintIntrospection (spec.md section 4.2):
// read-only queries over a Token-2022 mint's base layout and TLV
// extensions, built on internal/splttoken2022's decoders and
// internal/solanarpc's account fetches.
package mintstate

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/apperr"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/splttoken2022"
)

// ConfidentialFeature names an extension MintIntrospection reports on,
// matching spec.md section 4.2's
// "enabled_confidential_features(mint) → set of {...}".
type ConfidentialFeature string

const (
	FeatureConfidentialTransferMint ConfidentialFeature = "ConfidentialTransferMint"
	FeatureConfidentialMintBurn     ConfidentialFeature = "ConfidentialMintBurn"
	FeatureMetadataPointer          ConfidentialFeature = "MetadataPointer"
)

// Introspector resolves MintIntrospection's read-only queries against a
// live mint account.
type Introspector struct {
	rpc solanarpc.Client
}

// New builds an Introspector over the given RPC client.
func New(rpc solanarpc.Client) *Introspector {
	return &Introspector{rpc: rpc}
}

// Snapshot bundles the base Mint layout plus its decoded
// confidential-transfer-relevant extensions, so a single RPC round
// trip answers every MintIntrospection query for one mint.
type Snapshot struct {
	Mint       splttoken2022.Mint
	Extensions splttoken2022.MintExtensions
}

// Fetch retrieves and decodes a mint account.
func (i *Introspector) Fetch(ctx context.Context, mint solana.PublicKey) (Snapshot, error) {
	data, _, ok, err := i.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.RPCSubmissionFailed, "failed to fetch mint account", err)
	}
	if !ok {
		return Snapshot{}, apperr.New(apperr.NotFound, fmt.Sprintf("mint %s not found", mint))
	}

	base, err := splttoken2022.DecodeMint(data)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.BadRequest, "failed to decode mint base layout", err)
	}
	ext, err := splttoken2022.DecodeMintExtensions(data)
	if err != nil {
		return Snapshot{}, apperr.Wrap(apperr.BadRequest, "failed to decode mint extensions", err)
	}

	return Snapshot{Mint: base, Extensions: ext}, nil
}

// Decimals resolves "decimals(mint)".
func (s Snapshot) Decimals() uint8 {
	return s.Mint.Decimals
}

// EnabledConfidentialFeatures resolves
// "enabled_confidential_features(mint)".
func (s Snapshot) EnabledConfidentialFeatures() []ConfidentialFeature {
	var features []ConfidentialFeature
	if s.Extensions.ConfidentialTransferMint != nil {
		features = append(features, FeatureConfidentialTransferMint)
	}
	if s.Extensions.ConfidentialMintBurn != nil {
		features = append(features, FeatureConfidentialMintBurn)
	}
	if s.Extensions.MetadataPointer != nil {
		features = append(features, FeatureMetadataPointer)
	}
	return features
}

// AuditorElGamalPubkey resolves "auditor_elgamal_pubkey(mint)".
func (s Snapshot) AuditorElGamalPubkey() (elgamal.PublicKey, bool, error) {
	if s.Extensions.ConfidentialTransferMint == nil || !s.Extensions.ConfidentialTransferMint.HasAuditor {
		return elgamal.PublicKey{}, false, nil
	}
	pk, err := elgamal.PublicKeyFromBytes(s.Extensions.ConfidentialTransferMint.AuditorElGamalPubkey)
	if err != nil {
		return elgamal.PublicKey{}, false, fmt.Errorf("mintstate: failed to decode auditor ElGamal pubkey: %w", err)
	}
	return pk, true, nil
}

// SupplyCiphertext resolves "supply_ciphertext(mint)": the current
// confidential supply, present only when ConfidentialMintBurn is
// enabled.
func (s Snapshot) SupplyCiphertext() ([64]byte, bool) {
	if s.Extensions.ConfidentialMintBurn == nil {
		return [64]byte{}, false
	}
	return s.Extensions.ConfidentialMintBurn.CurrentSupply, true
}

// SupplyElGamalPubkey resolves the ConfidentialMintBurn extension's
// supply-side ElGamal public key, present only when the extension is
// enabled.
func (s Snapshot) SupplyElGamalPubkey() (elgamal.PublicKey, bool, error) {
	if s.Extensions.ConfidentialMintBurn == nil {
		return elgamal.PublicKey{}, false, nil
	}
	pk, err := elgamal.PublicKeyFromBytes(s.Extensions.ConfidentialMintBurn.SupplyElGamalPubkey)
	if err != nil {
		return elgamal.PublicKey{}, false, fmt.Errorf("mintstate: failed to decode supply ElGamal pubkey: %w", err)
	}
	return pk, true, nil
}

// DecryptableSupply resolves the ConfidentialMintBurn extension's
// AE-encrypted decryptable-supply side channel, present only when the
// extension is enabled.
func (s Snapshot) DecryptableSupply() ([]byte, bool) {
	if s.Extensions.ConfidentialMintBurn == nil {
		return nil, false
	}
	return s.Extensions.ConfidentialMintBurn.DecryptableSupply, true
}
