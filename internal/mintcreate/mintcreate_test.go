package mintcreate

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	rentCalls []uint64
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	return solana.Hash{}, nil
}
func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, bool, error) {
	return nil, solana.PublicKey{}, false, nil
}
func (f *fakeRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	f.rentCalls = append(f.rentCalls, dataSize)
	return dataSize * 2, nil
}
func (f *fakeRPC) SendTransaction(ctx context.Context, txn *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}
func (f *fakeRPC) ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) error {
	return nil
}

func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeRPC) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func TestCreate_WithoutMetadata_SkipsTopUpAndMetadataInstruction(t *testing.T) {
	rpcClient := &fakeRPC{}
	creator := New(rpcClient)

	authority := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()

	plan, err := creator.Create(context.Background(), payer, Params{
		MintAuthority: authority,
		Decimals:      6,
	})
	require.NoError(t, err)
	require.NotNil(t, plan.MintKeypair)
	// create_account, init-confidential-transfer-mint, init-metadata-pointer, init-mint: no metadata, no top-up.
	require.Len(t, plan.Instructions, 4)
	require.Len(t, rpcClient.rentCalls, 1)
}

func TestCreate_WithMetadata_FundsTopUpAndWritesMetadata(t *testing.T) {
	rpcClient := &fakeRPC{}
	creator := New(rpcClient)

	authority := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()

	plan, err := creator.Create(context.Background(), payer, Params{
		MintAuthority: authority,
		Decimals:      9,
		Name:          "Test Token",
		Symbol:        "TST",
		URI:           "https://example.com/metadata.json",
	})
	require.NoError(t, err)
	// create_account, init-ct-mint, init-metadata-pointer, init-mint, top-up transfer, init-metadata.
	require.Len(t, plan.Instructions, 6)
	require.Len(t, rpcClient.rentCalls, 2)
	require.Greater(t, rpcClient.rentCalls[1], rpcClient.rentCalls[0])
}

func TestCreate_WithConfidentialMintBurn_AddsExtensionInstruction(t *testing.T) {
	rpcClient := &fakeRPC{}
	creator := New(rpcClient)

	authority := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()

	plan, err := creator.Create(context.Background(), payer, Params{
		MintAuthority:              authority,
		Decimals:                   6,
		EnableConfidentialMintBurn: true,
	})
	require.NoError(t, err)
	// create_account, init-ct-mint, init-confidential-mint-burn, init-metadata-pointer, init-mint.
	require.Len(t, plan.Instructions, 5)
}

func TestCreate_RejectsExcessiveDecimals(t *testing.T) {
	rpcClient := &fakeRPC{}
	creator := New(rpcClient)

	_, err := creator.Create(context.Background(), solana.NewWallet().PublicKey(), Params{
		MintAuthority: solana.NewWallet().PublicKey(),
		Decimals:      20,
	})
	require.Error(t, err)
}
