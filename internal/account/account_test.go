package account

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"ctcustody/internal/apperr"
	"ctcustody/internal/keys"
	"ctcustody/internal/signer"
	"ctcustody/internal/splttoken2022"
)

type fakeRPC struct {
	accounts map[solana.PublicKey][]byte
	// owners holds the program owner for an account set in accounts;
	// absent entries default to splttoken2022.ProgramID, the common case
	// every test but TestEnsure_RejectsWrongProgramOwner exercises.
	owners map[solana.PublicKey]solana.PublicKey
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{accounts: map[solana.PublicKey][]byte{}, owners: map[solana.PublicKey]solana.PublicKey{}}
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, bool, error) {
	data, ok := f.accounts[account]
	if !ok {
		return nil, solana.PublicKey{}, false, nil
	}
	owner, ok := f.owners[account]
	if !ok {
		owner = splttoken2022.ProgramID
	}
	return data, owner, true, nil
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	return 0, nil
}

func (f *fakeRPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
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

func testKeys(t *testing.T) keys.ConfidentialKeys {
	t.Helper()
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	k, err := keys.Derive(context.Background(), signer.NewLocal(priv), []byte("test-seed"))
	require.NoError(t, err)
	return k
}

func TestEnsure_CreatesAndConfiguresFromScratch(t *testing.T) {
	rpcClient := newFakeRPC()
	setup := New(rpcClient)

	feePayer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	k := testKeys(t)

	plan, err := setup.Ensure(context.Background(), feePayer, owner, mint, k)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Instructions)

	// create-idempotent + reallocate + configure + verify
	require.Len(t, plan.Instructions, 4)
}

func TestEnsure_SkipsCreateWhenATAAlreadyExists(t *testing.T) {
	rpcClient := newFakeRPC()
	setup := New(rpcClient)

	feePayer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	k := testKeys(t)

	ata, _, err := splttoken2022.FindAssociatedTokenAddress(owner, mint, splttoken2022.ProgramID)
	require.NoError(t, err)

	data := make([]byte, 165)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	rpcClient.accounts[ata] = data

	plan, err := setup.Ensure(context.Background(), feePayer, owner, mint, k)
	require.NoError(t, err)
	// reallocate + configure + verify, no create
	require.Len(t, plan.Instructions, 3)
}

func TestEnsure_RejectsMintMismatch(t *testing.T) {
	rpcClient := newFakeRPC()
	setup := New(rpcClient)

	feePayer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	wrongMint := solana.NewWallet().PublicKey()
	k := testKeys(t)

	ata, _, err := splttoken2022.FindAssociatedTokenAddress(owner, mint, splttoken2022.ProgramID)
	require.NoError(t, err)

	data := make([]byte, 165)
	copy(data[0:32], wrongMint.Bytes())
	copy(data[32:64], owner.Bytes())
	rpcClient.accounts[ata] = data

	_, err = setup.Ensure(context.Background(), feePayer, owner, mint, k)
	require.Error(t, err)
}

func TestEnsure_RejectsWrongProgramOwner(t *testing.T) {
	rpcClient := newFakeRPC()
	setup := New(rpcClient)

	feePayer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	k := testKeys(t)

	ata, _, err := splttoken2022.FindAssociatedTokenAddress(owner, mint, splttoken2022.ProgramID)
	require.NoError(t, err)

	data := make([]byte, 165)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	rpcClient.accounts[ata] = data
	rpcClient.owners[ata] = splttoken2022.LegacyTokenProgramID

	_, err = setup.Ensure(context.Background(), feePayer, owner, mint, k)
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperr.WrongProgramOwner, kind)
}
