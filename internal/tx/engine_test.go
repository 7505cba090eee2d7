package tx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

type fakeEngineRPC struct {
	blockhash    solana.Hash
	sent         *solana.Transaction
	confirmErr   error
	confirmCalls int
}

func (f *fakeEngineRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	return f.blockhash, nil
}
func (f *fakeEngineRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, bool, error) {
	return nil, solana.PublicKey{}, false, nil
}
func (f *fakeEngineRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	return 0, nil
}
func (f *fakeEngineRPC) SendTransaction(ctx context.Context, txn *solana.Transaction) (solana.Signature, error) {
	f.sent = txn
	return solana.Signature{1}, nil
}
func (f *fakeEngineRPC) ConfirmTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType, timeout time.Duration) error {
	f.confirmCalls++
	return f.confirmErr
}

func (f *fakeEngineRPC) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (f *fakeEngineRPC) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func TestEngine_SubmitAndConfirm_SignsWithAllSigners(t *testing.T) {
	feePayerSigner, feePayer := newSignerAndAccount(t)
	secondSigner, second := newSignerAndAccount(t)

	rpcClient := &fakeEngineRPC{blockhash: solana.Hash{9}}
	engine := NewEngine(rpcClient, feePayerSigner, secondSigner)

	transferIx := solana.NewInstruction(
		solana.SystemProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(feePayer, true, true),
			solana.NewAccountMeta(second, true, true),
		},
		[]byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
	)

	_, err := engine.SubmitAndConfirm(context.Background(), []solana.Instruction{transferIx}, feePayer, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	require.NotNil(t, rpcClient.sent)
	require.Equal(t, 1, rpcClient.confirmCalls)
	for _, sig := range rpcClient.sent.Signatures {
		require.NotEqual(t, solana.Signature{}, sig)
	}
}

func TestEngine_SubmitAndConfirm_PropagatesConfirmError(t *testing.T) {
	feePayerSigner, feePayer := newSignerAndAccount(t)

	rpcClient := &fakeEngineRPC{blockhash: solana.Hash{9}, confirmErr: errors.New("confirmation timed out")}
	engine := NewEngine(rpcClient, feePayerSigner)

	transferIx := solana.NewInstruction(
		solana.SystemProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(feePayer, true, true),
		},
		[]byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
	)

	_, err := engine.SubmitAndConfirm(context.Background(), []solana.Instruction{transferIx}, feePayer, rpc.CommitmentConfirmed)
	require.Error(t, err)
}

func TestSerializedSize_ReturnsPositiveLength(t *testing.T) {
	feePayerSigner, feePayer := newSignerAndAccount(t)
	txn := buildTestTransaction(t, feePayer)

	require.NoError(t, PartialSign(context.Background(), txn, feePayerSigner))

	size, err := SerializedSize(txn)
	require.NoError(t, err)
	require.Greater(t, size, 0)
}
