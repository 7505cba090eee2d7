package supply

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"ctcustody/internal/elgamal"
	"ctcustody/internal/splttoken2022"
)

type fakeRPC struct {
	accounts map[solana.PublicKey][]byte
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	return solana.Hash{}, nil
}
func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, bool, error) {
	data, ok := f.accounts[account]
	if !ok {
		return nil, solana.PublicKey{}, false, nil
	}
	return data, splttoken2022.ProgramID, true, nil
}
func (f *fakeRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	return 0, nil
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

func supplyKeypair(t *testing.T) elgamal.Keypair {
	t.Helper()
	var seed [64]byte
	for i := range seed {
		seed[i] = 44
	}
	kp, err := elgamal.KeypairFromSeed(seed)
	require.NoError(t, err)
	return kp
}

func supplyAEKey(t *testing.T) elgamal.AEKey {
	t.Helper()
	var seed [16]byte
	for i := range seed {
		seed[i] = 55
	}
	return elgamal.AEKeyFromSeed(seed)
}

func encodeMintWithConfidentialMintBurn(t *testing.T, supply elgamal.Keypair, ae elgamal.AEKey, currentSupply, decryptableSupply uint64) []byte {
	t.Helper()

	r, err := elgamal.RandomScalar()
	require.NoError(t, err)
	ct := elgamal.Encrypt(supply.Public, currentSupply, r)
	ctBytes := ct.Bytes()

	eb, err := ae.Encrypt(decryptableSupply)
	require.NoError(t, err)
	ebBytes := eb.Bytes()

	var cmbExt []byte
	cmbExt = append(cmbExt, make([]byte, 32)...) // confidential supply pubkey, unused by this query
	cmbExt = append(cmbExt, ctBytes[:]...)
	pub := supply.Public.Bytes()
	cmbExt = append(cmbExt, pub[:]...)
	cmbExt = append(cmbExt, ebBytes...)

	data := make([]byte, splttoken2022.BaseMintSize+1)
	data[44] = 6
	data[45] = 1

	header := []byte{byte(splttoken2022.ExtensionConfidentialMintBurn), byte(splttoken2022.ExtensionConfidentialMintBurn >> 8), byte(len(cmbExt)), byte(len(cmbExt) >> 8)}
	data = append(data, header...)
	data = append(data, cmbExt...)
	return data
}

func TestSupply_DecryptsBothChannels(t *testing.T) {
	supplyKp := supplyKeypair(t)
	ae := supplyAEKey(t)

	mint := solana.NewWallet().PublicKey()
	rpcClient := &fakeRPC{accounts: map[solana.PublicKey][]byte{
		mint: encodeMintWithConfidentialMintBurn(t, supplyKp, ae, 42, 100),
	}}

	service := New(rpcClient)
	snap, err := service.Supply(context.Background(), mint, supplyKp.Secret, ae)
	require.NoError(t, err)
	require.Equal(t, uint64(42), snap.CurrentSupply)
	require.Equal(t, uint64(100), snap.DecryptableSupply)
}

func TestSupply_RejectsMintWithoutConfidentialMintBurn(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	data := make([]byte, splttoken2022.BaseMintSize+1)
	data[44] = 6
	data[45] = 1

	rpcClient := &fakeRPC{accounts: map[solana.PublicKey][]byte{mint: data}}
	service := New(rpcClient)

	_, err := service.Supply(context.Background(), mint, supplyKeypair(t).Secret, supplyAEKey(t))
	require.Error(t, err)
}
