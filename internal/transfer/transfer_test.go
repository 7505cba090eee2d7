//go:build integration

// Exercises the full transfer orchestration against a real PostgreSQL
// instance for wallet persistence (internal/db/db_test.go's rationale
// applies here too) and a fake Solana RPC client for the on-chain
// side, the same split internal/balance's tests use.
package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ctcustody/internal/db"
	"ctcustody/internal/elgamal"
	"ctcustody/internal/keys"
	"ctcustody/internal/signer"
	"ctcustody/internal/splttoken2022"
	"ctcustody/internal/wallet"
)

type fakeRPC struct {
	accounts map[solana.PublicKey][]byte
}

func newFakeRPC() *fakeRPC { return &fakeRPC{accounts: map[solana.PublicKey][]byte{}} }

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

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func encodeMint(t *testing.T, decimals uint8) []byte {
	t.Helper()
	data := make([]byte, splttoken2022.BaseMintSize+1)
	data[44] = decimals
	data[45] = 1

	var ctExt []byte
	ctExt = append(ctExt, 0)
	ctExt = append(ctExt, make([]byte, 32)...)
	ctExt = append(ctExt, 1)
	ctExt = append(ctExt, 0)
	ctExt = append(ctExt, make([]byte, 32)...)

	header := []byte{byte(splttoken2022.ExtensionConfidentialTransferMint), byte(splttoken2022.ExtensionConfidentialTransferMint >> 8), byte(len(ctExt)), byte(len(ctExt) >> 8)}
	data = append(data, header...)
	data = append(data, ctExt...)
	return data
}

func encodeConfiguredAccount(t *testing.T, owner, mint solana.PublicKey, k keys.ConfidentialKeys, available uint64) []byte {
	t.Helper()

	rLo, err := elgamal.RandomScalar()
	require.NoError(t, err)
	rHi, err := elgamal.RandomScalar()
	require.NoError(t, err)
	ctLo := elgamal.Encrypt(k.ElGamal.Public, 0, rLo)
	ctHi := elgamal.Encrypt(k.ElGamal.Public, 0, rHi)
	decryptable, err := k.AE.Encrypt(available)
	require.NoError(t, err)
	decBytes := decryptable.Bytes()

	var ext []byte
	ext = append(ext, 1)
	pub := k.ElGamal.Public.Bytes()
	ext = append(ext, pub[:]...)
	loBytes := ctLo.Bytes()
	ext = append(ext, loBytes[:]...)
	hiBytes := ctHi.Bytes()
	ext = append(ext, hiBytes[:]...)
	ext = append(ext, make([]byte, 64)...)
	ext = append(ext, decBytes...)
	ext = append(ext, 1, 1)
	ext = append(ext, u64le(0)...)
	ext = append(ext, u64le(65536)...)
	ext = append(ext, u64le(0)...)
	ext = append(ext, u64le(0)...)

	const baseTokenAccountSize = 165
	data := make([]byte, baseTokenAccountSize+1)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	data[baseTokenAccountSize] = 1 // account type: token account

	header := []byte{4, 0, byte(len(ext)), byte(len(ext) >> 8)}
	data = append(data, header...)
	data = append(data, ext...)
	return data
}

func startTestDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ctcustody",
				"POSTGRES_PASSWORD": "ctcustody",
				"POSTGRES_DB":       "ctcustody",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://ctcustody:ctcustody@%s:%s/ctcustody?sslmode=disable", host, port.Port())
	database, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, database.Exec(ctx, db.Schema))
	return database
}

// provisionedWallet creates a live user, provisions a wallet for it,
// and returns the wallet's pubkey and ConfidentialKeys for mint.
func provisionedWallet(t *testing.T, ctx context.Context, database *db.DB, svc *wallet.Service, externalID string, platformUserID int64, username string, mint solana.PublicKey) (solana.PublicKey, keys.ConfidentialKeys) {
	t.Helper()
	user, err := database.CreateLiveUser(ctx, externalID, platformUserID, username, "")
	require.NoError(t, err)
	w, sgn, err := svc.Provision(ctx, user.ID)
	require.NoError(t, err)

	pub, err := solana.PublicKeyFromBase58(w.Pubkey)
	require.NoError(t, err)
	seed, err := keys.ATASeed(pub, mint)
	require.NoError(t, err)
	k, err := keys.Derive(ctx, sgn, seed)
	require.NoError(t, err)
	return pub, k
}

func TestTransfer_HappyPath_AlreadyConfiguredAccounts(t *testing.T) {
	database := startTestDB(t)
	svc := wallet.New(database)
	ctx := context.Background()

	mint := solana.NewWallet().PublicKey()
	senderPub, senderKeys := provisionedWallet(t, ctx, database, svc, "telegram", 1, "sender", mint)
	recipientPub, recipientKeys := provisionedWallet(t, ctx, database, svc, "telegram", 2, "recipient", mint)

	rpcClient := newFakeRPC()
	rpcClient.accounts[mint] = encodeMint(t, 6)

	senderATA, _, err := splttoken2022.FindAssociatedTokenAddress(senderPub, mint, splttoken2022.ProgramID)
	require.NoError(t, err)
	recipientATA, _, err := splttoken2022.FindAssociatedTokenAddress(recipientPub, mint, splttoken2022.ProgramID)
	require.NoError(t, err)
	rpcClient.accounts[senderATA] = encodeConfiguredAccount(t, senderPub, mint, senderKeys, 500)
	rpcClient.accounts[recipientATA] = encodeConfiguredAccount(t, recipientPub, mint, recipientKeys, 0)

	senderUser, err := database.GetWalletByPubkey(ctx, senderPub.String())
	require.NoError(t, err)

	engine := New(rpcClient, database, svc, nil, rpc.CommitmentConfirmed)
	result, err := engine.Transfer(ctx, senderUser.UserID, mint, Recipient{Pubkey: &recipientPub}, 120)
	require.NoError(t, err)
	require.False(t, result.NewWallet)

	var labels []string
	for _, p := range result.Phases {
		labels = append(labels, p.Label)
	}
	require.Equal(t, []string{
		"Create Proof Accounts",
		"Verify Proof Accounts: Range",
		"Verify Proof Accounts: Equality, Ciphertext",
		"Transfer",
		"Close Proof Accounts",
	}, labels)
}

func TestTransfer_UsernameRecipient_CreatesReservedWallet(t *testing.T) {
	database := startTestDB(t)
	svc := wallet.New(database)
	ctx := context.Background()

	mint := solana.NewWallet().PublicKey()
	senderPub, senderKeys := provisionedWallet(t, ctx, database, svc, "telegram", 10, "funder", mint)

	rpcClient := newFakeRPC()
	rpcClient.accounts[mint] = encodeMint(t, 6)
	senderATA, _, err := splttoken2022.FindAssociatedTokenAddress(senderPub, mint, splttoken2022.ProgramID)
	require.NoError(t, err)
	rpcClient.accounts[senderATA] = encodeConfiguredAccount(t, senderPub, mint, senderKeys, 500)

	senderUser, err := database.GetWalletByPubkey(ctx, senderPub.String())
	require.NoError(t, err)

	engine := New(rpcClient, database, svc, nil, rpc.CommitmentConfirmed)
	result, err := engine.Transfer(ctx, senderUser.UserID, mint, Recipient{Username: "brandnewbie"}, 50)
	require.NoError(t, err)
	require.True(t, result.NewWallet)

	_, err = database.GetWalletByPubkey(ctx, result.RecipientWallet.String())
	require.NoError(t, err)
}

func unusedImports() { _ = signer.Signer(nil) }
