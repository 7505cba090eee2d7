package solanarpc

import (
	"context"
	"net/http"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const testRPCURL = "http://localhost:8899"

func TestGetLatestBlockhash(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRPCURL, httpmock.NewStringResponder(200, `{
		"jsonrpc": "2.0",
		"result": {
			"context": {"slot": 1},
			"value": {
				"blockhash": "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
				"lastValidBlockHeight": 1000
			}
		},
		"id": 1
	}`))

	c := New(testRPCURL)
	hash, err := c.GetLatestBlockhash(context.Background(), rpc.CommitmentFinalized)
	require.NoError(t, err)
	require.Equal(t, solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"), hash)
}

func TestGetAccountInfo_NotFound(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRPCURL, httpmock.NewStringResponder(200, `{
		"jsonrpc": "2.0",
		"result": {"context": {"slot": 1}, "value": null},
		"id": 1
	}`))

	c := New(testRPCURL)
	data, owner, ok, err := c.GetAccountInfo(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, data)
	require.Equal(t, solana.PublicKey{}, owner)
}

func TestGetAccountInfo_ReturnsOwner(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRPCURL, httpmock.NewStringResponder(200, `{
		"jsonrpc": "2.0",
		"result": {
			"context": {"slot": 1},
			"value": {
				"data": ["", "base64"],
				"executable": false,
				"lamports": 2039280,
				"owner": "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb",
				"rentEpoch": 0
			}
		},
		"id": 1
	}`))

	c := New(testRPCURL)
	_, owner, ok, err := c.GetAccountInfo(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"), owner)
}

func TestGetMinimumBalanceForRentExemption(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRPCURL, httpmock.NewStringResponder(200, `{
		"jsonrpc": "2.0",
		"result": 2039280,
		"id": 1
	}`))

	c := New(testRPCURL)
	lamports, err := c.GetMinimumBalanceForRentExemption(context.Background(), 165)
	require.NoError(t, err)
	require.Equal(t, uint64(2039280), lamports)
}

func TestGetBalance(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRPCURL, httpmock.NewStringResponder(200, `{
		"jsonrpc": "2.0",
		"result": {"context": {"slot": 1}, "value": 1000000000},
		"id": 1
	}`))

	c := New(testRPCURL)
	lamports, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.Equal(t, uint64(1000000000), lamports)
}

func TestRequestAirdrop(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, testRPCURL, httpmock.NewStringResponder(200, `{
		"jsonrpc": "2.0",
		"result": "4jJVr5xtZW2hWX9Vw8GAsGDhKGaxTbkk2SAJyhK8D2F1tWNwEaeSEsE9dZPjPvGdMVt5GgGHwDGMd6j7mAjRbSqi",
		"id": 1
	}`))

	c := New(testRPCURL)
	sig, err := c.RequestAirdrop(context.Background(), solana.NewWallet().PublicKey(), 1_000_000_000)
	require.NoError(t, err)
	require.NotEqual(t, solana.Signature{}, sig)
}

func TestIsAccountNotFound(t *testing.T) {
	require.True(t, isAccountNotFound(errLike("could not find account")))
	require.True(t, isAccountNotFound(errLike("Invalid param: ...")))
	require.False(t, isAccountNotFound(errLike("some other RPC failure")))
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errLike(msg string) error { return stringError(msg) }
