// Command admin is the operator CLI for the confidential-transfer
// custodial server: creating mints and querying confidential supply
// state, driven directly against Solana RPC with the
// global authority signer rather than through the HTTP API (spec.md
// section 4.9's operations are privileged enough that a local operator
// tool, not a remote admin-token call, is the expected path).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"

	"ctcustody/internal/keys"
	"ctcustody/internal/mintcreate"
	"ctcustody/internal/signer"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/supply"
	"ctcustody/internal/tx"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00D4AA"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ctcustody-admin",
		Short: "Operator CLI for the confidential-transfer custodial server",
	}
	rootCmd.PersistentFlags().String("rpc-url", envOr("SOLANA_RPC_URL", rpc.DevNet_RPC), "Solana JSON-RPC endpoint")
	rootCmd.PersistentFlags().String("authority-key", os.Getenv("GLOBAL_AUTHORITY_KEY"), "base58 global authority private key")

	createMintCmd := &cobra.Command{
		Use:   "create-mint",
		Short: "Create a new Token-2022 mint with confidential-transfer extensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			decimals, _ := cmd.Flags().GetUint8("decimals")
			autoApprove, _ := cmd.Flags().GetBool("auto-approve")
			mintBurn, _ := cmd.Flags().GetBool("confidential-mint-burn")
			name, _ := cmd.Flags().GetString("name")
			symbol, _ := cmd.Flags().GetString("symbol")
			uri, _ := cmd.Flags().GetString("uri")
			return runCreateMint(cmd, decimals, autoApprove, mintBurn, name, symbol, uri)
		},
	}
	createMintCmd.Flags().Uint8("decimals", 6, "mint decimals")
	createMintCmd.Flags().Bool("auto-approve", true, "auto-approve new confidential accounts")
	createMintCmd.Flags().Bool("confidential-mint-burn", false, "enable the ConfidentialMintBurn extension")
	createMintCmd.Flags().String("name", "", "token metadata name")
	createMintCmd.Flags().String("symbol", "", "token metadata symbol")
	createMintCmd.Flags().String("uri", "", "token metadata URI")

	supplyCmd := &cobra.Command{
		Use:   "supply <mint>",
		Short: "Show a confidential mint's decrypted supply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupply(cmd, args[0])
		},
	}

	rootCmd.AddCommand(createMintCmd, supplyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func resolveAuthority(cmd *cobra.Command) (signer.Signer, error) {
	raw, _ := cmd.Flags().GetString("authority-key")
	if raw == "" {
		return nil, fmt.Errorf("missing --authority-key (or GLOBAL_AUTHORITY_KEY)")
	}
	priv, err := solana.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid authority key: %w", err)
	}
	return signer.NewLocal(priv), nil
}

func runCreateMint(cmd *cobra.Command, decimals uint8, autoApprove, confidentialMintBurn bool, name, symbol, uri string) error {
	rpcURL, _ := cmd.Flags().GetString("rpc-url")
	authority, err := resolveAuthority(cmd)
	if err != nil {
		return err
	}
	rpcClient := solanarpc.New(rpcURL)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	mintPriv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return err
	}

	params := mintcreate.Params{
		MintKeypair:         &mintPriv,
		MintAuthority:       authority.PublicKey(),
		Decimals:            decimals,
		AutoApproveAccounts: autoApprove,
		Name:                name,
		Symbol:              symbol,
		URI:                 uri,
	}
	if confidentialMintBurn {
		supplyKeys, err := keys.Derive(ctx, authority, mintPriv.PublicKey().Bytes())
		if err != nil {
			return err
		}
		params.EnableConfidentialMintBurn = true
		params.ConfidentialMintBurnAuthorityElGamal = supplyKeys.ElGamal.Public.Bytes()
		params.ConfidentialMintBurnSupplyElGamal = supplyKeys.ElGamal.Public.Bytes()
	}

	creator := mintcreate.New(rpcClient)
	plan, err := creator.Create(ctx, authority.PublicKey(), params)
	if err != nil {
		return err
	}

	engine := tx.NewEngine(rpcClient, authority, signer.NewLocal(mintPriv))
	sig, err := engine.SubmitAndConfirm(ctx, plan.Instructions, authority.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Mint created"))
	fmt.Printf("mint:      %s\n", plan.MintKeypair.PublicKey())
	fmt.Printf("signature: %s\n", sig)
	return nil
}

func runSupply(cmd *cobra.Command, mintArg string) error {
	rpcURL, _ := cmd.Flags().GetString("rpc-url")
	authority, err := resolveAuthority(cmd)
	if err != nil {
		return err
	}
	mint, err := solana.PublicKeyFromBase58(mintArg)
	if err != nil {
		return fmt.Errorf("invalid mint: %w", err)
	}

	rpcClient := solanarpc.New(rpcURL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	supplyKeys, err := keys.Derive(ctx, authority, mint.Bytes())
	if err != nil {
		return err
	}

	snap, err := supply.New(rpcClient).Supply(ctx, mint, supplyKeys.ElGamal.Secret, supplyKeys.AE)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Supply"))
	fmt.Printf("current supply:      %d\n", snap.CurrentSupply)
	fmt.Printf("decryptable supply:  %d\n", snap.DecryptableSupply)
	fmt.Println(infoStyle.Render("(these should match unless a mint just landed and the AE side channel hasn't caught up)"))
	return nil
}
