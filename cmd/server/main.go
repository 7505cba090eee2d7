// Command server runs the confidential-transfer custodial HTTP API
// (spec.md section 6): identity-provider login, wallet provisioning
// and balance reads, confidential transfers, and admin-gated mint
// management, wired over a single PostgreSQL connection pool and a
// single Solana JSON-RPC endpoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"

	"ctcustody/internal/config"
	"ctcustody/internal/db"
	"ctcustody/internal/handlers"
	"ctcustody/internal/kms"
	"ctcustody/internal/middleware"
	"ctcustody/internal/signer"
	"ctcustody/internal/solanarpc"
	"ctcustody/internal/transfer"
	"ctcustody/internal/wallet"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetPrefix("[ctcustody] ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Exec(ctx, db.Schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	rpcClient := solanarpc.New(cfg.SolanaRPCURL)

	authoritySigner, err := resolveAuthoritySigner(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to resolve global authority signer: %v", err)
	}

	issuer, err := middleware.NewIssuer()
	if err != nil {
		log.Fatalf("failed to initialize session token issuer: %v", err)
	}
	jwks, err := middleware.NewJWKS(ctx, issuer)
	if err != nil {
		log.Fatalf("failed to initialize JWKS: %v", err)
	}

	// Tokens are verified against the in-process Issuer's public key
	// directly: BuildKeyfunc's HTTP JWKS round trip is for a separate
	// verifier process, not this one.
	authKeyfunc := func(t *jwt.Token) (interface{}, error) { return issuer.PublicKey(), nil }
	authMiddleware := middleware.NewAuthMiddleware(authKeyfunc, cfg.DevMode, cfg.BypassAuthToken)
	adminMiddleware := middleware.NewAdminMiddleware(cfg.AdminToken)

	wallets := wallet.New(database)
	commitment := parseCommitment(cfg.Tuning.Commitment)
	transferEngine := transfer.New(rpcClient, database, wallets, authoritySigner, commitment)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(middleware.RequestID())

	handlers.NewHealthHandler().RegisterRoutes(app)
	app.Get("/.well-known/jwks.json", jwks.Handler())
	handlers.NewAuthHandler(wallets, issuer, cfg.IdentitySecret).RegisterRoutes(app)
	handlers.NewWalletHandler(wallets, database, rpcClient, transferEngine, commitment).RegisterRoutes(app, authMiddleware)
	handlers.NewTransferHandler(transferEngine).RegisterRoutes(app, authMiddleware)
	handlers.NewTokenHandler(rpcClient, transferEngine, authoritySigner, commitment).RegisterRoutes(app, adminMiddleware)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.BindAddr)
		if err := app.Listen(cfg.BindAddr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("received signal: %v", sig)
	case err := <-errChan:
		log.Fatalf("server error: %v", err)
	}

	log.Println("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	log.Println("stopped")
}

// resolveAuthoritySigner builds the process-wide mint/freeze authority
// signer: a KMS-backed signer for cfg.KMSKeyID when KMS region and key
// id are both configured, otherwise cfg.GlobalAuthorityKey parsed as a
// raw base58 Ed25519 private key (spec.md section 4.9).
func resolveAuthoritySigner(ctx context.Context, cfg *config.Config) (signer.Signer, error) {
	if cfg.KMSRegion != "" && cfg.KMSKeyID != "" {
		return kms.New(ctx, &kms.Config{Region: cfg.KMSRegion, KeyID: cfg.KMSKeyID})
	}
	priv, err := solana.PrivateKeyFromBase58(cfg.GlobalAuthorityKey)
	if err != nil {
		return nil, err
	}
	return signer.NewLocal(priv), nil
}

func parseCommitment(raw string) rpc.CommitmentType {
	switch raw {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}
