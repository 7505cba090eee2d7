// Package config loads server configuration from the environment, with an
// optional YAML file for non-secret operational tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at boot, per spec.md section 6.
type Config struct {
	DatabaseURL       string
	SolanaRPCURL      string
	IdentitySecret    string // identity-provider (Telegram) bot token, for initData HMAC verification
	BearerSecret      string // fallback HS256 secret; unused when EdDSA signer is configured
	GlobalAuthorityKey string // base58 private key for the mint/freeze authority; not used when KMSRegion and KMSKeyID are set
	AuditorKey        string // base58 or KMS key id for the default auditor ElGamal material
	KMSRegion         string
	KMSKeyID          string
	BindAddr          string
	LogLevel          string

	DevMode         bool
	BypassAuthToken string
	AdminToken      string // static bearer token guarding the admin-only token-management routes

	Tuning Tuning
}

// Tuning holds operational knobs that are safe to ship in a YAML file
// rather than as secrets. Values come from defaultTuning, overlaid by
// the optional config file; no environment variable overrides them.
type Tuning struct {
	Commitment             string        `yaml:"commitment"`
	DepositApplyTimeout    time.Duration `yaml:"deposit_apply_timeout"`
	RPCTimeout             time.Duration `yaml:"rpc_timeout"`
	MaxTransactionBytes    int           `yaml:"max_transaction_bytes"`
	ProofAccountRentMargin uint64        `yaml:"proof_account_rent_margin_lamports"`
}

func defaultTuning() Tuning {
	return Tuning{
		Commitment:             "confirmed",
		DepositApplyTimeout:    60 * time.Second,
		RPCTimeout:             30 * time.Second,
		MaxTransactionBytes:    1232,
		ProofAccountRentMargin: 0,
	}
}

// Load reads configuration from the environment (and, if present, a
// config.yaml for Tuning), validating required fields up front so startup
// fails fast with a wrapped error rather than deep inside a request.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SolanaRPCURL:       os.Getenv("SOLANA_RPC_URL"),
		IdentitySecret:     os.Getenv("IDENTITY_PROVIDER_SECRET"),
		BearerSecret:       os.Getenv("BEARER_TOKEN_SECRET"),
		GlobalAuthorityKey: os.Getenv("GLOBAL_AUTHORITY_KEY"),
		AuditorKey:         os.Getenv("AUDITOR_KEY"),
		KMSRegion:          os.Getenv("KMS_REGION"),
		KMSKeyID:           os.Getenv("KMS_KEY_ID"),
		BindAddr:           envOr("BIND_ADDR", ":8080"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		DevMode:            envBool("DEV_MODE"),
		BypassAuthToken:    os.Getenv("BYPASS_AUTH_TOKEN"),
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
		Tuning:             defaultTuning(),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fileTuning struct {
		Tuning Tuning `yaml:"tuning"`
	}
	if err := yaml.Unmarshal(data, &fileTuning); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	merged := c.Tuning
	if fileTuning.Tuning.Commitment != "" {
		merged.Commitment = fileTuning.Tuning.Commitment
	}
	if fileTuning.Tuning.DepositApplyTimeout != 0 {
		merged.DepositApplyTimeout = fileTuning.Tuning.DepositApplyTimeout
	}
	if fileTuning.Tuning.RPCTimeout != 0 {
		merged.RPCTimeout = fileTuning.Tuning.RPCTimeout
	}
	if fileTuning.Tuning.MaxTransactionBytes != 0 {
		merged.MaxTransactionBytes = fileTuning.Tuning.MaxTransactionBytes
	}
	if fileTuning.Tuning.ProofAccountRentMargin != 0 {
		merged.ProofAccountRentMargin = fileTuning.Tuning.ProofAccountRentMargin
	}
	c.Tuning = merged
	return nil
}

func (c *Config) validate() error {
	if c.DevMode {
		// dev_mode accepts a fixed mock identity token and bearer token
		// (spec.md section 6); secrets are not required.
		if c.SolanaRPCURL == "" {
			c.SolanaRPCURL = "https://api.devnet.solana.com"
		}
		if c.DatabaseURL == "" {
			c.DatabaseURL = "postgres://localhost:5432/ctcustody_dev?sslmode=disable"
		}
		return nil
	}

	missing := func(name, val string) error {
		if val == "" {
			return fmt.Errorf("missing required configuration: %s", name)
		}
		return nil
	}

	for _, check := range []struct {
		name string
		val  string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"SOLANA_RPC_URL", c.SolanaRPCURL},
		{"IDENTITY_PROVIDER_SECRET", c.IdentitySecret},
		{"GLOBAL_AUTHORITY_KEY", c.GlobalAuthorityKey},
		{"ADMIN_TOKEN", c.AdminToken},
	} {
		if err := missing(check.name, check.val); err != nil {
			return err
		}
	}

	if c.BearerSecret == "" && (c.KMSRegion == "" || c.KMSKeyID == "") {
		return fmt.Errorf("either BEARER_TOKEN_SECRET or KMS_REGION+KMS_KEY_ID must be set")
	}

	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}
