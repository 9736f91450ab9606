// Package config loads the accumulator service's configuration from the
// environment, with an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the MMR accumulator service.
type Config struct {
	// Chain identification
	ChainID uint64

	// Header source
	HeaderStorePath string

	// MMR storage
	MmrStoreDir string
	BatchSize   uint64

	// On-chain settlement
	StarknetRPCURL         string
	StarknetPrivateKey     string
	StarknetAccountAddress string
	FossilStoreAddress     string
	FossilVerifierAddress  string

	// Behavior flags
	SkipProofVerification bool

	LogLevel string
}

// Load reads .env (if present) then the environment.
//
// CRITICAL: this service only reads the variable names below — no
// *_URL or *_RPC aliases are consulted. Call Validate() after Load()
// before driving a batch that submits on-chain.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ChainID: getEnvUint64("CHAIN_ID", 0),

		HeaderStorePath: getEnv("HEADER_STORE_PATH", "./data/headers.db"),

		MmrStoreDir: getEnv("MMR_STORE_DIR", "./data/mmr"),
		BatchSize:   getEnvUint64("BATCH_SIZE", 1024),

		StarknetRPCURL:         getEnv("STARKNET_RPC_URL", ""),
		StarknetPrivateKey:     getEnv("STARKNET_PRIVATE_KEY", ""),
		StarknetAccountAddress: getEnv("STARKNET_ACCOUNT_ADDRESS", ""),
		FossilStoreAddress:     getEnv("FOSSIL_STORE", ""),
		FossilVerifierAddress:  getEnv("FOSSIL_VERIFIER", ""),

		SkipProofVerification: getEnvBool("SKIP_PROOF_VERIFICATION", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that the configuration required to settle batches
// on-chain is present. A caller driving only local, skip-proof batches
// may skip calling Validate.
func (c *Config) Validate() error {
	var problems []string

	if c.BatchSize == 0 {
		problems = append(problems, "BATCH_SIZE must be greater than zero")
	}
	if c.StarknetRPCURL == "" {
		problems = append(problems, "STARKNET_RPC_URL is required but not set")
	}
	if c.FossilStoreAddress == "" {
		problems = append(problems, "FOSSIL_STORE is required but not set")
	}
	if c.FossilVerifierAddress == "" {
		problems = append(problems, "FOSSIL_VERIFIER is required but not set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
