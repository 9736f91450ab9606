package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UsesDefaultsWhenUnset(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), cfg.BatchSize)
	assert.Equal(t, "./data/mmr", cfg.MmrStoreDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.SkipProofVerification)
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "11155111")
	t.Setenv("BATCH_SIZE", "2048")
	t.Setenv("SKIP_PROOF_VERIFICATION", "true")
	t.Setenv("STARKNET_RPC_URL", "https://rpc.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), cfg.ChainID)
	assert.Equal(t, uint64(2048), cfg.BatchSize)
	assert.True(t, cfg.SkipProofVerification)
	assert.Equal(t, "https://rpc.example", cfg.StarknetRPCURL)
}

func TestValidate_FailsWhenRequiredFieldsMissing(t *testing.T) {
	cfg := &Config{BatchSize: 1024}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARKNET_RPC_URL")
	assert.Contains(t, err.Error(), "FOSSIL_STORE")
	assert.Contains(t, err.Error(), "FOSSIL_VERIFIER")
}

func TestValidate_PassesWhenComplete(t *testing.T) {
	cfg := &Config{
		BatchSize:             1024,
		StarknetRPCURL:        "https://rpc.example",
		FossilStoreAddress:    "0xstore",
		FossilVerifierAddress: "0xverifier",
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsZeroBatchSize(t *testing.T) {
	cfg := &Config{
		StarknetRPCURL:        "https://rpc.example",
		FossilStoreAddress:    "0xstore",
		FossilVerifierAddress: "0xverifier",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoadNetworkConfig_SubstitutesEnvVars(t *testing.T) {
	t.Setenv("SEPOLIA_RPC_URL", "https://sepolia.example")

	dir := t.TempDir()
	path := filepath.Join(dir, "networks.yaml")
	yamlContent := `
networks:
  sepolia:
    chain_id: 11155111
    store_address: "0xstore"
    verifier_address: "0xverifier"
    rpc_url: "${SEPOLIA_RPC_URL}"
    batch_size: 1024
    poll_interval: "30s"
    confirmation_lag: ${MISSING_LAG:-6}
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadNetworkConfig(path)
	require.NoError(t, err)

	sepolia, err := cfg.Network("sepolia")
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), sepolia.ChainID)
	assert.Equal(t, "https://sepolia.example", sepolia.RPCURL)
	assert.Equal(t, uint64(6), sepolia.ConfirmationLag)
	assert.Equal(t, "30s", sepolia.PollInterval.Duration().String())
}

func TestNetworkConfig_Network_UnknownNameFails(t *testing.T) {
	cfg := &NetworkConfig{Networks: map[string]NetworkSettings{}}
	_, err := cfg.Network("mainnet")
	assert.Error(t, err)
}
