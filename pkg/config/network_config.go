package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// NetworkSettings is one entry in a NetworkConfig's Networks map: the
// per-chain settlement target and polling behavior an Accumulator
// Builder needs to drive batches for that chain.
type NetworkSettings struct {
	ChainID          uint64   `yaml:"chain_id"`
	StoreAddress     string   `yaml:"store_address"`
	VerifierAddress  string   `yaml:"verifier_address"`
	RPCURL           string   `yaml:"rpc_url"`
	BatchSize        uint64   `yaml:"batch_size"`
	PollInterval     Duration `yaml:"poll_interval"`
	ConfirmationLag  uint64   `yaml:"confirmation_lag"`
}

// NetworkConfig maps a network name (e.g. "mainnet", "sepolia") to its
// settlement settings, loaded from a YAML file with ${VAR_NAME}
// environment substitution.
type NetworkConfig struct {
	Networks map[string]NetworkSettings `yaml:"networks"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// LoadNetworkConfig loads the per-network settlement settings from a
// YAML file, substituting ${VAR_NAME} and ${VAR_NAME:-default}
// references against the process environment.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network config %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg NetworkConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse network config %s: %w", path, err)
	}
	return &cfg, nil
}

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Network looks up one network's settings by name.
func (c *NetworkConfig) Network(name string) (NetworkSettings, error) {
	settings, ok := c.Networks[name]
	if !ok {
		return NetworkSettings{}, fmt.Errorf("network config: unknown network %q", name)
	}
	return settings, nil
}
