package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// BlockchainConfig selects the chain anchors are written to and how hard to retry.
type BlockchainConfig struct {
	BlockchainType string `yaml:"blockchain_type" env:"BLOCKCHAIN_TYPE"` // "chainmaker"

	RetryLimit    int           `yaml:"retry_limit" env:"BLOCKCHAIN_RETRY_LIMIT"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"BLOCKCHAIN_RETRY_INTERVAL"`

	// ChainConfigPath is the chain specific SDK file, relative to this file.
	ChainConfigPath string `yaml:"chain_config_path" env:"BLOCKCHAIN_CHAIN_CONFIG_PATH"`

	// Dir is the directory the file was loaded from.
	Dir string `yaml:"-"`
}

// SetDefaults fills unset chain settings.
func (c *BlockchainConfig) SetDefaults() {
	if c.BlockchainType == "" {
		c.BlockchainType = "chainmaker"
		fmt.Printf("Warning: blockchain_type not set, defaulting to %s\n", c.BlockchainType)
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.ChainConfigPath == "" {
		c.ChainConfigPath = filepath.Join("clients", c.BlockchainType+".yml")
	}
}

// ResolvedChainConfigPath returns ChainConfigPath relative to the config file directory.
func (c *BlockchainConfig) ResolvedChainConfigPath() string {
	if filepath.IsAbs(c.ChainConfigPath) {
		return c.ChainConfigPath
	}
	return filepath.Join(c.Dir, c.ChainConfigPath)
}

// LoadBlockchainConfig loads blockchain configuration from path.
func LoadBlockchainConfig(path string) (*BlockchainConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of config file: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", absPath, err)
	}

	var cfg BlockchainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(absPath)
	cfg.SetDefaults()
	return &cfg, nil
}
