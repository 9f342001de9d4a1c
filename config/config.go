package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// File names LoadConfig looks for.
const (
	EngineFile     = "engine.defaults.yml"
	GatewayFile    = "gateway.defaults.yml"
	BlockchainFile = "client_config.yml"
)

// Config bundles every configuration file found in one directory.
type Config struct {
	Engine     *EngineConfig
	Gateway    *GatewayConfig
	Blockchain *BlockchainConfig
}

// LoadConfig loads whichever of the known configuration files exist in configDir.
func LoadConfig(configDir string) (*Config, error) {
	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of config directory: %w", err)
	}

	config := &Config{}

	if path := filepath.Join(absDir, EngineFile); exists(path) {
		if config.Engine, err = LoadEngineConfig(path); err != nil {
			return nil, fmt.Errorf("failed to load engine config: %w", err)
		}
	}
	if path := filepath.Join(absDir, GatewayFile); exists(path) {
		if config.Gateway, err = LoadGatewayConfig(path); err != nil {
			return nil, fmt.Errorf("failed to load gateway config: %w", err)
		}
	}
	if path := filepath.Join(absDir, BlockchainFile); exists(path) {
		if config.Blockchain, err = LoadBlockchainConfig(path); err != nil {
			return nil, fmt.Errorf("failed to load blockchain config: %w", err)
		}
	}

	return config, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
