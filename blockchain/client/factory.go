package blockchain

import (
	"fmt"

	"go.uber.org/zap"

	"simplehash/blockchain/client/chainmaker"
	"simplehash/config"
)

// BlockchainType names a supported chain.
type BlockchainType string

const (
	ChainMaker BlockchainType = "chainmaker"
)

// LoadChainSpecificConfig loads the chain specific file referenced by cfg.
func LoadChainSpecificConfig(cfg *config.BlockchainConfig) (any, error) {
	switch BlockchainType(cfg.BlockchainType) {
	case ChainMaker, "":
		return chainmaker.LoadConfig(cfg.ResolvedChainConfigPath())
	default:
		return nil, fmt.Errorf("unsupported blockchain type: %s", cfg.BlockchainType)
	}
}

// NewBlockchainClient creates the client selected by cfg.BlockchainType.
func NewBlockchainClient(cfg *config.BlockchainConfig, logger *zap.SugaredLogger) (BlockchainClient, error) {
	switch BlockchainType(cfg.BlockchainType) {
	case ChainMaker, "":
		chainCfg, err := LoadChainSpecificConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load chain-specific config: %w", err)
		}
		return chainmaker.NewClient(cfg, chainCfg.(*chainmaker.Config), logger)
	default:
		return nil, fmt.Errorf("unsupported blockchain type: %s", cfg.BlockchainType)
	}
}

// NewBlockchainClientFromFile creates a client from client_config.yml at configPath.
func NewBlockchainClientFromFile(configPath string, logger *zap.SugaredLogger) (BlockchainClient, error) {
	cfg, err := config.LoadBlockchainConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load common config from file '%s': %w", configPath, err)
	}
	return NewBlockchainClient(cfg, logger)
}
