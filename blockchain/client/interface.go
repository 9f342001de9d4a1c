package blockchain

import (
	"context"

	"simplehash/blockchain/types"
)

// BlockchainClient writes anchors to a ledger-independent chain and reads them back.
type BlockchainClient interface {
	// SubmitAnchor records entry on chain and waits for the transaction result.
	SubmitAnchor(ctx context.Context, entry types.AnchorEntry) (*types.Proof, error)

	// FindAnchorByDigest returns the transaction id that recorded digest.
	FindAnchorByDigest(ctx context.Context, digest string) (string, error)

	// GetAnchorByTxHash reads an anchor back from its transaction for public audit.
	GetAnchorByTxHash(ctx context.Context, txHash string) (*types.AuditData, error)

	Close() error

	// Config returns the chain specific configuration.
	Config() any
}
