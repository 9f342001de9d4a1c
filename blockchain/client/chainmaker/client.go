package chainmaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"chainmaker.org/chainmaker/pb-go/v2/common"
	sdk "chainmaker.org/chainmaker/sdk-go/v2"
	"go.uber.org/zap"

	"simplehash/blockchain/types"
	"simplehash/config"
)

// chainCaller is the subset of *sdk.ChainClient the anchor client uses.
type chainCaller interface {
	InvokeContract(contractName, method, txId string, kvs []*common.KeyValuePair, timeout int64, withSyncResult bool) (*common.TxResponse, error)
	QueryContract(contractName, method string, kvs []*common.KeyValuePair, timeout int64) (*common.TxResponse, error)
	GetTxByTxId(txId string) (*common.TransactionInfo, error)
	Stop() error
}

var _ chainCaller = (*sdk.ChainClient)(nil)

// Client submits anchors to the ChainMaker anchor registry contract.
type Client struct {
	sdkClient chainCaller
	cfg       *Config
	logger    *zap.SugaredLogger
}

// NewClient builds a ChainMaker SDK client from the shared and chain specific configuration.
func NewClient(shared *config.BlockchainConfig, cfg *Config, logger *zap.SugaredLogger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Infof("Initializing ChainMaker SDK client for chain %s, org %s...", cfg.ChainID, cfg.OrgID)

	clientOptions := []sdk.ChainClientOption{
		sdk.WithChainClientOrgId(cfg.OrgID),
		sdk.WithChainClientChainId(cfg.ChainID),
		sdk.WithUserKeyFilePath(cfg.UserKeyPath),
		sdk.WithUserCrtFilePath(cfg.UserCertPath),
		sdk.WithUserSignKeyFilePath(cfg.UserSignKeyPath),
		sdk.WithUserSignCrtFilePath(cfg.UserSignCertPath),
	}
	for _, nodeCfg := range cfg.Nodes {
		node := sdk.NewNodeConfig(
			sdk.WithNodeAddr(nodeCfg.Address),
			sdk.WithNodeConnCnt(nodeCfg.ConnCount),
			sdk.WithNodeUseTLS(nodeCfg.UseTLS),
			sdk.WithNodeCAPaths(nodeCfg.CaPaths),
			sdk.WithNodeTLSHostName(nodeCfg.TLSHostName),
		)
		clientOptions = append(clientOptions, sdk.AddChainClientNodeConfig(node))
	}
	if shared != nil {
		if shared.RetryLimit > 0 {
			clientOptions = append(clientOptions, sdk.WithRetryLimit(shared.RetryLimit))
		}
		if shared.RetryInterval > 0 {
			clientOptions = append(clientOptions, sdk.WithRetryInterval(int(shared.RetryInterval.Milliseconds())))
		}
	}

	client, err := sdk.NewChainClient(clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("build ChainMaker SDK client: %w", err)
	}
	if err := client.EnableCertHash(); err != nil {
		logger.Warnf("Failed to enable cert hash: %v", err)
	}

	logger.Info("ChainMaker SDK client initialized.")
	return newClient(client, cfg, logger), nil
}

func newClient(caller chainCaller, cfg *Config, logger *zap.SugaredLogger) *Client {
	return &Client{sdkClient: caller, cfg: cfg, logger: logger}
}

// Config returns the ChainMaker configuration.
func (c *Client) Config() any { return c.cfg }

// Close stops the SDK client.
func (c *Client) Close() error {
	c.logger.Info("Closing ChainMaker SDK client...")
	if err := c.sdkClient.Stop(); err != nil {
		return fmt.Errorf("failed to stop ChainMaker SDK client: %w", err)
	}
	return nil
}

// SubmitAnchor invokes the submit method and waits for the block result. The
// contract echoes the digest back; a mismatch is treated as a failed submission.
func (c *Client) SubmitAnchor(ctx context.Context, entry types.AnchorEntry) (*types.Proof, error) {
	if entry.Digest == "" {
		return nil, fmt.Errorf("anchor digest cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kvs := []*common.KeyValuePair{
		{Key: c.cfg.ParamKeyDigest, Value: []byte(entry.Digest)},
		{Key: c.cfg.ParamKeyWindowStart, Value: []byte(entry.WindowStart)},
		{Key: c.cfg.ParamKeyWindowEnd, Value: []byte(entry.WindowEnd)},
		{Key: c.cfg.ParamKeyEventCount, Value: []byte(strconv.Itoa(entry.EventCount))},
		{Key: c.cfg.ParamKeySchemaVersion, Value: []byte(entry.SchemaVersion)},
	}

	resp, err := c.sdkClient.InvokeContract(c.cfg.ContractName, c.cfg.SubmitAnchorMethod, "", kvs, timeoutSeconds(ctx), true)
	if err != nil {
		return nil, fmt.Errorf("SDK invoke failed: %w", err)
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return nil, fmt.Errorf("contract execution failed: %s (code: %d)", resp.Message, resp.Code)
	}
	if resp.ContractResult == nil {
		return nil, fmt.Errorf("contract execution returned nil result (tx: %s)", resp.TxId)
	}
	if returned := string(resp.ContractResult.Result); returned != entry.Digest {
		return nil, fmt.Errorf("contract returned digest '%s' does not match sent digest '%s'", returned, entry.Digest)
	}

	c.logger.Debugf("Anchor %s recorded in tx %s at block %d", entry.Digest, resp.TxId, resp.TxBlockHeight)
	return &types.Proof{TransactionID: resp.TxId, BlockHeight: resp.TxBlockHeight, Digest: entry.Digest}, nil
}

// FindAnchorByDigest asks the contract which transaction recorded digest.
func (c *Client) FindAnchorByDigest(ctx context.Context, digest string) (string, error) {
	kvs := []*common.KeyValuePair{{Key: c.cfg.ParamKeyDigest, Value: []byte(digest)}}
	resp, err := c.sdkClient.QueryContract(c.cfg.ContractName, c.cfg.FindByDigestMethod, kvs, timeoutSeconds(ctx))
	if err != nil {
		return "", fmt.Errorf("SDK query failed: %w", err)
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return "", fmt.Errorf("contract query failed: %s (code: %d)", resp.Message, resp.Code)
	}
	if resp.ContractResult == nil {
		return "", nil
	}
	return string(resp.ContractResult.Result), nil
}

// GetAnchorByTxHash reads the anchor event out of a transaction.
func (c *Client) GetAnchorByTxHash(ctx context.Context, txHash string) (*types.AuditData, error) {
	if txHash == "" {
		return nil, fmt.Errorf("transaction hash cannot be empty")
	}
	txInfo, err := c.sdkClient.GetTxByTxId(txHash)
	if err != nil {
		return nil, fmt.Errorf("SDK get transaction failed: %w", err)
	}
	if txInfo == nil || txInfo.Transaction == nil || txInfo.Transaction.Result == nil || txInfo.Transaction.Result.ContractResult == nil {
		return nil, fmt.Errorf("transaction data is incomplete or nil for tx: %s", txHash)
	}
	if txInfo.Transaction.Result.Code != common.TxStatusCode_SUCCESS {
		return nil, fmt.Errorf("transaction execution failed: %s", txInfo.Transaction.Result.Message)
	}

	for _, event := range txInfo.Transaction.Result.ContractResult.ContractEvent {
		if event.Topic != c.cfg.AnchorSubmittedTopic {
			continue
		}
		data := event.EventData
		if len(data) != 5 {
			return nil, fmt.Errorf("malformed anchor event: expected 5 fields, got %d", len(data))
		}
		count, err := strconv.Atoi(data[3])
		if err != nil {
			return nil, fmt.Errorf("malformed anchor event count %q: %w", data[3], err)
		}
		return &types.AuditData{
			AnchorEntry: types.AnchorEntry{
				Digest:        data[0],
				WindowStart:   data[1],
				WindowEnd:     data[2],
				EventCount:    count,
				SchemaVersion: data[4],
			},
			TransactionID: txHash,
			BlockHeight:   txInfo.BlockHeight,
		}, nil
	}
	return nil, fmt.Errorf("event '%s' not found in transaction %s", c.cfg.AnchorSubmittedTopic, txHash)
}

// timeoutSeconds converts the context deadline for the SDK, which takes whole
// seconds and uses -1 for its own default.
func timeoutSeconds(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1
	}
	secs := int64(time.Until(deadline).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
