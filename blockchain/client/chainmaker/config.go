package chainmaker

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// NodeConfig describes one ChainMaker node connection.
type NodeConfig struct {
	Address     string   `yaml:"address"`
	ConnCount   int      `yaml:"conn_count"`
	UseTLS      bool     `yaml:"use_tls"`
	TLSHostName string   `yaml:"tls_host_name"`
	CaPaths     []string `yaml:"ca_paths"`
}

// Config is the ChainMaker SDK and anchor contract configuration.
type Config struct {
	ChainID string `yaml:"chain_id"`
	OrgID   string `yaml:"org_id"`

	// TLS connection credentials
	UserKeyPath  string `yaml:"user_key_path"`
	UserCertPath string `yaml:"user_cert_path"`

	// Transaction signing credentials
	UserSignKeyPath  string `yaml:"user_sign_key_path"`
	UserSignCertPath string `yaml:"user_sign_cert_path"`

	Nodes []NodeConfig `yaml:"nodes"`

	ContractName          string `yaml:"contract_name"`
	SubmitAnchorMethod    string `yaml:"submit_anchor_method"`
	FindByDigestMethod    string `yaml:"find_by_digest_method"`
	AnchorSubmittedTopic  string `yaml:"anchor_submitted_topic"`
	ParamKeyDigest        string `yaml:"param_key_digest"`
	ParamKeyWindowStart   string `yaml:"param_key_window_start"`
	ParamKeyWindowEnd     string `yaml:"param_key_window_end"`
	ParamKeyEventCount    string `yaml:"param_key_event_count"`
	ParamKeySchemaVersion string `yaml:"param_key_schema_version"`
}

// SetDefaults fills the anchor contract names used by the reference contract.
func (c *Config) SetDefaults() {
	if c.ContractName == "" {
		c.ContractName = "simplehash_anchor"
	}
	if c.SubmitAnchorMethod == "" {
		c.SubmitAnchorMethod = "submit_anchor"
	}
	if c.FindByDigestMethod == "" {
		c.FindByDigestMethod = "find_anchor_by_digest"
	}
	if c.AnchorSubmittedTopic == "" {
		c.AnchorSubmittedTopic = "anchor_submitted"
	}
	if c.ParamKeyDigest == "" {
		c.ParamKeyDigest = "digest"
	}
	if c.ParamKeyWindowStart == "" {
		c.ParamKeyWindowStart = "window_start"
	}
	if c.ParamKeyWindowEnd == "" {
		c.ParamKeyWindowEnd = "window_end"
	}
	if c.ParamKeyEventCount == "" {
		c.ParamKeyEventCount = "event_count"
	}
	if c.ParamKeySchemaVersion == "" {
		c.ParamKeySchemaVersion = "schema_version"
	}
}

// Validate checks the connection settings.
func (c *Config) Validate() error {
	if c.ChainID == "" || c.OrgID == "" {
		return fmt.Errorf("chainmaker: chain_id and org_id are required")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("chainmaker: no node configurations provided")
	}
	for _, n := range c.Nodes {
		if n.UseTLS && len(n.CaPaths) == 0 {
			return fmt.Errorf("chainmaker: node %s has TLS enabled but no ca_paths", n.Address)
		}
	}
	return nil
}

// LoadConfig reads a ChainMaker YAML file and fills contract defaults.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of ChainMaker config file: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ChainMaker config file '%s': %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ChainMaker YAML config file: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}
