package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// KafkaConsumerConfig describes the anchor request subscription.
type KafkaConsumerConfig struct {
	Brokers           []string      `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic             string        `yaml:"topic" env:"TOPIC"`
	GroupID           string        `yaml:"group_id" env:"GROUP_ID"`
	Count             int           `yaml:"count" env:"COUNT"` // Number of consumers to create
	SessionTimeout    time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	AutoOffsetReset   string        `yaml:"auto_offset_reset" env:"AUTO_OFFSET_RESET"` // earliest/latest
}

// SetDefaults fills unset consumer settings.
func (c *KafkaConsumerConfig) SetDefaults() {
	if c.Count <= 0 {
		c.Count = 1
		fmt.Printf("Warning: kafka_consumer.count not set or invalid, defaulting to %d\n", c.Count)
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
		fmt.Printf("Warning: kafka_consumer.session_timeout not set, defaulting to %v\n", c.SessionTimeout)
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 3 * time.Second
		fmt.Printf("Warning: kafka_consumer.heartbeat_interval not set, defaulting to %v\n", c.HeartbeatInterval)
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
		fmt.Printf("Warning: kafka_consumer.auto_offset_reset not set, defaulting to %s\n", c.AutoOffsetReset)
	}
}

// Validate checks the consumer has somewhere to read from.
func (c *KafkaConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 || c.Topic == "" || c.GroupID == "" {
		return fmt.Errorf("kafka_consumer: brokers, topic and group_id are required")
	}
	switch c.AutoOffsetReset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("kafka_consumer: auto_offset_reset must be earliest or latest, got %q", c.AutoOffsetReset)
	}
	return nil
}

// WorkerConfig controls how anchor requests are processed.
type WorkerConfig struct {
	Concurrency        int           `yaml:"concurrency" env:"CONCURRENCY"` // Workers per consumer
	ConsumerRetryDelay time.Duration `yaml:"consumer_retry_delay" env:"CONSUMER_RETRY_DELAY"`
	AnchorTimeout      time.Duration `yaml:"anchor_timeout" env:"ANCHOR_TIMEOUT"` // Whole-window computation budget
	BlockchainTimeout  time.Duration `yaml:"blockchain_timeout" env:"BLOCKCHAIN_TIMEOUT"`
	RetryDelay         time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"` // Wait before a retried request is requeued
}

// SetDefaults fills unset worker settings.
func (c *WorkerConfig) SetDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
		fmt.Printf("Warning: worker.concurrency not set or invalid, defaulting to %d\n", c.Concurrency)
	}
	if c.ConsumerRetryDelay <= 0 {
		c.ConsumerRetryDelay = 5 * time.Second
		fmt.Printf("Warning: worker.consumer_retry_delay not set, defaulting to %v\n", c.ConsumerRetryDelay)
	}
	if c.AnchorTimeout <= 0 {
		c.AnchorTimeout = 10 * time.Minute
		fmt.Printf("Warning: worker.anchor_timeout not set, defaulting to %v\n", c.AnchorTimeout)
	}
	if c.BlockchainTimeout <= 0 {
		c.BlockchainTimeout = 15 * time.Second
		fmt.Printf("Warning: worker.blockchain_timeout not set, defaulting to %v\n", c.BlockchainTimeout)
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
		fmt.Printf("Warning: worker.retry_delay not set, defaulting to %v\n", c.RetryDelay)
	}
}

// EngineConfig is the configuration of the anchor engine daemon.
type EngineConfig struct {
	Database      DatabaseConfig      `yaml:"database" envPrefix:"DATABASE_"`
	Ledger        LedgerConfig        `yaml:"ledger" envPrefix:"LEDGER_"`
	KafkaConsumer KafkaConsumerConfig `yaml:"kafka_consumer" envPrefix:"KAFKA_CONSUMER_"`
	// ResultProducer publishes finished anchors. Leave the topic empty to disable.
	ResultProducer KafkaProducerConfig `yaml:"result_producer" envPrefix:"RESULT_PRODUCER_"`
	// RetryProducer writes retried requests back for another attempt. Brokers
	// and topic default to those of kafka_consumer.
	RetryProducer KafkaProducerConfig `yaml:"retry_producer" envPrefix:"RETRY_PRODUCER_"`
	Worker        WorkerConfig        `yaml:"worker" envPrefix:"WORKER_"`

	MaxTaskRetries int    `yaml:"max_task_retries" env:"MAX_TASK_RETRIES"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	// SchemaVersion names the event schema digests are computed with.
	SchemaVersion string `yaml:"schema_version" env:"SCHEMA_VERSION"`

	// BlockchainClientConfigPath points at client_config.yml. Empty disables
	// on-chain anchoring; digests are still stored.
	BlockchainClientConfigPath string `yaml:"blockchain_client_config_path" env:"BLOCKCHAIN_CLIENT_CONFIG_PATH"`
}

// SetDefaults fills every unset engine setting.
func (c *EngineConfig) SetDefaults() {
	c.Database.SetDefaults()
	c.Ledger.SetDefaults()
	c.KafkaConsumer.SetDefaults()
	c.Worker.SetDefaults()
	if c.ResultProducer.Topic != "" {
		c.ResultProducer.SetDefaults()
	}
	if len(c.RetryProducer.Brokers) == 0 {
		c.RetryProducer.Brokers = c.KafkaConsumer.Brokers
	}
	if c.RetryProducer.Topic == "" {
		c.RetryProducer.Topic = c.KafkaConsumer.Topic
	}
	c.RetryProducer.SetDefaults()
	if c.SchemaVersion == "" {
		c.SchemaVersion = "V1"
	}
	if c.MaxTaskRetries <= 0 {
		c.MaxTaskRetries = 3
		fmt.Printf("Warning: max_task_retries not set or invalid, defaulting to %d\n", c.MaxTaskRetries)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
		fmt.Printf("Warning: log_level not set, defaulting to %s\n", c.LogLevel)
	}
}

// Validate checks every engine section.
func (c *EngineConfig) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database configuration error: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger configuration error: %w", err)
	}
	if err := c.KafkaConsumer.Validate(); err != nil {
		return fmt.Errorf("kafka consumer configuration error: %w", err)
	}
	if c.ResultProducer.Topic != "" {
		if err := c.ResultProducer.Validate(); err != nil {
			return fmt.Errorf("result producer configuration error: %w", err)
		}
	}
	if err := c.RetryProducer.Validate(); err != nil {
		return fmt.Errorf("retry producer configuration error: %w", err)
	}
	return nil
}

// LoadEngineConfig reads path, applies SIMPLEHASH_* overrides, fills defaults and validates.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
