package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// KafkaProducerConfig describes a topic the services write to.
type KafkaProducerConfig struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`

	BatchSize    int           `yaml:"batch_size" env:"BATCH_SIZE"`
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT"`
	BatchBytes   int           `yaml:"batch_bytes" env:"BATCH_BYTES"`

	RequiredAcks string `yaml:"required_acks" env:"REQUIRED_ACKS"` // none/one/all
	Async        bool   `yaml:"async" env:"ASYNC"`

	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
}

// SetDefaults fills unset producer settings.
func (c *KafkaProducerConfig) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 100 * time.Millisecond
	}
	if c.BatchBytes <= 0 {
		c.BatchBytes = 5 * 1024 * 1024
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
		fmt.Printf("Warning: producer required_acks not set, defaulting to %s\n", c.RequiredAcks)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
}

// Validate checks the producer has somewhere to write.
func (c *KafkaProducerConfig) Validate() error {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return fmt.Errorf("producer: brokers and topic are required")
	}
	switch c.RequiredAcks {
	case "none", "one", "all":
	default:
		return fmt.Errorf("producer: required_acks must be none, one or all, got %q", c.RequiredAcks)
	}
	return nil
}

// BatchProcessorConfig controls how accepted anchor requests are flushed.
type BatchProcessorConfig struct {
	BatchSize          int           `yaml:"batch_size" env:"BATCH_SIZE"`
	BatchTimeout       time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT"`
	MaxBufferSize      int           `yaml:"max_buffer_size" env:"MAX_BUFFER_SIZE"`
	FlushChannelBuffer int           `yaml:"flush_channel_buffer" env:"FLUSH_CHANNEL_BUFFER"`
}

// SetDefaults fills unset batch settings.
func (c *BatchProcessorConfig) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
		fmt.Printf("Warning: batch_processor.batch_size not set, defaulting to %d\n", c.BatchSize)
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 200 * time.Millisecond
		fmt.Printf("Warning: batch_processor.batch_timeout not set, defaulting to %v\n", c.BatchTimeout)
	}
	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = 1000
		fmt.Printf("Warning: batch_processor.max_buffer_size not set, defaulting to %d\n", c.MaxBufferSize)
	}
	if c.FlushChannelBuffer <= 0 {
		c.FlushChannelBuffer = 16
		fmt.Printf("Warning: batch_processor.flush_channel_buffer not set, defaulting to %d\n", c.FlushChannelBuffer)
	}
}

// HttpServerConfig holds net/http server limits.
type HttpServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
}

// SetDefaults fills unset server limits.
func (c *HttpServerConfig) SetDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 1 << 20
	}
}

// GatewayConfig is the configuration of the request intake daemon.
type GatewayConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr" env:"HTTP_LISTEN_ADDR"`
	GrpcListenAddr string `yaml:"grpc_listen_addr" env:"GRPC_LISTEN_ADDR"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`

	Database       DatabaseConfig       `yaml:"database" envPrefix:"DATABASE_"`
	KafkaProducer  KafkaProducerConfig  `yaml:"kafka_producer" envPrefix:"KAFKA_PRODUCER_"`
	BatchProcessor BatchProcessorConfig `yaml:"batch_processor" envPrefix:"BATCH_PROCESSOR_"`
	HttpServer     HttpServerConfig     `yaml:"http_server" envPrefix:"HTTP_SERVER_"`
}

// LoadGatewayConfig reads path, applies SIMPLEHASH_* overrides, fills defaults and validates.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway config file '%s': %w", path, err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gateway YAML config file: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.Database.SetDefaults()
	cfg.KafkaProducer.SetDefaults()
	cfg.BatchProcessor.SetDefaults()
	cfg.HttpServer.SetDefaults()
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.HttpListenAddr == "" && cfg.GrpcListenAddr == "" {
		return nil, fmt.Errorf("configuration error: at least one of http_listen_addr or grpc_listen_addr must be configured")
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("database configuration error: %w", err)
	}
	if err := cfg.KafkaProducer.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer configuration error: %w", err)
	}
	return &cfg, nil
}
