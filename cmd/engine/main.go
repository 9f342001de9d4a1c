package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"simplehash/anchor"
	blockchain "simplehash/blockchain/client"
	"simplehash/config"
	"simplehash/internal/logging"
	"simplehash/internal/messaging/consumer"
	"simplehash/internal/messaging/producer"
	worker "simplehash/processing"
	"simplehash/ledger"
	"simplehash/storage/store"
)

const mockBroker = "mock://local"

func main() {
	configPath := flag.String("config", "./config/"+config.EngineFile, "engine configuration file")
	flag.Parse()

	// 1. Load Engine Config
	engineCfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load engine configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New("engine", engineCfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting Anchor Engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize Dependencies
	logger.Info("Initializing database connection...")
	dbStore, err := store.NewPostgresStore(ctx, engineCfg.Database, logger)
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize database store: %v", err)
	}
	defer dbStore.Close()

	logger.Info("Initializing ledger client...")
	ts, err := ledger.TokenSource(ctx, engineCfg.Ledger.ClientConfig(), engineCfg.Ledger.Auth.Credentials())
	if err != nil {
		logger.Fatalf("FATAL: Failed to configure ledger authentication: %v", err)
	}
	ledgerClient, err := ledger.NewClient(engineCfg.Ledger.ClientConfig(), ts, logger.Named("ledger"))
	if err != nil {
		logger.Fatalf("FATAL: Failed to initialize ledger client: %v", err)
	}

	var chain blockchain.BlockchainClient
	if engineCfg.BlockchainClientConfigPath != "" {
		logger.Info("Initializing blockchain client using configuration files...")
		chain, err = blockchain.NewBlockchainClientFromFile(engineCfg.BlockchainClientConfigPath, logger.Named("chain"))
		if err != nil {
			logger.Fatalf("FATAL: Failed to initialize blockchain client: %v", err)
		}
		defer chain.Close()
	} else {
		logger.Warn("blockchain_client_config_path not set, digests are stored but not anchored on chain")
	}

	var results producer.Producer
	if engineCfg.ResultProducer.Topic != "" {
		kafkaProducer, err := producer.NewKafkaProducer(engineCfg.ResultProducer, logger)
		if err != nil {
			logger.Fatalf("FATAL: Failed to initialize result producer: %v", err)
		}
		defer kafkaProducer.Close()
		results = kafkaProducer
	}

	var requeue producer.Producer
	if !isMock(engineCfg.KafkaConsumer.Brokers) {
		retryProducer, err := producer.NewKafkaProducer(engineCfg.RetryProducer, logger)
		if err != nil {
			logger.Fatalf("FATAL: Failed to initialize retry producer: %v", err)
		}
		defer retryProducer.Close()
		requeue = retryProducer
	}

	schema, err := anchor.LookupSchema(engineCfg.SchemaVersion)
	if err != nil {
		logger.Fatalf("FATAL: %v", err)
	}

	// 3. Initialize Multiple Consumers
	mqConsumers, err := newConsumers(engineCfg.KafkaConsumer, logger)
	if err != nil {
		logger.Fatalf("FATAL: %v", err)
	}
	defer func() {
		for _, c := range mqConsumers {
			c.Close()
		}
	}()

	// 4. Create and Start one worker pool per consumer
	anchorer := anchor.NewAnchorer(anchor.WithSchema(schema), anchor.WithLogger(logger.Named("anchor")))
	var wg sync.WaitGroup
	for i, c := range mqConsumers {
		w := worker.New(engineCfg.Worker, engineCfg.MaxTaskRetries, logger.With("worker", i+1), worker.Deps{
			Store:    dbStore,
			Consumer: c,
			Lister:   ledgerClient,
			Anchorer: anchorer,
			Chain:    chain,
			Results:  results,
			Requeue:  requeue,
		})

		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger.Infof("Starting worker %d with its dedicated consumer...", workerID)
			w.Run(ctx)
			logger.Infof("Worker %d stopped.", workerID)
		}(i + 1)
	}

	logger.Infof("Anchor Engine started with %d workers. Press Ctrl+C to stop.", len(mqConsumers))

	// 5. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Received shutdown signal, initiating graceful shutdown...")
	cancel()

	logger.Info("Waiting for all workers to finish...")
	wg.Wait()
	logger.Info("Anchor Engine shut down gracefully.")
}

func newConsumers(cfg config.KafkaConsumerConfig, logger *zap.SugaredLogger) ([]consumer.Consumer, error) {
	if isMock(cfg.Brokers) {
		logger.Info("Initializing Mock message queue consumer...")
		return []consumer.Consumer{consumer.NewMockConsumer(logger)}, nil
	}

	logger.Infof("Initializing %d Kafka message queue consumers...", cfg.Count)
	consumers := make([]consumer.Consumer, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		c, err := consumer.NewKafkaConsumer(cfg, logger)
		if err != nil {
			for _, created := range consumers {
				created.Close()
			}
			return nil, fmt.Errorf("failed to initialize Kafka consumer %d: %w", i, err)
		}
		consumers = append(consumers, c)
	}
	return consumers, nil
}

// isMock reports whether brokers select the in-memory queue, which redelivers
// NACKed requests itself.
func isMock(brokers []string) bool {
	return len(brokers) > 0 && brokers[0] == mockBroker
}
