package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"simplehash/config"
	core "simplehash/gateway/service/core"
	grpchandler "simplehash/gateway/service/grpc"
	httphandler "simplehash/gateway/service/http"
	"simplehash/internal/logging"
	"simplehash/internal/messaging/producer"
	"simplehash/storage/store"
)

func main() {
	configPath := flag.String("config", "./config/"+config.GatewayFile, "gateway configuration file")
	flag.Parse()

	// 1. Load gateway configuration
	cfg, err := config.LoadGatewayConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load gateway configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New("gateway", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting Anchor Gateway...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize dependencies
	logger.Info("Initializing database connection...")
	dbStore, err := store.NewPostgresStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize database store: %v", err)
	}
	defer dbStore.Close()

	logger.Info("Initializing Kafka producer...")
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaProducer, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Kafka producer: %v", err)
	}
	defer kafkaProducer.Close()

	// 3. Core Service and front ends
	coreService := core.NewService(dbStore, kafkaProducer, logger.Named("batch"), cfg.BatchProcessor)
	defer coreService.Close()

	var wg sync.WaitGroup

	// 4. HTTP server
	var httpServer *http.Server
	if cfg.HttpListenAddr != "" {
		httpServer = &http.Server{
			Addr:           cfg.HttpListenAddr,
			Handler:        httphandler.NewAnchorHandler(coreService, logger.Named("http")).Routes(),
			ReadTimeout:    cfg.HttpServer.ReadTimeout,
			WriteTimeout:   cfg.HttpServer.WriteTimeout,
			IdleTimeout:    cfg.HttpServer.IdleTimeout,
			MaxHeaderBytes: cfg.HttpServer.MaxHeaderBytes,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Infof("HTTP server listening on %s", cfg.HttpListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("HTTP server startup failed: %v", err)
			}
			logger.Info("HTTP server stopped listening.")
		}()
	} else {
		logger.Info("http_listen_addr not configured, skipping HTTP server startup.")
	}

	// 5. gRPC server
	var grpcServer *grpc.Server
	if cfg.GrpcListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
		if err != nil {
			logger.Fatalf("Unable to listen on gRPC port %s: %v", cfg.GrpcListenAddr, err)
		}
		grpcServer = grpc.NewServer()
		grpchandler.NewServer(coreService, logger.Named("grpc")).Register(grpcServer)

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Infof("gRPC server listening on %s", cfg.GrpcListenAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Fatalf("gRPC server startup failed: %v", err)
			}
			logger.Info("gRPC server stopped listening.")
		}()
	} else {
		logger.Info("grpc_listen_addr not configured, skipping gRPC server startup.")
	}

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Infof("Received shutdown signal: %s, starting graceful shutdown...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP server shutdown failed: %v", err)
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	wg.Wait()
	logger.Info("All servers stopped. Gateway shutdown.")
}
