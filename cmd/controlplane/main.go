package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/papyrusdb/controlplane/internal/client"
	"github.com/papyrusdb/controlplane/internal/config"
	"github.com/papyrusdb/controlplane/internal/handler"
	"github.com/papyrusdb/controlplane/internal/health"
	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/service"
	"github.com/papyrusdb/controlplane/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting Papyrus control plane")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("move_collection_enabled", cfg.Features.EnableMoveCollection),
		zap.Bool("rebalancer_enabled", cfg.Features.EnableRebalancer))

	// Initialize metrics
	m := metrics.NewMetrics()
	logger.Info("Metrics initialized")

	// Initialize the coordinator connection pool
	pool, err := store.NewPostgresPool(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
	)
	if err != nil {
		logger.Fatal("Failed to initialize database pool", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("Database pool initialized")

	schemas := store.Schemas{
		Data:        cfg.Schemas.Data,
		Catalog:     cfg.Schemas.Catalog,
		Distributed: cfg.Schemas.Distributed,
		Internal:    cfg.Schemas.Internal,
		Extension:   cfg.Schemas.ExtensionName,
	}

	// Initialize stores
	nodeCatalog := store.NewPostgresNodeCatalog(pool, logger)
	shardCatalog := store.NewPostgresShardCatalog(pool, logger)
	colocationCatalog := store.NewPostgresColocationCatalog(pool, logger)
	placementStore := store.NewPostgresPlacementStore(pool, logger)
	pgCollectionCatalog := store.NewPostgresCollectionCatalog(pool, schemas, logger)
	clusterMetadata := store.NewPostgresClusterMetadataStore(pool, schemas, logger)
	schemaAdmin := store.NewPostgresSchemaAdmin(pool, schemas, logger)
	indexMetadataStore := store.NewPostgresIndexMetadataStore(pool, schemas, logger)
	rebalancerStore := store.NewPostgresRebalancerStore(pool, logger)
	operationLog := store.NewPostgresOperationLog(pool, schemas, logger)
	sequential := store.NewPostgresSequentialRunner(pool)
	logger.Info("Stores initialized")

	// Initialize the catalog cache (Redis)
	cache, err := store.NewRedisCache(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer cache.Close()
	logger.Info("Cache initialized")

	// Collection lookups go through the cache; placement data never does.
	collectionCatalog := store.NewCachedCollectionCatalog(
		pgCollectionCatalog, cache, cfg.Cache.CollectionTTL, logger)

	// Initialize the node invoker for direct dispatch
	nodeInvoker := client.NewPgxNodeInvoker(
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Schemas.Distributed,
		logger,
	)
	defer nodeInvoker.Close()

	// Initialize services
	logger.Info("Initializing services")

	topologyService := service.NewTopologyService(nodeCatalog, m, logger)
	colocationService := service.NewColocationService(
		collectionCatalog,
		colocationCatalog,
		shardCatalog,
		placementStore,
		sequential,
		operationLog,
		topologyService,
		schemas,
		cfg.Features.EnableMoveCollection,
		m,
		logger,
	)
	upgradeService := service.NewUpgradeService(
		clusterMetadata,
		nodeCatalog,
		schemaAdmin,
		cache,
		operationLog,
		service.DefaultUpgradeSteps(),
		nil,
		cfg.Cache.VersionTTL,
		m,
		logger,
	)
	dispatchService := service.NewDispatchService(shardCatalog, nodeCatalog, nodeInvoker, m, logger)
	indexMetadataService := service.NewIndexMetadataService(
		collectionCatalog,
		indexMetadataStore,
		dispatchService,
		schemas,
		logger,
	)
	rebalancerService := service.NewRebalancerService(rebalancerStore, operationLog, cfg.Features.EnableRebalancer, logger)

	logger.Info("All services initialized")

	// Initialize the admin command handler
	adminHandler := handler.NewAdminHandler(
		topologyService,
		colocationService,
		upgradeService,
		rebalancerService,
		indexMetadataService,
		m,
		logger,
	)

	// Start metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start health check server
	healthChecker := health.NewHealthChecker(clusterMetadata, cache, logger)
	go func() {
		if err := health.StartHealthServer(healthChecker, cfg.Health.Port, logger); err != nil {
			logger.Error("Health check server failed", zap.Error(err))
		}
	}()

	// Start the admin command server
	mux := http.NewServeMux()
	adminHandler.Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Starting admin command server", zap.String("address", addr))

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown timeout, forcing close", zap.Error(err))
		server.Close()
	}

	logger.Info("Control plane stopped")
}
