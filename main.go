package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"studentoutcome/config"
	"studentoutcome/db"
	qhttp "studentoutcome/http"
	"studentoutcome/logging"
	"studentoutcome/ml"
	"studentoutcome/monitoring"
	"studentoutcome/schema"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// 2. Load schema and model bundle
	inputSchema := schema.Default()
	if cfg.SchemaPath != "" {
		if inputSchema, err = schema.LoadFile(cfg.SchemaPath); err != nil {
			logger.Fatal("Failed to load schema", zap.Error(err))
		}
	}

	metrics := monitoring.NewMetricsCollector()
	source, err := ml.NewBundleSource(cfg.Model.BundlePath, func(b *ml.Bundle) error {
		return b.MatchesFeatures(inputSchema.Names())
	}, logger)
	if err != nil {
		logger.Fatal("Failed to load model bundle", zap.String("path", cfg.Model.BundlePath), zap.Error(err))
	}
	metrics.SetBundle(source.Bundle())
	logger.Info("Model bundle loaded",
		zap.String("path", cfg.Model.BundlePath),
		zap.String("model", source.Bundle().Classifier.Name()),
		zap.Strings("classes", source.Bundle().Classes()),
	)

	predictor, err := ml.NewCachedPredictor(source, cfg.Model.CacheSize)
	if err != nil {
		logger.Fatal("Failed to build predictor", zap.Error(err))
	}
	source.OnReload(func(b *ml.Bundle) {
		predictor.Purge()
		metrics.SetBundle(b)
		metrics.ObserveReload(nil)
	})
	source.OnReloadError(metrics.ObserveReload)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Model.Watch {
		go func() {
			if err := source.Watch(ctx, cfg.Model.Debounce); err != nil {
				logger.Error("Bundle watcher stopped", zap.Error(err))
			}
		}()
	}

	// 3. Open training history
	deps := qhttp.Deps{
		Bundles:   source,
		Predictor: predictor,
		Schema:    inputSchema,
		Metrics:   metrics,
		Logger:    logger,
	}
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		defer store.Close()
		deps.Runs = store
		logger.Info("Database initialized", zap.String("path", cfg.Database.Path))
	}

	// 4. Start HTTP server
	server, err := qhttp.NewServer(cfg.Http, deps)
	if err != nil {
		logger.Fatal("Failed to build HTTP server", zap.Error(err))
	}
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	// 5. Handle graceful shutdown
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Exiting")
}
