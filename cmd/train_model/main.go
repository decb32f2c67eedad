package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"studentoutcome/config"
	"studentoutcome/db"
	"studentoutcome/logging"
	"studentoutcome/ml"
	"studentoutcome/monitoring"
	"studentoutcome/pipeline"
	"studentoutcome/schema"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	dataset := flag.String("dataset", "", "dataset CSV path (overrides config)")
	modelType := flag.String("model", "", "model type: knn or decision_tree (overrides config)")
	bundlePath := flag.String("bundle_path", "", "bundle output path (overrides config)")
	seed := flag.Int64("seed", -1, "split seed (overrides config)")
	dbPath := flag.String("db", "", "training history database (overrides config)")
	metricsFile := flag.String("metrics_file", "", "write training metrics in Prometheus text format")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *dataset != "" {
		cfg.Dataset.Path = *dataset
	}
	if *modelType != "" {
		cfg.Training.ModelType = *modelType
	}
	if *bundlePath != "" {
		cfg.Model.BundlePath = *bundlePath
	}
	if *seed >= 0 {
		cfg.Training.Seed = *seed
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetricsCollector()
	result, err := train(cfg, logger)
	metrics.ObserveTraining(cfg.Training.ModelType, result)
	if *metricsFile != "" {
		if werr := prometheus.WriteToTextfile(*metricsFile, metrics.Registry()); werr != nil {
			logger.Warn("failed to write metrics file", zap.String("path", *metricsFile), zap.Error(werr))
		}
	}
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	fmt.Println(result.Report.String())
	fmt.Printf("model saved to %s\n", cfg.Model.BundlePath)
}

// loadConfig falls back to defaults only when the default path is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && os.IsNotExist(err) && path == "config.yaml" {
		return config.Default(), nil
	}
	return cfg, err
}

func train(cfg *config.Config, logger *zap.Logger) (*ml.TrainResult, error) {
	table, err := pipeline.LoadCSV(cfg.Dataset.Path, pipeline.CSVOptions{
		SkipLines: cfg.Dataset.SkipLines,
		Delimiter: cfg.Dataset.CSVDelimiter(),
		Encoding:  cfg.Dataset.Encoding,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.String("path", cfg.Dataset.Path),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)),
	)

	cleaner := pipeline.NewDataCleaner(pipeline.CleanerConfig{
		Target:         cfg.Dataset.Target,
		DropColumns:    cfg.Dataset.DropColumns,
		DropDuplicates: cfg.Dataset.DropDuplicates,
	}, logger)
	cleaned, _, err := cleaner.Clean(table)
	if err != nil {
		return nil, err
	}
	for _, issue := range cleaner.GetIssues(10) {
		logger.Debug("quality issue",
			zap.String("type", issue.Type),
			zap.Int("row", issue.Row),
			zap.String("message", issue.Message),
		)
	}
	stats := cleaner.GetStats()

	result, err := ml.NewTrainer(cfg.Training.Params(), cfg.Dataset.Target, logger).Train(cleaned.Frame())
	if err != nil {
		return nil, err
	}
	result.Bundle.Dataset.DroppedRows += int(stats.Rejected)

	checkSchema(cfg, result.Bundle, logger)

	if err := result.Bundle.Save(cfg.Model.BundlePath); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	logger.Info("model bundle saved",
		zap.String("path", cfg.Model.BundlePath),
		zap.String("fingerprint", result.Bundle.Fingerprint),
		zap.Float64("accuracy", result.Report.Accuracy),
	)

	if cfg.Database.Path != "" {
		if err := recordRun(cfg, result); err != nil {
			// The bundle is already written; history is best effort.
			logger.Error("failed to record training run", zap.Error(err))
		}
	}
	return result, nil
}

// checkSchema warns when the service would refuse to serve the new bundle.
func checkSchema(cfg *config.Config, bundle *ml.Bundle, logger *zap.Logger) {
	s := schema.Default()
	if cfg.SchemaPath != "" {
		loaded, err := schema.LoadFile(cfg.SchemaPath)
		if err != nil {
			logger.Warn("failed to load schema", zap.String("path", cfg.SchemaPath), zap.Error(err))
			return
		}
		s = loaded
	}
	if err := bundle.MatchesFeatures(s.Names()); err != nil {
		logger.Warn("bundle features do not match the input schema", zap.Error(err))
	}
}

func recordRun(cfg *config.Config, result *ml.TrainResult) error {
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := db.NewRun(result, cfg.Model.BundlePath)
	return store.RecordRun(&run)
}
