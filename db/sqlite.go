package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"studentoutcome/ml"
)

// TrainingRun is one row of the training history.
type TrainingRun struct {
	ID          string            `json:"id"`
	ModelType   string            `json:"model_type"`
	Accuracy    float64           `json:"accuracy"`
	MacroF1     float64           `json:"macro_f1"`
	WeightedF1  float64           `json:"weighted_f1"`
	Classes     []ml.ClassMetrics `json:"classes"`
	Rows        int               `json:"rows"`
	DroppedRows int               `json:"dropped_rows"`
	TrainRows   int               `json:"train_rows"`
	TestRows    int               `json:"test_rows"`
	Seed        int64             `json:"seed"`
	Fingerprint string            `json:"fingerprint"`
	BundlePath  string            `json:"bundle_path"`
	DurationMS  int64             `json:"duration_ms"`
	TrainedAt   time.Time         `json:"trained_at"`
}

// Store keeps the training history in SQLite.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    model_type TEXT NOT NULL,
    accuracy REAL NOT NULL,
    macro_f1 REAL NOT NULL,
    weighted_f1 REAL NOT NULL,
    class_metrics TEXT NOT NULL,
    row_count INTEGER NOT NULL,
    dropped_rows INTEGER DEFAULT 0,
    train_rows INTEGER NOT NULL,
    test_rows INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,
    bundle_path TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0,
    trained_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_training_runs_trained_at ON training_runs(trained_at);
`

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schemaSQL); err != nil {
		database.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NewRun builds a history row from a finished training run.
func NewRun(result *ml.TrainResult, bundlePath string) TrainingRun {
	b := result.Bundle
	return TrainingRun{
		ID:          uuid.NewString(),
		ModelType:   b.Params.ModelType,
		Accuracy:    result.Report.Accuracy,
		MacroF1:     result.Report.MacroAvg.F1,
		WeightedF1:  result.Report.WeightedAvg.F1,
		Classes:     result.Report.Classes,
		Rows:        b.Dataset.Rows,
		DroppedRows: b.Dataset.DroppedRows,
		TrainRows:   b.Dataset.TrainRows,
		TestRows:    b.Dataset.TestRows,
		Seed:        b.Params.Seed,
		Fingerprint: b.Fingerprint,
		BundlePath:  bundlePath,
		DurationMS:  result.Duration.Milliseconds(),
		TrainedAt:   b.CreatedAt.UTC(),
	}
}

// RecordRun inserts a run. An empty ID is filled with a new UUID.
func (s *Store) RecordRun(run *TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	classes, err := json.Marshal(run.Classes)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
        INSERT INTO training_runs (
            id, model_type, accuracy, macro_f1, weighted_f1, class_metrics,
            row_count, dropped_rows, train_rows, test_rows, seed,
            fingerprint, bundle_path, duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ModelType, run.Accuracy, run.MacroF1, run.WeightedF1, string(classes),
		run.Rows, run.DroppedRows, run.TrainRows, run.TestRows, run.Seed,
		run.Fingerprint, run.BundlePath, run.DurationMS, run.TrainedAt,
	)
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *Store) ListRuns(limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
        SELECT id, model_type, accuracy, macro_f1, weighted_f1, class_metrics,
               row_count, dropped_rows, train_rows, test_rows, seed,
               fingerprint, bundle_path, duration_ms, trained_at
        FROM training_runs
        ORDER BY trained_at DESC, rowid DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		var classes string
		if err := rows.Scan(&run.ID, &run.ModelType, &run.Accuracy, &run.MacroF1, &run.WeightedF1, &classes,
			&run.Rows, &run.DroppedRows, &run.TrainRows, &run.TestRows, &run.Seed,
			&run.Fingerprint, &run.BundlePath, &run.DurationMS, &run.TrainedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(classes), &run.Classes); err != nil {
			return nil, fmt.Errorf("run %s: class metrics: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the newest run, or sql.ErrNoRows.
func (s *Store) LatestRun() (*TrainingRun, error) {
	runs, err := s.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &runs[0], nil
}

// IsNotFound reports whether err means no row matched.
func IsNotFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
