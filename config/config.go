// Package config loads the YAML configuration shared by the training CLI and
// the inference service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"studentoutcome/ml"
)

type Config struct {
	Dataset    DatasetConfig  `yaml:"dataset"`
	Training   TrainingConfig `yaml:"training"`
	Model      ModelConfig    `yaml:"model"`
	Http       HttpConfig     `yaml:"http"`
	Database   DatabaseConfig `yaml:"database"`
	Log        LogConfig      `yaml:"log"`
	SchemaPath string         `yaml:"schema_path"`
}

type DatasetConfig struct {
	Path           string   `yaml:"path" validate:"required"`
	SkipLines      int      `yaml:"skip_lines" validate:"gte=0"`
	Delimiter      string   `yaml:"delimiter" validate:"len=1"`
	Encoding       string   `yaml:"encoding"`
	Target         string   `yaml:"target" validate:"required"`
	DropColumns    []string `yaml:"drop_columns"`
	DropDuplicates bool     `yaml:"drop_duplicates"`
}

type TrainingConfig struct {
	ModelType string  `yaml:"model_type" validate:"oneof=knn decision_tree"`
	K         int     `yaml:"k" validate:"gte=1"`
	MaxDepth  int     `yaml:"max_depth" validate:"gte=1"`
	TestRatio float64 `yaml:"test_ratio" validate:"gt=0,lt=1"`
	Seed      int64   `yaml:"seed"`
}

type ModelConfig struct {
	BundlePath string        `yaml:"bundle_path" validate:"required"`
	Watch      bool          `yaml:"watch"`
	Debounce   time.Duration `yaml:"debounce"`
	CacheSize  int           `yaml:"cache_size" validate:"gte=0"`
}

type HttpConfig struct {
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" validate:"gte=1"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Path is optional; an empty path disables run history.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=json console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:        "data/dataset.csv",
			SkipLines:   3,
			Delimiter:   ",",
			Encoding:    "utf-8",
			Target:      "Target",
			DropColumns: []string{"NIM", "Nama", "SemesterDropout", "JenisKelamin"},
		},
		Training: TrainingConfig{
			ModelType: ml.ModelTypeKNN,
			K:         ml.DefaultNeighbors,
			MaxDepth:  ml.DefaultMaxDepth,
			TestRatio: ml.DefaultTestRatio,
			Seed:      ml.DefaultSeed,
		},
		Model: ModelConfig{
			BundlePath: "models/bundle.json",
			Debounce:   250 * time.Millisecond,
			CacheSize:  1024,
		},
		Http: HttpConfig{
			Port:           8080,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			RequestTimeout: 10 * time.Second,
			MaxBodyBytes:   1 << 20,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path on top of Default and validates the result. A missing file
// is an error; use Default directly to run without one.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}
	return errors.New("invalid configuration: " + strings.Join(msgs, "; "))
}

// CSVDelimiter returns the dataset delimiter as a rune.
func (d DatasetConfig) CSVDelimiter() rune {
	if d.Delimiter == "" {
		return ','
	}
	return []rune(d.Delimiter)[0]
}

// Params converts the training section to trainer parameters.
func (t TrainingConfig) Params() ml.TrainingParams {
	return ml.TrainingParams{
		ModelType: t.ModelType,
		K:         t.K,
		MaxDepth:  t.MaxDepth,
		TestRatio: t.TestRatio,
		Seed:      t.Seed,
	}
}
