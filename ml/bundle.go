package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BundleSchemaVersion is bumped whenever the persisted layout changes.
const BundleSchemaVersion = 1

// Bundle is everything inference needs to reproduce training-time
// preprocessing. It is never mutated after LoadBundle or Trainer.Train returns.
type Bundle struct {
	SchemaVersion      int
	CreatedAt          time.Time
	Classifier         Classifier
	Scaler             *StandardScaler
	Encoders           map[string]Encoder
	TargetEncoder      Encoder
	FeatureNames       []string
	CategoricalColumns []string
	Fingerprint        string
	Dataset            DatasetInfo
	Params             TrainingParams
	Metrics            *Report

	featureIndex map[string]int
	categorical  map[string]bool
}

type DatasetInfo struct {
	Path        string `json:"path"`
	Rows        int    `json:"rows"`
	DroppedRows int    `json:"dropped_rows"`
	TrainRows   int    `json:"train_rows"`
	TestRows    int    `json:"test_rows"`
}

type TrainingParams struct {
	ModelType string  `json:"model_type"`
	K         int     `json:"k,omitempty"`
	MaxDepth  int     `json:"max_depth,omitempty"`
	TestRatio float64 `json:"test_ratio"`
	Seed      int64   `json:"seed"`
}

type bundleFile struct {
	SchemaVersion      int                 `json:"schema_version"`
	CreatedAt          time.Time           `json:"created_at"`
	Classifier         classifierEnvelope  `json:"classifier"`
	Scaler             *StandardScaler     `json:"scaler"`
	Encoders           map[string][]string `json:"encoders"`
	TargetClasses      []string            `json:"target_classes"`
	FeatureNames       []string            `json:"feature_names"`
	CategoricalColumns []string            `json:"categorical_columns"`
	Fingerprint        string              `json:"feature_fingerprint"`
	Dataset            DatasetInfo         `json:"dataset"`
	Params             TrainingParams      `json:"params"`
	Metrics            *Report             `json:"metrics,omitempty"`
}

type classifierEnvelope struct {
	Type  string          `json:"type"`
	Model json.RawMessage `json:"model"`
}

// FeatureFingerprint hashes the ordered feature names. Any rename, insertion
// or reordering changes it.
func FeatureFingerprint(names []string) string {
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Classes returns the target class labels in class-index order.
func (b *Bundle) Classes() []string { return b.TargetEncoder.Classes() }

// IsCategorical reports whether a feature was label-encoded at training time.
func (b *Bundle) IsCategorical(name string) bool { return b.categorical[name] }

// HasFeature reports whether name is part of the training-time schema.
func (b *Bundle) HasFeature(name string) bool {
	_, ok := b.featureIndex[name]
	return ok
}

// MatchesFeatures reports whether names is the same set as the bundle's
// features, returning the first difference found.
func (b *Bundle) MatchesFeatures(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !b.HasFeature(name) {
			return &SchemaError{Kind: UnknownFeature, Feature: name}
		}
		seen[name] = true
	}
	for _, name := range b.FeatureNames {
		if !seen[name] {
			return &SchemaError{Kind: MissingFeature, Feature: name}
		}
	}
	return nil
}

// index builds lookup tables and checks internal consistency.
func (b *Bundle) index() error {
	if len(b.FeatureNames) == 0 {
		return errors.New("bundle has no feature names")
	}
	if b.Classifier == nil || b.Scaler == nil || b.TargetEncoder == nil {
		return errors.New("bundle is missing classifier, scaler or target encoder")
	}
	if FeatureFingerprint(b.FeatureNames) != b.Fingerprint {
		return ErrFingerprint
	}
	b.featureIndex = make(map[string]int, len(b.FeatureNames))
	for i, name := range b.FeatureNames {
		if _, dup := b.featureIndex[name]; dup {
			return fmt.Errorf("duplicate feature %q", name)
		}
		b.featureIndex[name] = i
	}
	b.categorical = make(map[string]bool, len(b.CategoricalColumns))
	for _, col := range b.CategoricalColumns {
		if !b.HasFeature(col) {
			return fmt.Errorf("categorical column %q is not a feature", col)
		}
		if _, ok := b.Encoders[col]; !ok {
			return fmt.Errorf("categorical column %q has no encoder", col)
		}
		b.categorical[col] = true
	}
	if err := b.Scaler.Validate(); err != nil {
		return err
	}
	if err := b.Classifier.Validate(); err != nil {
		return fmt.Errorf("%s classifier: %w", b.Classifier.Name(), err)
	}
	if b.Scaler.Width() != len(b.FeatureNames) {
		return fmt.Errorf("%w: scaler has %d columns, bundle has %d features", ErrWidthMismatch, b.Scaler.Width(), len(b.FeatureNames))
	}
	width, classes := b.Classifier.Shape()
	if width != len(b.FeatureNames) {
		return fmt.Errorf("%w: classifier has %d columns, bundle has %d features", ErrWidthMismatch, width, len(b.FeatureNames))
	}
	if classes != len(b.TargetEncoder.Classes()) {
		return fmt.Errorf("classifier has %d classes, target encoder has %d", classes, len(b.TargetEncoder.Classes()))
	}
	return nil
}

// Save writes the bundle as JSON. The file is written next to path and renamed
// into place, so readers see either the old or the new bundle.
func (b *Bundle) Save(path string) error {
	if b.Classifier == nil {
		return ErrNotFitted
	}
	model, err := json.Marshal(b.Classifier)
	if err != nil {
		return fmt.Errorf("encode classifier: %w", err)
	}
	file := bundleFile{
		SchemaVersion:      b.SchemaVersion,
		CreatedAt:          b.CreatedAt,
		Classifier:         classifierEnvelope{Type: b.Classifier.Name(), Model: model},
		Scaler:             b.Scaler,
		Encoders:           make(map[string][]string, len(b.Encoders)),
		TargetClasses:      b.TargetEncoder.Classes(),
		FeatureNames:       b.FeatureNames,
		CategoricalColumns: b.CategoricalColumns,
		Fingerprint:        b.Fingerprint,
		Dataset:            b.Dataset,
		Params:             b.Params,
		Metrics:            b.Metrics,
	}
	for col, enc := range b.Encoders {
		file.Encoders[col] = enc.Classes()
	}
	payload, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadBundle reads and validates a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return DecodeBundle(payload)
}

func DecodeBundle(payload []byte) (*Bundle, error) {
	var file bundleFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if file.SchemaVersion != BundleSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrBundleVersion, file.SchemaVersion)
	}

	classifier, err := decodeClassifier(file.Classifier)
	if err != nil {
		return nil, err
	}
	target, err := NewLabelEncoderFromClasses(file.TargetClasses)
	if err != nil {
		return nil, fmt.Errorf("target encoder: %w", err)
	}
	encoders := make(map[string]Encoder, len(file.Encoders))
	for col, classes := range file.Encoders {
		enc, err := NewLabelEncoderFromClasses(classes)
		if err != nil {
			return nil, fmt.Errorf("encoder %q: %w", col, err)
		}
		encoders[col] = enc
	}

	b := &Bundle{
		SchemaVersion:      file.SchemaVersion,
		CreatedAt:          file.CreatedAt,
		Classifier:         classifier,
		Scaler:             file.Scaler,
		Encoders:           encoders,
		TargetEncoder:      target,
		FeatureNames:       file.FeatureNames,
		CategoricalColumns: file.CategoricalColumns,
		Fingerprint:        file.Fingerprint,
		Dataset:            file.Dataset,
		Params:             file.Params,
		Metrics:            file.Metrics,
	}
	if err := b.index(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	return b, nil
}

func decodeClassifier(env classifierEnvelope) (Classifier, error) {
	var model Classifier
	switch env.Type {
	case ModelTypeKNN:
		model = &KNN{}
	case ModelTypeDecisionTree:
		model = &DecisionTree{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, env.Type)
	}
	if err := json.Unmarshal(env.Model, model); err != nil {
		return nil, fmt.Errorf("decode %s classifier: %w", env.Type, err)
	}
	return model, nil
}

// NewClassifier builds an unfitted classifier of the given type.
func NewClassifier(params TrainingParams) (Classifier, error) {
	switch params.ModelType {
	case "", ModelTypeKNN:
		return NewKNN(params.K), nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(params.MaxDepth), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, params.ModelType)
	}
}
