package ml

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TrainResult is the outcome of one training run.
type TrainResult struct {
	Bundle   *Bundle
	Report   *Report
	Split    Split
	Duration time.Duration
}

// Trainer fits encoders, scaler and classifier from a cleaned Frame.
type Trainer struct {
	params TrainingParams
	target string
	logger *zap.Logger
	now    func() time.Time
}

func NewTrainer(params TrainingParams, target string, logger *zap.Logger) *Trainer {
	if params.ModelType == "" {
		params.ModelType = ModelTypeKNN
	}
	if params.ModelType == ModelTypeKNN && params.K <= 0 {
		params.K = DefaultNeighbors
	}
	if params.TestRatio <= 0 || params.TestRatio >= 1 {
		params.TestRatio = DefaultTestRatio
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{params: params, target: target, logger: logger, now: time.Now}
}

// Train runs encode -> scale -> stratified split -> fit -> evaluate and
// returns a validated bundle. Nothing is written to disk.
func (t *Trainer) Train(frame Frame) (*TrainResult, error) {
	start := t.now()

	set, err := BuildTrainingSet(frame, t.target)
	if err != nil {
		return nil, err
	}
	t.logger.Info("training set built",
		zap.Int("rows", len(set.Y)),
		zap.Int("dropped_rows", set.DroppedRows),
		zap.Int("features", len(set.FeatureNames)),
		zap.Strings("categorical_columns", set.CategoricalColumns),
		zap.Strings("classes", set.TargetEncoder.Classes()),
	)

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(set.X)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}

	split, err := StratifiedSplit(set.Y, t.params.TestRatio, t.params.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	trainX, trainY := Gather(scaled, set.Y, split.Train)
	testX, testY := Gather(scaled, set.Y, split.Test)

	classifier, err := NewClassifier(t.params)
	if err != nil {
		return nil, err
	}
	classes := set.TargetEncoder.Classes()
	if err := classifier.Fit(trainX, trainY, len(classes)); err != nil {
		return nil, fmt.Errorf("fit %s: %w", classifier.Name(), err)
	}

	predictions := make([]int, len(testX))
	for i, row := range testX {
		label, err := classifier.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		predictions[i] = label
	}
	report, err := ClassificationReport(testY, predictions, classes)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	bundle := &Bundle{
		SchemaVersion:      BundleSchemaVersion,
		CreatedAt:          t.now().UTC(),
		Classifier:         classifier,
		Scaler:             scaler,
		Encoders:           set.Encoders,
		TargetEncoder:      set.TargetEncoder,
		FeatureNames:       set.FeatureNames,
		CategoricalColumns: set.CategoricalColumns,
		Fingerprint:        FeatureFingerprint(set.FeatureNames),
		Dataset: DatasetInfo{
			Path:        frame.Source,
			Rows:        len(set.Y),
			DroppedRows: set.DroppedRows,
			TrainRows:   len(split.Train),
			TestRows:    len(split.Test),
		},
		Params:  t.params,
		Metrics: report,
	}
	if err := bundle.index(); err != nil {
		return nil, fmt.Errorf("assemble bundle: %w", err)
	}

	duration := t.now().Sub(start)
	t.logger.Info("model trained",
		zap.String("model", classifier.Name()),
		zap.Int("train_rows", len(split.Train)),
		zap.Int("test_rows", len(split.Test)),
		zap.Float64("accuracy", report.Accuracy),
		zap.Duration("duration", duration),
	)
	return &TrainResult{Bundle: bundle, Report: report, Split: split, Duration: duration}, nil
}
