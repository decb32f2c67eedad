package ml

import (
	"fmt"
)

// ClassProbability is the probability of one class label.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Prediction is the result for one student.
type Prediction struct {
	Label         string             `json:"label"`
	ClassIndex    int                `json:"class_index"`
	Probabilities []ClassProbability `json:"probabilities"`
}

func (p *Prediction) clone() *Prediction {
	out := *p
	out.Probabilities = append([]ClassProbability(nil), p.Probabilities...)
	return &out
}

// Predictor serves predictions from one immutable bundle. It holds no mutable
// state and is safe for concurrent use.
type Predictor struct {
	bundle       *Bundle
	preprocessor *Preprocessor
}

func NewPredictor(bundle *Bundle) *Predictor {
	return &Predictor{bundle: bundle, preprocessor: NewPreprocessor(bundle)}
}

func (p *Predictor) Bundle() *Bundle { return p.bundle }

// Transform maps raw input onto the scaled feature vector. Schema problems are
// returned as *SchemaError.
func (p *Predictor) Transform(input map[string]any) ([]float64, error) {
	return p.preprocessor.Transform(input)
}

// Classify runs the classifier on an already scaled vector.
func (p *Predictor) Classify(scaled []float64) (*Prediction, error) {
	proba, err := p.bundle.Classifier.PredictProba(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict proba: %w", err)
	}
	idx, err := p.bundle.Classifier.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	labels, err := p.bundle.TargetEncoder.InverseTransform([]int{idx})
	if err != nil {
		return nil, fmt.Errorf("decode class %d: %w", idx, err)
	}
	classes := p.bundle.TargetEncoder.Classes()
	if len(proba) != len(classes) {
		return nil, fmt.Errorf("classifier returned %d probabilities for %d classes", len(proba), len(classes))
	}
	out := &Prediction{
		Label:         labels[0],
		ClassIndex:    idx,
		Probabilities: make([]ClassProbability, len(classes)),
	}
	for i, class := range classes {
		out.Probabilities[i] = ClassProbability{Class: class, Probability: proba[i]}
	}
	return out, nil
}

// Predict validates, encodes and scales input, then classifies it.
func (p *Predictor) Predict(input map[string]any) (*Prediction, error) {
	scaled, err := p.Transform(input)
	if err != nil {
		return nil, err
	}
	return p.Classify(scaled)
}
