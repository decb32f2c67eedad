package ml

import (
	"sort"
)

// Preprocessor turns one raw request into the scaled vector the classifier was
// trained on, following the bundle's feature order, encoders and scaler.
type Preprocessor struct {
	bundle *Bundle
}

func NewPreprocessor(bundle *Bundle) *Preprocessor {
	return &Preprocessor{bundle: bundle}
}

// CheckKeys verifies that input names exactly the bundle's features.
// Missing features are reported in bundle order, extras alphabetically.
func (p *Preprocessor) CheckKeys(input map[string]any) error {
	for _, name := range p.bundle.FeatureNames {
		if _, ok := input[name]; !ok {
			return &SchemaError{Kind: MissingFeature, Feature: name}
		}
	}
	if len(input) == len(p.bundle.FeatureNames) {
		return nil
	}
	extras := make([]string, 0, len(input)-len(p.bundle.FeatureNames))
	for name := range input {
		if !p.bundle.HasFeature(name) {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	if len(extras) > 0 {
		return &SchemaError{Kind: UnknownFeature, Feature: extras[0]}
	}
	return nil
}

// Vector builds the encoded, unscaled row.
func (p *Preprocessor) Vector(input map[string]any) ([]float64, error) {
	if err := p.CheckKeys(input); err != nil {
		return nil, err
	}
	row := make([]float64, len(p.bundle.FeatureNames))
	for i, name := range p.bundle.FeatureNames {
		raw := input[name]
		if p.bundle.IsCategorical(name) {
			value, err := CategoryValue(raw)
			if err != nil {
				return nil, &SchemaError{Kind: InvalidValue, Feature: name, Value: raw, Detail: err.Error()}
			}
			codes, err := p.bundle.Encoders[name].Transform([]string{value})
			if err != nil {
				return nil, &SchemaError{Kind: UnknownCategory, Feature: name, Value: raw}
			}
			row[i] = float64(codes[0])
			continue
		}
		v, err := NumericValue(raw)
		if err != nil {
			return nil, &SchemaError{Kind: InvalidValue, Feature: name, Value: raw, Detail: err.Error()}
		}
		row[i] = v
	}
	return row, nil
}

// Transform builds the row and applies the bundle's scaler.
func (p *Preprocessor) Transform(input map[string]any) ([]float64, error) {
	row, err := p.Vector(input)
	if err != nil {
		return nil, err
	}
	return p.bundle.Scaler.TransformRow(row)
}
