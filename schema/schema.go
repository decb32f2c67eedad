// Package schema describes the student attributes the service accepts: their
// order, semantic type and the bounds the input form enforces.
package schema

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"

	"studentoutcome/ml"
)

// FeatureKind is the semantic type of a feature slot.
type FeatureKind string

const (
	Numeric     FeatureKind = "numeric"
	Bounded     FeatureKind = "bounded"
	Categorical FeatureKind = "categorical"
)

// Feature is one named slot of the schema.
type Feature struct {
	Name    string      `yaml:"name" json:"name"`
	Label   string      `yaml:"label" json:"label"`
	Group   string      `yaml:"group" json:"group"`
	Kind    FeatureKind `yaml:"kind" json:"kind"`
	Min     float64     `yaml:"min,omitempty" json:"min,omitempty"`
	Max     float64     `yaml:"max,omitempty" json:"max,omitempty"`
	Integer bool        `yaml:"integer,omitempty" json:"integer,omitempty"`
	Choices []string    `yaml:"choices,omitempty" json:"choices,omitempty"`
	Default any         `yaml:"default,omitempty" json:"default,omitempty"`
}

// Schema is an ordered list of feature slots.
type Schema struct {
	Version  int       `yaml:"version" json:"version"`
	Features []Feature `yaml:"features" json:"features"`

	index map[string]int
}

// New validates features and builds the lookup index.
func New(version int, features []Feature) (*Schema, error) {
	s := &Schema{Version: version, Features: features}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a schema from YAML.
func LoadFile(path string) (*Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var s Schema
	if err := yaml.NewDecoder(file).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", path, err)
	}
	if err := s.build(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return &s, nil
}

func (s *Schema) build() error {
	if len(s.Features) == 0 {
		return errors.New("schema has no features")
	}
	s.index = make(map[string]int, len(s.Features))
	for i, f := range s.Features {
		if f.Name == "" {
			return fmt.Errorf("feature %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return fmt.Errorf("duplicate feature %q", f.Name)
		}
		switch f.Kind {
		case Numeric:
		case Bounded:
			if f.Min > f.Max {
				return fmt.Errorf("feature %q: min %v greater than max %v", f.Name, f.Min, f.Max)
			}
		case Categorical:
			if len(f.Choices) == 0 {
				return fmt.Errorf("feature %q: categorical without choices", f.Name)
			}
		default:
			return fmt.Errorf("feature %q: unknown kind %q", f.Name, f.Kind)
		}
		s.index[f.Name] = i
	}
	return nil
}

// Names returns the feature names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Features))
	for i, f := range s.Features {
		names[i] = f.Name
	}
	return names
}

func (s *Schema) Lookup(name string) (Feature, bool) {
	i, ok := s.index[name]
	if !ok {
		return Feature{}, false
	}
	return s.Features[i], true
}

// Fingerprint hashes the ordered feature names the same way bundles do.
func (s *Schema) Fingerprint() string { return ml.FeatureFingerprint(s.Names()) }

// Defaults returns a complete input filled with each feature's default value.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Features))
	for _, f := range s.Features {
		out[f.Name] = f.Default
	}
	return out
}

// ValidateInput enforces presence, kind and bounds for every feature. It is
// the input-collection boundary; encoding problems are caught later by the
// predictor.
func (s *Schema) ValidateInput(input map[string]any) error {
	for _, f := range s.Features {
		raw, ok := input[f.Name]
		if !ok {
			return &ml.SchemaError{Kind: ml.MissingFeature, Feature: f.Name}
		}
		if err := f.Check(raw); err != nil {
			return err
		}
	}
	for name := range input {
		if _, ok := s.index[name]; !ok {
			return &ml.SchemaError{Kind: ml.UnknownFeature, Feature: name}
		}
	}
	return nil
}

// Check validates a single raw value against the feature.
func (f Feature) Check(raw any) error {
	switch f.Kind {
	case Categorical:
		value, err := ml.CategoryValue(raw)
		if err != nil {
			return &ml.SchemaError{Kind: ml.InvalidValue, Feature: f.Name, Value: raw, Detail: err.Error()}
		}
		value = ml.NormalizeCategory(value)
		for _, choice := range f.Choices {
			if ml.NormalizeCategory(choice) == value {
				return nil
			}
		}
		return &ml.SchemaError{Kind: ml.UnknownCategory, Feature: f.Name, Value: raw}
	default:
		v, err := ml.NumericValue(raw)
		if err != nil {
			return &ml.SchemaError{Kind: ml.InvalidValue, Feature: f.Name, Value: raw, Detail: err.Error()}
		}
		if f.Integer && v != math.Trunc(v) {
			return &ml.SchemaError{Kind: ml.InvalidValue, Feature: f.Name, Value: raw, Detail: "must be a whole number"}
		}
		if f.Kind == Bounded && (v < f.Min || v > f.Max) {
			return &ml.SchemaError{
				Kind:    ml.OutOfRange,
				Feature: f.Name,
				Value:   raw,
				Detail:  fmt.Sprintf("must be within [%v, %v]", f.Min, f.Max),
			}
		}
		return nil
	}
}
