package ml

import (
	"errors"
	"fmt"
)

var (
	ErrNotFitted      = errors.New("model not fitted")
	ErrUnseenValue    = errors.New("value not seen during fit")
	ErrBundleVersion  = errors.New("unsupported bundle schema version")
	ErrFingerprint    = errors.New("bundle feature fingerprint mismatch")
	ErrWidthMismatch  = errors.New("feature width mismatch")
	ErrUnknownModel   = errors.New("unsupported model type")
	ErrTooFewPerClass = errors.New("class has too few members to stratify")
	ErrInvalidModel   = errors.New("invalid model parameters")
)

// SchemaErrorKind classifies a request that does not match the bundle schema.
type SchemaErrorKind string

const (
	MissingFeature  SchemaErrorKind = "missing_feature"
	UnknownFeature  SchemaErrorKind = "unknown_feature"
	UnknownCategory SchemaErrorKind = "unknown_category"
	InvalidValue    SchemaErrorKind = "invalid_value"
	OutOfRange      SchemaErrorKind = "out_of_range"
)

// SchemaError is returned for caller input that cannot be mapped onto the
// training-time feature schema. It is recoverable: the caller can fix the
// request and retry.
type SchemaError struct {
	Kind    SchemaErrorKind `json:"kind"`
	Feature string          `json:"feature"`
	Value   any             `json:"value,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case MissingFeature:
		return fmt.Sprintf("missing feature %q", e.Feature)
	case UnknownFeature:
		return fmt.Sprintf("unknown feature %q", e.Feature)
	case UnknownCategory:
		return fmt.Sprintf("unknown category %v for feature %q", e.Value, e.Feature)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s for feature %q: %s", e.Kind, e.Feature, e.Detail)
		}
		return fmt.Sprintf("%s for feature %q", e.Kind, e.Feature)
	}
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}
