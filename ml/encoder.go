package ml

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Encoder maps category values to integer codes and back.
type Encoder interface {
	Fit(values []string) error
	Transform(values []string) ([]int, error)
	InverseTransform(codes []int) ([]string, error)
	Classes() []string
}

// LabelEncoder assigns codes 0..n-1 to the sorted distinct values seen during Fit.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// NewLabelEncoderFromClasses rebuilds an encoder from a persisted class list.
// The order of classes is kept as given.
func NewLabelEncoderFromClasses(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("encoder classes are empty")
	}
	e := &LabelEncoder{
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	for i, class := range classes {
		key := NormalizeCategory(class)
		if _, exists := e.index[key]; exists {
			return nil, fmt.Errorf("duplicate encoder class %q", class)
		}
		e.classes[i] = key
		e.index[key] = i
	}
	return e, nil
}

// NormalizeCategory trims whitespace and applies Unicode NFC so that visually
// identical values encode to the same code.
func NormalizeCategory(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.New("values is empty")
	}
	seen := make(map[string]struct{})
	for _, v := range values {
		seen[NormalizeCategory(v)] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, class := range classes {
		e.index[class] = i
	}
	return nil
}

// Code returns the code of a single value.
func (e *LabelEncoder) Code(value string) (int, bool) {
	code, ok := e.index[NormalizeCategory(value)]
	return code, ok
}

func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	if e.index == nil {
		return nil, ErrNotFitted
	}
	codes := make([]int, len(values))
	for i, v := range values {
		code, ok := e.Code(v)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnseenValue, v)
		}
		codes[i] = code
	}
	return codes, nil
}

func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if e.index == nil {
		return nil, ErrNotFitted
	}
	values := make([]string, len(codes))
	for i, code := range codes {
		if code < 0 || code >= len(e.classes) {
			return nil, fmt.Errorf("code %d out of range [0, %d)", code, len(e.classes))
		}
		values[i] = e.classes[code]
	}
	return values, nil
}

// Classes returns a copy of the class list in code order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// FitTransform fits the encoder and encodes the same values.
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}
