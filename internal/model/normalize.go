package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goliatone/go-formspec/pkg/visibility"
	"github.com/goliatone/go-formspec/pkg/visibility/expr"
)

var (
	ErrNameMissing    = errors.New("model: field name is required")
	ErrDuplicateField = errors.New("model: duplicate field name")
	ErrDataType       = errors.New("model: unknown data type")
	ErrParamType      = errors.New("model: unknown param type")
	ErrBounds         = errors.New("model: min is greater than max")
)

// Normalizer validates descriptors and fills derived attributes.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer with the supplied options.
func New(options Options) *Normalizer {
	opts := defaultOptions()
	if options.Labeler != nil {
		opts.Labeler = options.Labeler
	}
	return &Normalizer{opts: opts}
}

// Normalize validates an ordered descriptor list. Names must be unique.
func (n *Normalizer) Normalize(fields []Field) ([]Field, error) {
	out := make([]Field, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		normalized, err := n.NormalizeField(field)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[normalized.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, normalized.Name)
		}
		seen[normalized.Name] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

// NormalizeField validates a single descriptor, compiles its visibility
// condition and regex, and fills the title, data type and param type.
func (n *Normalizer) NormalizeField(field Field) (Field, error) {
	field.Name = strings.TrimSpace(field.Name)
	if field.Name == "" {
		return Field{}, ErrNameMissing
	}
	if field.Title == "" {
		field.Title = n.opts.Labeler(field.Name)
	}

	field.DataType = field.EffectiveDataType()
	if !field.DataType.Valid() {
		return Field{}, fmt.Errorf("%w %q on %q", ErrDataType, field.DataType, field.Name)
	}
	if field.ParamType == "" {
		field.ParamType = ParamTypeAuto
	}
	if !field.ParamType.Valid() {
		return Field{}, fmt.Errorf("%w %q on %q", ErrParamType, field.ParamType, field.Name)
	}

	if field.Validate != nil {
		validate := *field.Validate
		if validate.Regex != "" && validate.Pattern == nil {
			pattern, err := regexp.Compile(validate.Regex)
			if err != nil {
				return Field{}, fmt.Errorf("model: regex on %q: %w", field.Name, err)
			}
			validate.Pattern = pattern
		}
		if validate.Min != nil && validate.Max != nil && *validate.Min > *validate.Max {
			return Field{}, fmt.Errorf("%w on %q", ErrBounds, field.Name)
		}
		if validate.MinLength != nil && validate.MaxLength != nil && *validate.MinLength > *validate.MaxLength {
			return Field{}, fmt.Errorf("%w (length) on %q", ErrBounds, field.Name)
		}
		field.Validate = &validate
	}

	predicate, err := compileVisibility(field)
	if err != nil {
		return Field{}, err
	}
	field.Predicate = predicate

	if len(field.Choices) > 0 {
		choices := make([]Choice, len(field.Choices))
		for i, choice := range field.Choices {
			choices[i] = NormalizeChoice(choice)
		}
		field.Choices = choices
	}
	return field, nil
}

// compileVisibility keeps a predicate supplied directly when neither When
// nor VisibleIf is set.
func compileVisibility(field Field) (visibility.Predicate, error) {
	if (field.When == nil || field.When.IsZero()) && strings.TrimSpace(field.VisibleIf) == "" {
		return field.Predicate, nil
	}
	when, err := visibility.Compile(field.When)
	if err != nil {
		return nil, fmt.Errorf("model: when on %q: %w", field.Name, err)
	}
	rule, err := expr.Parse(field.VisibleIf)
	if err != nil {
		return nil, fmt.Errorf("model: visible_if on %q: %w", field.Name, err)
	}
	switch {
	case when != nil && rule != nil:
		return visibility.And{Terms: []visibility.Predicate{when, rule}}, nil
	case rule != nil:
		return rule, nil
	}
	return when, nil
}
