package model

import "github.com/goliatone/go-formspec/internal/model"

// Normalizer validates descriptor lists and fills derived attributes.
type Normalizer interface {
	Normalize(fields []Field) ([]Field, error)
	NormalizeField(field Field) (Field, error)
}

// NormalizerOption configures the normalizer behaviour.
type NormalizerOption func(*normalizerOptions)

type normalizerOptions struct {
	labeler func(string) string
}

// WithLabeler overrides the default title generation function.
func WithLabeler(labeler func(string) string) NormalizerOption {
	return func(opts *normalizerOptions) {
		opts.labeler = labeler
	}
}

// NewNormalizer returns a Normalizer backed by the internal implementation.
func NewNormalizer(options ...NormalizerOption) Normalizer {
	cfg := normalizerOptions{}
	for _, opt := range options {
		opt(&cfg)
	}

	internalOpts := model.Options{}
	if cfg.labeler != nil {
		internalOpts.Labeler = cfg.labeler
	}
	return model.New(internalOpts)
}

// Normalize runs the default normalizer over fields.
func Normalize(fields []Field) ([]Field, error) {
	return NewNormalizer().Normalize(fields)
}

// DefaultLabeler derives a title from a field name.
func DefaultLabeler(name string) string {
	return model.DefaultLabeler(name)
}
