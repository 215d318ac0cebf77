package form

import (
	"context"
	"io"
	"log/slog"

	"github.com/goliatone/go-formspec/pkg/choices"
	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/values"
	"github.com/goliatone/go-formspec/pkg/widgets"
)

// Option configures a Form.
type Option func(*options)

type options struct {
	ctx            context.Context
	initial        map[string]any
	snapshot       values.Map
	lazyChoices    bool
	fetcher        choices.Fetcher
	module         string
	extras         map[string]any
	logger         *slog.Logger
	onStateChange  func(Change)
	onChoicesError func(param string, err error)
	normalizer     model.Normalizer
	decorators     []model.Decorator
	exportHidden   bool
}

func defaultOptions() options {
	return options{
		ctx:        context.Background(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		normalizer: model.NewNormalizer(),
		decorators: []model.Decorator{widgets.NewRegistry()},
	}
}

// WithContext sets the parent context of choice fetches. Cancelling it
// cancels every in-flight fetch.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithInitialValues seeds the form with a nested object, typically the
// payload of an earlier submit. Keys that match no field are kept and
// exported unchanged.
func WithInitialValues(values map[string]any) Option {
	return func(o *options) {
		o.initial = values
	}
}

// WithSnapshot builds the form from a flat snapshot such as one returned by
// Values. Unlike Restore on a built form, no defaults are seeded for fields
// missing from the snapshot and no cached choices are discarded. It takes
// precedence over WithInitialValues.
func WithSnapshot(snapshot values.Map) Option {
	return func(o *options) {
		o.snapshot = snapshot
	}
}

// WithLazyChoices defers dynamic choice fetches until ResolveChoices or
// RefreshChoices asks for them. Dependency changes still invalidate cached
// choices and are reported in Change.Refresh.
func WithLazyChoices() Option {
	return func(o *options) {
		o.lazyChoices = true
	}
}

// WithFetcher sets the fetcher used for fields with dynamic choices.
func WithFetcher(fetcher choices.Fetcher) Option {
	return func(o *options) {
		o.fetcher = fetcher
	}
}

// WithModule sets the module name passed along with choice requests.
func WithModule(module string) Option {
	return func(o *options) {
		o.module = module
	}
}

// WithExtras exposes host data to visibility rules under `extras.`.
func WithExtras(extras map[string]any) Option {
	return func(o *options) {
		o.extras = extras
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStateChange registers a hook called after every value mutation. The
// hook runs without the form lock held and may call back into the form.
func WithStateChange(fn func(Change)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// WithChoicesError registers a hook called when a choice fetch fails.
func WithChoicesError(fn func(param string, err error)) Option {
	return func(o *options) {
		o.onChoicesError = fn
	}
}

// WithNormalizer overrides descriptor normalisation.
func WithNormalizer(normalizer model.Normalizer) Option {
	return func(o *options) {
		if normalizer != nil {
			o.normalizer = normalizer
		}
	}
}

// WithWidgets replaces the widget registry used to resolve auto param types.
// A nil registry keeps the default.
func WithWidgets(registry *widgets.Registry) Option {
	return func(o *options) {
		if registry == nil {
			return
		}
		o.decorators = []model.Decorator{registry}
	}
}

// WithDecorator appends a decorator run on registered descriptors.
func WithDecorator(decorator model.Decorator) Option {
	return func(o *options) {
		if decorator != nil {
			o.decorators = append(o.decorators, decorator)
		}
	}
}

// WithExportHidden includes hidden fields in Export.
func WithExportHidden(include bool) Option {
	return func(o *options) {
		o.exportHidden = include
	}
}
