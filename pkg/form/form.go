// Package form is the runtime of a form: it holds descriptors and values,
// derives visibility from value changes, resolves dynamic choices
// concurrently, and validates and exports the collected values.
//
// A Form is safe for concurrent use. Hooks registered with WithStateChange
// and WithChoicesError run without the form lock held.
package form

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/values"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

// Form holds descriptors, values and derived state.
type Form struct {
	mu sync.Mutex

	opts       options
	fields     []model.Field
	index      map[string]int
	dependents map[string][]string

	values     values.Map
	visible    map[string]bool
	errors     map[string][]ValidationError
	formErrors []string

	choices         map[string]*choiceState
	pendingDefaults map[string]string
	restoring       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Change describes one value mutation. Shown and Hidden list the fields
// whose visibility flipped; Refresh lists dynamic choice fields that were
// invalidated or started fetching as a result.
type Change struct {
	Field    model.Field
	Value    any
	Previous any
	Shown    []string
	Hidden   []string
	Refresh  []string
}

// FieldState is a read-only view of one field.
type FieldState struct {
	Field   model.Field
	Visible bool
	Defined bool
	Value   any
	Errors  []ValidationError
}

// New creates a form for fields. Descriptors are normalised, defaults are
// seeded where no initial value exists, and dynamic choices of visible
// fields start resolving immediately unless WithLazyChoices is set.
func New(fields []model.Field, opts ...Option) (*Form, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(cfg.ctx)
	f := &Form{
		opts:            cfg,
		index:           make(map[string]int),
		dependents:      make(map[string][]string),
		values:          make(values.Map),
		visible:         make(map[string]bool),
		errors:          make(map[string][]ValidationError),
		choices:         make(map[string]*choiceState),
		pendingDefaults: make(map[string]string),
		ctx:             ctx,
		cancel:          cancel,
	}
	switch {
	case cfg.snapshot != nil:
		f.values = cfg.snapshot.Clone()
		f.restoring = true
	case len(cfg.initial) > 0:
		f.values = values.Flatten(cfg.initial, attributeLeaves(fields)...)
	}

	err := f.Register(fields...)
	f.restoring = false
	if err != nil {
		cancel()
		return nil, err
	}
	return f, nil
}

// Register adds descriptors to the form. Names must be unique across all
// registrations.
func (f *Form) Register(fields ...model.Field) error {
	normalized, err := f.opts.normalizer.Normalize(fields)
	if err != nil {
		return err
	}
	for _, decorator := range f.opts.decorators {
		if decorator == nil {
			continue
		}
		if err := decorator.Decorate(normalized); err != nil {
			return fmt.Errorf("form: decorate: %w", err)
		}
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	for _, field := range normalized {
		if _, dup := f.index[field.Name]; dup {
			f.mu.Unlock()
			return fmt.Errorf("%w: %q", model.ErrDuplicateField, field.Name)
		}
	}

	for _, field := range normalized {
		f.index[field.Name] = len(f.fields)
		f.fields = append(f.fields, field)
		f.seed(field)
	}
	f.rebuildDependents()
	f.refreshVisibility()
	f.resolveUnsettled()
	f.mu.Unlock()
	return nil
}

// seed coerces an initial value or applies the default. Must hold f.mu.
func (f *Form) seed(field model.Field) {
	if field.IsDisplayOnly() {
		f.values.Delete(field.Name)
		return
	}
	if raw, ok := f.values.Get(field.Name); ok {
		if coerced, err := Coerce(field, raw); err == nil {
			f.values.Set(field.Name, coerced)
		}
		return
	}
	if field.Default == nil || f.restoring {
		return
	}
	if token, ok := field.Default.(string); ok && isChoiceToken(token) {
		if field.DynamicChoices {
			f.pendingDefaults[field.Name] = token
			return
		}
		if value, ok := defaultFromChoices(field, token, field.Choices); ok {
			f.values.Set(field.Name, value)
		}
		return
	}
	if coerced, err := Coerce(field, field.Default); err == nil {
		f.values.Set(field.Name, coerced)
	} else {
		f.opts.logger.Warn("form: default does not match data type", "param", field.Name, "error", err)
	}
}

func (f *Form) rebuildDependents() {
	f.dependents = make(map[string][]string)
	for _, field := range f.fields {
		if !field.DynamicChoices {
			continue
		}
		for _, dep := range field.Dependencies() {
			f.dependents[dep] = append(f.dependents[dep], field.Name)
		}
	}
}

// refreshVisibility re-evaluates every predicate against the current values
// and returns the fields whose visibility changed. Must hold f.mu.
func (f *Form) refreshVisibility() (shown, hidden []string) {
	ctx := visibility.Context{Values: f.values, Extras: f.opts.extras}
	for _, field := range f.fields {
		next := visibility.Eval(field.Predicate, ctx)
		prev, known := f.visible[field.Name]
		f.visible[field.Name] = next
		switch {
		case next && (!known || !prev):
			shown = append(shown, field.Name)
		case !next && known && prev:
			hidden = append(hidden, field.Name)
		}
	}
	return shown, hidden
}

// Fields returns the state of every field in registration order.
func (f *Form) Fields() []FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FieldState, 0, len(f.fields))
	for _, field := range f.fields {
		out = append(out, f.stateOf(field))
	}
	return out
}

// Field returns the state of one field.
func (f *Form) Field(name string) (FieldState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.index[name]
	if !ok {
		return FieldState{}, false
	}
	return f.stateOf(f.fields[idx]), true
}

func (f *Form) stateOf(field model.Field) FieldState {
	value, defined := f.values.Get(field.Name)
	return FieldState{
		Field:   field,
		Visible: f.visible[field.Name],
		Defined: defined,
		Value:   values.DeepCopy(value),
		Errors:  append([]ValidationError(nil), f.errors[field.Name]...),
	}
}

// Visible reports whether the named field is currently shown. Unknown
// fields are not visible.
func (f *Form) Visible(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[name]
}

// Value returns the current value of a field or pass-through key.
func (f *Form) Value(name string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values.Get(name)
	return values.DeepCopy(v), ok
}

// Values returns a snapshot of every value, including hidden fields and
// pass-through keys.
func (f *Form) Values() values.Map {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values.Clone()
}

// SetValue stores a value, re-evaluates visibility and invalidates the
// choices of dependent fields. Values that do not match the field's data
// type are kept as given and reported by Validate. A nil value clears the
// field.
func (f *Form) SetValue(name string, value any) (Change, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return Change{}, ErrClosed
	}
	idx, ok := f.index[name]
	if !ok {
		f.mu.Unlock()
		return Change{}, fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	field := f.fields[idx]
	if field.IsDisplayOnly() {
		f.mu.Unlock()
		return Change{}, fmt.Errorf("%w: %q", ErrDisplayOnly, name)
	}

	value = applyAutoPrefix(field, value)
	stored, err := Coerce(field, value)
	if err != nil {
		stored = value
	}

	previous, had := f.values.Get(name)
	if stored == nil {
		f.values.Delete(name)
	} else {
		f.values.Set(name, stored)
	}
	delete(f.errors, name)
	delete(f.pendingDefaults, name)

	changed := had != (stored != nil) || !visibility.Equal(previous, stored)
	change := f.propagate(field, changed)
	change.Value = values.DeepCopy(stored)
	change.Previous = previous
	hook := f.opts.onStateChange
	f.mu.Unlock()

	if hook != nil {
		hook(change)
	}
	return change, nil
}

// propagate recomputes visibility and choice state after field changed.
// Must hold f.mu.
func (f *Form) propagate(field model.Field, changed bool) Change {
	change := Change{Field: field}
	change.Shown, change.Hidden = f.refreshVisibility()

	refreshed := make(map[string]struct{})
	if changed {
		for _, name := range f.invalidateDependents(field.Name) {
			refreshed[name] = struct{}{}
			change.Refresh = append(change.Refresh, name)
		}
	}
	for _, name := range f.resolveShown(change.Shown) {
		if _, dup := refreshed[name]; !dup {
			change.Refresh = append(change.Refresh, name)
		}
	}
	return change
}

// Load replaces the values with a nested object, as when editing an earlier
// submission. Choices are re-resolved for visible dynamic fields.
func (f *Form) Load(nested map[string]any) {
	f.mu.Lock()
	flat := values.Flatten(nested, attributeLeaves(f.fields)...)
	f.mu.Unlock()
	f.Restore(flat)
}

// Restore replaces the values with a flat snapshot such as one returned by
// Values.
func (f *Form) Restore(snapshot values.Map) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.values = snapshot.Clone()
	for _, field := range f.fields {
		if raw, ok := f.values.Get(field.Name); ok {
			if coerced, err := Coerce(field, raw); err == nil {
				f.values.Set(field.Name, coerced)
			}
		}
	}
	f.errors = make(map[string][]ValidationError)
	f.formErrors = nil
	f.pendingDefaults = make(map[string]string)

	f.refreshVisibility()
	for _, field := range f.fields {
		if field.DynamicChoices {
			f.invalidate(field.Name)
		}
	}
	f.resolveUnsettled()
}

// Close cancels in-flight fetches and waits for them to return.
func (f *Form) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cancel()
	f.wg.Wait()
}

func attributeLeaves(fields []model.Field) []string {
	var leaves []string
	for _, field := range fields {
		if field.EffectiveDataType() == model.DataTypeAttributes {
			leaves = append(leaves, field.Name)
		}
	}
	return leaves
}
