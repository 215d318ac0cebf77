package form

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formspec/pkg/choices"
	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/values"
)

// choiceState tracks the dynamic choices of one field. seq increases with
// every fetch; a result is applied only if its seq is still current, so the
// last requested fetch wins regardless of completion order.
type choiceState struct {
	seq      uint64
	pending  bool
	resolved bool
	listing  []model.Choice
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
	fetches  int
}

// ChoiceList is a snapshot of a field's choices.
type ChoiceList struct {
	Listing    []model.Choice
	Pending    bool
	Resolved   bool
	Err        error
	EmptyLabel string
}

func (f *Form) choiceState(name string) *choiceState {
	st, ok := f.choices[name]
	if !ok {
		st = &choiceState{}
		f.choices[name] = st
	}
	return st
}

// startFetch supersedes any in-flight fetch for name and starts a new one.
// Must hold f.mu.
func (f *Form) startFetch(name string, refresh bool) {
	st := f.choiceState(name)
	if st.cancel != nil {
		st.cancel()
	}
	st.seq++
	st.fetches++
	if !st.pending {
		st.pending = true
		st.done = make(chan struct{})
	}

	ctx, cancel := context.WithCancel(f.ctx)
	st.cancel = cancel
	req := choices.Request{
		Module:  f.opts.module,
		Param:   name,
		Refresh: refresh,
		Values:  f.values.Clone(),
	}

	f.wg.Add(1)
	go f.fetch(ctx, st.seq, req)
}

func (f *Form) fetch(ctx context.Context, seq uint64, req choices.Request) {
	defer f.wg.Done()
	res, err := f.callFetcher(ctx, req)

	f.mu.Lock()
	st := f.choices[req.Param]
	if st == nil || st.seq != seq {
		f.mu.Unlock()
		f.opts.logger.Debug("form: discarding superseded choices", "param", req.Param, "seq", seq)
		return
	}
	st.cancel()
	st.cancel = nil
	st.pending = false
	st.resolved = true
	if err != nil {
		st.listing = nil
		st.err = err
	} else {
		st.listing = normalizeListing(res.Listing)
		st.err = nil
	}
	close(st.done)

	var (
		change  Change
		changed bool
	)
	if err == nil {
		change, changed = f.applyPendingDefault(req.Param, st.listing)
	}
	count := len(st.listing)
	closed := f.closed
	onError := f.opts.onChoicesError
	onChange := f.opts.onStateChange
	f.mu.Unlock()

	if err != nil {
		if closed {
			return
		}
		f.opts.logger.Warn("form: choices fetch failed", "param", req.Param, "error", err)
		if onError != nil {
			onError(req.Param, err)
		}
		return
	}
	f.opts.logger.Debug("form: choices resolved", "param", req.Param, "count", count)
	if changed && onChange != nil {
		onChange(change)
	}
}

// callFetcher shields the form from a missing or panicking fetcher.
func (f *Form) callFetcher(ctx context.Context, req choices.Request) (res choices.Result, err error) {
	if f.opts.fetcher == nil {
		return choices.Result{}, fmt.Errorf("%w %q", choices.ErrNoFetcher, req.Param)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("form: choices fetcher panicked: %v", r)
		}
	}()
	return f.opts.fetcher.FetchChoices(ctx, req)
}

// applyPendingDefault resolves a $first/$all default once the field's
// choices arrive, unless a value was set meanwhile. Must hold f.mu.
func (f *Form) applyPendingDefault(name string, listing []model.Choice) (Change, bool) {
	token, ok := f.pendingDefaults[name]
	if !ok {
		return Change{}, false
	}
	delete(f.pendingDefaults, name)
	if f.values.Has(name) {
		return Change{}, false
	}
	field := f.fields[f.index[name]]
	value, ok := defaultFromChoices(field, token, listing)
	if !ok {
		return Change{}, false
	}
	f.values.Set(name, value)
	change := f.propagate(field, true)
	change.Value = values.DeepCopy(value)
	return change, true
}

// invalidateDependents drops the cached choices of every dynamic field that
// depends on name. Visible dependents refetch at once; hidden ones refetch
// when shown. Must hold f.mu.
func (f *Form) invalidateDependents(name string) []string {
	var refreshed []string
	for _, dep := range f.dependents[name] {
		if dep == name {
			continue
		}
		f.invalidate(dep)
		if f.visible[dep] && !f.opts.lazyChoices {
			f.startFetch(dep, false)
		}
		refreshed = append(refreshed, dep)
	}
	return refreshed
}

// invalidate forgets cached choices and settles any in-flight fetch as
// unresolved. Must hold f.mu.
func (f *Form) invalidate(name string) {
	st := f.choiceState(name)
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.seq++
	st.resolved = false
	st.listing = nil
	st.err = nil
	if st.pending {
		st.pending = false
		close(st.done)
	}
}

// resolveShown starts fetches for newly shown dynamic fields without cached
// choices and returns their names. Lazy forms only report them. Must hold
// f.mu.
func (f *Form) resolveShown(shown []string) []string {
	var started []string
	for _, name := range shown {
		if f.needsFetch(name) {
			if !f.opts.lazyChoices {
				f.startFetch(name, false)
			}
			started = append(started, name)
		}
	}
	return started
}

// resolveUnsettled starts fetches for every visible dynamic field without
// cached choices. Must hold f.mu.
func (f *Form) resolveUnsettled() {
	if f.opts.lazyChoices {
		return
	}
	for _, field := range f.fields {
		if f.visible[field.Name] && f.needsFetch(field.Name) {
			f.startFetch(field.Name, false)
		}
	}
}

func (f *Form) needsFetch(name string) bool {
	idx, ok := f.index[name]
	if !ok || !f.fields[idx].DynamicChoices {
		return false
	}
	st := f.choiceState(name)
	return !st.pending && !st.resolved
}

// Choices returns the current choices of a field without blocking. Static
// choices are always resolved.
func (f *Form) Choices(name string) (ChoiceList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.index[name]
	if !ok {
		return ChoiceList{}, fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	field := f.fields[idx]
	list := ChoiceList{EmptyLabel: field.ChoicesEmptyLabel}
	if !field.DynamicChoices {
		list.Listing = append([]model.Choice(nil), field.Choices...)
		list.Resolved = true
		return list, nil
	}
	st := f.choiceState(name)
	list.Listing = append([]model.Choice(nil), st.listing...)
	list.Pending = st.pending
	list.Resolved = st.resolved
	list.Err = st.err
	return list, nil
}

// ResolveChoices returns the choices of a field, fetching them if they are
// neither cached nor in flight and waiting for the latest fetch to settle.
// A failed fetch yields an empty listing and its error.
func (f *Form) ResolveChoices(ctx context.Context, name string) ([]model.Choice, error) {
	return f.resolve(ctx, name, false)
}

// RefreshChoices discards cached choices and fetches them again with the
// refresh flag set.
func (f *Form) RefreshChoices(ctx context.Context, name string) ([]model.Choice, error) {
	return f.resolve(ctx, name, true)
}

func (f *Form) resolve(ctx context.Context, name string, refresh bool) ([]model.Choice, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	idx, ok := f.index[name]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	field := f.fields[idx]
	if !field.DynamicChoices {
		f.mu.Unlock()
		if len(field.Choices) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrNoChoices, name)
		}
		return append([]model.Choice(nil), field.Choices...), nil
	}
	if refresh || f.needsFetch(name) {
		f.startFetch(name, refresh)
	}
	f.mu.Unlock()
	return f.waitChoices(ctx, name)
}

func (f *Form) waitChoices(ctx context.Context, name string) ([]model.Choice, error) {
	for {
		f.mu.Lock()
		st := f.choiceState(name)
		if !st.pending {
			listing := append([]model.Choice(nil), st.listing...)
			err := st.err
			f.mu.Unlock()
			return listing, err
		}
		done := st.done
		f.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Wait blocks until every in-flight fetch has returned.
func (f *Form) Wait() {
	f.wg.Wait()
}

// FetchCount returns how many fetches were started for a field.
func (f *Form) FetchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.choices[name]; ok {
		return st.fetches
	}
	return 0
}

func normalizeListing(listing []model.Choice) []model.Choice {
	out := make([]model.Choice, 0, len(listing))
	for _, choice := range listing {
		out = append(out, model.NormalizeChoice(choice))
	}
	return out
}

func isChoiceToken(s string) bool {
	return s == model.DefaultFirstChoice || s == model.DefaultAllChoices
}

// defaultFromChoices resolves $first to the first enabled choice and $all to
// every enabled choice. Single value fields given $all take the first.
func defaultFromChoices(field model.Field, token string, listing []model.Choice) (any, bool) {
	var picked []any
	for _, choice := range listing {
		if choice.Disabled || choice.Value == nil {
			continue
		}
		value, err := Coerce(model.Field{Name: field.Name, DataType: field.DataType}, choice.Value)
		if err != nil {
			continue
		}
		picked = append(picked, value)
		if token == model.DefaultFirstChoice {
			break
		}
	}
	if len(picked) == 0 {
		return nil, false
	}
	if field.Multiple {
		return picked, true
	}
	return picked[0], true
}
