// Package choices defines how dynamic choice lists are fetched for fields
// whose options depend on external state.
package choices

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-formspec/pkg/model"
)

// ErrNoFetcher is returned when no fetcher is registered for a param.
var ErrNoFetcher = errors.New("choices: no fetcher for param")

// Request asks for the choices of one param. Values is a snapshot of the form
// values at the time the fetch started. Refresh asks the fetcher to bypass
// any cache it keeps.
type Request struct {
	Module  string         `json:"module,omitempty"`
	Param   string         `json:"param"`
	Refresh bool           `json:"refresh,omitempty"`
	Values  map[string]any `json:"values,omitempty"`
}

// Result carries the fetched choices.
type Result struct {
	Listing []model.Choice `json:"listing"`
}

// Fetcher resolves choice lists. Implementations must honour ctx
// cancellation; a superseded fetch is cancelled by the form.
type Fetcher interface {
	FetchChoices(ctx context.Context, req Request) (Result, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (Result, error)

// FetchChoices delegates to the underlying function.
func (fn FetcherFunc) FetchChoices(ctx context.Context, req Request) (Result, error) {
	return fn(ctx, req)
}

// Static serves fixed listings keyed by param name.
type Static map[string][]model.Choice

// FetchChoices returns a copy of the listing for req.Param.
func (s Static) FetchChoices(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	listing, ok := s[req.Param]
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrNoFetcher, req.Param)
	}
	return Result{Listing: append([]model.Choice(nil), listing...)}, nil
}

// Mux routes requests to per-param fetchers, falling back to a default.
type Mux struct {
	mu       sync.RWMutex
	routes   map[string]Fetcher
	fallback Fetcher
}

// NewMux creates a Mux. fallback may be nil.
func NewMux(fallback Fetcher) *Mux {
	return &Mux{routes: make(map[string]Fetcher), fallback: fallback}
}

// Handle registers fetcher for param, replacing any earlier registration.
func (m *Mux) Handle(param string, fetcher Fetcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[param] = fetcher
}

// HandleFunc registers a function for param.
func (m *Mux) HandleFunc(param string, fn func(ctx context.Context, req Request) (Result, error)) {
	m.Handle(param, FetcherFunc(fn))
}

// FetchChoices implements Fetcher.
func (m *Mux) FetchChoices(ctx context.Context, req Request) (Result, error) {
	m.mu.RLock()
	fetcher, ok := m.routes[req.Param]
	if !ok {
		fetcher = m.fallback
	}
	m.mu.RUnlock()
	if fetcher == nil {
		return Result{}, fmt.Errorf("%w %q", ErrNoFetcher, req.Param)
	}
	return fetcher.FetchChoices(ctx, req)
}
