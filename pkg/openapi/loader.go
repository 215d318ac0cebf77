package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// LoaderOptions configures how Load resolves a location.
type LoaderOptions struct {
	// FileSystem resolves relative paths. Nil reads from the OS.
	FileSystem fs.FS

	// HTTPClient fetches http and https locations. Nil disables remote
	// documents.
	HTTPClient *http.Client
}

// LoaderOption mutates LoaderOptions.
type LoaderOption func(*LoaderOptions)

// WithFileSystem reads documents from files instead of the OS.
func WithFileSystem(files fs.FS) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.FileSystem = files
	}
}

// WithHTTPClient enables remote documents.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.HTTPClient = client
	}
}

// WithHTTPTimeout enables remote documents using a client with timeout.
func WithHTTPTimeout(timeout time.Duration) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
}

// Load reads the raw document at location, which is a path or an http(s)
// URL.
func Load(ctx context.Context, location string, options ...LoaderOption) ([]byte, error) {
	if location == "" {
		return nil, errors.New("openapi: empty location")
	}
	var opts LoaderOptions
	for _, opt := range options {
		opt(&opts)
	}

	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if opts.HTTPClient == nil {
			return nil, fmt.Errorf("openapi: http support disabled for %s", location)
		}
		return loadHTTP(ctx, opts.HTTPClient, location)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.FileSystem != nil {
		data, err := fs.ReadFile(opts.FileSystem, filepath.ToSlash(location))
		if err != nil {
			return nil, fmt.Errorf("openapi: read %s: %w", location, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Clean(location))
	if err != nil {
		return nil, fmt.Errorf("openapi: read %s: %w", location, err)
	}
	return data, nil
}

func loadHTTP(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("openapi: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openapi: fetch %s: %w", location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openapi: fetch %s: unexpected status %s", location, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
