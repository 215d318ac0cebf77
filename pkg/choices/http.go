package choices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-formspec/pkg/model"
)

// HTTPFetcher resolves choices from a JSON endpoint. POST requests carry the
// Request as body; GET requests encode module, param and refresh as query
// parameters.
type HTTPFetcher struct {
	endpoint    string
	method      string
	client      *http.Client
	headers     http.Header
	resultsPath string
	labelField  string
	valueField  string
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient overrides the client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithMethod selects GET or POST. POST is the default.
func WithMethod(method string) HTTPOption {
	return func(f *HTTPFetcher) {
		if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
			f.method = method
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers.Add(key, value)
	}
}

// WithResultsPath sets the dot-path of the result array in the response.
// The default is "listing".
func WithResultsPath(path string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.resultsPath = path
	}
}

// WithFields maps result objects to choices using the given dot-paths
// instead of the title/value shape.
func WithFields(labelField, valueField string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.labelField = labelField
		f.valueField = valueField
	}
}

// NewHTTP creates an HTTPFetcher for endpoint.
func NewHTTP(endpoint string, options ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		endpoint:    endpoint,
		method:      http.MethodPost,
		client:      http.DefaultClient,
		headers:     make(http.Header),
		resultsPath: "listing",
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// FetchChoices implements Fetcher.
func (f *HTTPFetcher) FetchChoices(ctx context.Context, req Request) (Result, error) {
	httpReq, err := f.newRequest(ctx, req)
	if err != nil {
		return Result{}, err
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("choices: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("choices: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("choices: decode: %w", err)
	}

	items := extractResults(payload, f.resultsPath)
	listing := make([]model.Choice, 0, len(items))
	for _, item := range items {
		choice, ok := f.toChoice(item)
		if ok {
			listing = append(listing, choice)
		}
	}
	return Result{Listing: listing}, nil
}

func (f *HTTPFetcher) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var (
		httpReq *http.Request
		err     error
	)
	if f.method == http.MethodGet {
		reqURL, perr := url.Parse(f.endpoint)
		if perr != nil {
			return nil, fmt.Errorf("choices: parse url: %w", perr)
		}
		q := reqURL.Query()
		q.Set("param", req.Param)
		if req.Module != "" {
			q.Set("module", req.Module)
		}
		if req.Refresh {
			q.Set("refresh", strconv.FormatBool(true))
		}
		reqURL.RawQuery = q.Encode()
		httpReq, err = http.NewRequestWithContext(ctx, f.method, reqURL.String(), nil)
	} else {
		body, merr := json.Marshal(req)
		if merr != nil {
			return nil, fmt.Errorf("choices: encode request: %w", merr)
		}
		httpReq, err = http.NewRequestWithContext(ctx, f.method, f.endpoint, bytes.NewReader(body))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("choices: request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, values := range f.headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	return httpReq, nil
}

func (f *HTTPFetcher) toChoice(item any) (model.Choice, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		if item == nil {
			return model.Choice{}, false
		}
		return model.ScalarChoice(item), true
	}

	if f.labelField != "" || f.valueField != "" {
		value, ok := pickValue(obj, f.valueField)
		if !ok {
			return model.Choice{}, false
		}
		choice := model.Choice{Value: value}
		if label, ok := pickValue(obj, f.labelField); ok {
			choice.Title = fmt.Sprint(label)
		}
		return model.NormalizeChoice(choice), true
	}

	choice := model.Choice{Value: obj["value"]}
	if title, ok := obj["title"].(string); ok {
		choice.Title = title
	}
	if description, ok := obj["description"].(string); ok {
		choice.Description = description
	}
	if disabled, ok := obj["disabled"].(bool); ok {
		choice.Disabled = disabled
	}
	if checked, ok := obj["checked"].(bool); ok {
		choice.Checked = checked
	}
	choice = model.NormalizeChoice(choice)
	if choice.Value == nil {
		return model.Choice{}, false
	}
	return choice, true
}

func extractResults(payload any, path string) []any {
	cur := payload
	if path != "" {
		if _, isList := cur.([]any); !isList {
			for _, segment := range strings.Split(path, ".") {
				node, ok := cur.(map[string]any)
				if !ok {
					return nil
				}
				cur = node[segment]
			}
		}
	}
	items, _ := cur.([]any)
	return items
}

func pickValue(m map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	cur := any(m)
	for _, segment := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = node[segment]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}
