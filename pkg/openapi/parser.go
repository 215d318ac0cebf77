package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formspec/pkg/model"
)

// ErrOperationNotFound is returned by Import when no operation has the
// requested ID.
var ErrOperationNotFound = errors.New("openapi: operation not found")

// Operation is an operation of a parsed document.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
	// HasBody reports whether the operation declares a request body schema.
	HasBody bool

	op *openapi3.Operation
}

var methods = []string{"GET", "PUT", "POST", "DELETE", "PATCH", "HEAD", "OPTIONS", "TRACE"}

// Operations lists the operations of raw sorted by path and method.
// Operations without an operationId are named "<method>:<path>".
func Operations(ctx context.Context, raw []byte) ([]Operation, error) {
	spec, err := parse(ctx, raw)
	if err != nil {
		return nil, err
	}

	var out []Operation
	for path, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for _, method := range methods {
			op := item.GetOperation(method)
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			out = append(out, Operation{
				ID:      id,
				Method:  method,
				Path:    path,
				Summary: op.Summary,
				HasBody: requestSchema(op) != nil,
				op:      op,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out, nil
}

// Import converts the request body of operationID into params.
func Import(ctx context.Context, raw []byte, operationID string) ([]model.Field, error) {
	ops, err := Operations(ctx, raw)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op.ID != operationID {
			continue
		}
		schema := requestSchema(op.op)
		if schema == nil {
			return nil, fmt.Errorf("openapi: operation %q has no request body schema", operationID)
		}
		return fieldsFromSchema(schema)
	}
	return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
}

func parse(ctx context.Context, raw []byte) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if spec.Paths == nil || spec.Paths.Len() == 0 {
		return nil, errors.New("openapi: document does not contain any paths")
	}
	if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("openapi: validate: %w", err)
	}
	return spec, nil
}

// requestSchema prefers a JSON body, then form encodings, then whatever
// media type is declared.
func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if mt := content[key]; mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}
