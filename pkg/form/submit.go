package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formspec/pkg/values"
)

// SubmitFunc receives the exported values of a valid form.
type SubmitFunc func(ctx context.Context, payload map[string]any) error

// Export returns the nested object for the current values. Visible fields
// and keys that match no field are included; hidden fields, display-only
// fields and fields with export disabled are left out.
func (f *Form) Export() (map[string]any, error) {
	f.mu.Lock()
	flat := make(values.Map, len(f.values))
	for path, value := range f.values {
		idx, known := f.index[path]
		if known {
			field := f.fields[idx]
			if field.IsDisplayOnly() || !field.IsExport() {
				continue
			}
			if !f.visible[path] && !f.opts.exportHidden {
				continue
			}
		}
		flat[path] = value
	}
	f.mu.Unlock()
	return values.Expand(flat)
}

// Submit validates the form and hands the exported values to submit. A
// *SubmitError returned by submit is mapped onto field and form errors; any
// other error becomes a form error.
func (f *Form) Submit(ctx context.Context, submit SubmitFunc) error {
	if !f.Validate() {
		return fmt.Errorf("%w: %d error(s)", ErrValidation, len(f.Errors()))
	}
	payload, err := f.Export()
	if err != nil {
		return err
	}

	err = submit(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.formErrors = nil
	if err == nil {
		return nil
	}

	var rejected *SubmitError
	if !errors.As(err, &rejected) {
		f.formErrors = normalizeMessages([]string{err.Error()})
		return err
	}

	names := make(map[string]struct{}, len(f.fields))
	for _, field := range f.fields {
		names[field.Name] = struct{}{}
	}
	mapping := mapErrorPayload(names, rejected.Fields)
	for name, messages := range mapping.Fields {
		for _, message := range messages {
			f.errors[name] = append(f.errors[name], ValidationError{Field: name, Code: CodeServer, Message: message})
		}
	}
	form := mapping.Form
	if rejected.Message != "" {
		form = append([]string{rejected.Message}, form...)
	}
	f.formErrors = normalizeMessages(form)
	return err
}

type errorMapping struct {
	Fields map[string][]string
	Form   []string
}

// mapErrorPayload resolves error paths (dotted, JSON pointer or bracketed)
// to the longest matching field name. Unknown paths become form errors so
// messages are never lost.
func mapErrorPayload(fields map[string]struct{}, payload map[string][]string) errorMapping {
	mapping := errorMapping{Fields: make(map[string][]string)}
	for rawPath, messages := range payload {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			continue
		}
		mapped, ok := mapErrorPath(rawPath, fields)
		if !ok {
			mapping.Form = append(mapping.Form, normalized...)
			continue
		}
		mapping.Fields[mapped] = append(mapping.Fields[mapped], normalized...)
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func mapErrorPath(raw string, fields map[string]struct{}) (string, bool) {
	if isFormLevelKey(raw) {
		return "", false
	}
	segments := parsePathSegments(raw)
	if len(segments) == 0 {
		return "", false
	}

	best := ""
	for _, variant := range [][]string{
		segments,
		dropWrapperSegments(segments),
		stripNumericSegments(segments),
		stripNumericSegments(dropWrapperSegments(segments)),
	} {
		if path := longestMatchingPath(variant, fields); depth(path) > depth(best) {
			best = path
		}
	}
	return best, best != ""
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	clean = strings.TrimLeft(clean, "#$/.")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	var out []string
	for _, part := range strings.FieldsFunc(clean, func(r rune) bool { return r == '.' || r == '/' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func dropWrapperSegments(segments []string) []string {
	out := segments
	for len(out) > 0 {
		switch strings.ToLower(out[0]) {
		case "body", "request", "payload", "data", "params", "values":
			out = out[1:]
			continue
		}
		break
	}
	return out
}

func stripNumericSegments(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func longestMatchingPath(segments []string, fields map[string]struct{}) string {
	for end := len(segments); end > 0; end-- {
		candidate := strings.Join(segments[:end], ".")
		if _, ok := fields[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, ".") + 1
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "__all__", "non_field_errors", "non-field-errors":
		return true
	}
	return false
}
