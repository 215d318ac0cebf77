package form

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

// Coerce converts raw into the representation of the field's data type:
// string, int64, float64, bool, map[string]any for attributes, and []any of
// those when the field is multiple. Blank strings clear typed scalars.
func Coerce(field model.Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if field.Multiple {
		items := toItems(raw)
		out := make([]any, 0, len(items))
		for _, item := range items {
			coerced, err := coerceScalar(field.EffectiveDataType(), item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", field.Name, err)
			}
			if coerced != nil {
				out = append(out, coerced)
			}
		}
		return out, nil
	}
	coerced, err := coerceScalar(field.EffectiveDataType(), raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field.Name, err)
	}
	return coerced, nil
}

func coerceScalar(dt model.DataType, raw any) (any, error) {
	if s, ok := raw.(string); ok && dt != model.DataTypeString && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch dt {
	case model.DataTypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case bool:
			return strconv.FormatBool(v), nil
		}
		if n, ok := visibility.Number(raw); ok {
			return strconv.FormatFloat(n, 'f', -1, 64), nil
		}

	case model.DataTypeInt:
		if s, ok := raw.(string); ok {
			trimmed := strings.TrimSpace(s)
			if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				return n, nil
			}
			f, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				break
			}
			raw = f
		}
		if n, ok := visibility.Number(raw); ok {
			if n != math.Trunc(n) || math.IsInf(n, 0) {
				break
			}
			return int64(n), nil
		}

	case model.DataTypeFloat:
		if s, ok := raw.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				break
			}
			return f, nil
		}
		if n, ok := visibility.Number(raw); ok {
			return n, nil
		}

	case model.DataTypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err == nil {
				return b, nil
			}
		}

	case model.DataTypeAttributes:
		switch v := raw.(type) {
		case map[string]any:
			return copyAttributes(v), nil
		case map[string]string:
			out := make(map[string]any, len(v))
			for k, s := range v {
				out[k] = s
			}
			return out, nil
		case string:
			var out map[string]any
			if err := json.Unmarshal([]byte(v), &out); err == nil && out != nil {
				return out, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v (%T) is not %s", errTypeMismatch, raw, raw, dt)
}

func toItems(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		var out []any
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	// a single scalar becomes a one element list
	return []any{raw}
}

func copyAttributes(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// applyAutoPrefix prepends the configured prefix to string values that lack
// it.
func applyAutoPrefix(field model.Field, value any) any {
	if field.Validate == nil || field.Validate.AutoPrefix == "" {
		return value
	}
	prefix := field.Validate.AutoPrefix
	s, ok := value.(string)
	if !ok || s == "" || strings.HasPrefix(s, prefix) {
		return value
	}
	return prefix + s
}
