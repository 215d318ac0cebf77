package visibility

import (
	"reflect"
	"strconv"
	"strings"
)

// Eval evaluates p against the supplied values. A nil predicate always holds,
// so fields without a condition are always visible.
func Eval(p Predicate, values Lookup) bool {
	if p == nil {
		return true
	}
	if values == nil {
		values = Context{}
	}
	return eval(p, values)
}

func eval(p Predicate, values Lookup) bool {
	switch node := p.(type) {
	case Eq:
		v, ok := values.Lookup(node.Param)
		return ok && Equal(v, node.Value)
	case NotEq:
		v, ok := values.Lookup(node.Param)
		return !ok || !Equal(v, node.Value)
	case Empty:
		v, ok := values.Lookup(node.Param)
		return !ok || IsEmpty(v)
	case NotEmpty:
		v, ok := values.Lookup(node.Param)
		return ok && !IsEmpty(v)
	case StartsWith:
		s, ok := lookupString(values, node.Param)
		return ok && strings.HasPrefix(s, node.Prefix)
	case EndsWith:
		s, ok := lookupString(values, node.Param)
		return ok && strings.HasSuffix(s, node.Suffix)
	case In:
		v, ok := values.Lookup(node.Param)
		return ok && memberOf(v, node.Values)
	case NotIn:
		v, ok := values.Lookup(node.Param)
		return !ok || !memberOf(v, node.Values)
	case Contains:
		v, ok := values.Lookup(node.Param)
		return ok && contains(v, node.Value)
	case NotContains:
		v, ok := values.Lookup(node.Param)
		return !ok || !contains(v, node.Value)
	case Compare:
		v, ok := values.Lookup(node.Param)
		if !ok {
			return false
		}
		n, ok := Number(v)
		if !ok {
			return false
		}
		switch node.Op {
		case OpGt:
			return n > node.Value
		case OpGte:
			return n >= node.Value
		case OpLt:
			return n < node.Value
		case OpLte:
			return n <= node.Value
		}
		return false
	case Matches:
		if node.Pattern == nil {
			return false
		}
		s, ok := lookupString(values, node.Param)
		if !ok {
			return false
		}
		return node.Pattern.MatchString(s) != node.Negate
	case Truthy:
		v, ok := values.Lookup(node.Param)
		return ok && truthy(v)
	case And:
		for _, term := range node.Terms {
			if !eval(term, values) {
				return false
			}
		}
		return true
	case Or:
		for _, term := range node.Terms {
			if eval(term, values) {
				return true
			}
		}
		return false
	case Not:
		if node.Inner == nil {
			return false
		}
		return !eval(node.Inner, values)
	}
	return false
}

func lookupString(values Lookup, param string) (string, bool) {
	v, ok := values.Lookup(param)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IsEmpty reports whether v counts as "no value": nil, a blank string, or an
// empty list or map. Booleans and numbers are never empty.
func IsEmpty(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Equal compares two values strictly by type, except that every numeric type
// compares by value. Strings never equal numbers or booleans.
func Equal(a, b any) bool {
	if na, ok := Number(a); ok {
		nb, ok := Number(b)
		return ok && na == nb
	}
	if _, ok := Number(b); ok {
		return false
	}

	la, aIsList := toList(a)
	lb, bIsList := toList(b)
	if aIsList || bIsList {
		if !aIsList || !bIsList || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}

	ma, aIsMap := a.(map[string]any)
	mb, bIsMap := b.(map[string]any)
	if aIsMap || bIsMap {
		if !aIsMap || !bIsMap || len(ma) != len(mb) {
			return false
		}
		for key, va := range ma {
			vb, ok := mb[key]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

// Number converts Go numeric kinds to float64. Numeric strings are not
// numbers.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	switch typed := v.(type) {
	case []any:
		return typed, true
	case []string:
		out := make([]any, len(typed))
		for i, s := range typed {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(typed))
		for i, n := range typed {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(typed))
		for i, n := range typed {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func memberOf(v any, set []any) bool {
	if list, ok := toList(v); ok {
		for _, item := range list {
			if memberOf(item, set) {
				return true
			}
		}
		return false
	}
	for _, candidate := range set {
		if Equal(v, candidate) {
			return true
		}
	}
	return false
}

func contains(v, needle any) bool {
	if s, ok := v.(string); ok {
		sub, ok := needle.(string)
		return ok && strings.Contains(s, sub)
	}
	if list, ok := toList(v); ok {
		for _, item := range list {
			if Equal(item, needle) {
				return true
			}
		}
	}
	return false
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return trimmed != ""
	}
	if n, ok := Number(value); ok {
		return n != 0
	}
	return !IsEmpty(value)
}
