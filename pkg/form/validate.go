package form

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

// Validate checks every visible field and replaces the stored errors with
// the outcome. Hidden and display-only fields are skipped. It reports
// whether the form is valid; repeated calls on unchanged values produce the
// same errors.
func (f *Form) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errors = make(map[string][]ValidationError)
	valid := true
	for _, field := range f.fields {
		if !f.visible[field.Name] || field.IsDisplayOnly() {
			continue
		}
		value, defined := f.values.Get(field.Name)
		if errs := checkField(field, value, defined); len(errs) > 0 {
			f.errors[field.Name] = errs
			valid = false
		}
	}
	return valid
}

// ValidateField checks a candidate value for one field without storing it.
// Visibility is not considered.
func (f *Form) ValidateField(name string, value any) ([]ValidationError, error) {
	f.mu.Lock()
	idx, ok := f.index[name]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	field := f.fields[idx]
	f.mu.Unlock()

	value = applyAutoPrefix(field, value)
	return checkField(field, value, value != nil), nil
}

// Errors returns the field errors from the last Validate or Submit in field
// order.
func (f *Form) Errors() []ValidationError {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ValidationError
	for _, field := range f.fields {
		out = append(out, f.errors[field.Name]...)
	}
	return out
}

// FieldErrors returns the errors of one field.
func (f *Form) FieldErrors(name string) []ValidationError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ValidationError(nil), f.errors[name]...)
}

// FormErrors returns errors a submit reported for no particular field.
func (f *Form) FormErrors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.formErrors...)
}

// checkField runs required, type, regex, bounds and length checks in that
// order. A missing required value stops further checks.
func checkField(field model.Field, value any, defined bool) []ValidationError {
	rules := field.Validate
	message := func(fallback string) string {
		if rules != nil && rules.Message != "" {
			return rules.Message
		}
		return fallback
	}
	newErr := func(code, msg string) ValidationError {
		return ValidationError{Field: field.Name, Code: code, Message: msg}
	}

	if !defined || visibility.IsEmpty(value) {
		if field.IsRequired() {
			return []ValidationError{newErr(CodeRequired, message(field.Title+" is required"))}
		}
		return nil
	}

	coerced, err := Coerce(field, value)
	if err != nil {
		return []ValidationError{newErr(CodeType, fmt.Sprintf("%s must be %s", field.Title, describeType(field)))}
	}
	if visibility.IsEmpty(coerced) {
		if field.IsRequired() {
			return []ValidationError{newErr(CodeRequired, message(field.Title+" is required"))}
		}
		return nil
	}
	if rules == nil {
		return nil
	}

	items := []any{coerced}
	if list, ok := coerced.([]any); ok {
		items = list
	}

	var errs []ValidationError
	if rules.Pattern != nil {
		for _, item := range items {
			if !matchesFromStart(rules.Pattern, stringOf(item)) {
				errs = append(errs, newErr(CodeRegex, message(fmt.Sprintf("%s must match regex: %s", field.Title, rules.Regex))))
				break
			}
		}
	}

	for _, item := range items {
		n, ok := visibility.Number(item)
		if !ok {
			break
		}
		if rules.Min != nil && n < *rules.Min {
			errs = append(errs, newErr(CodeMin, message(fmt.Sprintf("%s must be at least %s", field.Title, formatNumber(*rules.Min)))))
			break
		}
		if rules.Max != nil && n > *rules.Max {
			errs = append(errs, newErr(CodeMax, message(fmt.Sprintf("%s must be at most %s", field.Title, formatNumber(*rules.Max)))))
			break
		}
	}

	length, counted := lengthOf(field, coerced)
	if counted {
		if rules.MinLength != nil && length < *rules.MinLength {
			errs = append(errs, newErr(CodeMinLength, message(fmt.Sprintf("%s must have at least %d characters", field.Title, *rules.MinLength))))
		}
		if rules.MaxLength != nil && length > *rules.MaxLength {
			errs = append(errs, newErr(CodeMaxLength, message(fmt.Sprintf("%s must have at most %d characters", field.Title, *rules.MaxLength))))
		}
	}
	return errs
}

// lengthOf counts list items for multiple fields and runes for strings.
func lengthOf(field model.Field, value any) (int, bool) {
	if list, ok := value.([]any); ok && field.Multiple {
		return len(list), true
	}
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), true
	}
	return 0, false
}

func stringOf(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func describeType(field model.Field) string {
	var kind string
	switch field.EffectiveDataType() {
	case model.DataTypeInt:
		kind = "an integer"
	case model.DataTypeFloat:
		kind = "a number"
	case model.DataTypeBool:
		kind = "true or false"
	case model.DataTypeAttributes:
		kind = "a set of key/value attributes"
	default:
		kind = "text"
	}
	if field.Multiple {
		return "a list of " + kind
	}
	return kind
}

// matchesFromStart reports whether pattern matches a prefix of s. Patterns
// are anchored at the start only; a trailing $ is up to the pattern.
func matchesFromStart(pattern *regexp.Regexp, s string) bool {
	loc := pattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}
