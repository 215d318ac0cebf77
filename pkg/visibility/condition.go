package visibility

import (
	"errors"
	"fmt"
	"regexp"
)

// Condition is the declarative form of a predicate as it appears in spec
// documents. A leaf names a Param and one or more operators; when several
// operators are set the leaf holds if any of them does. Composite nodes use
// And, Or, or Not and leave Param empty.
type Condition struct {
	Param       string      `json:"param,omitempty" yaml:"param,omitempty"`
	Eq          any         `json:"eq,omitempty" yaml:"eq,omitempty"`
	NotEq       any         `json:"not_eq,omitempty" yaml:"not_eq,omitempty"`
	In          []any       `json:"in,omitempty" yaml:"in,omitempty"`
	NotIn       []any       `json:"not_in,omitempty" yaml:"not_in,omitempty"`
	Gt          any         `json:"gt,omitempty" yaml:"gt,omitempty"`
	Gte         any         `json:"gte,omitempty" yaml:"gte,omitempty"`
	Lt          any         `json:"lt,omitempty" yaml:"lt,omitempty"`
	Lte         any         `json:"lte,omitempty" yaml:"lte,omitempty"`
	Regex       string      `json:"regex,omitempty" yaml:"regex,omitempty"`
	NotRegex    string      `json:"not_regex,omitempty" yaml:"not_regex,omitempty"`
	StartsWith  string      `json:"starts_with,omitempty" yaml:"starts_with,omitempty"`
	EndsWith    string      `json:"ends_with,omitempty" yaml:"ends_with,omitempty"`
	Empty       bool        `json:"empty,omitempty" yaml:"empty,omitempty"`
	NotEmpty    bool        `json:"not_empty,omitempty" yaml:"not_empty,omitempty"`
	Contains    any         `json:"contains,omitempty" yaml:"contains,omitempty"`
	NotContains any         `json:"not_contains,omitempty" yaml:"not_contains,omitempty"`
	And         []Condition `json:"and,omitempty" yaml:"and,omitempty"`
	Or          []Condition `json:"or,omitempty" yaml:"or,omitempty"`
	Not         *Condition  `json:"not,omitempty" yaml:"not,omitempty"`
}

var (
	// ErrNoOperator marks a leaf condition that names a param but no operator.
	ErrNoOperator = errors.New("visibility: condition has no operator")
	// ErrMixedCondition marks a condition combining a param with and/or/not.
	ErrMixedCondition = errors.New("visibility: condition mixes param with and/or/not")
)

// IsZero reports whether the condition is entirely unset.
func (c Condition) IsZero() bool {
	return c.Param == "" && len(c.And) == 0 && len(c.Or) == 0 && c.Not == nil && !c.hasOperator()
}

func (c Condition) hasOperator() bool {
	return c.Eq != nil || c.NotEq != nil || c.In != nil || c.NotIn != nil ||
		c.Gt != nil || c.Gte != nil || c.Lt != nil || c.Lte != nil ||
		c.Regex != "" || c.NotRegex != "" || c.StartsWith != "" || c.EndsWith != "" ||
		c.Empty || c.NotEmpty || c.Contains != nil || c.NotContains != nil
}

// Compile converts a Condition into a Predicate. A zero condition compiles to
// nil, which always holds.
func Compile(c *Condition) (Predicate, error) {
	if c == nil || c.IsZero() {
		return nil, nil
	}
	if c.Param != "" {
		if len(c.And) > 0 || len(c.Or) > 0 || c.Not != nil {
			return nil, fmt.Errorf("%w (param %q)", ErrMixedCondition, c.Param)
		}
		return compileLeaf(*c)
	}
	if c.hasOperator() {
		return nil, errors.New("visibility: operator set without a param")
	}

	var terms []Predicate
	if len(c.And) > 0 {
		and, err := compileTerms(c.And)
		if err != nil {
			return nil, err
		}
		terms = append(terms, And{Terms: and})
	}
	if len(c.Or) > 0 {
		or, err := compileTerms(c.Or)
		if err != nil {
			return nil, err
		}
		terms = append(terms, Or{Terms: or})
	}
	if c.Not != nil {
		inner, err := Compile(c.Not)
		if err != nil {
			return nil, err
		}
		if inner != nil {
			terms = append(terms, Not{Inner: inner})
		}
	}
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return terms[0], nil
	}
	return And{Terms: terms}, nil
}

func compileTerms(conds []Condition) ([]Predicate, error) {
	out := make([]Predicate, 0, len(conds))
	for i := range conds {
		p, err := Compile(&conds[i])
		if err != nil {
			return nil, err
		}
		if p == nil {
			// an empty term always holds
			p = And{}
		}
		out = append(out, p)
	}
	return out, nil
}

func compileLeaf(c Condition) (Predicate, error) {
	param := c.Param
	var ops []Predicate

	if c.Empty {
		ops = append(ops, Empty{Param: param})
	}
	if c.NotEmpty {
		ops = append(ops, NotEmpty{Param: param})
	}
	if c.Eq != nil {
		ops = append(ops, Eq{Param: param, Value: c.Eq})
	}
	if c.NotEq != nil {
		ops = append(ops, NotEq{Param: param, Value: c.NotEq})
	}
	if c.In != nil {
		ops = append(ops, In{Param: param, Values: c.In})
	}
	if c.NotIn != nil {
		ops = append(ops, NotIn{Param: param, Values: c.NotIn})
	}
	for _, bound := range []struct {
		op    CompareOp
		value any
	}{{OpGt, c.Gt}, {OpGte, c.Gte}, {OpLt, c.Lt}, {OpLte, c.Lte}} {
		if bound.value == nil {
			continue
		}
		n, ok := Number(bound.value)
		if !ok {
			return nil, fmt.Errorf("visibility: %s on %q must be a number, got %T", bound.op, param, bound.value)
		}
		ops = append(ops, Compare{Param: param, Op: bound.op, Value: n})
	}
	if c.Regex != "" {
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return nil, fmt.Errorf("visibility: regex on %q: %w", param, err)
		}
		ops = append(ops, Matches{Param: param, Pattern: re})
	}
	if c.NotRegex != "" {
		re, err := regexp.Compile(c.NotRegex)
		if err != nil {
			return nil, fmt.Errorf("visibility: not_regex on %q: %w", param, err)
		}
		ops = append(ops, Matches{Param: param, Pattern: re, Negate: true})
	}
	if c.StartsWith != "" {
		ops = append(ops, StartsWith{Param: param, Prefix: c.StartsWith})
	}
	if c.EndsWith != "" {
		ops = append(ops, EndsWith{Param: param, Suffix: c.EndsWith})
	}
	if c.Contains != nil {
		ops = append(ops, Contains{Param: param, Value: c.Contains})
	}
	if c.NotContains != nil {
		ops = append(ops, NotContains{Param: param, Value: c.NotContains})
	}

	switch len(ops) {
	case 0:
		return nil, fmt.Errorf("%w (param %q)", ErrNoOperator, param)
	case 1:
		return ops[0], nil
	}
	return Or{Terms: ops}, nil
}
