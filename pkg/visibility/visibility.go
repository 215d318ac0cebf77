// Package visibility models the conditions that decide whether a field is
// shown. Conditions are compiled once into a closed Predicate tree; evaluating
// a predicate is pure and only reads values through a Lookup.
package visibility

import (
	"regexp"
	"sort"
)

// Predicate is a node of a compiled condition tree. The set of implementations
// is closed: leaves compare a single parameter, And/Or/Not combine nodes.
type Predicate interface {
	isPredicate()
}

// Eq holds when the parameter is defined and strictly equal to Value.
// Numbers compare by value regardless of their Go type.
type Eq struct {
	Param string
	Value any
}

// NotEq holds when Eq would not.
type NotEq struct {
	Param string
	Value any
}

// Empty holds when the parameter is undefined, nil, an empty string, or an
// empty list or map.
type Empty struct {
	Param string
}

// NotEmpty holds when Empty would not.
type NotEmpty struct {
	Param string
}

// StartsWith holds when the parameter is a string with the given prefix.
type StartsWith struct {
	Param  string
	Prefix string
}

// EndsWith holds when the parameter is a string with the given suffix.
type EndsWith struct {
	Param  string
	Suffix string
}

// In holds when the parameter equals one of Values. A list parameter holds
// when any of its elements does.
type In struct {
	Param  string
	Values []any
}

// NotIn holds when In would not.
type NotIn struct {
	Param  string
	Values []any
}

// Contains holds when a string parameter contains the substring Value, or a
// list parameter contains an element equal to Value.
type Contains struct {
	Param string
	Value any
}

// NotContains holds when Contains would not.
type NotContains struct {
	Param string
	Value any
}

// CompareOp enumerates the ordered numeric comparisons.
type CompareOp string

const (
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
)

// Compare holds when the parameter is numeric and satisfies Op against Value.
type Compare struct {
	Param string
	Op    CompareOp
	Value float64
}

// Matches holds when the parameter is a string matched by Pattern. Negate
// flips the outcome for defined string values.
type Matches struct {
	Param   string
	Pattern *regexp.Regexp
	Negate  bool
}

// Truthy holds when the parameter is defined and not a zero-like value.
type Truthy struct {
	Param string
}

// And holds when every term holds. An empty And holds.
type And struct {
	Terms []Predicate
}

// Or holds when at least one term holds. An empty Or does not hold.
type Or struct {
	Terms []Predicate
}

// Not inverts Inner.
type Not struct {
	Inner Predicate
}

func (Eq) isPredicate()          {}
func (NotEq) isPredicate()       {}
func (Empty) isPredicate()       {}
func (NotEmpty) isPredicate()    {}
func (StartsWith) isPredicate()  {}
func (EndsWith) isPredicate()    {}
func (In) isPredicate()          {}
func (NotIn) isPredicate()       {}
func (Contains) isPredicate()    {}
func (NotContains) isPredicate() {}
func (Compare) isPredicate()     {}
func (Matches) isPredicate()     {}
func (Truthy) isPredicate()      {}
func (And) isPredicate()         {}
func (Or) isPredicate()          {}
func (Not) isPredicate()         {}

// Params returns the sorted, de-duplicated parameter names a predicate reads.
// A nil predicate reads nothing.
func Params(p Predicate) []string {
	seen := make(map[string]struct{})
	collectParams(p, seen)
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectParams(p Predicate, seen map[string]struct{}) {
	add := func(name string) {
		if name != "" {
			seen[name] = struct{}{}
		}
	}
	switch node := p.(type) {
	case nil:
	case Eq:
		add(node.Param)
	case NotEq:
		add(node.Param)
	case Empty:
		add(node.Param)
	case NotEmpty:
		add(node.Param)
	case StartsWith:
		add(node.Param)
	case EndsWith:
		add(node.Param)
	case In:
		add(node.Param)
	case NotIn:
		add(node.Param)
	case Contains:
		add(node.Param)
	case NotContains:
		add(node.Param)
	case Compare:
		add(node.Param)
	case Matches:
		add(node.Param)
	case Truthy:
		add(node.Param)
	case And:
		for _, term := range node.Terms {
			collectParams(term, seen)
		}
	case Or:
		for _, term := range node.Terms {
			collectParams(term, seen)
		}
	case Not:
		collectParams(node.Inner, seen)
	}
}
