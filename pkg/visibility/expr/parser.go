// Package expr compiles compact visibility rules such as
// `mode == "custom" && nodes >= 2` into visibility predicates.
//
// Supported syntax:
//   - boolean checks: `enabled`, `!enabled`
//   - comparisons: `field == "value"`, `field != false`, `count >= 3`
//   - null checks: `field == null` (empty) and `field != null` (not empty)
//   - composition: `&&`, `||` and parentheses
//
// Identifiers are dot-paths; the `extras.` prefix reads host supplied extras.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formspec/pkg/visibility"
)

// Parse compiles rule into a predicate. A blank rule compiles to nil, which
// always holds.
func Parse(rule string) (visibility.Predicate, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, nil
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	stream := &tokenStream{tokens: tokens}
	node, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("visibility/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return node, nil
}

// MustParse is like Parse but panics on error.
func MustParse(rule string) visibility.Predicate {
	p, err := Parse(rule)
	if err != nil {
		panic(err)
	}
	return p
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseOr(stream *tokenStream) (visibility.Predicate, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	terms := []visibility.Predicate{left}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return visibility.Or{Terms: terms}, nil
}

func parseAnd(stream *tokenStream) (visibility.Predicate, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	terms := []visibility.Predicate{left}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return visibility.And{Terms: terms}, nil
}

func parseUnary(stream *tokenStream) (visibility.Predicate, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return visibility.Not{Inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (visibility.Predicate, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("visibility/expr: missing closing ')'")
		}
		return inner, nil
	}

	ident, ok := stream.consume(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return nil, errors.New("visibility/expr: empty expression")
		}
		return nil, fmt.Errorf("visibility/expr: expected identifier, got %q", stream.tokens[stream.pos].raw)
	}

	op, ok := stream.consumeOperator()
	if !ok {
		return visibility.Truthy{Param: ident.raw}, nil
	}
	lit, err := stream.consumeLiteral()
	if err != nil {
		return nil, err
	}
	return comparison(ident.raw, op, lit)
}

func comparison(param string, op token, lit token) (visibility.Predicate, error) {
	switch op.kind {
	case tokenEq, tokenNeq:
		if lit.kind == tokenNull {
			if op.kind == tokenEq {
				return visibility.Empty{Param: param}, nil
			}
			return visibility.NotEmpty{Param: param}, nil
		}
		value, err := literalValue(lit)
		if err != nil {
			return nil, err
		}
		if op.kind == tokenEq {
			return visibility.Eq{Param: param, Value: value}, nil
		}
		return visibility.NotEq{Param: param, Value: value}, nil
	default:
		if lit.kind != tokenNumber {
			return nil, fmt.Errorf("visibility/expr: operator %q needs a number, got %q", op.raw, lit.raw)
		}
		n, err := strconv.ParseFloat(lit.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("visibility/expr: invalid number literal %q", lit.raw)
		}
		return visibility.Compare{Param: param, Op: compareOps[op.kind], Value: n}, nil
	}
}

var compareOps = map[tokenKind]visibility.CompareOp{
	tokenGt:  visibility.OpGt,
	tokenGte: visibility.OpGte,
	tokenLt:  visibility.OpLt,
	tokenLte: visibility.OpLte,
}

func literalValue(lit token) (any, error) {
	switch lit.kind {
	case tokenString, tokenIdentifier:
		// bare identifiers on the right-hand side read as strings
		return lit.raw, nil
	case tokenBool:
		return lit.raw == "true", nil
	case tokenNumber:
		n, err := strconv.ParseFloat(lit.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("visibility/expr: invalid number literal %q", lit.raw)
		}
		return n, nil
	}
	return nil, fmt.Errorf("visibility/expr: expected literal, got %q", lit.raw)
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}

func (s *tokenStream) consumeOperator() (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	switch s.tokens[s.pos].kind {
	case tokenEq, tokenNeq, tokenGt, tokenGte, tokenLt, tokenLte:
		out := s.tokens[s.pos]
		s.pos++
		return out, true
	}
	return token{}, false
}

func (s *tokenStream) consumeLiteral() (token, error) {
	if s.pos >= len(s.tokens) {
		return token{}, errors.New("visibility/expr: missing literal")
	}
	tok := s.tokens[s.pos]
	switch tok.kind {
	case tokenString, tokenNumber, tokenBool, tokenNull, tokenIdentifier:
		s.pos++
		return tok, nil
	}
	return token{}, fmt.Errorf("visibility/expr: expected literal, got %q", tok.raw)
}
