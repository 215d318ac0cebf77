package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenGt
	tokenGte
	tokenLt
	tokenLte
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

type scanner struct {
	input  string
	pos    int
	tokens []token
}

func tokenize(input string) ([]token, error) {
	s := &scanner{input: input}
	for s.pos < len(s.input) {
		if err := s.scan(); err != nil {
			return nil, err
		}
	}
	return s.tokens, nil
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.input) {
		return 0
	}
	return s.input[s.pos]
}

func (s *scanner) emit(kind tokenKind, raw string) {
	s.tokens = append(s.tokens, token{kind: kind, raw: raw})
}

// pair emits double when the next byte is second, single otherwise.
func (s *scanner) pair(second byte, double, single tokenKind) {
	first := s.input[s.pos]
	s.pos++
	if s.peek() == second {
		s.pos++
		s.emit(double, string([]byte{first, second}))
		return
	}
	s.emit(single, string(first))
}

func (s *scanner) scan() error {
	ch := s.peek()
	switch {
	case isSpace(ch):
		s.pos++
	case ch == '(':
		s.pos++
		s.emit(tokenLParen, "(")
	case ch == ')':
		s.pos++
		s.emit(tokenRParen, ")")
	case ch == '!':
		s.pair('=', tokenNeq, tokenNot)
	case ch == '>':
		s.pair('=', tokenGte, tokenGt)
	case ch == '<':
		s.pair('=', tokenLte, tokenLt)
	case ch == '=':
		return s.double('=', tokenEq, "use '=='")
	case ch == '&':
		return s.double('&', tokenAnd, "use '&&'")
	case ch == '|':
		return s.double('|', tokenOr, "use '||'")
	case ch == '"' || ch == '\'':
		return s.scanString(ch)
	default:
		s.scanWord()
	}
	return nil
}

func (s *scanner) double(ch byte, kind tokenKind, hint string) error {
	s.pos++
	if s.peek() != ch {
		return fmt.Errorf("visibility/expr: unexpected '%c'; %s", ch, hint)
	}
	s.pos++
	s.emit(kind, string([]byte{ch, ch}))
	return nil
}

func (s *scanner) scanString(quote byte) error {
	start := s.pos
	s.pos++
	escaped := false
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		s.pos++
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			raw := s.input[start:s.pos]
			if quote == '\'' {
				inner := strings.ReplaceAll(raw[1:len(raw)-1], `\'`, `'`)
				raw = `"` + strings.ReplaceAll(inner, `"`, `\"`) + `"`
			}
			value, err := strconv.Unquote(raw)
			if err != nil {
				return fmt.Errorf("visibility/expr: invalid string literal: %w", err)
			}
			s.emit(tokenString, value)
			return nil
		}
	}
	return errors.New("visibility/expr: unterminated string literal")
}

func (s *scanner) scanWord() {
	start := s.pos
	for s.pos < len(s.input) && !isDelimiter(s.input[s.pos]) {
		s.pos++
	}
	raw := s.input[start:s.pos]
	switch strings.ToLower(raw) {
	case "true", "false":
		s.emit(tokenBool, strings.ToLower(raw))
	case "null", "nil":
		s.emit(tokenNull, "null")
	default:
		if looksLikeNumber(raw) {
			s.emit(tokenNumber, raw)
		} else {
			s.emit(tokenIdentifier, raw)
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || strings.IndexByte("()!=&|<>\"'", c) >= 0
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+'
}
