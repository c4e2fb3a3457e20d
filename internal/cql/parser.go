// Package cql parses supplementary content query text.
//
// The syntax is a Lucene-like field query language:
//
//	+Type:Document -Name:"Draft copy" Age:>=18 Title:Rep*
//	(Index:[1 TO 10} || IsHidden:false) .TOP:20 .SORT:Name
//
// Juxtaposed clauses are ANDed. A leading '-', '!' or NOT negates a clause;
// a leading '+' is accepted and ignored. Dot-prefixed directives may appear
// anywhere and set query directives instead of predicates. Every value is
// normalized through the field's converter, so text and compiled
// expressions produce identical leaves.
package cql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/predicate"
	"github.com/roach88/contentq/internal/query"
	"github.com/roach88/contentq/internal/schema"
)

// ParseError reports malformed query text.
type ParseError struct {
	Pos int
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("offset %d: %s: %v", e.Pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("offset %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser parses query text against a field resolver.
// It implements query.TextParser and is safe for concurrent use.
type Parser struct {
	fields schema.FieldResolver
}

var _ query.TextParser = (*Parser)(nil)

// NewParser creates a Parser.
func NewParser(fields schema.FieldResolver) *Parser {
	return &Parser{fields: fields}
}

// Parse parses text into a predicate and the directives it sets.
// The predicate is nil when the text holds only directives.
func (p *Parser) Parse(text string) (predicate.Predicate, query.Overrides, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, query.Overrides{}, err
	}

	st := &state{fields: p.fields}
	toks, err = st.extractDirectives(toks)
	if err != nil {
		return nil, query.Overrides{}, err
	}
	st.toks = toks

	if st.current().Type == TokenEOF {
		return nil, st.overrides, nil
	}

	pred, err := st.parseOr()
	if err != nil {
		return nil, query.Overrides{}, err
	}
	if tok := st.current(); tok.Type != TokenEOF {
		return nil, query.Overrides{}, st.errorf(tok, "unexpected %s", describe(tok))
	}
	return pred, st.overrides, nil
}

// state is the per-call parser state.
type state struct {
	fields    schema.FieldResolver
	toks      []Token
	pos       int
	overrides query.Overrides
}

func (s *state) current() Token {
	return s.toks[s.pos]
}

func (s *state) advance() {
	if s.pos < len(s.toks)-1 {
		s.pos++
	}
}

func (s *state) expect(t TokenType) (Token, error) {
	tok := s.current()
	if tok.Type != t {
		return tok, s.errorf(tok, "expected %s but got %s", t, describe(tok))
	}
	s.advance()
	return tok, nil
}

func (s *state) errorf(tok Token, format string, args ...any) error {
	return &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

// extractDirectives applies every directive in toks and returns the
// remaining predicate tokens.
func (s *state) extractDirectives(toks []Token) ([]Token, error) {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Type != TokenDirective {
			out = append(out, tok)
			continue
		}

		if tok.Value == "COUNTONLY" {
			t := true
			s.overrides.CountOnly = &t
			continue
		}

		if i+2 >= len(toks) || toks[i+1].Type != TokenColon ||
			(toks[i+2].Type != TokenWord && toks[i+2].Type != TokenString) {
			return nil, s.errorf(tok, "directive .%s needs a value, as in .%s:value", tok.Value, tok.Value)
		}
		arg := toks[i+2]
		i += 2

		switch tok.Value {
		case "TOP", "SKIP":
			n, err := strconv.Atoi(arg.Value)
			if err != nil || n < 0 {
				return nil, s.errorf(arg, "directive .%s needs a non-negative integer, got %q", tok.Value, arg.Value)
			}
			if tok.Value == "TOP" {
				s.overrides.Top = &n
			} else {
				s.overrides.Skip = &n
			}
		case "SORT", "REVERSESORT":
			if _, _, err := s.fields.Resolve(arg.Value); err != nil {
				return nil, &ParseError{Pos: arg.Pos, Msg: fmt.Sprintf("sort field %q", arg.Value), Err: err}
			}
			s.overrides.Sort = append(s.overrides.Sort, compiler.SortField{
				Field:   arg.Value,
				Reverse: tok.Value == "REVERSESORT",
			})
		default:
			return nil, s.errorf(tok, "unknown directive .%s", tok.Value)
		}
	}
	return out, nil
}

// parseOr handles OR expressions (lowest precedence).
func (s *state) parseOr() (predicate.Predicate, error) {
	first, err := s.parseAnd()
	if err != nil {
		return nil, err
	}

	preds := []predicate.Predicate{first}
	for s.current().Type == TokenOr {
		s.advance()
		next, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		preds = append(preds, next)
	}

	if len(preds) == 1 {
		return first, nil
	}
	return predicate.Or(preds...), nil
}

// parseAnd handles explicit AND and juxtaposition.
func (s *state) parseAnd() (predicate.Predicate, error) {
	first, err := s.parseUnary()
	if err != nil {
		return nil, err
	}

	preds := []predicate.Predicate{first}
	for {
		switch s.current().Type {
		case TokenAnd:
			s.advance()
		case TokenWord, TokenLParen, TokenNot, TokenPlus, TokenMinus:
		default:
			if len(preds) == 1 {
				return first, nil
			}
			return predicate.And(preds...), nil
		}

		next, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		preds = append(preds, next)
	}
}

// parseUnary handles the prefix operators. Negation is right-associative.
func (s *state) parseUnary() (predicate.Predicate, error) {
	switch s.current().Type {
	case TokenNot, TokenMinus:
		s.advance()
		operand, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		return predicate.Not(operand), nil
	case TokenPlus:
		s.advance()
		return s.parseUnary()
	}
	return s.parsePrimary()
}

// parsePrimary handles parenthesized groups and field clauses.
func (s *state) parsePrimary() (predicate.Predicate, error) {
	tok := s.current()
	switch tok.Type {
	case TokenLParen:
		s.advance()
		inner, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := s.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil

	case TokenWord:
		s.advance()
		if s.current().Type != TokenColon {
			return nil, s.errorf(s.current(), "expected ':' after field %q", tok.Value)
		}
		s.advance()
		return s.parseValue(tok)

	default:
		return nil, s.errorf(tok, "expected a field clause or '(' but got %s", describe(tok))
	}
}

// parseValue parses the right side of Field:... for the given field token.
func (s *state) parseValue(field Token) (predicate.Predicate, error) {
	dt, conv, err := s.fields.Resolve(field.Value)
	if err != nil {
		return nil, &ParseError{Pos: field.Pos, Msg: fmt.Sprintf("field %q", field.Value), Err: err}
	}
	f := fieldInfo{name: field.Value, dt: dt, conv: conv}

	switch tok := s.current(); tok.Type {
	case TokenGt, TokenGe, TokenLt, TokenLe:
		s.advance()
		lit, err := s.parseLiteral()
		if err != nil {
			return nil, err
		}
		if lit.open() {
			return nil, s.errorf(tok, "comparison %s needs a value", tok.Value)
		}
		v, err := s.boundValue(f, lit)
		if err != nil {
			return nil, err
		}
		r := predicate.Range{Field: f.name}
		switch tok.Type {
		case TokenGt, TokenGe:
			r.Min, r.ExcludeMin = v, tok.Type == TokenGt
		default:
			r.Max, r.ExcludeMax = v, tok.Type == TokenLt
		}
		return r, nil

	case TokenLBracket, TokenLBrace:
		return s.parseRange(f)
	}

	lit, err := s.parseLiteral()
	if err != nil {
		return nil, err
	}
	if !lit.quoted && hasWildcard(lit.text) {
		return s.wildcard(f, lit)
	}
	v, err := s.termValue(f, lit)
	if err != nil {
		return nil, err
	}
	return predicate.Term{Field: f.name, Value: v}, nil
}

// parseRange parses [a TO b], {a TO b} and mixed-bracket forms.
// A '*' bound is open.
func (s *state) parseRange(f fieldInfo) (predicate.Predicate, error) {
	open := s.current()
	s.advance()

	lo, err := s.parseLiteral()
	if err != nil {
		return nil, err
	}
	if tok := s.current(); tok.Type != TokenWord || !strings.EqualFold(tok.Value, "TO") {
		return nil, s.errorf(tok, "expected TO in range but got %s", describe(tok))
	}
	s.advance()
	hi, err := s.parseLiteral()
	if err != nil {
		return nil, err
	}

	closing := s.current()
	if closing.Type != TokenRBracket && closing.Type != TokenRBrace {
		return nil, s.errorf(closing, "expected ']' or '}' but got %s", describe(closing))
	}
	s.advance()

	if lo.open() && hi.open() {
		return nil, s.errorf(open, "range on %q needs at least one bound", f.name)
	}

	r := predicate.Range{
		Field:      f.name,
		ExcludeMin: open.Type == TokenLBrace,
		ExcludeMax: closing.Type == TokenRBrace,
	}
	if !lo.open() {
		if r.Min, err = s.boundValue(f, lo); err != nil {
			return nil, err
		}
	} else {
		r.ExcludeMin = false
	}
	if !hi.open() {
		if r.Max, err = s.boundValue(f, hi); err != nil {
			return nil, err
		}
	} else {
		r.ExcludeMax = false
	}
	return r, nil
}

// literal is one value token. A leading '-' is folded into the text so
// negative numbers survive tokenization.
type literal struct {
	text   string
	quoted bool
	pos    int
}

func (l literal) open() bool {
	return !l.quoted && l.text == "*"
}

func (s *state) parseLiteral() (literal, error) {
	tok := s.current()
	switch tok.Type {
	case TokenString:
		s.advance()
		return literal{text: tok.Value, quoted: true, pos: tok.Pos}, nil
	case TokenWord:
		s.advance()
		return literal{text: tok.Value, pos: tok.Pos}, nil
	case TokenMinus:
		s.advance()
		next := s.current()
		if next.Type != TokenWord || next.Pos != tok.Pos+1 {
			return literal{}, s.errorf(tok, "expected a value after '-'")
		}
		s.advance()
		return literal{text: "-" + next.Value, pos: tok.Pos}, nil
	default:
		return literal{}, s.errorf(tok, "expected a value but got %s", describe(tok))
	}
}

// fieldInfo is a resolved field.
type fieldInfo struct {
	name string
	dt   schema.DataType
	conv schema.Converter
}

// termValue normalizes a literal for an exact-match term. An unquoted
// null matches items where the field has no value.
func (s *state) termValue(f fieldInfo, lit literal) (predicate.Value, error) {
	if !lit.quoted && strings.EqualFold(lit.text, "null") {
		return predicate.Null{}, nil
	}
	return s.normalize(f, lit)
}

// boundValue normalizes a range bound. Null is never a valid bound.
func (s *state) boundValue(f fieldInfo, lit literal) (predicate.Value, error) {
	if !lit.quoted && strings.EqualFold(lit.text, "null") {
		return nil, &ParseError{Pos: lit.pos, Msg: fmt.Sprintf("null cannot bound a range on %q", f.name)}
	}
	return s.normalize(f, lit)
}

func (s *state) normalize(f fieldInfo, lit literal) (predicate.Value, error) {
	text := lit.text
	if !lit.quoted {
		text = unescape(text)
	}

	var raw any = text
	if f.dt == schema.DataTypeReference {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: lit.pos, Msg: fmt.Sprintf("reference field %q needs a content id, got %q", f.name, text)}
		}
		raw = n
	}

	v, err := f.conv.Normalize(raw)
	if err != nil {
		return nil, &ParseError{Pos: lit.pos, Msg: fmt.Sprintf("value for %q", f.name), Err: err}
	}
	return v, nil
}

// wildcard builds a pattern from an unquoted word. Each literal segment
// between unescaped '*' runs through the converter's wildcard normalizer.
func (s *state) wildcard(f fieldInfo, lit literal) (predicate.Predicate, error) {
	segments := splitWildcard(lit.text)
	parts := make([]string, len(segments))
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		norm, err := f.conv.NormalizeForWildcard(unescape(seg))
		if err != nil {
			return nil, &ParseError{Pos: lit.pos, Msg: fmt.Sprintf("pattern for %q", f.name), Err: err}
		}
		parts[i] = norm
	}
	return predicate.Wildcard{Field: f.name, Pattern: strings.Join(parts, "*")}, nil
}

// hasWildcard reports whether s contains an unescaped '*'.
func hasWildcard(s string) bool {
	return len(splitWildcard(s)) > 1
}

// splitWildcard splits s on unescaped '*'. Escapes are kept in the segments.
func splitWildcard(s string) []string {
	var (
		out   []string
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '*':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

// unescape drops backslashes, keeping the character each one escapes.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenWord, TokenString:
		return fmt.Sprintf("%s %q", tok.Type, tok.Value)
	case TokenDirective:
		return "directive ." + tok.Value
	default:
		return tok.Type.String()
	}
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
