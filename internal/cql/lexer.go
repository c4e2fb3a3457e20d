package cql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenString
	TokenDirective
	TokenColon
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenAnd
	TokenOr
	TokenNot
	TokenPlus
	TokenMinus
	TokenGt
	TokenGe
	TokenLt
	TokenLe
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "end of query",
	TokenWord:      "word",
	TokenString:    "quoted string",
	TokenDirective: "directive",
	TokenColon:     "':'",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
	TokenLBracket:  "'['",
	TokenRBracket:  "']'",
	TokenLBrace:    "'{'",
	TokenRBrace:    "'}'",
	TokenAnd:       "AND",
	TokenOr:        "OR",
	TokenNot:       "NOT",
	TokenPlus:      "'+'",
	TokenMinus:     "'-'",
	TokenGt:        "'>'",
	TokenGe:        "'>='",
	TokenLt:        "'<'",
	TokenLe:        "'<='",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token represents a lexical token. Pos is the byte offset in the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes content query text.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]
	single := func(t TokenType) (Token, error) {
		l.pos++
		return Token{Type: t, Value: string(ch), Pos: start}, nil
	}

	switch ch {
	case ':':
		return single(TokenColon)
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case '[':
		return single(TokenLBracket)
	case ']':
		return single(TokenRBracket)
	case '{':
		return single(TokenLBrace)
	case '}':
		return single(TokenRBrace)
	case '+':
		return single(TokenPlus)
	case '-':
		return single(TokenMinus)
	case '!':
		return single(TokenNot)
	case '>', '<':
		t := TokenGt
		if ch == '<' {
			t = TokenLt
		}
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			if t == TokenGt {
				t = TokenGe
			} else {
				t = TokenLe
			}
		}
		return Token{Type: t, Value: l.input[start:l.pos], Pos: start}, nil
	case '&', '|':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == ch {
			l.pos += 2
			if ch == '&' {
				return Token{Type: TokenAnd, Value: "&&", Pos: start}, nil
			}
			return Token{Type: TokenOr, Value: "||", Pos: start}, nil
		}
		return Token{}, &ParseError{Pos: start, Msg: fmt.Sprintf("unexpected %q", ch)}
	case '"', '\'':
		return l.readString(ch)
	case '.':
		if l.pos+1 < len(l.input) && isLetter(l.input[l.pos+1]) {
			l.pos++
			name := l.readWhile(isLetter)
			return Token{Type: TokenDirective, Value: strings.ToUpper(name), Pos: start}, nil
		}
	}

	word := l.readWhile(isWordByte)
	if word == "" {
		r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
		return Token{}, &ParseError{Pos: start, Msg: fmt.Sprintf("unexpected %q", r)}
	}
	switch strings.ToUpper(word) {
	case "AND":
		return Token{Type: TokenAnd, Value: "AND", Pos: start}, nil
	case "OR":
		return Token{Type: TokenOr, Value: "OR", Pos: start}, nil
	case "NOT":
		return Token{Type: TokenNot, Value: "NOT", Pos: start}, nil
	}
	return Token{Type: TokenWord, Value: word, Pos: start}, nil
}

// Tokenize returns every token up to and including EOF.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var toks []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// readString reads a quoted string. Backslash escapes the next character.
func (l *Lexer) readString(quote byte) (Token, error) {
	start := l.pos
	l.pos++ // skip opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input):
			b.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case ch == quote:
			l.pos++ // skip closing quote
			return Token{Type: TokenString, Value: b.String(), Pos: start}, nil
		default:
			b.WriteByte(ch)
			l.pos++
		}
	}
	return Token{}, &ParseError{Pos: start, Msg: "unterminated string"}
}

// readWhile consumes bytes while ok holds. A backslash keeps the following
// byte in the word verbatim, escape included.
func (l *Lexer) readWhile(ok func(byte) bool) string {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos += 2
			continue
		}
		if !ok(ch) {
			break
		}
		l.pos++
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isWordByte(ch byte) bool {
	if ch >= utf8.RuneSelf {
		return true
	}
	if unicode.IsSpace(rune(ch)) {
		return false
	}
	return !strings.ContainsRune(`:()[]{}"'<>!&|`, rune(ch))
}
