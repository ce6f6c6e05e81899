package parser

import (
	"strings"
	"unicode"
)

type TokenType int

const (
	TokenError TokenType = iota
	TokenEOF
	TokenString
	TokenQuoted
	TokenField
	TokenAnd
	TokenOr
	TokenNot
	TokenRegex
	TokenLParen
	TokenRParen
)

var tokenNames = map[TokenType]string{
	TokenError:  "error",
	TokenEOF:    "end of input",
	TokenString: "word",
	TokenQuoted: "quoted string",
	TokenField:  "field",
	TokenAnd:    "AND",
	TokenOr:     "OR",
	TokenNot:    "NOT",
	TokenRegex:  "regex",
	TokenLParen: "(",
	TokenRParen: ")",
}

func (t TokenType) String() string { return tokenNames[t] }

type Token struct {
	Type  TokenType
	Value string
	// Sep is ':' or '=' for TokenField.
	Sep rune
	Pos int
}

type Lexer struct {
	input []rune
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	switch l.input[l.pos] {
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case '"':
		return l.readQuoted()
	case '/':
		// Обработка регулярных выражений
		return l.readRegex()
	}

	// Читаем токен до пробела, скобки ИЛИ до разделителя поля
	for l.pos < len(l.input) && !isDelimiter(l.input[l.pos]) {
		if c := l.input[l.pos]; (c == ':' || c == '=') && l.pos > start {
			word := string(l.input[start:l.pos])
			l.pos++ // разделитель относится к полю
			return Token{Type: TokenField, Value: strings.ToLower(word), Sep: c, Pos: start}
		}
		l.pos++
	}

	word := string(l.input[start:l.pos])
	switch strings.ToUpper(word) {
	case "AND":
		return Token{Type: TokenAnd, Value: "AND", Pos: start}
	case "OR":
		return Token{Type: TokenOr, Value: "OR", Pos: start}
	case "NOT":
		return Token{Type: TokenNot, Value: "NOT", Pos: start}
	}

	return Token{Type: TokenString, Value: word, Pos: start}
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')'
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) readQuoted() Token {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.input):
			sb.WriteRune(l.input[l.pos+1])
			l.pos += 2
			continue
		case c == '"':
			l.pos++
			return Token{Type: TokenQuoted, Value: sb.String(), Pos: start}
		}
		sb.WriteRune(c)
		l.pos++
	}
	return Token{Type: TokenError, Value: "unterminated quoted string", Pos: start}
}

// readRegex returns the pattern without the surrounding slashes.
func (l *Lexer) readRegex() Token {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) && l.input[l.pos] != '/' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenError, Value: "unterminated regex", Pos: start}
	}
	pattern := string(l.input[start+1 : l.pos])
	l.pos++
	return Token{Type: TokenRegex, Value: pattern, Pos: start}
}
