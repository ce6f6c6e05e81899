package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrSyntax = errors.New("query syntax error")

// ==========================================
// PUBLIC API
// ==========================================

// Parse - точка входа. Пустой запрос возвращает nil без ошибки (совпадает со всем).
func Parse(input string) (Node, error) {
	p := NewParser(input)
	return p.Parse()
}

// ==========================================
// PARSER LOGIC
// ==========================================

type Parser struct {
	l       *Lexer
	curTok  Token
	peekTok Token
}

func NewParser(input string) *Parser {
	p := &Parser{l: NewLexer(input)}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return fmt.Errorf("%w at %d: %s", ErrSyntax, tok.Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) Parse() (Node, error) {
	if p.curTok.Type == TokenEOF {
		return nil, nil
	}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.curTok.Type != TokenEOF {
		return nil, p.errorf(p.curTok, "unexpected %s", p.curTok.Type)
	}
	return node, nil
}

// Expression -> Term { OR Term }
func (p *Parser) parseExpression() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.curTok.Type == TokenOr {
		p.nextToken() // eat OR
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = join(LogicalOr, left, right)
	}
	return left, nil
}

// Term -> Factor { AND Factor }
func (p *Parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for p.curTok.Type == TokenAnd {
		p.nextToken() // eat AND
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = join(LogicalAnd, left, right)
	}
	return left, nil
}

// Factor -> ( Expr ) | NOT Factor | Filter
func (p *Parser) parseFactor() (Node, error) {
	switch p.curTok.Type {
	case TokenLParen:
		open := p.curTok
		p.nextToken() // eat (
		exp, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.curTok.Type != TokenRParen {
			return nil, p.errorf(open, "expected ) to close (")
		}
		p.nextToken() // eat )
		return exp, nil

	case TokenNot:
		p.nextToken() // eat NOT
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &NotNode{Node: right}, nil

	default:
		return p.parseFilter()
	}
}

// Filter -> FIELD VALUE | VALUE
func (p *Parser) parseFilter() (Node, error) {
	tok := p.curTok
	switch tok.Type {
	case TokenField:
		if !knownFields[tok.Value] {
			return nil, p.errorf(tok, "unknown field %q", tok.Value)
		}
		p.nextToken() // eat field
		op := OpContains
		if tok.Sep == '=' {
			op = OpEquals
		}
		return p.parseValue(tok.Value, op)

	case TokenString, TokenQuoted, TokenRegex:
		// Implicit "any" search
		return p.parseValue(FieldAny, OpContains)

	case TokenError:
		return nil, p.errorf(tok, "%s", tok.Value)
	}
	return nil, p.errorf(tok, "unexpected %s", tok.Type)
}

func (p *Parser) parseValue(field string, op Operator) (Node, error) {
	tok := p.curTok
	switch tok.Type {
	case TokenRegex:
		p.nextToken()
		re, err := regexp.Compile("(?i)" + tok.Value)
		if err != nil {
			return nil, p.errorf(tok, "bad regex: %v", err)
		}
		return &FilterNode{Field: field, Value: tok.Value, Operator: OpRegex, re: re}, nil

	case TokenQuoted:
		p.nextToken()
		return &FilterNode{Field: field, Value: tok.Value, Operator: op}, nil

	case TokenString:
		// Значение жадное: "author:Стивен Кинг" это один автор
		words := []string{tok.Value}
		p.nextToken()
		for p.curTok.Type == TokenString {
			words = append(words, p.curTok.Value)
			p.nextToken()
		}
		return &FilterNode{Field: field, Value: strings.Join(words, " "), Operator: op}, nil

	case TokenError:
		return nil, p.errorf(tok, "%s", tok.Value)
	}
	return nil, p.errorf(tok, "missing value for %s", field)
}

// join flattens chains of the same operator into one node.
func join(op LogicalOp, left, right Node) Node {
	if l, ok := left.(*LogicalNode); ok && l.Op == op {
		l.Nodes = append(l.Nodes, right)
		return l
	}
	return &LogicalNode{Op: op, Nodes: []Node{left, right}}
}
