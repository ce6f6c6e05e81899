package parser

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"pubcat/internal/publication"
)

type Operator int

const (
	OpContains Operator = iota
	OpEquals
	OpRegex
)

type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

func (o LogicalOp) String() string {
	if o == LogicalOr {
		return "OR"
	}
	return "AND"
}

// Fields the query language knows about. "any" is used for bare values.
const (
	FieldAny     = "any"
	FieldTitle   = "title"
	FieldAuthor  = "author"
	FieldYear    = "year"
	FieldKind    = "kind"
	FieldJournal = "journal"
	FieldID      = "id"
)

var knownFields = map[string]bool{
	FieldAny: true, FieldTitle: true, FieldAuthor: true, FieldYear: true,
	FieldKind: true, FieldJournal: true, FieldID: true,
}

// Node is one element of a parsed query.
type Node interface {
	Match(r publication.Record) bool
	String() string
}

type FilterNode struct {
	Field    string
	Value    string
	Operator Operator

	re *regexp.Regexp
}

type LogicalNode struct {
	Op    LogicalOp
	Nodes []Node
}

type NotNode struct {
	Node Node
}

// Fold is the case folding used for every comparison in queries and in the
// store's search columns.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// FieldValues returns the values of r a filter on field is checked against.
func FieldValues(r publication.Record, field string) []string {
	switch field {
	case FieldTitle:
		return []string{r.Title}
	case FieldAuthor:
		return r.Authors
	case FieldYear:
		return []string{strconv.Itoa(r.Year)}
	case FieldKind:
		return []string{string(r.Kind)}
	case FieldJournal:
		return []string{r.Journal}
	case FieldID:
		return []string{r.ID}
	}
	out := make([]string, 0, 2+len(r.Authors))
	out = append(out, r.Title)
	if r.Journal != "" {
		out = append(out, r.Journal)
	}
	return append(out, r.Authors...)
}

func (f *FilterNode) Match(r publication.Record) bool {
	want := Fold(f.Value)
	for _, v := range FieldValues(r, f.Field) {
		switch f.Operator {
		case OpRegex:
			if f.re != nil && f.re.MatchString(v) {
				return true
			}
		case OpEquals:
			if Fold(v) == want {
				return true
			}
		default:
			if strings.Contains(Fold(v), want) {
				return true
			}
		}
	}
	return false
}

func (f *FilterNode) String() string {
	switch f.Operator {
	case OpRegex:
		return f.Field + ":/" + f.Value + "/"
	case OpEquals:
		return f.Field + "=" + strconv.Quote(f.Value)
	}
	return f.Field + ":" + strconv.Quote(f.Value)
}

// Regexp returns the compiled pattern of a regex filter.
func (f *FilterNode) Regexp() *regexp.Regexp { return f.re }

func (l *LogicalNode) Match(r publication.Record) bool {
	for _, n := range l.Nodes {
		ok := n.Match(r)
		if l.Op == LogicalOr && ok {
			return true
		}
		if l.Op == LogicalAnd && !ok {
			return false
		}
	}
	return l.Op == LogicalAnd
}

func (l *LogicalNode) String() string {
	parts := make([]string, len(l.Nodes))
	for i, n := range l.Nodes {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, " "+l.Op.String()+" ") + ")"
}

func (n *NotNode) Match(r publication.Record) bool { return !n.Node.Match(r) }
func (n *NotNode) String() string                 { return "NOT " + n.Node.String() }

// Canonical renders node, or "*" for the empty query.
func Canonical(node Node) string {
	if node == nil {
		return "*"
	}
	return node.String()
}

// HasRegex reports whether any filter under node is a regex.
func HasRegex(node Node) bool {
	switch n := node.(type) {
	case *FilterNode:
		return n.Operator == OpRegex
	case *LogicalNode:
		for _, c := range n.Nodes {
			if HasRegex(c) {
				return true
			}
		}
	case *NotNode:
		return HasRegex(n.Node)
	}
	return false
}

// Relax returns a copy of node with exact filters turned into contains
// filters, and whether anything changed.
func Relax(node Node) (Node, bool) {
	switch n := node.(type) {
	case *FilterNode:
		if n.Operator != OpEquals {
			return n, false
		}
		c := *n
		c.Operator = OpContains
		return &c, true
	case *LogicalNode:
		out := &LogicalNode{Op: n.Op, Nodes: make([]Node, len(n.Nodes))}
		changed := false
		for i, c := range n.Nodes {
			var ch bool
			out.Nodes[i], ch = Relax(c)
			changed = changed || ch
		}
		return out, changed
	case *NotNode:
		inner, ch := Relax(n.Node)
		return &NotNode{Node: inner}, ch
	}
	return node, false
}
