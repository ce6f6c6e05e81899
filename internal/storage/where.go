package storage

import (
	"strings"

	"pubcat/internal/parser"
)

// buildWhere turns a regex-free query into a WHERE clause over the folded
// columns. It mirrors parser.FilterNode.Match.
func buildWhere(node parser.Node) (string, []any) {
	switch n := node.(type) {
	case *parser.FilterNode:
		return filterClause(n)
	case *parser.LogicalNode:
		parts := make([]string, 0, len(n.Nodes))
		var args []any
		for _, c := range n.Nodes {
			clause, a := buildWhere(c)
			parts = append(parts, "("+clause+")")
			args = append(args, a...)
		}
		return strings.Join(parts, " "+n.Op.String()+" "), args
	case *parser.NotNode:
		clause, args := buildWhere(n.Node)
		return "NOT (" + clause + ")", args
	}
	return "1=1", nil
}

func filterClause(f *parser.FilterNode) (string, []any) {
	value := parser.Fold(f.Value)
	cmp, arg := "= ?", any(value)
	if f.Operator == parser.OpContains {
		cmp, arg = `LIKE ? ESCAPE '\'`, "%"+escapeLike(value)+"%"
	}

	authors := "EXISTS (SELECT 1 FROM json_each(publications.authors_norm) AS a WHERE a.value " + cmp + ")"
	switch f.Field {
	case parser.FieldTitle:
		return "title_norm " + cmp, []any{arg}
	case parser.FieldAuthor:
		return authors, []any{arg}
	case parser.FieldYear:
		return "CAST(year AS TEXT) " + cmp, []any{arg}
	case parser.FieldKind:
		return "kind " + cmp, []any{arg}
	case parser.FieldJournal:
		return "journal_norm " + cmp, []any{arg}
	case parser.FieldID:
		return "id_norm " + cmp, []any{arg}
	}
	// any: title, non-empty journal, authors
	return "title_norm " + cmp + " OR (journal_norm <> '' AND journal_norm " + cmp + ") OR " + authors,
		[]any{arg, arg, arg}
}
