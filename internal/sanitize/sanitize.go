// Package sanitize strips markup from text that arrives inside source files
// (FB2 annotations, titles with inline tags) before it reaches the catalog.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every tag, unescapes entities and collapses whitespace.
func Text(s string) string {
	if s == "" {
		return ""
	}
	// Block tags become spaces so "<p>a</p><p>b</p>" does not glue words.
	s = strings.NewReplacer("<", " <", ">", "> ").Replace(s)
	clean := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.FieldsFunc(clean, unicode.IsSpace), " ")
}

// Names applies Text to each element and drops the ones left empty.
func Names(in []string) []string {
	var out []string
	for _, s := range in {
		if c := Text(s); c != "" {
			out = append(out, c)
		}
	}
	return out
}
