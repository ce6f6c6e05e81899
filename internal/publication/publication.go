package publication

import (
	"fmt"
	"io"
)

// Publication is any published work. Every concrete kind supplies its own
// Describe; there is no shared rendering.
type Publication interface {
	Title() string
	Year() int
	Kind() Kind
	// Describe returns a human-readable line about the publication.
	Describe() string
}

// base holds the fields common to every publication. It does not implement
// Describe, so it never satisfies Publication on its own.
type base struct {
	title string
	year  int
}

func newBase(title string, year int) base {
	return base{title: title, year: year}
}

func (b base) Title() string { return b.title }
func (b base) Year() int     { return b.year }

// Show writes Describe of each publication on its own line.
func Show(w io.Writer, pubs ...Publication) error {
	for _, p := range pubs {
		if p == nil {
			continue
		}
		if _, err := fmt.Fprintln(w, p.Describe()); err != nil {
			return fmt.Errorf("show %q: %w", p.Title(), err)
		}
	}
	return nil
}
