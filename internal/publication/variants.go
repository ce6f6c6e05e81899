package publication

import (
	"fmt"
	"strconv"
	"strings"
)

// Source points back to the file a publication was ingested from.
type Source struct {
	Container string `json:"container,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Sha1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// Meta is catalog bookkeeping carried alongside a publication.
type Meta struct {
	ID         string
	Annotation string
	Source     Source
}

type meta struct{ m Meta }

func (m meta) Meta() Meta { return m.m }
func (m meta) ID() string { return m.m.ID }

// Book is a standalone published volume.
type Book struct {
	base
	meta
	authors []string
}

func NewBook(title string, year int, authors ...string) Book {
	return Book{base: newBase(title, year), authors: cloneStrings(authors)}
}

func (b Book) Kind() Kind        { return KindBook }
func (b Book) Authors() []string { return cloneStrings(b.authors) }

// WithMeta returns a copy of b carrying m.
func (b Book) WithMeta(m Meta) Book {
	b.m = m
	return b
}

func (b Book) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Book: \"%s\" (%d)", b.title, b.year)
	writeAuthors(&sb, b.authors)
	return sb.String()
}

// Article is a piece published inside a journal.
type Article struct {
	base
	meta
	journal string
	authors []string
}

func NewArticle(title string, year int, journal string, authors ...string) Article {
	return Article{base: newBase(title, year), journal: journal, authors: cloneStrings(authors)}
}

func (a Article) Kind() Kind        { return KindArticle }
func (a Article) Journal() string   { return a.journal }
func (a Article) Authors() []string { return cloneStrings(a.authors) }

func (a Article) WithMeta(m Meta) Article {
	a.m = m
	return a
}

func (a Article) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Article: \"%s\" (%d)", a.title, a.year)
	if a.journal != "" {
		sb.WriteString(" in ")
		sb.WriteString(a.journal)
	}
	writeAuthors(&sb, a.authors)
	return sb.String()
}

// Magazine is one numbered issue; months lists the months it covers.
type Magazine struct {
	base
	meta
	number int
	months []int
}

func NewMagazine(title string, year, number int, months ...int) Magazine {
	m := make([]int, len(months))
	copy(m, months)
	return Magazine{base: newBase(title, year), number: number, months: m}
}

func (m Magazine) Kind() Kind  { return KindMagazine }
func (m Magazine) Number() int { return m.number }

func (m Magazine) WithMeta(md Meta) Magazine {
	m.m = md
	return m
}

func (m Magazine) Months() []int {
	out := make([]int, len(m.months))
	copy(out, m.months)
	return out
}

func (m Magazine) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Magazine: \"%s\" #%d (%d)", m.title, m.number, m.year)
	if len(m.months) > 0 {
		parts := make([]string, len(m.months))
		for i, mo := range m.months {
			parts[i] = strconv.Itoa(mo)
		}
		sb.WriteString(" [")
		sb.WriteString(strings.Join(parts, ","))
		sb.WriteString("]")
	}
	return sb.String()
}

func writeAuthors(sb *strings.Builder, authors []string) {
	if len(authors) == 0 {
		return
	}
	sb.WriteString(" by ")
	sb.WriteString(strings.Join(authors, ", "))
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
