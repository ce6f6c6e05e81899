package publication

import "fmt"

// Record is the flat form used by storage, import files and the wire.
type Record struct {
	ID         string   `json:"id,omitempty"`
	Kind       Kind     `json:"kind"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Authors    []string `json:"authors,omitempty"`
	Journal    string   `json:"journal,omitempty"`
	Number     int      `json:"number,omitempty"`
	Months     []int    `json:"months,omitempty"`
	Annotation string   `json:"annotation,omitempty"`
	Source     Source   `json:"fileInfo"`
}

type metaCarrier interface {
	Meta() Meta
}

// ToRecord flattens p. Kinds defined outside this package keep only the
// common fields.
func ToRecord(p Publication) Record {
	r := Record{Kind: p.Kind(), Title: p.Title(), Year: p.Year()}
	if mc, ok := p.(metaCarrier); ok {
		m := mc.Meta()
		r.ID, r.Annotation, r.Source = m.ID, m.Annotation, m.Source
	}
	switch v := p.(type) {
	case Book:
		r.Authors = v.Authors()
	case Article:
		r.Journal = v.Journal()
		r.Authors = v.Authors()
	case Magazine:
		r.Number = v.Number()
		r.Months = v.Months()
	}
	return r
}

// FromRecord builds the concrete publication for r.Kind. Field values are
// taken as is.
func FromRecord(r Record) (Publication, error) {
	m := Meta{ID: r.ID, Annotation: r.Annotation, Source: r.Source}
	switch r.Kind {
	case KindBook:
		return NewBook(r.Title, r.Year, r.Authors...).WithMeta(m), nil
	case KindArticle:
		return NewArticle(r.Title, r.Year, r.Journal, r.Authors...).WithMeta(m), nil
	case KindMagazine:
		return NewMagazine(r.Title, r.Year, r.Number, r.Months...).WithMeta(m), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(r.Kind))
}

// Describe renders r through its concrete kind.
func (r Record) Describe() (string, error) {
	p, err := FromRecord(r)
	if err != nil {
		return "", err
	}
	return p.Describe(), nil
}
