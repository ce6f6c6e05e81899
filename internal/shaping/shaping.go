package shaping

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"pubcat/internal/search"
	"pubcat/internal/storage"
)

type item struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Authors     []string `json:"authors"`
	Description string   `json:"description"`
	Download    string   `json:"download,omitempty"`
}

type page struct {
	Total    int    `json:"total"`
	From     int    `json:"from"`
	Size     int    `json:"size"`
	NextFrom *int   `json:"next_from,omitempty"`
	Query    string `json:"query"`
	Relaxed  bool   `json:"relaxed,omitempty"`
	Items    []item `json:"items"`
}

// ShapeSearch flattens a search result into the public JSON payload.
func ShapeSearch(res *search.SearchResult) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("shape: nil result")
	}
	out := page{
		Total:   res.Total,
		From:    res.From,
		Size:    res.Size,
		Query:   res.Canonical,
		Relaxed: res.Relaxed,
		Items:   make([]item, 0, len(res.Items)), // ensure [] not null
	}
	if next := res.From + len(res.Items); next < res.Total {
		out.NextFrom = &next
	}
	for _, p := range res.Items {
		authors := p.Authors
		if authors == nil {
			authors = []string{}
		}
		out.Items = append(out.Items, item{
			ID:          p.ID,
			Kind:        p.Kind,
			Title:       p.Title,
			Year:        p.Year,
			Authors:     authors,
			Description: p.Description,
			Download:    p.Download,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// ShapeText writes one description per line, numbered, with a header.
func ShapeText(w io.Writer, res *search.SearchResult) error {
	if res == nil || len(res.Items) == 0 {
		q := ""
		if res != nil {
			q = res.Canonical
		}
		_, err := fmt.Fprintf(w, "No publications found for: %s\n", q)
		return err
	}
	if _, err := fmt.Fprintf(w, "Found %d publications:\n%s\n", res.Total, strings.Repeat("-", 40)); err != nil {
		return err
	}
	for i, p := range res.Items {
		if _, err := fmt.Fprintf(w, "%3d. [%s] %s\n", res.From+i+1, p.ID, p.Description); err != nil {
			return err
		}
	}
	return nil
}

type buckets struct {
	Name     string           `json:"name"`
	Buckets  []storage.Bucket `json:"buckets"`
	AfterKey string           `json:"after_key,omitempty"`
}

// ShapeBuckets renders one page of a distinct-value listing. after_key is
// left out on the last page.
func ShapeBuckets(name string, page []storage.Bucket, next string) ([]byte, error) {
	if page == nil {
		page = []storage.Bucket{}
	}
	return json.MarshalIndent(buckets{Name: name, Buckets: page, AfterKey: next}, "", "  ")
}
