package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	DefaultListSize = 1000
	MaxListSize     = 10000
)

var ErrBadCursor = errors.New("invalid after cursor")

// Bucket is one distinct value and the number of publications carrying it.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type afterKey struct {
	Key string `json:"key"`
}

// EncodeAfter builds the opaque cursor for the page that follows key.
func EncodeAfter(key string) string {
	b, _ := json.Marshal(afterKey{Key: key})
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeAfter accepts raw JSON or base64(JSON). An empty cursor starts from
// the beginning.
func DecodeAfter(s string) (string, bool, error) {
	if s == "" {
		return "", false, nil
	}
	var k afterKey
	if json.Unmarshal([]byte(s), &k) == nil {
		return k.Key, true, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", false, fmt.Errorf("%w: not json or base64", ErrBadCursor)
	}
	if err := json.Unmarshal(b, &k); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return k.Key, true, nil
}

// ListAuthors pages through distinct author names in byte order.
func (s *Store) ListAuthors(ctx context.Context, after string, size int) ([]Bucket, string, error) {
	return s.list(ctx, "list_authors", `
		SELECT a.value, COUNT(*) FROM publications p, json_each(p.authors) a
		WHERE (? = 0 OR a.value > ?)
		GROUP BY a.value ORDER BY a.value LIMIT ?`, after, size)
}

// ListTitles pages through distinct titles in byte order.
func (s *Store) ListTitles(ctx context.Context, after string, size int) ([]Bucket, string, error) {
	return s.list(ctx, "list_titles", `
		SELECT title, COUNT(*) FROM publications
		WHERE (? = 0 OR title > ?)
		GROUP BY title ORDER BY title LIMIT ?`, after, size)
}

// list returns one page and the cursor for the next one, empty on the last page.
func (s *Store) list(ctx context.Context, op, query, after string, size int) ([]Bucket, string, error) {
	key, ok, err := DecodeAfter(after)
	if err != nil {
		return nil, "", err
	}
	if size <= 0 {
		size = DefaultListSize
	}
	size = min(size, MaxListSize)

	rows, err := s.db.QueryContext(ctx, query, ok, key, size)
	if err != nil {
		observe(op, err)
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			observe(op, err)
			return nil, "", err
		}
		out = append(out, b)
	}
	err = rows.Err()
	observe(op, err)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(out) == size {
		next = EncodeAfter(out[len(out)-1].Key)
	}
	return out, next, nil
}
