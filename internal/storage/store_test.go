package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"pubcat/internal/parser"
	"pubcat/internal/publication"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) []publication.Record {
	t.Helper()
	pubs := []publication.Publication{
		publication.NewBook("Оно", 1986, "Стивен Кинг").WithMeta(publication.Meta{ID: "it"}),
		publication.NewBook("Куджо", 1981, "Стивен Кинг").WithMeta(publication.Meta{ID: "cujo"}),
		publication.NewBook("Dune", 1965, "Frank Herbert").WithMeta(publication.Meta{ID: "dune"}),
		publication.NewArticle("On Computable Numbers", 1936, "Proc. London Math. Soc.", "Alan Turing").WithMeta(publication.Meta{ID: "turing"}),
		publication.NewMagazine("BYTE", 1981, 8, 8).WithMeta(publication.Meta{ID: "byte"}),
		publication.NewBook("100%_done", 0).WithMeta(publication.Meta{ID: "odd"}),
	}
	var recs []publication.Record
	for _, p := range pubs {
		r := publication.ToRecord(p)
		if _, err := s.Save(context.Background(), r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
		recs = append(recs, r)
	}
	return recs
}

func TestSaveGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := publication.ToRecord(publication.NewMagazine("Byte", 1981, 8, 8, 9))
	r.Source = publication.Source{Container: "c.zip", Filename: "a.fb2", Sha1: "ff", Size: 3}
	id, err := s.Save(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Byte" || got.Year != 1981 || got.Number != 8 || len(got.Months) != 2 || got.Source != r.Source {
		t.Errorf("unexpected record %+v", got)
	}

	got.Title = "BYTE"
	if _, err := s.Save(ctx, got); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 row after upsert, got %d", n)
	}

	if ok, _ := s.Exists(ctx, id); !ok {
		t.Errorf("expected Exists")
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveRejectsUnknownKind(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Save(context.Background(), publication.Record{Kind: "scroll", Title: "x"})
	if !errors.Is(err, publication.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSaveNormalizesKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, publication.Record{Kind: " BOOK ", Title: "Dune", Year: 1965})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != publication.KindBook {
		t.Errorf("expected kind %q, got %q", publication.KindBook, got.Kind)
	}
	p, err := publication.FromRecord(got)
	if err != nil {
		t.Fatalf("stored record does not convert back: %v", err)
	}
	if d := p.Describe(); d != `Book: "Dune" (1965)` {
		t.Errorf("unexpected description %q", d)
	}

	total, _, err := s.Search(ctx, &parser.FilterNode{Field: parser.FieldKind, Operator: parser.OpEquals, Value: "book"}, 0, 0)
	if err != nil || total != 1 {
		t.Errorf("expected kind=book to find the record, got %d %v", total, err)
	}
}

func TestOpenAddsIDNorm(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`CREATE TABLE publications (
	id TEXT PRIMARY KEY, kind TEXT NOT NULL, title TEXT NOT NULL, year INTEGER NOT NULL,
	authors TEXT NOT NULL DEFAULT '[]', journal TEXT NOT NULL DEFAULT '', number INTEGER NOT NULL DEFAULT 0,
	months TEXT NOT NULL DEFAULT '[]', annotation TEXT NOT NULL DEFAULT '', source TEXT NOT NULL DEFAULT '{}',
	title_norm TEXT NOT NULL DEFAULT '', authors_norm TEXT NOT NULL DEFAULT '[]', journal_norm TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL);
INSERT INTO publications (id, kind, title, year, created_at, updated_at) VALUES ('Straße', 'book', 'x', 1, 0, 0);`)
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open old catalog: %v", err)
	}
	defer s.Close()
	q, _ := parser.Parse("id=STRASSE")
	if total, _, err := s.Search(ctx, q, 0, 0); err != nil || total != 1 {
		t.Errorf("expected upgraded row to match, got %d %v", total, err)
	}
}

func TestSaveKeepsBoundaryValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, publication.ToRecord(publication.NewBook("", -44)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if got.Title != "" || got.Year != -44 {
		t.Errorf("expected pass-through values, got %+v", got)
	}
}

// SQL translation and the in-memory matcher must agree.
func TestSearchMatchesInMemory(t *testing.T) {
	s := openTestStore(t)
	recs := seed(t, s)
	street := publication.ToRecord(publication.NewBook("Straßenbahn", 1990).WithMeta(publication.Meta{ID: "Straße"}))
	if _, err := s.Save(context.Background(), street); err != nil {
		t.Fatalf("save: %v", err)
	}
	recs = append(recs, street)

	queries := []string{
		"",
		"кинг",
		"КИНГ AND year=1981",
		"author=стивен кинг",
		"author=кинг",
		"kind=book AND NOT author:king",
		"title:/^куд/",
		"year:198 OR journal:london",
		"(kind=magazine OR kind=article) AND year:19",
		`"100%_"`,
		"_",
		"id=DUNE",
		"id=STRASSE",
		"id:strass",
		"any=byte",
	}

	for _, qs := range queries {
		t.Run(qs, func(t *testing.T) {
			q, err := parser.Parse(qs)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			want := map[string]bool{}
			for _, r := range recs {
				if q == nil || q.Match(r) {
					want[r.ID] = true
				}
			}

			total, got, err := s.Search(context.Background(), q, 0, 0)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if qs == "id=STRASSE" && !want["Straße"] {
				t.Fatalf("expected the in-memory matcher to fold ß")
			}
			if total != len(want) || len(got) != len(want) {
				t.Fatalf("expected %d hits, got total=%d page=%d", len(want), total, len(got))
			}
			for _, r := range got {
				if !want[r.ID] {
					t.Errorf("unexpected hit %s", r.ID)
				}
			}
		})
	}
}

func TestSearchPaging(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	for _, qs := range []string{"year:19", "year:/^19/"} {
		q, _ := parser.Parse(qs)
		total, page, err := s.Search(ctx, q, 1, 2)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if total != 5 || len(page) != 2 {
			t.Fatalf("%s: expected total 5 and 2 items, got %d/%d", qs, total, len(page))
		}
		// ordered by year: turing(1936), dune(1965), byte/cujo(1981) ...
		if page[0].ID != "dune" {
			t.Errorf("%s: expected dune second, got %s", qs, page[0].ID)
		}

		total, page, _ = s.Search(ctx, q, 10, 2)
		if total != 5 || len(page) != 0 {
			t.Errorf("%s: expected empty page past the end, got %d/%d", qs, total, len(page))
		}
	}
}

func TestListAuthorsPaging(t *testing.T) {
	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	page, next, err := s.ListAuthors(ctx, "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 || page[0].Key != "Alan Turing" || page[1].Key != "Frank Herbert" || next == "" {
		t.Fatalf("unexpected first page %+v next=%q", page, next)
	}

	page, next, err = s.ListAuthors(ctx, next, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 1 || page[0] != (Bucket{Key: "Стивен Кинг", Count: 2}) || next != "" {
		t.Errorf("unexpected last page %+v next=%q", page, next)
	}

	raw, _, err := s.ListAuthors(ctx, `{"key":"Frank Herbert"}`, 0)
	if err != nil || len(raw) != 1 {
		t.Errorf("raw JSON cursor: %+v %v", raw, err)
	}

	if _, _, err := s.ListAuthors(ctx, "%%%", 10); !errors.Is(err, ErrBadCursor) {
		t.Errorf("expected ErrBadCursor, got %v", err)
	}
}

func TestListTitlesIncludesEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, p := range []publication.Publication{
		publication.NewBook("", 0),
		publication.NewBook("Dune", 1965),
		publication.NewBook("Dune", 1984),
	} {
		if _, err := s.Save(ctx, publication.ToRecord(p)); err != nil {
			t.Fatal(err)
		}
	}
	page, next, err := s.ListTitles(ctx, "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Bucket{{Key: "", Count: 1}, {Key: "Dune", Count: 2}}
	if len(page) != 2 || page[0] != want[0] || page[1] != want[1] || next != "" {
		t.Errorf("got %+v next=%q", page, next)
	}
}
