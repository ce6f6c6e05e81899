package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"pubcat/internal/config"
	"pubcat/internal/publication"
	"pubcat/internal/storage"
)

const duneFB2 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
<description><title-info><genre>sf</genre>
<author><first-name>Frank</first-name><last-name>Herbert</last-name></author>
<book-title>Dune</book-title>
<annotation><p>Desert &amp; <i>spice</i></p></annotation>
<date value="1965-08-01">1965</date>
</title-info></description>
<body><p>text</p></body></FictionBook>`

const itFB2 = `<?xml version="1.0" encoding="windows-1251"?>
<FictionBook><description><title-info>
<author><first-name>Стивен</first-name><last-name>Кинг</last-name></author>
<book-title>Оно</book-title><date>1986</date>
</title-info></description></FictionBook>`

const datedFB2 = `<?xml version="1.0" encoding="utf-8"?>
<FictionBook><description><title-info>
<book-title>Dated</book-title><date>12.03.1999</date>
</title-info></description></FictionBook>`

const halfFB2 = `<FictionBook><description><title-info><book-title>Half</book-title>
<author><first-name>Ann</first-name><last-name>Lee</last-name></author>`

const noTitleFB2 = `<FictionBook><body><p>nothing</p></body></FictionBook>`

func cp1251(t *testing.T, s string) []byte {
	t.Helper()
	b, err := charmap.Windows1251.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestParseFB2(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(duneFB2))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		data     []byte
		validate func(*testing.T, publication.Book, error)
	}{
		{
			name: "UTF-8 document",
			data: []byte(duneFB2),
			validate: func(t *testing.T, b publication.Book, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if b.Title() != "Dune" || b.Year() != 1965 || strings.Join(b.Authors(), ",") != "Frank Herbert" {
					t.Errorf("unexpected book %s", b.Describe())
				}
				if b.Meta().Annotation != "Desert & spice" {
					t.Errorf("unexpected annotation %q", b.Meta().Annotation)
				}
			},
		},
		{
			name: "windows-1251",
			data: cp1251(t, itFB2),
			validate: func(t *testing.T, b publication.Book, err error) {
				if err != nil || b.Title() != "Оно" || b.Year() != 1986 || b.Authors()[0] != "Стивен Кинг" {
					t.Errorf("unexpected result %s %v", b.Describe(), err)
				}
			},
		},
		{
			name: "UTF-16 with BOM",
			data: utf16,
			validate: func(t *testing.T, b publication.Book, err error) {
				if err != nil || b.Title() != "Dune" || b.Year() != 1965 {
					t.Errorf("unexpected result %s %v", b.Describe(), err)
				}
			},
		},
		{
			name: "Day-first date text",
			data: []byte(datedFB2),
			validate: func(t *testing.T, b publication.Book, err error) {
				if err != nil || b.Year() != 1999 {
					t.Errorf("expected year 1999, got %d %v", b.Year(), err)
				}
			},
		},
		{
			name: "Truncated markup falls back to regex",
			data: []byte(halfFB2),
			validate: func(t *testing.T, b publication.Book, err error) {
				if err != nil || b.Title() != "Half" || b.Year() != 0 || b.Authors()[0] != "Ann Lee" {
					t.Errorf("unexpected result %s %v", b.Describe(), err)
				}
			},
		},
		{
			name: "No title",
			data: []byte(noTitleFB2),
			validate: func(t *testing.T, b publication.Book, err error) {
				if err == nil {
					t.Errorf("expected error, got %s", b.Describe())
				}
			},
		},
		{
			name: "Empty",
			data: nil,
			validate: func(t *testing.T, b publication.Book, err error) {
				if err == nil {
					t.Errorf("expected error for empty input")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseFB2(tt.data)
			tt.validate(t, b, err)
		})
	}
}

func TestParseYear(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1965-08-01", 1965, true},
		{"12.03.1999", 1999, true},
		{"3/7/0812", 812, true},
		{"около 1986 г.", 1986, true},
		{"-44", -44, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, c := range cases {
		got, ok := parseYear(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("parseYear(%q) = %d,%v", c.in, got, ok)
		}
	}
}

func writeZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestIngestZip(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()
	st := openStore(t)
	warn := filepath.Join(t.TempDir(), "warn")

	src := writeZip(t, map[string][]byte{
		"dune.fb2":        []byte(duneFB2),
		"it.FB2":          cp1251(t, itFB2),
		"half.fb2":        []byte(halfFB2),
		"sub/notitle.fb2": []byte(noTitleFB2),
		"readme.txt":      []byte("not a book"),
	})

	var bulk, bar bytes.Buffer
	cfg := config.IngestConfig{Threads: 3, WarnDir: warn, IndexName: "pubcat"}
	in := New(st, log, cfg).WithBulk(NewBulkWriter(&bulk, "pubcat")).WithProgress(&bar)

	stats, err := in.IngestZip(ctx, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (Stats{Found: 4, Saved: 3, Failed: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if n, _ := st.Count(ctx); n != 3 {
		t.Errorf("expected 3 stored, got %d", n)
	}

	sum := sha1.Sum([]byte(duneFB2))
	id := hex.EncodeToString(sum[:])
	rec, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("get by sha1: %v", err)
	}
	want := publication.Source{Container: "books.zip", Filename: "dune.fb2", Sha1: id, Size: int64(len(duneFB2))}
	if rec.Title != "Dune" || rec.Kind != publication.KindBook || rec.Source != want {
		t.Errorf("unexpected record %+v", rec)
	}

	if _, err := os.Stat(filepath.Join(warn, "notitle.fb2")); err != nil {
		t.Errorf("expected failed file in warn dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(warn, "notitle.fb2.log")); err != nil {
		t.Errorf("expected reason file in warn dir: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(bulk.String()), "\n")
	if len(lines) != 6 || !strings.HasPrefix(lines[0], `{"index":{"_id":"`) {
		t.Errorf("unexpected bulk output:\n%s", bulk.String())
	}

	again, err := New(st, log, cfg).IngestZip(ctx, src)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != (Stats{Found: 4, Skipped: 3, Failed: 1}) || !again.NothingNew() {
		t.Errorf("expected skips on second run, got %+v", again)
	}

	cfg.Rescan = true
	forced, _ := New(st, log, cfg).IngestZip(ctx, src)
	if forced.Saved != 3 || forced.Skipped != 0 {
		t.Errorf("expected rescan to save again, got %+v", forced)
	}
	if n, _ := st.Count(ctx); n != 3 {
		t.Errorf("rescan must upsert, got %d rows", n)
	}

	// The bulk file imports cleanly into a fresh catalog.
	other := openStore(t)
	imported, err := New(other, log, config.IngestConfig{}).ImportJSONL(ctx, &bulk, "bulk.jsonl")
	if err != nil || imported.Saved != 3 || imported.Failed != 0 {
		t.Errorf("expected bulk re-import, got %+v %v", imported, err)
	}
	if _, err := other.Get(ctx, id); err != nil {
		t.Errorf("expected id preserved through bulk file: %v", err)
	}
}

func TestIngestZipMissing(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := New(openStore(t), log, config.IngestConfig{}).IngestZip(context.Background(), filepath.Join(t.TempDir(), "none.zip"))
	if err == nil {
		t.Fatal("expected error for missing container")
	}
}

func TestImportJSONL(t *testing.T) {
	ctx := context.Background()
	log, hook := test.NewNullLogger()
	st := openStore(t)

	input := strings.Join([]string{
		`{"index":{"_id":"x","_index":"pubcat"}}`,
		`{"id":"x","kind":"magazine","title":"BYTE","year":1981,"number":8,"months":[8]}`,
		`{"kind":"book","title":"Dune"}`,
		`{"kind":"scroll","title":"x","year":1}`,
		``,
		`{"kind":"article","title":"","year":-44,"journal":"Acta","annotation":"<b>Ides</b> of March"}`,
		`not json`,
	}, "\n")

	in := New(st, log, config.IngestConfig{})
	stats, err := in.ImportJSONL(ctx, strings.NewReader(input), "dump.jsonl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats != (Stats{Found: 5, Saved: 2, Failed: 3}) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	invalid := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "ingest.line.invalid" {
			invalid++
		}
	}
	if invalid != 3 {
		t.Errorf("expected 3 invalid-line warnings, got %d", invalid)
	}

	rec, err := st.Get(ctx, "x")
	if err != nil || rec.Number != 8 || rec.Kind != publication.KindMagazine {
		t.Errorf("unexpected magazine %+v %v", rec, err)
	}

	again, _ := in.ImportJSONL(ctx, strings.NewReader(input), "dump.jsonl")
	if again.Skipped != 1 || again.Saved != 1 {
		t.Errorf("expected id'd record skipped and id-less saved, got %+v", again)
	}
	if n, _ := st.Count(ctx); n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
}
