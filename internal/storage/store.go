package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pubcat/internal/logger"
	"pubcat/internal/metrics"
	"pubcat/internal/parser"
	"pubcat/internal/publication"
)

var ErrNotFound = errors.New("publication not found")

const schema = `
CREATE TABLE IF NOT EXISTS publications (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	title        TEXT NOT NULL,
	year         INTEGER NOT NULL,
	authors      TEXT NOT NULL DEFAULT '[]',
	journal      TEXT NOT NULL DEFAULT '',
	number       INTEGER NOT NULL DEFAULT 0,
	months       TEXT NOT NULL DEFAULT '[]',
	annotation   TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '{}',
	id_norm      TEXT NOT NULL DEFAULT '',
	title_norm   TEXT NOT NULL DEFAULT '',
	authors_norm TEXT NOT NULL DEFAULT '[]',
	journal_norm TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_publications_order ON publications(year, title, id);
CREATE INDEX IF NOT EXISTS idx_publications_kind ON publications(kind);
`

const columns = `id, kind, title, year, authors, journal, number, months, annotation, source`

const orderBy = ` ORDER BY year, title, id`

// Store keeps the catalog in a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
	// between ingest workers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := addIDNorm(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate id_norm: %w", err)
	}
	return &Store{db: db}, nil
}

// addIDNorm upgrades catalogs created before ids were folded for search.
func addIDNorm(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('publications') WHERE name = 'id_norm'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE publications ADD COLUMN id_norm TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM publications`)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := db.ExecContext(ctx, `UPDATE publications SET id_norm = ? WHERE id = ?`, parser.Fold(id), id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces r and returns its id. An empty id gets a new UUID.
func (s *Store) Save(ctx context.Context, r publication.Record) (string, error) {
	kind, err := publication.ParseKind(string(r.Kind))
	if err != nil {
		observe("save", err)
		return "", err
	}
	r.Kind = kind
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	authors, _ := json.Marshal(nonNilStrings(r.Authors))
	months, _ := json.Marshal(nonNilInts(r.Months))
	source, _ := json.Marshal(r.Source)
	authorsNorm, _ := json.Marshal(foldAll(r.Authors))
	now := time.Now().Unix()

	_, err = s.db.ExecContext(ctx, `
INSERT INTO publications (`+columns+`, id_norm, title_norm, authors_norm, journal_norm, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kind = excluded.kind, title = excluded.title, year = excluded.year,
	authors = excluded.authors, journal = excluded.journal, number = excluded.number,
	months = excluded.months, annotation = excluded.annotation, source = excluded.source,
	id_norm = excluded.id_norm, title_norm = excluded.title_norm, authors_norm = excluded.authors_norm,
	journal_norm = excluded.journal_norm, updated_at = excluded.updated_at`,
		r.ID, string(r.Kind), r.Title, r.Year, string(authors), r.Journal, r.Number, string(months),
		r.Annotation, string(source), parser.Fold(r.ID), parser.Fold(r.Title), string(authorsNorm), parser.Fold(r.Journal), now, now)
	observe("save", err)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", r.ID, err)
	}

	logger.For(ctx).WithField("id", r.ID).Debug("store.save")
	return r.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (publication.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM publications WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		observe("get", nil)
		return r, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	observe("get", err)
	return r, err
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publications WHERE id = ?`, id).Scan(&n)
	observe("exists", err)
	return n > 0, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE id = ?`, id)
	observe("delete", err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publications`).Scan(&n)
	observe("count", err)
	return n, err
}

// Search returns the total number of matches and the page [from, from+size).
// size <= 0 means no limit. A nil query matches everything.
func (s *Store) Search(ctx context.Context, q parser.Node, from, size int) (int, []publication.Record, error) {
	defer logger.Track(ctx, "store.search")()
	if from < 0 {
		from = 0
	}

	if parser.HasRegex(q) {
		total, recs, err := s.scan(ctx, q, from, size)
		observe("search_scan", err)
		return total, recs, err
	}

	where, args := "1=1", []any(nil)
	if q != nil {
		where, args = buildWhere(q)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publications WHERE `+where, args...).Scan(&total); err != nil {
		observe("search", err)
		return 0, nil, fmt.Errorf("count: %w", err)
	}

	limit := size
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM publications WHERE `+where+orderBy+` LIMIT ? OFFSET ?`,
		append(args, limit, from)...)
	if err != nil {
		observe("search", err)
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	recs, err := collect(rows, nil)
	observe("search", err)
	return total, recs, err
}

// scan evaluates q in Go over every row, for filters SQL cannot express.
func (s *Store) scan(ctx context.Context, q parser.Node, from, size int) (int, []publication.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM publications`+orderBy)
	if err != nil {
		return 0, nil, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	all, err := collect(rows, q.Match)
	if err != nil {
		return 0, nil, err
	}
	total := len(all)
	if from >= total {
		return total, []publication.Record{}, nil
	}
	end := total
	if size > 0 && from+size < end {
		end = from + size
	}
	return total, all[from:end], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (publication.Record, error) {
	var (
		r                       publication.Record
		kind                    string
		authors, months, source string
	)
	if err := row.Scan(&r.ID, &kind, &r.Title, &r.Year, &authors, &r.Journal, &r.Number, &months, &r.Annotation, &source); err != nil {
		return r, err
	}
	r.Kind = publication.Kind(kind)
	if err := json.Unmarshal([]byte(authors), &r.Authors); err != nil {
		return r, fmt.Errorf("decode authors of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(months), &r.Months); err != nil {
		return r, fmt.Errorf("decode months of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(source), &r.Source); err != nil {
		return r, fmt.Errorf("decode source of %s: %w", r.ID, err)
	}
	if len(r.Authors) == 0 {
		r.Authors = nil
	}
	if len(r.Months) == 0 {
		r.Months = nil
	}
	return r, nil
}

func collect(rows *sql.Rows, keep func(publication.Record) bool) ([]publication.Record, error) {
	out := []publication.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperations.WithLabelValues(op, status).Inc()
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = parser.Fold(s)
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilInts(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
