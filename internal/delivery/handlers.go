package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pubcat/internal/auth"
	"pubcat/internal/config"
	"pubcat/internal/httpx"
	"pubcat/internal/logger"
	"pubcat/internal/middleware"
	"pubcat/internal/publication"
	"pubcat/internal/sanitize"
	"pubcat/internal/schema"
	"pubcat/internal/search"
	"pubcat/internal/shaping"
	"pubcat/internal/storage"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Catalog is the write side the handlers need from storage.
type Catalog interface {
	Save(ctx context.Context, r publication.Record) (string, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	ListAuthors(ctx context.Context, after string, size int) ([]storage.Bucket, string, error)
	ListTitles(ctx context.Context, after string, size int) ([]storage.Bucket, string, error)
}

type Server struct {
	Log       *logrus.Logger
	Search    search.Searcher
	Catalog   Catalog
	Whitelist *auth.Whitelist
	Limits    config.LimitsConfig
}

// Handler wires every route with the common middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	editor := middleware.Require(s.Whitelist, auth.RoleEditor)

	route := func(pattern, label string, h http.Handler) {
		mux.Handle(pattern, middleware.Instrument(label, h))
	}
	route("GET /health", "/health", http.HandlerFunc(s.Health))
	mux.Handle("GET /metrics", promhttp.Handler())
	route("GET /search", "/search", http.HandlerFunc(s.SearchPublications))
	route("GET /input", "/input", http.HandlerFunc(s.Input))
	route("GET /authors", "/authors", http.HandlerFunc(s.ListAuthors))
	route("GET /titles", "/titles", http.HandlerFunc(s.ListTitles))
	route("GET /publications/{id}", "/publications/{id}", http.HandlerFunc(s.GetPublication))
	route("POST /publications", "/publications", editor(http.HandlerFunc(s.CreatePublication)))
	route("DELETE /publications/{id}", "/publications/{id}", editor(http.HandlerFunc(s.DeletePublication)))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.RequestLogger(s.Log),
		middleware.CORS,
		middleware.RateLimit(s.Limits.RPS, s.Limits.Burst),
	)
}

// GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	n, err := s.Catalog.Count(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "catalog store is not readable", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "publications": n})
}

// GET /search?q=...&from=0&size=10[&format=full]
func (s *Server) SearchPublications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := httpx.AtoiDefault(q.Get("from"), 0)
	size := httpx.AtoiDefault(q.Get("size"), search.DefaultSize)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, ok := s.search(ctx, w, q.Get("q"), from, size)
	if !ok {
		return
	}
	if q.Get("format") == "full" {
		httpx.WriteJSON(w, http.StatusOK, res)
		return
	}
	out, err := shaping.ShapeSearch(res)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, res)
		return
	}
	httpx.WriteRawJSON(w, http.StatusOK, out)
}

// GET /input?msg=... renders plain text, one description per hit.
func (s *Server) Input(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("msg")
	if query == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "missing 'msg' query parameter", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, ok := s.search(ctx, w, query, 0, 5)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = shaping.ShapeText(w, res)
}

func (s *Server) search(ctx context.Context, w http.ResponseWriter, query string, from, size int) (*search.SearchResult, bool) {
	res, err := s.Search.Search(ctx, query, from, size)
	if err == nil {
		return res, true
	}
	if errors.Is(err, search.ErrBadQuery) {
		httpx.WriteError(w, http.StatusBadRequest, "bad_query", "query could not be parsed", err.Error())
		return nil, false
	}
	logger.For(ctx).WithError(err).WithField("query", query).Error("search.failed")
	httpx.WriteError(w, http.StatusInternalServerError, "search_failed", "search failed", nil)
	return nil, false
}

// GET /authors?size=1000&after=<base64 or json>
func (s *Server) ListAuthors(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, "authors", s.Catalog.ListAuthors)
}

// GET /titles?size=1000&after=<base64 or json>
func (s *Server) ListTitles(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, "titles", s.Catalog.ListTitles)
}

type listFunc func(ctx context.Context, after string, size int) ([]storage.Bucket, string, error)

func (s *Server) list(w http.ResponseWriter, r *http.Request, name string, fn listFunc) {
	q := r.URL.Query()
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	page, next, err := fn(ctx, q.Get("after"), httpx.AtoiDefault(q.Get("size"), storage.DefaultListSize))
	if errors.Is(err, storage.ErrBadCursor) {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid 'after' parameter", err.Error())
		return
	}
	if err != nil {
		logger.For(ctx).WithError(err).WithField("list", name).Error("store.list.failed")
		httpx.WriteError(w, http.StatusInternalServerError, "store_error", "failed to list "+name, nil)
		return
	}
	out, err := shaping.ShapeBuckets(name, page, next)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, page)
		return
	}
	httpx.WriteRawJSON(w, http.StatusOK, out)
}

// GET /publications/{id}
func (s *Server) GetPublication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.Search.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "publication not found", id)
		return
	}
	if err != nil {
		logger.For(r.Context()).WithError(err).WithField("id", id).Error("store.get.failed")
		httpx.WriteError(w, http.StatusInternalServerError, "store_error", "failed to load publication", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		publication.Record
		Description string `json:"description"`
	}{rec, search.ToDTO(rec).Description})
}

// POST /publications  body: publication record JSON
func (s *Server) CreatePublication(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "failed to read body", err.Error())
		return
	}
	if err := schema.ValidateRecord(body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_record", "record does not match schema", err.Error())
		return
	}
	var rec publication.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json body", err.Error())
		return
	}
	rec.Annotation = sanitize.Text(rec.Annotation)

	id, err := s.Catalog.Save(r.Context(), rec)
	if err != nil {
		logger.For(r.Context()).WithError(err).Error("store.save.failed")
		httpx.WriteError(w, http.StatusInternalServerError, "store_error", "failed to save publication", nil)
		return
	}
	logger.For(r.Context()).WithFields(logrus.Fields{"id": id, "kind": rec.Kind}).Info("publication.created")
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DELETE /publications/{id}
func (s *Server) DeletePublication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.Catalog.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "publication not found", id)
		return
	}
	if err != nil {
		logger.For(r.Context()).WithError(err).WithField("id", id).Error("store.delete.failed")
		httpx.WriteError(w, http.StatusInternalServerError, "store_error", "failed to delete publication", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
