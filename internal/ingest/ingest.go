// Package ingest loads publications into the catalog from FB2 containers
// (ZIP archives of .fb2 files) and from JSONL record dumps.
package ingest

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"pubcat/internal/config"
	"pubcat/internal/metrics"
	"pubcat/internal/publication"
	"pubcat/internal/sanitize"
	"pubcat/internal/schema"
)

// Store is the part of the catalog the ingester writes to.
type Store interface {
	Save(ctx context.Context, r publication.Record) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Stats summarises one ingest run.
type Stats struct {
	Found   int
	Skipped int
	Saved   int
	Failed  int
}

// NothingNew reports a run that saw sources but added nothing.
func (s Stats) NothingNew() bool { return s.Found > 0 && s.Saved == 0 }

type counters struct {
	found, skipped, saved, failed atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Found:   int(c.found.Load()),
		Skipped: int(c.skipped.Load()),
		Saved:   int(c.saved.Load()),
		Failed:  int(c.failed.Load()),
	}
}

type Ingester struct {
	store    Store
	log      *logrus.Logger
	cfg      config.IngestConfig
	bulk     *BulkWriter
	progress io.Writer
}

func New(store Store, log *logrus.Logger, cfg config.IngestConfig) *Ingester {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return &Ingester{store: store, log: log, cfg: cfg}
}

// WithBulk mirrors every saved record into b.
func (in *Ingester) WithBulk(b *BulkWriter) *Ingester {
	in.bulk = b
	return in
}

// WithProgress draws a progress bar on w during container ingest.
func (in *Ingester) WithProgress(w io.Writer) *Ingester {
	in.progress = w
	return in
}

// IngestZip parses every .fb2 entry of the container at path. Entries whose
// sha1 is already stored are skipped unless rescan is configured.
func (in *Ingester) IngestZip(ctx context.Context, path string) (Stats, error) {
	z, err := zip.OpenReader(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open container: %w", err)
	}
	defer z.Close()

	container := filepath.Base(path)
	var files []*zip.File
	for _, f := range z.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".fb2") {
			files = append(files, f)
		}
	}

	var c counters
	c.found.Store(int64(len(files)))
	bar := in.newBar(len(files), container)

	jobs := make(chan *zip.File)
	var wg sync.WaitGroup
	for i := 0; i < in.cfg.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				in.processEntry(ctx, container, f, &c)
				_ = bar.Add(1)
			}
		}()
	}

feed:
	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	_ = bar.Finish()

	st := c.snapshot()
	in.log.WithFields(logrus.Fields{
		"container": container, "found": st.Found, "skipped": st.Skipped,
		"saved": st.Saved, "failed": st.Failed,
	}).Info("ingest.container.done")
	return st, ctx.Err()
}

func (in *Ingester) processEntry(ctx context.Context, container string, f *zip.File, c *counters) {
	start := time.Now()
	l := in.log.WithFields(logrus.Fields{"container": container, "file": f.Name})

	raw, err := readEntry(f)
	if err != nil {
		l.WithError(err).Warn("ingest.file.read_failed")
		in.fail(container, "error_read", c)
		return
	}

	sum := sha1.Sum(raw)
	sha := hex.EncodeToString(sum[:])
	if in.seen(ctx, sha) {
		metrics.ProcessedFiles.WithLabelValues(container, "skipped").Inc()
		c.skipped.Add(1)
		return
	}

	book, err := ParseFB2(raw)
	if err != nil {
		l.WithError(err).Warn("ingest.file.parse_failed")
		in.saveToWarn(f.Name, raw, err)
		in.fail(container, "error_parse", c)
		return
	}

	m := book.Meta()
	m.ID = sha
	m.Source = publication.Source{Container: container, Filename: f.Name, Sha1: sha, Size: int64(len(raw))}
	if err := in.save(ctx, publication.ToRecord(book.WithMeta(m))); err != nil {
		l.WithError(err).Error("ingest.file.save_failed")
		in.fail(container, "error_save", c)
		return
	}

	c.saved.Add(1)
	metrics.ProcessedFiles.WithLabelValues(container, "success").Inc()
	metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
}

// ImportJSONL saves one record per line of r. Bulk action lines written by
// BulkWriter are ignored, so a bulk file can be imported back. Bad lines are
// counted and logged.
func (in *Ingester) ImportJSONL(ctx context.Context, r io.Reader, source string) (Stats, error) {
	var c counters
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return c.snapshot(), err
		}
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || isBulkAction(line) {
			continue
		}
		c.found.Add(1)
		l := in.log.WithFields(logrus.Fields{"source": source, "line": lineNo})

		if err := schema.ValidateRecord(line); err != nil {
			l.WithError(err).Warn("ingest.line.invalid")
			in.fail(source, "error_parse", &c)
			continue
		}
		var rec publication.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			l.WithError(err).Warn("ingest.line.invalid")
			in.fail(source, "error_parse", &c)
			continue
		}
		if rec.ID != "" && in.seen(ctx, rec.ID) {
			metrics.ProcessedFiles.WithLabelValues(source, "skipped").Inc()
			c.skipped.Add(1)
			continue
		}
		rec.Annotation = sanitize.Text(rec.Annotation)

		if err := in.save(ctx, rec); err != nil {
			l.WithError(err).Error("ingest.line.save_failed")
			in.fail(source, "error_save", &c)
			continue
		}
		c.saved.Add(1)
		metrics.ProcessedFiles.WithLabelValues(source, "success").Inc()
	}

	st := c.snapshot()
	in.log.WithFields(logrus.Fields{
		"source": source, "found": st.Found, "skipped": st.Skipped,
		"saved": st.Saved, "failed": st.Failed,
	}).Info("ingest.jsonl.done")
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("read %s: %w", source, err)
	}
	return st, nil
}

func (in *Ingester) seen(ctx context.Context, id string) bool {
	if in.cfg.Rescan {
		return false
	}
	ok, err := in.store.Exists(ctx, id)
	if err != nil {
		in.log.WithError(err).WithField("id", id).Warn("ingest.exists.failed")
		return false
	}
	return ok
}

func (in *Ingester) save(ctx context.Context, rec publication.Record) error {
	id, err := in.store.Save(ctx, rec)
	if err != nil {
		return err
	}
	if in.bulk != nil {
		rec.ID = id
		if err := in.bulk.Write(rec); err != nil {
			return fmt.Errorf("bulk: %w", err)
		}
	}
	return nil
}

func (in *Ingester) fail(container, status string, c *counters) {
	c.failed.Add(1)
	metrics.ProcessedFiles.WithLabelValues(container, status).Inc()
}

// saveToWarn keeps the raw file and the reason next to it for later review.
func (in *Ingester) saveToWarn(name string, data []byte, cause error) {
	if in.cfg.WarnDir == "" {
		return
	}
	if err := os.MkdirAll(in.cfg.WarnDir, 0755); err != nil {
		in.log.WithError(err).Warn("ingest.warn_dir.failed")
		return
	}
	base := filepath.Join(in.cfg.WarnDir, filepath.Base(name))
	_ = os.WriteFile(base, data, 0644)
	_ = os.WriteFile(base+".log", []byte(cause.Error()+"\n"), 0644)
}

func (in *Ingester) newBar(n int, desc string) *progressbar.ProgressBar {
	if in.progress == nil {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(in.progress),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(in.progress) }),
	)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isBulkAction(line []byte) bool {
	return bytes.HasPrefix(line, []byte(`{"index"`))
}
