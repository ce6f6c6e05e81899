package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"pubcat/internal/config"
	"pubcat/internal/ingest"
	"pubcat/internal/logger"
	"pubcat/internal/metrics"
	"pubcat/internal/storage"
)

// exitNothingNew tells wrapper scripts the container was already ingested.
const exitNothingNew = 10

func main() {
	configPath := flag.String("config", "pubcat.yaml", "Path to config file")
	srcPath := flag.String("src", "", "Path to ZIP container or JSONL file")
	dstPath := flag.String("out", "", "Path to bulk JSONL output (optional)")
	rescan := flag.Bool("rescan", false, "Force rescan of already ingested files")
	quiet := flag.Bool("quiet", false, "Hide the progress bar")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("bulker.config")
	}
	log := logger.Setup(cfg.Logging)

	if *srcPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *rescan {
		cfg.Ingest.Rescan = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		log.WithError(err).Fatal("bulker.store")
	}
	defer st.Close()

	in := ingest.New(st, log, cfg.Ingest)
	if !*quiet {
		in.WithProgress(os.Stderr)
	}

	out := *dstPath
	if out == "" && cfg.Ingest.OutputDir != "" {
		base := strings.TrimSuffix(filepath.Base(*srcPath), filepath.Ext(*srcPath))
		out = filepath.Join(cfg.Ingest.OutputDir, base+".jsonl")
	}
	if out != "" {
		f, err := openBulk(out, cfg.Ingest.Rescan)
		if err != nil {
			log.WithError(err).WithField("path", out).Fatal("bulker.output")
		}
		defer f.Close()
		in.WithBulk(ingest.NewBulkWriter(f, cfg.Ingest.IndexName))
	}

	container := filepath.Base(*srcPath)
	stats, err := runIngest(ctx, in, *srcPath)
	if perr := metrics.PushIngest(cfg.Metrics.PushgatewayURL, container); perr != nil {
		log.WithError(perr).Warn("bulker.push_failed")
	}
	if err != nil {
		st.Close()
		log.WithError(err).WithField("container", container).Fatal("bulker.failed")
	}

	if stats.NothingNew() {
		log.WithField("container", container).Info("No new files to process.")
		st.Close()
		os.Exit(exitNothingNew)
	}
}

func runIngest(ctx context.Context, in *ingest.Ingester, src string) (ingest.Stats, error) {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".jsonl", ".ndjson", ".json":
		f, err := os.Open(src)
		if err != nil {
			return ingest.Stats{}, err
		}
		defer f.Close()
		return in.ImportJSONL(ctx, f, filepath.Base(src))
	default:
		return in.IngestZip(ctx, src)
	}
}

func openBulk(path string, truncate bool) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	mode := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if truncate {
		mode = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	}
	return os.OpenFile(path, mode, 0644)
}
