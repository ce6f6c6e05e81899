package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"pubcat/internal/config"
)

type ctxKey string

const RequestIDKey ctxKey = "requestId"

const slowThreshold = 500 * time.Millisecond

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		ForceColors:     true,
		DisableColors:   false,
	})
}

// Setup configures the standard logger from cfg and returns it. A log file
// that cannot be opened is reported and skipped; stdout always stays.
func Setup(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.StandardLogger()

	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	} else if cfg.Level != "" {
		log.WithField("level", cfg.Level).Warn("logger.level.unknown")
	}

	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05", ForceColors: cfg.Path == "",
		})
	}

	writers := []io.Writer{os.Stdout}
	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			writers = append(writers, f)
		} else {
			log.WithError(err).WithField("path", cfg.Path).Warn("logger.file.open_failed")
		}
	}
	log.SetOutput(io.MultiWriter(writers...))
	return log
}

func For(ctx context.Context) *logrus.Entry {
	id, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return logrus.WithField("request_id", id)
}

func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func Track(ctx context.Context, msg string) func() {
	start := time.Now()
	return func() {
		dur := time.Since(start)
		entry := For(ctx).WithField("duration", dur.String())

		if dur > slowThreshold {
			entry.Warnf("%s completed (SLOW)", msg)
		} else {
			entry.Debugf("%s completed", msg)
		}
	}
}
