package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"pubcat/internal/config"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubcat.log")
	log := Setup(config.LoggingConfig{Level: "debug", Path: path, JSON: true})
	t.Cleanup(func() {
		log.SetOutput(os.Stdout)
		log.SetLevel(logrus.InfoLevel)
	})

	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", log.GetLevel())
	}

	ctx := ContextWithID(context.Background(), "trace-1")
	For(ctx).Info("store.save")
	Track(ctx, "search")()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "store.save" || entry["request_id"] != "trace-1" {
		t.Errorf("unexpected entry %v", entry)
	}
	if !strings.Contains(lines[1], "search completed") {
		t.Errorf("expected Track line, got %s", lines[1])
	}
}

func TestIDFrom(t *testing.T) {
	if IDFrom(context.Background()) != "" {
		t.Error("expected empty id")
	}
	if IDFrom(ContextWithID(context.Background(), "x")) != "x" {
		t.Error("expected stored id")
	}
}
