package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pubcat.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		env      map[string]string
		validate func(*testing.T, Config, error)
	}{
		{
			name: "File values",
			body: "http:\n  host: 0.0.0.0\n  port: 9090\nstorage:\n  path: /tmp/cat.db\ningest:\n  threads: 8\n",
			validate: func(t *testing.T, c Config, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if c.HTTP.Address() != "0.0.0.0:9090" || c.Storage.Path != "/tmp/cat.db" || c.Ingest.Threads != 8 {
					t.Errorf("unexpected config %+v", c)
				}
				if c.GRPC.Port != 50051 {
					t.Errorf("expected default grpc port, got %d", c.GRPC.Port)
				}
			},
		},
		{
			name: "Env overrides",
			body: "storage:\n  path: file.db\n",
			env:  map[string]string{"PUBCAT_DB_PATH": "env.db", "PUBCAT_GRPC_ADDR": ":6000", "PUBCAT_LOG_JSON": "true"},
			validate: func(t *testing.T, c Config, err error) {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if c.Storage.Path != "env.db" || c.GRPC.Port != 6000 || c.GRPC.Host != "" || !c.Logging.JSON {
					t.Errorf("env not applied: %+v", c)
				}
			},
		},
		{
			name: "Invalid threads",
			body: "ingest:\n  threads: 0\n",
			validate: func(t *testing.T, c Config, err error) {
				var ie invalidErr
				if !errors.As(err, &ie) {
					t.Errorf("expected invalidErr, got %v", err)
				}
			},
		},
		{
			name: "Broken YAML",
			body: "http: [",
			validate: func(t *testing.T, c Config, err error) {
				if err == nil {
					t.Errorf("expected parse error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(writeFile(t, tt.body))
			tt.validate(t, cfg, err)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.FullURL() != "http://localhost:8080" {
		t.Errorf("unexpected default url %s", cfg.HTTP.FullURL())
	}
}
