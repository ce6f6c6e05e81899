package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleWhitelist = `users:
  - id: "42"
    platform: http
    role: editor
  - id: "7"
    role: reader
`

func TestWhitelist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.yaml")
	if err := os.WriteFile(path, []byte(sampleWhitelist), 0644); err != nil {
		t.Fatal(err)
	}
	wl, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		user, platform, role string
		denied               bool
	}{
		{"42", "http", RoleEditor, false},
		{"42", "grpc", "", true},
		{"7", "anything", RoleReader, false},
		{"", "http", "", true},
		{"13", "http", "", true},
	}
	for _, tt := range tests {
		role, err := wl.Check(tt.user, tt.platform)
		if tt.denied != errors.Is(err, ErrDenied) || role != tt.role {
			t.Errorf("Check(%q,%q) = %q, %v", tt.user, tt.platform, role, err)
		}
	}
}

func TestLoadEmptyPathDeniesAll(t *testing.T) {
	wl, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := wl.Check("42", "http"); !errors.Is(err, ErrDenied) {
		t.Errorf("expected ErrDenied, got %v", err)
	}
}

func TestAllows(t *testing.T) {
	if !Allows(RoleEditor, RoleReader) || !Allows(RoleReader, RoleReader) || Allows(RoleReader, RoleEditor) {
		t.Errorf("unexpected role ordering")
	}
}
