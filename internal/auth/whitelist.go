package auth

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrDenied = errors.New("access denied")

const (
	RoleReader = "reader"
	RoleEditor = "editor"
)

type UserEntry struct {
	ID       string `yaml:"id"`
	Platform string `yaml:"platform"`
	Role     string `yaml:"role"`
}

type Whitelist struct {
	Users []UserEntry `yaml:"users"`
}

// Load reads a whitelist file. An empty path yields an empty whitelist,
// which denies every check.
func Load(path string) (*Whitelist, error) {
	if path == "" {
		return &Whitelist{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whitelist: %w", err)
	}
	var wl Whitelist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse whitelist: %w", err)
	}
	return &wl, nil
}

// Check returns the role of userID on platform. An entry with an empty
// platform matches any platform.
func (w *Whitelist) Check(userID, platform string) (string, error) {
	if userID != "" {
		for _, u := range w.Users {
			if u.ID == userID && (u.Platform == "" || u.Platform == platform) {
				return u.Role, nil
			}
		}
	}
	return "", fmt.Errorf("%w: user %q not in whitelist for platform %q", ErrDenied, userID, platform)
}

// Allows reports whether role grants want. Editors can do what readers can.
func Allows(role, want string) bool {
	if role == want {
		return true
	}
	return role == RoleEditor && want == RoleReader
}
