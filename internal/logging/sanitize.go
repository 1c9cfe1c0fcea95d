package logging

import (
	"os"
	"path/filepath"
	"strings"
)

// SanitizePath shortens paths under the user's home directory to ~/... so
// log lines do not leak the account name.
func SanitizePath(p string) string {
	s := strings.TrimSpace(p)
	if s == "" {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return s
	}
	if s == home {
		return "~"
	}
	if rel, err := filepath.Rel(home, s); err == nil && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) {
		return filepath.Join("~", rel)
	}
	return s
}
