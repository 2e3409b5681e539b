// Package sandbox manages a root-confined scratch directory for data that
// must never escape a configured boundary: spooled ingestion downloads and
// cached logo blobs go through here so a malicious or malformed upstream
// URL can't be turned into a path-traversal write outside the configured
// data directory. The generator writes its artifacts to its own output
// directory and does not use a Sandbox.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Sandbox confines file operations under Root.
type Sandbox struct {
	Root string
}

// New creates (if needed) and returns a Sandbox rooted at root.
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create root: %w", err)
	}
	return &Sandbox{Root: abs}, nil
}

// Resolve joins name onto the sandbox root and verifies the result is still
// within Root, rejecting any `..` escape attempt. The check is lexical:
// symlinks under Root are not resolved, so a link pointing outside Root
// is not detected.
func (s *Sandbox) Resolve(name string) (string, error) {
	joined := filepath.Join(s.Root, name)
	rel, err := filepath.Rel(s.Root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("sandbox: path %q escapes root", name)
	}
	return joined, nil
}

// CreateTemp creates a new uniquely-named file under a subdirectory (e.g.
// "ingest-spool", "logo-cache"), creating the subdirectory if needed.
func (s *Sandbox) CreateTemp(subdir, pattern string) (*os.File, error) {
	dir, err := s.Resolve(subdir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create subdir %q: %w", subdir, err)
	}
	return os.CreateTemp(dir, pattern)
}

// NewName generates a random filename suitable for content-addressed or
// generated artifacts (the caller supplies the extension).
func NewName(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return uuid.NewString() + ext
}
