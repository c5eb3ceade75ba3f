// Package testutil provides shared test helpers for building vaults and targets on disk.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/wikisync/internal/storage"
)

// TestRoot creates a temporary directory wrapped in a storage.FS.
func TestRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes data to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// WriteNote writes a Markdown note with a YAML frontmatter block. An empty
// frontmatter writes the body alone.
func WriteNote(t *testing.T, root, rel, frontmatter, body string) string {
	t.Helper()
	content := body
	if frontmatter != "" {
		content = "---\n" + frontmatter + "\n---\n" + body
	}
	return WriteFile(t, root, rel, []byte(content))
}

// ReadFile returns the contents of root/rel or fails the test.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// Exists reports whether root/rel exists.
func Exists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

// Snapshot returns every file under root keyed by slash-separated relative
// path, for comparing whole trees.
func Snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}
