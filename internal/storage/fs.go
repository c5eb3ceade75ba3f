package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/checksum"
)

const filePerms = 0o644

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// Abs resolves a relative path against the root and rejects any result that
// escapes it (directory traversal).
func (f *FS) Abs(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", rel, apperr.ErrPathEscape)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: %s: %w", rel, apperr.ErrPathEscape)
	}
	return abs, nil
}

// Walk visits regular files under dir in lexical order. Directories whose name
// starts with a dot (.obsidian, .git, .trash) are skipped.
func (f *FS) Walk(dir string, fn WalkFunc) error {
	base, err := f.Abs(dir)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), d)
	})
	if err != nil {
		return fmt.Errorf("storage: walk %s: %w", base, err)
	}
	return nil
}

// Exists reports whether rel names an existing regular file.
func (f *FS) Exists(rel string) bool {
	abs, err := f.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// Read returns the raw bytes of a file.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.Abs(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write atomically replaces rel with content when the content differs.
func (f *FS) Write(rel string, content []byte) (bool, error) {
	abs, err := f.Abs(rel)
	if err != nil {
		return false, err
	}
	if existing, err := os.ReadFile(abs); err == nil && checksum.Sum(existing) == checksum.Sum(content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return false, fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := writeAtomic(abs, bytes.NewReader(content), filePerms); err != nil {
		return false, fmt.Errorf("storage: write %s: %w", rel, err)
	}
	return true, nil
}

// Copy copies src to rel. An identical destination is left untouched.
func (f *FS) Copy(src, rel string) (bool, error) {
	abs, err := f.Abs(rel)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", src, err)
	}
	if same, err := sameContent(src, abs); err != nil {
		return false, err
	} else if same {
		return false, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return false, fmt.Errorf("storage: open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return false, fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := writeAtomic(abs, in, info.Mode().Perm()|0o200); err != nil {
		return false, fmt.Errorf("storage: copy %s: %w", rel, err)
	}
	if err := os.Chtimes(abs, info.ModTime(), info.ModTime()); err != nil {
		return true, fmt.Errorf("storage: chtimes %s: %w", rel, err)
	}
	return true, nil
}

// Delete removes rel; a file that is already gone is treated as success.
func (f *FS) Delete(rel string) (bool, error) {
	abs, err := f.Abs(rel)
	if err != nil {
		return false, err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return true, nil
}

// writeAtomic replaces path with the contents of r. atomic.WriteFile creates
// new files with temp-file permissions, so the mode is set afterwards.
func writeAtomic(path string, r io.Reader, perm os.FileMode) error {
	if err := atomic.WriteFile(path, r); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

func sameContent(src, dst string) (bool, error) {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat %s: %w", dst, err)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", src, err)
	}
	if srcInfo.Size() != dstInfo.Size() {
		return false, nil
	}
	a, err := fileSum(src)
	if err != nil {
		return false, err
	}
	b, err := fileSum(dst)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

func fileSum(p string) (string, error) {
	fh, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", p, err)
	}
	defer fh.Close()
	return checksum.SumReader(fh)
}
