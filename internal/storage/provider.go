// Package storage provides root-confined file access for the vault and the
// publishing target.
package storage

import "io/fs"

// WalkFunc receives the slash-separated path of a regular file relative to the root.
type WalkFunc func(rel string, d fs.DirEntry) error

// Provider is the interface for root-confined file operations. Every path is
// relative to the root; paths escaping the root are rejected.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Abs resolves rel to an absolute path inside the root.
	Abs(rel string) (string, error)
	// Walk visits every regular file under dir, skipping hidden directories.
	Walk(dir string, fn WalkFunc) error
	// Exists reports whether rel names an existing regular file.
	Exists(rel string) bool
	// Read returns the raw bytes of rel.
	Read(rel string) ([]byte, error)
	// Write atomically writes content to rel unless it already holds exactly
	// that content. It reports whether the file changed.
	Write(rel string, content []byte) (bool, error)
	// Copy copies the file at the absolute path src to rel, keeping its
	// modification time. It reports whether the destination changed.
	Copy(src, rel string) (bool, error)
	// Delete removes rel. A missing file is not an error; removed reports
	// whether anything was deleted.
	Delete(rel string) (removed bool, err error)
}
