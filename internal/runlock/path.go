package runlock

import (
	"os"
	"path/filepath"

	"github.com/starford/wikisync/internal/checksum"
)

// FileName is the lock file name inside a target's .git directory.
const FileName = "wikisync.lock"

// Path returns the lock file for the target root dir. A git checkout keeps
// it under .git, which is never committed; any other target gets a file in
// the system temp directory keyed by the target's resolved path. Nothing is
// ever created in the published tree.
func Path(dir string) string {
	root := dir
	if abs, err := filepath.Abs(dir); err == nil {
		root = abs
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		return filepath.Join(gitDir, FileName)
	}
	return filepath.Join(os.TempDir(), "wikisync-"+checksum.Sum([]byte(root))[:16]+".lock")
}
