// Package mapping persists the vault-path → target-slug record between sync runs.
package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"

	"github.com/starford/wikisync/internal/apperr"
)

// DefaultFileName is the mapping file name inside the target root.
const DefaultFileName = "file_mapping.json"

// Mapping maps a vault-relative note path to the slug it was published under.
type Mapping map[string]string

// Load reads the mapping at path. A missing file is an empty mapping, not an
// error. A file that is not a JSON object of strings wraps apperr.ErrMappingCorrupt.
func Load(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Mapping{}, nil
		}
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Mapping{}, nil
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("mapping: decode %s: %w: %v", path, apperr.ErrMappingCorrupt, err)
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// Save writes m to path in full, replacing any previous file atomically.
func Save(m Mapping, path string) error {
	if m == nil {
		m = Mapping{}
	}
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("mapping: encode: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mapping: mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("mapping: write %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("mapping: chmod %s: %w", path, err)
	}
	return nil
}

// Reconcile returns the keys present in old but absent from next, sorted.
func Reconcile(old, next Mapping) []string {
	var stale []string
	for k := range old {
		if _, ok := next[k]; !ok {
			stale = append(stale, k)
		}
	}
	sort.Strings(stale)
	return stale
}

// Slugs returns the set of slugs owned by m.
func (m Mapping) Slugs() map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for _, s := range m {
		out[s] = struct{}{}
	}
	return out
}
