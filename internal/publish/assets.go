package publish

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/starford/wikisync/internal/models"
)

// fileIndex maps a base name to the first vault path carrying it, in walk order.
type fileIndex map[string]string

func (idx fileIndex) add(rel string) {
	base := path.Base(rel)
	if _, ok := idx[base]; !ok {
		idx[base] = rel
	}
}

// Resolve maps a reference identifier to a vault-relative path. It tries the
// identifier as a vault path, then under the static directory, then any vault
// file with the same base name, each also with a ".md" suffix.
func (s *Syncer) resolve(identifier string, idx fileIndex) (string, bool) {
	id := strings.TrimPrefix(path.Clean("/"+identifier), "/")
	candidates := []string{id}
	if s.settings.StaticDir != "" {
		candidates = append(candidates, path.Join(s.settings.StaticDir, id))
	}
	for _, c := range candidates {
		if s.vault.Exists(c) {
			return c, true
		}
	}
	for _, name := range []string{path.Base(id), path.Base(id) + ".md"} {
		if rel, ok := idx[name]; ok {
			return rel, true
		}
	}
	if s.vault.Exists(id + ".md") {
		return id + ".md", true
	}
	return "", false
}

// copyIfExists copies the vault file rel to dest unless it is missing or dest
// was already written this run. Static files are also skipped when their
// source was copied under any name. It returns the destination when a copy
// happened.
func (s *Syncer) copyIfExists(r *run, rel, dest, origin string) (string, bool) {
	abs, err := s.vault.Abs(rel)
	if err != nil {
		s.warn(r, "publish: bad asset path", rel, err.Error())
		return "", false
	}
	if _, done := r.written[dest]; done {
		return "", false
	}
	if _, done := r.copied[abs]; done && origin == OriginStatic {
		return "", false
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.warn(r, "publish: asset missing", rel, "does not exist")
		} else {
			s.warn(r, "publish: asset unreadable", rel, err.Error())
		}
		return "", false
	}

	changed, err := s.target.Copy(abs, dest)
	if err != nil {
		s.warn(r, "publish: asset copy failed", rel, err.Error())
		return "", false
	}
	r.copied[abs] = struct{}{}
	r.written[dest] = struct{}{}
	r.report.Assets = append(r.report.Assets, CopiedAsset{Source: rel, Dest: dest, Origin: origin, Changed: changed})
	s.logger.Debug("publish: copied asset",
		slog.String("source", rel),
		slog.String("dest", dest),
		slog.String("origin", origin),
		slog.Bool("changed", changed))
	return dest, true
}

// copyReferenced copies the assets referenced by published notes. Only one
// level is followed: copied files are not scanned for further references.
// Referenced notes are never copied; a note reaches the target only by being
// eligible itself.
func (s *Syncer) copyReferenced(r *run) {
	for _, p := range r.refs {
		rel, ok := s.resolve(p.ref.Target, r.index)
		if !ok {
			if p.ref.Kind == models.RefEmbed {
				s.warn(r, "publish: referenced file not found", p.from, p.ref.Target)
			} else {
				s.logger.Debug("publish: link target not in vault",
					slog.String("path", p.from), slog.String("target", p.ref.Target))
			}
			continue
		}
		if strings.HasSuffix(rel, ".md") {
			continue
		}
		s.copyIfExists(r, rel, s.slugger.Slug(p.ref.Target), OriginReference)
	}
}

// copyStatic mirrors the vault's static directory into the target root,
// skipping files already copied and paths matching an excluded pattern.
func (s *Syncer) copyStatic(r *run) {
	dir := s.settings.StaticDir
	if dir == "" {
		return
	}
	root, err := s.vault.Abs(dir)
	if err != nil {
		s.warn(r, "publish: bad static dir", dir, err.Error())
		return
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		s.logger.Debug("publish: no static dir", slog.String("path", dir))
		return
	}

	err = s.vault.Walk(dir, func(rel string, _ fs.DirEntry) error {
		if pattern, excluded := s.excluded(rel); excluded {
			s.logger.Debug("publish: static file excluded", slog.String("path", rel), slog.String("pattern", pattern))
			return nil
		}
		dest := strings.TrimPrefix(strings.TrimPrefix(rel, path.Clean(dir)), "/")
		if dest == s.settings.MappingFile {
			s.warn(r, "publish: static file shadows mapping file", rel, "skipped")
			return nil
		}
		s.copyIfExists(r, rel, dest, OriginStatic)
		return nil
	})
	if err != nil {
		s.warn(r, "publish: static walk failed", dir, err.Error())
	}
}

func (s *Syncer) excluded(rel string) (string, bool) {
	lower := strings.ToLower(rel)
	for _, p := range s.settings.ExcludedStaticPatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}
