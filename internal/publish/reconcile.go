package publish

import (
	"log/slog"

	"github.com/starford/wikisync/internal/mapping"
)

// deleteStale removes the target files of notes present in the previous
// mapping but not in this run's. A slug still owned by a current entry (a note
// that moved but kept its name) and the mapping file itself are never deleted.
func (s *Syncer) deleteStale(r *run, old, next mapping.Mapping) {
	live := next.Slugs()
	for _, key := range mapping.Reconcile(old, next) {
		target := old[key]
		if _, ok := live[target]; ok {
			s.logger.Info("publish: stale entry kept, slug still published",
				slog.String("path", key), slog.String("slug", target))
			continue
		}
		if target == "" || target == s.settings.MappingFile {
			s.warn(r, "publish: refusing to delete", key, "slug "+target)
			continue
		}

		removed, err := s.target.Delete(target)
		if err != nil {
			s.warn(r, "publish: delete failed", target, err.Error())
			continue
		}
		if !removed {
			s.logger.Info("publish: stale file already absent", slog.String("path", key), slog.String("slug", target))
			continue
		}
		s.logger.Info("publish: deleted stale file", slog.String("path", key), slog.String("slug", target))
		r.report.Deleted = append(r.report.Deleted, target)
	}
}
