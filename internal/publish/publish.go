// Package publish is the vault-to-wiki synchronization engine.
//
// A run loads the previous path mapping, publishes every eligible note with
// its links rewritten, copies the assets those notes reference and the
// vault's static area, deletes target files of notes that are gone, and
// persists the new mapping. Per-note failures are logged and skipped; only
// mapping load/save and vault traversal failures abort a run.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/wikisync/internal/mapping"
	"github.com/starford/wikisync/internal/models"
	"github.com/starford/wikisync/internal/predicate"
	"github.com/starford/wikisync/internal/rewrite"
	"github.com/starford/wikisync/internal/slug"
	"github.com/starford/wikisync/internal/storage"
)

// Settings are the publishing rules of a Syncer.
type Settings struct {
	RequiredType           string
	TargetTags             []string
	FilterToken            string
	ExcludedStaticPatterns []string
	StripSections          []string
	StaticDir              string // vault-relative
	MappingFile            string // target-relative
	FlattenPaths           bool
}

// Syncer publishes a vault into a target tree.
type Syncer struct {
	vault    storage.Provider
	target   storage.Provider
	settings Settings
	pred     predicate.Predicate
	slugger  slug.Slugger
	rw       *rewrite.Rewriter
	logger   *slog.Logger
}

// New creates a Syncer.
func New(vault, target storage.Provider, settings Settings, logger *slog.Logger) *Syncer {
	if settings.MappingFile == "" {
		settings.MappingFile = mapping.DefaultFileName
	}
	if logger == nil {
		logger = slog.Default()
	}
	slugger := slug.Slugger{FilterToken: settings.FilterToken}
	return &Syncer{
		vault:    vault,
		target:   target,
		settings: settings,
		pred:     predicate.New(settings.RequiredType, settings.TargetTags),
		slugger:  slugger,
		rw:       rewrite.New(slugger, nil, settings.StripSections),
		logger:   logger,
	}
}

// pendingRef is a reference collected from a published note, resolved after
// all notes are written.
type pendingRef struct {
	from string
	ref  models.Reference
}

// run holds the state of one invocation.
type run struct {
	report  *Report
	copied  map[string]struct{} // absolute vault paths copied this run
	written map[string]struct{} // target paths written this run
	refs    []pendingRef
	index   fileIndex
}

// Run executes one full sync. The returned error is non-nil only for fatal
// failures, in which case the persisted mapping is left as it was.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	r := &run{
		report:  &Report{StartedAt: time.Now()},
		copied:  make(map[string]struct{}),
		written: make(map[string]struct{}),
	}

	mappingPath, err := s.target.Abs(s.settings.MappingFile)
	if err != nil {
		return nil, fmt.Errorf("publish: mapping path: %w", err)
	}
	old, err := mapping.Load(mappingPath)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("publish: mapping loaded", slog.String("path", mappingPath), slog.Int("entries", len(old)))

	notes, idx, err := s.scan()
	if err != nil {
		return nil, err
	}
	r.index = idx

	next := mapping.Mapping{}
	for _, rel := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.publishNote(r, rel, next)
	}

	s.copyReferenced(r)
	s.copyStatic(r)
	s.deleteStale(r, old, next)

	if err := mapping.Save(next, mappingPath); err != nil {
		return nil, err
	}
	r.report.Mapping = next
	r.report.FinishedAt = time.Now()

	s.logger.Info("publish: run complete",
		slog.Int("published", len(r.report.Published)),
		slog.Int("skipped", len(r.report.Skipped)),
		slog.Int("assets", len(r.report.Assets)),
		slog.Int("deleted", len(r.report.Deleted)),
		slog.Int("warnings", len(r.report.Warnings)),
		slog.Duration("duration", r.report.Duration()))
	return r.report, nil
}

// scan lists the vault's notes and indexes every file by base name.
func (s *Syncer) scan() ([]string, fileIndex, error) {
	idx := fileIndex{}
	var notes []string
	err := s.vault.Walk("", func(rel string, _ fs.DirEntry) error {
		idx.add(rel)
		if strings.HasSuffix(rel, ".md") {
			notes = append(notes, rel)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("publish: scan vault: %w", err)
	}
	return notes, idx, nil
}

func (s *Syncer) publishNote(r *run, rel string, next mapping.Mapping) {
	p, err := s.Prepare(rel)
	if err != nil {
		s.logger.Warn("publish: note failed", slog.String("path", rel), slog.String("error", err.Error()))
		r.report.Skipped = append(r.report.Skipped, SkippedNote{Path: rel, Reason: err.Error(), Failed: true})
		return
	}
	if !p.Eligible {
		s.logger.Info("publish: skipped note", slog.String("path", rel), slog.String("reason", p.Reason))
		r.report.Skipped = append(r.report.Skipped, SkippedNote{Path: rel, Reason: p.Reason})
		return
	}

	changed, err := s.target.Write(p.Slug, []byte(p.Content))
	if err != nil {
		s.logger.Warn("publish: write failed", slog.String("path", rel), slog.String("slug", p.Slug), slog.String("error", err.Error()))
		r.report.Skipped = append(r.report.Skipped, SkippedNote{Path: rel, Reason: err.Error(), Failed: true})
		return
	}

	s.logger.Info("publish: published note",
		slog.String("path", rel),
		slog.String("slug", p.Slug),
		slog.String("reason", p.Reason),
		slog.Bool("changed", changed))

	next[rel] = p.Slug
	if abs, err := s.vault.Abs(rel); err == nil {
		r.copied[abs] = struct{}{}
	}
	for _, ref := range p.References {
		r.refs = append(r.refs, pendingRef{from: rel, ref: ref})
	}
	r.report.Published = append(r.report.Published, PublishedNote{Path: rel, Slug: p.Slug, Changed: changed})
}

// NoteSlug names the target file of a vault note.
func (s *Syncer) NoteSlug(rel string) string {
	name := rel
	if s.settings.FlattenPaths {
		name = path.Base(rel)
	}
	stem, _ := slug.SplitExt(name)
	return s.slugger.Slug(stem) + ".md"
}

// warn logs a non-fatal problem and records it in the report.
func (s *Syncer) warn(r *run, msg, subject, detail string) {
	s.logger.Warn(msg, slog.String("path", subject), slog.String("detail", detail))
	r.report.Warnings = append(r.report.Warnings, subject+": "+detail)
}
