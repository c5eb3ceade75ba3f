package publish

import (
	"fmt"

	"github.com/starford/wikisync/internal/models"
	"github.com/starford/wikisync/internal/parser"
)

// Prepared is a note evaluated and rewritten but not yet written.
type Prepared struct {
	Path       string             `json:"path"`
	Slug       string             `json:"slug"`
	Eligible   bool               `json:"eligible"`
	Reason     string             `json:"reason"`
	Content    string             `json:"content,omitempty"`
	References []models.Reference `json:"references,omitempty"`
}

// Prepare reads a vault note, evaluates eligibility and, for eligible notes,
// rewrites its content and collects its references. It never writes.
func (s *Syncer) Prepare(rel string) (*Prepared, error) {
	data, err := s.vault.Read(rel)
	if err != nil {
		return nil, err
	}
	note, err := parser.ParseNote(rel, data)
	if err != nil {
		return nil, err
	}

	ok, reason := s.pred.Check(note.Frontmatter)
	p := &Prepared{Path: rel, Slug: s.NoteSlug(rel), Eligible: ok, Reason: reason}
	if !ok {
		return p, nil
	}

	content := string(note.Content)
	p.References = parser.FindReferences(content)
	p.Content = s.rw.Rewrite(content)
	if p.Slug == ".md" {
		return nil, fmt.Errorf("publish: %s produces an empty slug", rel)
	}
	return p, nil
}
