package publish

import (
	"time"

	"github.com/starford/wikisync/internal/mapping"
)

// Report summarizes one sync run.
type Report struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Published  []PublishedNote `json:"published"`
	Skipped    []SkippedNote   `json:"skipped"`
	Assets     []CopiedAsset   `json:"assets"`
	Deleted    []string        `json:"deleted"`
	Warnings   []string        `json:"warnings"`
	Mapping    mapping.Mapping `json:"-"`
}

// PublishedNote is an eligible note written to the target.
type PublishedNote struct {
	Path    string `json:"path"`
	Slug    string `json:"slug"`
	Changed bool   `json:"changed"`
}

// SkippedNote is a note that was not published, with the reason.
type SkippedNote struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Failed bool   `json:"failed"` // true for I/O or parse errors, false for ineligible notes
}

// CopiedAsset is a binary file copied into the target.
type CopiedAsset struct {
	Source  string `json:"source"` // vault-relative
	Dest    string `json:"dest"`   // target-relative
	Origin  string `json:"origin"` // "reference" or "static"
	Changed bool   `json:"changed"`
}

// Asset origins.
const (
	OriginReference = "reference"
	OriginStatic    = "static"
)

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures counts skipped notes that failed rather than being ineligible.
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Skipped {
		if s.Failed {
			n++
		}
	}
	return n
}
