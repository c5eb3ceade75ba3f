// Package parser extracts frontmatter and embed/link references from vault notes.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/starford/wikisync/internal/models"
)

var bom = []byte("\xef\xbb\xbf")

// ParseNote decodes the frontmatter of raw note bytes. A note without a
// frontmatter block yields an empty (non-nil) map. Malformed frontmatter is
// returned as an error so the caller can skip the note.
func ParseNote(path string, data []byte) (*models.Note, error) {
	trimmed := bytes.TrimPrefix(data, bom)
	trimmed = bytes.TrimLeft(trimmed, "\n\r")

	var fm map[string]any
	if _, err := frontmatter.Parse(bytes.NewReader(trimmed), &fm); err != nil {
		return nil, fmt.Errorf("parser: frontmatter %s: %w", path, err)
	}
	if fm == nil {
		fm = map[string]any{}
	}

	return &models.Note{
		Path:        path,
		Frontmatter: fm,
		Content:     data,
	}, nil
}

// ParseReference splits the inner text of [[...]] into target and alias. Only
// the first "|" separates them, so aliases may themselves contain "|".
// It reports false when the target is empty.
func ParseReference(kind, inner string) (models.Reference, bool) {
	target, alias, _ := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)
	if target == "" {
		return models.Reference{}, false
	}
	return models.Reference{Kind: kind, Target: target, Alias: alias}, true
}
