// Package tagrules derives frontmatter properties for a document from its title
// using an ordered list of substring rules.
package tagrules

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TagKey is the frontmatter key rules append tags to.
const TagKey = "tag"

// Rule applies Properties to every title containing Match, case-insensitively.
type Rule struct {
	Match string   `yaml:"match"`
	Tags  []string `yaml:"tags"`
	Type  string   `yaml:"type"`
}

// Properties is the frontmatter a rule set produces.
type Properties struct {
	Type string   `yaml:"type,omitempty"`
	Tags []string `yaml:"tag"`
}

// DefaultRules mirrors the document categories of a typical scanned-notes inbox.
var DefaultRules = []Rule{
	{Match: "korean", Tags: []string{"learn", "sync"}, Type: "korean"},
	{Match: "kalibre", Tags: []string{"kalibre", "sync"}},
	{Match: "reporty", Tags: []string{"reporty", "sync"}},
	{Match: "personal", Tags: []string{"personal", "sync"}},
	{Match: "dreams", Tags: []string{"personal", "sync"}, Type: "dreams"},
}

// Apply evaluates rules in order against title. Tags accumulate without
// duplicates in first-seen order; a later rule's type overrides an earlier one.
func Apply(rules []Rule, title string) Properties {
	props := Properties{Tags: []string{}}
	seen := map[string]struct{}{}
	lower := strings.ToLower(title)
	for _, r := range rules {
		if r.Match == "" || !strings.Contains(lower, strings.ToLower(r.Match)) {
			continue
		}
		for _, t := range r.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			props.Tags = append(props.Tags, t)
		}
		if r.Type != "" {
			props.Type = r.Type
		}
	}
	return props
}

// Frontmatter renders props as a delimited YAML block ready to prefix a note.
func Frontmatter(props Properties) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(props); err != nil {
		return "", fmt.Errorf("tagrules: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("tagrules: encode: %w", err)
	}
	return "---\n" + buf.String() + "---\n", nil
}
