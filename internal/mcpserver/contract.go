package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/wikisync/internal/mapping"
	"github.com/starford/wikisync/internal/publish"
)

// RulesURI identifies the publishing rules resource.
const RulesURI = "wikisync://publishing-rules"

// PublishingRules describes, for LLM consumers, which notes the configured
// sync publishes and what their links become.
func PublishingRules(s publish.Settings) string {
	var b strings.Builder
	b.WriteString("# wikisync Publishing Rules\n\n")
	b.WriteString("A vault note is published to the wiki only when its YAML frontmatter\n")
	fmt.Fprintf(&b, "has `type: %s` **and** mentions one of these tags: %s.\n", s.RequiredType, quoteAll(s.TargetTags))
	b.WriteString("A tag matches as a list item of any key, as a scalar value, or as a key name.\n\n")

	b.WriteString("## Example\n\n```markdown\n---\n")
	fmt.Fprintf(&b, "type: %s\ntags:\n", s.RequiredType)
	for _, t := range s.TargetTags {
		fmt.Fprintf(&b, "  - %s\n", t)
	}
	b.WriteString("---\n\nSee [[Other Note|the other note]] and ![[diagram.png]].\n```\n\n")

	b.WriteString("## Rewriting\n\n")
	b.WriteString("1. `![[target|alias]]` becomes `![alias](./slug)` and `[[target|alias]]` becomes `[alias](./slug)`.\n")
	b.WriteString("2. Slugs are lowercase; runs of non-word characters become a single `-`; the file extension is kept.\n")
	n := 3
	if s.FilterToken != "" {
		fmt.Fprintf(&b, "%d. The token `%s` is removed from every generated file name.\n", n, s.FilterToken)
		n++
	}
	if len(s.StripSections) > 0 {
		fmt.Fprintf(&b, "%d. Everything from %s to the end of the note is dropped.\n", n, quoteAll(s.StripSections))
	}

	b.WriteString("\n## Assets\n\n")
	b.WriteString("Embedded and linked files are copied next to the notes under their slug. ")
	if s.StaticDir != "" {
		fmt.Fprintf(&b, "Everything under `%s/` is mirrored as well", s.StaticDir)
		if len(s.ExcludedStaticPatterns) > 0 {
			fmt.Fprintf(&b, ", except paths containing %s", quoteAll(s.ExcludedStaticPatterns))
		}
		b.WriteString(".")
	}
	b.WriteString("\n\nNotes that stop qualifying are deleted from the wiki on the next run.\n")
	mf := s.MappingFile
	if mf == "" {
		mf = mapping.DefaultFileName
	}
	fmt.Fprintf(&b, "The wiki's `%s` records which vault note owns which wiki file.\n", mf)
	return b.String()
}

func quoteAll(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	q := make([]string, len(items))
	for i, it := range items {
		q[i] = "`" + it + "`"
	}
	return strings.Join(q, ", ")
}
