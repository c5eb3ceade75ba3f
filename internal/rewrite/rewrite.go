// Package rewrite converts vault embed/link markup into target-format Markdown.
//
// Rules run in a fixed order: embeds, links, extension restoration, section
// stripping. The rewrite is specific to vault syntax: running it again over
// output that still contains [[...]] markup rewrites that markup, but already
// rewritten ![x](./y) and [x](./y) links are left alone.
package rewrite

import (
	"regexp"
	"strings"

	"github.com/starford/wikisync/internal/models"
	"github.com/starford/wikisync/internal/parser"
	"github.com/starford/wikisync/internal/slug"
)

// ExtensionFix maps a suffix left behind when slugification swallowed an
// extension dot back to the real extension.
type ExtensionFix struct {
	Suffix    string
	Extension string
}

// DefaultExtensionFixes covers the image, vector and document formats vaults embed.
var DefaultExtensionFixes = []ExtensionFix{
	{Suffix: "-png", Extension: ".png"},
	{Suffix: "-svg", Extension: ".svg"},
	{Suffix: "-jpg", Extension: ".jpg"},
	{Suffix: "-jpeg", Extension: ".jpeg"},
	{Suffix: "-gif", Extension: ".gif"},
	{Suffix: "-webp", Extension: ".webp"},
	{Suffix: "-pdf", Extension: ".pdf"},
}

// DefaultStripSections is the diagram-tool data block appended to drawings.
var DefaultStripSections = []string{"# Excalidraw Data"}

// Rewriter holds the naming and stripping rules. The zero value is not usable;
// build one with New.
type Rewriter struct {
	slugger  slug.Slugger
	fixes    map[string]string
	fixRe    *regexp.Regexp
	sections []string
}

// New returns a Rewriter. A nil fixes slice uses DefaultExtensionFixes.
func New(slugger slug.Slugger, fixes []ExtensionFix, stripSections []string) *Rewriter {
	if fixes == nil {
		fixes = DefaultExtensionFixes
	}
	r := &Rewriter{
		slugger:  slugger,
		fixes:    make(map[string]string, len(fixes)),
		sections: stripSections,
	}
	alts := make([]string, 0, len(fixes))
	for _, f := range fixes {
		r.fixes[f.Suffix] = f.Extension
		alts = append(alts, regexp.QuoteMeta(f.Suffix))
	}
	if len(alts) > 0 {
		// Only the tail of a ](./slug) target is touched; prose is left alone.
		r.fixRe = regexp.MustCompile(`\]\(\./([^()\s]*?)(` + strings.Join(alts, "|") + `)\)`)
	}
	return r
}

// Rewrite applies all rules to content.
func (r *Rewriter) Rewrite(content string) string {
	content = r.replace(parser.EmbedRe, models.RefEmbed, content)
	content = r.replace(parser.LinkRe, models.RefLink, content)
	content = r.RestoreExtensions(content)
	return r.StripSections(content)
}

// Target returns the target-relative link destination for a reference target.
func (r *Rewriter) Target(target string) string {
	return r.slugger.Slug(target)
}

func (r *Rewriter) replace(re *regexp.Regexp, kind, content string) string {
	return re.ReplaceAllStringFunc(content, func(match string) string {
		inner := re.FindStringSubmatch(match)[1]
		ref, ok := parser.ParseReference(kind, inner)
		if !ok {
			return match
		}
		dest := "(./" + r.Target(ref.Target) + ")"
		if kind == models.RefEmbed {
			return "![" + ref.Display() + "]" + dest
		}
		return "[" + ref.Display() + "]" + dest
	})
}

// RestoreExtensions turns a trailing "-ext" on a rewritten link target back
// into ".ext", in a single pass over content.
func (r *Rewriter) RestoreExtensions(content string) string {
	if r.fixRe == nil {
		return content
	}
	return r.fixRe.ReplaceAllStringFunc(content, func(match string) string {
		m := r.fixRe.FindStringSubmatch(match)
		return "](./" + m[1] + r.fixes[m[2]] + ")"
	})
}

// StripSections removes everything from the first strip marker to the end.
func (r *Rewriter) StripSections(content string) string {
	for _, marker := range r.sections {
		if marker == "" {
			continue
		}
		if i := strings.Index(content, marker); i >= 0 {
			content = content[:i]
		}
	}
	return content
}
