package parser

import (
	"regexp"

	"github.com/starford/wikisync/internal/models"
)

// EmbedRe and LinkRe match vault markup on a single line. LinkRe also matches
// the [[...]] inside an embed; FindReferences separates the two.
var (
	EmbedRe = regexp.MustCompile(`!\[\[(.*?)\]\]`)
	LinkRe  = regexp.MustCompile(`\[\[(.*?)\]\]`)

	anyRefRe = regexp.MustCompile(`(!?)\[\[(.*?)\]\]`)
)

// FindReferences returns every embed in source order followed by every
// wiki-link in source order. Duplicates are kept; callers de-duplicate.
func FindReferences(content string) []models.Reference {
	var embeds, links []models.Reference
	for _, m := range anyRefRe.FindAllStringSubmatch(content, -1) {
		if m[1] == "!" {
			if ref, ok := ParseReference(models.RefEmbed, m[2]); ok {
				embeds = append(embeds, ref)
			}
			continue
		}
		if ref, ok := ParseReference(models.RefLink, m[2]); ok {
			links = append(links, ref)
		}
	}
	return append(embeds, links...)
}
