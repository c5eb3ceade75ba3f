// Package models defines the domain types shared by the sync engine.
package models

// Note is a vault Markdown file with its decoded frontmatter.
type Note struct {
	Path        string         `json:"path"` // vault-relative, slash separated
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Content     []byte         `json:"-"` // raw bytes as read from the vault
}

// Reference kinds.
const (
	RefEmbed = "embed"
	RefLink  = "link"
)

// Reference is one embed (![[...]]) or wiki-link ([[...]]) found in a note.
// Target never contains the alias portion.
type Reference struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Alias  string `json:"alias,omitempty"`
}

// Display returns the text shown for the reference in the target format.
func (r Reference) Display() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Target
}
