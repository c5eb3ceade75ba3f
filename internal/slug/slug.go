// Package slug turns vault paths into flat, URL-safe target file names.
//
// Slugs are a pure function of their input: the persisted path mapping and the
// stale-file detection built on it rely on the same path always producing the
// same slug. Distinct paths may collide; collisions are not detected.
package slug

import (
	"regexp"
	"strings"
)

const separator = "-"

// nonWord matches runs of characters that are not Unicode letters, digits or underscore.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Make slugifies p: the stem has every run of non-word characters replaced by a
// single separator, is trimmed of leading/trailing separators and lower-cased.
// The original extension is reattached unchanged.
func Make(p string) string {
	stem, ext := SplitExt(p)
	s := nonWord.ReplaceAllString(stem, separator)
	s = strings.Trim(s, separator)
	return strings.ToLower(s) + ext
}

// SplitExt splits p into stem and extension. The extension starts at the last
// dot of the final path element; leading dots of that element do not count, so
// ".env" has no extension.
func SplitExt(p string) (stem, ext string) {
	base := p
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		base = p[i+1:]
	}
	dot := strings.LastIndex(base, ".")
	if dot <= 0 || strings.Trim(base[:dot], ".") == "" {
		return p, ""
	}
	cut := len(p) - len(base) + dot
	return p[:cut], p[cut:]
}

// Slugger applies Make and then removes a configured filter token, used when a
// vault names files with a common prefix that should not reach the target.
type Slugger struct {
	FilterToken string
}

// Slug returns the filtered slug of p.
func (s Slugger) Slug(p string) string {
	out := Make(p)
	if s.FilterToken != "" {
		out = strings.ReplaceAll(out, s.FilterToken, "")
	}
	return out
}
