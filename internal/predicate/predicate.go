// Package predicate decides whether a vault note is eligible for publishing.
package predicate

import (
	"fmt"
	"sort"
)

// TypeKey is the frontmatter key holding the note type.
const TypeKey = "type"

// Predicate is parameterized by a required type and a set of target tags.
// Tag inspection is gated behind a type match: an untyped note never
// qualifies, whatever tags it carries.
type Predicate struct {
	RequiredType string
	Tags         map[string]struct{}
}

// New builds a Predicate from a required type and a tag list.
func New(requiredType string, tags []string) Predicate {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return Predicate{RequiredType: requiredType, Tags: set}
}

// Qualifies reports whether meta is eligible. Missing keys never fail.
func (p Predicate) Qualifies(meta map[string]any) bool {
	ok, _ := p.Check(meta)
	return ok
}

// Check is Qualifies plus a human-readable reason for logging.
func (p Predicate) Check(meta map[string]any) (bool, string) {
	typ, _ := meta[TypeKey].(string)
	if _, present := meta[TypeKey]; !present {
		return false, "no type"
	}
	if typ != p.RequiredType {
		return false, fmt.Sprintf("type %v is not %q", meta[TypeKey], p.RequiredType)
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := meta[key].(type) {
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && p.hasTag(s) {
					return true, fmt.Sprintf("tag %q in list %q", s, key)
				}
			}
		case []string:
			for _, s := range v {
				if p.hasTag(s) {
					return true, fmt.Sprintf("tag %q in list %q", s, key)
				}
			}
		case string:
			if p.hasTag(key) {
				return true, fmt.Sprintf("key %q", key)
			}
			if p.hasTag(v) {
				return true, fmt.Sprintf("value %q of key %q", v, key)
			}
			continue
		}
		if p.hasTag(key) {
			return true, fmt.Sprintf("key %q", key)
		}
	}
	return false, "no target tag"
}

func (p Predicate) hasTag(s string) bool {
	_, ok := p.Tags[s]
	return ok
}
