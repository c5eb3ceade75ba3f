// Package apperr holds the sentinel errors shared across wikisync packages.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrMappingCorrupt = errors.New("mapping file corrupt")
	ErrRunInProgress  = errors.New("sync run already in progress")
	ErrPathEscape     = errors.New("path escapes root")
)
