// Package confine resolves user-supplied document paths against a fixed
// serving root. A confined path is guaranteed to be the root itself or a
// descendant of it, so handlers can pass it straight to the filesystem.
package confine

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutOfBounds is returned when a path escapes the serving root.
var ErrOutOfBounds = errors.New("confine: path escapes serving root")

// ErrNotDocument is returned when a confined path does not carry a
// recognized markdown extension.
var ErrNotDocument = errors.New("confine: not a markdown document")

// IsDocument reports whether path carries a recognized markdown extension.
func IsDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Confine resolves requested against root and returns the cleaned absolute
// path, or ErrOutOfBounds if the result is not root or a descendant of root.
//
// Relative inputs are joined to root, so "sub/x.md" becomes root/sub/x.md
// and "../x.md" climbs out and fails. Absolute inputs are checked as-is:
// the descendant test compares whole path segments, so a sibling directory
// that merely shares the root's string prefix (e.g. /docsevil next to /docs)
// is rejected.
func Confine(root, requested string) (string, error) {
	cleanRoot := filepath.Clean(root)

	var resolved string
	if filepath.IsAbs(requested) {
		resolved = filepath.Clean(requested)
	} else {
		resolved = filepath.Join(cleanRoot, requested)
	}

	if resolved != cleanRoot && !strings.HasPrefix(resolved, cleanRoot+string(filepath.Separator)) {
		return "", ErrOutOfBounds
	}
	return resolved, nil
}

// ConfineDocument is Confine plus the document extension gate, for use on
// fetch paths where only markdown files may be served.
func ConfineDocument(root, requested string) (string, error) {
	resolved, err := Confine(root, requested)
	if err != nil {
		return "", err
	}
	if !IsDocument(resolved) {
		return "", ErrNotDocument
	}
	return resolved, nil
}

// Rel converts a confined absolute path back to the root-relative,
// slash-separated form used in listings and viewer addresses.
func Rel(root, confined string) string {
	rel, err := filepath.Rel(filepath.Clean(root), confined)
	if err != nil {
		return filepath.ToSlash(confined)
	}
	return filepath.ToSlash(rel)
}
