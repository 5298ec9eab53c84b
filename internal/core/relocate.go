package core

import (
	"path/filepath"
	"strings"
)

// DefaultPrefix is the hardcoded install prefix scriptlets are built for.
const DefaultPrefix = "/opt"

// Relocate rewrites every occurrence of from with to in a scriptlet body.
func Relocate(body string, from string, to string) string {
	if from == "" || from == to {
		return body
	}
	return strings.ReplaceAll(body, from, to)
}

// RelocationTarget returns the prefix /opt maps to under root, or "" when
// root is the filesystem root and no rewrite is needed.
func RelocationTarget(root string) string {
	cleaned := filepath.Clean(root)
	if cleaned == "/" || cleaned == "." {
		return ""
	}
	return filepath.Join(cleaned, DefaultPrefix)
}

// ReferencesPrefix reports whether a scriptlet mentions the default prefix.
func ReferencesPrefix(body string) bool {
	return strings.Contains(body, DefaultPrefix)
}
