// Package mimetypes is the minimal extension-to-content-type lookup table
// spec.md §6 requires the core to use for static and uploaded-file
// responses. A bigger table is an out-of-scope implementation extension.
package mimetypes

import "strings"

// ForPath returns the MIME type for path based on its extension, defaulting
// to text/plain for anything not in the table.
func ForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html"
	case strings.HasSuffix(path, ".css"):
		return "text/css"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript"
	default:
		return "text/plain"
	}
}
