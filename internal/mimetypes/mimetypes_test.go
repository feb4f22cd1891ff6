package mimetypes

import "testing"

func TestForPath(t *testing.T) {
	cases := map[string]string{
		"/a/b/index.html": "text/html",
		"/style.css":       "text/css",
		"/app.js":          "application/javascript",
		"/data.bin":        "text/plain",
		"noext":            "text/plain",
	}
	for path, want := range cases {
		if got := ForPath(path); got != want {
			t.Errorf("ForPath(%q) = %q, want %q", path, got, want)
		}
	}
}
