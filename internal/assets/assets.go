// Package assets embeds the built-in web console served from the
// process binary so the service ships as a single artifact.
package assets

import (
	"embed"
	"fmt"
)

//go:embed web
var webFS embed.FS

// contentTypes maps the known console assets to their MIME types.
var contentTypes = map[string]string{
	"index.html": "text/html; charset=utf-8",
	"app.js":     "application/javascript; charset=utf-8",
	"styles.css": "text/css; charset=utf-8",
}

// Get returns the named console asset and its content type. Unknown
// names report an error; the router maps that to a 500, not a 404,
// because a missing embedded asset is a build defect, not client
// input.
func Get(name string) ([]byte, string, error) {
	ct, ok := contentTypes[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown asset %q", name)
	}
	data, err := webFS.ReadFile("web/" + name)
	if err != nil {
		return nil, "", fmt.Errorf("read asset %q: %w", name, err)
	}
	return data, ct, nil
}
