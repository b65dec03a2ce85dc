package preview

import "embed"

//go:embed assets
var assetFS embed.FS

// asset is one embedded static file and how it is served. The stylesheet
// and script ship with the binary and change with it, so they are never
// cached; the favicon is stable enough to cache for a day.
type asset struct {
	name         string
	contentType  string
	cacheControl string
}

var staticAssets = []asset{
	{"style.css", "text/css; charset=utf-8", "no-store"},
	{"script.js", "text/javascript; charset=utf-8", "no-store"},
	{"favicon.svg", "image/svg+xml", "public, max-age=86400"},
}
