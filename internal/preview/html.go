package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/easel-dev/easel/internal/render"
)

// ContentSecurityPolicy is sent with every HTML response. Deny-all default;
// same-origin scripts, same-origin styles plus inline styles for the dynamic
// stage background, same-origin and data-URI images, and the local push
// channel for live reload.
const ContentSecurityPolicy = "default-src 'none'; script-src 'self'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data:; " +
	"connect-src 'self' ws: wss:"

// timestampLayout is how artifact modification times appear on pages.
const timestampLayout = "2006-01-02 15:04:05"

// diagramPageData drives both the live view and the static view. Everything
// except Diagram is escaped by the template engine; Diagram is renderer
// output and trusted as-is.
type diagramPageData struct {
	ID         string
	Live       bool
	Background string
	UpdatedAt  string
	Diagram    template.HTML
}

// galleryEntry is one row on the gallery page.
type galleryEntry struct {
	ID        string
	UpdatedAt string
	Live      bool
}

type galleryPageData struct {
	Entries []galleryEntry
}

var pageTemplates = template.Must(template.New("preview").Parse(pageTemplateText))

// renderDiagramPage builds the HTML wrapper for one diagram. Live pages get
// a data-live marker that script.js turns into a push-channel connection;
// static views are the same page without it.
func renderDiagramPage(id string, live bool, format string, artifact []byte, background string, updatedAt time.Time) ([]byte, error) {
	data := diagramPageData{
		ID:         id,
		Live:       live,
		Background: background,
		UpdatedAt:  updatedAt.Format(timestampLayout),
		Diagram:    diagramHTML(format, artifact),
	}
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "diagram", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderGalleryPage builds the workspace index page.
func renderGalleryPage(entries []galleryEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "gallery", galleryPageData{Entries: entries}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// diagramHTML embeds the artifact: SVG markup is inlined, PNG goes in as a
// data URI so the page needs no extra artifact route.
func diagramHTML(format string, data []byte) template.HTML {
	if format == render.FormatPNG {
		return template.HTML(fmt.Sprintf(
			`<img class="diagram-png" alt="rendered diagram" src="data:image/png;base64,%s">`,
			base64.StdEncoding.EncodeToString(data)))
	}
	return template.HTML(data)
}

const pageTemplateText = `{{define "diagram"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.ID}} · Easel</title>
<link rel="icon" href="/favicon.svg" type="image/svg+xml">
<link rel="stylesheet" href="/style.css">
</head>
<body data-diagram-id="{{.ID}}"{{if .Live}} data-live="1"{{end}}>
<header class="bar">
<a class="brand" href="/">Easel</a>
<span class="title">{{.ID}}</span>
{{if .Live}}<span class="status" id="status">live</span>{{end}}
<span class="updated">{{.UpdatedAt}}</span>
<nav>
<a href="/export/{{.ID}}">export</a>
<a href="/editor-handoff/{{.ID}}" id="edit" data-diagram-id="{{.ID}}">edit</a>
</nav>
</header>
<main class="stage"{{if .Background}} style="background: {{.Background}}"{{end}}>
<figure class="diagram">{{.Diagram}}</figure>
</main>
<script src="/script.js" defer></script>
</body>
</html>
{{end}}{{define "gallery"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Easel</title>
<link rel="icon" href="/favicon.svg" type="image/svg+xml">
<link rel="stylesheet" href="/style.css">
</head>
<body>
<header class="bar">
<a class="brand" href="/">Easel</a>
<span class="title">diagrams</span>
</header>
<main class="gallery">
{{if .Entries}}<ul class="diagram-list">
{{range .Entries}}<li>
<a class="id" href="{{if .Live}}/{{.ID}}{{else}}/view/{{.ID}}{{end}}">{{.ID}}</a>
{{if .Live}}<span class="badge">live</span>{{end}}
<span class="updated">{{.UpdatedAt}}</span>
<a class="action" href="/export/{{.ID}}">export</a>
</li>
{{end}}</ul>
{{else}}<p class="empty">No diagrams yet. Render one with <code>easel render &lt;file&gt;</code>.</p>
{{end}}</main>
<script src="/script.js" defer></script>
</body>
</html>
{{end}}`
