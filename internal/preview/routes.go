package preview

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/easel-dev/easel/internal/editor"
	"github.com/easel-dev/easel/internal/errors"
	"github.com/easel-dev/easel/internal/render"
	"github.com/easel-dev/easel/internal/workspace"
)

// reservedNames are first path segments owned by the server. A diagram
// carrying one of these IDs is never reachable through the fallback route,
// so the workspace refuses to create them (see workspace save callers).
var reservedNames = map[string]bool{
	"api":            true,
	"view":           true,
	"export":         true,
	"editor-handoff": true,
	"metrics":        true,
	"style.css":      true,
	"script.js":      true,
	"favicon.svg":    true,
}

// ReservedID reports whether id collides with a reserved route name.
func ReservedID(id string) bool {
	return reservedNames[id]
}

// routes builds the preview router. Match order is exact reserved routes,
// then reserved prefixes with an {id} parameter, then the bare {id}
// fallback; chi's trie gives static segments priority, and the fallback
// handler re-checks reserved names so "/view" can never resolve as a
// session called view.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Prometheus())
	r.Use(OpenTelemetry())

	r.Get("/", s.handleGallery)
	r.Get("/api/diagrams", s.handleDiagrams)
	r.Handle("/metrics", promhttp.Handler())
	for _, a := range staticAssets {
		r.Get("/"+a.name, s.handleAsset(a))
	}

	r.Get("/view/{id}", s.handleView)
	r.Get("/export/{id}", s.handleExport)
	r.Get("/editor-handoff/{id}", s.handleEditorHandoff)

	r.Get("/{id}", s.handleLive)

	return r
}

// handleGallery serves the workspace index.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	diagrams, err := s.store.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries := make([]galleryEntry, 0, len(diagrams))
	for _, d := range diagrams {
		entries = append(entries, galleryEntry{
			ID:        d.ID,
			UpdatedAt: d.UpdatedAt.Format(timestampLayout),
			Live:      s.registry.Has(d.ID),
		})
	}
	body, err := renderGalleryPage(entries)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeHTML(w, body)
}

// diagramStatus is one entry in the /api/diagrams response.
type diagramStatus struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
	Live      bool      `json:"live"`
}

// handleDiagrams serves the JSON listing.
func (s *Server) handleDiagrams(w http.ResponseWriter, r *http.Request) {
	diagrams, err := s.store.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	statuses := make([]diagramStatus, 0, len(diagrams))
	for _, d := range diagrams {
		statuses = append(statuses, diagramStatus{
			ID:        d.ID,
			UpdatedAt: d.UpdatedAt,
			Live:      s.registry.Has(d.ID),
		})
	}
	writeJSON(w, map[string]any{"diagrams": statuses})
}

// handleAsset serves one embedded static file.
func (s *Server) handleAsset(a asset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := assetFS.ReadFile("assets/" + a.name)
		if err != nil {
			s.logger.Error("embedded asset missing", "asset", a.name, "error", err)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", a.contentType)
		w.Header().Set("Cache-Control", a.cacheControl)
		w.Write(data)
	}
}

// handleView serves the static (non-live) wrapper around a rendered
// artifact.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := workspace.ValidateID(id); err != nil {
		s.writeError(w, err)
		return
	}
	path, format, err := s.store.Artifact(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.serveDiagramPage(w, id, false, path, format)
}

// handleLive serves the live preview page and its push channel. Both live
// on the same path; the Upgrade header decides which one a request wants.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if ReservedID(id) {
		http.NotFound(w, r)
		return
	}
	if err := workspace.ValidateID(id); err != nil {
		s.writeError(w, err)
		return
	}
	if s.connections.IsUpgrade(r) {
		s.connections.HandleUpgrade(w, r, id)
		return
	}
	path, ok := s.registry.Path(id)
	if !ok {
		s.writeError(w, errors.New("E061").WithDetail("No preview session for "+id))
		return
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	s.serveDiagramPage(w, id, true, path, format)
}

// serveDiagramPage reads the artifact and writes the HTML wrapper.
func (s *Server) serveDiagramPage(w http.ResponseWriter, id string, live bool, path, format string) {
	artifact, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("artifact unreadable", "session", id, "path", path, "error", err)
		s.writeError(w, errors.New("E042").WithDetail("No rendered artifact for "+id).Wrap(err))
		return
	}
	updatedAt := time.Now()
	if info, err := os.Stat(path); err == nil {
		updatedAt = info.ModTime()
	}
	opts, err := s.store.LoadOptions(id)
	if err != nil {
		opts = render.Options{}.Normalize()
	}
	body, err := renderDiagramPage(id, live, format, artifact, opts.Background, updatedAt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeHTML(w, body)
}

// handleExport re-renders the diagram as PNG and streams it back as a
// download. The result is also cached in the workspace so the next static
// view of a PNG diagram is warm.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := workspace.ValidateID(id); err != nil {
		s.writeError(w, err)
		return
	}
	source, err := s.store.LoadSource(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := s.store.LoadOptions(id)
	if err != nil {
		opts = render.Options{}.Normalize()
	}
	opts.Format = render.FormatPNG

	start := time.Now()
	data, err := s.renderer.Render(r.Context(), source, opts)
	if err != nil {
		var ee *errors.EaselError
		if stderrors.As(err, &ee) {
			RecordRenderError(ee.Code)
		}
		s.writeError(w, err)
		return
	}
	RecordRenderDuration(render.FormatPNG, time.Since(start))

	if err := s.store.SaveArtifact(id, render.FormatPNG, data); err != nil {
		s.logger.Warn("export cache write failed", "session", id, "error", err)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.png"`)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// handleEditorHandoff builds the external editor URL for the diagram
// source.
func (s *Server) handleEditorHandoff(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := workspace.ValidateID(id); err != nil {
		s.writeError(w, err)
		return
	}
	source, err := s.store.LoadSource(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts, err := s.store.LoadOptions(id)
	if err != nil {
		opts = render.Options{}
	}
	url, err := editor.HandoffURL(s.editorBase, source, opts.Theme)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"id": id, "editorUrl": url})
}

// writeHTML writes a full HTML document with the preview security and
// caching headers.
func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", ContentSecurityPolicy)
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(body)
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(v)
}

// statusForError maps coded errors onto HTTP statuses. Validation problems
// are the caller's fault, missing things are 404, everything else is a
// server-side failure.
func statusForError(err error) int {
	var ee *errors.EaselError
	if !stderrors.As(err, &ee) {
		return http.StatusInternalServerError
	}
	switch ee.Code {
	case "E001", "E002", "E003", "E004":
		return http.StatusBadRequest
	case "E040", "E042", "E061":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError converts an error to its HTTP response. Bodies are plain text:
// the consumers are humans watching a dev tool, not machines.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	msg := http.StatusText(status)
	var ee *errors.EaselError
	if stderrors.As(err, &ee) {
		msg = ee.Message
		if ee.Detail != "" {
			msg = ee.Message + ": " + ee.Detail
		}
	}
	if status >= 500 {
		s.logger.Error("request failed", "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	http.Error(w, msg, status)
}
