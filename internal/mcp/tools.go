package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/easel-dev/easel/internal/editor"
	"github.com/easel-dev/easel/internal/errors"
	"github.com/easel-dev/easel/internal/preview"
	"github.com/easel-dev/easel/internal/render"
	"github.com/easel-dev/easel/internal/workspace"
)

// toolCatalog lists the tools advertised by tools/list.
func toolCatalog() []MCPTool {
	return []MCPTool{
		{
			Name:        "render_diagram",
			Description: "Render Mermaid source and register a live browser preview.\n\nSaves the source into the workspace, renders it, and returns the preview URL. Rendering the same id again reloads any open preview tabs in place instead of opening new ones.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Diagram identifier ([A-Za-z0-9_-]+); also the preview URL path",
						"pattern":     "^[A-Za-z0-9_-]+$",
					},
					"source": map[string]any{
						"type":        "string",
						"description": "Mermaid diagram source",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Artifact format (default svg)",
						"enum":        []string{"svg", "png"},
					},
					"theme": map[string]any{
						"type":        "string",
						"description": "Renderer theme",
						"enum":        []string{"default", "dark", "forest", "neutral"},
					},
					"background": map[string]any{
						"type":        "string",
						"description": "Background color (CSS color or 'transparent')",
					},
				},
				"required": []string{"id", "source"},
			},
		},
		{
			Name:        "list_diagrams",
			Description: "List rendered diagrams in the workspace, newest first, with their live-preview state.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "open_editor",
			Description: "Get an external editor deep link for a saved diagram. The returned URL carries the full source, compressed into the fragment.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Diagram identifier of a previously saved diagram",
					},
				},
				"required": []string{"id"},
			},
		},
	}
}

// callTool dispatches a tools/call by name. The second return value is false
// for unknown tools.
func (s *Server) callTool(name string, arguments json.RawMessage) (json.RawMessage, bool) {
	switch name {
	case "render_diagram":
		return s.toolRenderDiagram(arguments), true
	case "list_diagrams":
		return s.toolListDiagrams(), true
	case "open_editor":
		return s.toolOpenEditor(arguments), true
	default:
		return nil, false
	}
}

type renderDiagramArgs struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Format     string `json:"format"`
	Theme      string `json:"theme"`
	Background string `json:"background"`
}

func (s *Server) toolRenderDiagram(arguments json.RawMessage) json.RawMessage {
	var args renderDiagramArgs
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return errorResponse(ErrInvalidInput, "arguments must be a JSON object: "+err.Error(),
				"Fix the arguments and call render_diagram again")
		}
	}

	if args.ID == "" {
		return errorResponse(ErrInvalidInput, "id is required",
			"Add an 'id' argument ([A-Za-z0-9_-]+) and call render_diagram again")
	}
	if err := workspace.ValidateID(args.ID); err != nil {
		return errorResponse(ErrInvalidInput, err.Error(),
			"Use only letters, digits, '-' and '_' in the id and call render_diagram again")
	}
	if preview.ReservedID(args.ID) {
		return errorResponse(ErrInvalidInput, fmt.Sprintf("id %q collides with a reserved preview route", args.ID),
			"Pick a different id and call render_diagram again")
	}
	if strings.TrimSpace(args.Source) == "" {
		return errorResponse(ErrInvalidInput, "source is empty",
			"Provide the diagram source in the 'source' argument and call render_diagram again")
	}

	opts := render.Options{
		Format:     args.Format,
		Theme:      args.Theme,
		Background: args.Background,
	}
	if opts.Format == "" {
		opts.Format = s.cfg.Render.Format
	}
	if opts.Theme == "" {
		opts.Theme = s.cfg.Render.Theme
	}
	if opts.Background == "" {
		opts.Background = s.cfg.Render.Background
	}
	opts.Scale = s.cfg.Render.Scale
	opts = opts.Normalize()
	if err := opts.Valid(); err != nil {
		return errorResponse(ErrInvalidInput, err.Error(),
			"Use format 'svg' or 'png' and a known theme, then call render_diagram again")
	}

	source := []byte(args.Source)
	if err := s.store.SaveSource(args.ID, source); err != nil {
		return errorResponse(ErrSaveFailed, "save source: "+err.Error(),
			"Retry render_diagram; if it keeps failing the workspace directory is not writable")
	}
	if err := s.store.SaveOptions(args.ID, opts); err != nil {
		return errorResponse(ErrSaveFailed, "save options: "+err.Error(),
			"Retry render_diagram; if it keeps failing the workspace directory is not writable")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RenderTimeout())
	defer cancel()

	start := time.Now()
	artifact, err := s.renderer.Render(ctx, source, opts)
	if err != nil {
		preview.RecordRenderError(easelCode(err))
		return errorResponse(ErrRenderFailed, err.Error(),
			"Fix the diagram source and call render_diagram again",
			withHint(renderHint(err)))
	}
	preview.RecordRenderDuration(opts.Format, time.Since(start))

	if err := s.store.SaveArtifact(args.ID, opts.Format, artifact); err != nil {
		return errorResponse(ErrSaveFailed, "save artifact: "+err.Error(),
			"Retry render_diagram; if it keeps failing the workspace directory is not writable")
	}

	srv, err := s.ensurePreviewServer()
	if err != nil {
		return errorResponse(ErrInternal, "preview server unavailable: "+err.Error(),
			"The diagram was rendered and saved; fix the port range or free a port, then call render_diagram again")
	}

	reg := srv.Registry()
	if err := reg.Register(args.ID, s.store.ArtifactPath(args.ID, opts.Format)); err != nil {
		return errorResponse(ErrInternal, "register preview session: "+err.Error(),
			"Report this; the rendered artifact is saved in the workspace")
	}

	opened := false
	if reg.HasActiveConnections(args.ID) {
		reg.Notify(args.ID)
	} else if s.openBrowser != nil && s.cfg.OpenBrowser() {
		if err := s.openBrowser(srv.URL(args.ID)); err != nil {
			s.logger.Warn("open browser", "id", args.ID, "error", err)
		} else {
			opened = true
		}
	}

	s.logger.Info("rendered diagram", "id", args.ID, "format", opts.Format, "opened", opened)

	return jsonResponse(struct {
		ID         string `json:"id"`
		PreviewURL string `json:"previewUrl"`
		Format     string `json:"format"`
		Opened     bool   `json:"opened"`
	}{args.ID, srv.URL(args.ID), opts.Format, opened})
}

func (s *Server) toolListDiagrams() json.RawMessage {
	diagrams, err := s.store.List()
	if err != nil {
		return errorResponse(ErrInternal, "list workspace: "+err.Error(),
			"Retry once; if it persists the workspace directory is unreadable")
	}
	if len(diagrams) == 0 {
		return textResponse("No diagrams in the workspace. Call render_diagram to create one.")
	}

	type entry struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updatedAt"`
		Format    string    `json:"format,omitempty"`
		Live      bool      `json:"live"`
	}
	entries := make([]entry, 0, len(diagrams))
	for _, d := range diagrams {
		live := s.preview != nil && s.preview.Registry().Has(d.ID)
		entries = append(entries, entry{ID: d.ID, UpdatedAt: d.UpdatedAt, Format: d.Format, Live: live})
	}
	return jsonResponse(struct {
		Diagrams []entry `json:"diagrams"`
	}{entries})
}

func (s *Server) toolOpenEditor(arguments json.RawMessage) json.RawMessage {
	var args struct {
		ID string `json:"id"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return errorResponse(ErrInvalidInput, "arguments must be a JSON object: "+err.Error(),
				"Fix the arguments and call open_editor again")
		}
	}
	if args.ID == "" {
		return errorResponse(ErrInvalidInput, "id is required",
			"Add an 'id' argument naming a saved diagram and call open_editor again")
	}
	if err := workspace.ValidateID(args.ID); err != nil {
		return errorResponse(ErrInvalidInput, err.Error(),
			"Use only letters, digits, '-' and '_' in the id and call open_editor again")
	}

	source, err := s.store.LoadSource(args.ID)
	if err != nil {
		return errorResponse(ErrNotFound, fmt.Sprintf("no saved source for %q", args.ID),
			"Call render_diagram with this id first, then open_editor")
	}

	theme := ""
	if opts, err := s.store.LoadOptions(args.ID); err == nil {
		theme = opts.Theme
	}

	url, err := editor.HandoffURL(s.cfg.Editor.BaseURL, source, theme)
	if err != nil {
		return errorResponse(ErrInternal, "encode editor link: "+err.Error(),
			"Report this; retrying will not help")
	}

	return jsonResponse(struct {
		ID        string `json:"id"`
		EditorURL string `json:"editorUrl"`
	}{args.ID, url})
}

// ensurePreviewServer starts the preview server on first use and caches it.
func (s *Server) ensurePreviewServer() (*preview.Server, error) {
	if s.preview != nil {
		return s.preview, nil
	}
	srv, port, err := s.ensurePreview()
	if err != nil {
		return nil, err
	}
	s.preview = srv
	s.logger.Info("preview server ready", "port", port)
	return srv, nil
}

// easelCode extracts the structured error code, or "unknown".
func easelCode(err error) string {
	var ee *errors.EaselError
	if stderrors.As(err, &ee) && ee.Code != "" {
		return ee.Code
	}
	return "unknown"
}

// renderHint surfaces renderer detail (typically trimmed stderr) when the
// structured error carries one.
func renderHint(err error) string {
	var ee *errors.EaselError
	if stderrors.As(err, &ee) && ee.Detail != "" {
		return ee.Detail
	}
	return ""
}
