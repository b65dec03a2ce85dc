// Package render invokes the external diagram renderer.
//
// Rendering is an opaque subprocess boundary: diagram source goes in,
// image bytes come out. The default renderer is mmdc (the Mermaid CLI),
// but any command with a compatible -i/-o interface works.
package render

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/easel-dev/easel/internal/errors"
)

// FormatSVG and FormatPNG are the supported artifact formats.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Options control a single renderer invocation.
type Options struct {
	// Format is the output format: svg or png. Empty means svg.
	Format string `json:"format,omitempty"`

	// Theme is the renderer theme (default, dark, forest, neutral).
	Theme string `json:"theme,omitempty"`

	// Background is the background color (a CSS color or "transparent").
	Background string `json:"background,omitempty"`

	// Scale is the raster scale factor. Only meaningful for png.
	Scale int `json:"scale,omitempty"`
}

// Normalize fills defaults and lower-cases the format.
func (o Options) Normalize() Options {
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Format == "" {
		o.Format = FormatSVG
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	return o
}

// Valid reports whether the format is renderable.
func (o Options) Valid() error {
	switch o.Normalize().Format {
	case FormatSVG, FormatPNG:
		return nil
	default:
		return errors.New("E003").WithDetail("Got format " + o.Format)
	}
}

// Renderer turns diagram source text into image bytes.
type Renderer interface {
	Render(ctx context.Context, source []byte, opts Options) ([]byte, error)
}

// CommandRenderer shells out to an mmdc-compatible renderer command.
type CommandRenderer struct {
	command string
	args    []string
	logger  *slog.Logger
}

// NewCommandRenderer creates a renderer that invokes the given command.
// extraArgs are prepended to every invocation before the -i/-o pair.
func NewCommandRenderer(command string, extraArgs []string, logger *slog.Logger) *CommandRenderer {
	if command == "" {
		command = "mmdc"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandRenderer{
		command: command,
		args:    extraArgs,
		logger:  logger.With("component", "renderer"),
	}
}

// Command returns the configured renderer executable.
func (r *CommandRenderer) Command() string {
	return r.command
}

// Render writes the source to a scratch file, runs the renderer, and
// returns the produced image bytes.
func (r *CommandRenderer) Render(ctx context.Context, source []byte, opts Options) ([]byte, error) {
	if len(bytes.TrimSpace(source)) == 0 {
		return nil, errors.New("E002")
	}
	opts = opts.Normalize()
	if err := opts.Valid(); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "easel-render-")
	if err != nil {
		return nil, errors.New("E021").Wrap(err)
	}
	defer os.RemoveAll(scratch)

	inPath := filepath.Join(scratch, "diagram.mmd")
	outPath := filepath.Join(scratch, "diagram."+opts.Format)
	if err := os.WriteFile(inPath, source, 0644); err != nil {
		return nil, errors.New("E021").Wrap(err)
	}

	args := append([]string(nil), r.args...)
	args = append(args, "-i", inPath, "-o", outPath, "--quiet")
	if opts.Theme != "" {
		args = append(args, "-t", opts.Theme)
	}
	if opts.Background != "" {
		args = append(args, "-b", opts.Background)
	}
	if opts.Format == FormatPNG && opts.Scale > 1 {
		args = append(args, "-s", strconv.Itoa(opts.Scale))
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr != nil {
		if stderrors.Is(runErr, exec.ErrNotFound) {
			return nil, errors.New("E020").
				WithDetail("Renderer command " + strconv.Quote(r.command) + " is not installed or not in PATH").
				WithSuggestion("Install it with: npm install -g @mermaid-js/mermaid-cli").
				Wrap(runErr)
		}
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		r.logger.Debug("render failed",
			"command", r.command,
			"duration", duration,
			"error", runErr)
		return nil, errors.New("E021").WithDetail(output).Wrap(runErr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil || len(data) == 0 {
		return nil, errors.New("E022").
			WithDetail("Expected output at " + outPath)
	}

	r.logger.Debug("render complete",
		"command", r.command,
		"format", opts.Format,
		"bytes", len(data),
		"duration", duration)

	return data, nil
}
