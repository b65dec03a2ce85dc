package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/easel-dev/easel/internal/config"
	"github.com/easel-dev/easel/internal/errors"
	"github.com/easel-dev/easel/internal/preview"
	"github.com/easel-dev/easel/internal/render"
	"github.com/easel-dev/easel/internal/workspace"
)

func renderCmd() *cobra.Command {
	var (
		id         string
		format     string
		theme      string
		background string
		scale      int
		open       bool
	)

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a diagram into the workspace",
		Long: `Render a Mermaid diagram file and store it in the workspace.

The diagram id defaults to the file name without its extension. With
--open the command keeps serving a live preview: re-rendering the same
diagram from another terminal reloads the open browser tabs in place.

Examples:
  easel render docs/flow.mmd
  easel render flow.mmd --theme=dark --open
  easel render flow.mmd --format=png --scale=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(args[0], id, format, theme, background, scale, open)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Diagram id (default: file name without extension)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: svg or png (default from easel.json)")
	cmd.Flags().StringVarP(&theme, "theme", "t", "", "Renderer theme (default from easel.json)")
	cmd.Flags().StringVar(&background, "background", "", "Background color (default from easel.json)")
	cmd.Flags().IntVar(&scale, "scale", 0, "Raster scale factor for png")
	cmd.Flags().BoolVarP(&open, "open", "o", false, "Serve a live preview and open the browser")

	return cmd
}

func runRender(file, id, format, theme, background string, scale int, open bool) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	logger := newLogger(slog.LevelWarn)

	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	if id == "" {
		id = diagramID(file)
	}
	if err := workspace.ValidateID(id); err != nil {
		errorMsg("Cannot use %q as a diagram id", id)
		info("Pass --id with letters, digits, '-' or '_'")
		return err
	}
	if preview.ReservedID(id) {
		errorMsg("%q is a reserved preview route", id)
		info("Pass --id to pick a different name")
		return errors.New("E004").WithDetail(fmt.Sprintf("The id %q collides with a reserved route", id))
	}

	opts := render.Options{
		Format:     firstNonEmpty(format, cfg.Render.Format),
		Theme:      firstNonEmpty(theme, cfg.Render.Theme),
		Background: firstNonEmpty(background, cfg.Render.Background),
		Scale:      scale,
	}
	if opts.Scale <= 0 {
		opts.Scale = cfg.Render.Scale
	}
	opts = opts.Normalize()
	if err := opts.Valid(); err != nil {
		return err
	}

	store, err := workspace.New(cfg.WorkspacePath(), logger)
	if err != nil {
		return err
	}
	if err := store.SaveSource(id, source); err != nil {
		return err
	}
	if err := store.SaveOptions(id, opts); err != nil {
		return err
	}

	renderer := render.NewCommandRenderer(cfg.Render.Command, cfg.Render.Args, logger)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RenderTimeout())
	defer cancel()

	artifact, err := renderer.Render(ctx, source, opts)
	if err != nil {
		return err
	}
	if err := store.SaveArtifact(id, opts.Format, artifact); err != nil {
		return err
	}
	success("Rendered %s (%d bytes)", store.ArtifactPath(id, opts.Format), len(artifact))

	if !open {
		info("Run 'easel render %s --open' or 'easel serve' for a live preview", file)
		return nil
	}

	srv, _, err := preview.EnsureServer(preview.Options{
		Host:       cfg.Preview.Host,
		PortLow:    cfg.Preview.PortRangeLow,
		PortHigh:   cfg.Preview.PortRangeHigh,
		Store:      store,
		Renderer:   renderer,
		EditorBase: cfg.Editor.BaseURL,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	reg := srv.Registry()
	if err := reg.Register(id, store.ArtifactPath(id, opts.Format)); err != nil {
		return err
	}

	url := srv.URL(id)
	success("Preview: %s", url)

	if reg.HasActiveConnections(id) {
		reg.Notify(id)
	} else if cfg.OpenBrowser() {
		if err := openURL(url); err != nil {
			warn("Could not open a browser: %s", err)
		}
	}

	info("Press Ctrl-C to stop the preview")
	return waitForInterrupt()
}

// waitForInterrupt blocks until SIGINT or SIGTERM, then stops the shared
// preview server.
func waitForInterrupt() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\n  Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return preview.ShutdownServer(ctx)
}

// diagramID derives a workspace id from a file path. Characters outside the
// id alphabet become hyphens.
func diagramID(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
