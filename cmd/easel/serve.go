package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
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

func serveCmd() *cobra.Command {
	var (
		portRange   string
		host        string
		openBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workspace as a live preview gallery",
		Long: `Start the preview server in the foreground and register every
rendered diagram in the workspace.

Renders from other terminals write into the workspace; the per-diagram
file watchers pick the changes up and reload any open preview tabs.

Examples:
  easel serve
  easel serve --port-range=4000-4010
  easel serve --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(portRange, host, openBrowser)
		},
	}

	cmd.Flags().StringVar(&portRange, "port-range", "", `Port range to probe, "low-high" (default from easel.json)`)
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from easel.json)")
	cmd.Flags().BoolVarP(&openBrowser, "open", "o", false, "Open the gallery in a browser")

	return cmd
}

func runServe(portRange, host string, openBrowser bool) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if portRange != "" {
		low, high, err := parsePortRange(portRange)
		if err != nil {
			return err
		}
		cfg.Preview.PortRangeLow = low
		cfg.Preview.PortRangeHigh = high
	}
	if host != "" {
		cfg.Preview.Host = host
	}

	logger := newLogger(slog.LevelInfo)
	store, err := workspace.New(cfg.WorkspacePath(), logger)
	if err != nil {
		return err
	}
	renderer := render.NewCommandRenderer(cfg.Render.Command, cfg.Render.Args, logger)

	srv := preview.NewServer(preview.Options{
		Host:       cfg.Preview.Host,
		PortLow:    cfg.Preview.PortRangeLow,
		PortHigh:   cfg.Preview.PortRangeHigh,
		Store:      store,
		Renderer:   renderer,
		EditorBase: cfg.Editor.BaseURL,
		Logger:     logger,
	})
	port, err := srv.Ensure()
	if err != nil {
		return err
	}

	registered := registerWorkspace(srv, store)

	printBanner()
	fmt.Println("  serve")
	fmt.Println()
	success("Serving %d diagrams on http://%s:%d", registered, cfg.Preview.Host, port)
	info("Gallery: http://%s:%d/", cfg.Preview.Host, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go housekeeping(ctx, store, cfg.Retention())

	if openBrowser {
		if err := openURL(fmt.Sprintf("http://%s:%d/", cfg.Preview.Host, port)); err != nil {
			warn("Could not open a browser: %s", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\n  Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// registerWorkspace registers a live session for every diagram with a
// rendered artifact. Failures are reported and skipped.
func registerWorkspace(srv *preview.Server, store *workspace.Store) int {
	diagrams, err := store.List()
	if err != nil {
		warn("Could not list the workspace: %s", err)
		return 0
	}

	registered := 0
	for _, d := range diagrams {
		if !d.HasArtifact {
			continue
		}
		if err := srv.Registry().Register(d.ID, store.ArtifactPath(d.ID, d.Format)); err != nil {
			warn("Skipping %s: %s", d.ID, err)
			continue
		}
		registered++
	}
	return registered
}

// housekeeping sweeps stale artifacts once at startup and hourly after.
func housekeeping(ctx context.Context, store *workspace.Store, retention time.Duration) {
	if retention <= 0 {
		return
	}
	sweep := func() {
		if n := store.Sweep(retention); n > 0 {
			info("Housekeeping removed %d stale files", n)
		}
	}
	sweep()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// parsePortRange parses a "low-high" range.
func parsePortRange(s string) (int, int, error) {
	lowStr, highStr, found := strings.Cut(s, "-")
	badRange := func() error {
		return errors.New("E081").WithDetail(fmt.Sprintf("Port range %q must look like 3737-3747", s))
	}
	if !found {
		return 0, 0, badRange()
	}
	low, err := strconv.Atoi(strings.TrimSpace(lowStr))
	if err != nil {
		return 0, 0, badRange()
	}
	high, err := strconv.Atoi(strings.TrimSpace(highStr))
	if err != nil {
		return 0, 0, badRange()
	}
	return low, high, nil
}
