package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/easel-dev/easel/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔═╗┌─┐┌─┐┌─┐┬
  ║╣ ├─┤└─┐├┤ │
  ╚═╝┴ ┴└─┘└─┘┴─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "easel",
		Short: "Render Mermaid diagrams with a live browser preview",
		Long: `Easel renders Mermaid diagrams and serves them to the browser
with live reload.

Diagrams live in a workspace directory, source next to rendered
artifact, keyed by id. Re-rendering a diagram reloads every open
preview tab in place. Features:

  • Live preview server with push-based reload
  • Gallery of all rendered diagrams
  • PNG export and S3 publishing
  • mermaid.live editor handoff
  • MCP stdio server for agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var errorFormat string
	rootCmd.PersistentFlags().StringVar(&errorFormat, "error-format", "pretty",
		`error output format: "pretty", "compact", or "json"`)

	rootCmd.AddCommand(
		renderCmd(),
		serveCmd(),
		mcpCmd(),
		publishCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintErrorAs(err, errorFormat)
		os.Exit(1)
	}
}

// printBanner prints the Easel ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}

// newLogger builds the CLI's structured logger. It writes to stderr so
// command output and stdio protocol traffic stay clean.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openURL opens a URL in the default browser.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch {
	case commandExists("xdg-open"):
		cmd = exec.Command("xdg-open", url)
	case commandExists("open"):
		cmd = exec.Command("open", url)
	case commandExists("start"):
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("no browser opener found in PATH")
	}

	return cmd.Start()
}

// commandExists checks if a command exists in PATH.
func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
