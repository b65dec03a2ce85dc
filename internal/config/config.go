package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/easel-dev/easel/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "easel.json"

	// WorkspaceEnv overrides the workspace directory when set.
	WorkspaceEnv = "EASEL_WORKSPACE"

	// DefaultPortRangeLow is the first port probed for the preview server.
	DefaultPortRangeLow = 3737

	// DefaultPortRangeHigh is the last port probed for the preview server.
	DefaultPortRangeHigh = 3747

	// DefaultHost is the host the preview server binds to.
	DefaultHost = "localhost"

	// DefaultRenderer is the diagram renderer command.
	DefaultRenderer = "mmdc"

	// DefaultFormat is the rendered artifact format.
	DefaultFormat = "svg"

	// DefaultTheme is the renderer theme.
	DefaultTheme = "default"

	// DefaultBackground is the rendered background color.
	DefaultBackground = "white"

	// DefaultRenderTimeout bounds a single renderer invocation.
	DefaultRenderTimeout = "30s"

	// DefaultRetention is how long unreferenced artifacts are kept.
	DefaultRetention = "720h"

	// DefaultEditorBase is the external editor URL prefix for handoff links.
	DefaultEditorBase = "https://mermaid.live/edit"
)

// Config represents the complete easel.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Version is the project version.
	Version string `json:"version,omitempty"`

	// Workspace is the diagram workspace directory. Relative paths resolve
	// against the config file's directory; "~" expands to the home directory.
	Workspace string `json:"workspace,omitempty"`

	// Preview contains preview server configuration.
	Preview PreviewConfig `json:"preview,omitempty"`

	// Render contains renderer invocation configuration.
	Render RenderConfig `json:"render,omitempty"`

	// Editor contains external editor handoff configuration.
	Editor EditorConfig `json:"editor,omitempty"`

	// Publish contains artifact publishing configuration.
	Publish PublishConfig `json:"publish,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PreviewConfig contains preview server settings.
type PreviewConfig struct {
	// PortRangeLow is the first port probed when starting the server.
	PortRangeLow int `json:"portRangeLow,omitempty"`

	// PortRangeHigh is the last port probed when starting the server.
	PortRangeHigh int `json:"portRangeHigh,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// OpenBrowser opens a browser tab for sessions with no attached viewers.
	OpenBrowser *bool `json:"openBrowser,omitempty"`

	// Retention is how long stale artifacts survive housekeeping (e.g. "720h").
	Retention string `json:"retention,omitempty"`
}

// RenderConfig contains renderer invocation settings.
type RenderConfig struct {
	// Command is the renderer executable.
	Command string `json:"command,omitempty"`

	// Args are extra arguments prepended to every invocation.
	Args []string `json:"args,omitempty"`

	// Format is the default output format (svg or png).
	Format string `json:"format,omitempty"`

	// Theme is the default renderer theme.
	Theme string `json:"theme,omitempty"`

	// Background is the default background color.
	Background string `json:"background,omitempty"`

	// Scale is the default raster scale factor.
	Scale int `json:"scale,omitempty"`

	// Timeout bounds a single renderer invocation (e.g. "30s").
	Timeout string `json:"timeout,omitempty"`
}

// EditorConfig contains external editor handoff settings.
type EditorConfig struct {
	// BaseURL is the editor URL prefix the encoded diagram is appended to.
	BaseURL string `json:"baseUrl,omitempty"`
}

// PublishConfig contains artifact publishing settings.
type PublishConfig struct {
	// Bucket is the S3 bucket artifacts are published to.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the key prefix for published artifacts.
	Prefix string `json:"prefix,omitempty"`

	// Region overrides the AWS region for the bucket.
	Region string `json:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	openBrowser := true
	return &Config{
		Version: "0.1.0",
		Preview: PreviewConfig{
			PortRangeLow:  DefaultPortRangeLow,
			PortRangeHigh: DefaultPortRangeHigh,
			Host:          DefaultHost,
			OpenBrowser:   &openBrowser,
			Retention:     DefaultRetention,
		},
		Render: RenderConfig{
			Command:    DefaultRenderer,
			Format:     DefaultFormat,
			Theme:      DefaultTheme,
			Background: DefaultBackground,
			Scale:      1,
			Timeout:    DefaultRenderTimeout,
		},
		Editor: EditorConfig{
			BaseURL: DefaultEditorBase,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for easel.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E080").
				WithDetail("No easel.json found at " + path).
				WithSuggestion("Create easel.json or rely on the built-in defaults")
		}
		return nil, errors.New("E080").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E080").
			WithDetail("Failed to parse easel.json: " + err.Error()).
			WithSuggestion("Check that easel.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E080").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E080").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Preview.PortRangeLow == 0 {
		c.Preview.PortRangeLow = DefaultPortRangeLow
	}
	if c.Preview.PortRangeHigh == 0 {
		c.Preview.PortRangeHigh = DefaultPortRangeHigh
	}
	if c.Preview.Host == "" {
		c.Preview.Host = DefaultHost
	}
	if c.Preview.OpenBrowser == nil {
		openBrowser := true
		c.Preview.OpenBrowser = &openBrowser
	}
	if c.Preview.Retention == "" {
		c.Preview.Retention = DefaultRetention
	}

	if c.Render.Command == "" {
		c.Render.Command = DefaultRenderer
	}
	if c.Render.Format == "" {
		c.Render.Format = DefaultFormat
	}
	if c.Render.Theme == "" {
		c.Render.Theme = DefaultTheme
	}
	if c.Render.Background == "" {
		c.Render.Background = DefaultBackground
	}
	if c.Render.Scale == 0 {
		c.Render.Scale = 1
	}
	if c.Render.Timeout == "" {
		c.Render.Timeout = DefaultRenderTimeout
	}

	if c.Editor.BaseURL == "" {
		c.Editor.BaseURL = DefaultEditorBase
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	low, high := c.Preview.PortRangeLow, c.Preview.PortRangeHigh
	if low < 1 || low > 65535 || high < 1 || high > 65535 || low > high {
		return errors.New("E081").
			WithDetail("Got portRangeLow=" + itoa(low) + " portRangeHigh=" + itoa(high))
	}
	if f := c.Render.Format; f != "svg" && f != "png" {
		return errors.New("E003").
			WithDetail("render.format must be svg or png, got " + f)
	}
	return nil
}

// WorkspacePath returns the absolute workspace directory.
// The EASEL_WORKSPACE environment variable wins over the config value.
func (c *Config) WorkspacePath() string {
	if env := os.Getenv(WorkspaceEnv); env != "" {
		return env
	}

	ws := c.Workspace
	if ws == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".easel"
		}
		return filepath.Join(home, ".easel")
	}

	if ws == "~" || strings.HasPrefix(ws, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			ws = filepath.Join(home, strings.TrimPrefix(ws[1:], "/"))
		}
	}
	if filepath.IsAbs(ws) {
		return ws
	}
	if c.configPath != "" {
		return filepath.Join(c.Dir(), ws)
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return ws
	}
	return abs
}

// OpenBrowser reports whether the preview should open a browser tab for
// sessions with no attached viewers.
func (c *Config) OpenBrowser() bool {
	if c.Preview.OpenBrowser == nil {
		return true
	}
	return *c.Preview.OpenBrowser
}

// RenderTimeout returns the renderer invocation timeout.
func (c *Config) RenderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Render.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultRenderTimeout)
	}
	return d
}

// Retention returns how long stale artifacts survive housekeeping.
func (c *Config) Retention() time.Duration {
	d, err := time.ParseDuration(c.Preview.Retention)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultRetention)
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing easel.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E080").
				WithDetail("No easel.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest easel.json above
// the current working directory. A missing config file is not an error:
// easel works out of the box with defaults.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	// Reverse
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
