package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/easel-dev/easel/internal/config"
	"github.com/easel-dev/easel/internal/render"
	"github.com/easel-dev/easel/internal/workspace"
)

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests.
const shutdownTimeout = 5 * time.Second

// Options configures a preview server.
type Options struct {
	// Host to bind. Default: localhost.
	Host string

	// PortLow and PortHigh bound the port probe range, inclusive.
	// Default: 3737-3747.
	PortLow  int
	PortHigh int

	// Store is the workspace the server serves from.
	Store *workspace.Store

	// Renderer is used by the export route.
	Renderer render.Renderer

	// EditorBase is the external editor URL the handoff route points at.
	EditorBase string

	// Logger for server events. Default: slog.Default().
	Logger *slog.Logger

	// WatcherFactory overrides the file watcher implementation. Tests use
	// this; nil means fsnotify.
	WatcherFactory WatcherFactory
}

// Server is the preview HTTP/WebSocket server. Construct with NewServer,
// start with Ensure. The zero value is not usable.
type Server struct {
	host       string
	portLow    int
	portHigh   int
	store      *workspace.Store
	renderer   render.Renderer
	editorBase string
	logger     *slog.Logger

	registry    *Registry
	connections *ConnectionManager

	mu      sync.Mutex
	running bool
	port    int
	httpSrv *http.Server
}

// NewServer creates a stopped server. Ensure starts it.
func NewServer(opts Options) *Server {
	if opts.Host == "" {
		opts.Host = config.DefaultHost
	}
	if opts.PortLow == 0 {
		opts.PortLow = config.DefaultPortRangeLow
	}
	if opts.PortHigh == 0 {
		opts.PortHigh = config.DefaultPortRangeHigh
	}
	if opts.EditorBase == "" {
		opts.EditorBase = config.DefaultEditorBase
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "preview")

	registry := NewRegistry(opts.WatcherFactory, opts.Logger)
	return &Server{
		host:        opts.Host,
		portLow:     opts.PortLow,
		portHigh:    opts.PortHigh,
		store:       opts.Store,
		renderer:    opts.Renderer,
		editorBase:  opts.EditorBase,
		logger:      logger,
		registry:    registry,
		connections: NewConnectionManager(registry, opts.Logger),
	}
}

// Registry exposes the session registry so callers can register sessions
// after a render.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Ensure starts the server if it is not running and returns the bound
// port. Idempotent: a running server just reports its port. The listener
// is acquired and the running state marked inside one critical section, so
// concurrent callers cannot race a second server into existence.
func (s *Server) Ensure() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.port, nil
	}

	ln, port, err := listenInRange(s.host, s.portLow, s.portHigh)
	if err != nil {
		return 0, err
	}

	srv := &http.Server{Handler: s.routes()}
	s.httpSrv = srv
	s.port = port
	s.running = true

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("preview server stopped", "error", err)
		}
	}()

	s.logger.Info("preview server started", "addr", fmt.Sprintf("http://%s:%d", s.host, port))
	return port, nil
}

// Running reports whether the server is up, and on which port.
func (s *Server) Running() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port, s.running
}

// URL returns the preview URL for a session on the running server.
func (s *Server) URL(id string) string {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	return fmt.Sprintf("http://%s:%d/%s", s.host, port, id)
}

// Shutdown stops the server: every watcher and viewer connection is
// closed, then the HTTP server drains. Idempotent; a stopped server
// returns nil.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	srv := s.httpSrv
	s.httpSrv = nil
	s.port = 0
	s.running = false
	s.mu.Unlock()

	s.registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return srv.Close()
	}
	s.logger.Info("preview server stopped")
	return nil
}

// The process-wide singleton. The render path goes through EnsureServer so
// the first render starts the server and every later render reuses it.
var (
	defaultMu     sync.Mutex
	defaultServer *Server
)

// EnsureServer starts (at most once per process) and returns the shared
// preview server along with its port. The first caller's options win;
// later callers get the running server regardless of what they pass.
func EnsureServer(opts Options) (*Server, int, error) {
	defaultMu.Lock()
	srv := defaultServer
	if srv == nil {
		srv = NewServer(opts)
		defaultServer = srv
	}
	defaultMu.Unlock()

	port, err := srv.Ensure()
	if err != nil {
		return nil, 0, err
	}
	return srv, port, nil
}

// ShutdownServer stops the shared server if one is running.
func ShutdownServer(ctx context.Context) error {
	defaultMu.Lock()
	srv := defaultServer
	defaultServer = nil
	defaultMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
