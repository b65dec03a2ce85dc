package preview

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// reloadMessage is the single payload pushed to viewers. Browsers treat any
// message on the socket as "fetch the artifact again", so the body is a
// bare token rather than a structure.
const reloadMessage = "reload"

// Viewer is one attached browser connection.
type Viewer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes; gorilla allows one concurrent writer
}

func newViewer(conn *websocket.Conn) *Viewer {
	return &Viewer{id: uuid.NewString(), conn: conn}
}

// ID returns the connection identifier used in logs.
func (v *Viewer) ID() string {
	return v.id
}

func (v *Viewer) send(message string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.WriteMessage(websocket.TextMessage, []byte(message))
}

func (v *Viewer) close() {
	if v.conn != nil {
		v.conn.Close()
	}
}

// ConnectionManager upgrades live-preview sockets and binds each one to a
// session for its whole lifetime.
type ConnectionManager struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewConnectionManager creates a connection manager for the registry.
func NewConnectionManager(registry *Registry, logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Local preview tool: the server binds localhost and pages
				// are only ever served from it.
				return true
			},
		},
		logger: logger.With("component", "viewer"),
	}
}

// IsUpgrade reports whether the request asks for a WebSocket handshake.
// Viewer pages and their sockets share a path and are told apart by this.
func (m *ConnectionManager) IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// HandleUpgrade upgrades the request, attaches the viewer to the session,
// and blocks until the browser goes away. The viewer is pruned from the
// session before this returns, so a departed browser is never counted by
// HasActiveConnections.
func (m *ConnectionManager) HandleUpgrade(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		m.logger.Debug("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}

	viewer := newViewer(conn)
	if !m.registry.Attach(sessionID, viewer) {
		conn.Close()
		return
	}
	defer func() {
		m.registry.Detach(sessionID, viewer)
		conn.Close()
	}()

	// Viewers never send anything meaningful; the read loop only exists to
	// notice the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
