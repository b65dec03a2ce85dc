package preview

import (
	"log/slog"
	"sync"

	"github.com/easel-dev/easel/internal/workspace"
)

// session is one live preview: a watched artifact path plus the viewers
// attached to it. The watch generation is bumped on every re-registration so
// events from a replaced watcher can be told apart from current ones.
type session struct {
	id      string
	path    string
	gen     uint64
	watcher FileWatcher
	viewers map[*Viewer]bool
}

// SessionInfo is a read-only snapshot of one session.
type SessionInfo struct {
	ID      string
	Path    string
	Viewers int
}

// Registry tracks preview sessions by diagram ID.
//
// Invariants it maintains:
//   - at most one watcher per session; a re-registration closes the old
//     watcher before installing the new one, in one critical section
//   - viewers survive re-registration
//   - a viewer that disconnects is pruned before its handler returns
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*session
	newWatcher WatcherFactory
	logger     *slog.Logger
}

// NewRegistry creates an empty registry. A nil factory means fsnotify.
func NewRegistry(newWatcher WatcherFactory, logger *slog.Logger) *Registry {
	if newWatcher == nil {
		newWatcher = NewFileWatcher
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:   make(map[string]*session),
		newWatcher: newWatcher,
		logger:     logger.With("component", "registry"),
	}
}

// Register binds id to the artifact at path and starts watching it. Calling
// it again for the same id re-points the session: the previous watcher is
// closed first and attached viewers carry over untouched.
func (r *Registry) Register(id, path string) error {
	if err := workspace.ValidateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		if sess.watcher != nil {
			sess.watcher.Close()
			sess.watcher = nil
		}
		sess.path = path
	} else {
		sess = &session{id: id, path: path, viewers: make(map[*Viewer]bool)}
		r.sessions[id] = sess
	}
	sess.gen++
	gen := sess.gen

	watcher, err := r.newWatcher(path)
	if err != nil {
		// Keep the session: the artifact is still servable, it just will
		// not live-reload until the next registration.
		count := len(r.sessions)
		r.mu.Unlock()
		recordSessionCount(count)
		r.logger.Warn("watch failed, session registered without reload",
			"session", id, "path", path, "error", err)
		return nil
	}
	sess.watcher = watcher
	count := len(r.sessions)
	r.mu.Unlock()

	recordSessionCount(count)
	go r.forward(id, gen, watcher)

	r.logger.Debug("session registered", "session", id, "path", path)
	return nil
}

// forward pumps watcher events into reload notifications until the watcher
// closes. The generation check drops events from watchers that have already
// been replaced, so a stale notification can never follow a newer Register.
func (r *Registry) forward(id string, gen uint64, watcher FileWatcher) {
	for range watcher.Events() {
		r.notify(id, gen)
	}
}

// Notify pushes a reload to every viewer of the session. Used directly when
// an artifact is rewritten by a render rather than observed by the watcher.
func (r *Registry) Notify(id string) {
	r.notify(id, 0)
}

func (r *Registry) notify(id string, gen uint64) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	if !ok || (gen != 0 && sess.gen != gen) {
		r.mu.RUnlock()
		return
	}
	viewers := make([]*Viewer, 0, len(sess.viewers))
	for v := range sess.viewers {
		viewers = append(viewers, v)
	}
	r.mu.RUnlock()

	if len(viewers) == 0 {
		return
	}

	var failed []*Viewer
	for _, v := range viewers {
		if err := v.send(reloadMessage); err != nil {
			r.logger.Debug("reload push failed", "session", id, "viewer", v.ID(), "error", err)
			failed = append(failed, v)
		}
	}
	recordReloads(len(viewers) - len(failed))

	if len(failed) > 0 {
		if pruned := r.pruneFailed(id, failed); pruned > 0 {
			recordViewerDelta(-pruned)
		}
	}

	r.logger.Debug("reload sent", "session", id, "viewers", len(viewers)-len(failed))
}

// pruneFailed drops viewers whose reload send failed and reports how many
// were actually removed. A viewer that already detached itself between the
// fanout snapshot and this lock is skipped, so its gauge decrement is not
// repeated here.
func (r *Registry) pruneFailed(id string, failed []*Viewer) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return 0
	}
	pruned := 0
	for _, v := range failed {
		if sess.viewers[v] {
			delete(sess.viewers, v)
			v.close()
			pruned++
		}
	}
	return pruned
}

// Attach adds a viewer to the session. It reports false when no session is
// registered under id, in which case the caller owns the connection.
func (r *Registry) Attach(id string, v *Viewer) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	sess.viewers[v] = true
	n := len(sess.viewers)
	r.mu.Unlock()

	recordViewerDelta(1)
	r.logger.Debug("viewer attached", "session", id, "viewer", v.ID(), "viewers", n)
	return true
}

// Detach removes a viewer from the session. Idempotent: detaching a viewer
// that was already pruned is a no-op.
func (r *Registry) Detach(id string, v *Viewer) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok || !sess.viewers[v] {
		r.mu.Unlock()
		return
	}
	delete(sess.viewers, v)
	n := len(sess.viewers)
	r.mu.Unlock()

	recordViewerDelta(-1)
	r.logger.Debug("viewer detached", "session", id, "viewer", v.ID(), "viewers", n)
}

// HasActiveConnections reports whether at least one viewer is attached to
// the session right now. Callers use it to decide between opening a browser
// tab and letting the attached ones reload.
func (r *Registry) HasActiveConnections(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return ok && len(sess.viewers) > 0
}

// Has reports whether a session is registered under id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Path returns the watched artifact path for the session.
func (r *Registry) Path(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	return sess.path, true
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of every session, for status endpoints.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, SessionInfo{ID: sess.id, Path: sess.path, Viewers: len(sess.viewers)})
	}
	return infos
}

// Remove drops the session: its watcher stops and its viewers stop
// receiving reloads. Attached sockets stay open; a later disconnect hits
// Detach, which treats the missing session as a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, id)
	count := len(r.sessions)
	watcher := sess.watcher
	sess.watcher = nil
	orphaned := len(sess.viewers)
	r.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	recordSessionCount(count)
	if orphaned > 0 {
		recordViewerDelta(-orphaned)
	}
	r.logger.Debug("session removed", "session", id, "viewers", orphaned)
}

// CloseAll tears down every session. Sessions close concurrently since each
// may block briefly on its watcher and sockets.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			r.closeSession(s)
		}(sess)
	}
	wg.Wait()
	recordSessionCount(0)
}

// closeSession must be called with sess already unlinked from the map.
func (r *Registry) closeSession(sess *session) {
	if sess.watcher != nil {
		sess.watcher.Close()
	}
	viewers := 0
	for v := range sess.viewers {
		v.close()
		viewers++
	}
	if viewers > 0 {
		recordViewerDelta(-viewers)
	}
}
