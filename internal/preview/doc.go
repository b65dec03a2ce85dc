// Package preview implements the live preview server for Easel.
//
// The preview server is a lazily started singleton: the first render starts
// it, later renders reuse it. It binds the first free port in the configured
// range, serves rendered diagrams over HTTP, and pushes reload notifications
// to attached browsers over WebSocket whenever a watched artifact changes.
//
// The core pieces:
//
//   - Registry: sessions keyed by diagram ID, each bound to one file watcher
//     and a set of attached viewer connections.
//   - ConnectionManager: upgrades viewer sockets and ties their lifecycle to
//     a session.
//   - Server: the HTTP server, router, and shared lifecycle.
package preview
