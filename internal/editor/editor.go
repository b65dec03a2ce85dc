// Package editor builds handoff URLs for the mermaid.live web editor.
//
// The editor loads documents from the URL fragment: a JSON state object,
// zlib-deflated, base64url-encoded, behind a "pako:" marker. Nothing is
// sent anywhere; the whole document travels inside the link.
package editor

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
)

// state is the editor's serialized document: the diagram source plus the
// settings the editor applies on load.
type state struct {
	Code          string         `json:"code"`
	Mermaid       map[string]any `json:"mermaid"`
	AutoSync      bool           `json:"autoSync"`
	UpdateDiagram bool           `json:"updateDiagram"`
}

// HandoffURL packs the diagram source into an editor link:
// <base>#pako:<base64url(zlib(state))>. An empty theme means the editor
// default.
func HandoffURL(base string, source []byte, theme string) (string, error) {
	if theme == "" {
		theme = "default"
	}
	raw, err := json.Marshal(state{
		Code:          string(source),
		Mermaid:       map[string]any{"theme": theme},
		AutoSync:      true,
		UpdateDiagram: true,
	})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(raw); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	return base + "#pako:" + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
