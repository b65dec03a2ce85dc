package editor

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

const editorBase = "https://mermaid.live/edit"

// decodeState reverses the fragment encoding: base64url, zlib, JSON.
func decodeState(t *testing.T, url string) map[string]any {
	t.Helper()

	idx := strings.Index(url, "#pako:")
	if idx < 0 {
		t.Fatalf("HandoffURL() = %q, want a #pako: fragment", url)
	}
	packed, err := base64.RawURLEncoding.DecodeString(url[idx+len("#pako:"):])
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(packed))
	if err != nil {
		t.Fatalf("zlib reader: %v", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("zlib read: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("state JSON: %v", err)
	}
	return doc
}

func TestHandoffURLRoundTrip(t *testing.T) {
	source := "flowchart TD\n  A[Start] --> B{Decide}\n  B -->|yes| C[Ship]\n"

	url, err := HandoffURL(editorBase, []byte(source), "dark")
	if err != nil {
		t.Fatalf("HandoffURL() error = %v", err)
	}
	if !strings.HasPrefix(url, editorBase+"#pako:") {
		t.Fatalf("HandoffURL() = %q, want prefix %q", url, editorBase+"#pako:")
	}

	doc := decodeState(t, url)
	if got := doc["code"]; got != source {
		t.Errorf("code = %q, want %q", got, source)
	}
	mermaid, ok := doc["mermaid"].(map[string]any)
	if !ok {
		t.Fatalf("mermaid settings missing: %v", doc)
	}
	if got := mermaid["theme"]; got != "dark" {
		t.Errorf("theme = %q, want %q", got, "dark")
	}
	if doc["autoSync"] != true || doc["updateDiagram"] != true {
		t.Errorf("autoSync/updateDiagram = %v/%v, want true/true", doc["autoSync"], doc["updateDiagram"])
	}
}

func TestHandoffURLEmptyThemeDefaults(t *testing.T) {
	url, err := HandoffURL(editorBase, []byte("pie\n  \"a\": 1\n"), "")
	if err != nil {
		t.Fatalf("HandoffURL() error = %v", err)
	}
	mermaid := decodeState(t, url)["mermaid"].(map[string]any)
	if got := mermaid["theme"]; got != "default" {
		t.Errorf("theme = %q, want %q", got, "default")
	}
}

func TestHandoffURLFragmentIsURLSafe(t *testing.T) {
	// A source long enough that the deflate stream exercises the full
	// byte range.
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("  Alice->>Bob: message\n  Bob-->>Alice: reply\n")
	}

	url, err := HandoffURL(editorBase, []byte(sb.String()), "forest")
	if err != nil {
		t.Fatalf("HandoffURL() error = %v", err)
	}
	payload := url[strings.Index(url, "#pako:")+len("#pako:"):]
	if strings.ContainsAny(payload, "+/=") {
		t.Errorf("payload contains non-URL-safe characters: %q", payload)
	}
}
