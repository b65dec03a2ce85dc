package mcp

import (
	"encoding/json"
	"fmt"
)

// Tool error codes are self-describing snake_case strings so an agent can
// decide whether to fix its input, retry, or give up without a lookup table.
const (
	// ErrInvalidInput: the arguments are wrong; fix them before calling again.
	ErrInvalidInput = "invalid_input"

	// ErrRenderFailed: the renderer rejected the source; the source must change.
	ErrRenderFailed = "render_failed"

	// ErrSaveFailed: the workspace write failed; usually transient.
	ErrSaveFailed = "save_failed"

	// ErrNotFound: the named diagram is not in the workspace.
	ErrNotFound = "not_found"

	// ErrInternal: server-side fault; not fixable by changing arguments.
	ErrInternal = "internal_error"
)

// StructuredError is the JSON body embedded in error tool results.
type StructuredError struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retry     string `json:"retry"`
	Retryable bool   `json:"retryable"`
	Hint      string `json:"hint,omitempty"`
}

const marshalFallback = `{"content":[{"type":"text","text":"Internal error: failed to marshal result"}],"isError":true}`

// safeMarshal marshals v, falling back to a fixed payload on the (normally
// impossible) failure path so the client always receives valid JSON.
func safeMarshal(v any, fallback string) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fallback)
	}
	return data
}

// textResponse wraps plain text in a successful tool result.
func textResponse(text string) json.RawMessage {
	result := MCPToolResult{
		Content: []MCPContentBlock{{Type: "text", Text: text}},
	}
	return safeMarshal(result, marshalFallback)
}

// jsonResponse wraps the JSON encoding of v in a successful tool result.
func jsonResponse(v any) json.RawMessage {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResponse(ErrInternal, "failed to encode result", "Report this; retrying will not help")
	}
	return textResponse(string(payload))
}

// errorResponse builds an error tool result. The first text line is a
// human-readable summary; the second is the structured JSON body. The retry
// string is a plain-English instruction the caller can follow directly.
func errorResponse(code, message, retry string, opts ...func(*StructuredError)) json.RawMessage {
	se := StructuredError{
		Error:     code,
		Message:   message,
		Retry:     retry,
		Retryable: retryableByDefault(code),
	}
	for _, opt := range opts {
		opt(&se)
	}

	// Marshal cannot fail: flat struct, string and bool fields only.
	body, _ := json.Marshal(se)
	text := fmt.Sprintf("Error: %s — %s\n%s", code, retry, string(body))

	result := MCPToolResult{
		Content: []MCPContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
	return safeMarshal(result, marshalFallback)
}

// withHint attaches a hint field to a structured error.
func withHint(h string) func(*StructuredError) {
	return func(se *StructuredError) { se.Hint = h }
}

// retryableByDefault reports whether an unchanged retry of the same call can
// plausibly succeed for the given code. Input and source problems require the
// caller to change something first; workspace writes can fail transiently.
func retryableByDefault(code string) bool {
	return code == ErrSaveFailed
}
