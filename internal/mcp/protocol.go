package mcp

import (
	"bytes"
	"encoding/json"
)

// Protocol revisions accepted during initialize. Clients proposing anything
// else are answered with the latest revision, per the MCP negotiation rules.
const (
	protocolVersionLatest = "2025-06-18"
	protocolVersionLegacy = "2024-11-05"
)

// JSONRPCRequest is an incoming JSON-RPC 2.0 request or notification.
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	// The spec allows the ID to be a string, a number, or absent.
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`

	idPresent       bool `json:"-"`
	idExplicitNull  bool `json:"-"`
	idInvalidFormat bool `json:"-"`
}

// UnmarshalJSON records whether the id field was present, explicitly null,
// or of an invalid type. The distinction matters: requests without an id
// are notifications and must not be answered, while an explicit null or a
// structured id is a protocol violation that must be.
func (r *JSONRPCRequest) UnmarshalJSON(data []byte) error {
	type rawRequest struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}

	r.JSONRPC = raw.JSONRPC
	r.Method = raw.Method
	r.Params = raw.Params
	r.ID = nil
	_, r.idPresent = object["id"]
	r.idExplicitNull = false
	r.idInvalidFormat = false

	rawID, ok := object["id"]
	if !ok {
		return nil
	}

	trimmed := bytes.TrimSpace(rawID)
	if bytes.Equal(trimmed, []byte("null")) {
		r.idExplicitNull = true
		return nil
	}

	var parsed any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	switch parsed.(type) {
	case string, float64:
		r.ID = parsed
	default:
		r.idInvalidFormat = true
	}
	return nil
}

// HasID reports whether the request carries a usable id (i.e. is not a
// notification).
func (r JSONRPCRequest) HasID() bool {
	return r.idPresent || r.ID != nil
}

// HasInvalidID reports whether the id field was present but unusable
// (explicit null, or an array/object).
func (r JSONRPCRequest) HasInvalidID() bool {
	return r.idExplicitNull || r.idInvalidFormat
}

// JSONRPCResponse is an outgoing JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error member of a failed response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// negotiateProtocolVersion picks the protocol revision for the initialize
// response: echo the client's proposal when we support it, otherwise the
// latest we speak.
func negotiateProtocolVersion(rawParams json.RawMessage) string {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(rawParams) > 0 {
		_ = json.Unmarshal(rawParams, &params)
	}

	switch params.ProtocolVersion {
	case protocolVersionLatest, protocolVersionLegacy:
		return params.ProtocolVersion
	default:
		return protocolVersionLatest
	}
}
