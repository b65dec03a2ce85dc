package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// runStdio feeds input through a server wired to buffers and returns the
// decoded response lines.
func runStdio(t *testing.T, input string) []JSONRPCResponse {
	t.Helper()

	var out bytes.Buffer
	srv := NewServer(Options{In: strings.NewReader(input), Out: &out})
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var resps []JSONRPCResponse
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var resp JSONRPCResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", sc.Text(), err)
		}
		resps = append(resps, resp)
	}
	return resps
}

func TestRunInitializeHandshake(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n") + "\n"

	resps := runStdio(t, input)
	if len(resps) != 3 {
		t.Fatalf("got %d responses, want 3 (notification must stay silent)", len(resps))
	}

	var init MCPInitializeResult
	if err := json.Unmarshal(resps[0].Result, &init); err != nil {
		t.Fatalf("unmarshal initialize result: %v", err)
	}
	if init.ProtocolVersion != protocolVersionLegacy {
		t.Errorf("negotiated %q, want the client's %q", init.ProtocolVersion, protocolVersionLegacy)
	}
	if init.ServerInfo.Name != "easel" {
		t.Errorf("server name = %q", init.ServerInfo.Name)
	}
	if init.Instructions == "" {
		t.Errorf("initialize result missing instructions")
	}

	var list MCPToolsListResult
	if err := json.Unmarshal(resps[1].Result, &list); err != nil {
		t.Fatalf("unmarshal tools/list result: %v", err)
	}
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
		if tool.Description == "" {
			t.Errorf("tool %q has no description", tool.Name)
		}
		if tool.InputSchema["type"] != "object" {
			t.Errorf("tool %q schema type = %v", tool.Name, tool.InputSchema["type"])
		}
	}
	want := []string{"render_diagram", "list_diagrams", "open_editor"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("tools = %v, want %v", names, want)
	}

	if string(resps[2].Result) != `{}` {
		t.Errorf("ping result = %s, want {}", resps[2].Result)
	}
}

func TestRunParseErrors(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":9,"method":123}` + "\n" +
		`this is not json` + "\n" +
		`{"jsonrpc":"2.0","id":3,"method":"ping"}` + "\n"

	resps := runStdio(t, input)
	if len(resps) != 3 {
		t.Fatalf("got %d responses, want 3", len(resps))
	}

	if resps[0].Error == nil || resps[0].Error.Code != -32700 {
		t.Errorf("response 0 = %+v, want -32700", resps[0].Error)
	}
	if resps[0].ID != float64(9) {
		t.Errorf("parse error should echo the request id, got %v", resps[0].ID)
	}

	if resps[1].Error == nil || resps[1].Error.Code != -32700 {
		t.Errorf("response 1 = %+v, want -32700", resps[1].Error)
	}
	if resps[1].ID != nil {
		t.Errorf("unextractable id should come back null, got %v", resps[1].ID)
	}

	if resps[2].Error != nil {
		t.Errorf("valid request after parse errors failed: %+v", resps[2].Error)
	}
}

func TestRunSkipsBlankLines(t *testing.T) {
	input := "\n   \n" + `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n\n"
	resps := runStdio(t, input)
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
}

func TestHandleRequestInvalidIDs(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"explicit null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`},
		{"array id", `{"jsonrpc":"2.0","id":[1],"method":"ping"}`},
		{"object id", `{"jsonrpc":"2.0","id":{"a":1},"method":"ping"}`},
	}

	srv := NewServer(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req JSONRPCRequest
			if err := json.Unmarshal([]byte(tt.line), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			resp := srv.HandleRequest(req)
			if resp == nil {
				t.Fatal("expected a response, got none")
			}
			if resp.Error == nil || resp.Error.Code != -32600 {
				t.Errorf("error = %+v, want -32600", resp.Error)
			}
			if resp.ID != nil {
				t.Errorf("invalid-id response must carry a null id, got %v", resp.ID)
			}
		})
	}
}

func TestHandleRequestNotificationsAreSilent(t *testing.T) {
	srv := NewServer(Options{})
	lines := []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"render_diagram"}}`,
		`{"jsonrpc":"2.0","method":"no/such/method"}`,
	}
	for _, line := range lines {
		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		if resp := srv.HandleRequest(req); resp != nil {
			t.Errorf("notification %q got a response: %+v", line, resp)
		}
	}
}

func TestHandleRequestWrongProtocolVersion(t *testing.T) {
	srv := NewServer(Options{})
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := srv.HandleRequest(req)
	if resp == nil || resp.Error == nil || resp.Error.Code != -32600 {
		t.Fatalf("resp = %+v, want -32600", resp)
	}
	if resp.ID != float64(1) {
		t.Errorf("id = %v, want 1", resp.ID)
	}
}

func TestHandleRequestUnknownMethod(t *testing.T) {
	srv := NewServer(Options{})
	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := srv.HandleRequest(req)
	if resp == nil || resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("resp = %+v, want -32601", resp)
	}
	if !strings.Contains(resp.Error.Message, "resources/list") {
		t.Errorf("message %q does not name the method", resp.Error.Message)
	}
}

func TestHandleRequestUnknownTool(t *testing.T) {
	srv := NewServer(Options{})
	var req JSONRPCRequest
	line := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"bogus","arguments":{}}}`
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := srv.HandleRequest(req)
	if resp == nil || resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("resp = %+v, want -32601", resp)
	}
	if !strings.Contains(resp.Error.Message, "bogus") {
		t.Errorf("message %q does not name the tool", resp.Error.Message)
	}
}

func TestNegotiateProtocolVersion(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   string
	}{
		{"no params", "", protocolVersionLatest},
		{"latest", `{"protocolVersion":"2025-06-18"}`, protocolVersionLatest},
		{"legacy", `{"protocolVersion":"2024-11-05"}`, protocolVersionLegacy},
		{"unsupported", `{"protocolVersion":"1999-01-01"}`, protocolVersionLatest},
		{"wrong type", `{"protocolVersion":42}`, protocolVersionLatest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := negotiateProtocolVersion(json.RawMessage(tt.params))
			if got != tt.want {
				t.Errorf("negotiateProtocolVersion(%q) = %q, want %q", tt.params, got, tt.want)
			}
		})
	}
}
