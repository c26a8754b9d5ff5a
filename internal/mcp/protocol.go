package mcp

import "encoding/json"

// ProtocolVersion is the MCP wire protocol version this server implements
// (spec §4.F.2).
const ProtocolVersion = "2024-11-05"

// SessionHeader is the HTTP header carrying a Streamable HTTP session id.
const SessionHeader = "Mcp-Session-Id"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result or
// Error is set, matching the spec.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *MCPError       `json:"error,omitempty"`
}

func successResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err *MCPError) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: err}
}

// Implementation identifies the server in the initialize handshake, the
// same shape the mcp-go-sdk's Implementation type uses.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the `initialize` method.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// InitializeParams is what the client sends with `initialize`; only
// ProtocolVersion is consulted, the rest is accepted and ignored.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// Tool describes one callable tool for `tools/list`.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolsListResult is the result of `tools/list`.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolsCallParams is the params of `tools/call`.
type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// TextContent is one block of a tool result's content array.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolsCallResult wraps a tool's output the way spec §6 requires:
// `{ content: [{ type: "text", text: "..." }] }`.
type ToolsCallResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

func textResult(text string) *ToolsCallResult {
	return &ToolsCallResult{Content: []TextContent{{Type: "text", Text: text}}}
}
