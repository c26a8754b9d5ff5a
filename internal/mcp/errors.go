// Package mcp implements the MCP Streamable HTTP transport: session
// lifecycle, JSON-RPC dispatch, and the resolve-library-id/query-docs/
// fetch-library-docs tool set over the shared query engine and ingestion
// pipeline.
package mcp

import (
	"fmt"

	"github.com/docserver/docserver/internal/docerrors"
)

// MCPError is a JSON-RPC 2.0 error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError translates an internal error into the JSON-RPC error object
// returned to the client, the single choke-point mirroring the teacher's
// MapError: a DocError's category maps through docerrors.JSONRPCCode and
// docerrors.Message, never re-exposing the wrapped cause.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	return &MCPError{Code: docerrors.JSONRPCCode(err), Message: docerrors.Message(err)}
}

func newInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: docerrors.JSONRPCInvalidParams, Message: msg}
}

func newMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: docerrors.JSONRPCMethodNotFound, Message: fmt.Sprintf("method %q not found", name)}
}

func newInvalidRequestError(msg string) *MCPError {
	return &MCPError{Code: docerrors.JSONRPCInvalidRequest, Message: msg}
}

func newParseError(msg string) *MCPError {
	return &MCPError{Code: docerrors.JSONRPCParseError, Message: msg}
}
