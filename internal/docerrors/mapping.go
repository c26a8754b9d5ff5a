package docerrors

import "net/http"

// HTTPStatus maps a DocError's category to the status code the REST layer
// returns, the single choke-point spec §7 requires. Unrecognized errors
// (not a *DocError) map to 500, since they represent something the service
// failed to classify before it escaped a package boundary.
func HTTPStatus(err error) int {
	switch CategoryOf(err) {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryUpstreamUnavailable:
		return http.StatusBadGateway
	case CategoryStore:
		return http.StatusInternalServerError
	case CategoryProtocol:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// JSON-RPC 2.0 reserves -32700..-32603 for transport-level errors; the
// range below -32000 is left for application-defined codes per the spec.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603

	jsonRPCStoreError          = -32000
	jsonRPCNotFound            = -32001
	jsonRPCConflict            = -32002
	jsonRPCUpstreamUnavailable = -32003
)

// JSONRPCCode maps a DocError's category to the JSON-RPC error code
// internal/mcp's MapError returns to the client, the protocol-side
// counterpart to HTTPStatus.
func JSONRPCCode(err error) int {
	switch CategoryOf(err) {
	case CategoryValidation:
		return JSONRPCInvalidParams
	case CategoryNotFound:
		return jsonRPCNotFound
	case CategoryConflict:
		return jsonRPCConflict
	case CategoryUpstreamUnavailable:
		return jsonRPCUpstreamUnavailable
	case CategoryStore:
		return jsonRPCStoreError
	case CategoryProtocol:
		return JSONRPCInvalidRequest
	default:
		return JSONRPCInternalError
	}
}

// Message returns the text shown to the caller: the DocError's own message
// plus suggestion if present, never the wrapped cause (which may carry
// driver-specific detail spec §7 says must never leak across the boundary).
func Message(err error) string {
	de, ok := err.(*DocError)
	if !ok {
		return "internal error"
	}
	if de.Suggestion != "" {
		return de.Message + ": " + de.Suggestion
	}
	return de.Message
}
