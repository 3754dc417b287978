package mcpserver

import "fmt"

// DispatchError carries a JSON-RPC-flavoured error code alongside a
// human-readable message, for the auth/authz/validation failures spec §4.9
// calls out by number. Tool-level failures a handler wants surfaced as an
// MCP CallToolResult error go through the SDK's normal error return; this
// type exists so the code survives in the message for callers/logs that
// need it (the SDK itself does not expose custom JSON-RPC codes from tool
// handlers — framing is its job, per this Dispatcher's design).
type DispatchError struct {
	Code    int
	Message string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeAuthFailure    = -32001
	codeAuthzFailure   = -32002
)

func errAuth(message string) error {
	return &DispatchError{Code: codeAuthFailure, Message: message}
}

func errAuthz(message string) error {
	return &DispatchError{Code: codeAuthzFailure, Message: message}
}

func errInvalidParams(message string) error {
	return &DispatchError{Code: codeInvalidParams, Message: message}
}

func errInternal(message string) error {
	return &DispatchError{Code: codeInternalError, Message: message}
}
