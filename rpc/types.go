// Package rpc exposes the game via a JSON-RPC 2.0 HTTP endpoint.
package rpc

import (
	"encoding/json"
	"errors"

	"github.com/tolelom/purgegame/core"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeRateLimited    = -32001
)

// Game rejection codes, one per error class.
const (
	CodeGuard      = -32010
	CodeNotReady   = -32011
	CodeEngagement = -32012
	CodeShutdown   = -32013
	CodeNotFound   = -32014
)

// codeFor maps an engine error to its response code.
func codeFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotReady):
		return CodeNotReady
	case errors.Is(err, core.ErrEngagement):
		return CodeEngagement
	case errors.Is(err, core.ErrShutdown):
		return CodeShutdown
	case errors.Is(err, core.ErrGuard):
		return CodeGuard
	case errors.Is(err, core.ErrNotFound):
		return CodeNotFound
	}
	return CodeInternalError
}

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func failResponse(id any, err error) Response {
	return errResponse(id, codeFor(err), err.Error())
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}
