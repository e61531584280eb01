// Package graph provides the agent handoff engine: a graph of agents where
// exactly one agent is active at a time and control moves only along
// declared handoff edges.
package graph

import "errors"

// Engine error codes.
const (
	CodeMaxStepsExceeded = "MAX_STEPS_EXCEEDED"
	CodeNodeNotFound     = "NODE_NOT_FOUND"
	CodeHandoffRejected  = "HANDOFF_REJECTED"
	CodeStoreError       = "STORE_ERROR"
	CodeNodeTimeout      = "NODE_TIMEOUT"
	CodeNoStartNode      = "NO_START_NODE"
	CodeNoRoute          = "NO_ROUTE"
	CodeDuplicateNode    = "DUPLICATE_NODE"
	CodeInvalidOption    = "INVALID_OPTION"
)

// ErrMaxStepsExceeded indicates that the run reached the maximum allowed
// number of agent turns without finishing. This prevents agents from
// handing work back and forth forever.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrHandoffRejected indicates that a node routed to an agent that is not a
// declared handoff target of the active agent.
var ErrHandoffRejected = errors.New("handoff not allowed")

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
	Cause   error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the EngineError code carried by err, or "" if err does not
// wrap an EngineError.
func ErrorCode(err error) string {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Code
	}
	return ""
}
