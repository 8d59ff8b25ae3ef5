// Package transport carries commands and events between the app and the
// native host process that owns conversations, identity, and the AI engine.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrClosed       = errors.New("transport: closed")
)

// Transport is an opaque request/response and event-subscription channel to
// the host process. Call failures surface as errors; event delivery order is
// not guaranteed relative to in-flight calls.
type Transport interface {
	// Call invokes a host command and returns its raw result.
	Call(ctx context.Context, command string, args any) (json.RawMessage, error)

	// Subscribe registers a handler for a named host event and returns an
	// unsubscribe function.
	Subscribe(event string, fn func(payload json.RawMessage)) func()
}

// Host command names.
const (
	CmdToolCall      = "tool_call"
	CmdAgentRun      = "agent_run"
	CmdAssistantInfo = "assistant_info"
	CmdAssistantName = "assistant_name"
	CmdCallerName    = "caller_name"
	CmdIdentity      = "identity"
	CmdGetUser       = "get_user"
	CmdSignIn        = "sign_in"
	CmdLogout        = "logout"
)

// Host event names.
const (
	EventAssistantReady  = "AssistantReady"
	EventIdentityChanged = "IdentityChanged"
)

// CallError is a call the host rejected (the transport itself worked).
type CallError struct {
	Command string
	Reason  string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("host rejected %s: %s", e.Command, e.Reason)
}

// BackendError is a tool call that completed with output.error set.
type BackendError struct {
	Op     string
	Reason string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
