// Assistant wire types shared between the host bridge and the sync engine
package models

import (
	"encoding/json"
	"time"
)

// Conversation status values reported by the host.
const (
	StatusSubmitted = "submitted"
	StatusWorking   = "working"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Resource is an attachment submitted with a prompt or produced by the agent.
type Resource struct {
	Tag      string `json:"tag"`
	Name     string `json:"name,omitempty"`
	URI      string `json:"uri,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Artifact is an opaque agent-produced output reference.
type Artifact struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Conversation is the host's record of one prompt/response exchange.
// IDs are assigned by the host and increase monotonically; updated_at never
// decreases across successive fetches of the same id.
type Conversation struct {
	ID        int64      `json:"_id"`
	User      string     `json:"user"`
	Thread    string     `json:"thread"`
	Messages  []Message  `json:"messages"`
	Resources []Resource `json:"resources,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Status    string     `json:"status"`
	Period    int64      `json:"period"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
}

// IsTerminal reports whether no further host-side change is expected.
func (c *Conversation) IsTerminal() bool {
	switch c.Status {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// IsActive reports whether the host is still producing this conversation.
func (c *Conversation) IsActive() bool {
	return c.Status == StatusSubmitted || c.Status == StatusWorking
}

// PeriodOf buckets a millisecond timestamp into the hour it falls in.
func PeriodOf(ms int64) int64 {
	return ms / int64(time.Hour/time.Millisecond)
}

// Usage is token/request accounting attached to every host response.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Requests     int64 `json:"requests"`
}

// Memory tool operation names.
const (
	MemoryToolName = "memory_api"

	OpListPrevConversations = "ListPrevConversations"
	OpGetConversation       = "GetConversation"
	OpListKipLogs           = "ListKipLogs"
	OpStopConversation      = "StopConversation"
)

// MemoryArgs is the argument block for memory_api tool calls.
type MemoryArgs struct {
	Type   string `json:"_type"`
	ID     int64  `json:"_id,omitempty"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ToolInput is the request envelope for tool_call.
type ToolInput struct {
	Name string `json:"name"`
	Args any    `json:"args"`
}

// Response wraps a tool result with an optional error and pagination cursor.
// An empty NextCursor means no more history.
type Response[T any] struct {
	Result     T      `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ToolOutput is the response envelope for tool_call.
type ToolOutput[T any] struct {
	Output Response[T] `json:"output"`
	Usage  Usage       `json:"usage"`
}

// AgentInput is the request envelope for agent_run.
type AgentInput struct {
	Name      string            `json:"name"`
	Prompt    string            `json:"prompt"`
	Resources []Resource        `json:"resources,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// AgentOutput is the response envelope for agent_run. Conversation carries the
// id of the conversation the host created for this run, when it created one.
type AgentOutput struct {
	Content      string `json:"content"`
	Usage        Usage  `json:"usage"`
	Conversation int64  `json:"conversation,omitempty"`
	FailedReason string `json:"failed_reason,omitempty"`
}

// KIPLog is one knowledge-graph command record from the host's memory layer.
type KIPLog struct {
	ID        int64  `json:"_id"`
	User      string `json:"user"`
	Command   string `json:"command"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// AgentCard describes one agent the engine exposes.
type AgentCard struct {
	Definition            json.RawMessage `json:"definition"`
	SupportedResourceTags []string        `json:"supported_resource_tags,omitempty"`
}

// ToolCard describes one tool the engine exposes.
type ToolCard struct {
	Definition            json.RawMessage `json:"definition"`
	SupportedResourceTags []string        `json:"supported_resource_tags,omitempty"`
}

// EngineInfo is the engine's self-description.
type EngineInfo struct {
	Handle         string            `json:"handle"`
	HandleCanister string            `json:"handle_canister,omitempty"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Endpoint       string            `json:"endpoint,omitempty"`
	Protocols      map[string]string `json:"protocols,omitempty"`
	Payments       []string          `json:"payments,omitempty"`
}

// EngineCard is returned by assistant_info. An engine with no agents is not
// ready to accept prompts yet.
type EngineCard struct {
	ID     string      `json:"id"`
	Info   EngineInfo  `json:"info"`
	Agents []AgentCard `json:"agents"`
	Tools  []ToolCard  `json:"tools"`
}
