package model

import "context"

// MessageRole identifies the author of a completion message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// Message is a provider-neutral conversation message. Assistant messages
// may carry tool calls; tool messages carry the result for one call ID.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// ToolSpec describes one callable tool for the completion request.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Request is one completion request: a system instruction, the working
// message list, and the tool schema.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Completion is the model's answer: either plain text or one-or-more
// requested tool calls.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model asked for tool execution.
func (c *Completion) HasToolCalls() bool {
	return len(c.ToolCalls) > 0
}

// Client is the completion service boundary. Transient failures are
// retried internally; a returned error means all attempts failed.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
