// Package models provides domain types shared by the toolchat packages.
package models

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry of the model-facing transcript.
//
// Assistant messages may carry ToolCalls; tool messages carry the ToolCallID
// they answer and the serialized ToolResult as Content.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall represents a model's request to execute a tool. Arguments is the
// raw JSON-encoded string exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of one tool execution. When Success is false,
// Data is either nil or advisory only (for example a list of valid choices).
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolSuccess builds a successful result.
func ToolSuccess(data any) ToolResult {
	return ToolResult{Success: true, Data: data}
}

// ToolFailure builds a failed result with an optional advisory payload.
func ToolFailure(message string, advisory ...any) ToolResult {
	result := ToolResult{Success: false, Error: message}
	if len(advisory) > 0 {
		result.Data = advisory[0]
	}
	return result
}
