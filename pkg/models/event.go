package models

// StreamEventType identifies the kind of event emitted by a streaming chat.
type StreamEventType string

const (
	StreamEventContent    StreamEventType = "content"
	StreamEventToolStart  StreamEventType = "tool_start"
	StreamEventToolResult StreamEventType = "tool_result"
	StreamEventDone       StreamEventType = "done"
	StreamEventError      StreamEventType = "error"
)

// StreamEvent is the wire payload for one server-sent or websocket event.
// Only the fields relevant to Type are populated.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	Data       string          `json:"data,omitempty"`
	Name       string          `json:"name,omitempty"`
	Result     *ToolResult     `json:"result,omitempty"`
	Iterations int             `json:"iterations,omitempty"`
	Message    string          `json:"message,omitempty"`

	// MaxIterations marks the terminal event emitted when the loop cap was hit.
	MaxIterations bool `json:"maxIterations,omitempty"`
}

// ChatResult is the outcome of a batch chat call.
type ChatResult struct {
	Response             string   `json:"response"`
	ToolsUsed            []string `json:"toolsUsed"`
	Iterations           int      `json:"iterations"`
	Cached               bool     `json:"cached"`
	MaxIterationsReached bool     `json:"maxIterationsReached,omitempty"`
	RequestID            string   `json:"requestId,omitempty"`
}
