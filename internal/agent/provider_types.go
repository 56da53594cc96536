package agent

import (
	"context"

	"github.com/haasonsaas/toolchat/pkg/models"
)

// LLMProvider is the outbound boundary to a chat-completion model endpoint.
//
// Complete performs a single request and returns one assistant message,
// possibly carrying tool calls. Stream returns a channel of incremental
// chunks; the provider closes it when the upstream stream ends. A chunk
// with a non-nil Error is always the last one sent.
//
// Implementations should map deadline expiry to *TimeoutError and error
// payloads from the endpoint to *UpstreamError.
type LLMProvider interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Stream(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
}

// CompletionRequest is what the orchestrator sends to a provider.
type CompletionRequest struct {
	// Model overrides the provider default when set.
	Model string

	// Messages is the full ordered transcript, system message first.
	Messages []models.Message

	// Tools is offered with tool choice "auto" when non-empty.
	Tools []ToolDescriptor

	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the assistant message of a batch completion.
type CompletionResponse struct {
	Message      models.Message
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// CompletionChunk is one increment of a streamed completion. Exactly one of
// Text, ToolCall, Done or Error is meaningful per chunk.
type CompletionChunk struct {
	Text     string
	ToolCall *ToolCallDelta
	Done     bool
	Error    error
}

// ToolCallDelta is a fragment of a tool call. Fragments with the same Index
// belong to the same call; ID and Name replace earlier values when set and
// Arguments is appended.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}
