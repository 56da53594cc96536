// Package agent implements the tool-calling chat orchestrator: the tool
// contract and registry, the provider contract, and the bounded loop that
// alternates model calls with tool executions.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// Tool is the capability every server-side tool satisfies.
//
// Schema returns a JSON Schema object ({"type":"object","properties":...,
// "required":[...]}) that the registry validates raw arguments against
// before Execute is called. Execute receives arguments that already passed
// validation. Returning an error is equivalent to returning a failed
// ToolResult carrying the error text.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	RequiresAuth() bool
	Execute(ctx context.Context, exec *ExecutionContext, args json.RawMessage) (models.ToolResult, error)
}

// ArgumentCoercer is implemented by tools that normalize arguments after
// schema validation, for example by filling defaults or trimming strings.
type ArgumentCoercer interface {
	CoerceArguments(args json.RawMessage) (json.RawMessage, error)
}

// ExecutionContext describes who a chat call runs for. It is built once per
// top-level chat call and never mutated afterwards.
type ExecutionContext struct {
	// Actor is nil for anonymous callers.
	Actor *models.User

	// RequestID is unique per top-level chat call. It is always minted
	// server-side.
	RequestID string

	// CorrelationID is the caller's X-Request-ID, if any. Logs only.
	CorrelationID string

	Timestamp time.Time

	RemoteAddr string
	UserAgent  string
}

// NewExecutionContext returns a context with a fresh request id.
func NewExecutionContext(actor *models.User, remoteAddr, userAgent string) *ExecutionContext {
	return &ExecutionContext{
		Actor:      actor.Clone(),
		RequestID:  uuid.NewString(),
		Timestamp:  time.Now(),
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
	}
}

// Authenticated reports whether an actor is present.
func (e *ExecutionContext) Authenticated() bool {
	return e != nil && e.Actor != nil
}

// ActorID returns the actor id or "" for anonymous callers.
func (e *ExecutionContext) ActorID() string {
	if !e.Authenticated() {
		return ""
	}
	return e.Actor.ID
}

// IsAdmin reports whether the actor is an administrator.
func (e *ExecutionContext) IsAdmin() bool {
	return e.Authenticated() && e.Actor.IsAdmin
}

// ToolDescriptor is the model-facing description of a tool.
type ToolDescriptor struct {
	Type     string             `json:"type"`
	Function FunctionDescriptor `json:"function"`
}

// FunctionDescriptor is the function part of a ToolDescriptor.
type FunctionDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// DescribeTool converts a tool to its model-facing descriptor.
func DescribeTool(t Tool) ToolDescriptor {
	return ToolDescriptor{
		Type: "function",
		Function: FunctionDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		},
	}
}
