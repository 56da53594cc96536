package agent

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/toolchat/pkg/models"
	"github.com/invopop/jsonschema"
)

// TypedFunc is the executor of a TypedTool.
type TypedFunc[In any] func(ctx context.Context, exec *ExecutionContext, in In) (models.ToolResult, error)

// TypedTool adapts a Go function with a struct input to the Tool interface.
// The parameter schema is reflected from In, so `json` and `jsonschema`
// struct tags drive both the model-facing description and validation.
type TypedTool[In any] struct {
	name         string
	description  string
	requiresAuth bool
	schema       json.RawMessage
	fn           TypedFunc[In]
}

// NewTypedTool builds a tool whose arguments decode into In.
func NewTypedTool[In any](name, description string, requiresAuth bool, fn TypedFunc[In]) *TypedTool[In] {
	return &TypedTool[In]{
		name:         name,
		description:  description,
		requiresAuth: requiresAuth,
		schema:       ReflectSchema[In](),
		fn:           fn,
	}
}

// ReflectSchema returns the inline JSON Schema for In.
func ReflectSchema[In any]() json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	var zero In
	s := r.Reflect(&zero)
	s.Version = ""
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

func (t *TypedTool[In]) Name() string            { return t.name }
func (t *TypedTool[In]) Description() string     { return t.description }
func (t *TypedTool[In]) Schema() json.RawMessage { return t.schema }
func (t *TypedTool[In]) RequiresAuth() bool      { return t.requiresAuth }

// Execute decodes args into In and calls the typed function.
func (t *TypedTool[In]) Execute(ctx context.Context, exec *ExecutionContext, args json.RawMessage) (models.ToolResult, error) {
	var in In
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return models.ToolFailure((&ValidationError{Tool: t.name, Message: err.Error()}).Error()), nil
		}
	}
	return t.fn(ctx, exec, in)
}

// SchemaTool is a Tool with a hand-written schema and a raw-argument executor.
type SchemaTool struct {
	ToolName        string
	ToolDescription string
	Parameters      json.RawMessage
	Auth            bool
	Fn              func(ctx context.Context, exec *ExecutionContext, args json.RawMessage) (models.ToolResult, error)
}

// NewSchemaTool builds a SchemaTool. A nil schema accepts any object.
func NewSchemaTool(name, description string, schema json.RawMessage, requiresAuth bool,
	fn func(ctx context.Context, exec *ExecutionContext, args json.RawMessage) (models.ToolResult, error)) *SchemaTool {
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return &SchemaTool{
		ToolName:        name,
		ToolDescription: description,
		Parameters:      schema,
		Auth:            requiresAuth,
		Fn:              fn,
	}
}

func (t *SchemaTool) Name() string            { return t.ToolName }
func (t *SchemaTool) Description() string     { return t.ToolDescription }
func (t *SchemaTool) Schema() json.RawMessage { return t.Parameters }
func (t *SchemaTool) RequiresAuth() bool      { return t.Auth }

func (t *SchemaTool) Execute(ctx context.Context, exec *ExecutionContext, args json.RawMessage) (models.ToolResult, error) {
	return t.Fn(ctx, exec, args)
}
