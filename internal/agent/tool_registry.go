package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/haasonsaas/toolchat/pkg/models"
)

// Tool parameter limits to prevent resource exhaustion
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (1MB).
	MaxToolParamsSize = 1 << 20
)

// ToolRegistry holds tools by name. Registration happens at startup; after
// that the map is read-mostly and lookups take a read lock only.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewToolRegistry creates a new empty tool registry ready for tool registration.
func NewToolRegistry(logger *slog.Logger) *ToolRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRegistry{
		tools:  make(map[string]Tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool to the registry. A second tool with the same name is
// a ConfigurationError.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return &ConfigurationError{Message: "cannot register nil tool"}
	}
	name := tool.Name()
	if name == "" || len(name) > MaxToolNameLength {
		return &ConfigurationError{Message: fmt.Sprintf("invalid tool name %q", name)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return &ConfigurationError{Message: fmt.Sprintf("tool %q is already registered", name)}
	}
	r.tools[name] = tool
	return nil
}

// MustRegister registers every tool and panics on the first error.
func (r *ToolRegistry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns a tool by name and a boolean indicating if it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns every registered tool name in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Available returns the tools visible to exec, sorted by name. Tools that
// require auth are hidden from anonymous callers.
func (r *ToolRegistry) Available(exec *ExecutionContext) []Tool {
	r.mu.RLock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if t.RequiresAuth() && !exec.Authenticated() {
			continue
		}
		tools = append(tools, t)
	}
	r.mu.RUnlock()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// ListAvailable returns the model-facing descriptors visible to exec.
func (r *ToolRegistry) ListAvailable(exec *ExecutionContext) []ToolDescriptor {
	tools := r.Available(exec)
	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, DescribeTool(t))
	}
	return out
}

// AvailableNames returns the names of the tools visible to exec.
func (r *ToolRegistry) AvailableNames(exec *ExecutionContext) []string {
	tools := r.Available(exec)
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}

// Execute runs a tool by name. It never returns an error: lookup failures,
// missing auth, schema violations, executor errors and panics all become a
// failed ToolResult.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage, exec *ExecutionContext) models.ToolResult {
	if len(name) > MaxToolNameLength {
		return models.ToolFailure(fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength))
	}
	if len(args) > MaxToolParamsSize {
		return models.ToolFailure(fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize))
	}

	tool, ok := r.Get(name)
	if !ok {
		return models.ToolFailure(fmt.Sprintf("%s: %s", ErrToolNotFound, name))
	}
	if tool.RequiresAuth() && !exec.Authenticated() {
		return models.ToolFailure((&AuthorizationError{Reason: "authentication required to use " + name}).Error())
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := ValidateArguments(name, tool.Schema(), args); err != nil {
		return models.ToolFailure(err.Error())
	}
	if coercer, ok := tool.(ArgumentCoercer); ok {
		coerced, err := coercer.CoerceArguments(args)
		if err != nil {
			return models.ToolFailure((&ValidationError{Tool: name, Message: err.Error()}).Error())
		}
		args = coerced
	}

	return r.invoke(ctx, tool, args, exec)
}

func (r *ToolRegistry) invoke(ctx context.Context, tool Tool, args json.RawMessage, exec *ExecutionContext) (result models.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				"tool", tool.Name(),
				"request_id", exec.requestID(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = models.ToolFailure(fmt.Sprintf("%s: %v", ErrToolPanic, rec))
		}
	}()

	res, err := tool.Execute(ctx, exec, args)
	if err != nil {
		return models.ToolFailure(err.Error())
	}
	return res
}

func (e *ExecutionContext) requestID() string {
	if e == nil {
		return ""
	}
	return e.RequestID
}
