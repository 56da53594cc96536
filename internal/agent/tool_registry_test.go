package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/toolchat/pkg/models"
)

type panicTool struct{}

func (panicTool) Name() string            { return "explode" }
func (panicTool) Description() string     { return "always panics" }
func (panicTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (panicTool) RequiresAuth() bool      { return false }
func (panicTool) Execute(context.Context, *ExecutionContext, json.RawMessage) (models.ToolResult, error) {
	panic("kaboom")
}

type upperTool struct{ panicTool }

func (upperTool) Name() string { return "upper" }
func (upperTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"s":{"type":"string"}},"required":["s"]}`)
}
func (upperTool) CoerceArguments(args json.RawMessage) (json.RawMessage, error) {
	var in map[string]string
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	in["s"] = strings.ToUpper(in["s"])
	return json.Marshal(in)
}
func (upperTool) Execute(_ context.Context, _ *ExecutionContext, args json.RawMessage) (models.ToolResult, error) {
	var in map[string]string
	_ = json.Unmarshal(args, &in)
	return models.ToolSuccess(in["s"]), nil
}

type errTool struct{ panicTool }

func (errTool) Name() string { return "fails" }
func (errTool) Execute(context.Context, *ExecutionContext, json.RawMessage) (models.ToolResult, error) {
	return models.ToolResult{}, errors.New("backend unavailable")
}

func TestToolRegistry_Register(t *testing.T) {
	reg := NewToolRegistry(nil)
	if err := reg.Register(echoTool()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name string
		tool Tool
	}{
		{"duplicate", echoTool()},
		{"nil", nil},
		{"empty name", &SchemaTool{}},
		{"long name", &SchemaTool{ToolName: strings.Repeat("x", MaxToolNameLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.tool)
			var ce *ConfigurationError
			if !errors.As(err, &ce) || !errors.Is(err, ErrConfiguration) {
				t.Errorf("Register() error = %v, want ConfigurationError", err)
			}
		})
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestToolRegistry_MustRegisterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustRegister() with duplicate did not panic")
		}
	}()
	NewToolRegistry(nil).MustRegister(echoTool(), echoTool())
}

func TestToolRegistry_Names(t *testing.T) {
	reg := NewToolRegistry(nil)
	reg.MustRegister(upperTool{}, echoTool(), panicTool{})
	got := strings.Join(reg.Names(), ",")
	if got != "echo,explode,upper" {
		t.Errorf("Names() = %s", got)
	}
}

func TestToolRegistry_ListAvailable(t *testing.T) {
	reg := NewToolRegistry(nil)
	reg.MustRegister(echoTool(), NewSchemaTool("secure", "needs auth", json.RawMessage(`{"type":"object"}`), true,
		func(context.Context, *ExecutionContext, json.RawMessage) (models.ToolResult, error) {
			return models.ToolSuccess(nil), nil
		}))

	anon := reg.ListAvailable(NewExecutionContext(nil, "", ""))
	if len(anon) != 1 || anon[0].Function.Name != "echo" || anon[0].Type != "function" {
		t.Errorf("anonymous descriptors = %+v", anon)
	}
	authed := reg.AvailableNames(adminExec())
	if strings.Join(authed, ",") != "echo,secure" {
		t.Errorf("authenticated names = %v", authed)
	}
}

func TestToolRegistry_Execute(t *testing.T) {
	reg := NewToolRegistry(nil)
	reg.MustRegister(echoTool(), panicTool{}, upperTool{}, errTool{})
	reg.MustRegister(NewSchemaTool("secure", "", nil, true,
		func(context.Context, *ExecutionContext, json.RawMessage) (models.ToolResult, error) {
			return models.ToolSuccess("secret"), nil
		}))

	tests := []struct {
		name        string
		tool        string
		args        string
		exec        *ExecutionContext
		wantSuccess bool
		wantErr     string
	}{
		{"success", "echo", `{"text":"hi"}`, nil, true, ""},
		{"unknown tool", "nope", `{}`, nil, false, "unknown tool: nope"},
		{"schema violation", "echo", `{"text":5}`, nil, false, "invalid arguments for echo"},
		{"extra property", "echo", `{"text":"a","x":1}`, nil, false, "invalid arguments for echo"},
		{"auth required", "secure", `{}`, NewExecutionContext(nil, "", ""), false, "authentication required"},
		{"auth satisfied", "secure", `{}`, adminExec(), true, ""},
		{"panic recovered", "explode", `{}`, nil, false, "tool panicked: kaboom"},
		{"executor error", "fails", `{}`, nil, false, "backend unavailable"},
		{"coerced", "upper", `{"s":"abc"}`, nil, true, ""},
		{"oversized", "echo", `{"text":"` + strings.Repeat("a", MaxToolParamsSize) + `"}`, nil, false, "exceed maximum size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reg.Execute(context.Background(), tt.tool, json.RawMessage(tt.args), tt.exec)
			if res.Success != tt.wantSuccess {
				t.Fatalf("Success = %v, want %v (error %q)", res.Success, tt.wantSuccess, res.Error)
			}
			if tt.wantErr != "" && !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("Error = %q, want substring %q", res.Error, tt.wantErr)
			}
		})
	}

	if res := reg.Execute(context.Background(), "upper", json.RawMessage(`{"s":"abc"}`), nil); res.Data != "ABC" {
		t.Errorf("coerced Data = %v, want ABC", res.Data)
	}
}
