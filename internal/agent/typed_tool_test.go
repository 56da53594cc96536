package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/toolchat/pkg/models"
)

type weatherInput struct {
	City  string `json:"city" jsonschema:"description=City name"`
	Units string `json:"units,omitempty" jsonschema:"enum=metric,enum=imperial"`
}

func TestReflectSchema(t *testing.T) {
	var schema struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
		Ref        string                     `json:"$ref"`
		Schema     string                     `json:"$schema"`
	}
	if err := json.Unmarshal(ReflectSchema[weatherInput](), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if schema.Type != "object" || schema.Ref != "" || schema.Schema != "" {
		t.Errorf("schema header = %+v", schema)
	}
	if _, ok := schema.Properties["city"]; !ok {
		t.Error("city property missing")
	}
	if len(schema.Required) != 1 || schema.Required[0] != "city" {
		t.Errorf("required = %v, want [city]", schema.Required)
	}
}

func TestTypedTool_Execute(t *testing.T) {
	var got weatherInput
	tool := NewTypedTool("weather", "Get weather", false, func(_ context.Context, _ *ExecutionContext, in weatherInput) (models.ToolResult, error) {
		got = in
		return models.ToolSuccess(in.City), nil
	})

	if tool.Name() != "weather" || tool.RequiresAuth() || tool.Description() != "Get weather" {
		t.Errorf("metadata = %s %v %s", tool.Name(), tool.RequiresAuth(), tool.Description())
	}

	reg := NewToolRegistry(nil)
	reg.MustRegister(tool)
	res := reg.Execute(context.Background(), "weather", json.RawMessage(`{"city":"Haifa","units":"metric"}`), nil)
	if !res.Success || got.City != "Haifa" || got.Units != "metric" {
		t.Errorf("Execute() = %+v, input %+v", res, got)
	}

	res = reg.Execute(context.Background(), "weather", json.RawMessage(`{"city":"Haifa","units":"kelvin"}`), nil)
	if res.Success {
		t.Error("enum violation accepted")
	}

	res, _ = tool.Execute(context.Background(), nil, json.RawMessage(`{"city":1}`))
	if res.Success {
		t.Error("direct Execute accepted a type mismatch")
	}
}
