package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRole_Constants(t *testing.T) {
	tests := []struct {
		constant Role
		expected string
	}{
		{RoleUser, "user"},
		{RoleAssistant, "assistant"},
		{RoleSystem, "system"},
		{RoleTool, "tool"},
	}

	for _, tt := range tests {
		t.Run(string(tt.constant), func(t *testing.T) {
			if string(tt.constant) != tt.expected {
				t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
			}
		})
	}
}

func TestToolFailure_AdvisoryData(t *testing.T) {
	result := ToolFailure("unknown city", []string{"haifa"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "unknown city" {
		t.Errorf("Error = %q", result.Error)
	}
	if result.Data == nil {
		t.Error("expected advisory data to be kept")
	}

	bare := ToolFailure("boom")
	if bare.Data != nil {
		t.Errorf("Data = %v, want nil", bare.Data)
	}
}

func TestStreamEvent_OmitsUnusedFields(t *testing.T) {
	data, err := json.Marshal(StreamEvent{Type: StreamEventContent, Data: "hi"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)
	if got != `{"type":"content","data":"hi"}` {
		t.Errorf("json = %s", got)
	}

	data, err = json.Marshal(StreamEvent{Type: StreamEventToolResult, Name: "weather", Result: &ToolResult{Success: true, Data: 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"result":{"success":true,"data":1}`) {
		t.Errorf("json = %s", data)
	}
}

func TestUser_Clone(t *testing.T) {
	var nilUser *User
	if nilUser.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
	u := &User{ID: "1", Name: "a"}
	c := u.Clone()
	c.Name = "b"
	if u.Name != "a" {
		t.Error("Clone shares state with original")
	}
}
