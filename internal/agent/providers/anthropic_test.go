package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewAnthropicProvider(AnthropicConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	return p
}

func writeSSE(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, e := range events {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(e), &head)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, e)
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var body map[string]any
	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		writeSSE(w,
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude","usage":{"input_tokens":10,"output_tokens":0}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking "}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"now."}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"weather","input":{}}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
			`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"Oslo\"}"}}`,
			`{"type":"content_block_stop","index":1}`,
			`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":20}}`,
			`{"type":"message_stop"}`,
		)
	})

	resp, err := p.Complete(context.Background(), &agent.CompletionRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "be brief"},
			{Role: models.RoleUser, Content: "weather in Oslo"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Message.Content != "Checking now." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "weather" || tc.Arguments != `{"city":"Oslo"}` {
		t.Errorf("tool call = %+v", tc)
	}
	if resp.FinishReason != "tool_use" {
		t.Errorf("finish = %q", resp.FinishReason)
	}

	if body["model"] != DefaultAnthropicModel {
		t.Errorf("model = %v", body["model"])
	}
	if _, ok := body["system"]; !ok {
		t.Error("system prompt was not sent")
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("messages = %v, want only the user turn", body["messages"])
	}
}

func TestAnthropicProvider_UpstreamError(t *testing.T) {
	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})

	_, err := p.Stream(context.Background(), &agent.CompletionRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	})
	var ue *agent.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", ue.StatusCode)
	}
	if ue.Message != "invalid x-api-key" {
		t.Errorf("message = %q", ue.Message)
	}
}

func TestConvertAnthropicMessages(t *testing.T) {
	in := []models.Message{
		{Role: models.RoleSystem, Content: "system text"},
		{Role: models.RoleUser, Content: "do two things"},
		{Role: models.RoleAssistant, Content: "ok", ToolCalls: []models.ToolCall{
			{ID: "a", Name: "weather", Arguments: `{"city":"Rome"}`},
			{ID: "b", Name: "datetime", Arguments: `not json`},
		}},
		{Role: models.RoleTool, ToolCallID: "a", Content: `{"success":true,"data":{"temp":20}}`},
		{Role: models.RoleTool, ToolCallID: "b", Content: `{"success":false,"error":"bad"}`},
		{Role: models.RoleAssistant, Content: "done"},
	}

	system, out := convertAnthropicMessages(in)
	if system != "system text" {
		t.Errorf("system = %q", system)
	}
	if len(out) != 4 {
		t.Fatalf("messages = %d, want 4", len(out))
	}

	if out[1].Role != anthropic.MessageParamRoleAssistant || len(out[1].Content) != 3 {
		t.Fatalf("assistant turn = %+v", out[1])
	}
	if out[1].Content[1].OfToolUse == nil || out[1].Content[1].OfToolUse.ID != "a" {
		t.Errorf("first tool use = %+v", out[1].Content[1])
	}

	results := out[2]
	if results.Role != anthropic.MessageParamRoleUser || len(results.Content) != 2 {
		t.Fatalf("tool results turn = %+v", results)
	}
	for i, id := range []string{"a", "b"} {
		block := results.Content[i].OfToolResult
		if block == nil || block.ToolUseID != id {
			t.Errorf("result %d = %+v", i, results.Content[i])
		}
	}
}

func TestToolResultFailed(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{`{"success":true}`, false},
		{`{"success":false,"error":"x"}`, true},
		{`plain text`, false},
	}
	for _, tt := range tests {
		if got := toolResultFailed(tt.content); got != tt.want {
			t.Errorf("toolResultFailed(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"", "openai", false},
		{"openai", "openai", false},
		{"Anthropic", "anthropic", false},
		{"mystery", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(Config{Provider: tt.provider, APIKey: "k"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want FailureReason
	}{
		{&agent.UpstreamError{StatusCode: 429}, FailureRateLimit},
		{&agent.UpstreamError{StatusCode: 503}, FailureServerError},
		{&agent.UpstreamError{StatusCode: 401}, FailureAuth},
		{&agent.UpstreamError{StatusCode: 400}, FailureInvalidRequest},
		{context.DeadlineExceeded, FailureTimeout},
		{errors.New("Too Many Requests"), FailureRateLimit},
		{errors.New("something odd"), FailureUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
