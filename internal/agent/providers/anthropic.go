package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

const (
	// DefaultAnthropicModel is used when neither the config nor the request
	// names a model.
	DefaultAnthropicModel = "claude-sonnet-4-20250514"

	defaultAnthropicMaxTokens = 4096
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

// AnthropicProvider implements agent.LLMProvider against the Messages API.
// System messages are lifted into the request's system field and tool
// results are sent as tool_result blocks in a user turn.
type AnthropicProvider struct {
	BaseProvider
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic provider. An API key is required.
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, &agent.ConfigurationError{Message: "anthropic: API key is required"}
	}
	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(config.BaseURL) != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	model := config.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", config.MaxRetries, config.RetryDelay),
		client:       anthropic.NewClient(options...),
		model:        model,
	}, nil
}

// Complete drains a streamed completion into a single assistant message.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := models.Message{Role: models.RoleAssistant}
	acc := agent.NewToolCallAccumulator()
	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		text.WriteString(chunk.Text)
		if chunk.ToolCall != nil {
			acc.Add(chunk.ToolCall)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg.Content = text.String()
	msg.ToolCalls = acc.Calls()

	finish := "end_turn"
	if len(msg.ToolCalls) > 0 {
		finish = "tool_use"
	}
	return &agent.CompletionResponse{Message: msg, FinishReason: finish}, nil
}

// Stream opens a streaming completion. The first event is awaited inside
// the retry loop so that rejected requests surface as an error return.
func (p *AnthropicProvider) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	var primed bool
	err = p.Retry(ctx, func() error {
		stream = p.client.Messages.NewStreaming(ctx, params)
		primed = stream.Next()
		if !primed {
			if err := stream.Err(); err != nil {
				stream.Close()
				return p.wrapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan *agent.CompletionChunk)
	go func() {
		defer close(chunks)
		defer stream.Close()
		p.processStream(ctx, stream, primed, chunks)
	}()
	return chunks, nil
}

func (p *AnthropicProvider) processStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], primed bool, chunks chan<- *agent.CompletionChunk) {
	send := func(c *agent.CompletionChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	toolIndex := -1
	inToolUse := false
	next := primed
	for next {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			inToolUse = block.Type == "tool_use"
			if inToolUse {
				toolIndex++
				toolUse := block.AsToolUse()
				if !send(&agent.CompletionChunk{ToolCall: &agent.ToolCallDelta{
					Index: toolIndex,
					ID:    toolUse.ID,
					Name:  toolUse.Name,
				}}) {
					return
				}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" && !send(&agent.CompletionChunk{Text: delta.Text}) {
					return
				}
			case "input_json_delta":
				if inToolUse && delta.PartialJSON != "" {
					if !send(&agent.CompletionChunk{ToolCall: &agent.ToolCallDelta{
						Index:     toolIndex,
						Arguments: delta.PartialJSON,
					}}) {
						return
					}
				}
			}

		case "content_block_stop":
			inToolUse = false

		case "message_stop":
			send(&agent.CompletionChunk{Done: true})
			return

		case "error":
			send(&agent.CompletionChunk{Error: &agent.UpstreamError{
				Provider: p.Name(),
				Message:  "stream error event",
			}})
			return
		}
		next = stream.Next()
	}

	if err := stream.Err(); err != nil {
		send(&agent.CompletionChunk{Error: p.wrapError(err)})
		return
	}
	send(&agent.CompletionChunk{Done: true})
}

func (p *AnthropicProvider) buildParams(req *agent.CompletionRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	system, messages := convertAnthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}
	return params, nil
}

// convertAnthropicMessages splits out the system text and folds runs of
// tool messages into a single user turn of tool_result blocks.
func convertAnthropicMessages(messages []models.Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)

		case models.RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, toolResultFailed(m.Content)))

		case models.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := map[string]any{}
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}

		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return strings.Join(system, "\n\n"), out
}

// toolResultFailed reports whether a serialized ToolResult carries
// success=false.
func toolResultFailed(content string) bool {
	var res models.ToolResult
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return false
	}
	return !res.Success
}

func convertAnthropicTools(tools []agent.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Function.Parameters) > 0 {
			if err := json.Unmarshal(t.Function.Parameters, &schema); err != nil {
				return nil, &agent.ConfigurationError{Message: "anthropic: invalid schema for tool " + t.Function.Name + ": " + err.Error()}
			}
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if param.OfTool != nil && t.Function.Description != "" {
			param.OfTool.Description = anthropic.String(t.Function.Description)
		}
		out = append(out, param)
	}
	return out, nil
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := ""
		var payload anthropicErrorPayload
		if raw := apiErr.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
			message = payload.Error.Message
		}
		return wrapError(p.Name(), apiErr.StatusCode, message, err)
	}
	return wrapError(p.Name(), 0, "", err)
}
