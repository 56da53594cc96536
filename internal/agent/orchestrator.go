package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/haasonsaas/toolchat/internal/cache"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/internal/ratelimit"
	"github.com/haasonsaas/toolchat/internal/security"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// MaxIterationsMessage is the answer returned when the loop hits its cap.
const MaxIterationsMessage = "Maximum iterations reached"

const (
	modeBatch  = "batch"
	modeStream = "stream"
)

// RateLimiter gates chat calls per actor key.
type RateLimiter interface {
	Check(key string) ratelimit.Result
	Config() ratelimit.Config
}

// ResponseCache stores tool-free batch answers.
type ResponseCache interface {
	Get(key string) (models.ChatResult, bool)
	Set(key string, value models.ChatResult)
}

// ToolAuditor records tool executions. Implementations must not block.
type ToolAuditor interface {
	LogToolExecution(ctx context.Context, exec *ExecutionContext, toolName string, input map[string]any, result models.ToolResult, duration time.Duration)
}

// HistoryWriter persists completed exchanges.
type HistoryWriter interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
}

// OrchestratorConfig tunes the chat loop.
type OrchestratorConfig struct {
	MaxIterations  int           `yaml:"max_iterations"`
	ModelTimeout   time.Duration `yaml:"model_timeout"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	HistoryTimeout time.Duration `yaml:"history_timeout"`
	Model          string        `yaml:"model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float32       `yaml:"temperature"`
	StreamBuffer   int           `yaml:"stream_buffer"`
}

// DefaultOrchestratorConfig returns the loop defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxIterations:  10,
		ModelTimeout:   30 * time.Second,
		ToolTimeout:    30 * time.Second,
		HistoryTimeout: 5 * time.Second,
		StreamBuffer:   64,
	}
}

// ChatRequest is one top-level chat call.
type ChatRequest struct {
	Prompt string

	// History holds prior user and assistant turns; other roles are dropped.
	History []models.Message

	// Exec identifies the caller. A nil Exec is an anonymous call with a
	// fresh request id.
	Exec *ExecutionContext
}

// Orchestrator drives the bounded tool-calling conversation between a model
// provider and the tool registry.
type Orchestrator struct {
	provider LLMProvider
	registry *ToolRegistry
	config   OrchestratorConfig

	limiter RateLimiter
	cache   ResponseCache
	auditor ToolAuditor
	history HistoryWriter

	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger

	background sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithConfig(cfg OrchestratorConfig) Option {
	return func(o *Orchestrator) { o.config = cfg }
}

func WithRateLimiter(l RateLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

func WithResponseCache(c ResponseCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithAuditor(a ToolAuditor) Option {
	return func(o *Orchestrator) { o.auditor = a }
}

func WithHistory(h HistoryWriter) Option {
	return func(o *Orchestrator) { o.history = h }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t *observability.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger.With("component", "orchestrator")
		}
	}
}

// NewOrchestrator builds an orchestrator. Rate limiting, caching, auditing
// and history are disabled unless their options are given.
func NewOrchestrator(provider LLMProvider, registry *ToolRegistry, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	if registry == nil {
		registry = NewToolRegistry(nil)
	}
	o := &Orchestrator{
		provider: provider,
		registry: registry,
		config:   DefaultOrchestratorConfig(),
		logger:   slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	defaults := DefaultOrchestratorConfig()
	if o.config.MaxIterations <= 0 {
		o.config.MaxIterations = defaults.MaxIterations
	}
	if o.config.ModelTimeout <= 0 {
		o.config.ModelTimeout = defaults.ModelTimeout
	}
	if o.config.ToolTimeout <= 0 {
		o.config.ToolTimeout = defaults.ToolTimeout
	}
	if o.config.HistoryTimeout <= 0 {
		o.config.HistoryTimeout = defaults.HistoryTimeout
	}
	if o.config.StreamBuffer <= 0 {
		o.config.StreamBuffer = defaults.StreamBuffer
	}
	return o, nil
}

// Registry returns the tool registry the orchestrator dispatches to.
func (o *Orchestrator) Registry() *ToolRegistry { return o.registry }

// Wait blocks until background history writes have finished.
func (o *Orchestrator) Wait() { o.background.Wait() }

// Chat runs the loop in batch mode and returns the final answer. Rate-limit,
// timeout and upstream failures abort the call; tool failures never do.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*models.ChatResult, error) {
	exec := ensureExec(req.Exec)
	ctx = observability.AddRequestID(ctx, exec.RequestID)
	if exec.Authenticated() {
		ctx = observability.AddUserID(ctx, exec.ActorID())
	}
	ctx, span := o.tracer.Start(ctx, "chat",
		attribute.String("chat.mode", modeBatch),
		attribute.String("request.id", exec.RequestID),
	)
	defer span.End()

	if err := o.checkRateLimit(exec); err != nil {
		o.metrics.RecordChat(modeBatch, "rate_limited")
		observability.RecordError(span, err)
		return nil, err
	}

	cacheKey := o.cacheKey(req, exec)
	if cacheKey != "" {
		if cached, ok := o.cache.Get(cacheKey); ok {
			o.metrics.RecordCacheLookup(true)
			o.metrics.RecordChat(modeBatch, "cached")
			o.logger.DebugContext(ctx, "cache hit for prompt")
			cached.Cached = true
			cached.RequestID = exec.RequestID
			return &cached, nil
		}
		o.metrics.RecordCacheLookup(false)
	}

	messages := o.seedTranscript(exec, req)
	res, err := o.run(ctx, exec, messages, modeBatch, nil)
	if err != nil {
		o.metrics.RecordChat(modeBatch, outcomeFor(err))
		observability.RecordError(span, err)
		return nil, err
	}

	result := &models.ChatResult{
		Response:             res.answer,
		ToolsUsed:            res.toolsUsed,
		Iterations:           res.iterations,
		MaxIterationsReached: res.maxReached,
		RequestID:            exec.RequestID,
	}
	if result.ToolsUsed == nil {
		result.ToolsUsed = []string{}
	}

	if res.maxReached {
		o.metrics.RecordChat(modeBatch, "max_iterations")
	} else {
		o.metrics.RecordChat(modeBatch, "ok")
		if cacheKey != "" && len(result.ToolsUsed) == 0 {
			o.cache.Set(cacheKey, *result)
		}
	}
	o.persistHistory(exec, req.Prompt, result.Response, result.ToolsUsed)
	return result, nil
}

// ChatStream runs the loop in streaming mode. Events are delivered on the
// returned channel, which is closed after the terminal done or error event.
// A rate-limit denial is returned directly, before any event is produced.
// The cache is neither read nor written in streaming mode.
func (o *Orchestrator) ChatStream(ctx context.Context, req ChatRequest) (<-chan models.StreamEvent, error) {
	exec := ensureExec(req.Exec)
	if err := o.checkRateLimit(exec); err != nil {
		o.metrics.RecordChat(modeStream, "rate_limited")
		return nil, err
	}

	events := make(chan models.StreamEvent, o.config.StreamBuffer)
	go func() {
		defer close(events)

		ctx := observability.AddRequestID(ctx, exec.RequestID)
		if exec.Authenticated() {
			ctx = observability.AddUserID(ctx, exec.ActorID())
		}
		ctx, span := o.tracer.Start(ctx, "chat",
			attribute.String("chat.mode", modeStream),
			attribute.String("request.id", exec.RequestID),
		)
		defer span.End()

		emit := func(ev models.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		messages := o.seedTranscript(exec, req)
		res, err := o.run(ctx, exec, messages, modeStream, emit)
		switch {
		case err != nil:
			o.metrics.RecordChat(modeStream, outcomeFor(err))
			observability.RecordError(span, err)
			emit(models.StreamEvent{Type: models.StreamEventError, Message: err.Error()})
			return
		case res.maxReached:
			o.metrics.RecordChat(modeStream, "max_iterations")
			emit(models.StreamEvent{Type: models.StreamEventError, Message: MaxIterationsMessage, MaxIterations: true})
		default:
			o.metrics.RecordChat(modeStream, "ok")
			emit(models.StreamEvent{Type: models.StreamEventDone, Iterations: res.iterations})
		}
		o.persistHistory(exec, req.Prompt, res.streamed, res.toolsUsed)
	}()
	return events, nil
}

type loopResult struct {
	answer     string
	streamed   string
	toolsUsed  []string
	iterations int
	maxReached bool
}

// run is the state machine shared by both modes. emit is nil in batch mode.
func (o *Orchestrator) run(ctx context.Context, exec *ExecutionContext, messages []models.Message, mode string, emit func(models.StreamEvent) bool) (*loopResult, error) {
	res := &loopResult{}
	seen := make(map[string]bool)

	for res.iterations < o.config.MaxIterations {
		res.iterations++
		o.logger.DebugContext(ctx, "model iteration", "iteration", res.iterations, "mode", mode)

		tools := o.registry.ListAvailable(exec)
		var (
			msg models.Message
			err error
		)
		if emit == nil {
			msg, err = o.complete(ctx, messages, tools)
		} else {
			msg, err = o.stream(ctx, messages, tools, emit)
			res.streamed += msg.Content
		}
		if err != nil {
			return nil, err
		}

		if len(msg.ToolCalls) == 0 {
			res.answer = msg.Content
			return res, nil
		}

		messages = append(messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
		for _, call := range msg.ToolCalls {
			if emit != nil && !emit(models.StreamEvent{Type: models.StreamEventToolStart, Name: call.Name}) {
				return nil, ctx.Err()
			}

			result := o.executeTool(ctx, exec, call)
			if !seen[call.Name] {
				seen[call.Name] = true
				res.toolsUsed = append(res.toolsUsed, call.Name)
			}

			if emit != nil {
				r := result
				if !emit(models.StreamEvent{Type: models.StreamEventToolResult, Name: call.Name, Result: &r}) {
					return nil, ctx.Err()
				}
			}
			messages = append(messages, models.Message{
				Role:       models.RoleTool,
				Content:    encodeToolResult(result),
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	res.maxReached = true
	res.answer = MaxIterationsMessage
	o.logger.WarnContext(ctx, "maximum iterations reached", "iterations", res.iterations)
	return res, nil
}

func (o *Orchestrator) completionRequest(messages []models.Message, tools []ToolDescriptor) *CompletionRequest {
	return &CompletionRequest{
		Model:       o.config.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	}
}

func (o *Orchestrator) complete(ctx context.Context, messages []models.Message, tools []ToolDescriptor) (models.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.ModelTimeout)
	defer cancel()

	start := time.Now()
	resp, err := o.provider.Complete(callCtx, o.completionRequest(messages, tools))
	if err != nil {
		err = o.classifyModelError(ctx, callCtx, err)
		o.metrics.RecordLLMRequest(o.provider.Name(), modeBatch, outcomeFor(err), time.Since(start).Seconds())
		return models.Message{}, err
	}
	o.metrics.RecordLLMRequest(o.provider.Name(), modeBatch, "ok", time.Since(start).Seconds())
	return resp.Message, nil
}

// stream consumes one streamed model call. Content is forwarded as it
// arrives; tool-call fragments are merged by index until the stream ends.
func (o *Orchestrator) stream(ctx context.Context, messages []models.Message, tools []ToolDescriptor, emit func(models.StreamEvent) bool) (models.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.config.ModelTimeout)
	defer cancel()

	start := time.Now()
	fail := func(err error) (models.Message, error) {
		err = o.classifyModelError(ctx, callCtx, err)
		o.metrics.RecordLLMRequest(o.provider.Name(), modeStream, outcomeFor(err), time.Since(start).Seconds())
		return models.Message{}, err
	}

	chunks, err := o.provider.Stream(callCtx, o.completionRequest(messages, tools))
	if err != nil {
		return fail(err)
	}

	msg := models.Message{Role: models.RoleAssistant}
	acc := NewToolCallAccumulator()
	for {
		select {
		case <-callCtx.Done():
			return fail(callCtx.Err())
		case chunk, ok := <-chunks:
			if !ok {
				msg.ToolCalls = acc.Calls()
				o.metrics.RecordLLMRequest(o.provider.Name(), modeStream, "ok", time.Since(start).Seconds())
				return msg, nil
			}
			if chunk == nil {
				continue
			}
			if chunk.Error != nil {
				return fail(chunk.Error)
			}
			if chunk.Text != "" {
				msg.Content += chunk.Text
				if !emit(models.StreamEvent{Type: models.StreamEventContent, Data: chunk.Text}) {
					return models.Message{}, ctx.Err()
				}
			}
			if chunk.ToolCall != nil {
				acc.Add(chunk.ToolCall)
			}
			if chunk.Done {
				msg.ToolCalls = acc.Calls()
				o.metrics.RecordLLMRequest(o.provider.Name(), modeStream, "ok", time.Since(start).Seconds())
				return msg, nil
			}
		}
	}
}

// classifyModelError maps a provider failure onto the control-plane error
// taxonomy. A cancelled parent context is returned unchanged.
func (o *Orchestrator) classifyModelError(parent, callCtx context.Context, err error) error {
	var te *TimeoutError
	var ue *UpstreamError
	switch {
	case errors.As(err, &te), errors.As(err, &ue):
		return err
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return &TimeoutError{Timeout: o.config.ModelTimeout, Cause: err}
	default:
		return &UpstreamError{Provider: o.provider.Name(), Cause: err}
	}
}

// executeTool runs one tool call. Invalid JSON arguments are treated as an
// empty object.
func (o *Orchestrator) executeTool(ctx context.Context, exec *ExecutionContext, call models.ToolCall) models.ToolResult {
	args, input := parseToolArguments(call.Arguments)

	toolCtx, span := o.tracer.Start(ctx, "tool."+call.Name, attribute.String("tool.name", call.Name))
	defer span.End()
	toolCtx, cancel := context.WithTimeout(toolCtx, o.config.ToolTimeout)
	defer cancel()

	o.logger.InfoContext(ctx, "executing tool", "tool", call.Name, "tool_call_id", call.ID)
	start := time.Now()
	result := o.registry.Execute(toolCtx, call.Name, args, exec)
	duration := time.Since(start)

	status := "success"
	if !result.Success {
		status = "failure"
		span.SetAttributes(attribute.String("tool.error", result.Error))
	}
	o.metrics.RecordToolExecution(call.Name, status, duration.Seconds())

	if o.auditor != nil {
		o.auditor.LogToolExecution(ctx, exec, call.Name, input, result, duration)
	}
	return result
}

func parseToolArguments(raw string) (json.RawMessage, map[string]any) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return json.RawMessage("{}"), map[string]any{}
	}
	input, _ := decoded.(map[string]any)
	if input == nil {
		input = map[string]any{}
	}
	return json.RawMessage(raw), input
}

func encodeToolResult(r models.ToolResult) string {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(models.ToolFailure("tool result could not be serialized: " + err.Error()))
	}
	return string(data)
}

func (o *Orchestrator) checkRateLimit(exec *ExecutionContext) error {
	if o.limiter == nil {
		return nil
	}
	key := exec.ActorID()
	if key == "" {
		key = exec.RequestID
	}
	res := o.limiter.Check(key)
	if res.Allowed {
		return nil
	}
	o.metrics.RecordRateLimitDenied()
	return &RateLimitError{
		Key:       key,
		Limit:     o.limiter.Config().MaxRequests,
		Remaining: res.Remaining,
		ResetIn:   res.ResetIn,
	}
}

// cacheKey returns "" when the call is not cacheable. Calls carrying prior
// history are never cached because the key only covers prompt and actor.
func (o *Orchestrator) cacheKey(req ChatRequest, exec *ExecutionContext) string {
	if o.cache == nil || len(req.History) > 0 {
		return ""
	}
	key, err := cache.CreateKey(map[string]any{"prompt": req.Prompt, "userId": exec.ActorID()})
	if err != nil {
		return ""
	}
	return key
}

func (o *Orchestrator) seedTranscript(exec *ExecutionContext, req ChatRequest) []models.Message {
	messages := make([]models.Message, 0, len(req.History)+2)
	messages = append(messages, models.Message{
		Role:    models.RoleSystem,
		Content: BuildSystemPrompt(exec, o.registry.AvailableNames(exec)),
	})
	for _, m := range req.History {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, models.Message{Role: m.Role, Content: security.SanitizeForLLM(m.Content)})
	}
	return append(messages, models.Message{
		Role:    models.RoleUser,
		Content: security.SanitizeForLLM(req.Prompt),
	})
}

// persistHistory writes the exchange in the background. Anonymous calls
// are not persisted.
func (o *Orchestrator) persistHistory(exec *ExecutionContext, prompt, answer string, toolsUsed []string) {
	if o.history == nil || !exec.Authenticated() {
		return
	}
	entry := &models.HistoryEntry{
		ID:               uuid.NewString(),
		UserID:           exec.ActorID(),
		UserMessage:      prompt,
		AssistantMessage: answer,
		ToolsUsed:        append([]string{}, toolsUsed...),
		CreatedAt:        time.Now().UTC(),
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("history write panicked", "request_id", exec.RequestID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.config.HistoryTimeout)
		defer cancel()
		if err := o.history.Append(ctx, entry); err != nil {
			o.metrics.RecordPersistenceFailure("history")
			o.logger.Warn("failed to save chat history",
				"request_id", exec.RequestID,
				"user_id", entry.UserID,
				"error", &PersistenceError{Op: "history", Cause: err},
			)
		}
	}()
}

func ensureExec(exec *ExecutionContext) *ExecutionContext {
	if exec == nil {
		return NewExecutionContext(nil, "", "")
	}
	if exec.RequestID == "" {
		cp := *exec
		cp.RequestID = uuid.NewString()
		return &cp
	}
	return exec
}

func outcomeFor(err error) string {
	var te *TimeoutError
	var ue *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ue):
		return "upstream"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
