// Package audit records tool executions and user lifecycle actions to an
// AuditStore without blocking the request path.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// Logger writes audit records asynchronously through a buffered channel and
// a single writer goroutine. Write failures are logged and counted, never
// returned.
//
// Usage:
//
//	logger := audit.NewLogger(stores.Audit, audit.DefaultConfig())
//	defer logger.Close()
//
//	logger.LogToolExecution(ctx, exec, "db_users", input, result, elapsed)
type Logger struct {
	config  Config
	store   storage.AuditStore
	slogger *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time

	buffer    chan *models.AuditRecord
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the structured logger used for failures and mirroring.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.slogger = logger.With("component", "audit")
		}
	}
}

// WithMetrics counts persistence failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger over store. A disabled config or a nil
// store yields a logger that discards everything.
func NewLogger(store storage.AuditStore, config Config, opts ...Option) *Logger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.MaxFieldSize <= 0 {
		config.MaxFieldSize = 1024
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if store == nil {
		config.Enabled = false
	}

	l := &Logger{
		config:  config,
		store:   store,
		slogger: slog.Default().With("component", "audit"),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if !config.Enabled {
		return l
	}

	l.buffer = make(chan *models.AuditRecord, config.BufferSize)
	l.wg.Add(1)
	go l.writeLoop()
	return l
}

// Close drains queued records and stops the writer. Records submitted after
// Close are dropped.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
	return nil
}

// Record enqueues rec. ID and CreatedAt are filled in when empty. When the
// buffer is full the record is dropped and counted as a persistence failure.
func (l *Logger) Record(ctx context.Context, rec *models.AuditRecord) {
	if l == nil || !l.config.Enabled || rec == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	if rec.RequestID == "" {
		rec.RequestID = observability.GetRequestID(ctx)
	}

	select {
	case <-l.done:
		l.slogger.Debug("audit logger closed, dropping record", "audit_id", rec.ID, "action", rec.Action)
		return
	default:
	}

	select {
	case l.buffer <- rec:
	default:
		// Buffer full: callers sit on the tool loop, so never wait on the store.
		l.slogger.Warn("audit buffer full, dropping record",
			"audit_id", rec.ID,
			"action", rec.Action,
			"tool_name", rec.ToolName,
			"request_id", rec.RequestID,
		)
		l.metrics.RecordPersistenceFailure("audit")
	}
}

// LogToolExecution records one tool invocation with redacted input and
// output snapshots.
func (l *Logger) LogToolExecution(ctx context.Context, exec *agent.ExecutionContext, toolName string, input map[string]any, result models.ToolResult, duration time.Duration) {
	if l == nil || !l.config.Enabled {
		return
	}
	rec := &models.AuditRecord{
		UserID:     exec.ActorID(),
		Action:     models.AuditToolExecution,
		ToolName:   toolName,
		Input:      RedactFields(input, l.config.MaxFieldSize),
		Output:     l.snapshot(result.Data),
		Success:    result.Success,
		Error:      result.Error,
		DurationMs: duration.Milliseconds(),
	}
	if exec != nil {
		rec.RequestID = exec.RequestID
		rec.RemoteAddr = exec.RemoteAddr
	}
	l.Record(ctx, rec)
}

// LogAction records a lifecycle action such as user_delete or login.
func (l *Logger) LogAction(ctx context.Context, exec *agent.ExecutionContext, action models.AuditAction, details map[string]any, success bool, errMsg string) {
	if l == nil || !l.config.Enabled {
		return
	}
	rec := &models.AuditRecord{
		UserID:  exec.ActorID(),
		Action:  action,
		Input:   RedactFields(details, l.config.MaxFieldSize),
		Success: success,
		Error:   errMsg,
	}
	if exec != nil {
		rec.RequestID = exec.RequestID
		rec.RemoteAddr = exec.RemoteAddr
	}
	l.Record(ctx, rec)
}

// snapshot normalizes data to its JSON shape before redaction so typed
// values (structs, typed maps) are walked too.
func (l *Logger) snapshot(data any) any {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return Redact(generic, l.config.MaxFieldSize)
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()
	for {
		select {
		case rec := <-l.buffer:
			l.write(rec)
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

func (l *Logger) flushBuffer() {
	for {
		select {
		case rec := <-l.buffer:
			l.write(rec)
		default:
			return
		}
	}
}

func (l *Logger) write(rec *models.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			l.slogger.Error("audit write panicked", "audit_id", rec.ID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if err := l.store.Append(ctx, rec); err != nil {
		perr := &agent.PersistenceError{Op: "audit", Cause: err}
		l.slogger.Warn("failed to write audit record",
			"audit_id", rec.ID,
			"action", rec.Action,
			"tool_name", rec.ToolName,
			"error", perr,
		)
		l.metrics.RecordPersistenceFailure("audit")
		return
	}

	if l.config.Mirror {
		l.slogger.Info("audit",
			"audit_id", rec.ID,
			"action", rec.Action,
			"tool_name", rec.ToolName,
			"user_id", rec.UserID,
			"success", rec.Success,
			"duration_ms", rec.DurationMs,
			"request_id", rec.RequestID,
		)
	}
}
