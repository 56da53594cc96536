package models

import "time"

// AuditAction names the kind of fact an AuditRecord captures.
type AuditAction string

const (
	AuditToolExecution AuditAction = "tool_execution"
	AuditUserCreate    AuditAction = "user_create"
	AuditUserUpdate    AuditAction = "user_update"
	AuditUserDelete    AuditAction = "user_delete"
	AuditLogin         AuditAction = "login"
	AuditError         AuditAction = "error"
)

// AuditRecord is a write-once fact about a tool execution or lifecycle action.
type AuditRecord struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	Action     AuditAction    `json:"action"`
	ToolName   string         `json:"toolName,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs"`
	RequestID  string         `json:"requestId,omitempty"`
	RemoteAddr string         `json:"remoteAddr,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditStats summarizes audit records since a point in time.
type AuditStats struct {
	Total     int            `json:"total"`
	Successes int            `json:"successes"`
	Failures  int            `json:"failures"`
	ByTool    map[string]int `json:"byTool"`
}

// HistoryEntry is one persisted user/assistant exchange.
type HistoryEntry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	UserMessage      string    `json:"userMessage"`
	AssistantMessage string    `json:"assistantMessage"`
	ToolsUsed        []string  `json:"toolsUsed"`
	CreatedAt        time.Time `json:"createdAt"`
}
