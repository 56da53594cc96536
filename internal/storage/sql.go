package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/toolchat/pkg/models"
)

// SQLUserStore implements UserStore over database/sql.
type SQLUserStore struct {
	db *sql.DB
	d  dialect
}

const userColumns = "id, email, name, is_admin, created_at, updated_at"

func (s *SQLUserStore) Create(ctx context.Context, user *models.User) error {
	if err := prepareUser(user); err != nil {
		return err
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, s.d.rebind(
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
		user.ID, user.Email, user.Name, user.IsAdmin, user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, s.d.rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	return scanUser(row)
}

func (s *SQLUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind("SELECT "+userColumns+" FROM users WHERE email = ?"), normalizeEmail(email))
	return scanUser(row)
}

func (s *SQLUserStore) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

func (s *SQLUserStore) List(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		"SELECT "+userColumns+" FROM users ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"),
		normalizeLimit(limit), offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

func (s *SQLUserStore) Update(ctx context.Context, id string, fields models.UserFields) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := scanUser(tx.QueryRowContext(ctx, s.d.rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id))
	if err != nil {
		return nil, err
	}
	if err := ApplyUserFields(u, fields); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, s.d.rebind(
		"UPDATE users SET email = ?, name = ?, is_admin = ?, updated_at = ? WHERE id = ?"),
		u.Email, u.Name, u.IsAdmin, u.UpdatedAt, u.ID,
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return u, nil
}

func (s *SQLUserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// SQLHistoryStore implements HistoryStore over database/sql.
type SQLHistoryStore struct {
	db *sql.DB
	d  dialect
}

const historyColumns = "id, user_id, user_message, assistant_message, tools_used, created_at"

func (s *SQLHistoryStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidField
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	tools, err := s.d.stringsArg(entry.ToolsUsed)
	if err != nil {
		return fmt.Errorf("encode tools used: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.d.rebind(
		"INSERT INTO chat_history ("+historyColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
		entry.ID, entry.UserID, entry.UserMessage, entry.AssistantMessage, tools, entry.CreatedAt.UTC(),
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *SQLHistoryStore) Get(ctx context.Context, id string) (*models.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind("SELECT "+historyColumns+" FROM chat_history WHERE id = ?"), id)
	e, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *SQLHistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error) {
	return s.query(ctx, "SELECT "+historyColumns+" FROM chat_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, normalizeLimit(limit))
}

func (s *SQLHistoryStore) Recent(ctx context.Context, limit int) ([]*models.HistoryEntry, error) {
	return s.query(ctx, "SELECT "+historyColumns+" FROM chat_history ORDER BY created_at DESC LIMIT ?",
		normalizeLimit(limit))
}

func (s *SQLHistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind("DELETE FROM chat_history WHERE created_at < ?"), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLHistoryStore) query(ctx context.Context, query string, args ...any) ([]*models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*models.HistoryEntry
	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLHistoryStore) scan(row rowScanner) (*models.HistoryEntry, error) {
	var e models.HistoryEntry
	if err := row.Scan(&e.ID, &e.UserID, &e.UserMessage, &e.AssistantMessage, s.d.stringsDest(&e.ToolsUsed), &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// SQLAuditStore implements AuditStore over database/sql.
type SQLAuditStore struct {
	db *sql.DB
	d  dialect
}

const auditColumns = "id, user_id, action, tool_name, input, output, success, error, duration_ms, request_id, remote_addr, created_at"

func (s *SQLAuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidField
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	input, err := marshalNullable(rec.Input)
	if err != nil {
		return fmt.Errorf("encode audit input: %w", err)
	}
	output, err := marshalNullable(rec.Output)
	if err != nil {
		return fmt.Errorf("encode audit output: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.d.rebind(
		"INSERT INTO audit_logs ("+auditColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		rec.ID, rec.UserID, string(rec.Action), rec.ToolName, input, output,
		rec.Success, rec.Error, rec.DurationMs, rec.RequestID, rec.RemoteAddr, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *SQLAuditStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditRecord, error) {
	return s.query(ctx, "SELECT "+auditColumns+" FROM audit_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, normalizeLimit(limit))
}

func (s *SQLAuditStore) ListByAction(ctx context.Context, action models.AuditAction, limit int) ([]*models.AuditRecord, error) {
	return s.query(ctx, "SELECT "+auditColumns+" FROM audit_logs WHERE action = ? ORDER BY created_at DESC LIMIT ?",
		string(action), normalizeLimit(limit))
}

func (s *SQLAuditStore) ListToolExecutions(ctx context.Context, toolName string, limit int) ([]*models.AuditRecord, error) {
	if toolName == "" {
		return s.ListByAction(ctx, models.AuditToolExecution, limit)
	}
	return s.query(ctx, "SELECT "+auditColumns+" FROM audit_logs WHERE action = ? AND tool_name = ? ORDER BY created_at DESC LIMIT ?",
		string(models.AuditToolExecution), toolName, normalizeLimit(limit))
}

func (s *SQLAuditStore) ListErrors(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	return s.query(ctx, "SELECT "+auditColumns+" FROM audit_logs WHERE success = ? ORDER BY created_at DESC LIMIT ?",
		false, normalizeLimit(limit))
}

func (s *SQLAuditStore) Stats(ctx context.Context, since time.Time) (*models.AuditStats, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		"SELECT tool_name, success, COUNT(*) FROM audit_logs WHERE created_at >= ? GROUP BY tool_name, success"),
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	stats := &models.AuditStats{ByTool: make(map[string]int)}
	for rows.Next() {
		var (
			tool    string
			success bool
			count   int
		)
		if err := rows.Scan(&tool, &success, &count); err != nil {
			return nil, fmt.Errorf("scan audit stats: %w", err)
		}
		stats.Total += count
		if success {
			stats.Successes += count
		} else {
			stats.Failures += count
		}
		if tool != "" {
			stats.ByTool[tool] += count
		}
	}
	return stats, rows.Err()
}

func (s *SQLAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind("DELETE FROM audit_logs WHERE created_at < ?"), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge audit logs: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLAuditStore) query(ctx context.Context, query string, args ...any) ([]*models.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditRecord
	for rows.Next() {
		var (
			rec    models.AuditRecord
			action string
			input  sql.NullString
			output sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &action, &rec.ToolName, &input, &output,
			&rec.Success, &rec.Error, &rec.DurationMs, &rec.RequestID, &rec.RemoteAddr, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Action = models.AuditAction(action)
		if input.Valid && input.String != "" {
			if err := json.Unmarshal([]byte(input.String), &rec.Input); err != nil {
				return nil, fmt.Errorf("decode audit input: %w", err)
			}
		}
		if output.Valid && output.String != "" {
			if err := json.Unmarshal([]byte(output.String), &rec.Output); err != nil {
				return nil, fmt.Errorf("decode audit output: %w", err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// marshalNullable encodes v as JSON text, or SQL NULL when v is nil.
func marshalNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
