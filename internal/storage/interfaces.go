package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/toolchat/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidField  = errors.New("invalid field")
)

// UserStore persists user accounts. Emails are unique.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	Update(ctx context.Context, id string, fields models.UserFields) (*models.User, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// HistoryStore persists completed chat exchanges.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	Get(ctx context.Context, id string) (*models.HistoryEntry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error)
	Recent(ctx context.Context, limit int) ([]*models.HistoryEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore persists write-once audit records.
type AuditStore interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditRecord, error)
	ListByAction(ctx context.Context, action models.AuditAction, limit int) ([]*models.AuditRecord, error)
	// ListToolExecutions returns tool_execution records, optionally filtered
	// by tool name.
	ListToolExecutions(ctx context.Context, toolName string, limit int) ([]*models.AuditRecord, error)
	ListErrors(ctx context.Context, limit int) ([]*models.AuditRecord, error)
	Stats(ctx context.Context, since time.Time) (*models.AuditStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoreSet groups storage dependencies.
type StoreSet struct {
	Users   UserStore
	History HistoryStore
	Audit   AuditStore
	Driver  string
	closer  func() error
}

// Close closes any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// DefaultListLimit applies when a caller passes a non-positive limit.
const DefaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// ApplyUserFields copies the recognized keys of fields onto u. Unknown keys
// are ignored; a known key with the wrong type is ErrInvalidField.
func ApplyUserFields(u *models.User, fields models.UserFields) error {
	for key, value := range fields {
		switch key {
		case models.FieldName:
			s, ok := value.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: name must be a non-empty string", ErrInvalidField)
			}
			u.Name = s
		case models.FieldEmail:
			s, ok := value.(string)
			if !ok || !strings.Contains(s, "@") {
				return fmt.Errorf("%w: email must be a valid address", ErrInvalidField)
			}
			u.Email = normalizeEmail(s)
		case models.FieldIsAdmin:
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: isAdmin must be a boolean", ErrInvalidField)
			}
			u.IsAdmin = b
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// prepareUser validates u and normalizes its email in place.
func prepareUser(u *models.User) error {
	if u == nil || u.ID == "" {
		return fmt.Errorf("user is required")
	}
	u.Email = normalizeEmail(u.Email)
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidField)
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email must be a valid address", ErrInvalidField)
	}
	return nil
}
