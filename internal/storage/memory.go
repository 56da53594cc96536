package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/toolchat/pkg/models"
)

// NewMemoryStores returns a StoreSet backed by process memory.
func NewMemoryStores() StoreSet {
	return StoreSet{
		Users:   NewMemoryUserStore(),
		History: NewMemoryHistoryStore(),
		Audit:   NewMemoryAuditStore(),
		Driver:  DriverMemory,
	}
}

// MemoryUserStore provides an in-memory UserStore.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewMemoryUserStore creates an in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User)}
}

func (s *MemoryUserStore) Create(ctx context.Context, user *models.User) error {
	if err := prepareUser(user); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return ErrAlreadyExists
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *MemoryUserStore) Get(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) List(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	s.mu.RLock()
	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return paginate(users, normalizeLimit(limit), offset), len(users), nil
}

func (s *MemoryUserStore) Update(ctx context.Context, id string, fields models.UserFields) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := current.Clone()
	if err := ApplyUserFields(updated, fields); err != nil {
		return nil, err
	}
	if updated.Email != current.Email {
		for otherID, u := range s.users {
			if otherID != id && u.Email == updated.Email {
				return nil, ErrAlreadyExists
			}
		}
	}
	updated.UpdatedAt = time.Now().UTC()
	s.users[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// MemoryHistoryStore provides an in-memory HistoryStore.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries []*models.HistoryEntry
}

// NewMemoryHistoryStore creates an in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidField
	}
	cp := *entry
	cp.ToolsUsed = append([]string(nil), entry.ToolsUsed...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == cp.ID {
			return ErrAlreadyExists
		}
	}
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryHistoryStore) Get(ctx context.Context, id string) (*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryHistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error) {
	return s.newest(normalizeLimit(limit), func(e *models.HistoryEntry) bool { return e.UserID == userID }), nil
}

func (s *MemoryHistoryStore) Recent(ctx context.Context, limit int) ([]*models.HistoryEntry, error) {
	return s.newest(normalizeLimit(limit), func(*models.HistoryEntry) bool { return true }), nil
}

// newest walks entries from the most recent append backwards.
func (s *MemoryHistoryStore) newest(limit int, keep func(*models.HistoryEntry) bool) []*models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.HistoryEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.entries[i]) {
			cp := *s.entries[i]
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryHistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// MemoryAuditStore provides an in-memory AuditStore.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	records []*models.AuditRecord
}

// NewMemoryAuditStore creates an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	if rec == nil || rec.ID == "" {
		return ErrInvalidField
	}
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.records = append(s.records, &cp)
	s.mu.Unlock()
	return nil
}

func (s *MemoryAuditStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditRecord, error) {
	return s.newest(limit, func(r *models.AuditRecord) bool { return r.UserID == userID }), nil
}

func (s *MemoryAuditStore) ListByAction(ctx context.Context, action models.AuditAction, limit int) ([]*models.AuditRecord, error) {
	return s.newest(limit, func(r *models.AuditRecord) bool { return r.Action == action }), nil
}

func (s *MemoryAuditStore) ListToolExecutions(ctx context.Context, toolName string, limit int) ([]*models.AuditRecord, error) {
	return s.newest(limit, func(r *models.AuditRecord) bool {
		return r.Action == models.AuditToolExecution && (toolName == "" || r.ToolName == toolName)
	}), nil
}

func (s *MemoryAuditStore) ListErrors(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	return s.newest(limit, func(r *models.AuditRecord) bool { return !r.Success }), nil
}

func (s *MemoryAuditStore) newest(limit int, keep func(*models.AuditRecord) bool) []*models.AuditRecord {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AuditRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.records[i]) {
			cp := *s.records[i]
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryAuditStore) Stats(ctx context.Context, since time.Time) (*models.AuditStats, error) {
	stats := &models.AuditStats{ByTool: make(map[string]int)}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		if r.Success {
			stats.Successes++
		} else {
			stats.Failures++
		}
		if r.ToolName != "" {
			stats.ByTool[r.ToolName]++
		}
	}
	return stats, nil
}

func (s *MemoryAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}
