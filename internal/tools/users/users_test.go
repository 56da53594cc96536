package users

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/pkg/models"
)

type recordedAction struct {
	action  models.AuditAction
	success bool
}

type recordingLogger struct {
	mu      sync.Mutex
	actions []recordedAction
}

func (r *recordingLogger) LogAction(_ context.Context, _ *agent.ExecutionContext, action models.AuditAction, _ map[string]any, success bool, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, recordedAction{action: action, success: success})
}

var (
	admin = &models.User{ID: "admin-1", Name: "Admin", Email: "admin@example.com", IsAdmin: true}
	alice = &models.User{ID: "alice-1", Name: "Alice", Email: "alice@example.com"}
	bob   = &models.User{ID: "bob-1", Name: "Bob", Email: "bob@example.com"}
)

func setup(t *testing.T) (storage.UserStore, *recordingLogger, agent.Tool) {
	t.Helper()
	store := storage.NewMemoryUserStore()
	for _, u := range []*models.User{admin, alice, bob} {
		if err := store.Create(context.Background(), u.Clone()); err != nil {
			t.Fatalf("seed %s: %v", u.ID, err)
		}
	}
	logger := &recordingLogger{}
	return store, logger, New(store, logger)
}

func execAs(u *models.User) *agent.ExecutionContext {
	return agent.NewExecutionContext(u, "", "")
}

func run(t *testing.T, tool agent.Tool, exec *agent.ExecutionContext, args string) models.ToolResult {
	t.Helper()
	reg := agent.NewToolRegistry(nil)
	reg.MustRegister(tool)
	return reg.Execute(context.Background(), ToolName, json.RawMessage(args), exec)
}

func TestUsersTool_RequiresAuth(t *testing.T) {
	_, _, tool := setup(t)
	if !tool.RequiresAuth() {
		t.Fatal("db_users must require auth")
	}
	res := run(t, tool, execAs(nil), `{"action":"list"}`)
	if res.Success {
		t.Fatal("anonymous list succeeded")
	}
}

func TestUsersTool_Permissions(t *testing.T) {
	tests := []struct {
		name        string
		actor       *models.User
		args        string
		wantSuccess bool
		wantErr     string
	}{
		{"admin lists", admin, `{"action":"list"}`, true, ""},
		{"user cannot list", alice, `{"action":"list"}`, false, "only admins can list users"},
		{"user reads self", alice, `{"action":"read","userId":"alice-1"}`, true, ""},
		{"user cannot read other", alice, `{"action":"read","userId":"bob-1"}`, false, "cannot read other user profiles"},
		{"admin reads other", admin, `{"action":"read","userId":"bob-1"}`, true, ""},
		{"read needs id", admin, `{"action":"read"}`, false, "userId required for read"},
		{"read missing user", admin, `{"action":"read","userId":"ghost"}`, false, "User not found"},
		{"user cannot create", alice, `{"action":"create","data":{"name":"X","email":"x@example.com"}}`, false, "only admins can create users"},
		{"create needs name and email", admin, `{"action":"create","data":{"name":"X"}}`, false, "Name and email required for create"},
		{"user cannot delete", alice, `{"action":"delete","userId":"bob-1"}`, false, "only admins can delete users"},
		{"admin cannot delete self", admin, `{"action":"delete","userId":"admin-1"}`, false, "cannot delete your own account"},
		{"user cannot update other", alice, `{"action":"update","userId":"bob-1","data":{"name":"B"}}`, false, "cannot update other user profiles"},
		{"unknown action rejected by schema", admin, `{"action":"drop"}`, false, "invalid arguments"},
		{"operator injection", admin, `{"action":"create","data":{"name":"X","email":{"$ne":""}}}`, false, "query operator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, tool := setup(t)
			res := run(t, tool, execAs(tt.actor), tt.args)
			if res.Success != tt.wantSuccess {
				t.Fatalf("success = %v, want %v (error %q)", res.Success, tt.wantSuccess, res.Error)
			}
			if tt.wantErr != "" && !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("error = %q, want substring %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestUsersTool_SelfUpdateFiltersFields(t *testing.T) {
	store, logger, tool := setup(t)

	res := run(t, tool, execAs(alice), `{"action":"update","userId":"alice-1","data":{"name":"Alicia","isAdmin":true}}`)
	if !res.Success {
		t.Fatalf("update failed: %s", res.Error)
	}
	got, err := store.Get(context.Background(), "alice-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", got.Name)
	}
	if got.IsAdmin {
		t.Error("non-admin escalated to admin")
	}
	if len(logger.actions) != 1 || logger.actions[0].action != models.AuditUserUpdate {
		t.Errorf("audit actions = %+v", logger.actions)
	}
}

func TestUsersTool_NoValidFields(t *testing.T) {
	_, _, tool := setup(t)
	res := run(t, tool, execAs(alice), `{"action":"update","userId":"alice-1","data":{"isAdmin":true}}`)
	if res.Success || res.Error != "No valid fields to update" {
		t.Fatalf("result = %+v", res)
	}
}

func TestUsersTool_AdminLifecycle(t *testing.T) {
	store, logger, tool := setup(t)
	exec := execAs(admin)

	res := run(t, tool, exec, `{"action":"create","data":{"name":"Carol","email":"Carol@Example.com","isAdmin":true}}`)
	if !res.Success {
		t.Fatalf("create failed: %s", res.Error)
	}
	created := res.Data.(Output).User
	if created.Email != "carol@example.com" || !created.IsAdmin {
		t.Errorf("created = %+v", created)
	}

	dup := run(t, tool, exec, `{"action":"create","data":{"name":"Carol","email":"carol@example.com"}}`)
	if dup.Success || !strings.Contains(dup.Error, "already exists") {
		t.Errorf("duplicate create = %+v", dup)
	}

	res = run(t, tool, exec, `{"action":"delete","userId":"`+created.ID+`"}`)
	if !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}
	if n, _ := store.Count(context.Background()); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	want := []recordedAction{
		{models.AuditUserCreate, true},
		{models.AuditUserCreate, false},
		{models.AuditUserDelete, true},
	}
	if len(logger.actions) != len(want) {
		t.Fatalf("actions = %+v, want %+v", logger.actions, want)
	}
	for i := range want {
		if logger.actions[i] != want[i] {
			t.Errorf("action[%d] = %+v, want %+v", i, logger.actions[i], want[i])
		}
	}
}
