package auth

import (
	"sort"
	"testing"

	"github.com/haasonsaas/toolchat/pkg/models"
)

func TestCheckPermission(t *testing.T) {
	admin := &models.User{ID: "admin-1", IsAdmin: true}
	alice := &models.User{ID: "alice"}

	tests := []struct {
		name    string
		action  Action
		target  string
		actor   *models.User
		allowed bool
		reason  string
	}{
		{"anonymous read", ActionRead, "alice", nil, false, "authentication required"},
		{"anonymous list", ActionList, "", nil, false, "authentication required"},
		{"self read", ActionRead, "alice", alice, true, ""},
		{"other read", ActionRead, "bob", alice, false, "cannot read other user profiles"},
		{"admin read other", ActionRead, "bob", admin, true, ""},
		{"self update", ActionUpdate, "alice", alice, true, ""},
		{"other update", ActionUpdate, "bob", alice, false, "cannot update other user profiles"},
		{"admin update", ActionUpdate, "bob", admin, true, ""},
		{"user create", ActionCreate, "", alice, false, "only admins can create users"},
		{"admin create", ActionCreate, "", admin, true, ""},
		{"user delete self", ActionDelete, "alice", alice, false, "only admins can delete users"},
		{"admin delete", ActionDelete, "bob", admin, true, ""},
		{"user list", ActionList, "", alice, false, "only admins can list users"},
		{"admin list", ActionList, "", admin, true, ""},
		{"unknown action", Action("purge"), "", admin, false, "unknown action"},
		{"empty target is not self", ActionRead, "", &models.User{ID: ""}, false, "cannot read other user profiles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPermission(tt.action, tt.target, tt.actor)
			if got.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.allowed)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestCheckPermission_ReadProperty(t *testing.T) {
	ids := []string{"a", "b", "c"}
	for _, actorID := range ids {
		for _, isAdmin := range []bool{false, true} {
			actor := &models.User{ID: actorID, IsAdmin: isAdmin}
			for _, target := range ids {
				want := isAdmin || actorID == target
				if got := CheckPermission(ActionRead, target, actor).Allowed; got != want {
					t.Errorf("read(%s) by %s admin=%v = %v, want %v", target, actorID, isAdmin, got, want)
				}
			}
		}
	}
}

func TestFilterAllowedFields(t *testing.T) {
	updates := map[string]any{"name": "Dana", "email": "d@example.com", "isAdmin": true, "role": "x"}

	t.Run("non-admin", func(t *testing.T) {
		got := FilterAllowedFields(updates, false)
		keys := make([]string, 0, len(got))
		for k := range got {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "email" || keys[1] != "name" {
			t.Errorf("keys = %v, want [email name]", keys)
		}
	})

	t.Run("admin", func(t *testing.T) {
		got := FilterAllowedFields(updates, true)
		if len(got) != len(updates) {
			t.Fatalf("len = %d, want %d", len(got), len(updates))
		}
		for k := range updates {
			if _, ok := got[k]; !ok {
				t.Errorf("missing key %q", k)
			}
		}
	})

	t.Run("non-admin with nothing allowed", func(t *testing.T) {
		got := FilterAllowedFields(map[string]any{"isAdmin": true}, false)
		if len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})
}
