// Package users provides the db_users tool, which lets the model manage
// user accounts under the least-privilege permission policy.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/auth"
	"github.com/haasonsaas/toolchat/internal/security"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// ToolName is the registered name of the tool.
const ToolName = "db_users"

// ListLimit caps the list action.
const ListLimit = 100

const description = `Manage users in the database. Actions:
- create: Create a new user (admin only)
- read: Get user by ID (self or admin)
- update: Update user fields (self: name/email only, admin: all)
- delete: Delete a user (admin only)
- list: List all users (admin only)`

// ActionLogger records user lifecycle actions. *audit.Logger satisfies it.
type ActionLogger interface {
	LogAction(ctx context.Context, exec *agent.ExecutionContext, action models.AuditAction, details map[string]any, success bool, errMsg string)
}

// Input is the argument shape of db_users.
type Input struct {
	Action string         `json:"action" jsonschema:"enum=create,enum=read,enum=update,enum=delete,enum=list,description=The database action to perform"`
	UserID string         `json:"userId,omitempty" jsonschema:"description=User ID (required for read/update/delete)"`
	Data   map[string]any `json:"data,omitempty" jsonschema:"description=User fields for create/update: name/email/isAdmin"`
}

// Output is the data payload of a successful call.
type Output struct {
	Action  string         `json:"action"`
	User    *models.User   `json:"user,omitempty"`
	Users   []*models.User `json:"users,omitempty"`
	Total   int            `json:"total,omitempty"`
	Message string         `json:"message,omitempty"`
}

type handler struct {
	store  storage.UserStore
	audits ActionLogger
}

// New returns the db_users tool. audits may be nil.
func New(store storage.UserStore, audits ActionLogger) *agent.TypedTool[Input] {
	h := &handler{store: store, audits: audits}
	return agent.NewTypedTool[Input](ToolName, description, true, h.execute)
}

func (h *handler) execute(ctx context.Context, exec *agent.ExecutionContext, in Input) (models.ToolResult, error) {
	data, err := security.SanitizeFields(in.Data)
	if err != nil {
		return models.ToolFailure(err.Error()), nil
	}
	userID := strings.TrimSpace(in.UserID)

	var actor *models.User
	if exec != nil {
		actor = exec.Actor
	}

	switch auth.Action(in.Action) {
	case auth.ActionCreate:
		return h.create(ctx, exec, actor, data)
	case auth.ActionRead:
		return h.read(ctx, actor, userID)
	case auth.ActionUpdate:
		return h.update(ctx, exec, actor, userID, data)
	case auth.ActionDelete:
		return h.delete(ctx, exec, actor, userID)
	case auth.ActionList:
		return h.list(ctx, actor)
	default:
		return models.ToolFailure("Unknown action"), nil
	}
}

func (h *handler) create(ctx context.Context, exec *agent.ExecutionContext, actor *models.User, data map[string]any) (models.ToolResult, error) {
	if d := auth.CheckPermission(auth.ActionCreate, "", actor); !d.Allowed {
		return models.ToolFailure(d.Reason), nil
	}
	name, _ := data[models.FieldName].(string)
	email, _ := data[models.FieldEmail].(string)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return models.ToolFailure("Name and email required for create"), nil
	}
	isAdmin, _ := data[models.FieldIsAdmin].(bool)

	user := &models.User{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(name),
		Email:   email,
		IsAdmin: isAdmin,
	}
	err := h.store.Create(ctx, user)
	h.logAction(ctx, exec, models.AuditUserCreate, map[string]any{"userId": user.ID, "email": user.Email, "isAdmin": isAdmin}, err)
	if err != nil {
		return models.ToolFailure(storeMessage("create user", err)), nil
	}
	return models.ToolSuccess(Output{Action: "create", User: user, Message: "User created successfully"}), nil
}

func (h *handler) read(ctx context.Context, actor *models.User, userID string) (models.ToolResult, error) {
	if userID == "" {
		return models.ToolFailure("userId required for read"), nil
	}
	if d := auth.CheckPermission(auth.ActionRead, userID, actor); !d.Allowed {
		return models.ToolFailure(d.Reason), nil
	}
	user, err := h.store.Get(ctx, userID)
	if err != nil {
		return models.ToolFailure(storeMessage("read user", err)), nil
	}
	return models.ToolSuccess(Output{Action: "read", User: user}), nil
}

func (h *handler) update(ctx context.Context, exec *agent.ExecutionContext, actor *models.User, userID string, data map[string]any) (models.ToolResult, error) {
	if userID == "" {
		return models.ToolFailure("userId required for update"), nil
	}
	if d := auth.CheckPermission(auth.ActionUpdate, userID, actor); !d.Allowed {
		return models.ToolFailure(d.Reason), nil
	}
	if len(data) == 0 {
		return models.ToolFailure("Data required for update"), nil
	}

	allowed := auth.FilterAllowedFields(data, actor.IsAdmin)
	if len(allowed) == 0 {
		return models.ToolFailure("No valid fields to update"), nil
	}

	user, err := h.store.Update(ctx, userID, models.UserFields(allowed))
	details := map[string]any{"userId": userID, "fields": fieldNames(allowed)}
	h.logAction(ctx, exec, models.AuditUserUpdate, details, err)
	if err != nil {
		return models.ToolFailure(storeMessage("update user", err)), nil
	}
	return models.ToolSuccess(Output{Action: "update", User: user, Message: "User updated successfully"}), nil
}

func (h *handler) delete(ctx context.Context, exec *agent.ExecutionContext, actor *models.User, userID string) (models.ToolResult, error) {
	if userID == "" {
		return models.ToolFailure("userId required for delete"), nil
	}
	if d := auth.CheckPermission(auth.ActionDelete, userID, actor); !d.Allowed {
		return models.ToolFailure(d.Reason), nil
	}
	if actor.ID == userID {
		return models.ToolFailure("cannot delete your own account"), nil
	}

	err := h.store.Delete(ctx, userID)
	h.logAction(ctx, exec, models.AuditUserDelete, map[string]any{"userId": userID}, err)
	if err != nil {
		return models.ToolFailure(storeMessage("delete user", err)), nil
	}
	return models.ToolSuccess(Output{Action: "delete", Message: "User deleted successfully"}), nil
}

func (h *handler) list(ctx context.Context, actor *models.User) (models.ToolResult, error) {
	if d := auth.CheckPermission(auth.ActionList, "", actor); !d.Allowed {
		return models.ToolFailure(d.Reason), nil
	}
	users, total, err := h.store.List(ctx, ListLimit, 0)
	if err != nil {
		return models.ToolFailure(storeMessage("list users", err)), nil
	}
	return models.ToolSuccess(Output{Action: "list", Users: users, Total: total}), nil
}

func (h *handler) logAction(ctx context.Context, exec *agent.ExecutionContext, action models.AuditAction, details map[string]any, err error) {
	if h.audits == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	h.audits.LogAction(ctx, exec, action, details, err == nil, msg)
}

// storeMessage turns a storage error into text the model can act on.
func storeMessage(op string, err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "User not found"
	case errors.Is(err, storage.ErrAlreadyExists):
		return "A user with this email already exists"
	case errors.Is(err, storage.ErrInvalidField):
		return err.Error()
	default:
		return op + " failed: " + err.Error()
	}
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for _, f := range []string{models.FieldName, models.FieldEmail, models.FieldIsAdmin} {
		if _, ok := fields[f]; ok {
			names = append(names, f)
		}
	}
	return names
}
