// Package auth decides what an actor may do and carries actor identity
// through requests.
package auth

import "github.com/haasonsaas/toolchat/pkg/models"

// Action is an operation on a user record.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Decision is the outcome of a permission check. Reason is set when the
// action is denied.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// CheckPermission applies the least-privilege policy for user records:
// create, delete and list are admin-only; read and update are allowed for
// admins and for the actor acting on itself. A nil actor is always denied.
func CheckPermission(action Action, targetID string, actor *models.User) Decision {
	if actor == nil {
		return deny("authentication required")
	}
	self := targetID != "" && actor.ID == targetID

	switch action {
	case ActionCreate:
		if !actor.IsAdmin {
			return deny("only admins can create users")
		}
		return allow()
	case ActionRead:
		if actor.IsAdmin || self {
			return allow()
		}
		return deny("cannot read other user profiles")
	case ActionUpdate:
		if actor.IsAdmin || self {
			return allow()
		}
		return deny("cannot update other user profiles")
	case ActionDelete:
		if !actor.IsAdmin {
			return deny("only admins can delete users")
		}
		return allow()
	case ActionList:
		if !actor.IsAdmin {
			return deny("only admins can list users")
		}
		return allow()
	default:
		return deny("unknown action")
	}
}

// SelfUpdatableFields are the only fields a non-admin may change.
var SelfUpdatableFields = []string{models.FieldName, models.FieldEmail}

// FilterAllowedFields returns the subset of updates the caller may apply.
// Admins get every field back; non-admins keep only SelfUpdatableFields.
// Disallowed fields are dropped, not rejected.
func FilterAllowedFields(updates map[string]any, isAdmin bool) map[string]any {
	if isAdmin {
		out := make(map[string]any, len(updates))
		for k, v := range updates {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(SelfUpdatableFields))
	for _, field := range SelfUpdatableFields {
		if v, ok := updates[field]; ok {
			out[field] = v
		}
	}
	return out
}
