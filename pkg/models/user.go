package models

import "time"

// User represents a persisted account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy that callers may mutate freely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserFields is a sparse set of user attributes used for create and update.
// Keys are the JSON field names: "name", "email", "isAdmin".
type UserFields map[string]any

const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldIsAdmin = "isAdmin"
)
