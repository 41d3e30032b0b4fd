package models

import (
	"time"

	"github.com/google/uuid"
)

// Field limits shared by validation and the SQL schema.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1024
)

// Todo represents a todo item with an optional parent ID.
type Todo struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsRoot reports whether the todo has no parent.
func (t Todo) IsRoot() bool {
	return t.ParentID == nil
}

// TodoWithChildren is a todo together with the IDs of its direct children.
type TodoWithChildren struct {
	Todo
	Children []uuid.UUID `json:"children"`
}

// Root is one entry of the root listing. Roots without children encode
// exactly like a plain Todo.
type Root struct {
	Todo
	Children []uuid.UUID `json:"children,omitempty"`
}

// CreateTodo is the payload accepted when creating a todo.
type CreateTodo struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// UpdateTodo carries the attributes that may change after creation.
// Nil fields are left as they are.
type UpdateTodo struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// UUIDPtr returns a pointer to a copy of id.
func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
