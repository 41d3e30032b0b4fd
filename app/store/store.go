// Package store defines the item store the hierarchy manager is written
// against, along with its in-memory, SQLite and Neo4j implementations.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"todo-tree/app/models"
)

var (
	// ErrNotFound is returned when a todo doesn't exist.
	ErrNotFound = errors.New("store: todo not found")

	// ErrParentNotFound is returned when inserting a todo whose parent doesn't exist.
	ErrParentNotFound = errors.New("store: parent todo not found")

	// ErrAlreadyExists is returned when inserting a todo with an existing ID.
	ErrAlreadyExists = errors.New("store: todo already exists")

	// ErrHasChildren is returned when deleting a row that other rows still reference.
	ErrHasChildren = errors.New("store: todo still has children")
)

// Store opens transactions over the todo forest.
//
// The function passed to View or Update sees a consistent snapshot. If it
// returns an error from Update, none of its writes are kept. Implementations
// may call fn more than once when the backend retries a transient failure,
// so fn must not leak state between attempts.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// Get returns the todo with the given ID or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (models.Todo, error)
	// Children returns the IDs of the direct children of parentID in creation order.
	Children(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)
	// Roots returns every todo without a parent in creation order.
	Roots(ctx context.Context) ([]models.Todo, error)
	// Insert stores a new todo. The parent, if any, must already exist.
	Insert(ctx context.Context, todo models.Todo) error
	// Put overwrites the attributes and parent of an existing todo.
	Put(ctx context.Context, todo models.Todo) error
	// Delete removes a single todo. Rows that still point at it are rejected
	// with ErrHasChildren.
	Delete(ctx context.Context, id uuid.UUID) error
	// Count returns the number of stored todos.
	Count(ctx context.Context) (int, error)
}
