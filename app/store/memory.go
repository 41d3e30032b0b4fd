package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"todo-tree/app/models"
)

var errReadOnly = errors.New("store: write in read-only transaction")

// rootKey indexes root-level todos in the children index.
var rootKey = uuid.Nil

type memEntry struct {
	todo models.Todo
	seq  uint64
}

// Memory is an in-process store: a flat arena of todos plus an index from
// parent ID to the ordered IDs of its children. Writers are serialised.
type Memory struct {
	mu       sync.RWMutex
	seq      uint64
	items    map[uuid.UUID]*memEntry
	children map[uuid.UUID][]uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items:    make(map[uuid.UUID]*memEntry),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

// View runs fn with shared access.
func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{m: m, readOnly: true})
}

// Update runs fn with exclusive access and undoes its writes if it fails.
func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error {
	return nil
}

type memTx struct {
	m        *Memory
	readOnly bool
	undo     []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) Get(_ context.Context, id uuid.UUID) (models.Todo, error) {
	e, ok := tx.m.items[id]
	if !ok {
		return models.Todo{}, ErrNotFound
	}
	return cloneTodo(e.todo), nil
}

func (tx *memTx) Children(_ context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	if parentID == rootKey {
		return nil, nil
	}
	ids := tx.m.children[parentID]
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out, nil
}

func (tx *memTx) Roots(_ context.Context) ([]models.Todo, error) {
	ids := tx.m.children[rootKey]
	out := make([]models.Todo, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneTodo(tx.m.items[id].todo))
	}
	return out, nil
}

func (tx *memTx) Insert(_ context.Context, todo models.Todo) error {
	if tx.readOnly {
		return errReadOnly
	}
	if todo.ID == rootKey {
		return fmt.Errorf("store: nil todo id")
	}
	if _, ok := tx.m.items[todo.ID]; ok {
		return ErrAlreadyExists
	}
	if todo.ParentID != nil {
		if _, ok := tx.m.items[*todo.ParentID]; !ok {
			return ErrParentNotFound
		}
	}

	todo = cloneTodo(todo)
	tx.m.seq++
	e := &memEntry{todo: todo, seq: tx.m.seq}
	tx.m.items[todo.ID] = e
	tx.link(parentKey(todo.ParentID), todo.ID, e.seq)
	tx.undo = append(tx.undo, func() {
		delete(tx.m.items, todo.ID)
	})
	return nil
}

func (tx *memTx) Put(_ context.Context, todo models.Todo) error {
	if tx.readOnly {
		return errReadOnly
	}
	e, ok := tx.m.items[todo.ID]
	if !ok {
		return ErrNotFound
	}
	if todo.ParentID != nil {
		if _, ok := tx.m.items[*todo.ParentID]; !ok {
			return ErrParentNotFound
		}
	}

	todo = cloneTodo(todo)
	prev := e.todo
	oldKey, newKey := parentKey(prev.ParentID), parentKey(todo.ParentID)
	e.todo = todo
	tx.undo = append(tx.undo, func() { e.todo = prev })
	if oldKey != newKey {
		tx.unlink(oldKey, todo.ID, e.seq)
		tx.link(newKey, todo.ID, e.seq)
	}
	return nil
}

func (tx *memTx) Delete(_ context.Context, id uuid.UUID) error {
	if tx.readOnly {
		return errReadOnly
	}
	e, ok := tx.m.items[id]
	if !ok {
		return ErrNotFound
	}
	if len(tx.m.children[id]) > 0 {
		return ErrHasChildren
	}

	delete(tx.m.items, id)
	tx.undo = append(tx.undo, func() { tx.m.items[id] = e })
	tx.unlink(parentKey(e.todo.ParentID), id, e.seq)
	return nil
}

func (tx *memTx) Count(context.Context) (int, error) {
	return len(tx.m.items), nil
}

// link inserts id into the children list of key, keeping creation order.
func (tx *memTx) link(key, id uuid.UUID, seq uint64) {
	tx.restore(key, id, seq)
	tx.undo = append(tx.undo, func() { tx.remove(key, id) })
}

func (tx *memTx) unlink(key, id uuid.UUID, seq uint64) {
	tx.remove(key, id)
	tx.undo = append(tx.undo, func() { tx.restore(key, id, seq) })
}

func (tx *memTx) remove(key, id uuid.UUID) {
	ids := tx.m.children[key]
	for i, c := range ids {
		if c == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(tx.m.children, key)
		return
	}
	tx.m.children[key] = ids
}

// restore inserts id by sequence without recording an undo step.
func (tx *memTx) restore(key, id uuid.UUID, seq uint64) {
	ids := tx.m.children[key]
	i := sort.Search(len(ids), func(i int) bool {
		return tx.m.items[ids[i]].seq > seq
	})
	ids = append(ids, rootKey)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	tx.m.children[key] = ids
}

func parentKey(parentID *uuid.UUID) uuid.UUID {
	if parentID == nil {
		return rootKey
	}
	return *parentID
}

// cloneTodo copies ParentID so stored entries never alias caller memory.
func cloneTodo(t models.Todo) models.Todo {
	if t.ParentID != nil {
		t.ParentID = models.UUIDPtr(*t.ParentID)
	}
	return t
}
