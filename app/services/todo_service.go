package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"todo-tree/app/models"
	"todo-tree/app/store"
)

// TodoService manages the todo forest: it validates parent references,
// computes children and descendants, and carries out the deletion modes.
// Every method runs as a single store transaction.
type TodoService struct {
	store  store.Store
	logger *slog.Logger
}

// NewTodoService creates a new TodoService backed by s.
func NewTodoService(s store.Store, logger *slog.Logger) *TodoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TodoService{store: s, logger: logger}
}

// Ping checks that the backing store is reachable.
func (s *TodoService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return s.storageFailure("ping", err)
	}
	return nil
}

// CreateTodo validates in and stores it as a new todo with a fresh ID.
func (s *TodoService) CreateTodo(ctx context.Context, in models.CreateTodo) (models.Todo, error) {
	if err := in.Validate(); err != nil {
		return models.Todo{}, invalidPayload(err)
	}

	now := time.Now().UTC()
	todo := models.Todo{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		ParentID:    in.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, todo)
	})
	if errors.Is(err, store.ErrParentNotFound) {
		s.logger.Debug("create rejected", "parent_id", idString(in.ParentID), "reason", "parent not found")
		return models.Todo{}, &ValidationError{
			Field:   "parent_id",
			Message: fmt.Sprintf("parent not found: todo %s does not exist", in.ParentID.String()),
		}
	}
	if err != nil {
		return models.Todo{}, s.storageFailure("create todo", err)
	}

	s.logger.Info("todo created", "id", todo.ID.String(), "parent_id", idString(todo.ParentID))
	return todo, nil
}

// GetTodo returns the todo with the given ID.
func (s *TodoService) GetTodo(ctx context.Context, id uuid.UUID) (models.Todo, error) {
	var todo models.Todo
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		todo, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return models.Todo{}, s.lookupFailure("get todo", id, err)
	}
	return todo, nil
}

// GetTodoWithChildren returns the todo together with its direct children.
func (s *TodoService) GetTodoWithChildren(ctx context.Context, id uuid.UUID) (models.TodoWithChildren, error) {
	var out models.TodoWithChildren
	err := s.store.View(ctx, func(tx store.Tx) error {
		todo, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		children, err := tx.Children(ctx, id)
		if err != nil {
			return err
		}
		if children == nil {
			children = []uuid.UUID{}
		}
		out = models.TodoWithChildren{Todo: todo, Children: children}
		return nil
	})
	if err != nil {
		return models.TodoWithChildren{}, s.lookupFailure("get todo", id, err)
	}
	return out, nil
}

// ListRoots returns every root-level todo. Roots with children carry their IDs.
func (s *TodoService) ListRoots(ctx context.Context) ([]models.Root, error) {
	var roots []models.Root
	err := s.store.View(ctx, func(tx store.Tx) error {
		todos, err := tx.Roots(ctx)
		if err != nil {
			return err
		}
		roots = make([]models.Root, 0, len(todos))
		for _, todo := range todos {
			children, err := tx.Children(ctx, todo.ID)
			if err != nil {
				return err
			}
			roots = append(roots, models.Root{Todo: todo, Children: children})
		}
		return nil
	})
	if err != nil {
		return nil, s.storageFailure("list roots", err)
	}
	return roots, nil
}

// UpdateTodo changes the title and/or description of an existing todo.
func (s *TodoService) UpdateTodo(ctx context.Context, id uuid.UUID, in models.UpdateTodo) (models.Todo, error) {
	if err := in.Validate(); err != nil {
		return models.Todo{}, invalidPayload(err)
	}

	var todo models.Todo
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		todo, err = tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if in.Title != nil {
			todo.Title = *in.Title
		}
		if in.Description != nil {
			todo.Description = *in.Description
		}
		todo.UpdatedAt = time.Now().UTC()
		return tx.Put(ctx, todo)
	})
	if err != nil {
		return models.Todo{}, s.lookupFailure("update todo", id, err)
	}

	s.logger.Info("todo updated", "id", id.String())
	return todo, nil
}

// GetChildren returns the IDs of the direct children of id.
func (s *TodoService) GetChildren(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var children []uuid.UUID
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		var err error
		children, err = tx.Children(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.lookupFailure("get children", id, err)
	}
	return nonNil(children), nil
}

// GetDescendants returns the IDs of every todo below id, each child
// followed by its own descendants.
func (s *TodoService) GetDescendants(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var all []uuid.UUID
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		var err error
		all, err = descendants(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, s.lookupFailure("get descendants", id, err)
	}
	return nonNil(all), nil
}

// DeleteTodo removes id according to mode. Business outcomes (not found,
// blocked by children, bad mode) are reported in the result and returned
// as an error matching ErrNotFound, ErrHasChildren or ErrValidation.
func (s *TodoService) DeleteTodo(ctx context.Context, id uuid.UUID, mode models.DeleteMode) (models.DeletionResult, error) {
	if _, err := models.ParseDeleteMode(string(mode)); err != nil {
		verr := &ValidationError{Field: "mode", Message: err.Error()}
		return models.DeletionResult{Mode: mode, Error: verr.Error()}, verr
	}

	var result models.DeletionResult
	err := s.store.Update(ctx, func(tx store.Tx) error {
		result = models.DeletionResult{Mode: mode}

		if _, err := tx.Get(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errTargetMissing
			}
			return err
		}
		children, err := tx.Children(ctx, id)
		if err != nil {
			return err
		}

		switch mode {
		case models.DeleteSafe:
			if len(children) > 0 {
				return &ConflictError{ID: id, ChildrenCount: len(children)}
			}
		case models.DeleteCascade:
			below, err := descendants(ctx, tx, id)
			if err != nil {
				return err
			}
			// Pre-order lists every parent before its subtree, so walking it
			// backwards removes leaves first.
			for i := len(below) - 1; i >= 0; i-- {
				if err := tx.Delete(ctx, below[i]); err != nil {
					return fmt.Errorf("delete descendant %s: %w", below[i], err)
				}
			}
			result.DeletedCount += len(below)
		case models.DeleteOrphan:
			now := time.Now().UTC()
			for _, childID := range children {
				child, err := tx.Get(ctx, childID)
				if err != nil {
					return fmt.Errorf("load child %s: %w", childID, err)
				}
				child.ParentID = nil
				child.UpdatedAt = now
				if err := tx.Put(ctx, child); err != nil {
					return fmt.Errorf("orphan child %s: %w", childID, err)
				}
			}
			result.OrphanedCount = len(children)
		}

		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		result.Deleted = true
		result.DeletedCount++
		return nil
	})

	var conflict *ConflictError
	switch {
	case err == nil:
		s.logger.Info("todo deleted",
			"id", id.String(),
			"mode", mode,
			"deleted", result.DeletedCount,
			"orphaned", result.OrphanedCount,
		)
		return result, nil
	case errors.As(err, &conflict):
		s.logger.Debug("delete blocked", "id", id.String(), "children", conflict.ChildrenCount)
		return models.DeletionResult{
			Mode:          mode,
			ChildrenCount: conflict.ChildrenCount,
			Error:         conflict.Error(),
		}, conflict
	case errors.Is(err, errTargetMissing):
		return models.DeletionResult{
			Mode:  mode,
			Error: fmt.Sprintf("todo %s not found", id),
		}, fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		serr := s.storageFailure("delete todo", err)
		return models.DeletionResult{Mode: mode, Error: serr.Error()}, serr
	}
}

// errTargetMissing distinguishes a missing delete target from a missing
// row further down the subtree.
var errTargetMissing = errors.New("delete target missing")

// descendants walks the subtree below id in pre-order.
func descendants(ctx context.Context, tx store.Tx, id uuid.UUID) ([]uuid.UUID, error) {
	children, err := tx.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, child := range children {
		out = append(out, child)
		below, err := descendants(ctx, tx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, below...)
	}
	return out, nil
}

func (s *TodoService) lookupFailure(op string, id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.storageFailure(op, err)
}

func (s *TodoService) storageFailure(op string, err error) error {
	s.logger.Error("store operation failed", "op", op, "error", err)
	return storageError(op, err)
}

func invalidPayload(err error) error {
	var invalid *models.InvalidError
	if errors.As(err, &invalid) && len(invalid.Problems) == 1 {
		p := invalid.Problems[0]
		return &ValidationError{Field: p.Field, Message: p.Message}
	}
	return &ValidationError{Message: err.Error()}
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
