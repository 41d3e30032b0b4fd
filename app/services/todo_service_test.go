package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"todo-tree/app/models"
	"todo-tree/app/services"
	"todo-tree/app/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func stores(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()
	return map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store { return store.NewMemory() },
		"sqlite": func(t *testing.T) store.Store {
			s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "todos.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { s.Close(context.Background()) })
			return s
		},
	}
}

// forEachStore runs fn once per backend with a fresh service.
func forEachStore(t *testing.T, fn func(t *testing.T, svc *services.TodoService, s store.Store)) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			fn(t, services.NewTodoService(s, quiet), s)
		})
	}
}

func mustCreate(t *testing.T, svc *services.TodoService, title string, parent *uuid.UUID) models.Todo {
	t.Helper()
	todo, err := svc.CreateTodo(context.Background(), models.CreateTodo{
		Title:       title,
		Description: title + " description",
		ParentID:    parent,
	})
	if err != nil {
		t.Fatalf("CreateTodo(%q): %v", title, err)
	}
	return todo
}

func storeSize(t *testing.T, s store.Store) int {
	t.Helper()
	var n int
	err := s.View(context.Background(), func(tx store.Tx) error {
		var err error
		n, err = tx.Count(context.Background())
		return err
	})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func sameSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}

func TestCreateTodo(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		root := mustCreate(t, svc, "Project Alpha", nil)
		if root.ID == uuid.Nil {
			t.Fatal("expected an assigned ID")
		}
		if root.CreatedAt.IsZero() || !root.CreatedAt.Equal(root.UpdatedAt) {
			t.Errorf("timestamps = %v / %v", root.CreatedAt, root.UpdatedAt)
		}

		seen := map[uuid.UUID]bool{root.ID: true}
		for i := 0; i < 20; i++ {
			child := mustCreate(t, svc, "child", &root.ID)
			if seen[child.ID] {
				t.Fatalf("duplicate id %s", child.ID)
			}
			seen[child.ID] = true
			if child.ParentID == nil || *child.ParentID != root.ID {
				t.Errorf("ParentID = %v, want %s", child.ParentID, root.ID)
			}
		}

		got, err := svc.GetTodo(ctx, root.ID)
		if err != nil {
			t.Fatalf("GetTodo: %v", err)
		}
		if got.Title != "Project Alpha" || got.Description != "Project Alpha description" {
			t.Errorf("GetTodo = %+v", got)
		}
	})
}

func TestCreateTodoRejectsUnknownParent(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		mustCreate(t, svc, "existing", nil)
		before := storeSize(t, s)

		_, err := svc.CreateTodo(context.Background(), models.CreateTodo{
			Title:    "lost",
			ParentID: models.UUIDPtr(uuid.New()),
		})
		var verr *services.ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, services.ErrValidation) {
			t.Fatalf("CreateTodo = %v, want ValidationError", err)
		}
		if verr.Field != "parent_id" {
			t.Errorf("Field = %q, want parent_id", verr.Field)
		}
		if after := storeSize(t, s); after != before {
			t.Errorf("store size = %d, want %d", after, before)
		}
	})
}

func TestCreateTodoRejectsBadPayload(t *testing.T) {
	svc := services.NewTodoService(store.NewMemory(), quiet)
	_, err := svc.CreateTodo(context.Background(), models.CreateTodo{Title: ""})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("CreateTodo(empty title) = %v, want ErrValidation", err)
	}
}

func TestGetTodoNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		if _, err := svc.GetTodo(ctx, uuid.New()); !errors.Is(err, services.ErrNotFound) {
			t.Errorf("GetTodo = %v, want ErrNotFound", err)
		}
		if _, err := svc.GetTodoWithChildren(ctx, uuid.New()); !errors.Is(err, services.ErrNotFound) {
			t.Errorf("GetTodoWithChildren = %v, want ErrNotFound", err)
		}
		if _, err := svc.GetChildren(ctx, uuid.New()); !errors.Is(err, services.ErrNotFound) {
			t.Errorf("GetChildren = %v, want ErrNotFound", err)
		}
		if _, err := svc.GetDescendants(ctx, uuid.New()); !errors.Is(err, services.ErrNotFound) {
			t.Errorf("GetDescendants = %v, want ErrNotFound", err)
		}
	})
}

func TestChildrenAndDescendants(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		a := mustCreate(t, svc, "a", nil)
		b := mustCreate(t, svc, "b", &a.ID)
		c := mustCreate(t, svc, "c", &a.ID)
		d := mustCreate(t, svc, "d", &b.ID)
		e := mustCreate(t, svc, "e", &d.ID)
		other := mustCreate(t, svc, "other", nil)
		mustCreate(t, svc, "other child", &other.ID)

		children, err := svc.GetChildren(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetChildren: %v", err)
		}
		if !sameSet(children, []uuid.UUID{b.ID, c.ID}) {
			t.Errorf("GetChildren(a) = %v, want {b c}", children)
		}

		all, err := svc.GetDescendants(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetDescendants: %v", err)
		}
		if !sameSet(all, []uuid.UUID{b.ID, c.ID, d.ID, e.ID}) {
			t.Errorf("GetDescendants(a) = %v, want {b c d e}", all)
		}
		// Each child is followed by its own subtree.
		want := []uuid.UUID{b.ID, d.ID, e.ID, c.ID}
		for i := range want {
			if all[i] != want[i] {
				t.Errorf("GetDescendants(a)[%d] = %s, want %s", i, all[i], want[i])
			}
		}

		leaf, err := svc.GetDescendants(ctx, e.ID)
		if err != nil {
			t.Fatalf("GetDescendants(leaf): %v", err)
		}
		if len(leaf) != 0 {
			t.Errorf("GetDescendants(leaf) = %v, want empty", leaf)
		}

		withChildren, err := svc.GetTodoWithChildren(ctx, b.ID)
		if err != nil {
			t.Fatalf("GetTodoWithChildren: %v", err)
		}
		if len(withChildren.Children) != 1 || withChildren.Children[0] != d.ID {
			t.Errorf("children of b = %v, want [d]", withChildren.Children)
		}
	})
}

func TestListRoots(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		alpha := mustCreate(t, svc, "alpha", nil)
		child := mustCreate(t, svc, "child", &alpha.ID)
		beta := mustCreate(t, svc, "beta", nil)

		roots, err := svc.ListRoots(ctx)
		if err != nil {
			t.Fatalf("ListRoots: %v", err)
		}
		if len(roots) != 2 {
			t.Fatalf("ListRoots = %d entries, want 2", len(roots))
		}
		if roots[0].ID != alpha.ID || roots[1].ID != beta.ID {
			t.Errorf("order = %s, %s; want alpha, beta", roots[0].Title, roots[1].Title)
		}
		if len(roots[0].Children) != 1 || roots[0].Children[0] != child.ID {
			t.Errorf("alpha children = %v, want [child]", roots[0].Children)
		}
		if roots[1].Children != nil {
			t.Errorf("beta children = %v, want none", roots[1].Children)
		}
	})
}

func TestUpdateTodo(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		parent := mustCreate(t, svc, "parent", nil)
		todo := mustCreate(t, svc, "before", &parent.ID)

		title := "after"
		updated, err := svc.UpdateTodo(ctx, todo.ID, models.UpdateTodo{Title: &title})
		if err != nil {
			t.Fatalf("UpdateTodo: %v", err)
		}
		if updated.Title != "after" || updated.Description != todo.Description {
			t.Errorf("UpdateTodo = %+v", updated)
		}
		if updated.ParentID == nil || *updated.ParentID != parent.ID {
			t.Errorf("parent changed: %v", updated.ParentID)
		}
		if !updated.UpdatedAt.After(todo.UpdatedAt) && !updated.UpdatedAt.Equal(todo.UpdatedAt) {
			t.Errorf("UpdatedAt went backwards: %v < %v", updated.UpdatedAt, todo.UpdatedAt)
		}

		if _, err := svc.UpdateTodo(ctx, uuid.New(), models.UpdateTodo{Title: &title}); !errors.Is(err, services.ErrNotFound) {
			t.Errorf("UpdateTodo(unknown) = %v, want ErrNotFound", err)
		}
		if _, err := svc.UpdateTodo(ctx, todo.ID, models.UpdateTodo{}); !errors.Is(err, services.ErrValidation) {
			t.Errorf("UpdateTodo(empty) = %v, want ErrValidation", err)
		}
	})
}

func TestDeleteSafe(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		for _, n := range []int{1, 3} {
			parent := mustCreate(t, svc, "parent", nil)
			for i := 0; i < n; i++ {
				mustCreate(t, svc, "child", &parent.ID)
			}
			before := storeSize(t, s)

			result, err := svc.DeleteTodo(ctx, parent.ID, models.DeleteSafe)
			var conflict *services.ConflictError
			if !errors.As(err, &conflict) || !errors.Is(err, services.ErrHasChildren) {
				t.Fatalf("DeleteTodo = %v, want ConflictError", err)
			}
			if result.Deleted || result.ChildrenCount != n || conflict.ChildrenCount != n {
				t.Errorf("result = %+v, want blocked by %d children", result, n)
			}
			if result.Error == "" {
				t.Error("expected an error message in the result")
			}
			if after := storeSize(t, s); after != before {
				t.Errorf("store size = %d, want %d", after, before)
			}
		}

		leaf := mustCreate(t, svc, "leaf", nil)
		result, err := svc.DeleteTodo(ctx, leaf.ID, models.DeleteSafe)
		if err != nil {
			t.Fatalf("DeleteTodo(leaf): %v", err)
		}
		if !result.Deleted || result.DeletedCount != 1 || result.Mode != models.DeleteSafe {
			t.Errorf("result = %+v", result)
		}
	})
}

func TestDeleteCascade(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		alpha := mustCreate(t, svc, "Project Alpha", nil)
		task1 := mustCreate(t, svc, "Task 1", &alpha.ID)
		task2 := mustCreate(t, svc, "Task 2", &alpha.ID)
		sub := mustCreate(t, svc, "Subtask 1.1", &task1.ID)
		subsub := mustCreate(t, svc, "Subtask 1.1.1", &sub.ID)

		children, err := svc.GetChildren(ctx, alpha.ID)
		if err != nil {
			t.Fatalf("GetChildren: %v", err)
		}
		if !sameSet(children, []uuid.UUID{task1.ID, task2.ID}) {
			t.Fatalf("GetChildren(alpha) = %v", children)
		}

		result, err := svc.DeleteTodo(ctx, task1.ID, models.DeleteCascade)
		if err != nil {
			t.Fatalf("DeleteTodo: %v", err)
		}
		if !result.Deleted || result.DeletedCount != 3 || result.OrphanedCount != 0 {
			t.Errorf("result = %+v, want 3 deleted", result)
		}
		for _, id := range []uuid.UUID{task1.ID, sub.ID, subsub.ID} {
			if _, err := svc.GetTodo(ctx, id); !errors.Is(err, services.ErrNotFound) {
				t.Errorf("GetTodo(%s) = %v, want ErrNotFound", id, err)
			}
		}
		children, err = svc.GetChildren(ctx, alpha.ID)
		if err != nil {
			t.Fatalf("GetChildren: %v", err)
		}
		if !sameSet(children, []uuid.UUID{task2.ID}) {
			t.Errorf("GetChildren(alpha) = %v, want [Task 2]", children)
		}
		if n := storeSize(t, s); n != 2 {
			t.Errorf("store size = %d, want 2", n)
		}
	})
}

func TestDeleteOrphan(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		beta := mustCreate(t, svc, "Project Beta", nil)
		c1 := mustCreate(t, svc, "Orphan Child 1", &beta.ID)
		c2 := mustCreate(t, svc, "Orphan Child 2", &beta.ID)
		grand := mustCreate(t, svc, "Grandchild", &c1.ID)

		result, err := svc.DeleteTodo(ctx, beta.ID, models.DeleteOrphan)
		if err != nil {
			t.Fatalf("DeleteTodo: %v", err)
		}
		if !result.Deleted || result.DeletedCount != 1 || result.OrphanedCount != 2 {
			t.Errorf("result = %+v, want 1 deleted, 2 orphaned", result)
		}

		for _, id := range []uuid.UUID{c1.ID, c2.ID} {
			got, err := svc.GetTodo(ctx, id)
			if err != nil {
				t.Fatalf("GetTodo: %v", err)
			}
			if got.ParentID != nil {
				t.Errorf("%s parent = %v, want none", got.Title, got.ParentID)
			}
		}
		got, err := svc.GetTodo(ctx, grand.ID)
		if err != nil {
			t.Fatalf("GetTodo(grandchild): %v", err)
		}
		if got.ParentID == nil || *got.ParentID != c1.ID {
			t.Errorf("grandchild parent = %v, want %s", got.ParentID, c1.ID)
		}

		roots, err := svc.ListRoots(ctx)
		if err != nil {
			t.Fatalf("ListRoots: %v", err)
		}
		var rootIDs []uuid.UUID
		for _, r := range roots {
			rootIDs = append(rootIDs, r.ID)
		}
		if !sameSet(rootIDs, []uuid.UUID{c1.ID, c2.ID}) {
			t.Errorf("roots = %v, want both orphaned children", rootIDs)
		}
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, svc *services.TodoService, s store.Store) {
		ctx := context.Background()
		todo := mustCreate(t, svc, "once", nil)
		if _, err := svc.DeleteTodo(ctx, todo.ID, models.DeleteSafe); err != nil {
			t.Fatalf("first DeleteTodo: %v", err)
		}
		for _, mode := range models.DeleteModes {
			for i := 0; i < 2; i++ {
				result, err := svc.DeleteTodo(ctx, todo.ID, mode)
				if !errors.Is(err, services.ErrNotFound) {
					t.Errorf("DeleteTodo(%s) = %v, want ErrNotFound", mode, err)
				}
				if result.Deleted || result.Error == "" {
					t.Errorf("result = %+v, want not-found outcome", result)
				}
			}
		}
	})
}

func TestDeleteRejectsUnknownMode(t *testing.T) {
	svc := services.NewTodoService(store.NewMemory(), quiet)
	todo := mustCreate(t, svc, "keep", nil)
	for _, mode := range []models.DeleteMode{"", "purge"} {
		if _, err := svc.DeleteTodo(context.Background(), todo.ID, mode); !errors.Is(err, services.ErrValidation) {
			t.Errorf("DeleteTodo(%q) = %v, want ErrValidation", mode, err)
		}
	}
	if _, err := svc.GetTodo(context.Background(), todo.ID); err != nil {
		t.Errorf("todo should survive: %v", err)
	}
}

// failingStore wraps a store and fails the nth Delete inside a transaction.
type failingStore struct {
	store.Store
	failAt int
}

func (f *failingStore) Update(ctx context.Context, fn func(store.Tx) error) error {
	return f.Store.Update(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, failAt: f.failAt})
	})
}

type failingTx struct {
	store.Tx
	failAt  int
	deletes int
}

var errDisk = errors.New("disk on fire")

func (f *failingTx) Delete(ctx context.Context, id uuid.UUID) error {
	f.deletes++
	if f.deletes == f.failAt {
		return errDisk
	}
	return f.Tx.Delete(ctx, id)
}

func TestCascadeIsAtomic(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			base := open(t)
			setup := services.NewTodoService(base, quiet)
			root := mustCreate(t, setup, "root", nil)
			child := mustCreate(t, setup, "child", &root.ID)
			mustCreate(t, setup, "grandchild", &child.ID)
			mustCreate(t, setup, "sibling", &root.ID)
			before := storeSize(t, base)

			svc := services.NewTodoService(&failingStore{Store: base, failAt: 3}, quiet)
			result, err := svc.DeleteTodo(context.Background(), root.ID, models.DeleteCascade)
			if !errors.Is(err, services.ErrStorage) || !errors.Is(err, errDisk) {
				t.Fatalf("DeleteTodo = %v, want storage failure", err)
			}
			if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrHasChildren) {
				t.Errorf("storage failure must not look like a business outcome: %v", err)
			}
			if result.Deleted {
				t.Errorf("result = %+v, want not deleted", result)
			}
			if after := storeSize(t, base); after != before {
				t.Errorf("store size = %d, want %d (partial cascade kept)", after, before)
			}
		})
	}
}

func TestOrphanIsAtomic(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			base := open(t)
			setup := services.NewTodoService(base, quiet)
			root := mustCreate(t, setup, "root", nil)
			c1 := mustCreate(t, setup, "c1", &root.ID)
			mustCreate(t, setup, "c2", &root.ID)

			svc := services.NewTodoService(&failingStore{Store: base, failAt: 1}, quiet)
			if _, err := svc.DeleteTodo(context.Background(), root.ID, models.DeleteOrphan); !errors.Is(err, services.ErrStorage) {
				t.Fatalf("DeleteTodo = %v, want storage failure", err)
			}

			got, err := setup.GetTodo(context.Background(), c1.ID)
			if err != nil {
				t.Fatalf("GetTodo: %v", err)
			}
			if got.ParentID == nil || *got.ParentID != root.ID {
				t.Errorf("c1 parent = %v, want %s after rollback", got.ParentID, root.ID)
			}
		})
	}
}
