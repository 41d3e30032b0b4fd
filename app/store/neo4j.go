package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"todo-tree/app/models"
)

// todoReturn projects a matched (t) and its optional parent (p) into the
// columns read by todoFromRecord.
const todoReturn = "RETURN t.id AS id, t.title AS title, t.description AS description, " +
	"p.id AS parent_id, t.created_at AS created_at, t.updated_at AS updated_at"

// rootReturn is todoReturn for nodes known to have no parent.
const rootReturn = "RETURN t.id AS id, t.title AS title, t.description AS description, " +
	"null AS parent_id, t.created_at AS created_at, t.updated_at AS updated_at"

// Neo4j stores todos as :Todo nodes linked child-to-parent by HAS_PARENT.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j wraps an open driver. An empty database selects the server default.
func NewNeo4j(driver neo4j.DriverWithContext, database string) *Neo4j {
	return &Neo4j{driver: driver, database: database}
}

// EnsureSchema creates the id constraint and lookup indexes.
func (n *Neo4j) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Neo4jSchema {
		_, err := neo4j.ExecuteQuery(ctx, n.driver, stmt, nil,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database),
		)
		if err != nil {
			return fmt.Errorf("apply neo4j schema %q: %w", stmt, err)
		}
	}
	return nil
}

// View runs fn in a managed read transaction.
func (n *Neo4j) View(ctx context.Context, fn func(Tx) error) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: n.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&graphTx{tx: tx})
	})
	return err
}

// Update runs fn in a managed write transaction. The driver may retry fn
// on transient cluster errors.
func (n *Neo4j) Update(ctx context.Context, fn func(Tx) error) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: n.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&graphTx{tx: tx})
	})
	return err
}

// Ping verifies that the server is reachable.
func (n *Neo4j) Ping(ctx context.Context) error {
	return n.driver.VerifyConnectivity(ctx)
}

// Close closes the driver.
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

type graphTx struct {
	tx neo4j.ManagedTransaction
}

func (g *graphTx) Get(ctx context.Context, id uuid.UUID) (models.Todo, error) {
	res, err := g.tx.Run(ctx,
		"MATCH (t:Todo {id: $id}) "+
			"OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Todo) "+
			todoReturn,
		map[string]any{"id": id.String()},
	)
	if err != nil {
		return models.Todo{}, fmt.Errorf("get todo %s: %w", id, err)
	}
	if res.Next(ctx) {
		return todoFromRecord(res.Record())
	}
	if err := res.Err(); err != nil {
		return models.Todo{}, fmt.Errorf("get todo %s: %w", id, err)
	}
	return models.Todo{}, ErrNotFound
}

func (g *graphTx) Children(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	res, err := g.tx.Run(ctx,
		"MATCH (c:Todo)-[:HAS_PARENT]->(:Todo {id: $id}) "+
			"RETURN c.id AS id ORDER BY c.created_at",
		map[string]any{"id": parentID.String()},
	)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", parentID, err)
	}

	var ids []uuid.UUID
	for res.Next(ctx) {
		raw, _ := res.Record().Get("id")
		id, err := parseGraphID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("query children of %s: %w", parentID, err)
	}
	return ids, nil
}

func (g *graphTx) Roots(ctx context.Context) ([]models.Todo, error) {
	res, err := g.tx.Run(ctx,
		"MATCH (t:Todo) WHERE NOT (t)-[:HAS_PARENT]->(:Todo) "+
			rootReturn+" ORDER BY t.created_at",
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}

	var todos []models.Todo
	for res.Next(ctx) {
		todo, err := todoFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	return todos, nil
}

func (g *graphTx) Insert(ctx context.Context, todo models.Todo) error {
	if _, err := g.Get(ctx, todo.ID); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if todo.ParentID != nil {
		if err := g.exists(ctx, *todo.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrParentNotFound
			}
			return err
		}
	}

	_, err := g.tx.Run(ctx,
		"CREATE (t:Todo {id: $id, title: $title, description: $description, "+
			"created_at: $created_at, updated_at: $updated_at})",
		map[string]any{
			"id":          todo.ID.String(),
			"title":       todo.Title,
			"description": todo.Description,
			"created_at":  todo.CreatedAt.UTC(),
			"updated_at":  todo.UpdatedAt.UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("create todo %s: %w", todo.ID, err)
	}
	if todo.ParentID != nil {
		return g.linkParent(ctx, todo.ID, *todo.ParentID)
	}
	return nil
}

func (g *graphTx) Put(ctx context.Context, todo models.Todo) error {
	current, err := g.Get(ctx, todo.ID)
	if err != nil {
		return err
	}
	if todo.ParentID != nil {
		if err := g.exists(ctx, *todo.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrParentNotFound
			}
			return err
		}
	}

	_, err = g.tx.Run(ctx,
		"MATCH (t:Todo {id: $id}) "+
			"SET t.title = $title, t.description = $description, t.updated_at = $updated_at",
		map[string]any{
			"id":          todo.ID.String(),
			"title":       todo.Title,
			"description": todo.Description,
			"updated_at":  todo.UpdatedAt.UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("update todo %s: %w", todo.ID, err)
	}

	if sameParent(current.ParentID, todo.ParentID) {
		return nil
	}
	_, err = g.tx.Run(ctx,
		"MATCH (:Todo {id: $id})-[r:HAS_PARENT]->(:Todo) DELETE r",
		map[string]any{"id": todo.ID.String()},
	)
	if err != nil {
		return fmt.Errorf("detach parent of %s: %w", todo.ID, err)
	}
	if todo.ParentID != nil {
		return g.linkParent(ctx, todo.ID, *todo.ParentID)
	}
	return nil
}

func (g *graphTx) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := g.tx.Run(ctx,
		"MATCH (t:Todo {id: $id}) "+
			"OPTIONAL MATCH (c:Todo)-[:HAS_PARENT]->(t) "+
			"RETURN t.id AS id, count(c) AS children",
		map[string]any{"id": id.String()},
	)
	if err != nil {
		return fmt.Errorf("count children of %s: %w", id, err)
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return fmt.Errorf("count children of %s: %w", id, err)
		}
		return ErrNotFound
	}
	if n, _ := res.Record().Get("children"); n != nil && n.(int64) > 0 {
		return ErrHasChildren
	}

	_, err = g.tx.Run(ctx,
		"MATCH (t:Todo {id: $id}) DETACH DELETE t",
		map[string]any{"id": id.String()},
	)
	if err != nil {
		return fmt.Errorf("delete todo %s: %w", id, err)
	}
	return nil
}

func (g *graphTx) Count(ctx context.Context) (int, error) {
	res, err := g.tx.Run(ctx, "MATCH (t:Todo) RETURN count(t) AS n", nil)
	if err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	n, _ := record.Get("n")
	return int(n.(int64)), nil
}

func (g *graphTx) exists(ctx context.Context, id uuid.UUID) error {
	res, err := g.tx.Run(ctx,
		"MATCH (t:Todo {id: $id}) RETURN t.id AS id",
		map[string]any{"id": id.String()},
	)
	if err != nil {
		return fmt.Errorf("lookup todo %s: %w", id, err)
	}
	if res.Next(ctx) {
		return nil
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("lookup todo %s: %w", id, err)
	}
	return ErrNotFound
}

func (g *graphTx) linkParent(ctx context.Context, childID, parentID uuid.UUID) error {
	_, err := g.tx.Run(ctx,
		"MATCH (child:Todo {id: $childID}), (parent:Todo {id: $parentID}) "+
			"CREATE (child)-[:HAS_PARENT]->(parent)",
		map[string]any{
			"childID":  childID.String(),
			"parentID": parentID.String(),
		},
	)
	if err != nil {
		return fmt.Errorf("link %s to parent %s: %w", childID, parentID, err)
	}
	return nil
}

func todoFromRecord(record *neo4j.Record) (models.Todo, error) {
	var todo models.Todo

	rawID, _ := record.Get("id")
	id, err := parseGraphID(rawID)
	if err != nil {
		return models.Todo{}, err
	}
	todo.ID = id

	if v, ok := record.Get("title"); ok && v != nil {
		todo.Title = v.(string)
	}
	if v, ok := record.Get("description"); ok && v != nil {
		todo.Description = v.(string)
	}
	if v, ok := record.Get("parent_id"); ok && v != nil {
		pid, err := parseGraphID(v)
		if err != nil {
			return models.Todo{}, err
		}
		todo.ParentID = &pid
	}
	if v, ok := record.Get("created_at"); ok && v != nil {
		todo.CreatedAt = v.(time.Time).UTC()
	}
	if v, ok := record.Get("updated_at"); ok && v != nil {
		todo.UpdatedAt = v.(time.Time).UTC()
	}
	return todo, nil
}

func parseGraphID(v any) (uuid.UUID, error) {
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected todo id %v (%T)", v, v)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse todo id %q: %w", s, err)
	}
	return id, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
