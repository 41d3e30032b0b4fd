package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"todo-tree/app/models"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const todoColumns = "id, title, description, parent_id, created_at, updated_at"

// SQLite stores todos in a single SQLite table with a self-referencing
// foreign key on parent_id.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// View runs fn in a read-only transaction.
func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Update runs fn in an IMMEDIATE write transaction.
func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Get(ctx context.Context, id uuid.UUID) (models.Todo, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id.String())
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Todo{}, ErrNotFound
	}
	if err != nil {
		return models.Todo{}, fmt.Errorf("get todo %s: %w", id, err)
	}
	return todo, nil
}

func (t *sqlTx) Children(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM todos WHERE parent_id = ? ORDER BY created_at, rowid`, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse child id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *sqlTx) Roots(ctx context.Context) ([]models.Todo, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE parent_id IS NULL ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	defer rows.Close()

	var todos []models.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

func (t *sqlTx) Insert(ctx context.Context, todo models.Todo) error {
	if todo.ParentID != nil {
		if err := t.exists(ctx, *todo.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrParentNotFound
			}
			return err
		}
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO todos (`+todoColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		todo.ID.String(), todo.Title, nullString(todo.Description), nullUUID(todo.ParentID),
		formatTime(todo.CreatedAt), formatTime(todo.UpdatedAt),
	)
	switch {
	case errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY):
		return ErrAlreadyExists
	case errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY):
		return ErrParentNotFound
	case err != nil:
		return fmt.Errorf("insert todo %s: %w", todo.ID, err)
	}
	return nil
}

func (t *sqlTx) Put(ctx context.Context, todo models.Todo) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE todos SET title = ?, description = ?, parent_id = ?, updated_at = ? WHERE id = ?`,
		todo.Title, nullString(todo.Description), nullUUID(todo.ParentID),
		formatTime(todo.UpdatedAt), todo.ID.String(),
	)
	if errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY) {
		return ErrParentNotFound
	}
	if err != nil {
		return fmt.Errorf("update todo %s: %w", todo.ID, err)
	}
	return expectOneRow(res)
}

func (t *sqlTx) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id.String())
	if errors.Is(err, sqlite3.CONSTRAINT_FOREIGNKEY) {
		return ErrHasChildren
	}
	if err != nil {
		return fmt.Errorf("delete todo %s: %w", id, err)
	}
	return expectOneRow(res)
}

func (t *sqlTx) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	return n, nil
}

func (t *sqlTx) exists(ctx context.Context, id uuid.UUID) error {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM todos WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup todo %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (models.Todo, error) {
	var (
		todo                 models.Todo
		id                   string
		description, parent  sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &todo.Title, &description, &parent, &createdAt, &updatedAt); err != nil {
		return models.Todo{}, err
	}

	var err error
	if todo.ID, err = uuid.Parse(id); err != nil {
		return models.Todo{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	todo.Description = description.String
	if parent.Valid {
		pid, err := uuid.Parse(parent.String)
		if err != nil {
			return models.Todo{}, fmt.Errorf("parse parent_id %q: %w", parent.String, err)
		}
		todo.ParentID = &pid
	}
	if todo.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return models.Todo{}, fmt.Errorf("parse created_at: %w", err)
	}
	if todo.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return models.Todo{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return todo, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
