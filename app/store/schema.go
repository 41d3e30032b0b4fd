package store

// SQLiteSchema creates the todos table and its access paths.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS todos (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL CHECK(length(title) BETWEEN 1 AND 255),
    description TEXT NULL CHECK(description IS NULL OR length(description) <= 1024),
    parent_id   TEXT NULL REFERENCES todos(id),
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_todos_parent_id ON todos(parent_id);
CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos(created_at);
CREATE INDEX IF NOT EXISTS idx_todos_parent_title ON todos(parent_id, title);
`

// sqliteParams configures every connection: WAL, a busy timeout so writers
// queue instead of failing, foreign keys on, and IMMEDIATE write transactions.
const sqliteParams = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_txlock=immediate"

// Neo4jSchema holds the constraint and index statements for the graph backend.
var Neo4jSchema = []string{
	"CREATE CONSTRAINT todo_id IF NOT EXISTS FOR (t:Todo) REQUIRE t.id IS UNIQUE",
	"CREATE INDEX todo_created_at IF NOT EXISTS FOR (t:Todo) ON (t.created_at)",
	"CREATE INDEX todo_title IF NOT EXISTS FOR (t:Todo) ON (t.title)",
}
