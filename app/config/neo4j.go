package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"todo-tree/app/store"
)

// InitNeo4j initializes the Neo4j driver and returns it.
func InitNeo4j(cfg Neo4jConfig) (neo4j.DriverWithContext, error) {
	return neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
}

// OpenStore opens the backend selected by cfg.Store.Backend and prepares its schema.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case BackendMemory:
		logger.Warn("using in-memory store; todos are lost on restart")
		return store.NewMemory(), nil

	case BackendSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", "path", cfg.SQLite.Path)
		return s, nil

	case BackendNeo4j:
		driver, err := InitNeo4j(cfg.Neo4j)
		if err != nil {
			return nil, fmt.Errorf("create neo4j driver: %w", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			driver.Close(ctx)
			return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.Neo4j.URI, err)
		}
		s := store.NewNeo4j(driver, cfg.Neo4j.Database)
		if err := s.EnsureSchema(ctx); err != nil {
			driver.Close(ctx)
			return nil, err
		}
		logger.Info("connected to neo4j", "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
