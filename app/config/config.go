// Package config loads the service configuration and opens its backends.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"todo-tree/app/models"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "todo.toml"

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config holds the full configuration for the service.
type Config struct {
	HTTP   HTTPConfig   `toml:"http"`
	Store  StoreConfig  `toml:"store"`
	SQLite SQLiteConfig `toml:"sqlite"`
	Neo4j  Neo4jConfig  `toml:"neo4j"`
	Log    LogConfig    `toml:"log"`
	Delete DeleteConfig `toml:"delete"`
	MCP    MCPConfig    `toml:"mcp"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Journal bool   `toml:"journal"`
}

// DeleteConfig holds the mode applied when a delete request names none.
type DeleteConfig struct {
	DefaultMode string `toml:"default_mode"`
}

type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		HTTP:   HTTPConfig{Addr: "0.0.0.0:8080"},
		Store:  StoreConfig{Backend: BackendSQLite},
		SQLite: SQLiteConfig{Path: "todos.db"},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://neo4j:7687",
			Username: "neo4j",
			Password: "password",
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Delete: DeleteConfig{DefaultMode: string(models.DeleteSafe)},
		MCP:    MCPConfig{Enabled: true},
	}
}

// flagValues receives command-line flags before they are layered on top
// of the file and environment.
type flagValues struct {
	configFile string
	addr       string
	backend    string
	sqlitePath string
	neo4jURI   string
	logLevel   string
	mcp        bool
}

// Load builds the configuration from, in increasing priority:
// defaults, the TOML file, TODO_* environment variables, and flags.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	var fv flagValues
	fs.StringVar(&fv.configFile, "config", "", "path to a TOML config file (default ./todo.toml if present)")
	fs.StringVar(&fv.addr, "addr", "", "HTTP listen address")
	fs.StringVar(&fv.backend, "store", "", "store backend: memory, sqlite or neo4j")
	fs.StringVar(&fv.sqlitePath, "sqlite-path", "", "SQLite database file")
	fs.StringVar(&fv.neo4jURI, "neo4j-uri", "", "Neo4j connection URI")
	fs.StringVar(&fv.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVar(&fv.mcp, "mcp", true, "serve MCP tools at /mcp")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := Default()

	path, required := fv.configFile, true
	if path == "" {
		path, required = os.Getenv("TODO_CONFIG"), true
	}
	if path == "" {
		path, required = DefaultConfigFile, false
	}
	if err := loadFile(cfg, path, required); err != nil {
		return nil, err
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.HTTP.Addr = fv.addr
		case "store":
			cfg.Store.Backend = fv.backend
		case "sqlite-path":
			cfg.SQLite.Path = fv.sqlitePath
		case "neo4j-uri":
			cfg.Neo4j.URI = fv.neo4jURI
		case "log-level":
			cfg.Log.Level = fv.logLevel
		case "mcp":
			cfg.MCP.Enabled = fv.mcp
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes path into cfg. A missing optional file is ignored.
func loadFile(cfg *Config, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("loading config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// loadEnv overrides cfg from TODO_* environment variables.
func loadEnv(cfg *Config) error {
	strs := map[string]*string{
		"TODO_HTTP_ADDR":      &cfg.HTTP.Addr,
		"TODO_STORE":          &cfg.Store.Backend,
		"TODO_SQLITE_PATH":    &cfg.SQLite.Path,
		"TODO_NEO4J_URI":      &cfg.Neo4j.URI,
		"TODO_NEO4J_USERNAME": &cfg.Neo4j.Username,
		"TODO_NEO4J_PASSWORD": &cfg.Neo4j.Password,
		"TODO_NEO4J_DATABASE": &cfg.Neo4j.Database,
		"TODO_LOG_LEVEL":      &cfg.Log.Level,
		"TODO_LOG_FORMAT":     &cfg.Log.Format,
		"TODO_DELETE_MODE":    &cfg.Delete.DefaultMode,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"TODO_LOG_JOURNAL": &cfg.Log.Journal,
		"TODO_MCP":         &cfg.MCP.Enabled,
	}
	for name, dst := range bools {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendNeo4j:
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Backend == BackendSQLite && c.SQLite.Path == "" {
		errs = append(errs, errors.New("sqlite.path: required for the sqlite backend"))
	}
	if c.Store.Backend == BackendNeo4j && c.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j.uri: required for the neo4j backend"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr: required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if _, err := models.ParseDeleteMode(c.Delete.DefaultMode); err != nil {
		errs = append(errs, fmt.Errorf("delete.default_mode: %w", err))
	}
	return errors.Join(errs...)
}
