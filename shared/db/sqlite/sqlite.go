package sqlite

import (
	"fmt"
	"net/url"
	"os"

	"github.com/dfryer1193/gocatalog/shared/db"
	"github.com/jmoiron/sqlx"
)

const (
	// defaultPath is the default path for the SQLite database
	defaultPath = "./catalog.db"
)

// pragmas are applied by the driver to every pooled connection
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"cache_size(-64000)",
}

type SQLiteConfig struct {
	Path string
}

func NewSQLiteConfig() *SQLiteConfig {
	path := os.Getenv("SQLITE_DB_PATH")
	if path == "" {
		path = defaultPath
	}

	return &SQLiteConfig{
		Path: path,
	}
}

// DSN returns the driver connection string with pragmas attached
func (c *SQLiteConfig) DSN() string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + c.Path + "?" + q.Encode()
}

// SQLiteDB implements the db.Database interface for SQLite
type SQLiteDB struct {
	cfg *SQLiteConfig
	db  *sqlx.DB
}

// NewSQLiteDB creates a new SQLite database instance
func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	return &SQLiteDB{
		cfg: cfg,
	}
}

// Connect opens a connection to the SQLite database and runs pending migrations
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	if err := registerFunctions(); err != nil {
		return fmt.Errorf("failed to register sql functions: %w", err)
	}

	conn, err := sqlx.Open("sqlite", s.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = conn
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sqlx.DB instance
func (s *SQLiteDB) DB() *sqlx.DB {
	return s.db
}

var _ db.Database = (*SQLiteDB)(nil)
