package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hession/teachmate/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore SQLite memory storage implementation.
// Every Put commits on its own, so Save has nothing to flush.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(dbPath string, log *logger.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps upserts and reads serialized on the same file
	db.SetMaxOpenConns(1)

	store, err := newSQLiteStoreWithDB(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newSQLiteStoreWithDB(db *sql.DB, log *logger.Logger) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db, log: log}
	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}
	return store, nil
}

// initTables initializes database tables
func (s *SQLiteStore) initTables() error {
	queries := []string{
		// id gives insertion order; upserts keep it
		`CREATE TABLE IF NOT EXISTS memory (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt TEXT NOT NULL UNIQUE,
			response TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}

	return nil
}

// Load reports how many entries the database holds
func (s *SQLiteStore) Load() error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM memory").Scan(&n); err != nil {
		s.log.Error("failed to read memory database: %v", err)
		return fmt.Errorf("failed to count memory rows: %w", err)
	}
	s.log.Info("memory database opened: %d entries", n)
	return nil
}

// Save is a no-op; rows are durable once Put returns
func (s *SQLiteStore) Save() error {
	return nil
}

// Get returns the response stored for prompt
func (s *SQLiteStore) Get(prompt string) (string, bool, error) {
	var response string
	err := s.db.QueryRow("SELECT response FROM memory WHERE prompt = ?", prompt).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get memory: %w", err)
	}
	return response, true, nil
}

// Put upserts prompt -> response
func (s *SQLiteStore) Put(prompt, response string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO memory (prompt, response, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(prompt) DO UPDATE SET response = excluded.response, updated_at = excluded.updated_at`,
		prompt, response, now, now,
	)
	if err != nil {
		s.log.Error("failed to save memory %q: %v", prompt, err)
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// Entries returns all rows in insertion order
func (s *SQLiteStore) Entries() ([]Entry, error) {
	rows, err := s.db.Query("SELECT prompt, response FROM memory ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Prompt, &e.Response); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	return entries, nil
}

// Len returns the row count, or 0 if it cannot be read
func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM memory").Scan(&n); err != nil {
		s.log.Warn("failed to count memories: %v", err)
		return 0
	}
	return n
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
