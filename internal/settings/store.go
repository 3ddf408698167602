package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/herdwatch/live-overlay/internal/logger"
)

// Store loads and saves settings.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// SQLiteStore keeps settings as key/value rows in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `create table if not exists settings (
	key   text primary key,
	value text not null
)`

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings: empty database path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("settings: ensure dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open %s: %w", path, err)
	}
	// Writes are serialized; a single connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("settings: create schema: %w", err)
	}
	logger.Info("Settings", "Using database %s", path)
	return &SQLiteStore{db: db}, nil
}

// Load returns the stored settings; missing keys take their defaults.
func (s *SQLiteStore) Load(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `select key, value from settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: query: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, fmt.Errorf("settings: scan: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("settings: rows: %w", err)
	}

	loaded, err := FromValues(Defaults(), values)
	if err != nil {
		logger.Warn("Settings", "Stored settings rejected, using defaults: %v", err)
		return Defaults(), nil
	}
	return loaded, nil
}

// Save replaces every stored key in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settings: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range st.Values() {
		if _, err := tx.ExecContext(ctx,
			`insert into settings(key, value) values(?, ?)
			 on conflict(key) do update set value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("settings: write %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settings: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore keeps settings in memory.
type MemoryStore struct {
	mu sync.Mutex
	s  Settings
}

// NewMemoryStore returns a store holding the defaults.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{s: Defaults()}
}

func (m *MemoryStore) Load(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.s = s
	m.mu.Unlock()
	return nil
}
